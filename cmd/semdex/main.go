// Package main is the semdex CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/hyperjump/semdex/internal/config"
	"github.com/hyperjump/semdex/internal/embedding"
	"github.com/hyperjump/semdex/internal/extract"
	"github.com/hyperjump/semdex/internal/ingest"
	"github.com/hyperjump/semdex/internal/models"
	"github.com/hyperjump/semdex/internal/search"
	"github.com/hyperjump/semdex/internal/server"
	"github.com/hyperjump/semdex/internal/service"
	"github.com/hyperjump/semdex/internal/transport/natsrpc"
	"github.com/hyperjump/semdex/internal/vector"
	"github.com/hyperjump/semdex/internal/watcher"
	"github.com/hyperjump/semdex/pkg/utils"

	output "github.com/hyperjump/semdex/internal/cli"
)

// version must stay semver; the NATS micro service rejects anything else.
var version = "0.1.0"

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err.Error())
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "semdex",
		Usage: "Document ingestion and semantic retrieval",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "config file path (default ./config.yaml when present)",
				Sources: cli.EnvVars("SEMDEX_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "host",
				Usage:   "HTTP listen host",
				Sources: cli.EnvVars("SEMDEX_HOST"),
			},
			&cli.IntFlag{
				Name:    "port",
				Usage:   "HTTP listen port",
				Sources: cli.EnvVars("SEMDEX_PORT"),
			},
			&cli.StringFlag{
				Name:    "data",
				Usage:   "vector index directory",
				Sources: cli.EnvVars("SEMDEX_DATA"),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the HTTP server (and NATS service when enabled)",
				Action: runServe,
			},
			{
				Name:      "ingest",
				Usage:     "Ingest files or directories",
				ArgsUsage: "<file-or-directory>...",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "server",
						Usage: "upload to a running server at this URL instead of opening the index",
					},
					outputFlag(),
				},
				Action: runIngest,
			},
			{
				Name:      "search",
				Usage:     "Search the index",
				ArgsUsage: "<query>",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "k",
						Usage: "number of results (default from config)",
					},
					&cli.StringFlag{
						Name:  "server",
						Usage: "query a running server at this URL instead of opening the index",
					},
					outputFlag(),
				},
				Action: runSearch,
			},
			{
				Name:  "status",
				Usage: "Show index status",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "server",
						Usage: "ask a running server at this URL instead of opening the index",
					},
					outputFlag(),
				},
				Action: runStatus,
			},
			{
				Name:  "version",
				Usage: "Show version",
				Action: func(_ context.Context, cmd *cli.Command) error {
					fmt.Fprintf(cmd.Root().Writer, "semdex version %s\n", version)
					return nil
				},
			},
		},
	}
}

func outputFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "output format: text or json",
		Value:   string(output.OutputText),
	}
}

// loadConfig resolves the config file: --config / $SEMDEX_CONFIG, then
// ./config.yaml, then built-in defaults. The returned path is empty when no
// file was read.
func loadConfig(cmd *cli.Command) (*config.Config, string, error) {
	path := cmd.String("config")
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}

	var cfg *config.Config
	if path == "" {
		cfg = config.Default()
	} else {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, "", err
		}
		cfg = loaded
	}
	applyOverrides(cmd, cfg)

	if err := cfg.LoadEnv(); err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid config: %w", err)
	}
	return cfg, path, nil
}

func applyOverrides(cmd *cli.Command, cfg *config.Config) {
	if host := cmd.String("host"); host != "" {
		cfg.Server.Host = host
	}
	if port := int(cmd.Int("port")); port != 0 {
		cfg.Server.Port = port
	}
	if data := cmd.String("data"); data != "" {
		if abs, err := filepath.Abs(data); err == nil {
			data = abs
		}
		cfg.Vector.Path = data
	}
	if cmd.Bool("debug") {
		cfg.Debug = true
	}
}

func setup(cmd *cli.Command) (*config.Config, string, *zap.Logger, error) {
	cfg, path, err := loadConfig(cmd)
	if err != nil {
		return nil, "", nil, err
	}
	logger, err := utils.NewLogger(cfg.Debug, cfg.LogFormat)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to create logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	logger.Debug("config loaded", zap.String("config_path", path), zap.Bool("debug", cfg.Debug))
	return cfg, path, logger, nil
}

// Components holds the wired services. Service owns the embedder and the
// index and closes both.
type Components struct {
	Embedder *embedding.Guard
	Index    vector.Index
	Ingester *ingest.Ingester
	Engine   *search.Engine
	Metrics  *service.Metrics
	Service  service.Service
}

func (c *Components) Close() error {
	return c.Service.Close()
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	extractor := extract.NewExtractor()
	if err := extractor.Enable(cfg.Extract.Formats...); err != nil {
		return nil, fmt.Errorf("invalid extract formats: %w", err)
	}

	emb, err := embedding.New(cfg.Embedding, logger)
	if err != nil {
		return nil, err
	}

	idx, err := vector.Open(ctx, cfg.Vector, vector.NewMeta(emb.Dimensions(), emb.Name()), logger)
	if err != nil {
		_ = emb.Close()
		return nil, fmt.Errorf("failed to open vector index: %w", err)
	}
	logger.Info("vector index ready",
		zap.String("type", idx.Type()),
		zap.String("path", cfg.Vector.Path),
		zap.Int("records", idx.Count()))

	ingester := ingest.NewIngester(extractor, emb, idx, ingest.WithLogger(logger.Named("ingest")))
	engine := search.NewEngine(emb, idx, &cfg.Search, search.WithLogger(logger.Named("search")))
	metrics := service.NewMetrics(idx.Count)

	svc := service.NewService(emb, idx, ingester, engine,
		service.WithDataPath(cfg.Vector.Path),
		service.WithVersion(version))
	svc = service.LoggingMiddleware(logger)(svc)
	svc = service.InstrumentingMiddleware(metrics)(svc)

	return &Components{
		Embedder: emb,
		Index:    idx,
		Ingester: ingester,
		Engine:   engine,
		Metrics:  metrics,
		Service:  svc,
	}, nil
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, configPath, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := []server.Option{server.WithMetrics(components.Metrics.Handler())}
	if cfg.Watch.Enabled {
		w := watcher.NewWatcher(cfg.Watch.Directories, cfg.Watch.Extensions, components.Ingester,
			watcher.WithLogger(logger.Named("watcher")),
			watcher.WithDebounce(cfg.Watch.Debounce))
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
		defer w.Stop()
		opts = append(opts, server.WithWatch(w, configPath, cfg))
	}

	if cfg.NATS.Enabled {
		nc, err := natsrpc.Connect(cfg.NATS, "semdex "+version)
		if err != nil {
			return err
		}
		defer nc.Drain()

		ms, err := natsrpc.Serve(nc, cfg.NATS, version, service.MakeEndpoints(components.Service))
		if err != nil {
			return err
		}
		defer ms.Stop()
		logger.Info("nats service ready",
			zap.String("name", cfg.NATS.ServiceName),
			zap.String("group", cfg.NATS.Group))
	}

	srv := server.NewServer(components.Service, &cfg.Server, logger.Named("http"), opts...)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sign := <-quit:
		logger.Info("graceful shutdown", zap.String("signal", sign.String()))
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Stop(shutdownCtx)
}

func runIngest(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() == 0 {
		return errors.New("usage: semdex ingest <file-or-directory>...")
	}
	format, err := output.ParseOutputFormat(cmd.String("output"))
	if err != nil {
		return err
	}
	cfg, _, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	paths, err := collectPaths(cmd.Args().Slice(), cfg.Watch.Extensions)
	if err != nil {
		return err
	}

	var (
		report    *models.IngestReport
		ingestErr error
	)
	if serverURL := cmd.String("server"); serverURL != "" {
		report, ingestErr = ingestViaHTTP(ctx, serverURL, paths)
	} else {
		components, err := initializeComponents(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer components.Close()
		report, ingestErr = components.Ingester.IngestPaths(ctx, paths)
	}
	if report != nil {
		if err := output.WriteIngestReport(cmd.Root().Writer, report, format); err != nil {
			return err
		}
	}
	return ingestErr
}

// collectPaths expands directories into the files below them that match
// extensions. Files named explicitly are kept regardless of extension.
func collectPaths(args []string, extensions []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			// Missing files are reported per file by the ingester.
			paths = append(paths, arg)
			continue
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if len(extensions) == 0 || ingest.ExtensionAllowed(filepath.Ext(path), extensions) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", arg, err)
		}
	}
	return paths, nil
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runSearch(ctx context.Context, cmd *cli.Command) error {
	query := buildSearchQuery(cmd.Args().Slice())
	if query == "" {
		return errors.New("usage: semdex search [--k N] <query>")
	}
	format, err := output.ParseOutputFormat(cmd.String("output"))
	if err != nil {
		return err
	}
	k := int(cmd.Int("k"))

	var response *models.QueryResponse
	if serverURL := cmd.String("server"); serverURL != "" {
		response, err = searchViaHTTP(ctx, serverURL, query, k)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
	} else {
		cfg, _, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync()

		components, err := initializeComponents(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer components.Close()

		response, err = components.Service.Search(ctx, query, k)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
	}
	return output.WriteSearchResults(cmd.Root().Writer, response, format)
}

func runStatus(ctx context.Context, cmd *cli.Command) error {
	format, err := output.ParseOutputFormat(cmd.String("output"))
	if err != nil {
		return err
	}

	var status *models.Status
	if serverURL := cmd.String("server"); serverURL != "" {
		status, err = statusViaHTTP(ctx, serverURL)
		if err != nil {
			return fmt.Errorf("status failed: %w", err)
		}
	} else {
		cfg, _, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync()

		components, err := initializeComponents(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer components.Close()

		status, err = components.Service.Status(ctx)
		if err != nil {
			return fmt.Errorf("status failed: %w", err)
		}
	}
	return output.WriteStatus(cmd.Root().Writer, status, format)
}

func searchViaHTTP(ctx context.Context, serverURL, query string, k int) (*models.QueryResponse, error) {
	body, err := json.Marshal(models.QueryRequest{Query: query, K: k})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(serverURL, "/")+"/api/v1/query", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var response models.QueryResponse
	if err := doJSON(req, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func statusViaHTTP(ctx context.Context, serverURL string) (*models.Status, error) {
	u, err := url.JoinPath(serverURL, "/api/v1/status")
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	var status models.Status
	if err := doJSON(req, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// ingestViaHTTP uploads paths in one multipart request. Files that cannot be
// read locally are reported as read failures in their input position.
func ingestViaHTTP(ctx context.Context, serverURL string, paths []string) (*models.IngestReport, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	readErrs := make(map[int]error)
	uploaded := 0
	for i, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			readErrs[i] = err
			continue
		}
		part, err := mw.CreateFormFile("files", filepath.Base(path))
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(content); err != nil {
			return nil, err
		}
		uploaded++
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	remote := &models.IngestReport{}
	var remoteErr error
	if uploaded > 0 {
		u, err := url.JoinPath(serverURL, "/api/v1/ingest")
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, &body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())
		remote, remoteErr = postIngest(req)
		if remote == nil {
			return nil, remoteErr
		}
	}

	report := &models.IngestReport{Error: remote.Error}
	next := 0
	for i, path := range paths {
		if err, ok := readErrs[i]; ok {
			report.Outcomes = append(report.Outcomes, models.Outcome{
				Filename: filepath.Base(path),
				Status:   models.StatusFailed,
				Kind:     models.KindRead,
				Error:    err.Error(),
			})
			continue
		}
		if next < len(remote.Outcomes) {
			report.Outcomes = append(report.Outcomes, remote.Outcomes[next])
			next++
		}
	}
	report.Finalize()
	return report, remoteErr
}

// postIngest decodes the report the server sends with both success and
// abort responses. The error is set for any non-200 status.
func postIngest(req *http.Request) (*models.IngestReport, error) {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var report models.IngestReport
	decodeErr := json.Unmarshal(b, &report)
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		if decodeErr != nil || len(report.Outcomes) == 0 {
			return nil, err
		}
		return &report, err
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode response: %w", decodeErr)
	}
	return &report, nil
}

func doJSON(req *http.Request, v interface{}) error {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
