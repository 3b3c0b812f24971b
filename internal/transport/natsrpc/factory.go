package natsrpc

import (
	"errors"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"

	"github.com/hyperjump/semdex/internal/config"
	"github.com/hyperjump/semdex/internal/service"
)

func AddEndpoints(group micro.Group, endpoints service.EndpointSet) error {
	return errors.Join(
		group.AddEndpoint("ingest", IngestHandler(endpoints.Ingest)),
		group.AddEndpoint("query", QueryHandler(endpoints.Search)),
		group.AddEndpoint("document", DocumentHandler(endpoints.Document)),
		group.AddEndpoint("status", StatusHandler(endpoints.Status)),
	)
}

// Connect dials the configured server, using a credentials file when set.
func Connect(cfg config.NATSConfig, name string) (*nats.Conn, error) {
	opts := []nats.Option{nats.Name(name)}
	if cfg.Creds != "" {
		opts = append(opts, nats.UserCredentials(cfg.Creds))
	}
	return nats.Connect(cfg.URL, opts...)
}

// Serve registers the micro service and its endpoints under cfg.Group.
func Serve(nc *nats.Conn, cfg config.NATSConfig, version string, endpoints service.EndpointSet) (micro.Service, error) {
	srv, err := micro.AddService(nc, micro.Config{
		Name:        cfg.ServiceName,
		Version:     version,
		Description: "semantic document index",
	})
	if err != nil {
		return nil, err
	}

	root := srv.AddGroup(cfg.Group)
	if err := AddEndpoints(root, endpoints); err != nil {
		_ = srv.Stop()
		return nil, err
	}
	return srv, nil
}
