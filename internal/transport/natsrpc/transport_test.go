package natsrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/nats-io/nats.go/micro"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/semdex/internal/embedding"
	"github.com/hyperjump/semdex/internal/models"
	"github.com/hyperjump/semdex/internal/service"
	"github.com/hyperjump/semdex/internal/vector"
)

// fakeRequest records what a handler sends back. Methods the handlers do
// not call fall through to the nil embedded interface.
type fakeRequest struct {
	micro.Request
	data []byte

	code        string
	description string
	errData     []byte
	body        []byte
}

func (r *fakeRequest) Data() []byte { return r.data }

func (r *fakeRequest) Respond(data []byte, _ ...micro.RespondOpt) error {
	r.body = data
	return nil
}

func (r *fakeRequest) RespondJSON(v any, _ ...micro.RespondOpt) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	r.body = data
	return nil
}

func (r *fakeRequest) Error(code, description string, data []byte, _ ...micro.RespondOpt) error {
	r.code, r.description, r.errData = code, description, data
	return nil
}

func TestIngestHandler(t *testing.T) {
	var got service.IngestRequest
	ep := func(_ context.Context, request any) (any, error) {
		got = request.(service.IngestRequest)
		return &models.IngestReport{Status: models.ReportOK, Succeeded: 1}, nil
	}

	payload, err := json.Marshal(service.IngestRequest{
		Files: []models.File{{Name: "a.txt", Content: []byte("hello")}},
	})
	require.NoError(t, err)

	r := &fakeRequest{data: payload}
	IngestHandler(ep)(r)

	require.Empty(t, r.code)
	require.Len(t, got.Files, 1)
	assert.Equal(t, "a.txt", got.Files[0].Name)
	assert.Equal(t, []byte("hello"), got.Files[0].Content)

	var report models.IngestReport
	require.NoError(t, json.Unmarshal(r.body, &report))
	assert.Equal(t, models.ReportOK, report.Status)
}

func TestIngestHandler_abortedBatch(t *testing.T) {
	ep := func(context.Context, any) (any, error) {
		report := &models.IngestReport{
			Outcomes: []models.Outcome{{Filename: "a.txt", Status: models.StatusFailed, Kind: models.KindIndex}},
			Error:    "insert a.txt: vector index unavailable",
		}
		report.Finalize()
		return report, fmt.Errorf("insert a.txt: %w", vector.ErrIndexUnavailable)
	}

	r := &fakeRequest{data: []byte(`{"files":[{"name":"a.txt","content":"aGk="}]}`)}
	IngestHandler(ep)(r)

	assert.Equal(t, "503", r.code)
	var report models.IngestReport
	require.NoError(t, json.Unmarshal(r.errData, &report))
	assert.Equal(t, models.ReportAborted, report.Status)
}

func TestIngestHandler_badJSON(t *testing.T) {
	r := &fakeRequest{data: []byte("{")}
	IngestHandler(func(context.Context, any) (any, error) {
		t.Fatal("endpoint must not be called")
		return nil, nil
	})(r)
	assert.Equal(t, "400", r.code)
}

func TestQueryHandler(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"ok", nil, ""},
		{"blank query", fmt.Errorf("%w: query cannot be empty", service.ErrInvalidRequest), "400"},
		{"embedding", fmt.Errorf("embed query: %w", embedding.ErrEmbedding), "422"},
		{"index", fmt.Errorf("query index: %w", vector.ErrIndexUnavailable), "503"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep := func(_ context.Context, request any) (any, error) {
				req := request.(service.SearchRequest)
				if tt.err != nil {
					return nil, tt.err
				}
				return &models.QueryResponse{Query: req.Query, K: req.K, Results: []*models.Result{}}, nil
			}
			r := &fakeRequest{data: []byte(`{"query":"rivers","k":3}`)}
			QueryHandler(ep)(r)

			assert.Equal(t, tt.wantCode, r.code)
			if tt.err == nil {
				var resp models.QueryResponse
				require.NoError(t, json.Unmarshal(r.body, &resp))
				assert.Equal(t, "rivers", resp.Query)
				assert.Equal(t, 3, resp.K)
			}
		})
	}
}

func TestDocumentHandler(t *testing.T) {
	ep := func(_ context.Context, request any) (any, error) {
		req := request.(service.DocumentRequest)
		if req.ID != "abc" {
			return nil, fmt.Errorf("%w: %s", vector.ErrNotFound, req.ID)
		}
		return &models.Record{ID: "abc", Text: "body"}, nil
	}

	for _, data := range []string{`{"id":"abc"}`, "abc", " abc\n"} {
		r := &fakeRequest{data: []byte(data)}
		DocumentHandler(ep)(r)
		assert.Empty(t, r.code, "request %q", data)
		assert.Contains(t, string(r.body), `"body"`)
	}

	r := &fakeRequest{data: []byte("zzz")}
	DocumentHandler(ep)(r)
	assert.Equal(t, "404", r.code)

	r = &fakeRequest{}
	DocumentHandler(ep)(r)
	assert.Equal(t, "400", r.code)
}

func TestStatusHandler(t *testing.T) {
	ep := func(context.Context, any) (any, error) {
		return &models.Status{Records: 7, Metric: vector.MetricCosine}, nil
	}
	r := &fakeRequest{}
	StatusHandler(ep)(r)

	var status models.Status
	require.NoError(t, json.Unmarshal(r.body, &status))
	assert.Equal(t, 7, status.Records)
}

func TestDecodeDocumentRequest(t *testing.T) {
	req, err := decodeDocumentRequest([]byte(`{"id":"x1"}`))
	require.NoError(t, err)
	assert.Equal(t, "x1", req.ID)

	_, err = decodeDocumentRequest([]byte(`{"id":`))
	assert.Error(t, err)

	_, err = decodeDocumentRequest(nil)
	assert.Error(t, err)
}
