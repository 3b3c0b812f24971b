package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/semdex/internal/models"
)

func sampleResponse() *models.QueryResponse {
	return &models.QueryResponse{
		Query:  "test query",
		K:      5,
		Total:  1,
		TookMS: 42,
		Results: []*models.Result{
			{
				ID:         "doc-1",
				Text:       "Content\nhere",
				SourceName: "notes.txt",
				Score:      0.9,
				Rank:       1,
			},
		},
	}
}

func TestWriteSearchResults_JSON(t *testing.T) {
	response := sampleResponse()
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, response, OutputJSON); err != nil {
		t.Fatalf("WriteSearchResults(json): %v", err)
	}
	var decoded models.QueryResponse
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Query != response.Query || decoded.TookMS != response.TookMS {
		t.Errorf("decoded query=%q took_ms=%d", decoded.Query, decoded.TookMS)
	}
	if len(decoded.Results) != 1 || decoded.Results[0].ID != "doc-1" {
		t.Errorf("decoded results: %+v", decoded.Results)
	}
}

func TestWriteSearchResults_text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResponse(), OutputText); err != nil {
		t.Fatalf("WriteSearchResults(text): %v", err)
	}
	out := buf.String()
	for _, sub := range []string{"Found 1 results", "42ms", "Rank: 1", "ID: doc-1", "notes.txt", "Content here"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}
}

func TestWriteSearchResults_unknownFormatTreatedAsText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, &models.QueryResponse{Query: "x"}, OutputFormat("unknown")); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Found 0 results") {
		t.Errorf("unknown format should fall back to text; got %q", buf.String())
	}
}

func TestWriteIngestReport_text(t *testing.T) {
	report := &models.IngestReport{
		Outcomes: []models.Outcome{
			{Filename: "a.txt", Status: models.StatusSucceeded, ID: "id-a"},
			{Filename: "b.pdf", Status: models.StatusFailed, Kind: models.KindExtraction, Error: "bad pdf"},
			{Filename: "c.txt", Status: models.StatusAborted},
		},
		Error: "index unavailable",
	}
	report.Finalize()

	var buf bytes.Buffer
	if err := WriteIngestReport(&buf, report, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"ok       a.txt (id-a)", "b.pdf [extraction] bad pdf", "aborted: 1 succeeded, 1 failed, 1 aborted", "error: index unavailable"} {
		if !strings.Contains(out, sub) {
			t.Errorf("output missing %q:\n%s", sub, out)
		}
	}
}

func TestWriteIngestReport_JSON(t *testing.T) {
	report := &models.IngestReport{Outcomes: []models.Outcome{{Filename: "a.txt", Status: models.StatusSucceeded}}}
	report.Finalize()
	var buf bytes.Buffer
	if err := WriteIngestReport(&buf, report, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded models.IngestReport
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Status != models.ReportOK || decoded.Succeeded != 1 {
		t.Errorf("decoded %+v", decoded)
	}
}

func TestWriteStatus_text(t *testing.T) {
	var buf bytes.Buffer
	status := &models.Status{Records: 3, Dimensions: 384, Metric: "cosine", IndexType: "sqlite", Embedder: "hash-384", DiskBytes: 2048}
	if err := WriteStatus(&buf, status, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"records:    3", "dimensions: 384", "index:      sqlite", "disk:       2.0 KiB"} {
		if !strings.Contains(out, sub) {
			t.Errorf("output missing %q:\n%s", sub, out)
		}
	}
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{"json", OutputJSON, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOutputFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestHumanBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{5 << 20, "5.0 MiB"},
	}
	for _, tt := range tests {
		if got := humanBytes(tt.n); got != tt.want {
			t.Errorf("humanBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
