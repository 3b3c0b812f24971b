// Package cli provides output helpers for the semdex command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/hyperjump/semdex/internal/models"
	"github.com/hyperjump/semdex/pkg/utils"
)

// OutputFormat selects how command results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat maps a flag value to an OutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text or json)", s)
}

const previewRunes = 200

// WriteSearchResults writes a query response to w in the given format.
func WriteSearchResults(w io.Writer, response *models.QueryResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d results for %q in %dms\n\n", response.Total, response.Query, response.TookMS)
	for _, result := range response.Results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Score: %.4f | %s\n", result.Rank, result.Score, result.SourceName)
		fmt.Fprintf(w, "ID: %s\n", result.ID)
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(utils.SingleLine(result.Text), previewRunes))
	}
	return nil
}

// WriteIngestReport writes an ingestion report, one line per file in text mode.
func WriteIngestReport(w io.Writer, report *models.IngestReport, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, report)
	}
	for _, o := range report.Outcomes {
		switch o.Status {
		case models.StatusSucceeded:
			fmt.Fprintf(w, "  ok       %s (%s)\n", o.Filename, o.ID)
		default:
			fmt.Fprintf(w, "  %-8s %s [%s] %s\n", o.Status, o.Filename, o.Kind, o.Error)
		}
	}
	fmt.Fprintf(w, "%s: %d succeeded, %d failed", report.Status, report.Succeeded, report.Failed)
	if report.Aborted > 0 {
		fmt.Fprintf(w, ", %d aborted", report.Aborted)
	}
	fmt.Fprintln(w)
	if report.Error != "" {
		fmt.Fprintf(w, "error: %s\n", report.Error)
	}
	return nil
}

// WriteStatus writes index statistics.
func WriteStatus(w io.Writer, status *models.Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	rows := map[string]string{
		"records":    fmt.Sprint(status.Records),
		"dimensions": fmt.Sprint(status.Dimensions),
		"metric":     status.Metric,
		"index":      status.IndexType,
		"embedder":   status.Embedder,
		"disk":       humanBytes(status.DiskBytes),
	}
	if status.Version != "" {
		rows["version"] = status.Version
	}
	keys := make([]string, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%-11s %s\n", k+":", rows[k])
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
