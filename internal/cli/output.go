// Package cli provides output formatting for the Kotae command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

// OutputFormat selects how command results are rendered.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteAnswer writes a chat answer to w in the given format.
func WriteAnswer(w io.Writer, answer string, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, models.ChatResponse{Response: answer})
	}
	_, err := fmt.Fprintf(w, "%s\n", answer)
	return err
}

// WriteCorpora writes the corpus list to w in the given format.
func WriteCorpora(w io.Writer, corpora []models.CorpusInfo, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]interface{}{"corpora": corpora})
	}
	if len(corpora) == 0 {
		fmt.Fprintln(w, "No corpora registered.")
		return nil
	}
	for _, c := range corpora {
		marker := " "
		if c.Default {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %s  %s  (%d chunks)\n", marker, c.ID, utils.Truncate(c.Name, 40), c.Chunks)
	}
	fmt.Fprintln(w, "\n* default corpus")
	return nil
}

// WriteUploadResult writes an upload summary to w in the given format.
func WriteUploadResult(w io.Writer, resp *models.UploadResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	for _, d := range resp.Documents {
		fmt.Fprintf(w, "indexed  %s  %s\n", d.ID, d.Filename)
	}
	for _, s := range resp.Skipped {
		fmt.Fprintf(w, "skipped  %s: %s\n", s.Filename, s.Reason)
	}
	fmt.Fprintf(w, "\n%d indexed, %d skipped\n", len(resp.Documents), len(resp.Skipped))
	return nil
}

// WriteStatus writes a status summary to w in the given format.
func WriteStatus(w io.Writer, st models.StatusResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	_, err := fmt.Fprintf(w, "status: %s\ncorpora: %d\nchunks: %d\n", st.Status, st.Corpora, st.Chunks)
	return err
}
