// Package cli provides report writers for the tsumiki commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hyperjump/tsumiki/internal/indexer"
	"github.com/hyperjump/tsumiki/internal/inspect"
	"github.com/hyperjump/tsumiki/internal/models"
	"github.com/hyperjump/tsumiki/internal/prune"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output value. Empty means text.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q (use text or json)", s)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteIngestResult writes the outcome of an ingestion run.
func WriteIngestResult(w io.Writer, res *indexer.RunResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	switch res.Outcome {
	case indexer.OutcomeDataDirCreated:
		fmt.Fprintf(w, "Created '%s/' directory. Please place your .txt or .pdf files there.\n", res.DataDir)
		return nil
	case indexer.OutcomeNoDocuments:
		fmt.Fprintf(w, "No documents found in '%s/'. Please add some files and run again.\n", res.DataDir)
		return nil
	}
	fmt.Fprintf(w, "Loaded %d documents from %d files.\n", res.Documents, res.Sources)
	fmt.Fprintf(w, "Split %d documents into %d chunks.\n", res.Documents, res.Chunks)
	if res.Outcome == indexer.OutcomeNoChunks {
		fmt.Fprintln(w, "No chunks to save: the documents contain no text.")
		return nil
	}
	fmt.Fprintf(w, "Successfully saved %d chunks to '%s' (%d dimensions, %s).\n",
		res.Written, res.StoreDir, res.Dimensions, res.Duration.Round(time.Millisecond))
	return nil
}

// WritePeekReport writes the store count and the first entry.
func WritePeekReport(w io.Writer, rep *inspect.Report, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, rep)
	}
	fmt.Fprintf(w, "Total chunks in DB: %d\n", rep.Count)
	if rep.Sample == nil {
		return nil
	}
	s := rep.Sample
	fmt.Fprintln(w, "\n--- SAMPLE CHUNK (Chunk 0) ---")
	fmt.Fprintf(w, "ID: %s\n", s.ID)
	fmt.Fprintf(w, "Metadata: %s\n", formatMetadata(s.Metadata))
	fmt.Fprintf(w, "Document Snippet: %s", s.Preview)
	if s.Truncated {
		fmt.Fprint(w, "...")
	}
	fmt.Fprintln(w)
	if s.Vector != nil {
		fmt.Fprintf(w, "Vector Length: %d (norm %.4f)\n", s.Dimensions, s.Norm)
		fmt.Fprintf(w, "Vector (first %d numbers): %v", len(s.Vector), s.Vector)
		if len(s.Vector) < s.Dimensions {
			fmt.Fprint(w, "...")
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, "------------------------------")
	return nil
}

// WriteStatus writes store statistics grouped by source.
func WriteStatus(w io.Writer, rep *inspect.Report, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, rep)
	}
	fmt.Fprintf(w, "Store: %s\n", rep.StorePath)
	fmt.Fprintf(w, "Chunks: %d\n", rep.Count)
	fmt.Fprintf(w, "Disk usage: %s\n", humanize.Bytes(uint64(rep.DiskUsageBytes)))
	if len(rep.Sources) == 0 {
		return nil
	}
	fmt.Fprintf(w, "Sources (%d):\n", len(rep.Sources))
	for _, sc := range rep.Sources {
		fmt.Fprintf(w, "  %6d  %s\n", sc.Chunks, sc.Source)
	}
	return nil
}

// WritePruneResult writes the outcome of a delete-by-source.
func WritePruneResult(w io.Writer, res *prune.Result, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	if res.Matched == 0 {
		fmt.Fprintf(w, "No chunks found from '%s'.\n", res.Source)
		return nil
	}
	if !res.Deleted {
		fmt.Fprintf(w, "Found %d chunks from '%s'. Dry run, nothing deleted.\n", res.Matched, res.Source)
		return nil
	}
	fmt.Fprintf(w, "Found %d chunks from '%s'. Deleting...\n", res.Matched, res.Source)
	fmt.Fprintln(w, "Successfully deleted the chunks.")
	return nil
}

// formatMetadata renders metadata with sorted keys so output is stable.
func formatMetadata(md models.Metadata) string {
	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		v := md[k]
		if s, ok := v.(string); ok {
			parts[i] = fmt.Sprintf("'%s': '%s'", k, s)
		} else {
			parts[i] = fmt.Sprintf("'%s': %v", k, v)
		}
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
