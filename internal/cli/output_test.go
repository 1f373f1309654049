package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/tsumiki/internal/indexer"
	"github.com/hyperjump/tsumiki/internal/inspect"
	"github.com/hyperjump/tsumiki/internal/models"
	"github.com/hyperjump/tsumiki/internal/prune"
)

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{"JSON", OutputJSON, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOutputFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseOutputFormat(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseOutputFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestWriteIngestResult_Text(t *testing.T) {
	tests := []struct {
		name string
		res  *indexer.RunResult
		want []string
	}{
		{
			name: "ingested",
			res: &indexer.RunResult{Outcome: indexer.OutcomeIngested, DataDir: "data", StoreDir: "vector_store",
				Documents: 3, Sources: 2, Chunks: 7, Written: 7, Dimensions: 768, Duration: 1500 * time.Millisecond},
			want: []string{"Loaded 3 documents from 2 files.", "Split 3 documents into 7 chunks.",
				"Successfully saved 7 chunks to 'vector_store' (768 dimensions, 1.5s)."},
		},
		{
			name: "data dir created",
			res:  &indexer.RunResult{Outcome: indexer.OutcomeDataDirCreated, DataDir: "data"},
			want: []string{"Created 'data/' directory."},
		},
		{
			name: "no documents",
			res:  &indexer.RunResult{Outcome: indexer.OutcomeNoDocuments, DataDir: "data"},
			want: []string{"No documents found in 'data/'."},
		},
		{
			name: "no chunks",
			res:  &indexer.RunResult{Outcome: indexer.OutcomeNoChunks, DataDir: "data", Documents: 1, Sources: 1},
			want: []string{"Split 1 documents into 0 chunks.", "No chunks to save"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteIngestResult(&buf, tt.res, OutputText); err != nil {
				t.Fatal(err)
			}
			for _, w := range tt.want {
				if !strings.Contains(buf.String(), w) {
					t.Errorf("output missing %q:\n%s", w, buf.String())
				}
			}
		})
	}
}

func TestWriteIngestResult_JSON(t *testing.T) {
	res := &indexer.RunResult{Outcome: indexer.OutcomeIngested, Chunks: 4, Written: 4}
	var buf bytes.Buffer
	if err := WriteIngestResult(&buf, res, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded indexer.RunResult
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if decoded.Outcome != indexer.OutcomeIngested || decoded.Written != 4 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWritePeekReport_Text(t *testing.T) {
	rep := &inspect.Report{
		Count: 12,
		Sample: &inspect.Sample{
			ID:         "abc",
			Metadata:   models.Metadata{"source": "data/a.txt", "start_index": 0},
			Preview:    "hello",
			Truncated:  true,
			Dimensions: 768,
			Vector:     []float32{0.5, -0.25},
		},
	}
	var buf bytes.Buffer
	if err := WritePeekReport(&buf, rep, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, w := range []string{
		"Total chunks in DB: 12",
		"ID: abc",
		"Metadata: {'source': 'data/a.txt', 'start_index': 0}",
		"Document Snippet: hello...",
		"Vector Length: 768",
		"Vector (first 2 numbers): [0.5 -0.25]...",
	} {
		if !strings.Contains(out, w) {
			t.Errorf("output missing %q:\n%s", w, out)
		}
	}
}

func TestWritePeekReport_EmptyStore(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePeekReport(&buf, &inspect.Report{}, OutputText); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "Total chunks in DB: 0\n" {
		t.Errorf("output = %q", got)
	}
}

func TestWritePeekReport_NoVector(t *testing.T) {
	rep := &inspect.Report{Count: 1, Sample: &inspect.Sample{ID: "x", Preview: "short"}}
	var buf bytes.Buffer
	if err := WritePeekReport(&buf, rep, OutputText); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "Vector") {
		t.Errorf("vector lines printed without embeddings:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "Document Snippet: short\n") {
		t.Errorf("untruncated preview should not end with ellipsis:\n%s", buf.String())
	}
}

func TestWriteStatus_Text(t *testing.T) {
	rep := &inspect.Report{
		Count:          8,
		StorePath:      "vector_store",
		DiskUsageBytes: 2048,
		Sources:        []inspect.SourceCount{{Source: "data/a.txt", Chunks: 5}, {Source: "data/b.pdf", Chunks: 3}},
	}
	var buf bytes.Buffer
	if err := WriteStatus(&buf, rep, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, w := range []string{"Store: vector_store", "Chunks: 8", "Disk usage: 2.0 kB", "Sources (2):", "data/a.txt", "data/b.pdf"} {
		if !strings.Contains(out, w) {
			t.Errorf("output missing %q:\n%s", w, out)
		}
	}
}

func TestWritePruneResult_Text(t *testing.T) {
	tests := []struct {
		name string
		res  *prune.Result
		want string
	}{
		{"deleted", &prune.Result{Source: "data/a.txt", Matched: 5, Deleted: true}, "Found 5 chunks from 'data/a.txt'. Deleting..."},
		{"none", &prune.Result{Source: "data/x.txt"}, "No chunks found from 'data/x.txt'."},
		{"dry run", &prune.Result{Source: "data/a.txt", Matched: 2}, "Dry run, nothing deleted."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WritePruneResult(&buf, tt.res, OutputText); err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, buf.String())
			}
		})
	}
}

func TestWritePruneResult_JSON(t *testing.T) {
	var buf bytes.Buffer
	res := &prune.Result{Source: "a", Matched: 1, Deleted: true, IDs: []string{"id1"}}
	if err := WritePruneResult(&buf, res, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded prune.Result
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Matched != 1 || len(decoded.IDs) != 1 {
		t.Errorf("decoded = %+v", decoded)
	}
}
