package inspect

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/tsumiki/internal/models"
	"github.com/hyperjump/tsumiki/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, s storage.Store, source string, n int, text string) {
	t.Helper()
	entries := make([]models.StoreEntry, n)
	for i := range entries {
		vec := make([]float32, 768)
		for j := range vec {
			vec[j] = float32(j) / 1000
		}
		entries[i] = models.StoreEntry{
			ID:        fmt.Sprintf("%s-%d", source, i),
			Document:  text,
			Embedding: vec,
			Metadata:  models.Metadata{models.MetaSource: source, models.MetaStartIndex: i * 900},
		}
	}
	require.NoError(t, s.Upsert(context.Background(), entries))
}

func TestInspect_emptyStore(t *testing.T) {
	report, err := New(storage.NewMemoryStore()).Inspect(context.Background(), Options{IncludeEmbeddings: true, Sources: true})
	require.NoError(t, err)
	assert.Equal(t, int64(0), report.Count)
	assert.Nil(t, report.Sample)
	assert.Empty(t, report.Sources)
}

func TestInspect_sampleOfFirstEntry(t *testing.T) {
	s := storage.NewMemoryStore()
	long := strings.Repeat("x", 150)
	seed(t, s, "data/a.txt", 2, long)
	seed(t, s, "data/b.txt", 3, "short")

	report, err := New(s).Inspect(context.Background(), Options{IncludeEmbeddings: true, Sources: true})
	require.NoError(t, err)
	assert.Equal(t, int64(5), report.Count)
	require.NotNil(t, report.Sample)
	assert.Equal(t, "data/a.txt-0", report.Sample.ID)
	assert.Equal(t, "data/a.txt", report.Sample.Metadata.Source())
	assert.Equal(t, strings.Repeat("x", 100), report.Sample.Preview)
	assert.True(t, report.Sample.Truncated)
	assert.Equal(t, 768, report.Sample.Dimensions)
	require.Len(t, report.Sample.Vector, 10)
	assert.Equal(t, float32(0.009), report.Sample.Vector[9])

	assert.Equal(t, []SourceCount{{"data/a.txt", 2}, {"data/b.txt", 3}}, report.Sources)
}

func TestInspect_withoutEmbeddings(t *testing.T) {
	s := storage.NewMemoryStore()
	seed(t, s, "s", 1, "hello")
	report, err := New(s).Inspect(context.Background(), Options{})
	require.NoError(t, err)
	require.NotNil(t, report.Sample)
	assert.Equal(t, "hello", report.Sample.Preview)
	assert.False(t, report.Sample.Truncated)
	assert.Zero(t, report.Sample.Dimensions)
	assert.Nil(t, report.Sample.Vector)
	assert.Nil(t, report.Sources)
}

func TestInspect_shortVectorAndCustomPreview(t *testing.T) {
	s := storage.NewMemoryStore()
	require.NoError(t, s.Upsert(context.Background(), []models.StoreEntry{{
		ID: "x", Document: "héllo wörld", Embedding: []float32{1, 2, 3},
		Metadata: models.Metadata{models.MetaSource: "s"},
	}}))
	report, err := New(s).Inspect(context.Background(), Options{IncludeEmbeddings: true, PreviewChars: 4})
	require.NoError(t, err)
	assert.Equal(t, "héll", report.Sample.Preview)
	assert.Equal(t, []float32{1, 2, 3}, report.Sample.Vector)
	assert.InDelta(t, 3.7416573, report.Sample.Norm, 1e-6)
}

func TestInspect_sqliteReportsDiskUsage(t *testing.T) {
	s, err := storage.OpenSQLiteStore(filepath.Join(t.TempDir(), "vs"), storage.Create)
	require.NoError(t, err)
	defer s.Close()
	seed(t, s, "data/a.txt", 3, "content")

	report, err := New(s).Inspect(context.Background(), Options{IncludeEmbeddings: true})
	require.NoError(t, err)
	assert.Equal(t, int64(3), report.Count)
	assert.Greater(t, report.DiskUsageBytes, int64(0))
	assert.Equal(t, 768, report.Sample.Dimensions)
	assert.Equal(t, 0, report.Sample.Metadata.StartIndex())
}
