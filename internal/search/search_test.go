package search

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/dgallion1/kgest/internal/chunker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

func sampleChunks() []chunker.Chunk {
	return []chunker.Chunk{
		{Content: "Goroutines are lightweight threads managed by the Go runtime.", Type: chunker.TypeParagraph, Index: 0},
		{Content: "Channels let goroutines communicate without sharing memory.", Type: chunker.TypeBulletedItem, HeaderContext: strp("Concurrency"), Index: 1},
		{Content: "The garbage collector runs concurrently with the program.", Type: chunker.TypeHeaderSection, HeaderContext: strp("Runtime"), Index: 2},
	}
}

func openMem(t *testing.T) *Index {
	t.Helper()
	ix, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })
	return ix
}

func TestSearch_FindsChunkWithFields(t *testing.T) {
	ix := openMem(t)
	require.NoError(t, ix.IndexChunks("doc-1", sampleChunks()))

	hits, err := ix.Search("channels", "", 0)
	require.NoError(t, err)
	require.NotEmpty(t, hits)

	top := hits[0]
	assert.Equal(t, "doc-1", top.DocID)
	assert.Equal(t, 1, top.ChunkIndex)
	assert.Equal(t, "bulleted_item", top.ChunkType)
	assert.Equal(t, "Concurrency", top.HeaderContext)
	assert.Contains(t, top.Content, "Channels")
	assert.Greater(t, top.Score, 0.0)
}

func TestSearch_MatchesBreadcrumb(t *testing.T) {
	ix := openMem(t)
	require.NoError(t, ix.IndexChunks("doc-1", sampleChunks()))

	hits, err := ix.Search("runtime", "", 10)
	require.NoError(t, err)
	indexes := map[int]bool{}
	for _, h := range hits {
		indexes[h.ChunkIndex] = true
	}
	assert.True(t, indexes[0], "content match")
	assert.True(t, indexes[2], "breadcrumb match")
}

func TestSearch_FilterByDocument(t *testing.T) {
	ix := openMem(t)
	require.NoError(t, ix.IndexChunks("doc-1", sampleChunks()))
	require.NoError(t, ix.IndexChunks("doc-2", sampleChunks()))

	all, err := ix.Search("goroutines", "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	only, err := ix.Search("goroutines", "doc-2", 10)
	require.NoError(t, err)
	require.Len(t, only, 2)
	for _, h := range only {
		assert.Equal(t, "doc-2", h.DocID)
	}
}

func TestSearch_Limit(t *testing.T) {
	ix := openMem(t)
	require.NoError(t, ix.IndexChunks("doc-1", sampleChunks()))

	hits, err := ix.Search("goroutines", "", 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestDeleteDocument(t *testing.T) {
	ix := openMem(t)
	require.NoError(t, ix.IndexChunks("doc-1", sampleChunks()))
	require.NoError(t, ix.IndexChunks("doc-2", sampleChunks()))

	require.NoError(t, ix.DeleteDocument("doc-1"))

	n, err := ix.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)

	hits, err := ix.Search("goroutines", "doc-1", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	require.NoError(t, ix.DeleteDocument("missing"))
}

func TestIndexChunks_ReplacesSameIndex(t *testing.T) {
	ix := openMem(t)
	require.NoError(t, ix.IndexChunks("doc-1", sampleChunks()))
	require.NoError(t, ix.IndexChunks("doc-1", sampleChunks()[:1]))

	n, err := ix.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)
}

func TestOpen_OnDiskPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunks.bleve")

	ix, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, ix.IndexChunks("doc-1", sampleChunks()))
	require.NoError(t, ix.Close())

	ix, err = Open(path)
	require.NoError(t, err)
	defer ix.Close()

	hits, err := ix.Search("garbage collector", "", 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, 2, hits[0].ChunkIndex)
}

func TestOpenReadOnly_TimesOutWhileWriterHoldsLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunks.bleve")

	writer, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, writer.IndexChunks("doc-1", sampleChunks()))

	start := time.Now()
	_, err = OpenReadOnly(path, 100*time.Millisecond)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	require.NoError(t, writer.Close())

	reader, err := OpenReadOnly(path, 100*time.Millisecond)
	require.NoError(t, err)
	defer reader.Close()

	hits, err := reader.Search("channels", "", 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "doc-1", hits[0].DocID)
}

func TestOpenReadOnly_MissingIndex(t *testing.T) {
	_, err := OpenReadOnly(filepath.Join(t.TempDir(), "absent.bleve"), 100*time.Millisecond)
	require.Error(t, err)

	_, err = OpenReadOnly("", time.Second)
	require.Error(t, err)
}
