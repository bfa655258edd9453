package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btraceio/heapdump/internal/storage"
	"github.com/btraceio/heapdump/pkg/compression"
)

func buildFakeIndexDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{"objects.idx", "objectmap.idx", "classmap.idx"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("fake-index-data-"+name), 0o644))
	}
	return dir
}

func TestUploader_Upload(t *testing.T) {
	ctx := context.Background()
	indexDir := buildFakeIndexDir(t)

	backend, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	db := setupTestDB(t)
	catalogStore := NewGormStore(db)
	require.NoError(t, catalogStore.Upsert(ctx, &IndexRecord{DumpPath: "/dumps/d.hprof", IndexDir: indexDir}))

	uploader := NewUploader(backend, compression.NewGzipCompressor(compression.LevelDefault), catalogStore)
	key, err := uploader.Upload(ctx, "/dumps/d.hprof", indexDir)
	require.NoError(t, err)
	assert.Contains(t, key, "heap-index/")

	exists, err := backend.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	rec, ok, err := catalogStore.Lookup(ctx, "/dumps/d.hprof")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, key, rec.UploadedKey)
	assert.NotNil(t, rec.UploadedAt)
}

func TestUploader_NoStorage(t *testing.T) {
	uploader := NewUploader(nil, nil, nil)
	_, err := uploader.Upload(context.Background(), "/dumps/e.hprof", buildFakeIndexDir(t))
	assert.Error(t, err)
}

func TestIndexObjectKey_StableAndDistinct(t *testing.T) {
	a := indexObjectKey("/dumps/a.hprof", "gzip")
	b := indexObjectKey("/dumps/a.hprof", "gzip")
	c := indexObjectKey("/dumps/b.hprof", "gzip")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
