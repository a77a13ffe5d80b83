package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	infraconfig "github.com/quotedesk/renderd/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSink(t *testing.T) *FilesystemArtifactSink {
	t.Helper()
	sink, err := NewFilesystemArtifactSink(&infraconfig.StorageConfig{
		BasePath: t.TempDir(),
		BaseURL:  "https://docs.example.com/api/v1/documents/",
	}, nil)
	require.NoError(t, err)
	return sink
}

func TestFilesystemSink_Store(t *testing.T) {
	sink := newTestSink(t)

	result, err := sink.Store(context.Background(), &StoreRequest{
		Key:         "quote-Q-1001-a1b2.pdf",
		Data:        []byte("%PDF-1.7 content"),
		ContentType: "application/pdf",
	})
	require.NoError(t, err)

	now := time.Now().UTC()
	wantRel := filepath.Join(
		fmt.Sprintf("%04d", now.Year()),
		fmt.Sprintf("%02d", now.Month()),
		"quote-Q-1001-a1b2.pdf",
	)
	assert.Equal(t, wantRel, result.Key)
	assert.Equal(t, int64(16), result.Size)
	// Trailing slash on the base URL must not double up
	assert.Equal(t, "https://docs.example.com/api/v1/documents/"+filepath.ToSlash(wantRel), result.Locator)

	stored, err := os.ReadFile(filepath.Join(sink.basePath, wantRel))
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7 content"), stored)
}

func TestFilesystemSink_StoreLeavesNoTempFiles(t *testing.T) {
	sink := newTestSink(t)

	result, err := sink.Store(context.Background(), &StoreRequest{
		Key:         "quote-Q-1002-c3d4.pdf",
		Data:        []byte("%PDF-1.7 content"),
		ContentType: "application/pdf",
	})
	require.NoError(t, err)

	// The write goes through a temp file that is renamed into place; only
	// the final artifact may remain in the directory afterwards.
	dir := filepath.Dir(filepath.Join(sink.basePath, result.Key))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "quote-Q-1002-c3d4.pdf", entries[0].Name())
}

func TestFilesystemSink_StoreOverwritesExistingKey(t *testing.T) {
	sink := newTestSink(t)
	ctx := context.Background()

	req := &StoreRequest{
		Key:         "quote-Q-1003-e5f6.pdf",
		Data:        []byte("first version"),
		ContentType: "application/pdf",
	}
	_, err := sink.Store(ctx, req)
	require.NoError(t, err)

	req.Data = []byte("second version")
	result, err := sink.Store(ctx, req)
	require.NoError(t, err)

	stored, err := os.ReadFile(filepath.Join(sink.basePath, result.Key))
	require.NoError(t, err)
	assert.Equal(t, []byte("second version"), stored)
}

func TestFilesystemSink_StoreValidation(t *testing.T) {
	sink := newTestSink(t)
	ctx := context.Background()

	t.Run("empty key", func(t *testing.T) {
		_, err := sink.Store(ctx, &StoreRequest{Data: []byte("x")})
		assert.ErrorIs(t, err, ErrEmptyKey)
	})

	t.Run("nil request", func(t *testing.T) {
		_, err := sink.Store(ctx, nil)
		assert.ErrorIs(t, err, ErrEmptyKey)
	})

	t.Run("empty data", func(t *testing.T) {
		_, err := sink.Store(ctx, &StoreRequest{Key: "a.pdf"})
		assert.ErrorIs(t, err, ErrEmptyData)
	})

	t.Run("path traversal", func(t *testing.T) {
		for _, key := range []string{"../escape.pdf", "a/../../b.pdf", "dir/inner.pdf", `win\sep.pdf`} {
			_, err := sink.Store(ctx, &StoreRequest{Key: key, Data: []byte("x")})
			assert.ErrorIs(t, err, ErrUnsafeKey, "key %q", key)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := sink.Store(cancelled, &StoreRequest{Key: "a.pdf", Data: []byte("x")})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestFilesystemSink_DistinctKeysDistinctLocators(t *testing.T) {
	sink := newTestSink(t)
	ctx := context.Background()

	first, err := sink.Store(ctx, &StoreRequest{Key: "quote-1-aaaa.pdf", Data: []byte("one")})
	require.NoError(t, err)
	second, err := sink.Store(ctx, &StoreRequest{Key: "quote-1-bbbb.pdf", Data: []byte("two")})
	require.NoError(t, err)

	assert.NotEqual(t, first.Locator, second.Locator)
}

func TestFilesystemSink_Ready(t *testing.T) {
	sink := newTestSink(t)
	assert.NoError(t, sink.Ready(context.Background()))

	require.NoError(t, os.RemoveAll(sink.basePath))
	assert.Error(t, sink.Ready(context.Background()))
}

func TestNewFilesystemArtifactSink_Defaults(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFilesystemArtifactSink(&infraconfig.StorageConfig{BasePath: dir}, nil)
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/documents", sink.baseURL)
}
