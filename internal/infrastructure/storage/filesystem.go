package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	infraconfig "github.com/quotedesk/renderd/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Ensure FilesystemArtifactSink implements ArtifactSink
var _ ArtifactSink = (*FilesystemArtifactSink)(nil)

// FilesystemArtifactSink stores artifacts on the local file system. The
// locator is the configured base URL joined with the artifact's relative
// path; serving those paths is the reverse proxy's job.
type FilesystemArtifactSink struct {
	basePath string
	baseURL  string
	logger   *zap.Logger
}

// NewFilesystemArtifactSink creates a file-system backed artifact sink
func NewFilesystemArtifactSink(cfg *infraconfig.StorageConfig, logger *zap.Logger) (*FilesystemArtifactSink, error) {
	basePath := "/data/documents"
	baseURL := "/api/v1/documents"
	if cfg != nil {
		if cfg.BasePath != "" {
			basePath = cfg.BasePath
		}
		if cfg.BaseURL != "" {
			baseURL = cfg.BaseURL
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", basePath, err)
	}

	return &FilesystemArtifactSink{
		basePath: basePath,
		baseURL:  strings.TrimRight(baseURL, "/"),
		logger:   logger,
	}, nil
}

// Store writes the artifact under {base}/{year}/{month}/{key}
func (s *FilesystemArtifactSink) Store(ctx context.Context, req *StoreRequest) (*StoreResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if err := checkKey(req.Key); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	relPath := filepath.Join(
		fmt.Sprintf("%04d", now.Year()),
		fmt.Sprintf("%02d", now.Month()),
		req.Key,
	)
	fullPath := filepath.Join(s.basePath, relPath)

	// The cleaned path must stay inside the storage root.
	if !strings.HasPrefix(fullPath, filepath.Clean(s.basePath)+string(os.PathSeparator)) {
		return nil, ErrUnsafeKey
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	if err := writeFileAtomic(fullPath, req.Data); err != nil {
		return nil, fmt.Errorf("failed to write artifact %s: %w", relPath, err)
	}

	s.logger.Debug("artifact stored",
		zap.String("path", fullPath),
		zap.Int("bytes", len(req.Data)))

	return &StoreResult{
		Key:     relPath,
		Locator: s.baseURL + "/" + filepath.ToSlash(relPath),
		Size:    int64(len(req.Data)),
	}, nil
}

// Ready checks that the storage root exists and is a writable directory
func (s *FilesystemArtifactSink) Ready(ctx context.Context) error {
	info, err := os.Stat(s.basePath)
	if err != nil {
		return fmt.Errorf("storage directory %s not available: %w", s.basePath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("storage path %s is not a directory", s.basePath)
	}
	return nil
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place, so a crash mid-write never leaves a truncated
// artifact under the final path.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// checkKey rejects keys that could escape the storage root
func checkKey(key string) error {
	if strings.Contains(key, "..") || strings.ContainsAny(key, "/\\") {
		return ErrUnsafeKey
	}
	return nil
}
