package storage

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// File is an opaque downloaded blob.
type File struct {
	Buffer      []byte
	Size        int64
	ContentType string
}

// FileStore resolves an ImportBatch file key to its contents. Upload and
// signed-URL generation live elsewhere; the queue only ever downloads.
type FileStore interface {
	Download(ctx context.Context, fileKey string) (*File, error)
}

// LocalStore serves files from a directory on disk, keyed by relative path.
type LocalStore struct {
	root string
	log  *slog.Logger
}

func NewLocalStore(root string, log *slog.Logger) *LocalStore {
	if log == nil {
		log = slog.Default()
	}
	return &LocalStore{root: root, log: log}
}

func (s *LocalStore) Download(ctx context.Context, fileKey string) (*File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(s.root, fileKey)
	if !strings.HasPrefix(path, filepath.Clean(s.root)+string(os.PathSeparator)) {
		return nil, fmt.Errorf("file key %q escapes storage root", fileKey)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		s.log.Error("storage.download_failed", "file_key", fileKey, "err", err)
		return nil, fmt.Errorf("download import file %q: %w", fileKey, err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	s.log.Info("storage.downloaded", "file_key", fileKey, "size", len(b))
	return &File{Buffer: b, Size: int64(len(b)), ContentType: contentType}, nil
}
