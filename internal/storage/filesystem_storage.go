package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FilesystemStorage keeps each container as a directory under baseDir.
// It backs local runs where no storage account is available.
type FilesystemStorage struct {
	baseDir string
}

// NewFilesystemStorage creates a filesystem blob store rooted at baseDir
func NewFilesystemStorage(baseDir string) (*FilesystemStorage, error) {
	// Ensure base directory exists
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FilesystemStorage{
		baseDir: baseDir,
	}, nil
}

func (fs *FilesystemStorage) Download(ctx context.Context, container, blobPath string) ([]byte, error) {
	path, err := fs.resolve(container, blobPath)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s/%s: %w", container, blobPath, ErrBlobNotFound)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

func (fs *FilesystemStorage) Upload(ctx context.Context, container, blobPath string, data []byte, contentType string) error {
	path, err := fs.resolve(container, blobPath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func (fs *FilesystemStorage) resolve(container, blobPath string) (string, error) {
	base := filepath.Clean(fs.baseDir)
	path := filepath.Join(base, container, filepath.FromSlash(blobPath))

	// Security: prevent directory traversal
	if container == "" || !strings.HasPrefix(path, base+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid blob path: %s/%s", container, blobPath)
	}
	return path, nil
}
