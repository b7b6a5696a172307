// Package storagetest provides an in-memory blob store for tests.
package storagetest

import (
	"context"
	"fmt"
	"sync"

	apperrors "go-crop-extractor/internal/errors"
	"go-crop-extractor/internal/storage"
)

// Upload records one Upload call
type Upload struct {
	Container   string
	Path        string
	ContentType string
	Size        int
}

// MemoryStorage is a goroutine-safe BlobStore kept in memory
type MemoryStorage struct {
	mu        sync.Mutex
	blobs     map[string][]byte
	uploads   []Upload
	UploadErr error
}

// NewMemoryStorage creates an empty store
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{blobs: make(map[string][]byte)}
}

// Put stores a blob without recording an upload
func (m *MemoryStorage) Put(container, blobPath string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key(container, blobPath)] = data
}

// Get returns a stored blob
func (m *MemoryStorage) Get(container, blobPath string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[key(container, blobPath)]
	return data, ok
}

// Uploads returns the recorded Upload calls in order
func (m *MemoryStorage) Uploads() []Upload {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Upload, len(m.uploads))
	copy(out, m.uploads)
	return out
}

func (m *MemoryStorage) Download(ctx context.Context, container, blobPath string) ([]byte, error) {
	data, ok := m.Get(container, blobPath)
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", container, blobPath, storage.ErrBlobNotFound)
	}
	return data, nil
}

func (m *MemoryStorage) Upload(ctx context.Context, container, blobPath string, data []byte, contentType string) error {
	if m.UploadErr != nil {
		return m.UploadErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key(container, blobPath)] = data
	m.uploads = append(m.uploads, Upload{
		Container:   container,
		Path:        blobPath,
		ContentType: contentType,
		Size:        len(data),
	})
	return nil
}

// Factory hands out stores by connection variable name, as the storage
// factory does with real connection strings
type Factory struct {
	Stores map[string]*MemoryStorage
	Err    error
}

// CreateStorage returns the store registered for connectionEnv
func (f *Factory) CreateStorage(connectionEnv string) (storage.BlobStore, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	store, ok := f.Stores[connectionEnv]
	if !ok {
		return nil, apperrors.NewConfigurationError(fmt.Sprintf("%s is not set", connectionEnv), nil)
	}
	return store, nil
}

func key(container, blobPath string) string {
	return container + "/" + blobPath
}
