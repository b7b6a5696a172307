package factory

import (
	"fmt"
	"os"
	"strings"

	apperrors "go-crop-extractor/internal/errors"
	"go-crop-extractor/internal/storage"
)

// StorageType represents different types of storage backends
type StorageType string

const (
	// AzureStorage for Azure blob storage
	AzureStorage StorageType = "azure"
	// LocalStorage for a directory on the local file system
	LocalStorage StorageType = "local"
)

// localPrefix marks connection strings that point at a local directory
const localPrefix = "file://"

// StorageFactory creates blob stores from the name of the environment
// variable holding their connection string
type StorageFactory interface {
	CreateStorage(connectionEnv string) (storage.BlobStore, error)
}

// storageFactory implements StorageFactory
type storageFactory struct {
	lookupEnv func(string) string
}

// NewStorageFactory creates a factory reading the process environment
func NewStorageFactory() StorageFactory {
	return &storageFactory{lookupEnv: os.Getenv}
}

// NewStorageFactoryWithLookup creates a factory with a custom variable lookup
func NewStorageFactoryWithLookup(lookup func(string) string) StorageFactory {
	return &storageFactory{lookupEnv: lookup}
}

// CreateStorage resolves connectionEnv and builds the matching store
func (f *storageFactory) CreateStorage(connectionEnv string) (storage.BlobStore, error) {
	connectionString := strings.TrimSpace(f.lookupEnv(connectionEnv))
	if connectionString == "" {
		return nil, apperrors.NewConfigurationError(fmt.Sprintf("%s is not set", connectionEnv), nil)
	}

	switch DetectStorageType(connectionString) {
	case LocalStorage:
		store, err := storage.NewFilesystemStorage(strings.TrimPrefix(connectionString, localPrefix))
		if err != nil {
			return nil, apperrors.NewStorageError("failed to open local storage", err)
		}
		return store, nil
	default:
		store, err := storage.NewAzureStorage(connectionString)
		if err != nil {
			return nil, apperrors.NewConfigurationError(fmt.Sprintf("%s is not a valid connection string", connectionEnv), err)
		}
		return store, nil
	}
}

// DetectStorageType picks the backend for a connection string
func DetectStorageType(connectionString string) StorageType {
	if strings.HasPrefix(connectionString, localPrefix) {
		return LocalStorage
	}
	return AzureStorage
}
