package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

type azureStorage struct {
	client *azblob.Client
}

// NewAzureStorage creates a blob store from a storage account connection string
func NewAzureStorage(connectionString string) (BlobStore, error) {
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid connection string: %w", err)
	}

	return &azureStorage{client: client}, nil
}

func (s *azureStorage) Download(ctx context.Context, container, blobPath string) ([]byte, error) {
	downloadResponse, err := s.client.DownloadStream(ctx, container, blobPath, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, fmt.Errorf("%s/%s: %w", container, blobPath, ErrBlobNotFound)
		}
		return nil, fmt.Errorf("download failed: %w", err)
	}

	retryReader := downloadResponse.Body
	defer retryReader.Close()

	data, err := io.ReadAll(retryReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob body: %w", err)
	}
	return data, nil
}

func (s *azureStorage) Upload(ctx context.Context, container, blobPath string, data []byte, contentType string) error {
	// Block blob uploads overwrite by default
	_, err := s.client.UploadBuffer(ctx, container, blobPath, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType: to.Ptr(contentType),
		},
	})
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	return nil
}
