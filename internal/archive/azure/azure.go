// Package azure implements the Azure Blob Storage archive backend,
// authenticating with a shared account key.
package azure

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"

	"github.com/medcore-hms/medcore/internal/archive"
	"github.com/medcore-hms/medcore/internal/config"
	"github.com/medcore-hms/medcore/pkg/checksum"
)

func init() {
	archive.Register("azure", func(cfg *config.ArchiveConfig) (archive.Backend, error) {
		return New(&cfg.Azure)
	})
}

// AzureBackend stores archive objects in an Azure Blob Storage container.
type AzureBackend struct {
	client        *azblob.Client
	containerName string
}

// New creates an Azure Blob Storage archive backend.
func New(cfg *config.AzureArchiveConfig) (*AzureBackend, error) {
	if cfg.AccountName == "" {
		return nil, fmt.Errorf("azure storage account name is required")
	}
	if cfg.AccountKey == "" {
		return nil, fmt.Errorf("azure storage account key is required")
	}
	if cfg.ContainerName == "" {
		return nil, fmt.Errorf("azure storage container name is required")
	}

	credential, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AccountName)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure Blob client: %w", err)
	}

	return &AzureBackend{
		client:        client,
		containerName: cfg.ContainerName,
	}, nil
}

func (b *AzureBackend) containerClient() *container.Client {
	return b.client.ServiceClient().NewContainerClient(b.containerName)
}

// Put stores an object with its checksum recorded in blob metadata.
func (b *AzureBackend) Put(ctx context.Context, key string, reader io.Reader) (*archive.PutResult, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive data: %w", err)
	}
	sum, err := checksum.CalculateSHA256(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	blobClient := b.containerClient().NewBlockBlobClient(key)
	_, err = blobClient.Upload(ctx, streaming.NopCloser(bytes.NewReader(data)), &blockblob.UploadOptions{
		Metadata: map[string]*string{
			"sha256": &sum,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to Azure Blob: %w", err)
	}

	return &archive.PutResult{
		Key:      key,
		Size:     int64(len(data)),
		Checksum: sum,
	}, nil
}

// Open retrieves a stored object.
func (b *AzureBackend) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := b.containerClient().NewBlobClient(key).DownloadStream(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to download from Azure Blob: %w", err)
	}
	return resp.Body, nil
}

// Exists reports whether a blob exists under key.
func (b *AzureBackend) Exists(ctx context.Context, key string) (bool, error) {
	_, err := b.containerClient().NewBlobClient(key).GetProperties(ctx, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check blob existence: %w", err)
	}
	return true, nil
}

// List returns blobs under prefix.
func (b *AzureBackend) List(ctx context.Context, prefix string) ([]archive.ObjectInfo, error) {
	var objects []archive.ObjectInfo
	pager := b.containerClient().NewListBlobsFlatPager(&container.ListBlobsFlatOptions{
		Prefix: &prefix,
	})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list Azure blobs: %w", err)
		}
		for _, item := range page.Segment.BlobItems {
			info := archive.ObjectInfo{}
			if item.Name != nil {
				info.Key = *item.Name
			}
			if item.Properties != nil {
				if item.Properties.ContentLength != nil {
					info.Size = *item.Properties.ContentLength
				}
				if item.Properties.LastModified != nil {
					info.LastModified = *item.Properties.LastModified
				}
			}
			objects = append(objects, info)
		}
	}
	return objects, nil
}

// Remove deletes a blob.
func (b *AzureBackend) Remove(ctx context.Context, key string) error {
	_, err := b.containerClient().NewBlobClient(key).Delete(ctx, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil
		}
		return fmt.Errorf("failed to delete from Azure Blob: %w", err)
	}
	return nil
}
