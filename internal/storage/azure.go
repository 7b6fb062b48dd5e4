package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/sirupsen/logrus"
)

// AzureArchive stores ingested mention payloads in Azure Blob Storage,
// keyed by ingestion date so a day's raw intake can be replayed or audited.
type AzureArchive struct {
	client        *azblob.Client
	containerName string
}

// Ensure AzureArchive implements ArchiveInterface
var _ ArchiveInterface = (*AzureArchive)(nil)

// NewAzureArchive creates an archive backed by the given storage account,
// authenticating with managed identity.
func NewAzureArchive(accountName, containerName string) (*AzureArchive, error) {
	if accountName == "" {
		return nil, fmt.Errorf("storage account name is required")
	}

	credential, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", accountName)
	client, err := azblob.NewClient(serviceURL, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure blob client: %w", err)
	}

	archive := &AzureArchive{client: client, containerName: containerName}

	ctx := context.Background()
	if _, err := client.CreateContainer(ctx, containerName, nil); err != nil {
		if !strings.Contains(err.Error(), "ContainerAlreadyExists") {
			return nil, fmt.Errorf("failed to create container: %w", err)
		}
		logrus.Debugf("Archive container %s already exists", containerName)
	}

	return archive, nil
}

// BlobName builds the archive key for a payload ingested now.
func BlobName(fileName string) string {
	return fmt.Sprintf("mentions/%s/%s", time.Now().UTC().Format("2006-01-02"), fileName)
}

// Store uploads a payload under the given name.
func (a *AzureArchive) Store(name string, data []byte) error {
	_, err := a.client.UploadBuffer(context.Background(), a.containerName, name, data, nil)
	if err != nil {
		return fmt.Errorf("failed to archive %s: %w", name, err)
	}
	logrus.Debugf("Archived %s", name)
	return nil
}

// Retrieve downloads an archived payload.
func (a *AzureArchive) Retrieve(name string) ([]byte, error) {
	resp, err := a.client.DownloadStream(context.Background(), a.containerName, name, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read archived payload: %w", err)
	}
	return data, nil
}

// List returns archived payload names under a prefix.
func (a *AzureArchive) List(prefix string) ([]string, error) {
	var names []string
	pager := a.client.NewListBlobsFlatPager(a.containerName, &azblob.ListBlobsFlatOptions{
		Prefix: &prefix,
	})
	for pager.More() {
		page, err := pager.NextPage(context.Background())
		if err != nil {
			return nil, fmt.Errorf("failed to list archive: %w", err)
		}
		for _, blob := range page.Segment.BlobItems {
			if blob.Name != nil {
				names = append(names, *blob.Name)
			}
		}
	}
	return names, nil
}
