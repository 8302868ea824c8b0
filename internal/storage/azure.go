package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// AzureConfig identifies the storage account. With no Key the default
// credential chain is used (managed identity, az login, env).
type AzureConfig struct {
	Account string
	Key     string
}

type AzureStore struct {
	client    *azblob.Client
	container string
	base      string
}

var _ Store = (*AzureStore)(nil)

func NewAzureStore(cfg AzureConfig, container, base string) (*AzureStore, error) {
	if cfg.Account == "" {
		return nil, fmt.Errorf("azblob archive needs a storage account (set AZURE_STORAGE_ACCOUNT)")
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.Account)

	// CI runners sit on shared networks; retry transient blob errors instead
	// of failing the archive step on the first hiccup.
	clientOpts := &azblob.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{MaxRetries: 4},
		},
	}

	var client *azblob.Client
	if cfg.Key != "" {
		cred, err := azblob.NewSharedKeyCredential(cfg.Account, cfg.Key)
		if err != nil {
			return nil, fmt.Errorf("building shared key credential: %w", err)
		}
		client, err = azblob.NewClientWithSharedKeyCredential(serviceURL, cred, clientOpts)
		if err != nil {
			return nil, fmt.Errorf("creating azblob client: %w", err)
		}
	} else {
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("building azure credential: %w", err)
		}
		client, err = azblob.NewClient(serviceURL, cred, clientOpts)
		if err != nil {
			return nil, fmt.Errorf("creating azblob client: %w", err)
		}
	}

	return &AzureStore{client: client, container: container, base: base}, nil
}

func (s *AzureStore) EnsureBucket(ctx context.Context) error {
	_, err := s.client.CreateContainer(ctx, s.container, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			return nil
		}
		return fmt.Errorf("creating container %s: %w", s.container, err)
	}
	slog.Info("created archive container", "container", s.container)
	return nil
}

func (s *AzureStore) Put(ctx context.Context, key string, data io.Reader) error {
	fullKey := joinKey(s.base, key)
	if _, err := s.client.UploadStream(ctx, s.container, fullKey, data, nil); err != nil {
		return fmt.Errorf("uploading azblob://%s/%s: %w", s.container, fullKey, err)
	}
	slog.Debug("uploaded blob", "container", s.container, "blob", fullKey)
	return nil
}

func (s *AzureStore) List(ctx context.Context, prefix string) ([]Object, error) {
	fullPrefix := joinKey(s.base, prefix)
	if fullPrefix != "" {
		fullPrefix += "/"
	}

	var objects []Object
	pager := s.client.NewListBlobsFlatPager(s.container, &azblob.ListBlobsFlatOptions{
		Prefix: &fullPrefix,
	})

	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing azblob://%s/%s: %w", s.container, fullPrefix, err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			var size int64
			if item.Properties != nil && item.Properties.ContentLength != nil {
				size = *item.Properties.ContentLength
			}
			name := strings.TrimPrefix(*item.Name, withSlash(s.base))
			objects = append(objects, Object{Name: name, Size: size})
		}
	}
	return objects, nil
}

func (s *AzureStore) UploadDir(ctx context.Context, src, prefix string) error {
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		return s.Put(ctx, joinKey(prefix, filepath.ToSlash(rel)), f)
	})
	if err != nil {
		return fmt.Errorf("mirroring %s to azblob://%s: %w", src, s.container, err)
	}
	return nil
}

func (s *AzureStore) DownloadDir(ctx context.Context, prefix, dest string, overwrite bool) error {
	if _, err := os.Stat(dest); err == nil {
		if !overwrite {
			return fmt.Errorf("destination %s already exists and overwrite is false", dest)
		}
		if err := os.RemoveAll(dest); err != nil {
			return fmt.Errorf("removing existing destination: %w", err)
		}
	}
	if err := os.MkdirAll(dest, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}

	objects, err := s.List(ctx, prefix)
	if err != nil {
		return err
	}

	cleanPrefix := strings.Trim(prefix, "/")
	for _, obj := range objects {
		rel := strings.TrimPrefix(strings.TrimPrefix(obj.Name, cleanPrefix), "/")
		target := filepath.Join(dest, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("creating directory for %s: %w", rel, err)
		}

		file, err := os.Create(target)
		if err != nil {
			return fmt.Errorf("creating %s: %w", target, err)
		}

		_, err = s.client.DownloadFile(ctx, s.container, joinKey(s.base, obj.Name), file, nil)
		file.Close()
		if err != nil {
			return fmt.Errorf("downloading azblob://%s/%s: %w", s.container, obj.Name, err)
		}
	}
	return nil
}
