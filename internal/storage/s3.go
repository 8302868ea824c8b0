package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config carries explicit S3 settings. Zero values fall back to the SDK's
// own environment and shared-config discovery.
type S3Config struct {
	Endpoint        string // custom endpoint, for MinIO and compatibles
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

type S3Store struct {
	client     *s3.Client
	uploader   *manager.Uploader
	downloader *manager.Downloader
	bucket     string
	base       string
}

var _ Store = (*S3Store)(nil)

func NewS3Store(ctx context.Context, cfg S3Config, bucket, base string) (*S3Store, error) {
	client, err := initializeS3Client(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing s3 client: %w", err)
	}

	return &S3Store{
		client:     client,
		uploader:   manager.NewUploader(client),
		downloader: manager.NewDownloader(client),
		bucket:     bucket,
		base:       base,
	}, nil
}

func createS3Config(ctx context.Context, region string, creds aws.CredentialsProvider) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{}

	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if creds != nil {
		opts = append(opts, awsconfig.WithCredentialsProvider(creds))
	}

	return awsconfig.LoadDefaultConfig(ctx, opts...)
}

func initializeS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	var creds aws.CredentialsProvider
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		creds = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}

	awsCfg, err := createS3Config(ctx, cfg.Region, creds)
	if err != nil {
		return nil, fmt.Errorf("creating aws config: %w", err)
	}

	// If no credentials can be found in the environment or shared config,
	// fall back to anonymous ones so public buckets still work.
	if _, err := awsCfg.Credentials.Retrieve(ctx); err != nil {
		awsCfg, err = createS3Config(ctx, cfg.Region, aws.AnonymousCredentials{})
		if err != nil {
			return nil, fmt.Errorf("creating aws config with anonymous credentials: %w", err)
		}
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// MinIO does not serve virtual-hosted bucket URLs.
			o.UsePathStyle = true
		}
	})

	return client, nil
}

func (s *S3Store) EnsureBucket(ctx context.Context) error {
	_, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		var existErr *types.BucketAlreadyExists
		var ownedErr *types.BucketAlreadyOwnedByYou
		if errors.As(err, &existErr) || errors.As(err, &ownedErr) {
			return nil
		}
		return fmt.Errorf("creating bucket %s: %w", s.bucket, err)
	}
	slog.Info("created archive bucket", "bucket", s.bucket)
	return nil
}

func (s *S3Store) Put(ctx context.Context, key string, data io.Reader) error {
	fullKey := joinKey(s.base, key)
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(fullKey),
		Body:   data,
	})
	if err != nil {
		return fmt.Errorf("uploading s3://%s/%s: %w", s.bucket, fullKey, err)
	}
	slog.Debug("uploaded object", "bucket", s.bucket, "key", fullKey)
	return nil
}

func (s *S3Store) List(ctx context.Context, prefix string) ([]Object, error) {
	fullPrefix := joinKey(s.base, prefix)
	if fullPrefix != "" {
		fullPrefix += "/"
	}

	var objects []Object
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(fullPrefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing s3://%s/%s: %w", s.bucket, fullPrefix, err)
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), withSlash(s.base))
			objects = append(objects, Object{Name: name, Size: aws.ToInt64(obj.Size)})
		}
	}
	return objects, nil
}

func (s *S3Store) UploadDir(ctx context.Context, src, prefix string) error {
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
		return fmt.Errorf("mirroring %s to s3://%s: %w", src, s.bucket, err)
	}
	return nil
}

func (s *S3Store) DownloadDir(ctx context.Context, prefix, dest string, overwrite bool) error {
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
		if err := s.downloadObject(ctx, joinKey(s.base, obj.Name), target); err != nil {
			return err
		}
	}
	return nil
}

func (s *S3Store) downloadObject(ctx context.Context, key, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", filename, err)
	}
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filename, err)
	}
	defer file.Close()

	_, err = s.downloader.Download(ctx, file, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("downloading s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// withSlash returns base with a trailing slash, or "" when base is empty.
func withSlash(base string) string {
	if base == "" {
		return ""
	}
	return strings.Trim(base, "/") + "/"
}
