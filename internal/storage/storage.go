// Package storage mirrors run artifacts to an archive remote. The remote is
// named by URL: s3://bucket/base, azblob://container/base, or file:///path
// for a local mirror. The bucket or container is bound when the store is
// opened; keys are slash-separated paths under the URL's base.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
)

// Object is one stored artifact.
type Object struct {
	Name string // key relative to the store's base
	Size int64
}

// Store is the surface the archive step needs.
type Store interface {
	// EnsureBucket creates the bucket/container when it does not exist yet.
	EnsureBucket(ctx context.Context) error

	// Put writes one object.
	Put(ctx context.Context, key string, data io.Reader) error

	// List returns the objects under prefix.
	List(ctx context.Context, prefix string) ([]Object, error)

	// UploadDir mirrors a local directory tree to prefix.
	UploadDir(ctx context.Context, src, prefix string) error

	// DownloadDir mirrors the objects under prefix into dest. An existing
	// dest is replaced only when overwrite is set.
	DownloadDir(ctx context.Context, prefix, dest string, overwrite bool) error
}

// Options carries the credentials the cloud stores need.
type Options struct {
	S3    S3Config
	Azure AzureConfig
}

// Location is a parsed archive URL.
type Location struct {
	Scheme string // "s3", "azblob" or "file"
	Bucket string // bucket or container; empty for file
	Base   string // key prefix, or the directory for file
}

// ParseURL splits an archive URL into its scheme, bucket and base prefix.
// A path with no scheme is treated as a local directory.
func ParseURL(raw string) (Location, error) {
	if raw == "" {
		return Location{}, fmt.Errorf("empty archive URL")
	}

	if !strings.Contains(raw, "://") {
		return Location{Scheme: "file", Base: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("parsing archive URL %q: %w", raw, err)
	}

	switch u.Scheme {
	case "file":
		// file:///var/archive → /var/archive; file://host is not supported.
		if u.Host != "" && u.Host != "localhost" {
			return Location{}, fmt.Errorf("archive URL %q: file URLs cannot name a host", raw)
		}
		return Location{Scheme: "file", Base: u.Path}, nil
	case "s3", "azblob":
		if u.Host == "" {
			return Location{}, fmt.Errorf("archive URL %q: missing bucket", raw)
		}
		return Location{
			Scheme: u.Scheme,
			Bucket: u.Host,
			Base:   strings.Trim(u.Path, "/"),
		}, nil
	default:
		return Location{}, fmt.Errorf("archive URL %q: unsupported scheme %q (want s3, azblob or file)", raw, u.Scheme)
	}
}

// Open builds the store for an archive URL.
func Open(ctx context.Context, raw string, opts Options) (Store, error) {
	loc, err := ParseURL(raw)
	if err != nil {
		return nil, err
	}

	switch loc.Scheme {
	case "file":
		return NewLocalStore(loc.Base)
	case "s3":
		return NewS3Store(ctx, opts.S3, loc.Bucket, loc.Base)
	case "azblob":
		return NewAzureStore(opts.Azure, loc.Bucket, loc.Base)
	default:
		return nil, fmt.Errorf("unsupported archive scheme %q", loc.Scheme)
	}
}

// joinKey joins key segments with slashes, dropping empty parts.
func joinKey(parts ...string) string {
	var kept []string
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			kept = append(kept, p)
		}
	}
	return path.Join(kept...)
}
