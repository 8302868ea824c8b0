package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore mirrors artifacts into a directory tree. Unlike the cloud
// stores it copies file content, so the archive survives the source being
// deleted.
type LocalStore struct {
	baseDir string
}

var _ Store = (*LocalStore)(nil)

func NewLocalStore(dir string) (*LocalStore, error) {
	baseDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving archive dir %s: %w", dir, err)
	}
	return &LocalStore{baseDir: baseDir}, nil
}

func (s *LocalStore) EnsureBucket(ctx context.Context) error {
	if err := os.MkdirAll(s.baseDir, 0755); err != nil {
		return fmt.Errorf("creating archive dir %s: %w", s.baseDir, err)
	}
	return nil
}

func (s *LocalStore) keyPath(key string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(key))
}

func (s *LocalStore) Put(ctx context.Context, key string, data io.Reader) error {
	path := s.keyPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", key, err)
	}

	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", key, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, data); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

func (s *LocalStore) List(ctx context.Context, prefix string) ([]Object, error) {
	var objects []Object
	err := filepath.WalkDir(s.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.baseDir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if prefix != "" && !strings.HasPrefix(key, strings.Trim(prefix, "/")+"/") && key != strings.Trim(prefix, "/") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		objects = append(objects, Object{Name: key, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing archive under %s: %w", prefix, err)
	}
	return objects, nil
}

func (s *LocalStore) UploadDir(ctx context.Context, src, prefix string) error {
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
		return fmt.Errorf("mirroring %s to archive: %w", src, err)
	}
	return nil
}

func (s *LocalStore) DownloadDir(ctx context.Context, prefix, dest string, overwrite bool) error {
	if _, err := os.Stat(dest); err == nil {
		if !overwrite {
			return fmt.Errorf("destination %s already exists and overwrite is false", dest)
		}
		if err := os.RemoveAll(dest); err != nil {
			return fmt.Errorf("removing existing destination: %w", err)
		}
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

		src, err := os.Open(s.keyPath(obj.Name))
		if err != nil {
			return fmt.Errorf("opening archived %s: %w", obj.Name, err)
		}

		dst, err := os.Create(target)
		if err != nil {
			src.Close()
			return fmt.Errorf("creating %s: %w", target, err)
		}

		_, err = io.Copy(dst, src)
		src.Close()
		dst.Close()
		if err != nil {
			return fmt.Errorf("copying %s: %w", obj.Name, err)
		}
	}
	return nil
}
