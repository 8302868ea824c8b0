package hub

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the file-read concurrency for folder uploads.
const DefaultWorkers = 4

// UploadOptions tunes a folder upload.
type UploadOptions struct {
	Revision string // destination branch, DefaultRevision when empty
	Message  string // commit message
	Workers  int    // concurrent file readers, DefaultWorkers when <= 0
	Progress bool   // render a progress bar on stderr
}

// UploadFolder mirrors a local directory into the repo under destPrefix
// ("" for the repo root) as one commit. Files are read concurrently; the
// commit itself is atomic. Returns the number of files uploaded.
func (c *Client) UploadFolder(ctx context.Context, repo Repo, localDir, destPrefix string, opts UploadOptions) (int, error) {
	if err := repo.validate(); err != nil {
		return 0, err
	}

	var rels []string
	err := filepath.WalkDir(localDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(localDir, p)
		if err != nil {
			return err
		}
		rels = append(rels, rel)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walking %s: %w", localDir, err)
	}
	if len(rels) == 0 {
		return 0, nil
	}
	sort.Strings(rels)

	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	var bar *progressbar.ProgressBar
	if opts.Progress {
		bar = progressbar.NewOptions(len(rels),
			progressbar.OptionSetDescription("uploading "+repo.ID),
			progressbar.OptionSetWidth(30),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionClearOnFinish(),
		)
	}

	files := make([]CommitFile, len(rels))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	for i, rel := range rels {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}

			data, err := os.ReadFile(filepath.Join(localDir, rel))
			if err != nil {
				return fmt.Errorf("reading %s: %w", rel, err)
			}

			files[i] = CommitFile{
				Path:    joinRepoPath(destPrefix, filepath.ToSlash(rel)),
				Content: data,
			}
			if bar != nil {
				_ = bar.Add(1)
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return 0, err
	}

	if err := c.CommitFiles(ctx, repo, opts.Revision, opts.Message, files); err != nil {
		return 0, err
	}
	return len(files), nil
}

// joinRepoPath joins repo path segments, treating "/" and "" both as the
// repo root.
func joinRepoPath(prefix, rel string) string {
	prefix = path.Clean("/" + prefix)
	if prefix == "/" || prefix == "." {
		return rel
	}
	return path.Join(prefix[1:], rel)
}
