// Package local serves log blobs from the filesystem. A bucket is a directory
// and keys are slash-separated paths relative to it.
package local

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/V4T54L/trailwatch/internal/domain"
)

type Source struct {
	root string
}

// NewSource resolves buckets relative to root. An empty root uses bucket paths as given.
func NewSource(root string) *Source {
	return &Source{root: root}
}

func (s *Source) dir(bucket string) string {
	if s.root == "" {
		return bucket
	}
	return filepath.Join(s.root, bucket)
}

func (s *Source) List(ctx context.Context, bucket, prefix string) ([]domain.ObjectInfo, error) {
	base := s.dir(bucket)
	var objects []domain.ObjectInfo
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		objects = append(objects, domain.ObjectInfo{Key: key, Size: info.Size(), LastModified: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list %s/%s: %w", domain.ErrSource, base, prefix, err)
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

func (s *Source) Fetch(_ context.Context, bucket, key string) ([]byte, error) {
	rel := filepath.FromSlash(key)
	if !filepath.IsLocal(rel) {
		return nil, fmt.Errorf("%w: key %q escapes %s", domain.ErrSource, key, bucket)
	}
	data, err := os.ReadFile(filepath.Join(s.dir(bucket), rel))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s/%s: %w", domain.ErrSource, bucket, key, err)
	}
	return data, nil
}
