package local

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/V4T54L/trailwatch/internal/domain"
)

// Files serves an explicit list of files. Keys are the paths as given; bucket
// and prefix are ignored.
type Files struct {
	paths []string
}

func NewFiles(paths ...string) *Files {
	return &Files{paths: slices.Clone(paths)}
}

func (f *Files) List(_ context.Context, _, _ string) ([]domain.ObjectInfo, error) {
	objects := make([]domain.ObjectInfo, 0, len(f.paths))
	for _, p := range f.paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("%w: stat %s: %w", domain.ErrSource, p, err)
		}
		objects = append(objects, domain.ObjectInfo{Key: p, Size: info.Size(), LastModified: info.ModTime()})
	}
	return objects, nil
}

func (f *Files) Fetch(_ context.Context, _, key string) ([]byte, error) {
	if !slices.Contains(f.paths, key) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, key)
	}
	data, err := os.ReadFile(key)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", domain.ErrSource, key, err)
	}
	return data, nil
}
