package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/avscribe/av-engine/internal/media"
)

// LocalSource lists media files from a local directory.
type LocalSource struct {
	dir string
}

// NewLocalSource creates a source over the given directory.
func NewLocalSource(dir string) *LocalSource {
	return &LocalSource{dir: dir}
}

func (s *LocalSource) List(ctx context.Context) ([]MediaFile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read media dir %s: %w", s.dir, err)
	}

	var files []MediaFile
	for _, e := range entries {
		if e.IsDir() || !media.Supported(e.Name()) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, MediaFile{
			Key:          filepath.Join(s.dir, e.Name()),
			Name:         e.Name(),
			Size:         fi.Size(),
			LastModified: fi.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Key < files[j].Key })
	return files, nil
}

func (s *LocalSource) Fetch(ctx context.Context, key, scratchDir string) (string, func(), error) {
	if _, err := os.Stat(key); err != nil {
		return "", func() {}, fmt.Errorf("fetch %s: %w", key, err)
	}
	return key, func() {}, nil
}

func (s *LocalSource) Type() string { return "local" }
