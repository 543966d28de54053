package dataset

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tabletalk/tabletalk/internal/storage"
)

// Source fetches a dataset file by name.
type Source interface {
	Fetch(ctx context.Context, name string) (io.ReadCloser, error)
}

type DirSource struct {
	Dir string
}

func (s DirSource) Fetch(_ context.Context, name string) (io.ReadCloser, error) {
	file, err := os.Open(filepath.Join(s.Dir, name))
	if err != nil {
		return nil, fmt.Errorf("open dataset file %q: %w", name, err)
	}
	return file, nil
}

// ObjectSource fetches dataset files from a remote object store.
type ObjectSource struct {
	Store storage.ObjectStore
}

func (s ObjectSource) Fetch(ctx context.Context, name string) (io.ReadCloser, error) {
	reader, err := s.Store.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("fetch dataset object %q: %w", name, err)
	}
	return reader, nil
}
