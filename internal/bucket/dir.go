package bucket

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/analogtech/cofounder/internal/models"
)

// DirStore serves a local directory as the library. Object names are paths
// relative to the root; nested directories are walked.
type DirStore struct {
	root string
}

// NewDirStore returns a store rooted at dir, which must exist.
func NewDirStore(dir string) (*DirStore, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("library directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("library path %s is not a directory", dir)
	}
	return &DirStore{root: dir}, nil
}

func (s *DirStore) List(_ context.Context) ([]models.Object, error) {
	var objects []models.Object
	err := filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		objects = append(objects, models.Object{
			Name:    filepath.ToSlash(rel),
			Size:    info.Size(),
			Updated: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list library directory: %w", err)
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Name < objects[j].Name })
	return objects, nil
}

func (s *DirStore) Download(_ context.Context, name string) ([]byte, error) {
	content, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(name)))
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", name, err)
	}
	return content, nil
}

func (s *DirStore) Upload(_ context.Context, name string, content []byte, _ string) error {
	path := filepath.Join(s.root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("upload %s: %w", name, err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("upload %s: %w", name, err)
	}
	return nil
}

func (s *DirStore) Delete(_ context.Context, name string) error {
	if err := os.Remove(filepath.Join(s.root, filepath.FromSlash(name))); err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

func (s *DirStore) Exists(_ context.Context, name string) (bool, error) {
	_, err := os.Stat(filepath.Join(s.root, filepath.FromSlash(name)))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", name, err)
}

func (s *DirStore) Close() error { return nil }
