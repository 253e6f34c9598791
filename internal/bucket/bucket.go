// Package bucket abstracts the document library location: a Google Cloud
// Storage bucket in production, a local directory for development and tests.
package bucket

import (
	"context"
	"strings"

	"github.com/analogtech/cofounder/internal/models"
)

// Store is a flat object store holding the document library.
type Store interface {
	// List returns the objects under the store's prefix, sorted by name.
	List(ctx context.Context) ([]models.Object, error)
	// Download returns an object's contents.
	Download(ctx context.Context, name string) ([]byte, error)
	// Upload writes an object, overwriting any existing one.
	Upload(ctx context.Context, name string, content []byte, contentType string) error
	// Delete removes an object.
	Delete(ctx context.Context, name string) error
	// Exists reports whether an object is present.
	Exists(ctx context.Context, name string) (bool, error)
	Close() error
}

// SearchNames returns the objects whose name case-insensitively contains
// pattern.
func SearchNames(objects []models.Object, pattern string) []models.Object {
	pattern = strings.ToLower(pattern)
	var out []models.Object
	for _, obj := range objects {
		if strings.Contains(strings.ToLower(obj.Name), pattern) {
			out = append(out, obj)
		}
	}
	return out
}
