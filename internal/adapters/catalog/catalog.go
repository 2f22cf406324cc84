// Package catalog reads the externally owned item catalog.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/okian/seasonboard/internal/domain/model"
	"github.com/okian/seasonboard/pkg/metrics"
)

// ErrInvalidCatalog is returned for catalogs that fail validation.
var ErrInvalidCatalog = errors.New("invalid catalog")

// Catalog lists the items eligible for ranking.
type Catalog interface {
	Items(ctx context.Context) ([]model.Item, error)
}

// Static is a fixed, in-memory catalog.
type Static []model.Item

// Items returns a copy of the items.
func (s Static) Items(context.Context) ([]model.Item, error) {
	return append([]model.Item(nil), s...), nil
}

type document struct {
	Items []model.Item `yaml:"items"`
}

// FileCatalog serves items parsed from a YAML file.
type FileCatalog struct {
	path string

	mu    sync.RWMutex
	items []model.Item
	byID  map[string]int
}

// Compile-time interface check
var _ Catalog = (*FileCatalog)(nil)

// Open parses the catalog at path.
func Open(path string) (*FileCatalog, error) {
	c := &FileCatalog{path: path}
	if err := c.Reload(context.Background()); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the file. The previous items stay in place on failure.
func (c *FileCatalog) Reload(context.Context) error {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("read catalog %s: %w", c.path, err)
	}
	items, err := Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", c.path, err)
	}
	byID := make(map[string]int, len(items))
	for i, it := range items {
		byID[it.ID] = i
	}

	c.mu.Lock()
	c.items, c.byID = items, byID
	c.mu.Unlock()

	metrics.UpdateCatalogItems(len(items))
	return nil
}

// Items returns a copy of the current items.
func (c *FileCatalog) Items(context.Context) ([]model.Item, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]model.Item(nil), c.items...), nil
}

// Item looks up one item by id.
func (c *FileCatalog) Item(id string) (model.Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.byID[id]
	if !ok {
		return model.Item{}, false
	}
	return c.items[i], true
}

// Len returns the number of items.
func (c *FileCatalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Parse decodes and validates a YAML catalog document.
func Parse(raw []byte) ([]model.Item, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}
	seen := make(map[string]struct{}, len(doc.Items))
	out := make([]model.Item, 0, len(doc.Items))
	for i, it := range doc.Items {
		it.ID = strings.TrimSpace(it.ID)
		if it.ID == "" {
			return nil, fmt.Errorf("%w: item %d has no id", ErrInvalidCatalog, i)
		}
		if _, dup := seen[it.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate item id %q", ErrInvalidCatalog, it.ID)
		}
		seen[it.ID] = struct{}{}

		if it.ContentType == "" {
			it.ContentType = model.ContentOther
		}
		ct, err := model.ParseContentType(string(it.ContentType))
		if err != nil {
			return nil, fmt.Errorf("%w: item %q: %w", ErrInvalidCatalog, it.ID, err)
		}
		it.ContentType = ct
		it.Tags = model.NormalizeTags(it.Tags)
		it.CreatedAt = it.CreatedAt.UTC()
		out = append(out, it)
	}
	return out, nil
}
