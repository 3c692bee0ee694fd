package jsonstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/legendryboy69/elyvra/internal/checkout/domain"
)

// Catalog serves the read-only product list seeded from a JSON document.
// The document is parsed once at startup; lookups never touch the disk.
type Catalog struct {
	products []domain.Product
	byID     map[string]domain.Product
}

// productRecord is the on-disk shape. The file name stays internal; the API
// layer never serializes it.
type productRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	File        string `json:"file"`
	Thumbnail   string `json:"thumbnail"`
}

// OpenCatalog reads and validates the product list. A missing or malformed
// document is fatal: the storefront cannot serve without it.
func OpenCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var recs []productRecord
	if err := json.Unmarshal(raw, &recs); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}

	c := &Catalog{byID: make(map[string]domain.Product, len(recs))}
	for _, rec := range recs {
		if rec.ID == "" {
			return nil, fmt.Errorf("catalog %s: product with empty id", path)
		}
		if rec.Price <= 0 {
			return nil, fmt.Errorf("catalog %s: product %s has non-positive price", path, rec.ID)
		}
		if _, dup := c.byID[rec.ID]; dup {
			return nil, fmt.Errorf("catalog %s: duplicate product id %q", path, rec.ID)
		}
		p := domain.Product{
			ID:          rec.ID,
			Title:       rec.Title,
			Description: rec.Description,
			Price:       rec.Price,
			Filename:    rec.File,
			Thumbnail:   rec.Thumbnail,
		}
		c.products = append(c.products, p)
		c.byID[p.ID] = p
	}
	return c, nil
}

// List returns products in document order.
func (c *Catalog) List(ctx context.Context) ([]domain.Product, error) {
	out := make([]domain.Product, len(c.products))
	copy(out, c.products)
	return out, nil
}

func (c *Catalog) Get(ctx context.Context, id string) (domain.Product, error) {
	p, ok := c.byID[id]
	if !ok {
		return domain.Product{}, fmt.Errorf("product %s: %w", id, domain.ErrNotFound)
	}
	return p, nil
}
