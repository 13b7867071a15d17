package catalog

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNotFound is matched by every lookup miss.
var ErrNotFound = errors.New("not found")

// NotFoundError reports a scan code that has no catalog entry.
type NotFoundError struct {
	Code string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("product code %s not found in catalog", e.Code)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Catalog is a read-only mapping from scan code to product.
type Catalog struct {
	products map[string]Product
	codes    []string
}

// New builds a catalog, rejecting invalid or duplicate entries.
func New(products []Product) (*Catalog, error) {
	c := &Catalog{
		products: make(map[string]Product, len(products)),
		codes:    make([]string, 0, len(products)),
	}
	for _, p := range products {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("invalid product: %w", err)
		}
		if _, exists := c.products[p.ID]; exists {
			return nil, fmt.Errorf("duplicate product code %q", p.ID)
		}
		c.products[p.ID] = p
		c.codes = append(c.codes, p.ID)
	}
	sort.Strings(c.codes)
	return c, nil
}

// Resolve looks a code up by exact match. The code is not trimmed or case folded.
func (c *Catalog) Resolve(code string) (Product, error) {
	if c != nil {
		if p, ok := c.products[code]; ok {
			return p, nil
		}
	}
	return Product{}, &NotFoundError{Code: code}
}

// Products returns every entry ordered by code.
func (c *Catalog) Products() []Product {
	if c == nil {
		return nil
	}
	out := make([]Product, 0, len(c.codes))
	for _, code := range c.codes {
		out = append(out, c.products[code])
	}
	return out
}

// Codes returns the known scan codes in ascending order.
func (c *Catalog) Codes() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.codes))
	copy(out, c.codes)
	return out
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.codes)
}
