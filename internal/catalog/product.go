package catalog

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Product is a single sellable item identified by its scan code.
type Product struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
}

var (
	errEmptyID       = errors.New("product id is empty")
	errNegativePrice = errors.New("product price is negative")
)

// Validate checks the invariants every catalog entry must hold.
func (p Product) Validate() error {
	if p.ID == "" {
		return errEmptyID
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("%s: %w", p.ID, errNegativePrice)
	}
	return nil
}
