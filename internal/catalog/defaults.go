package catalog

import "github.com/shopspring/decimal"

// DefaultProducts is the demo catalog used when no other source is configured.
func DefaultProducts() []Product {
	return []Product{
		{ID: "12345", Name: "Organic Whole Milk", Price: decimal.RequireFromString("4.50"), Category: "Dairy"},
		{ID: "67890", Name: "Sourdough Bread", Price: decimal.RequireFromString("3.25"), Category: "Bakery"},
		{ID: "11111", Name: "Greek Yogurt", Price: decimal.RequireFromString("1.50"), Category: "Dairy"},
		{ID: "22222", Name: "Fresh Strawberries", Price: decimal.RequireFromString("5.99"), Category: "Produce"},
		{ID: "33333", Name: "Sparkling Water", Price: decimal.RequireFromString("1.25"), Category: "Beverages"},
		{ID: "44444", Name: "Roasted Almonds", Price: decimal.RequireFromString("7.45"), Category: "Snacks"},
	}
}

// Default returns the demo catalog.
func Default() *Catalog {
	c, err := New(DefaultProducts())
	if err != nil {
		panic(err)
	}
	return c
}
