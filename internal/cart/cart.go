package cart

import (
	"github.com/drstein77/smartbilling/internal/catalog"
	"github.com/shopspring/decimal"
)

// Line is one product in the cart together with how many were scanned.
type Line struct {
	Product  catalog.Product
	Quantity int
}

// Subtotal is price times quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart keeps lines in insertion order with at most one line per product id.
// It is not safe for concurrent use; the checkout session serialises access.
type Cart struct {
	lines []Line
	index map[string]int
}

func New() *Cart {
	return &Cart{index: make(map[string]int)}
}

// Add increments the existing line for p or appends a new line with quantity 1.
func (c *Cart) Add(p catalog.Product) Line {
	if i, ok := c.index[p.ID]; ok {
		c.lines[i].Quantity++
		return c.lines[i]
	}
	c.lines = append(c.lines, Line{Product: p, Quantity: 1})
	c.index[p.ID] = len(c.lines) - 1
	return c.lines[len(c.lines)-1]
}

// Remove drops the whole line for productID and reports whether one existed.
func (c *Cart) Remove(productID string) bool {
	i, ok := c.index[productID]
	if !ok {
		return false
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	delete(c.index, productID)
	for j := i; j < len(c.lines); j++ {
		c.index[c.lines[j].Product.ID] = j
	}
	return true
}

// Total is recomputed on every call.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Lines returns a copy of the lines in insertion order.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// Line returns the line for productID if present.
func (c *Cart) Line(productID string) (Line, bool) {
	i, ok := c.index[productID]
	if !ok {
		return Line{}, false
	}
	return c.lines[i], true
}

func (c *Cart) Len() int {
	return len(c.lines)
}

// ItemCount sums quantities across lines.
func (c *Cart) ItemCount() int {
	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

func (c *Cart) Clear() {
	c.lines = nil
	c.index = make(map[string]int)
}
