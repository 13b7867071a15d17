package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
)

var csvHeader = []string{"code", "name", "category", "price"}

// ReadCSV parses products from a CSV stream with a code,name,category,price header.
func ReadCSV(r io.Reader) ([]Product, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(csvHeader)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("catalog csv is empty")
		}
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	for i, name := range csvHeader {
		if !strings.EqualFold(strings.TrimSpace(header[i]), name) {
			return nil, fmt.Errorf("unexpected csv header %q, want %q", header[i], name)
		}
	}

	var products []Product
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv record: %w", err)
		}
		price, err := decimal.NewFromString(strings.TrimSpace(record[3]))
		if err != nil {
			line, _ := reader.FieldPos(3)
			return nil, fmt.Errorf("line %d: invalid price %q: %w", line, record[3], err)
		}
		p := Product{
			ID:       record[0],
			Name:     record[1],
			Category: record[2],
			Price:    price,
		}
		if err := p.Validate(); err != nil {
			line, _ := reader.FieldPos(0)
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		products = append(products, p)
	}
	return products, nil
}

// WriteCSV writes products in the format ReadCSV accepts.
func WriteCSV(w io.Writer, products []Product) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, p := range products {
		if err := writer.Write([]string{p.ID, p.Name, p.Category, p.Price.StringFixed(2)}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
