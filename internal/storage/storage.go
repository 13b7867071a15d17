package storage

import (
	"context"
	"fmt"
	"os"

	"github.com/drstein77/smartbilling/internal/catalog"
	"github.com/drstein77/smartbilling/internal/compress"
	"go.uber.org/zap"
)

// Catalog source names reported by MemoryStorage.Source.
const (
	SourceDatabase = "database"
	SourceFile     = "file"
	SourceDefault  = "default"
)

type Log interface {
	Info(string, ...zap.Field)
}

// Keeper interface for database operations
type Keeper interface {
	LoadProducts(context.Context) ([]catalog.Product, error)
	Ping(context.Context) bool
	Close() bool
}

// MemoryStorage holds the catalog loaded at startup. The catalog is never
// mutated afterwards, so reads need no locking.
type MemoryStorage struct {
	catalog *catalog.Catalog
	source  string

	keeper Keeper
	log    Log
}

// NewMemoryStorage loads the catalog from the keeper when one is given,
// otherwise from catalogFile, otherwise falls back to the demo catalog.
func NewMemoryStorage(ctx context.Context, keeper Keeper, catalogFile string, log Log) (*MemoryStorage, error) {
	var (
		products []catalog.Product
		source   string
		err      error
	)

	switch {
	case keeper != nil:
		source = SourceDatabase
		products, err = keeper.LoadProducts(ctx)
	case catalogFile != "":
		source = SourceFile
		products, err = LoadFile(catalogFile)
	default:
		source = SourceDefault
		products = catalog.DefaultProducts()
	}
	if err != nil {
		return nil, fmt.Errorf("cannot load %s catalog: %w", source, err)
	}

	c, err := catalog.New(products)
	if err != nil {
		return nil, fmt.Errorf("cannot build %s catalog: %w", source, err)
	}

	log.Info("catalog loaded", zap.String("source", source), zap.Int("products", c.Len()))

	return &MemoryStorage{
		catalog: c,
		source:  source,
		keeper:  keeper,
		log:     log,
	}, nil
}

// LoadFile reads products from a .csv file or from the first CSV inside a .zip or .tar.
func LoadFile(path string) ([]catalog.Product, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	rc, err := compress.OpenCSV(compress.TypeFromPath(path), f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	defer rc.Close()

	return catalog.ReadCSV(rc)
}

func (s *MemoryStorage) Resolve(code string) (catalog.Product, error) {
	return s.catalog.Resolve(code)
}

func (s *MemoryStorage) Products() []catalog.Product {
	return s.catalog.Products()
}

func (s *MemoryStorage) Source() string {
	return s.source
}

// Ping reports database health; without a database there is nothing to check.
func (s *MemoryStorage) Ping(ctx context.Context) bool {
	if s.keeper == nil {
		return true
	}
	return s.keeper.Ping(ctx)
}

func (s *MemoryStorage) Close() {
	if s.keeper != nil {
		s.keeper.Close()
	}
}
