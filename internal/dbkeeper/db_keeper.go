package dbkeeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/drstein77/smartbilling/internal/catalog"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Log interface {
	Info(string, ...zap.Field)
	Error(string, ...zap.Field)
}

// Pool is the part of *pgxpool.Pool the keeper uses.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
	Close()
}

// DBKeeper serves the product catalog out of Postgres.
type DBKeeper struct {
	pool Pool
	log  Log
}

const productsQuery = `SELECT code, name, category, price::text FROM products ORDER BY code`

func NewDBKeeper(ctx context.Context, dsn func() string, log Log) (*DBKeeper, error) {
	addr := dsn()
	if addr == "" {
		return nil, errors.New("database dsn is empty")
	}

	config, err := pgxpool.ParseConfig(addr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	log.Info("Connected!")

	return NewWithPool(pool, log), nil
}

func NewWithPool(pool Pool, log Log) *DBKeeper {
	return &DBKeeper{pool: pool, log: log}
}

// LoadProducts reads the whole catalog.
func (kp *DBKeeper) LoadProducts(ctx context.Context) ([]catalog.Product, error) {
	if kp.pool == nil {
		return nil, fmt.Errorf("database connection pool is nil")
	}

	rows, err := kp.pool.Query(ctx, productsQuery)
	if err != nil {
		kp.log.Error("Failed to execute query", zap.Error(err))
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var products []catalog.Product
	for rows.Next() {
		var (
			product catalog.Product
			price   string
		)
		if err := rows.Scan(&product.ID, &product.Name, &product.Category, &price); err != nil {
			kp.log.Error("Failed to scan row", zap.Error(err))
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		product.Price, err = decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("product %s has invalid price %q: %w", product.ID, price, err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		kp.log.Error("Error occurred during rows iteration", zap.Error(err))
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}

	kp.log.Info("Successfully loaded catalog", zap.Int("count", len(products)))
	return products, nil
}

func (kp *DBKeeper) Ping(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := kp.pool.Ping(ctx); err != nil {
		kp.log.Error("Database ping failed", zap.Error(err))
		return false
	}

	return true
}

func (kp *DBKeeper) Close() bool {
	if kp.pool != nil {
		kp.pool.Close()
		kp.log.Info("Database connection pool closed")
		return true
	}
	kp.log.Info("Attempted to close a nil database connection pool")
	return false
}
