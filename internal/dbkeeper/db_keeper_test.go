package dbkeeper

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type nopLog struct{}

func (nopLog) Info(string, ...zap.Field)  {}
func (nopLog) Error(string, ...zap.Field) {}

func TestLoadProducts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT (.+) FROM products").
		WillReturnRows(pgxmock.NewRows([]string{"code", "name", "category", "price"}).
			AddRow("12345", "Organic Whole Milk", "Dairy", "4.50").
			AddRow("67890", "Sourdough Bread", "Bakery", "3.25"))

	kp := NewWithPool(mock, nopLog{})
	products, err := kp.LoadProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "12345", products[0].ID)
	assert.Equal(t, "4.50", products[0].Price.StringFixed(2))
	assert.Equal(t, "Bakery", products[1].Category)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadProductsQueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT (.+) FROM products").WillReturnError(errors.New("relation does not exist"))

	_, err = NewWithPool(mock, nopLog{}).LoadProducts(context.Background())
	assert.ErrorContains(t, err, "failed to execute query")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadProductsInvalidPrice(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT (.+) FROM products").
		WillReturnRows(pgxmock.NewRows([]string{"code", "name", "category", "price"}).
			AddRow("12345", "Organic Whole Milk", "Dairy", "n/a"))

	_, err = NewWithPool(mock, nopLog{}).LoadProducts(context.Background())
	assert.ErrorContains(t, err, "invalid price")
}

func TestPing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectPing()
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	kp := NewWithPool(mock, nopLog{})
	assert.True(t, kp.Ping(context.Background()))
	assert.False(t, kp.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCloseNilPool(t *testing.T) {
	kp := &DBKeeper{log: nopLog{}}
	assert.False(t, kp.Close())
}

func TestNewDBKeeperEmptyDSN(t *testing.T) {
	_, err := NewDBKeeper(context.Background(), func() string { return "" }, nopLog{})
	assert.Error(t, err)
}
