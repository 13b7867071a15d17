package checkout

import (
	"context"
	"time"

	"github.com/drstein77/smartbilling/internal/cart"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction is the record of a completed checkout.
type Transaction struct {
	ID          uuid.UUID
	SessionID   uuid.UUID
	Method      PaymentMethod
	Total       decimal.Decimal
	Lines       []cart.Line
	CompletedAt time.Time
}

// Notifier is told about every completed checkout.
type Notifier interface {
	CheckoutCompleted(ctx context.Context, tx Transaction) error
}

type nopNotifier struct{}

func (nopNotifier) CheckoutCompleted(context.Context, Transaction) error { return nil }

// Recorder receives flow counters.
type Recorder interface {
	ScanResolved()
	ScanNotFound()
	Transition(from, to string)
	PinAttempt(outcome string)
	CheckoutCompleted(method string, total float64)
}

type nopRecorder struct{}

func (nopRecorder) ScanResolved()                     {}
func (nopRecorder) ScanNotFound()                     {}
func (nopRecorder) Transition(string, string)         {}
func (nopRecorder) PinAttempt(string)                 {}
func (nopRecorder) CheckoutCompleted(string, float64) {}
