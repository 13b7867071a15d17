package models

import (
	"time"

	"github.com/drstein77/smartbilling/internal/cart"
	"github.com/drstein77/smartbilling/internal/catalog"
	"github.com/drstein77/smartbilling/internal/checkout"
)

// ScanRequest carries one decoded barcode or QR payload.
type ScanRequest struct {
	Code string `json:"code" validate:"required"`
}

type PaymentRequest struct {
	Method string `json:"method" validate:"required,oneof=card upi web"`
}

type DigitRequest struct {
	Digit string `json:"digit" validate:"required,len=1,numeric"`
}

// PinSubmitRequest optionally replaces the pad contents before submitting.
type PinSubmitRequest struct {
	Pin string `json:"pin,omitempty" validate:"omitempty,len=4,numeric"`
}

type ProductView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Price    string `json:"price"`
}

type CartLineView struct {
	Product  ProductView `json:"product"`
	Quantity int         `json:"quantity"`
	Subtotal string      `json:"subtotal"`
}

type TransactionView struct {
	ID          string         `json:"id"`
	Method      string         `json:"method"`
	Total       string         `json:"total"`
	Lines       []CartLineView `json:"lines"`
	CompletedAt time.Time      `json:"completed_at"`
}

// SessionView is what the terminal renders after every intent.
type SessionView struct {
	SessionID    string           `json:"session_id"`
	State        string           `json:"state"`
	Progress     int              `json:"progress"`
	Items        []CartLineView   `json:"items"`
	ItemCount    int              `json:"item_count"`
	Total        string           `json:"total"`
	Payment      string           `json:"payment,omitempty"`
	PaymentLabel string           `json:"payment_label,omitempty"`
	PinLength    int              `json:"pin_length"`
	PinError     bool             `json:"pin_error"`
	Verifying    bool             `json:"verifying"`
	PaymentError string           `json:"payment_error,omitempty"`
	ScanError    string           `json:"scan_error,omitempty"`
	CanConfirm   bool             `json:"can_confirm"`
	CanSubmitPin bool             `json:"can_submit_pin"`
	Transaction  *TransactionView `json:"transaction,omitempty"`
}

type ConfirmResponse struct {
	Transitioned bool        `json:"transitioned"`
	Session      SessionView `json:"session"`
}

type PinSubmitResponse struct {
	Outcome string      `json:"outcome"`
	Session SessionView `json:"session"`
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
	Session *SessionView      `json:"session,omitempty"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Catalog  string `json:"catalog"`
	Products int    `json:"products"`
	Database bool   `json:"database"`
}

func NewProductView(p catalog.Product) ProductView {
	return ProductView{
		ID:       p.ID,
		Name:     p.Name,
		Category: p.Category,
		Price:    p.Price.StringFixed(2),
	}
}

func NewProductViews(products []catalog.Product) []ProductView {
	views := make([]ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, NewProductView(p))
	}
	return views
}

func NewCartLineView(l cart.Line) CartLineView {
	return CartLineView{
		Product:  NewProductView(l.Product),
		Quantity: l.Quantity,
		Subtotal: l.Subtotal().StringFixed(2),
	}
}

func newCartLineViews(lines []cart.Line) []CartLineView {
	views := make([]CartLineView, 0, len(lines))
	for _, l := range lines {
		views = append(views, NewCartLineView(l))
	}
	return views
}

// NewSessionView renders a snapshot. Money is always formatted with two decimals.
func NewSessionView(snap checkout.Snapshot) SessionView {
	view := SessionView{
		SessionID:    snap.SessionID.String(),
		State:        snap.State.String(),
		Progress:     snap.State.Progress(),
		Items:        newCartLineViews(snap.Lines),
		ItemCount:    snap.ItemCount,
		Total:        snap.Total.StringFixed(2),
		PinLength:    snap.PinLength,
		PinError:     snap.PinError,
		Verifying:    snap.Verifying,
		PaymentError: snap.PaymentError,
		ScanError:    snap.ScanError,
		CanConfirm:   snap.CanConfirm,
		CanSubmitPin: snap.CanSubmitPin,
	}
	if snap.Payment.IsValid() {
		view.Payment = snap.Payment.String()
		view.PaymentLabel = snap.Payment.Label()
	}
	if tx := snap.Transaction; tx != nil {
		view.Transaction = &TransactionView{
			ID:          tx.ID.String(),
			Method:      tx.Method.String(),
			Total:       tx.Total.StringFixed(2),
			Lines:       newCartLineViews(tx.Lines),
			CompletedAt: tx.CompletedAt,
		}
	}
	return view
}
