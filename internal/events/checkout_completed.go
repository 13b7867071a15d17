package events

import (
	"time"

	"github.com/drstein77/smartbilling/internal/checkout"
)

const CheckoutCompletedEventType = "CheckoutCompleted"

type CheckoutCompleted struct {
	EventType     string              `json:"eventType"`
	TransactionID string              `json:"transactionId"`
	SessionID     string              `json:"sessionId"`
	PaymentMethod string              `json:"paymentMethod"`
	Items         []CheckoutItemEvent `json:"items"`
	TotalAmount   string              `json:"totalAmount"`
	Timestamp     time.Time           `json:"timestamp"`
}

type CheckoutItemEvent struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

// NewCheckoutCompleted maps a finished transaction onto the wire event.
func NewCheckoutCompleted(tx checkout.Transaction) CheckoutCompleted {
	ev := CheckoutCompleted{
		EventType:     CheckoutCompletedEventType,
		TransactionID: tx.ID.String(),
		SessionID:     tx.SessionID.String(),
		PaymentMethod: tx.Method.String(),
		Items:         make([]CheckoutItemEvent, 0, len(tx.Lines)),
		TotalAmount:   tx.Total.StringFixed(2),
		Timestamp:     tx.CompletedAt,
	}
	for _, l := range tx.Lines {
		ev.Items = append(ev.Items, CheckoutItemEvent{
			ProductID: l.Product.ID,
			Name:      l.Product.Name,
			Quantity:  l.Quantity,
			Price:     l.Product.Price.StringFixed(2),
		})
	}
	return ev
}
