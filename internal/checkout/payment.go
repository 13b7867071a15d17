package checkout

import "fmt"

// PaymentMethod describes how the shopper settles the cart.
type PaymentMethod string

const (
	PaymentMethodCard PaymentMethod = "card"
	PaymentMethodUPI  PaymentMethod = "upi"
	PaymentMethodWeb  PaymentMethod = "web"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCard,
	PaymentMethodUPI,
	PaymentMethodWeb,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// Label is the name shown on the payment selection screen.
func (p PaymentMethod) Label() string {
	switch p {
	case PaymentMethodCard:
		return "Card"
	case PaymentMethodUPI:
		return "UPI/Wallet"
	case PaymentMethodWeb:
		return "WebPortal"
	}
	return ""
}

// RequiresChallenge reports whether the method goes through PIN verification
// before it can complete.
func (p PaymentMethod) RequiresChallenge() bool {
	return p == PaymentMethodWeb
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%q: %w", value, ErrInvalidPaymentMethod)
}
