package checkout

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition    = errors.New("invalid transition")
	ErrPinIncomplete        = errors.New("pin must have 4 digits")
	ErrInvalidPinFormat     = errors.New("pin must contain digits only")
	ErrVerificationInFlight = errors.New("pin verification in progress")
	ErrPaymentNotApproved   = errors.New("payment not approved")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
)

func invalidIntent(intent string, from State) error {
	return fmt.Errorf("%s not allowed in %s: %w", intent, from, ErrInvalidTransition)
}
