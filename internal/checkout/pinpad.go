package checkout

import "fmt"

// PinLength is the number of digits a PIN has.
const PinLength = 4

// PinPad buffers the digits typed on the verification screen.
type PinPad struct {
	digits []byte
}

// Press appends d if it is a digit and the pad is not full.
func (p *PinPad) Press(d rune) bool {
	if d < '0' || d > '9' || len(p.digits) >= PinLength {
		return false
	}
	p.digits = append(p.digits, byte(d))
	return true
}

// Backspace removes the last digit.
func (p *PinPad) Backspace() bool {
	if len(p.digits) == 0 {
		return false
	}
	p.digits = p.digits[:len(p.digits)-1]
	return true
}

// Set replaces the buffer with a full PIN.
func (p *PinPad) Set(pin string) error {
	if err := ValidatePIN(pin); err != nil {
		return err
	}
	p.digits = []byte(pin)
	return nil
}

func (p *PinPad) Clear() {
	p.digits = p.digits[:0]
}

func (p *PinPad) Len() int {
	return len(p.digits)
}

func (p *PinPad) Complete() bool {
	return len(p.digits) == PinLength
}

func (p *PinPad) Value() string {
	return string(p.digits)
}

// ValidatePIN checks that pin is exactly PinLength ASCII digits.
func ValidatePIN(pin string) error {
	if len(pin) < PinLength {
		return fmt.Errorf("pin has %d characters: %w", len(pin), ErrPinIncomplete)
	}
	if len(pin) > PinLength {
		return fmt.Errorf("pin has %d characters: %w", len(pin), ErrInvalidPinFormat)
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return fmt.Errorf("pin contains %q: %w", r, ErrInvalidPinFormat)
		}
	}
	return nil
}
