package checkout

// State is the screen the terminal is currently on.
type State string

const (
	StateScanning         State = "SCANNING"
	StatePaymentSelection State = "PAYMENT_SELECTION"
	StatePinVerification  State = "PIN_VERIFICATION"
	StateSuccess          State = "SUCCESS"
)

// allowedTransitions maps a state to the states reachable from it.
var allowedTransitions = map[State][]State{
	StateScanning: {
		StatePaymentSelection,
	},
	StatePaymentSelection: {
		StateScanning,
		StatePinVerification,
		StateSuccess,
	},
	StatePinVerification: {
		StatePaymentSelection,
		StateSuccess,
	},
	StateSuccess: {
		StateScanning,
	},
}

func canTransition(from, to State) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// String implements fmt.Stringer.
func (s State) String() string {
	return string(s)
}

// Progress is the completion percentage shown in the header bar.
func (s State) Progress() int {
	switch s {
	case StateScanning:
		return 25
	case StatePaymentSelection:
		return 50
	case StatePinVerification:
		return 75
	case StateSuccess:
		return 100
	}
	return 0
}
