package payment

// Provider is the closed set of payment gateways the reconciliation layer
// understands. Adding one means adding an adapter, not branching logic.
type Provider string

const (
	ProviderClick Provider = "click"
	ProviderPayme Provider = "payme"
	ProviderOcto  Provider = "octo"
)

func (p Provider) IsValid() bool {
	switch p {
	case ProviderClick, ProviderPayme, ProviderOcto:
		return true
	default:
		return false
	}
}

func (p Provider) String() string {
	return string(p)
}

// State is the canonical provider-independent transaction state. The numeric
// values are stored as-is and are part of the provider wire contracts.
type State int

const (
	StateFailed  State = -1
	StatePending State = 1
	StatePaid    State = 2
)

// IsTerminal reports whether the state permits no further change.
// A provider may not "un-pay".
func (s State) IsTerminal() bool {
	return s == StatePaid || s == StateFailed
}

func (s State) IsValid() bool {
	switch s {
	case StateFailed, StatePending, StatePaid:
		return true
	default:
		return false
	}
}
