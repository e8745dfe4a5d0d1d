package types

// ExchangeState is the lifecycle state of a single request/response exchange
type ExchangeState string

const (
	ExchangeStateIdle           ExchangeState = "idle"
	ExchangeStateSending        ExchangeState = "sending"
	ExchangeStateStreaming      ExchangeState = "streaming"
	ExchangeStateParsing        ExchangeState = "parsing"
	ExchangeStateExecuting      ExchangeState = "executing"
	ExchangeStateCommitted      ExchangeState = "committed"
	ExchangeStateErrorCommitted ExchangeState = "error_committed"
)

// IsTerminal reports whether the exchange has finished
func (s ExchangeState) IsTerminal() bool {
	return s == ExchangeStateCommitted || s == ExchangeStateErrorCommitted
}

// String returns the string representation of the exchange state
func (s ExchangeState) String() string {
	return string(s)
}
