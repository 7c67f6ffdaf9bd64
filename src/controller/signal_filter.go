package controller

import "eabridge/src/externalmodel"

// ActiveSymbols answers whether a symbol currently has a trade configuration.
type ActiveSymbols interface {
	IsActive(symbol string) bool
}

// IsActionable reports whether sig targets an active symbol. It is evaluated
// against the live set every time; a signal that fails it is never revisited.
func IsActionable(sig externalmodel.Signal, symbols ActiveSymbols) bool {
	return symbols.IsActive(sig.Asset)
}
