package dispatch

import "errors"

var (
	// ErrConfigResolution covers every reason an actionable signal is discarded before dispatch.
	ErrConfigResolution     = errors.New("config resolution failed")
	ErrSymbolNotConfigured  = wrapped(ErrConfigResolution, "no trade configuration found")
	ErrAccountNotConfigured = wrapped(ErrConfigResolution, "account not configured")

	ErrAuthenticationTimeout  = errors.New("Authentication timeout")
	ErrAuthenticationRejected = errors.New("Invalid Login or Password")
	ErrVerificationTimeout    = errors.New("verification timeout")

	ErrQueueFull = errors.New("dispatch queue full")
	ErrStopped   = errors.New("coordinator stopped")
)

type sentinel struct {
	msg    string
	parent error
}

func (e *sentinel) Error() string { return e.msg }
func (e *sentinel) Unwrap() error { return e.parent }

func wrapped(parent error, msg string) error {
	return &sentinel{msg: msg, parent: parent}
}

// rejection carries the terminal's own reason while still matching ErrAuthenticationRejected.
type rejection struct{ msg string }

func (e *rejection) Error() string { return e.msg }
func (e *rejection) Unwrap() error { return ErrAuthenticationRejected }

func authRejected(msg string) error {
	if msg == "" {
		return ErrAuthenticationRejected
	}
	return &rejection{msg: msg}
}
