package domain

import "errors"

// Error taxonomy. Protocol packages wrap one of these with context, so callers
// classify with errors.Is.
var (
	// ErrProtocolViolation marks a message that is not valid in the current
	// state. It aborts the sub-protocol it belongs to.
	ErrProtocolViolation = errors.New("protocol violation")
	// ErrCryptoVerification marks a failed signature, MAC, hash commitment or
	// zero-knowledge proof. Nothing from the offending message is trusted.
	ErrCryptoVerification = errors.New("crypto verification failure")
	// ErrReplay marks a data message whose counter did not increase.
	ErrReplay = errors.New("replay detected")
	// ErrMisuse marks a local API call that is not allowed right now. No
	// message is sent.
	ErrMisuse = errors.New("misuse")
)

// Recoverable reports whether err came from the peer or the network rather
// than from local misuse. Recoverable errors leave the conversation usable.
func Recoverable(err error) bool {
	if err == nil || errors.Is(err, ErrMisuse) {
		return false
	}
	return errors.Is(err, ErrProtocolViolation) ||
		errors.Is(err, ErrCryptoVerification) ||
		errors.Is(err, ErrReplay)
}
