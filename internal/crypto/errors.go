package crypto

import "fmt"

// CryptoError wraps a failure from the pairing-curve primitive layer,
// mirroring the MPIN_* / SOK_* return-code convention of the library
// this facade stands in for.
type CryptoError struct {
	Function string
	Code     int
	Message  string
}

func (e *CryptoError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("crypto: %s: %s", e.Function, e.Message)
	}
	return fmt.Sprintf("crypto: %s failed (code %d)", e.Function, e.Code)
}

func newCodeError(function string, code int) error {
	return &CryptoError{Function: function, Code: code}
}

func newMessageError(function, message string) error {
	return &CryptoError{Function: function, Message: message}
}
