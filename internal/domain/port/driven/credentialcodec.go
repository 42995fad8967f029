package driven

import "errors"

// ErrInvalidCredential is returned when a session credential has a bad
// signature, a malformed payload, or has expired.
var ErrInvalidCredential = errors.New("invalid session credential")

// CredentialCodec issues and verifies the signed session credential handed
// to the browser. The credential binds only the user's identity.
type CredentialCodec interface {
	Issue(identity string) (string, error)
	// Verify returns the embedded identity or an error wrapping ErrInvalidCredential.
	Verify(credential string) (string, error)
}
