package streamkey

import "errors"

// Verification failure kinds.
var (
	ErrSecretMissing = errors.New("stream key secret missing")
	ErrFormat        = errors.New("malformed stream key")
	ErrPayloadShape  = errors.New("invalid stream key payload")
	ErrSignature     = errors.New("invalid stream key signature")
	ErrExpired       = errors.New("stream key expired")
)

// VerifyError is returned by Verify. Reason is a short stable string safe to
// hand back to the media server; Kind is one of the sentinels above.
type VerifyError struct {
	Kind   error
	Reason string
}

func (e *VerifyError) Error() string { return e.Reason }
func (e *VerifyError) Unwrap() error { return e.Kind }

func fail(kind error, reason string) error {
	return &VerifyError{Kind: kind, Reason: reason}
}
