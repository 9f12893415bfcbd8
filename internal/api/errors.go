package api

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	// KindInvalidCredentials covers 401/403 answers: the server understood
	// the request and rejected the caller.
	KindInvalidCredentials ErrorKind = "invalid_credentials"
	// KindBadResponse covers unexpected statuses, malformed bodies and
	// token-less success responses.
	KindBadResponse ErrorKind = "bad_response"
	// KindUnreachable covers transport failures before any response.
	KindUnreachable ErrorKind = "unreachable"
)

// AuthError is the discriminated failure of a resolver call, replacing the
// single boolean the calling forms historically saw. IsAuthFailure keeps
// the pass/fail view available at the UI boundary.
type AuthError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func IsAuthFailure(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// Kind extracts the failure kind, or KindUnreachable for errors raised
// outside the HTTP exchange (cancelled contexts, storage faults).
func Kind(err error) ErrorKind {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	return KindUnreachable
}
