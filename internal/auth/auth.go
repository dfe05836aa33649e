// Package auth provides the bearer credentials the Fabric client runs under.
// Acquiring a token is opaque to the sync engine: it asks a Source for a scope
// and either gets a credential back or fails.
package auth

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNoSession means the source has no signed-in account to hand out
	ErrNoSession = errors.New("auth: no session")
)

// Credential is a bearer token and a human readable label of who it belongs to
type Credential struct {
	Token        string
	AccountLabel string
}

// Source supplies bearer tokens for a scope
type Source interface {
	Acquire(ctx context.Context, scope string) (*Credential, error)
}

// AuthError wraps any failure to obtain a credential. It is fatal to a sync run.
type AuthError struct {
	Source string
	Err    error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth: %s: %v", e.Source, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func newAuthError(source string, err error) *AuthError {
	return &AuthError{Source: source, Err: err}
}
