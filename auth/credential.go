package auth

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/term"
)

// SessionCredential holds the optional Google password for the life of
// the process. The recovery machine only reads it; Seed and PromptOnce
// are the only writers, and an already-held secret is never overwritten.
//
// The secret must never be logged.
type SessionCredential struct {
	mu     sync.Mutex
	held   bool
	secret string
}

// NewSessionCredential returns an empty credential holder.
func NewSessionCredential() *SessionCredential {
	return &SessionCredential{}
}

// Seed installs a pre-supplied secret (env var or config) unless one is
// already held. Empty secrets are ignored.
func (c *SessionCredential) Seed(secret string) {
	if secret == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.held {
		return
	}
	c.secret = secret
	c.held = true
}

// PromptOnce reads the password from the terminal without echo.
// A second call is a no-op once a secret is held. Cancellation or an
// empty entry keeps any existing secret and is not an error.
func (c *SessionCredential) PromptOnce() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.held {
		return nil
	}

	fmt.Fprint(os.Stderr, "Enter your Google password: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Password prompt cancelled. Using existing password if available.")
		return nil
	}
	if len(raw) == 0 {
		fmt.Fprintln(os.Stderr, "Empty password entered. Using existing password if available.")
		return nil
	}

	c.secret = string(raw)
	c.held = true
	fmt.Fprintln(os.Stderr, "Password set for this session.")
	return nil
}

// Secret returns the held password, if any.
func (c *SessionCredential) Secret() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.secret, c.held
}
