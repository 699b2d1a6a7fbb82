package keyring

import (
	"context"
	"errors"
)

// ErrExhausted is returned by [Ring.Rotate] when no credentials remain.
var ErrExhausted = errors.New("credentials exhausted")

// Credential is an opaque credential value: an API key, a bearer token,
// or whatever the provider exchange yields.
type Credential string

// RefreshFunc exchanges a stored credential for a fresh one, for
// providers whose credentials require a login flow before use. It is
// consulted lazily when the ring rotates onto a credential.
type RefreshFunc func(ctx context.Context, cred Credential) (Credential, error)

// Ring is an ordered credential list with a forward-only cursor.
type Ring struct {
	creds  []Credential
	active int
}

// New builds a Ring from a primary credential and optional backups,
// in rotation order.
func New(primary Credential, backups ...Credential) *Ring {
	creds := make([]Credential, 0, 1+len(backups))
	creds = append(creds, primary)
	creds = append(creds, backups...)
	return &Ring{creds: creds}
}

// Current returns the active credential.
func (r *Ring) Current() Credential {
	return r.creds[r.active]
}

// Index returns the zero-based position of the active credential.
func (r *Ring) Index() int {
	return r.active
}

// Len returns the total number of credentials.
func (r *Ring) Len() int {
	return len(r.creds)
}

// Remaining returns how many unused backups are left after the
// active credential.
func (r *Ring) Remaining() int {
	return len(r.creds) - r.active - 1
}

// Rotate advances to the next credential. Once the cursor has moved
// past the last credential it returns ErrExhausted; earlier credentials
// are never revisited.
func (r *Ring) Rotate() (Credential, error) {
	if r.active+1 >= len(r.creds) {
		return "", ErrExhausted
	}
	r.active++
	return r.creds[r.active], nil
}

// ReplaceAt swaps the credential value in slot idx. Used after a
// refresh exchange yields a fresh token for the slot that was rotated
// onto; targeting the slot by index keeps a slow refresh from
// clobbering a cursor that has since moved on. Out-of-range indexes
// are ignored.
func (r *Ring) ReplaceAt(idx int, cred Credential) {
	if idx < 0 || idx >= len(r.creds) {
		return
	}
	r.creds[idx] = cred
}
