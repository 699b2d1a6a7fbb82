// Package keyring holds an ordered set of credentials and the cursor
// selecting the active one.
//
// A [Ring] starts on the primary credential and advances monotonically
// through the backups when the active credential's budget is reported
// exhausted. There is no wrap-around: once every credential has been
// consumed, [Ring.Rotate] returns [ErrExhausted] and the caller must
// surface a hard failure rather than retry indefinitely.
//
// Ring is not synchronized; the owning dispatcher serializes access.
package keyring
