// Package tokenstore provides the deduplicating, TTL-expiring token store.
//
// A Store owns exclusive access to one persisted document of the form
//
//	{"count": N, "tokens": [{"token": "...", "createdAt": "...", "expiresAt": "..."}]}
//
// held by a Backend. Every operation (Insert, Snapshot, SweepExpired) is
// queued to a single worker goroutine and runs load, filter, act and persist
// to completion before the next one starts, so operations are totally
// ordered regardless of how many goroutines call the store.
//
// A document that fails to parse is backed up verbatim and then recovered
// from the text between its first '{' and last '}'; if that also fails the
// store continues from an empty document. Corruption is never returned to
// callers; persistence I/O failures are, as domain.ErrStoreUnavailable.
package tokenstore
