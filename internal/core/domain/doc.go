// Package domain defines the core domain models for tokpool.
//
// Domain models are plain values without IO dependencies:
//
//   - CredentialTuple: one identifier/secret/region entry parsed from a list line
//   - Token, TokenRecord, TokenStoreSnapshot: the stored bearer tokens and their expiry
//   - RunSummary: aggregate counters for one pass over a credential list
//   - Errors: coded domain errors shared by the runner, the store and the HTTP layer
package domain
