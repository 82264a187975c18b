// Package exchange provides Exchanger implementations.
//
// PasswordExchanger performs an OAuth2 resource-owner password grant
// against a configurable token endpoint: the tuple identifier is the
// username, the secret is the password, and the region can be forwarded
// as an extra form field.
package exchange
