// Package tests holds end-to-end tests that wire the runner, the HTTP
// server and the token store together.
package tests
