// Package source provides credential line sources for the batch runner.
//
// A source returns the raw lines of one cycle; parsing and blank-line
// handling belong to the runner. FileSource reads a local list and
// HTTPSource downloads one.
package source
