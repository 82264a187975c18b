// Package sink delivers exchanged tokens to a token store.
//
// StoreSink writes into an in-process tokenstore.Store. HTTPSink posts to
// a tokpool-server's /save-token route. Both report failures as
// domain.ErrSinkFailed; a token the store already holds is not a failure.
package sink
