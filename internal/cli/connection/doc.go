// Package connection is the HTTP client tokpool-cli uses to reach a
// tokpool-server: listing tokens, admin calls and the HTTP sink.
//
// Two body shapes come back from the server. Ingestion routes answer with
// bare JSON ({"message"}, {"error"}, {"count","tokens"}); operational and
// admin routes use the {"code","message","data"} envelope. ParseResponse
// handles the first, ParseEnvelope the second, and both turn error bodies
// of either shape into a *ResponseError.
package connection
