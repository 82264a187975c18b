// Package handler provides HTTP request handlers for the token server.
//
// Ingestion routes (/save-token, /tokens, /) keep the plain JSON bodies
// that token producers already speak. Operational routes (/health, /ready,
// /admin/v1/*) use the Response envelope.
package handler
