package handler

import (
	"time"

	"github.com/yndnr/tokpool/internal/core/domain"
)

// Response is the envelope used by operational routes.
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string, details any) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// SaveTokenRequest is the request body for POST /save-token.
type SaveTokenRequest struct {
	JWT string `json:"jwt"`
}

// MessageResponse is a plain success body.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorBody is a plain error body.
type ErrorBody struct {
	Error string `json:"error"`
}

// Plain response messages.
const (
	MsgTokenSaved    = "Token saved successfully"
	MsgTokenExists   = "Token already exists"
	MsgJWTMissing    = "JWT missing"
	MsgSaveFailed    = "Failed to save token"
	MsgReadFailed    = "Failed to read tokens"
	MsgInvalidBody   = "Invalid request body"
	MsgBodyTooLarge  = "Request body too large"
	MsgServerRunning = "Token server is running"
)

// GCTriggerResponse is the data of POST /admin/v1/gc/trigger.
type GCTriggerResponse struct {
	CleanedCount int    `json:"cleaned_count"`
	TriggeredAt  string `json:"triggered_at"`
}

// StatusSummary is the data of GET /admin/v1/status/summary.
type StatusSummary struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	Commit     string `json:"commit"`
	GoVersion  string `json:"go_version"`
	TokenCount int    `json:"token_count"`
	Time       string `json:"time"`
}

// TokenList is the body of GET /tokens.
type TokenList = domain.TokenStoreSnapshot
