package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/yndnr/tokpool/internal/core/domain"
)

// handleRoot handles GET /.
func (h *Handler) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintln(w, MsgServerRunning)
}

// handleSaveToken handles POST /save-token.
func (h *Handler) handleSaveToken(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	var req SaveTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writePlain(w, http.StatusRequestEntityTooLarge, ErrorBody{Error: MsgBodyTooLarge})
			return
		}
		h.writePlain(w, http.StatusBadRequest, ErrorBody{Error: MsgInvalidBody})
		return
	}

	if strings.TrimSpace(req.JWT) == "" {
		h.writePlain(w, http.StatusBadRequest, ErrorBody{Error: MsgJWTMissing})
		return
	}

	token := domain.Token(req.JWT)
	outcome, err := h.store.Insert(r.Context(), token)
	if err != nil {
		h.log(r).Error("failed to save token", "token", token, "error", err)
		h.writePlain(w, http.StatusInternalServerError, ErrorBody{Error: MsgSaveFailed})
		return
	}

	switch outcome {
	case domain.AlreadyPresent:
		h.log(r).Debug("token already stored", "token", token)
		h.writePlain(w, http.StatusOK, MessageResponse{Message: MsgTokenExists})
	default:
		h.log(r).Info("token saved", "token", token)
		h.writePlain(w, http.StatusOK, MessageResponse{Message: MsgTokenSaved})
	}
}

// handleListTokens handles GET /tokens.
func (h *Handler) handleListTokens(w http.ResponseWriter, r *http.Request) {
	snap, err := h.store.Snapshot(r.Context())
	if err != nil {
		h.log(r).Error("failed to read tokens", "error", err)
		h.writePlain(w, http.StatusInternalServerError, ErrorBody{Error: MsgReadFailed})
		return
	}
	h.writePlain(w, http.StatusOK, snap)
}
