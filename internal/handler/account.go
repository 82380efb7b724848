// Package handler contains the HTTP layer: request parsing, response
// shaping, and the mapping from domain errors to status codes. Handlers
// never touch the key-value store directly — everything goes through the
// account store or the trending clients.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/involvex/involvex-server/internal/account"
	"github.com/involvex/involvex-server/internal/model"
)

// AccountHandler serves the local account: profile reads, shallow profile
// updates, preferences merges, and the destructive reset operations.
type AccountHandler struct {
	accounts *account.Store
	logger   *slog.Logger
}

func NewAccountHandler(accounts *account.Store, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, logger: logger}
}

// HandleGet returns the current account, creating the default one on the
// very first call.
//
// HTTP: GET /api/account
func (h *AccountHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	acct, err := h.accounts.Get(r.Context())
	if err != nil {
		h.logger.Error("failed to load account", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

// HandleUpdate applies a shallow profile patch.
//
// HTTP: PATCH /api/account
// BODY: {"username": "new-name"} — absent fields stay unchanged
func (h *AccountHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var patch model.AccountPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.logger.Warn("invalid account patch", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON body",
		})
		return
	}

	acct, err := h.accounts.Update(r.Context(), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

// HandleUpdatePreferences merges a preferences patch one level deep.
//
// HTTP: PATCH /api/account/preferences
// BODY: {"theme": "dark"} or {"notifications": {...}} etc.
func (h *AccountHandler) HandleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var patch model.PreferencesPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.logger.Warn("invalid preferences patch", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON body",
		})
		return
	}

	acct, err := h.accounts.UpdatePreferences(r.Context(), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

// HandleClear removes all persisted account data.
//
// HTTP: DELETE /api/account
func (h *AccountHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.ClearAll(r.Context()); err != nil {
		h.logger.Error("failed to clear account data", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
