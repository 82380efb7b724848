package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/involvex/involvex-server/internal/account"
	"github.com/involvex/involvex-server/internal/model"
)

// SubscriptionHandler serves the repo and package subscription lists.
//
// Subscription keys may contain a slash (a repo fullName like "a/foo"), so
// the key routes use chi's wildcard parameter rather than {id}.
type SubscriptionHandler struct {
	accounts *account.Store
	logger   *slog.Logger
}

func NewSubscriptionHandler(accounts *account.Store, logger *slog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{accounts: accounts, logger: logger}
}

// HandleListRepos returns the subscribed repos in insertion order.
//
// HTTP: GET /api/subscriptions/repos
//
// This endpoint degrades on storage read failure: the client renders an
// empty list instead of an error screen. The store propagates the error;
// choosing to swallow it is this handler's decision, logged here.
func (h *SubscriptionHandler) HandleListRepos(w http.ResponseWriter, r *http.Request) {
	repos, err := h.accounts.SubscribedRepos(r.Context())
	if err != nil {
		h.logger.Error("failed to load subscribed repos, serving empty list",
			slog.String("error", err.Error()))
		writeJSON(w, http.StatusOK, []model.SubscribedRepo{})
		return
	}
	writeJSON(w, http.StatusOK, repos)
}

// HandleSubscribeRepo upserts a repo subscription.
//
// HTTP: POST /api/subscriptions/repos
// BODY: a repo as returned by the search API (subscribedAt/lastUpdated are
// server-assigned and ignored if present).
func (h *SubscriptionHandler) HandleSubscribeRepo(w http.ResponseWriter, r *http.Request) {
	var repo model.SubscribedRepo
	if err := json.NewDecoder(r.Body).Decode(&repo); err != nil {
		h.logger.Warn("invalid repo body", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON body",
		})
		return
	}

	acct, err := h.accounts.SubscribeRepo(r.Context(), repo)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

// HandleUnsubscribeRepo removes a repo subscription by id or fullName.
// Removing something that was never subscribed still returns 200 — the
// operation is idempotent.
//
// HTTP: DELETE /api/subscriptions/repos/{id-or-fullName}
func (h *SubscriptionHandler) HandleUnsubscribeRepo(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")

	acct, err := h.accounts.UnsubscribeRepo(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

// HandleCheckRepo reports whether a repo is subscribed.
//
// HTTP: GET /api/subscriptions/repos/{id-or-fullName}
// RESPONSE: {"subscribed": true}
func (h *SubscriptionHandler) HandleCheckRepo(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")

	subscribed, err := h.accounts.IsSubscribedRepo(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"subscribed": subscribed})
}

// HandleListPackages returns the subscribed packages in insertion order.
// Degrades to an empty list on storage read failure, like HandleListRepos.
//
// HTTP: GET /api/subscriptions/packages
func (h *SubscriptionHandler) HandleListPackages(w http.ResponseWriter, r *http.Request) {
	pkgs, err := h.accounts.SubscribedPackages(r.Context())
	if err != nil {
		h.logger.Error("failed to load subscribed packages, serving empty list",
			slog.String("error", err.Error()))
		writeJSON(w, http.StatusOK, []model.SubscribedPackage{})
		return
	}
	writeJSON(w, http.StatusOK, pkgs)
}

// HandleSubscribePackage upserts a package subscription.
//
// HTTP: POST /api/subscriptions/packages
func (h *SubscriptionHandler) HandleSubscribePackage(w http.ResponseWriter, r *http.Request) {
	var pkg model.SubscribedPackage
	if err := json.NewDecoder(r.Body).Decode(&pkg); err != nil {
		h.logger.Warn("invalid package body", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON body",
		})
		return
	}

	acct, err := h.accounts.SubscribePackage(r.Context(), pkg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

// HandleUnsubscribePackage removes a package subscription by id or name.
//
// HTTP: DELETE /api/subscriptions/packages/{id-or-name}
func (h *SubscriptionHandler) HandleUnsubscribePackage(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")

	acct, err := h.accounts.UnsubscribePackage(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

// HandleCheckPackage reports whether a package is subscribed.
//
// HTTP: GET /api/subscriptions/packages/{id-or-name}
func (h *SubscriptionHandler) HandleCheckPackage(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")

	subscribed, err := h.accounts.IsSubscribedPackage(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"subscribed": subscribed})
}
