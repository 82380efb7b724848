package handler

import (
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/involvex/involvex-server/internal/account"
	"github.com/involvex/involvex-server/internal/auth"
)

// AuthHandler manages the Discord OAuth login flow and the session cookie.
//
//   - HandleDiscordLogin    → redirect the browser to Discord's consent page
//   - HandleDiscordCallback → receive the code, record the login, issue JWT
//   - HandleLogout          → clear the cookie and reset the local account
//   - HandleMe              → return the logged-in account's profile
type AuthHandler struct {
	discord  *auth.DiscordProvider
	tokens   *auth.TokenService
	accounts *account.Store
	logger   *slog.Logger
}

func NewAuthHandler(
	discord *auth.DiscordProvider,
	tokens *auth.TokenService,
	accounts *account.Store,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		discord:  discord,
		tokens:   tokens,
		accounts: accounts,
		logger:   logger,
	}
}

// HandleDiscordLogin redirects the user to Discord's authorization page.
//
// HTTP: GET /auth/discord/login
//
// A random state value goes into a short-lived HttpOnly cookie; the
// callback verifies it to prove the flow started here (CSRF protection).
func (h *AuthHandler) HandleDiscordLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.discord.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleDiscordCallback completes the OAuth login flow.
//
// HTTP: GET /auth/discord/callback?code=xxx&state=yyy
func (h *AuthHandler) HandleDiscordCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// The state cookie is single-use.
	http.SetCookie(w, &http.Cookie{
		Name:   "oauth_state",
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	// The user may have denied authorization on Discord's consent page.
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization",
			slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	user, err := h.discord.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: Discord exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	acct, err := h.accounts.LoginWithDiscord(r.Context(), user)
	if err != nil {
		h.logger.Error("auth callback: recording login failed",
			slog.String("discordID", user.ID),
			slog.String("error", err.Error()),
		)
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	tokenStr, err := h.tokens.Generate(acct.ID)
	if err != nil {
		h.logger.Error("auth callback: token generation failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    tokenStr,
		Path:     "/",
		MaxAge:   int(auth.SessionDuration.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		// Secure: true, // requires HTTPS; enable in production
	})

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleLogout clears the session cookie and resets the local account to a
// fresh anonymous default. Subscriptions do not survive logout.
//
// HTTP: POST /auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	acct, err := h.accounts.Logout(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, acct)
}

// HandleMe returns the profile behind the current session.
//
// HTTP: GET /api/me
// Auth: required
//
// A session minted before a logout carries the old account ID; the stored
// account has a new one, so stale sessions get 401 here.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	acct, err := h.accounts.Get(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if acct.ID != accountID {
		h.logger.Warn("stale session for replaced account",
			slog.String("sessionAccountID", accountID),
			slog.String("currentAccountID", acct.ID),
		)
		http.Error(w, `{"error":"unauthorized","message":"session no longer valid"}`, http.StatusUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, acct)
}
