package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/badkiko/y2m/internal/crypto"
	"github.com/badkiko/y2m/internal/model"
	"github.com/badkiko/y2m/internal/oauth"
)

// authorizeStatePrefix marks a state value that carries a pending skill
// authorization request; the callback resumes that flow instead of landing
// on the web UI.
const authorizeStatePrefix = "authorize:"

// YandexLogin redirects the user-agent to the upstream login entry point.
func (a *API) YandexLogin(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	http.Redirect(w, r, a.deps.Upstream.AuthURL(state), http.StatusFound)
}

// YandexCallback finishes the upstream login: exchanges the code, resolves
// the account identity and persists the sealed tokens.
func (a *API) YandexCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	payload, err := a.deps.Upstream.ExchangeCode(r.Context(), code)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("oauth error: %v", err))
		return
	}

	userID := "unknown"
	if info, err := a.deps.Upstream.UserInfo(r.Context(), payload.AccessToken); err == nil && info.ID != "" {
		userID = info.ID
	} else if err != nil {
		a.deps.Logger.Warn("upstream userinfo failed", "err", err)
	}

	sealedAccess, err := a.deps.Sealer.Encrypt(payload.AccessToken)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store token")
		return
	}
	var refresh *string
	if payload.RefreshToken != "" {
		sealed, err := a.deps.Sealer.Encrypt(payload.RefreshToken)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to store token")
			return
		}
		refresh = &sealed
	}

	now := time.Now().UTC()
	var expiresAt *time.Time
	if payload.ExpiresIn > 0 {
		t := now.Add(time.Duration(payload.ExpiresIn) * time.Second)
		expiresAt = &t
	}
	token := model.UserToken{
		ID:              uuid.NewString(),
		UserID:          userID,
		Provider:        oauth.ProviderYandex,
		AccessToken:     sealedAccess,
		AccessTokenHash: crypto.HashToken(payload.AccessToken),
		RefreshToken:    refresh,
		ExpiresAt:       expiresAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := a.deps.Store.SaveUserToken(r.Context(), token); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store token")
		return
	}
	a.deps.Logger.Info("yandex account linked", "user", userID, "token", token.ID)

	// Resume a pending skill authorization if the state carries one.
	if query, ok := strings.CutPrefix(state, authorizeStatePrefix); ok && query != "" {
		http.Redirect(w, r, a.deps.BaseURL+"/dialog/authorize?"+query, http.StatusFound)
		return
	}
	http.Redirect(w, r, a.deps.WebURL+"/auth/callback?ok=1&tokenId="+token.ID, http.StatusFound)
}

// AuthStatus reports whether a Yandex token is stored. Single-account
// deployment: any stored token means authenticated.
func (a *API) AuthStatus(w http.ResponseWriter, r *http.Request) {
	count, err := a.deps.Store.CountTokens(r.Context(), oauth.ProviderYandex)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"authenticated": count > 0})
}
