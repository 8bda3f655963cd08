package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/badkiko/y2m/internal/crypto"
	"github.com/badkiko/y2m/internal/oauth"
	"github.com/badkiko/y2m/internal/storage"
)

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// Authorize is the authorization endpoint the skill sends the user to. With
// a linked account it issues a single-use code; otherwise it bounces the
// user through the upstream login first, carrying the whole request along
// so the flow resumes here.
func (a *API) Authorize(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if query.Get("response_type") != "code" {
		writeError(w, http.StatusBadRequest, "Unsupported response type. Only 'code' is supported.")
		return
	}
	clientID := query.Get("client_id")
	if clientID != a.deps.SkillClientID {
		writeError(w, http.StatusBadRequest, "Invalid client_id")
		return
	}
	redirectURI := query.Get("redirect_uri")
	if redirectURI == "" {
		writeError(w, http.StatusBadRequest, "redirect_uri is required")
		return
	}
	scope := query.Get("scope")
	state := query.Get("state")

	token, err := a.deps.Tokens.Current(r.Context())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			login := url.Values{}
			login.Set("state", authorizeStatePrefix+r.URL.RawQuery)
			http.Redirect(w, r, a.deps.WebURL+"/auth/yandex/login?"+login.Encode(), http.StatusFound)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	code, err := a.deps.Codes.Issue(clientID, redirectURI, scope, state, token.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.deps.Logger.Info("authorization code issued", "client_id", clientID)

	back := url.Values{}
	back.Set("code", code)
	// state echoes back only when the client sent one (RFC 6749 §4.1.2).
	if state != "" {
		back.Set("state", state)
	}
	http.Redirect(w, r, redirectURI+"?"+back.Encode(), http.StatusFound)
}

// Token is the token endpoint serving the authorization_code and
// refresh_token grants for the skill.
func (a *API) Token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid form payload")
		return
	}
	switch grant := r.PostFormValue("grant_type"); grant {
	case "authorization_code":
		a.tokenCodeGrant(w, r)
	case "refresh_token":
		a.tokenRefreshGrant(w, r)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unsupported grant type: %s", grant))
	}
}

func (a *API) checkClientCredentials(w http.ResponseWriter, r *http.Request) bool {
	clientID := r.PostFormValue("client_id")
	clientSecret := r.PostFormValue("client_secret")
	if clientID == "" || clientSecret == "" {
		writeError(w, http.StatusBadRequest, "Client credentials are required")
		return false
	}
	if clientID != a.deps.SkillClientID || clientSecret != a.deps.SkillClientSecret {
		writeError(w, http.StatusUnauthorized, "Invalid client credentials")
		return false
	}
	return true
}

func (a *API) tokenCodeGrant(w http.ResponseWriter, r *http.Request) {
	code := r.PostFormValue("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "Authorization code is required")
		return
	}
	if !a.checkClientCredentials(w, r) {
		return
	}

	entry, ok := a.deps.Codes.Consume(code)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid or expired authorization code")
		return
	}

	token, err := a.deps.Store.TokenByID(r.Context(), entry.UserTokenID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to exchange code for token: %v", err))
		return
	}

	resp := tokenResponse{
		AccessToken: a.deps.Sealer.Decrypt(token.AccessToken),
		TokenType:   "Bearer",
		ExpiresIn:   3600,
		Scope:       "smart-home",
	}
	if token.RefreshToken != nil {
		resp.RefreshToken = a.deps.Sealer.Decrypt(*token.RefreshToken)
	}
	a.deps.Logger.Info("authorization code exchanged", "token", token.ID)
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) tokenRefreshGrant(w http.ResponseWriter, r *http.Request) {
	if r.PostFormValue("refresh_token") == "" {
		writeError(w, http.StatusBadRequest, "Refresh token is required")
		return
	}
	if !a.checkClientCredentials(w, r) {
		return
	}

	token, err := a.deps.Store.TokenWithRefresh(r.Context(), oauth.ProviderYandex)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusBadRequest, "Invalid refresh token")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	payload, err := a.deps.Upstream.Refresh(r.Context(), a.deps.Sealer.Decrypt(*token.RefreshToken))
	if err != nil {
		var upstream *oauth.UpstreamError
		if errors.As(err, &upstream) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Failed to refresh token: %s", upstream.Body))
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Internal error: %v", err))
		return
	}

	sealedAccess, err := a.deps.Sealer.Encrypt(payload.AccessToken)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update tokens")
		return
	}
	var sealedRefresh *string
	if payload.RefreshToken != "" {
		sealed, err := a.deps.Sealer.Encrypt(payload.RefreshToken)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to update tokens")
			return
		}
		sealedRefresh = &sealed
	}
	hash := crypto.HashToken(payload.AccessToken)
	if err := a.deps.Store.UpdateTokenSecrets(r.Context(), token.ID, sealedAccess, hash, sealedRefresh); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update tokens")
		return
	}
	a.deps.Logger.Info("upstream token refreshed", "token", token.ID)

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  payload.AccessToken,
		TokenType:    "Bearer",
		ExpiresIn:    payload.ExpiresIn,
		RefreshToken: payload.RefreshToken,
		Scope:        payload.Scope,
	})
}

// Discovery serves the static OAuth 2.0 authorization server metadata.
func (a *API) Discovery(w http.ResponseWriter, _ *http.Request) {
	base := a.deps.BaseURL
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                                base,
		"authorization_endpoint":                base + "/dialog/authorize",
		"token_endpoint":                        base + "/oauth/token",
		"response_types_supported":              []string{"code"},
		"grant_types_supported":                 []string{"authorization_code", "refresh_token"},
		"token_endpoint_auth_methods_supported": []string{"client_secret_post"},
		"scopes_supported":                      []string{"smart-home"},
	})
}
