package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestAuthorizeRejectsUnknownClient(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet,
		"/dialog/authorize?response_type=code&client_id=wrong&redirect_uri=https%3A%2F%2Fsocial.yandex.net%2Fbroker", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if rec.Header().Get("Location") != "" {
		t.Fatal("no redirect must be issued for a bad client_id")
	}
	if !strings.Contains(rec.Body.String(), "Invalid client_id") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestAuthorizeRejectsWrongResponseType(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet,
		"/dialog/authorize?response_type=token&client_id=skill-id&redirect_uri=https%3A%2F%2Fexample.com", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestAuthorizeRedirectsToLoginWhenUnlinked(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet,
		"/dialog/authorize?response_type=code&client_id=skill-id&redirect_uri=https%3A%2F%2Fexample.com&state=xyz", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	location := rec.Header().Get("Location")
	if !strings.HasPrefix(location, "http://ui.local/auth/yandex/login?") {
		t.Fatalf("unexpected redirect target: %s", location)
	}
	parsed, err := url.Parse(location)
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	state := parsed.Query().Get("state")
	if !strings.HasPrefix(state, "authorize:") {
		t.Fatalf("state must carry the authorize continuation, got %q", state)
	}
	if !strings.Contains(state, "client_id=skill-id") {
		t.Fatalf("continuation must preserve the original query, got %q", state)
	}
}

func TestAuthorizationCodeFlowSingleUse(t *testing.T) {
	env := newTestEnv(t)
	env.seedToken(t, "stored-access-token")

	req := httptest.NewRequest(http.MethodGet,
		"/dialog/authorize?response_type=code&client_id=skill-id&redirect_uri=https%3A%2F%2Fexample.com%2Fcb&state=st-1", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("authorize status = %d, want 302", rec.Code)
	}
	location, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse redirect: %v", err)
	}
	if got := location.Scheme + "://" + location.Host + location.Path; got != "https://example.com/cb" {
		t.Fatalf("redirect target = %s", got)
	}
	code := location.Query().Get("code")
	if code == "" {
		t.Fatal("redirect must carry a code")
	}
	if location.Query().Get("state") != "st-1" {
		t.Fatalf("state not carried through: %q", location.Query().Get("state"))
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", "skill-id")
	form.Set("client_secret", "skill-secret")

	exchange := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		return rec
	}

	first := exchange()
	if first.Code != http.StatusOK {
		t.Fatalf("first exchange status = %d, body %s", first.Code, first.Body.String())
	}
	var payload struct {
		AccessToken  string `json:"access_token"`
		TokenType    string `json:"token_type"`
		RefreshToken string `json:"refresh_token"`
		Scope        string `json:"scope"`
	}
	if err := json.Unmarshal(first.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode token response: %v", err)
	}
	if payload.AccessToken != "stored-access-token" {
		t.Fatalf("access_token = %q, want plaintext stored token", payload.AccessToken)
	}
	if payload.TokenType != "Bearer" || payload.Scope != "smart-home" {
		t.Fatalf("unexpected token response: %+v", payload)
	}
	if payload.RefreshToken != "refresh-stored-access-token" {
		t.Fatalf("refresh_token = %q", payload.RefreshToken)
	}

	second := exchange()
	if second.Code != http.StatusBadRequest {
		t.Fatalf("second exchange status = %d, want 400", second.Code)
	}
	if !strings.Contains(second.Body.String(), "Invalid or expired authorization code") {
		t.Fatalf("unexpected body: %s", second.Body.String())
	}
}

func TestAuthorizeOmitsStateWhenClientSentNone(t *testing.T) {
	env := newTestEnv(t)
	env.seedToken(t, "stored-access-token")

	req := httptest.NewRequest(http.MethodGet,
		"/dialog/authorize?response_type=code&client_id=skill-id&redirect_uri=https%3A%2F%2Fexample.com%2Fcb", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	location, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse redirect: %v", err)
	}
	if location.Query().Get("code") == "" {
		t.Fatal("redirect must carry a code")
	}
	if _, present := location.Query()["state"]; present {
		t.Fatalf("state must be absent when the client sent none: %s", location.RawQuery)
	}
}

func TestTokenRejectsBadClientCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.seedToken(t, "stored-access-token")

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", "whatever")
	form.Set("client_id", "skill-id")
	form.Set("client_secret", "wrong-secret")

	req := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestDiscoveryDocument(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/.well-known/oauth-authorization-server", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var doc struct {
		Issuer                string   `json:"issuer"`
		AuthorizationEndpoint string   `json:"authorization_endpoint"`
		TokenEndpoint         string   `json:"token_endpoint"`
		GrantTypes            []string `json:"grant_types_supported"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode discovery: %v", err)
	}
	if doc.Issuer != "http://bridge.local" {
		t.Fatalf("issuer = %q", doc.Issuer)
	}
	if doc.AuthorizationEndpoint != "http://bridge.local/dialog/authorize" ||
		doc.TokenEndpoint != "http://bridge.local/oauth/token" {
		t.Fatalf("unexpected endpoints: %+v", doc)
	}
	if len(doc.GrantTypes) != 2 {
		t.Fatalf("grant types = %v", doc.GrantTypes)
	}
}
