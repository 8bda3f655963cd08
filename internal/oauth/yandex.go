package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultAuthURL     = "https://oauth.yandex.ru/authorize"
	defaultTokenURL    = "https://oauth.yandex.ru/token"
	defaultUserInfoURL = "https://login.yandex.ru/info"
)

// TokenPayload is the upstream token endpoint response.
type TokenPayload struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
}

// UserInfo carries the stable external identity of the account.
type UserInfo struct {
	ID    string `json:"id"`
	Login string `json:"login"`
}

// UpstreamError preserves the upstream HTTP failure so the gateway can
// propagate it verbatim.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream oauth error: %d - %s", e.Status, e.Body)
}

// Client talks to the upstream Yandex OAuth application.
type Client struct {
	clientID     string
	clientSecret string
	redirectURI  string
	authURL      string
	tokenURL     string
	userInfoURL  string
	http         *http.Client
}

func NewClient(clientID, clientSecret, redirectURI string) *Client {
	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
		authURL:      defaultAuthURL,
		tokenURL:     defaultTokenURL,
		userInfoURL:  defaultUserInfoURL,
		http:         &http.Client{Timeout: 15 * time.Second},
	}
}

// WithEndpoints overrides the upstream URLs, used by tests.
func (c *Client) WithEndpoints(authURL, tokenURL, userInfoURL string) *Client {
	c.authURL = authURL
	c.tokenURL = tokenURL
	c.userInfoURL = userInfoURL
	return c
}

// AuthURL builds the upstream login entry point, carrying state through.
func (c *Client) AuthURL(state string) string {
	params := url.Values{}
	params.Set("response_type", "code")
	params.Set("client_id", c.clientID)
	params.Set("redirect_uri", c.redirectURI)
	params.Set("force_confirm", "true")
	params.Set("state", state)
	return c.authURL + "?" + params.Encode()
}

// ExchangeCode swaps an upstream authorization code for tokens.
func (c *Client) ExchangeCode(ctx context.Context, code string) (TokenPayload, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("redirect_uri", c.redirectURI)
	return c.postToken(ctx, form)
}

// Refresh exchanges a refresh token for fresh tokens.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (TokenPayload, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	return c.postToken(ctx, form)
}

func (c *Client) postToken(ctx context.Context, form url.Values) (TokenPayload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return TokenPayload{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return TokenPayload{}, fmt.Errorf("upstream token request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return TokenPayload{}, &UpstreamError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	var payload TokenPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return TokenPayload{}, fmt.Errorf("decode upstream token response: %w", err)
	}
	return payload, nil
}

// UserInfo fetches the upstream account identity.
func (c *Client) UserInfo(ctx context.Context, accessToken string) (UserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userInfoURL, nil)
	if err != nil {
		return UserInfo{}, err
	}
	req.Header.Set("Authorization", "OAuth "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return UserInfo{}, fmt.Errorf("upstream userinfo request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return UserInfo{}, &UpstreamError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	var info UserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return UserInfo{}, fmt.Errorf("decode upstream userinfo: %w", err)
	}
	return info, nil
}
