// Package backendauth talks to the authentication endpoints of the
// backend REST API. The gateway never mints its own access tokens, it
// only asks the backend for new ones and stores what it gets back.
package backendauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/coursedesk/admin-gateway/internal/config"
	"github.com/coursedesk/admin-gateway/internal/gwerrors"
	"github.com/coursedesk/admin-gateway/internal/models"
)

const (
	refreshPath    = "/auth/refresh"
	adminLoginPath = "/auth/admin-login"
	logoutPath     = "/auth/logout"
)

// tokenResponse is the body the backend returns from both the refresh
// and the admin-login endpoint.
type tokenResponse struct {
	Token string `json:"token"`
}

type Client struct {
	baseURL           *url.URL
	refreshCookieName string
	httpClient        *http.Client
}

type ClientOption func(*Client) error

func WithBackendConfig(backendConfig config.BackendConfig, authConfig config.AuthConfig) ClientOption {
	return func(c *Client) error {
		if backendConfig.BaseURL == nil {
			return fmt.Errorf("the backend base URL is not set")
		}
		c.baseURL = backendConfig.BaseURL
		c.refreshCookieName = authConfig.RefreshCookieName
		return nil
	}
}

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) error {
		c.httpClient = httpClient
		return nil
	}
}

func NewClient(options ...ClientOption) (*Client, error) {
	client := Client{}
	for _, opt := range options {
		err := opt(&client)
		if err != nil {
			return nil, err
		}
	}
	if client.baseURL == nil {
		return nil, fmt.Errorf("the backend base URL is not initialized")
	}
	if client.refreshCookieName == "" {
		return nil, fmt.Errorf("the refresh cookie name is not initialized")
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &client, nil
}

// Refresh asks the backend for a new access token. The refresh token is
// an opaque value forwarded as a cookie exactly as the browser would
// send it, the gateway never inspects it. When the backend rotates the
// refresh cookie the rotated credential is returned alongside the new
// access token.
func (c *Client) Refresh(ctx context.Context, refreshToken models.AuthToken) (models.AuthToken, *models.AuthToken, error) {
	req, err := c.newRequest(ctx, refreshPath, nil)
	if err != nil {
		return models.AuthToken{}, nil, err
	}
	req.AddCookie(&http.Cookie{Name: c.refreshCookieName, Value: refreshToken.Value})
	token, rotated, err := c.doTokenRequest(req)
	if err != nil {
		return models.AuthToken{}, nil, err
	}
	accessToken, err := c.newAccessToken(refreshToken.ID, token)
	if err != nil {
		return models.AuthToken{}, nil, err
	}
	return accessToken, c.newRefreshToken(refreshToken.ID, rotated), nil
}

// AdminLogin exchanges an identity token for a fresh access token. This
// is how a session gets its first access token and the recovery path of
// last resort before giving up on the session. The backend sets the
// refresh cookie on this response, which is returned as the second
// value when present.
func (c *Client) AdminLogin(ctx context.Context, identityToken models.AuthToken) (models.AuthToken, *models.AuthToken, error) {
	req, err := c.newRequest(ctx, adminLoginPath, nil)
	if err != nil {
		return models.AuthToken{}, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+identityToken.Value)
	token, rotated, err := c.doTokenRequest(req)
	if err != nil {
		return models.AuthToken{}, nil, err
	}
	accessToken, err := c.newAccessToken(identityToken.ID, token)
	if err != nil {
		return models.AuthToken{}, nil, err
	}
	return accessToken, c.newRefreshToken(identityToken.ID, rotated), nil
}

// Logout notifies the backend that the session is over. Failures are
// logged and swallowed, a dead backend must not keep a user signed in.
func (c *Client) Logout(ctx context.Context, accessToken models.AuthToken) {
	req, err := c.newRequest(ctx, logoutPath, nil)
	if err != nil {
		slog.Info("BACKEND AUTH", "message", "could not build logout request", "error", err)
		return
	}
	if accessToken.Value != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken.Value)
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		slog.Info("BACKEND AUTH", "message", "backend logout failed", "error", err)
		return
	}
	defer res.Body.Close()
	io.Copy(io.Discard, res.Body)
	if res.StatusCode >= 400 {
		slog.Info("BACKEND AUTH", "message", "backend logout rejected", "status", res.StatusCode)
	}
}

func (c *Client) newRequest(ctx context.Context, path string, body any) (*http.Request, error) {
	reqURL := c.baseURL.JoinPath(path)
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL.String(), reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) doTokenRequest(req *http.Request) (token string, rotatedRefresh string, err error) {
	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", gwerrors.ErrBackendAuth, err)
	}
	defer res.Body.Close()
	switch {
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		io.Copy(io.Discard, res.Body)
		return "", "", gwerrors.ErrAuthExpired
	case res.StatusCode >= 400:
		io.Copy(io.Discard, res.Body)
		return "", "", fmt.Errorf("%w: unexpected status %d from %s", gwerrors.ErrBackendAuth, res.StatusCode, req.URL.Path)
	}
	var body tokenResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return "", "", fmt.Errorf("%w: cannot decode token response: %v", gwerrors.ErrBackendAuth, err)
	}
	if body.Token == "" {
		return "", "", fmt.Errorf("%w: the token response is empty", gwerrors.ErrBackendAuth)
	}
	for _, cookie := range res.Cookies() {
		if cookie.Name == c.refreshCookieName && cookie.Value != "" {
			rotatedRefresh = cookie.Value
		}
	}
	return body.Token, rotatedRefresh, nil
}

// newRefreshToken wraps a rotated refresh credential, nil when the
// backend did not set one.
func (c *Client) newRefreshToken(tokenID string, value string) *models.AuthToken {
	if value == "" {
		return nil
	}
	return &models.AuthToken{
		ID:    tokenID,
		Value: value,
		Type:  models.RefreshTokenType,
	}
}

func (c *Client) newAccessToken(tokenID string, raw string) (models.AuthToken, error) {
	claims, err := models.ParseTokenClaims(raw)
	if err != nil {
		return models.AuthToken{}, err
	}
	expiresAt := time.Time{}
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return models.AuthToken{
		ID:        tokenID,
		Value:     raw,
		ExpiresAt: expiresAt,
		Type:      models.AccessTokenType,
	}, nil
}
