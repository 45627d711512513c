// Package identity wraps the relying-party side of the OIDC flow against
// the LMS identity provider. The gateway only keeps the ID token from the
// exchange, it is what the backend admin-login endpoint accepts.
package identity

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coursedesk/admin-gateway/internal/config"
	"github.com/coursedesk/admin-gateway/internal/models"
	"github.com/zitadel/oidc/v2/pkg/client/rp"
	httphelper "github.com/zitadel/oidc/v2/pkg/http"
	"github.com/zitadel/oidc/v2/pkg/oidc"
)

type Client struct {
	client      rp.RelyingParty
	idGenerator models.IDGenerator
}

// AuthHandler returns a handler that starts the login flow by redirecting
// to the identity provider authorization page. The state is minted by the
// caller and round-trips through the provider unchanged.
func (c *Client) AuthHandler(state string) http.HandlerFunc {
	stateFunc := func() string {
		return state
	}
	return rp.AuthURLHandler(stateFunc, c.client)
}

// CodeExchangeHandler returns a handler that receives the authorization
// code from the identity provider, swaps it for tokens and hands the ID
// token to the callback together with the state.
func (c *Client) CodeExchangeHandler(tokenCallback func(token models.AuthToken, state string) error) http.HandlerFunc {
	return rp.CodeExchangeHandler(c.getCodeExchangeCallback(tokenCallback), c.client)
}

func (c *Client) getCodeExchangeCallback(tokenCallback func(token models.AuthToken, state string) error) func(
	w http.ResponseWriter,
	r *http.Request,
	tokens *oidc.Tokens[*oidc.IDTokenClaims],
	state string,
	client rp.RelyingParty,
) {
	return func(
		w http.ResponseWriter,
		r *http.Request,
		tokens *oidc.Tokens[*oidc.IDTokenClaims],
		state string,
		client rp.RelyingParty,
	) {
		id, err := c.idGenerator.ID()
		if err != nil {
			slog.Error("IDENTITY", "message", "generating token ID failed in code exchange", "error", err, "requestID", r.Header.Get("X-Request-ID"))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		var expiresAt time.Time
		if tokens.IDTokenClaims != nil {
			expiresAt = tokens.IDTokenClaims.GetExpiration()
		}
		identityToken := models.AuthToken{
			ID:        id,
			Type:      models.IdentityTokenType,
			Value:     tokens.IDToken,
			ExpiresAt: expiresAt,
		}
		err = tokenCallback(identityToken, state)
		if err != nil {
			slog.Error("IDENTITY", "message", "the identity token callback failed", "error", err, "requestID", r.Header.Get("X-Request-ID"))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}

type ClientOption func(*Client) error

func WithIdentityConfig(identityConfig config.IdentityConfig, e config.RunningEnvironment) ClientOption {
	makeClient := func(identityConfig config.IdentityConfig) (rp.RelyingParty, error) {
		options := []rp.Option{}
		if !identityConfig.UnsafeNoCookieHandler {
			cookieEncKey := []byte(identityConfig.CookieEncodingKey)
			cookieHashKey := []byte(identityConfig.CookieHashKey)
			if len(cookieEncKey) == 0 {
				cookieEncKey = nil
			}
			cookieHandler := httphelper.NewCookieHandler(cookieHashKey, cookieEncKey)
			options = append(options, rp.WithCookieHandler(cookieHandler))
			if identityConfig.UsePKCE {
				options = append(options, rp.WithPKCE(cookieHandler))
			}
		}
		return rp.NewRelyingPartyOIDC(
			identityConfig.Issuer,
			identityConfig.ClientID,
			string(identityConfig.ClientSecret),
			identityConfig.CallbackURI,
			identityConfig.Scopes,
			options...,
		)
	}
	return func(c *Client) error {
		err := identityConfig.Validate(e)
		if err != nil {
			return err
		}
		client, err := makeClient(identityConfig)
		if err != nil {
			return err
		}
		c.client = client
		return nil
	}
}

func WithIDGenerator(idGenerator models.IDGenerator) ClientOption {
	return func(c *Client) error {
		c.idGenerator = idGenerator
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
	if client.client == nil {
		return nil, fmt.Errorf("the OIDC relying party is not initialized")
	}
	if client.idGenerator == nil {
		client.idGenerator = models.ULIDGenerator{}
	}
	return &client, nil
}
