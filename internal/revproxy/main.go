// Package revproxy proxies the dashboard's API calls to the backend
// while owning the request side of the token pipeline: bearer and
// view-as header injection before the request goes out, token recovery
// and the single retry when the backend says 401.
package revproxy

import (
	"fmt"
	"net/url"

	"github.com/coursedesk/admin-gateway/internal/config"
	"github.com/coursedesk/admin-gateway/internal/redirects"
	"github.com/coursedesk/admin-gateway/internal/sessions"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type Revproxy struct {
	backendURL     *url.URL
	defaultRole    string
	sessionHandler *sessions.SessionHandler
	tokenCache     tokenCache
	recoverer      tokenRecoverer
	logout         logoutCoordinator
	resolver       *redirects.Resolver
}

func (r *Revproxy) RegisterHandlers(e *echo.Echo, commonMiddlewares ...echo.MiddlewareFunc) error {
	transport, err := NewRetryingTransport(
		TransportWithTokenCache(r.tokenCache),
		TransportWithRecoverer(r.recoverer),
		TransportWithLogout(r.logout),
	)
	if err != nil {
		return err
	}
	backendProxy := proxyFromURL(r.backendURL, transport)
	backendHost := setHost(r.backendURL.Host)
	auth := r.auth()

	e.Group(
		"/api",
		append(commonMiddlewares, r.sessionHandler.Middleware(), auth, noCookies, backendHost, backendProxy)...,
	)
	return nil
}

func (r *Revproxy) resolverSigninURL(host string) string {
	return r.resolver.SigninURL(host)
}

// proxyFromURL creates a proxy that forwards requests to the given URL
// through the retrying transport.
func proxyFromURL(target *url.URL, transport *RetryingTransport) echo.MiddlewareFunc {
	mwconfig := middleware.ProxyConfig{
		Balancer: middleware.NewRoundRobinBalancer([]*middleware.ProxyTarget{
			{
				Name: target.String(),
				URL:  target,
			}}),
		Transport: transport,
	}
	return middleware.ProxyWithConfig(mwconfig)
}

type RevproxyOption func(*Revproxy) error

func WithBackendConfig(backendConfig config.BackendConfig, authConfig config.AuthConfig) RevproxyOption {
	return func(r *Revproxy) error {
		if err := backendConfig.Validate(); err != nil {
			return err
		}
		r.backendURL = backendConfig.BaseURL
		r.defaultRole = authConfig.DefaultRole
		return nil
	}
}

func WithSessionHandler(sessionHandler *sessions.SessionHandler) RevproxyOption {
	return func(r *Revproxy) error {
		r.sessionHandler = sessionHandler
		return nil
	}
}

func WithTokenCache(cache tokenCache) RevproxyOption {
	return func(r *Revproxy) error {
		r.tokenCache = cache
		return nil
	}
}

func WithRecoverer(recoverer tokenRecoverer) RevproxyOption {
	return func(r *Revproxy) error {
		r.recoverer = recoverer
		return nil
	}
}

func WithLogoutCoordinator(logout logoutCoordinator) RevproxyOption {
	return func(r *Revproxy) error {
		r.logout = logout
		return nil
	}
}

func WithRedirectResolver(resolver *redirects.Resolver) RevproxyOption {
	return func(r *Revproxy) error {
		r.resolver = resolver
		return nil
	}
}

func NewServer(options ...RevproxyOption) (*Revproxy, error) {
	server := Revproxy{}
	for _, opt := range options {
		err := opt(&server)
		if err != nil {
			return nil, err
		}
	}
	if server.backendURL == nil {
		return nil, fmt.Errorf("the backend URL is not initialized")
	}
	if server.sessionHandler == nil {
		return nil, fmt.Errorf("the session handler is not initialized")
	}
	if server.tokenCache == nil {
		return nil, fmt.Errorf("the token cache is not initialized")
	}
	if server.recoverer == nil {
		return nil, fmt.Errorf("the token recoverer is not initialized")
	}
	if server.logout == nil {
		return nil, fmt.Errorf("the logout coordinator is not initialized")
	}
	if server.resolver == nil {
		return nil, fmt.Errorf("the redirect resolver is not initialized")
	}
	return &server, nil
}
