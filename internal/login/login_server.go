// Package login owns the browser-facing authentication endpoints: the
// OIDC sign-in flow against the LMS identity provider, the exchange of
// the resulting identity token for a backend access token, switching
// the view-as role and signing out.
package login

import (
	"fmt"

	"github.com/coursedesk/admin-gateway/internal/authflow"
	"github.com/coursedesk/admin-gateway/internal/backendauth"
	"github.com/coursedesk/admin-gateway/internal/identity"
	"github.com/coursedesk/admin-gateway/internal/models"
	"github.com/coursedesk/admin-gateway/internal/sessions"
	"github.com/labstack/echo/v4"
)

type LoginServer struct {
	sessionHandler *sessions.SessionHandler
	identityClient *identity.Client
	backendClient  *backendauth.Client
	tokenRepo      models.TokenRepository
	logout         *authflow.LogoutCoordinator
	appRedirectURL string
}

func (l *LoginServer) RegisterHandlers(e *echo.Echo, commonMiddlewares ...echo.MiddlewareFunc) {
	g := e.Group("/auth", append(commonMiddlewares, l.sessionHandler.Middleware())...)
	g.GET("/login", l.GetLogin)
	g.GET("/callback", l.GetCallback)
	g.GET("/logout", l.GetLogout)
	g.POST("/view-as", l.PostViewAs)
}

type LoginServerOption func(*LoginServer) error

func WithSessionHandler(sessionHandler *sessions.SessionHandler) LoginServerOption {
	return func(l *LoginServer) error {
		l.sessionHandler = sessionHandler
		return nil
	}
}

func WithIdentityClient(identityClient *identity.Client) LoginServerOption {
	return func(l *LoginServer) error {
		l.identityClient = identityClient
		return nil
	}
}

func WithBackendClient(backendClient *backendauth.Client) LoginServerOption {
	return func(l *LoginServer) error {
		l.backendClient = backendClient
		return nil
	}
}

func WithTokenRepository(tokenRepo models.TokenRepository) LoginServerOption {
	return func(l *LoginServer) error {
		l.tokenRepo = tokenRepo
		return nil
	}
}

func WithLogoutCoordinator(logout *authflow.LogoutCoordinator) LoginServerOption {
	return func(l *LoginServer) error {
		l.logout = logout
		return nil
	}
}

func WithAppRedirectURL(appRedirectURL string) LoginServerOption {
	return func(l *LoginServer) error {
		l.appRedirectURL = appRedirectURL
		return nil
	}
}

func NewLoginServer(options ...LoginServerOption) (*LoginServer, error) {
	server := LoginServer{appRedirectURL: "/"}
	for _, opt := range options {
		err := opt(&server)
		if err != nil {
			return nil, err
		}
	}
	if server.sessionHandler == nil {
		return nil, fmt.Errorf("the session handler is not initialized")
	}
	if server.identityClient == nil {
		return nil, fmt.Errorf("the identity client is not initialized")
	}
	if server.backendClient == nil {
		return nil, fmt.Errorf("the backend auth client is not initialized")
	}
	if server.tokenRepo == nil {
		return nil, fmt.Errorf("the token repository is not initialized")
	}
	if server.logout == nil {
		return nil, fmt.Errorf("the logout coordinator is not initialized")
	}
	return &server, nil
}
