package authflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coursedesk/admin-gateway/internal/backendauth"
	"github.com/coursedesk/admin-gateway/internal/models"
	"github.com/coursedesk/admin-gateway/internal/redirects"
)

type tokenCache interface {
	Clear(ctx context.Context, tokenID string) error
}

// LogoutCoordinator tears a session down. Every step is best effort:
// a step failing is logged and the teardown moves on, because the one
// thing logout must guarantee is that the browser ends up signed out
// and on a sign-in page.
type LogoutCoordinator struct {
	client      *backendauth.Client
	tokenCache  tokenCache
	tokenRepo   models.TokenRepository
	sessionRepo models.SessionRepository
	resolver    *redirects.Resolver
}

type LogoutCoordinatorOption func(*LogoutCoordinator) error

func WithBackendClient(client *backendauth.Client) LogoutCoordinatorOption {
	return func(l *LogoutCoordinator) error {
		l.client = client
		return nil
	}
}

func WithTokenCache(cache tokenCache) LogoutCoordinatorOption {
	return func(l *LogoutCoordinator) error {
		l.tokenCache = cache
		return nil
	}
}

func WithTokenRepository(tokenRepo models.TokenRepository) LogoutCoordinatorOption {
	return func(l *LogoutCoordinator) error {
		l.tokenRepo = tokenRepo
		return nil
	}
}

func WithSessionRepository(sessionRepo models.SessionRepository) LogoutCoordinatorOption {
	return func(l *LogoutCoordinator) error {
		l.sessionRepo = sessionRepo
		return nil
	}
}

func WithRedirectResolver(resolver *redirects.Resolver) LogoutCoordinatorOption {
	return func(l *LogoutCoordinator) error {
		l.resolver = resolver
		return nil
	}
}

func NewLogoutCoordinator(options ...LogoutCoordinatorOption) (*LogoutCoordinator, error) {
	coordinator := LogoutCoordinator{}
	for _, opt := range options {
		err := opt(&coordinator)
		if err != nil {
			return nil, err
		}
	}
	if coordinator.tokenRepo == nil {
		return nil, fmt.Errorf("the token repository is not initialized")
	}
	if coordinator.sessionRepo == nil {
		return nil, fmt.Errorf("the session repository is not initialized")
	}
	if coordinator.resolver == nil {
		return nil, fmt.Errorf("the redirect resolver is not initialized")
	}
	return &coordinator, nil
}

// Logout tears down the session and all of its tokens and returns the
// URL the browser should be redirected to.
func (l *LogoutCoordinator) Logout(ctx context.Context, session models.Session, host string) string {
	requestID := requestIDFromContext(ctx)
	tokenID := session.TokenID

	if l.client != nil && tokenID != "" {
		// read the repo directly, teardown must never kick off a fresh
		// token acquisition just to decorate the logout call
		accessToken := models.AuthToken{}
		if token, err := l.tokenRepo.GetAccessToken(ctx, tokenID); err == nil {
			accessToken = token
		}
		l.client.Logout(ctx, accessToken)
	}

	if tokenID != "" {
		if l.tokenCache != nil {
			if err := l.tokenCache.Clear(ctx, tokenID); err != nil {
				slog.Info("LOGOUT", "message", "clearing the token cache failed", "tokenID", tokenID, "error", err, "requestID", requestID)
			}
		}
		l.removeToken(ctx, "access", tokenID, l.tokenRepo.RemoveAccessToken, requestID)
		l.removeToken(ctx, "refresh", tokenID, l.tokenRepo.RemoveRefreshToken, requestID)
		l.removeToken(ctx, "identity", tokenID, l.tokenRepo.RemoveIdentityToken, requestID)
	}

	if session.ID != "" {
		if err := l.sessionRepo.RemoveSession(ctx, session.ID); err != nil {
			slog.Info("LOGOUT", "message", "removing the session failed", "sessionID", session.ID, "error", err, "requestID", requestID)
		}
	}

	signinURL := l.resolver.SigninURL(host)
	slog.Info("LOGOUT", "message", "session torn down", "sessionID", session.ID, "redirect", signinURL, "requestID", requestID)
	return signinURL
}

func (l *LogoutCoordinator) removeToken(
	ctx context.Context,
	kind string,
	tokenID string,
	remove func(context.Context, string) error,
	requestID string,
) {
	if err := remove(ctx, tokenID); err != nil {
		slog.Info("LOGOUT", "message", "removing a token failed", "kind", kind, "tokenID", tokenID, "error", err, "requestID", requestID)
	}
}

type requestIDContextKey struct{}

// WithRequestID tags the context with the request ID so teardown logs
// can be correlated with the request that triggered them.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDContextKey{}).(string)
	return requestID
}
