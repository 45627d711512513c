package authflow

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coursedesk/admin-gateway/internal/backendauth"
	"github.com/coursedesk/admin-gateway/internal/config"
	"github.com/coursedesk/admin-gateway/internal/db"
	"github.com/coursedesk/admin-gateway/internal/gwerrors"
	"github.com/coursedesk/admin-gateway/internal/models"
	"github.com/coursedesk/admin-gateway/internal/redirects"
	"github.com/coursedesk/admin-gateway/internal/tokenstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type logoutFixture struct {
	coordinator *LogoutCoordinator
	adapter     *db.RedisAdapter
	cache       *tokenstore.TokenCache
	logoutCalls *atomic.Int32
}

func newLogoutFixture(t *testing.T, logoutStatus int) *logoutFixture {
	t.Helper()
	var logoutCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/logout" {
			logoutCalls.Add(1)
		}
		w.WriteHeader(logoutStatus)
	}))
	t.Cleanup(srv.Close)
	parsed, err := url.Parse(srv.URL)
	require.NoError(t, err)
	client, err := backendauth.NewClient(backendauth.WithBackendConfig(
		config.BackendConfig{BaseURL: parsed},
		config.AuthConfig{RefreshCookieName: "dashboard_refresh_token"},
	))
	require.NoError(t, err)

	adapter, err := db.NewRedisAdapter(db.WithRedisConfig(config.RedisConfig{Type: config.DBTypeRedisMock}))
	require.NoError(t, err)
	cache, err := tokenstore.NewTokenCache(tokenstore.WithTokenRepository(adapter))
	require.NoError(t, err)
	resolver, err := redirects.NewResolver(redirects.WithSigninConfig(config.SigninConfig{
		Hosts:        []config.SigninHostPair{{Host: "admin.example.com", SigninHost: "lms.example.com"}},
		FallbackPath: "/",
	}))
	require.NoError(t, err)

	coordinator, err := NewLogoutCoordinator(
		WithBackendClient(client),
		WithTokenCache(cache),
		WithTokenRepository(adapter),
		WithSessionRepository(adapter),
		WithRedirectResolver(resolver),
	)
	require.NoError(t, err)
	return &logoutFixture{coordinator: coordinator, adapter: adapter, cache: cache, logoutCalls: &logoutCalls}
}

func (f *logoutFixture) seed(t *testing.T) models.Session {
	t.Helper()
	ctx := context.Background()
	expiresAt := time.Now().UTC().Add(time.Hour)
	require.NoError(t, f.cache.Put(ctx, models.AuthToken{ID: "token-1", Value: "access", ExpiresAt: expiresAt, Type: models.AccessTokenType}))
	require.NoError(t, f.adapter.SetRefreshToken(ctx, models.AuthToken{ID: "token-1", Value: "refresh", Type: models.RefreshTokenType}))
	require.NoError(t, f.adapter.SetIdentityToken(ctx, models.AuthToken{ID: "token-1", Value: "identity", ExpiresAt: expiresAt, Type: models.IdentityTokenType}))
	session := models.Session{ID: "session-1", TokenID: "token-1", ExpiresAt: expiresAt, ViewAsRole: "instructor"}
	require.NoError(t, f.adapter.SetSession(ctx, session))
	return session
}

func TestLogoutTearsEverythingDown(t *testing.T) {
	fixture := newLogoutFixture(t, http.StatusOK)
	session := fixture.seed(t)
	ctx := context.Background()

	signinURL := fixture.coordinator.Logout(ctx, session, "admin.example.com")
	assert.Equal(t, "https://lms.example.com/signin", signinURL)
	assert.Equal(t, int32(1), fixture.logoutCalls.Load())

	_, err := fixture.adapter.GetAccessToken(ctx, "token-1")
	assert.ErrorIs(t, err, gwerrors.ErrTokenNotFound)
	_, err = fixture.adapter.GetRefreshToken(ctx, "token-1")
	assert.ErrorIs(t, err, gwerrors.ErrTokenNotFound)
	_, err = fixture.adapter.GetIdentityToken(ctx, "token-1")
	assert.ErrorIs(t, err, gwerrors.ErrTokenNotFound)
	_, err = fixture.adapter.GetSession(ctx, "session-1")
	assert.ErrorIs(t, err, gwerrors.ErrSessionNotFound)
}

func TestLogoutSurvivesBackendFailure(t *testing.T) {
	fixture := newLogoutFixture(t, http.StatusInternalServerError)
	session := fixture.seed(t)
	ctx := context.Background()

	signinURL := fixture.coordinator.Logout(ctx, session, "admin.example.com")
	assert.Equal(t, "https://lms.example.com/signin", signinURL)

	// local teardown happened even though the backend said no
	_, err := fixture.adapter.GetSession(ctx, "session-1")
	assert.ErrorIs(t, err, gwerrors.ErrSessionNotFound)
}

func TestLogoutNeverAcquiresTokens(t *testing.T) {
	fixture := newLogoutFixture(t, http.StatusOK)
	var acquireCalls atomic.Int32
	cache, err := tokenstore.NewTokenCache(
		tokenstore.WithTokenRepository(fixture.adapter),
		tokenstore.WithAcquirer(func(ctx context.Context, tokenID string) (models.AuthToken, error) {
			acquireCalls.Add(1)
			return models.AuthToken{ID: tokenID, Value: "acquired", Type: models.AccessTokenType}, nil
		}),
	)
	require.NoError(t, err)
	require.NoError(t, WithTokenCache(cache)(fixture.coordinator))

	// no access token stored anywhere, which is exactly when a cache
	// lookup would fall through to acquisition
	ctx := context.Background()
	session := models.Session{ID: "session-2", TokenID: "token-2", ExpiresAt: time.Now().UTC().Add(time.Hour)}
	require.NoError(t, fixture.adapter.SetSession(ctx, session))

	fixture.coordinator.Logout(ctx, session, "admin.example.com")
	assert.Equal(t, int32(0), acquireCalls.Load())
	assert.Equal(t, int32(1), fixture.logoutCalls.Load())
	_, err = fixture.adapter.GetSession(ctx, "session-2")
	assert.ErrorIs(t, err, gwerrors.ErrSessionNotFound)
}

func TestLogoutUnknownHostFallsBack(t *testing.T) {
	fixture := newLogoutFixture(t, http.StatusOK)
	session := fixture.seed(t)

	signinURL := fixture.coordinator.Logout(context.Background(), session, "other.example.com")
	assert.Equal(t, "/", signinURL)
}
