package login

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coursedesk/admin-gateway/internal/authflow"
	"github.com/coursedesk/admin-gateway/internal/backendauth"
	"github.com/coursedesk/admin-gateway/internal/config"
	"github.com/coursedesk/admin-gateway/internal/db"
	"github.com/coursedesk/admin-gateway/internal/gwerrors"
	"github.com/coursedesk/admin-gateway/internal/identity"
	"github.com/coursedesk/admin-gateway/internal/models"
	"github.com/coursedesk/admin-gateway/internal/redirects"
	"github.com/coursedesk/admin-gateway/internal/sessions"
	"github.com/coursedesk/admin-gateway/internal/tokenstore"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAuthBackend plays the backend auth endpoints the login flow
// touches: admin-login hands out the session's first access token and
// refresh cookie, logout just acknowledges.
type fakeAuthBackend struct {
	mu           sync.Mutex
	loginCalls   int
	logoutCalls  int
	lastIdentity string
	issuedToken  string
}

func (b *fakeAuthBackend) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		switch r.URL.Path {
		case "/auth/admin-login":
			b.loginCalls++
			b.lastIdentity = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			claims := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().UTC().Add(time.Hour))}
			token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("backend-secret"))
			require.NoError(t, err)
			b.issuedToken = token
			http.SetCookie(w, &http.Cookie{Name: "dashboard_refresh_token", Value: "refresh-after-login", HttpOnly: true})
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"token": token})
		case "/auth/logout":
			b.logoutCalls++
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

type loginFixture struct {
	provider     *testIdentityProvider
	backend      *fakeAuthBackend
	gateway      *httptest.Server
	gatewayURL   string
	adapter      *db.RedisAdapter
	sessionStore *sessions.InMemorySessionStore
}

func newLoginFixture(t *testing.T, authorized bool) *loginFixture {
	t.Helper()

	gatewayListener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	gatewayPort := gatewayListener.Addr().(*net.TCPAddr).Port
	gatewayURL := fmt.Sprintf("http://127.0.0.1:%d", gatewayPort)

	provider := &testIdentityProvider{
		Authorized:   authorized,
		RefreshToken: "provider-refresh-token",
		ClientID:     "dashboard",
		CallbackURI:  gatewayURL + "/auth/callback",
	}
	provider.Start()
	t.Cleanup(provider.Server().Close)

	backend := &fakeAuthBackend{}
	backendSrv := httptest.NewServer(backend.handler(t))
	t.Cleanup(backendSrv.Close)
	backendURL, err := url.Parse(backendSrv.URL)
	require.NoError(t, err)

	authConfig := config.AuthConfig{
		ExpiryBufferSeconds:   120,
		CacheFreshnessSeconds: 300,
		RefreshCookieName:     "dashboard_refresh_token",
		DefaultRole:           "admin",
	}
	backendClient, err := backendauth.NewClient(backendauth.WithBackendConfig(config.BackendConfig{BaseURL: backendURL}, authConfig))
	require.NoError(t, err)
	adapter, err := db.NewRedisAdapter(db.WithRedisConfig(config.RedisConfig{Type: config.DBTypeRedisMock}))
	require.NoError(t, err)
	identityClient, err := identity.NewClient(identity.WithIdentityConfig(provider.IdentityConfig(), config.Development))
	require.NoError(t, err)
	cache, err := tokenstore.NewTokenCache(
		tokenstore.WithTokenRepository(adapter),
		tokenstore.WithAuthConfig(authConfig),
	)
	require.NoError(t, err)
	resolver, err := redirects.NewResolver(redirects.WithSigninConfig(config.SigninConfig{
		Hosts:        []config.SigninHostPair{{Host: "admin.example.com", SigninHost: "lms.example.com"}},
		FallbackPath: "/",
	}))
	require.NoError(t, err)
	sessionStore := sessions.NewInMemorySessionStore()
	sessionHandler, err := sessions.NewSessionHandler(
		sessions.WithSessionConfig(
			config.SessionConfig{CookieName: "_dashboard_session", IdleSessionTTLSeconds: 3600, MaxSessionTTLSeconds: 86400},
			authConfig,
			config.Development,
		),
		sessions.WithSessionStore(&sessionStore),
	)
	require.NoError(t, err)
	logout, err := authflow.NewLogoutCoordinator(
		authflow.WithBackendClient(backendClient),
		authflow.WithTokenCache(cache),
		authflow.WithTokenRepository(adapter),
		authflow.WithSessionRepository(&sessionStore),
		authflow.WithRedirectResolver(resolver),
	)
	require.NoError(t, err)

	loginServer, err := NewLoginServer(
		WithSessionHandler(sessionHandler),
		WithIdentityClient(identityClient),
		WithBackendClient(backendClient),
		WithTokenRepository(adapter),
		WithLogoutCoordinator(logout),
	)
	require.NoError(t, err)

	e := echo.New()
	e.Pre(middleware.RequestID())
	loginServer.RegisterHandlers(e)
	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "dashboard home")
	})
	gateway := httptest.NewUnstartedServer(e)
	gateway.Listener = gatewayListener
	gateway.Start()
	t.Cleanup(gateway.Close)

	return &loginFixture{
		provider:     provider,
		backend:      backend,
		gateway:      gateway,
		gatewayURL:   gatewayURL,
		adapter:      adapter,
		sessionStore: &sessionStore,
	}
}

func (f *loginFixture) browser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(&cookiejar.Options{})
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func (f *loginFixture) sessionCookie(t *testing.T, client *http.Client) *http.Cookie {
	t.Helper()
	base, err := url.Parse(f.gatewayURL)
	require.NoError(t, err)
	for _, cookie := range client.Jar.Cookies(base) {
		if cookie.Name == "_dashboard_session" {
			return cookie
		}
	}
	t.Fatal("no session cookie was set")
	return nil
}

func (f *loginFixture) signIn(t *testing.T, client *http.Client) models.Session {
	t.Helper()
	res, err := client.Get(f.gatewayURL + "/auth/login")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	cookie := f.sessionCookie(t, client)
	session, err := f.sessionStore.GetSession(context.Background(), cookie.Value)
	require.NoError(t, err)
	return session
}

func TestLoginFlowStoresTokensAndRedirectsHome(t *testing.T) {
	fixture := newLoginFixture(t, true)
	client := fixture.browser(t)

	res, err := client.Get(fixture.gatewayURL + "/auth/login")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	// the flow ends back at the dashboard home page
	assert.Equal(t, fixture.gatewayURL+"/", res.Request.URL.String())

	cookie := fixture.sessionCookie(t, client)
	session, err := fixture.sessionStore.GetSession(context.Background(), cookie.Value)
	require.NoError(t, err)
	require.NotEqual(t, "", session.TokenID)
	assert.Equal(t, "admin", session.ViewAsRole)

	ctx := context.Background()
	accessToken, err := fixture.adapter.GetAccessToken(ctx, session.TokenID)
	require.NoError(t, err)
	assert.Equal(t, fixture.backend.issuedToken, accessToken.Value)
	identityToken, err := fixture.adapter.GetIdentityToken(ctx, session.TokenID)
	require.NoError(t, err)
	assert.Equal(t, fixture.backend.lastIdentity, identityToken.Value)
	refreshToken, err := fixture.adapter.GetRefreshToken(ctx, session.TokenID)
	require.NoError(t, err)
	assert.Equal(t, "refresh-after-login", refreshToken.Value)
	assert.Equal(t, 1, fixture.backend.loginCalls)
}

func TestLoginDeniedByProvider(t *testing.T) {
	fixture := newLoginFixture(t, false)
	client := fixture.browser(t)

	res, err := client.Get(fixture.gatewayURL + "/auth/login")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	cookie := fixture.sessionCookie(t, client)
	session, err := fixture.sessionStore.GetSession(context.Background(), cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, "", session.TokenID)
	assert.Equal(t, 0, fixture.backend.loginCalls)
}

func TestViewAsSwitchesRole(t *testing.T) {
	fixture := newLoginFixture(t, true)
	client := fixture.browser(t)
	session := fixture.signIn(t, client)

	res, err := client.Post(
		fixture.gatewayURL+"/auth/view-as",
		"application/json",
		strings.NewReader(`{"role": "student"}`),
	)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	stored, err := fixture.sessionStore.GetSession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, "student", stored.ViewAsRole)
}

func TestViewAsRequiresARole(t *testing.T) {
	fixture := newLoginFixture(t, true)
	client := fixture.browser(t)
	fixture.signIn(t, client)

	res, err := client.Post(
		fixture.gatewayURL+"/auth/view-as",
		"application/json",
		strings.NewReader(`{"role": ""}`),
	)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestViewAsAnonymousIsUnauthorized(t *testing.T) {
	fixture := newLoginFixture(t, true)
	client := fixture.browser(t)

	res, err := client.Post(
		fixture.gatewayURL+"/auth/view-as",
		"application/json",
		strings.NewReader(`{"role": "student"}`),
	)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestLogoutTearsDownTheSession(t *testing.T) {
	fixture := newLoginFixture(t, true)
	client := fixture.browser(t)
	session := fixture.signIn(t, client)

	res, err := client.Get(fixture.gatewayURL + "/auth/logout")
	require.NoError(t, err)
	defer res.Body.Close()
	// the sign-in host table has no entry for 127.0.0.1, so the
	// fallback path sends the browser to the home page
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, fixture.gatewayURL+"/", res.Request.URL.String())

	ctx := context.Background()
	_, err = fixture.sessionStore.GetSession(ctx, session.ID)
	assert.ErrorIs(t, err, gwerrors.ErrSessionNotFound)
	_, err = fixture.adapter.GetAccessToken(ctx, session.TokenID)
	assert.ErrorIs(t, err, gwerrors.ErrTokenNotFound)
	_, err = fixture.adapter.GetRefreshToken(ctx, session.TokenID)
	assert.ErrorIs(t, err, gwerrors.ErrTokenNotFound)
	assert.Equal(t, 1, fixture.backend.logoutCalls)
}
