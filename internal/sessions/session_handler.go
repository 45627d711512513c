// Package sessions binds a browser cookie to the gateway's view of who
// is signed in: which token ID backs the session and which role the
// admin is currently viewing the dashboard as.
package sessions

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coursedesk/admin-gateway/internal/config"
	"github.com/coursedesk/admin-gateway/internal/gwerrors"
	"github.com/coursedesk/admin-gateway/internal/models"
	"github.com/labstack/echo/v4"
)

// SessionCtxKey is where the middleware parks the session on the echo
// context for downstream handlers.
const SessionCtxKey = "dashboard_session"

type SessionHandler struct {
	sessionMaker SessionMaker
	sessionStore models.SessionRepository
	cookieName   string
	secureCookie bool
}

// Middleware loads (or creates) the session before the handler runs and
// saves it afterwards, so handlers can mutate the session in place.
func (sh *SessionHandler) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			session, err := sh.LoadOrCreate(c)
			if err != nil {
				slog.Info(
					"SESSION MIDDLEWARE",
					"message", "could not load or create a session",
					"error", err,
					"requestID", c.Request().Header.Get(echo.HeaderXRequestID),
				)
				return err
			}
			c.Set(SessionCtxKey, &session)
			err = next(c)
			if c.Get(SessionCtxKey) == nil {
				// the session was torn down during the request, writing
				// it back would resurrect it
				return err
			}
			saveErr := sh.Save(c)
			if saveErr != nil {
				slog.Info(
					"SESSION MIDDLEWARE",
					"message", "could not save the session",
					"sessionID", session.ID,
					"error", saveErr,
					"requestID", c.Request().Header.Get(echo.HeaderXRequestID),
				)
			}
			return err
		}
	}
}

// Get returns the session the middleware put on the request context.
func (sh *SessionHandler) Get(c echo.Context) (*models.Session, error) {
	sessionRaw := c.Get(SessionCtxKey)
	if sessionRaw == nil {
		return nil, gwerrors.ErrSessionNotFound
	}
	session, ok := sessionRaw.(*models.Session)
	if !ok {
		return nil, gwerrors.ErrSessionParse
	}
	return session, nil
}

// Create mints a new anonymous session and sets its cookie.
func (sh *SessionHandler) Create(c echo.Context) (models.Session, error) {
	session, err := sh.sessionMaker.NewSession()
	if err != nil {
		return models.Session{}, err
	}
	c.SetCookie(&http.Cookie{
		Name:     sh.cookieName,
		Value:    session.ID,
		Secure:   sh.secureCookie,
		HttpOnly: true,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		Expires:  session.CreatedAt.Add(session.MaxTTL()),
	})
	return session, nil
}

// Load reads the session ID from the cookie and loads the session from
// the store, touching it to push out the idle expiry.
func (sh *SessionHandler) Load(c echo.Context) (models.Session, error) {
	cookie, err := c.Cookie(sh.cookieName)
	if err != nil {
		if err == http.ErrNoCookie {
			return models.Session{}, gwerrors.ErrSessionNotFound
		}
		return models.Session{}, err
	}
	session, err := sh.sessionStore.GetSession(c.Request().Context(), cookie.Value)
	if err != nil {
		return models.Session{}, err
	}
	if session.Expired() {
		return models.Session{}, gwerrors.ErrSessionExpired
	}
	session.Touch()
	return session, nil
}

func (sh *SessionHandler) LoadOrCreate(c echo.Context) (models.Session, error) {
	session, err := sh.Load(c)
	switch {
	case err == nil:
		return session, nil
	case err == gwerrors.ErrSessionExpired || err == gwerrors.ErrSessionNotFound:
		return sh.Create(c)
	default:
		return models.Session{}, err
	}
}

// Save persists the session currently on the request context.
func (sh *SessionHandler) Save(c echo.Context) error {
	session, err := sh.Get(c)
	if err != nil {
		return err
	}
	return sh.sessionStore.SetSession(c.Request().Context(), *session)
}

// Remove deletes the session from the store and expires its cookie.
func (sh *SessionHandler) Remove(c echo.Context, session models.Session) error {
	c.SetCookie(&http.Cookie{
		Name:     sh.cookieName,
		Value:    "",
		Secure:   sh.secureCookie,
		HttpOnly: true,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
	c.Set(SessionCtxKey, nil)
	return sh.sessionStore.RemoveSession(c.Request().Context(), session.ID)
}

type SessionHandlerOption func(*SessionHandler) error

func WithSessionConfig(c config.SessionConfig, authConfig config.AuthConfig, e config.RunningEnvironment) SessionHandlerOption {
	return func(sh *SessionHandler) error {
		if err := c.Validate(); err != nil {
			return err
		}
		sh.sessionMaker = NewSessionMaker(
			WithIdleSessionTTLSeconds(c.IdleSessionTTLSeconds),
			WithMaxSessionTTLSeconds(c.MaxSessionTTLSeconds),
			WithDefaultRole(authConfig.DefaultRole),
		)
		sh.cookieName = c.CookieName
		sh.secureCookie = e != config.Development
		return nil
	}
}

func WithSessionStore(store models.SessionRepository) SessionHandlerOption {
	return func(sh *SessionHandler) error {
		sh.sessionStore = store
		return nil
	}
}

func NewSessionHandler(options ...SessionHandlerOption) (*SessionHandler, error) {
	sh := SessionHandler{}
	for _, opt := range options {
		err := opt(&sh)
		if err != nil {
			return nil, err
		}
	}
	if sh.sessionMaker == nil {
		return nil, fmt.Errorf("the session maker is not initialized")
	}
	if sh.sessionStore == nil {
		return nil, fmt.Errorf("the session store is not initialized")
	}
	return &sh, nil
}
