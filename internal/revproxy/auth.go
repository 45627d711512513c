package revproxy

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coursedesk/admin-gateway/internal/authflow"
	"github.com/coursedesk/admin-gateway/internal/models"
	"github.com/coursedesk/admin-gateway/internal/sessions"
	"github.com/coursedesk/admin-gateway/internal/utils"
	"github.com/labstack/echo/v4"
)

// ViewAsRoleHeader carries the impersonated role to the backend. It is
// only attached when the session views the dashboard as a role other
// than the admin's own.
const ViewAsRoleHeader = "X-View-As-Role"

// authState is what the retrying transport needs to know about the
// request it is carrying: whose token it holds and where to send the
// browser if the session turns out to be beyond recovery. The transport
// flags tornDown when it ran the terminal teardown so the middlewares
// above it do not write the dead session back.
type authState struct {
	session  models.Session
	host     string
	tornDown bool
}

type authStateContextKey struct{}

func withAuthState(ctx context.Context, state *authState) context.Context {
	return context.WithValue(ctx, authStateContextKey{}, state)
}

func authStateFromContext(ctx context.Context) *authState {
	state, _ := ctx.Value(authStateContextKey{}).(*authState)
	return state
}

// auth resolves a usable access token before the request is proxied and
// injects the bearer and view-as headers. A token that cannot be made
// usable here means the request is never sent to the backend.
func (r *Revproxy) auth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			requestID := utils.GetRequestID(c)
			session, err := r.sessionHandler.Get(c)
			if err != nil || session.TokenID == "" {
				slog.Info(
					"PROXY AUTH",
					"message", "no signed-in session",
					"error", err,
					"requestID", requestID,
				)
				return respondSignin(c, r.resolverSigninURL(c.Request().Host))
			}
			ctx := authflow.WithRequestID(c.Request().Context(), requestID)
			token, err := r.tokenCache.Get(ctx, session.TokenID)
			if err != nil {
				slog.Info(
					"PROXY AUTH",
					"message", "no usable access token, tearing the session down",
					"sessionID", session.ID,
					"tokenID", session.TokenID,
					"error", err,
					"requestID", requestID,
				)
				signinURL := r.logout.Logout(ctx, *session, c.Request().Host)
				if removeErr := r.sessionHandler.Remove(c, *session); removeErr != nil {
					slog.Info("PROXY AUTH", "message", "removing the session cookie failed", "error", removeErr, "requestID", requestID)
				}
				return respondSignin(c, signinURL)
			}

			c.Request().Header.Set(echo.HeaderAuthorization, "Bearer "+token.Value)
			if session.ViewAsRole != "" && session.ViewAsRole != r.defaultRole {
				c.Request().Header.Set(ViewAsRoleHeader, session.ViewAsRole)
			} else {
				c.Request().Header.Del(ViewAsRoleHeader)
			}
			state := &authState{session: *session, host: c.Request().Host}
			c.SetRequest(c.Request().WithContext(withAuthState(ctx, state)))
			err = next(c)
			if state.tornDown {
				c.Set(sessions.SessionCtxKey, nil)
			}
			return err
		}
	}
}

// respondSignin answers a request that cannot be authenticated. Browser
// navigations get a redirect, API calls get a 401 with the sign-in
// destination in the body so the UI can redirect itself.
func respondSignin(c echo.Context, signinURL string) error {
	if wantsHTML(c.Request()) {
		return c.Redirect(http.StatusSeeOther, signinURL)
	}
	return c.JSON(http.StatusUnauthorized, map[string]string{
		"error":    "Unauthorized",
		"redirect": signinURL,
	})
}

func wantsHTML(req *http.Request) bool {
	return strings.Contains(req.Header.Get("Accept"), "text/html")
}
