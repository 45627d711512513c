package login

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/coursedesk/admin-gateway/internal/authflow"
	"github.com/coursedesk/admin-gateway/internal/models"
	"github.com/coursedesk/admin-gateway/internal/utils"
	"github.com/labstack/echo/v4"
)

// GetLogin starts the OIDC flow against the identity provider. The
// session ID doubles as the oauth state so the callback can be matched
// back to the session that started the flow.
func (l *LoginServer) GetLogin(c echo.Context) error {
	session, err := l.sessionHandler.Get(c)
	if err != nil {
		return err
	}
	return echo.WrapHandler(l.identityClient.AuthHandler(session.ID))(c)
}

// GetCallback receives the authorization code, stores the identity
// token and exchanges it with the backend for the session's first
// access token.
func (l *LoginServer) GetCallback(c echo.Context) error {
	session, err := l.sessionHandler.Get(c)
	if err != nil {
		return err
	}
	requestID := utils.GetRequestID(c)
	handler := l.identityClient.CodeExchangeHandler(func(identityToken models.AuthToken, state string) error {
		if state != session.ID {
			return fmt.Errorf("the oauth state does not match the session that started the login flow")
		}
		ctx := c.Request().Context()
		if err := l.tokenRepo.SetIdentityToken(ctx, identityToken); err != nil {
			return err
		}
		accessToken, refreshToken, err := l.backendClient.AdminLogin(ctx, identityToken)
		if err != nil {
			return err
		}
		if err := l.tokenRepo.SetAccessToken(ctx, accessToken); err != nil {
			return err
		}
		if refreshToken != nil {
			if err := l.tokenRepo.SetRefreshToken(ctx, *refreshToken); err != nil {
				return err
			}
		}
		session.TokenID = accessToken.ID
		slog.Info(
			"LOGIN",
			"message", "login completed",
			"sessionID", session.ID,
			"tokenID", accessToken.ID,
			"requestID", requestID,
		)
		return nil
	})
	if err := echo.WrapHandler(handler)(c); err != nil {
		return err
	}
	if session.TokenID == "" {
		// the code exchange failed and already wrote its error response
		return nil
	}
	return c.Redirect(http.StatusFound, l.appRedirectURL)
}

// GetLogout tears the session down and sends the browser to the
// sign-in page of the host it came from.
func (l *LoginServer) GetLogout(c echo.Context) error {
	session, err := l.sessionHandler.Get(c)
	if err != nil {
		return err
	}
	ctx := authflow.WithRequestID(c.Request().Context(), utils.GetRequestID(c))
	signinURL := l.logout.Logout(ctx, *session, c.Request().Host)
	if err := l.sessionHandler.Remove(c, *session); err != nil {
		slog.Info("LOGIN", "message", "removing the session cookie failed", "error", err, "requestID", utils.GetRequestID(c))
	}
	return c.Redirect(http.StatusFound, signinURL)
}

type viewAsRequest struct {
	Role string `json:"role"`
}

// PostViewAs switches the role the admin views the dashboard as. The
// role only lives in the session, the backend decides per request what
// the impersonated role may see.
func (l *LoginServer) PostViewAs(c echo.Context) error {
	session, err := l.sessionHandler.Get(c)
	if err != nil {
		return err
	}
	if session.TokenID == "" {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	var body viewAsRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot parse the view-as request")
	}
	if body.Role == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "a role is required")
	}
	session.ViewAsRole = body.Role
	slog.Info(
		"LOGIN",
		"message", "view-as role switched",
		"sessionID", session.ID,
		"role", body.Role,
		"requestID", utils.GetRequestID(c),
	)
	return c.JSON(http.StatusOK, map[string]string{"role": body.Role})
}
