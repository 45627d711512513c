// Package tokenrefresher proactively refreshes cached access tokens
// that are about to expire so proxied requests rarely pay the refresh
// round trip themselves.
package tokenrefresher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coursedesk/admin-gateway/internal/models"
	"github.com/go-co-op/gocron"
)

type refresherTokenCache interface {
	ExpiringSoon() []string
	Put(ctx context.Context, token models.AuthToken) error
}

type tokenRecoverer interface {
	Recover(ctx context.Context, tokenID string) (models.AuthToken, error)
}

type TokenRefresher struct {
	tokenCache      refresherTokenCache
	recoverer       tokenRecoverer
	intervalMinutes int
}

// GetScheduler returns a scheduler that periodically refreshes every
// cached token inside the expiry buffer. The caller owns starting and
// stopping it.
func (tr *TokenRefresher) GetScheduler() (*gocron.Scheduler, error) {
	s := gocron.NewScheduler(time.UTC)

	refreshExpiringTokensTask := func(job gocron.Job) {
		err := tr.RefreshExpiringTokens(job.Context())
		if err != nil {
			slog.Error("TOKEN REFRESHER", "message", "refreshing expiring tokens failed", "error", err)
		}
	}

	_, err := s.Every(tr.intervalMinutes).
		Minutes().
		DoWithJobDetails(refreshExpiringTokensTask)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// RefreshExpiringTokens runs one refresh sweep. Tokens that cannot be
// refreshed stay in place, the reactive recovery path will deal with
// them when the next request trips over the expiry.
func (tr *TokenRefresher) RefreshExpiringTokens(ctx context.Context) error {
	expiringTokenIDs := tr.tokenCache.ExpiringSoon()
	errorTokenIDs := []string{}
	for _, tokenID := range expiringTokenIDs {
		token, err := tr.recoverer.Recover(ctx, tokenID)
		if err != nil {
			slog.Error("TOKEN REFRESHER", "message", "recover failed", "tokenID", tokenID, "error", err)
			errorTokenIDs = append(errorTokenIDs, tokenID)
			continue
		}
		if err := tr.tokenCache.Put(ctx, token); err != nil {
			slog.Error("TOKEN REFRESHER", "message", "storing the refreshed token failed", "tokenID", tokenID, "error", err)
			errorTokenIDs = append(errorTokenIDs, tokenID)
			continue
		}
	}

	slog.Info(
		"TOKEN REFRESHER", "message",
		fmt.Sprintf(
			"%v/%v expiring access tokens refreshed",
			len(expiringTokenIDs)-len(errorTokenIDs),
			len(expiringTokenIDs),
		),
	)

	if len(errorTokenIDs) != 0 {
		return fmt.Errorf("some token IDs could not be refreshed %v", errorTokenIDs)
	}
	return nil
}

type TokenRefresherOption func(*TokenRefresher) error

func WithTokenCache(cache refresherTokenCache) TokenRefresherOption {
	return func(tr *TokenRefresher) error {
		tr.tokenCache = cache
		return nil
	}
}

func WithRecoverer(recoverer tokenRecoverer) TokenRefresherOption {
	return func(tr *TokenRefresher) error {
		tr.recoverer = recoverer
		return nil
	}
}

func WithIntervalMinutes(minutes int) TokenRefresherOption {
	return func(tr *TokenRefresher) error {
		if minutes <= 0 {
			return fmt.Errorf("the refresh interval must be positive, got %d", minutes)
		}
		tr.intervalMinutes = minutes
		return nil
	}
}

func NewTokenRefresher(options ...TokenRefresherOption) (*TokenRefresher, error) {
	tr := TokenRefresher{intervalMinutes: 1}
	for _, opt := range options {
		err := opt(&tr)
		if err != nil {
			return nil, err
		}
	}
	if tr.tokenCache == nil {
		return nil, fmt.Errorf("the token cache is not initialized")
	}
	if tr.recoverer == nil {
		return nil, fmt.Errorf("the token recoverer is not initialized")
	}
	return &tr, nil
}
