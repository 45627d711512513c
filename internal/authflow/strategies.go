package authflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/coursedesk/admin-gateway/internal/backendauth"
	"github.com/coursedesk/admin-gateway/internal/gwerrors"
	"github.com/coursedesk/admin-gateway/internal/models"
)

// RecoveryStrategy is one way of obtaining a new access token for a
// token ID whose current one was rejected or is about to expire.
type RecoveryStrategy struct {
	Name    string
	Recover func(ctx context.Context, tokenID string) (models.AuthToken, error)
}

type refreshTokenStore interface {
	models.RefreshTokenGetter
	models.RefreshTokenSetter
}

// RefreshStrategy recovers through the backend refresh endpoint using
// the stored refresh credential. When no refresh credential is stored
// the strategy fails immediately, without a network call, the backend
// would reject the request anyway. A rotated refresh cookie coming back
// with the response replaces the stored credential.
func RefreshStrategy(refreshTokens refreshTokenStore, client *backendauth.Client) RecoveryStrategy {
	return RecoveryStrategy{
		Name: "refresh",
		Recover: func(ctx context.Context, tokenID string) (models.AuthToken, error) {
			refreshToken, err := refreshTokens.GetRefreshToken(ctx, tokenID)
			if err != nil {
				return models.AuthToken{}, fmt.Errorf("no refresh credential available: %w", err)
			}
			accessToken, rotated, err := client.Refresh(ctx, refreshToken)
			if err != nil {
				return models.AuthToken{}, err
			}
			storeRotatedRefreshToken(ctx, refreshTokens, rotated)
			return accessToken, nil
		},
	}
}

// IdentityExchangeStrategy recovers by exchanging the stored identity
// token through the backend admin-login endpoint. An expired identity
// token is rejected locally rather than sent to the backend.
func IdentityExchangeStrategy(identityTokens models.IdentityTokenGetter, refreshTokens models.RefreshTokenSetter, client *backendauth.Client) RecoveryStrategy {
	return RecoveryStrategy{
		Name: "identityExchange",
		Recover: func(ctx context.Context, tokenID string) (models.AuthToken, error) {
			identityToken, err := identityTokens.GetIdentityToken(ctx, tokenID)
			if err != nil {
				return models.AuthToken{}, fmt.Errorf("no identity token available: %w", err)
			}
			if identityToken.Expired() {
				return models.AuthToken{}, fmt.Errorf("the identity token is expired: %w", gwerrors.ErrTokenExpired)
			}
			accessToken, rotated, err := client.AdminLogin(ctx, identityToken)
			if err != nil {
				return models.AuthToken{}, err
			}
			storeRotatedRefreshToken(ctx, refreshTokens, rotated)
			return accessToken, nil
		},
	}
}

func storeRotatedRefreshToken(ctx context.Context, refreshTokens models.RefreshTokenSetter, rotated *models.AuthToken) {
	if rotated == nil {
		return
	}
	if err := refreshTokens.SetRefreshToken(ctx, *rotated); err != nil {
		slog.Info("AUTH RECOVERY", "message", "storing the rotated refresh credential failed", "tokenID", rotated.ID, "error", err)
	}
}

// Recoverer runs recovery strategies in order and returns the first
// token one of them produces. When every strategy fails the session is
// beyond saving and the caller gets ErrAuthExpired.
type Recoverer struct {
	strategies []RecoveryStrategy
}

type RecovererOption func(*Recoverer) error

func WithStrategies(strategies ...RecoveryStrategy) RecovererOption {
	return func(r *Recoverer) error {
		for _, strategy := range strategies {
			if strategy.Name == "" || strategy.Recover == nil {
				return fmt.Errorf("a recovery strategy needs both a name and a recover function")
			}
		}
		r.strategies = strategies
		return nil
	}
}

func NewRecoverer(options ...RecovererOption) (*Recoverer, error) {
	recoverer := Recoverer{}
	for _, opt := range options {
		err := opt(&recoverer)
		if err != nil {
			return nil, err
		}
	}
	if len(recoverer.strategies) == 0 {
		return nil, fmt.Errorf("at least one recovery strategy is required")
	}
	return &recoverer, nil
}

func (r *Recoverer) Recover(ctx context.Context, tokenID string) (models.AuthToken, error) {
	errs := []error{}
	for _, strategy := range r.strategies {
		token, err := strategy.Recover(ctx, tokenID)
		if err == nil {
			slog.Info("AUTH RECOVERY", "message", "recovered an access token", "strategy", strategy.Name, "tokenID", tokenID)
			return token, nil
		}
		slog.Info("AUTH RECOVERY", "message", "strategy failed", "strategy", strategy.Name, "tokenID", tokenID, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", strategy.Name, err))
	}
	return models.AuthToken{}, fmt.Errorf("%w: %w", gwerrors.ErrAuthExpired, errors.Join(errs...))
}
