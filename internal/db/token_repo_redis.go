package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coursedesk/admin-gateway/internal/gwerrors"
	"github.com/coursedesk/admin-gateway/internal/models"
)

const (
	accessTokenPrefix   string = "accessToken"
	refreshTokenPrefix  string = "refreshToken"
	identityTokenPrefix string = "identityToken"
)

// GetAccessToken reads an access token from redis
func (r RedisAdapter) GetAccessToken(ctx context.Context, tokenID string) (models.AuthToken, error) {
	return r.getAuthToken(ctx, r.accessTokenKey(tokenID))
}

// GetRefreshToken reads a refresh token from redis
func (r RedisAdapter) GetRefreshToken(ctx context.Context, tokenID string) (models.AuthToken, error) {
	return r.getAuthToken(ctx, r.refreshTokenKey(tokenID))
}

// GetIdentityToken reads an identity provider token from redis
func (r RedisAdapter) GetIdentityToken(ctx context.Context, tokenID string) (models.AuthToken, error) {
	return r.getAuthToken(ctx, r.identityTokenKey(tokenID))
}

// SetAccessToken writes an access token to redis
func (r RedisAdapter) SetAccessToken(ctx context.Context, token models.AuthToken) error {
	if token.Type != models.AccessTokenType {
		return fmt.Errorf("token is not of the right type")
	}
	return r.setAuthToken(ctx, token)
}

// SetRefreshToken writes a refresh token to redis
func (r RedisAdapter) SetRefreshToken(ctx context.Context, token models.AuthToken) error {
	if token.Type != models.RefreshTokenType {
		return fmt.Errorf("token is not of the right type")
	}
	return r.setAuthToken(ctx, token)
}

// SetIdentityToken writes an identity provider token to redis
func (r RedisAdapter) SetIdentityToken(ctx context.Context, token models.AuthToken) error {
	if token.Type != models.IdentityTokenType {
		return fmt.Errorf("token is not of the right type")
	}
	return r.setAuthToken(ctx, token)
}

func (r RedisAdapter) RemoveAccessToken(ctx context.Context, tokenID string) error {
	return r.rdb.Del(ctx, r.accessTokenKey(tokenID)).Err()
}

func (r RedisAdapter) RemoveRefreshToken(ctx context.Context, tokenID string) error {
	return r.rdb.Del(ctx, r.refreshTokenKey(tokenID)).Err()
}

func (r RedisAdapter) RemoveIdentityToken(ctx context.Context, tokenID string) error {
	return r.rdb.Del(ctx, r.identityTokenKey(tokenID)).Err()
}

func (RedisAdapter) accessTokenKey(tokenID string) string {
	return accessTokenPrefix + ":" + tokenID
}

func (RedisAdapter) refreshTokenKey(tokenID string) string {
	return refreshTokenPrefix + ":" + tokenID
}

func (RedisAdapter) identityTokenKey(tokenID string) string {
	return identityTokenPrefix + ":" + tokenID
}

func (r RedisAdapter) getTokenKey(token models.AuthToken) (string, error) {
	switch token.Type {
	case models.AccessTokenType:
		return r.accessTokenKey(token.ID), nil
	case models.RefreshTokenType:
		return r.refreshTokenKey(token.ID), nil
	case models.IdentityTokenType:
		return r.identityTokenKey(token.ID), nil
	default:
		return "", fmt.Errorf("unknown token type %s", token.Type)
	}
}

// getAuthToken reads a specific token from redis, decrypting if necessary.
func (r RedisAdapter) getAuthToken(ctx context.Context, key string) (models.AuthToken, error) {
	output := models.AuthToken{}
	raw, err := r.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return output, err
	}

	err = r.deserializeToStruct(raw, &output)
	if err != nil {
		if err == gwerrors.ErrMissingDBResource {
			err = gwerrors.ErrTokenNotFound
		}
		return models.AuthToken{}, err
	}

	decToken, err := output.Decrypt(r.encryptor)
	if err != nil {
		return models.AuthToken{}, err
	}
	return decToken, nil
}

func (r RedisAdapter) setAuthToken(ctx context.Context, token models.AuthToken) error {
	key, err := r.getTokenKey(token)
	if err != nil {
		return err
	}

	encToken, err := token.Encrypt(r.encryptor)
	if err != nil {
		return err
	}

	slog.Debug("TOKEN REPO", "message", "saving token", "token", token)

	return r.rdb.HSet(ctx, key, r.serializeStruct(encToken)...).Err()
}
