package db

import (
	"context"
	"testing"
	"time"

	"github.com/coursedesk/admin-gateway/internal/gwerrors"
	"github.com/coursedesk/admin-gateway/internal/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Check that RedisAdapter implements the repository interfaces.
// This test would fail to compile otherwise.
func TestRedisAdapterIsTokenRepository(t *testing.T) {
	rdb := RedisAdapter{}
	_ = models.TokenRepository(rdb)
	_ = models.SessionRepository(rdb)
}

func newTestAdapter(t *testing.T, options ...RedisAdapterOption) *RedisAdapter {
	t.Helper()
	options = append([]RedisAdapterOption{func(r *RedisAdapter) error {
		r.rdb = NewMockRedisClient()
		return nil
	}}, options...)
	adapter, err := NewRedisAdapter(options...)
	require.NoError(t, err)
	return adapter
}

func TestTokenRoundTrip(t *testing.T) {
	adapter := newTestAdapter(t)
	ctx := context.Background()
	token := models.AuthToken{
		ID:        "token-1",
		Value:     "some-jwt-value",
		ExpiresAt: time.Now().UTC().Add(time.Hour).Truncate(time.Second),
		Type:      models.AccessTokenType,
	}
	require.NoError(t, adapter.SetAccessToken(ctx, token))
	loaded, err := adapter.GetAccessToken(ctx, "token-1")
	require.NoError(t, err)
	if diff := cmp.Diff(token, loaded); diff != "" {
		t.Errorf("loaded token differs (-want +got):\n%s", diff)
	}
}

func TestTokenTypeChecked(t *testing.T) {
	adapter := newTestAdapter(t)
	ctx := context.Background()
	token := models.AuthToken{ID: "token-1", Value: "v", Type: models.AccessTokenType}
	assert.Error(t, adapter.SetRefreshToken(ctx, token))
	assert.Error(t, adapter.SetIdentityToken(ctx, token))
}

func TestTokenNotFound(t *testing.T) {
	adapter := newTestAdapter(t)
	_, err := adapter.GetAccessToken(context.Background(), "missing")
	assert.ErrorIs(t, err, gwerrors.ErrTokenNotFound)
}

func TestTokenRemove(t *testing.T) {
	adapter := newTestAdapter(t)
	ctx := context.Background()
	token := models.AuthToken{ID: "token-1", Value: "v", Type: models.RefreshTokenType}
	require.NoError(t, adapter.SetRefreshToken(ctx, token))
	require.NoError(t, adapter.RemoveRefreshToken(ctx, "token-1"))
	_, err := adapter.GetRefreshToken(ctx, "token-1")
	assert.ErrorIs(t, err, gwerrors.ErrTokenNotFound)
}

func TestTokenRoundTripEncrypted(t *testing.T) {
	adapter := newTestAdapter(t, WithEncryption("my-awesome-32-byte-encryption-ke"))
	ctx := context.Background()
	token := models.AuthToken{
		ID:    "token-1",
		Value: "super-secret-jwt",
		Type:  models.AccessTokenType,
	}
	require.NoError(t, adapter.SetAccessToken(ctx, token))

	// the value at rest must not be the plaintext
	raw, err := adapter.rdb.HGetAll(ctx, adapter.accessTokenKey("token-1")).Result()
	require.NoError(t, err)
	assert.NotEqual(t, token.Value, raw["Value"])

	loaded, err := adapter.GetAccessToken(ctx, "token-1")
	require.NoError(t, err)
	assert.Equal(t, token.Value, loaded.Value)
}

func TestSessionRoundTrip(t *testing.T) {
	adapter := newTestAdapter(t)
	ctx := context.Background()
	session := models.Session{
		ID:             "session-1",
		CreatedAt:      time.Now().UTC().Truncate(time.Second),
		ExpiresAt:      time.Now().UTC().Add(time.Hour).Truncate(time.Second),
		IdleTTLSeconds: 3600,
		MaxTTLSeconds:  86400,
		TokenID:        "token-1",
		ViewAsRole:     "instructor",
	}
	require.NoError(t, adapter.SetSession(ctx, session))
	loaded, err := adapter.GetSession(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, session, loaded)

	require.NoError(t, adapter.RemoveSession(ctx, "session-1"))
	_, err = adapter.GetSession(ctx, "session-1")
	assert.ErrorIs(t, err, gwerrors.ErrSessionNotFound)
}
