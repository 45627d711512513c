package db

import (
	"context"

	"github.com/coursedesk/admin-gateway/internal/gwerrors"
	"github.com/coursedesk/admin-gateway/internal/models"
)

const sessionPrefix string = "session"

func (RedisAdapter) sessionKey(sessionID string) string {
	return sessionPrefix + ":" + sessionID
}

// GetSession reads a session from redis
func (r RedisAdapter) GetSession(ctx context.Context, sessionID string) (models.Session, error) {
	output := models.Session{}
	raw, err := r.rdb.HGetAll(ctx, r.sessionKey(sessionID)).Result()
	if err != nil {
		return models.Session{}, err
	}
	err = r.deserializeToStruct(raw, &output)
	if err != nil {
		if err == gwerrors.ErrMissingDBResource {
			err = gwerrors.ErrSessionNotFound
		}
		return models.Session{}, err
	}
	return output, nil
}

// SetSession writes a session to redis
func (r RedisAdapter) SetSession(ctx context.Context, session models.Session) error {
	return r.rdb.HSet(ctx, r.sessionKey(session.ID), r.serializeStruct(session)...).Err()
}

// RemoveSession deletes a session from redis, removing a session that does not exist is not an error
func (r RedisAdapter) RemoveSession(ctx context.Context, sessionID string) error {
	return r.rdb.Del(ctx, r.sessionKey(sessionID)).Err()
}
