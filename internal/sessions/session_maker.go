package sessions

import (
	"time"

	"github.com/coursedesk/admin-gateway/internal/models"
)

type SessionMaker interface {
	NewSession() (models.Session, error)
}

type SessionMakerImpl struct {
	idleSessionTTLSeconds int
	maxSessionTTLSeconds  int
	defaultRole           string
}

var randomIDGenerator models.IDGenerator = models.RandomGenerator{Length: 24}

func (sm *SessionMakerImpl) NewSession() (models.Session, error) {
	id, err := randomIDGenerator.ID()
	if err != nil {
		return models.Session{}, err
	}
	session := models.Session{
		ID:             id,
		CreatedAt:      time.Now().UTC(),
		IdleTTLSeconds: models.SerializableInt(sm.idleSessionTTLSeconds),
		MaxTTLSeconds:  models.SerializableInt(sm.maxSessionTTLSeconds),
		ViewAsRole:     sm.defaultRole,
	}
	session.ExpiresAt = session.CreatedAt.Add(session.IdleTTL())
	return session, nil
}

type SessionMakerOption func(*SessionMakerImpl) error

func WithIdleSessionTTLSeconds(s int) SessionMakerOption {
	return func(sm *SessionMakerImpl) error {
		sm.idleSessionTTLSeconds = s
		return nil
	}
}

func WithMaxSessionTTLSeconds(s int) SessionMakerOption {
	return func(sm *SessionMakerImpl) error {
		sm.maxSessionTTLSeconds = s
		return nil
	}
}

func WithDefaultRole(role string) SessionMakerOption {
	return func(sm *SessionMakerImpl) error {
		sm.defaultRole = role
		return nil
	}
}

func NewSessionMaker(options ...SessionMakerOption) SessionMaker {
	sm := SessionMakerImpl{}
	for _, opt := range options {
		opt(&sm)
	}
	return &sm
}
