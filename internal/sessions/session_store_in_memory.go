package sessions

import (
	"context"
	"sync"

	"github.com/coursedesk/admin-gateway/internal/gwerrors"
	"github.com/coursedesk/admin-gateway/internal/models"
)

// InMemorySessionStore is only suitable for development and tests,
// sessions do not survive a restart and are not shared across replicas.
type InMemorySessionStore struct {
	lock     *sync.RWMutex
	sessions map[string]models.Session
}

func (db *InMemorySessionStore) GetSession(ctx context.Context, id string) (models.Session, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()
	session, found := db.sessions[id]
	if !found {
		return models.Session{}, gwerrors.ErrSessionNotFound
	}
	return session, nil
}

func (db *InMemorySessionStore) SetSession(ctx context.Context, session models.Session) error {
	db.lock.Lock()
	defer db.lock.Unlock()
	db.sessions[session.ID] = session
	return nil
}

func (db *InMemorySessionStore) RemoveSession(ctx context.Context, id string) error {
	db.lock.Lock()
	defer db.lock.Unlock()
	delete(db.sessions, id)
	return nil
}

func NewInMemorySessionStore() InMemorySessionStore {
	return InMemorySessionStore{lock: &sync.RWMutex{}, sessions: map[string]models.Session{}}
}
