package db

import (
	"context"
	"encoding"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// MockRedisClient implements LimitedRedisClient on top of an in-memory map.
// Only suitable for development and testing. The value set for IntCmd results
// is always 1 regardless of how many records were affected, and contexts are
// completely ignored.
type MockRedisClient struct {
	lock  *sync.RWMutex
	store map[string]map[string]string
}

func NewMockRedisClient() *MockRedisClient {
	return &MockRedisClient{lock: &sync.RWMutex{}, store: map[string]map[string]string{}}
}

func stringifyValue(val any) (string, error) {
	if str, ok := val.(string); ok {
		return str, nil
	}
	if marshaller, ok := val.(encoding.TextMarshaler); ok {
		raw, err := marshaller.MarshalText()
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
	return fmt.Sprintf("%v", val), nil
}

func (m *MockRedisClient) HSet(_ context.Context, key string, values ...any) *redis.IntCmd {
	res := redis.IntCmd{}
	if len(values)%2 != 0 {
		res.SetErr(fmt.Errorf("number of provided values must be even"))
		return &res
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	hash, found := m.store[key]
	if !found {
		hash = map[string]string{}
		m.store[key] = hash
	}
	for i := 0; i < len(values); i += 2 {
		field, ok := values[i].(string)
		if !ok {
			res.SetErr(fmt.Errorf("hash field names must be strings"))
			return &res
		}
		val, err := stringifyValue(values[i+1])
		if err != nil {
			res.SetErr(err)
			return &res
		}
		hash[field] = val
	}
	res.SetVal(1)
	return &res
}

func (m *MockRedisClient) HGetAll(_ context.Context, key string) *redis.MapStringStringCmd {
	res := redis.MapStringStringCmd{}
	m.lock.RLock()
	defer m.lock.RUnlock()
	hash, found := m.store[key]
	if !found {
		res.SetVal(map[string]string{})
		return &res
	}
	output := map[string]string{}
	for k, v := range hash {
		output[k] = v
	}
	res.SetVal(output)
	return &res
}

func (m *MockRedisClient) Del(_ context.Context, keys ...string) *redis.IntCmd {
	m.lock.Lock()
	defer m.lock.Unlock()
	for _, k := range keys {
		delete(m.store, k)
	}
	res := redis.IntCmd{}
	res.SetVal(1)
	return &res
}
