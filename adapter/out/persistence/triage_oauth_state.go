package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// OAuthStateKey Redis key prefix
const OAuthStateKey = "triage:oauth:state:"

// RedisOAuthStateStore Redis 기반 OAuth state 저장소 (CSRF 보호, 일회용)
type RedisOAuthStateStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisOAuthStateStore(client *redis.Client, ttl time.Duration) *RedisOAuthStateStore {
	return &RedisOAuthStateStore{client: client, ttl: ttl}
}

func (s *RedisOAuthStateStore) Save(ctx context.Context, state string) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	if err := s.client.Set(ctx, OAuthStateKey+state, "1", s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store OAuth state: %w", err)
	}
	return nil
}

// Consume GETDEL로 조회와 삭제를 원자적으로 수행 (재사용 방지)
func (s *RedisOAuthStateStore) Consume(ctx context.Context, state string) (bool, error) {
	if state == "" {
		return false, nil
	}
	_, err := s.client.GetDel(ctx, OAuthStateKey+state).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to validate OAuth state: %w", err)
	}
	return true, nil
}

// MemoryOAuthStateStore Redis 없이 단일 프로세스로 실행할 때 사용
type MemoryOAuthStateStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	states map[string]time.Time
}

func NewMemoryOAuthStateStore(ttl time.Duration) *MemoryOAuthStateStore {
	return &MemoryOAuthStateStore{ttl: ttl, now: time.Now, states: make(map[string]time.Time)}
}

func (s *MemoryOAuthStateStore) Save(ctx context.Context, state string) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, exp := range s.states {
		if now.After(exp) {
			delete(s.states, k)
		}
	}
	s.states[state] = now.Add(s.ttl)
	return nil
}

func (s *MemoryOAuthStateStore) Consume(ctx context.Context, state string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.states[state]
	if !ok {
		return false, nil
	}
	delete(s.states, state)
	return !s.now().After(exp), nil
}
