package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

var errSessionNotFound = errors.New("dapp: session not found")

// dappSession is the demo dapp's per-user state: the proof challenge
// issued at connect time and the verified wallet address once the
// handshake was checked.
type dappSession struct {
	UserID       string    `msgpack:"user_id"`
	ProofPayload string    `msgpack:"proof_payload"`
	Verified     bool      `msgpack:"verified"`
	Address      string    `msgpack:"address"`
	CreatedAt    time.Time `msgpack:"created_at"`
}

type sessionStore struct {
	rdb redis.UniversalClient

	mu  sync.RWMutex
	mem map[string]*dappSession
}

func newRedisSessionStore(rdb redis.UniversalClient) *sessionStore {
	return &sessionStore{rdb: rdb}
}

func newMemorySessionStore() *sessionStore {
	return &sessionStore{mem: make(map[string]*dappSession)}
}

func dbKeySession(userID string) string {
	return fmt.Sprintf("dapp:session:%s", userID)
}

func (s *sessionStore) Save(ctx context.Context, sess *dappSession) error {
	if s.rdb == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.mem[sess.UserID] = sess
		return nil
	}
	raw, err := msgpack.Marshal(sess)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, dbKeySession(sess.UserID), raw, 24*time.Hour).Err()
}

func (s *sessionStore) Get(ctx context.Context, userID string) (*dappSession, error) {
	if s.rdb == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		sess, ok := s.mem[userID]
		if !ok {
			return nil, errSessionNotFound
		}
		return sess, nil
	}
	raw, err := s.rdb.Get(ctx, dbKeySession(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	var sess dappSession
	if err := msgpack.Unmarshal(raw, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *sessionStore) Delete(ctx context.Context, userID string) error {
	if s.rdb == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.mem, userID)
		return nil
	}
	return s.rdb.Del(ctx, dbKeySession(userID)).Err()
}
