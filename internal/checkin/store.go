package checkin

import (
	"context"
	"sync"
	"time"
)

// Store keeps one live token per member and remembers consumed nonces
// until their token would have expired anyway.
type Store interface {
	// Put makes t the member's only live token.
	Put(ctx context.Context, t Token, now time.Time) error
	// Consume atomically checks that t is the member's live token and
	// marks it used. It returns ErrTokenAlreadyUsed or ErrTokenUnknown.
	Consume(ctx context.Context, t Token, now time.Time) error
}

// retention keeps store entries a little past expiry so a late scan is
// still reported as expired or used rather than unknown.
const retention = time.Minute

type memoryStore struct {
	mu       sync.Mutex
	live     map[int64]Token
	consumed map[string]time.Time
}

func NewMemoryStore() Store {
	return &memoryStore{
		live:     make(map[int64]Token),
		consumed: make(map[string]time.Time),
	}
}

func (s *memoryStore) Put(_ context.Context, t Token, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prune(now)
	s.live[t.MemberID] = t
	return nil
}

func (s *memoryStore) Consume(_ context.Context, t Token, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prune(now)
	if _, used := s.consumed[t.Nonce]; used {
		return ErrTokenAlreadyUsed
	}
	live, ok := s.live[t.MemberID]
	if !ok || live.Nonce != t.Nonce {
		return ErrTokenUnknown
	}
	delete(s.live, t.MemberID)
	s.consumed[t.Nonce] = t.ValidUntil.Add(retention)
	return nil
}

func (s *memoryStore) prune(now time.Time) {
	for nonce, until := range s.consumed {
		if now.After(until) {
			delete(s.consumed, nonce)
		}
	}
	for id, t := range s.live {
		if now.After(t.ValidUntil.Add(retention)) {
			delete(s.live, id)
		}
	}
}
