package memory

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

var _ Store = (*InMemoryStore)(nil)

// InMemoryStore keeps conversations in process memory with lazy TTL
// expiry. A striped key mutex serializes read-modify-write per
// conversation id so concurrent appends never lose a turn.
type InMemoryStore struct {
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger

	mu            sync.RWMutex
	conversations map[string]*Conversation

	keys keyLocks
}

// InMemoryOption customizes an InMemoryStore.
type InMemoryOption func(*InMemoryStore)

// WithClock overrides the time source. Tests use this to cross TTL
// boundaries without sleeping.
func WithClock(now func() time.Time) InMemoryOption {
	return func(s *InMemoryStore) { s.now = now }
}

// NewInMemoryStore creates a store with the given TTL.
func NewInMemoryStore(ttl time.Duration, logger *zap.Logger, opts ...InMemoryOption) *InMemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &InMemoryStore{
		ttl:           ttl,
		now:           time.Now,
		logger:        logger.Named("memory"),
		conversations: make(map[string]*Conversation),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get implements Store. An expired conversation is removed and reported
// absent; a live one has its TTL refreshed.
func (s *InMemoryStore) Get(ctx context.Context, id string) (*Conversation, error) {
	unlock := s.keys.lock(id)
	defer unlock()

	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	if s.expired(conv, now) {
		delete(s.conversations, id)
		s.logger.Debug("conversation expired", zap.String("conversation_id", id))
		return nil, ErrConversationNotFound
	}

	conv.LastAccess = now
	return s.snapshot(conv), nil
}

// Append implements Store. The conversation is created when absent, and
// an expired conversation is replaced rather than extended.
func (s *InMemoryStore) Append(ctx context.Context, id string, turn Turn) error {
	unlock := s.keys.lock(id)
	defer unlock()

	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok || s.expired(conv, now) {
		conv = &Conversation{ID: id, CreatedAt: now}
		s.conversations[id] = conv
	}

	conv.Turns = append(conv.Turns, turn)
	conv.LastAccess = now

	s.logger.Debug("appended turn",
		zap.String("conversation_id", id),
		zap.Int("turns", len(conv.Turns)))
	return nil
}

// Delete implements Store. Idempotent.
func (s *InMemoryStore) Delete(ctx context.Context, id string) error {
	unlock := s.keys.lock(id)
	defer unlock()

	s.mu.Lock()
	delete(s.conversations, id)
	s.mu.Unlock()
	return nil
}

// PurgeExpired implements Store.
func (s *InMemoryStore) PurgeExpired(ctx context.Context) (int, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, conv := range s.conversations {
		if s.expired(conv, now) {
			delete(s.conversations, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("purged expired conversations", zap.Int("count", removed))
	}
	return removed, nil
}

func (s *InMemoryStore) expired(conv *Conversation, now time.Time) bool {
	return now.Sub(conv.LastAccess) > s.ttl
}

// snapshot copies the conversation so callers cannot mutate store state.
func (s *InMemoryStore) snapshot(conv *Conversation) *Conversation {
	out := *conv
	out.Turns = make([]Turn, len(conv.Turns))
	copy(out.Turns, conv.Turns)
	return &out
}

// keyLocks is a striped per-key mutex. Striping bounds memory while still
// serializing all operations that share a conversation id.
type keyLocks struct {
	stripes [64]sync.Mutex
}

func (k *keyLocks) lock(id string) func() {
	var h uint32 = 2166136261
	for i := 0; i < len(id); i++ {
		h ^= uint32(id[i])
		h *= 16777619
	}
	m := &k.stripes[h%uint32(len(k.stripes))]
	m.Lock()
	return m.Unlock
}
