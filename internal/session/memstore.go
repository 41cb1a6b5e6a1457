package session

import (
	"context"
	"sync"
)

const subscriberBuffer = 64

// MemoryStore keeps session documents in process memory. It is the default
// backend for a single-node deployment and for tests; the Redis store carries
// the same contract across instances.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*memSession
}

type memSession struct {
	doc     *Document
	subs    map[uint64]chan *Document
	nextSub uint64
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*memSession)}
}

func (s *MemoryStore) Create(ctx context.Context, code string, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[code]; exists {
		return ErrAlreadyExists
	}
	s.sessions[code] = &memSession{
		doc:  doc.Clone(),
		subs: make(map[uint64]chan *Document),
	}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, code string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[code]
	if !ok {
		return nil, ErrNotFound
	}
	return sess.doc.Clone(), nil
}

func (s *MemoryStore) Merge(ctx context.Context, code string, patch Patch) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[code]
	if !ok {
		return nil, ErrNotFound
	}

	// Patch a clone so a failed precondition leaves the document untouched.
	next := sess.doc.Clone()
	if err := patch.apply(next); err != nil {
		return nil, err
	}
	sess.doc = next

	for _, ch := range sess.subs {
		deliver(ch, next.Clone())
	}
	return next.Clone(), nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, code string) (<-chan *Document, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[code]
	if !ok {
		return nil, nil, ErrNotFound
	}

	id := sess.nextSub
	sess.nextSub++
	ch := make(chan *Document, subscriberBuffer)
	ch <- sess.doc.Clone()
	sess.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if sess, ok := s.sessions[code]; ok {
				if sub, live := sess.subs[id]; live {
					delete(sess.subs, id)
					close(sub)
				}
				// A finished session with no one left watching is garbage.
				if sess.doc.Status == StatusFinished && len(sess.subs) == 0 {
					delete(s.sessions, code)
				}
			}
		})
	}
	return ch, cancel, nil
}

// deliver pushes a snapshot without blocking the commit path. A subscriber
// that fell behind loses its oldest pending snapshot: every delivery is a
// full document, so the latest one is always enough to reconverge.
func deliver(ch chan *Document, doc *Document) {
	for {
		select {
		case ch <- doc:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
