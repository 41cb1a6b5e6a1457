package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	defaultSessionTTL = 24 * time.Hour
	mergeRetries      = 5
)

// RedisStore keeps each session document as a JSON value and fans out every
// committed merge over Pub/Sub, so subscribers on any instance observe the
// same commit-ordered stream. Merges use optimistic WATCH transactions: a
// concurrent writer invalidates the transaction, the patch is re-applied
// against the fresh document, and only a spent retry budget surfaces
// ErrStoreUnavailable.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// storeEvent is the Pub/Sub payload for one committed write. The version is
// a per-session counter bumped on every commit; subscribers use it to drop
// events already reflected in their starting snapshot.
type storeEvent struct {
	Version int64           `json:"version"`
	Doc     json.RawMessage `json:"doc"`
}

// NewRedisStore creates a Redis-backed session store. ttl bounds how long an
// abandoned session lingers; it is refreshed on every merge.
func NewRedisStore(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *RedisStore {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &RedisStore{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "session_store").Logger(),
	}
}

func (s *RedisStore) Create(ctx context.Context, code string, doc *Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.docKey(code), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if !ok {
		return ErrAlreadyExists
	}

	if err := s.client.Set(ctx, s.verKey(code), 1, s.ttl).Err(); err != nil {
		return fmt.Errorf("create session version: %w", err)
	}
	if err := s.publish(ctx, code, 1, data); err != nil {
		s.logger.Warn().Err(err).Str("code", code).Msg("publish initial document failed")
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, code string) (*Document, error) {
	data, err := s.client.Get(ctx, s.docKey(code)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return decodeDocument(data)
}

func (s *RedisStore) Merge(ctx context.Context, code string, patch Patch) (*Document, error) {
	key := s.docKey(code)

	var merged *Document
	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		version, err := tx.Get(ctx, s.verKey(code)).Int64()
		if err != nil && err != redis.Nil {
			return err
		}

		doc, err := decodeDocument(data)
		if err != nil {
			return err
		}
		if err := patch.apply(doc); err != nil {
			return err
		}

		next, err := json.Marshal(doc)
		if err != nil {
			return err
		}

		event, err := json.Marshal(storeEvent{Version: version + 1, Doc: next})
		if err != nil {
			return err
		}

		// Publishing inside the transaction keeps the change feed in
		// commit order even with concurrent writers.
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, s.ttl)
			pipe.Set(ctx, s.verKey(code), version+1, s.ttl)
			pipe.Publish(ctx, s.channel(code), event)
			return nil
		})
		if err != nil {
			return err
		}
		merged = doc
		return nil
	}

	for attempt := 0; attempt < mergeRetries; attempt++ {
		err := s.client.Watch(ctx, txn, key)
		if err == nil {
			return merged, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			// Lost the race; re-read and re-apply against the new document.
			continue
		}
		return nil, err
	}

	s.logger.Warn().Str("code", code).Int("attempts", mergeRetries).Msg("merge retry budget spent")
	return nil, ErrStoreUnavailable
}

func (s *RedisStore) Subscribe(ctx context.Context, code string) (<-chan *Document, func(), error) {
	// Attach to the change feed before reading the snapshot so a merge
	// committed in between is buffered rather than lost. The version read
	// precedes the snapshot read, so any buffered event at or below it is
	// already reflected in the snapshot and can be dropped.
	pubsub := s.client.Subscribe(ctx, s.channel(code))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe session: %w", err)
	}

	snapshotVersion, err := s.client.Get(ctx, s.verKey(code)).Int64()
	if err != nil && err != redis.Nil {
		pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe session version: %w", err)
	}

	snapshot, err := s.Get(ctx, code)
	if err != nil {
		pubsub.Close()
		return nil, nil, err
	}

	out := make(chan *Document, subscriberBuffer)
	out <- snapshot

	done := make(chan struct{})
	go func() {
		defer close(out)
		msgs := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var event storeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					s.logger.Warn().Err(err).Str("code", code).Msg("skip undecodable update")
					continue
				}
				if event.Version <= snapshotVersion {
					continue // already reflected in the starting snapshot
				}
				doc, err := decodeDocument(event.Doc)
				if err != nil {
					s.logger.Warn().Err(err).Str("code", code).Msg("skip undecodable update")
					continue
				}
				deliver(out, doc)
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			pubsub.Close()
		})
	}
	return out, cancel, nil
}

func (s *RedisStore) publish(ctx context.Context, code string, version int64, doc json.RawMessage) error {
	event, err := json.Marshal(storeEvent{Version: version, Doc: doc})
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, s.channel(code), event).Err()
}

func (s *RedisStore) docKey(code string) string {
	return "session:doc:" + code
}

func (s *RedisStore) verKey(code string) string {
	return "session:ver:" + code
}

func (s *RedisStore) channel(code string) string {
	return "session:updates:" + code
}

func decodeDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return &doc, nil
}
