// Package history persists room transcripts in Redis: one entry per room
// code, value = JSON array of message objects in append order.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Store reads and appends per-room transcripts. Appends for the same room
// code are serialized by a per-code mutex; the stored value stays a plain
// JSON array so existing entries remain readable.
type Store struct {
	client *redis.Client

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(client *redis.Client) *Store {
	return &Store{
		client: client,
		locks:  make(map[string]*sync.Mutex),
	}
}

// Ping checks connectivity. Called once at startup; failure there is fatal.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Load returns the stored transcript for a room code, or nil when the room
// has no history yet.
func (s *Store) Load(ctx context.Context, code string) (json.RawMessage, error) {
	data, err := s.client.Get(ctx, code).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("history get: %w", err)
	}
	return json.RawMessage(data), nil
}

// Append adds one message to the end of the room's transcript. The cycle is
// get, append, set over the whole array; the per-code lock keeps two
// concurrent appends for one room from overwriting each other.
func (s *Store) Append(ctx context.Context, code string, msg json.RawMessage) error {
	lock := s.lockFor(code)
	lock.Lock()
	defer lock.Unlock()

	stored, err := s.Load(ctx, code)
	if err != nil {
		return err
	}

	var transcript []json.RawMessage
	if stored != nil {
		if err := json.Unmarshal(stored, &transcript); err != nil {
			return fmt.Errorf("history decode: %w", err)
		}
	}
	transcript = append(transcript, msg)

	data, err := json.Marshal(transcript)
	if err != nil {
		return fmt.Errorf("history encode: %w", err)
	}
	if err := s.client.Set(ctx, code, data, 0).Err(); err != nil {
		return fmt.Errorf("history set: %w", err)
	}
	return nil
}

func (s *Store) lockFor(code string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[code]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[code] = lock
	}
	return lock
}
