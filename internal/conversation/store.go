package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// DefaultStateKey is the storage key used by single-conversation clients.
const DefaultStateKey = "aisync_conversation"

// Store persists one serialized State per key.
type Store interface {
	// Load returns ErrStateNotFound when nothing is stored and an error
	// wrapping ErrCorruptState when the stored blob cannot be decoded.
	Load(ctx context.Context, key string) (*State, error)
	Save(ctx context.Context, key string, st *State) error
	Delete(ctx context.Context, key string) error
}

func encodeState(st *State) ([]byte, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to marshal state: %w", err)
	}
	return data, nil
}

func decodeState(data []byte) (*State, error) {
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if st.ConversationID == "" {
		return nil, fmt.Errorf("%w: missing conversation id", ErrCorruptState)
	}
	return &st, nil
}

// MemoryStore keeps serialized state in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (s *MemoryStore) Load(_ context.Context, key string) (*State, error) {
	s.mu.RLock()
	data, ok := s.blobs[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrStateNotFound
	}
	return decodeState(data)
}

func (s *MemoryStore) Save(_ context.Context, key string, st *State) error {
	data, err := encodeState(st)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.blobs[key] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.blobs, key)
	s.mu.Unlock()
	return nil
}

// Put stores a raw blob under key. Used to seed state written by older clients.
func (s *MemoryStore) Put(key string, data []byte) {
	s.mu.Lock()
	s.blobs[key] = append([]byte(nil), data...)
	s.mu.Unlock()
}
