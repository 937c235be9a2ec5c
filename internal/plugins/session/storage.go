package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/keyxmakerx/switchboard/internal/plugins/identity"
)

// Storage is one browser's durable key-value area. Implementations must write
// and clear the token and snapshot together.
type Storage interface {
	// Load returns what is persisted. A browser with nothing stored returns a
	// zero Persisted and no error.
	Load(ctx context.Context) (Persisted, error)

	// Save writes the token and principal snapshot together.
	Save(ctx context.Context, p Persisted) error

	// Clear removes both keys. Clearing empty storage is not an error.
	Clear(ctx context.Context) error
}

// Backend hands out Storage scoped to a browser ID.
type Backend interface {
	ForBrowser(browserID string) Storage
}

// encodeSnapshot serializes a principal for the KeyUser slot.
func encodeSnapshot(p *identity.Principal) (string, error) {
	if p == nil {
		return "", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshaling principal snapshot: %w", err)
	}
	return string(b), nil
}

// decodeSnapshot parses the KeyUser slot. A corrupt snapshot is reported so
// the caller can purge it.
func decodeSnapshot(raw string) (*identity.Principal, error) {
	if raw == "" {
		return nil, nil
	}
	var p identity.Principal
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("unmarshaling principal snapshot: %w", err)
	}
	return &p, nil
}

// --- In-memory backend ---

// memoryBackend keeps every browser's storage in process memory. Used in
// development and tests; nothing survives a restart.
type memoryBackend struct {
	mu   sync.Mutex
	data map[string]map[string]string
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() Backend {
	return &memoryBackend{data: make(map[string]map[string]string)}
}

// ForBrowser returns the storage area for browserID.
func (b *memoryBackend) ForBrowser(browserID string) Storage {
	return &memoryStorage{backend: b, browserID: browserID}
}

type memoryStorage struct {
	backend   *memoryBackend
	browserID string
}

func (s *memoryStorage) Load(ctx context.Context) (Persisted, error) {
	s.backend.mu.Lock()
	kv := s.backend.data[s.browserID]
	token, user := kv[KeyToken], kv[KeyUser]
	s.backend.mu.Unlock()

	p, err := decodeSnapshot(user)
	if err != nil {
		return Persisted{Token: token}, err
	}
	return Persisted{Token: token, Principal: p}, nil
}

func (s *memoryStorage) Save(ctx context.Context, p Persisted) error {
	user, err := encodeSnapshot(p.Principal)
	if err != nil {
		return err
	}
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	s.backend.data[s.browserID] = map[string]string{
		KeyToken: p.Token,
		KeyUser:  user,
	}
	return nil
}

func (s *memoryStorage) Clear(ctx context.Context) error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	delete(s.backend.data, s.browserID)
	return nil
}
