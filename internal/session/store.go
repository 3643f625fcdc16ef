package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"moodwave/pkg/cache"
)

var ErrAudioNotFound = errors.New("audio not found")

// Store keeps sessions for a limited time. Update serializes mutations of
// one session: fn sees the latest stored value and its changes are written
// only when it returns nil. On error the unchanged session is returned.
// Unknown or expired IDs start from a fresh idle session.
//
// Audio bytes are kept apart from the session under their file ID so that
// loading a session never copies them. Reading audio extends its lifetime.
type Store interface {
	Load(ctx context.Context, id string) (*Session, error)
	Update(ctx context.Context, id string, fn func(*Session) error) (*Session, error)
	PutAudio(ctx context.Context, fileID string, data []byte) error
	Audio(ctx context.Context, fileID string) ([]byte, error)
	DeleteAudio(ctx context.Context, fileID string) error
}

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// MemoryStore keeps sessions in process memory
type MemoryStore struct {
	ttl       time.Duration
	now       func() time.Time
	mu        sync.Mutex
	sessions  map[string]memoryEntry
	audio     map[string]memoryEntry
	lastSweep time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]memoryEntry),
		audio:    make(map[string]memoryEntry),
	}
}

func (m *MemoryStore) Load(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.get(id)
}

func (m *MemoryStore) Update(ctx context.Context, id string, fn func(*Session) error) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweep()

	sess, err := m.get(id)
	if err != nil {
		return nil, err
	}

	if err := fn(sess); err != nil {
		current, _ := m.get(id)
		return current, err
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}
	m.sessions[id] = memoryEntry{data: data, expires: m.now().Add(m.ttl)}

	return sess, nil
}

func (m *MemoryStore) PutAudio(ctx context.Context, fileID string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweep()
	m.audio[fileID] = memoryEntry{data: data, expires: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryStore) Audio(ctx context.Context, fileID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.audio[fileID]
	if !ok || !m.now().Before(entry.expires) {
		return nil, fmt.Errorf("%w: %s", ErrAudioNotFound, fileID)
	}
	entry.expires = m.now().Add(m.ttl)
	m.audio[fileID] = entry
	return entry.data, nil
}

func (m *MemoryStore) DeleteAudio(ctx context.Context, fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.audio, fileID)
	return nil
}

// Len returns the number of live sessions
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweep()
	return len(m.sessions)
}

func (m *MemoryStore) get(id string) (*Session, error) {
	entry, ok := m.sessions[id]
	if !ok || !m.now().Before(entry.expires) {
		return New(id), nil
	}

	var sess Session
	if err := json.Unmarshal(entry.data, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &sess, nil
}

// sweep drops expired sessions at most once per ttl
func (m *MemoryStore) sweep() {
	now := m.now()
	if now.Sub(m.lastSweep) < m.ttl {
		return
	}
	m.lastSweep = now

	for id, entry := range m.sessions {
		if !now.Before(entry.expires) {
			delete(m.sessions, id)
		}
	}
	for id, entry := range m.audio {
		if !now.Before(entry.expires) {
			delete(m.audio, id)
		}
	}
}

// CacheStore keeps sessions in a shared cache so several web processes can
// serve the same browser
type CacheStore struct {
	cache cache.Cache
	ttl   time.Duration
}

func NewCacheStore(c cache.Cache, ttl time.Duration) *CacheStore {
	return &CacheStore{cache: c, ttl: ttl}
}

func (c *CacheStore) Load(ctx context.Context, id string) (*Session, error) {
	var sess Session
	err := c.cache.Get(ctx, cache.SessionCacheKey(id), &sess)
	if errors.Is(err, cache.ErrNotFound) {
		return New(id), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return &sess, nil
}

func (c *CacheStore) Update(ctx context.Context, id string, fn func(*Session) error) (*Session, error) {
	var (
		updated *Session
		current *Session
		fnErr   error
	)

	err := c.cache.Update(ctx, cache.SessionCacheKey(id), c.ttl, func(raw []byte) ([]byte, error) {
		sess := New(id)
		if raw != nil {
			if err := json.Unmarshal(raw, sess); err != nil {
				return nil, fmt.Errorf("failed to unmarshal session: %w", err)
			}
		}

		snapshot := *sess
		if fnErr = fn(sess); fnErr != nil {
			current = &snapshot
			return nil, fnErr
		}

		updated = sess
		return json.Marshal(sess)
	})

	if fnErr != nil {
		return current, fnErr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}
	return updated, nil
}

func (c *CacheStore) PutAudio(ctx context.Context, fileID string, data []byte) error {
	if err := c.cache.SetBytes(ctx, cache.AudioCacheKey(fileID), data, c.ttl); err != nil {
		return fmt.Errorf("failed to store audio: %w", err)
	}
	return nil
}

func (c *CacheStore) Audio(ctx context.Context, fileID string) ([]byte, error) {
	data, err := c.cache.GetBytes(ctx, cache.AudioCacheKey(fileID), c.ttl)
	if errors.Is(err, cache.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrAudioNotFound, fileID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load audio: %w", err)
	}
	return data, nil
}

func (c *CacheStore) DeleteAudio(ctx context.Context, fileID string) error {
	if err := c.cache.Delete(ctx, cache.AudioCacheKey(fileID)); err != nil {
		return fmt.Errorf("failed to delete audio: %w", err)
	}
	return nil
}
