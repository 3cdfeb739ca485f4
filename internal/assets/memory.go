package assets

import (
	"context"
	"sync"
)

// MemoryStore keeps assets in maps. It backs tests and local runs without
// Redis.
type MemoryStore struct {
	mu     sync.RWMutex
	logos  map[string]*Logos
	images map[string]*Images
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		logos:  make(map[string]*Logos),
		images: make(map[string]*Images),
	}
}

// PutLogos stores the logos of a client.
func (m *MemoryStore) PutLogos(clientID string, logos Logos) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logos[clientID] = &logos
}

// PutImages stores the images of a record.
func (m *MemoryStore) PutImages(recordID string, images Images) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.images[recordID] = &images
}

// Logos implements Store.
func (m *MemoryStore) Logos(_ context.Context, clientID string) (*Logos, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	logos, ok := m.logos[clientID]
	if !ok {
		return nil, nil
	}
	copy := *logos
	return &copy, nil
}

// Images implements Store.
func (m *MemoryStore) Images(_ context.Context, recordID string) (*Images, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	images, ok := m.images[recordID]
	if !ok {
		return nil, nil
	}
	copy := *images
	return &copy, nil
}
