package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/v-graph/vgraph/internal/social"
)

// MemoryStore is an in-process Store used by tests and single-node setups.
// Profiles are copied through JSON on the way in and out so callers never
// alias stored state.
type MemoryStore struct {
	mutex      sync.RWMutex
	profiles   map[string][]byte
	aliasIndex map[string]int64
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles:   make(map[string][]byte),
		aliasIndex: make(map[string]int64),
	}
}

// Load fetches the profile stored for one numeric user ID.
func (store *MemoryStore) Load(_ context.Context, network social.NetworkName, userID int64) (*social.Profile, error) {
	store.mutex.RLock()
	payload, exists := store.profiles[profileKey(network, userID)]
	store.mutex.RUnlock()
	if !exists {
		return nil, ErrProfileNotFound
	}
	var stored social.Profile
	if unmarshalErr := json.Unmarshal(payload, &stored); unmarshalErr != nil {
		return nil, fmt.Errorf("%s: %w", errMessageDecodeProfile, unmarshalErr)
	}
	return &stored, nil
}

// LoadByAlias resolves the alias index first, then loads by numeric ID.
func (store *MemoryStore) LoadByAlias(ctx context.Context, network social.NetworkName, alias string) (*social.Profile, error) {
	store.mutex.RLock()
	userID, exists := store.aliasIndex[aliasKey(network, alias)]
	store.mutex.RUnlock()
	if !exists {
		return nil, ErrProfileNotFound
	}
	return store.Load(ctx, network, userID)
}

// Save stores a copy of the profile and refreshes the alias index.
func (store *MemoryStore) Save(_ context.Context, stored *social.Profile) error {
	payload, marshalErr := json.Marshal(stored)
	if marshalErr != nil {
		return fmt.Errorf("%s: %w", errMessageEncodeProfile, marshalErr)
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.profiles[profileKey(stored.Network, stored.UID)] = payload
	if stored.ScreenName != "" {
		store.aliasIndex[aliasKey(stored.Network, stored.ScreenName)] = stored.UID
	}
	return nil
}
