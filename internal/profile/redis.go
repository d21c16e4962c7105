package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/v-graph/vgraph/internal/social"
)

const (
	profileKeyFormat = "vgraph:profile:%s:%d"
	aliasKeyFormat   = "vgraph:alias:%s:%s"

	errMessageEncodeProfile = "encode profile"
	errMessageDecodeProfile = "decode profile"
	errMessageStoreProfile  = "store profile"
	errMessageLoadProfile   = "load profile"
	errMessageStoreAlias    = "store alias index"
	errMessageLoadAlias     = "load alias index"
)

// RedisStore keeps profiles as JSON blobs keyed by network and user ID,
// with a secondary alias index for short-address lookups. Entries carry no
// expiry; statistics stay cached until a caller clears them.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// Load fetches the profile stored for one numeric user ID.
func (store *RedisStore) Load(ctx context.Context, network social.NetworkName, userID int64) (*social.Profile, error) {
	payload, getErr := store.client.Get(ctx, profileKey(network, userID)).Bytes()
	if getErr != nil {
		if errors.Is(getErr, redis.Nil) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("%s: %w", errMessageLoadProfile, getErr)
	}
	var stored social.Profile
	if unmarshalErr := json.Unmarshal(payload, &stored); unmarshalErr != nil {
		return nil, fmt.Errorf("%s: %w", errMessageDecodeProfile, unmarshalErr)
	}
	return &stored, nil
}

// LoadByAlias resolves the alias index first, then loads by numeric ID.
func (store *RedisStore) LoadByAlias(ctx context.Context, network social.NetworkName, alias string) (*social.Profile, error) {
	storedID, getErr := store.client.Get(ctx, aliasKey(network, alias)).Result()
	if getErr != nil {
		if errors.Is(getErr, redis.Nil) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("%s: %w", errMessageLoadAlias, getErr)
	}
	userID, parseErr := strconv.ParseInt(storedID, 10, 64)
	if parseErr != nil {
		return nil, fmt.Errorf("%s: %w", errMessageLoadAlias, parseErr)
	}
	return store.Load(ctx, network, userID)
}

// Save stores the profile and refreshes the alias index when the profile
// carries a screen name.
func (store *RedisStore) Save(ctx context.Context, stored *social.Profile) error {
	payload, marshalErr := json.Marshal(stored)
	if marshalErr != nil {
		return fmt.Errorf("%s: %w", errMessageEncodeProfile, marshalErr)
	}
	if setErr := store.client.Set(ctx, profileKey(stored.Network, stored.UID), payload, 0).Err(); setErr != nil {
		return fmt.Errorf("%s: %w", errMessageStoreProfile, setErr)
	}
	if stored.ScreenName != "" {
		aliasValue := strconv.FormatInt(stored.UID, 10)
		if setErr := store.client.Set(ctx, aliasKey(stored.Network, stored.ScreenName), aliasValue, 0).Err(); setErr != nil {
			return fmt.Errorf("%s: %w", errMessageStoreAlias, setErr)
		}
	}
	return nil
}

func profileKey(network social.NetworkName, userID int64) string {
	return fmt.Sprintf(profileKeyFormat, network, userID)
}

func aliasKey(network social.NetworkName, alias string) string {
	return fmt.Sprintf(aliasKeyFormat, network, alias)
}
