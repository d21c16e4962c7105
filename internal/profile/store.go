// Package profile persists analyzed profiles together with their computed
// interaction matrices. Matrices are stored as attached to the profile and
// reused across analysis requests until explicitly cleared.
package profile

import (
	"context"
	"errors"

	"github.com/v-graph/vgraph/internal/social"
)

const errMessageProfileNotFound = "profile not found"

// ErrProfileNotFound indicates no stored profile matches the lookup.
var ErrProfileNotFound = errors.New(errMessageProfileNotFound)

// Store loads and saves profiles. Lookups miss with ErrProfileNotFound.
type Store interface {
	Load(ctx context.Context, network social.NetworkName, userID int64) (*social.Profile, error)
	LoadByAlias(ctx context.Context, network social.NetworkName, alias string) (*social.Profile, error)
	Save(ctx context.Context, stored *social.Profile) error
}
