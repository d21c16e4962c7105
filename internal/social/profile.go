package social

import (
	"github.com/v-graph/vgraph/internal/incidence"
)

// NetworkName identifies the social network a profile belongs to.
type NetworkName string

const (
	// NetworkVK is the VK social network.
	NetworkVK NetworkName = "vk"
	// NetworkOK is the OK social network.
	NetworkOK NetworkName = "ok"
)

// FriendSummary is one friend record from a provider friend list. It is
// immutable once fetched.
type FriendSummary struct {
	ID          int64  `json:"id"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
	Deactivated string `json:"deactivated,omitempty"`
	IsClosed    bool   `json:"is_closed,omitempty"`
}

// IsActive reports whether the friend can be queried for interactions.
// Deactivated and closed accounts reject statistics and mutual lookups.
func (friend FriendSummary) IsActive() bool {
	return friend.Deactivated == "" && !friend.IsClosed
}

// FriendList is the ordered friend list as returned by the provider.
type FriendList struct {
	Count int             `json:"count"`
	Items []FriendSummary `json:"items"`
}

// IDs returns every friend ID in original list order.
func (list FriendList) IDs() []int64 {
	ids := make([]int64, 0, len(list.Items))
	for _, friend := range list.Items {
		ids = append(ids, friend.ID)
	}
	return ids
}

// ActiveIDs returns the IDs of friends that can be queried, preserving
// original list order.
func (list FriendList) ActiveIDs() []int64 {
	ids := make([]int64, 0, len(list.Items))
	for _, friend := range list.Items {
		if friend.IsActive() {
			ids = append(ids, friend.ID)
		}
	}
	return ids
}

// MutualTopology maps a friend ID to the IDs of friends that friend shares
// with the source user. Every key is a friend of the source user.
type MutualTopology map[int64][]int64

// Profile is a social network user together with the friend list and the
// three computed interaction matrices. The matrices start nil and are
// attached once computed; they are reused until explicitly cleared.
type Profile struct {
	Network    NetworkName `json:"network"`
	UID        int64       `json:"uid"`
	FirstName  string      `json:"first_name,omitempty"`
	LastName   string      `json:"last_name,omitempty"`
	ScreenName string      `json:"screen_name,omitempty"`
	IsClosed   bool        `json:"is_closed,omitempty"`
	ImageURL   string      `json:"image_url,omitempty"`
	Friends    FriendList  `json:"friends"`

	Gifts    incidence.Matrix `json:"friends_gifts,omitempty"`
	Likes    incidence.Matrix `json:"friends_likes,omitempty"`
	Comments incidence.Matrix `json:"friends_comments,omitempty"`
}

// DisplayName joins the profile's name parts for presentation.
func (profile *Profile) DisplayName() string {
	switch {
	case profile.FirstName != "" && profile.LastName != "":
		return profile.FirstName + " " + profile.LastName
	case profile.FirstName != "":
		return profile.FirstName
	default:
		return profile.LastName
	}
}

// HasStatistics reports whether all three matrices have been computed.
func (profile *Profile) HasStatistics() bool {
	return profile.Gifts != nil && profile.Likes != nil && profile.Comments != nil
}

// ClearStatistics drops the cached matrices so the next analysis recomputes
// them. There is no expiry policy; clearing is always explicit.
func (profile *Profile) ClearStatistics() {
	profile.Gifts = nil
	profile.Likes = nil
	profile.Comments = nil
}
