package social_test

import (
	"testing"

	"github.com/v-graph/vgraph/internal/social"
)

func TestFriendListActiveIDs(t *testing.T) {
	list := social.FriendList{
		Count: 4,
		Items: []social.FriendSummary{
			{ID: 1},
			{ID: 2, Deactivated: "banned"},
			{ID: 3, IsClosed: true},
			{ID: 4},
		},
	}
	activeIDs := list.ActiveIDs()
	if len(activeIDs) != 2 || activeIDs[0] != 1 || activeIDs[1] != 4 {
		t.Fatalf("expected active IDs [1 4], got %v", activeIDs)
	}
	allIDs := list.IDs()
	if len(allIDs) != 4 {
		t.Fatalf("expected 4 IDs, got %v", allIDs)
	}
}

func TestProfileStatisticsLifecycle(t *testing.T) {
	profile := &social.Profile{Network: social.NetworkVK, UID: 1, FirstName: "Ada", LastName: "Lovelace"}
	if profile.HasStatistics() {
		t.Fatal("fresh profile should have no statistics")
	}
	if profile.DisplayName() != "Ada Lovelace" {
		t.Fatalf("unexpected display name %q", profile.DisplayName())
	}

	profile.Gifts = map[int64]map[int64]int{}
	profile.Likes = map[int64]map[int64]int{}
	if profile.HasStatistics() {
		t.Fatal("two of three matrices is not complete statistics")
	}
	profile.Comments = map[int64]map[int64]int{}
	if !profile.HasStatistics() {
		t.Fatal("expected complete statistics")
	}

	profile.ClearStatistics()
	if profile.Gifts != nil || profile.Likes != nil || profile.Comments != nil {
		t.Fatal("expected all matrices cleared")
	}
}
