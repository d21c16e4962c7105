package graph_test

import (
	"strings"
	"testing"

	"github.com/v-graph/vgraph/internal/graph"
	"github.com/v-graph/vgraph/internal/incidence"
	"github.com/v-graph/vgraph/internal/social"
)

func TestRenderPageProducesEmbeddedDocument(t *testing.T) {
	profile := analyzedProfile()
	friendIDs := profile.Friends.IDs()
	topology := testTopology()

	gifts := incidence.Seed(100, friendIDs, topology)
	gifts.Increment(101, 102)

	assembled := graph.Assemble(profile, friendIDs, topology, gifts, nil, nil)

	pageHTML, renderErr := graph.RenderPage(assembled)
	if renderErr != nil {
		t.Fatalf("unexpected error: %v", renderErr)
	}

	for _, fragment := range []string{
		"<!DOCTYPE html>",
		"vis-network",
		`"id":100`,
		`"id":101`,
		"Erik Shmargunov",
		"drawGraph",
	} {
		if !strings.Contains(pageHTML, fragment) {
			t.Fatalf("expected rendered page to contain %q", fragment)
		}
	}
	if strings.Contains(pageHTML, `&#34;id&#34;`) {
		t.Fatal("node JSON must reach the script block unescaped")
	}
}

func TestRenderPageListsCloseFriends(t *testing.T) {
	profile := analyzedProfile()
	friendIDs := profile.Friends.IDs()

	assembled := graph.Assemble(profile, friendIDs, testTopology(), nil, nil, nil)
	if len(assembled.CloseFriends) == 0 {
		t.Fatal("expected close friends for the test topology")
	}

	pageHTML, renderErr := graph.RenderPage(assembled)
	if renderErr != nil {
		t.Fatalf("unexpected error: %v", renderErr)
	}
	if !strings.Contains(pageHTML, "Boris Beta") {
		t.Fatal("expected the top close friend in the rendered page")
	}
}

func TestRenderPageHandlesEmptyGraph(t *testing.T) {
	emptyProfile := &social.Profile{UID: 1, FirstName: "Solo"}
	assembled := graph.Assemble(emptyProfile, nil, nil, nil, nil, nil)

	pageHTML, renderErr := graph.RenderPage(assembled)
	if renderErr != nil {
		t.Fatalf("unexpected error: %v", renderErr)
	}
	if !strings.Contains(pageHTML, "Solo") {
		t.Fatal("expected the user node in the rendered page")
	}
}
