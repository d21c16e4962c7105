package tests

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/v-graph/vgraph/internal/analysis"
	"github.com/v-graph/vgraph/internal/graph"
	"github.com/v-graph/vgraph/internal/profile"
	"github.com/v-graph/vgraph/internal/social"
	"github.com/v-graph/vgraph/internal/vk"
)

// vkFixtureServer emulates the VK JSON API for a user with three friends,
// one of them deactivated. Interaction fixtures cover gifts, likes, and
// comments between the tracked accounts.
type vkFixtureServer struct {
	server *httptest.Server

	usersGetCalls atomic.Int32
	executeCalls  atomic.Int32
	giftsGetCalls atomic.Int32
}

func newVKFixtureServer(t *testing.T) *vkFixtureServer {
	t.Helper()
	fixture := &vkFixtureServer{}
	fixture.server = httptest.NewServer(http.HandlerFunc(fixture.handle))
	t.Cleanup(fixture.server.Close)
	return fixture
}

func (fixture *vkFixtureServer) handle(responseWriter http.ResponseWriter, request *http.Request) {
	if parseErr := request.ParseForm(); parseErr != nil {
		http.Error(responseWriter, parseErr.Error(), http.StatusBadRequest)
		return
	}
	methodName := strings.TrimPrefix(request.URL.Path, "/")
	var body string
	switch methodName {
	case "users.get":
		fixture.usersGetCalls.Add(1)
		body = `{"response": [{"id": 100, "first_name": "Erik", "last_name": "Shmargunov", "screen_name": "eshmargunov", "photo_200": "https://img/100"}]}`
	case "friends.get":
		body = `{"response": {"count": 3, "items": [
			{"id": 101, "first_name": "Anna", "last_name": "Alpha", "photo_200": "https://img/101"},
			{"id": 102, "first_name": "Boris", "last_name": "Beta"},
			{"id": 103, "first_name": "Vera", "last_name": "Gamma", "deactivated": "deleted"}
		]}}`
	case "execute":
		fixture.executeCalls.Add(1)
		body = `{"response": {"101": [102], "102": [101]}}`
	case "gifts.get":
		fixture.giftsGetCalls.Add(1)
		switch request.PostForm.Get("user_id") {
		case "101":
			body = `{"response": {"items": [{"from_id": 102}, {"from_id": 102}, {"from_id": 100}]}}`
		default:
			body = `{"response": {"items": []}}`
		}
	case "wall.get":
		switch request.PostForm.Get("owner_id") {
		case "101":
			body = `{"response": {"items": [{"id": 1, "owner_id": 101}]}}`
		default:
			body = `{"response": {"items": []}}`
		}
	case "likes.getList":
		body = `{"response": {"items": [102, 100]}}`
	case "wall.getComments":
		body = `{"response": {"items": [{"from_id": 102}]}}`
	default:
		body = fmt.Sprintf(`{"error": {"error_code": 3, "error_msg": "unknown method %s"}}`, methodName)
	}
	responseWriter.Header().Set("Content-Type", "application/json")
	_, _ = responseWriter.Write([]byte(body))
}

func newIntegrationService(t *testing.T, fixture *vkFixtureServer) (*analysis.Service, profile.Store) {
	t.Helper()

	redisServer := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: redisServer.Addr()})
	t.Cleanup(func() {
		_ = redisClient.Close()
	})
	store := profile.NewRedisStore(redisClient)

	service, serviceErr := analysis.NewService(analysis.Config{
		Store: store,
		NewVKClient: func(accessToken string) (analysis.VKClient, error) {
			return vk.NewClient(vk.Config{
				BaseURL:           fixture.server.URL,
				AccessToken:       accessToken,
				RequestsPerSecond: 1000,
				RequestBurst:      1000,
			})
		},
	})
	if serviceErr != nil {
		t.Fatalf("unexpected service error: %v", serviceErr)
	}
	return service, store
}

func TestVKPipelineEndToEnd(t *testing.T) {
	fixture := newVKFixtureServer(t)
	service, store := newIntegrationService(t, fixture)

	identifier, parseErr := social.ParseIdentifier("eshmargunov")
	if parseErr != nil {
		t.Fatalf("unexpected parse error: %v", parseErr)
	}
	request := analysis.Request{AccessToken: "integration-token", Identifier: identifier}

	result, analyzeErr := service.AnalyzeVK(context.Background(), request)
	if analyzeErr != nil {
		t.Fatalf("unexpected analyze error: %v", analyzeErr)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected accumulated failures: %v", result.Errors)
	}

	if result.Profile.UID != 100 {
		t.Fatalf("unexpected profile %+v", result.Profile)
	}
	if !result.Profile.HasStatistics() {
		t.Fatal("expected all three matrices computed")
	}
	// deactivated friend 103 is excluded from provider calls but keeps a node
	if len(result.Graph.Nodes) != 4 {
		t.Fatalf("expected 4 nodes, got %d", len(result.Graph.Nodes))
	}
	if result.Profile.Gifts.Weight(101, 102) != 2 {
		t.Fatalf("expected two gifts from 102 to 101, got %d", result.Profile.Gifts.Weight(101, 102))
	}
	if result.Profile.Likes.Weight(101, 100) != 1 {
		t.Fatalf("expected one like from the analyzed user, got %d", result.Profile.Likes.Weight(101, 100))
	}
	if result.Profile.Comments.Weight(101, 102) != 1 {
		t.Fatalf("expected one comment from 102, got %d", result.Profile.Comments.Weight(101, 102))
	}

	if len(result.Graph.CloseFriends) != 2 {
		t.Fatalf("expected two ranked close friends, got %+v", result.Graph.CloseFriends)
	}

	stored, loadErr := store.LoadByAlias(context.Background(), social.NetworkVK, "eshmargunov")
	if loadErr != nil {
		t.Fatalf("unexpected store error: %v", loadErr)
	}
	if !stored.HasStatistics() {
		t.Fatal("expected statistics persisted with the profile")
	}

	pageHTML, renderErr := graph.RenderPage(result.Graph)
	if renderErr != nil {
		t.Fatalf("unexpected render error: %v", renderErr)
	}
	if !strings.Contains(pageHTML, "Erik Shmargunov") {
		t.Fatal("expected the analyzed user in the rendered page")
	}
}

func TestVKPipelineReusesPersistedStatistics(t *testing.T) {
	fixture := newVKFixtureServer(t)
	service, _ := newIntegrationService(t, fixture)

	request := analysis.Request{AccessToken: "integration-token", Identifier: social.NumericIdentifier(100)}

	if _, firstErr := service.AnalyzeVK(context.Background(), request); firstErr != nil {
		t.Fatalf("unexpected first run error: %v", firstErr)
	}
	giftsCallsAfterFirst := fixture.giftsGetCalls.Load()
	if giftsCallsAfterFirst == 0 {
		t.Fatal("expected gift calls on the first run")
	}

	if _, secondErr := service.AnalyzeVK(context.Background(), request); secondErr != nil {
		t.Fatalf("unexpected second run error: %v", secondErr)
	}
	if fixture.giftsGetCalls.Load() != giftsCallsAfterFirst {
		t.Fatal("cached statistics must suppress repeat provider calls")
	}
	if fixture.usersGetCalls.Load() != 1 {
		t.Fatalf("expected the profile fetched once, got %d", fixture.usersGetCalls.Load())
	}
	// mutual resolution still runs every time: the topology is not cached
	if fixture.executeCalls.Load() != 2 {
		t.Fatalf("expected mutual resolution on both runs, got %d", fixture.executeCalls.Load())
	}
}
