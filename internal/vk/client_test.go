package vk_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/v-graph/vgraph/internal/social"
	"github.com/v-graph/vgraph/internal/vk"
)

const testAccessToken = "test-token"

func newTestClient(t *testing.T, handler http.HandlerFunc) (*vk.Client, *httptest.Server) {
	t.Helper()
	testServer := httptest.NewServer(handler)
	t.Cleanup(testServer.Close)

	client, clientErr := vk.NewClient(vk.Config{
		BaseURL:           testServer.URL,
		AccessToken:       testAccessToken,
		RequestsPerSecond: 1000,
		RequestBurst:      1000,
	})
	if clientErr != nil {
		t.Fatalf("unexpected client error: %v", clientErr)
	}
	return client, testServer
}

func TestCallSendsTokenAndVersion(t *testing.T) {
	var observedForm url.Values
	var observedPath string
	client, _ := newTestClient(t, func(responseWriter http.ResponseWriter, request *http.Request) {
		if parseErr := request.ParseForm(); parseErr != nil {
			t.Errorf("parse form: %v", parseErr)
		}
		observedForm = request.PostForm
		observedPath = request.URL.Path
		_, _ = responseWriter.Write([]byte(`{"response": [1, 2, 3]}`))
	})

	payload, callErr := client.Call(context.Background(), "friends.getMutual", url.Values{"target_uid": []string{"7"}})
	if callErr != nil {
		t.Fatalf("unexpected error: %v", callErr)
	}
	var decoded []int64
	if unmarshalErr := json.Unmarshal(payload, &decoded); unmarshalErr != nil {
		t.Fatalf("decode payload: %v", unmarshalErr)
	}
	if len(decoded) != 3 {
		t.Fatalf("expected 3 elements, got %v", decoded)
	}
	if observedPath != "/friends.getMutual" {
		t.Fatalf("expected method path, got %q", observedPath)
	}
	if observedForm.Get("access_token") != testAccessToken {
		t.Fatalf("expected access token on the wire, got %q", observedForm.Get("access_token"))
	}
	if observedForm.Get("v") == "" {
		t.Fatal("expected API version on the wire")
	}
	if observedForm.Get("target_uid") != "7" {
		t.Fatalf("expected caller parameters preserved, got %q", observedForm.Get("target_uid"))
	}
}

func TestCallClassifiesProviderErrors(t *testing.T) {
	testCases := []struct {
		name              string
		responseBody      string
		expectedCode      int
		expectRateLimited bool
		expectInvalid     bool
		expectConnection  bool
	}{
		{
			name:              "rate limit error code",
			responseBody:      `{"error": {"error_code": 6, "error_msg": "Too many requests per second"}}`,
			expectedCode:      6,
			expectRateLimited: true,
		},
		{
			name:          "invalid user error code",
			responseBody:  `{"error": {"error_code": 113, "error_msg": "Invalid user id"}}`,
			expectedCode:  113,
			expectInvalid: true,
		},
		{
			name:         "other provider error stays a provider fault",
			responseBody: `{"error": {"error_code": 15, "error_msg": "Access denied"}}`,
			expectedCode: 15,
		},
		{
			name:             "malformed body is a connection failure",
			responseBody:     `<html>gateway timeout</html>`,
			expectConnection: true,
		},
		{
			name:             "empty envelope is a connection failure",
			responseBody:     `{}`,
			expectConnection: true,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(responseWriter http.ResponseWriter, _ *http.Request) {
				_, _ = responseWriter.Write([]byte(testCase.responseBody))
			})

			_, callErr := client.Call(context.Background(), "friends.get", nil)
			if callErr == nil {
				t.Fatal("expected an error")
			}
			if social.IsRateLimited(callErr) != testCase.expectRateLimited {
				t.Fatalf("rate-limit classification mismatch: %v", callErr)
			}
			if social.IsInvalidTarget(callErr) != testCase.expectInvalid {
				t.Fatalf("invalid-target classification mismatch: %v", callErr)
			}
			if social.IsConnectionFailure(callErr) != testCase.expectConnection {
				t.Fatalf("connection classification mismatch: %v", callErr)
			}

			var apiError *social.APIError
			if !errors.As(callErr, &apiError) {
				t.Fatalf("expected APIError, got %T", callErr)
			}
			if testCase.expectedCode != 0 && apiError.Code != testCase.expectedCode {
				t.Fatalf("expected provider code %d, got %d", testCase.expectedCode, apiError.Code)
			}
		})
	}
}

func TestCallReportsTransportFailure(t *testing.T) {
	client, testServer := newTestClient(t, func(http.ResponseWriter, *http.Request) {})
	testServer.Close()

	_, callErr := client.Call(context.Background(), "users.get", nil)
	if !social.IsConnectionFailure(callErr) {
		t.Fatalf("expected connection failure, got %v", callErr)
	}
}

func TestUsersGetChunksIdentifiers(t *testing.T) {
	identifiers := make([]string, 0, vk.UsersBatchLimit+5)
	for index := 0; index < vk.UsersBatchLimit+5; index++ {
		identifiers = append(identifiers, "user")
	}

	var callCount int
	client, _ := newTestClient(t, func(responseWriter http.ResponseWriter, request *http.Request) {
		callCount++
		_, _ = responseWriter.Write([]byte(`{"response": [{"id": 1, "first_name": "A"}]}`))
	})

	users, callErr := client.UsersGet(context.Background(), identifiers)
	if callErr != nil {
		t.Fatalf("unexpected error: %v", callErr)
	}
	if callCount != 2 {
		t.Fatalf("expected 2 chunked calls, got %d", callCount)
	}
	if len(users) != 2 {
		t.Fatalf("expected concatenated results, got %d users", len(users))
	}
}

func TestFriendsGetMapsSummaries(t *testing.T) {
	client, _ := newTestClient(t, func(responseWriter http.ResponseWriter, _ *http.Request) {
		_, _ = responseWriter.Write([]byte(`{"response": {"count": 2, "items": [
			{"id": 11, "first_name": "Ann", "last_name": "Петрова", "photo_200": "https://img/a"},
			{"id": 12, "first_name": "Bob", "deactivated": "deleted"}
		]}}`))
	})

	friendList, callErr := client.FriendsGet(context.Background(), 1)
	if callErr != nil {
		t.Fatalf("unexpected error: %v", callErr)
	}
	if friendList.Count != 2 || len(friendList.Items) != 2 {
		t.Fatalf("unexpected list %+v", friendList)
	}
	if friendList.Items[0].PhotoURL != "https://img/a" {
		t.Fatalf("expected photo mapped, got %q", friendList.Items[0].PhotoURL)
	}
	if friendList.Items[1].IsActive() {
		t.Fatal("deactivated friend must not be active")
	}
	activeIDs := friendList.ActiveIDs()
	if len(activeIDs) != 1 || activeIDs[0] != 11 {
		t.Fatalf("expected active IDs [11], got %v", activeIDs)
	}
}
