package social_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/v-graph/vgraph/internal/social"
)

func TestFaultClassificationPredicates(t *testing.T) {
	testCases := []struct {
		name                  string
		err                   error
		expectRateLimited     bool
		expectInvalidTarget   bool
		expectConnectionFault bool
	}{
		{
			name:              "rate limited fault",
			err:               &social.APIError{Kind: social.FaultRateLimited, Provider: "vk", Method: "friends.get"},
			expectRateLimited: true,
		},
		{
			name:                "invalid target fault",
			err:                 &social.APIError{Kind: social.FaultInvalidTarget, Provider: "vk", Method: "friends.getMutual"},
			expectInvalidTarget: true,
		},
		{
			name:                  "connection fault",
			err:                   &social.APIError{Kind: social.FaultConnection, Provider: "ok", Method: "friends.get"},
			expectConnectionFault: true,
		},
		{
			name: "provider fault matches no predicate",
			err:  &social.APIError{Kind: social.FaultProvider, Provider: "vk", Method: "execute"},
		},
		{
			name: "plain error matches no predicate",
			err:  errors.New("boom"),
		},
		{
			name:              "wrapped fault is still classified",
			err:               fmt.Errorf("stage: %w", &social.APIError{Kind: social.FaultRateLimited, Provider: "vk", Method: "gifts.get"}),
			expectRateLimited: true,
		},
		{
			name:                "batch error exposes its cause",
			err:                 &social.BatchRequestError{Targets: []int64{1, 2}, Err: &social.APIError{Kind: social.FaultInvalidTarget, Provider: "vk", Method: "execute"}},
			expectInvalidTarget: true,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if social.IsRateLimited(testCase.err) != testCase.expectRateLimited {
				t.Fatalf("IsRateLimited mismatch for %v", testCase.err)
			}
			if social.IsInvalidTarget(testCase.err) != testCase.expectInvalidTarget {
				t.Fatalf("IsInvalidTarget mismatch for %v", testCase.err)
			}
			if social.IsConnectionFailure(testCase.err) != testCase.expectConnectionFault {
				t.Fatalf("IsConnectionFailure mismatch for %v", testCase.err)
			}
		})
	}
}

func TestAPIErrorMessageIncludesContext(t *testing.T) {
	apiError := &social.APIError{
		Kind:     social.FaultProvider,
		Provider: "vk",
		Method:   "wall.get",
		Code:     15,
		Message:  "access denied",
	}
	rendered := apiError.Error()
	for _, fragment := range []string{"vk", "wall.get", "access denied"} {
		if !strings.Contains(rendered, fragment) {
			t.Fatalf("expected error text to contain %q, got %q", fragment, rendered)
		}
	}
}

func TestBatchRequestErrorReportsTargetCount(t *testing.T) {
	batchError := &social.BatchRequestError{
		Targets: []int64{10, 20, 30},
		Err:     errors.New("timeout"),
	}
	if !strings.Contains(batchError.Error(), "3 target(s)") {
		t.Fatalf("expected target count in %q", batchError.Error())
	}
	if !strings.Contains(batchError.Error(), "timeout") {
		t.Fatalf("expected cause in %q", batchError.Error())
	}
}
