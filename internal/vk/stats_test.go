package vk_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/v-graph/vgraph/internal/social"
	"github.com/v-graph/vgraph/internal/vk"
)

type statisticsCallerStub struct {
	gifts        map[int64][]vk.Gift
	posts        map[int64][]vk.Post
	likes        map[int64][]int64
	comments     map[int64][]vk.Comment
	giftsFailFor int64
	giftsFailErr error
	likesFailFor int64
	likesFailErr error

	wallCallCount  atomic.Int32
	likesCallCount atomic.Int32
}

func (stub *statisticsCallerStub) GiftsGet(_ context.Context, userID int64) ([]vk.Gift, error) {
	if userID == stub.giftsFailFor && stub.giftsFailErr != nil {
		return nil, stub.giftsFailErr
	}
	return stub.gifts[userID], nil
}

func (stub *statisticsCallerStub) WallGet(_ context.Context, ownerID int64, _ int) ([]vk.Post, error) {
	stub.wallCallCount.Add(1)
	return stub.posts[ownerID], nil
}

func (stub *statisticsCallerStub) LikesGetList(_ context.Context, ownerID int64, _ int64) ([]int64, error) {
	stub.likesCallCount.Add(1)
	if ownerID == stub.likesFailFor && stub.likesFailErr != nil {
		return nil, stub.likesFailErr
	}
	return stub.likes[ownerID], nil
}

func (stub *statisticsCallerStub) WallGetComments(_ context.Context, ownerID int64, _ int64) ([]vk.Comment, error) {
	return stub.comments[ownerID], nil
}

func newTestStatistics(stub *statisticsCallerStub) *vk.Statistics {
	friendIDs := []int64{101, 102, 103}
	topology := social.MutualTopology{
		101: {102},
		102: {101, 103},
		103: {},
	}
	return vk.NewStatistics(stub, 100, friendIDs, friendIDs, topology, nil)
}

func TestGiftsCountsTrackedSenders(t *testing.T) {
	stub := &statisticsCallerStub{
		gifts: map[int64][]vk.Gift{
			101: {{FromID: 102}, {FromID: 102}, {FromID: 100}},
			// anonymous gift and a sender outside the skeleton
			102: {{FromID: 0}, {FromID: 999}, {FromID: 103}},
		},
	}
	statistics := newTestStatistics(stub)

	matrix, failures := statistics.Gifts(context.Background())
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	if matrix.Weight(101, 102) != 2 {
		t.Fatalf("expected two gifts from 102 to 101, got %d", matrix.Weight(101, 102))
	}
	if matrix.Weight(101, 100) != 1 {
		t.Fatalf("expected one gift from the source user, got %d", matrix.Weight(101, 100))
	}
	if matrix.Weight(102, 103) != 1 {
		t.Fatalf("expected one gift from 103 to 102, got %d", matrix.Weight(102, 103))
	}
	if matrix.Weight(102, 999) != 0 {
		t.Fatal("sender outside the skeleton must be dropped")
	}
}

func TestGiftsReportsPerFriendFailures(t *testing.T) {
	stub := &statisticsCallerStub{
		gifts:        map[int64][]vk.Gift{101: {{FromID: 102}}},
		giftsFailFor: 102,
		giftsFailErr: &social.APIError{Kind: social.FaultRateLimited, Provider: "vk", Method: "gifts.get", Code: 6},
	}
	statistics := newTestStatistics(stub)

	matrix, failures := statistics.Gifts(context.Background())
	if matrix.Weight(101, 102) != 1 {
		t.Fatalf("successful friends must still aggregate, got %d", matrix.Weight(101, 102))
	}
	if len(failures) != 1 {
		t.Fatalf("expected one failure, got %v", failures)
	}
	var batchError *social.BatchRequestError
	if !errors.As(failures[0], &batchError) {
		t.Fatalf("expected BatchRequestError, got %T", failures[0])
	}
	if len(batchError.Targets) != 1 || batchError.Targets[0] != 102 {
		t.Fatalf("expected failed friend 102, got %v", batchError.Targets)
	}
}

func TestLikesCountsWallOwnersPerLike(t *testing.T) {
	stub := &statisticsCallerStub{
		posts: map[int64][]vk.Post{
			101: {{ID: 1, OwnerID: 101}, {ID: 2, OwnerID: 101}},
			102: {{ID: 3, OwnerID: 102}},
		},
		likes: map[int64][]int64{
			101: {102, 100},
			102: {101, 999},
		},
	}
	statistics := newTestStatistics(stub)

	matrix, failures := statistics.Likes(context.Background())
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	// both posts of 101 return the same likers
	if matrix.Weight(101, 102) != 2 {
		t.Fatalf("expected two likes from 102 on 101's wall, got %d", matrix.Weight(101, 102))
	}
	if matrix.Weight(101, 100) != 2 {
		t.Fatalf("expected two likes from the source user, got %d", matrix.Weight(101, 100))
	}
	if matrix.Weight(102, 101) != 1 {
		t.Fatalf("expected one like from 101 on 102's wall, got %d", matrix.Weight(102, 101))
	}
	if matrix.Weight(102, 999) != 0 {
		t.Fatal("liker outside the skeleton must be dropped")
	}
}

func TestLikesAddressEngagementToPostOwner(t *testing.T) {
	stub := &statisticsCallerStub{
		posts: map[int64][]vk.Post{
			// 101's wall carries a repost owned by 205; 102's payload omits
			// the owner entirely
			101: {{ID: 7, OwnerID: 205}},
			102: {{ID: 8}},
		},
		likes: map[int64][]int64{
			205: {102},
			102: {101},
		},
	}
	statistics := newTestStatistics(stub)

	matrix, failures := statistics.Likes(context.Background())
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	if matrix.Weight(101, 102) != 1 {
		t.Fatalf("likes on a repost must be fetched from the originating owner, got %d", matrix.Weight(101, 102))
	}
	if matrix.Weight(102, 101) != 1 {
		t.Fatalf("posts without an owner must fall back to the wall owner, got %d", matrix.Weight(102, 101))
	}
}

func TestLikesSkipsFriendsWithoutPosts(t *testing.T) {
	stub := &statisticsCallerStub{posts: map[int64][]vk.Post{}}
	statistics := newTestStatistics(stub)

	_, failures := statistics.Likes(context.Background())
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	if got := stub.wallCallCount.Load(); got != 3 {
		t.Fatalf("expected one wall fetch per friend, got %d", got)
	}
	if got := stub.likesCallCount.Load(); got != 0 {
		t.Fatalf("friends without posts must trigger no like fetches, got %d", got)
	}
}

func TestLikesSurvivesSinglePostFailure(t *testing.T) {
	stub := &statisticsCallerStub{
		posts: map[int64][]vk.Post{
			101: {{ID: 1, OwnerID: 101}},
			102: {{ID: 2, OwnerID: 102}},
		},
		likes:        map[int64][]int64{101: {102}},
		likesFailFor: 102,
		likesFailErr: &social.APIError{Kind: social.FaultProvider, Provider: "vk", Method: "likes.getList", Code: 15},
	}
	statistics := newTestStatistics(stub)

	matrix, failures := statistics.Likes(context.Background())
	if matrix.Weight(101, 102) != 1 {
		t.Fatalf("other friends must still aggregate, got %d", matrix.Weight(101, 102))
	}
	if len(failures) != 1 {
		t.Fatalf("expected the failed friend reported once, got %v", failures)
	}
}

func TestCommentsCountsAuthors(t *testing.T) {
	stub := &statisticsCallerStub{
		posts: map[int64][]vk.Post{
			101: {{ID: 1, OwnerID: 101}},
		},
		comments: map[int64][]vk.Comment{
			101: {{FromID: 102}, {FromID: 102}, {FromID: 0}},
		},
	}
	statistics := newTestStatistics(stub)

	matrix, failures := statistics.Comments(context.Background())
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	if matrix.Weight(101, 102) != 2 {
		t.Fatalf("expected two comments from 102, got %d", matrix.Weight(101, 102))
	}
}

func TestStagesShareOneSkeleton(t *testing.T) {
	stub := &statisticsCallerStub{
		gifts: map[int64][]vk.Gift{101: {{FromID: 102}}},
	}
	statistics := newTestStatistics(stub)

	first, _ := statistics.Gifts(context.Background())
	second, _ := statistics.Gifts(context.Background())
	if first.Weight(101, 102) != 1 || second.Weight(101, 102) != 1 {
		t.Fatal("each stage run must start from the zero-weight skeleton")
	}
	if statistics.Skeleton().Weight(101, 102) != 0 {
		t.Fatal("the shared skeleton must stay zero-weight")
	}
}
