package vk

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/v-graph/vgraph/internal/incidence"
	"github.com/v-graph/vgraph/internal/social"
)

const (
	// WallPostFetchCount caps how many recent posts the wall-based metrics
	// enumerate per friend.
	WallPostFetchCount = 25

	defaultStatsConcurrency = 4
	logMessageStageFailure  = "statistics stage call failed"
	logFieldFriendID        = "friend_id"
	logFieldPostID          = "post_id"
)

// StatisticsCaller is the slice of the client the aggregator depends on.
// *Client satisfies it.
type StatisticsCaller interface {
	GiftsGet(ctx context.Context, userID int64) ([]Gift, error)
	WallGet(ctx context.Context, ownerID int64, count int) ([]Post, error)
	LikesGetList(ctx context.Context, ownerID int64, itemID int64) ([]int64, error)
	WallGetComments(ctx context.Context, ownerID int64, postID int64) ([]Comment, error)
}

// interaction is one (recipient, actor) increment produced by a stage.
type interaction struct {
	recipientID int64
	actorID     int64
}

// Statistics aggregates gift, like, and comment events for one source
// user's friends into incidence matrices seeded from the mutual topology.
// The skeleton is read-only during the fan-out; increments apply in a
// single merge step after each stage's calls complete.
type Statistics struct {
	caller          StatisticsCaller
	sourceUserID    int64
	activeFriendIDs []int64
	skeleton        incidence.Matrix
	concurrency     int
	logger          *zap.Logger
}

// NewStatistics seeds the skeleton and prepares the aggregation stages.
// friendIDs must cover the full friend list; activeFriendIDs restricts the
// provider calls to friends that accept them.
func NewStatistics(caller StatisticsCaller, sourceUserID int64, activeFriendIDs []int64, friendIDs []int64, topology social.MutualTopology, logger *zap.Logger) *Statistics {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Statistics{
		caller:          caller,
		sourceUserID:    sourceUserID,
		activeFriendIDs: activeFriendIDs,
		skeleton:        incidence.Seed(sourceUserID, friendIDs, topology),
		concurrency:     defaultStatsConcurrency,
		logger:          logger,
	}
}

// Skeleton returns the zero-weight cell set the stages increment into.
func (statistics *Statistics) Skeleton() incidence.Matrix {
	return statistics.skeleton.Clone()
}

// Gifts fetches each friend's received gifts and counts (recipient, sender)
// events. Call failures are collected per friend; the other friends still
// aggregate.
func (statistics *Statistics) Gifts(ctx context.Context) (incidence.Matrix, []error) {
	return statistics.runStage(ctx, func(ctx context.Context, friendID int64) ([]interaction, error) {
		gifts, callErr := statistics.caller.GiftsGet(ctx, friendID)
		if callErr != nil {
			return nil, callErr
		}
		interactions := make([]interaction, 0, len(gifts))
		for _, gift := range gifts {
			if gift.FromID == 0 {
				continue
			}
			interactions = append(interactions, interaction{recipientID: friendID, actorID: gift.FromID})
		}
		return interactions, nil
	})
}

// Likes enumerates each friend's recent posts and counts one (wall owner,
// liker) event per like. Friends with no posts contribute no second-stage
// calls.
func (statistics *Statistics) Likes(ctx context.Context) (incidence.Matrix, []error) {
	return statistics.runStage(ctx, func(ctx context.Context, friendID int64) ([]interaction, error) {
		return statistics.collectWallEngagement(ctx, friendID, func(ctx context.Context, post Post) ([]int64, error) {
			return statistics.caller.LikesGetList(ctx, postOwner(post, friendID), post.ID)
		})
	})
}

// Comments enumerates each friend's recent posts and counts one (wall
// owner, commenter) event per comment.
func (statistics *Statistics) Comments(ctx context.Context) (incidence.Matrix, []error) {
	return statistics.runStage(ctx, func(ctx context.Context, friendID int64) ([]interaction, error) {
		return statistics.collectWallEngagement(ctx, friendID, func(ctx context.Context, post Post) ([]int64, error) {
			comments, callErr := statistics.caller.WallGetComments(ctx, postOwner(post, friendID), post.ID)
			if callErr != nil {
				return nil, callErr
			}
			actorIDs := make([]int64, 0, len(comments))
			for _, comment := range comments {
				if comment.FromID != 0 {
					actorIDs = append(actorIDs, comment.FromID)
				}
			}
			return actorIDs, nil
		})
	})
}

// postOwner prefers the owner recorded on the post itself, so engagement
// lookups for reposted items address the originating wall. Payloads that
// omit the owner fall back to the wall being enumerated.
func postOwner(post Post, wallOwnerID int64) int64 {
	if post.OwnerID != 0 {
		return post.OwnerID
	}
	return wallOwnerID
}

// collectWallEngagement runs the two-stage wall fan-out for one friend. A
// failed post fetch aborts the friend; a failed engagement fetch for one
// post is reported while other posts still count.
func (statistics *Statistics) collectWallEngagement(ctx context.Context, friendID int64, fetchActors func(ctx context.Context, post Post) ([]int64, error)) ([]interaction, error) {
	posts, wallErr := statistics.caller.WallGet(ctx, friendID, WallPostFetchCount)
	if wallErr != nil {
		return nil, wallErr
	}
	if len(posts) == 0 {
		return nil, nil
	}

	var interactions []interaction
	var firstPostErr error
	for _, post := range posts {
		actorIDs, fetchErr := fetchActors(ctx, post)
		if fetchErr != nil {
			statistics.logger.Warn(logMessageStageFailure,
				zap.Int64(logFieldFriendID, friendID),
				zap.Int64(logFieldPostID, post.ID),
				zap.Error(fetchErr))
			if firstPostErr == nil {
				firstPostErr = fetchErr
			}
			continue
		}
		for _, actorID := range actorIDs {
			interactions = append(interactions, interaction{recipientID: friendID, actorID: actorID})
		}
	}
	return interactions, firstPostErr
}

// runStage fans one fetch function out over the active friends, then folds
// the collected interactions into a fresh copy of the skeleton. Increments
// targeting cells outside the skeleton are dropped.
func (statistics *Statistics) runStage(ctx context.Context, fetchFriend func(ctx context.Context, friendID int64) ([]interaction, error)) (incidence.Matrix, []error) {
	type friendResult struct {
		friendID     int64
		interactions []interaction
		err          error
	}

	var (
		resultsMutex sync.Mutex
		results      []friendResult
		group        errgroup.Group
	)
	group.SetLimit(statistics.concurrency)
	for _, friendID := range statistics.activeFriendIDs {
		friendID := friendID
		group.Go(func() error {
			interactions, fetchErr := fetchFriend(ctx, friendID)
			resultsMutex.Lock()
			results = append(results, friendResult{friendID: friendID, interactions: interactions, err: fetchErr})
			resultsMutex.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	matrix := statistics.skeleton.Clone()
	var failures []error
	for _, result := range results {
		if result.err != nil {
			failures = append(failures, &social.BatchRequestError{Targets: []int64{result.friendID}, Err: result.err})
		}
		for _, event := range result.interactions {
			matrix.Increment(event.recipientID, event.actorID)
		}
	}
	return matrix, failures
}
