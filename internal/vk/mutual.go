package vk

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/v-graph/vgraph/internal/social"
)

const (
	executeCodeReturnOpen    = "return {"
	executeCodeReturnClose   = "};"
	executeCodeEntryFormat   = `"%d": API.friends.getMutual({"source_uid":%d, "target_uid":%d}),`
	errMessageDecodeMutual   = "decode mutual batch payload"
	defaultBatchConcurrency  = 4
	logMessageBatchFailed    = "mutual friends batch failed"
	logFieldBatchSize        = "batch_size"
	mutualKeyParseErrFormat  = "mutual batch key %q is not numeric: %w"
	falseLiteralPayloadValue = "false"
)

// MutualResolver computes the mutual-friend topology for a set of target
// friends against one source user. Two strategies implement it: the bulk
// execute-backed resolver and the serial per-target resolver.
type MutualResolver interface {
	Resolve(ctx context.Context, sourceUserID int64, targetFriendIDs []int64) (social.MutualTopology, []error)
}

// ExecuteCaller issues bulk execute calls. *Client satisfies it.
type ExecuteCaller interface {
	Execute(ctx context.Context, code string) (json.RawMessage, error)
}

// MutualCaller issues single-target mutual-friend calls. *Client satisfies it.
type MutualCaller interface {
	FriendsGetMutual(ctx context.Context, sourceUserID int64, targetUserID int64) ([]int64, error)
}

// BulkMutualResolver resolves mutual friends through the execute endpoint,
// covering up to ExecuteBatchLimit targets per call. Batches run
// concurrently; one batch's failure leaves sibling batches intact.
type BulkMutualResolver struct {
	caller      ExecuteCaller
	concurrency int
	logger      *zap.Logger
}

// NewBulkMutualResolver constructs the execute-backed resolver.
func NewBulkMutualResolver(caller ExecuteCaller, logger *zap.Logger) *BulkMutualResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BulkMutualResolver{caller: caller, concurrency: defaultBatchConcurrency, logger: logger}
}

// Resolve computes the topology for the given targets. Failed batches are
// reported as BatchRequestError values; batches already merged stay valid.
func (resolver *BulkMutualResolver) Resolve(ctx context.Context, sourceUserID int64, targetFriendIDs []int64) (social.MutualTopology, []error) {
	topology := social.MutualTopology{}
	batches := social.ChunkIDs(targetFriendIDs, ExecuteBatchLimit)
	if len(batches) == 0 {
		return topology, nil
	}

	type batchResult struct {
		topology social.MutualTopology
		err      error
		targets  []int64
	}

	var (
		resultsMutex sync.Mutex
		results      []batchResult
		group        errgroup.Group
	)
	group.SetLimit(resolver.concurrency)
	for _, batch := range batches {
		batch := batch
		group.Go(func() error {
			batchTopology, batchErr := resolver.resolveBatch(ctx, sourceUserID, batch)
			resultsMutex.Lock()
			results = append(results, batchResult{topology: batchTopology, err: batchErr, targets: batch})
			resultsMutex.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	var failures []error
	for _, result := range results {
		if result.err != nil {
			resolver.logger.Warn(logMessageBatchFailed, zap.Int(logFieldBatchSize, len(result.targets)), zap.Error(result.err))
			failures = append(failures, &social.BatchRequestError{Targets: result.targets, Err: result.err})
			continue
		}
		for friendID, mutualIDs := range result.topology {
			topology[friendID] = mutualIDs
		}
	}
	return topology, failures
}

func (resolver *BulkMutualResolver) resolveBatch(ctx context.Context, sourceUserID int64, batch []int64) (social.MutualTopology, error) {
	payload, executeErr := resolver.caller.Execute(ctx, buildMutualBatchCode(sourceUserID, batch))
	if executeErr != nil {
		return nil, executeErr
	}

	var keyedPayload map[string]json.RawMessage
	if unmarshalErr := json.Unmarshal(payload, &keyedPayload); unmarshalErr != nil {
		return nil, fmt.Errorf("%s: %w", errMessageDecodeMutual, unmarshalErr)
	}

	batchTopology := make(social.MutualTopology, len(keyedPayload))
	for key, value := range keyedPayload {
		friendID, parseErr := strconv.ParseInt(key, 10, 64)
		if parseErr != nil {
			return nil, fmt.Errorf(mutualKeyParseErrFormat, key, parseErr)
		}
		batchTopology[friendID] = decodeMutualIDs(value)
	}
	return batchTopology, nil
}

// buildMutualBatchCode assembles the VKScript object literal whose result is
// keyed by target ID.
func buildMutualBatchCode(sourceUserID int64, batch []int64) string {
	var codeBuilder strings.Builder
	codeBuilder.WriteString(executeCodeReturnOpen)
	for _, targetID := range batch {
		fmt.Fprintf(&codeBuilder, executeCodeEntryFormat, targetID, sourceUserID, targetID)
	}
	codeBuilder.WriteString(executeCodeReturnClose)
	return codeBuilder.String()
}

// decodeMutualIDs interprets one execute result value. Closed profiles come
// back as the literal false; those targets keep an empty mutual set.
func decodeMutualIDs(value json.RawMessage) []int64 {
	trimmed := strings.TrimSpace(string(value))
	if trimmed == "" || trimmed == falseLiteralPayloadValue {
		return []int64{}
	}
	var mutualIDs []int64
	if unmarshalErr := json.Unmarshal(value, &mutualIDs); unmarshalErr != nil {
		return []int64{}
	}
	return mutualIDs
}

// SerialMutualResolver resolves mutual friends one target per call. It is
// the degenerate batch-size-one strategy behind the same interface.
type SerialMutualResolver struct {
	caller MutualCaller
	logger *zap.Logger
}

// NewSerialMutualResolver constructs the per-target resolver.
func NewSerialMutualResolver(caller MutualCaller, logger *zap.Logger) *SerialMutualResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SerialMutualResolver{caller: caller, logger: logger}
}

// Resolve queries each target in order; a failed target is reported and the
// remaining targets still resolve.
func (resolver *SerialMutualResolver) Resolve(ctx context.Context, sourceUserID int64, targetFriendIDs []int64) (social.MutualTopology, []error) {
	topology := social.MutualTopology{}
	var failures []error
	for _, targetID := range targetFriendIDs {
		mutualIDs, callErr := resolver.caller.FriendsGetMutual(ctx, sourceUserID, targetID)
		if callErr != nil {
			resolver.logger.Warn(logMessageBatchFailed, zap.Int64("target_id", targetID), zap.Error(callErr))
			failures = append(failures, &social.BatchRequestError{Targets: []int64{targetID}, Err: callErr})
			continue
		}
		topology[targetID] = mutualIDs
	}
	return topology, failures
}
