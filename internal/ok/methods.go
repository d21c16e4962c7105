package ok

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/v-graph/vgraph/internal/social"
)

const (
	methodUsersGetInfo     = "users.getInfo"
	methodFriendsGet       = "friends.get"
	methodFriendsGetMutual = "friends.getMutualFriends"

	parameterUIDs         = "uids"
	parameterFriendID     = "fid"
	parameterSourceID     = "source_id"
	parameterTargetID     = "target_id"
	parameterFields       = "fields"
	userInfoFields        = "uid,first_name,last_name,age,location,pic190x190"
	decodeErrorFormat     = "decode %s response: %w"
	logMessageMutualError = "ok mutual friends call failed"
	logFieldTargetID      = "target_id"
)

// UserInfo is the profile payload returned by users.getInfo. OK transmits
// identifiers as strings; UID keeps the wire form and ID() normalizes it.
type UserInfo struct {
	UID        string `json:"uid"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Pic190x190 string `json:"pic190x190"`
}

// ID returns the numeric form of the user identifier.
func (info UserInfo) ID() int64 {
	numericID, _ := strconv.ParseInt(info.UID, 10, 64)
	return numericID
}

// UsersGetInfo fetches profile information for the given user IDs.
func (client *Client) UsersGetInfo(ctx context.Context, userIDs []int64) ([]UserInfo, error) {
	wireIDs := make([]string, 0, len(userIDs))
	for _, userID := range userIDs {
		wireIDs = append(wireIDs, strconv.FormatInt(userID, 10))
	}

	params := url.Values{}
	params.Set(parameterUIDs, strings.Join(wireIDs, ","))
	params.Set(parameterFields, userInfoFields)

	payload, callErr := client.Call(ctx, methodUsersGetInfo, params)
	if callErr != nil {
		return nil, callErr
	}
	var users []UserInfo
	if unmarshalErr := json.Unmarshal(payload, &users); unmarshalErr != nil {
		return nil, fmt.Errorf(decodeErrorFormat, methodUsersGetInfo, unmarshalErr)
	}
	return users, nil
}

// FriendsGet fetches the friend IDs of one user and resolves their profile
// records so the friend list carries display fields like the VK one.
func (client *Client) FriendsGet(ctx context.Context, userID int64) (social.FriendList, error) {
	params := url.Values{}
	params.Set(parameterFriendID, strconv.FormatInt(userID, 10))

	payload, callErr := client.Call(ctx, methodFriendsGet, params)
	if callErr != nil {
		return social.FriendList{}, callErr
	}
	var wireIDs []string
	if unmarshalErr := json.Unmarshal(payload, &wireIDs); unmarshalErr != nil {
		return social.FriendList{}, fmt.Errorf(decodeErrorFormat, methodFriendsGet, unmarshalErr)
	}

	friendIDs := make([]int64, 0, len(wireIDs))
	for _, wireID := range wireIDs {
		if friendID, parseErr := strconv.ParseInt(wireID, 10, 64); parseErr == nil {
			friendIDs = append(friendIDs, friendID)
		}
	}

	friendList := social.FriendList{Count: len(friendIDs), Items: make([]social.FriendSummary, 0, len(friendIDs))}
	recordsByID := make(map[int64]UserInfo, len(friendIDs))
	for _, batch := range social.ChunkIDs(friendIDs, UsersInfoBatchLimit) {
		users, infoErr := client.UsersGetInfo(ctx, batch)
		if infoErr != nil {
			return social.FriendList{}, infoErr
		}
		for _, user := range users {
			recordsByID[user.ID()] = user
		}
	}
	for _, friendID := range friendIDs {
		record := recordsByID[friendID]
		friendList.Items = append(friendList.Items, social.FriendSummary{
			ID:        friendID,
			FirstName: record.FirstName,
			LastName:  record.LastName,
			PhotoURL:  record.Pic190x190,
		})
	}
	return friendList, nil
}

// UsersInfoBatchLimit caps the number of IDs one users.getInfo call covers.
const UsersInfoBatchLimit = 100

// MutualResolver resolves mutual friends one target per call, OK's only
// supported shape. A failed target is reported while the rest resolve.
type MutualResolver struct {
	client *Client
	logger *zap.Logger
}

// NewMutualResolver constructs the OK mutual-friends resolver.
func NewMutualResolver(client *Client, logger *zap.Logger) *MutualResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MutualResolver{client: client, logger: logger}
}

// Resolve computes the mutual topology for the given targets.
func (resolver *MutualResolver) Resolve(ctx context.Context, sourceUserID int64, targetFriendIDs []int64) (social.MutualTopology, []error) {
	topology := social.MutualTopology{}
	var failures []error
	for _, targetID := range targetFriendIDs {
		params := url.Values{}
		params.Set(parameterSourceID, strconv.FormatInt(sourceUserID, 10))
		params.Set(parameterTargetID, strconv.FormatInt(targetID, 10))

		payload, callErr := resolver.client.Call(ctx, methodFriendsGetMutual, params)
		if callErr != nil {
			resolver.logger.Warn(logMessageMutualError, zap.Int64(logFieldTargetID, targetID), zap.Error(callErr))
			failures = append(failures, &social.BatchRequestError{Targets: []int64{targetID}, Err: callErr})
			continue
		}
		var wireIDs []string
		if unmarshalErr := json.Unmarshal(payload, &wireIDs); unmarshalErr != nil {
			failures = append(failures, &social.BatchRequestError{Targets: []int64{targetID}, Err: fmt.Errorf(decodeErrorFormat, methodFriendsGetMutual, unmarshalErr)})
			continue
		}
		mutualIDs := make([]int64, 0, len(wireIDs))
		for _, wireID := range wireIDs {
			if mutualID, parseErr := strconv.ParseInt(wireID, 10, 64); parseErr == nil {
				mutualIDs = append(mutualIDs, mutualID)
			}
		}
		topology[targetID] = mutualIDs
	}
	return topology, failures
}
