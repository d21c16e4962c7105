package vk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/v-graph/vgraph/internal/social"
)

const (
	methodUsersGet        = "users.get"
	methodFriendsGet      = "friends.get"
	methodFriendsMutual   = "friends.getMutual"
	methodGiftsGet        = "gifts.get"
	methodWallGet         = "wall.get"
	methodLikesGetList    = "likes.getList"
	methodWallGetComments = "wall.getComments"
	methodExecute         = "execute"

	parameterUserIDs    = "user_ids"
	parameterUserID     = "user_id"
	parameterOwnerID    = "owner_id"
	parameterSourceUID  = "source_uid"
	parameterTargetUID  = "target_uid"
	parameterFields     = "fields"
	parameterCount      = "count"
	parameterItemID     = "item_id"
	parameterPostID     = "post_id"
	parameterType       = "type"
	parameterCode       = "code"
	likesTypePost       = "post"
	userFieldsSelection = "city,bdate,connections,photo_200,screen_name"
	friendFields        = "bdate,city,photo_200"

	decodeErrorFormat = "decode %s response: %w"
)

// UserInfo is the profile payload returned by users.get.
type UserInfo struct {
	ID         int64  `json:"id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	ScreenName string `json:"screen_name"`
	IsClosed   bool   `json:"is_closed"`
	Photo200   string `json:"photo_200"`
}

type friendPayload struct {
	ID          int64  `json:"id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Photo200    string `json:"photo_200"`
	Deactivated string `json:"deactivated"`
	IsClosed    bool   `json:"is_closed"`
}

// Gift is one received gift record; FromID identifies the sender when the
// gift was not sent anonymously.
type Gift struct {
	FromID int64 `json:"from_id"`
}

// Post is one wall post summary.
type Post struct {
	ID      int64 `json:"id"`
	OwnerID int64 `json:"owner_id"`
}

// Comment is one wall comment; FromID identifies the author.
type Comment struct {
	FromID int64 `json:"from_id"`
}

// UsersGet fetches profile information for the given identifiers, chunking
// the list at the users.get ceiling and concatenating results in order.
func (client *Client) UsersGet(ctx context.Context, identifiers []string) ([]UserInfo, error) {
	var users []UserInfo
	for start := 0; start < len(identifiers); start += UsersBatchLimit {
		end := start + UsersBatchLimit
		if end > len(identifiers) {
			end = len(identifiers)
		}
		params := url.Values{}
		params.Set(parameterUserIDs, strings.Join(identifiers[start:end], ","))
		params.Set(parameterFields, userFieldsSelection)

		payload, callErr := client.Call(ctx, methodUsersGet, params)
		if callErr != nil {
			return nil, callErr
		}
		var chunkUsers []UserInfo
		if unmarshalErr := json.Unmarshal(payload, &chunkUsers); unmarshalErr != nil {
			return nil, fmt.Errorf(decodeErrorFormat, methodUsersGet, unmarshalErr)
		}
		users = append(users, chunkUsers...)
	}
	return users, nil
}

// FriendsGet fetches the full friend list of one user in original order.
func (client *Client) FriendsGet(ctx context.Context, userID int64) (social.FriendList, error) {
	params := url.Values{}
	params.Set(parameterUserID, strconv.FormatInt(userID, 10))
	params.Set(parameterFields, friendFields)

	payload, callErr := client.Call(ctx, methodFriendsGet, params)
	if callErr != nil {
		return social.FriendList{}, callErr
	}
	var listPayload struct {
		Count int             `json:"count"`
		Items []friendPayload `json:"items"`
	}
	if unmarshalErr := json.Unmarshal(payload, &listPayload); unmarshalErr != nil {
		return social.FriendList{}, fmt.Errorf(decodeErrorFormat, methodFriendsGet, unmarshalErr)
	}

	friendList := social.FriendList{Count: listPayload.Count, Items: make([]social.FriendSummary, 0, len(listPayload.Items))}
	for _, friend := range listPayload.Items {
		friendList.Items = append(friendList.Items, social.FriendSummary{
			ID:          friend.ID,
			FirstName:   friend.FirstName,
			LastName:    friend.LastName,
			PhotoURL:    friend.Photo200,
			Deactivated: friend.Deactivated,
			IsClosed:    friend.IsClosed,
		})
	}
	return friendList, nil
}

// FriendsGetMutual fetches the friends the source user shares with one target.
func (client *Client) FriendsGetMutual(ctx context.Context, sourceUserID int64, targetUserID int64) ([]int64, error) {
	params := url.Values{}
	params.Set(parameterSourceUID, strconv.FormatInt(sourceUserID, 10))
	params.Set(parameterTargetUID, strconv.FormatInt(targetUserID, 10))

	payload, callErr := client.Call(ctx, methodFriendsMutual, params)
	if callErr != nil {
		return nil, callErr
	}
	var mutualIDs []int64
	if unmarshalErr := json.Unmarshal(payload, &mutualIDs); unmarshalErr != nil {
		return nil, fmt.Errorf(decodeErrorFormat, methodFriendsMutual, unmarshalErr)
	}
	return mutualIDs, nil
}

// GiftsGet fetches the gift records received by one user.
func (client *Client) GiftsGet(ctx context.Context, userID int64) ([]Gift, error) {
	params := url.Values{}
	params.Set(parameterUserID, strconv.FormatInt(userID, 10))

	payload, callErr := client.Call(ctx, methodGiftsGet, params)
	if callErr != nil {
		return nil, callErr
	}
	var listPayload struct {
		Items []Gift `json:"items"`
	}
	if unmarshalErr := json.Unmarshal(payload, &listPayload); unmarshalErr != nil {
		return nil, fmt.Errorf(decodeErrorFormat, methodGiftsGet, unmarshalErr)
	}
	return listPayload.Items, nil
}

// WallGet fetches the most recent posts on one user's wall.
func (client *Client) WallGet(ctx context.Context, ownerID int64, count int) ([]Post, error) {
	params := url.Values{}
	params.Set(parameterOwnerID, strconv.FormatInt(ownerID, 10))
	params.Set(parameterCount, strconv.Itoa(count))

	payload, callErr := client.Call(ctx, methodWallGet, params)
	if callErr != nil {
		return nil, callErr
	}
	var listPayload struct {
		Items []Post `json:"items"`
	}
	if unmarshalErr := json.Unmarshal(payload, &listPayload); unmarshalErr != nil {
		return nil, fmt.Errorf(decodeErrorFormat, methodWallGet, unmarshalErr)
	}
	return listPayload.Items, nil
}

// LikesGetList fetches the IDs of users who liked one wall post.
func (client *Client) LikesGetList(ctx context.Context, ownerID int64, itemID int64) ([]int64, error) {
	params := url.Values{}
	params.Set(parameterType, likesTypePost)
	params.Set(parameterOwnerID, strconv.FormatInt(ownerID, 10))
	params.Set(parameterItemID, strconv.FormatInt(itemID, 10))

	payload, callErr := client.Call(ctx, methodLikesGetList, params)
	if callErr != nil {
		return nil, callErr
	}
	var listPayload struct {
		Items []int64 `json:"items"`
	}
	if unmarshalErr := json.Unmarshal(payload, &listPayload); unmarshalErr != nil {
		return nil, fmt.Errorf(decodeErrorFormat, methodLikesGetList, unmarshalErr)
	}
	return listPayload.Items, nil
}

// WallGetComments fetches the comments on one wall post.
func (client *Client) WallGetComments(ctx context.Context, ownerID int64, postID int64) ([]Comment, error) {
	params := url.Values{}
	params.Set(parameterOwnerID, strconv.FormatInt(ownerID, 10))
	params.Set(parameterPostID, strconv.FormatInt(postID, 10))

	payload, callErr := client.Call(ctx, methodWallGetComments, params)
	if callErr != nil {
		return nil, callErr
	}
	var listPayload struct {
		Items []Comment `json:"items"`
	}
	if unmarshalErr := json.Unmarshal(payload, &listPayload); unmarshalErr != nil {
		return nil, fmt.Errorf(decodeErrorFormat, methodWallGetComments, unmarshalErr)
	}
	return listPayload.Items, nil
}

// Execute runs one VKScript snippet through the execute endpoint and returns
// the raw result for the caller to interpret.
func (client *Client) Execute(ctx context.Context, code string) (json.RawMessage, error) {
	params := url.Values{}
	params.Set(parameterCode, code)
	return client.Call(ctx, methodExecute, params)
}
