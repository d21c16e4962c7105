package analysis

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/v-graph/vgraph/internal/graph"
	"github.com/v-graph/vgraph/internal/ok"
	"github.com/v-graph/vgraph/internal/profile"
	"github.com/v-graph/vgraph/internal/social"
)

const (
	errMessageNumericRequired = "ok identifiers must be numeric"
	methodNameUsersGetInfo    = "users.getInfo"
)

// ErrNumericIdentifierRequired indicates an alias was supplied for OK,
// which only addresses users by numeric ID.
var ErrNumericIdentifierRequired = errors.New(errMessageNumericRequired)

// okAdapter bundles the OK client and its mutual resolver behind the
// OKClient interface.
type okAdapter struct {
	client   *ok.Client
	resolver *ok.MutualResolver
}

// NewOKAdapter wraps a concrete OK client for the analysis pipeline.
func NewOKAdapter(client *ok.Client, logger *zap.Logger) OKClient {
	return &okAdapter{client: client, resolver: ok.NewMutualResolver(client, logger)}
}

func (adapter *okAdapter) UsersGetInfo(ctx context.Context, userIDs []int64) ([]ok.UserInfo, error) {
	return adapter.client.UsersGetInfo(ctx, userIDs)
}

func (adapter *okAdapter) FriendsGet(ctx context.Context, userID int64) (social.FriendList, error) {
	return adapter.client.FriendsGet(ctx, userID)
}

func (adapter *okAdapter) ResolveMutual(ctx context.Context, sourceUserID int64, targetFriendIDs []int64) (social.MutualTopology, []error) {
	return adapter.resolver.Resolve(ctx, sourceUserID, targetFriendIDs)
}

// AnalyzeOK runs the OK pipeline: profile fetch-or-load, friend refresh,
// mutual resolution, and graph assembly. OK exposes no gift or wall
// endpoints usable here, so the metric matrices stay empty.
func (service *Service) AnalyzeOK(ctx context.Context, request Request) (*Result, error) {
	if request.AccessToken == "" {
		return nil, ErrMissingToken
	}
	if !request.Identifier.IsNumeric() {
		return nil, ErrNumericIdentifierRequired
	}
	flightKey := fmt.Sprintf(flightKeyFormat, social.NetworkOK, request.AccessToken, request.Identifier.String())
	flightResult, flightErr, _ := service.flightGroup.Do(flightKey, func() (interface{}, error) {
		return service.analyzeOK(ctx, request)
	})
	if flightErr != nil {
		return nil, flightErr
	}
	result, _ := flightResult.(*Result)
	return result, nil
}

func (service *Service) analyzeOK(ctx context.Context, request Request) (*Result, error) {
	if service.newOKClient == nil {
		return nil, errors.New(errMessageMissingFactory)
	}
	client, clientErr := service.newOKClient(request.AccessToken)
	if clientErr != nil {
		return nil, clientErr
	}

	analyzedProfile, profileErr := service.okProfile(ctx, client, request.Identifier.Numeric())
	if profileErr != nil {
		return nil, profileErr
	}

	friendIDs := analyzedProfile.Friends.IDs()
	activeFriendIDs := analyzedProfile.Friends.ActiveIDs()

	var accumulated []string
	topology, mutualFailures := client.ResolveMutual(ctx, analyzedProfile.UID, activeFriendIDs)
	if len(mutualFailures) > 0 {
		service.logger.Warn(logMessageMutualFailures,
			zap.String(logFieldNetwork, string(social.NetworkOK)),
			zap.Int(logFieldFailureCount, len(mutualFailures)))
		accumulated = append(accumulated, errorMessages(mutualFailures)...)
	}

	if saveErr := service.store.Save(ctx, analyzedProfile); saveErr != nil {
		return nil, fmt.Errorf("%s: %w", errMessageProfileSave, saveErr)
	}

	assembled := graph.Assemble(analyzedProfile, friendIDs, topology, nil, nil, nil)
	return &Result{Profile: analyzedProfile, Graph: assembled, Errors: accumulated}, nil
}

func (service *Service) okProfile(ctx context.Context, client OKClient, userID int64) (*social.Profile, error) {
	stored, loadErr := service.store.Load(ctx, social.NetworkOK, userID)
	if loadErr != nil && !errors.Is(loadErr, profile.ErrProfileNotFound) {
		return nil, loadErr
	}
	if stored == nil {
		users, usersErr := client.UsersGetInfo(ctx, []int64{userID})
		if usersErr != nil {
			return nil, usersErr
		}
		if len(users) == 0 {
			return nil, &social.APIError{
				Kind:     social.FaultInvalidTarget,
				Provider: string(social.NetworkOK),
				Method:   methodNameUsersGetInfo,
				Message:  errMessageUserLookupEmpty,
			}
		}
		user := users[0]
		stored = &social.Profile{
			Network:   social.NetworkOK,
			UID:       user.ID(),
			FirstName: user.FirstName,
			LastName:  user.LastName,
			ImageURL:  user.Pic190x190,
		}
	}

	friendList, friendsErr := client.FriendsGet(ctx, stored.UID)
	if friendsErr != nil {
		return nil, fmt.Errorf("%s: %w", errMessageFriendListFetch, friendsErr)
	}
	stored.Friends = friendList
	service.logger.Info(logMessageProfileRefreshed,
		zap.String(logFieldNetwork, string(social.NetworkOK)),
		zap.Int64(logFieldUserID, stored.UID))
	return stored, nil
}
