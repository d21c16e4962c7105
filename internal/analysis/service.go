// Package analysis orchestrates one analysis request: profile
// fetch-or-load, friend refresh, mutual-friends resolution, statistics
// aggregation with profile-level caching, and graph assembly.
package analysis

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/v-graph/vgraph/internal/graph"
	"github.com/v-graph/vgraph/internal/ok"
	"github.com/v-graph/vgraph/internal/profile"
	"github.com/v-graph/vgraph/internal/social"
	"github.com/v-graph/vgraph/internal/vk"
)

const (
	errMessageMissingToken     = "access token cannot be empty"
	errMessageMissingStore     = "profile store is required"
	errMessageMissingFactory   = "client factory is required"
	errMessageUserLookupEmpty  = "user lookup returned no records"
	errMessageFriendListFetch  = "fetch friend list"
	errMessageProfileSave      = "save profile"
	flightKeyFormat            = "%s:%s:%s"
	logMessageMutualFailures   = "mutual resolution reported batch failures"
	logMessageStatsFailures    = "statistics stage reported failures"
	logMessageProfileRefreshed = "profile friend list refreshed"
	logFieldNetwork            = "network"
	logFieldUserID             = "user_id"
	logFieldFailureCount       = "failure_count"
)

var (
	// ErrMissingToken indicates the request carried no access token.
	ErrMissingToken = errors.New(errMessageMissingToken)
)

// VKClient is the slice of the VK client the analysis pipeline consumes.
type VKClient interface {
	UsersGet(ctx context.Context, identifiers []string) ([]vk.UserInfo, error)
	FriendsGet(ctx context.Context, userID int64) (social.FriendList, error)
	vk.ExecuteCaller
	vk.StatisticsCaller
}

// VKClientFactory builds a client bound to one request's access token.
type VKClientFactory func(accessToken string) (VKClient, error)

// OKClient is the slice of the OK surface the analysis pipeline consumes.
// NewOKAdapter wraps the concrete client and resolver behind it.
type OKClient interface {
	UsersGetInfo(ctx context.Context, userIDs []int64) ([]ok.UserInfo, error)
	FriendsGet(ctx context.Context, userID int64) (social.FriendList, error)
	ResolveMutual(ctx context.Context, sourceUserID int64, targetFriendIDs []int64) (social.MutualTopology, []error)
}

// OKClientFactory builds an OK client bound to one request's access token.
type OKClientFactory func(accessToken string) (OKClient, error)

// Config wires the analysis service dependencies.
type Config struct {
	Store       profile.Store
	NewVKClient VKClientFactory
	NewOKClient OKClientFactory
	Logger      *zap.Logger
}

// Request identifies one analysis run.
type Request struct {
	AccessToken string
	Identifier  social.Identifier
}

// Result carries the analysis output. Errors lists the accumulated
// batch-level failures; the requester is expected to display them all and
// suppress the partial graph when any occurred.
type Result struct {
	Profile *social.Profile
	Graph   *graph.Graph
	Errors  []string
}

// Service runs analysis requests. Concurrent identical requests share one
// pipeline run through a flight group.
type Service struct {
	store       profile.Store
	newVKClient VKClientFactory
	newOKClient OKClientFactory
	logger      *zap.Logger
	flightGroup singleflight.Group
}

// NewService validates the configuration and constructs a Service.
func NewService(configuration Config) (*Service, error) {
	if configuration.Store == nil {
		return nil, errors.New(errMessageMissingStore)
	}
	if configuration.NewVKClient == nil && configuration.NewOKClient == nil {
		return nil, errors.New(errMessageMissingFactory)
	}
	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:       configuration.Store,
		newVKClient: configuration.NewVKClient,
		newOKClient: configuration.NewOKClient,
		logger:      logger,
	}, nil
}

// AnalyzeVK runs the full VK pipeline for one identifier.
func (service *Service) AnalyzeVK(ctx context.Context, request Request) (*Result, error) {
	if request.AccessToken == "" {
		return nil, ErrMissingToken
	}
	flightKey := fmt.Sprintf(flightKeyFormat, social.NetworkVK, request.AccessToken, request.Identifier.String())
	flightResult, flightErr, _ := service.flightGroup.Do(flightKey, func() (interface{}, error) {
		return service.analyzeVK(ctx, request)
	})
	if flightErr != nil {
		return nil, flightErr
	}
	result, _ := flightResult.(*Result)
	return result, nil
}

func (service *Service) analyzeVK(ctx context.Context, request Request) (*Result, error) {
	if service.newVKClient == nil {
		return nil, errors.New(errMessageMissingFactory)
	}
	client, clientErr := service.newVKClient(request.AccessToken)
	if clientErr != nil {
		return nil, clientErr
	}

	analyzedProfile, profileErr := service.vkProfile(ctx, client, request.Identifier)
	if profileErr != nil {
		return nil, profileErr
	}

	friendIDs := analyzedProfile.Friends.IDs()
	activeFriendIDs := analyzedProfile.Friends.ActiveIDs()

	var accumulated []string

	resolver := vk.NewBulkMutualResolver(client, service.logger)
	topology, mutualFailures := resolver.Resolve(ctx, analyzedProfile.UID, activeFriendIDs)
	if len(mutualFailures) > 0 {
		service.logger.Warn(logMessageMutualFailures,
			zap.String(logFieldNetwork, string(social.NetworkVK)),
			zap.Int(logFieldFailureCount, len(mutualFailures)))
		accumulated = append(accumulated, errorMessages(mutualFailures)...)
	}

	statsFailures := service.attachStatistics(ctx, client, analyzedProfile, activeFriendIDs, friendIDs, topology)
	if len(statsFailures) > 0 {
		service.logger.Warn(logMessageStatsFailures,
			zap.String(logFieldNetwork, string(social.NetworkVK)),
			zap.Int(logFieldFailureCount, len(statsFailures)))
		accumulated = append(accumulated, statsFailures...)
	}

	if saveErr := service.store.Save(ctx, analyzedProfile); saveErr != nil {
		return nil, fmt.Errorf("%s: %w", errMessageProfileSave, saveErr)
	}

	assembled := graph.Assemble(analyzedProfile, friendIDs, topology, analyzedProfile.Gifts, analyzedProfile.Likes, analyzedProfile.Comments)
	return &Result{Profile: analyzedProfile, Graph: assembled, Errors: accumulated}, nil
}

// vkProfile loads the cached profile or creates it from users.get, then
// refreshes the friend list unconditionally. A friend-list failure is fatal
// to the whole analysis.
func (service *Service) vkProfile(ctx context.Context, client VKClient, identifier social.Identifier) (*social.Profile, error) {
	stored, loadErr := service.loadStored(ctx, social.NetworkVK, identifier)
	if loadErr != nil && !errors.Is(loadErr, profile.ErrProfileNotFound) {
		return nil, loadErr
	}
	if stored == nil {
		users, usersErr := client.UsersGet(ctx, []string{identifier.String()})
		if usersErr != nil {
			return nil, usersErr
		}
		if len(users) == 0 {
			return nil, &social.APIError{
				Kind:     social.FaultInvalidTarget,
				Provider: string(social.NetworkVK),
				Method:   "users.get",
				Message:  errMessageUserLookupEmpty,
			}
		}
		user := users[0]
		screenName := user.ScreenName
		if screenName == "" && identifier.IsAlias() {
			screenName = identifier.Alias()
		}
		stored = &social.Profile{
			Network:    social.NetworkVK,
			UID:        user.ID,
			FirstName:  user.FirstName,
			LastName:   user.LastName,
			ScreenName: screenName,
			IsClosed:   user.IsClosed,
			ImageURL:   user.Photo200,
		}
	}

	friendList, friendsErr := client.FriendsGet(ctx, stored.UID)
	if friendsErr != nil {
		return nil, fmt.Errorf("%s: %w", errMessageFriendListFetch, friendsErr)
	}
	stored.Friends = friendList
	service.logger.Info(logMessageProfileRefreshed,
		zap.String(logFieldNetwork, string(social.NetworkVK)),
		zap.Int64(logFieldUserID, stored.UID))
	return stored, nil
}

// attachStatistics computes whichever matrices are not already cached on
// the profile. A stage that reported failures keeps its matrix detached so
// the profile never caches a partial signal; the next run recomputes it.
func (service *Service) attachStatistics(ctx context.Context, client VKClient, analyzedProfile *social.Profile, activeFriendIDs []int64, friendIDs []int64, topology social.MutualTopology) []string {
	if analyzedProfile.HasStatistics() {
		return nil
	}
	statistics := vk.NewStatistics(client, analyzedProfile.UID, activeFriendIDs, friendIDs, topology, service.logger)

	var accumulated []string
	if analyzedProfile.Gifts == nil {
		matrix, failures := statistics.Gifts(ctx)
		if len(failures) == 0 {
			analyzedProfile.Gifts = matrix
		}
		accumulated = append(accumulated, errorMessages(failures)...)
	}
	if analyzedProfile.Likes == nil {
		matrix, failures := statistics.Likes(ctx)
		if len(failures) == 0 {
			analyzedProfile.Likes = matrix
		}
		accumulated = append(accumulated, errorMessages(failures)...)
	}
	if analyzedProfile.Comments == nil {
		matrix, failures := statistics.Comments(ctx)
		if len(failures) == 0 {
			analyzedProfile.Comments = matrix
		}
		accumulated = append(accumulated, errorMessages(failures)...)
	}
	return accumulated
}

func (service *Service) loadStored(ctx context.Context, network social.NetworkName, identifier social.Identifier) (*social.Profile, error) {
	if identifier.IsNumeric() {
		return service.store.Load(ctx, network, identifier.Numeric())
	}
	return service.store.LoadByAlias(ctx, network, identifier.Alias())
}

func errorMessages(failures []error) []string {
	messages := make([]string, 0, len(failures))
	for _, failure := range failures {
		messages = append(messages, failure.Error())
	}
	return messages
}
