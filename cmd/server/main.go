package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/v-graph/vgraph/internal/analysis"
	"github.com/v-graph/vgraph/internal/ok"
	"github.com/v-graph/vgraph/internal/profile"
	"github.com/v-graph/vgraph/internal/server"
	"github.com/v-graph/vgraph/internal/vk"
)

const (
	commandUse              = "server"
	commandShortDescription = "Serve friend interaction graph analysis over HTTP"
	envPrefix               = "VGRAPH_SERVER"

	flagHostName               = "host"
	flagHostDescription        = "Host interface for the HTTP server"
	flagPortName               = "port"
	flagPortDescription        = "Port for the HTTP server"
	flagRedisAddressName       = "redis-addr"
	flagRedisAddressDesc       = "Redis address for the profile store (empty keeps profiles in memory)"
	flagVKRateName             = "vk-rate"
	flagVKRateDescription      = "VK API requests per second"
	flagVKBurstName            = "vk-burst"
	flagVKBurstDescription     = "VK API request burst"
	flagOKApplicationKeyName   = "ok-app-key"
	flagOKApplicationKeyDesc   = "OK application public key (empty disables the OK endpoints)"
	flagOKApplicationSecret    = "ok-app-secret"
	flagOKApplicationSecDesc   = "OK application secret key"
	flagAnalysisTimeoutName    = "analysis-timeout"
	flagAnalysisTimeoutDesc    = "Upper bound for a single analysis run"
	defaultHost                = "127.0.0.1"
	defaultPort                = 8080
	defaultVKRequestsPerSecond = 3.0
	defaultVKRequestBurst      = 1
	defaultAnalysisTimeout     = 10 * time.Minute

	errMessageLoggerCreate    = "create logger"
	errMessageServiceCreate   = "create analysis service"
	errMessageListenAndServe  = "listen and serve"
	logMessageUsingRedisStore = "using redis profile store"
	logMessageUsingMemStore   = "using in-memory profile store"
	logMessageStartingServer  = "starting HTTP server"
	logMessageServerStopped   = "server stopped"
	logMessageListenError     = "server listen failure"
	logFieldAddress           = "address"
	logFieldRedisAddress      = "redis_address"
)

func main() {
	cobra.CheckErr(newServerCommand().Execute())
}

func newServerCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   commandUse,
		Short: commandShortDescription,
		RunE:  runServerCommand,
	}

	command.Flags().String(flagHostName, defaultHost, flagHostDescription)
	command.Flags().Int(flagPortName, defaultPort, flagPortDescription)
	command.Flags().String(flagRedisAddressName, "", flagRedisAddressDesc)
	command.Flags().Float64(flagVKRateName, defaultVKRequestsPerSecond, flagVKRateDescription)
	command.Flags().Int(flagVKBurstName, defaultVKRequestBurst, flagVKBurstDescription)
	command.Flags().String(flagOKApplicationKeyName, "", flagOKApplicationKeyDesc)
	command.Flags().String(flagOKApplicationSecret, "", flagOKApplicationSecDesc)
	command.Flags().Duration(flagAnalysisTimeoutName, defaultAnalysisTimeout, flagAnalysisTimeoutDesc)

	bindFlagToViper(command, flagHostName)
	bindFlagToViper(command, flagPortName)
	bindFlagToViper(command, flagRedisAddressName)
	bindFlagToViper(command, flagVKRateName)
	bindFlagToViper(command, flagVKBurstName)
	bindFlagToViper(command, flagOKApplicationKeyName)
	bindFlagToViper(command, flagOKApplicationSecret)
	bindFlagToViper(command, flagAnalysisTimeoutName)

	cobra.OnInitialize(configureEnvironment)

	return command
}

func bindFlagToViper(command *cobra.Command, flagName string) {
	cobra.CheckErr(viper.BindPFlag(flagName, command.Flags().Lookup(flagName)))
}

func configureEnvironment() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func runServerCommand(*cobra.Command, []string) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("%s: %w", errMessageLoggerCreate, err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	profileStore := newProfileStore(logger)

	analysisService, serviceErr := analysis.NewService(analysis.Config{
		Store:       profileStore,
		NewVKClient: newVKClientFactory(logger),
		NewOKClient: newOKClientFactory(logger),
		Logger:      logger,
	})
	if serviceErr != nil {
		return fmt.Errorf("%s: %w", errMessageServiceCreate, serviceErr)
	}

	router, err := server.NewRouter(server.RouterConfig{
		Analyzer:        analysisService,
		Logger:          logger,
		AnalysisTimeout: viper.GetDuration(flagAnalysisTimeoutName),
	})
	if err != nil {
		return err
	}

	host := viper.GetString(flagHostName)
	port := viper.GetInt(flagPortName)
	address := fmt.Sprintf("%s:%d", host, port)
	logger.Info(logMessageStartingServer, zap.String(logFieldAddress, address))

	httpServer := &http.Server{Addr: address, Handler: router}
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error(logMessageListenError, zap.Error(err))
		return fmt.Errorf("%s: %w", errMessageListenAndServe, err)
	}

	logger.Info(logMessageServerStopped)
	return nil
}

func newProfileStore(logger *zap.Logger) profile.Store {
	redisAddress := viper.GetString(flagRedisAddressName)
	if redisAddress == "" {
		logger.Info(logMessageUsingMemStore)
		return profile.NewMemoryStore()
	}
	logger.Info(logMessageUsingRedisStore, zap.String(logFieldRedisAddress, redisAddress))
	return profile.NewRedisStore(redis.NewClient(&redis.Options{Addr: redisAddress}))
}

func newVKClientFactory(logger *zap.Logger) analysis.VKClientFactory {
	requestsPerSecond := viper.GetFloat64(flagVKRateName)
	requestBurst := viper.GetInt(flagVKBurstName)
	return func(accessToken string) (analysis.VKClient, error) {
		return vk.NewClient(vk.Config{
			AccessToken:       accessToken,
			RequestsPerSecond: requestsPerSecond,
			RequestBurst:      requestBurst,
			Logger:            logger,
		})
	}
}

// newOKClientFactory returns nil when no application key is configured,
// which leaves the OK endpoints rejecting requests.
func newOKClientFactory(logger *zap.Logger) analysis.OKClientFactory {
	applicationKey := viper.GetString(flagOKApplicationKeyName)
	applicationSecret := viper.GetString(flagOKApplicationSecret)
	if applicationKey == "" {
		return nil
	}
	return func(accessToken string) (analysis.OKClient, error) {
		client, clientErr := ok.NewClient(ok.Config{
			ApplicationKey:    applicationKey,
			ApplicationSecret: applicationSecret,
			AccessToken:       accessToken,
			Logger:            logger,
		})
		if clientErr != nil {
			return nil, clientErr
		}
		return analysis.NewOKAdapter(client, logger), nil
	}
}
