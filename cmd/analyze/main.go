package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/v-graph/vgraph/internal/analysis"
	"github.com/v-graph/vgraph/internal/graph"
	"github.com/v-graph/vgraph/internal/ok"
	"github.com/v-graph/vgraph/internal/profile"
	"github.com/v-graph/vgraph/internal/social"
	"github.com/v-graph/vgraph/internal/vk"
)

const (
	commandUse              = "analyze"
	commandShortDescription = "Build a friend interaction graph for one user"
	envPrefix               = "VGRAPH"

	flagNetworkName          = "network"
	flagNetworkDescription   = "Social network to analyze (vk or ok)"
	flagTokenName            = "token"
	flagTokenDescription     = "API access token"
	flagIdentifierName       = "id"
	flagIdentifierDesc       = "Numeric user ID or screen name"
	flagOutputName           = "output"
	flagOutputDescription    = "Output file path (empty writes JSON to stdout)"
	flagFormatName           = "format"
	flagFormatDescription    = "Output format: json or html"
	flagTimeoutName          = "timeout"
	flagTimeoutDescription   = "Upper bound for the analysis run"
	flagOKApplicationKeyName = "ok-app-key"
	flagOKApplicationKeyDesc = "OK application public key"
	flagOKApplicationSecret  = "ok-app-secret"
	flagOKApplicationSecDesc = "OK application secret key"
	defaultNetwork           = "vk"
	defaultFormat            = "json"
	formatJSON               = "json"
	formatHTML               = "html"
	defaultRunTimeout        = 10 * time.Minute

	errMessageUnknownNetwork = "unknown network %q"
	errMessageUnknownFormat  = "unknown format %q"
	errFormatAnalysis        = "analyze: %w"
	errFormatRender          = "render graph page: %w"
	errFormatEncode          = "encode graph: %w"
	errFormatWriteOutput     = "write %s: %w"
	warningFormatBatch       = "warning: %s\n"
)

func main() {
	cobra.CheckErr(newAnalyzeCommand().Execute())
}

func newAnalyzeCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   commandUse,
		Short: commandShortDescription,
		RunE:  runAnalyzeCommand,
	}

	command.Flags().String(flagNetworkName, defaultNetwork, flagNetworkDescription)
	command.Flags().String(flagTokenName, "", flagTokenDescription)
	command.Flags().String(flagIdentifierName, "", flagIdentifierDesc)
	command.Flags().String(flagOutputName, "", flagOutputDescription)
	command.Flags().String(flagFormatName, defaultFormat, flagFormatDescription)
	command.Flags().Duration(flagTimeoutName, defaultRunTimeout, flagTimeoutDescription)
	command.Flags().String(flagOKApplicationKeyName, "", flagOKApplicationKeyDesc)
	command.Flags().String(flagOKApplicationSecret, "", flagOKApplicationSecDesc)

	bindFlagToViper(command, flagNetworkName)
	bindFlagToViper(command, flagTokenName)
	bindFlagToViper(command, flagIdentifierName)
	bindFlagToViper(command, flagOutputName)
	bindFlagToViper(command, flagFormatName)
	bindFlagToViper(command, flagTimeoutName)
	bindFlagToViper(command, flagOKApplicationKeyName)
	bindFlagToViper(command, flagOKApplicationSecret)

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

func runAnalyzeCommand(command *cobra.Command, _ []string) error {
	identifier, identifierErr := social.ParseIdentifier(viper.GetString(flagIdentifierName))
	if identifierErr != nil {
		return identifierErr
	}

	logger := zap.NewNop()
	analysisService, serviceErr := analysis.NewService(analysis.Config{
		Store:       profile.NewMemoryStore(),
		NewVKClient: newVKClientFactory(logger),
		NewOKClient: newOKClientFactory(logger),
		Logger:      logger,
	})
	if serviceErr != nil {
		return serviceErr
	}

	ctx, cancel := context.WithTimeout(command.Context(), viper.GetDuration(flagTimeoutName))
	defer cancel()

	request := analysis.Request{
		AccessToken: viper.GetString(flagTokenName),
		Identifier:  identifier,
	}

	var result *analysis.Result
	var analyzeErr error
	switch network := viper.GetString(flagNetworkName); network {
	case string(social.NetworkVK):
		result, analyzeErr = analysisService.AnalyzeVK(ctx, request)
	case string(social.NetworkOK):
		result, analyzeErr = analysisService.AnalyzeOK(ctx, request)
	default:
		return fmt.Errorf(errMessageUnknownNetwork, network)
	}
	if analyzeErr != nil {
		return fmt.Errorf(errFormatAnalysis, analyzeErr)
	}

	for _, batchFailure := range result.Errors {
		fmt.Fprintf(os.Stderr, warningFormatBatch, batchFailure)
	}

	return writeGraph(result.Graph)
}

func writeGraph(assembled *graph.Graph) error {
	var rendered []byte
	switch format := viper.GetString(flagFormatName); format {
	case formatJSON:
		encoded, encodeErr := json.MarshalIndent(assembled, "", "  ")
		if encodeErr != nil {
			return fmt.Errorf(errFormatEncode, encodeErr)
		}
		rendered = append(encoded, '\n')
	case formatHTML:
		pageHTML, renderErr := graph.RenderPage(assembled)
		if renderErr != nil {
			return fmt.Errorf(errFormatRender, renderErr)
		}
		rendered = []byte(pageHTML)
	default:
		return fmt.Errorf(errMessageUnknownFormat, format)
	}

	outputPath := viper.GetString(flagOutputName)
	if outputPath == "" {
		_, writeErr := os.Stdout.Write(rendered)
		return writeErr
	}
	if writeErr := os.WriteFile(outputPath, rendered, 0o644); writeErr != nil {
		return fmt.Errorf(errFormatWriteOutput, outputPath, writeErr)
	}
	return nil
}

func newVKClientFactory(logger *zap.Logger) analysis.VKClientFactory {
	return func(accessToken string) (analysis.VKClient, error) {
		return vk.NewClient(vk.Config{AccessToken: accessToken, Logger: logger})
	}
}

func newOKClientFactory(logger *zap.Logger) analysis.OKClientFactory {
	applicationKey := viper.GetString(flagOKApplicationKeyName)
	if applicationKey == "" {
		return nil
	}
	applicationSecret := viper.GetString(flagOKApplicationSecret)
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
