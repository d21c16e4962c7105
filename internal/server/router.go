package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/v-graph/vgraph/internal/analysis"
	"github.com/v-graph/vgraph/internal/graph"
	"github.com/v-graph/vgraph/internal/social"
)

const (
	analyzeVKRoutePath     = "/analyze/vk"
	analyzeOKRoutePath     = "/analyze/ok"
	taskRoutePath          = "/analyze/tasks/:id"
	taskPageRoutePath      = "/analyze/tasks/:id/page"
	staticRoutePath        = "/static"
	healthRoutePath        = "/healthz"
	htmlContentType        = "text/html; charset=utf-8"
	formFieldAccessToken   = "access_token"
	formFieldUserID        = "user_id"
	routeParameterTaskID   = "id"
	errorResponseKey       = "errors"
	taskResponseKey        = "task"
	healthStatusKey        = "status"
	healthStatusOK         = "ok"
	ginModeRelease         = "release"
	defaultAnalysisTimeout = 10 * time.Minute

	errorMessageMissingToken    = "access_token is required"
	errorMessageInvalidUserID   = "user_id is missing or invalid"
	errorMessageTaskIncomplete  = "analysis task has not completed"
	errorMessageRenderFailure   = "graph page rendering failed"
	errorMessageMissingAnalyzer = "router requires an analyzer"
	logMessageAnalysisStarted   = "analysis task started"
	logMessageAnalysisFailed    = "analysis task failed"
	logMessageAnalysisCompleted = "analysis task completed"
	logMessageRenderFailure     = "graph render failure"
	logFieldTaskID              = "task_id"
	logFieldTaskNetwork         = "network"
	logFieldAccumulatedFailures = "accumulated_failures"
)

// Analyzer runs analysis requests against the supported networks.
type Analyzer interface {
	AnalyzeVK(ctx context.Context, request analysis.Request) (*analysis.Result, error)
	AnalyzeOK(ctx context.Context, request analysis.Request) (*analysis.Result, error)
}

// RouterConfig configures the HTTP routing for analysis requests.
type RouterConfig struct {
	Analyzer        Analyzer
	Logger          *zap.Logger
	AnalysisTimeout time.Duration
}

// NewRouter constructs a Gin engine exposing the analysis submission,
// task progress, graph page, and health endpoints.
func NewRouter(configuration RouterConfig) (*gin.Engine, error) {
	if configuration.Analyzer == nil {
		return nil, errors.New(errorMessageMissingAnalyzer)
	}
	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	analysisTimeout := configuration.AnalysisTimeout
	if analysisTimeout <= 0 {
		analysisTimeout = defaultAnalysisTimeout
	}

	gin.SetMode(ginModeRelease)
	engine := gin.New()
	engine.Use(gin.Recovery())

	handler := analysisHandler{
		analyzer: configuration.Analyzer,
		tracker:  newAnalysisTaskTracker(),
		timeout:  analysisTimeout,
		logger:   logger,
	}

	engine.POST(analyzeVKRoutePath, handler.submitVK)
	engine.POST(analyzeOKRoutePath, handler.submitOK)
	engine.GET(taskRoutePath, handler.taskStatus)
	engine.GET(taskPageRoutePath, handler.taskPage)
	engine.GET(healthRoutePath, handler.healthStatus)

	staticAssets, assetsErr := graph.StaticAssets()
	if assetsErr != nil {
		return nil, assetsErr
	}
	engine.StaticFS(staticRoutePath, http.FS(staticAssets))

	return engine, nil
}

type analysisHandler struct {
	analyzer Analyzer
	tracker  *analysisTaskTracker
	timeout  time.Duration
	logger   *zap.Logger
}

type analyzeFunc func(ctx context.Context, request analysis.Request) (*analysis.Result, error)

func (handler analysisHandler) submitVK(ginContext *gin.Context) {
	handler.submit(ginContext, social.NetworkVK, handler.analyzer.AnalyzeVK)
}

func (handler analysisHandler) submitOK(ginContext *gin.Context) {
	handler.submit(ginContext, social.NetworkOK, handler.analyzer.AnalyzeOK)
}

func (handler analysisHandler) submit(ginContext *gin.Context, network social.NetworkName, analyze analyzeFunc) {
	accessToken := ginContext.PostForm(formFieldAccessToken)
	if accessToken == "" {
		ginContext.JSON(http.StatusBadRequest, gin.H{errorResponseKey: []string{errorMessageMissingToken}})
		return
	}
	identifier, parseErr := social.ParseIdentifier(ginContext.PostForm(formFieldUserID))
	if parseErr != nil {
		ginContext.JSON(http.StatusBadRequest, gin.H{errorResponseKey: []string{errorMessageInvalidUserID}})
		return
	}

	task := handler.tracker.CreateTask(string(network))
	handler.logger.Info(logMessageAnalysisStarted,
		zap.String(logFieldTaskID, task.Identifier),
		zap.String(logFieldTaskNetwork, string(network)))

	go handler.runTask(task.Identifier, network, analyze, analysis.Request{AccessToken: accessToken, Identifier: identifier})

	ginContext.JSON(http.StatusAccepted, gin.H{taskResponseKey: task})
}

// runTask executes one analysis outside the request lifecycle. The timeout
// bounds the whole pipeline including every statistics stage.
func (handler analysisHandler) runTask(taskIdentifier string, network social.NetworkName, analyze analyzeFunc, request analysis.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), handler.timeout)
	defer cancel()

	result, analyzeErr := analyze(ctx, request)
	if analyzeErr != nil {
		handler.logger.Error(logMessageAnalysisFailed,
			zap.String(logFieldTaskID, taskIdentifier),
			zap.String(logFieldTaskNetwork, string(network)),
			zap.Error(analyzeErr))
		handler.tracker.FailTask(taskIdentifier, analyzeErr.Error())
		return
	}
	handler.logger.Info(logMessageAnalysisCompleted,
		zap.String(logFieldTaskID, taskIdentifier),
		zap.String(logFieldTaskNetwork, string(network)),
		zap.Int(logFieldAccumulatedFailures, len(result.Errors)))
	handler.tracker.CompleteTask(taskIdentifier, result)
}

func (handler analysisHandler) taskStatus(ginContext *gin.Context) {
	snapshot, exists := handler.tracker.TaskSnapshot(ginContext.Param(routeParameterTaskID))
	if !exists {
		ginContext.JSON(http.StatusNotFound, gin.H{errorResponseKey: []string{analysisTaskNotFoundMessage}})
		return
	}
	ginContext.JSON(http.StatusOK, gin.H{taskResponseKey: snapshot})
}

// taskPage renders the assembled graph. A completed task that accumulated
// batch failures returns the failure list instead of a partial graph.
func (handler analysisHandler) taskPage(ginContext *gin.Context) {
	taskIdentifier := ginContext.Param(routeParameterTaskID)
	snapshot, exists := handler.tracker.TaskSnapshot(taskIdentifier)
	if !exists {
		ginContext.JSON(http.StatusNotFound, gin.H{errorResponseKey: []string{analysisTaskNotFoundMessage}})
		return
	}
	result, completed := handler.tracker.TaskResult(taskIdentifier)
	if !completed {
		statusCode := http.StatusConflict
		if snapshot.Status == string(analysisTaskStatusFailed) {
			statusCode = http.StatusUnprocessableEntity
		}
		ginContext.JSON(statusCode, gin.H{errorResponseKey: append([]string{errorMessageTaskIncomplete}, snapshot.Errors...)})
		return
	}
	if len(result.Errors) > 0 {
		ginContext.JSON(http.StatusUnprocessableEntity, gin.H{errorResponseKey: result.Errors})
		return
	}

	pageHTML, renderErr := graph.RenderPage(result.Graph)
	if renderErr != nil {
		handler.logger.Error(logMessageRenderFailure, zap.String(logFieldTaskID, taskIdentifier), zap.Error(renderErr))
		ginContext.String(http.StatusInternalServerError, errorMessageRenderFailure)
		return
	}
	ginContext.Data(http.StatusOK, htmlContentType, []byte(pageHTML))
}

func (handler analysisHandler) healthStatus(ginContext *gin.Context) {
	ginContext.JSON(http.StatusOK, map[string]string{healthStatusKey: healthStatusOK})
}
