// Package vk implements the VK API client together with the mutual-friends
// resolver and the interaction statistics aggregator built on top of it.
package vk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/v-graph/vgraph/internal/social"
)

const (
	// ExecuteBatchLimit caps the number of targets one execute call covers.
	ExecuteBatchLimit = 25
	// UsersBatchLimit caps the number of identifiers one users.get call covers.
	UsersBatchLimit = 100

	providerName          = "vk"
	defaultBaseURLString  = "https://api.vk.com/method"
	defaultAPIVersion     = "5.131"
	parameterAccessToken  = "access_token"
	parameterVersion      = "v"
	errorCodeRateLimited  = 6
	errorCodeInvalidUser  = 113
	defaultRequestsPerSec = 3
	defaultRequestBurst   = 1

	errMessageMalformedPayload = "response body is not a VK envelope"
	errMessageEmptyEnvelope    = "response carries neither payload nor error"
	errMessageTransport        = "request transport failure"

	defaultDialTimeout           = 5 * time.Second
	defaultTLSHandshakeTimeout   = 5 * time.Second
	defaultResponseHeaderTimeout = 10 * time.Second
	defaultHTTPTimeout           = 15 * time.Second

	logMessageCallStarted = "vk api call"
	logFieldMethod        = "method"
)

// Config customizes a Client instance.
type Config struct {
	BaseURL     string
	AccessToken string
	APIVersion  string
	HTTPClient  *http.Client
	// RequestsPerSecond throttles calls globally across concurrent batches.
	RequestsPerSecond float64
	RequestBurst      int
	Logger            *zap.Logger
}

// Client is a low-level request/response translator for the VK JSON API.
// It is safe for concurrent use; the rate limiter is shared by all calls.
type Client struct {
	httpClient  *http.Client
	baseURL     *url.URL
	accessToken string
	apiVersion  string
	limiter     *rate.Limiter
	logger      *zap.Logger
}

// NewClient constructs a Client with sensible HTTP timeouts and a shared
// request limiter.
func NewClient(configuration Config) (*Client, error) {
	baseURLString := configuration.BaseURL
	if strings.TrimSpace(baseURLString) == "" {
		baseURLString = defaultBaseURLString
	}
	parsedBaseURL, parseErr := url.Parse(baseURLString)
	if parseErr != nil {
		return nil, fmt.Errorf("parse base url: %w", parseErr)
	}

	httpClient := configuration.HTTPClient
	if httpClient == nil {
		httpClient = newHTTPClient()
	}

	apiVersion := configuration.APIVersion
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}

	requestsPerSecond := configuration.RequestsPerSecond
	if requestsPerSecond <= 0 {
		requestsPerSecond = defaultRequestsPerSec
	}
	requestBurst := configuration.RequestBurst
	if requestBurst <= 0 {
		requestBurst = defaultRequestBurst
	}

	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	client := &Client{
		httpClient:  httpClient,
		baseURL:     parsedBaseURL,
		accessToken: configuration.AccessToken,
		apiVersion:  apiVersion,
		limiter:     rate.NewLimiter(rate.Limit(requestsPerSecond), requestBurst),
		logger:      logger,
	}
	return client, nil
}

type envelope struct {
	Response json.RawMessage `json:"response"`
	Error    *providerError  `json:"error"`
}

type providerError struct {
	ErrorCode    int    `json:"error_code"`
	ErrorMessage string `json:"error_msg"`
}

// Call issues one VK API method call and returns the raw response payload.
// Provider failures are classified into the shared fault taxonomy; the
// client never retries on its own.
func (client *Client) Call(ctx context.Context, methodName string, params url.Values) (json.RawMessage, error) {
	if waitErr := client.limiter.Wait(ctx); waitErr != nil {
		return nil, client.connectionFailure(methodName, waitErr)
	}
	client.logger.Debug(logMessageCallStarted, zap.String(logFieldMethod, methodName))

	requestValues := url.Values{}
	for key, values := range params {
		requestValues[key] = values
	}
	requestValues.Set(parameterAccessToken, client.accessToken)
	requestValues.Set(parameterVersion, client.apiVersion)

	methodURL := client.baseURL.JoinPath(methodName)
	httpRequest, requestErr := http.NewRequestWithContext(ctx, http.MethodPost, methodURL.String(), strings.NewReader(requestValues.Encode()))
	if requestErr != nil {
		return nil, client.connectionFailure(methodName, requestErr)
	}
	httpRequest.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpResponse, doErr := client.httpClient.Do(httpRequest)
	if doErr != nil {
		return nil, client.connectionFailure(methodName, doErr)
	}
	defer httpResponse.Body.Close()

	body, readErr := io.ReadAll(httpResponse.Body)
	if readErr != nil {
		return nil, client.connectionFailure(methodName, readErr)
	}

	var parsedEnvelope envelope
	if unmarshalErr := json.Unmarshal(body, &parsedEnvelope); unmarshalErr != nil {
		return nil, &social.APIError{
			Kind:     social.FaultConnection,
			Provider: providerName,
			Method:   methodName,
			Message:  errMessageMalformedPayload,
			Cause:    unmarshalErr,
		}
	}
	if parsedEnvelope.Error != nil {
		return nil, client.classifyProviderError(methodName, parsedEnvelope.Error)
	}
	if parsedEnvelope.Response == nil {
		return nil, &social.APIError{
			Kind:     social.FaultConnection,
			Provider: providerName,
			Method:   methodName,
			Message:  errMessageEmptyEnvelope,
		}
	}
	return parsedEnvelope.Response, nil
}

func (client *Client) classifyProviderError(methodName string, fault *providerError) error {
	kind := social.FaultProvider
	switch fault.ErrorCode {
	case errorCodeRateLimited:
		kind = social.FaultRateLimited
	case errorCodeInvalidUser:
		kind = social.FaultInvalidTarget
	}
	return &social.APIError{
		Kind:     kind,
		Provider: providerName,
		Method:   methodName,
		Code:     fault.ErrorCode,
		Message:  fault.ErrorMessage,
	}
}

func (client *Client) connectionFailure(methodName string, cause error) error {
	return &social.APIError{
		Kind:     social.FaultConnection,
		Provider: providerName,
		Method:   methodName,
		Message:  errMessageTransport,
		Cause:    cause,
	}
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: defaultHTTPTimeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: 30 * time.Second}).DialContext,
			TLSHandshakeTimeout:   defaultTLSHandshakeTimeout,
			IdleConnTimeout:       90 * time.Second,
			MaxIdleConns:          100,
			MaxConnsPerHost:       100,
			ResponseHeaderTimeout: defaultResponseHeaderTimeout,
		},
	}
}
