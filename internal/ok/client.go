// Package ok implements the OK API client and its mutual-friends resolver.
// OK exposes no bulk multi-target endpoint, so mutual resolution is the
// serial one-call-per-target strategy.
package ok

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/v-graph/vgraph/internal/social"
)

const (
	providerName         = "ok"
	defaultBaseURLString = "https://api.ok.ru/fb.do"

	parameterMethod         = "method"
	parameterApplicationKey = "application_key"
	parameterAccessToken    = "access_token"
	parameterSignature      = "sig"
	parameterFormat         = "format"
	formatJSON              = "json"

	errorCodeFloodBlocked = 9
	errorCodeParam        = 100
	errorCodeParamUserID  = 110

	errMessageMalformedPayload = "response body is not valid JSON"
	errMessageTransport        = "request transport failure"

	defaultHTTPTimeout    = 15 * time.Second
	defaultRequestsPerSec = 2
	defaultRequestBurst   = 1

	logMessageCallStarted = "ok api call"
	logFieldMethod        = "method"
)

// Config customizes a Client instance. ApplicationKey and ApplicationSecret
// form the key/secret pair OK requires for request signing.
type Config struct {
	BaseURL           string
	ApplicationKey    string
	ApplicationSecret string
	AccessToken       string
	HTTPClient        *http.Client
	RequestsPerSecond float64
	RequestBurst      int
	Logger            *zap.Logger
}

// Client is a low-level request/response translator for the OK JSON API.
type Client struct {
	httpClient        *http.Client
	baseURL           string
	applicationKey    string
	applicationSecret string
	accessToken       string
	limiter           *rate.Limiter
	logger            *zap.Logger
}

// NewClient constructs a Client with a shared request limiter.
func NewClient(configuration Config) (*Client, error) {
	baseURLString := configuration.BaseURL
	if strings.TrimSpace(baseURLString) == "" {
		baseURLString = defaultBaseURLString
	}
	if _, parseErr := url.Parse(baseURLString); parseErr != nil {
		return nil, fmt.Errorf("parse base url: %w", parseErr)
	}

	httpClient := configuration.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
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
		httpClient:        httpClient,
		baseURL:           baseURLString,
		applicationKey:    configuration.ApplicationKey,
		applicationSecret: configuration.ApplicationSecret,
		accessToken:       configuration.AccessToken,
		limiter:           rate.NewLimiter(rate.Limit(requestsPerSecond), requestBurst),
		logger:            logger,
	}
	return client, nil
}

type providerError struct {
	ErrorCode    int    `json:"error_code"`
	ErrorMessage string `json:"error_msg"`
}

// Call issues one OK API method call with a signed parameter set and
// returns the raw JSON payload.
func (client *Client) Call(ctx context.Context, methodName string, params url.Values) (json.RawMessage, error) {
	if waitErr := client.limiter.Wait(ctx); waitErr != nil {
		return nil, client.connectionFailure(methodName, waitErr)
	}
	client.logger.Debug(logMessageCallStarted, zap.String(logFieldMethod, methodName))

	requestValues := url.Values{}
	for key, values := range params {
		requestValues[key] = values
	}
	requestValues.Set(parameterMethod, methodName)
	requestValues.Set(parameterApplicationKey, client.applicationKey)
	requestValues.Set(parameterFormat, formatJSON)
	requestValues.Set(parameterSignature, client.signature(requestValues))
	requestValues.Set(parameterAccessToken, client.accessToken)

	requestURL := client.baseURL + "?" + requestValues.Encode()
	httpRequest, requestErr := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if requestErr != nil {
		return nil, client.connectionFailure(methodName, requestErr)
	}

	httpResponse, doErr := client.httpClient.Do(httpRequest)
	if doErr != nil {
		return nil, client.connectionFailure(methodName, doErr)
	}
	defer httpResponse.Body.Close()

	body, readErr := io.ReadAll(httpResponse.Body)
	if readErr != nil {
		return nil, client.connectionFailure(methodName, readErr)
	}
	if !json.Valid(body) {
		return nil, &social.APIError{
			Kind:     social.FaultConnection,
			Provider: providerName,
			Method:   methodName,
			Message:  errMessageMalformedPayload,
		}
	}

	var fault providerError
	if unmarshalErr := json.Unmarshal(body, &fault); unmarshalErr == nil && fault.ErrorCode != 0 {
		return nil, client.classifyProviderError(methodName, fault)
	}
	return json.RawMessage(body), nil
}

// signature computes the MD5 request signature: sorted key=value pairs
// concatenated with the session secret, access token excluded.
func (client *Client) signature(params url.Values) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		if key == parameterAccessToken || key == parameterSignature {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var signatureBase strings.Builder
	for _, key := range keys {
		signatureBase.WriteString(key)
		signatureBase.WriteString("=")
		signatureBase.WriteString(params.Get(key))
	}
	signatureBase.WriteString(client.sessionSecret())

	digest := md5.Sum([]byte(signatureBase.String()))
	return hex.EncodeToString(digest[:])
}

func (client *Client) sessionSecret() string {
	digest := md5.Sum([]byte(client.accessToken + client.applicationSecret))
	return hex.EncodeToString(digest[:])
}

func (client *Client) classifyProviderError(methodName string, fault providerError) error {
	kind := social.FaultProvider
	switch fault.ErrorCode {
	case errorCodeFloodBlocked:
		kind = social.FaultRateLimited
	case errorCodeParam, errorCodeParamUserID:
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
