package social

import (
	"errors"
	"fmt"
)

// FaultKind classifies provider failures into the categories callers act on.
type FaultKind int

const (
	// FaultRateLimited marks a transient provider throttle. The client never
	// retries on its own; callers may back off and retry.
	FaultRateLimited FaultKind = iota + 1
	// FaultInvalidTarget marks an invalid or inaccessible user identifier.
	FaultInvalidTarget
	// FaultProvider marks an opaque upstream failure surfaced verbatim.
	FaultProvider
	// FaultConnection marks a transport-level failure: no response body,
	// malformed payload, or a caller timeout.
	FaultConnection
)

const (
	faultLabelRateLimited   = "rate limited"
	faultLabelInvalidTarget = "invalid target"
	faultLabelProvider      = "provider error"
	faultLabelConnection    = "connection failure"
	faultLabelUnknown       = "unknown fault"
	batchErrorFormat        = "batch request failed for %d target(s): %v"
)

// APIError describes a classified provider failure.
type APIError struct {
	Kind     FaultKind
	Provider string
	Method   string
	Code     int
	Message  string
	Cause    error
}

// Error renders the classified failure with its provider context.
func (apiError *APIError) Error() string {
	label := faultLabel(apiError.Kind)
	if apiError.Message != "" {
		return fmt.Sprintf("%s %s: %s: %s", apiError.Provider, apiError.Method, label, apiError.Message)
	}
	if apiError.Cause != nil {
		return fmt.Sprintf("%s %s: %s: %v", apiError.Provider, apiError.Method, label, apiError.Cause)
	}
	return fmt.Sprintf("%s %s: %s", apiError.Provider, apiError.Method, label)
}

// Unwrap exposes the underlying transport error when one exists.
func (apiError *APIError) Unwrap() error {
	return apiError.Cause
}

func faultLabel(kind FaultKind) string {
	switch kind {
	case FaultRateLimited:
		return faultLabelRateLimited
	case FaultInvalidTarget:
		return faultLabelInvalidTarget
	case FaultProvider:
		return faultLabelProvider
	case FaultConnection:
		return faultLabelConnection
	default:
		return faultLabelUnknown
	}
}

// IsRateLimited reports whether the error is a provider throttle.
func IsRateLimited(err error) bool {
	return hasFaultKind(err, FaultRateLimited)
}

// IsInvalidTarget reports whether the error marks a bad identifier.
func IsInvalidTarget(err error) bool {
	return hasFaultKind(err, FaultInvalidTarget)
}

// IsConnectionFailure reports whether the error is transport-level.
func IsConnectionFailure(err error) bool {
	return hasFaultKind(err, FaultConnection)
}

func hasFaultKind(err error, kind FaultKind) bool {
	var apiError *APIError
	if errors.As(err, &apiError) {
		return apiError.Kind == kind
	}
	return false
}

// BatchRequestError reports the failure of one batch inside a multi-batch
// operation. Batches already merged before the failure remain valid.
type BatchRequestError struct {
	Targets []int64
	Err     error
}

// Error describes the failed batch and its underlying cause.
func (batchError *BatchRequestError) Error() string {
	return fmt.Sprintf(batchErrorFormat, len(batchError.Targets), batchError.Err)
}

// Unwrap exposes the cause so callers can classify the batch failure.
func (batchError *BatchRequestError) Unwrap() error {
	return batchError.Err
}
