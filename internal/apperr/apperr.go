// Package apperr defines the error taxonomy shared by the segmentation,
// synthesis and analysis layers.
//
// Every failure that reaches a caller wraps exactly one of the sentinel errors
// below, so callers classify errors with [errors.Is] regardless of which
// component produced them:
//
//   - [ErrValidation]: the input was missing or malformed. No provider was
//     contacted.
//   - [ErrProviderUnavailable]: the capability needed by the request was never
//     configured.
//   - [ErrProviderCall]: a provider call failed (transport, quota, auth,
//     timeout).
//   - [ErrMalformedResponse]: a provider answered but its output could not be
//     parsed into the expected shape.
//   - [ErrPipelineExhausted]: neither analysis tier produced a result.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation          = errors.New("validation error")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrProviderCall        = errors.New("provider call failed")
	ErrMalformedResponse   = errors.New("malformed response")
	ErrPipelineExhausted   = errors.New("no analysis available")
)

// Validation returns an [ErrValidation] describing the offending input.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Unavailable returns an [ErrProviderUnavailable] naming the missing capability.
func Unavailable(capability string) error {
	return fmt.Errorf("%w: %s", ErrProviderUnavailable, capability)
}

// ProviderCall wraps err as an [ErrProviderCall] for the named provider. A nil
// err yields nil. Errors already classified as a provider call failure are
// returned unchanged so that wrapping stays idempotent.
func ProviderCall(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrProviderCall) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrProviderCall, provider, err)
}

// Malformed returns an [ErrMalformedResponse] with a short reason.
func Malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, args...))
}

// Exhausted returns an [ErrPipelineExhausted] for task. A non-nil cause stays
// in the chain for logging.
func Exhausted(task string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: %s", ErrPipelineExhausted, task)
	}
	return fmt.Errorf("%w: %s: %w", ErrPipelineExhausted, task, cause)
}

// HTTPStatus maps an error from the taxonomy to the status code the HTTP layer
// answers with. Unclassified errors map to 500.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrProviderUnavailable), errors.Is(err, ErrPipelineExhausted):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrProviderCall), errors.Is(err, ErrMalformedResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
