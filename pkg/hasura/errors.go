package hasura

import (
	"errors"
	"fmt"
)

// Error codes returned by the metadata API that the registrar understands.
const (
	// CodeAlreadyExists is returned with status 400 when creating a
	// collection or adding a query that is already present.
	CodeAlreadyExists = "already-exists"

	// MsgDatabaseQueryError is the generic storage-layer failure message
	// returned with status 500, observed when re-activating a collection
	// that is already on the allowlist.
	MsgDatabaseQueryError = "database query error"
)

// APIError is a non-2xx response from the metadata API, decoded from the
// engine's error body. Transport failures are not APIErrors; they surface
// as the underlying error and are never treated as ignorable.
type APIError struct {
	// StatusCode is the HTTP status of the response.
	StatusCode int

	// Code is the machine-readable error code (e.g. "already-exists").
	Code string `json:"code"`

	// Message is the engine's error description.
	Message string `json:"error"`

	// Path locates the offending part of the request, when reported.
	Path string `json:"path"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("metadata API error (status %d, code %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("metadata API error (status %d): %s", e.StatusCode, e.Message)
}

// AsAPIError unwraps err into an *APIError if it carries one.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
