// Package allowlist implements the registrar's core sequence: create the
// query collection, add every collected document, and activate the
// collection as the engine's allowlist, tolerating exactly the failure
// shapes that signal "already done".
package allowlist

import (
	"net/http"

	"github.com/susemeee/hasura-graphql-allowlist-registrar/pkg/hasura"
)

// CreateOutcome is the result of the create-collection step. The metadata
// API has no existence check, so existence is inferred from the create
// call's conflict error; the outcome feeds the activation step's policy.
type CreateOutcome int

const (
	// CollectionCreated means the collection did not exist before this run.
	CollectionCreated CreateOutcome = iota

	// CollectionAlreadyExisted means creation failed with the
	// already-exists conflict, i.e. a previous run set the collection up.
	CollectionAlreadyExisted
)

// String implements fmt.Stringer.
func (o CreateOutcome) String() string {
	if o == CollectionAlreadyExisted {
		return "already-existed"
	}
	return "created"
}

// Verdict is the classification of a failed metadata API call.
type Verdict int

const (
	// VerdictFatal aborts the run; the error propagates unchanged.
	VerdictFatal Verdict = iota

	// VerdictIgnore tolerates the failure with no further signal.
	VerdictIgnore

	// VerdictIgnoreExisted tolerates the failure and signals that the
	// target already existed.
	VerdictIgnoreExisted
)

// ClassifyOptions selects which failure shapes a call site tolerates.
type ClassifyOptions struct {
	// IgnoreAlreadyExists tolerates status 400 with code "already-exists".
	IgnoreAlreadyExists bool

	// IgnoreDatabaseError tolerates status 500 with the engine's generic
	// "database query error" message. Only the activation step sets this,
	// and only when the collection pre-existed: re-activating an active
	// collection surfaces as this storage-layer error.
	IgnoreDatabaseError bool
}

// Classify decides whether a failed metadata API call is tolerable for the
// call site described by opts. Errors without an API response (transport
// failures, undecodable bodies) are always fatal.
func Classify(err error, opts ClassifyOptions) Verdict {
	apiErr, ok := hasura.AsAPIError(err)
	if !ok {
		return VerdictFatal
	}

	if opts.IgnoreAlreadyExists &&
		apiErr.StatusCode == http.StatusBadRequest &&
		apiErr.Code == hasura.CodeAlreadyExists {
		return VerdictIgnoreExisted
	}

	if opts.IgnoreDatabaseError &&
		apiErr.StatusCode == http.StatusInternalServerError &&
		apiErr.Message == hasura.MsgDatabaseQueryError {
		return VerdictIgnore
	}

	return VerdictFatal
}
