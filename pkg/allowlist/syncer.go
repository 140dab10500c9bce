package allowlist

import (
	"context"
	"fmt"

	"github.com/susemeee/hasura-graphql-allowlist-registrar/pkg/collector"
	"github.com/susemeee/hasura-graphql-allowlist-registrar/pkg/hasura"
	"go.uber.org/zap"
)

// MetadataClient is the slice of the metadata API the syncer needs.
// *hasura.Client satisfies it.
type MetadataClient interface {
	CreateQueryCollection(ctx context.Context, name string) error
	AddQueryToCollection(ctx context.Context, collection, queryName, query string) error
	AddCollectionToAllowlist(ctx context.Context, collection string) error
}

// Syncer runs the create → add → activate sequence against one collection.
type Syncer struct {
	client     MetadataClient
	collection string
	repoName   string
	logger     *zap.Logger
}

// NewSyncer creates a syncer for the named collection. repoName may be
// empty, in which case document identifiers are plain file names.
func NewSyncer(client MetadataClient, collection, repoName string, logger *zap.Logger) (*Syncer, error) {
	if client == nil {
		return nil, fmt.Errorf("allowlist: client is required")
	}
	if collection == "" {
		return nil, fmt.Errorf("allowlist: collection name is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{
		client:     client,
		collection: collection,
		repoName:   repoName,
		logger:     logger,
	}, nil
}

// Report summarizes one successful run.
type Report struct {
	Collection     string        `json:"collection"`
	Outcome        CreateOutcome `json:"-"`
	OutcomeText    string        `json:"outcome"`
	Added          int           `json:"added"`
	AlreadyPresent int           `json:"already_present"`
	Activated      bool          `json:"activated"`
}

// Run executes the full sequence. The first failure not classified as
// ignorable aborts immediately and is returned unchanged; later steps do
// not run. Document order follows the input slice and every document is
// attempted even when the collection pre-existed.
func (s *Syncer) Run(ctx context.Context, docs []collector.Document) (*Report, error) {
	outcome, err := s.createCollection(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{Collection: s.collection, Outcome: outcome, OutcomeText: outcome.String()}

	for _, doc := range docs {
		present, err := s.addDocument(ctx, doc)
		if err != nil {
			return nil, err
		}
		if present {
			report.AlreadyPresent++
		} else {
			report.Added++
		}
	}

	if err := s.activate(ctx, outcome); err != nil {
		return nil, err
	}
	report.Activated = true

	s.logger.Info("allowlist sync complete",
		zap.String("collection", s.collection),
		zap.String("outcome", outcome.String()),
		zap.Int("added", report.Added),
		zap.Int("already_present", report.AlreadyPresent))
	return report, nil
}

// createCollection runs step 1 and infers whether the collection existed
// before this run.
func (s *Syncer) createCollection(ctx context.Context) (CreateOutcome, error) {
	err := s.client.CreateQueryCollection(ctx, s.collection)
	if err == nil {
		s.logger.Info("created query collection", zap.String("collection", s.collection))
		return CollectionCreated, nil
	}

	if Classify(err, ClassifyOptions{IgnoreAlreadyExists: true}) == VerdictIgnoreExisted {
		s.logger.Info("query collection already exists", zap.String("collection", s.collection))
		return CollectionAlreadyExisted, nil
	}
	return CollectionCreated, fmt.Errorf("creating collection %s: %w", s.collection, err)
}

// addDocument runs one step-2 addition. Returns true when the query was
// already present under that identifier.
func (s *Syncer) addDocument(ctx context.Context, doc collector.Document) (bool, error) {
	id := doc.ID(s.repoName)
	err := s.client.AddQueryToCollection(ctx, s.collection, id, doc.Content)
	if err == nil {
		s.logger.Debug("added query", zap.String("query", id), zap.String("path", doc.Path))
		return false, nil
	}

	if Classify(err, ClassifyOptions{IgnoreAlreadyExists: true}) == VerdictIgnoreExisted {
		s.logger.Debug("query already in collection", zap.String("query", id))
		return true, nil
	}
	return false, fmt.Errorf("adding query %s: %w", id, err)
}

// activate runs step 3. A database error is tolerated only when the
// collection pre-existed; in that case the activation is almost certainly a
// duplicate and the storage-layer error benign. The swallowed error is
// still logged at Warn because the engine's message does not distinguish a
// duplicate activation from a genuine storage fault.
func (s *Syncer) activate(ctx context.Context, outcome CreateOutcome) error {
	err := s.client.AddCollectionToAllowlist(ctx, s.collection)
	if err == nil {
		s.logger.Info("collection added to allowlist", zap.String("collection", s.collection))
		return nil
	}

	opts := ClassifyOptions{IgnoreDatabaseError: outcome == CollectionAlreadyExisted}
	if Classify(err, opts) == VerdictIgnore {
		apiErr, _ := hasura.AsAPIError(err)
		s.logger.Warn("ignoring activation failure for pre-existing collection",
			zap.String("collection", s.collection),
			zap.Int("status", apiErr.StatusCode),
			zap.String("message", apiErr.Message))
		return nil
	}
	return fmt.Errorf("activating collection %s: %w", s.collection, err)
}
