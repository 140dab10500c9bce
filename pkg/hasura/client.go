// Package hasura is a minimal client for the GraphQL engine's metadata API,
// covering the three query-collection operations the registrar needs.
//
// Every operation is a POST to <endpoint>/v1/query with a body of the shape
// {"type": <operation>, "args": {...}}, authenticated with the admin role
// and admin secret headers.
package hasura

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/susemeee/hasura-graphql-allowlist-registrar/internal/config"
	"go.uber.org/zap"
)

const (
	queryPath = "/v1/query"

	headerRole        = "X-Hasura-Role"
	headerAdminSecret = "X-Hasura-Admin-Secret"

	roleAdmin = "admin"
)

// Config holds connection settings for the metadata API.
type Config struct {
	// Endpoint is the engine base URL (e.g. http://localhost:8080).
	Endpoint string

	// AdminSecret authenticates requests as the admin role.
	AdminSecret config.Secret

	// Timeout bounds each request. Zero means 30s.
	Timeout time.Duration
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("hasura: endpoint is required")
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("hasura: invalid endpoint %q: %w", c.Endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("hasura: invalid endpoint %q: scheme must be http or https", c.Endpoint)
	}
	if !c.AdminSecret.IsSet() {
		return fmt.Errorf("hasura: admin secret is required")
	}
	return nil
}

// Client talks to one GraphQL engine's metadata API.
type Client struct {
	endpoint string
	secret   config.Secret
	http     *http.Client
	logger   *zap.Logger
}

// NewClient creates a metadata API client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		secret:   cfg.AdminSecret,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
	}, nil
}

// request is the metadata API's uniform request envelope.
type request struct {
	Type string `json:"type"`
	Args any    `json:"args"`
}

// collectionDefinition is the definition of a new, empty collection.
type collectionDefinition struct {
	Queries []collectionQuery `json:"queries"`
}

// collectionQuery is one named query inside a collection definition.
type collectionQuery struct {
	Name  string `json:"name"`
	Query string `json:"query"`
}

// CreateQueryCollection creates a named, empty query collection.
//
// Returns an *APIError with status 400 and code "already-exists" when the
// collection is already present; the engine offers no existence check, so
// callers infer existence from that error.
func (c *Client) CreateQueryCollection(ctx context.Context, name string) error {
	args := struct {
		Name       string               `json:"name"`
		Comment    string               `json:"comment"`
		Definition collectionDefinition `json:"definition"`
	}{
		Name:       name,
		Comment:    "",
		Definition: collectionDefinition{Queries: []collectionQuery{}},
	}
	return c.do(ctx, "create_query_collection", args)
}

// AddQueryToCollection adds a single named query to an existing collection.
func (c *Client) AddQueryToCollection(ctx context.Context, collection, queryName, query string) error {
	args := struct {
		CollectionName string `json:"collection_name"`
		QueryName      string `json:"query_name"`
		Query          string `json:"query"`
	}{
		CollectionName: collection,
		QueryName:      queryName,
		Query:          query,
	}
	return c.do(ctx, "add_query_to_collection", args)
}

// AddCollectionToAllowlist adds an existing collection to the engine's
// enforced allowlist.
func (c *Client) AddCollectionToAllowlist(ctx context.Context, collection string) error {
	args := struct {
		Collection string `json:"collection"`
	}{
		Collection: collection,
	}
	return c.do(ctx, "add_collection_to_allowlist", args)
}

// do executes one metadata API operation and classifies the response.
// A non-2xx response with a decodable engine error body becomes *APIError;
// transport failures and undecodable bodies surface as plain errors.
func (c *Client) do(ctx context.Context, opType string, args any) error {
	body, err := json.Marshal(request{Type: opType, Args: args})
	if err != nil {
		return fmt.Errorf("hasura: marshaling %s request: %w", opType, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+queryPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("hasura: creating %s request: %w", opType, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerRole, roleAdmin)
	req.Header.Set(headerAdminSecret, c.secret.Value())

	c.logger.Debug("metadata API request", zap.String("type", opType))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("hasura: executing %s: %w", opType, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return fmt.Errorf("hasura: %s failed with status %d, unreadable body: %w", opType, resp.StatusCode, err)
	}

	apiErr := &APIError{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(respBody, apiErr); err != nil {
		return fmt.Errorf("hasura: %s failed with status %d: %s", opType, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return apiErr
}
