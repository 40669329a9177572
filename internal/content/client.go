// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package content provides a client for the hosted content store's query and
// mutation HTTP API.
package content

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/olegiv/osync-go/internal/model"
)

const httpTimeout = 30 * time.Second

// DraftPrefix marks unpublished documents in the content store.
const DraftPrefix = "drafts."

// ErrNotFound is returned when a query for a single document matches nothing.
var ErrNotFound = errors.New("content: document not found")

// ErrRevisionMismatch is returned when a mutation carries an if-revision
// precondition and the stored document has moved on.
var ErrRevisionMismatch = errors.New("content: revision mismatch")

// Client is the content-store surface the translation and lead pipelines
// depend on.
type Client interface {
	// Fetch runs a query and decodes the result into out.
	Fetch(ctx context.Context, query string, params map[string]any, out any) error
	// GetDocument fetches a single document by id. Returns ErrNotFound when
	// no such document exists.
	GetDocument(ctx context.Context, id string) (model.Document, error)
	// CreateOrReplace upserts a document, optionally guarded by a revision
	// precondition.
	CreateOrReplace(ctx context.Context, doc model.Document, opts MutateOptions) error
	// Patch sets fields on an existing document.
	Patch(ctx context.Context, id string, set map[string]any) error
}

// MutateOptions controls mutation behavior.
type MutateOptions struct {
	// IfRevisionID makes the mutation conditional on the document still
	// being at this revision. Empty means unconditional.
	IfRevisionID string
}

// Config holds connection settings for the content store.
type Config struct {
	BaseURL    string
	Dataset    string
	APIVersion string
	Token      string
}

// HTTPClient talks to the content store over its versioned HTTP API.
type HTTPClient struct {
	cfg    Config
	client *http.Client
}

// NewHTTPClient creates a content-store client.
func NewHTTPClient(cfg Config) *HTTPClient {
	return &HTTPClient{
		cfg:    cfg,
		client: &http.Client{Timeout: httpTimeout},
	}
}

// DraftID returns the draft id for a published document id. Already-draft
// ids are returned unchanged.
func DraftID(id string) string {
	if strings.HasPrefix(id, DraftPrefix) {
		return id
	}
	return DraftPrefix + id
}

// PublishedID strips the draft prefix from a document id.
func PublishedID(id string) string {
	return strings.TrimPrefix(id, DraftPrefix)
}

func (c *HTTPClient) queryURL(query string, params map[string]any) (string, error) {
	u := fmt.Sprintf("%s/v%s/data/query/%s", c.cfg.BaseURL, c.cfg.APIVersion, c.cfg.Dataset)
	q := url.Values{}
	q.Set("query", query)
	for name, value := range params {
		encoded, err := json.Marshal(value)
		if err != nil {
			return "", fmt.Errorf("encoding param %q: %w", name, err)
		}
		q.Set("$"+name, string(encoded))
	}
	return u + "?" + q.Encode(), nil
}

// Fetch runs a query and decodes the result into out.
func (c *HTTPClient) Fetch(ctx context.Context, query string, params map[string]any, out any) error {
	u, err := c.queryURL(query, params)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("content query request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)

	respBody, err := c.do(req)
	if err != nil {
		return err
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("content query decode: %w", err)
	}
	if out == nil {
		return nil
	}
	if len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return ErrNotFound
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("content result decode: %w", err)
	}
	return nil
}

// GetDocument fetches a single document by id.
func (c *HTTPClient) GetDocument(ctx context.Context, id string) (model.Document, error) {
	var doc model.Document
	err := c.Fetch(ctx, "*[_id == $id][0]", map[string]any{"id": id}, &doc)
	if err != nil {
		return nil, err
	}
	if len(doc) == 0 {
		return nil, ErrNotFound
	}
	return doc, nil
}

// CreateOrReplace upserts a document.
func (c *HTTPClient) CreateOrReplace(ctx context.Context, doc model.Document, opts MutateOptions) error {
	mutation := map[string]any{"createOrReplace": doc}
	if opts.IfRevisionID != "" {
		// Conditional replace: patch-style precondition on the existing
		// revision so a concurrent manual edit is never clobbered.
		mutation = map[string]any{
			"createOrReplace": doc,
			"ifRevisionID":    opts.IfRevisionID,
		}
	}
	return c.mutate(ctx, []map[string]any{mutation})
}

// Patch sets fields on an existing document.
func (c *HTTPClient) Patch(ctx context.Context, id string, set map[string]any) error {
	return c.mutate(ctx, []map[string]any{
		{"patch": map[string]any{"id": id, "set": set}},
	})
}

func (c *HTTPClient) mutate(ctx context.Context, mutations []map[string]any) error {
	body, err := json.Marshal(map[string]any{"mutations": mutations})
	if err != nil {
		return fmt.Errorf("content mutation marshal: %w", err)
	}

	u := fmt.Sprintf("%s/v%s/data/mutate/%s", c.cfg.BaseURL, c.cfg.APIVersion, c.cfg.Dataset)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("content mutation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)

	_, err = c.do(req)
	return err
}

func (c *HTTPClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("content api call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("content api read: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusConflict:
		return nil, ErrRevisionMismatch
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("content api error (status %d): %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
