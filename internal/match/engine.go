// Package match links stored photos to user identities by comparing the
// user's enrolled reference embedding against the face store.
package match

import (
	"context"
	"errors"
	"fmt"

	"github.com/LeulTew/aura/internal/facestore"
	"github.com/LeulTew/aura/internal/usage"
)

// ErrReferenceNotFound reports that the user has no enrolled face
// embedding to match against.
var ErrReferenceNotFound = errors.New("no reference embedding")

// Defaults applied when the caller does not override them.
const (
	DefaultThreshold = 0.6
	DefaultLimit     = 500
)

// Link connects a photo to a matched user with the similarity at match time.
type Link struct {
	PhotoID    string
	UserID     string
	Similarity float64
}

// ReferenceSource provides a user's enrolled reference embedding.
type ReferenceSource interface {
	ReferenceEmbedding(ctx context.Context, userID string) ([]float32, error)
}

// Writer persists match links idempotently.
type Writer interface {
	UpsertBatch(ctx context.Context, links []Link) (int, error)
}

// Result summarizes one matching run.
type Result struct {
	UserID    string                   `json:"user_id"`
	Threshold float64                  `json:"threshold"`
	Matches   []facestore.SearchResult `json:"matches"`
	Persisted int                      `json:"persisted"`
}

// Engine runs identity matching against a face store.
type Engine struct {
	refs      ReferenceSource
	store     facestore.Store
	writer    Writer
	usage     usage.Logger
	threshold float64
	limit     int
}

// Option configures an Engine.
type Option func(*Engine)

// WithThreshold overrides the default similarity threshold.
func WithThreshold(t float64) Option {
	return func(e *Engine) { e.threshold = t }
}

// WithLimit overrides the default result limit.
func WithLimit(n int) Option {
	return func(e *Engine) { e.limit = n }
}

// NewEngine creates a matching engine. The writer and usage logger may be
// nil, in which case matches are returned but not persisted or logged.
func NewEngine(refs ReferenceSource, store facestore.Store, writer Writer, usageLog usage.Logger, opts ...Option) *Engine {
	e := &Engine{
		refs:      refs,
		store:     store,
		writer:    writer,
		usage:     usageLog,
		threshold: DefaultThreshold,
		limit:     DefaultLimit,
	}
	if e.usage == nil {
		e.usage = usage.NopLogger{}
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MatchIdentity finds all stored photos within a tenant that show the
// given user, persists the links, and returns them ranked by similarity.
// Re-running is idempotent: existing links get refreshed similarities.
func (e *Engine) MatchIdentity(ctx context.Context, tenantID, userID string) (*Result, error) {
	ref, err := e.refs.ReferenceEmbedding(ctx, userID)
	if err != nil {
		return nil, err
	}

	matches, err := e.store.Search(ctx, ref, tenantID, e.threshold, e.limit)
	if err != nil {
		return nil, fmt.Errorf("searching faces for user %s: %w", userID, err)
	}

	result := &Result{UserID: userID, Threshold: e.threshold, Matches: matches}
	if e.writer != nil && len(matches) > 0 {
		links := make([]Link, len(matches))
		for i, m := range matches {
			links[i] = Link{PhotoID: m.Record.ID, UserID: userID, Similarity: m.Similarity}
		}
		persisted, err := e.writer.UpsertBatch(ctx, links)
		if err != nil {
			return nil, fmt.Errorf("persisting matches for user %s: %w", userID, err)
		}
		result.Persisted = persisted
	}

	e.usage.Log(ctx, usage.Entry{
		OrgID:    tenantID,
		UserID:   userID,
		Action:   usage.ActionMatch,
		Metadata: map[string]any{"matches": len(matches)},
	})
	return result, nil
}
