// Package mock provides a test double for the vectorstore.Index interface.
package mock

import (
	"context"
	"sync"

	"github.com/kotodama-ai/kotodama/pkg/types"
	"github.com/kotodama-ai/kotodama/pkg/vectorstore"
)

// UpsertCall records a single invocation of Upsert.
type UpsertCall struct {
	Chunks []types.EmbeddedChunk
	Opts   vectorstore.UpsertOptions
}

// QueryCall records a single invocation of Query.
type QueryCall struct {
	Vector []float32
	Opts   vectorstore.QueryOptions
}

// Index is a mock implementation of vectorstore.Index.
type Index struct {
	mu sync.Mutex

	// --- Configurable responses ---

	EnsureIndexErr error
	UpsertErr      error
	QueryResult    []vectorstore.Match
	QueryErr       error
	DeleteAllErr   error
	DeleteManyErr  error
	DescribeResult *vectorstore.IndexDescription
	DescribeErr    error

	// --- Call records ---

	EnsureIndexCalls []string
	UpsertCalls      []UpsertCall
	QueryCalls       []QueryCall
	DeleteAllCalls   []string
	DeleteManyCalls  [][]string
}

// EnsureIndex records the call and returns EnsureIndexErr.
func (m *Index) EnsureIndex(_ context.Context, name string, _ int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EnsureIndexCalls = append(m.EnsureIndexCalls, name)
	return m.EnsureIndexErr
}

// Upsert records the call and returns UpsertErr.
func (m *Index) Upsert(_ context.Context, chunks []types.EmbeddedChunk, opts vectorstore.UpsertOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]types.EmbeddedChunk, len(chunks))
	copy(cp, chunks)
	m.UpsertCalls = append(m.UpsertCalls, UpsertCall{Chunks: cp, Opts: opts})
	return m.UpsertErr
}

// Query records the call and returns QueryResult, QueryErr.
func (m *Index) Query(_ context.Context, vector []float32, opts vectorstore.QueryOptions) ([]vectorstore.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]float32, len(vector))
	copy(cp, vector)
	m.QueryCalls = append(m.QueryCalls, QueryCall{Vector: cp, Opts: opts})
	return m.QueryResult, m.QueryErr
}

// DeleteAll records the call and returns DeleteAllErr.
func (m *Index) DeleteAll(_ context.Context, namespace string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteAllCalls = append(m.DeleteAllCalls, namespace)
	return m.DeleteAllErr
}

// DeleteMany records the call and returns DeleteManyErr.
func (m *Index) DeleteMany(_ context.Context, ids []string, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]string, len(ids))
	copy(cp, ids)
	m.DeleteManyCalls = append(m.DeleteManyCalls, cp)
	return m.DeleteManyErr
}

// Describe returns DescribeResult, DescribeErr.
func (m *Index) Describe(context.Context) (*vectorstore.IndexDescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.DescribeResult, m.DescribeErr
}

// Ensure Index implements vectorstore.Index at compile time.
var _ vectorstore.Index = (*Index)(nil)
