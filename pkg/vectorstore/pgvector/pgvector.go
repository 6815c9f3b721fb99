// Package pgvector provides a vectorstore.Index backed by a PostgreSQL table
// with a pgvector HNSW index.
//
// Each vector row stores the chunk content and its flat metadata as JSONB.
// Similarity search uses cosine distance; scores are reported as
// 1 - distance so they order the same way as the hosted backends.
package pgvector

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgv "github.com/pgvector/pgvector-go"

	"github.com/kotodama-ai/kotodama/pkg/types"
	"github.com/kotodama-ai/kotodama/pkg/vectorstore"
)

// Ensure Client implements the vectorstore.Index interface at compile time.
var _ vectorstore.Index = (*Client)(nil)

// Client implements vectorstore.Index over a pgxpool.Pool.
//
// All methods are safe for concurrent use.
type Client struct {
	pool  *pgxpool.Pool
	table string
}

// New constructs a pgvector Client over an existing pool. table defaults to
// "kotodama_chunks" when empty.
func New(pool *pgxpool.Pool, table string) (*Client, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgvector: %w: pool must not be nil", vectorstore.ErrNotConfigured)
	}
	if table == "" {
		table = "kotodama_chunks"
	}
	return &Client{pool: pool, table: table}, nil
}

// EnsureIndex implements vectorstore.Index. It creates the extension, the
// chunks table with the wanted dimension, and an HNSW cosine index.
func (c *Client) EnsureIndex(ctx context.Context, _ string, dimensions int) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
			    id         TEXT PRIMARY KEY,
			    namespace  TEXT NOT NULL DEFAULT '',
			    content    TEXT NOT NULL,
			    embedding  vector(%d) NOT NULL,
			    metadata   JSONB NOT NULL DEFAULT '{}'
			)`, c.table, dimensions),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s
			USING hnsw (embedding vector_cosine_ops)`, c.table, c.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_namespace_idx ON %s (namespace)`, c.table, c.table),
	}
	for _, stmt := range stmts {
		if _, err := c.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("pgvector: ensure index: %w", err)
		}
	}
	return nil
}

// Upsert implements vectorstore.Index.
func (c *Client) Upsert(ctx context.Context, chunks []types.EmbeddedChunk, opts vectorstore.UpsertOptions) error {
	q := fmt.Sprintf(`
		INSERT INTO %s (id, namespace, content, embedding, metadata)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
		    namespace = EXCLUDED.namespace,
		    content   = EXCLUDED.content,
		    embedding = EXCLUDED.embedding,
		    metadata  = EXCLUDED.metadata`, c.table)

	return vectorstore.UpsertInBatches(ctx, chunks, opts, func(ctx context.Context, batch []vectorstore.Vector, namespace string) error {
		pgBatch := &pgx.Batch{}
		for _, v := range batch {
			content, _ := v.Metadata["content"].(string)
			pgBatch.Queue(q, v.ID, namespace, content, pgv.NewVector(v.Values), v.Metadata)
		}
		results := c.pool.SendBatch(ctx, pgBatch)
		defer results.Close()
		for range batch {
			if _, err := results.Exec(); err != nil {
				return err
			}
		}
		return nil
	})
}

// Query implements vectorstore.Index.
func (c *Client) Query(ctx context.Context, vector []float32, opts vectorstore.QueryOptions) ([]vectorstore.Match, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = 5
	}

	args := []any{pgv.NewVector(vector), opts.Namespace}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conditions := []string{"namespace = $2"}
	for k, v := range opts.Filter {
		conditions = append(conditions, fmt.Sprintf("metadata->>%s = %s", next(k), next(fmt.Sprintf("%v", v))))
	}

	args = append(args, topK)
	limitArg := fmt.Sprintf("$%d", len(args))

	q := fmt.Sprintf(`
		SELECT id, metadata, embedding <=> $1 AS distance
		FROM   %s
		WHERE  %s
		ORDER  BY distance
		LIMIT  %s`, c.table, strings.Join(conditions, "\n  AND "), limitArg)

	rows, err := c.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("pgvector: query: %w", err)
	}

	matches, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (vectorstore.Match, error) {
		var (
			m        vectorstore.Match
			distance float64
		)
		if err := row.Scan(&m.ID, &m.Metadata, &distance); err != nil {
			return vectorstore.Match{}, err
		}
		m.Score = 1 - distance
		return m, nil
	})
	if err != nil {
		return nil, fmt.Errorf("pgvector: scan rows: %w", err)
	}
	if matches == nil {
		matches = []vectorstore.Match{}
	}
	return matches, nil
}

// DeleteAll implements vectorstore.Index.
func (c *Client) DeleteAll(ctx context.Context, namespace string) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE namespace = $1`, c.table)
	if _, err := c.pool.Exec(ctx, q, namespace); err != nil {
		return fmt.Errorf("pgvector: delete all: %w", err)
	}
	return nil
}

// DeleteMany implements vectorstore.Index.
func (c *Client) DeleteMany(ctx context.Context, ids []string, namespace string) error {
	if len(ids) == 0 {
		return nil
	}
	q := fmt.Sprintf(`DELETE FROM %s WHERE namespace = $1 AND id = ANY($2)`, c.table)
	if _, err := c.pool.Exec(ctx, q, namespace, ids); err != nil {
		return fmt.Errorf("pgvector: delete %d vectors: %w", len(ids), err)
	}
	return nil
}

// Describe implements vectorstore.Index.
func (c *Client) Describe(ctx context.Context) (*vectorstore.IndexDescription, error) {
	q := fmt.Sprintf(`SELECT namespace, COUNT(*) FROM %s GROUP BY namespace`, c.table)
	rows, err := c.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("pgvector: describe: %w", err)
	}
	defer rows.Close()

	desc := &vectorstore.IndexDescription{
		Namespaces: map[string]vectorstore.NamespaceSummary{},
	}
	for rows.Next() {
		var (
			ns    string
			count int
		)
		if err := rows.Scan(&ns, &count); err != nil {
			return nil, fmt.Errorf("pgvector: describe scan: %w", err)
		}
		desc.Namespaces[ns] = vectorstore.NamespaceSummary{RecordCount: count}
		desc.TotalVectorCount += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgvector: describe rows: %w", err)
	}
	return desc, nil
}
