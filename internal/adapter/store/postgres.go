package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/arturoeanton/go-medqa-rag/internal/domain"
	"github.com/arturoeanton/go-medqa-rag/internal/port"
	"github.com/m-mizutani/goerr/v2"
	"github.com/pgvector/pgvector-go"

	_ "github.com/lib/pq"
)

const postgresSchema = `
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS collections (
	name      TEXT PRIMARY KEY,
	dimension INTEGER NOT NULL DEFAULT 0,
	next_seq  INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT    NOT NULL REFERENCES collections (name),
	seq        INTEGER NOT NULL,
	id         TEXT    NOT NULL,
	content    TEXT    NOT NULL,
	metadata   JSONB   NOT NULL DEFAULT '{}',
	embedding  vector  NOT NULL,
	PRIMARY KEY (collection, id)
);
`

// PostgresStore keeps the collections in Postgres with pgvector.
type PostgresStore struct {
	db   *sql.DB
	opts options
}

var _ port.VectorStore = (*PostgresStore)(nil)

// NewPostgresStore opens a connection, migrates the schema, and gets-or-creates both collections.
func NewPostgresStore(ctx context.Context, databaseURL string, dimension int, opts ...Option) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, goerr.Wrap(err, "open database")
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, goerr.Wrap(err, "ping database")
	}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, goerr.Wrap(err, "migrate database")
	}

	s := &PostgresStore{db: db, opts: newOptions(opts)}
	for _, name := range domain.Collections {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO collections (name, dimension) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
			s.opts.physical(name), dimension); err != nil {
			db.Close()
			return nil, goerr.Wrap(err, "failed to create collection", goerr.V("collection", name))
		}
	}
	return s, nil
}

// Add inserts the batch in one transaction; the collection row is locked to serialize id assignment.
func (s *PostgresStore) Add(ctx context.Context, collection string, documents []string, embeddings []domain.Embedding, metadatas []domain.Metadata) ([]string, error) {
	if !domain.IsKnownCollection(collection) {
		return nil, goerr.Wrap(port.ErrUnknownCollection, "cannot add documents", goerr.V("collection", collection))
	}
	name := s.opts.physical(collection)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "begin tx")
	}
	defer tx.Rollback()

	var dimension, nextSeq int
	if err := tx.QueryRowContext(ctx,
		`SELECT dimension, next_seq FROM collections WHERE name = $1 FOR UPDATE`, name,
	).Scan(&dimension, &nextSeq); err != nil {
		return nil, goerr.Wrap(err, "failed to lock collection", goerr.V("collection", collection))
	}

	plan, err := planAdd(collection, dimension, nextSeq, documents, embeddings, metadatas)
	if err != nil {
		return nil, err
	}
	if len(documents) == 0 {
		return nil, nil
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO documents (collection, seq, id, content, metadata, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6)`)
	if err != nil {
		return nil, goerr.Wrap(err, "prepare")
	}
	defer stmt.Close()

	for i, text := range documents {
		meta, err := encodeMetadata(plan.metadatas[i])
		if err != nil {
			return nil, err
		}
		if _, err := stmt.ExecContext(ctx,
			name, nextSeq+i, plan.ids[i], text, meta, pgvector.NewVector(embeddings[i]),
		); err != nil {
			return nil, goerr.Wrap(err, "insert document", goerr.V("id", plan.ids[i]))
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE collections SET dimension = $1, next_seq = $2 WHERE name = $3`,
		plan.dimension, nextSeq+len(documents), name); err != nil {
		return nil, goerr.Wrap(err, "update collection", goerr.V("collection", collection))
	}

	if err := tx.Commit(); err != nil {
		return nil, goerr.Wrap(err, "commit")
	}
	return plan.ids, nil
}

// Query performs a cosine similarity search.
func (s *PostgresStore) Query(ctx context.Context, collection string, embedding domain.Embedding, k int) (*domain.RetrievalResult, error) {
	result := &domain.RetrievalResult{Collection: collection, Documents: []domain.Document{}}
	if !domain.IsKnownCollection(collection) {
		return nil, goerr.Wrap(port.ErrUnknownCollection, "cannot query", goerr.V("collection", collection))
	}
	name := s.opts.physical(collection)

	var dimension, size int
	if err := s.db.QueryRowContext(ctx,
		`SELECT dimension, next_seq FROM collections WHERE name = $1`, name,
	).Scan(&dimension, &size); err != nil {
		return nil, goerr.Wrap(err, "failed to read collection", goerr.V("collection", collection))
	}
	proceed, err := checkQuery(collection, dimension, size, embedding, k)
	if err != nil {
		return nil, err
	}
	if !proceed {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, metadata, 1 - (embedding <=> $1) AS similarity
		   FROM documents
		  WHERE collection = $2
		  ORDER BY embedding <=> $1, seq
		  LIMIT $3`,
		pgvector.NewVector(embedding), name, k)
	if err != nil {
		return nil, goerr.Wrap(err, "search similar", goerr.V("collection", collection))
	}
	defer rows.Close()

	for rows.Next() {
		var (
			d    domain.Document
			meta []byte
		)
		if err := rows.Scan(&d.ID, &d.Text, &meta, &d.Score); err != nil {
			return nil, goerr.Wrap(err, "scan similar")
		}
		if d.Metadata, err = decodeMetadata(meta); err != nil {
			return nil, err
		}
		result.Documents = append(result.Documents, d)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "iterate similar")
	}
	return result, nil
}

func (s *PostgresStore) Count(ctx context.Context, collection string) (int, error) {
	if !domain.IsKnownCollection(collection) {
		return 0, goerr.Wrap(port.ErrUnknownCollection, "cannot count", goerr.V("collection", collection))
	}
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE collection = $1`, s.opts.physical(collection),
	).Scan(&n); err != nil {
		return 0, goerr.Wrap(err, "count documents", goerr.V("collection", collection))
	}
	return n, nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
