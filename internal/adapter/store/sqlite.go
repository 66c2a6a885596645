package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"os"
	"path/filepath"
	"sync"

	"github.com/arturoeanton/go-medqa-rag/internal/domain"
	"github.com/arturoeanton/go-medqa-rag/internal/port"
	"github.com/m-mizutani/goerr/v2"
	"modernc.org/sqlite"
)

// SQLiteFileName is the database file created inside the store directory.
const SQLiteFileName = "medqa.sqlite"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS collections (
	name      TEXT PRIMARY KEY,
	dimension INTEGER NOT NULL DEFAULT 0,
	next_seq  INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT    NOT NULL,
	seq        INTEGER NOT NULL,
	id         TEXT    NOT NULL,
	content    TEXT    NOT NULL,
	meta       TEXT    NOT NULL DEFAULT '{}',
	embedding  BLOB    NOT NULL,
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_collection_seq ON documents (collection, seq);
`

var registerVecCosine = sync.OnceValue(func() error {
	return sqlite.RegisterDeterministicScalarFunction("vec_cosine", 2, vecCosine)
})

// vecCosine is the SQL function vec_cosine(a BLOB, b BLOB) -> REAL.
func vecCosine(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	a, ok1 := args[0].([]byte)
	b, ok2 := args[1].([]byte)
	if !ok1 || !ok2 {
		return nil, goerr.New("vec_cosine expects two BLOB arguments")
	}
	va, err := decodeVector(a)
	if err != nil {
		return nil, err
	}
	vb, err := decodeVector(b)
	if err != nil {
		return nil, err
	}
	return cosineSimilarity(va, vb), nil
}

// SQLiteStore is the default directory-backed store. Scoring runs inside SQLite through vec_cosine.
type SQLiteStore struct {
	db *sql.DB
}

var _ port.VectorStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the store under dir and gets-or-creates both collections.
func NewSQLiteStore(ctx context.Context, dir string, dimension int) (*SQLiteStore, error) {
	if err := registerVecCosine(); err != nil {
		return nil, goerr.Wrap(err, "failed to register vec_cosine")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, goerr.Wrap(err, "failed to create store directory", goerr.V("dir", dir))
	}

	path := filepath.Join(dir, SQLiteFileName)
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite", goerr.V("path", path))
	}
	// One writer at a time; transactions never touch the pool outside their own conn.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, goerr.Wrap(err, "failed to migrate sqlite", goerr.V("path", path))
	}
	for _, name := range domain.Collections {
		if _, err := db.ExecContext(ctx,
			`INSERT OR IGNORE INTO collections (name, dimension) VALUES (?, ?)`, name, dimension); err != nil {
			db.Close()
			return nil, goerr.Wrap(err, "failed to create collection", goerr.V("collection", name))
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Add(ctx context.Context, collection string, documents []string, embeddings []domain.Embedding, metadatas []domain.Metadata) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "begin tx")
	}
	defer tx.Rollback()

	var dimension, nextSeq int
	err = tx.QueryRowContext(ctx,
		`SELECT dimension, next_seq FROM collections WHERE name = ?`, collection).Scan(&dimension, &nextSeq)
	if err == sql.ErrNoRows {
		return nil, goerr.Wrap(port.ErrUnknownCollection, "cannot add documents", goerr.V("collection", collection))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read collection", goerr.V("collection", collection))
	}

	plan, err := planAdd(collection, dimension, nextSeq, documents, embeddings, metadatas)
	if err != nil {
		return nil, err
	}
	if len(documents) == 0 {
		return nil, nil
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO documents (collection, seq, id, content, meta, embedding) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, goerr.Wrap(err, "prepare insert")
	}
	defer stmt.Close()

	for i, text := range documents {
		meta, err := encodeMetadata(plan.metadatas[i])
		if err != nil {
			return nil, err
		}
		if _, err := stmt.ExecContext(ctx,
			collection, nextSeq+i, plan.ids[i], text, meta, encodeVector(embeddings[i]),
		); err != nil {
			return nil, goerr.Wrap(err, "failed to insert document", goerr.V("id", plan.ids[i]))
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE collections SET dimension = ?, next_seq = ? WHERE name = ?`,
		plan.dimension, nextSeq+len(documents), collection); err != nil {
		return nil, goerr.Wrap(err, "failed to update collection", goerr.V("collection", collection))
	}

	if err := tx.Commit(); err != nil {
		return nil, goerr.Wrap(err, "commit")
	}
	return plan.ids, nil
}

func (s *SQLiteStore) Query(ctx context.Context, collection string, embedding domain.Embedding, k int) (*domain.RetrievalResult, error) {
	result := &domain.RetrievalResult{Collection: collection, Documents: []domain.Document{}}

	dimension, size, err := s.collectionState(ctx, collection)
	if err != nil {
		return nil, err
	}
	proceed, err := checkQuery(collection, dimension, size, embedding, k)
	if err != nil {
		return nil, err
	}
	if !proceed {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, meta, vec_cosine(embedding, ?) AS score
		   FROM documents
		  WHERE collection = ?
		  ORDER BY score DESC, seq ASC
		  LIMIT ?`,
		encodeVector(embedding), collection, k)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query documents", goerr.V("collection", collection))
	}
	defer rows.Close()

	for rows.Next() {
		var (
			d    domain.Document
			meta []byte
		)
		if err := rows.Scan(&d.ID, &d.Text, &meta, &d.Score); err != nil {
			return nil, goerr.Wrap(err, "scan document")
		}
		if d.Metadata, err = decodeMetadata(meta); err != nil {
			return nil, err
		}
		result.Documents = append(result.Documents, d)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "iterate documents")
	}
	return result, nil
}

func (s *SQLiteStore) Count(ctx context.Context, collection string) (int, error) {
	if !domain.IsKnownCollection(collection) {
		return 0, goerr.Wrap(port.ErrUnknownCollection, "cannot count", goerr.V("collection", collection))
	}
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE collection = ?`, collection).Scan(&n); err != nil {
		return 0, goerr.Wrap(err, "failed to count documents", goerr.V("collection", collection))
	}
	return n, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// collectionState returns the established dimension and the number of stored documents.
func (s *SQLiteStore) collectionState(ctx context.Context, collection string) (int, int, error) {
	var dim, size int
	err := s.db.QueryRowContext(ctx,
		`SELECT dimension, next_seq FROM collections WHERE name = ?`, collection).Scan(&dim, &size)
	if err == sql.ErrNoRows {
		return 0, 0, goerr.Wrap(port.ErrUnknownCollection, "cannot query", goerr.V("collection", collection))
	}
	if err != nil {
		return 0, 0, goerr.Wrap(err, "failed to read collection", goerr.V("collection", collection))
	}
	return dim, size, nil
}
