package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hoot-im/hoot/internal/bus"
	_ "github.com/mattn/go-sqlite3"
)

// DB is the SQLite-backed document store. It implements Store and
// publishes a "doc.changed" bus event for every committed write, which
// drives live subscriptions.
type DB struct {
	*sql.DB
	bus *bus.Bus
	now func() time.Time
}

var _ Store = (*DB)(nil)

// Open creates a SQLite-backed store with WAL mode and recommended
// pragmas.
func Open(path string, b *bus.Bus) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &DB{DB: db, bus: b, now: time.Now}, nil
}

// Fetch runs a one-shot query against the collection.
func (db *DB) Fetch(_ context.Context, q Query) (Snapshot, error) {
	if !validCollection(q.Path) {
		return Snapshot{}, fmt.Errorf("%w: %q is not a collection", ErrInvalidPath, q.Path)
	}
	rows, err := db.Query(`SELECT path, doc_id, fields FROM documents WHERE collection = ?`, q.Path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("scan collection %q: %w", q.Path, err)
	}
	defer func() { _ = rows.Close() }()

	var docs []Document
	for rows.Next() {
		var d Document
		var raw string
		if err := rows.Scan(&d.Path, &d.ID, &raw); err != nil {
			return Snapshot{}, err
		}
		if err := json.Unmarshal([]byte(raw), &d.Fields); err != nil {
			return Snapshot{}, fmt.Errorf("decode document %q: %w", d.Path, err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Docs: q.apply(docs)}, nil
}

// AddDocument appends a document with a generated id.
func (db *DB) AddDocument(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if !validCollection(collection) {
		return "", fmt.Errorf("%w: %q is not a collection", ErrInvalidPath, collection)
	}
	id := uuid.NewString()
	path := collection + "/" + id
	raw, err := db.encodeFields(fields)
	if err != nil {
		return "", err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO documents (path, collection, doc_id, fields, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		path, collection, id, raw, db.now().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("add document: %w", err)
	}
	db.publishChange(collection)
	return id, nil
}

// SetDocument writes a document at an explicit path, replacing existing
// content. Concurrent racers writing identical content are harmless:
// last writer wins.
func (db *DB) SetDocument(ctx context.Context, path string, fields map[string]any) error {
	collection, id, err := splitDocPath(path)
	if err != nil {
		return err
	}
	raw, err := db.encodeFields(fields)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO documents (path, collection, doc_id, fields, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			fields = excluded.fields,
			updated_at = excluded.updated_at`,
		path, collection, id, raw, db.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("set document: %w", err)
	}
	db.publishChange(collection)
	return nil
}

// UpdateDocument merges partial fields into an existing document. A
// missing document is left missing: a toggle racing a delete must lose
// quietly.
func (db *DB) UpdateDocument(ctx context.Context, path string, fields map[string]any) error {
	collection, _, err := splitDocPath(path)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT fields FROM documents WHERE path = ?`, path).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	var current map[string]any
	if err := json.Unmarshal([]byte(raw), &current); err != nil {
		return fmt.Errorf("decode document %q: %w", path, err)
	}
	for k, v := range fields {
		if _, ok := v.(serverTimestamp); ok {
			v = db.now().UnixMilli()
		}
		current[k] = v
	}
	merged, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE documents SET fields = ?, updated_at = ? WHERE path = ?`,
		string(merged), db.now().UnixMilli(), path); err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update: %w", err)
	}
	db.publishChange(collection)
	return nil
}

// DeleteDocument removes a document. Deleting an absent document is a
// no-op.
func (db *DB) DeleteDocument(ctx context.Context, path string) error {
	collection, _, err := splitDocPath(path)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `DELETE FROM documents WHERE path = ?`, path)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		db.publishChange(collection)
	}
	return nil
}

// GetDocument returns a document by path, or nil if absent.
func (db *DB) GetDocument(ctx context.Context, path string) (*Document, error) {
	if _, _, err := splitDocPath(path); err != nil {
		return nil, err
	}
	var d Document
	var raw string
	err := db.QueryRowContext(ctx, `SELECT path, doc_id, fields FROM documents WHERE path = ?`, path).
		Scan(&d.Path, &d.ID, &raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &d.Fields); err != nil {
		return nil, fmt.Errorf("decode document %q: %w", path, err)
	}
	return &d, nil
}

// Batch starts a delete batch.
func (db *DB) Batch() WriteBatch {
	return &sqlBatch{db: db}
}

type sqlBatch struct {
	db      *DB
	deletes []string
}

func (b *sqlBatch) Delete(path string) {
	b.deletes = append(b.deletes, path)
}

// Commit applies all batched deletes in one transaction. Either every
// delete lands or none does.
func (b *sqlBatch) Commit(ctx context.Context) error {
	if len(b.deletes) == 0 {
		return nil
	}

	collections := make(map[string]struct{})
	for _, path := range b.deletes {
		collection, _, err := splitDocPath(path)
		if err != nil {
			return err
		}
		collections[collection] = struct{}{}
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, path := range b.deletes {
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE path = ?`, path); err != nil {
			return fmt.Errorf("batch delete %q: %w", path, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	for collection := range collections {
		b.db.publishChange(collection)
	}
	return nil
}

func (db *DB) encodeFields(fields map[string]any) (string, error) {
	resolved := make(map[string]any, len(fields))
	for k, v := range fields {
		if _, ok := v.(serverTimestamp); ok {
			v = db.now().UnixMilli()
		}
		resolved[k] = v
	}
	raw, err := json.Marshal(resolved)
	if err != nil {
		return "", fmt.Errorf("encode fields: %w", err)
	}
	return string(raw), nil
}

func (db *DB) publishChange(collection string) {
	if db.bus == nil {
		return
	}
	db.bus.Publish(bus.Event{
		Kind:      "doc.changed",
		Timestamp: db.now(),
		Payload:   bus.DocChange{Collection: collection},
	})
}
