// ABOUTME: SQLite-backed store using database/sql and go-sqlite3
// ABOUTME: Conditional writes compare the version column; collection creation is one transaction

package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/nainya/doccatalog/pkg/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	name    TEXT PRIMARY KEY,
	version INTEGER NOT NULL,
	data    BLOB
);
CREATE TABLE IF NOT EXISTS containers (
	name TEXT PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS documents (
	container TEXT NOT NULL,
	id        TEXT NOT NULL,
	data      BLOB,
	PRIMARY KEY (container, id)
);`

// Store is a store.Store over a SQLite database
type Store struct {
	db *sql.DB
}

var (
	_ store.Store         = (*Store)(nil)
	_ store.AtomicCreator = (*Store)(nil)
)

// Open opens (creating if needed) the database file at path
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database and creates the schema
func New(db *sql.DB) (*Store, error) {
	// SQLite allows one writer; a single connection serializes conditional writes
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// classify maps driver errors onto store sentinels
func classify(err error, what string) error {
	if err == nil {
		return nil
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: %s", store.ErrExists, what)
	}
	return fmt.Errorf("%w: %s: %v", store.ErrUnavailable, what, err)
}

func (s *Store) GetRecord(ctx context.Context, name string) (store.Record, error) {
	rec := store.Record{Name: name}
	err := s.db.QueryRowContext(ctx, `SELECT version, data FROM records WHERE name = ?`, name).Scan(&rec.Version, &rec.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Record{}, fmt.Errorf("%w: record %s", store.ErrNotFound, name)
	}
	if err != nil {
		return store.Record{}, classify(err, "get record "+name)
	}
	return rec, nil
}

func (s *Store) CreateRecord(ctx context.Context, rec store.Record) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO records (name, version, data) VALUES (?, ?, ?)`, rec.Name, rec.Version, rec.Data)
	return classify(err, "record "+rec.Name)
}

func (s *Store) UpdateRecord(ctx context.Context, rec store.Record, expected int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE records SET version = ?, data = ? WHERE name = ? AND version = ?`,
			rec.Version, rec.Data, rec.Name, expected)
		if err != nil {
			return classify(err, "update record "+rec.Name)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return classify(err, "update record "+rec.Name)
		}
		if n == 1 {
			return nil
		}

		var current int64
		err = tx.QueryRowContext(ctx, `SELECT version FROM records WHERE name = ?`, rec.Name).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: record %s", store.ErrNotFound, rec.Name)
		}
		if err != nil {
			return classify(err, "update record "+rec.Name)
		}
		return fmt.Errorf("%w: record %s at version %d, expected %d", store.ErrVersionConflict, rec.Name, current, expected)
	})
}

func (s *Store) DeleteRecord(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE name = ?`, name)
	if err != nil {
		return classify(err, "delete record "+name)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: record %s", store.ErrNotFound, name)
	}
	return nil
}

func (s *Store) ListRecords(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM records ORDER BY name`)
	if err != nil {
		return nil, classify(err, "list records")
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, classify(err, "list records")
		}
		names = append(names, name)
	}
	return names, classify(rows.Err(), "list records")
}

func (s *Store) CreateContainer(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO containers (name) VALUES (?)`, name)
	return classify(err, "container "+name)
}

// CreateCollection inserts the record and the container in one transaction
func (s *Store) CreateCollection(ctx context.Context, rec store.Record, container string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO records (name, version, data) VALUES (?, ?, ?)`, rec.Name, rec.Version, rec.Data); err != nil {
			return classify(err, "record "+rec.Name)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO containers (name) VALUES (?)`, container); err != nil {
			return classify(err, "container "+container)
		}
		return nil
	})
}

func (s *Store) DropContainer(ctx context.Context, name string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM containers WHERE name = ?`, name)
		if err != nil {
			return classify(err, "drop container "+name)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: container %s", store.ErrNotFound, name)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE container = ?`, name); err != nil {
			return classify(err, "drop container "+name)
		}
		return nil
	})
}

func (s *Store) ContainerExists(ctx context.Context, name string) (bool, error) {
	return containerExists(ctx, s.db, name)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func containerExists(ctx context.Context, q queryer, name string) (bool, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM containers WHERE name = ?`, name).Scan(&n); err != nil {
		return false, classify(err, "container "+name)
	}
	return n > 0, nil
}

func (s *Store) PutDocument(ctx context.Context, container string, doc store.Document) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		ok, err := containerExists(ctx, tx, container)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: container %s", store.ErrNotFound, container)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO documents (container, id, data) VALUES (?, ?, ?)
			 ON CONFLICT (container, id) DO UPDATE SET data = excluded.data`,
			container, doc.ID, doc.Data)
		return classify(err, "put document "+container+"/"+doc.ID)
	})
}

func (s *Store) GetDocument(ctx context.Context, container, id string) (store.Document, error) {
	doc := store.Document{ID: id}
	err := s.db.QueryRowContext(ctx, `SELECT data FROM documents WHERE container = ? AND id = ?`, container, id).Scan(&doc.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Document{}, fmt.Errorf("%w: document %s/%s", store.ErrNotFound, container, id)
	}
	if err != nil {
		return store.Document{}, classify(err, "get document "+container+"/"+id)
	}
	return doc, nil
}

func (s *Store) DeleteDocument(ctx context.Context, container, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE container = ? AND id = ?`, container, id)
	if err != nil {
		return classify(err, "delete document "+container+"/"+id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: document %s/%s", store.ErrNotFound, container, id)
	}
	return nil
}

func (s *Store) ListDocuments(ctx context.Context, container string) ([]store.Document, error) {
	ok, err := s.ContainerExists(ctx, container)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: container %s", store.ErrNotFound, container)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, data FROM documents WHERE container = ? ORDER BY id`, container)
	if err != nil {
		return nil, classify(err, "list documents "+container)
	}
	defer rows.Close()

	docs := []store.Document{}
	for rows.Next() {
		var doc store.Document
		if err := rows.Scan(&doc.ID, &doc.Data); err != nil {
			return nil, classify(err, "list documents "+container)
		}
		docs = append(docs, doc)
	}
	return docs, classify(rows.Err(), "list documents "+container)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err, "begin transaction")
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return classify(tx.Commit(), "commit transaction")
}
