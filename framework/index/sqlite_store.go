package index

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lexcodex/xmodel/framework/model"
)

// MemoryDSN keeps the SQLite database in memory for the session lifetime.
const MemoryDSN = ":memory:"

// SQLiteStore persists the name tables in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens/creates the database at dsn. An empty dsn selects an
// in-memory database.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		dsn = MemoryDSN
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// Every pooled connection to :memory: would see its own empty database.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}
	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS files (
		id TEXT PRIMARY KEY,
		uri TEXT NOT NULL UNIQUE,
		declaration_count INTEGER,
		reference_count INTEGER,
		indexed_at TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS declarations (
		file_id TEXT NOT NULL,
		ordinal INTEGER NOT NULL,
		name TEXT NOT NULL,
		key TEXT NOT NULL,
		fold TEXT NOT NULL,
		type INTEGER NOT NULL,
		FOREIGN KEY(file_id) REFERENCES files(id) ON DELETE CASCADE
	);
	CREATE TABLE IF NOT EXISTS refs (
		file_id TEXT NOT NULL,
		ordinal INTEGER NOT NULL,
		name TEXT NOT NULL,
		key TEXT NOT NULL,
		fold TEXT NOT NULL,
		type INTEGER NOT NULL,
		FOREIGN KEY(file_id) REFERENCES files(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_declarations_key ON declarations(key);
	CREATE INDEX IF NOT EXISTS idx_declarations_fold ON declarations(fold);
	CREATE INDEX IF NOT EXISTS idx_refs_key ON refs(key);
	CREATE INDEX IF NOT EXISTS idx_refs_fold ON refs(fold);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) ReplaceFile(uri string, decls, refs []Entry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if err := replaceFile(tx, uri, decls, refs); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func replaceFile(tx *sql.Tx, uri string, decls, refs []Entry) error {
	id := model.FileID(uri)
	if _, err := tx.Exec(`DELETE FROM files WHERE id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT INTO files (id, uri, declaration_count, reference_count, indexed_at)
		VALUES (?, ?, ?, ?, ?)`, id, uri, len(decls), len(refs), time.Now().UTC()); err != nil {
		return err
	}
	if err := insertEntries(tx, "declarations", id, decls); err != nil {
		return err
	}
	return insertEntries(tx, "refs", id, refs)
}

func insertEntries(tx *sql.Tx, table, fileID string, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`INSERT INTO ` + table + ` (file_id, ordinal, name, key, fold, type)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, e := range entries {
		if _, err := stmt.Exec(fileID, e.Ordinal, e.Name, e.Key, e.Fold, int(e.Type)); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) DeleteFile(uri string) error {
	_, err := s.db.Exec(`DELETE FROM files WHERE id = ?`, model.FileID(uri))
	return err
}

func (s *SQLiteStore) Declarations(q Query) ([]Entry, error) {
	return s.search("declarations", q)
}

func (s *SQLiteStore) References(q Query) ([]Entry, error) {
	return s.search("refs", q)
}

func (s *SQLiteStore) search(table string, q Query) ([]Entry, error) {
	column := "t.key"
	if q.Fold {
		column = "t.fold"
	}
	var clauses []string
	var args []any
	if q.Prefix {
		clauses = append(clauses, "substr("+column+", 1, ?) = ?")
		args = append(args, utf8.RuneCountInString(q.Key), q.Key)
	} else {
		clauses = append(clauses, column+" = ?")
		args = append(args, q.Key)
	}
	if len(q.Types) > 0 {
		placeholders := make([]string, len(q.Types))
		for i, t := range q.Types {
			placeholders[i] = "?"
			args = append(args, int(t))
		}
		clauses = append(clauses, "t.type IN ("+strings.Join(placeholders, ", ")+")")
	}
	rows, err := s.db.Query(`SELECT f.uri, t.ordinal, t.name, t.key, t.fold, t.type
		FROM `+table+` t JOIN files f ON f.id = t.file_id
		WHERE `+strings.Join(clauses, " AND ")+`
		ORDER BY f.uri, t.ordinal, t.rowid`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		var typ int
		if err := rows.Scan(&e.URI, &e.Ordinal, &e.Name, &e.Key, &e.Fold, &typ); err != nil {
			return nil, err
		}
		e.Type = model.ElementType(typ)
		out = append(out, e)
	}
	return out, rows.Err()
}
