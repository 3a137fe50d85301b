package docindex

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE documents (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	text TEXT NOT NULL
);
CREATE TABLE labels (
	doc_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	name   TEXT NOT NULL,
	color  TEXT NOT NULL,
	PRIMARY KEY (doc_id, name)
);
CREATE INDEX labels_name ON labels(name);
CREATE TABLE words (
	word TEXT PRIMARY KEY,
	freq INTEGER NOT NULL
);
`

// openDB opens the sqlite file at path. The index is swapped by renaming
// files while an older generation may still be open, which rules out WAL
// and its path bound side files.
func openDB(path string, pragmas ...string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}
	return db, nil
}

func inTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
