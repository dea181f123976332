// Package migrate brings a corpus database from whatever schema version it
// was created with up to the version this build understands, applying
// table, index, and trigger creation steps inside one transaction per step.
package migrate

import (
	"context"
	"database/sql"
	"fmt"

	ptserrors "github.com/ptts-corpus/ptts/internal/errors"
)

// CurrentVersion is the schema version this build produces and expects.
const CurrentVersion = 1

// step is one forward migration: applied in a single transaction, then
// the stored version is bumped to version.
type step struct {
	version int
	apply   func(ctx context.Context, tx *sql.Tx) error
}

var steps = []step{
	{version: 1, apply: applyV1},
}

// Run brings db up to CurrentVersion. It is safe to call on an empty
// database (bring-up) or an already-current one (no-op). A stored version
// newer than CurrentVersion fails fast: this build cannot safely read a
// newer schema.
func Run(ctx context.Context, db *sql.DB) error {
	if err := ensureVersionTable(ctx, db); err != nil {
		return err
	}

	current, err := storedVersion(ctx, db)
	if err != nil {
		return err
	}

	if current > CurrentVersion {
		return ptserrors.New(ptserrors.KindSchemaNewerThanSupported,
			fmt.Sprintf("database schema version %d is newer than supported version %d", current, CurrentVersion), nil)
	}

	for _, st := range steps {
		if st.version <= current {
			continue
		}
		if err := applyStep(ctx, db, st); err != nil {
			return err
		}
	}
	return nil
}

func ensureVersionTable(ctx context.Context, db *sql.DB) error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS schema_version (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		current_version INTEGER NOT NULL
	);`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return ptserrors.Internal("create schema_version table", err)
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO schema_version (id, current_version) VALUES (1, 0)
		 ON CONFLICT(id) DO NOTHING`)
	if err != nil {
		return ptserrors.Internal("seed schema_version row", err)
	}
	return nil
}

func storedVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v int
	err := db.QueryRowContext(ctx, `SELECT current_version FROM schema_version WHERE id = 1`).Scan(&v)
	if err != nil {
		return 0, ptserrors.Internal("read schema_version", err)
	}
	return v, nil
}

func applyStep(ctx context.Context, db *sql.DB, st step) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return ptserrors.Internal("begin migration transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := st.apply(ctx, tx); err != nil {
		return ptserrors.Internal(fmt.Sprintf("apply migration v%d", st.version), err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE schema_version SET current_version = ? WHERE id = 1`, st.version); err != nil {
		return ptserrors.Internal("bump schema_version", err)
	}

	if err := tx.Commit(); err != nil {
		return ptserrors.Internal(fmt.Sprintf("commit migration v%d", st.version), err)
	}
	return nil
}
