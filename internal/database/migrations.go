package database

import (
	"database/sql"
	"fmt"
)

// migrations run in order inside one transaction each; the schema
// version lives in PRAGMA user_version. EnsureSchema is called once at
// process startup, never per operation.
var migrations = []func(*sql.Tx) error{
	migrateLegacySchema,
	createBaseSchema,
}

// EnsureSchema brings the database up to the current schema version.
// It is idempotent: an up-to-date database is left untouched.
func (s *Store) EnsureSchema() error {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for ; version < len(migrations); version++ {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", version+1, err)
		}
		if err := migrations[version](tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", version+1, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", version+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to set schema version %d: %w", version+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", version+1, err)
		}
		s.logger.WithField("version", version+1).Info("Applied schema migration")
	}
	return nil
}

// migrateLegacySchema translates databases written by earlier iterations
// of the ingestion schema: the misspelled 'habitacione' column is renamed
// and the fingerprint column is added and backfilled. A fresh database is
// left untouched. The translation happens here exactly once, never per
// query.
func migrateLegacySchema(tx *sql.Tx) error {
	var count int
	err := tx.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'properties'").Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to inspect schema: %w", err)
	}
	if count == 0 {
		return nil
	}

	columns, err := tableColumns(tx, "properties")
	if err != nil {
		return err
	}

	if columns["habitacione"] && !columns["habitaciones"] {
		if _, err := tx.Exec("ALTER TABLE properties RENAME COLUMN habitacione TO habitaciones"); err != nil {
			return fmt.Errorf("failed to rename legacy column: %w", err)
		}
	}

	if !columns["fingerprint"] {
		if _, err := tx.Exec("ALTER TABLE properties ADD COLUMN fingerprint TEXT NOT NULL DEFAULT ''"); err != nil {
			return fmt.Errorf("failed to add fingerprint column: %w", err)
		}
		// Legacy rows have no source bytes to hash; a synthetic value
		// keeps the unique index satisfiable.
		if _, err := tx.Exec("UPDATE properties SET fingerprint = 'legacy:' || id WHERE fingerprint = ''"); err != nil {
			return fmt.Errorf("failed to backfill fingerprints: %w", err)
		}
	}

	if !columns["activo"] {
		if _, err := tx.Exec("ALTER TABLE properties ADD COLUMN activo INTEGER NOT NULL DEFAULT 1"); err != nil {
			return fmt.Errorf("failed to add activo column: %w", err)
		}
	}
	return nil
}

func tableColumns(tx *sql.Tx, table string) (map[string]bool, error) {
	rows, err := tx.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("failed to inspect %s columns: %w", table, err)
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column info: %w", err)
		}
		columns[name] = true
	}
	return columns, rows.Err()
}

func createBaseSchema(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS properties (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			archivo TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			precio TEXT NOT NULL,
			habitaciones TEXT NOT NULL,
			metros TEXT NOT NULL,
			zona TEXT NOT NULL,
			estado TEXT NOT NULL,
			fecha_analisis TEXT NOT NULL,
			activo INTEGER NOT NULL DEFAULT 1
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create properties table: %w", err)
	}

	_, err = tx.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_properties_fingerprint
		ON properties(fingerprint);
	`)
	if err != nil {
		return fmt.Errorf("failed to create fingerprint index: %w", err)
	}

	_, err = tx.Exec(`
		CREATE TABLE IF NOT EXISTS history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			property_id INTEGER NOT NULL REFERENCES properties(id),
			campo TEXT NOT NULL,
			valor_anterior TEXT NOT NULL,
			valor_nuevo TEXT NOT NULL,
			fecha_cambio TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create history table: %w", err)
	}

	_, err = tx.Exec(`
		CREATE INDEX IF NOT EXISTS idx_history_property
		ON history(property_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to create history index: %w", err)
	}

	_, err = tx.Exec(`
		CREATE TABLE IF NOT EXISTS statistics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			fecha TEXT NOT NULL,
			total_propiedades INTEGER NOT NULL,
			precio_promedio REAL NOT NULL,
			habitaciones_promedio REAL NOT NULL,
			metros_promedio REAL NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create statistics table: %w", err)
	}
	return nil
}
