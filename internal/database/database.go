// Package database owns the property records, their field-level change
// history and the statistics snapshots, backed by sqlite. Record identity
// is the sha256 fingerprint of the source document's raw bytes.
package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"inmodossier/server/internal/models"
)

// timeLayout is how timestamps are persisted. Fixed-width fractional
// seconds in UTC keep lexicographic and chronological order identical.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// parseTime reads a persisted timestamp, tolerating the plain RFC3339
// strings legacy databases carry.
func parseTime(value string) time.Time {
	if t, err := time.Parse(timeLayout, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	return time.Time{}
}

type Store struct {
	db     *sql.DB
	logger *logrus.Logger
}

// NewStore opens the sqlite database at dbPath and verifies the
// connection. Schema creation is a separate, explicit EnsureSchema call.
func NewStore(dbPath string, logger *logrus.Logger) (*Store, error) {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	dsn := fmt.Sprintf("file:%s?_fk=1&_busy_timeout=5000&_txlock=immediate", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const propertyColumns = `
        id,
        archivo,
        fingerprint,
        precio,
        habitaciones,
        metros,
        zona,
        estado,
        fecha_analisis,
        activo`

// ListActive returns all active properties, most recently analyzed first.
func (s *Store) ListActive() ([]models.Property, error) {
	return s.listProperties("WHERE activo = 1")
}

// ListAll returns every property including soft-deleted ones, most
// recently analyzed first.
func (s *Store) ListAll() ([]models.Property, error) {
	return s.listProperties("")
}

func (s *Store) listProperties(where string) ([]models.Property, error) {
	query := "SELECT" + propertyColumns + " FROM properties " + where + " ORDER BY fecha_analisis DESC"
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query properties: %w", err)
	}
	defer rows.Close()

	var properties []models.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		properties = append(properties, p)
	}
	return properties, rows.Err()
}

// GetProperty returns one property by id, active or not.
func (s *Store) GetProperty(id int64) (models.Property, error) {
	row := s.db.QueryRow("SELECT"+propertyColumns+" FROM properties WHERE id = ?", id)
	p, err := scanProperty(row)
	if err == sql.ErrNoRows {
		return models.Property{}, ErrNotFound
	}
	if err != nil {
		return models.Property{}, fmt.Errorf("failed to get property %d: %w", id, err)
	}
	return p, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProperty(row rowScanner) (models.Property, error) {
	var p models.Property
	var analyzedAt string
	var active int

	err := row.Scan(
		&p.ID,
		&p.SourceFile,
		&p.Fingerprint,
		&p.Fields.Price,
		&p.Fields.Rooms,
		&p.Fields.Area,
		&p.Fields.Zone,
		&p.Fields.Condition,
		&analyzedAt,
		&active,
	)
	if err != nil {
		return models.Property{}, err
	}

	p.Active = active != 0
	p.AnalyzedAt = parseTime(analyzedAt)
	return p, nil
}

// History returns the change log for one property, oldest entry first.
func (s *Store) History(propertyID int64) ([]models.ChangeLogEntry, error) {
	rows, err := s.db.Query(`
        SELECT id, property_id, campo, valor_anterior, valor_nuevo, fecha_cambio
        FROM history
        WHERE property_id = ?
        ORDER BY fecha_cambio ASC, id ASC
    `, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []models.ChangeLogEntry
	for rows.Next() {
		var e models.ChangeLogEntry
		var changedAt string
		if err := rows.Scan(&e.ID, &e.PropertyID, &e.Field, &e.OldValue, &e.NewValue, &changedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		e.ChangedAt = parseTime(changedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Deactivate soft-deletes a property. The record and its change history
// stay retrievable through ListAll and History.
func (s *Store) Deactivate(id int64) error {
	result, err := s.db.Exec("UPDATE properties SET activo = 0 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to deactivate property %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
