package database

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"inmodossier/server/internal/models"
)

// maxConflictRetries bounds the transparent retries on a locked
// database before ErrConflict surfaces to the caller.
const maxConflictRetries = 3

const conflictRetryDelay = 50 * time.Millisecond

// Document is one ingested dossier handed to the store: its extracted
// fields plus the raw source bytes that define its identity.
type Document struct {
	SourceFile string
	Fields     models.Fields
	Content    []byte
}

// Fingerprint returns the hex-encoded sha256 digest of the source bytes.
func Fingerprint(content []byte) string {
	digest := sha256.Sum256(content)
	return hex.EncodeToString(digest[:])
}

// Upsert inserts or updates the record identified by the document's
// content fingerprint. The lookup and the resulting write run inside one
// immediate transaction, so two concurrent upserts of identical bytes
// cannot both insert. Field values that differ from the stored record
// each produce one change-log entry; a record with no differing field is
// left untouched.
func (s *Store) Upsert(doc Document) (models.UpsertOutcome, error) {
	if doc.Content == nil {
		return 0, ErrNoContent
	}
	fingerprint := Fingerprint(doc.Content)

	var outcome models.UpsertOutcome
	var err error
	for attempt := 0; attempt <= maxConflictRetries; attempt++ {
		if attempt > 0 {
			s.logger.WithFields(logFields(doc.SourceFile, fingerprint)).
				Infof("Retrying upsert, attempt %d of %d", attempt, maxConflictRetries)
			time.Sleep(conflictRetryDelay)
		}

		outcome, err = s.upsertOnce(doc, fingerprint)
		if err == nil {
			return outcome, nil
		}
		if !isLocked(err) {
			return 0, err
		}
	}

	return 0, fmt.Errorf("%w: %v", ErrConflict, err)
}

func (s *Store) upsertOnce(doc Document, fingerprint string) (models.UpsertOutcome, error) {
	now := time.Now().UTC()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	var stored models.Fields
	err = tx.QueryRow(`
        SELECT id, precio, habitaciones, metros, zona, estado
        FROM properties
        WHERE fingerprint = ?
    `, fingerprint).Scan(&id, &stored.Price, &stored.Rooms, &stored.Area, &stored.Zone, &stored.Condition)

	if err == sql.ErrNoRows {
		_, err = tx.Exec(`
            INSERT INTO properties
            (archivo, fingerprint, precio, habitaciones, metros, zona, estado, fecha_analisis, activo)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)
        `,
			doc.SourceFile,
			fingerprint,
			doc.Fields.Price,
			doc.Fields.Rooms,
			doc.Fields.Area,
			doc.Fields.Zone,
			doc.Fields.Condition,
			now.Format(timeLayout),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert property: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return 0, fmt.Errorf("failed to commit insert: %w", err)
		}
		return models.OutcomeCreated, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up fingerprint: %w", err)
	}

	changed := diffFields(stored, doc.Fields)
	if len(changed) == 0 {
		// Nothing differs; no write, not even fecha_analisis.
		return models.OutcomeUnchanged, nil
	}

	for _, field := range changed {
		_, err = tx.Exec(`
            INSERT INTO history (property_id, campo, valor_anterior, valor_nuevo, fecha_cambio)
            VALUES (?, ?, ?, ?, ?)
        `, id, field.name, field.old, field.new, now.Format(timeLayout))
		if err != nil {
			return 0, fmt.Errorf("failed to append change log: %w", err)
		}
	}

	_, err = tx.Exec(`
        UPDATE properties
        SET archivo = ?, precio = ?, habitaciones = ?, metros = ?, zona = ?, estado = ?, fecha_analisis = ?
        WHERE id = ?
    `,
		doc.SourceFile,
		doc.Fields.Price,
		doc.Fields.Rooms,
		doc.Fields.Area,
		doc.Fields.Zone,
		doc.Fields.Condition,
		now.Format(timeLayout),
		id,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update property: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit update: %w", err)
	}
	return models.OutcomeUpdated, nil
}

type fieldChange struct {
	name string
	old  string
	new  string
}

// diffFields returns the tracked fields whose values differ, in storage
// order.
func diffFields(stored, incoming models.Fields) []fieldChange {
	storedMap := stored.Map()
	incomingMap := incoming.Map()

	var changed []fieldChange
	for _, name := range models.FieldNames {
		if storedMap[name] != incomingMap[name] {
			changed = append(changed, fieldChange{name: name, old: storedMap[name], new: incomingMap[name]})
		}
	}
	return changed
}

func logFields(sourceFile, fingerprint string) logrus.Fields {
	return logrus.Fields{
		"archivo":     sourceFile,
		"fingerprint": fingerprint[:12],
	}
}
