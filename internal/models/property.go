package models

import "time"

// NotFound is the canonical marker stored for a field none of the
// extraction patterns matched. It is distinct from an empty string: an
// empty string never appears in a stored record.
const NotFound = "No encontrado"

// FieldNames lists the tracked extraction fields in storage order.
var FieldNames = []string{"precio", "habitaciones", "metros", "zona", "estado"}

// Fields holds the canonical display values extracted from one dossier.
// Every member is either a formatted value or the NotFound sentinel.
type Fields struct {
	Price     string `json:"precio"`
	Rooms     string `json:"habitaciones"`
	Area      string `json:"metros"`
	Zone      string `json:"zona"`
	Condition string `json:"estado"`
}

// Map returns the fields keyed by their canonical column names.
func (f Fields) Map() map[string]string {
	return map[string]string{
		"precio":       f.Price,
		"habitaciones": f.Rooms,
		"metros":       f.Area,
		"zona":         f.Zone,
		"estado":       f.Condition,
	}
}

// Property is the current state of one ingested dossier. Identity is the
// content fingerprint of the source document, not the file name.
type Property struct {
	ID          int64     `json:"id"`
	SourceFile  string    `json:"archivo"`
	Fingerprint string    `json:"fingerprint"`
	Fields      Fields    `json:"fields"`
	AnalyzedAt  time.Time `json:"analyzed_at"`
	Active      bool      `json:"active"`
}

// ChangeLogEntry records one field-level transition on a property.
// Entries are append-only and never modified.
type ChangeLogEntry struct {
	ID         int64     `json:"id"`
	PropertyID int64     `json:"property_id"`
	Field      string    `json:"field"`
	OldValue   string    `json:"old_value"`
	NewValue   string    `json:"new_value"`
	ChangedAt  time.Time `json:"changed_at"`
}

// StatisticsSnapshot is a point-in-time aggregate over active properties.
// Averages cover only records whose field parses to a positive value.
type StatisticsSnapshot struct {
	ID          int64     `json:"id"`
	TakenAt     time.Time `json:"taken_at"`
	ActiveCount int       `json:"active_count"`
	AvgPrice    float64   `json:"avg_price"`
	AvgRooms    float64   `json:"avg_rooms"`
	AvgArea     float64   `json:"avg_area"`
}

// UpsertOutcome describes what an upsert did to the store.
type UpsertOutcome int

const (
	OutcomeCreated UpsertOutcome = iota
	OutcomeUpdated
	OutcomeUnchanged
)

// String returns the string representation of an UpsertOutcome.
func (o UpsertOutcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	case OutcomeUnchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// DocumentResult is the per-document line of an ingestion report.
type DocumentResult struct {
	SourceFile string        `json:"archivo"`
	Outcome    UpsertOutcome `json:"outcome"`
	Fields     Fields        `json:"fields"`
	Err        string        `json:"error,omitempty"`
}

// IngestReport summarises one ingestion run.
type IngestReport struct {
	Created   int              `json:"created"`
	Updated   int              `json:"updated"`
	Unchanged int              `json:"unchanged"`
	Failed    int              `json:"failed"`
	Documents []DocumentResult `json:"documents"`
}

// Processed returns the number of documents that completed an upsert.
func (r IngestReport) Processed() int {
	return r.Created + r.Updated + r.Unchanged
}
