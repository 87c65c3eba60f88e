package database

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inmodossier/server/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	store, err := NewStore(filepath.Join(t.TempDir(), "dossiers.db"), logger)
	require.NoError(t, err)
	require.NoError(t, store.EnsureSchema())

	t.Cleanup(func() { store.Close() })
	return store
}

func testFields(price string) models.Fields {
	return models.Fields{
		Price:     price,
		Rooms:     "3 hab",
		Area:      "85 m²",
		Zone:      "Centro",
		Condition: "bueno",
	}
}

func TestStore_EnsureSchemaIdempotent(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.EnsureSchema())
	assert.NoError(t, store.EnsureSchema())
}

func TestStore_UpsertCreates(t *testing.T) {
	store := newTestStore(t)

	outcome, err := store.Upsert(Document{
		SourceFile: "piso_centro.pdf",
		Fields:     testFields("€ 125.000,00"),
		Content:    []byte("dossier uno"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCreated, outcome)

	active, err := store.ListActive()
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "piso_centro.pdf", active[0].SourceFile)
	assert.Equal(t, Fingerprint([]byte("dossier uno")), active[0].Fingerprint)
	assert.Equal(t, "€ 125.000,00", active[0].Fields.Price)
	assert.True(t, active[0].Active)
	assert.False(t, active[0].AnalyzedAt.IsZero())
}

func TestStore_UpsertIdempotent(t *testing.T) {
	store := newTestStore(t)
	doc := Document{
		SourceFile: "piso.pdf",
		Fields:     testFields("€ 125.000,00"),
		Content:    []byte("mismos bytes"),
	}

	outcome, err := store.Upsert(doc)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCreated, outcome)

	outcome, err = store.Upsert(doc)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeUnchanged, outcome)

	all, err := store.ListAll()
	require.NoError(t, err)
	require.Len(t, all, 1)

	history, err := store.History(all[0].ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestStore_UpsertDetectsChanges(t *testing.T) {
	store := newTestStore(t)
	content := []byte("mismo dossier")

	_, err := store.Upsert(Document{SourceFile: "piso.pdf", Fields: testFields("€ 125.000,00"), Content: content})
	require.NoError(t, err)

	changed := testFields("€ 130.000,00")
	changed.Condition = "reformado"
	outcome, err := store.Upsert(Document{SourceFile: "piso.pdf", Fields: changed, Content: content})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeUpdated, outcome)

	all, err := store.ListAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "€ 130.000,00", all[0].Fields.Price)
	assert.Equal(t, "reformado", all[0].Fields.Condition)

	history, err := store.History(all[0].ID)
	require.NoError(t, err)
	require.Len(t, history, 2)

	byField := map[string]models.ChangeLogEntry{}
	for _, e := range history {
		byField[e.Field] = e
	}
	assert.Equal(t, "€ 125.000,00", byField["precio"].OldValue)
	assert.Equal(t, "€ 130.000,00", byField["precio"].NewValue)
	assert.Equal(t, "bueno", byField["estado"].OldValue)
	assert.Equal(t, "reformado", byField["estado"].NewValue)
}

func TestStore_FingerprintUniqueness(t *testing.T) {
	store := newTestStore(t)
	fields := testFields("€ 125.000,00")

	// Identical fields, distinct bytes: two distinct records.
	_, err := store.Upsert(Document{SourceFile: "a.pdf", Fields: fields, Content: []byte("contenido a")})
	require.NoError(t, err)
	_, err = store.Upsert(Document{SourceFile: "b.pdf", Fields: fields, Content: []byte("contenido b")})
	require.NoError(t, err)

	all, err := store.ListAll()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.NotEqual(t, all[0].Fingerprint, all[1].Fingerprint)
}

func TestStore_UpsertNoContent(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Upsert(Document{SourceFile: "x.pdf", Fields: testFields("€ 1,00")})
	assert.ErrorIs(t, err, ErrNoContent)

	all, err := store.ListAll()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestStore_ConcurrentUpsertsSameBytes(t *testing.T) {
	store := newTestStore(t)
	doc := Document{
		SourceFile: "carrera.pdf",
		Fields:     testFields("€ 99.000,00"),
		Content:    []byte("bytes identicos"),
	}

	const workers = 8
	outcomes := make([]models.UpsertOutcome, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = store.Upsert(doc)
		}(i)
	}
	wg.Wait()

	created := 0
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		if outcomes[i] == models.OutcomeCreated {
			created++
		} else {
			assert.Equal(t, models.OutcomeUnchanged, outcomes[i])
		}
	}
	assert.Equal(t, 1, created)

	all, err := store.ListAll()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStore_ListActiveOrdering(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 3; i++ {
		_, err := store.Upsert(Document{
			SourceFile: fmt.Sprintf("doc_%d.pdf", i),
			Fields:     testFields("€ 100.000,00"),
			Content:    []byte(fmt.Sprintf("contenido %d", i)),
		})
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	active, err := store.ListActive()
	require.NoError(t, err)
	require.Len(t, active, 3)
	assert.Equal(t, "doc_2.pdf", active[0].SourceFile)
	assert.Equal(t, "doc_0.pdf", active[2].SourceFile)
	assert.True(t, active[0].AnalyzedAt.After(active[2].AnalyzedAt))
}

func TestStore_SoftDelete(t *testing.T) {
	store := newTestStore(t)
	content := []byte("para borrar")

	_, err := store.Upsert(Document{SourceFile: "borrar.pdf", Fields: testFields("€ 50.000,00"), Content: content})
	require.NoError(t, err)

	// Produce one history entry before deactivating.
	changed := testFields("€ 55.000,00")
	_, err = store.Upsert(Document{SourceFile: "borrar.pdf", Fields: changed, Content: content})
	require.NoError(t, err)

	all, err := store.ListAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	id := all[0].ID

	require.NoError(t, store.Deactivate(id))

	active, err := store.ListActive()
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err = store.ListAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, all[0].Active)

	history, err := store.History(id)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestStore_DeactivateMissing(t *testing.T) {
	store := newTestStore(t)
	assert.ErrorIs(t, store.Deactivate(42), ErrNotFound)
}

func TestStore_GetProperty(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetProperty(1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Upsert(Document{SourceFile: "uno.pdf", Fields: testFields("€ 70.000,00"), Content: []byte("uno")})
	require.NoError(t, err)

	all, err := store.ListAll()
	require.NoError(t, err)
	p, err := store.GetProperty(all[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "uno.pdf", p.SourceFile)
}

func TestStore_LegacyMigration(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "legacy.db")

	// Build a database the way the old ingestion schema wrote it:
	// misspelled habitacione column, no fingerprint.
	raw, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	_, err = raw.Exec(`
		CREATE TABLE properties (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			archivo TEXT,
			precio TEXT,
			habitacione TEXT,
			metros TEXT,
			zona TEXT,
			estado TEXT,
			fecha_analisis TEXT,
			activo INTEGER DEFAULT 1
		);
	`)
	require.NoError(t, err)
	_, err = raw.Exec(`
		INSERT INTO properties (archivo, precio, habitacione, metros, zona, estado, fecha_analisis, activo)
		VALUES ('antiguo.pdf', '€ 80.000,00', '2 hab', '60 m²', 'Sur', 'regular', '2024-01-15T10:00:00Z', 1),
		       ('antiguo2.pdf', '€ 90.000,00', '3 hab', '70 m²', 'Norte', 'bueno', '2024-02-15T10:00:00Z', 1);
	`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	store, err := NewStore(dbPath, logger)
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.EnsureSchema())

	all, err := store.ListAll()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "2 hab", all[1].Fields.Rooms)
	assert.NotEmpty(t, all[0].Fingerprint)
	assert.NotEqual(t, all[0].Fingerprint, all[1].Fingerprint)

	// New documents still upsert cleanly after the translation.
	outcome, err := store.Upsert(Document{SourceFile: "nuevo.pdf", Fields: testFields("€ 100.000,00"), Content: []byte("nuevo")})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCreated, outcome)
}
