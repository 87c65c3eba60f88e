package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inmodossier/server/internal/models"
)

func upsertWithPrice(t *testing.T, store *Store, name, price string) {
	t.Helper()
	fields := models.Fields{
		Price:     price,
		Rooms:     models.NotFound,
		Area:      models.NotFound,
		Zone:      models.NotFound,
		Condition: models.NotFound,
	}
	_, err := store.Upsert(Document{SourceFile: name, Fields: fields, Content: []byte(name)})
	require.NoError(t, err)
}

func TestSnapshotter_ExcludesAbsentValues(t *testing.T) {
	store := newTestStore(t)
	sn := NewSnapshotter(store, nil)

	upsertWithPrice(t, store, "a.pdf", "€ 100.000,00")
	upsertWithPrice(t, store, "b.pdf", models.NotFound)
	upsertWithPrice(t, store, "c.pdf", "€ 200.000,00")

	snapshot, err := sn.TakeSnapshot()
	require.NoError(t, err)

	// The sentinel record counts as active but is excluded from the
	// average entirely, numerator and denominator.
	assert.Equal(t, 3, snapshot.ActiveCount)
	assert.Equal(t, 150000.0, snapshot.AvgPrice)
	assert.Equal(t, 0.0, snapshot.AvgRooms)
	assert.Equal(t, 0.0, snapshot.AvgArea)
}

func TestSnapshotter_EmptyStore(t *testing.T) {
	store := newTestStore(t)
	sn := NewSnapshotter(store, nil)

	snapshot, err := sn.TakeSnapshot()
	require.NoError(t, err)
	assert.Equal(t, 0, snapshot.ActiveCount)
	assert.Equal(t, 0.0, snapshot.AvgPrice)
}

func TestSnapshotter_History(t *testing.T) {
	store := newTestStore(t)
	sn := NewSnapshotter(store, nil)

	upsertWithPrice(t, store, "a.pdf", "€ 100.000,00")
	_, err := sn.TakeSnapshot()
	require.NoError(t, err)

	upsertWithPrice(t, store, "b.pdf", "€ 300.000,00")
	_, err = sn.TakeSnapshot()
	require.NoError(t, err)

	history, err := sn.History()
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 1, history[0].ActiveCount)
	assert.Equal(t, 2, history[1].ActiveCount)
	assert.Equal(t, 100000.0, history[0].AvgPrice)
	assert.Equal(t, 200000.0, history[1].AvgPrice)
	assert.True(t, !history[1].TakenAt.Before(history[0].TakenAt))
}

func TestSnapshotter_IgnoresInactive(t *testing.T) {
	store := newTestStore(t)
	sn := NewSnapshotter(store, nil)

	upsertWithPrice(t, store, "a.pdf", "€ 100.000,00")
	upsertWithPrice(t, store, "b.pdf", "€ 300.000,00")

	all, err := store.ListAll()
	require.NoError(t, err)
	for _, p := range all {
		if p.SourceFile == "b.pdf" {
			require.NoError(t, store.Deactivate(p.ID))
		}
	}

	snapshot, err := sn.TakeSnapshot()
	require.NoError(t, err)
	assert.Equal(t, 1, snapshot.ActiveCount)
	assert.Equal(t, 100000.0, snapshot.AvgPrice)
}
