package database

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"inmodossier/server/internal/extractor"
	"inmodossier/server/internal/models"
)

// Snapshotter computes aggregates over the active records and appends
// them to the statistics history. It reads properties, never writes them.
type Snapshotter struct {
	store  *Store
	logger *logrus.Logger
}

func NewSnapshotter(store *Store, logger *logrus.Logger) *Snapshotter {
	if logger == nil {
		logger = store.logger
	}
	return &Snapshotter{store: store, logger: logger}
}

// TakeSnapshot computes the current aggregate and appends it to the
// statistics table. Records whose field is the sentinel or does not
// parse to a positive value are excluded from that average entirely,
// from both numerator and denominator. Missing or malformed data never
// fails a snapshot.
func (sn *Snapshotter) TakeSnapshot() (models.StatisticsSnapshot, error) {
	snapshot, err := sn.Compute()
	if err != nil {
		return models.StatisticsSnapshot{}, err
	}

	result, err := sn.store.db.Exec(`
        INSERT INTO statistics (fecha, total_propiedades, precio_promedio, habitaciones_promedio, metros_promedio)
        VALUES (?, ?, ?, ?, ?)
    `,
		snapshot.TakenAt.Format(timeLayout),
		snapshot.ActiveCount,
		snapshot.AvgPrice,
		snapshot.AvgRooms,
		snapshot.AvgArea,
	)
	if err != nil {
		return models.StatisticsSnapshot{}, fmt.Errorf("failed to append snapshot: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		snapshot.ID = id
	}

	sn.logger.WithFields(logrus.Fields{
		"active":    snapshot.ActiveCount,
		"avg_price": snapshot.AvgPrice,
	}).Info("Statistics snapshot taken")
	return snapshot, nil
}

// Compute builds the aggregate without persisting it. The whole active
// set is read and filtered in memory, which is fine at this volume.
func (sn *Snapshotter) Compute() (models.StatisticsSnapshot, error) {
	active, err := sn.store.ListActive()
	if err != nil {
		return models.StatisticsSnapshot{}, fmt.Errorf("failed to read active properties: %w", err)
	}

	var prices, rooms, areas average
	for _, p := range active {
		prices.add(extractor.ParseNumber(p.Fields.Price))
		rooms.add(extractor.ParseNumber(p.Fields.Rooms))
		areas.add(extractor.ParseNumber(p.Fields.Area))
	}

	return models.StatisticsSnapshot{
		TakenAt:     time.Now().UTC(),
		ActiveCount: len(active),
		AvgPrice:    prices.value(),
		AvgRooms:    rooms.value(),
		AvgArea:     areas.value(),
	}, nil
}

// History returns all snapshots ordered by when they were taken.
func (sn *Snapshotter) History() ([]models.StatisticsSnapshot, error) {
	rows, err := sn.store.db.Query(`
        SELECT id, fecha, total_propiedades, precio_promedio, habitaciones_promedio, metros_promedio
        FROM statistics
        ORDER BY fecha ASC, id ASC
    `)
	if err != nil {
		return nil, fmt.Errorf("failed to query statistics: %w", err)
	}
	defer rows.Close()

	var snapshots []models.StatisticsSnapshot
	for rows.Next() {
		var s models.StatisticsSnapshot
		var takenAt string
		if err := rows.Scan(&s.ID, &takenAt, &s.ActiveCount, &s.AvgPrice, &s.AvgRooms, &s.AvgArea); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		s.TakenAt = parseTime(takenAt)
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

// average accumulates strictly positive values only; zero means absent.
type average struct {
	sum   float64
	count int
}

func (a *average) add(v float64) {
	if v > 0 {
		a.sum += v
		a.count++
	}
}

func (a *average) value() float64 {
	if a.count == 0 {
		return 0
	}
	return a.sum / float64(a.count)
}
