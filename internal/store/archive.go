package store

import (
	"encoding/json"
	"fmt"

	"github.com/evtrack/fleetlogger/internal/apperr"
	"github.com/evtrack/fleetlogger/internal/models"
)

// ArchivedRow is one replayable entry from the car_data JSON archive, grounded on
// original_source/chipmunk/src/database/tables/mod.rs's raw-payload archive ahead
// of classification.
type ArchivedRow struct {
	CarID    int16
	Snapshot *models.VehicleSnapshot
}

// ArchiveSnapshot writes the raw snapshot to car_data before classification, so a
// later --num-rows conversion pass can replay it.
func (p *Persister) ArchiveSnapshot(carID int16, snap *models.VehicleSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("%w: marshaling snapshot for archive: %v", apperr.PersistenceFailure, err)
	}
	_, err = p.db.Exec(`INSERT INTO car_data (car_id, payload) VALUES ($1, $2)`, carID, payload)
	if err != nil {
		return fmt.Errorf("%w: archiving snapshot: %v", apperr.PersistenceFailure, err)
	}
	return nil
}

// LoadArchivedSnapshots returns up to limit archived rows in insertion order, the
// historical conversion job's source of replay input. limit <= 0 means unbounded.
func (p *Persister) LoadArchivedSnapshots(limit int) ([]ArchivedRow, error) {
	query := `SELECT car_id, payload FROM car_data ORDER BY id ASC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := p.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: loading archived snapshots: %v", apperr.PersistenceFailure, err)
	}
	defer rows.Close()

	var out []ArchivedRow
	for rows.Next() {
		var carID int16
		var payload []byte
		if err := rows.Scan(&carID, &payload); err != nil {
			return nil, fmt.Errorf("%w: scanning archived snapshot: %v", apperr.PersistenceFailure, err)
		}
		var snap models.VehicleSnapshot
		if err := json.Unmarshal(payload, &snap); err != nil {
			return nil, fmt.Errorf("%w: unmarshaling archived snapshot: %v", apperr.PersistenceFailure, err)
		}
		out = append(out, ArchivedRow{CarID: carID, Snapshot: &snap})
	}
	return out, rows.Err()
}

// CompactArchive deletes archived rows older than olderThanDays, keeping the
// car_data table from growing unbounded once its conversion job has consumed them.
func (p *Persister) CompactArchive(olderThanDays int) (int64, error) {
	result, err := p.db.Exec(`DELETE FROM car_data WHERE received_at < now() - ($1 || ' days')::interval`, olderThanDays)
	if err != nil {
		return 0, fmt.Errorf("%w: compacting archive: %v", apperr.PersistenceFailure, err)
	}
	return result.RowsAffected()
}

// SweepStaleSessions closes any State row that has been open longer than
// staleAfterMinutes without an update, grounded on the teacher's
// cleanupStalePartialData ticker in services/data_collector.go, generalized from
// "drop an in-memory partial reading" to "force-close an abandoned session" since
// the Processor, not the store, normally owns session lifetime.
func (p *Persister) SweepStaleSessions(staleAfterMinutes int) (int64, error) {
	result, err := p.db.Exec(`
		UPDATE states SET end_date = now()
		WHERE end_date IS NULL AND start_date < now() - ($1 || ' minutes')::interval`,
		staleAfterMinutes,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: sweeping stale sessions: %v", apperr.PersistenceFailure, err)
	}
	return result.RowsAffected()
}
