package store

import (
	"encoding/json"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/evtrack/fleetlogger/internal/models"
	"github.com/stretchr/testify/require"
)

func TestArchiveSnapshotMarshalsPayload(t *testing.T) {
	p, mock := newMockPersister(t)
	vin := "5YJ3E"
	snap := &models.VehicleSnapshot{TimestampMS: 123, VIN: &vin}
	payload, err := json.Marshal(snap)
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO car_data`).
		WithArgs(int16(1), payload).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, p.ArchiveSnapshot(1, snap))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadArchivedSnapshotsUnmarshalsEachRow(t *testing.T) {
	p, mock := newMockPersister(t)
	vin := "5YJ3E"
	payload, err := json.Marshal(&models.VehicleSnapshot{TimestampMS: 99, VIN: &vin})
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT car_id, payload FROM car_data ORDER BY id ASC LIMIT \$1`).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"car_id", "payload"}).AddRow(int16(1), payload))

	rows, err := p.LoadArchivedSnapshots(10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, int16(1), rows[0].CarID)
	require.Equal(t, int64(99), rows[0].Snapshot.TimestampMS)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadArchivedSnapshotsUnboundedSkipsLimit(t *testing.T) {
	p, mock := newMockPersister(t)
	mock.ExpectQuery(`SELECT car_id, payload FROM car_data ORDER BY id ASC$`).
		WillReturnRows(sqlmock.NewRows([]string{"car_id", "payload"}))

	rows, err := p.LoadArchivedSnapshots(0)
	require.NoError(t, err)
	require.Empty(t, rows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompactArchiveReturnsRowsAffected(t *testing.T) {
	p, mock := newMockPersister(t)
	mock.ExpectExec(`DELETE FROM car_data`).
		WithArgs(30).
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := p.CompactArchive(30)
	require.NoError(t, err)
	require.Equal(t, int64(7), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSweepStaleSessionsReturnsRowsAffected(t *testing.T) {
	p, mock := newMockPersister(t)
	mock.ExpectExec(`UPDATE states SET end_date = now\(\)`).
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := p.SweepStaleSessions(5)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
	require.NoError(t, mock.ExpectationsWereMet())
}
