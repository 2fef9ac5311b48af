package event

import (
	"testing"
	"time"

	"github.com/evtrack/fleetlogger/internal/models"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func TestStartDriveSeedsExtrema(t *testing.T) {
	pos := models.Position{ID: 1, Date: time.Now(), Odometer: f(100), Speed: f(42.7), Power: f(-3.2)}
	d := StartDrive(1, pos)

	require.True(t, d.InProgress)
	require.Equal(t, 100.0, d.StartKm)
	require.Equal(t, 42.0, *d.SpeedMax) // floor(42.7)
	require.Equal(t, -4.0, *d.PowerMax) // floor(-3.2)
	require.Equal(t, -4.0, *d.PowerMin)
	require.Equal(t, 0.0, d.Distance)
	require.Equal(t, int16(0), d.DurationMin)
}

func TestUpdateDriveRunningAverageIsNotTrueMean(t *testing.T) {
	pos0 := models.Position{ID: 1, Date: time.Now(), OutsideTemp: f(10)}
	d := StartDrive(1, pos0)

	pos1 := models.Position{ID: 2, Date: pos0.Date.Add(time.Minute), OutsideTemp: f(20)}
	d = UpdateDrive(d, pos1)
	require.Equal(t, 15.0, *d.OutsideTempAvg) // (10+20)/2

	pos2 := models.Position{ID: 3, Date: pos0.Date.Add(2 * time.Minute), OutsideTemp: f(20)}
	d = UpdateDrive(d, pos2)
	// exponentially-weighted, NOT a true mean of [10,20,20] (which would be 16.67)
	require.Equal(t, 17.5, *d.OutsideTempAvg)
}

func TestUpdateDriveExtremaFloor(t *testing.T) {
	pos0 := models.Position{ID: 1, Date: time.Now(), Speed: f(10.9), Power: f(5.9)}
	d := StartDrive(1, pos0)
	require.Equal(t, 10.0, *d.SpeedMax)

	pos1 := models.Position{ID: 2, Date: pos0.Date.Add(time.Minute), Speed: f(11.9), Power: f(-1.1)}
	d = UpdateDrive(d, pos1)
	require.Equal(t, 11.0, *d.SpeedMax) // floor(max(10.9, 11.9)) = floor(11.9) = 11
	require.Equal(t, -2.0, *d.PowerMin) // floor(min(5.9, -1.1)) = floor(-1.1) = -2
}

func TestStopDriveClosesSession(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	pos0 := models.Position{ID: 1, Date: start, Odometer: f(100)}
	d := StartDrive(1, pos0)

	end := start.Add(20 * time.Minute)
	pos1 := models.Position{ID: 2, Date: end, Odometer: f(115)}
	addrID := int64(7)
	d = StopDrive(d, pos1, &addrID, nil)

	require.False(t, d.InProgress)
	require.NotNil(t, d.EndDate)
	require.Equal(t, end, *d.EndDate)
	require.Equal(t, 15.0, d.Distance)
	require.Equal(t, int16(20), d.DurationMin)
	require.Equal(t, &addrID, d.EndAddressID)
}
