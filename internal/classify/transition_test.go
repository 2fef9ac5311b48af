package classify

import (
	"testing"
	"time"

	"github.com/evtrack/fleetlogger/internal/apperr"
	"github.com/evtrack/fleetlogger/internal/models"
	"github.com/stretchr/testify/require"
)

func snap(t time.Time, presence models.Presence, shift *models.ShiftState, lat, lon float64, odometerMi float64, battery int16) *models.VehicleSnapshot {
	p := presence
	b := battery
	lt, ln := lat, lon
	odo := odometerMi
	return &models.VehicleSnapshot{
		TimestampMS: t.UnixMilli(),
		Presence:    &p,
		Drive: &models.DriveBlock{
			ShiftState: shift,
			Latitude:   &lt,
			Longitude:  &ln,
		},
		Charge: &models.ChargeBlock{
			BatteryLevel: &b,
		},
		VehicleState: &models.VehicleStateBlock{
			Odometer: &odo,
		},
	}
}

func shiftP() *models.ShiftState { s := models.ShiftP; return &s }
func shiftD() *models.ShiftState { s := models.ShiftD; return &s }

func TestKindOfDriving(t *testing.T) {
	s := snap(time.Now(), models.PresenceOnline, shiftD(), 1, 1, 100, 50)
	require.Equal(t, models.KindDriving, KindOf(s))
}

func TestKindOfParkedWhenShiftP(t *testing.T) {
	s := snap(time.Now(), models.PresenceOnline, shiftP(), 1, 1, 100, 50)
	require.Equal(t, models.KindParked, KindOf(s))
}

func TestClassifySimpleDrive(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s0 := snap(t0, models.PresenceOnline, shiftD(), 1, 1, 100, 50)
	s1 := snap(t0.Add(time.Second), models.PresenceOnline, shiftP(), 1, 1, 100.1, 50)

	decisions, err := Classify(nil, nil, s0)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	require.Equal(t, StepStart, decisions[0].Step)
	require.Equal(t, models.KindDriving, decisions[0].Kind)

	prevState := &models.State{ID: 1, Kind: models.KindDriving, StartDate: t0}
	decisions, err = Classify(prevState, s0, s1)
	require.NoError(t, err)
	require.Len(t, decisions, 2)
	require.Equal(t, StepEnd, decisions[0].Step)
	require.Equal(t, models.KindDriving, decisions[0].Kind)
	require.Equal(t, StepStart, decisions[1].Step)
	require.Equal(t, models.KindParked, decisions[1].Kind)
}

func TestClassifyGapWithinDriveOpensNewDrive(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s0 := snap(t0, models.PresenceOnline, shiftD(), 1, 1, 100, 49)
	s1 := snap(t0.Add(11*time.Minute), models.PresenceOnline, shiftD(), 1, 1, 100, 49) // same odometer

	prevState := &models.State{ID: 1, Kind: models.KindDriving, StartDate: t0}
	decisions, err := Classify(prevState, s0, s1)
	require.NoError(t, err)
	require.Len(t, decisions, 2) // end drive, start drive (no battery rise -> no hidden charge)
	require.Equal(t, StepEnd, decisions[0].Step)
	require.Equal(t, s0.Timestamp(), decisions[0].End)
	require.Equal(t, StepStart, decisions[1].Step)
	require.Equal(t, models.KindDriving, decisions[1].Kind)
}

func TestClassifyHiddenCharging(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s0 := snap(t0, models.PresenceOnline, shiftD(), 1, 1, 100, 49)
	s1 := snap(t0.Add(11*time.Minute), models.PresenceOnline, shiftD(), 1, 1, 100, 55) // battery rose 6 points

	prevState := &models.State{ID: 1, Kind: models.KindDriving, StartDate: t0}
	decisions, err := Classify(prevState, s0, s1)
	require.NoError(t, err)
	require.Len(t, decisions, 3)
	require.Equal(t, StepEnd, decisions[0].Step)
	require.Equal(t, StepHidden, decisions[1].Step)
	require.Equal(t, models.KindCharging, decisions[1].Kind)
	require.Equal(t, s0.Timestamp(), decisions[1].Start)
	require.Equal(t, s1.Timestamp(), decisions[1].End)
	require.Equal(t, StepStart, decisions[2].Step)
	require.Equal(t, models.KindDriving, decisions[2].Kind)
}

func TestClassifyInferredSleep(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s0 := snap(t0, models.PresenceOnline, shiftP(), 37.7749, -122.4194, 100, 80)
	s1 := snap(t0.Add(16*time.Minute), models.PresenceOnline, shiftP(), 37.774905, -122.419405, 100, 80)

	prevState := &models.State{ID: 1, Kind: models.KindParked, StartDate: t0}
	decisions, err := Classify(prevState, s0, s1)
	require.NoError(t, err)
	require.Len(t, decisions, 3)
	require.Equal(t, StepEnd, decisions[0].Step)
	require.Equal(t, models.KindParked, decisions[0].Kind)
	require.Equal(t, StepHidden, decisions[1].Step)
	require.Equal(t, models.KindAsleep, decisions[1].Kind)
	require.Equal(t, s0.Timestamp(), decisions[1].Start)
	require.Equal(t, s1.Timestamp(), decisions[1].End)
	require.Equal(t, StepStart, decisions[2].Step)
	require.Equal(t, models.KindParked, decisions[2].Kind)
}

func TestClassifyNonMonotonicTimestampRejected(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s0 := snap(t0, models.PresenceOnline, shiftD(), 1, 1, 100, 50)
	s1 := snap(t0.Add(-time.Second), models.PresenceOnline, shiftD(), 1, 1, 100, 50)

	_, err := Classify(&models.State{Kind: models.KindDriving}, s0, s1)
	require.ErrorIs(t, err, apperr.NonMonotonicTimestamp)
}

func TestClassifyIsDeterministic(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s0 := snap(t0, models.PresenceOnline, shiftD(), 1, 1, 100, 50)
	s1 := snap(t0.Add(time.Second), models.PresenceOnline, shiftP(), 1, 1, 100.1, 50)
	prevState := &models.State{ID: 1, Kind: models.KindDriving, StartDate: t0}

	a, err := Classify(prevState, s0, s1)
	require.NoError(t, err)
	b, err := Classify(prevState, s0, s1)
	require.NoError(t, err)
	require.Equal(t, a, b)
}
