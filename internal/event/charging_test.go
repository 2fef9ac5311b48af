package event

import (
	"testing"
	"time"

	"github.com/evtrack/fleetlogger/internal/models"
	"github.com/stretchr/testify/require"
)

func i(v int) *int { return &v }

func chargesRow(t time.Time, current, voltage, power float64, phases int) models.Charges {
	return models.Charges{
		Date:           t,
		ChargerCurrent: f(current),
		ChargerVoltage: f(voltage),
		ChargerPower:   f(power),
		ChargerPhases:  i(phases),
	}
}

func TestDeterminePhasesSinglePhase(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var rows []models.Charges
	for n := 0; n < 16; n++ {
		rows = append(rows, chargesRow(start.Add(time.Duration(n)*time.Hour), 16, 230, 3.68, 1))
	}

	phases, ok := determinePhases(rows)
	require.True(t, ok)
	require.Equal(t, 1.0, phases)
}

func TestDeterminePhasesFewerThan16RowsIsUnknown(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var rows []models.Charges
	for n := 0; n < 10; n++ {
		rows = append(rows, chargesRow(start.Add(time.Duration(n)*time.Hour), 16, 230, 3.68, 1))
	}

	_, ok := determinePhases(rows)
	require.False(t, ok)
}

func TestEnergyUsedIntegratesPowerOverTime(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var rows []models.Charges
	for n := 0; n < 16; n++ {
		rows = append(rows, chargesRow(start.Add(time.Duration(n)*time.Hour), 16, 230, 3.68, 1))
	}

	energy := EnergyUsed(rows)
	require.NotNil(t, energy)
	// 15 one-hour intervals at 16A * 230V * 1 phase = 3680W each
	require.InDelta(t, 15*3680.0, *energy, 1.0)
}

func TestEnergyUsedNilWhenPhasesUnknown(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var rows []models.Charges
	for n := 0; n < 16; n++ {
		// power_norm ~= 2.45 for every row: not equal to meanPhases (1), not the
		// 3-phase sqrt(3) case, and farther than 0.3 from the nearest integer.
		rows = append(rows, chargesRow(start.Add(time.Duration(n)*time.Hour), 16, 230, 9.016, 1))
	}

	energy := EnergyUsed(rows)
	require.Nil(t, energy)
}

func TestChargedOfflineThreshold(t *testing.T) {
	var p, c int16
	p, c = 49, 50
	require.False(t, ChargedOffline(&p, &c)) // +1 point, not load-bearing

	p, c = 49, 51
	require.True(t, ChargedOffline(&p, &c)) // +2 points
}

func TestStartUpdateCloseCharging(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b0 := int16(40)
	firstCharge := models.Charges{Date: start, BatteryLevel: &b0}
	cp := StartCharging(1, 10, models.Position{}, firstCharge)
	require.Equal(t, models.ChargeStart, cp.Status)

	b1 := int16(50)
	energyAdded := 5.0
	secondCharge := models.Charges{Date: start.Add(30 * time.Minute), BatteryLevel: &b1, ChargeEnergyAdded: &energyAdded}
	cp = UpdateCharging(cp, models.Position{}, secondCharge)
	require.Equal(t, models.ChargeCharging, cp.Status)
	require.Equal(t, int16(50), cp.EndBatteryLevel)
	require.Equal(t, &energyAdded, cp.ChargeEnergyAdded)

	cp = CloseCharging(cp, start.Add(40*time.Minute), []models.Charges{firstCharge, secondCharge}, nil, nil, DefaultCost)
	require.Equal(t, models.ChargeDone, cp.Status)
	require.Equal(t, int16(40), cp.DurationMin)
	require.Nil(t, cp.Cost)
}
