package event

import (
	"testing"

	"github.com/evtrack/fleetlogger/internal/apperr"
	"github.com/evtrack/fleetlogger/internal/models"
	"github.com/stretchr/testify/require"
)

func TestEfficiencyPicksFirstQualifyingProcess(t *testing.T) {
	energy := 20.0
	processes := []models.ChargingProcess{
		{ // does not qualify: duration too short
			Status: models.ChargeDone, DurationMin: 5, EndBatteryLevel: 100,
			ChargeEnergyAdded: &energy, StartRatedRangeKm: f(100), EndRatedRangeKm: f(180),
		},
		{ // qualifies
			Status: models.ChargeDone, DurationMin: 30, EndBatteryLevel: 98,
			ChargeEnergyAdded: &energy, StartRatedRangeKm: f(100), EndRatedRangeKm: f(180),
		},
	}

	eff, err := Efficiency(processes, models.RangeRated)
	require.NoError(t, err)
	require.InDelta(t, 20.0/80.0, eff, 1e-9)
}

func TestEfficiencyUnavailableWhenNoneQualify(t *testing.T) {
	processes := []models.ChargingProcess{
		{Status: models.ChargeDone, DurationMin: 5, EndBatteryLevel: 50},
	}

	_, err := Efficiency(processes, models.RangeRated)
	require.ErrorIs(t, err, apperr.EfficiencyUnavailable)
}
