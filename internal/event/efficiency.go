package event

import (
	"fmt"

	"github.com/evtrack/fleetlogger/internal/apperr"
	"github.com/evtrack/fleetlogger/internal/models"
)

// Efficiency scans closed ChargingProcess records (in the order given) for the first one
// that qualifies — duration > 10 minutes, end battery level > 95%, energy added >
// 0, and both the start and end range (in the preferred metric) known — and
// returns charge_energy_added / (end_range - start_range). Returns
// apperr.EfficiencyUnavailable if none qualifies.
func Efficiency(processes []models.ChargingProcess, preferred models.PreferredRange) (float64, error) {
	for _, cp := range processes {
		if cp.Status != models.ChargeDone {
			continue
		}
		if cp.DurationMin <= 10 {
			continue
		}
		if cp.EndBatteryLevel <= 95 {
			continue
		}
		if cp.ChargeEnergyAdded == nil || *cp.ChargeEnergyAdded <= 0 {
			continue
		}

		startRange, endRange := rangeFor(cp, preferred)
		if startRange == nil || endRange == nil {
			continue
		}

		delta := *endRange - *startRange
		if delta == 0 {
			continue
		}

		return *cp.ChargeEnergyAdded / delta, nil
	}

	return 0, fmt.Errorf("%w: no qualifying charging process found", apperr.EfficiencyUnavailable)
}

func rangeFor(cp models.ChargingProcess, preferred models.PreferredRange) (start, end *float64) {
	if preferred == models.RangeIdeal {
		return cp.StartIdealRangeKm, cp.EndIdealRangeKm
	}
	return cp.StartRatedRangeKm, cp.EndRatedRangeKm
}
