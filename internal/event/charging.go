package event

import (
	"log"
	"math"
	"time"

	"github.com/evtrack/fleetlogger/internal/models"
)

// StartCharging opens a new ChargingProcess from the first Charges row of the
// session. charging_status=Start, cost and energy-used left empty.
func StartCharging(carID int16, positionID int64, position models.Position, charge models.Charges) models.ChargingProcess {
	return models.ChargingProcess{
		CarID:             carID,
		Status:            models.ChargeStart,
		StartDate:         charge.Date,
		PositionID:        positionID,
		StartBatteryLevel: deref16(charge.BatteryLevel),
		EndBatteryLevel:   deref16(charge.BatteryLevel),
		StartIdealRangeKm: position.IdealBatteryRangeKm,
		EndIdealRangeKm:   position.IdealBatteryRangeKm,
		StartRatedRangeKm: position.RatedBatteryRangeKm,
		EndRatedRangeKm:   position.RatedBatteryRangeKm,
		OutsideTempAvg:    charge.OutsideTemp,
		DurationMin:       0,
	}
}

func deref16(v *int16) int16 {
	if v == nil {
		return 0
	}
	return *v
}

// UpdateCharging applies the latest Charges row: charging_status=Charging,
// charge_energy_added taken from the latest sample, outside_temp averaged as
// (old+new)/2, end fields overwritten.
func UpdateCharging(cp models.ChargingProcess, position models.Position, charge models.Charges) models.ChargingProcess {
	updated := cp
	updated.Status = models.ChargeCharging
	if charge.ChargeEnergyAdded != nil {
		updated.ChargeEnergyAdded = charge.ChargeEnergyAdded
	}
	updated.OutsideTempAvg = avgOption(cp.OutsideTempAvg, charge.OutsideTemp)
	updated.EndBatteryLevel = deref16(charge.BatteryLevel)
	updated.EndIdealRangeKm = position.IdealBatteryRangeKm
	updated.EndRatedRangeKm = position.RatedBatteryRangeKm
	updated.DurationMin = timeDiffMinutes(cp.StartDate, charge.Date)
	return updated
}

// CloseCharging finalizes the session: charging_status=Done, charge_energy_used
// computed per §4.4.1 from the full ordered Charges history, address/geofence set
// to the ids passed in. It does not look them up itself; the processor passes the
// address geocoded from the snapshot that ends the session, not the start position.
func CloseCharging(cp models.ChargingProcess, endDate time.Time, charges []models.Charges, addressID, geofenceID *int64, costFn CostFunc) models.ChargingProcess {
	updated := cp
	updated.Status = models.ChargeDone
	end := endDate
	updated.EndDate = &end
	updated.DurationMin = timeDiffMinutes(cp.StartDate, endDate)
	updated.AddressID = addressID
	updated.GeofenceID = geofenceID
	updated.ChargeEnergyUsed = EnergyUsed(charges)

	if costFn != nil {
		updated.Cost = costFn(charges)
	}

	return updated
}

// CostFunc is the pluggable cost-calculation hook named in the design notes. The
// default implementation (DefaultCost) always returns nil, matching the upstream
// stub.
type CostFunc func(charges []models.Charges) *float64

// DefaultCost is the default, no-op cost calculator.
func DefaultCost([]models.Charges) *float64 { return nil }

const minRowsForPhaseDetermination = 16

// EnergyUsed implements §4.4.1: determine phases from the session's Charges rows,
// then sum each row's power times the interval since the previous row, giving Wh.
// Returns nil if phases cannot be
// determined or fewer than two rows are available to integrate across.
func EnergyUsed(charges []models.Charges) *float64 {
	phases, ok := determinePhases(charges)
	if !ok || len(charges) < 2 {
		return nil
	}

	var energyWh float64
	for i := 1; i < len(charges); i++ {
		prev := charges[i-1]
		curr := charges[i]

		dtHours := curr.Date.Sub(prev.Date).Hours()
		if dtHours <= 0 {
			continue
		}

		power := rowPowerWatts(curr, phases)
		energyWh += power * dtHours
	}

	return &energyWh
}

// rowPowerWatts returns one row's instantaneous power in watts: current * voltage *
// phases when the row's own charger_phases is known, else charger_power * 1000.
func rowPowerWatts(row models.Charges, phases float64) float64 {
	if row.ChargerPhases != nil && row.ChargerCurrent != nil && row.ChargerVoltage != nil {
		return *row.ChargerCurrent * *row.ChargerVoltage * phases
	}
	if row.ChargerPower != nil {
		return *row.ChargerPower * 1000
	}
	return 0
}

// determinePhases implements the §4.4.1 algorithm exactly:
//
//  1. for each row with non-zero current, accumulate a running mean of
//     power_norm = charger_power*1000 / (current*voltage), mean charger_phases and
//     mean charger_voltage.
//  2. fewer than 16 rows -> None.
//  3. mean_phases == round(mean_power_norm) -> phases := mean_phases.
//  4. mean_phases == 3 and |mean_power_norm/sqrt(3) - 1| <= 0.1 -> phases := sqrt(3),
//     with a voltage correction V -> V/sqrt(3) logged.
//  5. |round(mean_power_norm) - mean_power_norm| <= 0.3 -> phases := round(mean_power_norm).
//  6. else -> None.
func determinePhases(charges []models.Charges) (float64, bool) {
	var count int
	var sumPowerNorm, sumPhases, sumVoltage float64

	for _, c := range charges {
		if c.ChargerCurrent == nil || c.ChargerVoltage == nil || c.ChargerPower == nil || *c.ChargerCurrent == 0 {
			continue
		}
		powerNorm := *c.ChargerPower * 1000 / (*c.ChargerCurrent * *c.ChargerVoltage)
		sumPowerNorm += powerNorm
		sumVoltage += *c.ChargerVoltage
		if c.ChargerPhases != nil {
			sumPhases += float64(*c.ChargerPhases)
		}
		count++
	}

	if count < minRowsForPhaseDetermination {
		return 0, false
	}

	meanPowerNorm := sumPowerNorm / float64(count)
	meanPhases := sumPhases / float64(count)

	if meanPhases == math.Round(meanPowerNorm) {
		return meanPhases, true
	}

	if meanPhases == 3 && math.Abs(meanPowerNorm/math.Sqrt(3)-1) <= 0.1 {
		meanVoltage := sumVoltage / float64(count)
		log.Printf("[event] voltage correction: %.1f V -> %.1f V (phases = sqrt(3))", meanVoltage, meanVoltage/math.Sqrt(3))
		return math.Sqrt(3), true
	}

	if math.Abs(math.Round(meanPowerNorm)-meanPowerNorm) <= 0.3 {
		return math.Round(meanPowerNorm), true
	}

	return 0, false
}

// ChargedOffline reports whether the battery level rose by more than one
// percentage point (>= 2) between two samples, the load-bearing threshold that
// filters regenerative-braking artifacts from hidden-charge detection.
func ChargedOffline(prevBatteryLevel, currBatteryLevel *int16) bool {
	if prevBatteryLevel == nil || currBatteryLevel == nil {
		return false
	}
	return *currBatteryLevel-*prevBatteryLevel > 1
}
