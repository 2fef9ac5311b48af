// Package event implements the event constructor (§4.4): translating classifier
// decisions into Position/Charges rows and Drive/ChargingProcess aggregates with
// correct running aggregates, distance, duration, temperature averaging, energy
// used and efficiency.
package event

import (
	"log"
	"time"

	"github.com/evtrack/fleetlogger/internal/models"
)

const milesToKm = 1.60934
const mphToKmh = 1.60934

// BuildPosition converts one snapshot into a Position row, converting upstream
// mile/mph units to the kilometer/km-h columns the store persists.
func BuildPosition(s *models.VehicleSnapshot, carID int16, driveID *int64) models.Position {
	pos := models.Position{
		Date:  s.Timestamp(),
		CarID: carID,
		DriveID: driveID,
	}

	if s.Drive != nil {
		pos.Latitude = s.Drive.Latitude
		pos.Longitude = s.Drive.Longitude
		pos.Power = s.Drive.Power
		if s.Drive.Speed != nil {
			v := *s.Drive.Speed * mphToKmh
			pos.Speed = &v
		}
	}

	if s.VehicleState != nil && s.VehicleState.Odometer != nil {
		v := *s.VehicleState.Odometer * milesToKm
		pos.Odometer = &v
	}

	if s.Charge != nil {
		pos.BatteryLevel = s.Charge.BatteryLevel
		pos.UsableBatteryLevel = s.Charge.UsableBatteryLevel
		pos.IdealBatteryRangeKm = convertRange(s.Charge.IdealBatteryRange)
		pos.RatedBatteryRangeKm = convertRange(s.Charge.RatedBatteryRange)
		pos.EstBatteryRangeKm = convertRange(s.Charge.EstBatteryRange)
	}

	if s.Climate != nil {
		pos.OutsideTemp = s.Climate.OutsideTemp
		pos.InsideTemp = s.Climate.InsideTemp
	}

	return pos
}

func convertRange(miles *float64) *float64 {
	if miles == nil {
		return nil
	}
	v := *miles * milesToKm
	return &v
}

// BuildCharges converts one snapshot into a Charges row for the given charging
// process.
func BuildCharges(s *models.VehicleSnapshot, chargingProcessID int64) models.Charges {
	c := models.Charges{
		Date:              s.Timestamp(),
		ChargingProcessID: chargingProcessID,
	}
	if s.Charge != nil {
		c.BatteryLevel = s.Charge.BatteryLevel
		c.ChargeEnergyAdded = s.Charge.ChargeEnergyAdded
		c.ChargerVoltage = s.Charge.ChargerVoltage
		c.ChargerCurrent = s.Charge.ChargerActualCurrent
		c.ChargerPower = s.Charge.ChargerPower
		c.ChargerPhases = s.Charge.ChargerPhases
	}
	if s.Climate != nil {
		c.OutsideTemp = s.Climate.OutsideTemp
	}
	return c
}

// timeDiffMinutes returns the whole number of seconds between end and start,
// floored to minutes, matching the original implementation's
// time_diff_minutes_i16 helper.
func timeDiffMinutes(start, end time.Time) int16 {
	if end.Before(start) {
		log.Printf("[event] end %s is before start %s, returning 0 duration", end, start)
		return 0
	}
	return int16(end.Sub(start) / time.Minute)
}
