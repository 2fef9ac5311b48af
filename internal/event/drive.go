package event

import (
	"math"

	"github.com/evtrack/fleetlogger/internal/models"
)

// StartDrive opens a new Drive aggregate from the first position of the session.
// All start fields are seeded from position, running extrema seeded with the
// current values, distance and duration start at zero. Copy-on-write: this
// returns a new value rather than mutating an existing one, so a failed persist
// never corrupts the classifier's in-memory state.
func StartDrive(carID int16, position models.Position) models.Drive {
	return models.Drive{
		CarID:             carID,
		InProgress:        true,
		StartDate:         position.Date,
		StartPositionID:   position.ID,
		EndPositionID:     position.ID,
		StartKm:           deref(position.Odometer),
		EndKm:             deref(position.Odometer),
		Distance:          0,
		DurationMin:       0,
		SpeedMax:          floorVal(position.Speed),
		PowerMax:          floorVal(position.Power),
		PowerMin:          floorVal(position.Power),
		OutsideTempAvg:    position.OutsideTemp,
		InsideTempAvg:     position.InsideTemp,
		StartIdealRangeKm: position.IdealBatteryRangeKm,
		EndIdealRangeKm:   position.IdealBatteryRangeKm,
		StartRatedRangeKm: position.RatedBatteryRangeKm,
		EndRatedRangeKm:   position.RatedBatteryRangeKm,
	}
}

func floorVal(v *float64) *float64 {
	if v == nil {
		return nil
	}
	f := math.Floor(*v)
	return &f
}

// UpdateDrive recomputes running aggregates from a new position: temperature
// averages as (old+new)/2, extrema with floor semantics, distance/duration
// recomputed from the new end values. Returns a new Drive value.
func UpdateDrive(d models.Drive, position models.Position) models.Drive {
	updated := d
	updated.OutsideTempAvg = avgOption(d.OutsideTempAvg, position.OutsideTemp)
	updated.InsideTempAvg = avgOption(d.InsideTempAvg, position.InsideTemp)
	updated.SpeedMax = maxOptionFloor(d.SpeedMax, position.Speed)
	updated.PowerMax = maxOptionFloor(d.PowerMax, position.Power)
	updated.PowerMin = minOptionFloor(d.PowerMin, position.Power)

	updated.EndPositionID = position.ID
	updated.EndKm = deref(position.Odometer)
	updated.EndIdealRangeKm = position.IdealBatteryRangeKm
	updated.EndRatedRangeKm = position.RatedBatteryRangeKm

	updated.Distance = updated.EndKm - updated.StartKm
	updated.DurationMin = timeDiffMinutes(updated.StartDate, position.Date)

	return updated
}

// StopDrive applies UpdateDrive and then closes the session: in_progress=false,
// end_date and end address/geofence set.
func StopDrive(d models.Drive, position models.Position, endAddressID, endGeofenceID *int64) models.Drive {
	updated := UpdateDrive(d, position)
	updated.InProgress = false
	end := position.Date
	updated.EndDate = &end
	updated.EndAddressID = endAddressID
	updated.EndGeofenceID = endGeofenceID
	return updated
}
