// Package models holds the persisted and ephemeral record types that flow between the
// classifier, event constructor, store and presenter.
package models

import "time"

// ShiftState mirrors the upstream drive-state shifter position.
type ShiftState string

const (
	ShiftP       ShiftState = "P"
	ShiftD       ShiftState = "D"
	ShiftR       ShiftState = "R"
	ShiftN       ShiftState = "N"
	ShiftUnknown ShiftState = ""
)

// ChargingState mirrors the upstream charge-state string, tolerating values the API
// has not yet documented.
type ChargingState string

const (
	ChargeStateCharging     ChargingState = "Charging"
	ChargeStateStarting     ChargingState = "Starting"
	ChargeStateNoPower      ChargingState = "NoPower"
	ChargeStateDisconnected ChargingState = "Disconnected"
	ChargeStateStopped      ChargingState = "Stopped"
	ChargeStateComplete     ChargingState = "Complete"
)

// Presence is the vehicle's top-level online/offline/asleep/unknown status.
type Presence string

const (
	PresenceOnline  Presence = "online"
	PresenceOffline Presence = "offline"
	PresenceAsleep  Presence = "asleep"
	PresenceUnknown Presence = "unknown"
)

// DriveBlock carries the fields of one upstream drive_state sub-document.
type DriveBlock struct {
	Timestamp *int64      // ms since epoch, may differ from the snapshot's own timestamp
	ShiftState *ShiftState
	Latitude   *float64
	Longitude  *float64
	Speed      *float64 // mph, converted to km/h at ingest
	Power      *float64 // kW
	Heading    *int
}

// ChargeBlock carries the fields of one upstream charge_state sub-document.
type ChargeBlock struct {
	BatteryLevel       *int16
	UsableBatteryLevel *int16
	ChargeEnergyAdded  *float64
	ChargerVoltage     *float64
	ChargerActualCurrent *float64
	ChargerPower       *float64
	ChargerPhases      *int
	ChargingState      *ChargingState
	IdealBatteryRange  *float64 // miles
	RatedBatteryRange  *float64 // miles
	EstBatteryRange    *float64 // miles
}

// ClimateBlock carries the fields of one upstream climate_state sub-document.
type ClimateBlock struct {
	InsideTemp  *float64
	OutsideTemp *float64
}

// VehicleStateBlock carries the fields of one upstream vehicle_state sub-document.
type VehicleStateBlock struct {
	Odometer       *float64 // miles
	CarVersion     *string
	TpmsPressureFL *float64
	TpmsPressureFR *float64
	TpmsPressureRL *float64
	TpmsPressureRR *float64
}

// VehicleSnapshot is the ephemeral input to the classifier and event constructor. Any
// field may be absent; downstream logic must tolerate missing sub-blocks.
type VehicleSnapshot struct {
	TimestampMS  int64
	VIN          *string
	Presence     *Presence
	Drive        *DriveBlock
	Charge       *ChargeBlock
	Climate      *ClimateBlock
	VehicleState *VehicleStateBlock
}

// Timestamp converts the snapshot's millisecond epoch into a time.Time in UTC.
func (s *VehicleSnapshot) Timestamp() time.Time {
	return time.UnixMilli(s.TimestampMS).UTC()
}

// Location returns the snapshot's GPS position, if known.
func (s *VehicleSnapshot) Location() (lat, lon float64, ok bool) {
	if s.Drive == nil || s.Drive.Latitude == nil || s.Drive.Longitude == nil {
		return 0, 0, false
	}
	return *s.Drive.Latitude, *s.Drive.Longitude, true
}
