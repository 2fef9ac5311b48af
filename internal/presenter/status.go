// Package presenter implements §4.6: deriving a user-visible Status from the most
// recent Tables batch and pushing one snapshot per second to every connected
// observer, independent of ingestion cadence.
package presenter

import (
	"sync"
	"time"

	"github.com/evtrack/fleetlogger/internal/models"
	"github.com/evtrack/fleetlogger/internal/units"
)

// Kind is the presenter's own session-kind vocabulary. It mirrors
// models.StateKind except Asleep is surfaced to observers as "Sleeping", matching
// the wording spec.md §4.6 uses for the presenter variant.
type Kind string

const (
	KindDriving  Kind = "Driving"
	KindCharging Kind = "Charging"
	KindParked   Kind = "Parked"
	KindOffline  Kind = "Offline"
	KindSleeping Kind = "Sleeping"
	KindUnknown  Kind = "Unknown"
)

func kindFromState(k models.StateKind) Kind {
	switch k {
	case models.KindDriving:
		return KindDriving
	case models.KindCharging:
		return KindCharging
	case models.KindParked:
		return KindParked
	case models.KindOffline:
		return KindOffline
	case models.KindAsleep:
		return KindSleeping
	default:
		return KindUnknown
	}
}

// Status is the per-car, per-second snapshot pushed to observers. Only the
// counters relevant to Kind are populated; the rest are left at their zero value.
type Status struct {
	CarID           int16     `json:"car_id"`
	Kind            Kind      `json:"kind"`
	StartTime       time.Time `json:"start_time"`
	DurationSeconds int64     `json:"duration_seconds"`

	// Driving counters.
	DistanceDriven *units.Distance `json:"distance_driven,omitempty"`

	// Charging counters.
	BatteryDelta   *int16   `json:"battery_delta,omitempty"`
	ChargeAddedKwh *float64 `json:"charge_added_kwh,omitempty"`

	LoggingEnabled bool   `json:"logging_enabled"`
	LastError      string `json:"last_error,omitempty"`
}

// FromDrive derives a Status for an in-progress or just-closed Drive.
func FromDrive(carID int16, d models.Drive, loggingEnabled bool, lastError string) Status {
	dist := units.Distance{Km: d.Distance}
	end := time.Now()
	if d.EndDate != nil {
		end = *d.EndDate
	}
	return Status{
		CarID:           carID,
		Kind:            KindDriving,
		StartTime:       d.StartDate,
		DurationSeconds: int64(end.Sub(d.StartDate).Seconds()),
		DistanceDriven:  &dist,
		LoggingEnabled:  loggingEnabled,
		LastError:       lastError,
	}
}

// FromCharging derives a Status for an in-progress or just-closed ChargingProcess.
func FromCharging(carID int16, cp models.ChargingProcess, loggingEnabled bool, lastError string) Status {
	delta := cp.EndBatteryLevel - cp.StartBatteryLevel
	end := time.Now()
	if cp.EndDate != nil {
		end = *cp.EndDate
	}
	return Status{
		CarID:           carID,
		Kind:            KindCharging,
		StartTime:       cp.StartDate,
		DurationSeconds: int64(end.Sub(cp.StartDate).Seconds()),
		BatteryDelta:    &delta,
		ChargeAddedKwh:  cp.ChargeEnergyAdded,
		LoggingEnabled:  loggingEnabled,
		LastError:       lastError,
	}
}

// FromState derives a Status for any non-aggregate session kind (Parked, Offline,
// Sleeping, Unknown).
func FromState(carID int16, s models.State, loggingEnabled bool, lastError string) Status {
	end := time.Now()
	if s.EndDate != nil {
		end = *s.EndDate
	}
	return Status{
		CarID:           carID,
		Kind:            kindFromState(s.Kind),
		StartTime:       s.StartDate,
		DurationSeconds: int64(end.Sub(s.StartDate).Seconds()),
		LoggingEnabled:  loggingEnabled,
		LastError:       lastError,
	}
}

// Board is the processor's one write surface into the presenter: the latest Status
// per car, kept independent of ingestion cadence so the push loop can sample it
// once a second regardless of how often the processor actually updates an entry.
// A fleet has one Board, shared between every car's carState.
type Board struct {
	mu   sync.RWMutex
	byID map[int16]Status
}

// NewBoard builds an empty status board.
func NewBoard() *Board {
	return &Board{byID: make(map[int16]Status)}
}

// Set records the latest Status for one car, overwriting whatever was there.
func (b *Board) Set(s Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byID[s.CarID] = s
}

// Snapshot returns every car's latest Status, in no particular order.
func (b *Board) Snapshot() []Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Status, 0, len(b.byID))
	for _, s := range b.byID {
		out = append(out, s)
	}
	return out
}

// Get returns one car's latest Status.
func (b *Board) Get(carID int16) (Status, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.byID[carID]
	return s, ok
}
