package classify

import (
	"fmt"
	"time"

	"github.com/evtrack/fleetlogger/internal/apperr"
	"github.com/evtrack/fleetlogger/internal/geo"
	"github.com/evtrack/fleetlogger/internal/models"
)

// Named thresholds. Both are load-bearing constants per the design notes: the
// asleep-gap and delayed-datapoint windows, and the battery-delta filter that keeps
// hidden-charge detection from firing on regen artifacts.
const (
	AsleepGapThreshold       = 15 * time.Minute
	AsleepGapRadius          = geo.Distance(0.001) // 1 meter
	DelayedDatapointThreshold = 10 * time.Minute
	HiddenSessionOdometerKm  = 1.0
	HiddenChargeBatteryDelta = 1 // battery must rise by MORE than this (>=2 points)
)

// StepKind enumerates the shapes a Decision can take.
type StepKind int

const (
	// StepContinue means the current session continues; the event constructor
	// should call update() on whatever aggregate is open.
	StepContinue StepKind = iota
	// StepEnd means the previous session closes at End.
	StepEnd
	// StepStart means a new session opens at Start.
	StepStart
	// StepHidden means a complete session is synthesized spanning [Start, End],
	// inferred from a gap in the stream rather than observed directly.
	StepHidden
)

// Decision is one instruction emitted by Classify. A single call to Classify may
// produce more than one Decision (e.g. end-then-start, or end-drive then
// hidden-charge then start-drive); the event constructor turns each into one or
// more Tables batches, in order.
type Decision struct {
	Step  StepKind
	Kind  models.StateKind
	Start time.Time
	End   time.Time // valid for StepEnd and StepHidden

	// Snapshot carries the sample that defines this decision's position/telemetry.
	// For StepHidden it is the snapshot at Start; EndSnapshot carries the one at End.
	Snapshot    *models.VehicleSnapshot
	EndSnapshot *models.VehicleSnapshot
}

// Classify implements §4.3: given the previous session record, the previous
// snapshot (nil if curr is the very first sample for this car), and the current
// snapshot, it returns the ordered sequence of session-boundary decisions.
//
// Classify is a pure function of its three arguments (the determinism invariant in
// §8): given the same inputs it always returns the same decisions.
func Classify(prevState *models.State, prevSnapshot, currSnapshot *models.VehicleSnapshot) ([]Decision, error) {
	if prevSnapshot != nil && !currSnapshot.Timestamp().After(prevSnapshot.Timestamp()) {
		return nil, fmt.Errorf("%w: snapshot at %s is not after previous snapshot at %s",
			apperr.NonMonotonicTimestamp, currSnapshot.Timestamp(), prevSnapshot.Timestamp())
	}

	currKind := KindOf(currSnapshot)

	if prevSnapshot != nil && wasAsleep(prevSnapshot, currSnapshot) {
		var decisions []Decision
		if prevState != nil && prevState.ID != 0 {
			decisions = append(decisions, Decision{
				Step:     StepEnd,
				Kind:     prevState.Kind,
				End:      prevSnapshot.Timestamp(),
				Snapshot: prevSnapshot,
			})
		}
		decisions = append(decisions, Decision{
			Step:        StepHidden,
			Kind:        models.KindAsleep,
			Start:       prevSnapshot.Timestamp(),
			End:         currSnapshot.Timestamp(),
			Snapshot:    prevSnapshot,
			EndSnapshot: currSnapshot,
		})
		decisions = append(decisions, Decision{
			Step:     StepStart,
			Kind:     currKind,
			Start:    currSnapshot.Timestamp(),
			Snapshot: currSnapshot,
		})
		return decisions, nil
	}

	if prevSnapshot != nil && prevState != nil && prevState.Kind == models.KindDriving {
		if hidden, ok := hiddenSessionGap(prevSnapshot, currSnapshot); ok {
			var decisions []Decision
			decisions = append(decisions, Decision{
				Step:     StepEnd,
				Kind:     models.KindDriving,
				End:      prevSnapshot.Timestamp(),
				Snapshot: prevSnapshot,
			})
			if hidden.batteryDelta > HiddenChargeBatteryDelta {
				decisions = append(decisions, Decision{
					Step:        StepHidden,
					Kind:        models.KindCharging,
					Start:       prevSnapshot.Timestamp(),
					End:         currSnapshot.Timestamp(),
					Snapshot:    prevSnapshot,
					EndSnapshot: currSnapshot,
				})
			}
			decisions = append(decisions, Decision{
				Step:     StepStart,
				Kind:     models.KindDriving,
				Start:    currSnapshot.Timestamp(),
				Snapshot: currSnapshot,
			})
			return decisions, nil
		}
	}

	var prevKind *models.StateKind
	if prevState != nil {
		k := prevState.Kind
		prevKind = &k
	}

	end, start := deriveTransition(prevKind, currKind)
	if end == nil && start == nil {
		return []Decision{{
			Step:     StepContinue,
			Kind:     currKind,
			Start:    currSnapshot.Timestamp(),
			Snapshot: currSnapshot,
		}}, nil
	}

	var decisions []Decision
	if end != nil {
		decisions = append(decisions, Decision{
			Step:     StepEnd,
			Kind:     *end,
			End:      currSnapshot.Timestamp(),
			Snapshot: currSnapshot,
		})
	}
	if start != nil {
		decisions = append(decisions, Decision{
			Step:     StepStart,
			Kind:     *start,
			Start:    currSnapshot.Timestamp(),
			Snapshot: currSnapshot,
		})
	}
	return decisions, nil
}

// deriveTransition implements the transition rule: if the kind has not changed,
// (nil, nil); otherwise (prevKind, currKind).
func deriveTransition(prevKind *models.StateKind, currKind models.StateKind) (end, start *models.StateKind) {
	if prevKind == nil {
		return nil, &currKind
	}
	if *prevKind == currKind {
		return nil, nil
	}
	p := *prevKind
	return &p, &currKind
}

// wasAsleep implements the 15-minute/1-meter asleep inference. We may not receive
// vehicle data while the car is asleep; assume a sleep interval filled the gap if
// the previous datapoint was more than 15 minutes ago and the vehicle's GPS
// position is unchanged.
func wasAsleep(prev, curr *models.VehicleSnapshot) bool {
	if curr.Timestamp().Sub(prev.Timestamp()) <= AsleepGapThreshold {
		return false
	}

	prevLat, prevLon, ok := prev.Location()
	if !ok {
		return false
	}
	currLat, currLon, ok := curr.Location()
	if !ok {
		return false
	}

	return geo.WithinRadius(
		geo.Location{Lat: prevLat, Lon: prevLon},
		geo.Location{Lat: currLat, Lon: currLon},
		AsleepGapRadius,
	)
}

type hiddenGap struct {
	batteryDelta int16
}

// hiddenSessionGap implements the delayed-datapoint boundary: the gap exceeds 10
// minutes and the odometer has moved less than 1 km, meaning the vehicle has not
// actually been driving the whole time.
func hiddenSessionGap(prev, curr *models.VehicleSnapshot) (hiddenGap, bool) {
	if curr.Timestamp().Sub(prev.Timestamp()) <= DelayedDatapointThreshold {
		return hiddenGap{}, false
	}

	prevOdo := odometerKm(prev)
	currOdo := odometerKm(curr)
	if prevOdo == nil || currOdo == nil {
		return hiddenGap{}, false
	}
	if (*currOdo - *prevOdo) >= HiddenSessionOdometerKm {
		return hiddenGap{}, false
	}

	return hiddenGap{batteryDelta: batteryDelta(prev, curr)}, true
}

func odometerKm(s *models.VehicleSnapshot) *float64 {
	if s.VehicleState == nil || s.VehicleState.Odometer == nil {
		return nil
	}
	km := *s.VehicleState.Odometer * 1.60934
	return &km
}

func batteryDelta(prev, curr *models.VehicleSnapshot) int16 {
	var p, c int16
	if prev.Charge != nil && prev.Charge.BatteryLevel != nil {
		p = *prev.Charge.BatteryLevel
	}
	if curr.Charge != nil && curr.Charge.BatteryLevel != nil {
		c = *curr.Charge.BatteryLevel
	}
	return c - p
}
