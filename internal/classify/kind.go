package classify

import (
	"log"

	"github.com/evtrack/fleetlogger/internal/models"
)

// KindOf derives the session kind from a snapshot, per spec §4.3:
//
//	offline presence            -> Offline
//	asleep presence              -> Asleep
//	unknown/missing presence     -> Unknown
//	online + charging/starting/no-power -> Charging
//	online + shift present, != P and not empty -> Driving
//	otherwise                           -> Parked
func KindOf(s *models.VehicleSnapshot) models.StateKind {
	if s.Presence == nil {
		log.Println("[classify] snapshot presence is nil, treating as Unknown")
		return models.KindUnknown
	}

	switch *s.Presence {
	case models.PresenceOffline:
		return models.KindOffline
	case models.PresenceAsleep:
		return models.KindAsleep
	case models.PresenceUnknown:
		return models.KindUnknown
	case models.PresenceOnline:
		// charging takes priority over shift state
		if s.Charge != nil && s.Charge.ChargingState != nil {
			switch *s.Charge.ChargingState {
			case models.ChargeStateCharging, models.ChargeStateStarting, models.ChargeStateNoPower:
				return models.KindCharging
			}
		}

		if s.Drive != nil && s.Drive.ShiftState != nil && *s.Drive.ShiftState != models.ShiftP && *s.Drive.ShiftState != models.ShiftUnknown {
			return models.KindDriving
		}
		return models.KindParked
	default:
		log.Printf("[classify] unknown presence value %q, consider updating the Presence enum", *s.Presence)
		return models.KindUnknown
	}
}
