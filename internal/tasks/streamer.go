package tasks

import (
	"context"
	"log"
	"time"

	"github.com/evtrack/fleetlogger/internal/models"
)

// StreamFrame is one delivered frame of the upstream streaming subscription's fixed
// 13-field CSV (§6): timestamp, speed, odometer, soc, elevation, est_heading,
// est_lat, est_lng, power, shift_state, range, est_range, heading.
type StreamFrame struct {
	TimestampMS int64
	Speed       *float64
	Odometer    *float64
	SoC         *int16
	EstHeading  *int
	EstLat      *float64
	EstLng      *float64
	Power       *float64
	ShiftState  *models.ShiftState
	Range       *float64
	EstRange    *float64
}

// StreamClient is the external collaborator maintaining the persistent bidirectional
// streaming subscription named in §6; its transport internals are out of scope.
type StreamClient interface {
	// Subscribe opens (or re-opens, on transient drop) a subscription for vehicleID
	// and delivers frames on the returned channel until ctx is cancelled.
	Subscribe(ctx context.Context, vehicleID string) (<-chan StreamFrame, error)
}

// Streamer is the optional second producer of §4.2: it mirrors whatever fields a
// delivered frame carries into a VehicleSnapshot and feeds the same sampleCh as the
// Poller. Reconnects with a fixed backoff on subscription failure.
type Streamer struct {
	client    StreamClient
	vehicleID string
	sampleCh  chan<- *models.VehicleSnapshot
}

const streamReconnectDelay = 5 * time.Second

// NewStreamer builds a streamer for one vehicle id. A nil client means streaming is
// not configured; Run then only waits for cancellation (the poller alone drives
// ingestion).
func NewStreamer(client StreamClient, vehicleID string, sampleCh chan<- *models.VehicleSnapshot) *Streamer {
	return &Streamer{client: client, vehicleID: vehicleID, sampleCh: sampleCh}
}

func (s *Streamer) Run(ctx context.Context) error {
	if s.client == nil {
		<-ctx.Done()
		return nil
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		frames, err := s.client.Subscribe(ctx, s.vehicleID)
		if err != nil {
			log.Printf("[streamer] %s subscribe failed: %v, reconnecting", s.vehicleID, err)
			if !sleepCtx(ctx, streamReconnectDelay) {
				return nil
			}
			continue
		}

		for frame := range frames {
			snap := frameToSnapshot(s.vehicleID, frame)
			select {
			case s.sampleCh <- snap:
			case <-ctx.Done():
				return nil
			}
		}

		if ctx.Err() != nil {
			return nil
		}
		log.Printf("[streamer] %s subscription closed, reconnecting", s.vehicleID)
		if !sleepCtx(ctx, streamReconnectDelay) {
			return nil
		}
	}
}

func frameToSnapshot(vehicleID string, f StreamFrame) *models.VehicleSnapshot {
	vin := vehicleID
	online := models.PresenceOnline
	return &models.VehicleSnapshot{
		TimestampMS: f.TimestampMS,
		VIN:         &vin,
		Presence:    &online,
		Drive: &models.DriveBlock{
			Timestamp:  &f.TimestampMS,
			ShiftState: f.ShiftState,
			Latitude:   f.EstLat,
			Longitude:  f.EstLng,
			Speed:      f.Speed,
			Power:      f.Power,
			Heading:    f.EstHeading,
		},
		Charge: &models.ChargeBlock{
			BatteryLevel:      f.SoC,
			IdealBatteryRange: f.Range,
			EstBatteryRange:   f.EstRange,
		},
		VehicleState: &models.VehicleStateBlock{
			Odometer: f.Odometer,
		},
	}
}
