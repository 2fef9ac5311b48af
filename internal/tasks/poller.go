package tasks

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/evtrack/fleetlogger/internal/apperr"
	"github.com/evtrack/fleetlogger/internal/models"
	"github.com/evtrack/fleetlogger/internal/registry"
	"github.com/evtrack/fleetlogger/internal/tesla"
)

const requestTimeoutRetryDelay = 2 * time.Second

// TokenRefresher is the narrow surface the poller needs from the token manager: a
// blocking request to refresh the upstream credential right now.
type TokenRefresher interface {
	RequestRefresh(ctx context.Context) error
}

// Poller is the cadence-driven producer of §4.2: on every logging_period_ms tick it
// fetches one snapshot for its vehicle id and pushes it onto sampleCh. Both it and
// Streamer share sampleCh; back-pressure from its capacity-1 buffer is the intended
// cadence control.
type Poller struct {
	client    tesla.Client
	reg       *registry.Registry
	tokens    TokenRefresher
	vehicleID string
	sampleCh  chan<- *models.VehicleSnapshot
}

// NewPoller builds a poller for one vehicle id. tokens may be nil in tests that never
// exercise the TokenExpired path.
func NewPoller(client tesla.Client, reg *registry.Registry, tokens TokenRefresher, vehicleID string, sampleCh chan<- *models.VehicleSnapshot) *Poller {
	return &Poller{client: client, reg: reg, tokens: tokens, vehicleID: vehicleID, sampleCh: sampleCh}
}

// Run implements Task. It loops until ctx is cancelled, sleeping for
// logging_period_ms between fetches (re-read from the registry on every tick so a
// live config change takes effect without a restart).
func (p *Poller) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		if !p.reg.LoggingEnabled.Get() {
			if !sleepCtx(ctx, p.cadence()) {
				return nil
			}
			continue
		}

		snap, err := p.client.FetchSnapshot(ctx, p.vehicleID)
		switch {
		case err == nil:
			select {
			case p.sampleCh <- snap:
			case <-ctx.Done():
				return nil
			}
			if !sleepCtx(ctx, p.cadence()) {
				return nil
			}

		case errors.Is(err, apperr.NotOnline):
			log.Printf("[poller] %s not online, waiting one cadence", p.vehicleID)
			if !sleepCtx(ctx, p.cadence()) {
				return nil
			}

		case errors.Is(err, apperr.RequestTimeout):
			log.Printf("[poller] %s request timed out, retrying shortly", p.vehicleID)
			if !sleepCtx(ctx, requestTimeoutRetryDelay) {
				return nil
			}

		case errors.Is(err, apperr.RateLimited):
			log.Printf("[poller] %s rate limited, backing off one cadence", p.vehicleID)
			if !sleepCtx(ctx, p.cadence()) {
				return nil
			}

		case errors.Is(err, apperr.TokenExpired):
			log.Printf("[poller] %s access token expired, requesting refresh", p.vehicleID)
			if p.tokens != nil && p.tokens.RequestRefresh(ctx) == nil {
				// RequestRefresh already installed the new token synchronously;
				// retry on the next tick rather than waiting for a Watch event
				// that has already fired.
				break
			}
			if !p.waitForRefreshedToken(ctx) {
				return nil
			}

		default:
			log.Printf("[poller] %s fetch failed: %v", p.vehicleID, err)
			if !sleepCtx(ctx, p.cadence()) {
				return nil
			}
		}
	}
}

func (p *Poller) cadence() time.Duration {
	return time.Duration(p.reg.LoggingPeriodMs.Get()) * time.Millisecond
}

// waitForRefreshedToken blocks until the token manager publishes a new access
// token, or ctx is cancelled. Returns false if the caller should stop.
func (p *Poller) waitForRefreshedToken(ctx context.Context) bool {
	before := p.reg.AccessToken.Get()
	recv := p.reg.AccessToken.Watch()
	for {
		token, err := recv.Recv(ctx)
		if err != nil {
			return false
		}
		if token != before {
			return true
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
