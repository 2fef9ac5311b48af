package tasks

import (
	"context"
	"log"
	"time"

	"github.com/evtrack/fleetlogger/internal/classify"
	"github.com/evtrack/fleetlogger/internal/event"
	"github.com/evtrack/fleetlogger/internal/models"
	"github.com/evtrack/fleetlogger/internal/presenter"
	"github.com/evtrack/fleetlogger/internal/registry"
	"github.com/evtrack/fleetlogger/internal/store"
)

// Geocoder names the reverse-geocoding collaborator of §6; out of scope beyond this
// interface. A nil Geocoder means addresses are simply never attached to batches.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (*models.Address, error)
}

// CarRegistrar resolves a VIN to its car_id, creating the car (and its settings row)
// on first sight, per §3's Car invariant. Backed by store.GetOrCreateCar/EnsureCar;
// kept as a narrow interface so the processor never holds the database handle
// itself — only the Persister does, per §4.5.
type CarRegistrar interface {
	EnsureCar(vin string) (int16, error)
}

// Archiver writes the raw snapshot to the car_data JSON archive ahead of
// classification, the supplemented historical-conversion feature's write side. A
// nil Archiver simply skips archiving.
type Archiver interface {
	ArchiveSnapshot(carID int16, snap *models.VehicleSnapshot) error
}

// carState is the processor's exclusively-owned, in-memory record of one car's
// classifier state: the current open State row, whichever aggregate (Drive or
// ChargingProcess) is in progress, and the previous snapshot for gap detection.
// Never shared across goroutines; the processor task is the sole owner (§5).
type carState struct {
	carID        int16
	state        models.State
	prevSnapshot *models.VehicleSnapshot
	drive        *models.Drive
	charging     *models.ChargingProcess
	chargeRows   []models.Charges
	update       *models.SoftwareUpdate
}

// Processor is the session classifier + event constructor task of §4.3/§4.4: it
// consumes raw snapshots, derives session transitions, builds Tables batches, and
// round-trips each batch through the Persister before moving to the next snapshot
// for that car, preserving the per-car ordering guarantee of §5.
type Processor struct {
	reg      *registry.Registry
	cars     CarRegistrar
	geocoder Geocoder
	archiver Archiver
	sampleCh <-chan *models.VehicleSnapshot
	batchCh  chan<- store.Batch
	ackCh    <-chan store.Batch
	status   *presenter.Board

	byVIN map[string]*carState
}

// NewProcessor wires the processor to its channels and collaborators. archiver may
// be nil, in which case raw snapshots are simply never archived.
func NewProcessor(reg *registry.Registry, cars CarRegistrar, geocoder Geocoder, archiver Archiver,
	sampleCh <-chan *models.VehicleSnapshot, batchCh chan<- store.Batch, ackCh <-chan store.Batch,
	status *presenter.Board) *Processor {
	return &Processor{
		reg: reg, cars: cars, geocoder: geocoder, archiver: archiver,
		sampleCh: sampleCh, batchCh: batchCh, ackCh: ackCh, status: status,
		byVIN: make(map[string]*carState),
	}
}

func (p *Processor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case snap, ok := <-p.sampleCh:
			if !ok {
				return nil
			}
			if snap.VIN == nil {
				log.Printf("[processor] dropping snapshot with no VIN")
				continue
			}

			cs, err := p.carStateFor(*snap.VIN)
			if err != nil {
				log.Printf("[processor] could not resolve car for VIN %s: %v", *snap.VIN, err)
				continue
			}

			if p.archiver != nil {
				if err := p.archiver.ArchiveSnapshot(cs.carID, snap); err != nil {
					log.Printf("[processor] archiving snapshot for car %d: %v", cs.carID, err)
				}
			}

			if err := p.handleSnapshot(ctx, cs, snap); err != nil {
				log.Printf("[processor] %s: %v", *snap.VIN, err)
				continue
			}
			cs.prevSnapshot = snap
		}
	}
}

func (p *Processor) carStateFor(vin string) (*carState, error) {
	if cs, ok := p.byVIN[vin]; ok {
		return cs, nil
	}
	carID, err := p.cars.EnsureCar(vin)
	if err != nil {
		return nil, err
	}
	cs := &carState{carID: carID}
	p.byVIN[vin] = cs
	return cs, nil
}

func (p *Processor) handleSnapshot(ctx context.Context, cs *carState, snap *models.VehicleSnapshot) error {
	var prevState *models.State
	if cs.state.CarID != 0 || cs.state.ID != 0 {
		s := cs.state
		prevState = &s
	}

	decisions, err := classify.Classify(prevState, cs.prevSnapshot, snap)
	if err != nil {
		// Returned so that Run drops the snapshot without making it prevSnapshot.
		return err
	}

	if err := p.handleSoftwareUpdate(ctx, cs, snap); err != nil {
		return err
	}

	for _, d := range decisions {
		if err := p.applyDecision(ctx, cs, d); err != nil {
			return err
		}
	}

	p.publishStatus(cs)
	return nil
}

// applyDecision turns one classifier Decision into one or more ordered batches and
// round-trips each through the Persister, mutating cs in place as ids come back.
func (p *Processor) applyDecision(ctx context.Context, cs *carState, d classify.Decision) error {
	switch d.Step {
	case classify.StepContinue:
		return p.continueSession(ctx, cs, d)
	case classify.StepEnd:
		return p.endSession(ctx, cs, d)
	case classify.StepStart:
		return p.startSession(ctx, cs, d)
	case classify.StepHidden:
		return p.hiddenSession(ctx, cs, d)
	}
	return nil
}

func (p *Processor) continueSession(ctx context.Context, cs *carState, d classify.Decision) error {
	switch d.Kind {
	case models.KindDriving:
		if cs.drive == nil {
			return nil
		}
		pos := event.BuildPosition(d.Snapshot, cs.carID, ptrInt64(cs.drive.ID))
		updated := event.UpdateDrive(*cs.drive, pos)
		return p.roundTrip(ctx, store.Batch{Position: &pos, Drive: &updated}, func(b store.Batch) {
			cs.drive = b.Drive
		})

	case models.KindCharging:
		if cs.charging == nil {
			return nil
		}
		pos := event.BuildPosition(d.Snapshot, cs.carID, nil)
		charge := event.BuildCharges(d.Snapshot, cs.charging.ID)
		updated := event.UpdateCharging(*cs.charging, pos, charge)
		cs.chargeRows = append(cs.chargeRows, charge)
		return p.roundTrip(ctx, store.Batch{Position: &pos, ChargingProcess: &updated, Charges: &charge}, func(b store.Batch) {
			cs.charging = b.ChargingProcess
		})
	}
	return nil
}

func (p *Processor) endSession(ctx context.Context, cs *carState, d classify.Decision) error {
	addr := p.reverseGeocode(ctx, d.Snapshot)
	var addrID *int64
	if addr != nil {
		addrID = ptrInt64(addr.ID)
	}

	switch d.Kind {
	case models.KindDriving:
		if cs.drive != nil {
			pos := event.BuildPosition(d.Snapshot, cs.carID, ptrInt64(cs.drive.ID))
			closed := event.StopDrive(*cs.drive, pos, addrID, nil)
			if err := p.roundTrip(ctx, store.Batch{Address: addr, Position: &pos, Drive: &closed}, func(b store.Batch) {
				cs.drive = nil
			}); err != nil {
				return err
			}
		}

	case models.KindCharging:
		if cs.charging != nil {
			closed := event.CloseCharging(*cs.charging, d.End, cs.chargeRows, addrID, nil, event.DefaultCost)
			if err := p.roundTrip(ctx, store.Batch{Address: addr, ChargingProcess: &closed}, func(b store.Batch) {
				cs.charging = nil
				cs.chargeRows = nil
			}); err != nil {
				return err
			}
		}
	}

	return p.closeState(ctx, cs, d.End)
}

// closeState writes the end_date of whatever State row is currently open for this
// car. A fresh open State row is started separately by startSession.
func (p *Processor) closeState(ctx context.Context, cs *carState, end time.Time) error {
	if cs.state.ID == 0 {
		return nil
	}
	closed := cs.state
	closed.EndDate = &end
	return p.roundTrip(ctx, store.Batch{State: &closed}, func(b store.Batch) {
		cs.state = *b.State
	})
}

func (p *Processor) startSession(ctx context.Context, cs *carState, d classify.Decision) error {
	state := models.State{Kind: d.Kind, StartDate: d.Start, CarID: cs.carID}

	switch d.Kind {
	case models.KindDriving:
		pos := event.BuildPosition(d.Snapshot, cs.carID, nil)
		drive := event.StartDrive(cs.carID, pos)
		return p.roundTrip(ctx, store.Batch{Position: &pos, Drive: &drive, State: &state}, func(b store.Batch) {
			cs.drive = b.Drive
			cs.state = *b.State
			pos.DriveID = ptrInt64(b.Drive.ID)
		})

	case models.KindCharging:
		pos := event.BuildPosition(d.Snapshot, cs.carID, nil)
		charge := event.BuildCharges(d.Snapshot, 0)
		chargingProcess := event.StartCharging(cs.carID, 0, pos, charge)
		return p.roundTrip(ctx, store.Batch{Position: &pos, ChargingProcess: &chargingProcess, Charges: &charge, State: &state}, func(b store.Batch) {
			cs.charging = b.ChargingProcess
			cs.chargeRows = []models.Charges{*b.Charges}
			cs.state = *b.State
		})

	default:
		return p.roundTrip(ctx, store.Batch{State: &state}, func(b store.Batch) {
			cs.state = *b.State
		})
	}
}

// hiddenSession synthesizes a complete, already-closed session spanning the gap
// between two endpoint snapshots (§4.3's asleep and hidden-drive/charge inference).
func (p *Processor) hiddenSession(ctx context.Context, cs *carState, d classify.Decision) error {
	state := models.State{Kind: d.Kind, StartDate: d.Start, CarID: cs.carID, EndDate: &d.End}

	if d.Kind != models.KindCharging {
		return p.roundTrip(ctx, store.Batch{State: &state}, nil)
	}

	startPos := event.BuildPosition(d.Snapshot, cs.carID, nil)
	startCharge := event.BuildCharges(d.Snapshot, 0)
	cp := event.StartCharging(cs.carID, 0, startPos, startCharge)

	var cpID int64
	if err := p.roundTrip(ctx, store.Batch{Position: &startPos, ChargingProcess: &cp, State: &state}, func(b store.Batch) {
		cp = *b.ChargingProcess
		cpID = b.ChargingProcess.ID
	}); err != nil {
		return err
	}

	endPos := event.BuildPosition(d.EndSnapshot, cs.carID, nil)
	endCharge := event.BuildCharges(d.EndSnapshot, cpID)
	updated := event.UpdateCharging(cp, endPos, endCharge)
	closed := event.CloseCharging(updated, d.End, []models.Charges{startCharge, endCharge}, nil, nil, event.DefaultCost)

	return p.roundTrip(ctx, store.Batch{Position: &endPos, ChargingProcess: &closed, Charges: &endCharge}, nil)
}

// roundTrip sends one batch to the persister and blocks for its ack, applying the
// id-filled result via apply. This is the synchronous request/response shape
// described in §5: batch_ch and ack_ch are both capacity 1, so the processor never
// races ahead of what has actually been written.
func (p *Processor) roundTrip(ctx context.Context, b store.Batch, apply func(store.Batch)) error {
	select {
	case p.batchCh <- b:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case acked := <-p.ackCh:
		if apply != nil {
			apply(acked)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// publishStatus derives the presenter-facing Status for a car's current session and
// writes it to the presenter's Board, independent of the presenter's own
// once-per-second push loop (§4.6 decouples ingestion cadence from push cadence).
func (p *Processor) publishStatus(cs *carState) {
	if p.status == nil {
		return
	}

	loggingEnabled := p.reg.LoggingEnabled.Get()

	switch {
	case cs.drive != nil:
		p.status.Set(presenter.FromDrive(cs.carID, *cs.drive, loggingEnabled, ""))
	case cs.charging != nil:
		p.status.Set(presenter.FromCharging(cs.carID, *cs.charging, loggingEnabled, ""))
	case cs.state.CarID != 0 || cs.state.ID != 0:
		p.status.Set(presenter.FromState(cs.carID, cs.state, loggingEnabled, ""))
	}
}

func (p *Processor) reverseGeocode(ctx context.Context, snap *models.VehicleSnapshot) *models.Address {
	if p.geocoder == nil || snap == nil {
		return nil
	}
	lat, lon, ok := snap.Location()
	if !ok {
		return nil
	}
	addr, err := p.geocoder.Reverse(ctx, lat, lon)
	if err != nil {
		log.Printf("[processor] reverse geocode failed: %v", err)
		return nil
	}
	return addr
}

// handleSoftwareUpdate implements §3's SoftwareUpdate lifecycle: opened when
// car_version differs from the prior sample's, closing whatever row was open.
func (p *Processor) handleSoftwareUpdate(ctx context.Context, cs *carState, snap *models.VehicleSnapshot) error {
	if snap.VehicleState == nil || snap.VehicleState.CarVersion == nil {
		return nil
	}
	version := *snap.VehicleState.CarVersion

	if cs.update != nil {
		if cs.update.Version == version {
			return nil
		}
		end := snap.Timestamp()
		closed := *cs.update
		closed.EndDate = &end
		if err := p.roundTrip(ctx, store.Batch{SoftwareUpdate: &closed}, func(b store.Batch) {
			cs.update = nil
		}); err != nil {
			return err
		}
	}

	fresh := models.SoftwareUpdate{StartDate: snap.Timestamp(), Version: version, CarID: cs.carID}
	return p.roundTrip(ctx, store.Batch{SoftwareUpdate: &fresh}, func(b store.Batch) {
		cs.update = b.SoftwareUpdate
	})
}

func ptrInt64(v int64) *int64 { return &v }
