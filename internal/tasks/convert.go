package tasks

import (
	"context"
	"fmt"
	"log"

	"github.com/evtrack/fleetlogger/internal/models"
	"github.com/evtrack/fleetlogger/internal/presenter"
	"github.com/evtrack/fleetlogger/internal/registry"
	"github.com/evtrack/fleetlogger/internal/store"
)

// RunConvert implements the supplemented historical-conversion CLI path
// (original_source/chipmunk/src/database/tables/mod.rs::convert_database, the
// `--num-rows` flag named in spec §6): it replays up to numRows archived car_data
// rows through a throwaway processor/persister pair, reusing the exact
// classification and persistence logic of the steady-state pipeline. numRows <= 0
// means replay the whole archive. This never runs as part of the steady-state task
// fabric — it is the `tasks` CLI mode's `--num-rows` path only.
func RunConvert(ctx context.Context, persister *store.Persister, geocoder Geocoder, numRows int) error {
	rows, err := persister.LoadArchivedSnapshots(numRows)
	if err != nil {
		return fmt.Errorf("loading archive: %w", err)
	}
	if len(rows) == 0 {
		log.Println("[convert] archive is empty, nothing to replay")
		return nil
	}
	log.Printf("[convert] replaying %d archived snapshot(s)", len(rows))

	sampleCh := make(chan *models.VehicleSnapshot, 1)
	batchCh := make(chan store.Batch, 1)
	ackCh := make(chan store.Batch, 1)

	reg := registry.New(registry.EnvVars{}, models.DefaultSettings(), models.AuthResponse{})
	board := presenter.NewBoard()
	proc := NewProcessor(reg, persister, geocoder, nil, sampleCh, batchCh, ackCh, board)
	persisterTask := NewPersisterTask(persister, batchCh, ackCh, nil)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	procDone := make(chan struct{})
	persisterDone := make(chan struct{})
	go func() { defer close(procDone); _ = proc.Run(runCtx) }()
	go func() { defer close(persisterDone); _ = persisterTask.Run(runCtx) }()

	var feedErr error
feed:
	for i, row := range rows {
		select {
		case sampleCh <- row.Snapshot:
		case <-ctx.Done():
			feedErr = ctx.Err()
			break feed
		}
		if (i+1)%1000 == 0 {
			log.Printf("[convert] replayed %d/%d", i+1, len(rows))
		}
	}

	if feedErr != nil {
		cancel()
		<-procDone
		<-persisterDone
		return feedErr
	}

	// Let proc drain the last sample(s) and complete their round trips before
	// tearing anything down, rather than racing ctx cancellation against the
	// final channel sends.
	close(sampleCh)
	<-procDone
	close(batchCh)
	<-persisterDone

	log.Printf("[convert] replay complete: %d snapshot(s)", len(rows))
	return nil
}
