package tasks

import (
	"context"
	"log"

	"github.com/evtrack/fleetlogger/internal/metrics"
	"github.com/evtrack/fleetlogger/internal/store"
)

// PersisterTask wraps store.Persister in the task-loop shape of §5: consume
// batch_ch, execute the batch, return the id-filled result on ack_ch. Both
// channels are capacity 1, so the processor never races ahead of what has actually
// been written, and per-car batch order is preserved end to end.
type PersisterTask struct {
	persister *store.Persister
	batchCh   <-chan store.Batch
	ackCh     chan<- store.Batch
	metrics   *metrics.Metrics
}

// NewPersisterTask builds the persister task loop. m may be nil in tests that
// don't care about metrics.
func NewPersisterTask(persister *store.Persister, batchCh <-chan store.Batch, ackCh chan<- store.Batch, m *metrics.Metrics) *PersisterTask {
	return &PersisterTask{persister: persister, batchCh: batchCh, ackCh: ackCh, metrics: m}
}

func (t *PersisterTask) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case batch, ok := <-t.batchCh:
			if !ok {
				return nil
			}

			result, err := t.persister.Execute(batch)
			if err != nil {
				log.Printf("[persister] batch failed: %v", err)
				if t.metrics != nil {
					t.metrics.BatchesProcessedTotal.WithLabelValues("error").Inc()
					t.metrics.PersistFailuresTotal.Inc()
				}
			} else if t.metrics != nil {
				t.metrics.BatchesProcessedTotal.WithLabelValues("ok").Inc()
			}

			select {
			case t.ackCh <- result:
			case <-ctx.Done():
				return nil
			}
		}
	}
}
