package tasks

import (
	"context"
	"log"

	"github.com/evtrack/fleetlogger/internal/store"
	"github.com/robfig/cron/v3"
)

const (
	staleSessionSweepSchedule = "@every 1m"
	archiveCompactSchedule    = "@daily"
	staleSessionAfterMinutes  = 5
	archiveRetentionDays      = 30
)

// MaintenanceTask owns the supplemented periodic housekeeping: a stale-session
// sweep and a car_data archive compaction, the Go analog of the teacher's
// ticker-driven cleanupStalePartialData/logSystemStatus pair in
// services/data_collector.go, generalized to a declarative cron schedule.
type MaintenanceTask struct {
	persister *store.Persister
	cron      *cron.Cron
}

// NewMaintenanceTask builds the maintenance task, registering both jobs against a
// fresh cron.Cron instance.
func NewMaintenanceTask(persister *store.Persister) *MaintenanceTask {
	c := cron.New()
	t := &MaintenanceTask{persister: persister, cron: c}

	if _, err := c.AddFunc(staleSessionSweepSchedule, t.sweepStaleSessions); err != nil {
		log.Printf("[maintenance] failed to register stale-session sweep: %v", err)
	}
	if _, err := c.AddFunc(archiveCompactSchedule, t.compactArchive); err != nil {
		log.Printf("[maintenance] failed to register archive compaction: %v", err)
	}

	return t
}

// Run starts the cron scheduler and blocks until ctx is cancelled, matching the
// Task shape every other component in this package implements.
func (t *MaintenanceTask) Run(ctx context.Context) error {
	t.cron.Start()
	<-ctx.Done()
	stopCtx := t.cron.Stop()
	<-stopCtx.Done()
	return nil
}

func (t *MaintenanceTask) sweepStaleSessions() {
	n, err := t.persister.SweepStaleSessions(staleSessionAfterMinutes)
	if err != nil {
		log.Printf("[maintenance] stale-session sweep failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[maintenance] force-closed %d stale session(s)", n)
	}
}

func (t *MaintenanceTask) compactArchive() {
	n, err := t.persister.CompactArchive(archiveRetentionDays)
	if err != nil {
		log.Printf("[maintenance] archive compaction failed: %v", err)
		return
	}
	log.Printf("[maintenance] compacted %d archived snapshot(s) older than %d days", n, archiveRetentionDays)
}
