package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/evtrack/fleetlogger/internal/apperr"
	"github.com/evtrack/fleetlogger/internal/models"
	"github.com/evtrack/fleetlogger/internal/registry"
	"github.com/stretchr/testify/require"
)

type scriptedTeslaClient struct {
	fetches []fetchResult
	i       int
}

type fetchResult struct {
	snap *models.VehicleSnapshot
	err  error
}

func (c *scriptedTeslaClient) Vehicles(ctx context.Context) ([]string, error) { return nil, nil }

func (c *scriptedTeslaClient) FetchSnapshot(ctx context.Context, vehicleID string) (*models.VehicleSnapshot, error) {
	if c.i >= len(c.fetches) {
		return nil, errors.New("no more scripted fetches")
	}
	r := c.fetches[c.i]
	c.i++
	return r.snap, r.err
}

func (c *scriptedTeslaClient) RefreshToken(ctx context.Context, refreshToken string) (models.AuthResponse, error) {
	return models.AuthResponse{}, nil
}

type fakeRefresher struct {
	called  int
	setOn   *registry.Registry
	newTok  string
}

func (f *fakeRefresher) RequestRefresh(ctx context.Context) error {
	f.called++
	if f.setOn != nil {
		f.setOn.AccessToken.Set(f.newTok)
	}
	return nil
}

func fastRegistry() *registry.Registry {
	reg := registry.New(registry.EnvVars{}, models.DefaultSettings(), models.AuthResponse{})
	reg.LoggingPeriodMs.Set(1)
	return reg
}

func TestPollerForwardsFetchedSnapshots(t *testing.T) {
	reg := fastRegistry()
	sampleCh := make(chan *models.VehicleSnapshot, 1)
	snap := &models.VehicleSnapshot{TimestampMS: 1}
	client := &scriptedTeslaClient{fetches: []fetchResult{{snap: snap}}}
	p := NewPoller(client, reg, nil, "vin-1", sampleCh)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case got := <-sampleCh:
		require.Same(t, snap, got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for sample")
	}
	cancel()
	<-done
}

func TestPollerTokenExpiredRetriesAfterSynchronousRefresh(t *testing.T) {
	reg := fastRegistry()
	sampleCh := make(chan *models.VehicleSnapshot, 1)
	snap := &models.VehicleSnapshot{TimestampMS: 2}
	client := &scriptedTeslaClient{fetches: []fetchResult{
		{err: apperr.TokenExpired},
		{snap: snap},
	}}
	refresher := &fakeRefresher{setOn: reg, newTok: "fresh-token"}
	p := NewPoller(client, reg, refresher, "vin-1", sampleCh)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case got := <-sampleCh:
		require.Same(t, snap, got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for post-refresh sample")
	}
	require.Equal(t, 1, refresher.called)
	cancel()
	<-done
}

func TestPollerSkipsFetchWhenLoggingDisabled(t *testing.T) {
	reg := fastRegistry()
	reg.LoggingEnabled.Set(false)
	sampleCh := make(chan *models.VehicleSnapshot, 1)
	client := &scriptedTeslaClient{}
	p := NewPoller(client, reg, nil, "vin-1", sampleCh)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case <-sampleCh:
		t.Fatal("expected no sample while logging is disabled")
	case <-time.After(20 * time.Millisecond):
	}
	cancel()
	<-done
}
