// Command fleetlogger is the process entry point: it wires the config registry,
// store, external collaborators and concurrent task fabric together per §4.8 and
// runs either the steady-state ingestion pipeline ("log") or a one-shot
// historical-conversion job ("tasks"), matching the CLI surface of §6.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/evtrack/fleetlogger/internal/apperr"
	"github.com/evtrack/fleetlogger/internal/appconfig"
	"github.com/evtrack/fleetlogger/internal/auth"
	"github.com/evtrack/fleetlogger/internal/geocode"
	"github.com/evtrack/fleetlogger/internal/metrics"
	"github.com/evtrack/fleetlogger/internal/models"
	"github.com/evtrack/fleetlogger/internal/presenter"
	"github.com/evtrack/fleetlogger/internal/registry"
	"github.com/evtrack/fleetlogger/internal/store"
	"github.com/evtrack/fleetlogger/internal/tasks"
	"github.com/evtrack/fleetlogger/internal/tesla"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

const httpShutdownGrace = 5 * time.Second

func init() {
	appconfig.LoadDotEnv()
}

func main() {
	if err := run(); err != nil {
		if fmt.Sprint(err) != "" {
			log.Println(err)
		}
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		return fmt.Errorf("%w: usage: fleetlogger {log|tasks} [flags]", apperr.FatalConfig)
	}
	mode := os.Args[1]
	if mode != "log" && mode != "tasks" {
		return fmt.Errorf("%w: unknown mode %q, expected log or tasks", apperr.FatalConfig, mode)
	}

	fs := flag.NewFlagSet(mode, flag.ContinueOnError)
	token := fs.String("token", "", "store a freshly issued refresh token and continue")
	numRows := fs.Int("num-rows", 0, "bound the historical conversion job (tasks mode); <= 0 means the whole archive")
	debug := fs.Bool("debug", false, "raise log verbosity")
	if err := fs.Parse(os.Args[2:]); err != nil {
		return fmt.Errorf("%w: %v", apperr.FatalConfig, err)
	}
	if *debug {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	env, err := registry.LoadEnvVars()
	if err != nil {
		return err
	}

	db, err := store.Open(env.DatabaseURL)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.FatalConfig, err)
	}
	defer db.Close()

	if err := store.RunMigrations(db); err != nil {
		return fmt.Errorf("%w: %v", apperr.FatalConfig, err)
	}

	persister := store.NewPersister(db)

	settings, err := persister.LoadSettings()
	if err != nil {
		return err
	}
	reg := registry.New(env, settings, models.AuthResponse{})

	m := metrics.New()
	geocoder := geocode.NewOSMClient(env.GeocodeBaseURL)
	teslaClient := tesla.NewHTTPClient(env.TeslaBaseURL, env.TeslaOAuthURL, env.TeslaClientID, reg.AccessToken.Get)
	tm := auth.NewTokenManager(teslaClient, reg, persister, m)

	if err := tm.Bootstrap(); err != nil {
		return err
	}

	ctx := context.Background()
	if *token != "" {
		if err := tm.StoreRefreshToken(ctx, *token); err != nil {
			return fmt.Errorf("storing provided refresh token: %w", err)
		}
	}

	if mode == "tasks" {
		return tasks.RunConvert(ctx, persister, geocoder, *numRows)
	}

	if err := presenter.BootstrapAdmin(persister, env.AdminUsername, env.AdminPassword); err != nil {
		return err
	}

	vehicleIDs, err := teslaClient.Vehicles(ctx)
	if err != nil {
		return fmt.Errorf("listing vehicles at startup: %w", err)
	}
	if len(vehicleIDs) == 0 {
		log.Println("[main] no vehicles visible for this credential yet; the poller will simply find none to fetch")
	}

	sampleCh := make(chan *models.VehicleSnapshot, 1)
	batchCh := make(chan store.Batch, 1)
	ackCh := make(chan store.Batch, 1)
	board := presenter.NewBoard()

	for _, vin := range vehicleIDs {
		if _, err := persister.EnsureCar(vin); err != nil {
			return fmt.Errorf("registering car %s: %w", vin, err)
		}
	}

	sup := tasks.NewSupervisor()
	for _, vin := range vehicleIDs {
		vin := vin
		sup.Spawn("poller-"+vin, tasks.NewPoller(teslaClient, reg, tm, vin, sampleCh).Run)
		sup.Spawn("streamer-"+vin, tasks.NewStreamer(nil, vin, sampleCh).Run)
	}
	sup.Spawn("processor", tasks.NewProcessor(reg, persister, geocoder, persister, sampleCh, batchCh, ackCh, board).Run)
	sup.Spawn("persister", tasks.NewPersisterTask(persister, batchCh, ackCh, m).Run)
	sup.Spawn("maintenance", tasks.NewMaintenanceTask(persister).Run)
	sup.Spawn("token-manager", tm.Run)

	presenterServer := presenter.NewServer(reg, board, tm, persister, persister, env.JWTSecret)
	sup.Spawn("presenter", presenterServer.Run)
	sup.Spawn("http", func(ctx context.Context) error {
		return serveHTTP(ctx, env.HTTPPort, presenterServer)
	})

	return sup.Run()
}

// serveHTTP runs the presenter's HTTP/WebSocket surface behind rs/cors, matching
// the teacher's main.go CORS wrapping, and shuts down cleanly when ctx is
// cancelled rather than leaking a listener past the supervisor's lifetime.
func serveHTTP(ctx context.Context, port uint16, presenterServer *presenter.Server) error {
	router := presenterServer.Router()
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler(router)

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: corsHandler}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}
