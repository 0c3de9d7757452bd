package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/pthm-cable/multiverse/components"
	"github.com/pthm-cable/multiverse/game"
	"github.com/pthm-cable/multiverse/store"
	"github.com/pthm-cable/multiverse/telemetry"
)

// latestSnapshot is the badger key of the most recent run's final state.
const latestSnapshot = "latest"

// Run flags
var (
	outputDir    string
	snapshotDir  string
	metricsAddr  string
	badgerPath   string
	catalogPath  string
	resume       string
	maxTicks     uint64
	timeScale    float64
	logStats     bool
	pilotRegions int
	pilotDwell   uint64
	progressLog  time.Duration

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the simulation headless",
		Long: `Runs the simulation with an autopilot observer that tours the densest
regions. Souls are loaded from and saved to the badger store when one is
given, so consecutive runs share one ledger.`,
		RunE: runSimulation,
	}
)

func init() {
	flags := runCmd.Flags()
	flags.StringVar(&outputDir, "output-dir", "", "Output directory for CSV logs, config and soul ledger")
	flags.StringVar(&snapshotDir, "snapshot-dir", "", "Directory for bookmark snapshots")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	flags.StringVar(&badgerPath, "badger", "", "Badger directory for snapshots and the soul ledger")
	flags.StringVar(&catalogPath, "catalog", "", "SQLite file receiving discovered life")
	flags.StringVar(&resume, "resume", "", "Resume from a snapshot: a file path, or a badger key (\"latest\" for the last run)")
	flags.Uint64Var(&maxTicks, "max-ticks", 0, "Stop after N ticks (0 = until interrupted)")
	flags.Float64Var(&timeScale, "time-scale", 1, "Multiplier on the configured timestep")
	flags.BoolVar(&logStats, "log-stats", false, "Log window stats and stage profiles")
	flags.IntVar(&pilotRegions, "pilot-regions", 8, "Number of dense regions the observer tours")
	flags.Uint64Var(&pilotDwell, "pilot-dwell", 500, "Ticks the observer spends in each region")
	flags.DurationVar(&progressLog, "progress", 10*time.Second, "Interval between progress log lines")
}

func runSimulation(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.New()
	logger := slog.With("run", runID.String())

	var db *store.Badger
	if badgerPath != "" {
		var err error
		db, err = store.OpenBadger(store.BadgerConfig{Path: badgerPath, Logger: logger})
		if err != nil {
			return err
		}
		defer db.Close()
	}

	var catalog *store.Catalog
	if catalogPath != "" {
		var err error
		catalog, err = store.OpenCatalog(catalogPath)
		if err != nil {
			return err
		}
		defer catalog.Close()
	}

	metrics := telemetry.NewMetrics()
	if metricsAddr != "" {
		srv := serveMetrics(metricsAddr, metrics)
		defer srv.Shutdown(context.Background())
	}

	opts := game.Options{
		TimeScale:   timeScale,
		LogStats:    logStats,
		OutputDir:   outputDir,
		SnapshotDir: snapshotDir,
		Metrics:     metrics,
	}
	if db != nil {
		ledger, err := db.LoadLedger()
		if err != nil {
			return err
		}
		opts.Ledger = ledger
		logger.Info("soul ledger loaded", "souls", ledger.Len())
	}

	var found []store.Discovery
	var sim *game.Sim
	opts.EventCallback = func(e telemetry.Event) {
		if catalog == nil || e.Type != telemetry.EventLifeDiscovered {
			return
		}
		ref := eventRef(e)
		p, ok := sim.Planet(ref)
		if !ok {
			return
		}
		if d, ok := store.NewDiscovery(cfg.Derived.Seed, e.Cycle, e.Age, ref, p); ok {
			found = append(found, d)
		}
	}

	sim, err := newSim(opts, db, logger)
	if err != nil {
		return err
	}
	defer sim.Close()

	logger.Info("starting simulation",
		"seed", cfg.Universe.Seed,
		"particles", cfg.Universe.ParticleCount,
		"backend", cfg.Gravity.Backend,
		"time_scale", sim.TimeScale(),
		"max_ticks", maxTicks,
	)

	pilot := game.NewPilot(pilotRegions, pilotDwell)
	progress := rate.Sometimes{Interval: progressLog}
	for ctx.Err() == nil {
		sim.Tick(pilot.Observer(sim))
		progress.Do(sim.LogStatus)

		if len(found) > 0 && catalog != nil {
			if err := catalog.Insert(ctx, found...); err != nil {
				logger.Error("failed to catalogue discoveries", "error", err)
			}
			found = found[:0]
		}
		if maxTicks > 0 && sim.Ticks() >= maxTicks {
			logger.Info("max ticks reached", "tick", sim.Ticks())
			break
		}
	}
	sim.LogStatus()

	if db == nil {
		return nil
	}
	snap := sim.Capture()
	for _, name := range []string{latestSnapshot, fmt.Sprintf("%s/c%d_%d", runID, snap.Clock.Cycle, snap.Tick)} {
		if err := db.SaveSnapshot(name, snap); err != nil {
			return err
		}
	}
	if err := db.SaveLedger(sim.Ledger()); err != nil {
		return err
	}
	logger.Info("state saved", "badger", badgerPath, "souls", sim.Ledger().Len())
	return nil
}

// newSim creates the simulation, resuming from a snapshot when asked to.
func newSim(opts game.Options, db *store.Badger, logger *slog.Logger) (*game.Sim, error) {
	if resume == "" {
		return game.New(cfg, opts)
	}

	sim, err := resumeSim(opts, db)
	if err == nil {
		return sim, nil
	}
	logger.Warn("cannot resume, starting a fresh universe", "from", resume, "error", err)
	return game.New(cfg, opts)
}

// resumeSim builds a simulation from the snapshot named by --resume: a JSON
// file, or a key in the badger store. The snapshot's configuration replaces
// the loaded one only when the simulation could be built from it.
func resumeSim(opts game.Options, db *store.Badger) (*game.Sim, error) {
	var snap *telemetry.Snapshot
	var err error
	if db != nil && !strings.HasSuffix(resume, ".json") {
		snap, err = db.LoadSnapshot(resume)
	} else {
		snap, err = telemetry.LoadSnapshot(resume)
	}
	if err != nil {
		return nil, err
	}
	if timeScale != 1 {
		snap.TimeScale = timeScale
	}
	sim, err := game.FromSnapshot(snap, opts)
	if err != nil {
		return nil, err
	}
	cfg = snap.Config
	return sim, nil
}

// serveMetrics starts the Prometheus endpoint in the background.
func serveMetrics(addr string, metrics *telemetry.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	slog.Info("serving metrics", "addr", addr)
	return srv
}

// eventRef returns the planet an event refers to.
func eventRef(e telemetry.Event) components.PlanetRef {
	return components.PlanetRef{Region: e.Region, Star: e.Star, Planet: e.Planet}
}
