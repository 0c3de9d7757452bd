package telemetry

import (
	"log/slog"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for a window of ticks.
type WindowStats struct {
	WindowStartTick uint64  `csv:"-"`
	WindowEndTick   uint64  `csv:"window_end"`
	Cycle           uint32  `csv:"cycle"`
	Age             float64 `csv:"age_gyr"`
	Phase           string  `csv:"phase"`
	PhaseIndex      int     `csv:"phase_index"`
	ScaleFactor     float64 `csv:"scale_factor"`
	Temperature     float64 `csv:"temperature"`
	Entropy         float64 `csv:"entropy"`
	EntropyFraction float64 `csv:"entropy_fraction"` // of max_entropy

	// Particles at window end
	Alive      int     `csv:"alive"`
	DarkMatter int     `csv:"dark_matter"`
	SpeedMean  float64 `csv:"speed_mean"`
	SpeedP10   float64 `csv:"speed_p10"`
	SpeedP50   float64 `csv:"speed_p50"`
	SpeedP90   float64 `csv:"speed_p90"`
	Momentum   float64 `csv:"momentum"`

	// Solver invocations during window
	SolverSteps int `csv:"solver_steps"`

	// Regions by level at window end
	Statistical int `csv:"lod_statistical"`
	Galactic    int `csv:"lod_galactic"`
	Stellar     int `csv:"lod_stellar"`
	Planetary   int `csv:"lod_planetary"`
	Biosphere   int `csv:"lod_biosphere"`

	// Generated content
	LoadedStars   int `csv:"loaded_stars"`
	LoadedPlanets int `csv:"loaded_planets"`
	LifePlanets   int `csv:"life_planets"`
	Civilizations int `csv:"civilizations"`

	// Creatures
	Creatures int `csv:"creatures"`
	Births    int `csv:"births"` // during window
	Deaths    int `csv:"deaths"` // during window
	Lineages  int `csv:"lineages"`

	// Cross-cycle
	LedgerSize int `csv:"ledger_size"`
}

// Levels returns the region counts indexed by level of detail.
func (s WindowStats) Levels() []int {
	return []int{s.Statistical, s.Galactic, s.Stellar, s.Planetary, s.Biosphere}
}

// Distribution summarises a sample by its mean and empirical deciles.
type Distribution struct {
	Mean float64
	P10  float64
	P50  float64
	P90  float64
}

// Distribute summarises values without modifying them.
func Distribute(values []float64) Distribution {
	if len(values) == 0 {
		return Distribution{}
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	q := func(p float64) float64 {
		return stat.Quantile(p, stat.Empirical, sorted, nil)
	}
	return Distribution{Mean: stat.Mean(sorted, nil), P10: q(0.1), P50: q(0.5), P90: q(0.9)}
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("window_start", s.WindowStartTick),
		slog.Uint64("window_end", s.WindowEndTick),
		slog.Uint64("cycle", uint64(s.Cycle)),
		slog.Float64("age_gyr", s.Age),
		slog.String("phase", s.Phase),
		slog.Float64("scale_factor", s.ScaleFactor),
		slog.Float64("temperature", s.Temperature),
		slog.Float64("entropy", s.Entropy),
		slog.Float64("entropy_fraction", s.EntropyFraction),
		slog.Int("alive", s.Alive),
		slog.Int("dark_matter", s.DarkMatter),
		slog.Float64("speed_mean", s.SpeedMean),
		slog.Float64("speed_p50", s.SpeedP50),
		slog.Float64("momentum", s.Momentum),
		slog.Int("solver_steps", s.SolverSteps),
		slog.Int("lod_stellar", s.Stellar),
		slog.Int("lod_planetary", s.Planetary),
		slog.Int("lod_biosphere", s.Biosphere),
		slog.Int("loaded_stars", s.LoadedStars),
		slog.Int("life_planets", s.LifePlanets),
		slog.Int("civilizations", s.Civilizations),
		slog.Int("creatures", s.Creatures),
		slog.Int("births", s.Births),
		slog.Int("deaths", s.Deaths),
		slog.Int("lineages", s.Lineages),
		slog.Int("ledger_size", s.LedgerSize),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEndTick,
		"cycle", s.Cycle,
		"age_gyr", s.Age,
		"phase", s.Phase,
		"temperature", s.Temperature,
		"entropy_fraction", s.EntropyFraction,
		"alive", s.Alive,
		"speed_p50", s.SpeedP50,
		"solver_steps", s.SolverSteps,
		"lod_stellar", s.Stellar,
		"lod_planetary", s.Planetary,
		"lod_biosphere", s.Biosphere,
		"life_planets", s.LifePlanets,
		"civilizations", s.Civilizations,
		"creatures", s.Creatures,
		"births", s.Births,
		"deaths", s.Deaths,
		"ledger_size", s.LedgerSize,
	)
}
