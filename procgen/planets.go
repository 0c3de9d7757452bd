package procgen

import (
	"math"

	"github.com/google/uuid"

	"github.com/pthm-cable/multiverse/components"
	"github.com/pthm-cable/multiverse/config"
	"github.com/pthm-cable/multiverse/rng"
	"github.com/pthm-cable/multiverse/soul"
	"github.com/pthm-cable/multiverse/traits"
)

// PlanetType is the closed set of planet classes.
type PlanetType uint8

const (
	Rocky PlanetType = iota
	Ocean
	Frozen
	Lava
	GasGiant
	IceGiant

	NumPlanetTypes = 6
)

var planetTypeNames = [NumPlanetTypes]string{"rocky", "ocean", "frozen", "lava", "gas_giant", "ice_giant"}

func (t PlanetType) String() string {
	if t < NumPlanetTypes {
		return planetTypeNames[t]
	}
	return "unknown"
}

// Atmosphere is the closed set of atmosphere compositions.
type Atmosphere uint8

const (
	AtmosphereNone Atmosphere = iota
	AtmosphereThinCO2
	AtmosphereThickCO2
	AtmosphereNitrogenOxygen
	AtmosphereMethane
	AtmosphereHydrogen
	AtmosphereExotic

	NumAtmospheres = 7
)

var atmosphereNames = [NumAtmospheres]string{"none", "thin_co2", "thick_co2", "nitrogen_oxygen", "methane", "hydrogen", "exotic"}

func (a Atmosphere) String() string {
	if a < NumAtmospheres {
		return atmosphereNames[a]
	}
	return "unknown"
}

// Present reports whether there is any atmosphere.
func (a Atmosphere) Present() bool {
	return a != AtmosphereNone
}

// TransmitsLight reports whether starlight reaches the surface.
func (a Atmosphere) TransmitsLight() bool {
	switch a {
	case AtmosphereNone, AtmosphereThinCO2, AtmosphereNitrogenOxygen, AtmosphereThickCO2:
		return true
	}
	return false
}

// Planet thresholds.
const (
	GasGiantMass        = 100.0 // Earth masses
	IceGiantMass        = 15.0
	IceGiantTemperature = 150.0 // K, ice giants condense below this
	LavaTemperature     = 500.0
	FrozenTemperature   = 200.0
	OceanMinMass        = 0.5
	OceanChance         = 0.3
	NitrogenOxygenOdds  = 0.3

	AtmosphereMinMass   = 0.3
	AtmosphereMaxTemp   = 2000.0
	ExoticTemperature   = 1000.0
	ThickCO2Temperature = 400.0
	WaterMinTemp        = 240.0
	WaterMaxTemp        = 400.0

	HabitableMinTemp = 200.0
	HabitableMaxTemp = 400.0
)

// Planet is a generated planet.
type Planet struct {
	Index         int        `json:"index"`
	Seed          uint64     `json:"seed"`
	OrbitalRadius float64    `json:"orbital_radius"` // AU
	OrbitalPeriod float64    `json:"orbital_period"` // years
	OrbitalAngle  float64    `json:"orbital_angle"`  // radians
	Mass          float64    `json:"mass"`           // Earth masses
	Radius        float64    `json:"radius"`         // Earth radii
	Temperature   float64    `json:"temperature"`    // K
	Type          PlanetType `json:"type"`
	Atmosphere    Atmosphere `json:"atmosphere"`
	Water         bool       `json:"water"`
	Habitable     bool       `json:"habitable"`
	Life          bool       `json:"life"`
	Complexity    float64    `json:"complexity"` // 0-10
	Biosphere     *Biosphere `json:"biosphere,omitempty"`
}

// Genome returns the dominant genome, or nil when the planet is lifeless.
func (p *Planet) Genome() *traits.Genome {
	if p.Biosphere == nil {
		return nil
	}
	return &p.Biosphere.Genome
}

// SurfaceGravity returns gravity relative to Earth.
func (p *Planet) SurfaceGravity() float64 {
	if p.Radius <= 0 {
		return 0
	}
	return p.Mass / (p.Radius * p.Radius)
}

// Params holds the generation tunables.
type Params struct {
	UniverseSeed       uint64
	Life               config.LifeConfig
	Genome             config.GenomeConfig
	StabilityThreshold float64
}

// ParamsFromConfig builds Params from configuration.
func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		UniverseSeed:       cfg.Derived.Seed,
		Life:               cfg.Life,
		Genome:             cfg.Genome,
		StabilityThreshold: cfg.Soul.StabilityThreshold,
	}
}

// SoulSource provides cross-cycle lineage history during genome synthesis.
type SoulSource interface {
	Lookup(lineage uuid.UUID) (soul.Soul, bool)
}

// OrbitalRadius returns the orbit of planet index before jitter.
func OrbitalRadius(index int) float64 {
	return 0.2 * math.Pow(1.5, float64(index))
}

// PlanetRadius returns the radius in Earth radii for mass in Earth masses.
func PlanetRadius(mass float64) float64 {
	switch {
	case mass < 2:
		return math.Pow(mass, 0.27)
	case mass < GasGiantMass:
		return 2 * math.Pow(mass, 0.06)
	}
	return 11 * math.Pow(mass, -0.04)
}

// EquilibriumTemperature returns the surface temperature for a host
// luminosity (solar units) and orbital radius (AU).
func EquilibriumTemperature(luminosity, orbit float64) float64 {
	return 278 * math.Pow(luminosity, 0.25) / math.Sqrt(math.Max(orbit, 0.01))
}

// Classify assigns the planet type. oceanWorld is the outcome of the ocean
// coin flip and only matters for water-bearing planets.
func Classify(mass, temperature float64, water, oceanWorld bool) PlanetType {
	switch {
	case mass > GasGiantMass:
		return GasGiant
	case mass > IceGiantMass && temperature < IceGiantTemperature:
		return IceGiant
	case temperature > LavaTemperature:
		return Lava
	case temperature < FrozenTemperature:
		return Frozen
	case water && oceanWorld && mass > OceanMinMass:
		return Ocean
	}
	return Rocky
}

// HabitabilityEligible reports whether life emergence is evaluated at all:
// the temperature lies strictly inside the habitable band, water is present
// and there is an atmosphere.
func HabitabilityEligible(temperature float64, water bool, atm Atmosphere) bool {
	return temperature > HabitableMinTemp && temperature < HabitableMaxTemp && water && atm.Present()
}

// chooseAtmosphere applies the atmosphere rules. coin is drawn by the caller
// unconditionally so the stream position does not depend on the branch.
func chooseAtmosphere(coin float64, mass, temperature float64) (Atmosphere, bool) {
	if mass <= AtmosphereMinMass || temperature >= AtmosphereMaxTemp {
		return AtmosphereNone, false
	}
	water := temperature >= WaterMinTemp && temperature <= WaterMaxTemp
	switch {
	case mass > GasGiantMass:
		return AtmosphereHydrogen, water
	case water:
		if coin < NitrogenOxygenOdds {
			return AtmosphereNitrogenOxygen, true
		}
		return AtmosphereThinCO2, true
	case temperature > ExoticTemperature:
		return AtmosphereExotic, false
	case temperature > ThickCO2Temperature:
		return AtmosphereThickCO2, false
	}
	return AtmosphereMethane, false
}

// Planets generates the planets of a star in a universe of the given age
// (Gyr). ref carries the region and star handles; the planet handle is
// filled per planet. A star without planets yields nil.
func Planets(star Star, age float64, ref components.PlanetRef, p Params, souls SoulSource) []Planet {
	if star.PlanetCount == 0 {
		return nil
	}
	planets := make([]Planet, star.PlanetCount)
	for i := range planets {
		ref.Planet = i
		planets[i] = GeneratePlanet(star, i, age, ref, p, souls)
	}
	return planets
}

// GeneratePlanet generates one planet from the star's seed and the planet
// index. Physical properties, life and genome use separate streams. Life
// has had the universe age less the habitable delay to emerge.
func GeneratePlanet(star Star, index int, age float64, ref components.PlanetRef, p Params, souls SoulSource) Planet {
	seed := rng.Derive(star.Seed, "planet", index)
	r := rng.New(seed)

	orbit := math.Max(OrbitalRadius(index)+rng.Range(r, -0.1, 0.1), 0.05)
	angle := rng.Range(r, 0, 2*math.Pi)
	mass := math.Pow(10, rng.Range(r, -1, 3.5))
	temp := EquilibriumTemperature(star.Luminosity, orbit)

	atm, water := chooseAtmosphere(r.Float64(), mass, temp)
	oceanWorld := rng.Chance(r, OceanChance)

	pl := Planet{
		Index:         index,
		Seed:          seed,
		OrbitalRadius: orbit,
		OrbitalPeriod: math.Pow(orbit, 1.5),
		OrbitalAngle:  angle,
		Mass:          mass,
		Radius:        PlanetRadius(mass),
		Temperature:   temp,
		Type:          Classify(mass, temp, water, oceanWorld),
		Atmosphere:    atm,
		Water:         water,
	}
	pl.Habitable = HabitabilityEligible(temp, water, atm)
	if !pl.Habitable {
		return pl
	}

	lifeAge := age - p.Life.HabitableDelay
	if lifeAge <= 0 {
		return pl
	}
	lr := rng.For(seed, "life")
	if !rng.Chance(lr, LifeProbability(temp, pl.Type, lifeAge, p.Life)) {
		return pl
	}

	pl.Life = true
	complexity, stage := EvolveBiosphere(lr, lifeAge, pl.Type)
	pl.Complexity = complexity

	lineage := soul.LineageID(p.UniverseSeed, ref)
	env := Environment{
		Type:        pl.Type,
		Atmosphere:  atm,
		Temperature: temp,
		Complexity:  complexity,
	}
	var bias *Bias
	if souls != nil {
		if s, ok := souls.Lookup(lineage); ok {
			bias = &Bias{Prior: s.Genome, Stability: s.Stability, Threshold: p.StabilityThreshold}
		}
	}
	genome := SynthesizeGenome(rng.For(seed, "genome"), env, bias, p.Genome)

	pl.Biosphere = &Biosphere{
		Age:        lifeAge,
		Stage:      stage,
		Species:    speciesCount(lr, complexity),
		Biomass:    math.Pow(complexity, 1.5) * rng.Range(lr, 0.1, 5),
		Technology: genome.Cognition > TechnologyCognition && complexity >= TechnologyComplexity,
		Lineage:    lineage,
		Genome:     genome,
		Conditions: Conditions(&pl, star.Luminosity),
	}
	return pl
}

// Conditions returns the extreme conditions a lineage on the planet endures.
func Conditions(p *Planet, starLuminosity float64) soul.Condition {
	var c soul.Condition
	if p.Temperature > 350 {
		c = c.Add(soul.ConditionScorching)
	}
	if p.Temperature < 220 {
		c = c.Add(soul.ConditionFrigid)
	}
	g := p.SurfaceGravity()
	if g > 2 {
		c = c.Add(soul.ConditionHighGravity)
	}
	if g < 0.4 {
		c = c.Add(soul.ConditionLowGravity)
	}
	switch p.Atmosphere {
	case AtmosphereNone, AtmosphereThinCO2:
		c = c.Add(soul.ConditionThinAir)
	case AtmosphereMethane, AtmosphereHydrogen, AtmosphereExotic, AtmosphereThickCO2:
		c = c.Add(soul.ConditionToxicAir)
	}
	if p.Type == Ocean {
		c = c.Add(soul.ConditionOceanic)
	}
	if starLuminosity < 0.05 {
		c = c.Add(soul.ConditionDimStar)
	}
	if starLuminosity > 10 {
		c = c.Add(soul.ConditionBrightStar)
	}
	return c
}
