// Package procgen derives stars, planets, atmospheres, life and genomes from
// a region's seed and the universe age. Every function is pure given its
// inputs; all randomness comes from streams derived through package rng.
package procgen

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/pthm-cable/multiverse/cosmology"
	"github.com/pthm-cable/multiverse/rng"
)

// Initial mass function.
const (
	imfScale    = 0.3 // Pareto minimum
	imfAlpha    = 1.3
	imfFloor    = 0.08 // hydrogen burning limit, solar masses
	maxStarMass = 100.0
)

// SolarTemperature is the surface temperature of a one solar mass star.
const SolarTemperature = 5778.0

// MaxPlanetsPerStar bounds the planet count draw.
const MaxPlanetsPerStar = 11

// SpectralClass is the seven-bucket stellar classification, hottest first.
type SpectralClass uint8

const (
	ClassO SpectralClass = iota
	ClassB
	ClassA
	ClassF
	ClassG
	ClassK
	ClassM

	NumSpectralClasses = 7
)

// classMinTemp is the lower temperature bound of each class.
var classMinTemp = [NumSpectralClasses]float64{30000, 10000, 7500, 6000, 5200, 3700, 0}

var classColors = [NumSpectralClasses][3]uint8{
	{155, 176, 255},
	{170, 191, 255},
	{202, 215, 255},
	{248, 247, 255},
	{255, 244, 234},
	{255, 210, 161},
	{255, 204, 111},
}

// ClassFor returns the spectral class for a surface temperature.
func ClassFor(temperature float64) SpectralClass {
	for c := ClassO; c < ClassM; c++ {
		if temperature >= classMinTemp[c] {
			return c
		}
	}
	return ClassM
}

func (c SpectralClass) String() string {
	if c < NumSpectralClasses {
		return string("OBAFGKM"[c])
	}
	return "?"
}

// Color returns the display color as RGB.
func (c SpectralClass) Color() [3]uint8 {
	if c < NumSpectralClasses {
		return classColors[c]
	}
	return classColors[ClassM]
}

// Star is a generated star. The spectral class is derived from Temperature
// on demand and never stored.
type Star struct {
	Index       int      `json:"index"`
	Seed        uint64   `json:"seed"`
	Pos         r3.Vec   `json:"pos"`         // Mpc
	Mass        float64  `json:"mass"`        // solar masses
	Luminosity  float64  `json:"luminosity"`  // solar luminosities
	Temperature float64  `json:"temperature"` // K
	Age         float64  `json:"age"`         // Gyr
	PlanetCount int      `json:"planet_count"`
	Planets     []Planet `json:"planets,omitempty"`
}

// Class returns the star's spectral class.
func (s *Star) Class() SpectralClass {
	return ClassFor(s.Temperature)
}

// Luminosity returns L = M^3.5 in solar units.
func Luminosity(mass float64) float64 {
	return math.Pow(mass, 3.5)
}

// SurfaceTemperature returns the stellar surface temperature for mass and
// luminosity.
func SurfaceTemperature(mass, luminosity float64) float64 {
	return SolarTemperature * math.Pow(luminosity/(mass*mass), 0.25)
}

// Stars generates count stars for a region.
func Stars(regionSeed uint64, center r3.Vec, size, age float64, count int) []Star {
	stars := make([]Star, count)
	for i := range stars {
		stars[i] = GenerateStar(regionSeed, i, center, size, age)
	}
	return stars
}

// GenerateStar generates star index of a region. Each star owns its stream,
// so a star is reproducible without generating its siblings.
func GenerateStar(regionSeed uint64, index int, center r3.Vec, size, age float64) Star {
	seed := rng.Derive(regionSeed, "star", index)
	r := rng.New(seed)

	half := size / 2
	pos := r3.Vec{
		X: center.X + rng.Range(r, -half, half),
		Y: center.Y + rng.Range(r, -half, half),
		Z: center.Z + rng.Range(r, -half, half),
	}

	imf := distuv.Pareto{Xm: imfScale, Alpha: imfAlpha, Src: r}
	mass := math.Min(imfFloor+imf.Rand(), maxStarMass)
	lum := Luminosity(mass)

	return Star{
		Index:       index,
		Seed:        seed,
		Pos:         pos,
		Mass:        mass,
		Luminosity:  lum,
		Temperature: SurfaceTemperature(mass, lum),
		Age:         rng.Range(r, 0, math.Max(age, 0.1)),
		PlanetCount: rng.IntRange(r, 0, MaxPlanetsPerStar),
	}
}

// StarsPerMpc3 converts cumulative star formation to a star count per Mpc³.
const StarsPerMpc3 = 1e9

// Summary is a region's statistical description.
type Summary struct {
	Density     float64               `json:"density"`
	Composition cosmology.Composition `json:"composition"`
	Temperature float64               `json:"temperature"`
	StarCount   int64                 `json:"star_count"`
	PlanetCount int64                 `json:"planet_count"`
}

// Density bounds relative to the cosmic average.
const (
	MinDensity = 0.3
	MaxDensity = 3.0
)

// Density draws the region's density factor from a log-normal distribution
// around the cosmic average, clamped to [MinDensity, MaxDensity].
func Density(regionSeed uint64, sigma float64) float64 {
	d := distuv.LogNormal{Mu: 0, Sigma: sigma, Src: rng.For(regionSeed, "density")}
	return min(max(d.Rand(), MinDensity), MaxDensity)
}

// Summarize computes the age-dependent statistics for a region of the given
// density and edge length.
func Summarize(regionSeed uint64, density, size, age float64) Summary {
	stars := cosmology.CumulativeStarFormation(age) * density * size * size * size * StarsPerMpc3
	perStar := rng.Range(rng.For(regionSeed, "planet-estimate"), 1, 8)
	return Summary{
		Density:     density,
		Composition: cosmology.CompositionAt(age),
		Temperature: cosmology.Temperature(cosmology.ScaleFactor(age)),
		StarCount:   int64(stars),
		PlanetCount: int64(stars * perStar),
	}
}
