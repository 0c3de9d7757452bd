// Package cosmology holds the universe clock and the pure cosmological
// equations that drive it: scale factor, background temperature, Hubble
// parameter per phase, star formation rate and chemical composition.
package cosmology

import "math"

// PresentAge is the reference age (Gyr) at which a(t) = 1.
const PresentAge = 13.8

// Temperature constants.
const (
	CMBTemperature    = 2.725 // K at a = 1
	PlasmaTemperature = 1e12  // K floor override while a < PlasmaScaleFactor
	PlasmaScaleFactor = 1e-10
)

// HeatDeathFraction of the configured maximum entropy triggers HeatDeath.
const HeatDeathFraction = 0.9

// Star formation history.
const (
	StarFormationOnset = 0.4  // Gyr
	StarFormationPeak  = 3.3  // Gyr
	StarFormationMax   = 0.15 // rate at peak
	StarFormationDecay = 0.12 // per Gyr after peak
)

// Composition history.
const (
	PrimordialHydrogen = 0.75
	PrimordialHelium   = 0.25
	MaxMetallicity     = 0.02
	EnrichmentSpan     = 13.0 // Gyr to reach MaxMetallicity
)

// ScaleFactor returns a(t): matter dominated before PresentAge, dark-energy
// dominated after.
func ScaleFactor(age float64) float64 {
	if age <= 0 {
		return 0
	}
	if age < PresentAge {
		return math.Pow(age/PresentAge, 2.0/3.0)
	}
	return math.Exp((age - PresentAge) * 0.07)
}

// Temperature returns the cosmic background temperature for scale factor a.
func Temperature(a float64) float64 {
	if a < PlasmaScaleFactor {
		return PlasmaTemperature
	}
	return CMBTemperature / a
}

// StarFormationRate returns the relative star formation rate at age.
func StarFormationRate(age float64) float64 {
	switch {
	case age < StarFormationOnset:
		return 0
	case age < StarFormationPeak:
		return StarFormationMax * math.Pow(age/StarFormationPeak, 2.5)
	}
	return StarFormationMax * math.Exp(-StarFormationDecay*(age-StarFormationPeak))
}

// CumulativeStarFormation integrates StarFormationRate over [0, age].
func CumulativeStarFormation(age float64) float64 {
	if age <= StarFormationOnset {
		return 0
	}
	rising := func(t float64) float64 {
		return StarFormationMax * StarFormationPeak / 3.5 * math.Pow(t/StarFormationPeak, 3.5)
	}
	end := math.Min(age, StarFormationPeak)
	total := rising(end) - rising(StarFormationOnset)
	if age > StarFormationPeak {
		total += StarFormationMax / StarFormationDecay * (1 - math.Exp(-StarFormationDecay*(age-StarFormationPeak)))
	}
	return total
}

// Composition holds chemical mass fractions. They always sum to 1.
type Composition struct {
	Hydrogen float64 `json:"hydrogen"`
	Helium   float64 `json:"helium"`
	Metals   float64 `json:"metals"`
}

// CompositionAt returns the cosmic composition at age. Metals rise linearly
// from zero at star formation onset to MaxMetallicity over EnrichmentSpan.
func CompositionAt(age float64) Composition {
	var z float64
	if age > StarFormationOnset {
		z = MaxMetallicity * math.Min((age-StarFormationOnset)/EnrichmentSpan, 1)
	}
	return Composition{
		Hydrogen: PrimordialHydrogen - 0.6*z,
		Helium:   PrimordialHelium - 0.4*z,
		Metals:   z,
	}
}
