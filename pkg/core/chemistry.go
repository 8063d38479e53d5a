// Package core provides chemistry constants and mass calculations used to
// relate elution peaks to each other.
package core

import "math"

// Atomic masses (monoisotopic)
const (
	MassH = 1.0078250321
	MassC = 12.0000000000
	MassN = 14.0030740052
	MassO = 15.9949146221
	MassS = 31.9720706900
	MassP = 30.9737615100

	// Proton mass for charge calculations
	ProtonMass = 1.007276
)

// Averagine-like isotope spacing: the j-th isotope of an ion sits at
// mz + (IsotopeSlope*j + IsotopeOffset) / z.
const (
	IsotopeSlope  = 1.000857
	IsotopeOffset = 0.001091
)

// IsotopeKind is a named heavy-isotope mass shift.
type IsotopeKind struct {
	Label string
	Shift float64
}

// IsotopeKinds lists the isotope shifts used to label envelope members.
// Bromine (79/81) is left out: it appears in roughly 0.2% of HMDB entries.
var IsotopeKinds = []IsotopeKind{
	{Label: "Isotope C13", Shift: 1.003355},
	{Label: "Isotope N15", Shift: 0.997035},
	{Label: "Isotope S34", Shift: 1.995796},
}

// IsotopeShift returns the expected neutral mass shift of the j-th isotope.
func IsotopeShift(j int) float64 {
	return IsotopeSlope*float64(j) + IsotopeOffset
}

// TheoreticalIsotopeMZ returns the m/z where the j-th isotope of an ion at
// mz with the given charge is expected.
func TheoreticalIsotopeMZ(mz float64, j, charge int) float64 {
	return mz + IsotopeShift(j)/float64(charge)
}

// IsotopeLabel returns the label of the isotope kind whose shift is nearest
// to the given mass shift. Ties keep table order.
func IsotopeLabel(shift float64) string {
	best := IsotopeKinds[0]
	bestDiff := math.Abs(shift - best.Shift)
	for _, k := range IsotopeKinds[1:] {
		if d := math.Abs(shift - k.Shift); d < bestDiff {
			best, bestDiff = k, d
		}
	}
	return best.Label
}

// NeutralMass converts an observed m/z into the neutral mass of the molecule,
// assuming protonation (positive mode) or deprotonation (negative mode).
func NeutralMass(mz float64, charge int, polarity Polarity) float64 {
	if charge <= 0 {
		charge = 1
	}
	m := mz * float64(charge)
	chargeMass := float64(charge) * ProtonMass
	if polarity < 0 {
		return m + chargeMass
	}
	return m - chargeMass
}

// ToleranceDa converts a ppm tolerance into daltons at the given mass.
func ToleranceDa(mass, ppm float64) float64 {
	return ppm * mass / 1e6
}

// RoundFloat rounds a float to n decimal places
func RoundFloat(val float64, precision int) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}
