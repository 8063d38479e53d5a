// Package core provides the in-memory peak graph, its records and validation
// logic shared by every annotation stage.
package core

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrInvalidPeak marks peaks rejected by Validate.
var ErrInvalidPeak = errors.New("invalid peak")

// PeakID identifies a peak inside a Graph. IDs start at 1.
type PeakID int

// Polarity is the ionisation mode a peak was acquired in.
type Polarity int

const (
	Negative Polarity = -1
	Unknown  Polarity = 0
	Positive Polarity = 1
)

// String returns the polarity symbol used in reports.
func (p Polarity) String() string {
	switch {
	case p < 0:
		return "-"
	case p > 0:
		return "+"
	default:
		return "?"
	}
}

// ParsePolarity accepts "negative", "positive", "-", "+", "-1" and "1".
func ParsePolarity(s string) (Polarity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "negative", "neg", "negatif", "-", "-1":
		return Negative, nil
	case "positive", "pos", "positif", "+", "1", "+1":
		return Positive, nil
	}
	return Unknown, errors.Newf("unknown polarity %q", s)
}

// Peak represents a single elution peak (peakel) with its per-sample areas.
type Peak struct {
	ID    PeakID
	MZ    float64
	MZMin float64
	MZMax float64
	RT    float64
	RTMin float64
	RTMax float64

	// Areas maps sample name to integrated area.
	Areas map[string]float64
	// Area is the representative area, see RepresentativeArea.
	Area float64

	Charge   int
	Polarity Polarity

	// Annotations are candidate metabolite matches, filled by a mass-match
	// collaborator and scored in place.
	Annotations []*Annotation
}

// NewPeak creates a charge 1 peak with an empty area table.
func NewPeak(mz, mzMin, mzMax, rt, rtMin, rtMax float64) *Peak {
	return &Peak{
		MZ:     mz,
		MZMin:  mzMin,
		MZMax:  mzMax,
		RT:     rt,
		RTMin:  rtMin,
		RTMax:  rtMax,
		Areas:  make(map[string]float64),
		Charge: 1,
	}
}

// ValidationError represents an error found during peak validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

// Is lets errors.Is(err, ErrInvalidPeak) match validation failures.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidPeak
}

// Validate checks that a peak can enter the annotation pipeline.
func (p *Peak) Validate() error {
	var errs []string

	if math.IsNaN(p.MZ) || math.IsInf(p.MZ, 0) || p.MZ <= 0 {
		errs = append(errs, "m/z must be a positive finite number")
	}
	if math.IsNaN(p.RT) || math.IsInf(p.RT, 0) {
		errs = append(errs, "retention time must be finite")
	}
	if p.Charge <= 0 {
		errs = append(errs, "charge must be positive")
	}
	for name, area := range p.Areas {
		if math.IsNaN(area) || math.IsInf(area, 0) {
			errs = append(errs, fmt.Sprintf("sample %s has invalid area", name))
		}
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return &ValidationError{
			Field:   p.Name(),
			Message: strings.Join(errs, "; "),
		}
	}
	return nil
}

// SetArea records the area of one sample and refreshes the representative area.
func (p *Peak) SetArea(sample string, area float64) {
	if p.Areas == nil {
		p.Areas = make(map[string]float64)
	}
	p.Areas[sample] = area
	p.Area = p.RepresentativeArea()
}

// RepresentativeArea returns the median sample area, or the mean when the
// median is zero.
func (p *Peak) RepresentativeArea() float64 {
	if len(p.Areas) == 0 {
		return 0
	}
	values := make([]float64, 0, len(p.Areas))
	sum := 0.0
	for _, v := range p.Areas {
		values = append(values, v)
		sum += v
	}
	sort.Float64s(values)

	n := len(values)
	median := values[n/2]
	if n%2 == 0 {
		median = (values[n/2-1] + values[n/2]) / 2
	}
	if median == 0 {
		return sum / float64(n)
	}
	return median
}

// SampleNames returns the sample names in sorted order.
func (p *Peak) SampleNames() []string {
	names := make([]string, 0, len(p.Areas))
	for name := range p.Areas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AbundanceVector returns the areas for the given samples; missing samples
// count as zero.
func (p *Peak) AbundanceVector(samples []string) []float64 {
	v := make([]float64, len(samples))
	for i, s := range samples {
		v[i] = p.Areas[s]
	}
	return v
}

// NeutralMass returns the neutral mass of the molecule behind this peak.
func (p *Peak) NeutralMass() float64 {
	return NeutralMass(p.MZ, p.Charge, p.Polarity)
}

// Metabolites returns the metabolites of the peak annotations.
func (p *Peak) Metabolites() []Metabolite {
	out := make([]Metabolite, len(p.Annotations))
	for i, a := range p.Annotations {
		out[i] = a.Metabolite
	}
	return out
}

// Name returns the peak name in format "id@mz/rt"
func (p *Peak) Name() string {
	return fmt.Sprintf("%d@%.4f/%.2f", p.ID, p.MZ, p.RT)
}
