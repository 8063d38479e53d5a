// Package core provides attribution and annotation records
package core

import "fmt"

// MonoisotopeLabel marks a peak explicitly judged to be monoisotopic.
const MonoisotopeLabel = "monoisotope"

// Attribution records that a peak is Label of peak Parent at Charge.
type Attribution struct {
	Label  string
	Parent PeakID
	Charge int
}

func (a Attribution) String() string {
	return fmt.Sprintf("%s of %d for charge=%d", a.Label, a.Parent, a.Charge)
}

// Metabolite is a reference compound returned by a mass-match collaborator.
type Metabolite struct {
	ID          string
	Name        string
	Formula     string
	InChIKey    string
	MonoMass    float64
	KEGGID      string
	HMDBID      string
	LipidMapsID string
}

// CompoundID returns the identifier used to look the compound up in a
// reaction network.
func (m Metabolite) CompoundID() string {
	switch {
	case m.KEGGID != "":
		return m.KEGGID
	case m.HMDBID != "":
		return m.HMDBID
	case m.LipidMapsID != "":
		return m.LipidMapsID
	default:
		return m.ID
	}
}

// Annotation is one candidate metabolite for a peak.
type Annotation struct {
	Metabolite Metabolite
	// Adduct is the ion form used for the match, e.g. "[M-H]".
	Adduct string
	// ObservedMass is the neutral mass of the peak the match was made with.
	ObservedMass float64

	IsotopeScore float64
	NetworkScore float64
}

// Adduct strings by polarity.
const (
	AdductProtonated   = "[M+H]"
	AdductDeprotonated = "[M-H]"
)

// DefaultAdduct returns the ion form a peak of the given polarity is matched as.
func DefaultAdduct(p Polarity) string {
	if p < 0 {
		return AdductDeprotonated
	}
	return AdductProtonated
}
