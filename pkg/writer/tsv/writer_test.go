package tsv

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/mzannot/pkg/core"
)

func TestWriteGraph(t *testing.T) {
	g := core.NewGraph(3)
	for _, mz := range []float64{179.0561, 180.0595, 201.0381} {
		p := core.NewPeak(mz, mz, mz, 60, 58, 62)
		p.Polarity = core.Negative
		g.Add(p)
	}
	iso := core.Attribution{Label: "Isotope C13", Parent: 1, Charge: 1}
	g.SetMainAttribution(2, iso)
	g.AddIsotope(1, 2)
	g.AddAttribution(3, core.Attribution{Label: "[M+Na]", Parent: 1, Charge: 1})

	g.Peak(1).Annotations = []*core.Annotation{
		{
			Metabolite:   core.Metabolite{ID: "HMDB0000122", Name: "D-Glucose", Formula: "C6H12O6", InChIKey: "WQZGKKKJIJFFOK-GASJEMHNSA-N", KEGGID: "C00031", HMDBID: "HMDB0000122"},
			Adduct:       core.AdductDeprotonated,
			IsotopeScore: 0.5,
			NetworkScore: 0.8,
		},
		{
			Metabolite:   core.Metabolite{ID: "HMDB0000660", Name: "D-Fructose", Formula: "C6H12O6", KEGGID: "C00095"},
			Adduct:       core.AdductDeprotonated,
			NetworkScore: 0.2,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf).WriteGraph(g))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 5, "header, two annotation rows for peak 1, one row each for peaks 2 and 3")
	assert.Equal(t, strings.Join(Header, "\t"), lines[0])

	first := strings.Split(lines[1], "\t")
	require.Len(t, first, len(Header))
	assert.Equal(t, []string{
		"1", "179.0561", "60",
		"monoisotope + 1 isotope(s)",
		"(2=Isotope C13)",
		"",
		"[M-H]: D-Glucose",
		"C6H12O6",
		"WQZGKKKJIJFFOK-GASJEMHNSA-N",
		"HMDB_ID=HMDB0000122;KEGG_ID=C00031;LMDS=",
		"0.5",
		"0.8",
		"2=Isotope C13",
	}, first)

	second := strings.Split(lines[2], "\t")
	assert.Equal(t, "1", second[0], "peak columns repeat for every annotation")
	assert.Equal(t, "[M-H]: D-Fructose", second[6])

	isoRow := strings.Split(lines[3], "\t")
	require.Len(t, isoRow, len(Header))
	assert.Equal(t, "Isotope C13", isoRow[3])
	assert.Equal(t, "Isotope C13 of 1 for charge=1", isoRow[4])
	assert.Empty(t, isoRow[6])

	alt := strings.Split(lines[4], "\t")
	assert.Equal(t, "[M+Na] of 1 for charge=1", alt[5])
}

func TestWritePeakUnknown(t *testing.T) {
	var buf bytes.Buffer
	err := NewWriter(&buf).WritePeak(core.NewGraph(0), 3)
	assert.ErrorContains(t, err, "unknown peak 3")
}
