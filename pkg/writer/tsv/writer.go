// Package tsv writes annotation reports as tab-separated text
package tsv

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/ChrisMcGann/mzannot/pkg/core"
)

// Header is the report column layout.
var Header = []string{
	"id", "mz", "time",
	"Main putative tag",
	"Main tag pattern composition",
	"Putative secondary attributions",
	"Putative annotation",
	"Putative formula",
	"inChi",
	"DatabaseID",
	"Isotopic pattern matching score",
	"Annotation assignment probability",
	"Annotation pattern composition",
}

// Writer emits one row per candidate annotation, or a single row with empty
// annotation columns for a peak without candidates.
type Writer struct {
	w           *csv.Writer
	wroteHeader bool
}

// NewWriter creates a report writer on out
func NewWriter(out io.Writer) *Writer {
	cw := csv.NewWriter(out)
	cw.Comma = '\t'
	return &Writer{w: cw}
}

// WritePeak writes the rows of one peak
func (w *Writer) WritePeak(g *core.Graph, id core.PeakID) error {
	p := g.Peak(id)
	if p == nil {
		return errors.Newf("unknown peak %d", id)
	}
	if !w.wroteHeader {
		if err := w.w.Write(Header); err != nil {
			return errors.Wrap(err, "failed to write header")
		}
		w.wroteHeader = true
	}

	prefix := []string{
		strconv.Itoa(int(id)),
		formatFloat(p.MZ),
		formatFloat(p.RT),
		g.PutativeAttribution(id),
		g.PatternComposition(id),
		g.AlternativeTrees(id),
	}
	isotopes := isotopePattern(g, id)

	if len(p.Annotations) == 0 {
		row := append(prefix, "", "", "", "", "", "", isotopes)
		return errors.Wrapf(w.w.Write(row), "failed to write peak %d", id)
	}

	for _, a := range p.Annotations {
		m := a.Metabolite
		row := make([]string, 0, len(Header))
		row = append(row, prefix...)
		row = append(row,
			a.Adduct+": "+m.Name,
			m.Formula,
			m.InChIKey,
			databaseIDs(m),
			formatFloat(a.IsotopeScore),
			formatFloat(a.NetworkScore),
			isotopes,
		)
		if err := w.w.Write(row); err != nil {
			return errors.Wrapf(err, "failed to write peak %d", id)
		}
	}
	return nil
}

// WriteGraph writes every peak of g in id order and flushes
func (w *Writer) WriteGraph(g *core.Graph) error {
	for _, id := range g.IDs() {
		if err := w.WritePeak(g, id); err != nil {
			return err
		}
	}
	return w.Flush()
}

// Flush writes any buffered rows to the underlying writer
func (w *Writer) Flush() error {
	w.w.Flush()
	return errors.Wrap(w.w.Error(), "failed to flush report")
}

// isotopePattern lists the isotopes of id as "2=Isotope C13;3=Isotope S34"
func isotopePattern(g *core.Graph, id core.PeakID) string {
	var parts []string
	for _, iso := range g.IsotopesByMZ(id) {
		label := ""
		if a, ok := g.AttributionFor(iso, id); ok {
			label = a.Label
		}
		parts = append(parts, strconv.Itoa(int(iso))+"="+label)
	}
	return strings.Join(parts, ";")
}

func databaseIDs(m core.Metabolite) string {
	return strings.Join([]string{
		"HMDB_ID=" + m.HMDBID,
		"KEGG_ID=" + m.KEGGID,
		"LMDS=" + m.LipidMapsID,
	}, ";")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
