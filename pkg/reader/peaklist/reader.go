// Package peaklist provides a streaming reader for tab-separated peak tables
// as exported by XCMS-like feature detection tools
package peaklist

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/ChrisMcGann/mzannot/pkg/core"
)

// Required column names
var requiredColumns = []string{"mz", "mzmin", "mzmax", "rt", "rtmin", "rtmax"}

// ModeColumn optionally carries the polarity of each row.
const ModeColumn = "Mode"

// ignoredColumns are bookkeeping columns that are not samples
var ignoredColumns = map[string]bool{
	"":                         true,
	"npeaks":                   true,
	"BIO":                      true,
	"mzmed":                    true,
	"rt.minutes":               true,
	"rt.min":                   true,
	"Var":                      true,
	"Blc.Ext":                  true,
	"BLC":                      true,
	"Correlation_Dilution_Log": true,
	"NOT_M.QC":                 true,
	"NOT_M.Blc":                true,
	"NOT_QC.Blc":               true,
	"NOT_CV..":                 true,
	"NOT_CV":                   true,
	"NOT_Correl":               true,
	"Correl":                   true,
	"NOT_BIO.Blc":              true,
	"NOT_nom":                  true,
	"Negatifs":                 true,
}

// Reader provides streaming access to peak tables
type Reader struct {
	scanner  *bufio.Scanner
	polarity core.Polarity
	lineNum  int

	columns  map[string]int
	samples  map[int]string
	mode     int
	nColumns int

	current *core.Peak
	err     error
}

// NewReader creates a new peak table reader. Rows without a Mode column get
// the given polarity.
func NewReader(r io.Reader, polarity core.Polarity) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	return &Reader{
		scanner:  scanner,
		polarity: polarity,
		mode:     -1,
	}
}

// Samples returns the sample column names in file order. It is only valid
// after the first call to Next.
func (r *Reader) Samples() []string {
	out := make([]string, 0, len(r.samples))
	for i := 0; i < r.nColumns; i++ {
		if name, ok := r.samples[i]; ok {
			out = append(out, name)
		}
	}
	return out
}

// Next advances to the next peak. Returns false when no more peaks or error.
func (r *Reader) Next() bool {
	r.current = nil
	if r.err != nil {
		return false
	}

	if r.columns == nil {
		if err := r.readHeader(); err != nil {
			if err != io.EOF {
				r.err = err
			}
			return false
		}
	}

	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimRight(r.scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		peak, err := r.parseRow(strings.Split(line, "\t"))
		if err != nil {
			r.err = errors.Wrapf(err, "line %d", r.lineNum)
			return false
		}
		r.current = peak
		return true
	}

	if err := r.scanner.Err(); err != nil {
		r.err = errors.Wrap(err, "reading peak table")
	}
	return false
}

// Peak returns the current peak
func (r *Reader) Peak() *core.Peak {
	return r.current
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

// readHeader maps the column names of the first non-empty line
func (r *Reader) readHeader() error {
	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimRight(r.scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		r.nColumns = len(fields)
		r.columns = make(map[string]int, len(fields))
		r.samples = make(map[int]string)
		for i, f := range fields {
			name := strings.Trim(strings.TrimSpace(f), `"`)
			r.columns[name] = i
		}

		for _, c := range requiredColumns {
			if _, ok := r.columns[c]; !ok {
				return errors.Newf("line %d: missing column %q", r.lineNum, c)
			}
		}

		required := make(map[string]bool, len(requiredColumns))
		for _, c := range requiredColumns {
			required[c] = true
		}
		for name, i := range r.columns {
			switch {
			case name == ModeColumn:
				r.mode = i
			case required[name], ignoredColumns[name]:
			default:
				r.samples[i] = name
			}
		}
		return nil
	}

	if err := r.scanner.Err(); err != nil {
		return errors.Wrap(err, "reading peak table header")
	}
	return io.EOF
}

// parseRow builds a peak from one data line
func (r *Reader) parseRow(fields []string) (*core.Peak, error) {
	if len(fields) < r.nColumns {
		return nil, errors.Newf("expected %d fields, got %d", r.nColumns, len(fields))
	}

	values := make([]float64, len(requiredColumns))
	for i, c := range requiredColumns {
		v, err := parseFloat(fields[r.columns[c]])
		if err != nil {
			return nil, errors.Wrapf(err, "invalid %s", c)
		}
		values[i] = v
	}

	p := core.NewPeak(values[0], values[1], values[2], values[3], values[4], values[5])
	p.Polarity = r.polarity
	if r.mode >= 0 {
		p.Polarity = parseMode(fields[r.mode])
	}

	for i, name := range r.samples {
		raw := strings.TrimSpace(fields[i])
		if raw == "" || strings.EqualFold(raw, "NA") {
			continue
		}
		area, err := parseFloat(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid area for sample %s", name)
		}
		p.Areas[name] = area
	}
	p.Area = p.RepresentativeArea()

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// parseMode reads the Mode column. "Positif" is the spelling written by
// the upstream pipeline; every value that does not read as positive is
// negative.
func parseMode(s string) core.Polarity {
	if p, err := core.ParsePolarity(s); err == nil && p == core.Positive {
		return core.Positive
	}
	return core.Negative
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.Trim(strings.TrimSpace(s), `"`), 64)
}

// ReadAll reads every peak of r
func ReadAll(r io.Reader, polarity core.Polarity) ([]*core.Peak, error) {
	reader := NewReader(r, polarity)
	var peaks []*core.Peak
	for reader.Next() {
		peaks = append(peaks, reader.Peak())
	}
	if err := reader.Err(); err != nil {
		return nil, err
	}
	return peaks, nil
}
