// Package core provides adduct and fragment definition tables
package core

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// AdductDef is one adduct or fragment relationship. Delta is the m/z shift
// that leads from the adduct/fragment peak to its parent peak:
// parent m/z = peak m/z + Delta.
type AdductDef struct {
	Label string
	Delta float64
}

// AdductTable stores adduct and fragment definitions in insertion order.
type AdductTable struct {
	defs []AdductDef
	seen map[string]int // label -> index
}

// NewAdductTable creates an empty table.
func NewAdductTable() *AdductTable {
	return &AdductTable{seen: make(map[string]int)}
}

// LoadFromCSV loads definitions from a CSV file (format: name,formula,charge,delta).
// The first line is a header. Only the name and the fourth column are used.
func (t *AdductTable) LoadFromCSV(r io.Reader) error {
	scanner := bufio.NewScanner(r)

	// Skip header line
	if scanner.Scan() {
		// header line
	}

	lineNum := 1
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) < 4 {
			return fmt.Errorf("line %d: invalid format, expected at least 4 comma-separated fields", lineNum)
		}

		name := strings.TrimSpace(parts[0])
		deltaStr := strings.TrimSpace(parts[3])

		delta, err := strconv.ParseFloat(deltaStr, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid mass value '%s': %w", lineNum, deltaStr, err)
		}

		t.Add(name, delta)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading CSV: %w", err)
	}

	return nil
}

// Add adds or updates a definition
func (t *AdductTable) Add(label string, delta float64) {
	if i, ok := t.seen[label]; ok {
		t.defs[i].Delta = delta
		return
	}
	t.seen[label] = len(t.defs)
	t.defs = append(t.defs, AdductDef{Label: label, Delta: delta})
}

// Get returns the delta for a label
func (t *AdductTable) Get(label string) (float64, bool) {
	i, ok := t.seen[label]
	if !ok {
		return 0, false
	}
	return t.defs[i].Delta, true
}

// Definitions returns a copy of the definitions in insertion order.
func (t *AdductTable) Definitions() []AdductDef {
	out := make([]AdductDef, len(t.defs))
	copy(out, t.defs)
	return out
}

// Len returns the number of definitions.
func (t *AdductTable) Len() int {
	return len(t.defs)
}

// Merge appends the definitions of other.
func (t *AdductTable) Merge(other *AdductTable) {
	for _, d := range other.defs {
		t.Add(d.Label, d.Delta)
	}
}

// DefaultFragments returns neutral losses observed in both polarities.
func DefaultFragments() *AdductTable {
	t := NewAdductTable()

	t.Add("Fragment -H2O", 18.010565)
	t.Add("Fragment -NH3", 17.026549)
	t.Add("Fragment -CO2", 43.989829)
	t.Add("Fragment -HCOOH", 46.005479)
	t.Add("Fragment -H3PO4", 97.976895)

	return t
}

// DefaultAdducts returns common adducts for the given polarity, expressed
// relative to the [M+H]+ or [M-H]- ion.
func DefaultAdducts(p Polarity) *AdductTable {
	t := NewAdductTable()

	if p < 0 {
		t.Add("[M+Cl]", -35.976129)
		t.Add("[M+HCOO]", -46.005479)
		t.Add("[M+CH3COO]", -60.021129)
		t.Add("[M+Na-2H]", -21.981943)
		t.Add("[M+K-2H]", -37.955882)
		return t
	}

	t.Add("[M+Na]", -21.981943)
	t.Add("[M+K]", -37.955882)
	t.Add("[M+NH4]", -17.026549)
	t.Add("[M+H+CH3OH]", -32.026215)
	t.Add("[M+H+CH3CN]", -41.026549)
	return t
}

// MassesToCheck returns the definitions the adduct resolver should try.
// Direct infusion experiments only look for fragments.
func MassesToCheck(p Polarity, directInfusion bool) *AdductTable {
	t := NewAdductTable()
	if !directInfusion {
		t.Merge(DefaultAdducts(p))
	}
	t.Merge(DefaultFragments())
	return t
}
