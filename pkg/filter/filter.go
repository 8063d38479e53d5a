// Package filter provides peak list filtering applied before annotation
package filter

import (
	"sort"

	"github.com/ChrisMcGann/mzannot/pkg/core"
)

// Config holds filtering configuration
type Config struct {
	MinArea         float64 // Drop peaks whose representative area is below this value (0 = no minimum)
	RTMin           float64 // Drop peaks eluting before this time (0 = no lower bound)
	RTMax           float64 // Drop peaks eluting after this time (0 = no upper bound)
	IntensityCutoff float64 // Keep only peaks above this % of the most abundant peak (0 = no cutoff)
	TopN            int     // Keep only the N most abundant peaks (0 = no limit)
}

// Apply applies all configured filters and returns the kept peaks in their
// original order. The input slice is not modified.
func (c *Config) Apply(peaks []*core.Peak) []*core.Peak {
	kept := make([]*core.Peak, 0, len(peaks))
	for _, p := range peaks {
		if c.keep(p) {
			kept = append(kept, p)
		}
	}

	// Apply intensity filters
	if c.IntensityCutoff > 0 {
		kept = c.filterByIntensity(kept)
	}

	// Apply top-N filter
	if c.TopN > 0 {
		kept = c.filterTopN(kept)
	}

	return kept
}

// keep checks the per-peak thresholds
func (c *Config) keep(p *core.Peak) bool {
	if c.MinArea > 0 && p.Area < c.MinArea {
		return false
	}
	if c.RTMin > 0 && p.RT < c.RTMin {
		return false
	}
	if c.RTMax > 0 && p.RT > c.RTMax {
		return false
	}
	return true
}

// filterByIntensity removes peaks below the cutoff percentage of the largest area
func (c *Config) filterByIntensity(peaks []*core.Peak) []*core.Peak {
	if len(peaks) == 0 {
		return peaks
	}

	// Find maximum area
	maxArea := 0.0
	for _, p := range peaks {
		if p.Area > maxArea {
			maxArea = p.Area
		}
	}

	// Calculate threshold
	threshold := (c.IntensityCutoff / 100.0) * maxArea

	var filtered []*core.Peak
	for _, p := range peaks {
		if p.Area >= threshold {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

// filterTopN keeps only the N most abundant peaks, preserving input order
func (c *Config) filterTopN(peaks []*core.Peak) []*core.Peak {
	if len(peaks) <= c.TopN {
		return peaks
	}

	// Rank a copy by area descending
	ranked := make([]*core.Peak, len(peaks))
	copy(ranked, peaks)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Area > ranked[j].Area
	})

	top := make(map[*core.Peak]bool, c.TopN)
	for _, p := range ranked[:c.TopN] {
		top[p] = true
	}

	var filtered []*core.Peak
	for _, p := range peaks {
		if top[p] {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

// RemoveZeroAreaSamples drops samples with zero or negative area and
// refreshes the representative area
func RemoveZeroAreaSamples(p *core.Peak) {
	for name, area := range p.Areas {
		if area <= 0 {
			delete(p.Areas, name)
		}
	}
	p.Area = p.RepresentativeArea()
}
