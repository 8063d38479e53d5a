// Package index provides binned nearest-neighbour lookup of peaks by m/z
package index

import (
	"math"
	"sort"

	"github.com/ChrisMcGann/mzannot/pkg/core"
)

// DefaultBinSize is the width of one m/z bin in daltons.
const DefaultBinSize = 1.0

// MassIndex answers "which peak is nearest to this m/z" queries.
// It is immutable: build a new index whenever the peak set changes.
type MassIndex struct {
	bins       map[int][]*core.Peak
	invBinSize float64
	minMZ      float64
	maxMZ      float64
	n          int
}

// New builds an index over peaks. A non-positive bin size uses DefaultBinSize.
func New(peaks []*core.Peak, binSize float64) *MassIndex {
	if binSize <= 0 {
		binSize = DefaultBinSize
	}

	sorted := make([]*core.Peak, len(peaks))
	copy(sorted, peaks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MZ < sorted[j].MZ
	})

	idx := &MassIndex{
		bins:       make(map[int][]*core.Peak),
		invBinSize: 1.0 / binSize,
		n:          len(sorted),
	}
	if len(sorted) == 0 {
		return idx
	}
	idx.minMZ, idx.maxMZ = sorted[0].MZ, sorted[len(sorted)-1].MZ

	for _, p := range sorted {
		b := idx.bin(p.MZ)
		idx.bins[b] = append(idx.bins[b], p)
	}
	return idx
}

func (idx *MassIndex) bin(mz float64) int {
	return int(math.Floor(mz * idx.invBinSize))
}

// Len returns the number of indexed peaks.
func (idx *MassIndex) Len() int {
	return idx.n
}

// Nearest returns the peak closest to mz if it lies strictly within tolPPM,
// or nil.
func (idx *MassIndex) Nearest(mz, tolPPM float64) *core.Peak {
	return idx.NearestWhere(mz, tolPPM, nil)
}

// NearestWhere is Nearest restricted to peaks accepted by the predicate.
// Equal distances resolve to the higher m/z, then to the lowest peak id.
func (idx *MassIndex) NearestWhere(mz, tolPPM float64, accept func(*core.Peak) bool) *core.Peak {
	if idx.n == 0 || mz < idx.minMZ || mz > idx.maxMZ {
		return nil
	}

	tolDa := core.ToleranceDa(mz, tolPPM)
	b := idx.bin(mz)

	var best *core.Peak
	bestDiff := math.Inf(1)
	for i := b - 1; i <= b+1; i++ {
		for _, p := range idx.bins[i] {
			if accept != nil && !accept(p) {
				continue
			}
			d := math.Abs(p.MZ - mz)
			if d < bestDiff || (d == bestDiff && preferred(p, best)) {
				best, bestDiff = p, d
			}
		}
	}

	if best == nil || bestDiff >= tolDa {
		return nil
	}
	return best
}

func preferred(p, than *core.Peak) bool {
	if than == nil {
		return true
	}
	if p.MZ != than.MZ {
		return p.MZ > than.MZ
	}
	return p.ID < than.ID
}
