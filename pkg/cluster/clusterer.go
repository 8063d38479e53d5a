package cluster

import (
	"math"
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/ChrisMcGann/mzannot/pkg/core"
)

// DefaultCorrelationCutoff is the correlation distance below which peaks of
// one RT group stay together.
const DefaultCorrelationCutoff = 0.4

// Clusterer runs RT partitioning followed by abundance-correlation refinement.
type Clusterer struct {
	Method            Method
	RTTolerance       float64
	CorrelationCutoff float64
	// Linkage used by the refinement; the zero value is Complete.
	Linkage Linkage
	Logger  *zap.SugaredLogger
}

// New returns a clusterer with the default cutoff and complete linkage.
func New(method Method, rtTol float64, log *zap.SugaredLogger) *Clusterer {
	return &Clusterer{
		Method:            method,
		RTTolerance:       rtTol,
		CorrelationCutoff: DefaultCorrelationCutoff,
		Linkage:           Complete,
		Logger:            log,
	}
}

// Cluster partitions peaks. Groups with several members are split by
// correlation distance and every resulting sub-group is kept, smaller ones
// first and the largest last.
func (c *Clusterer) Cluster(peaks []*core.Peak) [][]*core.Peak {
	method := c.Method
	if method == nil {
		method = DensityBased{}
	}
	log := c.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	rtGroups := method.Partition(peaks, c.RTTolerance)

	var out [][]*core.Peak
	split := 0
	for _, group := range rtGroups {
		if len(group) < 2 {
			out = append(out, group)
			continue
		}
		sub := pick(group, HierarchicalCut(CorrelationDistances(group), c.CorrelationCutoff, c.Linkage))
		sort.SliceStable(sub, func(i, j int) bool { return len(sub[i]) < len(sub[j]) })
		if len(sub) > 1 {
			split++
		}
		out = append(out, sub...)
	}

	log.Infow("clustering done",
		"method", method.Name(),
		"peaks", len(peaks),
		"rt_clusters", len(rtGroups),
		"split", split,
		"clusters", len(out))
	return out
}

// CorrelationDistances returns 1 - Pearson correlation between the abundance
// vectors of every pair of peaks, over the union of their sample names.
// Undefined correlations count as distance 1 and values are clipped to [0,1].
func CorrelationDistances(peaks []*core.Peak) [][]float64 {
	names := make(map[string]struct{})
	for _, p := range peaks {
		for s := range p.Areas {
			names[s] = struct{}{}
		}
	}
	samples := make([]string, 0, len(names))
	for s := range names {
		samples = append(samples, s)
	}
	sort.Strings(samples)

	vectors := make([][]float64, len(peaks))
	for i, p := range peaks {
		vectors[i] = p.AbundanceVector(samples)
	}

	dist := make([][]float64, len(peaks))
	for i := range dist {
		dist[i] = make([]float64, len(peaks))
	}
	for i := range peaks {
		for j := i + 1; j < len(peaks); j++ {
			d := 1.0
			if len(samples) > 1 {
				d = clip(1 - stat.Correlation(vectors[i], vectors[j], nil))
			}
			dist[i][j], dist[j][i] = d, d
		}
	}
	return dist
}

func clip(d float64) float64 {
	switch {
	case math.IsNaN(d):
		return 1
	case d < 0:
		return 0
	case d > 1:
		return 1
	}
	return d
}
