// Package cluster groups peaks that co-elute and refines the groups by the
// correlation of their per-sample abundances.
package cluster

import (
	"math"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/ChrisMcGann/mzannot/pkg/core"
)

// ErrUnknownMethod is returned by ParseMethod for unsupported names.
var ErrUnknownMethod = errors.New("unknown clustering method")

// Method partitions peaks by retention time. Every input peak appears in
// exactly one output group.
type Method interface {
	Name() string
	Partition(peaks []*core.Peak, rtTol float64) [][]*core.Peak
}

// ParseMethod returns the method registered under name. The numeric ids of
// older configuration files are accepted too.
func ParseMethod(name string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "basic", "1":
		return Basic{}, nil
	case "dbscan", "density", "2":
		return DensityBased{}, nil
	case "hierarchical", "3":
		return Hierarchical{}, nil
	}
	return nil, errors.Wrapf(ErrUnknownMethod, "%q", name)
}

// Basic grows each group from its first unassigned peak, adding every later
// unassigned peak whose RT lies strictly within rtTol/2 of the group's mean RT.
type Basic struct{}

func (Basic) Name() string { return "basic" }

func (Basic) Partition(peaks []*core.Peak, rtTol float64) [][]*core.Peak {
	half := rtTol * 0.5
	used := make([]bool, len(peaks))
	var out [][]*core.Peak

	for i, p := range peaks {
		if used[i] {
			continue
		}
		used[i] = true
		group := []*core.Peak{p}
		sum := p.RT

		for j := i + 1; j < len(peaks); j++ {
			if used[j] {
				continue
			}
			mean := sum / float64(len(group))
			if math.Abs(mean-peaks[j].RT) < half {
				used[j] = true
				group = append(group, peaks[j])
				sum += peaks[j].RT
			}
		}
		out = append(out, group)
	}
	return out
}

// Hierarchical cuts a complete-linkage tree over |dRT| at rtTol.
type Hierarchical struct{}

func (Hierarchical) Name() string { return "hierarchical" }

func (Hierarchical) Partition(peaks []*core.Peak, rtTol float64) [][]*core.Peak {
	dist := make([][]float64, len(peaks))
	for i := range dist {
		dist[i] = make([]float64, len(peaks))
		for j := range peaks {
			dist[i][j] = math.Abs(peaks[i].RT - peaks[j].RT)
		}
	}
	return pick(peaks, HierarchicalCut(dist, rtTol, Complete))
}

// DensityBased is DBSCAN over the RT axis with eps = rtTol and a minimum
// neighbourhood of one, so no peak is ever noise. In one dimension this
// reduces to splitting the sorted RTs wherever the gap exceeds eps.
type DensityBased struct{}

func (DensityBased) Name() string { return "dbscan" }

func (DensityBased) Partition(peaks []*core.Peak, rtTol float64) [][]*core.Peak {
	if len(peaks) == 0 {
		return nil
	}
	order := make([]int, len(peaks))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return peaks[order[a]].RT < peaks[order[b]].RT
	})

	var groups [][]int
	current := []int{order[0]}
	for _, i := range order[1:] {
		prev := current[len(current)-1]
		if peaks[i].RT-peaks[prev].RT > rtTol {
			groups = append(groups, current)
			current = nil
		}
		current = append(current, i)
	}
	groups = append(groups, current)

	for _, g := range groups {
		sort.Ints(g)
	}
	sort.Slice(groups, func(a, b int) bool { return groups[a][0] < groups[b][0] })
	return pick(peaks, groups)
}

func pick(peaks []*core.Peak, groups [][]int) [][]*core.Peak {
	out := make([][]*core.Peak, len(groups))
	for i, g := range groups {
		out[i] = make([]*core.Peak, len(g))
		for j, k := range g {
			out[i][j] = peaks[k]
		}
	}
	return out
}
