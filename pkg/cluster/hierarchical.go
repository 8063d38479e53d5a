package cluster

import (
	"math"
)

// Linkage selects how the distance between two clusters is derived from
// the distances between their members.
type Linkage int

const (
	// Complete uses the largest member distance.
	Complete Linkage = iota
	// Average uses the mean member distance.
	Average
)

func (l Linkage) String() string {
	if l == Average {
		return "average"
	}
	return "complete"
}

// HierarchicalCut clusters n items agglomeratively from a symmetric n x n
// distance matrix and cuts the tree at cut: items end up together when they
// are joined at a height <= cut. It returns groups of item indexes, each
// ascending, ordered by their first index.
//
// The tree is built with the nearest-neighbour chain algorithm, which is
// exact for complete and average linkage and runs in O(n^2).
func HierarchicalCut(dist [][]float64, cut float64, linkage Linkage) [][]int {
	n := len(dist)
	if n == 0 {
		return nil
	}

	d := make([][]float64, n)
	for i := range d {
		d[i] = make([]float64, n)
		copy(d[i], dist[i])
	}
	size := make([]int, n)
	active := make([]bool, n)
	for i := range size {
		size[i] = 1
		active[i] = true
	}

	uf := newUnionFind(n)
	chain := make([]int, 0, n)
	remaining := n

	for remaining > 1 {
		if len(chain) == 0 {
			for i := range active {
				if active[i] {
					chain = append(chain, i)
					break
				}
			}
		}

		a := chain[len(chain)-1]
		prev := -1
		if len(chain) > 1 {
			prev = chain[len(chain)-2]
		}

		// Prefer the previous chain element on ties so the chain terminates.
		b, best := prev, math.Inf(1)
		if prev >= 0 {
			best = d[a][prev]
		}
		for k := range active {
			if !active[k] || k == a || k == prev {
				continue
			}
			if b < 0 || d[a][k] < best {
				b, best = k, d[a][k]
			}
		}

		if b != prev {
			chain = append(chain, b)
			continue
		}

		chain = chain[:len(chain)-2]
		if best <= cut {
			uf.union(a, b)
		}

		// Merge b into a.
		for k := range active {
			if !active[k] || k == a || k == b {
				continue
			}
			var nd float64
			switch linkage {
			case Average:
				nd = (float64(size[a])*d[a][k] + float64(size[b])*d[b][k]) / float64(size[a]+size[b])
			default:
				nd = math.Max(d[a][k], d[b][k])
			}
			d[a][k], d[k][a] = nd, nd
		}
		size[a] += size[b]
		active[b] = false
		remaining--
	}

	return uf.groups()
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return &unionFind{parent: p}
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if rb < ra {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
}

// groups lists the sets ordered by their smallest member.
func (u *unionFind) groups() [][]int {
	at := make(map[int]int)
	var out [][]int
	for i := range u.parent {
		r := u.find(i)
		g, ok := at[r]
		if !ok {
			g = len(out)
			at[r] = g
			out = append(out, nil)
		}
		out[g] = append(out[g], i)
	}
	return out
}
