// Package core provides the peak arena shared by all annotation stages
package core

import (
	"sort"
)

// node holds one peak and its outgoing relationship edges.
type node struct {
	peak         *Peak
	isotopes     map[PeakID]struct{}
	adducts      map[PeakID]struct{}
	attributions []Attribution
	main         int // index into attributions, -1 when unset
}

// Graph is an arena of peaks addressed by PeakID. Relationships are stored
// as id sets on the owning node, so no peak references another directly.
//
// A Graph is not safe for concurrent use, except that goroutines working on
// disjoint sets of peaks may mutate those peaks' nodes concurrently.
type Graph struct {
	nodes []node
}

// NewGraph creates an empty graph with room for n peaks.
func NewGraph(n int) *Graph {
	return &Graph{nodes: make([]node, 0, n)}
}

// BuildGraph adds every peak in order and returns the graph.
func BuildGraph(peaks []*Peak) *Graph {
	g := NewGraph(len(peaks))
	for _, p := range peaks {
		g.Add(p)
	}
	return g
}

// Add stores a peak and assigns it the next id.
func (g *Graph) Add(p *Peak) PeakID {
	id := PeakID(len(g.nodes) + 1)
	p.ID = id
	if p.Charge <= 0 {
		p.Charge = 1
	}
	if p.Areas == nil {
		p.Areas = make(map[string]float64)
	}
	if p.Area == 0 {
		p.Area = p.RepresentativeArea()
	}
	g.nodes = append(g.nodes, node{
		peak:     p,
		isotopes: make(map[PeakID]struct{}),
		adducts:  make(map[PeakID]struct{}),
		main:     -1,
	})
	return id
}

func (g *Graph) node(id PeakID) *node {
	i := int(id) - 1
	if i < 0 || i >= len(g.nodes) {
		return nil
	}
	return &g.nodes[i]
}

// Len returns the number of peaks.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Peak returns the peak with the given id, or nil.
func (g *Graph) Peak(id PeakID) *Peak {
	if n := g.node(id); n != nil {
		return n.peak
	}
	return nil
}

// IDs returns every peak id in ascending order.
func (g *Graph) IDs() []PeakID {
	ids := make([]PeakID, len(g.nodes))
	for i := range g.nodes {
		ids[i] = PeakID(i + 1)
	}
	return ids
}

// Peaks returns every peak in id order.
func (g *Graph) Peaks() []*Peak {
	out := make([]*Peak, len(g.nodes))
	for i := range g.nodes {
		out[i] = g.nodes[i].peak
	}
	return out
}

// Select returns the peaks for the given ids, skipping unknown ids.
func (g *Graph) Select(ids []PeakID) []*Peak {
	out := make([]*Peak, 0, len(ids))
	for _, id := range ids {
		if p := g.Peak(id); p != nil {
			out = append(out, p)
		}
	}
	return out
}

// ---------------- attributions

// Attributions returns a copy of the peak's attribution set in insertion order.
func (g *Graph) Attributions(id PeakID) []Attribution {
	n := g.node(id)
	if n == nil {
		return nil
	}
	out := make([]Attribution, len(n.attributions))
	copy(out, n.attributions)
	return out
}

// MainAttribution returns the accepted attribution, if any.
func (g *Graph) MainAttribution(id PeakID) (Attribution, bool) {
	n := g.node(id)
	if n == nil || n.main < 0 {
		return Attribution{}, false
	}
	return n.attributions[n.main], true
}

// AttributionFor returns the attribution claiming the given parent. The main
// attribution wins, otherwise the first one inserted.
func (g *Graph) AttributionFor(id, parent PeakID) (Attribution, bool) {
	n := g.node(id)
	if n == nil {
		return Attribution{}, false
	}
	if n.main >= 0 && n.attributions[n.main].Parent == parent {
		return n.attributions[n.main], true
	}
	for _, a := range n.attributions {
		if a.Parent == parent {
			return a, true
		}
	}
	return Attribution{}, false
}

// AttributionAt returns the attribution claiming parent at the given charge.
func (g *Graph) AttributionAt(id, parent PeakID, charge int) (Attribution, bool) {
	n := g.node(id)
	if n == nil {
		return Attribution{}, false
	}
	for _, a := range n.attributions {
		if a.Parent == parent && a.Charge == charge {
			return a, true
		}
	}
	return Attribution{}, false
}

func (n *node) indexOf(a Attribution) int {
	for i, b := range n.attributions {
		if a == b {
			return i
		}
	}
	return -1
}

// AddAttribution inserts a into the attribution set. It reports whether the
// attribution was new. The main attribution is left untouched.
func (g *Graph) AddAttribution(id PeakID, a Attribution) bool {
	n := g.node(id)
	if n == nil || n.indexOf(a) >= 0 {
		return false
	}
	n.attributions = append(n.attributions, a)
	return true
}

// SetMainAttribution makes a the main attribution, inserting it into the set
// when needed. A previous main attribution stays in the set.
func (g *Graph) SetMainAttribution(id PeakID, a Attribution) {
	n := g.node(id)
	if n == nil {
		return
	}
	i := n.indexOf(a)
	if i < 0 {
		n.attributions = append(n.attributions, a)
		i = len(n.attributions) - 1
	}
	n.main = i
}

// ClearMainAttribution marks the peak as having no accepted relationship,
// i.e. monoisotopic. Its attributions are kept as alternatives.
func (g *Graph) ClearMainAttribution(id PeakID) {
	if n := g.node(id); n != nil {
		n.main = -1
	}
}

// RemoveAttributionWithParent drops every attribution claiming parent. When
// the main attribution is removed, the first remaining one becomes main.
func (g *Graph) RemoveAttributionWithParent(id, parent PeakID) {
	n := g.node(id)
	if n == nil {
		return
	}
	var main *Attribution
	if n.main >= 0 {
		m := n.attributions[n.main]
		main = &m
	}
	kept := n.attributions[:0]
	for _, a := range n.attributions {
		if a.Parent != parent {
			kept = append(kept, a)
		}
	}
	n.attributions = kept

	n.main = -1
	switch {
	case main != nil && main.Parent != parent:
		n.main = n.indexOf(*main)
	case main != nil && len(n.attributions) > 0:
		n.main = 0
	}
}

// ---------------- isotopes and adducts

func sortedIDs(set map[PeakID]struct{}) []PeakID {
	ids := make([]PeakID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Isotopes returns the ids the peak governs as isotopes, ascending.
func (g *Graph) Isotopes(id PeakID) []PeakID {
	n := g.node(id)
	if n == nil {
		return nil
	}
	return sortedIDs(n.isotopes)
}

// IsotopesByMZ returns the peak's isotopes ordered by m/z, then id.
func (g *Graph) IsotopesByMZ(id PeakID) []PeakID {
	ids := g.Isotopes(id)
	sort.SliceStable(ids, func(i, j int) bool {
		return g.Peak(ids[i]).MZ < g.Peak(ids[j]).MZ
	})
	return ids
}

// HasIsotope reports whether iso is in the isotope set of parent.
func (g *Graph) HasIsotope(parent, iso PeakID) bool {
	n := g.node(parent)
	if n == nil {
		return false
	}
	_, ok := n.isotopes[iso]
	return ok
}

// AddIsotope adds iso to the isotope set of parent. A peak is never its own
// isotope.
func (g *Graph) AddIsotope(parent, iso PeakID) {
	if parent == iso {
		return
	}
	if n := g.node(parent); n != nil && g.node(iso) != nil {
		n.isotopes[iso] = struct{}{}
	}
}

// RemoveIsotope removes iso from the isotope set of parent.
func (g *Graph) RemoveIsotope(parent, iso PeakID) {
	if n := g.node(parent); n != nil {
		delete(n.isotopes, iso)
	}
}

// SetIsotopes replaces the isotope set of parent.
func (g *Graph) SetIsotopes(parent PeakID, isos []PeakID) {
	n := g.node(parent)
	if n == nil {
		return
	}
	n.isotopes = make(map[PeakID]struct{}, len(isos))
	for _, iso := range isos {
		g.AddIsotope(parent, iso)
	}
}

// Adducts returns the ids the peak governs as adducts or fragments, ascending.
func (g *Graph) Adducts(id PeakID) []PeakID {
	n := g.node(id)
	if n == nil {
		return nil
	}
	return sortedIDs(n.adducts)
}

// AddAdduct adds a to the adduct/fragment set of parent.
func (g *Graph) AddAdduct(parent, a PeakID) {
	if parent == a {
		return
	}
	if n := g.node(parent); n != nil && g.node(a) != nil {
		n.adducts[a] = struct{}{}
	}
}

// IsotopeOwners returns, for every peak held in some isotope set, the ids of
// the peaks holding it.
func (g *Graph) IsotopeOwners() map[PeakID][]PeakID {
	owners := make(map[PeakID][]PeakID)
	for i := range g.nodes {
		parent := PeakID(i + 1)
		for _, iso := range sortedIDs(g.nodes[i].isotopes) {
			owners[iso] = append(owners[iso], parent)
		}
	}
	return owners
}
