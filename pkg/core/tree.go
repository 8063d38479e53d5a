// Package core provides textual renderings of attribution trees for reports
package core

import (
	"fmt"
	"strconv"
	"strings"
)

// TopDownTree renders the isotopes and adducts governed by id, recursively,
// as "(2=Isotope C13);(5=[M+Na]:(6=Isotope C13))". It also returns the
// number of isotopes and adducts found in the whole tree.
func (g *Graph) TopDownTree(id PeakID) (string, int, int) {
	root := g.Peak(id)
	if root == nil {
		return "", 0, 0
	}
	visited := map[PeakID]bool{id: true}
	s, nIsos, nAdducts := g.branch(id, 0, id, root.Charge, visited)
	s = strings.TrimSuffix(s, ";")
	s = strings.ReplaceAll(s, ";)", ")")
	s = strings.ReplaceAll(s, ";;", ";")
	return s, nIsos, nAdducts
}

func (g *Graph) branch(root, parent, son PeakID, charge int, visited map[PeakID]bool) (string, int, int) {
	var b strings.Builder
	if son != root {
		label := ""
		if a, ok := g.AttributionFor(son, parent); ok {
			label = a.Label
		} else if a, ok := g.MainAttribution(son); ok {
			label = a.Label
		}
		b.WriteString(strconv.Itoa(int(son)))
		b.WriteString("=")
		b.WriteString(label)
	}

	var children []PeakID
	nIsos, nAdducts := 0, 0
	for _, iso := range g.Isotopes(son) {
		if a, ok := g.AttributionFor(iso, son); ok && a.Charge != charge {
			continue
		}
		if !visited[iso] {
			children = append(children, iso)
			nIsos++
		}
	}
	for _, add := range g.Adducts(son) {
		if !visited[add] {
			children = append(children, add)
			nAdducts++
		}
	}
	if len(children) == 0 {
		return b.String(), nIsos, nAdducts
	}

	if son != root {
		b.WriteString(":")
	}
	for _, c := range children {
		visited[c] = true
	}
	for _, c := range children {
		sub, q, r := g.branch(root, son, c, charge, visited)
		b.WriteString("(")
		b.WriteString(sub)
		b.WriteString(");")
		nIsos += q
		nAdducts += r
	}
	return b.String(), nIsos, nAdducts
}

// BottomUpTree renders the chain of main attributions from id up to its
// monoisotopic ancestor, e.g. "Isotope C13 of 4 for charge=1 of [M+Na] of 1 for charge=1".
// It returns "" for peaks without a main attribution.
func (g *Graph) BottomUpTree(id PeakID) string {
	a, ok := g.MainAttribution(id)
	if !ok {
		return ""
	}
	return g.chain(a, id)
}

// AlternativeTrees renders every non-main attribution of id as a bottom-up
// chain, joined by ";".
func (g *Graph) AlternativeTrees(id PeakID) string {
	main, hasMain := g.MainAttribution(id)
	var parts []string
	for _, a := range g.Attributions(id) {
		if hasMain && a == main {
			continue
		}
		parts = append(parts, g.chain(a, id))
	}
	return strings.Join(parts, ";")
}

func (g *Graph) chain(a Attribution, from PeakID) string {
	var b strings.Builder
	b.WriteString(a.String())
	seen := map[PeakID]bool{from: true}
	p := a.Parent
	for !seen[p] {
		seen[p] = true
		m, ok := g.MainAttribution(p)
		if !ok {
			break
		}
		b.WriteString(" of ")
		b.WriteString(m.String())
		p = m.Parent
	}
	return b.String()
}

// PutativeAttribution summarises what a peak is believed to be: the label
// of its main attribution, or "monoisotope + N isotope(s)+M adduct(s)/fragment(s)"
// for a monoisotopic peak governing others.
func (g *Graph) PutativeAttribution(id PeakID) string {
	if a, ok := g.MainAttribution(id); ok {
		return a.Label
	}
	_, nIsos, nAdducts := g.TopDownTree(id)
	if nIsos == 0 && nAdducts == 0 {
		return ""
	}
	s := "monoisotope + "
	if nIsos > 0 {
		s += fmt.Sprintf("%d isotope(s)", nIsos)
	}
	if nAdducts > 0 {
		if nIsos > 0 {
			s += "+"
		}
		s += fmt.Sprintf("%d adduct(s)/fragment(s)", nAdducts)
	}
	return s
}

// PatternComposition returns the top-down tree of a monoisotopic peak or the
// bottom-up chain of any other peak.
func (g *Graph) PatternComposition(id PeakID) string {
	if _, ok := g.MainAttribution(id); ok {
		return g.BottomUpTree(id)
	}
	s, _, _ := g.TopDownTree(id)
	return s
}
