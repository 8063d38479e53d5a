package inference

import "sort"

// Reaction lists the compounds a compound is made from and turned into.
type Reaction struct {
	Reactants []string `yaml:"reactants" json:"reactants"`
	Products  []string `yaml:"products" json:"products"`
}

// Network maps a compound id to its reactions. Compounds missing from the
// network have no links.
type Network map[string]Reaction

// Linked returns the distinct compounds sharing a reaction with compound,
// sorted.
func (n Network) Linked(compound string) []string {
	r, ok := n[compound]
	if !ok {
		return nil
	}
	set := make(map[string]struct{}, len(r.Reactants)+len(r.Products))
	for _, c := range r.Reactants {
		set[c] = struct{}{}
	}
	for _, c := range r.Products {
		set[c] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Add merges the reactants and products of r into the entry for compound.
func (n Network) Add(compound string, r Reaction) {
	cur := n[compound]
	cur.Reactants = append(cur.Reactants, r.Reactants...)
	cur.Products = append(cur.Products, r.Products...)
	n[compound] = cur
}
