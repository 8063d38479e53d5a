// Package isotope detects isotope envelopes among peaks and resolves peaks
// claimed by more than one monoisotopic parent.
package isotope

import (
	"math"
	"slices"
	"sort"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/ChrisMcGann/mzannot/pkg/core"
	"github.com/ChrisMcGann/mzannot/pkg/index"
)

// Config holds isotope search parameters.
type Config struct {
	TolPPM      float64 // m/z tolerance
	RTTolerance float64 // isotopes must elute within RTTolerance/2 of their parent
	MaxCharge   int
	MaxIsotopes int // isotope indexes tried per charge
	MaxGap      int // consecutive misses allowed before an envelope stops (0 acts as 1)
	BinSize     float64
}

// DefaultConfig returns the settings used by the annotate command.
func DefaultConfig() Config {
	return Config{
		TolPPM:      10,
		RTTolerance: 6,
		MaxCharge:   2,
		MaxIsotopes: 3,
		MaxGap:      1,
		BinSize:     index.DefaultBinSize,
	}
}

// Validate rejects settings the resolver cannot run with.
func (c Config) Validate() error {
	switch {
	case !(c.TolPPM > 0):
		return errors.Newf("isotope tolerance must be positive, got %v ppm", c.TolPPM)
	case c.RTTolerance < 0 || math.IsNaN(c.RTTolerance):
		return errors.Newf("isotope rt tolerance must not be negative, got %v", c.RTTolerance)
	case c.MaxCharge < 1:
		return errors.Newf("max charge must be at least 1, got %d", c.MaxCharge)
	case c.MaxIsotopes < 1:
		return errors.Newf("max isotopes must be at least 1, got %d", c.MaxIsotopes)
	case c.MaxGap < 0:
		return errors.Newf("max gap must not be negative, got %d", c.MaxGap)
	}
	return nil
}

// Result splits the resolved peaks into monoisotopic roots and isotopes.
type Result struct {
	Roots    []core.PeakID
	Isotopes []core.PeakID

	// Conflicts counts peaks claimed by several parents.
	Conflicts int
	// Promoted counts claimed peaks turned back into monoisotopic peaks.
	Promoted int
}

// Resolver finds isotope envelopes. It mutates the graph in place and is
// not safe for concurrent use on the same graph.
type Resolver struct {
	cfg Config
	log *zap.SugaredLogger
}

// NewResolver validates cfg and returns a resolver. A nil logger disables logging.
func NewResolver(cfg Config, log *zap.SugaredLogger) (*Resolver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid isotope configuration")
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Resolver{cfg: cfg, log: log}, nil
}

// member is one isotope found for a candidate parent.
type member struct {
	id    core.PeakID
	label string
}

// run carries the state of one Resolve call.
type run struct {
	*Resolver
	g   *core.Graph
	idx *index.MassIndex

	// parents maps an isotope to the peaks currently claiming it, ascending.
	parents map[core.PeakID][]core.PeakID
	res     Result
}

// Resolve processes ids in the given order. Later peaks see the claims made
// by earlier ones, so the order must be stable (ascending id is typical).
func (r *Resolver) Resolve(g *core.Graph, ids []core.PeakID) Result {
	st := &run{
		Resolver: r,
		g:        g,
		idx:      index.New(g.Select(ids), r.cfg.BinSize),
		parents:  make(map[core.PeakID][]core.PeakID),
	}

	for _, id := range ids {
		if p := g.Peak(id); p != nil {
			st.process(p)
		}
	}
	st.settle()

	seen := make(map[core.PeakID]bool, len(ids))
	for _, id := range ids {
		if seen[id] || g.Peak(id) == nil {
			continue
		}
		seen[id] = true
		if len(st.parents[id]) > 0 {
			st.res.Isotopes = append(st.res.Isotopes, id)
		} else {
			st.res.Roots = append(st.res.Roots, id)
		}
	}

	r.log.Infow("isotope resolution done",
		"peaks", len(ids),
		"roots", len(st.res.Roots),
		"isotopes", len(st.res.Isotopes),
		"conflicts", st.res.Conflicts,
		"promoted", st.res.Promoted)
	return st.res
}

// envelope collects the isotopes of p at one charge.
func (st *run) envelope(p *core.Peak, charge int) []member {
	maxGap := st.cfg.MaxGap
	if maxGap < 1 {
		maxGap = 1
	}
	halfRT := st.cfg.RTTolerance * 0.5
	inWindow := func(c *core.Peak) bool {
		return c.ID != p.ID && math.Abs(c.RT-p.RT) < halfRT
	}

	var found []member
	gap := 0
	descending := false
	last := p
	for j := 1; j <= st.cfg.MaxIsotopes; j++ {
		target := core.TheoreticalIsotopeMZ(p.MZ, j, charge)
		c := st.idx.NearestWhere(target, st.cfg.TolPPM, inWindow)
		if c == nil {
			gap++
			if gap >= maxGap {
				break
			}
			continue
		}
		// The first isotope may outshine the monoisotope; after that the
		// envelope must not rise again.
		if descending && c.Area > last.Area {
			break
		}
		found = append(found, member{id: c.ID, label: core.IsotopeLabel(core.IsotopeShift(j))})
		descending = true
		last = c
	}
	return found
}

func (st *run) process(p *core.Peak) {
	detected := len(st.parents[p.ID]) > 0

	envelopes := make([][]member, st.cfg.MaxCharge+1)
	bestCharge, selected := 1, []member(nil)
	for z := 1; z <= st.cfg.MaxCharge; z++ {
		envelopes[z] = st.envelope(p, z)
		if len(envelopes[z]) > len(selected) {
			bestCharge, selected = z, envelopes[z]
		}
	}

	if len(selected) == 0 {
		if detected && len(st.parents[p.ID]) > 1 {
			st.res.Conflicts++
			st.keepBestOwner(p.ID)
		}
		return
	}

	p.Charge = bestCharge
	for _, m := range selected {
		st.g.SetMainAttribution(m.id, core.Attribution{Label: m.label, Parent: p.ID, Charge: bestCharge})
		st.claim(p.ID, m.id)
	}
	// Hits at the other charges stay as alternatives.
	for z, env := range envelopes {
		if z == bestCharge {
			continue
		}
		for _, m := range env {
			st.g.AddAttribution(m.id, core.Attribution{Label: m.label, Parent: p.ID, Charge: z})
		}
	}

	if detected {
		st.resolveParents(p, selected)
	}
}

type candidate struct {
	parent  core.PeakID
	size    int
	promote bool
}

// resolveParents handles a peak that owns an envelope while being claimed as
// an isotope by earlier peaks.
func (st *run) resolveParents(p *core.Peak, selected []member) {
	parents := append([]core.PeakID(nil), st.parents[p.ID]...)
	if len(parents) > 1 {
		st.res.Conflicts++
	}

	var best *candidate
	for _, par := range parents {
		c := candidate{parent: par}
		if st.g.Peak(par).Charge == p.Charge {
			union := make(map[core.PeakID]bool)
			for _, iso := range st.g.Isotopes(par) {
				union[iso] = true
			}
			for _, m := range selected {
				union[m.id] = true
			}
			c.size = len(union)
		} else {
			c.size = len(selected)
			c.promote = true
		}
		if best == nil || c.size > best.size {
			cc := c
			best = &cc
		}
	}

	if best.promote {
		var demoted []core.Attribution
		for _, a := range st.g.Attributions(p.ID) {
			if slices.Contains(parents, a.Parent) {
				demoted = append(demoted, a)
			}
		}
		for _, par := range parents {
			st.trim(p.ID, par)
		}
		st.promote(p.ID, demoted)
		return
	}

	for _, par := range parents {
		if par != best.parent {
			st.trim(p.ID, par)
		}
	}
	st.absorb(p, best.parent, selected)
}

// absorb hands p's envelope over to its parent: p stays an isotope of
// parent and every isotope p found is re-attributed to parent.
func (st *run) absorb(p *core.Peak, parent core.PeakID, selected []member) {
	par := st.g.Peak(parent)
	for _, m := range selected {
		st.release(p.ID, m.id)

		a, ok := st.g.AttributionAt(m.id, parent, p.Charge)
		if !ok {
			shift := (st.g.Peak(m.id).MZ - par.MZ) * float64(p.Charge)
			a = core.Attribution{Label: core.IsotopeLabel(shift), Parent: parent, Charge: p.Charge}
		}
		st.g.SetMainAttribution(m.id, a)
		st.claim(parent, m.id)
	}
	if a, ok := st.g.AttributionAt(p.ID, parent, par.Charge); ok {
		st.g.SetMainAttribution(p.ID, a)
	}
}

// promote turns a claimed peak back into a monoisotopic peak. The demoted
// attributions are kept as alternatives.
func (st *run) promote(id core.PeakID, demoted []core.Attribution) {
	st.g.ClearMainAttribution(id)
	for _, a := range demoted {
		st.g.AddAttribution(id, a)
	}
	st.res.Promoted++
}

// trim removes id and every isotope heavier than id from the envelope of a
// losing parent.
func (st *run) trim(id, loser core.PeakID) {
	ordered := st.g.IsotopesByMZ(loser)
	at := -1
	for i, iso := range ordered {
		if iso == id {
			at = i
			break
		}
	}
	if at < 0 {
		st.release(loser, id)
		return
	}
	for _, iso := range ordered[at:] {
		st.release(loser, iso)
	}
}

// keepBestOwner resolves a peak claimed by several parents without an
// envelope of its own: the parent with the largest envelope keeps it.
func (st *run) keepBestOwner(id core.PeakID) {
	parents := append([]core.PeakID(nil), st.parents[id]...)
	best := parents[0]
	for _, par := range parents[1:] {
		if len(st.g.Isotopes(par)) > len(st.g.Isotopes(best)) {
			best = par
		}
	}
	for _, par := range parents {
		if par != best {
			st.trim(id, par)
		}
	}
	if a, ok := st.g.AttributionAt(id, best, st.g.Peak(best).Charge); ok {
		st.g.SetMainAttribution(id, a)
	}
}

// settle resolves claims made after the claimed peak was itself processed.
func (st *run) settle() {
	ids := make([]core.PeakID, 0, len(st.parents))
	for id, ps := range st.parents {
		if len(ps) > 1 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if len(st.parents[id]) > 1 {
			st.res.Conflicts++
			st.keepBestOwner(id)
		}
	}
}

func (st *run) claim(parent, iso core.PeakID) {
	st.g.AddIsotope(parent, iso)
	ps := st.parents[iso]
	i := sort.Search(len(ps), func(i int) bool { return ps[i] >= parent })
	if i < len(ps) && ps[i] == parent {
		return
	}
	ps = append(ps, 0)
	copy(ps[i+1:], ps[i:])
	ps[i] = parent
	st.parents[iso] = ps
}

func (st *run) release(parent, iso core.PeakID) {
	st.g.RemoveIsotope(parent, iso)
	st.g.RemoveAttributionWithParent(iso, parent)
	ps := st.parents[iso]
	for i, x := range ps {
		if x == parent {
			st.parents[iso] = append(ps[:i], ps[i+1:]...)
			break
		}
	}
	if len(st.parents[iso]) == 0 {
		delete(st.parents, iso)
	}
	st.syncMain(iso)
}

// syncMain keeps the main attribution of iso pointing at one of its owners.
func (st *run) syncMain(iso core.PeakID) {
	owners := st.parents[iso]
	if main, ok := st.g.MainAttribution(iso); ok && slices.Contains(owners, main.Parent) {
		return
	}
	if len(owners) == 0 {
		st.g.ClearMainAttribution(iso)
		return
	}
	if a, ok := st.g.AttributionAt(iso, owners[0], st.g.Peak(owners[0]).Charge); ok {
		st.g.SetMainAttribution(iso, a)
	}
}
