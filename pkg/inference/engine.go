// Package inference scores candidate metabolite annotations with a Gibbs-style
// sampler that reinforces candidates linked to already assigned compounds in
// a reaction network.
package inference

import (
	"context"
	"math"
	"math/rand/v2"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ChrisMcGann/mzannot/pkg/core"
)

var (
	// ErrConfig marks invalid sampler settings.
	ErrConfig = errors.New("invalid inference configuration")
	// ErrNumerical marks a posterior that is not a probability.
	ErrNumerical = errors.New("numerical error in posterior computation")
)

// Config holds the sampler settings.
type Config struct {
	TolPPM  float64
	Samples int
	// BurnIn rounds are sampled but not counted.
	BurnIn int
	Seed   uint64
}

// DefaultConfig returns the settings used by the annotate command.
func DefaultConfig() Config {
	return Config{TolPPM: 10, Samples: 200, BurnIn: 10, Seed: 1}
}

// Validate reports settings that would make the posterior meaningless.
func (c Config) Validate() error {
	switch {
	case !(c.TolPPM > 0):
		return errors.Wrapf(ErrConfig, "tolerance must be positive, got %v ppm", c.TolPPM)
	case c.Samples <= 0:
		return errors.Wrapf(ErrConfig, "sample count must be positive, got %d", c.Samples)
	case c.BurnIn < 0:
		return errors.Wrapf(ErrConfig, "burn-in must not be negative, got %d", c.BurnIn)
	case c.BurnIn >= c.Samples:
		return errors.Wrapf(ErrConfig, "burn-in %d must be below the sample count %d", c.BurnIn, c.Samples)
	}
	return nil
}

// Engine runs the sampler. It holds no state between runs, so one engine
// may serve several graphs.
type Engine struct {
	cfg     Config
	network Network
	log     *zap.SugaredLogger
}

// NewEngine validates cfg. A nil network behaves like an empty one.
func NewEngine(cfg Config, network Network, log *zap.SugaredLogger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if network == nil {
		network = Network{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Engine{cfg: cfg, network: network, log: log}, nil
}

// site is a peak with at least one candidate annotation.
type site struct {
	peak      *core.Peak
	compounds []string
	prior     []float64
	network   []float64
	counts    []int
}

// sampler carries the state of one Run.
type sampler struct {
	*Engine
	src      rand.Source
	rng      *rand.Rand
	assigned map[string]struct{}
	links    map[string][]string
}

// Run samples candidate assignments for the peaks in ids and sets each
// annotation's NetworkScore to its posterior probability. Peaks without
// annotations are ignored. Nothing is written when Run returns an error.
func (e *Engine) Run(ctx context.Context, g *core.Graph, ids []core.PeakID) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "inference cancelled")
	}

	src := rand.NewPCG(e.cfg.Seed, e.cfg.Seed)
	s := &sampler{
		Engine:   e,
		src:      src,
		rng:      rand.New(src),
		assigned: make(map[string]struct{}),
		links:    make(map[string][]string),
	}

	var sites []*site
	ambiguous := 0
	for _, p := range g.Select(ids) {
		if len(p.Annotations) == 0 {
			continue
		}
		st := &site{
			peak:      p,
			compounds: make([]string, len(p.Annotations)),
			counts:    make([]int, len(p.Annotations)),
		}
		for i, a := range p.Annotations {
			st.compounds[i] = a.Metabolite.CompoundID()
		}
		if len(st.compounds) > 1 {
			ambiguous++
			prior, err := s.prior(st)
			if err != nil {
				return err
			}
			st.prior = prior
		}
		sites = append(sites, st)
	}

	e.log.Infow("starting inference",
		"peaks", len(sites),
		"ambiguous", ambiguous,
		"samples", e.cfg.Samples,
		"burn_in", e.cfg.BurnIn,
		"seed", e.cfg.Seed)

	// Unambiguous peaks are assigned with certainty; the others seed the
	// network from a draw on their mass prior.
	for _, st := range sites {
		if len(st.compounds) == 1 {
			s.assigned[st.compounds[0]] = struct{}{}
		}
	}
	for _, st := range sites {
		if len(st.compounds) > 1 {
			s.assigned[st.compounds[s.draw(st.prior)]] = struct{}{}
		}
	}
	s.updateNetwork(sites)

	order := make([]int, len(sites))
	for i := range order {
		order[i] = i
	}
	step := e.cfg.Samples / 10
	for round := 0; round < e.cfg.Samples; round++ {
		if err := ctx.Err(); err != nil {
			return errors.Wrapf(err, "inference cancelled at round %d", round)
		}
		counted := round >= e.cfg.BurnIn

		s.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		for _, k := range order {
			st := sites[k]
			pick := 0
			if len(st.compounds) > 1 {
				w, err := st.weights()
				if err != nil {
					return err
				}
				pick = s.draw(w)
			}
			if counted {
				st.counts[pick]++
			}
			s.assigned[st.compounds[pick]] = struct{}{}
		}
		s.updateNetwork(sites)

		if step > 0 && (round+1)%step == 0 {
			e.log.Debugw("sampling", "round", round+1, "assigned", len(s.assigned))
		}
	}

	return e.publish(sites)
}

// publish computes every posterior before writing any of them.
func (e *Engine) publish(sites []*site) error {
	n := float64(e.cfg.Samples - e.cfg.BurnIn)
	posteriors := make([][]float64, len(sites))
	for i, st := range sites {
		posteriors[i] = make([]float64, len(st.counts))
		for j, c := range st.counts {
			p := float64(c) / n
			if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 || p > 1 {
				return errors.Wrapf(ErrNumerical, "peak %s candidate %s has posterior %v",
					st.peak.Name(), st.compounds[j], p)
			}
			posteriors[i][j] = p
		}
	}
	for i, st := range sites {
		for j, a := range st.peak.Annotations {
			a.NetworkScore = posteriors[i][j]
		}
	}
	e.log.Infow("inference done", "peaks", len(sites))
	return nil
}

// MassPrior is the two-sided tail probability of the theoretical mass under
// a normal centred on the observed mass with sigma = observed * ppm / 1e6.
func MassPrior(observed, theoretical, tolPPM float64) float64 {
	sigma := observed * tolPPM / 1e6
	if !(sigma > 0) {
		return math.NaN()
	}
	c := distuv.Normal{Mu: observed, Sigma: sigma}.CDF(theoretical)
	return 2 * math.Min(c, 1-c)
}

// prior returns the normalised mass prior of the site's candidates, uniform
// when no candidate has any support.
func (s *sampler) prior(st *site) ([]float64, error) {
	prior := make([]float64, len(st.compounds))
	sum := 0.0
	for i, a := range st.peak.Annotations {
		observed := a.ObservedMass
		if observed == 0 {
			observed = st.peak.NeutralMass()
		}
		v := MassPrior(observed, a.Metabolite.MonoMass, s.cfg.TolPPM)
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return nil, errors.Wrapf(ErrNumerical, "peak %s candidate %s has mass prior %v",
				st.peak.Name(), st.compounds[i], v)
		}
		prior[i] = v
		sum += v
	}
	return normalise(prior, sum), nil
}

// weights combines the prior with the current network weights.
func (st *site) weights() ([]float64, error) {
	w := make([]float64, len(st.prior))
	sum := 0.0
	for i := range w {
		w[i] = st.prior[i] * st.network[i]
		if math.IsNaN(w[i]) || math.IsInf(w[i], 0) || w[i] < 0 {
			return nil, errors.Wrapf(ErrNumerical, "peak %s candidate %s has weight %v",
				st.peak.Name(), st.compounds[i], w[i])
		}
		sum += w[i]
	}
	if sum == 0 {
		return st.prior, nil
	}
	return normalise(w, sum), nil
}

func normalise(w []float64, sum float64) []float64 {
	if sum == 0 {
		for i := range w {
			w[i] = 1 / float64(len(w))
		}
		return w
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}

func (s *sampler) draw(weights []float64) int {
	return int(distuv.NewCategorical(weights, s.src).Rand())
}

// updateNetwork sets, for every candidate, the share of links to assigned
// compounds among the site's candidates, or 1 when there are none.
func (s *sampler) updateNetwork(sites []*site) {
	for _, st := range sites {
		if st.network == nil {
			st.network = make([]float64, len(st.compounds))
		}
		total := 0.0
		for i, c := range st.compounds {
			n := 0
			for _, linked := range s.linked(c) {
				if _, ok := s.assigned[linked]; ok {
					n++
				}
			}
			st.network[i] = float64(n)
			total += float64(n)
		}
		for i := range st.network {
			if total == 0 {
				st.network[i] = 1
			} else {
				st.network[i] /= total
			}
		}
	}
}

func (s *sampler) linked(compound string) []string {
	if l, ok := s.links[compound]; ok {
		return l
	}
	l := s.network.Linked(compound)
	s.links[compound] = l
	return l
}
