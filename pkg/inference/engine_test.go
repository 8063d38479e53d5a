package inference

import (
	"context"
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/mzannot/pkg/core"
)

func annotated(g *core.Graph, observed float64, candidates ...core.Metabolite) *core.Peak {
	p := core.NewPeak(observed+core.ProtonMass, 0, 0, 60, 59, 61)
	p.Polarity = core.Positive
	for _, m := range candidates {
		p.Annotations = append(p.Annotations, &core.Annotation{
			Metabolite:   m,
			Adduct:       core.AdductProtonated,
			ObservedMass: observed,
		})
	}
	g.Add(p)
	return p
}

func compound(kegg string, mass float64) core.Metabolite {
	return core.Metabolite{ID: kegg, KEGGID: kegg, MonoMass: mass}
}

// buildScenario returns a graph with one ambiguous peak (A, B, C) and one
// peak assigned to X without ambiguity.
func buildScenario() (*core.Graph, *core.Peak) {
	g := core.NewGraph(2)
	amb := annotated(g, 180.0634,
		compound("C00031", 180.0634),
		compound("C00095", 180.0630),
		compound("C00159", 180.0640),
	)
	annotated(g, 342.1162, compound("C00089", 342.1162))
	return g, amb
}

func scenarioNetwork() Network {
	return Network{
		"C00031": {Reactants: []string{"C00089"}, Products: []string{"C00103"}},
		"C00095": {Products: []string{"C00085"}},
		"C00159": {Reactants: []string{"C00089", "C00275"}},
	}
}

func scores(p *core.Peak) []float64 {
	out := make([]float64, len(p.Annotations))
	for i, a := range p.Annotations {
		out[i] = a.NetworkScore
	}
	return out
}

func TestRunPosteriorSumsToOne(t *testing.T) {
	g, amb := buildScenario()
	e, err := NewEngine(Config{TolPPM: 10, Samples: 500, BurnIn: 50, Seed: 7}, scenarioNetwork(), nil)
	require.NoError(t, err)

	require.NoError(t, e.Run(context.Background(), g, g.IDs()))

	sum := 0.0
	for _, s := range scores(amb) {
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
		sum += s
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Zero(t, amb.Annotations[1].NetworkScore, "unlinked candidates never win against linked ones")
}

func TestRunSingleCandidateIsCertain(t *testing.T) {
	g, _ := buildScenario()
	e, err := NewEngine(Config{TolPPM: 10, Samples: 100, BurnIn: 10, Seed: 1}, scenarioNetwork(), nil)
	require.NoError(t, err)

	require.NoError(t, e.Run(context.Background(), g, g.IDs()))

	assert.Equal(t, 1.0, g.Peak(2).Annotations[0].NetworkScore)
}

func TestRunNetworkReinforcement(t *testing.T) {
	g := core.NewGraph(2)
	amb := annotated(g, 200.0, compound("C1", 200.0), compound("C2", 200.0))
	annotated(g, 300.0, compound("X", 300.0))
	network := Network{"C1": {Products: []string{"X"}}}

	e, err := NewEngine(Config{TolPPM: 10, Samples: 50, BurnIn: 5, Seed: 3}, network, nil)
	require.NoError(t, err)
	require.NoError(t, e.Run(context.Background(), g, g.IDs()))

	assert.Equal(t, []float64{1, 0}, scores(amb))
}

func TestRunIsReproducible(t *testing.T) {
	run := func(seed uint64) []float64 {
		g := core.NewGraph(3)
		amb := annotated(g, 180.0634,
			compound("C00031", 180.0634),
			compound("C00095", 180.0631),
			compound("C00159", 180.0637),
		)
		annotated(g, 150.0528,
			compound("C00181", 150.0528),
			compound("C00216", 150.0530),
		)
		e, err := NewEngine(Config{TolPPM: 10, Samples: 300, BurnIn: 30, Seed: seed}, Network{}, nil)
		require.NoError(t, err)
		require.NoError(t, e.Run(context.Background(), g, g.IDs()))
		return append(scores(amb), scores(g.Peak(2))...)
	}

	first := run(11)
	assert.Equal(t, first, run(11))

	sum := first[0] + first[1] + first[2]
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestRunIgnoresPeaksWithoutCandidates(t *testing.T) {
	g := core.NewGraph(1)
	g.Add(core.NewPeak(100, 0, 0, 10, 9, 11))

	e, err := NewEngine(DefaultConfig(), nil, nil)
	require.NoError(t, err)
	assert.NoError(t, e.Run(context.Background(), g, g.IDs()))
}

func TestRunCancelledPublishesNothing(t *testing.T) {
	g, amb := buildScenario()
	e, err := NewEngine(DefaultConfig(), scenarioNetwork(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = e.Run(ctx, g, g.IDs())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []float64{0, 0, 0}, scores(amb))
}

func TestRunRejectsNonFiniteMass(t *testing.T) {
	g := core.NewGraph(1)
	annotated(g, math.NaN(), compound("C1", 100), compound("C2", 100.001))

	e, err := NewEngine(DefaultConfig(), nil, nil)
	require.NoError(t, err)

	err = e.Run(context.Background(), g, g.IDs())
	assert.True(t, errors.Is(err, ErrNumerical))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"burn-in equals samples", Config{TolPPM: 10, Samples: 10, BurnIn: 10}},
		{"burn-in above samples", Config{TolPPM: 10, Samples: 10, BurnIn: 20}},
		{"no samples", Config{TolPPM: 10, Samples: 0}},
		{"negative burn-in", Config{TolPPM: 10, Samples: 10, BurnIn: -1}},
		{"zero tolerance", Config{TolPPM: 0, Samples: 10, BurnIn: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine(tt.cfg, nil, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfig))
		})
	}

	assert.NoError(t, DefaultConfig().Validate())
}

func TestMassPrior(t *testing.T) {
	assert.InDelta(t, 1.0, MassPrior(500, 500, 10), 1e-12)

	// One sigma away on either side.
	sigma := 500 * 10 / 1e6
	above := MassPrior(500, 500+sigma, 10)
	below := MassPrior(500, 500-sigma, 10)
	assert.InDelta(t, 0.3173, above, 1e-4)
	assert.InDelta(t, above, below, 1e-12)

	assert.Less(t, MassPrior(500, 501, 10), 1e-12)
	assert.True(t, math.IsNaN(MassPrior(0, 100, 10)))
}

func TestNetworkLinked(t *testing.T) {
	n := Network{"A": {Reactants: []string{"B", "C"}, Products: []string{"C", "D"}}}
	n.Add("A", Reaction{Products: []string{"E"}})

	assert.Equal(t, []string{"B", "C", "D", "E"}, n.Linked("A"))
	assert.Nil(t, n.Linked("missing"))
}
