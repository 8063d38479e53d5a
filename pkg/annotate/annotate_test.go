package annotate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/mzannot/pkg/config"
	"github.com/ChrisMcGann/mzannot/pkg/core"
	"github.com/ChrisMcGann/mzannot/pkg/inference"
)

type fakeMatcher map[float64][]core.Metabolite

func (f fakeMatcher) Search(_ context.Context, mass, _ float64) ([]core.Metabolite, error) {
	return f[core.RoundFloat(mass, 3)], nil
}

func envelopeGraph() *core.Graph {
	g := core.NewGraph(3)
	for _, tp := range []struct{ mz, rt, area float64 }{
		{500.0, 60, 1000},
		{501.0034, 60, 200},
		{650.0, 60, 800},
	} {
		p := core.NewPeak(tp.mz, tp.mz, tp.mz, tp.rt, tp.rt-1, tp.rt+1)
		p.Polarity = core.Negative
		p.SetArea("s1", tp.area)
		g.Add(p)
	}
	return g
}

func newAnnotator(t *testing.T, mutate func(*config.Config)) *Annotator {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}
	require.NoError(t, cfg.Validate())
	a, err := New(&cfg, nil)
	require.NoError(t, err)
	return a
}

func TestAnnotate(t *testing.T) {
	g := envelopeGraph()

	res, err := newAnnotator(t, nil).Annotate(context.Background(), g)
	require.NoError(t, err)

	assert.Equal(t, []core.PeakID{1, 3}, res.Roots)
	assert.Equal(t, []core.PeakID{2}, res.Isotopes)
	assert.Equal(t, [][]core.PeakID{{1}, {3}}, res.Clusters)
	assert.Equal(t, []core.PeakID{1, 3}, res.Parents)

	main, ok := g.MainAttribution(2)
	require.True(t, ok)
	assert.Equal(t, core.Attribution{Label: "Isotope C13", Parent: 1, Charge: 1}, main)
	assert.Equal(t, "monoisotope + 1 isotope(s)", g.PutativeAttribution(1))
	assert.Empty(t, g.PutativeAttribution(3))
}

func TestAnnotateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newAnnotator(t, nil).Annotate(ctx, envelopeGraph())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScore(t *testing.T) {
	g := envelopeGraph()
	a := newAnnotator(t, func(c *config.Config) {
		c.Inference.Samples = 50
		c.Inference.BurnIn = 5
	})
	res, err := a.Annotate(context.Background(), g)
	require.NoError(t, err)

	// Neutral masses of the [M-H] ions: 501.007276 and 651.007276.
	matcher := fakeMatcher{
		501.007: {
			{ID: "glc", KEGGID: "C00031", MonoMass: 501.0073},
			{ID: "fru", KEGGID: "C00095", MonoMass: 501.0073},
		},
		651.007: {
			{ID: "atp", KEGGID: "C00002", MonoMass: 651.0073},
		},
	}
	network := inference.Network{
		"C00031": {Reactants: []string{"C00002"}},
	}

	stats, err := a.Score(context.Background(), g, res.Parents, matcher, network)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Candidates)
	assert.Zero(t, stats.NotFound)

	annots := g.Peak(1).Annotations
	require.Len(t, annots, 2)
	assert.Equal(t, 1.0, annots[0].NetworkScore, "only glucose is linked to an assigned compound")
	assert.Equal(t, 0.0, annots[1].NetworkScore)
	require.Len(t, g.Peak(3).Annotations, 1)
	assert.Equal(t, 1.0, g.Peak(3).Annotations[0].NetworkScore)
	assert.Empty(t, g.Peak(2).Annotations)
}

func TestScoreWithoutInference(t *testing.T) {
	g := envelopeGraph()
	a := newAnnotator(t, func(c *config.Config) { c.Inference.Enabled = false })

	matcher := fakeMatcher{651.007: {{ID: "atp", KEGGID: "C00002", MonoMass: 651.0073}}}
	stats, err := a.Score(context.Background(), g, []core.PeakID{1, 3}, matcher, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Candidates)
	assert.Equal(t, 1, stats.NotFound)
	assert.Zero(t, g.Peak(3).Annotations[0].NetworkScore)
}

func TestAdductTable(t *testing.T) {
	cfg := config.Default()
	table, err := AdductTable(&cfg)
	require.NoError(t, err)
	assert.Equal(t, core.MassesToCheck(core.Negative, false).Len(), table.Len())

	dir := t.TempDir()
	path := filepath.Join(dir, "adducts.csv")
	require.NoError(t, os.WriteFile(path, []byte("name,formula,charge,mass\n[M+Na],Na,1,-21.981943\n"), 0o644))
	cfg.Adducts.File = path
	table, err = AdductTable(&cfg)
	require.NoError(t, err)
	require.Equal(t, 1, table.Len())
	delta, ok := table.Get("[M+Na]")
	require.True(t, ok)
	assert.Equal(t, -21.981943, delta)

	empty := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(empty, []byte("name,formula,charge,mass\n"), 0o644))
	cfg.Adducts.File = empty
	_, err = AdductTable(&cfg)
	assert.ErrorContains(t, err, "has no definitions")

	cfg.Adducts.File = filepath.Join(dir, "missing.csv")
	_, err = AdductTable(&cfg)
	assert.Error(t, err)
}

func TestNewRejectsBadMethod(t *testing.T) {
	cfg := config.Default()
	cfg.Clustering.Method = "kmeans"
	_, err := New(&cfg, nil)
	assert.Error(t, err)
}
