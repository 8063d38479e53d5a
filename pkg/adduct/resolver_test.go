package adduct

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/mzannot/pkg/core"
)

func graphOf(mzs ...float64) *core.Graph {
	g := core.NewGraph(len(mzs))
	for _, mz := range mzs {
		p := core.NewPeak(mz, mz, mz, 120, 119, 121)
		p.Polarity = core.Positive
		p.SetArea("s1", 1000)
		g.Add(p)
	}
	return g
}

func newResolver(t *testing.T) *Resolver {
	t.Helper()
	r, err := NewResolver(core.MassesToCheck(core.Positive, false), 10, 2, nil)
	require.NoError(t, err)
	return r
}

func TestResolveClusterFindsAdductsAndFragments(t *testing.T) {
	g := graphOf(200.0, 221.981943, 237.955882, 181.989435)

	winners := newResolver(t).ResolveCluster(g, g.IDs())

	assert.Equal(t, []core.PeakID{1}, winners)
	assert.Equal(t, []core.PeakID{2, 3, 4}, g.Adducts(1))

	want := map[core.PeakID]string{2: "[M+Na]", 3: "[M+K]", 4: "Fragment -H2O"}
	for id, label := range want {
		a, ok := g.MainAttribution(id)
		require.True(t, ok, "peak %d", id)
		assert.Equal(t, core.Attribution{Label: label, Parent: 1, Charge: 1}, a)
	}
}

func TestResolveClusterClaimsFragmentOnce(t *testing.T) {
	// Peak 3 is both [M+Na] of peak 1 and [M+K] of peak 2; peak 4 is a
	// water loss of peak 2, so peak 2 has more evidence and wins.
	g := graphOf(278.018057, 262.044118, 300.0, 244.033553)

	winners := newResolver(t).ResolveCluster(g, g.IDs())

	assert.Equal(t, []core.PeakID{2}, winners)
	assert.Empty(t, g.Adducts(1))
	assert.Equal(t, []core.PeakID{3, 4}, g.Adducts(2))

	a, ok := g.MainAttribution(3)
	require.True(t, ok)
	assert.Equal(t, core.PeakID(2), a.Parent)

	// The losing claim is kept as an alternative.
	_, ok = g.AttributionFor(3, 1)
	assert.True(t, ok)

	owners := make(map[core.PeakID]int)
	for _, id := range g.IDs() {
		for _, child := range g.Adducts(id) {
			owners[child]++
		}
	}
	for id, n := range owners {
		assert.Equal(t, 1, n, "peak %d", id)
	}
}

func TestResolveClusterFallsBackToWholeCluster(t *testing.T) {
	g := graphOf(150.0, 410.2, 733.7)

	winners := newResolver(t).ResolveCluster(g, []core.PeakID{3, 1, 2})

	assert.Equal(t, []core.PeakID{3, 1, 2}, winners)
	for _, id := range g.IDs() {
		assert.Empty(t, g.Adducts(id))
		assert.Empty(t, g.Attributions(id))
	}
}

func TestResolveClusterIsScopedToCluster(t *testing.T) {
	g := graphOf(200.0, 221.981943)

	winners := newResolver(t).ResolveCluster(g, []core.PeakID{2})

	assert.Equal(t, []core.PeakID{2}, winners)
	assert.Empty(t, g.Attributions(2))
}

func TestResolveAll(t *testing.T) {
	g := graphOf(200.0, 221.981943, 500.0, 650.0)
	clusters := [][]core.PeakID{{1, 2}, {3}, {4}}

	out, err := newResolver(t).ResolveAll(context.Background(), g, clusters, 4)
	require.NoError(t, err)
	assert.Equal(t, []core.PeakID{1, 3, 4}, out)
}

func TestResolveAllCancelled(t *testing.T) {
	g := graphOf(200.0, 221.981943)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newResolver(t).ResolveAll(ctx, g, [][]core.PeakID{{1, 2}}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewResolverRejectsBadSettings(t *testing.T) {
	table := core.DefaultFragments()

	_, err := NewResolver(table, 0, 1, nil)
	assert.Error(t, err)

	_, err = NewResolver(table, 10, 0, nil)
	assert.Error(t, err)
}
