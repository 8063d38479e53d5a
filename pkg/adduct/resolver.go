// Package adduct finds, inside each co-eluting cluster, which peaks are
// adducts or in-source fragments of another peak.
package adduct

import (
	"context"
	"sort"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ChrisMcGann/mzannot/pkg/core"
	"github.com/ChrisMcGann/mzannot/pkg/index"
)

// Resolver assigns adduct and fragment relationships within clusters.
type Resolver struct {
	Definitions []core.AdductDef
	TolPPM      float64
	// MaxCharge bounds the charge loop. Deltas are applied at charge 1.
	MaxCharge int
	Logger    *zap.SugaredLogger
}

// NewResolver builds a resolver over the definitions of table.
func NewResolver(table *core.AdductTable, tolPPM float64, maxCharge int, log *zap.SugaredLogger) (*Resolver, error) {
	if !(tolPPM > 0) {
		return nil, errors.Newf("adduct tolerance must be positive, got %v ppm", tolPPM)
	}
	if maxCharge < 1 {
		return nil, errors.Newf("max charge must be at least 1, got %d", maxCharge)
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Resolver{
		Definitions: table.Definitions(),
		TolPPM:      tolPPM,
		MaxCharge:   maxCharge,
		Logger:      log,
	}, nil
}

type claim struct {
	fragment core.PeakID
	attr     core.Attribution
}

// ResolveCluster links adducts and fragments to their parents inside one
// cluster and returns the parents that gained at least one, ascending. When
// nothing is found the whole cluster is returned.
//
// Each fragment is claimed by at most one parent and a parent, once it won,
// can no longer be claimed as a fragment.
func (r *Resolver) ResolveCluster(g *core.Graph, cluster []core.PeakID) []core.PeakID {
	peaks := g.Select(cluster)
	idx := index.New(peaks, index.DefaultBinSize)

	maxCharge := r.MaxCharge
	if maxCharge < 1 {
		maxCharge = 1
	}

	byParent := make(map[core.PeakID][]claim)
	for _, p := range peaks {
		seen := make(map[core.PeakID]bool)
		notSelf := func(c *core.Peak) bool { return c.ID != p.ID }
		for charge := 1; charge <= maxCharge; charge++ {
			for _, def := range r.Definitions {
				parent := idx.NearestWhere(p.MZ+def.Delta, r.TolPPM, notSelf)
				if parent == nil || seen[parent.ID] {
					continue
				}
				seen[parent.ID] = true
				a := core.Attribution{Label: def.Label, Parent: parent.ID, Charge: 1}
				byParent[parent.ID] = append(byParent[parent.ID], claim{fragment: p.ID, attr: a})
				g.AddAttribution(p.ID, a)
			}
		}
	}

	if len(byParent) == 0 {
		out := make([]core.PeakID, len(cluster))
		copy(out, cluster)
		return out
	}

	parents := make([]core.PeakID, 0, len(byParent))
	for id := range byParent {
		parents = append(parents, id)
	}
	sort.Slice(parents, func(i, j int) bool {
		ni, nj := len(byParent[parents[i]]), len(byParent[parents[j]])
		if ni != nj {
			return ni > nj
		}
		return parents[i] < parents[j]
	})

	consumed := make(map[core.PeakID]bool)
	var winners []core.PeakID
	for _, parent := range parents {
		if consumed[parent] {
			continue
		}
		won := false
		for _, c := range byParent[parent] {
			if consumed[c.fragment] {
				continue
			}
			g.SetMainAttribution(c.fragment, c.attr)
			g.AddAdduct(parent, c.fragment)
			consumed[c.fragment] = true
			won = true
		}
		if won {
			consumed[parent] = true
			winners = append(winners, parent)
		}
	}

	if len(winners) == 0 {
		out := make([]core.PeakID, len(cluster))
		copy(out, cluster)
		return out
	}
	sort.Slice(winners, func(i, j int) bool { return winners[i] < winners[j] })
	return winners
}

// ResolveAll resolves clusters concurrently with at most workers goroutines
// and concatenates the results in cluster order. Clusters must be disjoint.
func (r *Resolver) ResolveAll(ctx context.Context, g *core.Graph, clusters [][]core.PeakID, workers int) ([]core.PeakID, error) {
	if workers < 1 {
		workers = 1
	}
	results := make([][]core.PeakID, len(clusters))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, cluster := range clusters {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			results[i] = r.ResolveCluster(g, cluster)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, errors.Wrap(err, "adduct resolution interrupted")
	}

	var out []core.PeakID
	parents := 0
	for i, res := range results {
		out = append(out, res...)
		if !sameIDs(res, clusters[i]) {
			parents += len(res)
		}
	}
	if r.Logger != nil {
		r.Logger.Infow("adduct resolution done",
			"clusters", len(clusters),
			"peaks_out", len(out),
			"parents", parents)
	}
	return out, nil
}

func sameIDs(a, b []core.PeakID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
