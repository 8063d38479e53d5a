// Package massdb looks up candidate metabolites by neutral mass and attaches
// them to peaks as annotations.
package massdb

import (
	"context"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ChrisMcGann/mzannot/pkg/core"
)

// Matcher returns the metabolites whose monoisotopic mass lies within tolPPM
// of mass, closest first. No match is an empty result, not an error.
type Matcher interface {
	Search(ctx context.Context, mass, tolPPM float64) ([]core.Metabolite, error)
}

// Stats summarises an AttachCandidates call.
type Stats struct {
	// Candidates is the total number of annotations attached.
	Candidates int
	// NotFound counts peaks without any candidate, failures included.
	NotFound int
	// Failed counts peaks whose lookup returned an error.
	Failed int
}

// AttachCandidates searches every peak of ids by neutral mass and replaces
// its annotations with the matches. Lookups run on at most workers
// goroutines. A failed lookup is logged and leaves the peak without
// candidates; only cancellation of ctx aborts the call.
func AttachCandidates(ctx context.Context, g *core.Graph, ids []core.PeakID, m Matcher,
	tolPPM float64, workers int, log *zap.SugaredLogger) (Stats, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if workers < 1 {
		workers = 1
	}

	var candidates, notFound, failed atomic.Int64

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for _, p := range g.Select(ids) {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}

			mass := p.NeutralMass()
			metabolites, err := m.Search(egCtx, mass, tolPPM)
			if err != nil {
				if egCtx.Err() != nil {
					return egCtx.Err()
				}
				log.Warnw("mass lookup failed, treating as no candidates",
					"peak", p.Name(), "mass", mass, "error", err)
				failed.Add(1)
				metabolites = nil
			}

			p.Annotations = make([]*core.Annotation, 0, len(metabolites))
			adduct := core.DefaultAdduct(p.Polarity)
			for _, met := range metabolites {
				p.Annotations = append(p.Annotations, &core.Annotation{
					Metabolite:   met,
					Adduct:       adduct,
					ObservedMass: mass,
				})
			}
			if len(metabolites) == 0 {
				notFound.Add(1)
			}
			candidates.Add(int64(len(metabolites)))
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Stats{}, errors.Wrap(err, "attaching candidates")
	}

	stats := Stats{
		Candidates: int(candidates.Load()),
		NotFound:   int(notFound.Load()),
		Failed:     int(failed.Load()),
	}
	log.Infow("database search done",
		"peaks", len(ids),
		"candidates", stats.Candidates,
		"not_found", stats.NotFound,
		"failed", stats.Failed)
	return stats, nil
}
