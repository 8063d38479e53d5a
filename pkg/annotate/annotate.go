// Package annotate chains the annotation stages over one peak graph:
// isotope envelopes, co-elution clustering, adduct and fragment resolution
// and, optionally, database matching with posterior scoring.
package annotate

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/ChrisMcGann/mzannot/pkg/adduct"
	"github.com/ChrisMcGann/mzannot/pkg/cluster"
	"github.com/ChrisMcGann/mzannot/pkg/config"
	"github.com/ChrisMcGann/mzannot/pkg/core"
	"github.com/ChrisMcGann/mzannot/pkg/inference"
	"github.com/ChrisMcGann/mzannot/pkg/isotope"
	"github.com/ChrisMcGann/mzannot/pkg/massdb"
)

// Result lists the outcome of each structural stage.
type Result struct {
	// Roots are the peaks left monoisotopic by isotope resolution.
	Roots []core.PeakID
	// Isotopes are the peaks attributed to another peak's envelope.
	Isotopes []core.PeakID
	// Clusters partition Roots into co-eluting groups.
	Clusters [][]core.PeakID
	// Parents are the peaks kept after adduct resolution, cluster by cluster.
	Parents []core.PeakID
}

// Annotator runs the pipeline with one configuration.
type Annotator struct {
	cfg       *config.Config
	isotopes  *isotope.Resolver
	clusterer *cluster.Clusterer
	adducts   *adduct.Resolver
	log       *zap.SugaredLogger
}

// New builds every stage from cfg. cfg must have been validated.
func New(cfg *config.Config, log *zap.SugaredLogger) (*Annotator, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	iso, err := isotope.NewResolver(cfg.IsotopeConfig(), log.Named("isotope"))
	if err != nil {
		return nil, err
	}

	method, err := cluster.ParseMethod(cfg.Clustering.Method)
	if err != nil {
		return nil, err
	}
	cl := cluster.New(method, cfg.Clustering.RTTolerance, log.Named("cluster"))
	cl.CorrelationCutoff = cfg.Clustering.CorrelationCutoff

	table, err := AdductTable(cfg)
	if err != nil {
		return nil, err
	}
	add, err := adduct.NewResolver(table, cfg.Tolerance.PPM, cfg.Adducts.MaxCharge, log.Named("adduct"))
	if err != nil {
		return nil, err
	}

	return &Annotator{
		cfg:       cfg,
		isotopes:  iso,
		clusterer: cl,
		adducts:   add,
		log:       log,
	}, nil
}

// AdductTable returns the definitions the adduct stage tries: the file named
// in the configuration when set, the built-in table for the polarity
// otherwise.
func AdductTable(cfg *config.Config) (*core.AdductTable, error) {
	if cfg.Adducts.File == "" {
		return core.MassesToCheck(cfg.PolarityValue(), cfg.DirectInfusion), nil
	}

	f, err := os.Open(cfg.Adducts.File)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open adduct file %s", cfg.Adducts.File)
	}
	defer f.Close()

	table := core.NewAdductTable()
	if err := table.LoadFromCSV(f); err != nil {
		return nil, errors.Wrapf(err, "failed to load adduct file %s", cfg.Adducts.File)
	}
	if table.Len() == 0 {
		return nil, errors.WithHint(
			errors.Newf("adduct file %s has no definitions", cfg.Adducts.File),
			"expected a header line followed by name,formula,charge,delta rows")
	}
	return table, nil
}

// Annotate resolves isotopes over every peak of g, clusters the remaining
// monoisotopic peaks and resolves adducts inside each cluster.
func (a *Annotator) Annotate(ctx context.Context, g *core.Graph) (*Result, error) {
	iso := a.isotopes.Resolve(g, g.IDs())
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "annotation interrupted")
	}

	groups := a.clusterer.Cluster(g.Select(iso.Roots))
	clusters := make([][]core.PeakID, len(groups))
	for i, group := range groups {
		clusters[i] = make([]core.PeakID, len(group))
		for j, p := range group {
			clusters[i][j] = p.ID
		}
	}

	parents, err := a.adducts.ResolveAll(ctx, g, clusters, a.cfg.Workers)
	if err != nil {
		return nil, err
	}

	a.log.Infow("annotation done",
		"peaks", g.Len(),
		"monoisotopic", len(iso.Roots),
		"promoted", iso.Promoted,
		"clusters", len(clusters),
		"parents", len(parents))

	return &Result{
		Roots:    iso.Roots,
		Isotopes: iso.Isotopes,
		Clusters: clusters,
		Parents:  parents,
	}, nil
}

// Score attaches database candidates to ids and, when inference is enabled,
// replaces their network scores with posterior probabilities.
func (a *Annotator) Score(ctx context.Context, g *core.Graph, ids []core.PeakID,
	matcher massdb.Matcher, network inference.Network) (massdb.Stats, error) {
	stats, err := massdb.AttachCandidates(ctx, g, ids, matcher, a.cfg.Tolerance.PPM, a.cfg.Workers, a.log.Named("massdb"))
	if err != nil {
		return stats, err
	}
	if !a.cfg.Inference.Enabled {
		return stats, nil
	}

	engine, err := inference.NewEngine(a.cfg.InferenceConfig(), network, a.log.Named("inference"))
	if err != nil {
		return stats, err
	}
	if err := engine.Run(ctx, g, ids); err != nil {
		return stats, errors.Wrap(err, "posterior inference failed")
	}
	return stats, nil
}
