package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/mzannot/pkg/annotate"
	"github.com/ChrisMcGann/mzannot/pkg/config"
	"github.com/ChrisMcGann/mzannot/pkg/core"
	"github.com/ChrisMcGann/mzannot/pkg/filter"
	"github.com/ChrisMcGann/mzannot/pkg/inference"
	"github.com/ChrisMcGann/mzannot/pkg/massdb"
	"github.com/ChrisMcGann/mzannot/pkg/reader/peaklist"
	"github.com/ChrisMcGann/mzannot/pkg/reader/reactions"
	"github.com/ChrisMcGann/mzannot/pkg/writer/sqlite"
	"github.com/ChrisMcGann/mzannot/pkg/writer/tsv"
)

var (
	// Flags for annotate command
	inputFile    string
	outputFile   string
	outputFormat string
	noInference  bool
)

func init() {
	d := config.Default()
	f := annotateCmd.Flags()

	f.StringVarP(&inputFile, "in", "i", "", "Input peak table (TSV, required)")
	f.StringVarP(&outputFile, "out", "o", "", "Output report file (required)")
	f.StringVarP(&outputFormat, "to", "t", "", "Output format: tsv or sqlite (auto-detect if not specified)")
	f.BoolVar(&noInference, "no-inference", false, "Skip posterior scoring, keep database candidates only")

	f.String("polarity", d.Polarity, "Acquisition polarity: negative or positive")
	f.Bool("direct-infusion", d.DirectInfusion, "Direct infusion data: look for fragments only")
	f.Int("workers", d.Workers, "Number of worker goroutines")
	f.Float64("ppm", d.Tolerance.PPM, "Mass tolerance in ppm")
	f.Float64("rt-tol", d.Tolerance.RT, "Retention time window for isotopes, in seconds")
	f.Int("max-charge", d.Isotopes.MaxCharge, "Highest charge tried for isotope envelopes")
	f.String("cluster-method", d.Clustering.Method, "Clustering method: basic, hierarchical or dbscan")
	f.Float64("cluster-rt-tol", d.Clustering.RTTolerance, "Retention time tolerance for clustering, in seconds")
	f.Float64("correlation-cutoff", d.Clustering.CorrelationCutoff, "Correlation distance splitting clusters")
	f.String("adducts", "", "Adduct definition CSV (built-in table if not specified)")
	f.String("db", "", "Metabolite SQLite database (skip matching if not specified)")
	f.String("reactions", "", "Reaction network file (.tsv or .yaml)")
	f.Int("samples", d.Inference.Samples, "Number of sampling rounds")
	f.Int("burn-in", d.Inference.BurnIn, "Number of discarded sampling rounds")
	f.Uint64("seed", d.Inference.Seed, "Random seed for sampling")
	f.Float64("min-area", 0, "Drop peaks with a representative area below this value")
	f.Int("top-n", 0, "Keep only the N most abundant peaks (0 = no limit)")
	f.Float64("cutoff", 0, "Area cutoff as % of the most abundant peak (0 = no cutoff)")

	annotateCmd.MarkFlagRequired("in")
	annotateCmd.MarkFlagRequired("out")
}

var annotateCmd = &cobra.Command{
	Use:   "annotate",
	Short: "Annotate a peak table",
	Long: `Annotate the peaks of an XCMS-like peak table: isotopes, adducts and
fragments are attributed to their monoisotopic peak, which is optionally
matched against a metabolite database and scored with a reaction network.

Examples:
  # Structural annotation only
  mzannot annotate --in peaks.tsv --out report.tsv

  # With database matching and network scoring, positive mode
  mzannot annotate --in peaks.tsv --out report.sqlite --polarity positive \
    --db hmdb.sqlite --reactions kegg.tsv`,
	RunE: runAnnotate,
}

func runAnnotate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if noInference {
		cfg.Inference.Enabled = false
	}

	format, err := reportFormat(outputFile, outputFormat)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	start := time.Now()

	g, err := loadPeaks(inputFile, cfg)
	if err != nil {
		return err
	}

	annotator, err := annotate.New(cfg, log)
	if err != nil {
		return err
	}
	res, err := annotator.Annotate(ctx, g)
	if err != nil {
		return err
	}

	if cfg.Database.Path != "" {
		if err := score(ctx, annotator, g, res.Parents, cfg); err != nil {
			return err
		}
	} else {
		log.Infow("no metabolite database configured, skipping matching")
	}

	if err := writeReport(g, outputFile, format); err != nil {
		return err
	}

	log.Infow("annotation complete",
		"peaks", g.Len(),
		"isotopes", len(res.Isotopes),
		"clusters", len(res.Clusters),
		"monoisotopic", len(res.Parents),
		"output", outputFile,
		"elapsed", time.Since(start).Round(time.Millisecond).String())
	return nil
}

// loadPeaks reads, cleans and filters the peak table into a graph
func loadPeaks(path string, cfg *config.Config) (*core.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open input file")
	}
	defer f.Close()

	peaks, err := peaklist.ReadAll(f, cfg.PolarityValue())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	for _, p := range peaks {
		filter.RemoveZeroAreaSamples(p)
	}

	fc := cfg.FilterConfig()
	kept := fc.Apply(peaks)
	log.Infow("peak table loaded", "file", path, "peaks", len(peaks), "kept", len(kept))
	if len(kept) == 0 {
		return nil, errors.WithHint(errors.Newf("no peak left in %s", path),
			"check the filter settings and the table columns")
	}
	return core.BuildGraph(kept), nil
}

// score matches ids against the database and runs the inference engine
func score(ctx context.Context, a *annotate.Annotator, g *core.Graph, ids []core.PeakID, cfg *config.Config) error {
	store, err := massdb.OpenSQLite(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	var network inference.Network
	if cfg.Inference.Enabled && cfg.Inference.Reactions != "" {
		network, err = reactions.LoadFile(cfg.Inference.Reactions)
		if err != nil {
			return err
		}
		log.Infow("reaction network loaded", "file", cfg.Inference.Reactions, "compounds", len(network))
	}

	_, err = a.Score(ctx, g, ids, massdb.NewCachedMatcher(store, cfg.Database.CacheTTL), network)
	return err
}

// reportFormat picks the report format from the flag or the file extension
func reportFormat(path, format string) (string, error) {
	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".db", ".sqlite", ".sqlite3":
			format = "sqlite"
		default:
			format = "tsv"
		}
	}
	format = strings.ToLower(format)
	if format != "tsv" && format != "sqlite" {
		return "", errors.Newf("invalid output format '%s', must be tsv or sqlite", format)
	}
	return format, nil
}

func writeReport(g *core.Graph, path, format string) error {
	if format == "sqlite" {
		w, err := sqlite.NewWriter(path)
		if err != nil {
			return errors.Wrap(err, "failed to create output database")
		}
		w.Description = "mzannot report for " + filepath.Base(inputFile)
		if err := w.WriteGraph(g); err != nil {
			w.Abort()
			return err
		}
		if err := w.Finalize(); err != nil {
			return errors.Wrap(err, "failed to finalize database")
		}
		log.Infow("report written", "format", format, "run", w.RunID().String())
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create output file")
	}
	if err := tsv.NewWriter(f).WriteGraph(g); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "failed to close output file")
	}
	log.Infow("report written", "format", format)
	return nil
}
