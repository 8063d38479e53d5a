// Package cmd provides CLI command implementations
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ChrisMcGann/mzannot/pkg/config"
	"github.com/ChrisMcGann/mzannot/pkg/logger"
)

var (
	// Persistent flags
	configFile string
	jsonLog    bool
	verbose    bool

	// Set up by the root pre-run hook
	v   *viper.Viper
	log *zap.SugaredLogger
)

// flagKeys maps command-line flags to configuration keys. A flag set on the
// command line wins over the config file and the environment.
var flagKeys = map[string]string{
	"polarity":           "polarity",
	"direct-infusion":    "direct_infusion",
	"workers":            "workers",
	"ppm":                "tolerance.ppm",
	"rt-tol":             "tolerance.rt",
	"max-charge":         "isotopes.max_charge",
	"cluster-method":     "clustering.method",
	"cluster-rt-tol":     "clustering.rt_tolerance",
	"correlation-cutoff": "clustering.correlation_cutoff",
	"adducts":            "adducts.file",
	"db":                 "database.path",
	"reactions":          "inference.reactions",
	"samples":            "inference.samples",
	"burn-in":            "inference.burn_in",
	"seed":               "inference.seed",
	"min-area":           "filter.min_area",
	"top-n":              "filter.top_n",
	"cutoff":             "filter.intensity_cutoff",
}

var rootCmd = &cobra.Command{
	Use:   "mzannot",
	Short: "mzannot - Peakel annotation tool",
	Long: `mzannot annotates the peaks of an LC-MS feature table (XCMS-like TSV):
isotopes, adducts and in-source fragments are linked to their monoisotopic
peak, and monoisotopic peaks can be matched against a metabolite database
and scored with a reaction network.

Settings come from built-in defaults, an optional YAML config file,
MZANNOT_* environment variables and command-line flags, in increasing
order of precedence.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (YAML)")
	rootCmd.PersistentFlags().BoolVar(&jsonLog, "json-log", false, "Write logs as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(annotateCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(summarizeCmd)
}

// setup builds the logger and the viper instance, binding the flags of the
// running command.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	log, err = logger.New(jsonLog, verbose)
	if err != nil {
		return err
	}

	v, err = config.NewViper(configFile)
	if err != nil {
		return err
	}
	for flag, key := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}
	return nil
}

// loadConfig decodes and validates the settings of the running command
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	log.Debugw("configuration loaded", "file", v.ConfigFileUsed())
	return cfg, nil
}
