// Package config loads annotation settings from defaults, an optional config
// file, MZANNOT_* environment variables and command-line flags.
package config

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	"github.com/ChrisMcGann/mzannot/pkg/cluster"
	"github.com/ChrisMcGann/mzannot/pkg/core"
	"github.com/ChrisMcGann/mzannot/pkg/filter"
	"github.com/ChrisMcGann/mzannot/pkg/index"
	"github.com/ChrisMcGann/mzannot/pkg/inference"
	"github.com/ChrisMcGann/mzannot/pkg/isotope"
)

// ErrInvalid marks configuration values rejected by Validate.
var ErrInvalid = errors.New("invalid configuration")

// EnvPrefix is the prefix of environment variables overriding settings,
// e.g. MZANNOT_TOLERANCE_PPM.
const EnvPrefix = "MZANNOT"

type Config struct {
	Polarity       string `mapstructure:"polarity" yaml:"polarity"`
	DirectInfusion bool   `mapstructure:"direct_infusion" yaml:"direct_infusion"`
	Workers        int    `mapstructure:"workers" yaml:"workers"`

	Tolerance  ToleranceConfig  `mapstructure:"tolerance" yaml:"tolerance"`
	Isotopes   IsotopeConfig    `mapstructure:"isotopes" yaml:"isotopes"`
	Clustering ClusteringConfig `mapstructure:"clustering" yaml:"clustering"`
	Adducts    AdductConfig     `mapstructure:"adducts" yaml:"adducts"`
	Inference  InferenceConfig  `mapstructure:"inference" yaml:"inference"`
	Database   DatabaseConfig   `mapstructure:"database" yaml:"database"`
	Filter     FilterConfig     `mapstructure:"filter" yaml:"filter"`
}

type ToleranceConfig struct {
	PPM float64 `mapstructure:"ppm" yaml:"ppm"`
	RT  float64 `mapstructure:"rt" yaml:"rt"`
}

type IsotopeConfig struct {
	MaxCharge   int `mapstructure:"max_charge" yaml:"max_charge"`
	MaxIsotopes int `mapstructure:"max_isotopes" yaml:"max_isotopes"`
	MaxGap      int `mapstructure:"max_gap" yaml:"max_gap"`
}

type ClusteringConfig struct {
	// Method is basic, hierarchical or dbscan.
	Method            string  `mapstructure:"method" yaml:"method"`
	RTTolerance       float64 `mapstructure:"rt_tolerance" yaml:"rt_tolerance"`
	CorrelationCutoff float64 `mapstructure:"correlation_cutoff" yaml:"correlation_cutoff"`
}

type AdductConfig struct {
	// File optionally replaces the built-in adduct and fragment table.
	File      string `mapstructure:"file" yaml:"file"`
	MaxCharge int    `mapstructure:"max_charge" yaml:"max_charge"`
}

type InferenceConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Samples   int    `mapstructure:"samples" yaml:"samples"`
	BurnIn    int    `mapstructure:"burn_in" yaml:"burn_in"`
	Seed      uint64 `mapstructure:"seed" yaml:"seed"`
	Reactions string `mapstructure:"reactions" yaml:"reactions"`
}

type DatabaseConfig struct {
	Path     string        `mapstructure:"path" yaml:"path"`
	CacheTTL time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
}

type FilterConfig struct {
	MinArea float64 `mapstructure:"min_area" yaml:"min_area"`
	RTMin   float64 `mapstructure:"rt_min" yaml:"rt_min"`
	RTMax   float64 `mapstructure:"rt_max" yaml:"rt_max"`

	// IntensityCutoff is a percentage of the most abundant peak.
	IntensityCutoff float64 `mapstructure:"intensity_cutoff" yaml:"intensity_cutoff"`
	TopN            int     `mapstructure:"top_n" yaml:"top_n"`
}

// Default returns the built-in settings.
func Default() Config {
	iso := isotope.DefaultConfig()
	inf := inference.DefaultConfig()
	return Config{
		Polarity: "negative",
		Workers:  4,
		Tolerance: ToleranceConfig{
			PPM: iso.TolPPM,
			RT:  iso.RTTolerance,
		},
		Isotopes: IsotopeConfig{
			MaxCharge:   iso.MaxCharge,
			MaxIsotopes: iso.MaxIsotopes,
			MaxGap:      iso.MaxGap,
		},
		Clustering: ClusteringConfig{
			Method:            "dbscan",
			RTTolerance:       10,
			CorrelationCutoff: cluster.DefaultCorrelationCutoff,
		},
		Adducts: AdductConfig{MaxCharge: 2},
		Inference: InferenceConfig{
			Enabled: true,
			Samples: inf.Samples,
			BurnIn:  inf.BurnIn,
			Seed:    inf.Seed,
		},
		Database: DatabaseConfig{CacheTTL: 10 * time.Minute},
	}
}

// SetDefaults registers the built-in settings on v so that every key is
// known to viper, which AutomaticEnv needs to resolve nested keys.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("polarity", d.Polarity)
	v.SetDefault("direct_infusion", d.DirectInfusion)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("tolerance.ppm", d.Tolerance.PPM)
	v.SetDefault("tolerance.rt", d.Tolerance.RT)
	v.SetDefault("isotopes.max_charge", d.Isotopes.MaxCharge)
	v.SetDefault("isotopes.max_isotopes", d.Isotopes.MaxIsotopes)
	v.SetDefault("isotopes.max_gap", d.Isotopes.MaxGap)
	v.SetDefault("clustering.method", d.Clustering.Method)
	v.SetDefault("clustering.rt_tolerance", d.Clustering.RTTolerance)
	v.SetDefault("clustering.correlation_cutoff", d.Clustering.CorrelationCutoff)
	v.SetDefault("adducts.file", d.Adducts.File)
	v.SetDefault("adducts.max_charge", d.Adducts.MaxCharge)
	v.SetDefault("inference.enabled", d.Inference.Enabled)
	v.SetDefault("inference.samples", d.Inference.Samples)
	v.SetDefault("inference.burn_in", d.Inference.BurnIn)
	v.SetDefault("inference.seed", d.Inference.Seed)
	v.SetDefault("inference.reactions", d.Inference.Reactions)
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("database.cache_ttl", d.Database.CacheTTL)
	v.SetDefault("filter.min_area", d.Filter.MinArea)
	v.SetDefault("filter.rt_min", d.Filter.RTMin)
	v.SetDefault("filter.rt_max", d.Filter.RTMax)
	v.SetDefault("filter.intensity_cutoff", d.Filter.IntensityCutoff)
	v.SetDefault("filter.top_n", d.Filter.TopN)
}

// NewViper returns a viper instance with defaults and environment lookup
// set up. When path is not empty the file is read; a missing file is an error.
func NewViper(path string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading config file %s", path)
		}
	}
	return v, nil
}

// Load decodes and validates the settings held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decoding configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section so that a bad value aborts the run before
// any file is read.
func (c *Config) Validate() error {
	if _, err := core.ParsePolarity(c.Polarity); err != nil {
		return errors.Mark(errors.Wrap(err, "polarity"), ErrInvalid)
	}
	if c.Workers < 1 {
		return errors.Wrapf(ErrInvalid, "workers must be at least 1, got %d", c.Workers)
	}
	if err := c.IsotopeConfig().Validate(); err != nil {
		return errors.Mark(errors.Wrap(err, "isotopes"), ErrInvalid)
	}
	if _, err := cluster.ParseMethod(c.Clustering.Method); err != nil {
		return errors.Mark(errors.WithHint(errors.Wrap(err, "clustering"),
			"use basic, hierarchical or dbscan"), ErrInvalid)
	}
	if c.Clustering.RTTolerance < 0 {
		return errors.Wrapf(ErrInvalid, "clustering rt tolerance must not be negative, got %v", c.Clustering.RTTolerance)
	}
	if c.Clustering.CorrelationCutoff < 0 || c.Clustering.CorrelationCutoff > 1 {
		return errors.Wrapf(ErrInvalid, "correlation cutoff must lie in [0,1], got %v", c.Clustering.CorrelationCutoff)
	}
	if c.Adducts.MaxCharge < 1 {
		return errors.Wrapf(ErrInvalid, "adduct max charge must be at least 1, got %d", c.Adducts.MaxCharge)
	}
	if c.Inference.Enabled {
		if err := c.InferenceConfig().Validate(); err != nil {
			return errors.Mark(errors.Wrap(err, "inference"), ErrInvalid)
		}
	}
	if c.Filter.IntensityCutoff < 0 || c.Filter.IntensityCutoff > 100 {
		return errors.Wrapf(ErrInvalid, "intensity cutoff must lie in [0,100], got %v", c.Filter.IntensityCutoff)
	}
	if c.Filter.TopN < 0 {
		return errors.Wrapf(ErrInvalid, "top-n must not be negative, got %d", c.Filter.TopN)
	}
	if c.Filter.RTMax > 0 && c.Filter.RTMax < c.Filter.RTMin {
		return errors.Wrapf(ErrInvalid, "filter rt range [%v,%v] is empty", c.Filter.RTMin, c.Filter.RTMax)
	}
	return nil
}

// PolarityValue returns the parsed polarity. Call Validate first.
func (c *Config) PolarityValue() core.Polarity {
	p, _ := core.ParsePolarity(c.Polarity)
	return p
}

// IsotopeConfig returns the isotope resolver settings.
func (c *Config) IsotopeConfig() isotope.Config {
	return isotope.Config{
		TolPPM:      c.Tolerance.PPM,
		RTTolerance: c.Tolerance.RT,
		MaxCharge:   c.Isotopes.MaxCharge,
		MaxIsotopes: c.Isotopes.MaxIsotopes,
		MaxGap:      c.Isotopes.MaxGap,
		BinSize:     index.DefaultBinSize,
	}
}

// InferenceConfig returns the sampler settings.
func (c *Config) InferenceConfig() inference.Config {
	return inference.Config{
		TolPPM:  c.Tolerance.PPM,
		Samples: c.Inference.Samples,
		BurnIn:  c.Inference.BurnIn,
		Seed:    c.Inference.Seed,
	}
}

// FilterConfig returns the peak filter settings.
func (c *Config) FilterConfig() filter.Config {
	return filter.Config{
		MinArea:         c.Filter.MinArea,
		RTMin:           c.Filter.RTMin,
		RTMax:           c.Filter.RTMax,
		IntensityCutoff: c.Filter.IntensityCutoff,
		TopN:            c.Filter.TopN,
	}
}
