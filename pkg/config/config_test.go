package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/mzannot/pkg/core"
)

func TestLoadDefaults(t *testing.T) {
	v, err := NewViper("")
	require.NoError(t, err)

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, Default(), *cfg)
	assert.Equal(t, core.Negative, cfg.PolarityValue())
	assert.Equal(t, 10.0, cfg.IsotopeConfig().TolPPM)
	assert.Equal(t, 200, cfg.InferenceConfig().Samples)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mzannot.yaml")
	content := `polarity: positive
tolerance:
  ppm: 5
clustering:
  method: hierarchical
inference:
  samples: 1000
  burn_in: 100
database:
  cache_ttl: 30s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v, err := NewViper(path)
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, core.Positive, cfg.PolarityValue())
	assert.Equal(t, 5.0, cfg.Tolerance.PPM)
	assert.Equal(t, "hierarchical", cfg.Clustering.Method)
	assert.Equal(t, 1000, cfg.Inference.Samples)
	assert.Equal(t, 100, cfg.Inference.BurnIn)
	assert.Equal(t, 30*time.Second, cfg.Database.CacheTTL)
	// Untouched keys keep their defaults.
	assert.Equal(t, 2, cfg.Isotopes.MaxCharge)
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("MZANNOT_TOLERANCE_PPM", "3.5")
	t.Setenv("MZANNOT_INFERENCE_SEED", "99")

	v, err := NewViper("")
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 3.5, cfg.Tolerance.PPM)
	assert.Equal(t, uint64(99), cfg.Inference.Seed)
}

func TestNewViperMissingFile(t *testing.T) {
	_, err := NewViper(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"bad polarity", func(c *Config) { c.Polarity = "sideways" }},
		{"no workers", func(c *Config) { c.Workers = 0 }},
		{"zero ppm", func(c *Config) { c.Tolerance.PPM = 0 }},
		{"unknown method", func(c *Config) { c.Clustering.Method = "kmeans" }},
		{"cutoff above one", func(c *Config) { c.Clustering.CorrelationCutoff = 1.5 }},
		{"adduct charge", func(c *Config) { c.Adducts.MaxCharge = 0 }},
		{"burn-in too large", func(c *Config) { c.Inference.BurnIn = c.Inference.Samples }},
		{"empty rt range", func(c *Config) { c.Filter.RTMin, c.Filter.RTMax = 100, 50 }},
		{"cutoff above 100%", func(c *Config) { c.Filter.IntensityCutoff = 120 }},
		{"negative top-n", func(c *Config) { c.Filter.TopN = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid), "got %v", err)
		})
	}
}

func TestValidateSkipsDisabledInference(t *testing.T) {
	cfg := Default()
	cfg.Inference.Enabled = false
	cfg.Inference.BurnIn = cfg.Inference.Samples
	assert.NoError(t, cfg.Validate())
}
