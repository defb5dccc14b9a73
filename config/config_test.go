package config

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
serviceId: "SCOSS-42"
topDonorLimit: 5
sources:
  serviceRegistry: ./data/registry.csv
  masterData: https://example.org/master.csv
loadTimeout: 45s
logging:
  level: debug
  format: console
headers:
  topDonors: "Our {x} biggest backers"
`

func memFs(t *testing.T, path, content string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	return fs
}

func TestLoadFs_File(t *testing.T) {
	cfg, err := LoadFs(memFs(t, "/etc/scoss.yaml", sampleConfig), "/etc/scoss.yaml", nil)
	require.NoError(t, err)

	assert.Equal(t, "SCOSS-42", cfg.ServiceID)
	assert.Equal(t, 5, cfg.TopDonorLimit)
	assert.Equal(t, "./data/registry.csv", cfg.Sources.ServiceRegistry)
	assert.Equal(t, "https://example.org/master.csv", cfg.Sources.MasterData)
	assert.Equal(t, 45*time.Second, cfg.LoadTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)

	// untouched keys keep their defaults
	assert.Equal(t, "Total Funding", cfg.SeriesKey)
	assert.False(t, cfg.Snapshot.Enabled)
	assert.Equal(t, "scoss.db", cfg.Snapshot.Path)
	assert.Equal(t, "Funding progress", cfg.Headers.Progress)
	assert.Equal(t, "Our {x} biggest backers", cfg.Headers.TopDonors)

	assert.Equal(t, "registry", cfg.Registry().ID)
	assert.Equal(t, cfg.Sources.MasterData, cfg.Master().URL)
}

func TestLoadFs_EnvOverridesFile(t *testing.T) {
	t.Setenv("SCOSS_SERVICEID", "FROM-ENV")
	t.Setenv("SCOSS_SNAPSHOT_ENABLED", "true")

	cfg, err := LoadFs(memFs(t, "/etc/scoss.yaml", sampleConfig), "/etc/scoss.yaml", nil)
	require.NoError(t, err)
	assert.Equal(t, "FROM-ENV", cfg.ServiceID)
	assert.True(t, cfg.Snapshot.Enabled)
}

func TestLoadFs_FlagsOverrideEverything(t *testing.T) {
	t.Setenv("SCOSS_SERVICEID", "FROM-ENV")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(t, flags.Parse([]string{"--service-id", "FROM-FLAG", "--top-donor-limit", "3"}))

	cfg, err := LoadFs(memFs(t, "/etc/scoss.yaml", sampleConfig), "/etc/scoss.yaml", flags)
	require.NoError(t, err)
	assert.Equal(t, "FROM-FLAG", cfg.ServiceID)
	assert.Equal(t, 3, cfg.TopDonorLimit)
	// flags left at their default do not mask the file
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFs_NoFile(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(t, flags.Parse([]string{"-s", "A", "--registry", "r.csv", "--master", "m.csv"}))

	cfg, err := LoadFs(afero.NewMemMapFs(), "", flags)
	require.NoError(t, err)
	assert.Equal(t, "A", cfg.ServiceID)
	assert.Equal(t, 10, cfg.TopDonorLimit)
	assert.Equal(t, 30*time.Second, cfg.LoadTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFs_MissingExplicitFile(t *testing.T) {
	_, err := LoadFs(afero.NewMemMapFs(), "/nope.yaml", nil)
	assert.Error(t, err)
}

func TestLoadFs_Invalid(t *testing.T) {
	fs := memFs(t, "/c.yaml", "topDonorLimit: -1\nsnapshot:\n  enabled: true\n  path: \"\"\n")
	_, err := LoadFs(fs, "/c.yaml", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	for _, msg := range []string{
		"serviceId is required",
		"sources.serviceRegistry is required",
		"sources.masterData is required",
		"topDonorLimit must not be negative",
		"snapshot.path is required",
	} {
		assert.Contains(t, err.Error(), msg)
	}
}

func TestConfig_DashboardOptions(t *testing.T) {
	cfg, err := LoadFs(memFs(t, "/etc/scoss.yaml", sampleConfig), "/etc/scoss.yaml", nil)
	require.NoError(t, err)

	opts := cfg.DashboardOptions()
	assert.Equal(t, "SCOSS-42", opts.ServiceID)
	require.NotNil(t, opts.TopDonorLimit)
	assert.Equal(t, 5, *opts.TopDonorLimit)
	assert.Equal(t, "Our 5 biggest backers", opts.TopDonorHeader())
}
