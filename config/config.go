// Package config loads the report settings from a YAML file, SCOSS_*
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/asaidimu/go-scoss/dashboard"
	"github.com/asaidimu/go-scoss/source"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SCOSS_SERVICEID.
const EnvPrefix = "SCOSS"

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the settings of one report run.
type Config struct {
	ServiceID     string            `mapstructure:"serviceId"`
	TopDonorLimit int               `mapstructure:"topDonorLimit"`
	SeriesKey     string            `mapstructure:"seriesKey"`
	Sources       SourcesConfig     `mapstructure:"sources"`
	LoadTimeout   time.Duration     `mapstructure:"loadTimeout"`
	Logging       LoggingConfig     `mapstructure:"logging"`
	Snapshot      SnapshotConfig    `mapstructure:"snapshot"`
	Headers       dashboard.Headers `mapstructure:"headers"`
}

// SourcesConfig locates the two CSV sheets, as file paths or http(s) URLs.
type SourcesConfig struct {
	ServiceRegistry string `mapstructure:"serviceRegistry"`
	MasterData      string `mapstructure:"masterData"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SnapshotConfig enables copying the loaded sheets into a SQLite file.
type SnapshotConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Registry returns the service registry as a loader source.
func (c *Config) Registry() source.Source {
	return source.Source{ID: "registry", URL: c.Sources.ServiceRegistry}
}

// Master returns the master funding sheet as a loader source.
func (c *Config) Master() source.Source {
	return source.Source{ID: "master", URL: c.Sources.MasterData}
}

// flag name -> config key
var flagKeys = map[string]string{
	"service-id":      "serviceId",
	"top-donor-limit": "topDonorLimit",
	"series-key":      "seriesKey",
	"registry":        "sources.serviceRegistry",
	"master":          "sources.masterData",
	"load-timeout":    "loadTimeout",
	"log-level":       "logging.level",
	"log-format":      "logging.format",
	"snapshot":        "snapshot.enabled",
	"snapshot-path":   "snapshot.path",
}

// RegisterFlags adds the report flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP("config", "c", "", "path to a YAML config file")
	fs.StringP("service-id", "s", "", "service provider to report on")
	fs.Int("top-donor-limit", dashboard.DefaultTopDonorLimit, "number of donors in the top donor chart")
	fs.String("series-key", dashboard.DefaultSeriesKey, "key of every chart series")
	fs.String("registry", "", "service registry CSV (path or URL)")
	fs.String("master", "", "master funding CSV (path or URL)")
	fs.Duration("load-timeout", 30*time.Second, "timeout for loading both sheets")
	fs.String("log-level", "info", "log level")
	fs.String("log-format", "json", "log format (json or console)")
	fs.Bool("snapshot", false, "write the loaded sheets to SQLite")
	fs.String("snapshot-path", "scoss.db", "SQLite snapshot file")
}

func setDefaults(v *viper.Viper) {
	headers := dashboard.DefaultHeaders()
	v.SetDefault("serviceId", "")
	v.SetDefault("topDonorLimit", dashboard.DefaultTopDonorLimit)
	v.SetDefault("seriesKey", dashboard.DefaultSeriesKey)
	v.SetDefault("sources.serviceRegistry", "")
	v.SetDefault("sources.masterData", "")
	v.SetDefault("loadTimeout", 30*time.Second)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("snapshot.enabled", false)
	v.SetDefault("snapshot.path", "scoss.db")
	v.SetDefault("headers.progress", headers.Progress)
	v.SetDefault("headers.byCountry", headers.ByCountry)
	v.SetDefault("headers.byContinent", headers.ByContinent)
	v.SetDefault("headers.topDonors", headers.TopDonors)
	v.SetDefault("headers.allDonors", headers.AllDonors)
}

// Load reads the configuration from the OS filesystem. See LoadFs.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	return LoadFs(afero.NewOsFs(), path, flags)
}

// LoadFs reads the configuration. With an empty path a scoss.yaml in the
// working directory is used when present. flags may be nil; only flags that
// were set on the command line override the file and the environment.
func LoadFs(fs afero.Fs, path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetFs(fs)
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("scoss")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every missing or out-of-range setting at once.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.ServiceID) == "" {
		problems = append(problems, "serviceId is required")
	}
	if c.Sources.ServiceRegistry == "" {
		problems = append(problems, "sources.serviceRegistry is required")
	}
	if c.Sources.MasterData == "" {
		problems = append(problems, "sources.masterData is required")
	}
	if c.TopDonorLimit < 0 {
		problems = append(problems, "topDonorLimit must not be negative")
	}
	if c.LoadTimeout < 0 {
		problems = append(problems, "loadTimeout must not be negative")
	}
	if c.Snapshot.Enabled && c.Snapshot.Path == "" {
		problems = append(problems, "snapshot.path is required when snapshots are enabled")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// DashboardOptions maps the settings onto dashboard options.
func (c *Config) DashboardOptions() dashboard.Options {
	limit := c.TopDonorLimit
	headers := c.Headers
	return dashboard.Options{
		ServiceID:     c.ServiceID,
		TopDonorLimit: &limit,
		SeriesKey:     c.SeriesKey,
		Headers:       &headers,
	}
}
