// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	DefaultCounty string                  `yaml:"default_county" mapstructure:"default_county"`
	Counties      map[string]CountyConfig `yaml:"counties" mapstructure:"counties"`
	HTTP          HTTPConfig              `yaml:"http" mapstructure:"http"`
	Cache         CacheConfig             `yaml:"cache" mapstructure:"cache"`
	Batch         BatchConfig             `yaml:"batch" mapstructure:"batch"`
	Server        ServerConfig            `yaml:"server" mapstructure:"server"`
	Log           LogConfig               `yaml:"log" mapstructure:"log"`
}

// LayerPair names the zoning and FLU layers queried for one jurisdiction.
type LayerPair struct {
	Zoning string `yaml:"zoning" mapstructure:"zoning"`
	FLU    string `yaml:"flu" mapstructure:"flu"`
}

// CountyConfig configures one county's data sources. Municipal coverage is
// configuration, not code: cities with known layers go in city_overrides,
// cities with an ArcGIS viewer app go in city_apps, and anything else gets
// the contact-jurisdiction placeholder.
type CountyConfig struct {
	ParcelLayer        string               `yaml:"parcel_layer" mapstructure:"parcel_layer"`
	ParcelIDField      string               `yaml:"parcel_id_field" mapstructure:"parcel_id_field"`
	IDSegments         []int                `yaml:"id_segments" mapstructure:"id_segments"`
	IDDashed           bool                 `yaml:"id_dashed" mapstructure:"id_dashed"`
	BoundaryLayer      string               `yaml:"boundary_layer" mapstructure:"boundary_layer"`
	BoundaryNameField  string               `yaml:"boundary_name_field" mapstructure:"boundary_name_field"`
	BoundaryShapefile  string               `yaml:"boundary_shapefile" mapstructure:"boundary_shapefile"`
	Unincorporated     LayerPair            `yaml:"unincorporated" mapstructure:"unincorporated"`
	CityOverrides      map[string]LayerPair `yaml:"city_overrides" mapstructure:"city_overrides"`
	CityApps           map[string]string    `yaml:"city_apps" mapstructure:"city_apps"`
	CityNames          map[string]string    `yaml:"city_names" mapstructure:"city_names"`
	AppraiserURL       string               `yaml:"appraiser_url" mapstructure:"appraiser_url"`
	RateLimitPerSecond float64              `yaml:"rate_limit_per_second" mapstructure:"rate_limit_per_second"`
}

// HTTPConfig configures the shared ArcGIS HTTP client.
type HTTPConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts int    `yaml:"max_attempts" mapstructure:"max_attempts"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
}

// CacheConfig configures the lookup caches.
type CacheConfig struct {
	ParcelTTLMins  int `yaml:"parcel_ttl_mins" mapstructure:"parcel_ttl_mins"`
	SchemaTTLHours int `yaml:"schema_ttl_hours" mapstructure:"schema_ttl_hours"`
	MaxEntries     int `yaml:"max_entries" mapstructure:"max_entries"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentLookups int `yaml:"max_concurrent_lookups" mapstructure:"max_concurrent_lookups"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PARCEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("default_county", "pinellas")
	v.SetDefault("http.timeout_secs", 30)
	v.SetDefault("http.max_attempts", 3)
	v.SetDefault("http.user_agent", "parcel-cli/1.0")
	v.SetDefault("cache.parcel_ttl_mins", 60)
	v.SetDefault("cache.schema_ttl_hours", 24)
	v.SetDefault("cache.max_entries", 1000)
	v.SetDefault("batch.max_concurrent_lookups", 5)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if cfg.Counties == nil {
		cfg.Counties = map[string]CountyConfig{}
	}
	if _, ok := cfg.Counties["pinellas"]; !ok {
		cfg.Counties["pinellas"] = PinellasDefaults()
	}

	return &cfg, nil
}

// County returns the configuration for a county slug, falling back to the
// default county when name is empty.
func (c *Config) County(name string) (CountyConfig, bool) {
	if name == "" {
		name = c.DefaultCounty
	}
	cc, ok := c.Counties[strings.ToLower(strings.TrimSpace(name))]
	return cc, ok
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
