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
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Jina      JinaConfig      `yaml:"jina" mapstructure:"jina"`
	Places    PlacesConfig    `yaml:"places" mapstructure:"places"`
	Evidence  EvidenceConfig  `yaml:"evidence" mapstructure:"evidence"`
	Enrich    EnrichConfig    `yaml:"enrich" mapstructure:"enrich"`
	Valuation ValuationConfig `yaml:"valuation" mapstructure:"valuation"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings. Model, temperature and token
// limits come from the per-pipeline extraction config, not from here.
type AnthropicConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// JinaConfig holds Jina AI Reader/Search settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// PlacesConfig holds Google Places API settings.
type PlacesConfig struct {
	Key     string  `yaml:"key" mapstructure:"key"`
	BaseURL string  `yaml:"base_url" mapstructure:"base_url"`
	QPS     float64 `yaml:"qps" mapstructure:"qps"`
}

// EvidenceConfig tunes the evidence aggregator.
type EvidenceConfig struct {
	MaxItems int `yaml:"max_items" mapstructure:"max_items"`
	// MinChars is the minimum-information floor: below this many aggregated
	// characters the run reports insufficient evidence.
	MinChars int `yaml:"min_chars" mapstructure:"min_chars"`
	// Platforms are the specialized campervan directories searched with a
	// site filter, in priority order.
	Platforms []string `yaml:"platforms" mapstructure:"platforms"`
	// Denylist drops findings whose URL or text contains any of these
	// substrings (rental aggregators, link farms).
	Denylist []string `yaml:"denylist" mapstructure:"denylist"`
}

// EnrichConfig tunes the area enrichment pipelines.
type EnrichConfig struct {
	MinDescriptionChars int `yaml:"min_description_chars" mapstructure:"min_description_chars"`
	MaxDescriptionChars int `yaml:"max_description_chars" mapstructure:"max_description_chars"`
	MaxPhotos           int `yaml:"max_photos" mapstructure:"max_photos"`
}

// ValuationConfig tunes the vehicle valuation pipeline.
type ValuationConfig struct {
	// Marketplaces are second-hand listing sites searched for comparables,
	// each with a site filter. Empty disables the comparables capability.
	Marketplaces   []string `yaml:"marketplaces" mapstructure:"marketplaces"`
	MaxComparables int      `yaml:"max_comparables" mapstructure:"max_comparables"`
}

// BatchConfig tunes sequential batch enrichment.
type BatchConfig struct {
	// IntervalSecs is the mandatory delay between targets, the backpressure
	// mechanism against quota-limited upstreams.
	IntervalSecs int `yaml:"interval_secs" mapstructure:"interval_secs"`
	Limit        int `yaml:"limit" mapstructure:"limit"`
}

// ServerConfig configures the trigger HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from ./config.yaml (optional) and FURGOPLAZA_*
// environment variables, applying defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("FURGOPLAZA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("places.base_url", "https://maps.googleapis.com/maps/api/place")
	v.SetDefault("places.qps", 5.0)
	v.SetDefault("evidence.max_items", 12)
	v.SetDefault("evidence.min_chars", 200)
	v.SetDefault("evidence.platforms", []string{"park4night.com", "campercontact.com"})
	v.SetDefault("evidence.denylist", []string{
		"utm_", "gclid", "fbclid", "doubleclick", "googletagmanager",
		"favicon", "sprite", "icon-", "thumb", "1x1", "pixel.gif",
	})
	v.SetDefault("enrich.min_description_chars", 120)
	v.SetDefault("enrich.max_description_chars", 2000)
	v.SetDefault("enrich.max_photos", 8)
	v.SetDefault("valuation.marketplaces", []string{"milanuncios.com", "wallapop.com"})
	v.SetDefault("valuation.max_comparables", 8)
	v.SetDefault("batch.interval_secs", 5)
	v.SetDefault("batch.limit", 100)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger builds the global zap logger from config.
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
