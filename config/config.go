package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/gptlisting/backend/internal/domain"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server  ServerConfig
	Assist  AssistConfig
	Pairing PairingConfig
	Cache   CacheConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// AssistConfig holds model-assist collaborator configuration
type AssistConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
}

// PairingConfig holds the engine thresholds and scoring weights.
// Every knob the candidate scorer and decider use lives here; nothing
// is a magic number inside the engine.
type PairingConfig struct {
	MinPreScore        float64 `mapstructure:"min_pre_score"`
	AutoPairScore      float64 `mapstructure:"auto_pair_score"`
	AutoPairGap        float64 `mapstructure:"auto_pair_gap"`
	AutoPairHairScore  float64 `mapstructure:"auto_pair_hair_score"`
	AutoPairHairGap    float64 `mapstructure:"auto_pair_hair_gap"`
	BrandMatchWeight   float64 `mapstructure:"brand_match_weight"`
	ProductTokenWeight float64 `mapstructure:"product_token_weight"`
	VariantTokenWeight float64 `mapstructure:"variant_token_weight"`
	ProximityBonus     float64 `mapstructure:"proximity_bonus"`
	EnableDebugLogging bool    `mapstructure:"enable_debug_logging"`
}

// Thresholds converts the config section into the engine's threshold struct
func (p PairingConfig) Thresholds() domain.PairingThresholds {
	return domain.PairingThresholds{
		MinPreScore:        p.MinPreScore,
		AutoPairScore:      p.AutoPairScore,
		AutoPairGap:        p.AutoPairGap,
		AutoPairHairScore:  p.AutoPairHairScore,
		AutoPairHairGap:    p.AutoPairHairGap,
		BrandMatchWeight:   p.BrandMatchWeight,
		ProductTokenWeight: p.ProductTokenWeight,
		VariantTokenWeight: p.VariantTokenWeight,
		ProximityBonus:     p.ProximityBonus,
	}
}

// CacheConfig holds result-cache configuration
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/gptlisting/")

	// Environment variable settings
	v.SetEnvPrefix("GPTLISTING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using environment variables and defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Assist defaults. base_url and api_key default to empty so viper
	// picks them up from the environment during Unmarshal.
	v.SetDefault("assist.base_url", "")
	v.SetDefault("assist.api_key", "")
	v.SetDefault("assist.timeout", "20s")
	v.SetDefault("assist.requests_per_minute", 60)

	// Pairing defaults: the tuned production thresholds
	defaults := domain.DefaultThresholds()
	v.SetDefault("pairing.min_pre_score", defaults.MinPreScore)
	v.SetDefault("pairing.auto_pair_score", defaults.AutoPairScore)
	v.SetDefault("pairing.auto_pair_gap", defaults.AutoPairGap)
	v.SetDefault("pairing.auto_pair_hair_score", defaults.AutoPairHairScore)
	v.SetDefault("pairing.auto_pair_hair_gap", defaults.AutoPairHairGap)
	v.SetDefault("pairing.brand_match_weight", defaults.BrandMatchWeight)
	v.SetDefault("pairing.product_token_weight", defaults.ProductTokenWeight)
	v.SetDefault("pairing.variant_token_weight", defaults.VariantTokenWeight)
	v.SetDefault("pairing.proximity_bonus", defaults.ProximityBonus)
	v.SetDefault("pairing.enable_debug_logging", false)

	// Cache defaults
	v.SetDefault("cache.ttl", "24h")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Assist.BaseURL == "" {
		return fmt.Errorf("assist base URL is required (set GPTLISTING_ASSIST_BASE_URL)")
	}

	p := config.Pairing
	if p.MinPreScore < 0 {
		return fmt.Errorf("pairing.min_pre_score must not be negative, got: %v", p.MinPreScore)
	}
	if p.AutoPairScore < p.MinPreScore {
		return fmt.Errorf("pairing.auto_pair_score (%v) must not be below pairing.min_pre_score (%v)", p.AutoPairScore, p.MinPreScore)
	}
	if p.AutoPairHairScore > p.AutoPairScore {
		return fmt.Errorf("pairing.auto_pair_hair_score (%v) must not exceed pairing.auto_pair_score (%v)", p.AutoPairHairScore, p.AutoPairScore)
	}
	if p.AutoPairGap < 0 || p.AutoPairHairGap < 0 {
		return fmt.Errorf("pairing gaps must not be negative")
	}
	if p.BrandMatchWeight <= 0 {
		return fmt.Errorf("pairing.brand_match_weight must be positive, got: %v", p.BrandMatchWeight)
	}

	if config.Assist.Timeout <= 0 {
		return fmt.Errorf("assist.timeout must be positive, got: %v", config.Assist.Timeout)
	}

	return nil
}
