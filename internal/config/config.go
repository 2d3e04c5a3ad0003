package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	SendBuffer int           `mapstructure:"send_buffer"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`

	Proximity ProximityConfig `mapstructure:"proximity"`
	Store     StoreConfig     `mapstructure:"store"`
	Chat      ChatConfig      `mapstructure:"chat"`

	// SupersedePolicy is what happens to a connection whose username was
	// claimed by a newer connection: "notify" or "close".
	SupersedePolicy string `mapstructure:"supersede_policy"`
}

// ProximityConfig controls nearby matching. RadiusKm is the inclusive
// great-circle distance for a match; EarthRadiusKm is the sphere used by
// the haversine formula, so raising it stretches every distance linearly.
type ProximityConfig struct {
	RadiusKm      float64 `mapstructure:"radius_km"`
	EarthRadiusKm float64 `mapstructure:"earth_radius_km"`
}

type StoreConfig struct {
	Driver  string `mapstructure:"driver"`
	Path    string `mapstructure:"path"`
	Retries uint   `mapstructure:"retries"`
}

type ChatConfig struct {
	RateLimit  int           `mapstructure:"rate_limit"`
	RateWindow time.Duration `mapstructure:"rate_window"`
}

const (
	SupersedeNotify = "notify"
	SupersedeClose  = "close"
)

func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

// LoadFile reads fileName if present and falls back to defaults when it
// does not exist. A file that exists but cannot be parsed is an error.
// NEARBY_* environment variables override both.
func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("nearby")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config %s: %w", fileName, err)
		}
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("store", cfg.Store.Driver).
		Float64("radius_km", cfg.Proximity.RadiusKm).
		Msg("config ready")
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("secret", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("proximity.radius_km", 1.0)
	v.SetDefault("proximity.earth_radius_km", 6371.0)
	v.SetDefault("store.driver", "json")
	v.SetDefault("store.path", "users.json")
	v.SetDefault("store.retries", 3)
	v.SetDefault("chat.rate_limit", 20)
	v.SetDefault("chat.rate_window", "10s")
	v.SetDefault("supersede_policy", SupersedeNotify)
}

func (c *Config) Validate() error {
	if c.Proximity.RadiusKm < 0 {
		return fmt.Errorf("proximity.radius_km must not be negative, got %v", c.Proximity.RadiusKm)
	}
	if c.Proximity.EarthRadiusKm <= 0 {
		return fmt.Errorf("proximity.earth_radius_km must be positive, got %v", c.Proximity.EarthRadiusKm)
	}
	switch c.Store.Driver {
	case "json", "sqlite", "memory":
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	switch c.SupersedePolicy {
	case SupersedeNotify, SupersedeClose:
	default:
		return fmt.Errorf("unknown supersede_policy %q", c.SupersedePolicy)
	}
	if c.PingPeriod <= 0 {
		return fmt.Errorf("ping_period must be positive, got %v", c.PingPeriod)
	}
	if c.Chat.RateLimit > 0 && c.Chat.RateWindow <= 0 {
		return fmt.Errorf("chat.rate_window must be positive when chat.rate_limit is set, got %v", c.Chat.RateWindow)
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("send_buffer must be positive, got %d", c.SendBuffer)
	}
	return nil
}

// PongWait is how long a connection may stay silent before it is dropped.
func (c *Config) PongWait() time.Duration {
	return c.PingPeriod * 10 / 9
}
