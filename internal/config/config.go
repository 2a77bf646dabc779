// Package config loads the controller's configuration from file and
// environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/ws281x-core/ledctl/internal/color"
	"github.com/ws281x-core/ledctl/internal/zone"
)

// Config holds every setting the controller needs at startup. Zone
// topology is immutable once loaded. The only runtime reload path is
// PresetWatcher (watch.go), which reloads a preset file; every other
// setting is read once by Load.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Logger     LoggerConfig     `mapstructure:"logger"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Snapshot   SnapshotConfig   `mapstructure:"snapshot"`
	MQTT       MQTTConfig       `mapstructure:"mqtt"`
	Serial     SerialConfig     `mapstructure:"serial"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Strips     []StripConfig    `mapstructure:"strips"`
	Zones      []ZoneConfig     `mapstructure:"zones"`
	Presets    []PresetConfig   `mapstructure:"presets"`
}

// ServerConfig contains the HTTP/websocket listen settings.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// LoggerConfig mirrors logger.Config's shape so it can be unmarshaled
// directly from the document.
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	LogDir     string `mapstructure:"log_dir"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// PipelineConfig tunes the Frame Pipeline's cadence.
type PipelineConfig struct {
	TickMS int `mapstructure:"tick_ms"`
}

// SnapshotConfig tunes the debounced zone-state persistence.
type SnapshotConfig struct {
	Path        string `mapstructure:"path"`
	DebounceMS  int    `mapstructure:"debounce_ms"`
}

// MQTTConfig enables the optional MQTT command-ingress adapter.
type MQTTConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	BrokerURL    string `mapstructure:"broker_url"`
	ClientID     string `mapstructure:"client_id"`
	CommandTopic string `mapstructure:"command_topic"`
}

// SerialConfig enables the optional USB-serial hardware-input adapter.
type SerialConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Port     string `mapstructure:"port"`
	BaudRate int    `mapstructure:"baud_rate"`
}

// MetricsConfig enables the optional InfluxDB exporter.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Token   string `mapstructure:"token"`
	Org     string `mapstructure:"org"`
	Bucket  string `mapstructure:"bucket"`
}

// StripConfig describes one physical LED strip.
type StripConfig struct {
	ID         string `mapstructure:"id"`
	Driver     string `mapstructure:"driver"` // "rpio" | "periph" | "mock"
	Pin        int    `mapstructure:"pin"`
	SPIPort    string `mapstructure:"spi_port"`
	PixelCount int    `mapstructure:"pixel_count"`
	ColorOrder string `mapstructure:"color_order"`
}

// ZoneConfig mirrors zone.Config's on-disk shape.
type ZoneConfig struct {
	ID          string `mapstructure:"id"`
	DisplayName string `mapstructure:"display_name"`
	StripID     string `mapstructure:"strip_id"`
	PixelCount  int    `mapstructure:"pixel_count"`
	GPIOPin     int    `mapstructure:"gpio_pin"`
	RangeStart  int    `mapstructure:"range_start"`
	RangeEnd    int    `mapstructure:"range_end"`
	Layout      string `mapstructure:"layout"`
}

// ToZoneConfig converts a loaded ZoneConfig to zone.Config.
func (z ZoneConfig) ToZoneConfig() zone.Config {
	return zone.Config{
		ID:          zone.ID(z.ID),
		DisplayName: z.DisplayName,
		StripID:     z.StripID,
		PixelCount:  z.PixelCount,
		GPIOPin:     z.GPIOPin,
		Range:       zone.PixelRange{Start: z.RangeStart, End: z.RangeEnd},
		Layout:      z.Layout,
	}
}

// PresetConfig mirrors color.Preset's on-disk shape.
type PresetConfig struct {
	Name     string `mapstructure:"name"`
	R        uint8  `mapstructure:"r"`
	G        uint8  `mapstructure:"g"`
	B        uint8  `mapstructure:"b"`
	Category string `mapstructure:"category"`
}

// ToColorPreset converts a loaded PresetConfig to color.Preset.
func (p PresetConfig) ToColorPreset() color.Preset {
	return color.Preset{
		Name:     p.Name,
		RGB:      color.RGB{R: p.R, G: p.G, B: p.B},
		Category: color.Category(p.Category),
	}
}

// TickPeriod returns the configured pipeline cadence as a Duration.
func (c PipelineConfig) TickPeriod() time.Duration {
	if c.TickMS <= 0 {
		return 16 * time.Millisecond
	}
	return time.Duration(c.TickMS) * time.Millisecond
}

// DebouncePeriod returns the configured snapshot debounce as a Duration.
func (c SnapshotConfig) DebouncePeriod() time.Duration {
	if c.DebounceMS <= 0 {
		return 200 * time.Millisecond
	}
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// Load reads configuration from configPath (or the standard search
// locations if empty) and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		v.AddConfigPath(getConfigDir())
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix("LEDCTL")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.log_dir", "./logs")
	v.SetDefault("logger.max_size_mb", 50)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age_days", 7)
	v.SetDefault("logger.compress", true)

	v.SetDefault("pipeline.tick_ms", 16)
	v.SetDefault("snapshot.path", "./data/zones.json")
	v.SetDefault("snapshot.debounce_ms", 200)
}

func getConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".ledctl")
}
