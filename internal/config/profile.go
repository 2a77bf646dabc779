package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// Profile names a resource budget tier, selected by board capability
// rather than by feature set — every profile runs the same controller,
// just with different ceilings on memory and goroutines.
type Profile string

const (
	// ProfileMinimal targets a Pi Zero or similarly constrained board
	// (512MB RAM): few strips, conservative goroutine ceiling, serial
	// input allowed but no MQTT ingress or metrics export.
	ProfileMinimal Profile = "minimal"

	// ProfileStandard targets a Pi 3/4-class board (1GB RAM): normal
	// strip counts, MQTT/serial ingress and metrics export allowed.
	ProfileStandard Profile = "standard"

	// ProfileFull targets a Pi 4/5 or desktop-class host (2GB+ RAM): no
	// practical ceiling, every optional subsystem allowed.
	ProfileFull Profile = "full"
)

// ProfileConfig bounds the resources one controller instance may use and
// which optional subsystems it's permitted to enable, matched to the
// board it's running on.
type ProfileConfig struct {
	Name        Profile `mapstructure:"name"`
	Description string  `mapstructure:"description"`

	MaxMemoryMB   int64 `mapstructure:"max_memory_mb"`
	MaxGoroutines int   `mapstructure:"max_goroutines"`
	MaxStrips     int   `mapstructure:"max_strips"`
	MaxZones      int   `mapstructure:"max_zones"`

	Subsystems SubsystemsConfig `mapstructure:"subsystems"`
	Features   FeaturesConfig   `mapstructure:"features"`
}

// SubsystemsConfig gates which optional ingress/export adapters a
// profile permits, independent of whether the on-disk config enables
// them (a minimal-profile board refuses MQTT even if configs/config.yaml
// turns it on).
type SubsystemsConfig struct {
	MQTT    bool `mapstructure:"mqtt"`
	Serial  bool `mapstructure:"serial"`
	Metrics bool `mapstructure:"metrics"` // InfluxDB export
}

// FeaturesConfig defines feature flags
type FeaturesConfig struct {
	AutoDisable     bool `mapstructure:"auto_disable"`     // stop animations under memory pressure
	ResourceMonitor bool `mapstructure:"resource_monitor"` // run the periodic resource sampler at all
	DebugMode       bool `mapstructure:"debug_mode"`
}

// GetDefaultProfiles returns the built-in profile configurations.
func GetDefaultProfiles() map[Profile]*ProfileConfig {
	return map[Profile]*ProfileConfig{
		ProfileMinimal: {
			Name:          ProfileMinimal,
			Description:   "Minimal profile for Pi Zero and similarly constrained boards (512MB RAM)",
			MaxMemoryMB:   48,
			MaxGoroutines: 256,
			MaxStrips:     2,
			MaxZones:      16,
			Subsystems:    SubsystemsConfig{MQTT: false, Serial: true, Metrics: false},
			Features:      FeaturesConfig{AutoDisable: true, ResourceMonitor: true, DebugMode: false},
		},
		ProfileStandard: {
			Name:          ProfileStandard,
			Description:   "Standard profile for Pi 3/4-class boards (1GB RAM)",
			MaxMemoryMB:   192,
			MaxGoroutines: 1024,
			MaxStrips:     8,
			MaxZones:      128,
			Subsystems:    SubsystemsConfig{MQTT: true, Serial: true, Metrics: true},
			Features:      FeaturesConfig{AutoDisable: true, ResourceMonitor: true, DebugMode: false},
		},
		ProfileFull: {
			Name:          ProfileFull,
			Description:   "Full profile for Pi 4/5 and desktop-class hosts (2GB+ RAM)",
			MaxMemoryMB:   512,
			MaxGoroutines: 4096,
			MaxStrips:     32,
			MaxZones:      512,
			Subsystems:    SubsystemsConfig{MQTT: true, Serial: true, Metrics: true},
			Features:      FeaturesConfig{AutoDisable: false, ResourceMonitor: true, DebugMode: true},
		},
	}
}

// LoadProfile loads a profile's configuration, overlaying any on-disk
// configs/profile-<name>.yaml onto the built-in defaults for that
// profile.
func LoadProfile(profileName string) (*ProfileConfig, error) {
	profile := Profile(profileName)

	defaults := GetDefaultProfiles()
	defaultConfig, exists := defaults[profile]
	if !exists {
		return nil, fmt.Errorf("unknown profile: %s", profileName)
	}

	v := viper.New()
	v.SetConfigName(fmt.Sprintf("profile-%s", profileName))
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(getConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read profile config: %w", err)
		}
		return defaultConfig, nil
	}

	var cfg ProfileConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile config: %w", err)
	}
	mergeProfileConfig(&cfg, defaultConfig)
	return &cfg, nil
}

// DetectProfile picks a profile from the host's architecture and memory,
// used when the on-disk config doesn't name one explicitly.
func DetectProfile() Profile {
	var memInfo runtime.MemStats
	runtime.ReadMemStats(&memInfo)
	totalMemMB := memInfo.Sys / 1024 / 1024

	isARM := runtime.GOARCH == "arm" || runtime.GOARCH == "arm64"
	if !isARM {
		return ProfileFull
	}

	board := DetectBoard()
	if board != "" {
		return GetProfileForBoard(board)
	}

	switch {
	case totalMemMB < 256:
		return ProfileMinimal
	case totalMemMB < 1024:
		return ProfileStandard
	default:
		return ProfileFull
	}
}

// DetectBoard inspects well-known device-tree/release files to name the
// host board, falling back to a generic OS/arch label.
func DetectBoard() string {
	if data, err := os.ReadFile("/proc/device-tree/model"); err == nil {
		model := string(data)
		switch {
		case strings.Contains(model, "Raspberry Pi Zero"):
			return "Pi Zero"
		case strings.Contains(model, "Raspberry Pi 3"):
			return "Pi 3"
		case strings.Contains(model, "Raspberry Pi 4"):
			return "Pi 4"
		case strings.Contains(model, "Raspberry Pi 5"):
			return "Pi 5"
		case strings.Contains(model, "Raspberry Pi"):
			return "Raspberry Pi"
		}
	}

	if _, err := os.Stat("/etc/dogtag"); err == nil {
		return "BeagleBone"
	}
	if _, err := os.Stat("/etc/orangepi-release"); err == nil {
		return "Orange Pi"
	}
	if _, err := os.Stat("/etc/nv_tegra_release"); err == nil {
		return "Jetson"
	}

	if runtime.GOOS == "linux" {
		switch runtime.GOARCH {
		case "arm64":
			return "ARM64 Linux"
		case "arm":
			return "ARM Linux"
		default:
			return "Linux"
		}
	}
	return ""
}

// GetProfileForBoard maps a board label to its recommended profile.
func GetProfileForBoard(board string) Profile {
	switch board {
	case "Pi Zero":
		return ProfileMinimal
	case "Pi 3", "Orange Pi", "BeagleBone":
		return ProfileStandard
	case "Pi 4", "Pi 5", "Jetson":
		return ProfileFull
	default:
		return ProfileStandard
	}
}

func mergeProfileConfig(cfg *ProfileConfig, defaults *ProfileConfig) {
	if cfg.Name == "" {
		cfg.Name = defaults.Name
	}
	if cfg.Description == "" {
		cfg.Description = defaults.Description
	}
	if cfg.MaxMemoryMB == 0 {
		cfg.MaxMemoryMB = defaults.MaxMemoryMB
	}
	if cfg.MaxGoroutines == 0 {
		cfg.MaxGoroutines = defaults.MaxGoroutines
	}
	if cfg.MaxStrips == 0 {
		cfg.MaxStrips = defaults.MaxStrips
	}
	if cfg.MaxZones == 0 {
		cfg.MaxZones = defaults.MaxZones
	}
}

// SaveProfileConfig writes a profile configuration to
// profile-<name>.yaml in the user config directory (~/.ledctl, one of
// the paths LoadProfile searches), used by provisioning tooling to pin a
// board to a custom profile rather than relying on DetectProfile.
func SaveProfileConfig(profileName string, cfg *ProfileConfig) error {
	configPath := filepath.Join(getConfigDir(), fmt.Sprintf("profile-%s.yaml", profileName))

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.Set("name", cfg.Name)
	v.Set("description", cfg.Description)
	v.Set("max_memory_mb", cfg.MaxMemoryMB)
	v.Set("max_goroutines", cfg.MaxGoroutines)
	v.Set("max_strips", cfg.MaxStrips)
	v.Set("max_zones", cfg.MaxZones)
	v.Set("subsystems", cfg.Subsystems)
	v.Set("features", cfg.Features)

	return v.WriteConfigAs(configPath)
}

// ValidateProfile checks a profile's limits are sane before it's applied.
func ValidateProfile(cfg *ProfileConfig) error {
	if cfg.MaxMemoryMB < 8 {
		return fmt.Errorf("max_memory_mb must be at least 8")
	}
	if cfg.MaxGoroutines < 16 {
		return fmt.Errorf("max_goroutines must be at least 16")
	}
	if cfg.MaxStrips < 1 {
		return fmt.Errorf("max_strips must be at least 1")
	}
	if cfg.MaxZones < 1 {
		return fmt.Errorf("max_zones must be at least 1")
	}
	return nil
}
