package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/audiolibrelab/opentune/internal/amp"
	"github.com/audiolibrelab/opentune/internal/engine"
)

// RootConfig is the on-disk layout: named profiles plus a pointer to the
// active one.
type RootConfig struct {
	ActiveProfile string              `mapstructure:"active_profile" yaml:"active_profile"`
	Profiles      map[string]*Profile `mapstructure:"profiles" yaml:"profiles"`
}

// Profile is one complete set of capture, amplifier, and output settings.
type Profile struct {
	Capture   CaptureSettings   `mapstructure:"capture" yaml:"capture"`
	Amplifier AmplifierSettings `mapstructure:"amplifier" yaml:"amplifier"`
	Output    OutputSettings    `mapstructure:"output" yaml:"output"`
	Project   ProjectSettings   `mapstructure:"project" yaml:"project"`
}

// CaptureSettings uses pointers for the flags whose zero value is
// meaningful, so a profile that omits them inherits the defaults instead
// of silently turning them off.
type CaptureSettings struct {
	Device         *int   `mapstructure:"device" yaml:"device,omitempty"` // nil = system default
	SampleRate     int    `mapstructure:"sample_rate" yaml:"sample_rate"`
	Channels       int    `mapstructure:"channels" yaml:"channels"`
	Format         string `mapstructure:"format" yaml:"format"`
	BlockSize      int    `mapstructure:"block_size" yaml:"block_size"`
	LatencyMs      int    `mapstructure:"latency_ms" yaml:"latency_ms"`
	ClipProtect    *bool  `mapstructure:"clip_protect" yaml:"clip_protect"`
	DitherOff      *bool  `mapstructure:"dither_off" yaml:"dither_off"`
	NeverDropInput *bool  `mapstructure:"never_drop_input" yaml:"never_drop_input"`
	Monitoring     *bool  `mapstructure:"monitoring" yaml:"monitoring"`
}

type AmplifierSettings struct {
	Gain float64 `mapstructure:"gain" yaml:"gain"`
	Mode string  `mapstructure:"mode" yaml:"mode"`
}

type OutputSettings struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
	BitDepth  int    `mapstructure:"bit_depth" yaml:"bit_depth"`
}

type ProjectSettings struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
	Author    string `mapstructure:"author" yaml:"author"`
}

// Config is the resolved, validated configuration used by the rest of the
// application.
type Config struct {
	ProfileName string            `yaml:"profile"`
	Capture     CaptureSettings   `yaml:"capture"`
	Amplifier   AmplifierSettings `yaml:"amplifier"`
	Output      OutputSettings    `yaml:"output"`
	Project     ProjectSettings   `yaml:"project"`
}

func boolPtr(v bool) *bool { return &v }

// boolSetting dereferences an optional flag, falling back when unset.
func boolSetting(p *bool, fallback bool) bool {
	if p == nil {
		return fallback
	}
	return *p
}

func defaultProfile() *Profile {
	return &Profile{
		Capture: CaptureSettings{
			SampleRate:     44100,
			Channels:       2,
			Format:         string(engine.FormatFloat32),
			BlockSize:      1024,
			ClipProtect:    boolPtr(true),
			DitherOff:      boolPtr(true),
			NeverDropInput: boolPtr(true),
			Monitoring:     boolPtr(false),
		},
		Amplifier: AmplifierSettings{
			Gain: 1.0,
			Mode: string(amp.ModeNormal),
		},
		Output: OutputSettings{
			Directory: filepath.Join(os.Getenv("HOME"), "Audio", "OpenTune"),
			BitDepth:  24,
		},
		Project: ProjectSettings{
			Directory: filepath.Join(os.Getenv("HOME"), "Audio", "OpenTune", "Projects"),
		},
	}
}

// Default returns the built-in configuration used when no file exists.
func Default() *Config {
	p := defaultProfile()
	return &Config{
		ProfileName: "default",
		Capture:     p.Capture,
		Amplifier:   p.Amplifier,
		Output:      p.Output,
		Project:     p.Project,
	}
}

// LoadWithProfile reads configFile and resolves the requested profile
// (falling back to the file's active_profile, then "default"). Missing
// fields inherit from the built-in defaults.
func LoadWithProfile(configFile, profile string) (*Config, error) {
	if configFile == "" {
		return nil, fmt.Errorf("no config file specified, use --config flag")
	}

	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetEnvPrefix("OPENTUNE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	var root RootConfig
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	name := profile
	if name == "" {
		name = root.ActiveProfile
	}
	if name == "" {
		name = "default"
	}

	selected, ok := root.Profiles[name]
	if !ok {
		if name == "default" && len(root.Profiles) == 0 {
			selected = defaultProfile()
		} else {
			return nil, fmt.Errorf("configuration profile '%s' not found", name)
		}
	}

	resolved := mergeProfiles(defaultProfile(), selected)
	cfg := &Config{
		ProfileName: name,
		Capture:     resolved.Capture,
		Amplifier:   resolved.Amplifier,
		Output:      resolved.Output,
		Project:     resolved.Project,
	}

	cfg.Output.Directory = expandPath(cfg.Output.Directory)
	cfg.Project.Directory = expandPath(cfg.Project.Directory)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// UpdateActiveProfile rewrites the active_profile field in the config
// file without touching anything else viper knows about globally.
func UpdateActiveProfile(configFile, name string) error {
	if configFile == "" {
		return fmt.Errorf("no config file specified")
	}

	v := viper.New()
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	v.Set("active_profile", name)
	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("error writing config file %s: %w", configFile, err)
	}
	return nil
}

// mergeProfiles fills unset profile fields from base. Values whose zero
// is meaningful (the capture flags, the device index) are pointers, so
// nil means omitted and inherits.
func mergeProfiles(base, profile *Profile) *Profile {
	if profile == nil {
		return base
	}
	result := *profile

	if result.Capture.SampleRate == 0 {
		result.Capture.SampleRate = base.Capture.SampleRate
	}
	if result.Capture.Channels == 0 {
		result.Capture.Channels = base.Capture.Channels
	}
	if result.Capture.Format == "" {
		result.Capture.Format = base.Capture.Format
	}
	if result.Capture.BlockSize == 0 {
		result.Capture.BlockSize = base.Capture.BlockSize
	}
	if result.Capture.ClipProtect == nil {
		result.Capture.ClipProtect = base.Capture.ClipProtect
	}
	if result.Capture.DitherOff == nil {
		result.Capture.DitherOff = base.Capture.DitherOff
	}
	if result.Capture.NeverDropInput == nil {
		result.Capture.NeverDropInput = base.Capture.NeverDropInput
	}
	if result.Capture.Monitoring == nil {
		result.Capture.Monitoring = base.Capture.Monitoring
	}
	if result.Amplifier.Gain == 0 {
		result.Amplifier.Gain = base.Amplifier.Gain
	}
	if result.Amplifier.Mode == "" {
		result.Amplifier.Mode = base.Amplifier.Mode
	}
	if result.Output.Directory == "" {
		result.Output.Directory = base.Output.Directory
	}
	if result.Output.BitDepth == 0 {
		result.Output.BitDepth = base.Output.BitDepth
	}
	if result.Project.Directory == "" {
		result.Project.Directory = base.Project.Directory
	}
	return &result
}

// Validate rejects settings no device could satisfy. Device-specific
// checks (supported rates, channel counts) happen later against the
// catalog.
func (c *Config) Validate() error {
	if c.Capture.SampleRate <= 0 {
		return fmt.Errorf("capture.sample_rate must be > 0, got %d", c.Capture.SampleRate)
	}
	if c.Capture.Channels <= 0 {
		return fmt.Errorf("capture.channels must be > 0, got %d", c.Capture.Channels)
	}
	if c.Capture.Format != string(engine.FormatFloat32) {
		return fmt.Errorf("capture.format must be %q, got %q", engine.FormatFloat32, c.Capture.Format)
	}
	if c.Capture.BlockSize <= 0 {
		return fmt.Errorf("capture.block_size must be > 0, got %d", c.Capture.BlockSize)
	}
	if c.Capture.LatencyMs < 0 {
		return fmt.Errorf("capture.latency_ms must be >= 0, got %d", c.Capture.LatencyMs)
	}
	if _, err := amp.ParseMode(c.Amplifier.Mode); err != nil {
		return fmt.Errorf("amplifier.mode: %w", err)
	}
	if c.Amplifier.Gain < amp.MinGain || c.Amplifier.Gain > amp.MaxGain {
		return fmt.Errorf("amplifier.gain must be in [%.1f, %.1f], got %.2f", amp.MinGain, amp.MaxGain, c.Amplifier.Gain)
	}
	if c.Output.BitDepth != 16 && c.Output.BitDepth != 24 {
		return fmt.Errorf("output.bit_depth must be 16 or 24, got %d", c.Output.BitDepth)
	}
	return nil
}

// CaptureConfig converts the file settings into the engine's config
// struct.
func (c *Config) CaptureConfig() engine.CaptureConfig {
	device := -1
	if c.Capture.Device != nil {
		device = *c.Capture.Device
	}
	return engine.CaptureConfig{
		DeviceIndex:    device,
		SampleRate:     c.Capture.SampleRate,
		Channels:       c.Capture.Channels,
		Format:         engine.SampleFormat(c.Capture.Format),
		BlockSize:      c.Capture.BlockSize,
		Latency:        time.Duration(c.Capture.LatencyMs) * time.Millisecond,
		ClipProtect:    boolSetting(c.Capture.ClipProtect, true),
		DitherOff:      boolSetting(c.Capture.DitherOff, true),
		NeverDropInput: boolSetting(c.Capture.NeverDropInput, true),
		Monitoring:     boolSetting(c.Capture.Monitoring, false),
	}
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}
