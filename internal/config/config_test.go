package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "opentune.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config failed validation: %v", err)
	}
	if cfg.Capture.SampleRate != 44100 || cfg.Capture.Channels != 2 {
		t.Errorf("Unexpected capture defaults: %+v", cfg.Capture)
	}
	if cfg.Amplifier.Gain != 1.0 || cfg.Amplifier.Mode != "normal" {
		t.Errorf("Unexpected amplifier defaults: %+v", cfg.Amplifier)
	}
	if cfg.Output.BitDepth != 24 {
		t.Errorf("Expected default bit depth 24, got %d", cfg.Output.BitDepth)
	}
}

func TestLoadWithProfile_MergeAndInheritance(t *testing.T) {
	configContent := `
active_profile: studio
profiles:
    default:
        capture:
            monitoring: true
    studio:
        capture:
            device: 2
            sample_rate: 48000
        amplifier:
            gain: 2.0
        output:
            directory: /tmp/studio-takes
`
	path := writeConfig(t, configContent)

	cfg, err := LoadWithProfile(path, "studio")
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.ProfileName != "studio" {
		t.Errorf("Expected profile 'studio', got %q", cfg.ProfileName)
	}

	// Profile-specific values.
	if cfg.Capture.SampleRate != 48000 {
		t.Errorf("Expected sample rate 48000, got %d", cfg.Capture.SampleRate)
	}
	if cfg.Capture.Device == nil || *cfg.Capture.Device != 2 {
		t.Errorf("Expected device 2, got %v", cfg.Capture.Device)
	}
	if cfg.Amplifier.Gain != 2.0 {
		t.Errorf("Expected gain 2.0, got %.1f", cfg.Amplifier.Gain)
	}
	if cfg.Output.Directory != "/tmp/studio-takes" {
		t.Errorf("Expected directory '/tmp/studio-takes', got %q", cfg.Output.Directory)
	}

	// Inherited values.
	if cfg.Capture.Channels != 2 {
		t.Errorf("Expected inherited channels 2, got %d", cfg.Capture.Channels)
	}
	if cfg.Capture.Format != "float32" {
		t.Errorf("Expected inherited format 'float32', got %q", cfg.Capture.Format)
	}
	if cfg.Capture.BlockSize != 1024 {
		t.Errorf("Expected inherited block size 1024, got %d", cfg.Capture.BlockSize)
	}
	if cfg.Amplifier.Mode != "normal" {
		t.Errorf("Expected inherited mode 'normal', got %q", cfg.Amplifier.Mode)
	}
	if cfg.Output.BitDepth != 24 {
		t.Errorf("Expected inherited bit depth 24, got %d", cfg.Output.BitDepth)
	}
}

func TestLoadWithProfile_BooleanInheritance(t *testing.T) {
	// A profile that overrides unrelated capture fields must not reset the
	// boolean flags it omits.
	path := writeConfig(t, `
active_profile: studio
profiles:
    studio:
        capture:
            sample_rate: 48000
            monitoring: true
    quiet:
        capture:
            clip_protect: false
`)

	cfg, err := LoadWithProfile(path, "studio")
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}

	cc := cfg.CaptureConfig()
	if !cc.ClipProtect {
		t.Error("Expected clip_protect to survive a partial profile")
	}
	if !cc.DitherOff {
		t.Error("Expected dither_off to survive a partial profile")
	}
	if !cc.NeverDropInput {
		t.Error("Expected never_drop_input to survive a partial profile")
	}
	if !cc.Monitoring {
		t.Error("Expected monitoring true from the profile")
	}

	quiet, err := LoadWithProfile(path, "quiet")
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}
	if quiet.CaptureConfig().ClipProtect {
		t.Error("Expected explicit clip_protect false to win")
	}
}

func TestLoadWithProfile_ActiveProfileFallback(t *testing.T) {
	configContent := `
active_profile: live
profiles:
    live:
        capture:
            sample_rate: 48000
`
	path := writeConfig(t, configContent)

	cfg, err := LoadWithProfile(path, "")
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.ProfileName != "live" {
		t.Errorf("Expected active profile 'live', got %q", cfg.ProfileName)
	}
	if cfg.Capture.SampleRate != 48000 {
		t.Errorf("Expected sample rate 48000, got %d", cfg.Capture.SampleRate)
	}
}

func TestLoadWithProfile_UnknownProfile(t *testing.T) {
	path := writeConfig(t, `
profiles:
    default:
        capture:
            sample_rate: 44100
`)
	if _, err := LoadWithProfile(path, "missing"); err == nil {
		t.Error("Expected error for unknown profile")
	}
}

func TestLoadWithProfile_EmptyFileUsesDefaults(t *testing.T) {
	path := writeConfig(t, "active_profile: \"\"\n")

	cfg, err := LoadWithProfile(path, "")
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.ProfileName != "default" {
		t.Errorf("Expected profile 'default', got %q", cfg.ProfileName)
	}
	if cfg.Capture.SampleRate != 44100 {
		t.Errorf("Expected default sample rate 44100, got %d", cfg.Capture.SampleRate)
	}
}

func TestLoadWithProfile_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
profiles:
    default:
        amplifier:
            gain: 20.0
`)
	_, err := LoadWithProfile(path, "default")
	if err == nil {
		t.Fatal("Expected validation failure for out-of-range gain")
	}
	if !strings.Contains(err.Error(), "amplifier.gain") {
		t.Errorf("Expected gain error, got %v", err)
	}
}

func TestValidateRejectsBadSettings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero sample rate", func(c *Config) { c.Capture.SampleRate = 0 }},
		{"zero channels", func(c *Config) { c.Capture.Channels = 0 }},
		{"bad format", func(c *Config) { c.Capture.Format = "int16" }},
		{"zero block size", func(c *Config) { c.Capture.BlockSize = 0 }},
		{"negative latency", func(c *Config) { c.Capture.LatencyMs = -1 }},
		{"bad mode", func(c *Config) { c.Amplifier.Mode = "turbo" }},
		{"gain out of range", func(c *Config) { c.Amplifier.Gain = 11 }},
		{"bad bit depth", func(c *Config) { c.Output.BitDepth = 20 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestCaptureConfigConversion(t *testing.T) {
	cfg := Default()
	cfg.Capture.LatencyMs = 20
	cfg.Capture.Monitoring = boolPtr(true)

	cc := cfg.CaptureConfig()
	if cc.DeviceIndex != -1 {
		t.Errorf("Expected default device -1, got %d", cc.DeviceIndex)
	}
	if cc.Latency != 20*time.Millisecond {
		t.Errorf("Expected 20ms latency, got %v", cc.Latency)
	}
	if !cc.Monitoring {
		t.Error("Expected monitoring carried through")
	}

	device := 3
	cfg.Capture.Device = &device
	if got := cfg.CaptureConfig().DeviceIndex; got != 3 {
		t.Errorf("Expected device 3, got %d", got)
	}
}

func TestUpdateActiveProfile(t *testing.T) {
	path := writeConfig(t, `
active_profile: default
profiles:
    default:
        capture:
            sample_rate: 44100
    studio:
        capture:
            sample_rate: 48000
`)

	if err := UpdateActiveProfile(path, "studio"); err != nil {
		t.Fatalf("UpdateActiveProfile failed: %v", err)
	}

	cfg, err := LoadWithProfile(path, "")
	if err != nil {
		t.Fatalf("Failed to reload configuration: %v", err)
	}
	if cfg.ProfileName != "studio" {
		t.Errorf("Expected active profile 'studio', got %q", cfg.ProfileName)
	}
}

func TestExpandPath(t *testing.T) {
	homeDir, _ := os.UserHomeDir()

	tests := []struct {
		input    string
		expected string
	}{
		{"~/Audio/OpenTune", filepath.Join(homeDir, "Audio", "OpenTune")},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
		{"~", "~"},
	}

	for _, test := range tests {
		result := expandPath(test.input)
		if result != test.expected {
			t.Errorf("expandPath(%q) = %q, expected %q", test.input, result, test.expected)
		}
	}
}
