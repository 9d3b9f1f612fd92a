package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/audiolibrelab/opentune/internal/catalog"
)

// ErrInvalidConfig marks a capture configuration the selected device
// cannot satisfy. Validation happens before any stream is opened; invalid
// combinations are rejected, never clamped.
var ErrInvalidConfig = errors.New("invalid capture configuration")

// SampleFormat names the on-wire sample encoding of a stream.
type SampleFormat string

// FormatFloat32 is the only format the pipeline currently carries.
const FormatFloat32 SampleFormat = "float32"

// CaptureConfig is the full set of parameters for one capture stream.
type CaptureConfig struct {
	DeviceIndex    int           `json:"device_index" yaml:"device_index"` // -1 selects the system default
	SampleRate     int           `json:"sample_rate" yaml:"sample_rate"`
	Channels       int           `json:"channels" yaml:"channels"`
	Format         SampleFormat  `json:"format" yaml:"format"`
	BlockSize      int           `json:"block_size" yaml:"block_size"` // frames per callback
	Latency        time.Duration `json:"latency" yaml:"latency"`
	ClipProtect    bool          `json:"clip_protect" yaml:"clip_protect"`
	DitherOff      bool          `json:"dither_off" yaml:"dither_off"`
	NeverDropInput bool          `json:"never_drop_input" yaml:"never_drop_input"`
	Monitoring     bool          `json:"monitoring" yaml:"monitoring"`
}

// DefaultConfig mirrors the recorder defaults: stereo float32 at 44.1kHz,
// 1024-frame blocks, protective stream flags on.
func DefaultConfig() CaptureConfig {
	return CaptureConfig{
		DeviceIndex:    -1,
		SampleRate:     44100,
		Channels:       2,
		Format:         FormatFloat32,
		BlockSize:      1024,
		ClipProtect:    true,
		DitherOff:      true,
		NeverDropInput: true,
	}
}

// Validate checks the config against the capabilities of the resolved
// device descriptor.
func (c CaptureConfig) Validate(desc catalog.DeviceDescriptor) error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrInvalidConfig, c.SampleRate)
	}
	if !desc.SupportsSampleRate(c.SampleRate) {
		return fmt.Errorf("%w: device %q does not support %d Hz (supported: %v)",
			ErrInvalidConfig, desc.Name, c.SampleRate, desc.SupportedSampleRates)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("%w: channel count %d", ErrInvalidConfig, c.Channels)
	}
	if c.Channels > desc.MaxInputChannels {
		return fmt.Errorf("%w: device %q has %d input channels, requested %d",
			ErrInvalidConfig, desc.Name, desc.MaxInputChannels, c.Channels)
	}
	if c.Format != FormatFloat32 {
		return fmt.Errorf("%w: unsupported sample format %q", ErrInvalidConfig, c.Format)
	}
	if c.BlockSize <= 0 {
		return fmt.Errorf("%w: block size %d", ErrInvalidConfig, c.BlockSize)
	}
	if c.Latency < 0 {
		return fmt.Errorf("%w: negative latency %s", ErrInvalidConfig, c.Latency)
	}
	return nil
}
