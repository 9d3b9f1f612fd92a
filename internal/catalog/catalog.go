// Package catalog builds an immutable inventory of the audio devices the
// host layer reports. Enumeration happens only when Scan is called; a
// failed scan leaves no partial catalog behind.
package catalog

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/audiolibrelab/opentune/internal/driver"
)

// ErrEnumeration marks a failed device scan. No audio feature should be
// used after enumeration fails; callers surface it rather than retry.
var ErrEnumeration = errors.New("audio device enumeration failed")

// Backend identifies the platform audio backend a device belongs to.
type Backend string

const (
	BackendASIO        Backend = "ASIO"
	BackendWASAPI      Backend = "WASAPI"
	BackendDirectSound Backend = "DirectSound"
	BackendMME         Backend = "MME"
	BackendCoreAudio   Backend = "CoreAudio"
	BackendALSA        Backend = "ALSA"
	BackendJACK        Backend = "JACK"
	BackendPulse       Backend = "PulseAudio"
	BackendOSS         Backend = "OSS"
	BackendUnknown     Backend = "Unknown"
)

// backendFromAPIName maps a host API display name onto a Backend.
func backendFromAPIName(name string) Backend {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "asio"):
		return BackendASIO
	case strings.Contains(n, "wasapi"):
		return BackendWASAPI
	case strings.Contains(n, "directsound"):
		return BackendDirectSound
	case strings.Contains(n, "mme"):
		return BackendMME
	case strings.Contains(n, "core audio"), strings.Contains(n, "coreaudio"):
		return BackendCoreAudio
	case strings.Contains(n, "alsa"):
		return BackendALSA
	case strings.Contains(n, "jack"):
		return BackendJACK
	case strings.Contains(n, "pulse"):
		return BackendPulse
	case strings.Contains(n, "oss"):
		return BackendOSS
	default:
		return BackendUnknown
	}
}

// candidateRates is the fixed set of sample rates probed per device.
var candidateRates = []int{8000, 11025, 16000, 22050, 32000, 44100, 48000, 88200, 96000, 176400, 192000}

// DeviceDescriptor is an immutable record describing one audio device.
// Descriptors are rebuilt wholesale on each scan, never patched in place.
type DeviceDescriptor struct {
	Index                int           `json:"index" yaml:"index"`
	Name                 string        `json:"name" yaml:"name"`
	HostAPI              string        `json:"host_api" yaml:"host_api"`
	Backend              Backend       `json:"backend" yaml:"backend"`
	MaxInputChannels     int           `json:"max_input_channels" yaml:"max_input_channels"`
	MaxOutputChannels    int           `json:"max_output_channels" yaml:"max_output_channels"`
	DefaultSampleRate    int           `json:"default_sample_rate" yaml:"default_sample_rate"`
	SupportedSampleRates []int         `json:"supported_sample_rates" yaml:"supported_sample_rates"`
	DefaultLowLatency    time.Duration `json:"default_low_latency" yaml:"default_low_latency"`
	DefaultHighLatency   time.Duration `json:"default_high_latency" yaml:"default_high_latency"`
	IsDefault            bool          `json:"is_default" yaml:"is_default"`
}

// SupportsSampleRate reports whether the device supports the given rate.
func (d DeviceDescriptor) SupportsSampleRate(rate int) bool {
	for _, r := range d.SupportedSampleRates {
		if r == rate {
			return true
		}
	}
	return false
}

// HasInputs reports whether the device can capture audio.
func (d DeviceDescriptor) HasInputs() bool {
	return d.MaxInputChannels > 0
}

// Catalog holds the result of the most recent successful scan. Scans and
// lookups may run concurrently; readers see either the previous or the
// new inventory, never a partial one.
type Catalog struct {
	host driver.Host

	mu      sync.RWMutex
	devices []DeviceDescriptor
}

func New(host driver.Host) *Catalog {
	return &Catalog{host: host}
}

// Scan queries the host layer and rebuilds the device list. On failure the
// previous catalog contents are kept and ErrEnumeration is returned.
func (c *Catalog) Scan() error {
	apis, err := c.host.HostAPIs()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEnumeration, err)
	}

	devices, err := c.host.Devices()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEnumeration, err)
	}

	descriptors := make([]DeviceDescriptor, 0, len(devices))
	for _, dev := range devices {
		descriptors = append(descriptors, c.describe(dev))
	}

	c.mu.Lock()
	c.devices = descriptors
	c.mu.Unlock()

	slog.Debug("device catalog scanned", "host_apis", len(apis), "devices", len(descriptors))
	return nil
}

// Rescan is an explicit alias for Scan; callers decide when re-enumeration
// is worth the cost.
func (c *Catalog) Rescan() error {
	return c.Scan()
}

func (c *Catalog) describe(dev driver.Device) DeviceDescriptor {
	var rates []int
	for _, rate := range candidateRates {
		if dev.MaxInputChannels > 0 && c.host.SupportsSampleRate(dev.Index, float64(rate)) {
			rates = append(rates, rate)
		}
	}

	return DeviceDescriptor{
		Index:                dev.Index,
		Name:                 dev.Name,
		HostAPI:              dev.HostAPIName,
		Backend:              backendFromAPIName(dev.HostAPIName),
		MaxInputChannels:     dev.MaxInputChannels,
		MaxOutputChannels:    dev.MaxOutputChannels,
		DefaultSampleRate:    int(dev.DefaultSampleRate),
		SupportedSampleRates: rates,
		DefaultLowLatency:    dev.DefaultLowLatency,
		DefaultHighLatency:   dev.DefaultHighLatency,
		IsDefault:            dev.IsDefaultInput,
	}
}

// snapshot returns the current descriptor list under the read lock.
func (c *Catalog) snapshot() []DeviceDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.devices
}

// Devices returns a copy of the scanned descriptors in host order.
func (c *Catalog) Devices() []DeviceDescriptor {
	devices := c.snapshot()
	out := make([]DeviceDescriptor, len(devices))
	copy(out, devices)
	return out
}

// Device returns the descriptor with the given index.
func (c *Catalog) Device(index int) (DeviceDescriptor, error) {
	devices := c.snapshot()
	for _, d := range devices {
		if d.Index == index {
			return d, nil
		}
	}
	return DeviceDescriptor{}, fmt.Errorf("device %d not in catalog (%d devices scanned)", index, len(devices))
}

// DefaultInput returns the system default capture device.
func (c *Catalog) DefaultInput() (DeviceDescriptor, error) {
	devices := c.snapshot()
	for _, d := range devices {
		if d.IsDefault && d.HasInputs() {
			return d, nil
		}
	}
	// Fall back to the first device with inputs.
	for _, d := range devices {
		if d.HasInputs() {
			return d, nil
		}
	}
	return DeviceDescriptor{}, fmt.Errorf("no input device in catalog (%d devices scanned)", len(devices))
}

// Filter returns a restartable sequence over the descriptors matching
// pred. Each restart iterates the inventory as of that moment.
func (c *Catalog) Filter(pred func(DeviceDescriptor) bool) iter.Seq[DeviceDescriptor] {
	return func(yield func(DeviceDescriptor) bool) {
		for _, d := range c.snapshot() {
			if pred(d) && !yield(d) {
				return
			}
		}
	}
}

// Inputs returns the devices capable of capture.
func (c *Catalog) Inputs() []DeviceDescriptor {
	var out []DeviceDescriptor
	for d := range c.Filter(DeviceDescriptor.HasInputs) {
		out = append(out, d)
	}
	return out
}
