// Package session coordinates the capture engine lifecycle on behalf of
// callers: configuration, start/stop, and status reporting. All entry
// points are serialized by one lock so configuration reads stay
// consistent during an active session.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/audiolibrelab/opentune/internal/catalog"
	"github.com/audiolibrelab/opentune/internal/engine"
	"github.com/audiolibrelab/opentune/internal/take"
)

// ErrSessionActive is returned by Configure while a recording is in
// progress. Capture parameters only change between sessions; monitoring
// is the one toggle applied live.
var ErrSessionActive = errors.New("session active: stop recording before reconfiguring")

// Options carries the recognized configuration overrides. Nil fields are
// left unchanged, mirroring how profile overrides work in the config
// layer.
type Options struct {
	Device         *int
	SampleRate     *int
	Channels       *int
	Format         *engine.SampleFormat
	BlockSize      *int
	Latency        *time.Duration
	ClipProtect    *bool
	DitherOff      *bool
	NeverDropInput *bool
	Monitoring     *bool
}

// Status reports the controller's view of the session.
type Status struct {
	Recording      bool                 `json:"recording"`
	Config         engine.CaptureConfig `json:"config"`
	Elapsed        float64              `json:"elapsed_seconds"`
	Peaks          [2]float64           `json:"peaks"`
	BufferedBlocks int                  `json:"buffered_blocks"`
	MonitorDrops   uint64               `json:"monitor_drops"`
}

// Controller wraps an Engine and owns the capture configuration between
// sessions.
type Controller struct {
	mu  sync.Mutex
	eng *engine.Engine
	cat *catalog.Catalog
	cfg engine.CaptureConfig
}

func NewController(eng *engine.Engine, cat *catalog.Catalog) *Controller {
	return &Controller{
		eng: eng,
		cat: cat,
		cfg: engine.DefaultConfig(),
	}
}

// Configure applies the given options to the pending capture config.
// Rejected with ErrSessionActive while recording.
func (c *Controller) Configure(opts Options) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.eng.Running() {
		return ErrSessionActive
	}

	if opts.Device != nil {
		c.cfg.DeviceIndex = *opts.Device
	}
	if opts.SampleRate != nil {
		c.cfg.SampleRate = *opts.SampleRate
	}
	if opts.Channels != nil {
		c.cfg.Channels = *opts.Channels
	}
	if opts.Format != nil {
		c.cfg.Format = *opts.Format
	}
	if opts.BlockSize != nil {
		c.cfg.BlockSize = *opts.BlockSize
	}
	if opts.Latency != nil {
		c.cfg.Latency = *opts.Latency
	}
	if opts.ClipProtect != nil {
		c.cfg.ClipProtect = *opts.ClipProtect
	}
	if opts.DitherOff != nil {
		c.cfg.DitherOff = *opts.DitherOff
	}
	if opts.NeverDropInput != nil {
		c.cfg.NeverDropInput = *opts.NeverDropInput
	}
	if opts.Monitoring != nil {
		c.cfg.Monitoring = *opts.Monitoring
	}

	slog.Debug("session configured", "device", c.cfg.DeviceIndex, "rate", c.cfg.SampleRate, "channels", c.cfg.Channels, "monitoring", c.cfg.Monitoring)
	return nil
}

// SetConfig replaces the pending capture config wholesale.
func (c *Controller) SetConfig(cfg engine.CaptureConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.eng.Running() {
		return ErrSessionActive
	}
	c.cfg = cfg
	return nil
}

// Config returns a copy of the pending capture config.
func (c *Controller) Config() engine.CaptureConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// Start resolves the configured device against the catalog and begins
// recording.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	desc, err := c.resolveDevice()
	if err != nil {
		return err
	}
	return c.eng.Start(c.cfg, desc)
}

// Stop ends the session and hands the assembled take to the caller.
func (c *Controller) Stop() (*take.Take, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eng.Stop()
}

// SetMonitoring toggles monitoring; permitted mid-session.
func (c *Controller) SetMonitoring(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Monitoring = enabled
	c.eng.SetMonitoring(enabled)
}

// Status returns the current session snapshot.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	es := c.eng.Status()
	cfg := es.Config
	if !es.Running {
		cfg = c.cfg
	}

	return Status{
		Recording:      es.Running,
		Config:         cfg,
		Elapsed:        es.Elapsed,
		Peaks:          es.Peaks,
		BufferedBlocks: es.Blocks,
		MonitorDrops:   es.MonitorDrops,
	}
}

func (c *Controller) resolveDevice() (catalog.DeviceDescriptor, error) {
	if c.cfg.DeviceIndex < 0 {
		desc, err := c.cat.DefaultInput()
		if err != nil {
			return catalog.DeviceDescriptor{}, fmt.Errorf("resolve default device: %w", err)
		}
		return desc, nil
	}
	desc, err := c.cat.Device(c.cfg.DeviceIndex)
	if err != nil {
		return catalog.DeviceDescriptor{}, fmt.Errorf("resolve device: %w", err)
	}
	return desc, nil
}
