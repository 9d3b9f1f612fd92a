// Package engine owns the hardware capture path: the input stream, its
// real-time callback, peak metering, and the monitor forwarder that
// decouples capture timing from downstream consumption.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/audiolibrelab/opentune/internal/catalog"
	"github.com/audiolibrelab/opentune/internal/driver"
	"github.com/audiolibrelab/opentune/internal/take"
)

var (
	// ErrAlreadyRunning is returned by Start when a stream is active.
	ErrAlreadyRunning = errors.New("capture already running")
	// ErrNotRunning is returned by Stop when no stream is active.
	ErrNotRunning = errors.New("capture not running")
)

const (
	// monitorQueueDepth bounds the hand-off queue between the capture
	// callback and the forwarder. When it fills, monitoring copies are
	// dropped; capture itself is never sacrificed.
	monitorQueueDepth = 64

	// forwarderPoll is how long the forwarder waits before re-checking
	// whether the session is still recording.
	forwarderPoll = 100 * time.Millisecond
)

// Status is a point-in-time snapshot of the engine.
type Status struct {
	Running      bool          `json:"running"`
	Config       CaptureConfig `json:"config"`
	Blocks       int           `json:"blocks"`
	Elapsed      float64       `json:"elapsed_seconds"`
	Peaks        [2]float64    `json:"peaks"`
	MonitorDrops uint64        `json:"monitor_drops"`
}

// Engine captures audio from one input stream at a time. At most one
// session may be recording; Start/Stop are serialized by a single lock.
type Engine struct {
	host driver.Host
	bus  *Bus

	mu      sync.Mutex
	running bool
	cfg     CaptureConfig
	stream  driver.InputStream

	// blocks is appended to by the capture callback and read by Stop
	// and Status. recMu is only ever held for short, bounded sections.
	recMu  sync.Mutex
	blocks []Block

	seq          uint64
	recording    atomic.Bool
	monitorOn    atomic.Bool
	blockCount   atomic.Int64
	monitorDrops atomic.Uint64
	peaks        [2]atomic.Uint64 // math.Float64bits

	monitorCh chan Block
	fwdDone   chan struct{}
}

// New creates an engine publishing monitored blocks onto bus.
func New(host driver.Host, bus *Bus) *Engine {
	return &Engine{host: host, bus: bus}
}

// Start validates cfg against desc, opens the input stream, and begins
// capturing. Hardware callbacks start arriving once it returns nil.
func (e *Engine) Start(cfg CaptureConfig, desc catalog.DeviceDescriptor) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return ErrAlreadyRunning
	}
	if err := cfg.Validate(desc); err != nil {
		return err
	}

	e.recMu.Lock()
	e.blocks = nil
	e.recMu.Unlock()
	e.seq = 0
	e.blockCount.Store(0)
	e.monitorDrops.Store(0)
	e.peaks[0].Store(0)
	e.peaks[1].Store(0)
	e.monitorOn.Store(cfg.Monitoring)
	e.monitorCh = make(chan Block, monitorQueueDepth)
	// cfg must be visible before the first callback fires.
	e.cfg = cfg

	stream, err := e.host.OpenInputStream(driver.StreamConfig{
		DeviceIndex:    cfg.DeviceIndex,
		SampleRate:     float64(cfg.SampleRate),
		Channels:       cfg.Channels,
		BlockSize:      cfg.BlockSize,
		Latency:        cfg.Latency,
		ClipProtect:    cfg.ClipProtect,
		DitherOff:      cfg.DitherOff,
		NeverDropInput: cfg.NeverDropInput,
	}, e.capture)
	if err != nil {
		return fmt.Errorf("open capture stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("start capture stream: %w", err)
	}

	e.stream = stream
	e.running = true
	e.recording.Store(true)

	e.fwdDone = make(chan struct{})
	go e.forward(e.monitorCh, e.fwdDone)

	slog.Info("capture started", "device", desc.Name, "rate", cfg.SampleRate, "channels", cfg.Channels, "block_size", cfg.BlockSize, "monitoring", cfg.Monitoring)
	return nil
}

// capture is the hardware callback. It runs on the driver's real-time
// thread and must stay bounded: peak update, one copy into the session
// sequence, and a non-blocking monitor hand-off.
func (e *Engine) capture(in []float32, frames int, flags driver.StatusFlags) {
	if !e.recording.Load() {
		return
	}
	if !flags.Nominal() {
		slog.Warn("capture delivery status", "flags", flags.String())
	}

	channels := e.cfg.Channels
	e.updatePeaks(in, channels)

	blk := Block{
		Samples:  append([]float32(nil), in...),
		Frames:   frames,
		Channels: channels,
		Seq:      e.seq,
	}
	e.seq++

	e.recMu.Lock()
	e.blocks = append(e.blocks, blk)
	e.recMu.Unlock()
	e.blockCount.Add(1)

	if e.monitorOn.Load() {
		mon := Block{
			Samples:  append([]float32(nil), in...),
			Frames:   frames,
			Channels: channels,
			Seq:      blk.Seq,
		}
		select {
		case e.monitorCh <- mon:
		default:
			// Queue full: monitoring degrades, capture continues.
			e.monitorDrops.Add(1)
		}
	}
}

// updatePeaks records the per-channel peak magnitude of the block. Mono
// input is duplicated to both meters.
func (e *Engine) updatePeaks(in []float32, channels int) {
	if channels >= 2 {
		var left, right float64
		for i := 0; i+1 < len(in); i += channels {
			if v := math.Abs(float64(in[i])); v > left {
				left = v
			}
			if v := math.Abs(float64(in[i+1])); v > right {
				right = v
			}
		}
		e.peaks[0].Store(math.Float64bits(left))
		e.peaks[1].Store(math.Float64bits(right))
		return
	}

	var peak float64
	for _, s := range in {
		if v := math.Abs(float64(s)); v > peak {
			peak = v
		}
	}
	bits := math.Float64bits(peak)
	e.peaks[0].Store(bits)
	e.peaks[1].Store(bits)
}

// forward drains the monitor queue onto the shared bus. It exits once the
// queue is closed and drained, or once the session stops recording.
func (e *Engine) forward(ch chan Block, done chan struct{}) {
	defer close(done)
	for {
		select {
		case blk, ok := <-ch:
			if !ok {
				return
			}
			e.bus.Publish(blk)
		case <-time.After(forwarderPoll):
			if !e.recording.Load() {
				return
			}
		}
	}
}

// Stop closes the stream, waits for outstanding callbacks and the monitor
// forwarder, and returns the captured take in arrival order. The take is
// empty (not nil) when nothing was captured.
func (e *Engine) Stop() (*take.Take, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return nil, ErrNotRunning
	}

	e.recording.Store(false)

	// Stop blocks until any in-flight callback has completed; no
	// session mutation happens after this returns.
	var stopErr error
	if err := e.stream.Stop(); err != nil {
		stopErr = fmt.Errorf("stop capture stream: %w", err)
	}
	if err := e.stream.Close(); err != nil && stopErr == nil {
		stopErr = fmt.Errorf("close capture stream: %w", err)
	}
	e.stream = nil

	// The callback is silent now; closing the queue lets the forwarder
	// drain what is left and exit.
	close(e.monitorCh)
	<-e.fwdDone

	e.running = false

	e.recMu.Lock()
	blocks := e.blocks
	e.blocks = nil
	e.recMu.Unlock()

	t := take.New(e.cfg.Channels, e.cfg.SampleRate)
	for _, blk := range blocks {
		t.Append(blk.Samples)
	}

	slog.Info("capture stopped", "blocks", len(blocks), "frames", t.Frames())
	return t, stopErr
}

// SetMonitoring toggles the monitor hand-off. Takes effect on the next
// captured block.
func (e *Engine) SetMonitoring(enabled bool) {
	e.monitorOn.Store(enabled)
}

// Peaks returns the most recent per-channel peak magnitudes.
func (e *Engine) Peaks() [2]float64 {
	return [2]float64{
		math.Float64frombits(e.peaks[0].Load()),
		math.Float64frombits(e.peaks[1].Load()),
	}
}

// Running reports whether a session is recording.
func (e *Engine) Running() bool {
	return e.recording.Load()
}

// Status returns a consistent snapshot for callers outside the pipeline.
func (e *Engine) Status() Status {
	e.mu.Lock()
	cfg := e.cfg
	running := e.running
	e.mu.Unlock()

	blocks := int(e.blockCount.Load())
	var elapsed float64
	if cfg.SampleRate > 0 {
		elapsed = float64(blocks*cfg.BlockSize) / float64(cfg.SampleRate)
	}

	return Status{
		Running:      running,
		Config:       cfg,
		Blocks:       blocks,
		Elapsed:      elapsed,
		Peaks:        e.Peaks(),
		MonitorDrops: e.monitorDrops.Load(),
	}
}
