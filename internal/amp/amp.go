// Package amp is the gain/dynamics stage of the pipeline. A single worker
// drains the shared playback bus, applies gain and a fixed-knee
// compression curve, and publishes processed blocks to an output queue.
// In zero-latency mode processing is bypassed and blocks go straight to a
// hardware output stream.
package amp

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/audiolibrelab/opentune/internal/driver"
	"github.com/audiolibrelab/opentune/internal/engine"
)

// Mode selects how the amplifier routes audio.
type Mode string

const (
	// ModeNormal processes blocks on the CPU and queues the result.
	ModeNormal Mode = "normal"
	// ModeZeroLatency bypasses processing and writes blocks directly to
	// an output stream, trading flexibility for minimum delay.
	ModeZeroLatency Mode = "zero_latency"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeNormal, ModeZeroLatency:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown amplifier mode %q (want %q or %q)", s, ModeNormal, ModeZeroLatency)
	}
}

const (
	// MinGain and MaxGain bound SetGain. Out-of-range values are
	// clamped, never rejected.
	MinGain = 0.0
	MaxGain = 10.0

	// Fixed compression knee: samples above the threshold have their
	// excess attenuated by the ratio.
	compressThreshold = 0.5
	compressRatio     = 4.0

	outputQueueDepth = 256
)

// Amplifier applies gain and compression to the monitored signal.
// Configuration calls are serialized by one lock; the worker goroutine
// parks on the input bus when there is nothing to do.
type Amplifier struct {
	host driver.Host
	in   *engine.Bus
	out  chan engine.Block

	mu     sync.Mutex
	mode   Mode
	gain   float64
	active bool
	outCfg driver.StreamConfig
	stream driver.OutputStream

	quit chan struct{}
	done chan struct{}
}

// New creates an amplifier draining in. The worker starts parked;
// blocks that arrive while inactive are discarded.
func New(host driver.Host, in *engine.Bus) *Amplifier {
	a := &Amplifier{
		host: host,
		in:   in,
		out:  make(chan engine.Block, outputQueueDepth),
		mode: ModeNormal,
		gain: 1.0,
		outCfg: driver.StreamConfig{
			DeviceIndex: -1,
			SampleRate:  44100,
			Channels:    2,
			BlockSize:   1024,
		},
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go a.process()
	return a
}

// Start activates the current mode. Starting an active amplifier is a
// no-op.
func (a *Amplifier) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.startLocked()
}

func (a *Amplifier) startLocked() error {
	if a.active {
		return nil
	}
	if a.mode == ModeZeroLatency {
		stream, err := a.host.OpenOutputStream(a.outCfg)
		if err != nil {
			return fmt.Errorf("open zero-latency output: %w", err)
		}
		if err := stream.Start(); err != nil {
			stream.Close()
			return fmt.Errorf("start zero-latency output: %w", err)
		}
		a.stream = stream
	}
	a.active = true
	slog.Debug("amplifier started", "mode", a.mode, "gain", a.gain)
	return nil
}

// Stop deactivates the amplifier and closes any owned output stream. The
// worker stays parked on the input bus so a later Start is cheap.
func (a *Amplifier) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopLocked()
}

func (a *Amplifier) stopLocked() {
	a.active = false
	if a.stream != nil {
		a.stream.Stop()
		a.stream.Close()
		a.stream = nil
	}
}

// SetMode atomically stops, swaps the mode, and restarts if the amplifier
// was active, so a mode change never leaves a stale stream attached.
// Blocks already queued on the input bus survive the switch.
func (a *Amplifier) SetMode(m Mode) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	wasActive := a.active
	a.stopLocked()
	a.mode = m
	if wasActive {
		return a.startLocked()
	}
	return nil
}

// ConfigureOutput sets the stream parameters used by the zero-latency
// path. If a stream is already attached it is restarted on the new
// parameters.
func (a *Amplifier) ConfigureOutput(cfg driver.StreamConfig) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.outCfg = cfg
	if a.active && a.mode == ModeZeroLatency {
		a.stopLocked()
		return a.startLocked()
	}
	return nil
}

// SetGain clamps g to [MinGain, MaxGain]. The new gain applies from the
// next processed block; no ramping.
func (a *Amplifier) SetGain(g float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gain = math.Max(MinGain, math.Min(MaxGain, g))
}

// Gain returns the effective (clamped) gain.
func (a *Amplifier) Gain() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gain
}

// CurrentMode returns the configured routing mode.
func (a *Amplifier) CurrentMode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

// Active reports whether the amplifier is processing.
func (a *Amplifier) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// Output is the processed-block queue filled in normal mode. Blocks
// preserve the arrival order of the input bus.
func (a *Amplifier) Output() <-chan engine.Block {
	return a.out
}

// Close shuts down the worker for good. The input bus is closed so a
// parked worker wakes up.
func (a *Amplifier) Close() {
	a.mu.Lock()
	a.stopLocked()
	a.mu.Unlock()

	close(a.quit)
	a.in.Close()
	<-a.done
}

// process is the worker loop: blocking-pop, snapshot config, apply, route.
func (a *Amplifier) process() {
	defer close(a.done)
	defer close(a.out)
	for {
		blk, ok := a.in.Pop()
		if !ok {
			return
		}
		select {
		case <-a.quit:
			return
		default:
		}

		a.mu.Lock()
		active := a.active
		mode := a.mode
		gain := a.gain
		stream := a.stream
		a.mu.Unlock()

		if !active {
			continue
		}

		if mode == ModeZeroLatency {
			if stream == nil {
				continue
			}
			if err := stream.Write(blk.Samples); err != nil {
				slog.Warn("zero-latency output write failed", "error", err)
			}
			continue
		}

		for i, s := range blk.Samples {
			blk.Samples[i] = compress(float64(s) * gain)
		}

		select {
		case a.out <- blk:
		default:
			// Downstream is not draining; drop the oldest to keep
			// the queue ordered and bounded.
			select {
			case <-a.out:
			default:
			}
			a.out <- blk
		}
	}
}

// compress applies the fixed threshold/ratio curve: magnitude above the
// threshold is attenuated by the ratio, sign preserved.
func compress(x float64) float32 {
	mag := math.Abs(x)
	if mag <= compressThreshold {
		return float32(x)
	}
	out := compressThreshold + (mag-compressThreshold)/compressRatio
	return float32(math.Copysign(out, x))
}
