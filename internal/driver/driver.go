package driver

import "time"

// StatusFlags carries per-callback delivery information from the host
// audio layer. A non-zero value means the hardware dropped or duplicated
// samples around this block; capture keeps going regardless.
type StatusFlags uint32

const (
	FlagInputUnderflow StatusFlags = 1 << iota
	FlagInputOverflow
	FlagOutputUnderflow
	FlagOutputOverflow
)

// Nominal reports whether the block was delivered without incident.
func (f StatusFlags) Nominal() bool {
	return f == 0
}

func (f StatusFlags) String() string {
	if f == 0 {
		return "ok"
	}
	s := ""
	if f&FlagInputUnderflow != 0 {
		s += "|input-underflow"
	}
	if f&FlagInputOverflow != 0 {
		s += "|input-overflow"
	}
	if f&FlagOutputUnderflow != 0 {
		s += "|output-underflow"
	}
	if f&FlagOutputOverflow != 0 {
		s += "|output-overflow"
	}
	return s[1:]
}

// HostAPI describes one host audio API (ALSA, CoreAudio, ...).
type HostAPI struct {
	Index             int
	Name              string
	DeviceCount       int
	DefaultInputIndex int
}

// Device describes one hardware device as reported by the host layer.
type Device struct {
	Index              int
	Name               string
	HostAPIName        string
	MaxInputChannels   int
	MaxOutputChannels  int
	DefaultSampleRate  float64
	DefaultLowLatency  time.Duration
	DefaultHighLatency time.Duration
	IsDefaultInput     bool
}

// StreamConfig holds the parameters needed to open a stream.
type StreamConfig struct {
	DeviceIndex    int // -1 selects the system default device
	SampleRate     float64
	Channels       int
	BlockSize      int // frames per callback
	Latency        time.Duration
	ClipProtect    bool
	DitherOff      bool
	NeverDropInput bool
}

// BlockHandler receives one captured block of interleaved float32 samples.
//
// It is invoked on the host layer's real-time thread: implementations must
// not block, must not allocate unboundedly, and must complete in time
// proportional to the block size. The slice is only valid for the duration
// of the call; handlers that keep the data must copy it.
type BlockHandler func(in []float32, frames int, flags StatusFlags)

// InputStream is an open capture stream. Stop blocks until any in-flight
// callback has completed, so no handler invocation outlives it.
type InputStream interface {
	Start() error
	Stop() error
	Close() error
}

// OutputStream is an open playback stream with blocking writes.
type OutputStream interface {
	Start() error
	Write(samples []float32) error
	Stop() error
	Close() error
}

// Host abstracts the underlying audio I/O library so the capture pipeline
// can be driven by a real device or by a synthetic source in tests.
type Host interface {
	HostAPIs() ([]HostAPI, error)
	Devices() ([]Device, error)

	// SupportsSampleRate probes whether the device can open an input
	// stream at the given rate.
	SupportsSampleRate(deviceIndex int, rate float64) bool

	OpenInputStream(cfg StreamConfig, handler BlockHandler) (InputStream, error)
	OpenOutputStream(cfg StreamConfig) (OutputStream, error)

	Close() error
}
