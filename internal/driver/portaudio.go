package driver

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// PortAudioHost implements Host on top of PortAudio. The library is
// initialized once per host and released by Close.
type PortAudioHost struct {
	mu     sync.Mutex
	closed bool
}

// NewPortAudioHost initializes PortAudio. Call Close when finished to
// release the library.
func NewPortAudioHost() (*PortAudioHost, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	return &PortAudioHost{}, nil
}

func (h *PortAudioHost) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return portaudio.Terminate()
}

func (h *PortAudioHost) HostAPIs() ([]HostAPI, error) {
	apis, err := portaudio.HostApis()
	if err != nil {
		return nil, fmt.Errorf("query host apis: %w", err)
	}

	out := make([]HostAPI, len(apis))
	for i, api := range apis {
		defaultIn := -1
		if api.DefaultInputDevice != nil {
			defaultIn = api.DefaultInputDevice.Index
		}
		out[i] = HostAPI{
			Index:             i,
			Name:              api.Name,
			DeviceCount:       len(api.Devices),
			DefaultInputIndex: defaultIn,
		}
	}
	return out, nil
}

func (h *PortAudioHost) Devices() ([]Device, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("query devices: %w", err)
	}

	defaultIn, _ := portaudio.DefaultInputDevice()

	out := make([]Device, len(infos))
	for i, info := range infos {
		apiName := ""
		if info.HostApi != nil {
			apiName = info.HostApi.Name
		}
		out[i] = Device{
			Index:              info.Index,
			Name:               info.Name,
			HostAPIName:        apiName,
			MaxInputChannels:   info.MaxInputChannels,
			MaxOutputChannels:  info.MaxOutputChannels,
			DefaultSampleRate:  info.DefaultSampleRate,
			DefaultLowLatency:  info.DefaultLowInputLatency,
			DefaultHighLatency: info.DefaultHighInputLatency,
			IsDefaultInput:     defaultIn != nil && defaultIn.Index == info.Index,
		}
	}
	return out, nil
}

// formatBuffer types the sample format for IsFormatSupported. The binding
// derives the format from the argument's slice element type; a non-slice
// value is rejected before PortAudio is ever asked.
var formatBuffer []float32

func (h *PortAudioHost) SupportsSampleRate(deviceIndex int, rate float64) bool {
	info, err := h.deviceInfo(deviceIndex)
	if err != nil {
		return false
	}

	var params portaudio.StreamParameters
	params.Input.Device = info
	params.Input.Channels = min(info.MaxInputChannels, 2)
	params.Input.Latency = info.DefaultLowInputLatency
	params.SampleRate = rate

	return portaudio.IsFormatSupported(params, formatBuffer) == nil
}

func (h *PortAudioHost) OpenInputStream(cfg StreamConfig, handler BlockHandler) (InputStream, error) {
	info, err := h.resolveInput(cfg.DeviceIndex)
	if err != nil {
		return nil, err
	}

	params := portaudio.LowLatencyParameters(info, nil)
	params.Input.Channels = cfg.Channels
	params.SampleRate = cfg.SampleRate
	params.FramesPerBuffer = cfg.BlockSize
	if cfg.Latency > 0 {
		params.Input.Latency = cfg.Latency
	}
	params.Flags = streamFlags(cfg)

	channels := cfg.Channels
	cb := func(in []float32, _ portaudio.StreamCallbackTimeInfo, f portaudio.StreamCallbackFlags) {
		handler(in, len(in)/channels, convertFlags(f))
	}

	stream, err := portaudio.OpenStream(params, cb)
	if err != nil {
		return nil, fmt.Errorf("open input stream on %q: %w", info.Name, err)
	}

	slog.Debug("input stream opened", "device", info.Name, "rate", cfg.SampleRate, "channels", cfg.Channels, "block_size", cfg.BlockSize)
	return &paInputStream{stream: stream}, nil
}

func (h *PortAudioHost) OpenOutputStream(cfg StreamConfig) (OutputStream, error) {
	var info *portaudio.DeviceInfo
	var err error
	if cfg.DeviceIndex >= 0 {
		info, err = h.deviceInfo(cfg.DeviceIndex)
	} else {
		info, err = portaudio.DefaultOutputDevice()
	}
	if err != nil {
		return nil, fmt.Errorf("resolve output device: %w", err)
	}

	params := portaudio.LowLatencyParameters(nil, info)
	params.Output.Channels = cfg.Channels
	params.SampleRate = cfg.SampleRate
	params.FramesPerBuffer = cfg.BlockSize

	buf := make([]float32, cfg.BlockSize*cfg.Channels)
	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return nil, fmt.Errorf("open output stream on %q: %w", info.Name, err)
	}

	slog.Debug("output stream opened", "device", info.Name, "rate", cfg.SampleRate, "channels", cfg.Channels)
	return &paOutputStream{stream: stream, buf: buf}, nil
}

func (h *PortAudioHost) resolveInput(deviceIndex int) (*portaudio.DeviceInfo, error) {
	if deviceIndex >= 0 {
		return h.deviceInfo(deviceIndex)
	}
	info, err := portaudio.DefaultInputDevice()
	if err != nil {
		return nil, fmt.Errorf("no default input device: %w", err)
	}
	return info, nil
}

func (h *PortAudioHost) deviceInfo(index int) (*portaudio.DeviceInfo, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("query devices: %w", err)
	}
	if index < 0 || index >= len(infos) {
		return nil, fmt.Errorf("device index %d out of range (%d devices)", index, len(infos))
	}
	return infos[index], nil
}

func streamFlags(cfg StreamConfig) portaudio.StreamFlags {
	var flags portaudio.StreamFlags
	if cfg.ClipProtect {
		flags |= portaudio.ClipOff
	}
	if cfg.DitherOff {
		flags |= portaudio.DitherOff
	}
	if cfg.NeverDropInput {
		flags |= portaudio.NeverDropInput
	}
	return flags
}

func convertFlags(f portaudio.StreamCallbackFlags) StatusFlags {
	var out StatusFlags
	if f&portaudio.InputUnderflow != 0 {
		out |= FlagInputUnderflow
	}
	if f&portaudio.InputOverflow != 0 {
		out |= FlagInputOverflow
	}
	if f&portaudio.OutputUnderflow != 0 {
		out |= FlagOutputUnderflow
	}
	if f&portaudio.OutputOverflow != 0 {
		out |= FlagOutputOverflow
	}
	return out
}

type paInputStream struct {
	stream *portaudio.Stream
}

func (s *paInputStream) Start() error { return s.stream.Start() }

// Stop blocks until pending callbacks have finished.
func (s *paInputStream) Stop() error  { return s.stream.Stop() }
func (s *paInputStream) Close() error { return s.stream.Close() }

type paOutputStream struct {
	stream *portaudio.Stream
	buf    []float32
}

func (s *paOutputStream) Start() error { return s.stream.Start() }

func (s *paOutputStream) Write(samples []float32) error {
	// The stream writes in fixed block-sized chunks; partial trailing
	// data is zero-padded.
	for off := 0; off < len(samples); off += len(s.buf) {
		n := copy(s.buf, samples[off:])
		for i := n; i < len(s.buf); i++ {
			s.buf[i] = 0
		}
		if err := s.stream.Write(); err != nil {
			return fmt.Errorf("write output block: %w", err)
		}
	}
	return nil
}

func (s *paOutputStream) Stop() error  { return s.stream.Stop() }
func (s *paOutputStream) Close() error { return s.stream.Close() }
