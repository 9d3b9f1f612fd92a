package take

import (
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAV encodes the take as a PCM WAV file at the given bit depth
// (16 or 24). Samples outside [-1, 1] are clipped at the container edge.
func (t *Take) WriteWAV(path string, bitDepth int) error {
	if bitDepth != 16 && bitDepth != 24 {
		return fmt.Errorf("unsupported bit depth %d (want 16 or 24)", bitDepth)
	}
	if t.Channels <= 0 || t.SampleRate <= 0 {
		return fmt.Errorf("take has no stream parameters (channels=%d, rate=%d)", t.Channels, t.SampleRate)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav file: %w", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, t.SampleRate, bitDepth, t.Channels, 1)

	scale := float64(int(1)<<(bitDepth-1)) - 1
	data := make([]int, len(t.Samples))
	for i, s := range t.Samples {
		v := math.Round(float64(s) * scale)
		if v > scale {
			v = scale
		} else if v < -scale-1 {
			v = -scale - 1
		}
		data[i] = int(v)
	}

	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: t.Channels,
			SampleRate:  t.SampleRate,
		},
		Data:           data,
		SourceBitDepth: bitDepth,
	}

	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	return nil
}
