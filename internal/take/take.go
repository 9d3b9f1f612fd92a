// Package take holds the assembled result of one recording session: a
// contiguous interleaved sample buffer handed off to persistence as an
// opaque artifact.
package take

import (
	"fmt"
	"time"
)

// Take is the concatenation of all blocks captured by one session, in
// arrival order.
type Take struct {
	Samples    []float32
	Channels   int
	SampleRate int
}

func New(channels, sampleRate int) *Take {
	return &Take{Channels: channels, SampleRate: sampleRate}
}

// Append adds one block's samples to the end of the take.
func (t *Take) Append(samples []float32) {
	t.Samples = append(t.Samples, samples...)
}

// Frames returns the number of multi-channel frames in the take.
func (t *Take) Frames() int {
	if t.Channels == 0 {
		return 0
	}
	return len(t.Samples) / t.Channels
}

// Empty reports whether nothing was captured.
func (t *Take) Empty() bool {
	return len(t.Samples) == 0
}

// Duration returns the playback length of the take.
func (t *Take) Duration() time.Duration {
	if t.SampleRate == 0 {
		return 0
	}
	return time.Duration(float64(t.Frames()) / float64(t.SampleRate) * float64(time.Second))
}

func (t *Take) String() string {
	return fmt.Sprintf("take: %d frames, %d ch @ %d Hz (%s)", t.Frames(), t.Channels, t.SampleRate, t.Duration().Round(time.Millisecond))
}
