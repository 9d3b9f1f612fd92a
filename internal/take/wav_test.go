package take

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
)

func TestWriteWAVRoundTrip(t *testing.T) {
	tk := New(2, 44100)
	tk.Append([]float32{0.5, -0.5, 0, 0.25})

	path := filepath.Join(t.TempDir(), "take.wav")
	if err := tk.WriteWAV(path, 16); err != nil {
		t.Fatalf("WriteWAV failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if dec.NumChans != 2 {
		t.Errorf("Expected 2 channels, got %d", dec.NumChans)
	}
	if dec.SampleRate != 44100 {
		t.Errorf("Expected 44100 Hz, got %d", dec.SampleRate)
	}
	if dec.BitDepth != 16 {
		t.Errorf("Expected 16-bit, got %d", dec.BitDepth)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(buf.Data) != 4 {
		t.Fatalf("Expected 4 samples, got %d", len(buf.Data))
	}
	if buf.Data[0] != 16384 || buf.Data[1] != -16384 || buf.Data[2] != 0 {
		t.Errorf("Unexpected sample values: %v", buf.Data)
	}
}

func TestWriteWAVClipsOutOfRange(t *testing.T) {
	tk := New(1, 44100)
	tk.Append([]float32{1.5, -1.5})

	path := filepath.Join(t.TempDir(), "clip.wav")
	if err := tk.WriteWAV(path, 16); err != nil {
		t.Fatalf("WriteWAV failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if buf.Data[0] != 32767 {
		t.Errorf("Expected positive clip at 32767, got %d", buf.Data[0])
	}
	if buf.Data[1] != -32768 {
		t.Errorf("Expected negative clip at -32768, got %d", buf.Data[1])
	}
}

func TestWriteWAVRejectsBadParameters(t *testing.T) {
	tk := New(2, 44100)
	tk.Append([]float32{0, 0})

	path := filepath.Join(t.TempDir(), "bad.wav")
	if err := tk.WriteWAV(path, 8); err == nil {
		t.Error("Expected error for unsupported bit depth")
	}

	broken := &Take{Samples: []float32{0}}
	if err := broken.WriteWAV(path, 16); err == nil {
		t.Error("Expected error for take without stream parameters")
	}
}
