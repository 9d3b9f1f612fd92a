package cmd

import (
	"errors"
	"testing"

	"github.com/audiolibrelab/opentune/internal/amp"
	"github.com/audiolibrelab/opentune/internal/config"
	"github.com/audiolibrelab/opentune/internal/driver"
	"github.com/audiolibrelab/opentune/internal/engine"
)

type fakeOutputStream struct{}

func (fakeOutputStream) Start() error                  { return nil }
func (fakeOutputStream) Write(samples []float32) error { return nil }
func (fakeOutputStream) Stop() error                   { return nil }
func (fakeOutputStream) Close() error                  { return nil }

type fakeHost struct{}

func (fakeHost) HostAPIs() ([]driver.HostAPI, error)  { return nil, nil }
func (fakeHost) Devices() ([]driver.Device, error)    { return nil, nil }
func (fakeHost) SupportsSampleRate(int, float64) bool { return true }
func (fakeHost) Close() error                         { return nil }

func (fakeHost) OpenInputStream(driver.StreamConfig, driver.BlockHandler) (driver.InputStream, error) {
	return nil, errors.New("fake host has no inputs")
}

func (fakeHost) OpenOutputStream(driver.StreamConfig) (driver.OutputStream, error) {
	return fakeOutputStream{}, nil
}

func TestNewAmplifierAppliesProfile(t *testing.T) {
	profile := config.Default()
	profile.Amplifier.Gain = 3.5
	profile.Amplifier.Mode = "zero_latency"

	a, err := newAmplifier(fakeHost{}, engine.NewBus(), profile)
	if err != nil {
		t.Fatalf("newAmplifier failed: %v", err)
	}
	defer a.Close()

	if a.Gain() != 3.5 {
		t.Errorf("Expected gain 3.5 from profile, got %v", a.Gain())
	}
	if a.CurrentMode() != amp.ModeZeroLatency {
		t.Errorf("Expected zero_latency mode from profile, got %v", a.CurrentMode())
	}
}

func TestNewAmplifierRejectsUnknownMode(t *testing.T) {
	profile := config.Default()
	profile.Amplifier.Mode = "turbo"

	if _, err := newAmplifier(fakeHost{}, engine.NewBus(), profile); err == nil {
		t.Error("Expected error for unknown amplifier mode")
	}
}
