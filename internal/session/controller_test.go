package session

import (
	"errors"
	"testing"
	"time"

	"github.com/audiolibrelab/opentune/internal/catalog"
	"github.com/audiolibrelab/opentune/internal/driver"
	"github.com/audiolibrelab/opentune/internal/engine"
)

type fakeStream struct{}

func (fakeStream) Start() error { return nil }
func (fakeStream) Stop() error  { return nil }
func (fakeStream) Close() error { return nil }

type fakeHost struct {
	opened  []driver.StreamConfig
	handler driver.BlockHandler
}

func (h *fakeHost) HostAPIs() ([]driver.HostAPI, error) {
	return []driver.HostAPI{{Index: 0, Name: "ALSA", DeviceCount: 1}}, nil
}

func (h *fakeHost) Devices() ([]driver.Device, error) {
	return []driver.Device{
		{Index: 0, Name: "Fake Mic", HostAPIName: "ALSA", MaxInputChannels: 2, DefaultSampleRate: 44100, IsDefaultInput: true},
	}, nil
}

func (h *fakeHost) SupportsSampleRate(deviceIndex int, rate float64) bool {
	return rate == 44100 || rate == 48000
}

func (h *fakeHost) OpenInputStream(cfg driver.StreamConfig, handler driver.BlockHandler) (driver.InputStream, error) {
	h.opened = append(h.opened, cfg)
	h.handler = handler
	return fakeStream{}, nil
}

func (h *fakeHost) OpenOutputStream(driver.StreamConfig) (driver.OutputStream, error) {
	return nil, errors.New("fake host has no outputs")
}

func (h *fakeHost) Close() error { return nil }

func newTestController(t *testing.T) (*Controller, *fakeHost) {
	t.Helper()
	host := &fakeHost{}
	cat := catalog.New(host)
	if err := cat.Scan(); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	eng := engine.New(host, engine.NewBus())
	return NewController(eng, cat), host
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func TestConfigureAppliesOptions(t *testing.T) {
	c, _ := newTestController(t)

	err := c.Configure(Options{
		SampleRate: intPtr(48000),
		Channels:   intPtr(1),
		Monitoring: boolPtr(true),
	})
	if err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	cfg := c.Config()
	if cfg.SampleRate != 48000 {
		t.Errorf("Expected sample rate 48000, got %d", cfg.SampleRate)
	}
	if cfg.Channels != 1 {
		t.Errorf("Expected 1 channel, got %d", cfg.Channels)
	}
	if !cfg.Monitoring {
		t.Error("Expected monitoring enabled")
	}

	// Fields not named in the options keep their previous values.
	if cfg.BlockSize != 1024 {
		t.Errorf("Expected block size 1024 untouched, got %d", cfg.BlockSize)
	}
	if cfg.DeviceIndex != -1 {
		t.Errorf("Expected default device untouched, got %d", cfg.DeviceIndex)
	}
}

func TestConfigureRejectedMidSession(t *testing.T) {
	c, _ := newTestController(t)

	if err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	err := c.Configure(Options{SampleRate: intPtr(48000)})
	if !errors.Is(err, ErrSessionActive) {
		t.Errorf("Expected ErrSessionActive, got %v", err)
	}
	if err := c.SetConfig(engine.DefaultConfig()); !errors.Is(err, ErrSessionActive) {
		t.Errorf("Expected ErrSessionActive from SetConfig, got %v", err)
	}

	// The running session keeps its original configuration.
	if got := c.Status().Config.SampleRate; got != 44100 {
		t.Errorf("Expected session to stay at 44100, got %d", got)
	}

	if _, err := c.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	// Reconfiguration works again once the session has stopped.
	if err := c.Configure(Options{SampleRate: intPtr(48000)}); err != nil {
		t.Errorf("Configure after stop failed: %v", err)
	}
}

func TestStartResolvesDefaultDevice(t *testing.T) {
	c, host := newTestController(t)

	if err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if len(host.opened) != 1 {
		t.Fatalf("Expected 1 opened stream, got %d", len(host.opened))
	}
	if host.opened[0].DeviceIndex != -1 {
		t.Errorf("Expected default device selection, got index %d", host.opened[0].DeviceIndex)
	}
	if _, err := c.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestStartUnknownDevice(t *testing.T) {
	c, _ := newTestController(t)

	if err := c.Configure(Options{Device: intPtr(9)}); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	if err := c.Start(); err == nil {
		t.Error("Expected start to fail for a device not in the catalog")
	}
}

func TestSetMonitoringAllowedMidSession(t *testing.T) {
	c, _ := newTestController(t)

	if err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	c.SetMonitoring(true)
	if !c.Config().Monitoring {
		t.Error("Expected monitoring enabled in pending config")
	}

	if _, err := c.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestStatusReportsSession(t *testing.T) {
	c, host := newTestController(t)

	st := c.Status()
	if st.Recording {
		t.Error("Expected idle status before start")
	}

	if err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	host.handler(make([]float32, 2048), 1024, 0)

	st = c.Status()
	if !st.Recording {
		t.Error("Expected recording status")
	}
	if st.BufferedBlocks != 1 {
		t.Errorf("Expected 1 buffered block, got %d", st.BufferedBlocks)
	}
	expected := float64(1024) / 44100
	if st.Elapsed != expected {
		t.Errorf("Expected elapsed %v, got %v", expected, st.Elapsed)
	}

	take, err := c.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if take.Frames() != 1024 {
		t.Errorf("Expected 1024 frames, got %d", take.Frames())
	}
	if take.Duration() != time.Duration(float64(1024)/44100*float64(time.Second)) {
		t.Errorf("Unexpected duration %v", take.Duration())
	}
}
