package cmd

import (
	"fmt"

	"github.com/audiolibrelab/opentune/internal/amp"
	"github.com/audiolibrelab/opentune/internal/config"
	"github.com/audiolibrelab/opentune/internal/driver"
	"github.com/audiolibrelab/opentune/internal/engine"
)

// newAmplifier wires the gain/dynamics stage from the resolved profile:
// gain and routing mode both come from the amplifier settings.
func newAmplifier(host driver.Host, bus *engine.Bus, cfg *config.Config) (*amp.Amplifier, error) {
	a := amp.New(host, bus)
	a.SetGain(cfg.Amplifier.Gain)

	mode, err := amp.ParseMode(cfg.Amplifier.Mode)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("amplifier mode: %w", err)
	}
	if err := a.SetMode(mode); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}
