package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/audiolibrelab/opentune/internal/catalog"
	"github.com/audiolibrelab/opentune/internal/driver"
	"github.com/audiolibrelab/opentune/internal/engine"
	"github.com/audiolibrelab/opentune/internal/server"
	"github.com/audiolibrelab/opentune/internal/session"
	"github.com/audiolibrelab/opentune/internal/take"

	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP control server",
	Long: `Start an HTTP server exposing the recording session and amplifier
controls for a front-end. Takes stopped through the API are written to
the configured output directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		host, err := driver.NewPortAudioHost()
		if err != nil {
			return fmt.Errorf("failed to initialize audio host: %w", err)
		}
		defer host.Close()

		cat := catalog.New(host)
		if err := cat.Scan(); err != nil {
			return err
		}

		bus := engine.NewBus()
		eng := engine.New(host, bus)
		controller := session.NewController(eng, cat)
		if err := controller.SetConfig(cfg.CaptureConfig()); err != nil {
			return err
		}

		amplifier, err := newAmplifier(host, bus, cfg)
		if err != nil {
			return err
		}
		defer amplifier.Close()

		srv := server.New(controller, amplifier, cat, serveAddr)
		srv.OnTake = func(t *take.Take) error {
			if err := os.MkdirAll(cfg.Output.Directory, 0755); err != nil {
				return err
			}
			name := fmt.Sprintf("take-%s.wav", time.Now().Format("20060102-150405"))
			return t.WriteWAV(filepath.Join(cfg.Output.Directory, name), cfg.Output.BitDepth)
		}

		return srv.Start()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:8090", "listen address")
}
