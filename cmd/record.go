package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/audiolibrelab/opentune/internal/amp"
	"github.com/audiolibrelab/opentune/internal/catalog"
	"github.com/audiolibrelab/opentune/internal/driver"
	"github.com/audiolibrelab/opentune/internal/engine"
	"github.com/audiolibrelab/opentune/internal/project"
	"github.com/audiolibrelab/opentune/internal/session"

	"github.com/spf13/cobra"
)

var (
	recordDevice    int
	recordMonitor   bool
	recordOutputDir string
	recordProjectID string
)

var recordCmd = &cobra.Command{
	Use:   "record [take-name]",
	Short: "Record audio from an input device",
	Long: `Record audio from the configured input device until interrupted.
The finished take is written as a WAV file, or registered in a project
when --project is given. With --monitor the input is forwarded through
the gain/compression stage while recording.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		takeName := args[0]
		slog.Info("record command started", "take", takeName)

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

		captureCfg := cfg.CaptureConfig()
		if cmd.Flags().Changed("device") {
			captureCfg.DeviceIndex = recordDevice
		}
		if recordMonitor {
			captureCfg.Monitoring = true
		}
		if err := controller.SetConfig(captureCfg); err != nil {
			return err
		}

		amplifier, err := newAmplifier(host, bus, cfg)
		if err != nil {
			return err
		}
		defer amplifier.Close()
		if captureCfg.Monitoring {
			if err := amplifier.Start(); err != nil {
				return fmt.Errorf("failed to start monitor chain: %w", err)
			}
			// Keep the processed queue from backing up while nothing
			// consumes it.
			go drainOutput(amplifier)
		}

		if err := controller.Start(); err != nil {
			return fmt.Errorf("failed to start recording: %w", err)
		}

		slog.Info("recording... press Ctrl+C to stop")

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
	wait:
		for {
			select {
			case <-sigChan:
				break wait
			case <-ticker.C:
				st := controller.Status()
				fmt.Printf("\r  %6.1fs  L %5.3f  R %5.3f  blocks %d ", st.Elapsed, st.Peaks[0], st.Peaks[1], st.BufferedBlocks)
			}
		}
		fmt.Println()
		slog.Info("stopping recording...")

		t, err := controller.Stop()
		if err != nil {
			return fmt.Errorf("failed to stop recording: %w", err)
		}
		if t.Empty() {
			slog.Warn("nothing captured")
			return nil
		}
		slog.Info("take assembled", "frames", t.Frames(), "duration", t.Duration().Round(time.Millisecond))

		if recordProjectID != "" {
			mgr, err := project.NewManager(cfg.Project.Directory)
			if err != nil {
				return err
			}
			if _, err := mgr.Open(recordProjectID); err != nil {
				return err
			}
			track, err := mgr.AddTake(t, takeName)
			if err != nil {
				return fmt.Errorf("failed to add take to project: %w", err)
			}
			slog.Info("take added to project", "project", recordProjectID, "track", track.Name, "file", track.File)
			return nil
		}

		outDir := cfg.Output.Directory
		if recordOutputDir != "" {
			outDir = recordOutputDir
		}
		if err := os.MkdirAll(outDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}

		outFile := filepath.Join(outDir, takeName+".wav")
		if err := t.WriteWAV(outFile, cfg.Output.BitDepth); err != nil {
			return fmt.Errorf("failed to write take: %w", err)
		}

		slog.Info("take saved", "file", outFile)
		return nil
	},
}

// drainOutput consumes processed blocks so the monitor path keeps moving
// when no downstream playback is attached.
func drainOutput(a *amp.Amplifier) {
	for range a.Output() {
	}
}

func init() {
	recordCmd.Flags().IntVar(&recordDevice, "device", -1, "input device index (overrides config)")
	recordCmd.Flags().BoolVarP(&recordMonitor, "monitor", "m", false, "forward input through the amplifier while recording")
	recordCmd.Flags().StringVarP(&recordOutputDir, "output", "o", "", "output directory (overrides config)")
	recordCmd.Flags().StringVar(&recordProjectID, "project", "", "register the take in the given project instead of writing a standalone file")
}
