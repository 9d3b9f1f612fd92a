package cmd

import (
	"fmt"
	"time"

	"github.com/audiolibrelab/opentune/internal/catalog"
	"github.com/audiolibrelab/opentune/internal/driver"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var devicesYAML bool

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List available audio devices",
	Long:  `Scan the audio host APIs and list every device with its capabilities.`,
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

		if devicesYAML {
			out, err := yaml.Marshal(cat.Devices())
			if err != nil {
				return fmt.Errorf("encode devices: %w", err)
			}
			fmt.Print(string(out))
			return nil
		}

		printDevices(cat)
		return nil
	},
}

func printDevices(cat *catalog.Catalog) {
	devices := cat.Devices()
	fmt.Printf("🎤 Audio Devices (%d found)\n", len(devices))
	fmt.Printf("═══════════════════════════════════════\n\n")

	for _, d := range devices {
		marker := "  "
		if d.IsDefault {
			marker = "* "
		}
		fmt.Printf("%s%d. %s [%s/%s]\n", marker, d.Index, d.Name, d.HostAPI, d.Backend)
		fmt.Printf("     in: %d  out: %d  default rate: %d Hz\n", d.MaxInputChannels, d.MaxOutputChannels, d.DefaultSampleRate)
		if len(d.SupportedSampleRates) > 0 {
			fmt.Printf("     rates: %v\n", d.SupportedSampleRates)
		}
		fmt.Printf("     latency: %s - %s\n", d.DefaultLowLatency.Round(time.Microsecond), d.DefaultHighLatency.Round(time.Microsecond))
	}

	fmt.Printf("\n💡 Use 'opentune record --device <index>' to capture from a specific device\n")
}

func init() {
	devicesCmd.Flags().BoolVar(&devicesYAML, "yaml", false, "print devices as YAML")
}
