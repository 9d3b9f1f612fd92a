package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/audiolibrelab/opentune/internal/server"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var statusAddr string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of a running control server",
	Long: `Query the HTTP control server started with 'opentune serve' and
print the session and amplifier status.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := &http.Client{Timeout: 5 * time.Second}
		resp, err := client.Get(fmt.Sprintf("http://%s/api/status", statusAddr))
		if err != nil {
			return fmt.Errorf("failed to reach control server at %s: %w", statusAddr, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("control server returned %s", resp.Status)
		}

		var status server.StatusResponse
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			return fmt.Errorf("failed to decode status: %w", err)
		}

		out, err := yaml.Marshal(status)
		if err != nil {
			return fmt.Errorf("encode status: %w", err)
		}
		fmt.Print(string(out))
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "127.0.0.1:8090", "control server address")
}
