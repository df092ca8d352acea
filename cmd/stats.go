package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/warpmatch/internal/matchmaking"
	"github.com/BioHazard786/warpmatch/internal/ui"
)

var (
	flagStatsServer string
	flagStatsJSON   bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show client and waiting-key counts of a running server",
	Long: `Show client and waiting-key counts of a running server.

Examples:
  warpmatch stats
  warpmatch stats --server https://match.example.com --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagStatsJSON {
			stats, err := fetchStats(cmd.Context(), flagStatsServer)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(ui.Output)
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		}

		sp := ui.NewConnectionSpinner("Fetching stats from " + flagStatsServer + "...")
		sp.Start()
		stats, err := fetchStats(cmd.Context(), flagStatsServer)
		sp.Stop()
		if err != nil {
			return err
		}
		ui.RenderStats(stats)
		return nil
	},
}

func init() {
	statsCmd.Flags().StringVarP(&flagStatsServer, "server", "s", "http://localhost:8080", "server base URL")
	statsCmd.Flags().BoolVar(&flagStatsJSON, "json", false, "print the raw JSON snapshot")

	rootCmd.AddCommand(statsCmd)
}

func fetchStats(ctx context.Context, base string) (matchmaking.Stats, error) {
	var stats matchmaking.Stats

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(base, "/")+"/stats", nil)
	if err != nil {
		return stats, fmt.Errorf("invalid server URL: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return stats, fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return stats, fmt.Errorf("server returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return stats, fmt.Errorf("failed to decode stats: %w", err)
	}
	return stats, nil
}
