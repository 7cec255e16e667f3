package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// statsView mirrors debugserver's statsResponse wire shape.
type statsView struct {
	RouteCount    int `json:"route_count"`
	DirectCount   int `json:"direct_count"`
	LearnedCount  int `json:"learned_count"`
	PoisonedCount int `json:"poisoned_count"`
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show routing table statistics",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			var resp statsView
			if err := getJSON("/stats", &resp); err != nil {
				return fmt.Errorf("get stats: %w", err)
			}

			out, err := formatStats(resp, outputFormat)
			if err != nil {
				return fmt.Errorf("format stats: %w", err)
			}

			fmt.Print(out)
			return nil
		},
	}
}
