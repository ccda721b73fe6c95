package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/teacher-training-api/internal/service"
)

var refreshStatsCmd = &cobra.Command{
	Use:   "refresh-stats",
	Short: "Recompute completion counts and ratings for every training module",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.close()

		n, err := a.statsWorker.RefreshAll(cmd.Context(), service.StatsTriggerManual)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "refreshed statistics for %d modules\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(refreshStatsCmd)
}
