package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hunthawk-systems/hunthawk/internal/cli/output"
)

var campaignDate string

var campaignCmd = &cobra.Command{
	Use:   "campaign",
	Short: "Hunting campaign operations",
	Long:  "Launch daily hunting campaigns and purge expired data",
}

var campaignRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Launch a hunting campaign",
	Long: `Launch the daily hunting campaign as a background task.

By default the campaign covers yesterday's detections. Pass --date to run
a campaign for a historical day.

Examples:
  hawkctl campaign run
  hawkctl campaign run --date 2026-08-20`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if campaignDate != "" {
			if _, err := time.Parse("2006-01-02", campaignDate); err != nil {
				return fmt.Errorf("invalid --date, expected YYYY-MM-DD: %w", err)
			}
		}

		c, err := engineClient(cmd)
		if err != nil {
			return err
		}

		resp, err := c.RunCampaign(campaignDate)
		if err != nil {
			return fmt.Errorf("failed to launch campaign: %w", err)
		}

		output.Success("Campaign %s launched", resp.Campaign)
		output.Info("Task ID: %s", resp.TaskID)
		output.Info("Watch progress with: hawkctl tasks get %s", resp.TaskID)
		return nil
	},
}

var campaignPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Purge campaigns and snapshots past retention",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := engineClient(cmd)
		if err != nil {
			return err
		}
		if err := c.Purge(); err != nil {
			return fmt.Errorf("purge failed: %w", err)
		}
		output.Success("Purge completed")
		return nil
	},
}

func init() {
	campaignRunCmd.Flags().StringVar(&campaignDate, "date", "", "campaign date (YYYY-MM-DD, default today)")

	campaignCmd.AddCommand(campaignRunCmd)
	campaignCmd.AddCommand(campaignPurgeCmd)
	rootCmd.AddCommand(campaignCmd)
}
