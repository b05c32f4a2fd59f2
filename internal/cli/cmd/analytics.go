package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hunthawk-systems/hunthawk/internal/cli/output"
	"github.com/hunthawk-systems/hunthawk/internal/models"
)

var (
	analyticConnector string
	analyticQuery     string
	analyticRunDaily  bool
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Analytics management",
	Long:  "Create, inspect and transition hunting analytics",
}

var analyticsCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create an analytic",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := engineClient(cmd)
		if err != nil {
			return err
		}

		created, err := c.CreateAnalytic(&models.Analytic{
			Name:      args[0],
			Connector: analyticConnector,
			Query:     analyticQuery,
			RunDaily:  analyticRunDaily,
		})
		if err != nil {
			return fmt.Errorf("failed to create analytic: %w", err)
		}

		output.Success("Analytic %s created (id %d)", created.Name, created.ID)
		return nil
	},
}

var analyticsGetCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Get analytic details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("analytic id must be an integer: %w", err)
		}

		c, err := engineClient(cmd)
		if err != nil {
			return err
		}

		a, err := c.GetAnalytic(id)
		if err != nil {
			return fmt.Errorf("failed to get analytic: %w", err)
		}

		if format, _ := cmd.Flags().GetString("output"); format == "json" {
			return output.JSON(a)
		}

		output.Info("ID:          %d", a.ID)
		output.Info("Name:        %s", a.Name)
		output.Info("Status:      %s", a.Status)
		output.Info("Connector:   %s", a.Connector)
		output.Info("Run daily:   %t (locked: %t)", a.RunDaily, a.RunDailyLock)
		output.Info("Relevance:   %d", a.WeightedRelevance())
		output.Info("Max-hosts breaches: %d", a.MaxHostsCount)
		if a.QueryError {
			output.Warn("Query error: %s", a.QueryErrorMessage)
		}
		if a.LastTimeSeen != nil {
			output.Info("Last seen:   %s", a.LastTimeSeen.Format("2006-01-02"))
		}
		if a.NextReviewDate != nil {
			output.Info("Next review: %s", a.NextReviewDate.Format("2006-01-02"))
		}
		return nil
	},
}

var analyticsUpdateQueryCmd = &cobra.Command{
	Use:   "update-query [id]",
	Short: "Update an analytic's query",
	Long: `Update the query text of an analytic.

Changing the query resets the analytic's error and breach state. When the
engine is configured for automatic regeneration, statistics are rebuilt in
the background.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("analytic id must be an integer: %w", err)
		}
		if analyticQuery == "" {
			return fmt.Errorf("--query is required")
		}

		c, err := engineClient(cmd)
		if err != nil {
			return err
		}

		a, err := c.UpdateQuery(id, analyticQuery)
		if err != nil {
			return fmt.Errorf("failed to update query: %w", err)
		}
		output.Success("Query updated for %s", a.Name)
		return nil
	},
}

var analyticsTransitionCmd = &cobra.Command{
	Use:   "transition [id] [status]",
	Short: "Move an analytic to PUB, ARCH or PENDING",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("analytic id must be an integer: %w", err)
		}
		status := strings.ToUpper(args[1])

		c, err := engineClient(cmd)
		if err != nil {
			return err
		}

		a, err := c.TransitionAnalytic(id, status)
		if err != nil {
			return fmt.Errorf("failed to transition analytic: %w", err)
		}
		output.Success("Analytic %s is now %s", a.Name, a.Status)
		return nil
	},
}

var analyticsRegenerateCmd = &cobra.Command{
	Use:   "regenerate [id]",
	Short: "Rebuild an analytic's snapshot history",
	Long: `Delete an analytic's snapshots and rebuild them day by day over the
retention window as a background task.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("analytic id must be an integer: %w", err)
		}

		c, err := engineClient(cmd)
		if err != nil {
			return err
		}

		resp, err := c.Regenerate(id)
		if err != nil {
			return fmt.Errorf("failed to launch regeneration: %w", err)
		}
		output.Success("Regeneration launched")
		output.Info("Task ID: %s", resp.TaskID)
		return nil
	},
}

func init() {
	analyticsCreateCmd.Flags().StringVar(&analyticConnector, "connector", "opensearch", "connector the analytic queries")
	analyticsCreateCmd.Flags().StringVar(&analyticQuery, "query", "", "query text")
	analyticsCreateCmd.Flags().BoolVar(&analyticRunDaily, "run-daily", false, "include in daily campaigns")
	analyticsUpdateQueryCmd.Flags().StringVar(&analyticQuery, "query", "", "new query text")

	analyticsCmd.AddCommand(analyticsCreateCmd)
	analyticsCmd.AddCommand(analyticsGetCmd)
	analyticsCmd.AddCommand(analyticsUpdateQueryCmd)
	analyticsCmd.AddCommand(analyticsTransitionCmd)
	analyticsCmd.AddCommand(analyticsRegenerateCmd)
	rootCmd.AddCommand(analyticsCmd)
}
