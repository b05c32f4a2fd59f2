package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hunthawk-systems/hunthawk/internal/cli/output"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Background task management",
	Long:  "List, inspect and cancel running campaign and regeneration tasks",
}

var tasksListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List running tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := engineClient(cmd)
		if err != nil {
			return err
		}

		statuses, err := c.ListTasks()
		if err != nil {
			return fmt.Errorf("failed to list tasks: %w", err)
		}

		if format, _ := cmd.Flags().GetString("output"); format == "json" {
			return output.JSON(statuses)
		}

		if len(statuses) == 0 {
			output.Info("No running tasks")
			return nil
		}

		table := output.NewTable([]string{"Task ID", "Name", "Progress", "Started At"})
		for _, ts := range statuses {
			table.AddRow([]string{
				ts.TaskID,
				ts.Name,
				fmt.Sprintf("%.0f%%", ts.Progress),
				ts.StartedAt.Format("2006-01-02 15:04:05"),
			})
		}
		table.Render()
		return nil
	},
}

var tasksGetCmd = &cobra.Command{
	Use:   "get [task-id]",
	Short: "Get task status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := engineClient(cmd)
		if err != nil {
			return err
		}

		ts, err := c.GetTask(args[0])
		if err != nil {
			return fmt.Errorf("failed to get task: %w", err)
		}

		if format, _ := cmd.Flags().GetString("output"); format == "json" {
			return output.JSON(ts)
		}

		output.Info("Task ID:  %s", ts.TaskID)
		output.Info("Name:     %s", ts.Name)
		output.Info("Progress: %.0f%%", ts.Progress)
		output.Info("Started:  %s", ts.StartedAt.Format("2006-01-02 15:04:05"))
		return nil
	},
}

var tasksCancelCmd = &cobra.Command{
	Use:   "cancel [task-id]",
	Short: "Cancel a running task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := engineClient(cmd)
		if err != nil {
			return err
		}

		if err := c.CancelTask(args[0]); err != nil {
			return fmt.Errorf("failed to cancel task: %w", err)
		}
		output.Success("Task %s cancelled", args[0])
		return nil
	},
}

func init() {
	tasksCmd.AddCommand(tasksListCmd)
	tasksCmd.AddCommand(tasksGetCmd)
	tasksCmd.AddCommand(tasksCancelCmd)
	rootCmd.AddCommand(tasksCmd)
}
