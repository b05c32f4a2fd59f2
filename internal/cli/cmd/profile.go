package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hunthawk-systems/hunthawk/internal/cli/output"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage connection profiles",
}

var profileSetCmd = &cobra.Command{
	Use:   "set [name] [server-url]",
	Short: "Create or update a profile",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg.SetProfile(args[0], args[1])
		if err := cfg.Save(); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		output.Success("Profile %s -> %s", args[0], args[1])
		return nil
	},
}

var profileUseCmd = &cobra.Command{
	Use:   "use [name]",
	Short: "Switch the current profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := cfg.GetProfile(args[0]); err != nil {
			return err
		}
		cfg.CurrentProfile = args[0]
		if err := cfg.Save(); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		output.Success("Using profile %s", args[0])
		return nil
	},
}

var profileListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List profiles",
	Run: func(cmd *cobra.Command, args []string) {
		table := output.NewTable([]string{"Name", "Server", "Current"})
		for name, p := range cfg.Profiles {
			current := ""
			if name == cfg.CurrentProfile {
				current = "*"
			}
			table.AddRow([]string{name, p.ServerURL, current})
		}
		table.Render()
	},
}

func init() {
	profileCmd.AddCommand(profileSetCmd)
	profileCmd.AddCommand(profileUseCmd)
	profileCmd.AddCommand(profileListCmd)
	rootCmd.AddCommand(profileCmd)
}
