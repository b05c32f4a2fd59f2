// Package cmd implements the hawkctl command tree.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hunthawk-systems/hunthawk/internal/cli/client"
	"github.com/hunthawk-systems/hunthawk/internal/cli/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "hawkctl",
	Short: "HuntHawk CLI",
	Long: `hawkctl is the command-line interface for the HuntHawk threat hunting engine.

Run hunting campaigns, manage analytics, regenerate statistics and watch
background tasks from your terminal.`,
	Version: "0.1.0",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.hawkctl/config.yaml)")
	rootCmd.PersistentFlags().String("profile", "", "profile to use")
	rootCmd.PersistentFlags().String("server", "", "engine URL, overrides the profile")
	rootCmd.PersistentFlags().String("output", "table", "output format: table, json")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not load config: %v\n", err)
		cfg = config.Default()
	}
}

// engineClient resolves the server URL from the --server flag or the active
// profile and returns a client for it.
func engineClient(cmd *cobra.Command) (*client.Client, error) {
	if server, _ := cmd.Flags().GetString("server"); server != "" {
		return client.New(server), nil
	}
	profile, _ := cmd.Flags().GetString("profile")
	p, err := cfg.GetProfile(profile)
	if err != nil {
		return nil, err
	}
	return client.New(p.ServerURL), nil
}
