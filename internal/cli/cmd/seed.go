package cmd

import (
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/spf13/cobra"

	"github.com/hunthawk-systems/hunthawk/internal/cli/output"
	"github.com/hunthawk-systems/hunthawk/internal/models"
)

var (
	seedCount     int
	seedConnector string
	seedRunDaily  bool
)

// queryTemplates are shaped like typical EDR hunting queries so seeded
// analytics look plausible in the UI and in demos.
var queryTemplates = []string{
	`EventType = "Process Creation" AND TgtProcName = "%s.exe"`,
	`EventType = "DNS Request" AND DnsRequest contains "%s"`,
	`EventType = "File Modification" AND TgtFilePath contains "\\%s\\"`,
	`EventType = "Registry Value Modify" AND RegistryKeyPath contains "%s"`,
	`EventType = "Command Script" AND CmdLine contains "%s"`,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the engine with generated analytics",
	Long: `Generate plausible hunting analytics and create them through the API.

Useful for demos and for load-testing campaign runs against a development
engine. Seeded analytics are named seed-<noun>-<verb>-<n>.

Examples:
  hawkctl seed --count 25
  hawkctl seed --count 100 --connector sql --run-daily=false`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := engineClient(cmd)
		if err != nil {
			return err
		}

		created := 0
		for i := 0; i < seedCount; i++ {
			name := fmt.Sprintf("seed-%s-%s-%d",
				strings.ToLower(gofakeit.HackerNoun()),
				strings.ToLower(gofakeit.HackerVerb()), i+1)
			name = strings.ReplaceAll(name, " ", "-")

			template := queryTemplates[gofakeit.Number(0, len(queryTemplates)-1)]
			a := &models.Analytic{
				Name:        name,
				Description: gofakeit.HackerPhrase(),
				Connector:   seedConnector,
				Query:       fmt.Sprintf(template, strings.ToLower(gofakeit.HackerAdjective())),
				RunDaily:    seedRunDaily,
				Confidence:  gofakeit.Number(1, 4),
				Relevance:   gofakeit.Number(1, 4),
			}

			if _, err := c.CreateAnalytic(a); err != nil {
				output.Warn("Skipped %s: %v", name, err)
				continue
			}
			created++
		}

		output.Success("Created %d of %d analytics", created, seedCount)
		return nil
	},
}

func init() {
	seedCmd.Flags().IntVar(&seedCount, "count", 10, "number of analytics to create")
	seedCmd.Flags().StringVar(&seedConnector, "connector", "opensearch", "connector for seeded analytics")
	seedCmd.Flags().BoolVar(&seedRunDaily, "run-daily", true, "mark seeded analytics for daily campaigns")
	rootCmd.AddCommand(seedCmd)
}
