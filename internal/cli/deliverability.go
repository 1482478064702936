package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lewisgerrard/divafitness-backend/internal/deliverability"
)

var failAbove int

var deliverabilityCmd = &cobra.Command{
	Use:   "deliverability",
	Short: "Score the sending domain's SPF, DKIM and DMARC setup",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Analyzer == nil {
			return fmt.Errorf("deliverability analyzer not initialized")
		}
		report := Analyzer.Analyze(cmd.Context())
		err := printJSON(cmd.OutOrStdout(), map[string]any{
			"analysis":  report,
			"summary":   deliverability.Summarize(report),
			"nextSteps": deliverability.NextSteps(report),
		})
		if err != nil {
			return err
		}
		if failAbove >= 0 && report.SpamScore > failAbove {
			return fmt.Errorf("spam score %d is above %d", report.SpamScore, failAbove)
		}
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Migrate == nil {
			return fmt.Errorf("migrations not configured")
		}
		if err := Migrate(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied.")
		return nil
	},
}

func init() {
	deliverabilityCmd.Flags().IntVar(&failAbove, "fail-above", -1, "exit non-zero when the spam score exceeds this value")
}
