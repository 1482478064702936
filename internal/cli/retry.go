package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lewisgerrard/divafitness-backend/internal/model"
)

var emailType string

var retryAllCmd = &cobra.Command{
	Use:   "retry-all",
	Short: "Retry both emails for every submission from the last 24 hours",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := retrier(cmd.Context())
		if err != nil {
			return err
		}
		results, summary, err := svc.RetryAll(cmd.Context())
		if err != nil {
			return fmt.Errorf("retrying submissions: %w", err)
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"results": results,
			"summary": summary,
		})
	},
}

var retryOneCmd = &cobra.Command{
	Use:   "retry-one <submission-id>",
	Short: "Retry the emails for a single submission",
	Long: `Retry the customer confirmation, the business notification, or both
for one contact-form submission. --type defaults to both.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid submission id %q", args[0])
		}
		selector, err := model.ParseChannelSelector(emailType)
		if err != nil {
			return err
		}
		svc, err := retrier(cmd.Context())
		if err != nil {
			return err
		}
		result, err := svc.RetryOne(cmd.Context(), id, selector)
		if err != nil {
			return err
		}
		if err := printJSON(cmd.OutOrStdout(), result); err != nil {
			return err
		}
		if !result.AnySucceeded() {
			return fmt.Errorf("no email was delivered for submission %d", id)
		}
		return nil
	},
}

func init() {
	retryOneCmd.Flags().StringVar(&emailType, "type", "both", "customer, business or both")
}
