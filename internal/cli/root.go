// Package cli implements the contactctl operator commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/lewisgerrard/divafitness-backend/internal/model"
)

// RetryRunner is the subset of the retry service the commands drive.
type RetryRunner interface {
	RetryAll(ctx context.Context) ([]model.SubmissionRetryResult, model.RetrySummary, error)
	RetryOne(ctx context.Context, id int64, selector model.ChannelSelector) (*model.SubmissionRetryResult, error)
}

type DeliverabilityAnalyzer interface {
	Analyze(ctx context.Context) model.DeliverabilityReport
}

// Set by main before Execute. Connect is called lazily by commands that need the
// database and must populate Retrier.
var (
	Retrier  RetryRunner
	Analyzer DeliverabilityAnalyzer
	Connect  func(ctx context.Context) error
	Migrate  func() error
)

var compact bool

var rootCmd = &cobra.Command{
	Use:           "contactctl",
	Short:         "Operate the contact email reliability workflow",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&compact, "compact", false, "print single-line JSON")
	rootCmd.AddCommand(retryAllCmd, retryOneCmd, deliverabilityCmd, migrateCmd)
}

func Execute() error {
	return rootCmd.Execute()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	if !compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

func retrier(ctx context.Context) (RetryRunner, error) {
	if Retrier == nil && Connect != nil {
		if err := Connect(ctx); err != nil {
			return nil, err
		}
	}
	if Retrier == nil {
		return nil, fmt.Errorf("retry service not initialized")
	}
	return Retrier, nil
}
