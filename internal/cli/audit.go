package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewAuditCommand creates the audit command group.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect and verify the audit chain",
	}
	cmd.AddCommand(newAuditVerifyCommand(rootOpts))
	cmd.AddCommand(newAuditShowCommand(rootOpts))
	return cmd
}

func newAuditVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Replay the decision chain and verify every link",
		Long: "Verify recomputes the hash of every stored decision record and\n" +
			"checks the chain links. Any divergence names the first bad record.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout(), Verbose: rootOpts.Verbose}

			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "cannot open control plane", Err: err}
			}
			defer app.Close()

			n, err := app.Sink.VerifyChain(cmd.Context())
			if err != nil {
				formatter.Fail(err)
				return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("chain broken after %d records", n), Err: err}
			}
			return formatter.Success(fmt.Sprintf("chain verified: %d records intact", n))
		},
	}
	return cmd
}

func newAuditShowCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		artifact string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show audit records, newest last",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout(), Verbose: rootOpts.Verbose}

			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "cannot open control plane", Err: err}
			}
			defer app.Close()

			records, err := app.Sink.Decisions(cmd.Context(), artifact)
			if err != nil {
				formatter.Fail(err)
				return &ExitError{Code: ExitCommandError, Message: "cannot read audit chain", Err: err}
			}
			if limit > 0 && len(records) > limit {
				records = records[len(records)-limit:]
			}
			if rootOpts.Format == "json" {
				return formatter.Success(records)
			}
			for _, rec := range records {
				ts := time.Unix(rec.Timestamp, 0).UTC().Format(time.RFC3339)
				fmt.Fprintf(cmd.OutOrStdout(), "%6d  %s  %-8s %-8s %-8s %s\n",
					rec.Seq, ts, rec.Source, rec.Kind, rec.Threat, rec.Name)
				if rootOpts.Verbose && rec.Summary != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "        %s\n", rec.Summary)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&artifact, "artifact", "", "filter by artifact hash")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum records to show")
	return cmd
}
