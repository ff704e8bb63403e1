package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phantomos/phantom/internal/capability"
	"github.com/phantomos/phantom/internal/governor"
)

// evaluateResult is the serializable view of a Governor response.
type evaluateResult struct {
	CodeHash      string `json:"code_hash"`
	Approved      bool   `json:"approved"`
	Threat        string `json:"threat"`
	DecisionBy    string `json:"decision_by"`
	GrantedCaps   string `json:"granted_caps,omitempty"`
	Signature     string `json:"signature,omitempty"`
	Summary       string `json:"summary"`
	Reasoning     string `json:"reasoning,omitempty"`
	Alternatives  string `json:"alternatives,omitempty"`
	DeclineReason string `json:"decline_reason,omitempty"`
	Cached        bool   `json:"cached"`
}

func (r evaluateResult) String() string {
	var b strings.Builder
	verdict := "DECLINED"
	if r.Approved {
		verdict = "APPROVED"
	}
	fmt.Fprintf(&b, "%s  threat=%s  by=%s", verdict, r.Threat, r.DecisionBy)
	if r.Cached {
		b.WriteString("  (cached)")
	}
	fmt.Fprintf(&b, "\nhash: %s", r.CodeHash)
	if r.GrantedCaps != "" {
		fmt.Fprintf(&b, "\ncaps: %s", r.GrantedCaps)
	}
	fmt.Fprintf(&b, "\n%s", r.Summary)
	if r.DeclineReason != "" {
		fmt.Fprintf(&b, "\nreason: %s", r.DeclineReason)
	}
	if r.Alternatives != "" {
		fmt.Fprintf(&b, "\nalternatives: %s", r.Alternatives)
	}
	return b.String()
}

// NewEvaluateCommand creates the evaluate command.
func NewEvaluateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		name        string
		description string
		creator     string
		capNames    []string
	)

	cmd := &cobra.Command{
		Use:   "evaluate <file>",
		Short: "Submit a code artifact for admission judgment",
		Long: "Evaluate reads an artifact, runs behavioral analysis and capability\n" +
			"inference, and appends the decision to the audit chain. Exit code 1\n" +
			"means the artifact was declined.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout(), Verbose: rootOpts.Verbose}

			code, err := os.ReadFile(args[0])
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "cannot read artifact", Err: err}
			}

			var declared capability.Set
			for _, n := range capNames {
				c, err := capability.Parse(n)
				if err != nil {
					return &ExitError{Code: ExitCommandError, Message: "bad --cap value", Err: err}
				}
				declared = declared.With(c)
			}
			if name == "" {
				name = args[0]
			}

			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "cannot open control plane", Err: err}
			}
			defer app.Close()

			resp, err := app.Governor.Evaluate(cmd.Context(), governor.Request{
				Code:         code,
				Name:         name,
				Description:  description,
				CreatorID:    creator,
				DeclaredCaps: declared,
			})
			if err != nil {
				formatter.Fail(err)
				return &ExitError{Code: ExitCommandError, Message: "evaluation failed", Err: err}
			}

			result := evaluateResult{
				CodeHash:      resp.CodeHash,
				Approved:      resp.Approved,
				Threat:        resp.Threat.String(),
				DecisionBy:    resp.DecisionBy,
				GrantedCaps:   resp.GrantedCaps.String(),
				Signature:     resp.Signature,
				Summary:       resp.Summary,
				Reasoning:     resp.Reasoning,
				Alternatives:  resp.Alternatives,
				DeclineReason: resp.DeclineReason,
				Cached:        resp.Cached,
			}
			if err := formatter.Success(result); err != nil {
				return err
			}
			if !resp.Approved {
				return &ExitError{Code: ExitFailure, Message: "artifact declined"}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "artifact name (default: file path)")
	cmd.Flags().StringVar(&description, "description", "", "artifact description")
	cmd.Flags().StringVar(&creator, "creator", "", "creator identity")
	cmd.Flags().StringSliceVar(&capNames, "cap", nil, "declared capability (repeatable)")

	return cmd
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent Governor decisions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout(), Verbose: rootOpts.Verbose}

			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "cannot open control plane", Err: err}
			}
			defer app.Close()

			type entry struct {
				Index      int    `json:"index"`
				CodeHash   string `json:"code_hash"`
				Approved   bool   `json:"approved"`
				Name       string `json:"name"`
				Threat     string `json:"threat"`
				DecisionBy string `json:"decision_by"`
				Summary    string `json:"summary"`
			}
			n := app.Governor.HistoryCount()
			if limit > 0 && limit < n {
				n = limit
			}
			var out []entry
			for i := 0; i < n; i++ {
				e, err := app.Governor.History(i)
				if err != nil {
					break
				}
				out = append(out, entry{
					Index:      i,
					CodeHash:   e.CodeHash,
					Approved:   e.Approved,
					Name:       e.Name,
					Threat:     e.Threat.String(),
					DecisionBy: e.DecisionBy,
					Summary:    e.Summary,
				})
			}
			if rootOpts.Format == "json" {
				return formatter.Success(out)
			}
			for _, e := range out {
				verdict := "declined"
				if e.Approved {
					verdict = "approved"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%3d  %-8s  %-8s  %s  %s\n",
					e.Index, verdict, e.Threat, e.CodeHash[:12], e.Name)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum entries to show")
	return cmd
}

// NewRollbackCommand creates the rollback command.
func NewRollbackCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rollback <index>",
		Short: "Compensate a recorded decision",
		Long: "Rollback flips the decision at a history index by appending a\n" +
			"compensating entry, invalidating the cache entry, and revoking any\n" +
			"scopes the decision issued. The original entry is never erased.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout(), Verbose: rootOpts.Verbose}

			var index int
			if _, err := fmt.Sscanf(args[0], "%d", &index); err != nil {
				return &ExitError{Code: ExitCommandError, Message: "index must be an integer", Err: err}
			}

			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "cannot open control plane", Err: err}
			}
			defer app.Close()

			if err := app.Governor.Rollback(cmd.Context(), index); err != nil {
				formatter.Fail(err)
				return &ExitError{Code: ExitFailure, Message: "rollback refused", Err: err}
			}
			return formatter.Success(fmt.Sprintf("decision at index %d rolled back", index))
		},
	}
	return cmd
}
