package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phantomos/phantom/internal/dnauth"
	"github.com/phantomos/phantom/internal/fault"
)

// NewDNACommand creates the dna command group.
func NewDNACommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dna",
		Short: "Manage DNA-sequence credentials",
	}
	cmd.AddCommand(newDNARegisterCommand(rootOpts))
	cmd.AddCommand(newDNAAuthCommand(rootOpts))
	cmd.AddCommand(newDNARevokeCommand(rootOpts))
	cmd.AddCommand(newDNAEvolveCommand(rootOpts))
	cmd.AddCommand(newDNALineageCommand(rootOpts))
	cmd.AddCommand(newDNAChangeKeyCommand(rootOpts))
	return cmd
}

func newDNARegisterCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		mode string
		kdf  string
	)

	cmd := &cobra.Command{
		Use:   "register <user> <sequence>",
		Short: "Register a credential sequence for a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout(), Verbose: rootOpts.Verbose}

			var regOpts dnauth.RegisterOptions
			if mode != "" {
				m, err := dnauth.ParseMode(mode)
				if err != nil {
					return &ExitError{Code: ExitCommandError, Message: "bad --mode value", Err: err}
				}
				regOpts.Mode = &m
			}
			if kdf != "" {
				k, err := dnauth.ParseKDF(kdf)
				if err != nil {
					return &ExitError{Code: ExitCommandError, Message: "bad --kdf value", Err: err}
				}
				regOpts.KDF = &k
			}

			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "cannot open control plane", Err: err}
			}
			defer app.Close()

			if err := app.DNAuth.Register(cmd.Context(), args[0], args[1], regOpts); err != nil {
				formatter.Fail(err)
				return &ExitError{Code: ExitFailure, Message: "registration refused", Err: err}
			}
			if err := app.SaveCredentials(cmd.Context()); err != nil {
				return &ExitError{Code: ExitCommandError, Message: "cannot persist credential state", Err: err}
			}
			return formatter.Success(fmt.Sprintf("registered credential for %s", args[0]))
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "match mode (exact|fuzzy|codon-exact|protein)")
	cmd.Flags().StringVar(&kdf, "kdf", "", "key derivation (binary|codon)")
	return cmd
}

func newDNAAuthCommand(rootOpts *RootOptions) *cobra.Command {
	var ancestors int

	cmd := &cobra.Command{
		Use:   "auth <user> <sequence>",
		Short: "Authenticate a user with a sequence",
		Long: "Auth checks the presented sequence against the stored credential.\n" +
			"With --ancestors N the sequence is also compared against up to N\n" +
			"prior lineage generations. Exit code 1 means authentication failed.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout(), Verbose: rootOpts.Verbose}

			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "cannot open control plane", Err: err}
			}
			defer app.Close()

			var match dnauth.Match
			var authErr error
			if ancestors > 0 {
				match, authErr = app.DNAuth.AuthenticateAncestor(cmd.Context(), args[0], args[1], ancestors)
			} else {
				match, authErr = app.DNAuth.Authenticate(cmd.Context(), args[0], args[1])
			}
			if saveErr := app.SaveCredentials(cmd.Context()); saveErr != nil {
				return &ExitError{Code: ExitCommandError, Message: "cannot persist credential state", Err: saveErr}
			}
			if authErr != nil {
				formatter.Fail(authErr)
				return &ExitError{Code: ExitFailure, Message: "authentication failed", Err: authErr}
			}

			var b strings.Builder
			b.WriteString("authenticated")
			if !match.Exact {
				fmt.Fprintf(&b, " (fuzzy: %d mutations, similarity %.2f)", match.Mutations, match.Similarity)
			}
			if match.GenerationMatched > 0 {
				fmt.Fprintf(&b, " via ancestor %d generations back, penalty %.1f",
					match.GenerationMatched, match.Penalty)
			}
			return formatter.Success(b.String())
		},
	}

	cmd.Flags().IntVar(&ancestors, "ancestors", 0, "also match up to N lineage generations back")
	return cmd
}

func newDNARevokeCommand(rootOpts *RootOptions) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "revoke <user>",
		Short: "Revoke a user's credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout(), Verbose: rootOpts.Verbose}

			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "cannot open control plane", Err: err}
			}
			defer app.Close()

			if err := app.DNAuth.Revoke(cmd.Context(), args[0], reason); err != nil {
				formatter.Fail(err)
				return &ExitError{Code: ExitFailure, Message: "revocation refused", Err: err}
			}
			if err := app.SaveCredentials(cmd.Context()); err != nil {
				return &ExitError{Code: ExitCommandError, Message: "cannot persist credential state", Err: err}
			}
			return formatter.Success(fmt.Sprintf("revoked credential for %s", args[0]))
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "operator request", "revocation reason")
	return cmd
}

func newDNAEvolveCommand(rootOpts *RootOptions) *cobra.Command {
	var mutations int
	cmd := &cobra.Command{
		Use:   "evolve <user>",
		Short: "Force a credential evolution step",
		Long: "Evolve applies random mutations to the user's current sequence,\n" +
			"creating a new lineage generation under a fresh salt. The live\n" +
			"credential rotates to the new generation.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout(), Verbose: rootOpts.Verbose}

			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "cannot open control plane", Err: err}
			}
			defer app.Close()

			event, err := app.DNAuth.ForceEvolve(cmd.Context(), args[0], mutations)
			if err != nil {
				formatter.Fail(err)
				return &ExitError{Code: ExitFailure, Message: "evolution refused", Err: err}
			}
			if err := app.SaveCredentials(cmd.Context()); err != nil {
				return &ExitError{Code: ExitCommandError, Message: "cannot persist credential state", Err: err}
			}
			return formatter.Success(fmt.Sprintf(
				"evolved %s: generation %d -> %d, %d mutations, fitness %.2f -> %.2f",
				args[0], event.FromGeneration, event.ToGeneration,
				len(event.Mutations), event.FitnessBefore, event.FitnessAfter))
		},
	}
	cmd.Flags().IntVar(&mutations, "mutations", 1, "number of mutations to apply")
	return cmd
}

func newDNAChangeKeyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "change-key <user> <new-sequence>",
		Short: "Rebind a user to a new sequence",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout(), Verbose: rootOpts.Verbose}

			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "cannot open control plane", Err: err}
			}
			defer app.Close()

			if err := app.DNAuth.ChangeKey(cmd.Context(), args[0], args[1]); err != nil {
				formatter.Fail(err)
				return &ExitError{Code: ExitFailure, Message: "key change refused", Err: err}
			}
			if err := app.SaveCredentials(cmd.Context()); err != nil {
				return &ExitError{Code: ExitCommandError, Message: "cannot persist credential state", Err: err}
			}
			return formatter.Success(fmt.Sprintf("key changed for %s", args[0]))
		},
	}
	return cmd
}

func newDNALineageCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lineage <user>",
		Short: "Show a credential's evolutionary lineage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout(), Verbose: rootOpts.Verbose}

			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "cannot open control plane", Err: err}
			}
			defer app.Close()

			lin, err := app.DNAuth.Lineage(args[0])
			if err != nil {
				formatter.Fail(err)
				if fault.IsNotFound(err) {
					return &ExitError{Code: ExitFailure, Message: "no lineage", Err: err}
				}
				return &ExitError{Code: ExitCommandError, Message: "lineage lookup failed", Err: err}
			}

			type genView struct {
				ID        int     `json:"id"`
				ParentID  int     `json:"parent_id"`
				Fitness   float64 `json:"fitness"`
				Mutations int     `json:"mutations"`
				Active    bool    `json:"active"`
				Extinct   bool    `json:"extinct"`
			}
			type lineageView struct {
				UserID           string    `json:"user_id"`
				TotalGenerations int       `json:"total_generations"`
				TotalMutations   int       `json:"total_mutations"`
				CurrentID        int       `json:"current_id"`
				Generations      []genView `json:"generations"`
			}
			view := lineageView{
				UserID:           lin.UserID,
				TotalGenerations: lin.TotalGenerations,
				TotalMutations:   lin.TotalMutations,
				CurrentID:        lin.Current.ID,
			}
			for _, g := range lin.Generations {
				view.Generations = append(view.Generations, genView{
					ID:        g.ID,
					ParentID:  g.ParentID,
					Fitness:   g.Fitness,
					Mutations: len(g.Mutations),
					Active:    g.Active,
					Extinct:   g.Extinct,
				})
			}
			if rootOpts.Format == "json" {
				return formatter.Success(view)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "lineage for %s: %d generations, %d mutations\n",
				view.UserID, view.TotalGenerations, view.TotalMutations)
			for _, g := range view.Generations {
				marker := " "
				if g.ID == view.CurrentID {
					marker = "*"
				}
				state := "superseded"
				if g.Active {
					state = "active"
				}
				if g.Extinct {
					state = "extinct"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s gen %-3d parent %-3d fitness %.2f  %d mutations  %s\n",
					marker, g.ID, g.ParentID, g.Fitness, g.Mutations, state)
			}
			return nil
		},
	}
	return cmd
}
