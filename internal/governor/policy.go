package governor

import "context"

// Outcome is what the decision table prescribes for one evaluation.
type Outcome int

const (
	// OutcomeApprove admits the artifact without interaction.
	OutcomeApprove Outcome = iota

	// OutcomeApproveLogged admits the artifact and flags the grant for
	// logging emphasis.
	OutcomeApproveLogged

	// OutcomePrompt asks the user; the default on timeout or cancellation
	// is decline.
	OutcomePrompt

	// OutcomeDecline refuses the artifact.
	OutcomeDecline
)

// Prompt is what an interactive user is asked to decide.
type Prompt struct {
	Name        string
	Description string
	Threat      ThreatLevel
	CapsWanted  string
}

// Prompter asks a user to approve or decline. Implementations may block;
// the context carries the prompt timeout, and expiry or cancellation must
// surface as an error (which the Governor treats as decline).
type Prompter interface {
	Ask(ctx context.Context, p Prompt) (approved bool, err error)
}

// decide is the pure decision policy over (threat, strict, interactive).
//
//	threat    | strict | interactive | outcome
//	NONE/LOW  | any    | any         | approve
//	MEDIUM    | false  | false       | approve with logging
//	MEDIUM    | false  | true        | prompt
//	MEDIUM    | true   | any         | decline
//	HIGH      | false  | true        | prompt (default decline)
//	HIGH      | other  | -           | decline
//	CRITICAL  | -      | -           | decline
func decide(threat ThreatLevel, strict, interactive bool) Outcome {
	switch {
	case threat <= ThreatLow:
		return OutcomeApprove
	case threat == ThreatMedium && !strict && !interactive:
		return OutcomeApproveLogged
	case threat == ThreatMedium && !strict && interactive:
		return OutcomePrompt
	case threat == ThreatMedium:
		return OutcomeDecline
	case threat == ThreatHigh && !strict && interactive:
		return OutcomePrompt
	default:
		return OutcomeDecline
	}
}
