package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/phantomos/phantom/internal/fault"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // successful execution
	ExitFailure      = 1 // policy outcome: declined, blocked, auth failed
	ExitCommandError = 2 // command error: bad flags, missing files, broken store
)

// ExitError carries a specific exit code out of a command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// GetExitCode extracts the exit code from an error. Non-ExitError errors
// are command errors.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

// OutputFormatter renders command results as JSON or text.
type OutputFormatter struct {
	Format  string
	Writer  io.Writer
	Verbose bool
}

// Response is the standard JSON envelope for command output.
type Response struct {
	Status string   `json:"status"` // "ok" or "error"
	Data   any      `json:"data,omitempty"`
	Error  *RespErr `json:"error,omitempty"`
}

// RespErr is the error payload of a JSON response.
type RespErr struct {
	Kind    string `json:"kind"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Remedy  string `json:"remedy,omitempty"`
}

// Success emits data under the configured format. Text mode expects data
// to carry its own String rendering.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(Response{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Fail emits an error under the configured format. Fault kind, code, and
// remedy survive into the JSON envelope.
func (f *OutputFormatter) Fail(err error) error {
	re := &RespErr{Kind: "ERROR", Message: err.Error()}
	var flt *fault.Fault
	if errors.As(err, &flt) {
		re.Kind = string(flt.Kind)
		re.Code = flt.Code
		re.Message = flt.Message
		re.Remedy = flt.Remedy
	}
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(Response{Status: "error", Error: re})
	}
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", re.Kind, re.Message)
	if re.Remedy != "" {
		fmt.Fprintf(f.Writer, "Remedy: %s\n", re.Remedy)
	}
	return nil
}

// VerboseLog prints a diagnostic line in verbose text mode only.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose || f.Format == "json" {
		return
	}
	fmt.Fprintf(f.Writer, format+"\n", args...)
}
