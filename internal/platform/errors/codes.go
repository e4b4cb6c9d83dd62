// Package errors provides the machine-readable error taxonomy shared by the
// harness commands.
package errors

import stderrors "errors"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Decoding errors
	CodeTruncatedBuffer Code = "TRUNCATED_BUFFER"
	CodeMalformedLog    Code = "MALFORMED_LOG"

	// Failures found in the engine
	CodeChoiceSynchronization Code = "CHOICE_SYNCHRONIZATION"
	CodeDivergence            Code = "DIVERGENCE"
	CodeEngineCrash           Code = "ENGINE_CRASH"

	// Collaborator errors
	CodeSubprocess Code = "SUBPROCESS"
	CodeInputLog   Code = "INPUT_LOG"
)

// Coded is implemented by errors that carry a Code.
type Coded interface {
	ErrorCode() Code
}

// CodeOf returns the code of the first coded error in err's chain, or
// CodeUnknown.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var coded Coded
	if stderrors.As(err, &coded) {
		return coded.ErrorCode()
	}
	return CodeUnknown
}

// ExitCode maps a code to the process exit status used by the commands.
// Failures found in the engine exit 1 like any test failure; harness
// faults exit 2.
func (c Code) ExitCode() int {
	switch c {
	case "":
		return 0
	case CodeDivergence, CodeChoiceSynchronization, CodeEngineCrash:
		return 1
	default:
		return 2
	}
}
