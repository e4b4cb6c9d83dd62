package config

import (
	"fmt"
	"os"

	apperrors "github.com/baskuit/engine/internal/platform/errors"
)

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// Exit reports err on stderr and exits with the status its code maps to:
// 1 for failures the harness found, 2 for faults in the harness itself.
// A nil err exits 0.
func Exit(err error) {
	code := apperrors.CodeOf(err).ExitCode()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(code)
}
