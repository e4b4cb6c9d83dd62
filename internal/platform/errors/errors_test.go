package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestCodeOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want Code
	}{
		{name: "nil", err: nil, want: ""},
		{name: "plain", err: stderrors.New("boom"), want: CodeUnknown},
		{name: "direct", err: New(CodeDivergence, "log mismatch"), want: CodeDivergence},
		{name: "wrapped", err: fmt.Errorf("round 3: %w", New(CodeTruncatedBuffer, "short")), want: CodeTruncatedBuffer},
		{name: "outermost wins", err: Wrap(CodeSubprocess, "bridge", New(CodeInputLog, "bad")), want: CodeSubprocess},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := CodeOf(tt.err); got != tt.want {
				t.Fatalf("CodeOf = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := map[Code]int{
		"":                        0,
		CodeDivergence:            1,
		CodeChoiceSynchronization: 1,
		CodeEngineCrash:           1,
		CodeSubprocess:            2,
		CodeMalformedLog:          2,
		CodeUnknown:               2,
	}
	for code, want := range tests {
		if got := code.ExitCode(); got != want {
			t.Fatalf("%q exit code = %d, want %d", code, got, want)
		}
	}
}

func TestErrorChain(t *testing.T) {
	t.Parallel()

	cause := stderrors.New("pipe closed")
	err := Wrap(CodeSubprocess, "read reply", cause)
	if err.Error() != "read reply: pipe closed" {
		t.Fatalf("message = %q", err.Error())
	}
	if !stderrors.Is(err, cause) {
		t.Fatal("expected cause in chain")
	}
	if !stderrors.Is(fmt.Errorf("ctx: %w", err), New(CodeSubprocess, "")) {
		t.Fatal("expected match by code")
	}
	if stderrors.Is(err, New(CodeDivergence, "")) {
		t.Fatal("unexpected match for different code")
	}
}
