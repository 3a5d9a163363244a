package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/himanishpuri/ReelDNA/pkg/reeldna"
)

func main() {
	cmd := newRootCommand()
	err := cmd.Execute()
	if err == nil {
		return
	}
	if !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
	}
	os.Exit(exitCode(err))
}

// exitCode is non-zero only for input validation failures and usage errors.
// Everything else has already been logged and reported.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, reeldna.ErrDurationUnavailable),
		errors.Is(err, reeldna.ErrNoReferenceSamples),
		errors.Is(err, reeldna.ErrNoRecordedSamples):
		return 1
	case errors.As(err, new(*usageError)):
		return 2
	default:
		return 0
	}
}

// usageError marks bad arguments or configuration.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

func printBanner() {
	banner := `
 ____           _ ____  _   _    _
|  _ \ ___  ___| |  _ \| \ | |  / \
| |_) / _ \/ _ \ | | | |  \| | / _ \
|  _ <  __/  __/ | |_| | |\  |/ ___ \
|_| \_\___|\___|_|____/|_| \_/_/   \_\

       Video Piracy Detection CLI
`
	fmt.Println(banner)
}
