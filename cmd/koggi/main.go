// Package main is the entry point for koggi.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(reportExit(err, os.Stderr))
	}
}

// reportExit converts an Execute error into a process exit code.
// Operation failures arrive as *exitError and were already logged where
// they happened; anything else (usage errors, contract violations) has
// not been printed yet and must not vanish silently.
func reportExit(err error, w io.Writer) int {
	var xerr *exitError
	if errors.As(err, &xerr) {
		return xerr.code
	}
	fmt.Fprintln(w, "Error:", err)
	return 1
}
