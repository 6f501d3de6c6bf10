// Package clierr holds the shared fatal-error helper used by every CLI
// command.
package clierr

import (
	"fmt"
	"os"
)

// Fatal prints a to stderr and exits with status 1.
func Fatal(a ...interface{}) {
	fmt.Fprintln(os.Stderr, a...)
	os.Exit(1)
}
