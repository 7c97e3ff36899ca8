// Package logx is the module's minimal stderr logging helper. The teacher
// carries no structured-logging dependency — plain fmt/log, used terse and
// sparingly — so ambient logging here follows the same texture instead of
// reaching for a third-party logger (see DESIGN.md).
package logx

import (
	"log"
	"os"
)

var std = log.New(os.Stderr, "", log.LstdFlags)

// Printf logs one line to stderr with a timestamp, the same shape as the
// teacher's startup/diagnostic logging.
func Printf(format string, args ...any) {
	std.Printf(format, args...)
}
