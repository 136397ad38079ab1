// Package diagnostic is the "log and continue" stream named throughout the
// error handling design: adapter load/parse failures, scanner I/O errors,
// and scheduler hook failures are warnings here, never propagated errors.
package diagnostic

import (
	"fmt"
	"log"
	"os"
)

// Logger is the process-wide diagnostic stream. Swappable in tests.
var Logger = log.New(os.Stderr, "", log.LstdFlags)

// Warn logs a recoverable condition per the error taxonomy: the caller
// continues regardless of what Warn does.
func Warn(format string, args ...any) {
	Logger.Print("warning: " + fmt.Sprintf(format, args...))
}
