// Package monitoring provides the package-level diagnostic logger shared by
// the synthesis pipeline. Long-running stages (deposition, previews, run
// recording) report progress through Logf so library consumers can redirect
// or silence diagnostics without threading a logger through every call.
package monitoring

import "log"

// Logf is the diagnostic logger. It defaults to log.Printf and may be
// replaced with SetLogger; tests typically mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Scoped returns a logger that prepends a stage prefix to every message,
// writing through whatever Logf is at call time.
func Scoped(prefix string) func(format string, v ...interface{}) {
	return func(format string, v ...interface{}) {
		Logf(prefix+": "+format, v...)
	}
}

var debugEnabled bool

// SetDebug toggles per-particle and per-step diagnostics. Off by default;
// the synthesis stages emit only run-level summaries unless enabled.
func SetDebug(enabled bool) {
	debugEnabled = enabled
}

// Debugf logs through Logf only when debug diagnostics are enabled.
func Debugf(format string, v ...interface{}) {
	if debugEnabled {
		Logf(format, v...)
	}
}
