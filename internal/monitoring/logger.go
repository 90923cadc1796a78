// Package monitoring holds the diagnostic logger shared by the helper packages.
package monitoring

import "log"

// Logf is the package-level diagnostic logger used by taskdb, workflow and
// wfplot. It defaults to log.Printf; SetLogger swaps or mutes it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Mute silences Logf and returns a function restoring the previous logger.
// Intended for tests and for CLI commands that write results to stdout.
func Mute() (restore func()) {
	prev := Logf
	SetLogger(nil)
	return func() { Logf = prev }
}
