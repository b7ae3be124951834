// Package monitoring carries the process-wide diagnostic loggers.
//
// Cycle and scan chatter is useful on a headless scale host but noisy in
// tests, so packages log through these indirections instead of calling
// log.Printf directly.
package monitoring

import (
	"log"
	"os"
)

// Logf logs operational events (cycle outcomes, store writes, scanner
// state). Defaults to log.Printf; replace with SetLogger.
var Logf = log.Printf

// Debugf logs high-volume diagnostics such as per-frame scan traffic.
// Muted unless SCALE_DEBUG is set when the process starts; replaceable
// with SetDebugLogger.
var Debugf = defaultDebugf()

func defaultDebugf() func(format string, v ...any) {
	if os.Getenv("SCALE_DEBUG") != "" {
		return log.Printf
	}
	return func(string, ...any) {}
}

// SetLogger replaces the operational logger. Passing nil mutes it.
func SetLogger(f func(format string, v ...any)) {
	if f == nil {
		Logf = func(string, ...any) {}
		return
	}
	Logf = f
}

// SetDebugLogger replaces the debug logger. Passing nil mutes it.
func SetDebugLogger(f func(format string, v ...any)) {
	if f == nil {
		Debugf = func(string, ...any) {}
		return
	}
	Debugf = f
}
