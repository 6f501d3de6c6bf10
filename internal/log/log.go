// Package log provides the small timestamp-prefixed stderr logger shared
// by the four CLI commands, standing in for the original's tc_write_log.
package log

import (
	"log"
	"os"
)

var std = log.New(os.Stderr, "", log.LstdFlags)

// Info logs an informational line.
func Info(v ...interface{}) {
	std.Println(v...)
}

// Infof logs a formatted informational line.
func Infof(format string, v ...interface{}) {
	std.Printf(format, v...)
}

// Warnf logs a formatted warning line.
func Warnf(format string, v ...interface{}) {
	std.Printf("warning: "+format, v...)
}
