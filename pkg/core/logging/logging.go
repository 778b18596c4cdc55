// Package logging configures the process-wide phuslu logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/phuslu/log"
)

// Setup replaces log.DefaultLogger. level is one of trace, debug, info, warn, error, fatal;
// anything else falls back to info. jsonOutput selects line-delimited JSON, otherwise
// a console writer is used.
func Setup(level string, jsonOutput bool) {
	SetupWriter(level, jsonOutput, os.Stderr)
}

// SetupWriter is Setup with an explicit destination.
func SetupWriter(level string, jsonOutput bool, w io.Writer) {
	var writer log.Writer = &log.IOWriter{Writer: w}
	if !jsonOutput {
		writer = &log.ConsoleWriter{Writer: w, ColorOutput: w == os.Stderr, EndWithMessage: true}
	}
	log.DefaultLogger = log.Logger{
		Level:      ParseLevel(level),
		TimeFormat: "15:04:05",
		Writer:     writer,
	}
}

// ParseLevel maps a level name to a log.Level, defaulting to info for unknown names.
func ParseLevel(s string) log.Level {
	if lvl := log.ParseLevel(strings.TrimSpace(s)); lvl >= log.TraceLevel && lvl <= log.PanicLevel {
		return lvl
	}
	return log.InfoLevel
}
