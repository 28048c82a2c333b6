// Package logging builds the component loggers used across noticecal:
// stdlib log.Loggers with a bracketed component prefix. When a log file is
// configured, output is teed into a size-rotated file via lumberjack.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dalbodeule/noticecal/internal/config"
)

// Factory hands out per-component loggers sharing one output.
type Factory struct {
	out io.Writer
}

// NewFactory builds a logger factory from the logging configuration.
func NewFactory(cfg config.LoggingConfig) *Factory {
	var out io.Writer = os.Stderr

	if cfg.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		out = io.MultiWriter(os.Stderr, rotated)
	}

	return &Factory{out: out}
}

// Logger returns a logger for the named component, e.g. "[sync] ".
func (f *Factory) Logger(component string) *log.Logger {
	return log.New(f.out, fmt.Sprintf("[%s] ", component), log.LstdFlags)
}

// Discard returns a logger that drops everything, for tests.
func Discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}
