// Package logger provides the process-wide structured logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/moby/term"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// Log is the global logger instance. It discards everything until Init is called,
	// so library code stays quiet when embedded in tests.
	Log = zerolog.Nop()

	// fileWriter is the rotating file output, nil when file logging is disabled.
	fileWriter *lumberjack.Logger
)

// FileConfig configures rotating file output.
type FileConfig struct {
	Dir        string
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
}

func (c FileConfig) maxSizeMB() int {
	if c.MaxSizeMB <= 0 {
		return 20
	}
	return c.MaxSizeMB
}

func (c FileConfig) maxAgeDays() int {
	if c.MaxAgeDays <= 0 {
		return 7
	}
	return c.MaxAgeDays
}

func (c FileConfig) maxBackups() int {
	if c.MaxBackups <= 0 {
		return 3
	}
	return c.MaxBackups
}

// Init initializes console-only logging on stderr.
func Init(debug bool) {
	Log = zerolog.New(consoleWriter(os.Stderr)).
		Level(level(debug)).
		With().
		Timestamp().
		Logger()
}

// InitWithFile initializes console logging plus a rotating JSON log file in cfg.Dir.
// An empty Dir behaves like Init.
func InitWithFile(debug bool, cfg FileConfig) error {
	if cfg.Dir == "" {
		Init(debug)
		return nil
	}

	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	fileWriter = &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Dir, "dockerfixture.log"),
		MaxSize:    cfg.maxSizeMB(),
		MaxAge:     cfg.maxAgeDays(),
		MaxBackups: cfg.maxBackups(),
		LocalTime:  true,
	}

	Log = zerolog.New(io.MultiWriter(consoleWriter(os.Stderr), fileWriter)).
		Level(level(debug)).
		With().
		Timestamp().
		Logger()
	return nil
}

// SetOutput redirects the logger to w. Intended for tests.
func SetOutput(w io.Writer, debug bool) {
	Log = zerolog.New(w).Level(level(debug))
}

// Close flushes and closes the log file if one is open.
func Close() error {
	if fileWriter == nil {
		return nil
	}
	err := fileWriter.Close()
	fileWriter = nil
	return err
}

func consoleWriter(out *os.File) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.Kitchen,
		NoColor:    !term.IsTerminal(out.Fd()),
	}
}

func level(debug bool) zerolog.Level {
	if debug {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

// Debug starts a debug-level event.
func Debug() *zerolog.Event { return Log.Debug() }

// Info starts an info-level event.
func Info() *zerolog.Event { return Log.Info() }

// Warn starts a warn-level event.
func Warn() *zerolog.Event { return Log.Warn() }

// Error starts an error-level event.
func Error() *zerolog.Event { return Log.Error() }
