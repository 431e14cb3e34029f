// Copyright (C) 2025 Tidegate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging provides structured logging for Tidegate components.
//
// The package is a thin layer over the standard library slog package with
// two additions: dual-destination output (stderr plus an optional rotating
// log file) and a small Level/Config surface so services configure logging
// from the environment without touching slog directly.
//
// # Basic Usage
//
//	logger := logging.Default()
//	logger.Info("starting gateway", "port", port)
//
// # File Logging
//
// To enable rotating file logging alongside stderr:
//
//	logger := logging.New(logging.Config{
//	    Level:   logging.LevelInfo,
//	    LogDir:  "/var/log/tidegate",
//	    Service: "gateway",
//	    JSON:    true,
//	})
//	defer logger.Close()
//
// File output is always JSON and rotates at 50MB via lumberjack, keeping
// five backups.
//
// # Thread Safety
//
// Logger is safe for concurrent use.
//
// # Security Considerations
//
// This package does NOT automatically redact sensitive data. Callers must
// ensure prompts containing secrets are not logged verbatim.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// =============================================================================
// Log Levels
// =============================================================================

// Level represents log severity, ordered Debug < Info < Warn < Error.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the human-readable name of the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a config string to a Level. Unrecognized values fall back
// to LevelInfo.
func ParseLevel(s string) Level {
	switch s {
	case "debug", "DEBUG":
		return LevelDebug
	case "warn", "WARN":
		return LevelWarn
	case "error", "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// =============================================================================
// Configuration
// =============================================================================

// Config configures Logger behavior. The zero value logs Info+ to stderr in
// text format.
type Config struct {
	// Level sets the minimum log level. Messages below it are discarded.
	Level Level

	// LogDir enables rotating file logging in the given directory. The
	// file is named "{Service}.log" and is always JSON. The directory is
	// created with 0750 permissions if missing.
	LogDir string

	// Service identifies the component; attached to every entry as the
	// "service" attribute and used for the log file name.
	Service string

	// JSON switches stderr output from text to JSON.
	JSON bool

	// Quiet disables stderr output entirely. Useful when only the file
	// output is monitored.
	Quiet bool
}

// =============================================================================
// Logger
// =============================================================================

// Logger wraps slog.Logger with ownership of the optional file sink.
type Logger struct {
	*slog.Logger

	mu   sync.Mutex
	file io.Closer
}

// Default returns a stderr-only logger at Info level.
func Default() *Logger {
	return New(Config{})
}

// New builds a Logger from config. Failures to open the log directory are
// not fatal; the logger falls back to stderr-only operation.
func New(cfg Config) *Logger {
	level := cfg.Level.toSlogLevel()
	opts := &slog.HandlerOptions{Level: level}

	var writers []io.Writer
	logger := &Logger{}

	if !cfg.Quiet {
		writers = append(writers, os.Stderr)
	}
	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o750); err == nil {
			service := cfg.Service
			if service == "" {
				service = "tidegate"
			}
			rotator := &lumberjack.Logger{
				Filename:   filepath.Join(cfg.LogDir, service+".log"),
				MaxSize:    50, // megabytes
				MaxBackups: 5,
				Compress:   true,
			}
			logger.file = rotator
			// File output is meant for machines. Rather than running
			// two handlers with different formats, promote everything
			// to JSON once a file sink exists.
			cfg.JSON = true
			writers = append(writers, rotator)
		}
	}
	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}

	out := io.MultiWriter(writers...)
	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	sl := slog.New(handler)
	if cfg.Service != "" {
		sl = sl.With("service", cfg.Service)
	}
	logger.Logger = sl
	return logger
}

// Close flushes and closes the file sink, if any. Safe to call more than
// once.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// SetAsDefault installs this logger as the process-wide slog default so
// package-level slog calls share the same sinks.
func (l *Logger) SetAsDefault() {
	slog.SetDefault(l.Logger)
}
