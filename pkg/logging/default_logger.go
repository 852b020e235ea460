// Copyright 2025 The Sigstore Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logging

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var _ Logger = (*DefaultLogger)(nil)

// LoggerOptions configures a DefaultLogger instance.
type LoggerOptions struct {
	// Level sets the minimum log level to output.
	Level LogLevel
	// Format selects the output format (FormatText or FormatJSON).
	Format LogFormat
	// Output sets the io.Writer for log output. Defaults to os.Stderr.
	Output io.Writer
	// TimeFormat sets the timestamp layout for text logs. Empty disables timestamps.
	TimeFormat string
	// ShowLevel controls whether text output carries a level marker.
	ShowLevel bool
}

// DefaultLoggerOptions returns the default logger options.
func DefaultLoggerOptions() LoggerOptions {
	return LoggerOptions{
		Level:  LevelInfo,
		Format: FormatText,
		Output: os.Stderr,
	}
}

// DefaultLogger is a zerolog-backed Logger.
type DefaultLogger struct {
	mu     sync.Mutex
	level  LogLevel
	opts   LoggerOptions
	fields map[string]interface{}
	zl     zerolog.Logger
}

// NewLogger creates a text logger on stderr; verbose selects LevelDebug.
func NewLogger(verbose bool) *DefaultLogger {
	opts := DefaultLoggerOptions()
	if verbose {
		opts.Level = LevelDebug
	}
	return NewLoggerWithOptions(opts)
}

// NewLoggerWithOptions creates a new DefaultLogger with the specified options.
func NewLoggerWithOptions(opts LoggerOptions) *DefaultLogger {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	return &DefaultLogger{
		level: opts.Level,
		opts:  opts,
		zl:    newZerolog(opts, nil),
	}
}

func newZerolog(opts LoggerOptions, fields map[string]interface{}) zerolog.Logger {
	w := opts.Output
	if opts.Format == FormatText {
		cw := zerolog.ConsoleWriter{Out: opts.Output, NoColor: true, TimeFormat: opts.TimeFormat}
		if opts.TimeFormat == "" {
			cw.PartsExclude = append(cw.PartsExclude, zerolog.TimestampFieldName)
		}
		if !opts.ShowLevel {
			cw.PartsExclude = append(cw.PartsExclude, zerolog.LevelFieldName)
		}
		w = cw
	}

	ctx := zerolog.New(w).With().Timestamp()
	if len(fields) > 0 {
		ctx = ctx.Fields(fields)
	}
	return ctx.Logger()
}

// WithFields returns a new Logger with the given fields added to all entries.
// The original logger is not modified.
func (l *DefaultLogger) WithFields(fields map[string]interface{}) Logger {
	l.mu.Lock()
	defer l.mu.Unlock()

	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}

	return &DefaultLogger{
		level:  l.level,
		opts:   l.opts,
		fields: merged,
		zl:     newZerolog(l.opts, merged),
	}
}

// WithField returns a new Logger with the given field added to all entries.
func (l *DefaultLogger) WithField(key string, value interface{}) Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// SetLevel sets the minimum log level.
func (l *DefaultLogger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current log level.
func (l *DefaultLogger) GetLevel() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// Silent returns true if the logger suppresses debug output.
func (l *DefaultLogger) Silent() bool {
	return l.GetLevel() > LevelDebug
}

// IsLevelEnabled returns true if the given level would produce output.
func (l *DefaultLogger) IsLevelEnabled(level LogLevel) bool {
	return level != LevelSilent && level >= l.GetLevel()
}

func (l *DefaultLogger) log(level LogLevel, format string, args ...interface{}) {
	if !l.IsLevelEnabled(level) {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.zl.WithLevel(level.zerologLevel()).Msgf(format, args...)
}

// Debug logs a message at debug level.
func (l *DefaultLogger) Debug(format string, args ...interface{}) {
	l.log(LevelDebug, format, args...)
}

// Debugln logs a line at debug level.
func (l *DefaultLogger) Debugln(msg string) {
	l.log(LevelDebug, "%s", msg)
}

// Info logs a message at info level.
func (l *DefaultLogger) Info(format string, args ...interface{}) {
	l.log(LevelInfo, format, args...)
}

// Infoln logs a line at info level.
func (l *DefaultLogger) Infoln(msg string) {
	l.log(LevelInfo, "%s", msg)
}

// Warn logs a message at warn level.
func (l *DefaultLogger) Warn(format string, args ...interface{}) {
	l.log(LevelWarn, format, args...)
}

// Warnln logs a line at warn level.
func (l *DefaultLogger) Warnln(msg string) {
	l.log(LevelWarn, "%s", msg)
}

// Error logs a message at error level.
func (l *DefaultLogger) Error(format string, args ...interface{}) {
	l.log(LevelError, format, args...)
}

// Errorln logs a line at error level.
func (l *DefaultLogger) Errorln(msg string) {
	l.log(LevelError, "%s", msg)
}
