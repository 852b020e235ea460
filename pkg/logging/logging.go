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

// Package logging is the bridge's leveled logger. Libraries take a Logger;
// the stock implementation writes zerolog events, either as JSON or through
// zerolog's console writer, and five LogLevels map onto zerolog's levels
// with LevelSilent standing for zerolog.Disabled.
package logging

import (
	"strings"

	"github.com/rs/zerolog"
)

type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	// LevelSilent drops every event.
	LevelSilent
)

var zerologLevels = [...]zerolog.Level{
	LevelDebug:  zerolog.DebugLevel,
	LevelInfo:   zerolog.InfoLevel,
	LevelWarn:   zerolog.WarnLevel,
	LevelError:  zerolog.ErrorLevel,
	LevelSilent: zerolog.Disabled,
}

// zerologLevel returns the matching zerolog level; out of range is Disabled.
func (l LogLevel) zerologLevel() zerolog.Level {
	if l < 0 || int(l) >= len(zerologLevels) {
		return zerolog.Disabled
	}
	return zerologLevels[l]
}

func (l LogLevel) String() string {
	switch {
	case l == LevelSilent:
		return "silent"
	case l < LevelDebug || l > LevelSilent:
		return "unknown"
	}
	return l.zerologLevel().String()
}

// ParseLogLevel accepts zerolog's level names plus "warning" and the
// silent spellings "silent", "none", "off" and "disabled". Anything else is
// LevelInfo.
func ParseLogLevel(s string) LogLevel {
	switch s = strings.ToLower(strings.TrimSpace(s)); s {
	case "warning":
		return LevelWarn
	case "silent", "none", "off":
		return LevelSilent
	}
	zl, err := zerolog.ParseLevel(s)
	if err != nil || s == "" {
		return LevelInfo
	}
	for l, z := range zerologLevels {
		if z == zl {
			return LogLevel(l)
		}
	}
	return LevelInfo
}

// LogFormat picks the zerolog writer: the console writer for text, the raw
// event stream for JSON.
type LogFormat int

const (
	FormatText LogFormat = iota
	FormatJSON
)

func (f LogFormat) String() string {
	switch f {
	case FormatText:
		return "text"
	case FormatJSON:
		return "json"
	default:
		return "unknown"
	}
}

// ParseLogFormat returns FormatJSON for "json" and FormatText otherwise.
func ParseLogFormat(s string) LogFormat {
	if strings.EqualFold(strings.TrimSpace(s), "json") {
		return FormatJSON
	}
	return FormatText
}

// Logger is what the signing packages log through. The f-style methods take
// printf arguments; the ln forms log msg as is. Fields added with WithField
// become zerolog context fields on every later event.
type Logger interface {
	Debug(format string, args ...interface{})
	Debugln(msg string)
	Info(format string, args ...interface{})
	Infoln(msg string)
	Warn(format string, args ...interface{})
	Warnln(msg string)
	Error(format string, args ...interface{})
	Errorln(msg string)

	GetLevel() LogLevel
	// Silent reports whether debug events are dropped.
	Silent() bool

	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
}

// Default is an info-level console logger on stderr.
func Default() Logger {
	return NewLogger(false)
}

// EnsureLogger returns l, or Default() when l is nil.
func EnsureLogger(l Logger) Logger {
	if l == nil {
		return Default()
	}
	return l
}
