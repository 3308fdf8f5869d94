/*
Copyright © 2026 The emk authors

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package logging adapts the teacher's single-global-Logger style to
// emk's five-level, four-style log model.
package logging

import (
	"fmt"
	"os"
	"sync"

	"github.com/pterm/pterm"
)

func init() {
	pterm.Info = *pterm.Info.WithPrefix(pterm.Prefix{
		Text:  "INFO",
		Style: pterm.NewStyle(pterm.FgBlue),
	}).WithMessageStyle(&pterm.ThemeDefault.DefaultText)

	pterm.Warning = *pterm.Warning.WithPrefix(pterm.Prefix{
		Text:  "WARNING",
		Style: pterm.NewStyle(pterm.FgYellow),
	}).WithMessageStyle(&pterm.ThemeDefault.DefaultText)

	pterm.Error = *pterm.Error.WithPrefix(pterm.Prefix{
		Text:  "ERROR",
		Style: pterm.NewStyle(pterm.FgRed),
	}).WithMessageStyle(&pterm.ThemeDefault.DefaultText)

	pterm.Debug = *pterm.Debug.WithPrefix(pterm.Prefix{
		Text:  "DEBUG",
		Style: pterm.NewStyle(pterm.FgCyan),
	}).WithMessageStyle(&pterm.ThemeDefault.DefaultText)
}

// Level is emk's five-level severity scale (§6.1).
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
	LevelCritical
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	case LevelCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParseLevel maps a CLI/config log= value to a Level, defaulting to Info
// on an unrecognized name.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "warning":
		return LevelWarning
	case "error":
		return LevelError
	case "critical":
		return LevelCritical
	default:
		return LevelInfo
	}
}

// Style selects how a rendered log line is adorned (§6.1's four style
// modes).
type Style int

const (
	StyleNone Style = iota
	StyleConsole
	StyleHTML
	StylePassthrough
)

// ParseStyle maps a CLI/config style= value to a Style, defaulting to
// StyleConsole.
func ParseStyle(s string) Style {
	switch s {
	case "no":
		return StyleNone
	case "html":
		return StyleHTML
	case "passthrough":
		return StylePassthrough
	default:
		return StyleConsole
	}
}

// styleMarkerOpen/styleMarkerClose are the internal markers a message may
// carry (\x00\x01tag\x01\x00) so a StylePassthrough consumer can apply
// its own rendering instead of emk's built-in stylers.
const (
	styleMarkerOpen  = "\x00\x01"
	styleMarkerClose = "\x01\x00"
)

// Tag wraps text in emk's internal style markers for the named level, to
// be rendered later by whichever Style the active Logger uses.
func Tag(level Level, text string) string {
	return styleMarkerOpen + level.String() + styleMarkerClose + text
}

// Logger is emk's single global logger: a mutex-protected level/style
// pair, following the teacher's single-global-Logger shape rather than a
// per-package logger.
type Logger struct {
	mu    sync.RWMutex
	level Level
	style Style

	currentScope string
	currentRule  string
}

var globalLogger = &Logger{level: LevelInfo, style: StyleConsole}

// GetLogger returns the global logger instance.
func GetLogger() *Logger {
	return globalLogger
}

// SetLevel sets the minimum level that will be emitted.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetStyle sets how emitted lines are adorned.
func (l *Logger) SetStyle(style Style) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.style = style
}

// SetCurrentRule/SetCurrentScope record on the logger the rule or scope
// currently executing. The recorded values are stored only; log lines are
// rendered without them.
func (l *Logger) SetCurrentRule(declaration string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.currentRule = declaration
}

func (l *Logger) SetCurrentScope(dir string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.currentScope = dir
}

func (l *Logger) Debug(format string, args ...any)    { l.log(LevelDebug, format, args...) }
func (l *Logger) Info(format string, args ...any)     { l.log(LevelInfo, format, args...) }
func (l *Logger) Warning(format string, args ...any)  { l.log(LevelWarning, format, args...) }
func (l *Logger) Error(format string, args ...any)    { l.log(LevelError, format, args...) }
func (l *Logger) Critical(format string, args ...any) { l.log(LevelCritical, format, args...) }

func (l *Logger) log(level Level, format string, args ...any) {
	l.mu.RLock()
	minLevel := l.level
	style := l.style
	l.mu.RUnlock()

	if level < minLevel {
		return
	}
	message := fmt.Sprintf(format, args...)
	render(level, style, message)
}

func render(level Level, style Style, message string) {
	switch style {
	case StyleNone:
		fmt.Fprintln(os.Stdout, message)
	case StyleHTML:
		fmt.Fprintf(os.Stdout, "<p class=\"emk-%s\"><span>%s</span></p>\n", level, message)
	case StylePassthrough:
		fmt.Fprintln(os.Stdout, Tag(level, message))
	default:
		renderConsole(level, message)
	}
}

func renderConsole(level Level, message string) {
	switch level {
	case LevelDebug:
		pterm.Debug.Println(message)
	case LevelInfo:
		pterm.Info.Println(message)
	case LevelWarning:
		pterm.Warning.Println(message)
	case LevelError, LevelCritical:
		pterm.Error.Println(message)
	}
}

// Convenience functions operating on the global logger.
func Debug(format string, args ...any)    { globalLogger.Debug(format, args...) }
func Info(format string, args ...any)     { globalLogger.Info(format, args...) }
func Warning(format string, args ...any)  { globalLogger.Warning(format, args...) }
func Error(format string, args ...any)    { globalLogger.Error(format, args...) }
func Critical(format string, args ...any) { globalLogger.Critical(format, args...) }
func SetLevel(level Level)                { globalLogger.SetLevel(level) }
func SetStyle(style Style)                { globalLogger.SetStyle(style) }
