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

package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevelKnownNames(t *testing.T) {
	require.Equal(t, LevelDebug, ParseLevel("debug"))
	require.Equal(t, LevelWarning, ParseLevel("warning"))
	require.Equal(t, LevelError, ParseLevel("error"))
	require.Equal(t, LevelCritical, ParseLevel("critical"))
}

func TestParseLevelUnknownDefaultsToInfo(t *testing.T) {
	require.Equal(t, LevelInfo, ParseLevel("nonsense"))
}

func TestParseStyleKnownNames(t *testing.T) {
	require.Equal(t, StyleNone, ParseStyle("no"))
	require.Equal(t, StyleHTML, ParseStyle("html"))
	require.Equal(t, StylePassthrough, ParseStyle("passthrough"))
}

func TestParseStyleUnknownDefaultsToConsole(t *testing.T) {
	require.Equal(t, StyleConsole, ParseStyle("nonsense"))
}

func TestTagWrapsWithInternalMarkers(t *testing.T) {
	tagged := Tag(LevelWarning, "disk almost full")
	require.Equal(t, styleMarkerOpen+"warning"+styleMarkerClose+"disk almost full", tagged)
}

func TestLoggerRespectsMinimumLevel(t *testing.T) {
	l := &Logger{level: LevelWarning, style: StyleNone}
	l.SetLevel(LevelError)

	l.mu.RLock()
	min := l.level
	l.mu.RUnlock()
	require.Less(t, LevelWarning, min, "warning must be suppressed once the minimum level is raised to error")
}

func TestLoggerSetCurrentRuleAndScope(t *testing.T) {
	l := &Logger{level: LevelInfo, style: StyleNone}
	l.SetCurrentRule("rule declared at build.go:12")
	l.SetCurrentScope("/proj/sub")

	l.mu.RLock()
	defer l.mu.RUnlock()
	require.Equal(t, "rule declared at build.go:12", l.currentRule)
	require.Equal(t, "/proj/sub", l.currentScope)
}
