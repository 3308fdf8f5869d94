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

package cmd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyArgsSplitsOptionsTargetsAndClean(t *testing.T) {
	options, targets, clean := classifyArgs([]string{"threads=4", "foo", "log=debug", "clean"})
	require.Equal(t, map[string]string{"threads": "4", "log": "debug"}, options)
	require.Equal(t, []string{"foo"}, targets)
	require.True(t, clean)
}

func TestClassifyArgsExplicitTargetEscapesEquals(t *testing.T) {
	options, targets, clean := classifyArgs([]string{"explicit_target=a=b.txt"})
	require.Empty(t, options)
	require.Equal(t, []string{"a=b.txt"}, targets)
	require.False(t, clean)
}

func TestClassifyArgsBareTargetWithNoEquals(t *testing.T) {
	_, targets, _ := classifyArgs([]string{"all"})
	require.Equal(t, []string{"all"}, targets)
}

func TestFirstNonEmptyPicksFirstSetValue(t *testing.T) {
	require.Equal(t, "b", firstNonEmpty("", "b", "c"))
	require.Equal(t, "", firstNonEmpty("", "", ""))
}
