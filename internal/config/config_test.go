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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigDirsReadsEMKConfigDirsEnv(t *testing.T) {
	t.Setenv("EMK_CONFIG_DIRS", "/etc/emk:/opt/emk/config")

	dirs := ConfigDirs("/usr/local/emk")
	require.Equal(t, []string{"/etc/emk", "/opt/emk/config", filepath.Join("/usr/local/emk", "config")}, dirs)
}

func TestConfigDirsFallsBackToXDGWhenInstallDirEmpty(t *testing.T) {
	t.Setenv("EMK_CONFIG_DIRS", "")

	dirs := ConfigDirs("")
	require.Len(t, dirs, 1)
	require.Contains(t, dirs[0], "emk")
}

func TestLoadReturnsDefaultsWhenNoConfigFileFound(t *testing.T) {
	t.Setenv("EMK_CONFIG_DIRS", "")
	g, err := Load([]string{t.TempDir()})
	require.NoError(t, err)
	require.Equal(t, "info", g.LogLevel)
	require.Equal(t, "console", g.LogStyle)
}

func TestLoadReadsYAMLFile(t *testing.T) {
	dir := t.TempDir()
	content := "log: debug\nstyle: html\nthreads: 4\nmodule_paths:\n  - utils\n  - revision\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "emk.yaml"), []byte(content), 0o644))

	g, err := Load([]string{dir})
	require.NoError(t, err)
	require.Equal(t, "debug", g.LogLevel)
	require.Equal(t, "html", g.LogStyle)
	require.Equal(t, 4, g.Threads)
	require.Equal(t, []string{"utils", "revision"}, g.ModulePaths)
}
