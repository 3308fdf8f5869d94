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

// Package config loads emk's global configuration (§6.4): built-in
// module defaults and the default log level/style, read once from
// whichever of EMK_CONFIG_DIRS or <install_dir>/config/ is found first.
// Adapted from the teacher's cmd/root.go + cmd/config/config.go
// (spf13/viper + spf13/cobra + gopkg.in/yaml.v3), generalized from a
// single project .config/cem.yaml to emk's ordered search-path model.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// Global is the set of values a global config file or EMK_CONFIG_DIRS
// entry may seed; all fields are optional and CLI options always take
// precedence over whatever Global loaded.
type Global struct {
	LogLevel    string   `mapstructure:"log" yaml:"log"`
	LogStyle    string   `mapstructure:"style" yaml:"style"`
	Threads     int      `mapstructure:"threads" yaml:"threads"`
	ModulePaths []string `mapstructure:"module_paths" yaml:"module_paths"`
}

// ConfigDirs returns the ordered list of directories to search for a
// config file: every entry in the colon-separated EMK_CONFIG_DIRS
// environment variable, followed by <install_dir>/config, or by
// <XDG config home>/emk when installDir is empty.
func ConfigDirs(installDir string) []string {
	var dirs []string
	if raw := os.Getenv("EMK_CONFIG_DIRS"); raw != "" {
		for _, d := range strings.Split(raw, ":") {
			if d != "" {
				dirs = append(dirs, d)
			}
		}
	}
	if installDir != "" {
		dirs = append(dirs, filepath.Join(installDir, "config"))
	} else {
		dirs = append(dirs, filepath.Join(xdg.ConfigHome, "emk"))
	}
	return dirs
}

// Load searches dirs in order for the first emk.yaml it can read,
// returning a Global holding only the defaults (log "info", style
// "console") if none is found (per §6.4's "config is optional").
func Load(dirs []string) (*Global, error) {
	v := viper.New()
	v.SetConfigName("emk")
	v.SetConfigType("yaml")
	for _, d := range dirs {
		v.AddConfigPath(d)
	}
	v.SetDefault("log", "info")
	v.SetDefault("style", "console")
	v.SetDefault("threads", 0)

	g := &Global{}
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); notFound {
			g.LogLevel = v.GetString("log")
			g.LogStyle = v.GetString("style")
			return g, nil
		}
		return nil, err
	}
	if err := v.Unmarshal(g); err != nil {
		return nil, err
	}
	return g, nil
}
