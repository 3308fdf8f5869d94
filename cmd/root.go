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
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"emk.build/emk/engine"
	"emk.build/emk/internal/config"
	"emk.build/emk/internal/logging"
)

// rootCmd is emk's single command: unlike a subcommand tree, its
// positional arguments are emk's own "key=value or target name"
// language (§6.1), classified the same way the original EMK_Base did.
var rootCmd = &cobra.Command{
	Use:   "emk [options] [targets...]",
	Short: "A hierarchical, incremental build tool",
	Long: `emk builds projects by recursively loading build descriptions from
each visited directory, resolving a dependency graph of rules, and running
only the rules whose inputs have changed since the last build.

Positional arguments are either key=value options (threads=4, log=debug)
or explicit build targets. A bare "clean" switches to cleaning mode.`,
	Args: cobra.ArbitraryArgs,
	RunE: runBuild,
}

// Execute runs the root command, exiting with status 1 if it returns an
// error. Called once by main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().String("config", "", "install config directory (default: EMK_CONFIG_DIRS or XDG config dir)")
	rootCmd.PersistentFlags().IntP("threads", "j", 0, "number of worker goroutines (default: number of CPUs)")
	rootCmd.PersistentFlags().String("log", "", "minimum log level: debug|info|warning|error|critical")
	rootCmd.PersistentFlags().String("style", "", "log render style: no|console|html|passthrough")
	rootCmd.PersistentFlags().Bool("trace", false, "record which rules ran and why")
	rootCmd.PersistentFlags().Bool("trace-unchanged", false, "include unchanged rules in --trace output")
	rootCmd.PersistentFlags().Bool("watch", false, "rebuild automatically when a visited file changes")
	viper.BindPFlag("installDir", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("threads", rootCmd.PersistentFlags().Lookup("threads"))
	viper.BindPFlag("log", rootCmd.PersistentFlags().Lookup("log"))
	viper.BindPFlag("style", rootCmd.PersistentFlags().Lookup("style"))
	viper.BindPFlag("trace", rootCmd.PersistentFlags().Lookup("trace"))
	viper.BindPFlag("traceUnchanged", rootCmd.PersistentFlags().Lookup("trace-unchanged"))
	viper.BindPFlag("watch", rootCmd.PersistentFlags().Lookup("watch"))
}

var globalConfig *config.Global

func initConfig() {
	installDir := viper.GetString("installDir")
	g, err := config.Load(config.ConfigDirs(installDir))
	if err != nil {
		pterm.Warning.Printf("could not load global config: %v\n", err)
		g = &config.Global{LogLevel: "info", LogStyle: "console"}
	}
	globalConfig = g
}

// classifyArgs mirrors the original EMK_Base.__init__'s positional-argument
// handling: "key=value" becomes an option, "clean" (alone) switches to
// cleaning mode, everything else is an explicit target. explicit_target=
// is the documented escape hatch for a target name that itself contains
// "=".
func classifyArgs(args []string) (options map[string]string, targets []string, clean bool) {
	options = make(map[string]string)
	for _, a := range args {
		if a == "clean" {
			clean = true
			continue
		}
		if idx := strings.Index(a, "="); idx > 0 {
			key, val := a[:idx], a[idx+1:]
			if key == "explicit_target" {
				targets = append(targets, val)
				continue
			}
			options[key] = val
			continue
		}
		targets = append(targets, a)
	}
	return
}

func runBuild(cmd *cobra.Command, args []string) error {
	options, targets, clean := classifyArgs(args)

	logLevel := firstNonEmpty(options["log"], viper.GetString("log"), globalConfigLogLevel())
	logStyle := firstNonEmpty(options["style"], viper.GetString("style"), globalConfigLogStyle())
	logging.SetLevel(logging.ParseLevel(logLevel))
	logging.SetStyle(logging.ParseStyle(logStyle))

	threads := viper.GetInt("threads")
	if n, err := strconv.Atoi(options["threads"]); err == nil && n > 0 {
		threads = n
	}
	if globalConfig != nil && threads == 0 {
		threads = globalConfig.Threads
	}

	opts := engine.Options{
		Threads:        threads,
		LogLevel:       logLevel,
		LogStyle:       logStyle,
		Trace:          viper.GetBool("trace"),
		TraceUnchanged: viper.GetBool("traceUnchanged"),
		Clean:          clean,
		ModulePaths:    defaultModulePaths(),
	}
	if len(targets) == 1 {
		opts.ExplicitTarget = targets[0]
	}

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	if viper.GetBool("watch") {
		w, err := engine.NewWatcher(func() *engine.Engine { return engine.NewEngine(opts) }, cwd)
		if err != nil {
			return err
		}
		if err := w.Start(); err != nil {
			return err
		}
		select {}
	}

	e := engine.NewEngine(opts)
	return e.Run(context.Background(), cwd)
}

func defaultModulePaths() []string {
	if globalConfig != nil && len(globalConfig.ModulePaths) > 0 {
		return globalConfig.ModulePaths
	}
	return []string{"utils"}
}

func globalConfigLogLevel() string {
	if globalConfig != nil {
		return globalConfig.LogLevel
	}
	return "info"
}

func globalConfigLogStyle() string {
	if globalConfig != nil {
		return globalConfig.LogStyle
	}
	return "console"
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
