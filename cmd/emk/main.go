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

// Command emk is the CLI entrypoint. It blank-imports the built-in
// reference modules so their init()-time RegisterModule calls run before
// any build description asks for them by name.
package main

import (
	"emk.build/emk/cmd"

	_ "emk.build/emk/modules/revision"
	_ "emk.build/emk/modules/utils"
)

func main() {
	cmd.Execute()
}
