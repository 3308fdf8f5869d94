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

package engine

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// ProbeOther re-marshals a rule's "other" cache blob (as returned by
// RuleCache) to JSON and evaluates a gjson path against it, letting a
// module read a single field out of another module's cached data without
// both modules agreeing on a shared Go struct (§6.3's "other" map is
// intentionally untyped).
func ProbeOther(other map[string]interface{}, path string) gjson.Result {
	data, err := json.Marshal(other)
	if err != nil {
		return gjson.Result{}
	}
	return gjson.GetBytes(data, path)
}
