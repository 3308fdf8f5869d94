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
	"fmt"
	"runtime"
)

// ErrorKind enumerates the build-error taxonomy from the error handling
// design: every failure the engine can raise is tagged with one of these so
// callers (and tests) can switch on it instead of matching message text.
type ErrorKind int

const (
	ErrUnknown ErrorKind = iota
	ErrDuplicateRule
	ErrDuplicateAlias
	ErrUnresolvedBuildDir
	ErrMissingProduct
	ErrUnbuildableTargets
	ErrUnknownExplicitTarget
	ErrRuleExecutionFailure
	ErrConfigurationFailure
	ErrInterrupted
)

func (k ErrorKind) String() string {
	switch k {
	case ErrDuplicateRule:
		return "DuplicateRule"
	case ErrDuplicateAlias:
		return "DuplicateAlias"
	case ErrUnresolvedBuildDir:
		return "UnresolvedBuildDir"
	case ErrMissingProduct:
		return "MissingProduct"
	case ErrUnbuildableTargets:
		return "UnbuildableTargets"
	case ErrUnknownExplicitTarget:
		return "UnknownExplicitTarget"
	case ErrRuleExecutionFailure:
		return "RuleExecutionFailure"
	case ErrConfigurationFailure:
		return "ConfigurationFailure"
	case ErrInterrupted:
		return "Interrupted"
	default:
		return "Unknown"
	}
}

// BuildError is the single error type the engine raises. It carries a
// primary message plus a list of pre-formatted "extra info" lines (a rule
// declaration traceback, a list of unbuilt targets, collected sub-errors),
// matching the original source's _BuildError(msg, extra_info).
type BuildError struct {
	Kind  ErrorKind
	Msg   string
	Extra []string
	cause error
}

func (e *BuildError) Error() string {
	return e.Msg
}

func (e *BuildError) Unwrap() error {
	return e.cause
}

func newBuildError(kind ErrorKind, msg string, extra ...string) *BuildError {
	return &BuildError{Kind: kind, Msg: msg, Extra: extra}
}

func wrapBuildError(kind ErrorKind, cause error, msg string, extra ...string) *BuildError {
	return &BuildError{Kind: kind, Msg: msg, Extra: extra, cause: cause}
}

// callerStack captures the call stack (skipping the requested number of
// frames) in the "file line N, in func" form the original source's
// traceback formatting produced. It is attached to every Rule at
// declaration time so a later failure can report where the rule was
// defined (§7's "tagged rendering of the rule's declaration traceback").
func callerStack(skip int) []string {
	var lines []string
	for i := 0; i < 64; i++ {
		pc, file, line, ok := runtime.Caller(skip + i)
		if !ok {
			break
		}
		fn := runtime.FuncForPC(pc)
		name := "?"
		if fn != nil {
			name = fn.Name()
		}
		lines = append(lines, fmt.Sprintf("%s line %d, in %s", file, line, name))
	}
	return lines
}
