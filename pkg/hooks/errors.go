// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hooks

import (
	"errors"
	"fmt"
)

var (
	ErrScriptNotFound  = errors.New("hook script not found")
	ErrExecutionFailed = errors.New("hook execution failed")
	ErrTimeout         = errors.New("hook timed out")
	ErrIO              = errors.New("hook I/O error")
	ErrInvalidOutput   = errors.New("invalid hook output")
)

// Error reports why a hook could not run to completion. A hook that runs
// and exits non-zero is not an Error; see Result.Success.
type Error struct {
	Kind   error
	Hook   string
	Script string
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Hook, e.Script)
	}
	return fmt.Sprintf("%s: %s (%s): %s", e.Kind, e.Hook, e.Script, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}
