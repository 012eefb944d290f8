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

package agent

import (
	"errors"
	"fmt"
)

var (
	ErrAgentNotFound        = errors.New("agent not found")
	ErrInvalidConfiguration = errors.New("invalid agent configuration")
	ErrStoppedOnError       = errors.New("agent stopped due to error")
	ErrClient               = errors.New("client error")
)

// Error is returned by Executor operations. Match the kind with errors.Is.
type Error struct {
	Kind   error
	Agent  string
	Detail string
	Err    error

	// Events holds what the run recorded before it stopped. Set for
	// ErrStoppedOnError.
	Events []Event
}

func (e *Error) Error() string {
	switch {
	case e.Kind == ErrAgentNotFound:
		return fmt.Sprintf("%v: %s", e.Kind, e.Agent)
	case e.Err != nil:
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%v: %s", e.Kind, e.Detail)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func notFound(name string) *Error {
	return &Error{Kind: ErrAgentNotFound, Agent: name}
}

func invalidConfig(name, format string, args ...any) *Error {
	return &Error{Kind: ErrInvalidConfiguration, Agent: name, Detail: fmt.Sprintf(format, args...)}
}
