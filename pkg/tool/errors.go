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

package tool

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	ErrFileIO        = errors.New("file I/O error")
	ErrInvalidInput  = errors.New("invalid tool input")
	ErrNotFound      = errors.New("tool not found")
	ErrCommandFailed = errors.New("command execution failed")
	ErrJSONParse     = errors.New("JSON parse error")
)

// Error is a tool failure. Its message is what the model sees.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func InvalidInput(format string, args ...any) *Error {
	return &Error{Kind: ErrInvalidInput, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(name string) *Error {
	return &Error{Kind: ErrNotFound, Msg: name}
}

func CommandFailed(format string, args ...any) *Error {
	return &Error{Kind: ErrCommandFailed, Msg: fmt.Sprintf(format, args...)}
}

func FileIO(err error) *Error {
	return &Error{Kind: ErrFileIO, Msg: err.Error(), Err: err}
}

func JSONParse(err error) *Error {
	return &Error{Kind: ErrJSONParse, Msg: err.Error(), Err: err}
}
