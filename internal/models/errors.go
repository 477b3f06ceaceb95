// Copyright 2022 bytetrade
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

package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicate      = errors.New("already exists")
	ErrSecurity       = errors.New("security violation")
	ErrNotSupported   = errors.New("not supported")
	ErrMalformed      = errors.New("malformed package")
	ErrVirtualContent = errors.New("virtual content must be resolved through its manifest")
)

// NotFoundError reports an applet that no repository could resolve.
type NotFoundError struct {
	ID       string
	Attempts []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("applet %s not found (attempted versions: %s)", e.ID, strings.Join(e.Attempts, ", "))
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// SourceError locates a problem in a source file. Line and Column are zero when unknown.
type SourceError struct {
	File   string
	Line   int
	Column int
	Err    error
}

func (e *SourceError) Error() string {
	switch {
	case e.Line > 0 && e.Column > 0:
		return fmt.Sprintf("%s:%d:%d: %v", e.File, e.Line, e.Column, e.Err)
	case e.Line > 0:
		return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.File, e.Err)
	}
}

func (e *SourceError) Unwrap() error {
	return e.Err
}
