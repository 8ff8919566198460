/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package connector

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvariantViolation marks programming errors such as a row mapper
	// writing a column the table schema never declared.
	ErrInvariantViolation = errors.New("invariant violation")
	ErrTableNotFound      = errors.New("table does not exist")
	ErrInvalidRequest     = errors.New("invalid request")
)

// ErrUnknownField is returned by a field resolver asked for a field missing
// from its dispatch table. The schema and the resolver have drifted apart.
type ErrUnknownField struct {
	Column string
	Field  string
}

// ErrUnsupportedEngine is returned when a request is routed to an engine
// identifier no handler was built for.
type ErrUnsupportedEngine struct {
	Engine    string
	Catalog   string
	Supported []string
}

// ErrDuplicateEngine is returned when two handler factories report the same
// engine identifier.
type ErrDuplicateEngine struct {
	Engine string
}

// ErrRemoteFetch wraps a failed page request against a remote API.
type ErrRemoteFetch struct {
	Msg  string
	Page int
	Err  error
}

// ErrTransient marks remote failures worth retrying (throttling, timeouts).
type ErrTransient struct {
	Msg string
	Err error
}

func (e *ErrUnknownField) Error() string {
	return fmt.Sprintf("unknown field %q for column %q", e.Field, e.Column)
}

func (e *ErrUnknownField) Unwrap() error {
	return ErrInvariantViolation
}

func (e *ErrUnsupportedEngine) Error() string {
	msg := fmt.Sprintf("unsupported engine %q", e.Engine)
	if e.Catalog != "" {
		msg += fmt.Sprintf(" for catalog %q", e.Catalog)
	}
	if len(e.Supported) > 0 {
		msg += fmt.Sprintf(" (supported: %s)", strings.Join(e.Supported, ", "))
	}
	return msg
}

func (e *ErrDuplicateEngine) Error() string {
	return fmt.Sprintf("duplicate handler factory for engine %q", e.Engine)
}

func (e *ErrRemoteFetch) Error() string {
	return fmt.Sprintf("remote fetch error: %s (page %d): %v", e.Msg, e.Page, e.Err)
}

func (e *ErrRemoteFetch) Unwrap() error {
	return e.Err
}

func (e *ErrTransient) Error() string {
	return fmt.Sprintf("transient error: %s: %v", e.Msg, e.Err)
}

func (e *ErrTransient) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err, or any error it wraps, is an *ErrTransient.
func IsTransient(err error) bool {
	var transient *ErrTransient
	return errors.As(err, &transient)
}
