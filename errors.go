// Copyright (C) The RUBIC Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package rubic

import (
	"fmt"
	"strings"
)

// ConfigurationError reports every invalid construction parameter at
// once. It is always fatal and is raised before any stage runs.
type ConfigurationError struct {
	Violations []string
}

func (e *ConfigurationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Violations, "; ")
}

// MalformedInputError wraps a parse or open failure for an input file.
type MalformedInputError struct {
	Path string
	Err  error
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed input %q: %v", e.Path, e.Err)
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

// SchemaError reports required columns missing from a table after
// projection.
type SchemaError struct {
	Table   string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s table: missing required column(s) %s", e.Table, strings.Join(e.Missing, ", "))
}

// EmptyInputError reports a table with no data rows.
type EmptyInputError struct {
	Table string
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("%s table: no data rows", e.Table)
}

// InsufficientSamplesError reports a sample list with fewer than two
// distinct IDs.
type InsufficientSamplesError struct {
	Count int
}

func (e *InsufficientSamplesError) Error() string {
	return fmt.Sprintf("sample list has %d distinct sample(s), need at least 2", e.Count)
}

// InsufficientCoverageError reports a mapped marker count below the
// configured floor.
type InsufficientCoverageError struct {
	Markers int
	Min     int
}

func (e *InsufficientCoverageError) Error() string {
	return fmt.Sprintf("only %d markers mapped, need at least %d", e.Markers, e.Min)
}
