/*
Copyright © 2024 the Reach authors.
This file is part of Reach.

Reach is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Reach is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Reach.  If not, see <http://www.gnu.org/licenses/>.
*/

package reach

import "fmt"

// StructuralInputError reports malformed input that re-running the same
// computation would reproduce: unrepairable geometry, missing required
// columns, or an age bracket absent from the sex-ratio table.
type StructuralInputError struct {
	err error
}

func (e *StructuralInputError) Error() string { return e.err.Error() }

// Unwrap returns the underlying error.
func (e *StructuralInputError) Unwrap() error { return e.err }

func newStructuralInputError(format string, args ...interface{}) error {
	return &StructuralInputError{err: fmt.Errorf(format, args...)}
}

// DataIntegrityError reports input values that violate the demographic
// invariants: negative counts, or male+female disagreeing with a total
// before the intentional recomputation step.
type DataIntegrityError struct {
	err error
}

func (e *DataIntegrityError) Error() string { return e.err.Error() }

// Unwrap returns the underlying error.
func (e *DataIntegrityError) Unwrap() error { return e.err }

func newDataIntegrityError(format string, args ...interface{}) error {
	return &DataIntegrityError{err: fmt.Errorf(format, args...)}
}

// ConfigurationError reports an impossible or inconsistent configuration,
// such as a missing sex-ratio table or a grid/trip-leg resolution mismatch.
type ConfigurationError struct {
	err error
}

func (e *ConfigurationError) Error() string { return e.err.Error() }

// Unwrap returns the underlying error.
func (e *ConfigurationError) Unwrap() error { return e.err }

func newConfigurationError(format string, args ...interface{}) error {
	return &ConfigurationError{err: fmt.Errorf(format, args...)}
}
