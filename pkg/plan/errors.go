// Copyright 2026 The Enterprise Azure Policy as Code Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License"). You may
// not use this file except in compliance with the License. A copy of the
// License is located at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// or in the "license" file accompanying this file. This file is distributed
// on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either
// express or implied. See the License for the specific language governing
// permissions and limitations under the License.

package plan

import (
	"errors"
	"fmt"
)

// ResolutionError indicates a resource references a definition, set or
// assignment that cannot be resolved in either desired or deployed state.
// The referencing resource is skipped and reported; planning continues for
// everything else.
type ResolutionError struct {
	Kind      string
	Name      string
	Reference string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%s %q references unresolvable %q", e.Kind, e.Name, e.Reference)
}

// ScopeError indicates an assignment or exemption targets a scope that is
// not part of the management hierarchy. The resource is skipped and
// reported.
type ScopeError struct {
	Kind  string
	Name  string
	Scope string
}

func (e *ScopeError) Error() string {
	return fmt.Sprintf("%s %q targets unknown scope %q", e.Kind, e.Name, e.Scope)
}

// IsResolution reports whether err (or any error in its chain) is a
// resolution error.
func IsResolution(err error) bool {
	var re *ResolutionError
	return errors.As(err, &re)
}

// IsScope reports whether err (or any error in its chain) is a scope error.
func IsScope(err error) bool {
	var se *ScopeError
	return errors.As(err, &se)
}

func unresolvable(kind, name, reference string) error {
	return &ResolutionError{Kind: kind, Name: name, Reference: reference}
}

func unknownScope(kind, name, scope string) error {
	return &ScopeError{Kind: kind, Name: name, Scope: scope}
}
