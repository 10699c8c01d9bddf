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

// Package compare performs structural comparison of governance resources,
// classifying every difference as replace-grade (the deployed resource must
// be deleted and recreated) or update-grade (it can be patched in place).
package compare

import (
	"fmt"
	"strings"
)

// Grade tells how severe a detected change is.
type Grade string

const (
	// GradeReplace marks a change to a field the service treats as
	// immutable; applying it requires destroying the deployed resource.
	GradeReplace Grade = "replace"
	// GradeUpdate marks a change that can be applied in place.
	GradeUpdate Grade = "update"
)

// Change records a single detected difference.
type Change struct {
	// Path is the JSON path of the changed field.
	Path string
	// OldValue and NewValue are string renderings of both sides, empty when
	// not meaningful (e.g. whole-subtree changes).
	OldValue string
	NewValue string
}

// Report is the outcome of comparing a desired resource against its
// deployed counterpart.
type Report struct {
	ReplaceChanges []Change
	UpdateChanges  []Change
}

// HasChanges reports whether any difference was detected.
func (r *Report) HasChanges() bool {
	return len(r.ReplaceChanges) > 0 || len(r.UpdateChanges) > 0
}

// RequiresReplace reports whether at least one replace-grade change was
// detected.
func (r *Report) RequiresReplace() bool {
	return len(r.ReplaceChanges) > 0
}

// AddReplace records a replace-grade change.
func (r *Report) AddReplace(path, oldValue, newValue string) {
	r.ReplaceChanges = append(r.ReplaceChanges, Change{Path: path, OldValue: oldValue, NewValue: newValue})
}

// AddUpdate records an update-grade change.
func (r *Report) AddUpdate(path, oldValue, newValue string) {
	r.UpdateChanges = append(r.UpdateChanges, Change{Path: path, OldValue: oldValue, NewValue: newValue})
}

// Merge folds another report into this one.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	r.ReplaceChanges = append(r.ReplaceChanges, other.ReplaceChanges...)
	r.UpdateChanges = append(r.UpdateChanges, other.UpdateChanges...)
}

// Paths returns the paths of all changes, replace-grade first. Used as the
// diff reason on plan records.
func (r *Report) Paths() []string {
	paths := make([]string, 0, len(r.ReplaceChanges)+len(r.UpdateChanges))
	for _, c := range r.ReplaceChanges {
		paths = append(paths, c.Path)
	}
	for _, c := range r.UpdateChanges {
		paths = append(paths, c.Path)
	}
	return paths
}

const maxSummaryChanges = 3

// String returns a short human summary, capped at a few changes.
func (r *Report) String() string {
	if !r.HasChanges() {
		return "no changes"
	}

	all := r.Paths()
	descs := make([]string, 0, maxSummaryChanges+1)
	for i, path := range all {
		if i >= maxSummaryChanges {
			descs = append(descs, fmt.Sprintf("and %d more changes", len(all)-i))
			break
		}
		descs = append(descs, path+" changed")
	}
	return strings.Join(descs, "; ")
}
