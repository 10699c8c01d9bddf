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

package compare

import (
	"fmt"
	"strings"
)

// Value deep-compares two JSON-shaped values and records a change of the
// given grade when they differ. Scalars are rendered into the change record;
// composite values only record the path.
func Value(r *Report, grade Grade, path string, oldValue, newValue any) {
	if Equal(oldValue, newValue) {
		return
	}

	oldStr, newStr := renderScalar(oldValue), renderScalar(newValue)
	switch grade {
	case GradeReplace:
		r.AddReplace(path, oldStr, newStr)
	default:
		r.AddUpdate(path, oldStr, newStr)
	}
}

// Strings compares two strings, treating them as equal when they differ
// only in case. The service folds case on most display and mode fields.
func Strings(r *Report, grade Grade, path, oldValue, newValue string) {
	if strings.EqualFold(oldValue, newValue) {
		return
	}
	if grade == GradeReplace {
		r.AddReplace(path, oldValue, newValue)
		return
	}
	r.AddUpdate(path, oldValue, newValue)
}

// Equal reports deep equality of two JSON-shaped values (maps, slices,
// strings, bools, numbers, nil). Numbers compare by value regardless of Go
// type, since YAML and JSON decoding produce different concrete types.
// Empty maps and slices compare equal to nil: the service omits empty
// containers it considers unset.
func Equal(oldValue, newValue any) bool {
	if isEmpty(oldValue) && isEmpty(newValue) {
		return true
	}

	switch ov := oldValue.(type) {
	case map[string]any:
		nv, ok := newValue.(map[string]any)
		if !ok || len(ov) != len(nv) {
			return false
		}
		for k, v := range ov {
			w, found := nv[k]
			if !found || !Equal(v, w) {
				return false
			}
		}
		return true
	case []any:
		nv, ok := newValue.([]any)
		if !ok || len(ov) != len(nv) {
			return false
		}
		for i := range ov {
			if !Equal(ov[i], nv[i]) {
				return false
			}
		}
		return true
	case string:
		nv, ok := newValue.(string)
		return ok && ov == nv
	case bool:
		nv, ok := newValue.(bool)
		return ok && ov == nv
	case nil:
		return newValue == nil
	default:
		of, oldIsNum := toFloat(oldValue)
		nf, newIsNum := toFloat(newValue)
		if oldIsNum && newIsNum {
			return of == nf
		}
		return fmt.Sprintf("%v", oldValue) == fmt.Sprintf("%v", newValue)
	}
}

// ScrubMetadata returns a copy of a metadata map with the service-managed
// bookkeeping keys removed. Deployed resources always carry these; authored
// files never do, and they must not count as drift.
func ScrubMetadata(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return nil
	}
	scrubbed := make(map[string]any, len(metadata))
	for k, v := range metadata {
		switch k {
		case "createdBy", "createdOn", "updatedBy", "updatedOn":
			continue
		}
		scrubbed[k] = v
	}
	if len(scrubbed) == 0 {
		return nil
	}
	return scrubbed
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	case string:
		return t == ""
	default:
		return false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func renderScalar(v any) string {
	switch v.(type) {
	case map[string]any, []any, nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}
