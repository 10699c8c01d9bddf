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

package policy

import (
	"sort"
	"strings"
)

// RoleDefinitionIDs extracts the role definition IDs a policy rule requires
// its assignment identity to hold. Remediating effects (deployIfNotExists,
// modify) list them under then.details.roleDefinitionIds; other effects
// require none.
func RoleDefinitionIDs(rule map[string]any) []string {
	then, ok := rule["then"].(map[string]any)
	if !ok {
		return nil
	}
	details, ok := then["details"].(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := details["roleDefinitionIds"].([]any)
	if !ok {
		return nil
	}

	seen := make(map[string]struct{}, len(raw))
	ids := make([]string, 0, len(raw))
	for _, v := range raw {
		id, ok := v.(string)
		if !ok || id == "" {
			continue
		}
		key := strings.ToLower(id)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
