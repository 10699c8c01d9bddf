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
	"fmt"
	"strings"
)

// PlannerContext carries the registries threaded through the pipeline. It
// is owned by the Builder and passed by reference to each planner in stage
// order; entries are write-once so a later stage can never invalidate what
// an earlier stage resolved.
type PlannerContext struct {
	// definitions is the combined namespace of policy definitions and set
	// definitions: name -> resource ID. New and replaced resources hold a
	// synthesized pending identity so references are valid before the
	// resource exists.
	definitions map[string]string
	// assignments maps scope/name keys to assignment resource IDs.
	assignments map[string]string
	// replaced names definitions and sets that require destructive
	// replacement; referencing resources cascade to at least update.
	replaced map[string]struct{}
	// roleIDs maps a definition or set name to the role definition IDs its
	// rule requires of an assignment identity.
	roleIDs map[string][]string
}

func NewPlannerContext() *PlannerContext {
	return &PlannerContext{
		definitions: map[string]string{},
		assignments: map[string]string{},
		replaced:    map[string]struct{}{},
		roleIDs:     map[string][]string{},
	}
}

// RegisterDefinition records the resolved identity of a definition or set
// definition. Re-registering an existing name is a pipeline bug and fails.
func (c *PlannerContext) RegisterDefinition(name, id string) error {
	key := strings.ToLower(name)
	if existing, ok := c.definitions[key]; ok {
		return fmt.Errorf("definition %q already registered as %q", name, existing)
	}
	c.definitions[key] = id
	return nil
}

// LookupDefinition resolves a definition or set definition name to its
// (possibly pending) resource ID.
func (c *PlannerContext) LookupDefinition(name string) (string, bool) {
	id, ok := c.definitions[strings.ToLower(name)]
	return id, ok
}

// MarkReplaced flags a definition or set for destructive replacement.
func (c *PlannerContext) MarkReplaced(name string) {
	c.replaced[strings.ToLower(name)] = struct{}{}
}

// IsReplaced reports whether the named definition or set is flagged for
// destructive replacement.
func (c *PlannerContext) IsReplaced(name string) bool {
	_, ok := c.replaced[strings.ToLower(name)]
	return ok
}

// SetRoleIDs records the role definition IDs a definition or set requires.
// Write-once, like the identity registries.
func (c *PlannerContext) SetRoleIDs(name string, ids []string) error {
	key := strings.ToLower(name)
	if _, ok := c.roleIDs[key]; ok {
		return fmt.Errorf("role IDs for %q already registered", name)
	}
	c.roleIDs[key] = ids
	return nil
}

// RoleIDs returns the required role definition IDs for a definition or set
// name, nil when it requires none.
func (c *PlannerContext) RoleIDs(name string) []string {
	return c.roleIDs[strings.ToLower(name)]
}

// RegisterAssignment records the resolved identity of an assignment under
// its scope/name key.
func (c *PlannerContext) RegisterAssignment(key, id string) error {
	k := strings.ToLower(key)
	if existing, ok := c.assignments[k]; ok {
		return fmt.Errorf("assignment %q already registered as %q", key, existing)
	}
	c.assignments[k] = id
	return nil
}

// LookupAssignment resolves a scope/name assignment key to its ID.
func (c *PlannerContext) LookupAssignment(key string) (string, bool) {
	id, ok := c.assignments[strings.ToLower(key)]
	return id, ok
}

// LookupAssignmentByID reports whether any planned assignment has the given
// resource ID. Exemptions authored against raw assignment IDs resolve
// through this.
func (c *PlannerContext) LookupAssignmentByID(id string) (string, bool) {
	needle := strings.ToLower(id)
	for key, registered := range c.assignments {
		if strings.ToLower(registered) == needle {
			return key, true
		}
	}
	return "", false
}
