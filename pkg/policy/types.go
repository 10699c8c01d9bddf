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

// Package policy defines the governance entities the planner reconciles:
// policy definitions, policy set definitions, assignments, exemptions and
// the role assignments derived from assignment identities. The same types
// describe both authored (desired) and deployed resources; deployed
// resources additionally carry their resource ID.
package policy

import (
	"fmt"
	"strings"
)

// Definition is a named policy rule. Mode, the rule body and the parameter
// schema are immutable on the service side: changing any of them forces the
// deployed resource to be replaced. Display fields, metadata and parameter
// defaults can be patched in place.
type Definition struct {
	ID         string               `json:"id,omitempty"`
	Name       string               `json:"name"`
	Properties DefinitionProperties `json:"properties"`
}

type DefinitionProperties struct {
	DisplayName string                         `json:"displayName,omitempty"`
	Description string                         `json:"description,omitempty"`
	Mode        string                         `json:"mode"`
	Metadata    map[string]any                 `json:"metadata,omitempty"`
	Parameters  map[string]ParameterDefinition `json:"parameters,omitempty"`
	PolicyRule  map[string]any                 `json:"policyRule"`
}

// ParameterDefinition is the schema of a single policy parameter.
type ParameterDefinition struct {
	Type          string         `json:"type"`
	DefaultValue  any            `json:"defaultValue,omitempty"`
	AllowedValues []any          `json:"allowedValues,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// SetDefinition is an ordered collection of definition references with
// per-member parameter bindings.
type SetDefinition struct {
	ID         string                  `json:"id,omitempty"`
	Name       string                  `json:"name"`
	Properties SetDefinitionProperties `json:"properties"`
}

type SetDefinitionProperties struct {
	DisplayName            string                         `json:"displayName,omitempty"`
	Description            string                         `json:"description,omitempty"`
	Metadata               map[string]any                 `json:"metadata,omitempty"`
	Parameters             map[string]ParameterDefinition `json:"parameters,omitempty"`
	PolicyDefinitions      []DefinitionReference          `json:"policyDefinitions"`
	PolicyDefinitionGroups []DefinitionGroup              `json:"policyDefinitionGroups,omitempty"`
}

// DefinitionReference is one member of a set. Authored files reference the
// member by name; deployed resources carry the fully qualified ID. Either
// may be present, resolution happens through the planner registries.
type DefinitionReference struct {
	PolicyDefinitionName string         `json:"policyDefinitionName,omitempty"`
	PolicyDefinitionID   string         `json:"policyDefinitionId,omitempty"`
	ReferenceID          string         `json:"policyDefinitionReferenceId,omitempty"`
	Parameters           map[string]any `json:"parameters,omitempty"`
	GroupNames           []string       `json:"groupNames,omitempty"`
}

type DefinitionGroup struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Category    string `json:"category,omitempty"`
}

// Assignment binds a definition or set definition to a scope.
type Assignment struct {
	ID         string               `json:"id,omitempty"`
	Name       string               `json:"name"`
	Scope      string               `json:"scope"`
	Location   string               `json:"location,omitempty"`
	Identity   *Identity            `json:"identity,omitempty"`
	Properties AssignmentProperties `json:"properties"`
}

type AssignmentProperties struct {
	DisplayName string         `json:"displayName,omitempty"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	// Authored files name their target; deployed assignments carry the ID.
	PolicyDefinitionName    string `json:"policyDefinitionName,omitempty"`
	PolicySetDefinitionName string `json:"policySetDefinitionName,omitempty"`
	PolicyDefinitionID      string `json:"policyDefinitionId,omitempty"`

	Parameters            map[string]any         `json:"parameters,omitempty"`
	EnforcementMode       string                 `json:"enforcementMode,omitempty"`
	NonComplianceMessages []NonComplianceMessage `json:"nonComplianceMessages,omitempty"`
	NotScopes             []string               `json:"notScopes,omitempty"`
}

type NonComplianceMessage struct {
	Message     string `json:"message"`
	ReferenceID string `json:"policyDefinitionReferenceId,omitempty"`
}

// Identity is the managed identity attached to an assignment. Only
// assignments with an identity participate in role reconciliation.
type Identity struct {
	Type        string `json:"type"`
	PrincipalID string `json:"principalId,omitempty"`
	// UserAssignedIdentities keys are resource IDs of user assigned
	// identities, values are ignored by the planner.
	UserAssignedIdentities map[string]any `json:"userAssignedIdentities,omitempty"`
}

// HasManagedIdentity reports whether the assignment carries an identity
// that requires role assignments.
func (a *Assignment) HasManagedIdentity() bool {
	return a.Identity != nil && a.Identity.Type != "" && !strings.EqualFold(a.Identity.Type, "None")
}

// TargetName returns the authored target name, preferring the definition
// reference over the set reference, plus a flag telling which one it is.
func (p AssignmentProperties) TargetName() (name string, isSet bool) {
	if p.PolicyDefinitionName != "" {
		return p.PolicyDefinitionName, false
	}
	return p.PolicySetDefinitionName, true
}

// Exemption suppresses evaluation of one assignment at a scope.
type Exemption struct {
	ID         string              `json:"id,omitempty"`
	Name       string              `json:"name"`
	Scope      string              `json:"scope"`
	Properties ExemptionProperties `json:"properties"`
}

type ExemptionProperties struct {
	DisplayName string         `json:"displayName,omitempty"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	// Authored exemptions name their target assignment and the scope it was
	// assigned at; deployed exemptions carry the assignment ID.
	AssignmentName     string `json:"assignmentName,omitempty"`
	AssignmentScope    string `json:"assignmentScope,omitempty"`
	PolicyAssignmentID string `json:"policyAssignmentId,omitempty"`

	// ExemptionCategory is "Waiver" or "Mitigated".
	ExemptionCategory            string   `json:"exemptionCategory"`
	ExpiresOn                    string   `json:"expiresOn,omitempty"`
	PolicyDefinitionReferenceIDs []string `json:"policyDefinitionReferenceIds,omitempty"`
}

// RoleAssignment grants a role to an assignment's managed identity at a
// scope. Role assignments are derived from assignments, never authored.
type RoleAssignment struct {
	// Name is the GUID resource name; generated for additions.
	Name             string `json:"name,omitempty"`
	Scope            string `json:"scope"`
	RoleDefinitionID string `json:"roleDefinitionId"`
	PrincipalID      string `json:"principalId,omitempty"`
	PrincipalType    string `json:"principalType,omitempty"`
	// AssignmentID links the grant back to the policy assignment it serves.
	AssignmentID string `json:"policyAssignmentId,omitempty"`
}

// AssignmentKey is the registry key for an assignment: assignments are
// unique by name within a scope, not globally.
func AssignmentKey(scope, name string) string {
	return strings.ToLower(scope) + "/" + strings.ToLower(name)
}

// Resource ID builders. IDs are deterministic in the managed cloud: the
// planner can synthesize the identity of a resource before it exists so
// downstream references are valid in the same plan.

func DefinitionID(scope, name string) string {
	return fmt.Sprintf("%s/providers/Microsoft.Authorization/policyDefinitions/%s", scope, name)
}

func SetDefinitionID(scope, name string) string {
	return fmt.Sprintf("%s/providers/Microsoft.Authorization/policySetDefinitions/%s", scope, name)
}

func AssignmentID(scope, name string) string {
	return fmt.Sprintf("%s/providers/Microsoft.Authorization/policyAssignments/%s", scope, name)
}

func ExemptionID(scope, name string) string {
	return fmt.Sprintf("%s/providers/Microsoft.Authorization/policyExemptions/%s", scope, name)
}

// NormalizeID lowercases a resource ID for identity comparison. The service
// reports IDs with inconsistent casing across APIs.
func NormalizeID(id string) string {
	return strings.ToLower(id)
}
