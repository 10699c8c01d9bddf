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
	"sort"
	"strings"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/spiderman0016/enterprise-azure-policy-as-code/pkg/compare"
	"github.com/spiderman0016/enterprise-azure-policy-as-code/pkg/config"
	"github.com/spiderman0016/enterprise-azure-policy-as-code/pkg/policy"
	"github.com/spiderman0016/enterprise-azure-policy-as-code/pkg/scopes"
)

// assignmentPlanner is the third stage. It consumes every registry the
// earlier stages populated: target identities and replacement flags from
// the combined namespace, required role IDs for role reconciliation, and
// the scope tree for scope validation. It produces the assignment plan set
// and the global role assignment delta.
type assignmentPlanner struct {
	strategy       string
	excluded       []string
	excludedScopes []string
	tree           *scopes.Tree
	// newName generates GUID resource names for added role assignments;
	// overridable in tests.
	newName func() string
	log     logr.Logger
}

func (p *assignmentPlanner) name() string {
	if p.newName != nil {
		return p.newName()
	}
	return uuid.NewString()
}

func (p *assignmentPlanner) plan(
	desired map[string]*policy.Assignment,
	deployed map[string]*policy.Assignment,
	deployedRoles []policy.RoleAssignment,
	pctx *PlannerContext,
	roles *RoleDelta,
	issues *[]Issue,
) (*PlanSet[*policy.Assignment], error) {
	set := NewPlanSet[*policy.Assignment]()

	// Deployed role assignments indexed by the policy assignment they
	// serve, for per-assignment reconciliation and delete queueing.
	rolesByAssignment := make(map[string][]policy.RoleAssignment)
	for _, ra := range deployedRoles {
		key := policy.NormalizeID(ra.AssignmentID)
		rolesByAssignment[key] = append(rolesByAssignment[key], ra)
	}

	for _, key := range sortedKeys(desired) {
		assignment := desired[key]
		normalizeAssignment(assignment)

		targetName, _ := assignment.Properties.TargetName()
		targetID := assignment.Properties.PolicyDefinitionID
		if targetName != "" {
			id, ok := pctx.LookupDefinition(targetName)
			if !ok {
				*issues = append(*issues, Issue{Kind: "policyAssignment", Err: unresolvable("policyAssignment", assignment.Name, targetName)})
				p.log.Error(unresolvable("policyAssignment", assignment.Name, targetName), "assignment skipped")
				continue
			}
			targetID = id
		}
		if targetID == "" {
			*issues = append(*issues, Issue{Kind: "policyAssignment", Err: unresolvable("policyAssignment", assignment.Name, "<no target>")})
			continue
		}

		node, ok := p.tree.Resolve(assignment.Scope)
		if !ok {
			*issues = append(*issues, Issue{Kind: "policyAssignment", Err: unknownScope("policyAssignment", assignment.Name, assignment.Scope)})
			p.log.Error(unknownScope("policyAssignment", assignment.Name, assignment.Scope), "assignment skipped")
			continue
		}
		scope := node.ID

		assignmentID := policy.AssignmentID(scope, assignment.Name)
		if err := pctx.RegisterAssignment(policy.AssignmentKey(scope, assignment.Name), assignmentID); err != nil {
			return nil, err
		}

		current := deployed[key]
		if current == nil {
			// Authored keys use logical scope names; deployed keys use
			// canonical scope IDs. Try the canonical key too.
			current = deployed[policy.AssignmentKey(scope, assignment.Name)]
		}

		classification := ClassificationNew
		var reasons []string
		if current != nil {
			report := compareAssignment(current, assignment, targetID)
			switch {
			case report.RequiresReplace():
				classification = ClassificationReplace
				reasons = report.Paths()
			case report.HasChanges():
				classification = ClassificationUpdate
				reasons = report.Paths()
			case targetName != "" && pctx.IsReplaced(targetName):
				classification = ClassificationUpdate
				reasons = []string{cascadeReason}
			default:
				classification = ClassificationUnchanged
			}
			if current.ID != "" {
				assignmentID = current.ID
			}
		}
		set.Add(assignment.Name, classification, assignment, reasons...)

		// Role reconciliation for managed identities. An assignment that
		// drops its identity still has to shed the grants the old
		// principal held.
		granted := rolesByAssignment[policy.NormalizeID(assignmentID)]
		if assignment.HasManagedIdentity() {
			required := pctx.RoleIDs(targetName)
			p.reconcileRoles(assignment, assignmentID, scope, required, granted, roles)
		} else {
			for _, ra := range granted {
				roles.remove(ra)
			}
		}
	}

	// Deployed-only assignments: delete and queue their role grants for
	// removal so the identity loses access along with the assignment.
	for _, key := range sortedKeys(deployed) {
		if _, isDesired := desired[key]; isDesired {
			continue
		}
		current := deployed[key]
		if _, claimed := pctx.LookupAssignment(key); claimed {
			continue
		}

		if p.strategy == config.StrategyOwnedOnly ||
			config.Excluded(p.excluded, current.Name) ||
			config.ScopeExcluded(p.excludedScopes, current.Scope) {
			set.Add(current.Name, ClassificationExcluded, current)
			continue
		}
		set.Add(current.Name, ClassificationDelete, current)
		for _, ra := range rolesByAssignment[policy.NormalizeID(current.ID)] {
			roles.remove(ra)
		}
	}

	return set, nil
}

// reconcileRoles diffs the required role set against what is granted at
// the assignment scope: required-but-absent roles are added (with a fresh
// GUID name), granted-but-no-longer-required roles are removed.
func (p *assignmentPlanner) reconcileRoles(
	assignment *policy.Assignment,
	assignmentID string,
	scope string,
	required []string,
	granted []policy.RoleAssignment,
	roles *RoleDelta,
) {
	grantedByRole := make(map[string]policy.RoleAssignment, len(granted))
	for _, ra := range granted {
		grantedByRole[policy.NormalizeID(ra.RoleDefinitionID)] = ra
	}

	principalID := ""
	if assignment.Identity != nil {
		principalID = assignment.Identity.PrincipalID
	}

	requiredSet := make(map[string]struct{}, len(required))
	for _, roleID := range required {
		requiredSet[policy.NormalizeID(roleID)] = struct{}{}
		if _, have := grantedByRole[policy.NormalizeID(roleID)]; have {
			continue
		}
		roles.add(policy.RoleAssignment{
			Name:             p.name(),
			Scope:            scope,
			RoleDefinitionID: roleID,
			PrincipalID:      principalID,
			PrincipalType:    "ServicePrincipal",
			AssignmentID:     assignmentID,
		})
	}

	stale := make([]string, 0, len(grantedByRole))
	for roleKey := range grantedByRole {
		if _, still := requiredSet[roleKey]; !still {
			stale = append(stale, roleKey)
		}
	}
	sort.Strings(stale)
	for _, roleKey := range stale {
		roles.remove(grantedByRole[roleKey])
	}
}

func normalizeAssignment(assignment *policy.Assignment) {
	if assignment.Properties.EnforcementMode == "" {
		assignment.Properties.EnforcementMode = "Default"
	}
}

// compareAssignment diffs a desired assignment against its deployed
// counterpart. Re-pointing the target or changing the identity recreates
// the resource; parameters, enforcement and display fields patch in place.
func compareAssignment(deployed, desired *policy.Assignment, desiredTargetID string) *compare.Report {
	r := &compare.Report{}

	compare.Strings(r, compare.GradeReplace, "policyDefinitionId",
		policy.NormalizeID(deployed.Properties.PolicyDefinitionID),
		policy.NormalizeID(desiredTargetID))
	compare.Strings(r, compare.GradeReplace, "identity.type", identityType(deployed.Identity), identityType(desired.Identity))
	if identityType(desired.Identity) != "" && !strings.EqualFold(identityType(desired.Identity), "None") {
		compare.Strings(r, compare.GradeReplace, "location", deployed.Location, desired.Location)
	}

	compare.Strings(r, compare.GradeUpdate, "enforcementMode", deployed.Properties.EnforcementMode, desired.Properties.EnforcementMode)
	compare.Value(r, compare.GradeUpdate, "parameters", deployed.Properties.Parameters, desired.Properties.Parameters)
	compare.Strings(r, compare.GradeUpdate, "displayName", deployed.Properties.DisplayName, desired.Properties.DisplayName)
	compare.Strings(r, compare.GradeUpdate, "description", deployed.Properties.Description, desired.Properties.Description)
	compare.Value(r, compare.GradeUpdate, "metadata",
		compare.ScrubMetadata(deployed.Properties.Metadata),
		compare.ScrubMetadata(desired.Properties.Metadata))
	if !sameStringSet(deployed.Properties.NotScopes, desired.Properties.NotScopes) {
		r.AddUpdate("notScopes", "", "")
	}
	compareNonComplianceMessages(r, deployed.Properties.NonComplianceMessages, desired.Properties.NonComplianceMessages)

	return r
}

func compareNonComplianceMessages(r *compare.Report, deployed, desired []policy.NonComplianceMessage) {
	toAny := func(messages []policy.NonComplianceMessage) []any {
		out := make([]any, 0, len(messages))
		for _, m := range messages {
			out = append(out, map[string]any{
				"message":                     m.Message,
				"policyDefinitionReferenceId": m.ReferenceID,
			})
		}
		return out
	}
	compare.Value(r, compare.GradeUpdate, "nonComplianceMessages", toAny(deployed), toAny(desired))
}

func identityType(identity *policy.Identity) string {
	if identity == nil {
		return ""
	}
	return identity.Type
}
