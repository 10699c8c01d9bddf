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
	"github.com/go-logr/logr"

	"github.com/spiderman0016/enterprise-azure-policy-as-code/pkg/compare"
	"github.com/spiderman0016/enterprise-azure-policy-as-code/pkg/config"
	"github.com/spiderman0016/enterprise-azure-policy-as-code/pkg/policy"
	"github.com/spiderman0016/enterprise-azure-policy-as-code/pkg/scopes"
)

// exemptionPlanner is the last stage. Exemptions resolve their target
// assignment through the registry the assignment stage populated. The
// planner is deliberately permissive: an exemption whose target cannot be
// resolved is an orphan to surface, never something to silently delete.
type exemptionPlanner struct {
	strategy       string
	excludedScopes []string
	tree           *scopes.Tree
	log            logr.Logger
}

// lookupKey canonicalizes an authored exemption key: authored files may use
// logical scope names while the snapshot keys by scope ID.
func (p *exemptionPlanner) lookupKey(exemption *policy.Exemption) string {
	if node, ok := p.tree.Resolve(exemption.Scope); ok {
		return policy.AssignmentKey(node.ID, exemption.Name)
	}
	return policy.AssignmentKey(exemption.Scope, exemption.Name)
}

func (p *exemptionPlanner) plan(
	desired map[string]*policy.Exemption,
	deployed map[string]*policy.Exemption,
	deployedAssignments map[string]*policy.Assignment,
	pctx *PlannerContext,
) (*ExemptionPlanSet, error) {
	set := NewExemptionPlanSet()
	claimed := make(map[string]struct{}, len(desired))

	for _, key := range sortedKeys(desired) {
		exemption := desired[key]
		claimed[key] = struct{}{}
		claimed[p.lookupKey(exemption)] = struct{}{}

		assignmentID, resolved := p.resolveTarget(exemption, pctx)
		if !resolved {
			// Target assignment gone (or never planned). Flag for operator
			// attention instead of classifying; orphans stay out of every
			// bucket so nothing acts on them.
			set.NumberOfOrphans++
			p.log.Info("orphaned exemption", "name", exemption.Name, "assignment", exemptionTargetLabel(exemption))
			continue
		}

		current, exists := deployed[key]
		if !exists {
			current, exists = deployed[p.lookupKey(exemption)]
		}
		if !exists {
			set.Add(exemption.Name, ClassificationNew, exemption)
			continue
		}

		report := compareExemption(current, exemption, assignmentID)
		switch {
		case report.RequiresReplace():
			set.Add(exemption.Name, ClassificationReplace, exemption, report.Paths()...)
		case report.HasChanges():
			set.Add(exemption.Name, ClassificationUpdate, exemption, report.Paths()...)
		default:
			set.Add(exemption.Name, ClassificationUnchanged, exemption)
		}
	}

	// Deployed-only exemptions. Three cases:
	//   target still planned            -> exemption withdrawn, delete
	//   target deployed but now deleted -> orphan, operator decides
	//   target never existed            -> stale garbage, delete
	for _, key := range sortedKeys(deployed) {
		if _, isDesired := claimed[key]; isDesired {
			continue
		}
		current := deployed[key]
		if p.strategy == config.StrategyOwnedOnly || config.ScopeExcluded(p.excludedScopes, current.Scope) {
			set.Add(current.Name, ClassificationExcluded, current)
			continue
		}

		targetID := policy.NormalizeID(current.Properties.PolicyAssignmentID)
		if _, planned := pctx.LookupAssignmentByID(targetID); planned {
			set.Add(current.Name, ClassificationDelete, current)
			continue
		}
		if deployedAssignmentExists(deployedAssignments, targetID) {
			set.NumberOfOrphans++
			p.log.Info("orphaned exemption", "name", current.Name, "assignment", current.Properties.PolicyAssignmentID)
			continue
		}
		set.Add(current.Name, ClassificationDelete, current)
	}

	return set, nil
}

// resolveTarget resolves the exemption's target assignment to its ID, by
// name+scope or by raw assignment ID.
func (p *exemptionPlanner) resolveTarget(exemption *policy.Exemption, pctx *PlannerContext) (string, bool) {
	props := exemption.Properties
	if props.AssignmentName != "" {
		scope := props.AssignmentScope
		if node, ok := p.tree.Resolve(scope); ok {
			scope = node.ID
		}
		id, ok := pctx.LookupAssignment(policy.AssignmentKey(scope, props.AssignmentName))
		return id, ok
	}
	if props.PolicyAssignmentID != "" {
		if _, ok := pctx.LookupAssignmentByID(props.PolicyAssignmentID); ok {
			return props.PolicyAssignmentID, true
		}
	}
	return "", false
}

func deployedAssignmentExists(deployedAssignments map[string]*policy.Assignment, normalizedID string) bool {
	for _, assignment := range deployedAssignments {
		if policy.NormalizeID(assignment.ID) == normalizedID {
			return true
		}
	}
	return false
}

func exemptionTargetLabel(exemption *policy.Exemption) string {
	if exemption.Properties.AssignmentName != "" {
		return policy.AssignmentKey(exemption.Properties.AssignmentScope, exemption.Properties.AssignmentName)
	}
	return exemption.Properties.PolicyAssignmentID
}

// compareExemption diffs a desired exemption against its deployed
// counterpart. Re-pointing the target assignment recreates the exemption;
// category, expiry and display fields patch in place.
func compareExemption(deployed, desired *policy.Exemption, desiredAssignmentID string) *compare.Report {
	r := &compare.Report{}

	compare.Strings(r, compare.GradeReplace, "policyAssignmentId",
		policy.NormalizeID(deployed.Properties.PolicyAssignmentID),
		policy.NormalizeID(desiredAssignmentID))

	compare.Strings(r, compare.GradeUpdate, "exemptionCategory", deployed.Properties.ExemptionCategory, desired.Properties.ExemptionCategory)
	compare.Strings(r, compare.GradeUpdate, "expiresOn", deployed.Properties.ExpiresOn, desired.Properties.ExpiresOn)
	compare.Strings(r, compare.GradeUpdate, "displayName", deployed.Properties.DisplayName, desired.Properties.DisplayName)
	compare.Strings(r, compare.GradeUpdate, "description", deployed.Properties.Description, desired.Properties.Description)
	compare.Value(r, compare.GradeUpdate, "metadata",
		compare.ScrubMetadata(deployed.Properties.Metadata),
		compare.ScrubMetadata(desired.Properties.Metadata))
	if !sameStringSet(deployed.Properties.PolicyDefinitionReferenceIDs, desired.Properties.PolicyDefinitionReferenceIDs) {
		r.AddUpdate("policyDefinitionReferenceIds", "", "")
	}

	return r
}
