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
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/spiderman0016/enterprise-azure-policy-as-code/pkg/config"
	"github.com/spiderman0016/enterprise-azure-policy-as-code/pkg/inventory"
	"github.com/spiderman0016/enterprise-azure-policy-as-code/pkg/policy"
	"github.com/spiderman0016/enterprise-azure-policy-as-code/pkg/scopes"
)

// Desired is the authored state of one governance environment, as loaded
// from the definitions folder. Assignments and exemptions are keyed by
// scope/name, definitions and sets by name.
type Desired struct {
	Definitions    map[string]*policy.Definition
	SetDefinitions map[string]*policy.SetDefinition
	Assignments    map[string]*policy.Assignment
	Exemptions     map[string]*policy.Exemption

	// ExemptionsManaged is false when the exemptions source is configured
	// but its folder is absent; the exemption stage is then skipped
	// entirely (degraded, not an error).
	ExemptionsManaged bool
}

// Builder runs the planning pipeline for one environment. Stages execute
// strictly in order — definitions, set definitions, assignments,
// exemptions — because each stage reads registries only fully populated by
// the one before it.
type Builder struct {
	Environment *config.Environment
	OwnerID     string
	Inventory   inventory.Provider
	Scopes      scopes.Provider

	// Now is the plan timestamp source; defaults to time.Now.
	Now func() time.Time
	Log logr.Logger
}

// Result bundles the two plan artifacts with the run summary.
type Result struct {
	Policy  *PolicyPlan
	Roles   *RolePlan
	Summary *Summary
}

// Build fetches the collaborator snapshots and runs all four planners.
// Local resolution and scope errors are collected into the summary; only
// collaborator failures and pipeline bugs abort the run.
func (b *Builder) Build(ctx context.Context, desired *Desired) (*Result, error) {
	if b.Environment == nil {
		return nil, fmt.Errorf("builder needs an environment")
	}
	if desired == nil {
		desired = &Desired{}
	}

	deployed, err := b.Inventory.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching deployed state: %w", err)
	}

	tree, err := b.scopeTree(ctx, deployed)
	if err != nil {
		return nil, fmt.Errorf("fetching scope tree: %w", err)
	}

	pctx := NewPlannerContext()
	roles := &RoleDelta{Added: []policy.RoleAssignment{}, Removed: []policy.RoleAssignment{}}
	var issues []Issue

	strategy := b.Environment.Strategy()
	root := b.Environment.DeploymentRootScope
	log := b.Log

	definitions := &definitionPlanner{
		rootScope: root,
		strategy:  strategy,
		excluded:  b.Environment.DesiredState.ExcludedPolicyDefinitions,
		log:       log.WithName("definitions"),
	}
	definitionSet, err := definitions.plan(desired.Definitions, deployed.PolicyDefinitions, pctx)
	if err != nil {
		return nil, err
	}

	setDefinitions := &setDefinitionPlanner{
		rootScope: root,
		strategy:  strategy,
		excluded:  b.Environment.DesiredState.ExcludedPolicySetDefinitions,
		log:       log.WithName("setDefinitions"),
	}
	setDefinitionSet, err := setDefinitions.plan(desired.SetDefinitions, deployed.PolicySetDefinitions, pctx, &issues)
	if err != nil {
		return nil, err
	}

	assignments := &assignmentPlanner{
		strategy:       strategy,
		excluded:       b.Environment.DesiredState.ExcludedPolicyAssignments,
		excludedScopes: b.Environment.DesiredState.ExcludedScopes,
		tree:           tree,
		log:            log.WithName("assignments"),
	}
	assignmentSet, err := assignments.plan(desired.Assignments, deployed.PolicyAssignments, deployed.RoleAssignments, pctx, roles, &issues)
	if err != nil {
		return nil, err
	}

	exemptionSet := NewExemptionPlanSet()
	if desired.ExemptionsManaged {
		exemptions := &exemptionPlanner{
			strategy:       strategy,
			excludedScopes: b.Environment.DesiredState.ExcludedScopes,
			tree:           tree,
			log:            log.WithName("exemptions"),
		}
		exemptionSet, err = exemptions.plan(desired.Exemptions, deployed.PolicyExemptions, deployed.PolicyAssignments, pctx)
		if err != nil {
			return nil, err
		}
	} else {
		log.Info("exemptions not managed, stage skipped")
	}

	now := time.Now()
	if b.Now != nil {
		now = b.Now()
	}

	result := &Result{
		Policy: &PolicyPlan{
			CreatedOn:            now,
			PacOwnerID:           b.OwnerID,
			PolicyDefinitions:    definitionSet,
			PolicySetDefinitions: setDefinitionSet,
			Assignments:          assignmentSet,
			Exemptions:           exemptionSet,
		},
		Roles: &RolePlan{
			CreatedOn:       now,
			PacOwnerID:      b.OwnerID,
			RoleAssignments: roles,
		},
	}

	result.Summary = &Summary{
		PacSelector:       b.Environment.PacSelector,
		Strategy:          strategy,
		Definitions:       definitionSet.Counts(),
		SetDefinitions:    setDefinitionSet.Counts(),
		Assignments:       assignmentSet.Counts(),
		Exemptions:        exemptionSet.Counts(),
		NumberOfOrphans:   exemptionSet.NumberOfOrphans,
		ExemptionsManaged: desired.ExemptionsManaged,
		RoleChanges:       roles.NumberOfChanges,
		TotalChanges:      result.Policy.TotalChanges(),
		Issues:            issues,
	}

	return result, nil
}

func (b *Builder) scopeTree(ctx context.Context, deployed *inventory.Deployed) (*scopes.Tree, error) {
	if b.Scopes != nil {
		return b.Scopes.Tree(ctx)
	}
	return scopes.NewTree(deployed.Scopes)
}
