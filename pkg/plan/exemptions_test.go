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
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spiderman0016/enterprise-azure-policy-as-code/pkg/config"
	"github.com/spiderman0016/enterprise-azure-policy-as-code/pkg/policy"
)

func newExemptionPlanner(t *testing.T) *exemptionPlanner {
	return &exemptionPlanner{
		tree: testScopeTree(t),
		log:  logr.Discard(),
	}
}

func testExemption(name, scope, assignmentName, assignmentScope string) *policy.Exemption {
	return &policy.Exemption{
		Name:  name,
		Scope: scope,
		Properties: policy.ExemptionProperties{
			AssignmentName:    assignmentName,
			AssignmentScope:   assignmentScope,
			ExemptionCategory: "Waiver",
		},
	}
}

func deployedExemption(name, scope, assignmentID string) *policy.Exemption {
	return &policy.Exemption{
		ID:    policy.ExemptionID(scope, name),
		Name:  name,
		Scope: scope,
		Properties: policy.ExemptionProperties{
			PolicyAssignmentID: assignmentID,
			ExemptionCategory:  "Waiver",
		},
	}
}

func registerAssignment(t *testing.T, pctx *PlannerContext, scope, name string) string {
	t.Helper()
	id := policy.AssignmentID(scope, name)
	require.NoError(t, pctx.RegisterAssignment(policy.AssignmentKey(scope, name), id))
	return id
}

func TestExemptionPlanner_New(t *testing.T) {
	pctx := NewPlannerContext()
	registerAssignment(t, pctx, testRootScope, "asg-audit")

	desired := map[string]*policy.Exemption{
		policy.AssignmentKey("landing-zones", "exempt-lz"): testExemption("exempt-lz", "landing-zones", "asg-audit", "epac-root"),
	}

	set, err := newExemptionPlanner(t).plan(desired, map[string]*policy.Exemption{}, nil, pctx)
	require.NoError(t, err)

	assert.Contains(t, set.New, "exempt-lz")
	assert.Zero(t, set.NumberOfOrphans)
}

func TestExemptionPlanner_DesiredOrphan(t *testing.T) {
	// The exemption targets an assignment no longer in the desired state and
	// not deployed either: an orphan, counted but never planned.
	pctx := NewPlannerContext()

	desired := map[string]*policy.Exemption{
		policy.AssignmentKey("landing-zones", "exempt-lz"): testExemption("exempt-lz", "landing-zones", "asg-gone", "epac-root"),
	}

	set, err := newExemptionPlanner(t).plan(desired, map[string]*policy.Exemption{}, nil, pctx)
	require.NoError(t, err)

	assert.Equal(t, 1, set.NumberOfOrphans)
	assert.Empty(t, set.Records())
	assert.Equal(t, 0, set.NumberOfChanges)
}

func TestExemptionPlanner_Unchanged(t *testing.T) {
	pctx := NewPlannerContext()
	assignmentID := registerAssignment(t, pctx, testRootScope, "asg-audit")

	lz := "/providers/Microsoft.Management/managementGroups/landing-zones"
	desired := map[string]*policy.Exemption{
		policy.AssignmentKey("landing-zones", "exempt-lz"): testExemption("exempt-lz", "landing-zones", "asg-audit", "epac-root"),
	}
	deployed := map[string]*policy.Exemption{
		policy.AssignmentKey(lz, "exempt-lz"): deployedExemption("exempt-lz", lz, assignmentID),
	}

	set, err := newExemptionPlanner(t).plan(desired, deployed, nil, pctx)
	require.NoError(t, err)

	assert.Equal(t, 0, set.NumberOfChanges)
	assert.Equal(t, 1, set.NumberUnchanged)
	assert.Empty(t, set.Delete)
}

func TestExemptionPlanner_CategoryChangeUpdates(t *testing.T) {
	pctx := NewPlannerContext()
	assignmentID := registerAssignment(t, pctx, testRootScope, "asg-audit")

	lz := "/providers/Microsoft.Management/managementGroups/landing-zones"
	desired := testExemption("exempt-lz", "landing-zones", "asg-audit", "epac-root")
	desired.Properties.ExemptionCategory = "Mitigated"

	set, err := newExemptionPlanner(t).plan(
		map[string]*policy.Exemption{policy.AssignmentKey("landing-zones", "exempt-lz"): desired},
		map[string]*policy.Exemption{policy.AssignmentKey(lz, "exempt-lz"): deployedExemption("exempt-lz", lz, assignmentID)},
		nil,
		pctx,
	)
	require.NoError(t, err)

	assert.Contains(t, set.Update, "exempt-lz")
}

func TestExemptionPlanner_RetargetReplaces(t *testing.T) {
	pctx := NewPlannerContext()
	registerAssignment(t, pctx, testRootScope, "asg-new")

	lz := "/providers/Microsoft.Management/managementGroups/landing-zones"
	oldTarget := policy.AssignmentID(testRootScope, "asg-old")

	set, err := newExemptionPlanner(t).plan(
		map[string]*policy.Exemption{
			policy.AssignmentKey("landing-zones", "exempt-lz"): testExemption("exempt-lz", "landing-zones", "asg-new", "epac-root"),
		},
		map[string]*policy.Exemption{
			policy.AssignmentKey(lz, "exempt-lz"): deployedExemption("exempt-lz", lz, oldTarget),
		},
		nil,
		pctx,
	)
	require.NoError(t, err)

	assert.Contains(t, set.Replace, "exempt-lz")
}

func TestExemptionPlanner_DeployedOnly(t *testing.T) {
	lz := "/providers/Microsoft.Management/managementGroups/landing-zones"
	plannedTarget := policy.AssignmentID(testRootScope, "asg-kept")
	deletedTarget := policy.AssignmentID(testRootScope, "asg-deleted")
	ghostTarget := policy.AssignmentID(testRootScope, "asg-never")

	pctx := NewPlannerContext()
	registerAssignment(t, pctx, testRootScope, "asg-kept")

	deployed := map[string]*policy.Exemption{
		// Target still planned: the exemption was withdrawn, delete it.
		policy.AssignmentKey(lz, "withdrawn"): deployedExemption("withdrawn", lz, plannedTarget),
		// Target was deployed but is being deleted this run: orphan.
		policy.AssignmentKey(lz, "orphaned"): deployedExemption("orphaned", lz, deletedTarget),
		// Target never existed: stale garbage, delete it.
		policy.AssignmentKey(lz, "stale"): deployedExemption("stale", lz, ghostTarget),
	}
	deployedAssignments := map[string]*policy.Assignment{
		policy.AssignmentKey(testRootScope, "asg-deleted"): {
			ID:    deletedTarget,
			Name:  "asg-deleted",
			Scope: testRootScope,
		},
	}

	set, err := newExemptionPlanner(t).plan(map[string]*policy.Exemption{}, deployed, deployedAssignments, pctx)
	require.NoError(t, err)

	assert.Contains(t, set.Delete, "withdrawn")
	assert.Contains(t, set.Delete, "stale")
	assert.NotContains(t, set.Delete, "orphaned")
	assert.Equal(t, 1, set.NumberOfOrphans)
	assert.Equal(t, 2, set.NumberOfChanges)
}

func TestExemptionPlanner_OwnedOnlyKeepsForeignExemptions(t *testing.T) {
	lz := "/providers/Microsoft.Management/managementGroups/landing-zones"
	ghostTarget := policy.AssignmentID(testRootScope, "asg-never")

	deployed := map[string]*policy.Exemption{
		policy.AssignmentKey(lz, "foreign-exempt"): deployedExemption("foreign-exempt", lz, ghostTarget),
	}

	planner := newExemptionPlanner(t)
	planner.strategy = config.StrategyOwnedOnly

	set, err := planner.plan(map[string]*policy.Exemption{}, deployed, nil, NewPlannerContext())
	require.NoError(t, err)

	assert.Empty(t, set.Delete)
	assert.Zero(t, set.NumberOfOrphans)
	assert.Equal(t, 1, set.Counts().Excluded)
}

func TestExemptionPlanner_ExcludedScopeKeepsDeployed(t *testing.T) {
	lz := "/providers/Microsoft.Management/managementGroups/landing-zones"
	ghostTarget := policy.AssignmentID(testRootScope, "asg-never")

	deployed := map[string]*policy.Exemption{
		policy.AssignmentKey(lz, "sandbox-exempt"): deployedExemption("sandbox-exempt", lz, ghostTarget),
	}

	planner := newExemptionPlanner(t)
	planner.excludedScopes = []string{lz}

	set, err := planner.plan(map[string]*policy.Exemption{}, deployed, nil, NewPlannerContext())
	require.NoError(t, err)

	assert.Empty(t, set.Delete)
	assert.Zero(t, set.NumberOfOrphans)
	assert.Equal(t, 1, set.Counts().Excluded)
}

func TestExemptionPlanner_TargetByRawID(t *testing.T) {
	pctx := NewPlannerContext()
	assignmentID := registerAssignment(t, pctx, testRootScope, "asg-audit")

	exemption := testExemption("exempt-lz", "landing-zones", "", "")
	exemption.Properties.PolicyAssignmentID = assignmentID

	set, err := newExemptionPlanner(t).plan(
		map[string]*policy.Exemption{policy.AssignmentKey("landing-zones", "exempt-lz"): exemption},
		map[string]*policy.Exemption{},
		nil,
		pctx,
	)
	require.NoError(t, err)

	assert.Contains(t, set.New, "exempt-lz")
	assert.Zero(t, set.NumberOfOrphans)
}
