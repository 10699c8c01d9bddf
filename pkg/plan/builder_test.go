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
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spiderman0016/enterprise-azure-policy-as-code/pkg/config"
	"github.com/spiderman0016/enterprise-azure-policy-as-code/pkg/inventory"
	"github.com/spiderman0016/enterprise-azure-policy-as-code/pkg/policy"
	"github.com/spiderman0016/enterprise-azure-policy-as-code/pkg/scopes"
)

type staticInventory struct {
	deployed *inventory.Deployed
}

func (s staticInventory) Fetch(_ context.Context) (*inventory.Deployed, error) {
	return s.deployed, nil
}

func testEnvironment() *config.Environment {
	return &config.Environment{
		PacSelector:         "tenant-prod",
		TenantID:            "00000000-0000-0000-0000-000000000000",
		DeploymentRootScope: testRootScope,
	}
}

func testBuilder(deployed *inventory.Deployed) *Builder {
	if deployed.Scopes == nil {
		deployed.Scopes = []scopes.Node{
			{ID: testRootScope, Name: "epac-root"},
			{ID: "/providers/Microsoft.Management/managementGroups/landing-zones", Name: "landing-zones", ParentID: testRootScope},
		}
	}
	return &Builder{
		Environment: testEnvironment(),
		OwnerID:     "epac-owner",
		Inventory:   staticInventory{deployed: deployed},
		Now:         func() time.Time { return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC) },
		Log:         logr.Discard(),
	}
}

func TestBuilder_EmptyToEmpty(t *testing.T) {
	result, err := testBuilder(inventory.Empty()).Build(context.Background(), &Desired{ExemptionsManaged: true})
	require.NoError(t, err)

	assert.Equal(t, 0, result.Policy.TotalChanges())
	assert.Equal(t, 0, result.Roles.RoleAssignments.NumberOfChanges)
	assert.Equal(t, "epac-owner", result.Policy.PacOwnerID)
	assert.Equal(t, "tenant-prod", result.Summary.PacSelector)
	assert.Equal(t, config.StrategyFull, result.Summary.Strategy)
	assert.True(t, result.Summary.ExemptionsManaged)
}

func TestBuilder_ReplaceCascadesThroughPipeline(t *testing.T) {
	// Definition A changes its mode: A replace, the set S referencing it
	// updates, the assignment targeting A directly updates too.
	deployed := inventory.Empty()
	deployed.PolicyDefinitions["A"] = deployedDefinition("A", "All")
	deployed.PolicySetDefinitions["S"] = deployedSetDefinition("S", "A")
	deployed.PolicyAssignments[policy.AssignmentKey(testRootScope, "asg-a")] = deployedAssignment(
		"asg-a", testRootScope, policy.DefinitionID(testRootScope, "A"))

	desired := &Desired{
		Definitions:    map[string]*policy.Definition{"A": testDefinition("A", "Indexed")},
		SetDefinitions: map[string]*policy.SetDefinition{"S": testSetDefinition("S", "A")},
		Assignments: map[string]*policy.Assignment{
			policy.AssignmentKey("epac-root", "asg-a"): testAssignment("asg-a", "epac-root", "A"),
		},
		ExemptionsManaged: true,
	}

	result, err := testBuilder(deployed).Build(context.Background(), desired)
	require.NoError(t, err)
	require.Empty(t, result.Summary.Issues)

	assert.Contains(t, result.Policy.PolicyDefinitions.Replace, "A")
	assert.Contains(t, result.Policy.PolicySetDefinitions.Update, "S")
	assert.Contains(t, result.Policy.Assignments.Update, "asg-a")
	assert.Equal(t, 3, result.Summary.TotalChanges)
}

func TestBuilder_Idempotence(t *testing.T) {
	// Deployed state that exactly mirrors the desired state plans to zero
	// changes.
	deployed := inventory.Empty()
	deployed.PolicyDefinitions["A"] = deployedDefinition("A", "All")
	deployed.PolicySetDefinitions["S"] = deployedSetDefinition("S", "A")

	desired := &Desired{
		Definitions:       map[string]*policy.Definition{"A": testDefinition("A", "All")},
		SetDefinitions:    map[string]*policy.SetDefinition{"S": testSetDefinition("S", "A")},
		ExemptionsManaged: true,
	}

	result, err := testBuilder(deployed).Build(context.Background(), desired)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Summary.TotalChanges)
	assert.Equal(t, 0, result.Summary.RoleChanges)
	assert.Equal(t, 2, result.Summary.Definitions.Unchanged+result.Summary.SetDefinitions.Unchanged)
}

func TestBuilder_ExemptionsUnmanagedSkipsStage(t *testing.T) {
	lz := "/providers/Microsoft.Management/managementGroups/landing-zones"
	deployed := inventory.Empty()
	deployed.PolicyExemptions[policy.AssignmentKey(lz, "leftover")] = deployedExemption(
		"leftover", lz, policy.AssignmentID(testRootScope, "asg-gone"))

	result, err := testBuilder(deployed).Build(context.Background(), &Desired{ExemptionsManaged: false})
	require.NoError(t, err)

	// Skipped stage: the deployed exemption is neither deleted nor counted.
	assert.Empty(t, result.Policy.Exemptions.Delete)
	assert.Zero(t, result.Policy.Exemptions.NumberOfOrphans)
	assert.False(t, result.Summary.ExemptionsManaged)
}

func TestBuilder_DesiredDeletedAssignmentOrphansExemption(t *testing.T) {
	// Assignment X is deployed but no longer desired; exemption E targeting
	// X is still authored. X is deleted, E becomes an orphan.
	lz := "/providers/Microsoft.Management/managementGroups/landing-zones"
	assignmentX := policy.AssignmentID(testRootScope, "asg-x")

	deployed := inventory.Empty()
	deployed.PolicyAssignments[policy.AssignmentKey(testRootScope, "asg-x")] = &policy.Assignment{
		ID:    assignmentX,
		Name:  "asg-x",
		Scope: testRootScope,
		Properties: policy.AssignmentProperties{
			PolicyDefinitionID: policy.DefinitionID(testRootScope, "audit"),
			EnforcementMode:    "Default",
		},
	}
	deployed.PolicyExemptions[policy.AssignmentKey(lz, "exempt-x")] = deployedExemption("exempt-x", lz, assignmentX)

	desired := &Desired{
		Exemptions: map[string]*policy.Exemption{
			policy.AssignmentKey("landing-zones", "exempt-x"): testExemption("exempt-x", "landing-zones", "asg-x", "epac-root"),
		},
		ExemptionsManaged: true,
	}

	result, err := testBuilder(deployed).Build(context.Background(), desired)
	require.NoError(t, err)

	assert.Contains(t, result.Policy.Assignments.Delete, "asg-x")
	assert.Equal(t, 1, result.Policy.Exemptions.NumberOfOrphans)
	assert.Empty(t, result.Policy.Exemptions.Records())
	assert.Equal(t, 1, result.Summary.NumberOfOrphans)
}

func TestBuilder_CollectsIssuesWithoutFailing(t *testing.T) {
	desired := &Desired{
		Assignments: map[string]*policy.Assignment{
			policy.AssignmentKey("epac-root", "asg-broken"): testAssignment("asg-broken", "epac-root", "no-such-definition"),
		},
		ExemptionsManaged: true,
	}

	result, err := testBuilder(inventory.Empty()).Build(context.Background(), desired)
	require.NoError(t, err)

	require.Len(t, result.Summary.Issues, 1)
	assert.Equal(t, "policyAssignment", result.Summary.Issues[0].Kind)
	assert.Equal(t, 0, result.Summary.TotalChanges)
}
