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

// Package inventory defines the deployed-state collaborator contract. The
// planner consumes a fully materialized snapshot of what is deployed; how
// the snapshot is produced (live enumeration, export files) is not its
// concern and never observed partially.
package inventory

import (
	"context"

	"github.com/spiderman0016/enterprise-azure-policy-as-code/pkg/policy"
	"github.com/spiderman0016/enterprise-azure-policy-as-code/pkg/scopes"
)

// Deployed is one consistent point-in-time snapshot of the governance
// resources in an environment, keyed by normalized identity: definitions
// and set definitions by name, assignments and exemptions by scope+name.
type Deployed struct {
	PolicyDefinitions    map[string]*policy.Definition    `json:"policyDefinitions,omitempty"`
	PolicySetDefinitions map[string]*policy.SetDefinition `json:"policySetDefinitions,omitempty"`
	PolicyAssignments    map[string]*policy.Assignment    `json:"policyAssignments,omitempty"`
	PolicyExemptions     map[string]*policy.Exemption     `json:"policyExemptions,omitempty"`
	RoleAssignments      []policy.RoleAssignment          `json:"roleAssignments,omitempty"`

	// Scopes is the management hierarchy visible at snapshot time.
	Scopes []scopes.Node `json:"scopes,omitempty"`
}

// Empty returns a snapshot with all maps allocated. Useful as a base for
// environments that have nothing deployed yet.
func Empty() *Deployed {
	return &Deployed{
		PolicyDefinitions:    map[string]*policy.Definition{},
		PolicySetDefinitions: map[string]*policy.SetDefinition{},
		PolicyAssignments:    map[string]*policy.Assignment{},
		PolicyExemptions:     map[string]*policy.Exemption{},
	}
}

// Provider supplies the deployed snapshot. Implementations may parallelize
// internally (across scopes, resource kinds) but must deliver a single
// consistent snapshot; retries and backoff live behind this interface.
type Provider interface {
	Fetch(ctx context.Context) (*Deployed, error)
}
