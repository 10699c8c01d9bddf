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

package inventory

import (
	"context"
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/spiderman0016/enterprise-azure-policy-as-code/pkg/policy"
)

// SnapshotProvider reads a previously exported snapshot file (JSON or
// YAML). This is the offline collaborator used by CI pipelines that export
// deployed state in a separate stage and by tests.
type SnapshotProvider struct {
	Path string
}

var _ Provider = (*SnapshotProvider)(nil)

func NewSnapshotProvider(path string) *SnapshotProvider {
	return &SnapshotProvider{Path: path}
}

func (p *SnapshotProvider) Fetch(_ context.Context) (*Deployed, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %q: %w", p.Path, err)
	}

	var deployed Deployed
	if err := yaml.Unmarshal(data, &deployed); err != nil {
		return nil, fmt.Errorf("parsing snapshot %q: %w", p.Path, err)
	}

	normalize(&deployed)
	return &deployed, nil
}

// normalize fills map keys and resource IDs that snapshot exporters are
// allowed to omit, so the planner always sees fully keyed entities.
func normalize(d *Deployed) {
	if d.PolicyDefinitions == nil {
		d.PolicyDefinitions = map[string]*policy.Definition{}
	}
	if d.PolicySetDefinitions == nil {
		d.PolicySetDefinitions = map[string]*policy.SetDefinition{}
	}
	if d.PolicyAssignments == nil {
		d.PolicyAssignments = map[string]*policy.Assignment{}
	}
	if d.PolicyExemptions == nil {
		d.PolicyExemptions = map[string]*policy.Exemption{}
	}

	for name, def := range d.PolicyDefinitions {
		if def.Name == "" {
			def.Name = name
		}
	}
	for name, set := range d.PolicySetDefinitions {
		if set.Name == "" {
			set.Name = name
		}
	}
	for _, assignment := range d.PolicyAssignments {
		if assignment.ID == "" && assignment.Scope != "" {
			assignment.ID = policy.AssignmentID(assignment.Scope, assignment.Name)
		}
	}
	for _, exemption := range d.PolicyExemptions {
		if exemption.ID == "" && exemption.Scope != "" {
			exemption.ID = policy.ExemptionID(exemption.Scope, exemption.Name)
		}
	}
}
