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
)

// definitionPlanner is the first pipeline stage. Besides classifying
// definitions it seeds three registries every later stage depends on:
// the combined identity namespace, the replacement set and the required
// role IDs per definition.
type definitionPlanner struct {
	rootScope string
	strategy  string
	excluded  []string
	log       logr.Logger
}

func (p *definitionPlanner) plan(
	desired map[string]*policy.Definition,
	deployed map[string]*policy.Definition,
	pctx *PlannerContext,
) (*PlanSet[*policy.Definition], error) {
	set := NewPlanSet[*policy.Definition]()

	for _, name := range sortedKeys(desired) {
		def := desired[name]
		normalizeDefinition(def)

		if err := pctx.SetRoleIDs(name, policy.RoleDefinitionIDs(def.Properties.PolicyRule)); err != nil {
			return nil, err
		}

		current, exists := deployed[name]
		if !exists {
			if err := pctx.RegisterDefinition(name, policy.DefinitionID(p.rootScope, name)); err != nil {
				return nil, err
			}
			set.Add(name, ClassificationNew, def)
			p.log.V(1).Info("definition planned", "name", name, "classification", ClassificationNew)
			continue
		}

		report := compareDefinition(current, def)
		id := current.ID
		if id == "" {
			id = policy.DefinitionID(p.rootScope, name)
		}
		if err := pctx.RegisterDefinition(name, id); err != nil {
			return nil, err
		}

		switch {
		case report.RequiresReplace():
			pctx.MarkReplaced(name)
			set.Add(name, ClassificationReplace, def, report.Paths()...)
		case report.HasChanges():
			set.Add(name, ClassificationUpdate, def, report.Paths()...)
		default:
			set.Add(name, ClassificationUnchanged, def)
		}
		if report.HasChanges() {
			p.log.V(1).Info("definition drifted", "name", name, "changes", report.String())
		}
	}

	// Deployed-only definitions. They still register their identity: a set
	// may legitimately reference a definition that is on its way out.
	for _, name := range sortedKeys(deployed) {
		if _, isDesired := desired[name]; isDesired {
			continue
		}
		current := deployed[name]
		id := current.ID
		if id == "" {
			id = policy.DefinitionID(p.rootScope, name)
		}
		if err := pctx.RegisterDefinition(name, id); err != nil {
			return nil, err
		}

		if p.strategy == config.StrategyOwnedOnly || config.Excluded(p.excluded, name) {
			set.Add(name, ClassificationExcluded, current)
			continue
		}
		set.Add(name, ClassificationDelete, current)
	}

	return set, nil
}

// normalizeDefinition fills service-side defaults on authored definitions
// so the comparison sees what the service would store.
func normalizeDefinition(def *policy.Definition) {
	if def.Properties.Mode == "" {
		def.Properties.Mode = "All"
	}
}

// compareDefinition diffs a desired definition against its deployed
// counterpart. Mode, the rule body and the parameter schema are
// replace-grade; display fields, metadata and parameter defaults are
// update-grade.
func compareDefinition(deployed, desired *policy.Definition) *compare.Report {
	r := &compare.Report{}

	compare.Strings(r, compare.GradeReplace, "mode", deployed.Properties.Mode, desired.Properties.Mode)
	compare.Value(r, compare.GradeReplace, "policyRule", deployed.Properties.PolicyRule, desired.Properties.PolicyRule)
	compareParameterSchemas(r, "parameters", deployed.Properties.Parameters, desired.Properties.Parameters)

	compare.Strings(r, compare.GradeUpdate, "displayName", deployed.Properties.DisplayName, desired.Properties.DisplayName)
	compare.Strings(r, compare.GradeUpdate, "description", deployed.Properties.Description, desired.Properties.Description)
	compare.Value(r, compare.GradeUpdate, "metadata",
		compare.ScrubMetadata(deployed.Properties.Metadata),
		compare.ScrubMetadata(desired.Properties.Metadata))

	return r
}

// compareParameterSchemas diffs two parameter schemas. Removing a parameter
// or changing its type or allowed values breaks existing references and is
// replace-grade; added parameters, defaults and metadata patch in place.
func compareParameterSchemas(r *compare.Report, path string, deployed, desired map[string]policy.ParameterDefinition) {
	for name, old := range deployed {
		paramPath := path + "." + name
		updated, exists := desired[name]
		if !exists {
			r.AddReplace(paramPath, "", "")
			continue
		}
		compare.Strings(r, compare.GradeReplace, paramPath+".type", old.Type, updated.Type)
		compare.Value(r, compare.GradeReplace, paramPath+".allowedValues", old.AllowedValues, updated.AllowedValues)
		compare.Value(r, compare.GradeUpdate, paramPath+".defaultValue", old.DefaultValue, updated.DefaultValue)
		compare.Value(r, compare.GradeUpdate, paramPath+".metadata", old.Metadata, updated.Metadata)
	}
	for name := range desired {
		if _, exists := deployed[name]; !exists {
			r.AddUpdate(path+"."+name, "", "")
		}
	}
}
