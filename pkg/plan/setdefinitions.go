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
	"strconv"
	"strings"

	"github.com/go-logr/logr"

	"github.com/spiderman0016/enterprise-azure-policy-as-code/pkg/compare"
	"github.com/spiderman0016/enterprise-azure-policy-as-code/pkg/config"
	"github.com/spiderman0016/enterprise-azure-policy-as-code/pkg/policy"
)

const cascadeReason = "referenced definition requires replacement"

// setDefinitionPlanner is the second stage. It resolves every member
// reference through the identity registry seeded by the definition stage,
// cascades replacements and extends the combined namespace with set names.
type setDefinitionPlanner struct {
	rootScope string
	strategy  string
	excluded  []string
	log       logr.Logger
}

func (p *setDefinitionPlanner) plan(
	desired map[string]*policy.SetDefinition,
	deployed map[string]*policy.SetDefinition,
	pctx *PlannerContext,
	issues *[]Issue,
) (*PlanSet[*policy.SetDefinition], error) {
	set := NewPlanSet[*policy.SetDefinition]()

	for _, name := range sortedKeys(desired) {
		desiredSet := desired[name]

		resolved, cascade, err := p.resolveMembers(desiredSet, pctx)
		if err != nil {
			// A broken member reference skips this set only; it is reported,
			// never silently dropped, and the rest of the plan proceeds.
			*issues = append(*issues, Issue{Kind: "policySetDefinition", Err: err})
			p.log.Error(err, "set definition skipped")
			continue
		}

		roleIDs := memberRoleIDs(desiredSet, pctx)
		if err := pctx.SetRoleIDs(name, roleIDs); err != nil {
			return nil, err
		}

		current, exists := deployed[name]
		if !exists {
			if err := pctx.RegisterDefinition(name, policy.SetDefinitionID(p.rootScope, name)); err != nil {
				return nil, err
			}
			set.Add(name, ClassificationNew, desiredSet)
			continue
		}

		report := compareSetDefinition(current, desiredSet, resolved)
		id := current.ID
		if id == "" {
			id = policy.SetDefinitionID(p.rootScope, name)
		}
		if err := pctx.RegisterDefinition(name, id); err != nil {
			return nil, err
		}

		switch {
		case report.RequiresReplace():
			pctx.MarkReplaced(name)
			set.Add(name, ClassificationReplace, desiredSet, report.Paths()...)
		case report.HasChanges():
			set.Add(name, ClassificationUpdate, desiredSet, report.Paths()...)
		case cascade:
			// The set itself is unchanged, but a member needs destructive
			// replacement; the set must be re-pointed afterwards.
			set.Add(name, ClassificationUpdate, desiredSet, cascadeReason)
		default:
			set.Add(name, ClassificationUnchanged, desiredSet)
		}
	}

	for _, name := range sortedKeys(deployed) {
		if _, isDesired := desired[name]; isDesired {
			continue
		}
		current := deployed[name]
		id := current.ID
		if id == "" {
			id = policy.SetDefinitionID(p.rootScope, name)
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

// resolveMembers resolves every member reference to a resource ID and
// reports whether any member is flagged for replacement.
func (p *setDefinitionPlanner) resolveMembers(set *policy.SetDefinition, pctx *PlannerContext) (map[int]string, bool, error) {
	resolved := make(map[int]string, len(set.Properties.PolicyDefinitions))
	cascade := false

	for i, ref := range set.Properties.PolicyDefinitions {
		if ref.PolicyDefinitionName == "" {
			if ref.PolicyDefinitionID == "" {
				return nil, false, unresolvable("policySetDefinition", set.Name, "policyDefinitions["+ref.ReferenceID+"]")
			}
			// Fully qualified reference, e.g. a builtin definition.
			resolved[i] = ref.PolicyDefinitionID
			continue
		}

		id, ok := pctx.LookupDefinition(ref.PolicyDefinitionName)
		if !ok {
			return nil, false, unresolvable("policySetDefinition", set.Name, ref.PolicyDefinitionName)
		}
		resolved[i] = id
		if pctx.IsReplaced(ref.PolicyDefinitionName) {
			cascade = true
		}
	}

	return resolved, cascade, nil
}

// memberRoleIDs unions the required role IDs over all named members, so an
// assignment targeting the set knows the full role surface.
func memberRoleIDs(set *policy.SetDefinition, pctx *PlannerContext) []string {
	seen := map[string]struct{}{}
	var ids []string
	for _, ref := range set.Properties.PolicyDefinitions {
		if ref.PolicyDefinitionName == "" {
			continue
		}
		for _, id := range pctx.RoleIDs(ref.PolicyDefinitionName) {
			key := strings.ToLower(id)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// compareSetDefinition diffs a desired set against its deployed
// counterpart. The parameter schema is replace-grade; the member list and
// display fields patch in place.
func compareSetDefinition(deployed, desired *policy.SetDefinition, resolvedMembers map[int]string) *compare.Report {
	r := &compare.Report{}

	compareParameterSchemas(r, "parameters", deployed.Properties.Parameters, desired.Properties.Parameters)

	compare.Strings(r, compare.GradeUpdate, "displayName", deployed.Properties.DisplayName, desired.Properties.DisplayName)
	compare.Strings(r, compare.GradeUpdate, "description", deployed.Properties.Description, desired.Properties.Description)
	compare.Value(r, compare.GradeUpdate, "metadata",
		compare.ScrubMetadata(deployed.Properties.Metadata),
		compare.ScrubMetadata(desired.Properties.Metadata))

	compareMembers(r, deployed.Properties.PolicyDefinitions, desired.Properties.PolicyDefinitions, resolvedMembers)
	compareGroups(r, deployed.Properties.PolicyDefinitionGroups, desired.Properties.PolicyDefinitionGroups)

	return r
}

// compareMembers compares member lists by resolved definition ID, parameter
// bindings and group membership. Order is not significant to the service.
func compareMembers(r *compare.Report, deployed []policy.DefinitionReference, desired []policy.DefinitionReference, resolvedMembers map[int]string) {
	type member struct {
		params map[string]any
		groups []string
	}

	deployedByID := make(map[string]member, len(deployed))
	for _, ref := range deployed {
		deployedByID[policy.NormalizeID(ref.PolicyDefinitionID)] = member{
			params: ref.Parameters,
			groups: ref.GroupNames,
		}
	}

	seen := make(map[string]struct{}, len(desired))
	for i, ref := range desired {
		id := policy.NormalizeID(resolvedMembers[i])
		seen[id] = struct{}{}

		current, exists := deployedByID[id]
		if !exists {
			r.AddUpdate("policyDefinitions["+memberLabel(ref, i)+"]", "", "added")
			continue
		}
		compare.Value(r, compare.GradeUpdate, "policyDefinitions["+memberLabel(ref, i)+"].parameters", current.params, ref.Parameters)
		if !sameStringSet(current.groups, ref.GroupNames) {
			r.AddUpdate("policyDefinitions["+memberLabel(ref, i)+"].groupNames", "", "")
		}
	}

	for _, ref := range deployed {
		if _, kept := seen[policy.NormalizeID(ref.PolicyDefinitionID)]; !kept {
			r.AddUpdate("policyDefinitions["+ref.ReferenceID+"]", "removed", "")
		}
	}
}

func compareGroups(r *compare.Report, deployed, desired []policy.DefinitionGroup) {
	toAny := func(groups []policy.DefinitionGroup) []any {
		out := make([]any, 0, len(groups))
		for _, g := range groups {
			out = append(out, map[string]any{
				"name":        g.Name,
				"displayName": g.DisplayName,
				"category":    g.Category,
			})
		}
		sort.Slice(out, func(i, j int) bool {
			return out[i].(map[string]any)["name"].(string) < out[j].(map[string]any)["name"].(string)
		})
		return out
	}
	compare.Value(r, compare.GradeUpdate, "policyDefinitionGroups", toAny(deployed), toAny(desired))
}

func memberLabel(ref policy.DefinitionReference, index int) string {
	if ref.ReferenceID != "" {
		return ref.ReferenceID
	}
	if ref.PolicyDefinitionName != "" {
		return ref.PolicyDefinitionName
	}
	return strconv.Itoa(index)
}

func sameStringSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[strings.ToLower(s)] = struct{}{}
	}
	for _, s := range b {
		if _, ok := set[strings.ToLower(s)]; !ok {
			return false
		}
	}
	return true
}
