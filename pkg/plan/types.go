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

// Package plan is the reconciliation core: it diffs desired governance
// state against a deployed snapshot and produces dependency-ordered
// deployment plans. Planning runs as a strictly ordered pipeline
// (definitions, set definitions, assignments, exemptions) where each stage
// reads registries populated by the stages before it.
package plan

import (
	"sort"
	"time"

	"github.com/spiderman0016/enterprise-azure-policy-as-code/pkg/policy"
)

// Classification is the single bucket every planned resource lands in.
type Classification string

const (
	ClassificationNew       Classification = "new"
	ClassificationUpdate    Classification = "update"
	ClassificationReplace   Classification = "replace"
	ClassificationDelete    Classification = "delete"
	ClassificationUnchanged Classification = "unchanged"
	// ClassificationExcluded marks deployed-only resources the desired
	// state strategy or exclusion rules protect from deletion. They are
	// counted but never part of a plan artifact.
	ClassificationExcluded Classification = "excluded"
)

// Record wraps one planned resource with its classification and the field
// paths that caused it. Records feed logging and tests; artifacts only
// carry the entities.
type Record[E any] struct {
	Name           string
	Classification Classification
	Entity         E
	Reasons        []string
}

// PlanSet is the per-kind slice of a deployment plan, in the artifact
// shape: one map per destructive classification plus counters.
type PlanSet[E any] struct {
	New     map[string]E `json:"new"`
	Update  map[string]E `json:"update"`
	Replace map[string]E `json:"replace"`
	Delete  map[string]E `json:"delete"`

	NumberOfChanges int `json:"numberOfChanges"`
	NumberUnchanged int `json:"numberUnchanged"`

	records []Record[E]
}

func NewPlanSet[E any]() *PlanSet[E] {
	return &PlanSet[E]{
		New:     map[string]E{},
		Update:  map[string]E{},
		Replace: map[string]E{},
		Delete:  map[string]E{},
	}
}

// Add places a resource in exactly one classification bucket and updates
// the counters. Unchanged and excluded resources are counted, not stored.
func (s *PlanSet[E]) Add(name string, c Classification, entity E, reasons ...string) {
	s.records = append(s.records, Record[E]{
		Name:           name,
		Classification: c,
		Entity:         entity,
		Reasons:        reasons,
	})

	switch c {
	case ClassificationNew:
		s.New[name] = entity
	case ClassificationUpdate:
		s.Update[name] = entity
	case ClassificationReplace:
		s.Replace[name] = entity
	case ClassificationDelete:
		s.Delete[name] = entity
	case ClassificationUnchanged:
		s.NumberUnchanged++
		return
	case ClassificationExcluded:
		return
	}
	s.NumberOfChanges++
}

// Records returns all records in insertion order.
func (s *PlanSet[E]) Records() []Record[E] {
	return s.records
}

// Counts returns per-classification counts for the summary.
func (s *PlanSet[E]) Counts() KindCounts {
	counts := KindCounts{
		New:       len(s.New),
		Update:    len(s.Update),
		Replace:   len(s.Replace),
		Delete:    len(s.Delete),
		Unchanged: s.NumberUnchanged,
	}
	for _, r := range s.records {
		if r.Classification == ClassificationExcluded {
			counts.Excluded++
		}
	}
	return counts
}

// ExemptionPlanSet extends the plan set with the orphan counter.
type ExemptionPlanSet struct {
	PlanSet[*policy.Exemption]
	NumberOfOrphans int `json:"numberOfOrphans"`
}

func NewExemptionPlanSet() *ExemptionPlanSet {
	return &ExemptionPlanSet{PlanSet: *NewPlanSet[*policy.Exemption]()}
}

// PolicyPlan is the resource plan artifact.
type PolicyPlan struct {
	CreatedOn  time.Time `json:"createdOn"`
	PacOwnerID string    `json:"pacOwnerId"`

	PolicyDefinitions    *PlanSet[*policy.Definition]    `json:"policyDefinitions"`
	PolicySetDefinitions *PlanSet[*policy.SetDefinition] `json:"policySetDefinitions"`
	Assignments          *PlanSet[*policy.Assignment]    `json:"assignments"`
	Exemptions           *ExemptionPlanSet               `json:"exemptions"`
}

// TotalChanges sums the changes across all four kinds.
func (p *PolicyPlan) TotalChanges() int {
	return p.PolicyDefinitions.NumberOfChanges +
		p.PolicySetDefinitions.NumberOfChanges +
		p.Assignments.NumberOfChanges +
		p.Exemptions.NumberOfChanges
}

// RoleDelta is the reconciled role assignment difference.
type RoleDelta struct {
	NumberOfChanges int                     `json:"numberOfChanges"`
	Added           []policy.RoleAssignment `json:"added"`
	Removed         []policy.RoleAssignment `json:"removed"`
}

func (d *RoleDelta) add(ra policy.RoleAssignment) {
	d.Added = append(d.Added, ra)
	d.NumberOfChanges++
}

func (d *RoleDelta) remove(ra policy.RoleAssignment) {
	d.Removed = append(d.Removed, ra)
	d.NumberOfChanges++
}

// RolePlan is the role plan artifact.
type RolePlan struct {
	CreatedOn       time.Time  `json:"createdOn"`
	PacOwnerID      string     `json:"pacOwnerId"`
	RoleAssignments *RoleDelta `json:"roleAssignments"`
}

// KindCounts is the per-kind summary block.
type KindCounts struct {
	New       int
	Update    int
	Replace   int
	Delete    int
	Unchanged int
	Excluded  int
}

// Issue is one collected local error (resolution or scope).
type Issue struct {
	Kind string
	Err  error
}

// Summary is what the run reports to the operator.
type Summary struct {
	PacSelector string
	Strategy    string

	Definitions    KindCounts
	SetDefinitions KindCounts
	Assignments    KindCounts
	Exemptions     KindCounts

	NumberOfOrphans   int
	ExemptionsManaged bool
	RoleChanges       int
	TotalChanges      int

	Issues []Issue
}

// sortedKeys returns the map keys in deterministic order. Planning must be
// reproducible: the same inputs yield byte-identical artifacts.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
