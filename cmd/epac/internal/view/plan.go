package view

import (
	"encoding/json"
	"time"

	"github.com/fatih/color"
)

type PlanView interface {
	Render(result PlanResult)
}

// PlanResult is the view model for a completed planning run.
type PlanResult struct {
	PacSelector string
	Strategy    string

	Kinds []KindResult

	Orphans           int
	ExemptionsManaged bool

	TotalChanges int
	RoleAdded    int
	RoleRemoved  int

	PolicyPlanWritten bool
	RolePlanWritten   bool
	PolicyPlanPath    string
	RolePlanPath      string

	Issues []IssueResult
}

// KindResult is one row of the per-kind summary.
type KindResult struct {
	Kind      string
	New       int
	Update    int
	Replace   int
	Delete    int
	Unchanged int
	Excluded  int
}

type IssueResult struct {
	Kind    string
	Message string
}

func (r PlanResult) HasIssues() bool {
	return len(r.Issues) > 0
}

// Human view implementation.

type planHumanView struct {
	*HumanView
}

func newPlanHumanView(hv *HumanView) *planHumanView {
	return &planHumanView{HumanView: hv}
}

func (v *planHumanView) Render(result PlanResult) {
	heading := color.RGB(50, 108, 229).SprintFunc()
	warn := color.YellowString
	bad := color.RGB(229, 50, 50).SprintFunc()

	v.Println(heading("Deployment plan"), "for", result.PacSelector, "(strategy:", result.Strategy+")")
	v.Printf("%-24s %5s %7s %8s %7s %10s %9s\n", "", "new", "update", "replace", "delete", "unchanged", "excluded")
	for _, k := range result.Kinds {
		v.Printf("%-24s %5d %7d %8d %7d %10d %9d\n",
			k.Kind, k.New, k.Update, k.Replace, k.Delete, k.Unchanged, k.Excluded)
	}
	v.Printf("%-24s %5d added, %d removed\n", "roleAssignments", result.RoleAdded, result.RoleRemoved)

	if !result.ExemptionsManaged {
		v.Println(warn("Warning!"), "exemptions are not managed in this environment; stage skipped.")
	}
	if result.Orphans > 0 {
		v.Println(warn("Warning!"), result.Orphans, "orphaned exemption(s) need operator attention.")
	}
	for _, issue := range result.Issues {
		v.Println(bad("Error!"), issue.Kind+":", issue.Message)
	}

	if result.PolicyPlanWritten {
		v.Println("Policy plan written to", result.PolicyPlanPath)
	} else {
		v.Println("No policy changes, no policy plan file.")
	}
	if result.RolePlanWritten {
		v.Println("Role plan written to", result.RolePlanPath)
	} else {
		v.Println("No role changes, no role plan file.")
	}
}

// JSON view implementation.

type planJSONView struct {
	*JSONView
}

func newPlanJSONView(jv *JSONView) *planJSONView {
	return &planJSONView{JSONView: jv}
}

type planJSONResult struct {
	Type              string        `json:"type"`
	Timestamp         time.Time     `json:"timestamp"`
	PacSelector       string        `json:"pacSelector"`
	Strategy          string        `json:"strategy"`
	Kinds             []KindResult  `json:"kinds"`
	Orphans           int           `json:"orphans"`
	ExemptionsManaged bool          `json:"exemptionsManaged"`
	TotalChanges      int           `json:"totalChanges"`
	RoleAdded         int           `json:"roleAdded"`
	RoleRemoved       int           `json:"roleRemoved"`
	PolicyPlanWritten bool          `json:"policyPlanWritten"`
	RolePlanWritten   bool          `json:"rolePlanWritten"`
	Issues            []IssueResult `json:"issues,omitempty"`
}

func (v *planJSONView) Render(result PlanResult) {
	out := planJSONResult{
		Type:              "plan",
		Timestamp:         time.Now(),
		PacSelector:       result.PacSelector,
		Strategy:          result.Strategy,
		Kinds:             result.Kinds,
		Orphans:           result.Orphans,
		ExemptionsManaged: result.ExemptionsManaged,
		TotalChanges:      result.TotalChanges,
		RoleAdded:         result.RoleAdded,
		RoleRemoved:       result.RoleRemoved,
		PolicyPlanWritten: result.PolicyPlanWritten,
		RolePlanWritten:   result.RolePlanWritten,
		Issues:            result.Issues,
	}

	if data, err := json.Marshal(out); err == nil {
		v.Println(string(data))
	}
}

func NewPlanView(v Viewer) PlanView {
	switch vt := v.(type) {
	case *HumanView:
		return newPlanHumanView(vt)
	case *JSONView:
		return newPlanJSONView(vt)
	default:
		panic("unknown view type")
	}
}
