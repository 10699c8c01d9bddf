// Copyright 2026 The Enterprise Azure Policy as Code Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package command

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/spiderman0016/enterprise-azure-policy-as-code/cmd/epac/internal/loader"
	"github.com/spiderman0016/enterprise-azure-policy-as-code/cmd/epac/internal/view"
	"github.com/spiderman0016/enterprise-azure-policy-as-code/pkg/config"
	"github.com/spiderman0016/enterprise-azure-policy-as-code/pkg/inventory"
	"github.com/spiderman0016/enterprise-azure-policy-as-code/pkg/plan"
)

// PlanOptions holds the options for the plan command.
type PlanOptions struct {
	PacSelector    string
	DefinitionsDir string
	OutputDir      string
	SnapshotFile   string
	Interactive    bool
	DevopsType     string
}

func NewPlanCommand(cli *CLI) *cobra.Command {
	var opts PlanOptions

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Build deployment plans for a governance environment",
		Long: Highlight("epac plan --pac-selector <env>") + "\n\n" +
			"Reconcile the authored desired state against the deployed state of\n" +
			"one environment and build the deployment plans.\n\n" +
			"Produces up to two artifacts in the output folder: a policy plan\n" +
			"(definitions, set definitions, assignments, exemptions) and a role\n" +
			"plan (role assignment additions and removals). An artifact is only\n" +
			"written when it contains changes; stale artifacts are removed.\n\n" +
			"Examples:\n" +
			"  # Plan the epac-dev environment\n" +
			"  epac plan --pac-selector epac-dev --snapshot deployed.json\n\n" +
			"  # Plan with a custom definitions folder, emitting ADO stage flags\n" +
			"  epac plan --pac-selector tenant --definitions ./Definitions \\\n" +
			"    --snapshot deployed.json --devops-type ado\n",
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunPlan(cmd.Context(), cli, opts, cmd.InOrStdin())
		},
	}

	cmd.Flags().StringVar(&opts.PacSelector, "pac-selector", "", "Name of the pac environment to plan")
	cmd.Flags().StringVar(&opts.DefinitionsDir, "definitions", "Definitions", "Path to the definitions folder")
	cmd.Flags().StringVar(&opts.OutputDir, "output", "Output", "Path to the output folder for plan artifacts")
	cmd.Flags().StringVar(&opts.SnapshotFile, "snapshot", "", "Path to the deployed-state snapshot file")
	cmd.Flags().BoolVar(&opts.Interactive, "interactive", false, "Ask for confirmation before writing plan artifacts")
	cmd.Flags().StringVar(&opts.DevopsType, "devops-type", "", "CI system for stage flag output. One of: (ado | github)")
	_ = cmd.MarkFlagRequired("pac-selector")
	_ = cmd.MarkFlagRequired("snapshot")

	return cmd
}

func RunPlan(ctx context.Context, cli *CLI, opts PlanOptions, stdin io.Reader) error {
	planView := view.NewPlanView(cli.Viewer)

	settings, err := config.Load(opts.DefinitionsDir)
	if err != nil {
		return err
	}
	environment, err := settings.Select(opts.PacSelector)
	if err != nil {
		return err
	}

	loaded, err := loader.Load(opts.DefinitionsDir, environment.PacSelector)
	if err != nil {
		return err
	}
	for _, fe := range loaded.FileErrors {
		cli.Logger().Warn("skipping unparsable file", "path", fe.Path, "error", fe.Err.Error())
	}

	// The planners log through logr at the verbosity the viewer was
	// configured with, so --debug and EPAC_LOG reach them too.
	builder := &plan.Builder{
		Environment: environment,
		OwnerID:     settings.PacOwnerID,
		Inventory:   inventory.NewSnapshotProvider(opts.SnapshotFile),
		Log:         logr.FromSlogHandler(view.SlogHandler(cli.Stream.Writer, cli.LogLevel())),
	}

	result, err := builder.Build(ctx, loaded.Desired)
	if err != nil {
		return err
	}

	if opts.Interactive && result.Summary.TotalChanges+result.Summary.RoleChanges > 0 {
		if !confirm(cli, stdin, fmt.Sprintf("Write deployment plans for %q?", environment.PacSelector)) {
			return errors.New("aborted")
		}
	}

	persisted, err := plan.Persist(opts.OutputDir, result)
	if err != nil {
		return err
	}

	planView.Render(planResult(result, persisted))

	// Local issues are reported in the summary, they never fail the run:
	// one bad reference must not block the rest of the plan.
	return emitStageFlags(opts.DevopsType, persisted)
}

// confirm reads a y/N answer from stdin.
func confirm(cli *CLI, stdin io.Reader, prompt string) bool {
	cli.Printf("%s [y/N]: ", prompt)
	scanner := bufio.NewScanner(stdin)
	if !scanner.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes"
}

// emitStageFlags writes the two stage flags in the CI system's native
// format. GitHub Actions expects them in the file named by GITHUB_OUTPUT;
// everything else goes to stdout.
func emitStageFlags(devopsType string, persisted *plan.PersistResult) error {
	var w io.Writer = os.Stdout
	if devopsType == "github" {
		if path := os.Getenv("GITHUB_OUTPUT"); path != "" {
			f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
			if err != nil {
				return fmt.Errorf("opening GITHUB_OUTPUT: %w", err)
			}
			defer f.Close()
			w = f
		}
	}

	sink, err := view.NewStageFlagSink(devopsType, w)
	if err != nil {
		return err
	}
	sink.Set(view.FlagDeployPolicyChanges, persisted.PolicyChanges)
	sink.Set(view.FlagDeployRoleChanges, persisted.RoleChanges)
	return nil
}

// planResult maps the run result into the view model.
func planResult(result *plan.Result, persisted *plan.PersistResult) view.PlanResult {
	kind := func(name string, c plan.KindCounts) view.KindResult {
		return view.KindResult{
			Kind:      name,
			New:       c.New,
			Update:    c.Update,
			Replace:   c.Replace,
			Delete:    c.Delete,
			Unchanged: c.Unchanged,
			Excluded:  c.Excluded,
		}
	}

	out := view.PlanResult{
		PacSelector: result.Summary.PacSelector,
		Strategy:    result.Summary.Strategy,
		Kinds: []view.KindResult{
			kind("policyDefinitions", result.Summary.Definitions),
			kind("policySetDefinitions", result.Summary.SetDefinitions),
			kind("policyAssignments", result.Summary.Assignments),
			kind("policyExemptions", result.Summary.Exemptions),
		},
		Orphans:           result.Summary.NumberOfOrphans,
		ExemptionsManaged: result.Summary.ExemptionsManaged,
		TotalChanges:      result.Summary.TotalChanges,
		RoleAdded:         len(result.Roles.RoleAssignments.Added),
		RoleRemoved:       len(result.Roles.RoleAssignments.Removed),
		PolicyPlanWritten: persisted.PolicyChanges,
		RolePlanWritten:   persisted.RoleChanges,
		PolicyPlanPath:    persisted.PolicyPath,
		RolePlanPath:      persisted.RolePath,
	}
	for _, issue := range result.Summary.Issues {
		out.Issues = append(out.Issues, view.IssueResult{Kind: issue.Kind, Message: issue.Err.Error()})
	}
	return out
}
