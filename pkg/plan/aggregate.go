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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Artifact file names inside the output folder.
const (
	PolicyPlanFile = "policy-plan.json"
	RolePlanFile   = "roles-plan.json"
)

// PersistResult reports what Persist did, per artifact. The two flags are
// independent: a run can produce policy changes with no role changes and
// the other way around.
type PersistResult struct {
	PolicyChanges bool
	RoleChanges   bool
	PolicyPath    string
	RolePath      string
}

// Persist conditionally writes both plan artifacts into the output folder.
// An artifact with changes is always (re)written; one without changes is
// removed if a stale copy exists. Nothing is written or removed before
// planning has fully completed — the caller only invokes Persist on a
// complete Result.
func Persist(outputDir string, result *Result) (*PersistResult, error) {
	pr := &PersistResult{
		PolicyPath: filepath.Join(outputDir, PolicyPlanFile),
		RolePath:   filepath.Join(outputDir, RolePlanFile),
	}

	var err error
	pr.PolicyChanges, err = persist(pr.PolicyPath, result.Policy.TotalChanges(), result.Policy)
	if err != nil {
		return nil, err
	}

	pr.RoleChanges, err = persist(pr.RolePath, result.Roles.RoleAssignments.NumberOfChanges, result.Roles)
	if err != nil {
		return nil, err
	}

	return pr, nil
}

func persist(path string, changes int, artifact any) (bool, error) {
	if changes == 0 {
		// No changes: make sure no stale artifact survives to be applied.
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return false, fmt.Errorf("removing stale plan %q: %w", path, err)
		}
		return false, nil
	}

	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return false, fmt.Errorf("encoding plan: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("creating output folder: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("writing plan %q: %w", path, err)
	}
	return true, nil
}
