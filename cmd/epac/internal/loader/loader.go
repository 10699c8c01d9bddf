// Package loader reads the authored desired state from a definitions
// folder and materializes it for the planner. Folder layout:
//
//	<root>/global-settings.{json,jsonc,yaml,yml}
//	<root>/policyDefinitions/**            one definition per file
//	<root>/policySetDefinitions/**         one set definition per file
//	<root>/policyAssignments/**            one assignment per file
//	<root>/policyExemptions/<pacSelector>/**  one exemption per file
//
// Files may be JSON or YAML. Parse errors are returned per file so the
// caller can report all of them instead of stopping at the first.
package loader

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/spiderman0016/enterprise-azure-policy-as-code/pkg/plan"
	"github.com/spiderman0016/enterprise-azure-policy-as-code/pkg/policy"
)

// Subfolder names under the definitions root.
const (
	DefinitionsFolder    = "policyDefinitions"
	SetDefinitionsFolder = "policySetDefinitions"
	AssignmentsFolder    = "policyAssignments"
	ExemptionsFolder     = "policyExemptions"
)

// FileError is one file that could not be parsed.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Result is the loaded desired state plus the per-file parse failures.
type Result struct {
	Desired    *plan.Desired
	FileErrors []FileError
}

// Load reads the whole desired state for one environment. A missing
// exemptions folder for the selector is not an error: exemption management
// degrades to unmanaged and the planner skips the stage.
func Load(root, pacSelector string) (*Result, error) {
	result := &Result{
		Desired: &plan.Desired{
			Definitions:    map[string]*policy.Definition{},
			SetDefinitions: map[string]*policy.SetDefinition{},
			Assignments:    map[string]*policy.Assignment{},
			Exemptions:     map[string]*policy.Exemption{},
		},
	}

	if err := loadKind(filepath.Join(root, DefinitionsFolder), result, func(data []byte) error {
		var def policy.Definition
		if err := yaml.Unmarshal(data, &def); err != nil {
			return err
		}
		if def.Name == "" {
			return fmt.Errorf("definition has no name")
		}
		if _, dup := result.Desired.Definitions[def.Name]; dup {
			return fmt.Errorf("duplicate definition %q", def.Name)
		}
		result.Desired.Definitions[def.Name] = &def
		return nil
	}); err != nil {
		return nil, err
	}

	if err := loadKind(filepath.Join(root, SetDefinitionsFolder), result, func(data []byte) error {
		var set policy.SetDefinition
		if err := yaml.Unmarshal(data, &set); err != nil {
			return err
		}
		if set.Name == "" {
			return fmt.Errorf("set definition has no name")
		}
		if _, dup := result.Desired.SetDefinitions[set.Name]; dup {
			return fmt.Errorf("duplicate set definition %q", set.Name)
		}
		result.Desired.SetDefinitions[set.Name] = &set
		return nil
	}); err != nil {
		return nil, err
	}

	if err := loadKind(filepath.Join(root, AssignmentsFolder), result, func(data []byte) error {
		var assignment policy.Assignment
		if err := yaml.Unmarshal(data, &assignment); err != nil {
			return err
		}
		if assignment.Name == "" || assignment.Scope == "" {
			return fmt.Errorf("assignment needs name and scope")
		}
		key := policy.AssignmentKey(assignment.Scope, assignment.Name)
		if _, dup := result.Desired.Assignments[key]; dup {
			return fmt.Errorf("duplicate assignment %q at %q", assignment.Name, assignment.Scope)
		}
		result.Desired.Assignments[key] = &assignment
		return nil
	}); err != nil {
		return nil, err
	}

	exemptionsDir := filepath.Join(root, ExemptionsFolder, pacSelector)
	if info, err := os.Stat(exemptionsDir); err == nil && info.IsDir() {
		result.Desired.ExemptionsManaged = true
		if err := loadKind(exemptionsDir, result, func(data []byte) error {
			var exemption policy.Exemption
			if err := yaml.Unmarshal(data, &exemption); err != nil {
				return err
			}
			if exemption.Name == "" || exemption.Scope == "" {
				return fmt.Errorf("exemption needs name and scope")
			}
			key := policy.AssignmentKey(exemption.Scope, exemption.Name)
			if _, dup := result.Desired.Exemptions[key]; dup {
				return fmt.Errorf("duplicate exemption %q at %q", exemption.Name, exemption.Scope)
			}
			result.Desired.Exemptions[key] = &exemption
			return nil
		}); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// loadKind walks one kind folder and parses every resource file in it. A
// missing folder means the kind is simply not authored.
func loadKind(dir string, result *Result, parse func(data []byte) error) error {
	files, err := collectResourceFiles(dir)
	if err != nil {
		return err
	}

	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("reading %q: %w", file, err)
		}
		if err := parse(data); err != nil {
			result.FileErrors = append(result.FileErrors, FileError{Path: file, Err: err})
		}
	}
	return nil
}

// collectResourceFiles returns all resource files under dir, recursively,
// sorted for deterministic load order.
func collectResourceFiles(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to access path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path %q is not a directory", dir)
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".json", ".jsonc", ".yaml", ".yml":
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	sort.Strings(files)
	return files, nil
}
