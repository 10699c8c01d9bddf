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

// Package config loads and validates the global settings file that declares
// the governance environments a definitions folder can be planned against.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sigs.k8s.io/yaml"
)

// Settings file names probed under the definitions root, in order.
var settingsFileNames = []string{
	"global-settings.json",
	"global-settings.jsonc",
	"global-settings.yaml",
	"global-settings.yml",
}

// GlobalSettings is the parsed global settings file.
type GlobalSettings struct {
	PacOwnerID      string         `json:"pacOwnerId"`
	PacEnvironments []*Environment `json:"pacEnvironments"`
}

// Environment is one planable governance environment.
type Environment struct {
	PacSelector         string       `json:"pacSelector"`
	Cloud               string       `json:"cloud,omitempty"`
	TenantID            string       `json:"tenantId,omitempty"`
	DeploymentRootScope string       `json:"deploymentRootScope"`
	DesiredState        DesiredState `json:"desiredState,omitempty"`
}

// DesiredState controls how deployed-only resources are handled.
type DesiredState struct {
	// Strategy is "full" (unmatched deployed resources are deleted unless
	// excluded) or "ownedOnly" (unmatched deployed resources are left
	// alone). Empty defaults to "full".
	Strategy string `json:"strategy,omitempty"`

	ExcludedScopes               []string `json:"excludedScopes,omitempty"`
	ExcludedPolicyDefinitions    []string `json:"excludedPolicyDefinitions,omitempty"`
	ExcludedPolicySetDefinitions []string `json:"excludedPolicySetDefinitions,omitempty"`
	ExcludedPolicyAssignments    []string `json:"excludedPolicyAssignments,omitempty"`
}

const (
	StrategyFull      = "full"
	StrategyOwnedOnly = "ownedOnly"
)

// Load reads the global settings file from the definitions root. A missing
// or malformed file is a ConfigurationError: nothing can be planned
// without it.
func Load(definitionsRoot string) (*GlobalSettings, error) {
	var path string
	for _, name := range settingsFileNames {
		candidate := filepath.Join(definitionsRoot, name)
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
			break
		}
	}
	if path == "" {
		return nil, configuration("global-settings", fmt.Errorf("no global settings file found in %q", definitionsRoot))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, configuration("global-settings", fmt.Errorf("reading %q: %w", path, err))
	}

	var settings GlobalSettings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, configuration("global-settings", fmt.Errorf("parsing %q: %w", path, err))
	}

	if err := settings.validate(); err != nil {
		return nil, configuration("global-settings", err)
	}
	return &settings, nil
}

func (s *GlobalSettings) validate() error {
	if s.PacOwnerID == "" {
		return fmt.Errorf("pacOwnerId is required")
	}
	if len(s.PacEnvironments) == 0 {
		return fmt.Errorf("at least one pacEnvironment is required")
	}
	seen := make(map[string]struct{}, len(s.PacEnvironments))
	for _, env := range s.PacEnvironments {
		if env.PacSelector == "" {
			return fmt.Errorf("every pacEnvironment needs a pacSelector")
		}
		if _, dup := seen[env.PacSelector]; dup {
			return fmt.Errorf("duplicate pacSelector %q", env.PacSelector)
		}
		seen[env.PacSelector] = struct{}{}
		if env.DeploymentRootScope == "" {
			return fmt.Errorf("pacEnvironment %q needs a deploymentRootScope", env.PacSelector)
		}
		switch env.DesiredState.Strategy {
		case "", StrategyFull, StrategyOwnedOnly:
		default:
			return fmt.Errorf("pacEnvironment %q: unknown desiredState strategy %q", env.PacSelector, env.DesiredState.Strategy)
		}
	}
	return nil
}

// Select returns the environment matching the pac selector.
func (s *GlobalSettings) Select(pacSelector string) (*Environment, error) {
	for _, env := range s.PacEnvironments {
		if strings.EqualFold(env.PacSelector, pacSelector) {
			return env, nil
		}
	}
	return nil, configuration("pacSelector", fmt.Errorf("no pacEnvironment named %q", pacSelector))
}

// Strategy returns the effective desired state strategy.
func (e *Environment) Strategy() string {
	if e.DesiredState.Strategy == "" {
		return StrategyFull
	}
	return e.DesiredState.Strategy
}

// Excluded reports whether a deployed-only resource name matches one of the
// exclusion patterns for its kind. Patterns use filepath.Match syntax.
func Excluded(patterns []string, name string) bool {
	for _, pattern := range patterns {
		if ok, err := filepath.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

// ScopeExcluded reports whether a resource scope sits at or under one of
// the excluded scopes. Patterns match the full scope with filepath.Match
// syntax; a plain scope also covers everything beneath it. Azure resource
// IDs compare case-insensitively.
func ScopeExcluded(patterns []string, scope string) bool {
	lowered := strings.ToLower(scope)
	for _, pattern := range patterns {
		pattern = strings.ToLower(pattern)
		if ok, err := filepath.Match(pattern, lowered); err == nil && ok {
			return true
		}
		if strings.HasPrefix(lowered, strings.TrimSuffix(pattern, "/")+"/") {
			return true
		}
	}
	return false
}
