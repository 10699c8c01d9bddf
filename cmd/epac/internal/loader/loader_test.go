package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spiderman0016/enterprise-azure-policy-as-code/pkg/policy"
)

func writeFile(t *testing.T, root string, parts ...string) {
	t.Helper()
	content := parts[len(parts)-1]
	path := filepath.Join(append([]string{root}, parts[:len(parts)-1]...)...)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad(t *testing.T) {
	root := t.TempDir()

	writeFile(t, root, DefinitionsFolder, "audit-storage.json", `{
  "name": "audit-storage",
  "properties": {
    "mode": "All",
    "policyRule": {"if": {"field": "type"}, "then": {"effect": "audit"}}
  }
}`)
	writeFile(t, root, DefinitionsFolder, "nested", "audit-network.yaml", `
name: audit-network
properties:
  mode: All
  policyRule:
    if: {field: type}
    then: {effect: audit}
`)
	writeFile(t, root, SetDefinitionsFolder, "baseline.json", `{
  "name": "baseline",
  "properties": {
    "policyDefinitions": [{"policyDefinitionName": "audit-storage"}]
  }
}`)
	writeFile(t, root, AssignmentsFolder, "asg-baseline.yaml", `
name: asg-baseline
scope: epac-root
properties:
  policySetDefinitionName: baseline
`)
	writeFile(t, root, ExemptionsFolder, "tenant-prod", "waiver.json", `{
  "name": "waiver",
  "scope": "landing-zones",
  "properties": {
    "assignmentName": "asg-baseline",
    "assignmentScope": "epac-root",
    "exemptionCategory": "Waiver"
  }
}`)

	result, err := Load(root, "tenant-prod")
	require.NoError(t, err)
	require.Empty(t, result.FileErrors)

	desired := result.Desired
	assert.Len(t, desired.Definitions, 2)
	assert.Contains(t, desired.Definitions, "audit-storage")
	assert.Contains(t, desired.Definitions, "audit-network")
	assert.Contains(t, desired.SetDefinitions, "baseline")
	assert.Contains(t, desired.Assignments, policy.AssignmentKey("epac-root", "asg-baseline"))
	assert.Contains(t, desired.Exemptions, policy.AssignmentKey("landing-zones", "waiver"))
	assert.True(t, desired.ExemptionsManaged)
}

func TestLoad_MissingExemptionsFolderDegrades(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, DefinitionsFolder, "a.json", `{"name": "a", "properties": {"policyRule": {}}}`)

	result, err := Load(root, "tenant-prod")
	require.NoError(t, err)

	assert.False(t, result.Desired.ExemptionsManaged)
	assert.Empty(t, result.Desired.Exemptions)
}

func TestLoad_OtherSelectorsExemptionsIgnored(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ExemptionsFolder, "tenant-dev", "waiver.json", `{
  "name": "waiver",
  "scope": "x",
  "properties": {"assignmentName": "a", "assignmentScope": "s", "exemptionCategory": "Waiver"}
}`)

	result, err := Load(root, "tenant-prod")
	require.NoError(t, err)

	assert.False(t, result.Desired.ExemptionsManaged)
	assert.Empty(t, result.Desired.Exemptions)
}

func TestLoad_FileErrorsCollected(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, DefinitionsFolder, "good.json", `{"name": "good", "properties": {"policyRule": {}}}`)
	writeFile(t, root, DefinitionsFolder, "broken.json", `{not json`)
	writeFile(t, root, DefinitionsFolder, "unnamed.json", `{"properties": {"policyRule": {}}}`)

	result, err := Load(root, "tenant-prod")
	require.NoError(t, err)

	// Bad files are reported individually, the good one still loads.
	assert.Len(t, result.FileErrors, 2)
	assert.Contains(t, result.Desired.Definitions, "good")
}

func TestLoad_DuplicateDetected(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, DefinitionsFolder, "a.json", `{"name": "dup", "properties": {"policyRule": {}}}`)
	writeFile(t, root, DefinitionsFolder, "b.json", `{"name": "dup", "properties": {"policyRule": {}}}`)

	result, err := Load(root, "tenant-prod")
	require.NoError(t, err)

	require.Len(t, result.FileErrors, 1)
	assert.Contains(t, result.FileErrors[0].Error(), "duplicate definition")
	assert.Len(t, result.Desired.Definitions, 1)
}

func TestLoad_NonResourceFilesIgnored(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, DefinitionsFolder, "README.md", `notes`)
	writeFile(t, root, DefinitionsFolder, "a.json", `{"name": "a", "properties": {"policyRule": {}}}`)

	result, err := Load(root, "tenant-prod")
	require.NoError(t, err)

	assert.Empty(t, result.FileErrors)
	assert.Len(t, result.Desired.Definitions, 1)
}

func TestLoad_EmptyRoot(t *testing.T) {
	result, err := Load(t.TempDir(), "tenant-prod")
	require.NoError(t, err)

	assert.Empty(t, result.Desired.Definitions)
	assert.Empty(t, result.FileErrors)
	assert.False(t, result.Desired.ExemptionsManaged)
}
