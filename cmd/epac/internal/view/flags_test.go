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

package view_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spiderman0016/enterprise-azure-policy-as-code/cmd/epac/internal/view"
)

func TestStageFlagSink_ADO(t *testing.T) {
	buf := &bytes.Buffer{}
	sink, err := view.NewStageFlagSink("ado", buf)
	require.NoError(t, err)

	sink.Set(view.FlagDeployPolicyChanges, true)
	sink.Set(view.FlagDeployRoleChanges, false)

	output := buf.String()
	assert.Contains(t, output, "##vso[task.setvariable variable=deployPolicyChanges;isOutput=true]true")
	assert.Contains(t, output, "##vso[task.setvariable variable=deployRoleChanges;isOutput=true]false")
}

func TestStageFlagSink_GitHub(t *testing.T) {
	buf := &bytes.Buffer{}
	sink, err := view.NewStageFlagSink("github", buf)
	require.NoError(t, err)

	sink.Set(view.FlagDeployPolicyChanges, true)

	assert.Equal(t, "deployPolicyChanges=true\n", buf.String())
}

func TestStageFlagSink_Plain(t *testing.T) {
	buf := &bytes.Buffer{}
	sink, err := view.NewStageFlagSink("", buf)
	require.NoError(t, err)

	sink.Set(view.FlagDeployRoleChanges, false)

	assert.Equal(t, "deployRoleChanges=false\n", buf.String())
}

func TestStageFlagSink_Unknown(t *testing.T) {
	_, err := view.NewStageFlagSink("jenkins", &bytes.Buffer{})
	assert.Error(t, err)
}
