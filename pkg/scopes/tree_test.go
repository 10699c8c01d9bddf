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

package scopes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	rootID = "/providers/Microsoft.Management/managementGroups/root"
	lzID   = "/providers/Microsoft.Management/managementGroups/landing-zones"
	subID  = "/subscriptions/00000000-0000-0000-0000-000000000001"
)

func testNodes() []Node {
	return []Node{
		{ID: rootID, Name: "root"},
		{ID: lzID, Name: "landing-zones", ParentID: rootID},
		{ID: subID, Name: "prod-sub", ParentID: lzID},
	}
}

func TestTree_Resolve(t *testing.T) {
	tree, err := NewTree(testNodes())
	require.NoError(t, err)

	node, ok := tree.Resolve("landing-zones")
	require.True(t, ok)
	assert.Equal(t, lzID, node.ID)

	// Full IDs resolve too, case insensitively.
	node, ok = tree.Resolve("/PROVIDERS/Microsoft.Management/managementGroups/LANDING-ZONES")
	require.True(t, ok)
	assert.Equal(t, lzID, node.ID)

	_, ok = tree.Resolve("no-such-scope")
	assert.False(t, ok)
}

func TestTree_Hierarchy(t *testing.T) {
	tree, err := NewTree(testNodes())
	require.NoError(t, err)

	require.NotNil(t, tree.Root())
	assert.Equal(t, rootID, tree.Root().ID)
	assert.Equal(t, 3, tree.Len())

	children := tree.Children(rootID)
	require.Len(t, children, 1)
	assert.Equal(t, lzID, children[0].ID)

	ancestors := tree.Ancestors(subID)
	require.Len(t, ancestors, 2)
	assert.Equal(t, lzID, ancestors[0].ID)
	assert.Equal(t, rootID, ancestors[1].ID)
}

func TestNewTree_Errors(t *testing.T) {
	_, err := NewTree([]Node{
		{ID: rootID, Name: "root"},
		{ID: rootID, Name: "dup"},
	})
	assert.Error(t, err)

	_, err = NewTree([]Node{
		{ID: lzID, Name: "landing-zones", ParentID: rootID},
	})
	assert.Error(t, err)
}

func TestNewTree_Empty(t *testing.T) {
	tree, err := NewTree(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, tree.Len())
}

func TestStaticProvider(t *testing.T) {
	tree, err := NewTree(testNodes())
	require.NoError(t, err)

	got, err := StaticProvider{T: tree}.Tree(context.Background())
	require.NoError(t, err)
	assert.Same(t, tree, got)
}
