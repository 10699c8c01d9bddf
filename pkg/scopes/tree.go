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

// Package scopes models the management hierarchy reachable from a
// deployment root. The planner validates assignment and exemption scopes
// against it; discovery of the hierarchy is a collaborator concern.
package scopes

import (
	"context"
	"fmt"
	"strings"
)

// Node is one scope in the management hierarchy.
type Node struct {
	// ID is the fully qualified scope resource ID.
	ID string `json:"id"`
	// Name is the short logical name (management group name, subscription
	// display name alias, ...) authored files may use instead of the ID.
	Name string `json:"name"`
	// ParentID is empty on the root.
	ParentID string `json:"parentId,omitempty"`
}

// Tree is an immutable index over the reachable scopes.
type Tree struct {
	byID   map[string]*Node
	byName map[string]*Node
	childs map[string][]*Node
	rootID string
}

// NewTree builds a tree from a flat node list. The first node without a
// parent inside the list is the root.
func NewTree(nodes []Node) (*Tree, error) {
	t := &Tree{
		byID:   make(map[string]*Node, len(nodes)),
		byName: make(map[string]*Node, len(nodes)),
		childs: make(map[string][]*Node),
	}
	for i := range nodes {
		node := nodes[i]
		key := strings.ToLower(node.ID)
		if _, dup := t.byID[key]; dup {
			return nil, fmt.Errorf("duplicate scope id %q", node.ID)
		}
		t.byID[key] = &node
		if node.Name != "" {
			t.byName[strings.ToLower(node.Name)] = &node
		}
		if node.ParentID == "" {
			if t.rootID == "" {
				t.rootID = key
			}
		} else {
			parentKey := strings.ToLower(node.ParentID)
			t.childs[parentKey] = append(t.childs[parentKey], &node)
		}
	}
	if t.rootID == "" && len(nodes) > 0 {
		return nil, fmt.Errorf("scope tree has no root")
	}
	return t, nil
}

// Resolve maps a scope reference (full ID or short name) to its node.
func (t *Tree) Resolve(scope string) (*Node, bool) {
	key := strings.ToLower(scope)
	if node, ok := t.byID[key]; ok {
		return node, true
	}
	node, ok := t.byName[key]
	return node, ok
}

// Root returns the root node.
func (t *Tree) Root() *Node {
	return t.byID[t.rootID]
}

// Children returns the direct children of the scope with the given ID.
func (t *Tree) Children(id string) []*Node {
	return t.childs[strings.ToLower(id)]
}

// Ancestors returns the chain of ancestor nodes, nearest first.
func (t *Tree) Ancestors(id string) []*Node {
	var chain []*Node
	node, ok := t.byID[strings.ToLower(id)]
	if !ok {
		return nil
	}
	for node.ParentID != "" {
		parent, ok := t.byID[strings.ToLower(node.ParentID)]
		if !ok {
			break
		}
		chain = append(chain, parent)
		node = parent
	}
	return chain
}

// Len returns the number of scopes in the tree.
func (t *Tree) Len() int {
	return len(t.byID)
}

// Provider supplies a fully materialized scope tree. Implementations may
// fan out discovery internally but must return a consistent result.
type Provider interface {
	Tree(ctx context.Context) (*Tree, error)
}

// StaticProvider wraps an already built tree.
type StaticProvider struct {
	T *Tree
}

func (p StaticProvider) Tree(_ context.Context) (*Tree, error) {
	return p.T, nil
}
