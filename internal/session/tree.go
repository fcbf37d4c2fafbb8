// Package session rebuilds the event tree of one session from its main
// transcript and any subagent transcripts.
package session

import (
	"sort"

	"github.com/zhaobenny/ccsessions/internal/model"
)

// Node wraps an event with its resolved parent and children.
type Node struct {
	model.Event
	SubagentFile bool `json:"is_subagent_file"`
	Subagent     bool `json:"is_subagent"`

	Parent   *Node   `json:"-"`
	Children []*Node `json:"-"`
}

// Tree indexes the events of one session by uuid.
type Tree struct {
	nodes  []*Node
	byUUID map[string]*Node
}

// Build links events by uuid/parentUuid. Nodes are ordered by timestamp with
// undated events last; ties keep input order. When a uuid repeats, the first
// occurrence is indexed.
func Build(events []model.Event) *Tree {
	t := &Tree{
		nodes:  make([]*Node, 0, len(events)),
		byUUID: make(map[string]*Node, len(events)),
	}
	for i := range events {
		n := &Node{
			Event:        events[i],
			SubagentFile: events[i].IsSubagentFile(),
			Subagent:     events[i].IsSubagent(),
		}
		t.nodes = append(t.nodes, n)
	}

	sort.SliceStable(t.nodes, func(i, j int) bool {
		a, b := t.nodes[i].Timestamp, t.nodes[j].Timestamp
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.Before(*b)
	})

	for _, n := range t.nodes {
		if n.UUID == "" {
			continue
		}
		if _, dup := t.byUUID[n.UUID]; !dup {
			t.byUUID[n.UUID] = n
		}
	}
	for _, n := range t.nodes {
		if n.ParentUUID == "" {
			continue
		}
		if p, ok := t.byUUID[n.ParentUUID]; ok && p != n {
			n.Parent = p
			p.Children = append(p.Children, n)
		}
	}
	return t
}

// Len returns the number of nodes.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Nodes returns every node in tree order.
func (t *Tree) Nodes() []*Node {
	return t.nodes
}

// Lookup finds a node by uuid.
func (t *Tree) Lookup(uuid string) (*Node, bool) {
	n, ok := t.byUUID[uuid]
	return n, ok
}

// Parent resolves the parent of the node with the given uuid.
func (t *Tree) Parent(uuid string) (*Node, bool) {
	n, ok := t.byUUID[uuid]
	if !ok || n.Parent == nil {
		return nil, false
	}
	return n.Parent, true
}

// Roots returns nodes whose parent is absent from the session.
func (t *Tree) Roots() []*Node {
	var roots []*Node
	for _, n := range t.nodes {
		if n.Parent == nil {
			roots = append(roots, n)
		}
	}
	return roots
}

// Descendants returns the node with the given uuid and everything below it,
// in tree order. Ancestors are never included. An unknown uuid yields nil.
func (t *Tree) Descendants(uuid string) []*Node {
	root, ok := t.byUUID[uuid]
	if !ok {
		return nil
	}

	keep := map[*Node]bool{root: true}
	queue := []*Node{root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, c := range n.Children {
			if !keep[c] {
				keep[c] = true
				queue = append(queue, c)
			}
		}
	}

	out := make([]*Node, 0, len(keep))
	for _, n := range t.nodes {
		if keep[n] {
			out = append(out, n)
		}
	}
	return out
}

// Sidechains returns nodes from subagent files or flagged as sidechain turns.
func (t *Tree) Sidechains() []*Node {
	var out []*Node
	for _, n := range t.nodes {
		if n.Subagent {
			out = append(out, n)
		}
	}
	return out
}
