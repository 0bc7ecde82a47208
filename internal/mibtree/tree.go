// Package mibtree builds the management information tree for the supported
// device families from their embedded device description documents.
package mibtree

import (
	"fmt"
	"strings"
)

// NodeKind distinguishes branch nodes from leaf nodes.
type NodeKind int

const (
	Branch NodeKind = iota
	Leaf
)

func (k NodeKind) String() string {
	if k == Leaf {
		return "LEAF"
	}
	return "BRANCH"
}

// Node is one addressable object in a device's management hierarchy. The OID
// is the parent's OID with exactly one numeric component appended. A non-empty
// Index on a leaf marks it as a table entry whose values recur once per row.
type Node struct {
	Name        string
	Description string
	OID         string
	Parent      *Node
	Kind        NodeKind
	Index       string
}

func (n *Node) String() string { return n.OID }

// Tree is the merged management tree of all device description documents. It
// is built once at startup and immutable afterwards, so it is safe for
// concurrent read-only use by any number of poll engines.
type Tree struct {
	nodes map[string]*Node
	order []*Node
}

// Node returns the named node, or an error if the name is unknown. Unknown
// names indicate a configuration defect, never a runtime condition.
func (t *Tree) Node(name string) (*Node, error) {
	n, ok := t.nodes[name]
	if !ok {
		return nil, fmt.Errorf("unknown management tree node %q", name)
	}
	return n, nil
}

// Contains reports whether the named node exists.
func (t *Tree) Contains(name string) bool {
	_, ok := t.nodes[name]
	return ok
}

// OID returns the object identifier of the named node. It panics on unknown
// names; use it only for names guaranteed by the static tables.
func (t *Tree) OID(name string) string {
	n, ok := t.nodes[name]
	if !ok {
		panic(fmt.Sprintf("unknown management tree node %q", name))
	}
	return n.OID
}

// Nodes returns all nodes in insertion order: the default scaffold first,
// then the document entries in parse order. The returned slice must not be
// modified.
func (t *Tree) Nodes() []*Node {
	return t.order
}

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int { return len(t.nodes) }

// ChildrenOf returns the names of all nodes whose parent is the named node.
func (t *Tree) ChildrenOf(name string) []string {
	var children []string
	for _, n := range t.order {
		if n.Parent != nil && n.Parent.Name == name {
			children = append(children, n.Name)
		}
	}
	return children
}

func (t *Tree) add(n *Node) {
	t.nodes[n.Name] = n
	t.order = append(t.order, n)
}

// newScaffold creates a tree seeded with the default elements: the root snmp
// and system branches, sysDescr, and the private enterprises branch under
// which all vendor trees attach.
func newScaffold() *Tree {
	t := &Tree{nodes: make(map[string]*Node)}
	snmp := &Node{Name: "snmp", Description: "snmp", OID: "1.3.6.1", Kind: Branch}
	system := &Node{Name: "system", Description: "system", OID: "1.3.6.1.2", Parent: snmp, Kind: Branch}
	sysDescr := &Node{Name: "sysDescr", Description: "System Description.", OID: "1.3.6.1.2.1.1.1", Parent: system, Kind: Branch}
	private := &Node{Name: "private", Description: "private", OID: "1.3.6.1.4", Parent: snmp, Kind: Branch}
	enterprises := &Node{Name: "enterprises", Description: "enterprises", OID: "1.3.6.1.4.1", Parent: private, Kind: Branch}
	for _, n := range []*Node{snmp, system, sysDescr, private, enterprises} {
		t.add(n)
	}
	return t
}

// Dump renders the tree as "name oid [LEAF index=...]" lines in insertion
// order, for the mibtree CLI command.
func (t *Tree) Dump() string {
	var b strings.Builder
	for _, n := range t.order {
		fmt.Fprintf(&b, "%s %s %s", n.OID, n.Name, n.Kind)
		if n.Index != "" {
			fmt.Fprintf(&b, " index=%s", n.Index)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
