package pktgen

import (
	"fmt"
	"strings"
)

// Node represents a single parser state or control node.
type Node struct {
	Name string

	// Header stacks extracted when the parser passes through this state.
	// A stack name may appear multiple times for multi-extract states.
	// Empty for control nodes.
	HeaderStackExtracts []string
}

// Edge represents a directed transition between two nodes.
//
// Edges are created through Graph.AddEdge which assigns a stable,
// autoincrementing ID. Pointer identity is used for map and set keys; the
// ID provides a stable sort and serialization identity.
type Edge struct {
	ID  int
	Src string
	Dst string

	// ErrorTransition marks a parser error transition. Only error
	// transitions remain legal once a header stack is over-extracted.
	ErrorTransition bool

	// Condition is the branch condition payload submitted to the solver.
	// The exploration core never interprets it.
	Condition Expr

	// Label names the transition for logs and test case output.
	Label string
}

// String returns a short description of the edge.
func (e *Edge) String() string {
	if e.Label != "" {
		return fmt.Sprintf("%s->%s(%s)", e.Src, e.Dst, e.Label)
	}
	return fmt.Sprintf("%s->%s", e.Src, e.Dst)
}

// HeaderStack represents a named header stack with a fixed declared size.
type HeaderStack struct {
	Name string
	Size int
}

// Path is an ordered sequence of edges from a fixed entry node.
type Path []*Edge

// String returns the path as a chain of edge descriptions.
func (p Path) String() string {
	a := make([]string, len(p))
	for i, e := range p {
		a[i] = e.String()
	}
	return strings.Join(a, " ")
}

// Key returns a stable identity for the path built from edge IDs.
func (p Path) Key() string {
	var sb strings.Builder
	for i, e := range p {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%d", e.ID)
	}
	return sb.String()
}

// Clone returns a copy of the path. The traversal engine reuses its path
// buffer so strategies must clone any path they retain.
func (p Path) Clone() Path {
	other := make(Path, len(p))
	copy(other, p)
	return other
}

// Graph represents a directed graph of parser states or control nodes.
// Nodes, edges & header stacks are immutable once exploration begins.
type Graph struct {
	nodes     map[string]*Node
	edges     map[string][]*Edge
	stacks    map[string]*HeaderStack
	terminals map[string]struct{}
	edgeIDSeq int
}

// NewGraph returns a new empty instance of Graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:     make(map[string]*Node),
		edges:     make(map[string][]*Edge),
		stacks:    make(map[string]*HeaderStack),
		terminals: make(map[string]struct{}),
	}
}

// AddNode adds a node to the graph. Replaces any existing node metadata.
func (g *Graph) AddNode(node *Node) {
	g.nodes[node.Name] = node
}

// Node returns the metadata for the named node. Returns nil for nodes that
// carry no metadata, such as the parser sink.
func (g *Graph) Node(name string) *Node {
	return g.nodes[name]
}

// AddEdge adds a directed edge and assigns its stable ID.
func (g *Graph) AddEdge(edge *Edge) *Edge {
	g.edgeIDSeq++
	edge.ID = g.edgeIDSeq
	g.edges[edge.Src] = append(g.edges[edge.Src], edge)
	return edge
}

// OutEdges returns the outgoing edges of a node in insertion order.
func (g *Graph) OutEdges(name string) []*Edge {
	return g.edges[name]
}

// NumEdges returns the total number of edges in the graph.
func (g *Graph) NumEdges() int {
	n := 0
	for _, edges := range g.edges {
		n += len(edges)
	}
	return n
}

// AddHeaderStack declares a header stack with a fixed size.
func (g *Graph) AddHeaderStack(name string, size int) {
	g.stacks[name] = &HeaderStack{Name: name, Size: size}
}

// HeaderStack returns the declared header stack by name. Returns nil if the
// stack has not been declared.
func (g *Graph) HeaderStack(name string) *HeaderStack {
	return g.stacks[name]
}

// AddTerminal marks a node as terminal. A path ending at a terminal node is
// complete: the parser sink or a control accept node.
func (g *Graph) AddTerminal(name string) {
	g.terminals[name] = struct{}{}
}

// Terminal returns true if the named node has been marked terminal.
func (g *Graph) Terminal(name string) bool {
	_, ok := g.terminals[name]
	return ok
}
