package pktgen

// Strategy decides, for a graph traversal, which edges to explore in what
// order, what to do at each extended path, and how to release per-frame
// resources when a branch is abandoned.
//
// Any solver checkpoint pushed inside Visit must be popped inside the
// matching Backtrack. The engine guarantees exactly one Backtrack call for
// every Visit call, on every exit path including abort unwinding.
type Strategy interface {
	// PreprocessEdges returns the onward edges to explore, in exploration
	// order. Returning an empty slice drops the branch.
	PreprocessEdges(prefix Path, edges []*Edge) []*Edge

	// Visit inspects the path ending in a newly explored edge and returns
	// the traversal control signal.
	Visit(path Path, complete bool) VisitResult

	// Backtrack releases any state acquired by the corresponding Visit.
	Backtrack()
}

// GraphTraversalEngine enumerates paths through a directed graph depth-first
// with backtracking. All domain decisions are delegated to a Strategy.
type GraphTraversalEngine struct {
	graph    *Graph
	strategy Strategy

	// MaxFrames bounds the number of entered frames per traversal so that a
	// cyclic graph terminates. Zero applies DefaultMaxFrames.
	MaxFrames int
}

// DefaultMaxFrames is the per-traversal frame budget applied when
// GraphTraversalEngine.MaxFrames is unset.
const DefaultMaxFrames = 1 << 16

// NewGraphTraversalEngine returns a new instance of GraphTraversalEngine.
func NewGraphTraversalEngine(graph *Graph, strategy Strategy) *GraphTraversalEngine {
	return &GraphTraversalEngine{graph: graph, strategy: strategy}
}

// item is a single entry on the engine's explicit LIFO stack. A nil edge is
// an exit marker: the subtree below the current frame is exhausted, so the
// frame's Backtrack is owed and the path shrinks by one edge.
type item struct {
	edge *Edge
}

// VisitAllPaths explores every path from the start node, subject to the
// strategy's ordering, pruning & stopping decisions. Returns VisitAbort if
// the strategy aborted the run or the frame budget was exhausted, otherwise
// VisitContinue.
func (e *GraphTraversalEngine) VisitAllPaths(start string) VisitResult {
	maxFrames := e.MaxFrames
	if maxFrames == 0 {
		maxFrames = DefaultMaxFrames
	}

	var path Path
	var stack []item
	frames := 0

	// Push onward edges so that the first element of the returned sequence
	// is popped first: reversal compensates for LIFO order.
	pushEdges := func(prefix Path, node string) {
		ordered := e.strategy.PreprocessEdges(prefix, e.graph.OutEdges(node))
		for i := len(ordered) - 1; i >= 0; i-- {
			stack = append(stack, item{edge: ordered[i]})
		}
	}

	// Abort unwinding: every exit marker left on the stack is an entered
	// frame whose Backtrack is still owed. Pop them all so any outstanding
	// solver checkpoint is released.
	unwind := func() {
		for i := len(stack) - 1; i >= 0; i-- {
			if stack[i].edge == nil {
				e.strategy.Backtrack()
			}
		}
		stack = nil
	}

	pushEdges(path, start)

	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if it.edge == nil {
			e.strategy.Backtrack()
			path = path[:len(path)-1]
			continue
		}

		if frames++; frames > maxFrames {
			unwind()
			return VisitAbort
		}

		path = append(path, it.edge)
		complete := e.graph.Terminal(it.edge.Dst)

		switch result := e.strategy.Visit(path, complete); result {
		case VisitContinue:
			onward := e.graph.OutEdges(it.edge.Dst)
			if !complete || len(onward) > 0 {
				stack = append(stack, item{}) // exit marker for this frame
				pushEdges(path, it.edge.Dst)
			} else {
				// Complete with nothing to descend into.
				e.strategy.Backtrack()
				path = path[:len(path)-1]
			}
		case VisitBacktrack:
			e.strategy.Backtrack()
			path = path[:len(path)-1]
		case VisitAbort:
			e.strategy.Backtrack()
			unwind()
			return VisitAbort
		default:
			assert(false, "invalid visit result: %s", result)
		}
	}
	return VisitContinue
}
