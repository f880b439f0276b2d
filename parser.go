package pktgen

// ParserPathEnumerationStrategy exhaustively enumerates structurally valid
// paths through a parser graph. Paths that extract beyond the end of a
// bounded header stack may only continue through error transitions; branches
// with no legal continuation are dropped.
type ParserPathEnumerationStrategy struct {
	graph *Graph

	// Paths accumulates every complete parser path, in exploration order.
	Paths []Path
}

var _ Strategy = (*ParserPathEnumerationStrategy)(nil)

// NewParserPathEnumerationStrategy returns a new instance of
// ParserPathEnumerationStrategy for the given parser graph.
func NewParserPathEnumerationStrategy(graph *Graph) *ParserPathEnumerationStrategy {
	return &ParserPathEnumerationStrategy{graph: graph}
}

// countExtracts accumulates per-stack extraction counts for a single state.
// Terminal pseudo-states such as the sink carry no metadata and are skipped.
func (s *ParserPathEnumerationStrategy) countExtracts(counts map[string]int, state string) {
	node := s.graph.Node(state)
	if node == nil {
		return
	}
	for _, stack := range node.HeaderStackExtracts {
		counts[stack]++
	}
}

// PreprocessEdges filters the onward edges of a path prefix. If the prefix
// over-extracts any header stack, only error transitions remain legal.
func (s *ParserPathEnumerationStrategy) PreprocessEdges(prefix Path, edges []*Edge) []*Edge {
	// Count the number of extractions for each header stack along the path
	// so far, including the start state of the prefix.
	counts := make(map[string]int)
	if len(prefix) > 0 {
		s.countExtracts(counts, prefix[0].Src)
		for _, e := range prefix {
			s.countExtracts(counts, e.Dst)
		}
	}

	exceeded := false
	for stack, count := range counts {
		if hs := s.graph.HeaderStack(stack); hs != nil && count > hs.Size {
			exceeded = true
			break
		}
	}
	if !exceeded {
		return edges
	}

	// Over-extraction: only error transitions may continue the path. An
	// empty result drops the branch entirely.
	var onward []*Edge
	for _, e := range edges {
		if e.ErrorTransition {
			onward = append(onward, e)
		}
	}
	return onward
}

// Visit accumulates complete paths. This strategy never prunes live branches
// itself; only PreprocessEdges prunes.
func (s *ParserPathEnumerationStrategy) Visit(path Path, complete bool) VisitResult {
	if complete {
		s.Paths = append(s.Paths, path.Clone())
	}
	return VisitContinue
}

// Backtrack is a no-op; parser enumeration acquires no per-frame state.
func (s *ParserPathEnumerationStrategy) Backtrack() {}
