package pktgen

import (
	"sort"
)

// EdgeCoverageState holds the run-wide done-edge set and edge visit counts
// shared across parser paths by EdgeCoverageStrategy instances. Both are
// monotonic: done edges never become undone and visit counts never decrease.
type EdgeCoverageState struct {
	done   map[*Edge]struct{}
	visits map[*Edge]int
}

// NewEdgeCoverageState returns a new empty instance of EdgeCoverageState.
func NewEdgeCoverageState() *EdgeCoverageState {
	return &EdgeCoverageState{
		done:   make(map[*Edge]struct{}),
		visits: make(map[*Edge]int),
	}
}

// Done returns true if the edge's entire reachable subtree is considered
// fully exercised.
func (s *EdgeCoverageState) Done(e *Edge) bool {
	_, ok := s.done[e]
	return ok
}

// Visits returns the edge's visit count.
func (s *EdgeCoverageState) Visits(e *Edge) int {
	return s.visits[e]
}

func (s *EdgeCoverageState) markDone(e *Edge) {
	s.done[e] = struct{}{}
}

func (s *EdgeCoverageState) incVisit(e *Edge) {
	s.visits[e]++
}

func (s *EdgeCoverageState) allVisited(path Path) bool {
	for _, e := range path {
		if s.visits[e] == 0 {
			return false
		}
	}
	return true
}

func (s *EdgeCoverageState) allDone(edges []*Edge) bool {
	for _, e := range edges {
		if !s.Done(e) {
			return false
		}
	}
	return true
}

// EdgeCoverageStrategy explores control paths greedily, least-covered edges
// first, and prunes subtrees whose every reachable edge is already done.
type EdgeCoverageStrategy struct {
	controlExplorer
	graph *Graph
	state *EdgeCoverageState
}

var _ Strategy = (*EdgeCoverageStrategy)(nil)

// NewEdgeCoverageStrategy returns a new instance of EdgeCoverageStrategy for
// one parser path, sharing run-wide coverage state.
func NewEdgeCoverageStrategy(config *Config, stats *CoverageStatistics, solver PathSolver, tables TableConsolidator, writer TestCaseWriter, parserPath Path, results ResultMap, graph *Graph, state *EdgeCoverageState) *EdgeCoverageStrategy {
	return &EdgeCoverageStrategy{
		controlExplorer: controlExplorer{
			config:     config,
			stats:      stats,
			solver:     solver,
			tables:     tables,
			writer:     writer,
			parserPath: parserPath,
			results:    results,
		},
		graph: graph,
		state: state,
	}
}

// PreprocessEdges orders candidate edges not-done first, each group sorted
// ascending by visit count. The engine preserves the returned order, so the
// least-covered edge that is not yet done is explored first.
func (s *EdgeCoverageStrategy) PreprocessEdges(prefix Path, edges []*Edge) []*Edge {
	var notDone, done []*Edge
	for _, e := range edges {
		if s.state.Done(e) {
			done = append(done, e)
		} else {
			notDone = append(notDone, e)
		}
	}

	byVisits := func(a []*Edge) {
		sort.SliceStable(a, func(i, j int) bool {
			return s.state.Visits(a[i]) < s.state.Visits(a[j])
		})
	}
	byVisits(notDone)
	byVisits(done)

	return append(notDone, done...)
}

// Visit checkpoints the solver, then skips any path ending in a done edge
// whose every edge has already been visited: it cannot improve coverage.
// Otherwise it generates and records like path coverage, then folds a
// recordable success into the coverage state.
func (s *EdgeCoverageStrategy) Visit(path Path, complete bool) VisitResult {
	s.solver.Push()

	if s.state.Done(path[len(path)-1]) && s.state.allVisited(path) {
		return VisitBacktrack
	}

	result := s.generateTestCase(path, complete)
	s.recordStats(path, complete, result)

	// Only successful test cases make an edge visited, or done.
	if recordResult(result, complete) && result == ResultSuccess {
		assert(complete, "recordable success requires a complete control path")

		for _, e := range path {
			s.state.incVisit(e)
		}

		// The terminal edge of a successful complete path is done outright.
		s.state.markDone(path[len(path)-1])

		// Walking backward from the second-to-last edge, an edge becomes
		// done once every outgoing edge of its destination is done.
		for i := len(path) - 2; i >= 0; i-- {
			if s.state.allDone(s.graph.OutEdges(path[i].Dst)) {
				s.state.markDone(path[i])
			}
		}
	}

	return s.visitResult(result)
}

// Backtrack pops the checkpoint pushed by the corresponding Visit.
func (s *EdgeCoverageStrategy) Backtrack() {
	s.solver.Pop()
}
