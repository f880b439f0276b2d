package pktgen_test

import (
	"testing"

	"github.com/benbjohnson/pktgen"
	"github.com/google/go-cmp/cmp"
)

// exploreEdgeCoverage runs EdgeCoverageStrategy over the graph from
// "ingress" with shared coverage state.
func exploreEdgeCoverage(t *testing.T, g *pktgen.Graph, config pktgen.Config, solver *fakeSolver, state *pktgen.EdgeCoverageState) (*memWriter, pktgen.VisitResult) {
	t.Helper()
	writer := &memWriter{}
	stats := pktgen.NewCoverageStatistics()
	stats.Logf = t.Logf

	strategy := pktgen.NewEdgeCoverageStrategy(&config, stats, solver, pktgen.NewTableCollector(), writer, nil, make(pktgen.ResultMap), g, state)
	engine := pktgen.NewGraphTraversalEngine(g, strategy)
	return writer, engine.VisitAllPaths("ingress")
}

func TestEdgeCoverageState(t *testing.T) {
	// An edge becomes done only once every outgoing edge of its
	// destination is done; the terminal edge of a successful complete path
	// is done outright.
	t.Run("DonePropagation", func(t *testing.T) {
		g := pktgen.NewGraph()
		shared := g.AddEdge(&pktgen.Edge{Src: "ingress", Dst: "mid"})
		f := g.AddEdge(&pktgen.Edge{Src: "mid", Dst: "end", Label: "f"})
		gg := g.AddEdge(&pktgen.Edge{Src: "mid", Dst: "end", Label: "g"})
		g.AddTerminal("end")

		state := pktgen.NewEdgeCoverageState()
		exploreEdgeCoverage(t, g, pktgen.DefaultConfig(), newFakeSolver(), state)

		for _, e := range []*pktgen.Edge{shared, f, gg} {
			if !state.Done(e) {
				t.Fatalf("edge %s not done", e)
			}
		}
		if got, exp := state.Visits(shared), 2; got != exp {
			t.Fatalf("visits(%s)=%d, expected %d", shared, got, exp)
		} else if got, exp := state.Visits(f), 1; got != exp {
			t.Fatalf("visits(%s)=%d, expected %d", f, got, exp)
		}
	})

	t.Run("PrefixNotDoneWhileSiblingRemains", func(t *testing.T) {
		g := pktgen.NewGraph()
		shared := g.AddEdge(&pktgen.Edge{Src: "ingress", Dst: "mid"})
		f := g.AddEdge(&pktgen.Edge{Src: "mid", Dst: "end", Label: "f"})
		gg := g.AddEdge(&pktgen.Edge{Src: "mid", Dst: "end", Label: "g"})
		g.AddTerminal("end")

		// Make the g-branch unsatisfiable so only f completes.
		solver := newFakeSolver()
		solver.results[pktgen.Path{shared, gg}.Key()] = pktgen.ResultNoPacketFound

		state := pktgen.NewEdgeCoverageState()
		exploreEdgeCoverage(t, g, pktgen.DefaultConfig(), solver, state)

		if !state.Done(f) {
			t.Fatalf("edge %s not done", f)
		} else if state.Done(gg) {
			t.Fatalf("edge %s unexpectedly done", gg)
		} else if state.Done(shared) {
			t.Fatalf("edge %s unexpectedly done", shared)
		}
	})
}

func TestEdgeCoverageStrategy(t *testing.T) {
	t.Run("OrdersLeastCoveredNotDoneFirst", func(t *testing.T) {
		g := pktgen.NewGraph()
		e1 := g.AddEdge(&pktgen.Edge{Src: "n", Dst: "a"})
		e2 := g.AddEdge(&pktgen.Edge{Src: "n", Dst: "b"})
		e3 := g.AddEdge(&pktgen.Edge{Src: "n", Dst: "c"})
		f := g.AddEdge(&pktgen.Edge{Src: "c", Dst: "t1"})
		g.AddEdge(&pktgen.Edge{Src: "c", Dst: "t2"})
		g.AddTerminal("a")
		g.AddTerminal("t1")
		g.AddTerminal("t2")

		config := pktgen.DefaultConfig()
		state := pktgen.NewEdgeCoverageState()
		stats := pktgen.NewCoverageStatistics()
		stats.Logf = t.Logf
		strategy := pktgen.NewEdgeCoverageStrategy(&config, stats, newFakeSolver(), pktgen.NewTableCollector(), &memWriter{}, nil, make(pktgen.ResultMap), g, state)

		// e1 succeeds once and is done; e3 succeeds through one of two
		// branches so it stays not-done with one visit; e2 is untouched.
		strategy.Visit(pktgen.Path{e1}, true)
		strategy.Backtrack()
		strategy.Visit(pktgen.Path{e3, f}, true)
		strategy.Backtrack()

		got := strategy.PreprocessEdges(nil, []*pktgen.Edge{e1, e2, e3})
		if diff := cmp.Diff(edgeLabels(got), edgeLabels([]*pktgen.Edge{e2, e3, e1})); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("SkipsFullyCoveredSubtrees", func(t *testing.T) {
		g := pktgen.NewGraph()
		g.AddEdge(&pktgen.Edge{Src: "ingress", Dst: "mid"})
		g.AddEdge(&pktgen.Edge{Src: "mid", Dst: "end"})
		g.AddTerminal("end")

		state := pktgen.NewEdgeCoverageState()
		first := newFakeSolver()
		writer, _ := exploreEdgeCoverage(t, g, pktgen.DefaultConfig(), first, state)
		if got, exp := len(writer.cases), 1; got != exp {
			t.Fatalf("len(cases)=%d, expected %d", got, exp)
		}

		// A second traversal over the same shared state generates nothing.
		second := newFakeSolver()
		writer, _ = exploreEdgeCoverage(t, g, pktgen.DefaultConfig(), second, state)
		if got, exp := len(writer.cases), 0; got != exp {
			t.Fatalf("len(cases)=%d, expected %d", got, exp)
		} else if got, exp := second.generateN, 0; got != exp {
			t.Fatalf("generateN=%d, expected %d", got, exp)
		}
		// The skip path still releases its checkpoint.
		if second.pushN == 0 || second.pushN != second.popN {
			t.Fatalf("push=%d pop=%d, expected equal and nonzero", second.pushN, second.popN)
		}
	})

	t.Run("CheckpointPairing", func(t *testing.T) {
		solver := newFakeSolver()
		g := controlDiamond()
		exploreEdgeCoverage(t, g, pktgen.DefaultConfig(), solver, pktgen.NewEdgeCoverageState())
		if solver.pushN == 0 || solver.pushN != solver.popN {
			t.Fatalf("push=%d pop=%d, expected equal and nonzero", solver.pushN, solver.popN)
		}
	})
}

func edgeLabels(edges []*pktgen.Edge) []string {
	a := make([]string, len(edges))
	for i, e := range edges {
		a[i] = e.String()
	}
	return a
}
