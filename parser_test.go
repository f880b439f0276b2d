package pktgen_test

import (
	"testing"

	"github.com/benbjohnson/pktgen"
	"github.com/google/go-cmp/cmp"
)

func TestParserPathEnumerationStrategy(t *testing.T) {
	t.Run("EnumeratesCompletePaths", func(t *testing.T) {
		g := pktgen.NewGraph()
		g.AddNode(&pktgen.Node{Name: "start"})
		g.AddNode(&pktgen.Node{Name: "ipv4"})
		g.AddEdge(&pktgen.Edge{Src: "start", Dst: "ipv4"})
		g.AddEdge(&pktgen.Edge{Src: "start", Dst: "accept"})
		g.AddEdge(&pktgen.Edge{Src: "ipv4", Dst: "accept"})
		g.AddTerminal("accept")

		strategy := pktgen.NewParserPathEnumerationStrategy(g)
		engine := pktgen.NewGraphTraversalEngine(g, strategy)
		engine.VisitAllPaths("start")

		var keys []string
		for _, p := range strategy.Paths {
			keys = append(keys, p.String())
		}
		exp := []string{
			"start->ipv4 ipv4->accept",
			"start->accept",
		}
		if diff := cmp.Diff(keys, exp); diff != "" {
			t.Fatal(diff)
		}
	})

	// A path that extracts a bounded header stack beyond its declared size
	// may only continue through error transitions.
	t.Run("OverExtractionAllowsOnlyErrorTransitions", func(t *testing.T) {
		g := pktgen.NewGraph()
		g.AddNode(&pktgen.Node{Name: "s0", HeaderStackExtracts: []string{"vlan"}})
		g.AddNode(&pktgen.Node{Name: "s1", HeaderStackExtracts: []string{"vlan"}})
		g.AddNode(&pktgen.Node{Name: "s2", HeaderStackExtracts: []string{"vlan"}})
		g.AddHeaderStack("vlan", 2)

		g.AddEdge(&pktgen.Edge{Src: "s0", Dst: "s1"})
		g.AddEdge(&pktgen.Edge{Src: "s1", Dst: "accept"})
		g.AddEdge(&pktgen.Edge{Src: "s1", Dst: "s2"})
		g.AddEdge(&pktgen.Edge{Src: "s2", Dst: "accept"})
		g.AddEdge(&pktgen.Edge{Src: "s2", Dst: "reject", ErrorTransition: true})
		g.AddTerminal("accept")
		g.AddTerminal("reject")

		strategy := pktgen.NewParserPathEnumerationStrategy(g)
		engine := pktgen.NewGraphTraversalEngine(g, strategy)
		engine.VisitAllPaths("s0")

		var keys []string
		for _, p := range strategy.Paths {
			keys = append(keys, p.String())
		}
		exp := []string{
			"s0->s1 s1->accept",
			"s0->s1 s1->s2 s2->reject",
		}
		if diff := cmp.Diff(keys, exp); diff != "" {
			t.Fatal(diff)
		}
	})

	// A branch over-extracting with no error transition available is
	// dropped entirely.
	t.Run("OverExtractionWithoutErrorEdgeDropsBranch", func(t *testing.T) {
		g := pktgen.NewGraph()
		g.AddNode(&pktgen.Node{Name: "s0", HeaderStackExtracts: []string{"vlan"}})
		g.AddNode(&pktgen.Node{Name: "s1", HeaderStackExtracts: []string{"vlan"}})
		g.AddHeaderStack("vlan", 1)

		g.AddEdge(&pktgen.Edge{Src: "s0", Dst: "s1"})
		g.AddEdge(&pktgen.Edge{Src: "s1", Dst: "accept"})
		g.AddTerminal("accept")

		strategy := pktgen.NewParserPathEnumerationStrategy(g)
		engine := pktgen.NewGraphTraversalEngine(g, strategy)
		engine.VisitAllPaths("s0")

		if got, exp := len(strategy.Paths), 0; got != exp {
			t.Fatalf("len(paths)=%d, expected %d", got, exp)
		}
	})

	// Retained paths must not alias the engine's reusable path buffer.
	t.Run("PathsAreIndependentCopies", func(t *testing.T) {
		g := pktgen.NewGraph()
		g.AddEdge(&pktgen.Edge{Src: "start", Dst: "a"})
		g.AddEdge(&pktgen.Edge{Src: "a", Dst: "accept"})
		g.AddEdge(&pktgen.Edge{Src: "a", Dst: "reject"})
		g.AddTerminal("accept")
		g.AddTerminal("reject")

		strategy := pktgen.NewParserPathEnumerationStrategy(g)
		engine := pktgen.NewGraphTraversalEngine(g, strategy)
		engine.VisitAllPaths("start")

		if got, exp := len(strategy.Paths), 2; got != exp {
			t.Fatalf("len(paths)=%d, expected %d", got, exp)
		}
		if got, exp := strategy.Paths[0][1].Dst, "accept"; got != exp {
			t.Fatalf("paths[0][1].Dst=%q, expected %q", got, exp)
		}
		if got, exp := strategy.Paths[1][1].Dst, "reject"; got != exp {
			t.Fatalf("paths[1][1].Dst=%q, expected %q", got, exp)
		}
	})
}
