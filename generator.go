package pktgen

import (
	"log"
)

// TestCaseGenerator orchestrates a full run: enumerate every structurally
// valid parser path once, then explore the control graph for each of them
// with the configured coverage strategy, producing test cases and updating
// coverage state as it goes.
type TestCaseGenerator struct {
	config       Config
	parserGraph  *Graph
	controlGraph *Graph
	solver       PathSolver
	tables       TableConsolidator
	writer       TestCaseWriter

	// Stats holds the run statistics. Replaceable before Run for tests.
	Stats *CoverageStatistics
}

// NewTestCaseGenerator returns a new instance of TestCaseGenerator.
func NewTestCaseGenerator(config Config, parserGraph, controlGraph *Graph, solver PathSolver, tables TableConsolidator, writer TestCaseWriter) *TestCaseGenerator {
	return &TestCaseGenerator{
		config:       config,
		parserGraph:  parserGraph,
		controlGraph: controlGraph,
		solver:       solver,
		tables:       tables,
		writer:       writer,
		Stats:        NewCoverageStatistics(),
	}
}

// Run explores the graphs from the given entry nodes and returns the
// result map. Fails fast on conflicting configuration.
func (g *TestCaseGenerator) Run(parserStart, controlStart string) (ResultMap, error) {
	if err := g.config.Validate(); err != nil {
		return nil, err
	}
	g.Stats.NumControlPathEdges = g.controlGraph.NumEdges()

	// Enumerate complete parser paths once.
	parser := NewParserPathEnumerationStrategy(g.parserGraph)
	engine := NewGraphTraversalEngine(g.parserGraph, parser)
	engine.MaxFrames = g.config.MaxGraphDepth
	engine.VisitAllPaths(parserStart)
	log.Printf("[generate] enumerated %d parser path(s)", len(parser.Paths))

	results := make(ResultMap)
	state := NewEdgeCoverageState()

	for _, parserPath := range parser.Paths {
		g.solver.AddParserConstraints(parserPath)

		var strategy Strategy
		if g.config.EdgeCoverage {
			strategy = NewEdgeCoverageStrategy(&g.config, g.Stats, g.solver, g.tables, g.writer, parserPath, results, g.controlGraph, state)
		} else {
			strategy = NewPathCoverageStrategy(&g.config, g.Stats, g.solver, g.tables, g.writer, parserPath, results)
		}

		engine := NewGraphTraversalEngine(g.controlGraph, strategy)
		engine.MaxFrames = g.config.MaxGraphDepth
		if res := engine.VisitAllPaths(controlStart); res == VisitAbort {
			log.Printf("[generate] aborted after %d test case(s)", g.Stats.NumTestCases)
			break
		}
	}

	g.Stats.LogCoverage()
	return results, nil
}
