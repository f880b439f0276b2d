package pktgen

import (
	"fmt"
	"log"
	"time"
)

// recordResult reports whether a path outcome is recorded: a success on a
// complete path, or any non-success outcome. A satisfiable, incomplete
// result is never recorded. The same predicate gates test case emission and
// result-map/coverage updates.
func recordResult(result TestPathResult, complete bool) bool {
	return result != ResultSuccess || complete
}

// controlExplorer turns one (parser path, control path) pair into zero or
// more concrete test cases: constraint submission, the bounded generation
// loop, result classification, coverage recording and the shared stopping
// policy. Both control coverage strategies embed it.
type controlExplorer struct {
	config *Config
	stats  *CoverageStatistics
	solver PathSolver
	tables TableConsolidator
	writer TestCaseWriter

	parserPath Path
	results    ResultMap

	// Successful complete control paths seen for this parser path.
	successPathCount int
}

// generateTestCase runs the generation loop for one control path and returns
// the classification of the first iteration.
func (v *controlExplorer) generateTestCase(controlPath Path, complete bool) TestPathResult {
	expectedPath := v.solver.ExpectedPath(v.parserPath, controlPath)
	pathID := v.solver.PathID()

	desc := fmt.Sprintf("path %d (len %d+%d=%d) complete=%v: %s",
		pathID, len(v.parserPath), len(controlPath),
		len(v.parserPath)+len(controlPath), complete, expectedPath)
	log.Printf("[explore] begin %s", desc)

	t := time.Now()
	v.solver.AddPathConstraints(controlPath)
	constraintTime := time.Since(t)

	if result := v.solver.TryQuickSolve(controlPath, complete); result == ResultSuccess && !complete {
		// Trivially satisfiable and not complete: no test case required.
		assert(!recordResult(result, complete), "quick-solved prefix must not be recordable")
		log.Printf("[explore] end %s: satisfiable prefix, no test case", desc)
		return result
	}

	var results []TestPathResult
loop:
	for {
		t = time.Now()
		v.solver.SolvePath()
		solveTime := time.Since(t)

		// Fix concrete values for randomization-only variables so the
		// emitted example is deterministic. The checkpoint is restored
		// right after extraction; later iterations must remain free to
		// find other solutions.
		var randomConstraints []Expr
		fixRandom := complete
		if fixRandom {
			v.solver.Push()
			randomConstraints = v.solver.FixRandomConstraints()
		}

		t = time.Now()
		result, testCase, packets := v.solver.GenerateTestCase(expectedPath, v.parserPath, controlPath, complete)
		simulateTime := time.Since(t)

		if fixRandom {
			v.solver.Pop()
		}

		results = append(results, result)

		// If this result wouldn't be recorded, subsequent ones won't be
		// either, so move on.
		if !recordResult(result, complete) {
			break
		}

		if v.config.ConsolidateTables {
			constraints := append([]Expr{}, v.solver.Constraints()...)
			constraints = append(constraints, randomConstraints...)
			v.tables.AddPath(pathID, constraints, v.solver.Context(),
				expectedPath, v.parserPath, controlPath, complete)
			break
		}

		testCase.TimeSecGenerateConstraints = constraintTime.Seconds()
		testCase.TimeSecSolve = solveTime.Seconds()
		testCase.TimeSecSimulatePacket = simulateTime.Seconds()

		if err := v.writer.Write(testCase, packets); err != nil {
			log.Printf("[writer] write failed: %v", err)
		}
		v.stats.NumTestCases++
		log.Printf("[explore] generated %d test case(s) for path %d", len(results), pathID)

		// Move on once enough test cases exist overall, enough exist for
		// this path, or possible packets for this path are exhausted.
		switch {
		case v.config.MaxTestCases != 0 && v.stats.NumTestCases >= v.config.MaxTestCases:
			break loop
		case v.config.MaxTestCasesPerPath != 0 && len(results) >= v.config.MaxTestCasesPerPath:
			break loop
		case result == ResultNoPacketFound:
			break loop
		}

		if !v.solver.ConstrainLastExtractVLLengths(v.config.ExtractVLVariation) {
			// Unbounded test case counts are only safe while constraints
			// on VL-extraction lengths keep accumulating; otherwise this
			// loop would never terminate.
			if v.config.MaxTestCasesPerPath == 0 {
				break
			}
		}
	}

	// The call's overall result is the first iteration's classification.
	result := results[0]

	if !v.config.Incremental {
		v.solver.Reset()
	}
	log.Printf("[explore] end %s: %s", desc, result)
	return result
}

// recordStats folds one path outcome into coverage state, run statistics and
// the result map.
func (v *controlExplorer) recordStats(controlPath Path, complete bool, result TestPathResult) {
	if result == ResultSuccess && complete {
		v.stats.AvgFullPathLen.Record(len(v.parserPath) + len(controlPath))
		for _, e := range controlPath {
			v.stats.VisitEdge(e)
		}
	}
	if result == ResultNoPacketFound {
		v.stats.AvgUnsatPathLen.Record(len(v.parserPath) + len(controlPath))
		v.stats.NumUnsatPaths++
	}

	if v.config.RecordStatistics {
		v.stats.Record(v.solver.PathID(), result, complete)
	}

	if !recordResult(result, complete) {
		return
	}

	key := NewResultKey(v.parserPath, controlPath)
	if prev, ok := v.results[key]; ok && prev != result {
		// Tolerated: favor a completed run over strict internal
		// consistency, at the cost of an overwritten map entry.
		log.Printf("[anomaly] path %v already recorded with result %s while recording different result %s", key, prev, result)
	}
	v.results[key] = result

	if result == ResultSuccess && complete {
		v.successPathCount++
		v.stats.MaybeLogCoverage()
	}
	v.stats.ResultCounts[result]++
}

// visitResult is the shared stopping policy, evaluated after every
// generate+record cycle.
func (v *controlExplorer) visitResult(result TestPathResult) VisitResult {
	if v.config.MaxTestCases != 0 && v.stats.NumTestCases >= v.config.MaxTestCases {
		return VisitAbort
	}
	if v.config.MaxPathsPerParserPath != 0 && v.successPathCount >= v.config.MaxPathsPerParserPath {
		return VisitBacktrack
	}
	if result != ResultSuccess {
		return VisitBacktrack
	}
	return VisitContinue
}

// PathCoverageStrategy explores every control path exhaustively, bounded
// only by the shared stopping policy.
type PathCoverageStrategy struct {
	controlExplorer
}

var _ Strategy = (*PathCoverageStrategy)(nil)

// NewPathCoverageStrategy returns a new instance of PathCoverageStrategy for
// one parser path.
func NewPathCoverageStrategy(config *Config, stats *CoverageStatistics, solver PathSolver, tables TableConsolidator, writer TestCaseWriter, parserPath Path, results ResultMap) *PathCoverageStrategy {
	return &PathCoverageStrategy{
		controlExplorer: controlExplorer{
			config:     config,
			stats:      stats,
			solver:     solver,
			tables:     tables,
			writer:     writer,
			parserPath: parserPath,
			results:    results,
		},
	}
}

// PreprocessEdges explores declared edges unchanged.
func (s *PathCoverageStrategy) PreprocessEdges(prefix Path, edges []*Edge) []*Edge {
	return edges
}

// Visit checkpoints the solver, generates and records, and applies the
// stopping policy. Every Visit pushes exactly one checkpoint.
func (s *PathCoverageStrategy) Visit(path Path, complete bool) VisitResult {
	s.solver.Push()
	result := s.generateTestCase(path, complete)
	s.recordStats(path, complete, result)
	return s.visitResult(result)
}

// Backtrack pops the checkpoint pushed by the corresponding Visit.
func (s *PathCoverageStrategy) Backtrack() {
	s.solver.Pop()
}
