package pktgen

import (
	"log"
	"time"

	"github.com/benbjohnson/immutable"
)

// coverageLogInterval throttles the coverage-progress log. Real time, so a
// long-running exploration does not flood its output.
const coverageLogInterval = 30 * time.Second

// CoverageStatistics accumulates the run-wide counters and averages updated
// by the exploration core. It is an explicit run-context value owned and
// mutated exclusively by the single exploring goroutine.
type CoverageStatistics struct {
	NumTestCases        int
	NumCoveredEdges     int
	NumControlPathEdges int
	NumUnsatPaths       int

	AvgFullPathLen  RunningAverage
	AvgUnsatPathLen RunningAverage

	// ResultCounts tallies every recorded path result.
	ResultCounts map[TestPathResult]int

	// Recorded holds per-path records when statistics recording is enabled.
	Recorded []PathRecord

	// Per-edge visit counts, keyed by edge ID. The sorted map gives the
	// coverage log a deterministic iteration order.
	edgeVisits *immutable.SortedMap
	edgesByID  map[int]*Edge

	lastCoverageLogAt time.Time

	// Overridable for tests.
	Now  func() time.Time
	Logf func(format string, args ...interface{})
}

// PathRecord is one entry of the optional per-result statistics record.
type PathRecord struct {
	PathID   int
	Result   TestPathResult
	Complete bool
}

// NewCoverageStatistics returns a new empty instance of CoverageStatistics.
func NewCoverageStatistics() *CoverageStatistics {
	return &CoverageStatistics{
		ResultCounts: make(map[TestPathResult]int),
		edgeVisits:   immutable.NewSortedMap(&intComparer{}),
		edgesByID:    make(map[int]*Edge),
		Now:          time.Now,
		Logf:         log.Printf,
	}
}

// EdgeVisits returns the number of recorded visits for an edge.
func (s *CoverageStatistics) EdgeVisits(e *Edge) int {
	if value, _ := s.edgeVisits.Get(e.ID); value != nil {
		return value.(int)
	}
	return 0
}

// VisitEdge increments an edge's visit counter. The first transition from
// zero also increments the covered-edge counter.
func (s *CoverageStatistics) VisitEdge(e *Edge) {
	n := s.EdgeVisits(e)
	if n == 0 {
		s.NumCoveredEdges++
	}
	s.edgeVisits = s.edgeVisits.Set(e.ID, n+1)
	s.edgesByID[e.ID] = e
}

// Record appends a per-path record. Gated by Config.RecordStatistics.
func (s *CoverageStatistics) Record(pathID int, result TestPathResult, complete bool) {
	s.Recorded = append(s.Recorded, PathRecord{PathID: pathID, Result: result, Complete: complete})
}

// MaybeLogCoverage emits the coverage-progress log, at most once per
// throttle window of real time.
func (s *CoverageStatistics) MaybeLogCoverage() {
	now := s.Now()
	if now.Sub(s.lastCoverageLogAt) < coverageLogInterval {
		return
	}
	s.lastCoverageLogAt = now
	s.LogCoverage()
}

// LogCoverage emits per-edge visit counts and the covered-edge percentage.
func (s *CoverageStatistics) LogCoverage() {
	itr := s.edgeVisits.Iterator()
	for {
		k, v := itr.Next()
		if k == nil {
			break
		}
		edge := s.edgesByID[k.(int)]
		s.Logf("[stats] edge %s visits=%d", edge, v.(int))
	}
	if s.NumControlPathEdges > 0 {
		s.Logf("[stats] covered %d/%d control path edges (%.1f%%)",
			s.NumCoveredEdges, s.NumControlPathEdges,
			100*float64(s.NumCoveredEdges)/float64(s.NumControlPathEdges))
	}
}

// RunningAverage maintains an incremental mean.
type RunningAverage struct {
	Count int
	Mean  float64
}

// Record folds a new observation into the average.
func (a *RunningAverage) Record(v int) {
	a.Count++
	a.Mean += (float64(v) - a.Mean) / float64(a.Count)
}

// intComparer compares two ints. Implements immutable.Comparer.
type intComparer struct{}

// Compare returns -1 if a is less than b, 1 if a is greater than b, and 0 if
// equal. Panic if a or b is not an int.
func (c *intComparer) Compare(a, b interface{}) int {
	if i, j := a.(int), b.(int); i < j {
		return -1
	} else if i > j {
		return 1
	}
	return 0
}
