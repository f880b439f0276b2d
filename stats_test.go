package pktgen_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/benbjohnson/pktgen"
	"github.com/stretchr/testify/require"
)

func TestRunningAverage(t *testing.T) {
	var avg pktgen.RunningAverage
	avg.Record(2)
	avg.Record(4)
	avg.Record(6)
	require.Equal(t, 3, avg.Count)
	require.InDelta(t, 4.0, avg.Mean, 1e-9)
}

func TestCoverageStatistics_VisitEdge(t *testing.T) {
	g := pktgen.NewGraph()
	e1 := g.AddEdge(&pktgen.Edge{Src: "a", Dst: "b"})
	e2 := g.AddEdge(&pktgen.Edge{Src: "b", Dst: "c"})

	stats := pktgen.NewCoverageStatistics()
	stats.VisitEdge(e1)
	stats.VisitEdge(e1)
	stats.VisitEdge(e2)

	require.Equal(t, 2, stats.EdgeVisits(e1))
	require.Equal(t, 1, stats.EdgeVisits(e2))

	// Only the 0->nonzero transition counts as newly covered.
	require.Equal(t, 2, stats.NumCoveredEdges)
}

func TestCoverageStatistics_MaybeLogCoverage(t *testing.T) {
	g := pktgen.NewGraph()
	e := g.AddEdge(&pktgen.Edge{Src: "a", Dst: "b"})

	stats := pktgen.NewCoverageStatistics()
	stats.NumControlPathEdges = 1
	stats.VisitEdge(e)

	now := time.Unix(1000, 0)
	stats.Now = func() time.Time { return now }

	var lines []string
	stats.Logf = func(format string, args ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, args...))
	}

	stats.MaybeLogCoverage()
	require.NotEmpty(t, lines)
	n := len(lines)

	// Within the throttle window nothing further is emitted.
	now = now.Add(time.Second)
	stats.MaybeLogCoverage()
	require.Len(t, lines, n)

	// Past the window the log fires again.
	now = now.Add(time.Minute)
	stats.MaybeLogCoverage()
	require.Greater(t, len(lines), n)
	require.Contains(t, lines[len(lines)-1], "covered 1/1")
}

func TestCoverageStatistics_Record(t *testing.T) {
	stats := pktgen.NewCoverageStatistics()
	stats.Record(7, pktgen.ResultSuccess, true)
	stats.Record(8, pktgen.ResultNoPacketFound, false)

	require.Equal(t, []pktgen.PathRecord{
		{PathID: 7, Result: pktgen.ResultSuccess, Complete: true},
		{PathID: 8, Result: pktgen.ResultNoPacketFound, Complete: false},
	}, stats.Recorded)
}
