package pktgen

import (
	"errors"
	"fmt"
)

var (
	ErrConfigConflict = errors.New("pktgen: consolidate-tables mode requires a per-path test case limit of one")
)

// TestPathResult classifies the solver outcome for a single explored path.
// The exploration core only interprets ResultSuccess and ResultNoPacketFound;
// all other kinds are treated as opaque failures.
type TestPathResult string

const (
	ResultSuccess           = TestPathResult("SUCCESS")
	ResultNoPacketFound     = TestPathResult("NO_PACKET_FOUND")
	ResultUninitializedRead = TestPathResult("UNINITIALIZED_READ")
	ResultUnsupported       = TestPathResult("UNSUPPORTED")
	ResultSolverError       = TestPathResult("SOLVER_ERROR")
)

// VisitResult is the traversal control signal returned by a strategy.
type VisitResult int

const (
	VisitContinue  = VisitResult(iota) // descend into the branch
	VisitBacktrack                     // abandon the branch
	VisitAbort                         // terminate the whole traversal
)

// String returns the string representation of the visit result.
func (r VisitResult) String() string {
	switch r {
	case VisitContinue:
		return "continue"
	case VisitBacktrack:
		return "backtrack"
	case VisitAbort:
		return "abort"
	default:
		return fmt.Sprintf("VisitResult<%d>", r)
	}
}

// assert panics if condition is false.
func assert(condition bool, format string, args ...interface{}) {
	if !condition {
		panic(fmt.Sprintf("assert: "+format, args...))
	}
}
