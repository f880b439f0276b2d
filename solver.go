package pktgen

// PathSolver is the constraint/solver collaborator. It owns all constraint
// encoding and concrete packet synthesis; the exploration core only decides
// which paths to submit and when to checkpoint, solve or reset.
//
// Checkpoints created by Push must be released by Pop in strict LIFO order
// matching the traversal stack. The core guarantees this pairing.
type PathSolver interface {
	// PathID returns an identifier for the path currently under exploration.
	PathID() int

	// ExpectedPath returns the full execution path for a (parser, control)
	// pair, used for logging and cross-checks only.
	ExpectedPath(parserPath, controlPath Path) Path

	// AddParserConstraints replaces accumulated parser state with the
	// constraints of a newly selected parser path.
	AddParserConstraints(parserPath Path)

	// AddPathConstraints submits the control path's edge conditions,
	// mutating accumulated solver state.
	AddPathConstraints(controlPath Path)

	// TryQuickSolve runs a cheap feasibility pre-check. The core stops
	// without producing output when it reports ResultSuccess for an
	// incomplete path.
	TryQuickSolve(controlPath Path, complete bool) TestPathResult

	// SolvePath fully solves the accumulated constraints. More expensive
	// and distinct from TryQuickSolve.
	SolvePath()

	// Push creates a solver-state checkpoint; Pop restores to the most
	// recent one.
	Push()
	Pop()

	// FixRandomConstraints fixes concrete values for randomization-only
	// variables so the emitted example is deterministic, and returns the
	// added constraints.
	FixRandomConstraints() []Expr

	// GenerateTestCase produces a concrete test case and packet sequence
	// consistent with the expected path, classified as a TestPathResult.
	GenerateTestCase(expectedPath, parserPath, controlPath Path, complete bool) (TestPathResult, *TestCase, []Packet)

	// ConstrainLastExtractVLLengths attempts to add a further distinct
	// variable-length-extraction bound. Reports whether one was added.
	ConstrainLastExtractVLLengths(variation ExtractVLVariation) bool

	// Reset clears accumulated control-path state. The constraints of the
	// parser path most recently given to AddParserConstraints remain
	// established; the core resets between control paths of one parser
	// path without re-submitting them.
	Reset()

	// Constraints returns the currently accumulated constraint set.
	Constraints() []Expr

	// Context returns solver context metadata for consolidation mode.
	Context() map[string]string
}

// TestCase is a concrete example exercising one explored path.
type TestCase struct {
	PathID       int            `json:"path_id"`
	Result       TestPathResult `json:"result"`
	ExpectedPath []string       `json:"expected_path"`
	Complete     bool           `json:"complete_path"`

	// Concrete values chosen for the symbolic variables along the path.
	Values map[string]uint64 `json:"values,omitempty"`

	// Elapsed-time metrics attached by the exploration core before writing.
	TimeSecGenerateConstraints float64 `json:"time_sec_generate_ingress_constraints"`
	TimeSecSolve               float64 `json:"time_sec_solve"`
	TimeSecSimulatePacket      float64 `json:"time_sec_simulate_packet"`
}

// Packet is a single concrete packet of a test case's packet sequence.
type Packet struct {
	Port int
	Data []byte
}

// ResultKey identifies one (parser path, control path) pair in a ResultMap.
type ResultKey struct {
	Parser  string
	Control string
}

// ResultMap records the classification of every explored path pair.
// Write-once-per-key in the common case; a later write with a different
// result is an anomaly, logged but not fatal.
type ResultMap map[ResultKey]TestPathResult

// NewResultKey returns the result map key for a path pair.
func NewResultKey(parserPath, controlPath Path) ResultKey {
	return ResultKey{Parser: parserPath.Key(), Control: controlPath.Key()}
}
