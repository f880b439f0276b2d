package pktgen

// ExtractVLVariation selects how solutions for variable-length extraction
// lengths are varied between test cases of the same path.
type ExtractVLVariation string

const (
	VariationNone     = ExtractVLVariation("none")     // no length variation
	VariationSequence = ExtractVLVariation("sequence") // at least one length differs per case
	VariationAnd      = ExtractVLVariation("and")      // every length differs per case
)

// Config holds the read-only options for one exploration run. It is
// constructed once, validated, and threaded through the traversal and all
// strategies.
type Config struct {
	// ExtractVLVariation selects the variable-length-extraction variation
	// strategy passed through to the solver.
	ExtractVLVariation ExtractVLVariation `yaml:"extract_vl_variation"`

	// MaxTestCases caps the number of test cases for the whole run.
	// Zero means unbounded.
	MaxTestCases int `yaml:"max_test_cases"`

	// MaxTestCasesPerPath caps the test cases emitted per explored path.
	// Zero means unbounded. Must be one when ConsolidateTables is set.
	MaxTestCasesPerPath int `yaml:"max_test_cases_per_path"`

	// ConsolidateTables registers path constraints with the table
	// consolidation collaborator instead of writing test cases.
	ConsolidateTables bool `yaml:"consolidate_tables"`

	// MaxPathsPerParserPath caps the successful control paths explored for
	// each parser path. Zero means unbounded.
	MaxPathsPerParserPath int `yaml:"max_paths_per_parser_path"`

	// Incremental keeps accumulated solver state across paths instead of
	// resetting after each generation call.
	Incremental bool `yaml:"incremental"`

	// RecordStatistics enables per-result statistics recording.
	RecordStatistics bool `yaml:"record_statistics"`

	// EdgeCoverage selects greedy least-covered-first control exploration
	// instead of exhaustive path coverage.
	EdgeCoverage bool `yaml:"edge_coverage"`

	// MaxGraphDepth bounds the traversal frame budget so a cyclic graph
	// terminates. Zero applies DefaultMaxFrames.
	MaxGraphDepth int `yaml:"max_graph_depth"`
}

// DefaultConfig returns a Config with the default options.
func DefaultConfig() Config {
	return Config{
		ExtractVLVariation:  VariationNone,
		MaxTestCasesPerPath: 1,
	}
}

// Validate returns an error if option combinations conflict. Called before
// any exploration starts.
func (c *Config) Validate() error {
	if c.ConsolidateTables && c.MaxTestCasesPerPath != 1 {
		return ErrConfigConflict
	}
	return nil
}
