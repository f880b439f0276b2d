package pktgen

// TableConsolidator accepts per-path constraint registrations in place of a
// test case per path, so table entries common to many paths can be
// consolidated by an external collaborator after the run.
type TableConsolidator interface {
	AddPath(pathID int, constraints []Expr, context map[string]string, expectedPath, parserPath, controlPath Path, complete bool)
}

// TableRegistration is one recorded consolidation registration.
type TableRegistration struct {
	PathID       int
	Constraints  []Expr
	Context      map[string]string
	ExpectedPath Path
	ParserPath   Path
	ControlPath  Path
	Complete     bool
}

// TableCollector is an in-memory TableConsolidator that records every
// registration for later consolidation.
type TableCollector struct {
	Registrations []TableRegistration
}

var _ TableConsolidator = (*TableCollector)(nil)

// NewTableCollector returns a new empty instance of TableCollector.
func NewTableCollector() *TableCollector {
	return &TableCollector{}
}

// AddPath records a registration.
func (c *TableCollector) AddPath(pathID int, constraints []Expr, context map[string]string, expectedPath, parserPath, controlPath Path, complete bool) {
	c.Registrations = append(c.Registrations, TableRegistration{
		PathID:       pathID,
		Constraints:  constraints,
		Context:      context,
		ExpectedPath: expectedPath.Clone(),
		ParserPath:   parserPath.Clone(),
		ControlPath:  controlPath.Clone(),
		Complete:     complete,
	})
}
