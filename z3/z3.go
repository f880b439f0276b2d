package z3

import (
	"fmt"
	"strings"
	"time"
	"unsafe"

	"github.com/benbjohnson/pktgen"
)

/*
#cgo LDFLAGS: -lz3
#include <z3.h>
#include <stdlib.h>
#include <stdio.h>
*/
import "C"

// Ensure solver implements interface.
var _ pktgen.PathSolver = (*Solver)(nil)

// Solver implements the path solver collaborator over an embedded Z3
// solver. Checkpoints map onto Z3's solver push/pop scopes so constraint
// state nests exactly with the traversal stack.
type Solver struct {
	ctx    *Context
	solver C.Z3_solver
	stats  Stats

	pathIDSeq int

	// Conditions of the parser path currently under exploration. They are
	// the baseline Reset restores: the core asserts them once per parser
	// path and may reset between control paths of that same parser path.
	parserPath pktgen.Path

	// Mirror of the asserted constraint set. scopes holds the mirror
	// length at each outstanding checkpoint.
	constraints []pktgen.Expr
	scopes      []int

	// Model captured by the most recent satisfiable check. Held with its
	// own reference so later push/pop does not invalidate it.
	model C.Z3_model

	// Variables to fix when making an emitted example deterministic, and
	// variable-length extraction length variables, in registration order.
	randomVars []*pktgen.VarExpr
	vlVars     []*pktgen.VarExpr

	// Packet layout: fields concatenated in registration order.
	packetFields []*pktgen.VarExpr

	// Values of vlVars in the most recent solution.
	lastVLValues []uint64
}

// NewSolver returns a new instance of Solver.
func NewSolver() *Solver {
	ctx := NewContext()
	solver := C.Z3_mk_solver(ctx.raw)
	C.Z3_solver_inc_ref(ctx.raw, solver)
	return &Solver{ctx: ctx, solver: solver}
}

// Close releases the underlying Z3 solver and context.
func (s *Solver) Close() error {
	s.releaseModel()
	C.Z3_solver_dec_ref(s.ctx.raw, s.solver)
	return s.ctx.Close()
}

// Stats returns statistics for the solver.
func (s *Solver) Stats() Stats {
	return s.stats
}

// RegisterRandomVar marks a variable as randomization-only: its value is
// fixed per emitted example but does not constrain later solutions.
func (s *Solver) RegisterRandomVar(v *pktgen.VarExpr) {
	s.randomVars = append(s.randomVars, v)
}

// RegisterVLLengthVar registers a variable-length extraction length
// variable, enabling ConstrainLastExtractVLLengths to vary it.
func (s *Solver) RegisterVLLengthVar(v *pktgen.VarExpr) {
	s.vlVars = append(s.vlVars, v)
}

// RegisterPacketField appends a field to the emitted packet layout.
func (s *Solver) RegisterPacketField(v *pktgen.VarExpr) {
	s.packetFields = append(s.packetFields, v)
}

// PathID returns the identifier of the path currently under exploration.
func (s *Solver) PathID() int { return s.pathIDSeq }

// ExpectedPath returns the concatenation of the parser and control paths.
func (s *Solver) ExpectedPath(parserPath, controlPath pktgen.Path) pktgen.Path {
	expected := make(pktgen.Path, 0, len(parserPath)+len(controlPath))
	expected = append(expected, parserPath...)
	return append(expected, controlPath...)
}

// AddParserConstraints makes parserPath the new baseline: accumulated state
// is cleared and the path's edge conditions are asserted.
func (s *Solver) AddParserConstraints(parserPath pktgen.Path) {
	s.parserPath = parserPath.Clone()
	s.Reset()
}

// AddPathConstraints asserts the control path's edge conditions on top of
// the accumulated state.
func (s *Solver) AddPathConstraints(controlPath pktgen.Path) {
	s.pathIDSeq++
	for _, edge := range controlPath {
		if edge.Condition != nil {
			s.assert(edge.Condition)
		}
	}
}

// assert converts and asserts a single constraint, mirroring it locally.
func (s *Solver) assert(expr pktgen.Expr) {
	ast, err := s.ctx.toAST(expr)
	if err != nil {
		panic(err)
	}
	C.Z3_solver_assert(s.ctx.raw, s.solver, ast)
	if err := s.ctx.err("Z3_solver_assert"); err != nil {
		panic(err)
	}
	s.constraints = append(s.constraints, expr)
}

// TryQuickSolve reports the feasibility of the current constraint set with
// a single incremental check.
func (s *Solver) TryQuickSolve(controlPath pktgen.Path, complete bool) pktgen.TestPathResult {
	result, err := s.check()
	if err != nil {
		return pktgen.ResultSolverError
	}
	return result
}

// SolvePath fully solves the accumulated constraints.
func (s *Solver) SolvePath() {
	t := time.Now()
	defer func() {
		s.stats.SolveN++
		s.stats.SolveTime += time.Since(t)
	}()
	if _, err := s.check(); err != nil {
		panic(err)
	}
}

// Push creates a solver-state checkpoint.
func (s *Solver) Push() {
	C.Z3_solver_push(s.ctx.raw, s.solver)
	s.scopes = append(s.scopes, len(s.constraints))
	s.stats.PushN++
}

// Pop restores the most recent checkpoint. Pops without an outstanding
// checkpoint are no-ops: the traversal unwinds its frames after a full
// Reset has already discarded them.
func (s *Solver) Pop() {
	if len(s.scopes) == 0 {
		return
	}
	C.Z3_solver_pop(s.ctx.raw, s.solver, 1)
	n := s.scopes[len(s.scopes)-1]
	s.scopes = s.scopes[:len(s.scopes)-1]
	s.constraints = s.constraints[:n]
	s.stats.PopN++
}

// FixRandomConstraints asserts equality between each randomization variable
// and its value in the model of the last satisfiable check, returning the
// added constraints. Callers checkpoint around the call, so the model must
// survive the intervening push; the solver evaluates against the model it
// captured at check time rather than asking Z3 again.
func (s *Solver) FixRandomConstraints() []pktgen.Expr {
	if len(s.randomVars) == 0 || s.model == nil {
		return nil
	}

	var fixed []pktgen.Expr
	for _, v := range s.randomVars {
		value, ok := s.evalVar(v)
		if !ok {
			continue
		}
		expr := pktgen.NewEqExpr(v, pktgen.NewConstantExpr(value, v.Width))
		s.assert(expr)
		fixed = append(fixed, expr)
	}
	return fixed
}

// GenerateTestCase produces a concrete test case and packet sequence for the
// current model, classified as a TestPathResult.
func (s *Solver) GenerateTestCase(expectedPath, parserPath, controlPath pktgen.Path, complete bool) (pktgen.TestPathResult, *pktgen.TestCase, []pktgen.Packet) {
	tc := &pktgen.TestCase{
		PathID:       s.pathIDSeq,
		ExpectedPath: pathLabels(expectedPath),
		Complete:     complete,
	}

	result, err := s.check()
	if err != nil {
		tc.Result = pktgen.ResultSolverError
		return tc.Result, tc, nil
	} else if result != pktgen.ResultSuccess {
		tc.Result = pktgen.ResultNoPacketFound
		return tc.Result, tc, nil
	}

	if s.model == nil {
		tc.Result = pktgen.ResultSolverError
		return tc.Result, tc, nil
	}

	// Concrete values for every variable referenced by the constraints.
	tc.Values = make(map[string]uint64)
	for _, v := range pktgen.FindVars(s.constraints...) {
		if value, ok := s.evalVar(v); ok {
			tc.Values[v.Name] = value
		}
	}

	// Remember VL length values so the next iteration can be constrained
	// to differ.
	s.lastVLValues = s.lastVLValues[:0]
	for _, v := range s.vlVars {
		value, _ := s.evalVar(v)
		s.lastVLValues = append(s.lastVLValues, value)
	}

	tc.Result = pktgen.ResultSuccess
	return tc.Result, tc, s.buildPackets()
}

// buildPackets serializes the packet field variables into one packet,
// big-endian, in registration order.
func (s *Solver) buildPackets() []pktgen.Packet {
	if len(s.packetFields) == 0 {
		return nil
	}
	var data []byte
	for _, v := range s.packetFields {
		value, _ := s.evalVar(v)
		for n := int(v.Width) / 8; n > 0; n-- {
			data = append(data, byte(value>>(uint(n-1)*8)))
		}
	}
	return []pktgen.Packet{{Port: 0, Data: data}}
}

// ConstrainLastExtractVLLengths asserts that the next solution's VL
// extraction lengths differ from the last one's: VariationSequence requires
// at least one length to differ, VariationAnd requires every length to
// differ. Reports false when no further distinct constraint can be added.
func (s *Solver) ConstrainLastExtractVLLengths(variation pktgen.ExtractVLVariation) bool {
	if variation == pktgen.VariationNone || variation == "" {
		return false
	}
	if len(s.vlVars) == 0 || len(s.lastVLValues) != len(s.vlVars) {
		return false
	}

	op := pktgen.OR
	if variation == pktgen.VariationAnd {
		op = pktgen.AND
	}

	var cond pktgen.Expr
	for i, v := range s.vlVars {
		ne := pktgen.NewNeExpr(v, pktgen.NewConstantExpr(s.lastVLValues[i], v.Width))
		if cond == nil {
			cond = ne
		} else {
			cond = pktgen.NewBinaryExpr(op, cond, ne)
		}
	}
	s.assert(cond)
	return true
}

// Reset clears accumulated control-path state and re-establishes the
// current parser path's conditions. The core asserts parser constraints
// once per parser path but resets between control paths, so a reset that
// dropped them would solve later control paths against the wrong baseline.
func (s *Solver) Reset() {
	C.Z3_solver_reset(s.ctx.raw, s.solver)
	s.constraints = s.constraints[:0]
	s.scopes = s.scopes[:0]
	s.lastVLValues = s.lastVLValues[:0]
	for _, edge := range s.parserPath {
		if edge.Condition != nil {
			s.assert(edge.Condition)
		}
	}
}

// Constraints returns the accumulated constraint set.
func (s *Solver) Constraints() []pktgen.Expr {
	a := make([]pktgen.Expr, len(s.constraints))
	copy(a, s.constraints)
	return a
}

// Context returns solver metadata for consolidation mode.
func (s *Solver) Context() map[string]string {
	return map[string]string{
		"backend":     "z3",
		"constraints": fmt.Sprintf("%d", len(s.constraints)),
		"scopes":      fmt.Sprintf("%d", len(s.scopes)),
	}
}

// check runs the solver and classifies the outcome. A satisfiable check
// captures its model so it can be evaluated after later push/pop.
func (s *Solver) check() (pktgen.TestPathResult, error) {
	ret := C.Z3_solver_check(s.ctx.raw, s.solver)
	if err := s.ctx.err("Z3_solver_check"); err != nil {
		return pktgen.ResultSolverError, err
	}
	switch ret {
	case C.Z3_L_TRUE:
		if err := s.captureModel(); err != nil {
			return pktgen.ResultSolverError, err
		}
		return pktgen.ResultSuccess, nil
	case C.Z3_L_FALSE:
		return pktgen.ResultNoPacketFound, nil
	default:
		reason := C.GoString(C.Z3_solver_get_reason_unknown(s.ctx.raw, s.solver))
		switch {
		case strings.Contains(reason, "timeout"):
			return pktgen.ResultSolverError, ErrSolverTimeout
		case strings.Contains(reason, "canceled"):
			return pktgen.ResultSolverError, ErrSolverCanceled
		default:
			return pktgen.ResultSolverError, fmt.Errorf("z3: %s", reason)
		}
	}
}

// captureModel replaces the retained model with the one from the last
// satisfiable check.
func (s *Solver) captureModel() error {
	model := C.Z3_solver_get_model(s.ctx.raw, s.solver)
	if err := s.ctx.err("Z3_solver_get_model"); err != nil {
		return err
	}
	C.Z3_model_inc_ref(s.ctx.raw, model)
	s.releaseModel()
	s.model = model
	return nil
}

func (s *Solver) releaseModel() {
	if s.model == nil {
		return
	}
	C.Z3_model_dec_ref(s.ctx.raw, s.model)
	s.model = nil
}

// evalVar evaluates a variable to a concrete value against the retained
// model.
func (s *Solver) evalVar(v *pktgen.VarExpr) (uint64, bool) {
	if s.model == nil {
		return 0, false
	}
	ast, err := s.ctx.makeVar(v)
	if err != nil {
		return 0, false
	}

	var evaluated C.Z3_ast
	C.Z3_model_eval(s.ctx.raw, s.model, ast, C.bool(true), &evaluated)
	if err := s.ctx.err("Z3_model_eval"); err != nil {
		return 0, false
	}

	var value C.uint64_t
	if !bool(C.Z3_get_numeral_uint64(s.ctx.raw, evaluated, &value)) {
		return 0, false
	}
	return uint64(value), true
}

// pathLabels renders a path as edge descriptions for test case output.
func pathLabels(path pktgen.Path) []string {
	a := make([]string, len(path))
	for i, e := range path {
		a[i] = e.String()
	}
	return a
}

// Context represents a Z3 context object used for constructing expressions.
type Context struct {
	raw C.Z3_context
}

// NewContext returns a new instance of Context.
func NewContext() *Context {
	config := C.Z3_mk_config()
	defer C.Z3_del_config(config)

	raw := C.Z3_mk_context(config)
	C.Z3_set_error_handler(raw, nil)
	C.Z3_set_ast_print_mode(raw, C.Z3_PRINT_SMTLIB2_COMPLIANT)
	return &Context{raw: raw}
}

// Close deletes the underlying Z3 context.
func (ctx *Context) Close() error {
	C.Z3_del_context(ctx.raw)
	return ctx.err("Z3_del_context")
}

// err returns the error for the last API call. Returns nil if last call was successful.
func (ctx *Context) err(op string) error {
	if code := C.Z3_get_error_code(ctx.raw); code != C.Z3_OK {
		return &Error{Code: int(code), Op: op, Message: C.GoString(C.Z3_get_error_msg(ctx.raw, code))}
	}
	return nil
}

// toAST returns a new instance of Z3_ast from an expression.
func (ctx *Context) toAST(expr pktgen.Expr) (C.Z3_ast, error) {
	switch expr := expr.(type) {
	case *pktgen.ConstantExpr:
		return ctx.toConstantAST(expr)
	case *pktgen.VarExpr:
		return ctx.makeVar(expr)
	case *pktgen.NotExpr:
		return ctx.toNotAST(expr)
	case *pktgen.BinaryExpr:
		return ctx.toBinaryAST(expr)
	default:
		return nil, fmt.Errorf("z3.Context.toAST: invalid expression type: %T", expr)
	}
}

func (ctx *Context) toConstantAST(expr *pktgen.ConstantExpr) (C.Z3_ast, error) {
	if expr.Width == 1 {
		if expr.IsTrue() {
			return ctx.makeTrue()
		}
		return ctx.makeFalse()
	} else if expr.Width <= 64 {
		return ctx.makeUint64(expr.Width, expr.Value)
	}
	return nil, fmt.Errorf("z3.Context.toConstantAST: invalid expression width: %d", expr.Width)
}

func (ctx *Context) toNotAST(expr *pktgen.NotExpr) (C.Z3_ast, error) {
	src, err := ctx.toAST(expr.Expr)
	if err != nil {
		return nil, err
	}

	// If boolean, use boolean NOT operation.
	if pktgen.ExprWidth(expr.Expr) == 1 {
		return C.Z3_mk_not(ctx.raw, src), ctx.err("Z3_mk_not")
	}
	return C.Z3_mk_bvnot(ctx.raw, src), ctx.err("Z3_mk_bvnot")
}

func (ctx *Context) toBinaryAST(expr *pktgen.BinaryExpr) (C.Z3_ast, error) {
	lhs, err := ctx.toAST(expr.LHS)
	if err != nil {
		return nil, err
	}
	rhs, err := ctx.toAST(expr.RHS)
	if err != nil {
		return nil, err
	}

	boolean := pktgen.ExprWidth(expr.LHS) == 1

	switch expr.Op {
	case pktgen.ADD:
		return C.Z3_mk_bvadd(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvadd")
	case pktgen.SUB:
		return C.Z3_mk_bvsub(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvsub")
	case pktgen.AND:
		if boolean {
			args := [2]C.Z3_ast{lhs, rhs}
			return C.Z3_mk_and(ctx.raw, 2, &args[0]), ctx.err("Z3_mk_and")
		}
		return C.Z3_mk_bvand(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvand")
	case pktgen.OR:
		if boolean {
			args := [2]C.Z3_ast{lhs, rhs}
			return C.Z3_mk_or(ctx.raw, 2, &args[0]), ctx.err("Z3_mk_or")
		}
		return C.Z3_mk_bvor(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvor")
	case pktgen.XOR:
		if boolean {
			return C.Z3_mk_xor(ctx.raw, lhs, rhs), ctx.err("Z3_mk_xor")
		}
		return C.Z3_mk_bvxor(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvxor")
	case pktgen.EQ:
		if boolean {
			return C.Z3_mk_iff(ctx.raw, lhs, rhs), ctx.err("Z3_mk_iff")
		}
		return C.Z3_mk_eq(ctx.raw, lhs, rhs), ctx.err("Z3_mk_eq")
	case pktgen.NE:
		var eq C.Z3_ast
		if boolean {
			eq = C.Z3_mk_iff(ctx.raw, lhs, rhs)
		} else {
			eq = C.Z3_mk_eq(ctx.raw, lhs, rhs)
		}
		if err := ctx.err("Z3_mk_eq"); err != nil {
			return nil, err
		}
		return C.Z3_mk_not(ctx.raw, eq), ctx.err("Z3_mk_not")
	case pktgen.ULT:
		return C.Z3_mk_bvult(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvult")
	case pktgen.ULE:
		return C.Z3_mk_bvule(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvule")
	case pktgen.SLT:
		return C.Z3_mk_bvslt(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvslt")
	case pktgen.SLE:
		return C.Z3_mk_bvsle(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvsle")
	default:
		return nil, fmt.Errorf("z3.Context.toBinaryAST: unexpected operation: %s", expr.Op)
	}
}

func (ctx *Context) makeTrue() (C.Z3_ast, error) {
	return C.Z3_mk_true(ctx.raw), ctx.err("Z3_mk_true")
}

func (ctx *Context) makeFalse() (C.Z3_ast, error) {
	return C.Z3_mk_false(ctx.raw), ctx.err("Z3_mk_false")
}

func (ctx *Context) makeBVSort(width uint) (C.Z3_sort, error) {
	return C.Z3_mk_bv_sort(ctx.raw, C.uint(width)), ctx.err("Z3_mk_bv_sort")
}

func (ctx *Context) makeUint64(width uint, value uint64) (C.Z3_ast, error) {
	t, err := ctx.makeBVSort(width)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_unsigned_int64(ctx.raw, C.uint64_t(value), t), ctx.err("Z3_mk_unsigned_int64")
}

// makeVar returns the bitvector constant for a named variable.
func (ctx *Context) makeVar(v *pktgen.VarExpr) (C.Z3_ast, error) {
	t, err := ctx.makeBVSort(v.Width)
	if err != nil {
		return nil, err
	}

	cname := C.CString(v.Name)
	defer C.free(unsafe.Pointer(cname))
	nameSymbol := C.Z3_mk_string_symbol(ctx.raw, cname)

	return C.Z3_mk_const(ctx.raw, nameSymbol, t), ctx.err("Z3_mk_const")
}

// Error represents an error from the Z3 API.
type Error struct {
	Code    int
	Op      string
	Message string
}

// Error returns the error as a string.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (%d)", e.Op, e.Message, e.Code)
}

// Solver failure modes surfaced as errors.
var (
	ErrSolverTimeout  = &Error{Op: "Z3_solver_check", Message: "timeout"}
	ErrSolverCanceled = &Error{Op: "Z3_solver_check", Message: "canceled"}
)

// Stats holds counters for solver activity over a run.
type Stats struct {
	SolveN    int
	SolveTime time.Duration
	PushN     int
	PopN      int
}
