// Package rules compiles a Play's RuleNode trees into an executable form
// and evaluates them against a snapshot.SnapshotView (spec.md §4.6). No
// strong donor precedent: internal/signals/parser.go's webhook-format
// parsing was evaluated and rejected as a grounding source (it parses
// text signals, not condition trees). Built fresh in the donor's
// parser/validator idiom — arity checks up front, a typed error per
// failure mode, compile once and reuse — mirroring how
// internal/signals.EnrichSignal validates before acting.
package rules

import (
	"fmt"

	"github.com/atlas-quant/tradecore/internal/snapshot"
	"github.com/atlas-quant/tradecore/pkg/bar"
	"github.com/atlas-quant/tradecore/pkg/types"
)

// Canonical leaf comparison operators, spec.md §4.6.
const (
	OpGT         = ">"
	OpGTE        = ">="
	OpLT         = "<"
	OpLTE        = "<="
	OpEQ         = "=="
	OpNEQ        = "!="
	OpBetween    = "between"
	OpIn         = "in"
	OpApproxEq   = "approx_eq"
	OpNearAbs    = "near_abs"
	OpNearPct    = "near_pct"
	OpCrossAbove = "cross_above"
	OpCrossBelow = "cross_below"
)

// Canonical temporal operators, spec.md §4.6.
const (
	TemporalHoldsFor       = "holds_for"
	TemporalOccurredWithin = "occurred_within"
	TemporalCountTrue      = "count_true"
)

// maxTemporalDurationMs is the Open Question resolution for the
// holds_for/occurred_within duration-form cap (DESIGN.md "Temporal rule
// duration cap"): 24 hours of wall-clock lookback, regardless of anchor_tf.
const maxTemporalDurationMs int64 = 24 * 60 * 60 * 1000

// maxCountTrueN caps count_true's bar count at 500, the companion half of
// the same Open Question resolution, so a count_true node's truth history
// stays bounded even for a play with no duration form at all.
const maxCountTrueN = 500

// CompileError is a fatal, load-time failure (spec.md §4.6: UndefinedField
// and TypeMismatch are both fatal at load, never surfaced at runtime).
type CompileError struct {
	Kind string // "UndefinedField" | "TypeMismatch" | "BadArity"
	Path string
	Msg  string
}

func (e *CompileError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("rules: %s: %s (%s)", e.Kind, e.Msg, e.Path)
	}
	return fmt.Sprintf("rules: %s: %s", e.Kind, e.Msg)
}

// node is the executable form every compiled tree shape implements.
type node interface {
	Eval(v *snapshot.SnapshotView) bool
}

// CompiledRule is one action's compiled tree plus the tag/direction
// carried on the root (spec.md §3 Signal).
type CompiledRule struct {
	Tag       string
	Direction types.Direction
	root      node
}

// Evaluate runs the compiled tree against one snapshot and, if it fires,
// returns the Signal it produces. Rules never produce more than one
// signal per evaluation; the engine handles multiple-actions-per-bar
// collapsing (spec.md §4.6 "at most one entry signal... multiple exit
// signals collapse to one").
func (c *CompiledRule) Evaluate(v *snapshot.SnapshotView) (types.Signal, bool) {
	if !c.root.Eval(v) {
		return types.Signal{}, false
	}
	return types.Signal{Tag: c.Tag, Direction: c.Direction}, true
}

// Compiler holds the play-wide context (TFMapping, exec role) every
// temporal-operator duration rescale needs.
type Compiler struct {
	tfMapping types.TFMapping
	execRole  types.Role
	probe     *snapshot.SnapshotView
}

// NewCompiler builds a Compiler. probe is any SnapshotView wired to the
// same roles/features/structures the real run will use — it is queried
// through Get/GetString, and only whether a path resolves (and to which
// kind) is used, never the values, to validate field references at load
// time without waiting for a bar to close.
func NewCompiler(tfMapping types.TFMapping, execRole types.Role, probe *snapshot.SnapshotView) *Compiler {
	return &Compiler{tfMapping: tfMapping, execRole: execRole, probe: probe}
}

// Compile validates and compiles one action's rule tree.
func (c *Compiler) Compile(action string, root types.RuleNode) (*CompiledRule, error) {
	n, err := c.compileNode(root)
	if err != nil {
		return nil, fmt.Errorf("rules: action %q: %w", action, err)
	}
	return &CompiledRule{Tag: root.Tag, Direction: root.Direction, root: n}, nil
}

// CompileActions compiles every action in a Play, failing load on the
// first bad tree (spec.md §4.7 "rule fields must resolve").
func (c *Compiler) CompileActions(actions map[string]types.RuleNode) (map[string]*CompiledRule, error) {
	out := make(map[string]*CompiledRule, len(actions))
	for name, root := range actions {
		cr, err := c.Compile(name, root)
		if err != nil {
			return nil, err
		}
		out[name] = cr
	}
	return out, nil
}

func (c *Compiler) compileNode(n types.RuleNode) (node, error) {
	switch {
	case len(n.All) > 0:
		return c.compileBool(n.All, true)
	case len(n.Any) > 0:
		return c.compileBool(n.Any, false)
	case n.Not != nil:
		inner, err := c.compileNode(*n.Not)
		if err != nil {
			return nil, err
		}
		return &notNode{inner: inner}, nil
	case n.Temporal != "":
		return c.compileTemporal(n)
	case n.Op != "":
		return c.compileLeaf(n)
	default:
		return nil, &CompileError{Kind: "BadArity", Msg: "rule node has no All/Any/Not/Temporal/Op set"}
	}
}

func (c *Compiler) compileBool(children []types.RuleNode, all bool) (node, error) {
	compiled := make([]node, len(children))
	for i, ch := range children {
		cn, err := c.compileNode(ch)
		if err != nil {
			return nil, err
		}
		compiled[i] = cn
	}
	return &boolNode{children: compiled, all: all}, nil
}

// resolveFieldKind returns "float" or "string" for a FieldRef, failing
// load if neither resolves (UndefinedField) — constants are always valid.
func (c *Compiler) resolveFieldKind(ref types.FieldRef) (string, error) {
	if ref.IsConst {
		if ref.ConstStr != "" {
			return "string", nil
		}
		return "float", nil
	}
	if ref.Path == "" {
		return "", &CompileError{Kind: "BadArity", Msg: "empty field reference"}
	}
	if _, ok := c.probe.Get(ref.Path); ok {
		return "float", nil
	}
	if _, ok := c.probe.GetString(ref.Path); ok {
		return "string", nil
	}
	return "", &CompileError{Kind: "UndefinedField", Path: ref.Path, Msg: "path does not resolve against the snapshot"}
}

func (c *Compiler) compileLeaf(n types.RuleNode) (node, error) {
	switch n.Op {
	case OpGT, OpGTE, OpLT, OpLTE, OpEQ, OpNEQ, OpApproxEq, OpNearAbs, OpNearPct:
		return c.compileNumericLeaf(n)
	case OpBetween:
		return c.compileBetween(n)
	case OpIn:
		return c.compileIn(n)
	case OpCrossAbove, OpCrossBelow:
		return c.compileCross(n)
	default:
		return nil, &CompileError{Kind: "BadArity", Msg: fmt.Sprintf("unknown operator %q", n.Op)}
	}
}

func (c *Compiler) compileNumericLeaf(n types.RuleNode) (node, error) {
	lk, err := c.resolveFieldKind(n.Left)
	if err != nil {
		return nil, err
	}
	rk, err := c.resolveFieldKind(n.Right)
	if err != nil {
		return nil, err
	}
	if n.Op == OpEQ || n.Op == OpNEQ {
		if lk == "string" || rk == "string" {
			return &stringEqNode{left: fieldRefRaw(n.Left), right: fieldRefRaw(n.Right), neq: n.Op == OpNEQ}, nil
		}
	}
	if lk != "float" || rk != "float" {
		return nil, &CompileError{Kind: "TypeMismatch", Msg: fmt.Sprintf("operator %q requires numeric operands", n.Op)}
	}
	var tol float64
	if n.Op == OpApproxEq || n.Op == OpNearAbs || n.Op == OpNearPct {
		if len(n.Literals) == 0 {
			return nil, &CompileError{Kind: "BadArity", Msg: fmt.Sprintf("operator %q requires a tolerance literal", n.Op)}
		}
		tol = n.Literals[0]
	}
	return &compareNode{op: n.Op, left: fieldRef(n.Left), right: fieldRef(n.Right), tol: tol}, nil
}

func (c *Compiler) compileBetween(n types.RuleNode) (node, error) {
	for _, ref := range []types.FieldRef{n.Left, n.Right, n.Bound2} {
		kind, err := c.resolveFieldKind(ref)
		if err != nil {
			return nil, err
		}
		if kind != "float" {
			return nil, &CompileError{Kind: "TypeMismatch", Msg: "between requires numeric bounds"}
		}
	}
	return &betweenNode{value: fieldRef(n.Left), lo: fieldRef(n.Right), hi: fieldRef(n.Bound2)}, nil
}

func (c *Compiler) compileIn(n types.RuleNode) (node, error) {
	kind, err := c.resolveFieldKind(n.Left)
	if err != nil {
		return nil, err
	}
	switch {
	case len(n.Strings) > 0:
		if kind != "string" {
			return nil, &CompileError{Kind: "TypeMismatch", Msg: "in: string literal set requires a string-valued field"}
		}
		return &inStringNode{field: fieldRefRaw(n.Left), set: n.Strings}, nil
	case len(n.Literals) > 0:
		if kind != "float" {
			return nil, &CompileError{Kind: "TypeMismatch", Msg: "in: numeric literal set requires a numeric-valued field"}
		}
		return &inFloatNode{field: fieldRef(n.Left), set: n.Literals}, nil
	default:
		return nil, &CompileError{Kind: "BadArity", Msg: "in requires a non-empty literal set"}
	}
}

func (c *Compiler) compileCross(n types.RuleNode) (node, error) {
	for _, ref := range []types.FieldRef{n.Left, n.Right} {
		kind, err := c.resolveFieldKind(ref)
		if err != nil {
			return nil, err
		}
		if kind != "float" {
			return nil, &CompileError{Kind: "TypeMismatch", Msg: fmt.Sprintf("%s requires numeric operands", n.Op)}
		}
	}
	return &crossNode{left: fieldRef(n.Left), right: fieldRef(n.Right), above: n.Op == OpCrossAbove}, nil
}

// barCount converts a temporal node's N/duration/anchor_tf into an exec-
// bar count, applying the 24h wall-clock / 500-bar caps (DESIGN.md
// "Temporal rule duration cap").
func (c *Compiler) barCount(n types.RuleNode) (int, error) {
	execMs := bar.DurationMs(c.tfMapping.TF(c.execRole))
	if n.DurationMs > 0 {
		d := n.DurationMs
		if d > maxTemporalDurationMs {
			d = maxTemporalDurationMs
		}
		bars := int(d / execMs)
		if bars < 1 {
			bars = 1
		}
		return bars, nil
	}
	nBars := n.N
	if n.AnchorTF != "" && n.AnchorTF != c.execRole {
		anchorMs := bar.DurationMs(c.tfMapping.TF(n.AnchorTF))
		nBars = int(int64(n.N) * anchorMs / execMs)
	}
	if n.Temporal == TemporalCountTrue && nBars > maxCountTrueN {
		nBars = maxCountTrueN
	}
	durationCapBars := int(maxTemporalDurationMs / execMs)
	if nBars > durationCapBars {
		nBars = durationCapBars
	}
	if nBars < 1 {
		nBars = 1
	}
	return nBars, nil
}

func (c *Compiler) compileTemporal(n types.RuleNode) (node, error) {
	if n.Inner == nil {
		return nil, &CompileError{Kind: "BadArity", Msg: fmt.Sprintf("%s requires an inner condition", n.Temporal)}
	}
	inner, err := c.compileNode(*n.Inner)
	if err != nil {
		return nil, err
	}
	bars, err := c.barCount(n)
	if err != nil {
		return nil, err
	}
	switch n.Temporal {
	case TemporalHoldsFor, TemporalOccurredWithin:
		return &temporalWindowNode{inner: inner, n: bars, mode: n.Temporal, history: make([]bool, 0, bars)}, nil
	case TemporalCountTrue:
		if n.K < 1 {
			return nil, &CompileError{Kind: "BadArity", Msg: "count_true requires k >= 1"}
		}
		return &countTrueNode{inner: inner, n: bars, k: n.K, history: make([]bool, 0, bars)}, nil
	default:
		return nil, &CompileError{Kind: "BadArity", Msg: fmt.Sprintf("unknown temporal operator %q", n.Temporal)}
	}
}

// fieldRef/fieldRefRaw wrap types.FieldRef with the float/string resolvers
// compiled nodes call every Eval; two names for the same underlying shape
// so a leaf's Go type signals whether it was validated as numeric or
// string-valued at compile time.
type fieldRef types.FieldRef
type fieldRefRaw types.FieldRef

func (r fieldRef) float(v *snapshot.SnapshotView) (float64, bool) {
	if r.IsConst {
		return r.Const, true
	}
	return v.Get(r.Path)
}

func (r fieldRefRaw) str(v *snapshot.SnapshotView) (string, bool) {
	if r.IsConst {
		return r.ConstStr, true
	}
	return v.GetString(r.Path)
}

func fmtPath(ref types.FieldRef) string {
	if ref.IsConst {
		return fmt.Sprintf("const(%v)", ref.Const)
	}
	return ref.Path
}
