package rules

import (
	"math"

	"github.com/atlas-quant/tradecore/internal/snapshot"
)

// boolNode is `all` (all=true) or `any` (all=false), spec.md §4.6.
type boolNode struct {
	children []node
	all      bool
}

func (b *boolNode) Eval(v *snapshot.SnapshotView) bool {
	if b.all {
		for _, c := range b.children {
			if !c.Eval(v) {
				return false
			}
		}
		return true
	}
	for _, c := range b.children {
		if c.Eval(v) {
			return true
		}
	}
	return false
}

type notNode struct{ inner node }

func (n *notNode) Eval(v *snapshot.SnapshotView) bool { return !n.inner.Eval(v) }

// compareNode handles >,>=,<,<=,==,!=,approx_eq,near_abs,near_pct for
// numeric operands. NaN propagation: any comparison involving NaN is
// false (spec.md §4.6 failure modes).
type compareNode struct {
	op          string
	left, right fieldRef
	tol         float64
}

func (c *compareNode) Eval(v *snapshot.SnapshotView) bool {
	l, ok := c.left.float(v)
	if !ok || math.IsNaN(l) {
		return false
	}
	r, ok := c.right.float(v)
	if !ok || math.IsNaN(r) {
		return false
	}
	switch c.op {
	case OpGT:
		return l > r
	case OpGTE:
		return l >= r
	case OpLT:
		return l < r
	case OpLTE:
		return l <= r
	case OpEQ:
		return l == r
	case OpNEQ:
		return l != r
	case OpApproxEq, OpNearAbs:
		return math.Abs(l-r) <= c.tol
	case OpNearPct:
		if r == 0 {
			return false
		}
		return math.Abs(l-r)/math.Abs(r) <= c.tol/100
	default:
		return false
	}
}

// stringEqNode handles ==/!= where either side is string-valued (e.g.
// `high_tf.trend0.direction == "up"`).
type stringEqNode struct {
	left, right fieldRefRaw
	neq         bool
}

func (s *stringEqNode) Eval(v *snapshot.SnapshotView) bool {
	l, ok := s.left.str(v)
	if !ok {
		return false
	}
	r, ok := s.right.str(v)
	if !ok {
		return false
	}
	eq := l == r
	if s.neq {
		return !eq
	}
	return eq
}

type betweenNode struct {
	value, lo, hi fieldRef
}

func (b *betweenNode) Eval(v *snapshot.SnapshotView) bool {
	x, ok := b.value.float(v)
	if !ok || math.IsNaN(x) {
		return false
	}
	lo, ok := b.lo.float(v)
	if !ok || math.IsNaN(lo) {
		return false
	}
	hi, ok := b.hi.float(v)
	if !ok || math.IsNaN(hi) {
		return false
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	return x >= lo && x <= hi
}

type inFloatNode struct {
	field fieldRef
	set   []float64
}

func (n *inFloatNode) Eval(v *snapshot.SnapshotView) bool {
	x, ok := n.field.float(v)
	if !ok || math.IsNaN(x) {
		return false
	}
	for _, c := range n.set {
		if x == c {
			return true
		}
	}
	return false
}

type inStringNode struct {
	field fieldRefRaw
	set   []string
}

func (n *inStringNode) Eval(v *snapshot.SnapshotView) bool {
	s, ok := n.field.str(v)
	if !ok {
		return false
	}
	for _, c := range n.set {
		if s == c {
			return true
		}
	}
	return false
}

// crossNode fires iff a crosses b between the previous exec bar and the
// current one. Crossovers use the previous exec-role value of each side,
// never an intrabar value (spec.md §4.6) — prevLeft/prevRight are the
// node's own state, updated once per Eval call.
type crossNode struct {
	left, right fieldRef
	above       bool
	prevLeft    float64
	prevRight   float64
	havePrev    bool
}

func (c *crossNode) Eval(v *snapshot.SnapshotView) bool {
	l, ok := c.left.float(v)
	if !ok || math.IsNaN(l) {
		return false
	}
	r, ok := c.right.float(v)
	if !ok || math.IsNaN(r) {
		return false
	}
	defer func() {
		c.prevLeft, c.prevRight, c.havePrev = l, r, true
	}()
	if !c.havePrev {
		return false
	}
	if c.above {
		return c.prevLeft <= c.prevRight && l > r
	}
	return c.prevLeft >= c.prevRight && l < r
}

// temporalWindowNode implements holds_for (mode == TemporalHoldsFor, all
// of the last n must be true) and occurred_within (any of the last n),
// via a bounded ring-buffer history of the inner condition's truth value.
type temporalWindowNode struct {
	inner   node
	n       int
	mode    string
	history []bool
}

func (t *temporalWindowNode) Eval(v *snapshot.SnapshotView) bool {
	cur := t.inner.Eval(v)
	t.history = append(t.history, cur)
	if len(t.history) > t.n {
		t.history = t.history[len(t.history)-t.n:]
	}
	if len(t.history) < t.n {
		return false
	}
	switch t.mode {
	case TemporalHoldsFor:
		for _, b := range t.history {
			if !b {
				return false
			}
		}
		return true
	case TemporalOccurredWithin:
		for _, b := range t.history {
			if b {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// countTrueNode implements count_true(cond, n, >= k).
type countTrueNode struct {
	inner   node
	n       int
	k       int
	history []bool
}

func (c *countTrueNode) Eval(v *snapshot.SnapshotView) bool {
	cur := c.inner.Eval(v)
	c.history = append(c.history, cur)
	if len(c.history) > c.n {
		c.history = c.history[len(c.history)-c.n:]
	}
	count := 0
	for _, b := range c.history {
		if b {
			count++
		}
	}
	return count >= c.k
}
