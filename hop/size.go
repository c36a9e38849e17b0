package hop

import (
	"github.com/dianpeng/dmlc/stats"
)

// Memo holds speculative statistics keyed by node identity. Entries are
// never invalidated within one compilation. Nodes whose own dimensions are
// known never need an entry.
type Memo struct {
	stats map[ID]stats.Characteristics
}

func NewMemo() *Memo {
	return &Memo{
		stats: make(map[ID]stats.Characteristics),
	}
}

func (self *Memo) Put(id ID, c stats.Characteristics) {
	self.stats[id] = c
}

func (self *Memo) Get(id ID) (stats.Characteristics, bool) {
	c, ok := self.stats[id]
	return c, ok
}

func (self *Memo) Has(id ID) bool {
	_, ok := self.stats[id]
	return ok
}

func (self *Memo) Len() int {
	return len(self.stats)
}

// Snapshot copies the memo, for debugging output.
func (self *Memo) Snapshot() map[ID]stats.Characteristics {
	out := make(map[ID]stats.Characteristics, len(self.stats))
	for k, v := range self.stats {
		out[k] = v
	}
	return out
}

// InputStats returns the best known statistics of a node: its own when its
// dimensions are known, otherwise the memoized speculative ones.
func (self *Graph) InputStats(memo *Memo, n *Node) stats.Characteristics {
	c := n.Characteristics()
	if c.DimsKnown() {
		return c
	}
	if m, ok := memo.Get(n.ID); ok {
		return m
	}
	return c
}

// ----------------------------------------------------------------------------
// In-place size propagation from the inputs' current dimensions.

func (self *Graph) refreshSizeInformation(n *Node) {
	if !n.DataType.IsBlocked() {
		return
	}

	switch n.Op.Kind() {
	case KindData:
		self.refreshData(n)
		break

	case KindBinary:
		self.refreshBinary(n)
		break

	case KindUnary:
		in := self.nodes[n.Inputs[0]]
		n.SetDims(in.Rows, in.Cols)
		switch n.Op {
		case OpAbs, OpSqrt:
			n.NNZ = in.NNZ
			break
		default:
			break
		}
		break

	case KindAggUnary:
		in := self.nodes[n.Inputs[0]]
		switch n.Dir {
		case DirRow:
			n.SetDims(in.Rows, 1)
			break
		case DirCol:
			n.SetDims(1, in.Cols)
			break
		default:
			break
		}
		break

	case KindReorg:
		in := self.nodes[n.Inputs[0]]
		n.SetDims(in.Cols, in.Rows)
		n.NNZ = in.NNZ
		break

	case KindParamBuiltin:
		self.refreshParamBuiltin(n)
		break

	default:
		break
	}
}

func (self *Graph) refreshData(n *Node) {
	switch n.Op {
	case OpRead:
		n.Rows = self.intParam(n, "rows", stats.Unknown)
		n.Cols = self.intParam(n, "cols", stats.Unknown)
		n.NNZ = self.intParam(n, "nnz", stats.Unknown)
		break

	case OpWrite, OpTWrite:
		t := self.target(n)
		n.SetDims(t.Rows, t.Cols)
		n.NNZ = t.NNZ
		break

	default:
		break
	}
}

func (self *Graph) intParam(n *Node, name string, def int64) int64 {
	l, ok := self.literalParam(n, name)
	if !ok {
		return def
	}
	v, err := l.Int64()
	if err != nil {
		return def
	}
	return v
}

func (self *Graph) refreshBinary(n *Node) {
	l, r := self.nodes[n.Inputs[0]], self.nodes[n.Inputs[1]]
	c := binaryCharacteristics(
		n.Op,
		l.Characteristics(), l.DataType.IsBlocked(), l,
		r.Characteristics(), r.DataType.IsBlocked(), r,
	)
	n.SetDims(c.Rows, c.Cols)
	n.NNZ = c.NNZ
}

func binaryCharacteristics(
	op Op,
	lc stats.Characteristics, lm bool, l *Node,
	rc stats.Characteristics, rm bool, r *Node,
) stats.Characteristics {
	out := stats.NewUnknown(0)

	switch {
	case lm && rm:
		if lc.DimsKnown() {
			out.Rows, out.Cols = lc.Rows, lc.Cols
		} else if rc.DimsKnown() {
			out.Rows, out.Cols = rc.Rows, rc.Cols
		}
		if op == OpMult && lc.NNZKnown() && rc.NNZKnown() {
			out.NNZ = min(lc.NNZ, rc.NNZ)
		}
		break

	case lm:
		out.Rows, out.Cols = lc.Rows, lc.Cols
		if isNonZeroIndicator(op, r) {
			out.NNZ = lc.NNZ
		}
		break

	case rm:
		out.Rows, out.Cols = rc.Rows, rc.Cols
		if isNonZeroIndicator(op, l) {
			out.NNZ = rc.NNZ
		}
		break

	default:
		break
	}
	return out
}

// X != 0 keeps exactly the non-zeros of X
func isNonZeroIndicator(op Op, scalar *Node) bool {
	return op == OpNotEqual && scalar.IsLiteral() && scalar.Literal.IsZero()
}

func (self *Graph) refreshParamBuiltin(n *Node) {
	if n.Op == OpList {
		n.SetDims(int64(len(n.Inputs)), 1)
		return
	}

	t := self.target(n)
	if t == nil {
		return
	}

	switch n.Op {
	case OpGroupedAgg:
		// the number of rows is data dependent unless ngroups is a literal
		rows := stats.Unknown
		if l, ok := self.literalParam(n, "ngroups"); ok {
			if m, err := l.Int64(); err == nil && m >= 0 {
				rows = m
			}
		}
		cols := t.Cols
		if t.Rows == 1 {
			cols = 1
		}
		n.SetDims(rows, cols)
		break

	case OpRmEmpty:
		// the margin dimension is data dependent
		switch margin, _ := self.stringParam(n, "margin"); margin {
		case "rows":
			n.Cols = t.Cols
			break
		case "cols":
			n.Rows = t.Rows
			break
		default:
			break
		}
		n.NNZ = t.NNZ
		break

	case OpLowerTri, OpUpperTri:
		n.SetDims(t.Rows, t.Cols)
		break

	case OpReplace:
		n.SetDims(t.Rows, t.Cols)
		if self.isNonZeroReplaceArguments(n) {
			n.NNZ = t.NNZ
		}
		break

	case OpRExpand:
		maxv := self.dimParam(n, "max")
		switch dir, _ := self.stringParam(n, "dir"); dir {
		case "cols":
			n.SetDims(t.Rows, maxv)
			break
		case "rows":
			n.SetDims(maxv, t.Rows)
			break
		default:
			break
		}
		break

	case OpTransformDecode:
		// dummy coding may change the columns, rows stay
		n.Rows = t.Rows
		break

	case OpTransformColMap:
		n.SetDims(t.Cols, 3)
		break

	default:
		break
	}
}

// dimParam resolves a dimension parameter, unknown unless it is a literal.
func (self *Graph) dimParam(n *Node, name string) int64 {
	l, ok := self.literalParam(n, name)
	if !ok {
		return stats.Unknown
	}
	v, err := l.Float64()
	if err != nil || v < 0 {
		return stats.Unknown
	}
	return int64(v)
}

// isNonZeroReplaceArguments holds when neither the pattern nor the
// replacement can be zero.
func (self *Graph) isNonZeroReplaceArguments(n *Node) bool {
	pattern, ok1 := self.literalParam(n, "pattern")
	replacement, ok2 := self.literalParam(n, "replacement")
	if !ok1 || !ok2 {
		return false
	}
	p, err1 := pattern.Float64()
	r, err2 := replacement.Float64()
	return err1 == nil && err2 == nil && p != 0 && r != 0
}

// ----------------------------------------------------------------------------
// Speculative inference

// InferOutputCharacteristics derives the output statistics of a node from
// the best known statistics of its inputs without mutating anything. The
// second return is false when nothing can be inferred.
func (self *Graph) InferOutputCharacteristics(id ID, memo *Memo) (stats.Characteristics, bool) {
	n := self.nodes[id]
	if !n.DataType.IsBlocked() {
		return stats.New(0, 0, -1, stats.Unknown), true
	}

	blen := n.Blen
	in := func(idx int) (*Node, stats.Characteristics) {
		x := self.nodes[n.Inputs[idx]]
		return x, self.InputStats(memo, x)
	}

	switch n.Op.Kind() {
	case KindData:
		if n.Op == OpRead {
			return stats.Characteristics{}, false
		}
		t := self.target(n)
		c := self.InputStats(memo, t)
		return c, c.DimsKnown()

	case KindBinary:
		l, lc := in(0)
		r, rc := in(1)
		c := binaryCharacteristics(n.Op,
			lc, l.DataType.IsBlocked(), l,
			rc, r.DataType.IsBlocked(), r)
		c.Blen = blen
		return c, c.DimsKnown()

	case KindUnary:
		_, c := in(0)
		if n.Op != OpAbs && n.Op != OpSqrt {
			c.NNZ = stats.Unknown
		}
		c.Blen = blen
		return c, c.DimsKnown()

	case KindAggUnary:
		_, c := in(0)
		switch n.Dir {
		case DirRow:
			return stats.New(c.Rows, 1, blen, stats.Unknown), c.RowsKnown()
		case DirCol:
			return stats.New(1, c.Cols, blen, stats.Unknown), c.ColsKnown()
		default:
			return stats.New(0, 0, -1, stats.Unknown), true
		}

	case KindReorg:
		_, c := in(0)
		return stats.New(c.Cols, c.Rows, blen, c.NNZ), c.DimsKnown()

	case KindParamBuiltin:
		return self.inferParamBuiltin(n, memo)

	default:
		return stats.Characteristics{}, false
	}
}

func (self *Graph) inferParamBuiltin(n *Node, memo *Memo) (stats.Characteristics, bool) {
	if n.Op == OpList {
		return stats.New(int64(len(n.Inputs)), 1, n.Blen, stats.Unknown), true
	}
	t := self.target(n)
	if t == nil {
		return stats.Characteristics{}, false
	}
	mc := self.InputStats(memo, t)
	blen := n.Blen

	switch n.Op {
	case OpGroupedAgg:
		cols := mc.Cols
		if mc.Rows == 1 {
			cols = 1
		}
		if l, ok := self.literalParam(n, "ngroups"); ok {
			if m, err := l.Int64(); err == nil && m >= 0 {
				return stats.New(m, cols, blen, m), true
			}
		}
		// worst case, one group per input row
		if mc.Rows >= 1 {
			self.warnFallback(n, "one group per input row")
			return stats.New(mc.Rows, cols, blen, mc.Rows), true
		}
		return stats.Characteristics{}, false

	case OpRmEmpty:
		// worst case the output equals the input
		if !mc.DimsKnown() {
			return stats.Characteristics{}, false
		}
		var sel *stats.Characteristics
		if s, ok := self.ParamInput(n, "select"); ok {
			sc := self.InputStats(memo, s)
			if sc.NNZKnown() {
				sel = &sc
			}
		}
		if sel == nil {
			self.warnFallback(n, "output equals input")
		}
		rows, cols := mc.Rows, mc.Cols
		if margin, _ := self.stringParam(n, "margin"); margin == "cols" {
			if sel != nil {
				cols = sel.NNZ
			}
		} else if sel != nil {
			rows = sel.NNZ
		}
		return stats.New(rows, cols, blen, mc.NNZ), true

	case OpReplace:
		if !mc.DimsKnown() {
			return stats.Characteristics{}, false
		}
		nnz := stats.Unknown
		if self.isNonZeroReplaceArguments(n) {
			nnz = mc.NNZ
		}
		return stats.New(mc.Rows, mc.Cols, blen, nnz), true

	case OpRExpand:
		// exact dims, at most one non-zero per input row
		dir, ok := self.stringParam(n, "dir")
		if !ok || !mc.DimsKnown() {
			return stats.Characteristics{}, false
		}
		maxv := self.dimParam(n, "max")
		nnz := mc.Rows
		if mc.NNZKnown() {
			nnz = mc.NNZ
		}
		switch dir {
		case "cols":
			return stats.New(mc.Rows, maxv, blen, nnz), maxv >= 0
		case "rows":
			return stats.New(maxv, mc.Rows, blen, nnz), maxv >= 0
		default:
			return stats.Characteristics{}, false
		}

	case OpTransformDecode, OpTransformApply:
		if !mc.DimsKnown() {
			return stats.Characteristics{}, false
		}
		return stats.New(mc.Rows, mc.Cols, blen, mc.Rows*mc.Cols), true

	case OpLowerTri, OpUpperTri:
		return stats.New(mc.Rows, mc.Cols, blen, stats.Unknown), mc.DimsKnown()

	case OpTransformColMap:
		return stats.New(mc.Cols, 3, blen, stats.Unknown), mc.ColsKnown()

	default:
		return stats.Characteristics{}, false
	}
}
