package hop

import (
	"math"

	"github.com/dianpeng/dmlc/stats"
	"go.uber.org/zap"
)

const (
	// toString assumptions
	avgCharsPerValue  = 7
	avgCharsPerIndex  = 4
	toStringRows      = 100
	toStringCols      = 100
	stringObjectBytes = 36

	// bound of the row buffer of a row-wise rexpand
	rexpandMaxRows = 1024 * 1024
)

// ComputeMemEstimate fills the memory estimates of a node and returns the
// total, ie inputs + output + intermediate. Inputs that were not estimated
// yet are estimated first. Unknown dimensions are resolved through the memo
// and fall back to the worst case, which never fits a budget.
func (self *Graph) ComputeMemEstimate(id ID, memo *Memo) float64 {
	n := self.nodes[id]
	if n.estimated {
		return n.MemEstimate
	}

	inputs := 0.0
	for _, in := range n.Inputs {
		x := self.nodes[in]
		if !x.estimated {
			self.ComputeMemEstimate(in, memo)
		}
		inputs = stats.Add(inputs, x.OutputMem)
	}

	c := n.Characteristics()
	if n.DataType.IsBlocked() && !c.DimsKnown() {
		if m, ok := memo.Get(id); ok {
			c = m
		} else if inferred, ok := self.InferOutputCharacteristics(id, memo); ok {
			memo.Put(id, inferred)
			c = inferred
		}
	}

	n.OutputMem = self.outputMemEstimate(n, c)
	n.IntermediateMem = self.intermediateMemEstimate(n, c)
	n.MemEstimate = stats.Add(inputs, n.OutputMem, n.IntermediateMem)
	n.estimated = true

	if n.OutputMem >= stats.DefaultSize || n.IntermediateMem >= stats.DefaultSize {
		self.warnFallback(n, "worst case memory", zap.Stringer("stats", c))
	} else if n.DataType.IsBlocked() && n.OutputMem > 0 && !c.NNZKnown() {
		self.warnFallback(n, "dense output", zap.Stringer("stats", c))
	}
	return n.MemEstimate
}

// warnFallback reports a conservative estimate taken in place of unknown
// statistics.
func (self *Graph) warnFallback(n *Node, fallback string, fields ...zap.Field) {
	fields = append([]zap.Field{
		zap.Int("hop", int(n.ID)),
		zap.Stringer("op", n.Op),
		zap.String("fallback", fallback),
	}, fields...)
	self.log.Warn("conservative estimate", fields...)
}

func (self *Graph) outputMemEstimate(n *Node, c stats.Characteristics) float64 {
	switch {
	case n.Op == OpWrite || n.Op == OpTWrite:
		return 0
	case n.Op == OpToString:
		return self.toStringMemEstimate(n)
	case !n.DataType.IsBlocked():
		return stats.DoubleSize
	default:
		return c.EstimateSize()
	}
}

func (self *Graph) intermediateMemEstimate(n *Node, c stats.Characteristics) float64 {
	switch n.Op {
	case OpRmEmpty:
		// selection vector over the margin
		if margin, _ := self.stringParam(n, "margin"); margin == "cols" {
			if !c.ColsKnown() {
				return stats.DefaultSize
			}
			return float64(c.Cols) * (stats.BooleanSize + stats.IntSize)
		}
		if !c.RowsKnown() {
			return stats.DefaultSize
		}
		return float64(c.Rows) * stats.BooleanSize

	case OpRExpand:
		// row-wise expansion buffers its output rows
		if dir, ok := self.stringParam(n, "dir"); ok && dir != "rows" {
			return 0
		}
		rows := int64(rexpandMaxRows)
		if c.RowsKnown() {
			rows = min(c.Rows, rexpandMaxRows)
		}
		return float64(rows) * (stats.DoubleSize + stats.IntSize)

	default:
		return 0
	}
}

// toStringMemEstimate sizes the rendered string of the target, the size of
// a string being 36 + 2 bytes per character.
func (self *Graph) toStringMemEstimate(n *Node) float64 {
	t := self.target(n)
	if t == nil || !t.DataType.IsBlocked() {
		return stringObjectBytes + stats.CharSize*avgCharsPerValue
	}

	rows, cols, nnz := t.Rows, t.Cols, t.NNZ
	if rows < 0 || cols < 0 || nnz < 0 {
		self.warnFallback(n, "default string extent")
	}
	if rows < 0 {
		rows = toStringRows
	}
	if cols < 0 {
		cols = toStringCols
	}
	if nnz < 0 {
		nnz = toStringRows * toStringCols
	}

	rows = min(rows, self.intParam(n, "rows", toStringRows))
	cols = min(cols, self.intParam(n, "cols", toStringCols))

	sparse := false
	if l, ok := self.literalParam(n, "sparse"); ok {
		sparse, _ = l.Bool()
	}
	sep, linesep := " ", "\n"
	if s, ok := self.stringParam(n, "sep"); ok {
		sep = s
	}
	if s, ok := self.stringParam(n, "linesep"); ok {
		linesep = s
	}

	var chars float64
	if sparse {
		chars = float64(nnz) * float64(avgCharsPerValue+
			2*avgCharsPerIndex+
			2*len(sep)+
			len(linesep))
	} else {
		chars = float64(rows)*float64(cols)*avgCharsPerValue +
			float64(rows)*float64(max(cols-1, 0))*float64(len(sep)) +
			float64(rows)*float64(len(linesep))
	}
	return math.Min(stats.DefaultSize, stringObjectBytes+stats.CharSize*chars)
}
