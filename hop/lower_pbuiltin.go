package hop

import (
	"fmt"

	"github.com/dianpeng/dmlc/common"
	"github.com/dianpeng/dmlc/lop"
	"github.com/dianpeng/dmlc/stats"
	"go.uber.org/zap"
)

// ----------------------------------------------------------------------------
// Grouped aggregate

func lowerGroupedAgg(g *Graph, n *Node, et common.ExecType) (*lop.Lop, error) {
	if _, err := g.requireParam(n, "target"); err != nil {
		return nil, err
	}
	groups, err := g.requireParam(n, "groups")
	if err != nil {
		return nil, err
	}
	fn, err := g.requireParam(n, "fn")
	if err != nil {
		return nil, err
	}
	if !fn.IsLiteral() {
		return nil, literalRequiredError(n, "fn")
	}

	named := g.namedLops(n)

	if et == common.ExecLocal {
		n.RequiresReblock = false
		l := g.Lops.NewGroupedAgg(named, n.DataType, n.ValueType, et, n.MaxThreads, false)
		return setOutput(n, l), nil
	}

	// physical operator selection, the map side aggregate needs broadcast
	// groups, an additive function and a known number of groups
	broadcastGroups := !n.Params.Has("weights") &&
		stats.FitsBroadcastBudget(groups.Characteristics(), g.cfg.BroadcastMemoryBudget.Float())

	_, ngroupsLiteral := g.literalParam(n, "ngroups")

	if broadcastGroups && fn.Literal.String() == "sum" && ngroupsLiteral {
		n.RequiresReblock = false
		l := g.Lops.NewGroupedAggM(named, n.DataType, n.ValueType)
		setOutput(n, l)
		l.Output.Blen = g.target(n).Blen
		l.Output.NNZ = stats.Unknown
		return l, nil
	}

	g.log.Debug("shuffle based grouped aggregate",
		zap.Int("hop", int(n.ID)),
		zap.Bool("broadcast", broadcastGroups),
		zap.String("fn", fn.Literal.String()),
		zap.Bool("ngroups", ngroupsLiteral),
	)

	n.RequiresReblock = true
	l := g.Lops.NewGroupedAgg(named, n.DataType, n.ValueType, et, n.MaxThreads, broadcastGroups)
	setOutput(n, l)
	l.Output.Blen = -1
	l.Output.NNZ = stats.Unknown
	return l, nil
}

// ----------------------------------------------------------------------------
// Remove empty

func lowerRmEmpty(g *Graph, n *Node, et common.ExecType) (*lop.Lop, error) {
	if _, err := g.requireParam(n, "target"); err != nil {
		return nil, err
	}
	if et == common.ExecLocal {
		return lowerParamBuiltin(g, n, et)
	}
	return g.lowerRmEmptyDist(n)
}

// lowerRmEmptyDist computes the positional offsets of the non-empty rows (or
// columns) with a temporary subgraph, every node of it pinned to the
// distributed backend. The subgraph is detached once lowered, so the parents
// of the target and the select vector are unchanged.
func (self *Graph) lowerRmEmptyDist(n *Node) (*lop.Lop, error) {
	marginHop, err := self.requireParam(n, "margin")
	if err != nil {
		return nil, err
	}
	if !marginHop.IsLiteral() {
		return nil, literalRequiredError(n, "margin")
	}

	input := self.target(n)
	rmRows := marginHop.Literal.String() == "rows"

	var aux []ID
	pin := func(id ID) ID {
		self.nodes[id].ForcedExec = common.ExecDist
		aux = append(aux, id)
		return id
	}

	var emptyInd ID
	if sel, ok := self.ParamInput(n, "select"); ok {
		emptyInd = sel.ID
	} else {
		zero := self.NewLiteral(IntLiteral(0))
		aux = append(aux, zero)

		ppred0 := pin(self.NewBinary(OpNotEqual, input.ID, zero))
		emptyInd = ppred0

		vector := (rmRows && input.Cols == 1) || (!rmRows && input.Rows == 1)
		if !vector {
			dir := DirCol
			if rmRows {
				dir = DirRow
			}
			emptyInd = pin(self.NewAggUnary(OpAggMax, dir, ppred0))
		}
	}

	cumsumInput := emptyInd
	if !rmRows {
		cumsumInput = pin(self.NewTranspose(emptyInd))
	}
	cumsum := pin(self.NewUnary(OpCumsum, cumsumInput))

	cumsumOutput := cumsum
	if !rmRows {
		cumsumOutput = pin(self.NewTranspose(cumsum))
	}
	maxDim := pin(self.NewAggUnary(OpAggMax, DirRowCol, cumsumOutput))
	offsets := pin(self.NewBinary(OpMult, cumsumOutput, emptyInd))

	loffset, err := self.Lower(offsets)
	if err != nil {
		return nil, err
	}
	lmaxdim, err := self.Lower(maxDim)
	if err != nil {
		return nil, err
	}

	named := []lop.Named{
		{Name: "target", Lop: input.lowered},
		{Name: "offset", Lop: loffset},
		{Name: "maxdim", Lop: lmaxdim},
		{Name: "margin", Lop: marginHop.lowered},
	}
	if p, ok := self.ParamInput(n, "empty.return"); ok {
		named = append(named, lop.Named{Name: "empty.return", Lop: p.lowered})
	}

	n.RmEmptyBroadcast = !self.cfg.ForceDistRmEmpty && self.isRemoveEmptyBroadcast(input)

	l := self.Lops.NewParamBuiltin(n.Op.Opcode(), named, n.DataType, n.ValueType, common.ExecDist)
	l.SetFlag("bRmEmptyBC", fmt.Sprintf("%t", n.RmEmptyBroadcast))
	setOutput(n, l)

	for idx := len(aux) - 1; idx >= 0; idx-- {
		if err := self.Remove(aux[idx]); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// isRemoveEmptyBroadcast reports whether the offsets of input can be
// replicated, the offsets being one column of the input's rows.
func (self *Graph) isRemoveEmptyBroadcast(input *Node) bool {
	var size float64
	if input.DimsKnown() {
		size = stats.EstimateSize(input.Rows, 1)
	} else {
		self.ComputeMemEstimate(input.ID, self.memo)
		size = input.OutputMem
	}
	return stats.FitsBroadcastBudgetSize(size, self.cfg.BroadcastMemoryBudget.Float())
}

// ----------------------------------------------------------------------------
// Index expansion

func lowerRExpand(g *Graph, n *Node, et common.ExecType) (*lop.Lop, error) {
	if _, err := g.requireParam(n, "target"); err != nil {
		return nil, err
	}
	dir, err := g.requireParam(n, "dir")
	if err != nil {
		return nil, err
	}
	if !dir.IsLiteral() {
		return nil, literalRequiredError(n, "dir")
	}

	l := g.Lops.NewParamBuiltin(n.Op.Opcode(), g.namedLops(n), n.DataType, n.ValueType, et)
	if et == common.ExecLocal {
		l.SetFlag("k", fmt.Sprintf("%d", n.MaxThreads))
	}
	return setOutput(n, l), nil
}
