package hop

import (
	"github.com/dianpeng/dmlc/common"
	"github.com/dianpeng/dmlc/lop"
)

type lowerKey struct {
	op Op
	et common.ExecType
}

// lowerFunc produces the physical operator of n, whose inputs are already
// lowered and whose backend is et.
type lowerFunc func(g *Graph, n *Node, et common.ExecType) (*lop.Lop, error)

var lowerTable = make(map[lowerKey]lowerFunc)

var (
	bothBackends = []common.ExecType{common.ExecLocal, common.ExecDist}
	localOnly    = []common.ExecType{common.ExecLocal}
)

func registerLowering(fn lowerFunc, backends []common.ExecType, list ...Op) {
	for _, op := range list {
		for _, et := range backends {
			lowerTable[lowerKey{op, et}] = fn
		}
	}
}

func init() {
	registerLowering(lowerLiteral, localOnly, OpLiteral)
	registerLowering(lowerRead, bothBackends, OpRead)
	registerLowering(lowerWrite, bothBackends, OpWrite)
	registerLowering(lowerTWrite, localOnly, OpTWrite)
	registerLowering(lowerBinary, bothBackends, ops(OpPlus, OpGreaterEqual)...)
	registerLowering(lowerUnary, bothBackends, ops(OpNot, OpCumsum)...)
	registerLowering(lowerAggUnary, bothBackends, ops(OpAggSum, OpAggMean)...)
	registerLowering(lowerTranspose, bothBackends, OpTranspose)

	registerLowering(lowerGroupedAgg, bothBackends, OpGroupedAgg)
	registerLowering(lowerRmEmpty, bothBackends, OpRmEmpty)
	registerLowering(lowerRExpand, bothBackends, OpRExpand)
	registerLowering(lowerParamBuiltin, bothBackends,
		OpReplace,
		OpLowerTri,
		OpUpperTri,
		OpTransformApply,
		OpTransformDecode,
	)
	registerLowering(lowerParamBuiltin, localOnly,
		OpCDF,
		OpInvCDF,
		OpTransformColMap,
		OpTransformMeta,
		OpToString,
		OpParamServ,
		OpList,
	)
}

// Lower produces the physical operator of a node, lowering its inputs first.
// The result is cached on the node so shared subgraphs are lowered once.
func (self *Graph) Lower(id ID) (*lop.Lop, error) {
	n := self.nodes[id]
	if n.lowered != nil {
		return n.lowered, nil
	}

	if err := self.CheckArity(id); err != nil {
		return nil, err
	}
	for _, in := range n.Inputs {
		if _, err := self.Lower(in); err != nil {
			return nil, err
		}
	}

	et := self.SelectExecType(id)
	fn, ok := lowerTable[lowerKey{n.Op, et}]
	if !ok {
		return nil, structuralError(n, "no lowering rule for backend %s", et)
	}

	l, err := fn(self, n, et)
	if err != nil {
		return nil, err
	}
	if n.RequiresReblock && et == common.ExecDist {
		l = self.Lops.NewReBlock(l, n.Blen)
	}
	n.lowered = l
	return l, nil
}

// LowerAll lowers every root in order.
func (self *Graph) LowerAll() ([]*lop.Lop, error) {
	out := make([]*lop.Lop, 0, len(self.Roots))
	for _, r := range self.Roots {
		l, err := self.Lower(r)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func (self *Graph) lowered(id ID) *lop.Lop {
	return self.nodes[id].lowered
}

func setOutput(n *Node, l *lop.Lop) *lop.Lop {
	l.Output = lop.OutputOf(n.Characteristics())
	return l
}

func (self *Graph) namedLops(n *Node) []lop.Named {
	out := make([]lop.Named, 0, n.Params.Len())
	for _, name := range n.Params.Names() {
		p, _ := self.ParamInput(n, name)
		out = append(out, lop.Named{Name: name, Lop: p.lowered})
	}
	return out
}

// ----------------------------------------------------------------------------
// Per operator lowering

func lowerLiteral(g *Graph, n *Node, et common.ExecType) (*lop.Lop, error) {
	return g.Lops.NewLiteral(n.Literal.String(), n.ValueType), nil
}

func lowerRead(g *Graph, n *Node, et common.ExecType) (*lop.Lop, error) {
	file, err := g.requireParam(n, "file")
	if err != nil {
		return nil, err
	}
	if !file.IsLiteral() {
		return nil, literalRequiredError(n, "file")
	}
	format, ok := g.stringParam(n, "format")
	if !ok {
		format = "text"
	}
	l := g.Lops.NewRead(file.Literal.String(), format, n.DataType, n.ValueType,
		lop.OutputOf(n.Characteristics()))
	return l, nil
}

func lowerWrite(g *Graph, n *Node, et common.ExecType) (*lop.Lop, error) {
	target, err := g.requireParam(n, "target")
	if err != nil {
		return nil, err
	}
	file, err := g.requireParam(n, "file")
	if err != nil {
		return nil, err
	}
	if !file.IsLiteral() {
		return nil, literalRequiredError(n, "file")
	}
	format := g.Lops.NewLiteral("text", common.ValueString)
	if p, ok := g.ParamInput(n, "format"); ok {
		format = p.lowered
	}
	return g.Lops.NewWrite(target.lowered, file.lowered, format, et), nil
}

func lowerTWrite(g *Graph, n *Node, et common.ExecType) (*lop.Lop, error) {
	return g.Lops.NewTransientWrite(g.lowered(n.Inputs[0]), n.Name), nil
}

func lowerBinary(g *Graph, n *Node, et common.ExecType) (*lop.Lop, error) {
	l := g.Lops.NewBinary(
		n.Op.Opcode(),
		g.lowered(n.Inputs[0]),
		g.lowered(n.Inputs[1]),
		n.DataType,
		n.ValueType,
		et,
	)
	return setOutput(n, l), nil
}

func lowerUnary(g *Graph, n *Node, et common.ExecType) (*lop.Lop, error) {
	opcode := n.Op.Opcode()
	if n.Op == OpCumsum {
		opcode = cumsumOpcode(et == common.ExecDist)
	}
	l := g.Lops.NewUnary(opcode, g.lowered(n.Inputs[0]), n.DataType, n.ValueType, et)
	return setOutput(n, l), nil
}

func lowerAggUnary(g *Graph, n *Node, et common.ExecType) (*lop.Lop, error) {
	l := g.Lops.NewAggregate(
		n.Op.aggOpcode(n.Dir),
		g.lowered(n.Inputs[0]),
		n.DataType,
		n.ValueType,
		et,
		n.MaxThreads,
	)
	return setOutput(n, l), nil
}

func lowerTranspose(g *Graph, n *Node, et common.ExecType) (*lop.Lop, error) {
	l := g.Lops.NewTransform(
		n.Op.Opcode(),
		g.lowered(n.Inputs[0]),
		n.DataType,
		n.ValueType,
		et,
		n.MaxThreads,
	)
	return setOutput(n, l), nil
}

// lowerParamBuiltin binds every parameter to its operand by name.
func lowerParamBuiltin(g *Graph, n *Node, et common.ExecType) (*lop.Lop, error) {
	l := g.Lops.NewParamBuiltin(n.Op.Opcode(), g.namedLops(n), n.DataType, n.ValueType, et)
	return setOutput(n, l), nil
}
