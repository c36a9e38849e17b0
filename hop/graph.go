package hop

import (
	"github.com/cockroachdb/errors"
	"github.com/dianpeng/dmlc/common"
	"github.com/dianpeng/dmlc/config"
	"github.com/dianpeng/dmlc/logging"
	"github.com/dianpeng/dmlc/lop"
	"github.com/dianpeng/dmlc/stats"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

// Graph is the arena of logical operators of one compilation unit. Nodes are
// addressed by ID, edges are ID lists. A Graph, its memo and its physical
// DAG belong to exactly one compilation and are not safe for concurrent use.
type Graph struct {
	Roots []ID
	Lops  *lop.DAG

	// number of memory based backend decisions, each node costs at most one
	CostEvaluations int

	cfg   *config.Config
	nodes []*Node
	memo  *Memo
	log   *zap.Logger
}

// Param binds a parameter name to an input node.
type Param struct {
	Name  string
	Input ID
}

func NewGraph(cfg *config.Config, log *zap.Logger) *Graph {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logging.L()
	}
	return &Graph{
		Lops: lop.NewDAG(),
		cfg:  cfg,
		memo: NewMemo(),
		log:  log,
	}
}

func (self *Graph) Config() *config.Config { return self.cfg }
func (self *Graph) Memo() *Memo            { return self.memo }
func (self *Graph) Len() int               { return len(self.nodes) }
func (self *Graph) Nodes() []*Node         { return self.nodes }

func (self *Graph) Node(id ID) *Node {
	if id < 0 || int(id) >= len(self.nodes) {
		return nil
	}
	return self.nodes[id]
}

func (self *Graph) AddRoot(id ID) {
	self.Roots = append(self.Roots, id)
}

func (self *Graph) newNode(
	op Op,
	dt common.DataType,
	vt common.ValueType,
	inputs []ID,
) *Node {
	n := &Node{
		ID:         ID(len(self.nodes)),
		Op:         op,
		DataType:   dt,
		ValueType:  vt,
		Rows:       stats.Unknown,
		Cols:       stats.Unknown,
		NNZ:        stats.Unknown,
		Blen:       self.cfg.BlockSize,
		MaxThreads: self.cfg.NumThreads,
	}
	if !dt.IsBlocked() {
		n.Rows = 0
		n.Cols = 0
		n.Blen = -1
	}
	self.nodes = append(self.nodes, n)
	for _, in := range inputs {
		self.link(n, in)
	}
	return n
}

func (self *Graph) link(parent *Node, child ID) {
	parent.Inputs = append(parent.Inputs, child)
	c := self.nodes[child]
	c.Parents = append(c.Parents, parent.ID)
}

// ----------------------------------------------------------------------------
// Construction

func (self *Graph) NewLiteral(l Literal) ID {
	n := self.newNode(OpLiteral, common.DataScalar, l.VT, nil)
	n.Literal = l
	n.Name = l.String()
	return n.ID
}

func (self *Graph) newNamed(
	op Op,
	dt common.DataType,
	vt common.ValueType,
	params []Param,
) (*Node, error) {
	names := make([]string, 0, len(params))
	inputs := make([]ID, 0, len(params))
	for _, p := range params {
		if self.Node(p.Input) == nil {
			return nil, errors.AssertionFailedf("parameter %q binds unknown hop %d", p.Name, p.Input)
		}
		names = append(names, p.Name)
		inputs = append(inputs, p.Input)
	}
	pm, err := NewParamMap(names)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", op)
	}
	n := self.newNode(op, dt, vt, inputs)
	n.Params = pm
	return n, nil
}

// NewRead creates a persistent read. The parameters carry the file name, the
// format and optionally literal rows, cols and nnz.
func (self *Graph) NewRead(
	name string,
	dt common.DataType,
	vt common.ValueType,
	params []Param,
) (ID, error) {
	n, err := self.newNamed(OpRead, dt, vt, params)
	if err != nil {
		return -1, err
	}
	n.Name = name
	if self.isTextFormat(n) {
		n.RequiresReblock = true
	}
	self.refreshSizeInformation(n)
	return n.ID, nil
}

// NewWrite creates a persistent write of target, params holds filename and
// format.
func (self *Graph) NewWrite(target ID, params []Param) (ID, error) {
	t := self.Node(target)
	if t == nil {
		return -1, errors.AssertionFailedf("write of unknown hop %d", target)
	}
	all := append([]Param{{Name: "target", Input: target}}, params...)
	n, err := self.newNamed(OpWrite, t.DataType, t.ValueType, all)
	if err != nil {
		return -1, err
	}
	self.refreshSizeInformation(n)
	return n.ID, nil
}

func (self *Graph) NewTWrite(name string, target ID) ID {
	t := self.nodes[target]
	n := self.newNode(OpTWrite, t.DataType, t.ValueType, []ID{target})
	n.Name = name
	self.refreshSizeInformation(n)
	return n.ID
}

func isRelational(op Op) bool {
	switch op {
	case OpEqual, OpNotEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		return true
	default:
		return false
	}
}

func (self *Graph) NewBinary(op Op, lhs, rhs ID) ID {
	l, r := self.nodes[lhs], self.nodes[rhs]

	dt := common.DataScalar
	vt := common.ValueFp64
	if l.DataType.IsBlocked() {
		dt = l.DataType
	} else if r.DataType.IsBlocked() {
		dt = r.DataType
	} else {
		switch {
		case isRelational(op):
			vt = common.ValueBoolean
			break
		case op != OpDiv && l.ValueType == common.ValueInt64 && r.ValueType == common.ValueInt64:
			vt = common.ValueInt64
			break
		case l.ValueType == common.ValueString || r.ValueType == common.ValueString:
			vt = common.ValueString
			break
		default:
			break
		}
	}

	n := self.newNode(op, dt, vt, []ID{lhs, rhs})
	self.refreshSizeInformation(n)
	return n.ID
}

func (self *Graph) NewUnary(op Op, in ID) ID {
	x := self.nodes[in]
	vt := common.ValueFp64
	if x.IsScalar() {
		switch op {
		case OpNot:
			vt = common.ValueBoolean
			break
		case OpAbs:
			vt = x.ValueType
			break
		default:
			break
		}
	}
	n := self.newNode(op, x.DataType, vt, []ID{in})
	self.refreshSizeInformation(n)
	return n.ID
}

func (self *Graph) NewAggUnary(op Op, dir Direction, in ID) ID {
	dt := common.DataMatrix
	if dir == DirRowCol {
		dt = common.DataScalar
	}
	n := self.newNode(op, dt, common.ValueFp64, []ID{in})
	n.Dir = dir
	self.refreshSizeInformation(n)
	return n.ID
}

func (self *Graph) NewTranspose(in ID) ID {
	x := self.nodes[in]
	n := self.newNode(OpTranspose, x.DataType, x.ValueType, []ID{in})
	self.refreshSizeInformation(n)
	return n.ID
}

func (self *Graph) NewParamBuiltin(
	op Op,
	dt common.DataType,
	vt common.ValueType,
	params []Param,
) (ID, error) {
	if !op.IsParamBuiltin() {
		return -1, errors.AssertionFailedf("%s is not a parameterized builtin", op)
	}
	n, err := self.newNamed(op, dt, vt, params)
	if err != nil {
		return -1, err
	}
	self.refreshSizeInformation(n)
	return n.ID, nil
}

// ----------------------------------------------------------------------------
// Parameters

func (self *Graph) ParamInput(n *Node, name string) (*Node, bool) {
	idx, ok := n.Params.Index(name)
	if !ok || idx >= len(n.Inputs) {
		return nil, false
	}
	return self.nodes[n.Inputs[idx]], true
}

// literalParam returns the literal bound to name, ok is false when the
// parameter is absent or not a literal.
func (self *Graph) literalParam(n *Node, name string) (Literal, bool) {
	p, ok := self.ParamInput(n, name)
	if !ok || !p.IsLiteral() {
		return Literal{}, false
	}
	return p.Literal, true
}

func (self *Graph) stringParam(n *Node, name string) (string, bool) {
	l, ok := self.literalParam(n, name)
	if !ok {
		return "", false
	}
	return l.String(), true
}

func (self *Graph) requireParam(n *Node, name string) (*Node, error) {
	p, ok := self.ParamInput(n, name)
	if !ok {
		return nil, structuralError(n, "missing parameter %q", name)
	}
	return p, nil
}

func (self *Graph) target(n *Node) *Node {
	if p, ok := self.ParamInput(n, "target"); ok {
		return p
	}
	if len(n.Inputs) > 0 {
		return self.nodes[n.Inputs[0]]
	}
	return nil
}

func (self *Graph) isTextFormat(n *Node) bool {
	f, ok := self.stringParam(n, "format")
	if !ok {
		return true
	}
	return f == "csv" || f == "text"
}

// CheckArity verifies the parameter mapping of a named-parameter operator
// binds every input exactly once.
func (self *Graph) CheckArity(id ID) error {
	n := self.nodes[id]
	if n.Params == nil {
		return nil
	}
	if sz, pz := len(n.Inputs), n.Params.Len(); sz != pz {
		return structuralError(n, "has %d inputs but %d parameters", sz, pz)
	}
	for _, name := range n.Params.Names() {
		if idx, _ := n.Params.Index(name); idx < 0 || idx >= len(n.Inputs) {
			return structuralError(n, "parameter %q is bound to invalid input %d", name, idx)
		}
	}
	return nil
}

// ----------------------------------------------------------------------------
// Rewrite utilities

// AddInput appends child as the last input of parent.
func (self *Graph) AddInput(parent, child ID) {
	self.link(self.nodes[parent], child)
}

// RemoveChildReference removes one edge parent -> child.
func (self *Graph) RemoveChildReference(parent, child ID) {
	p, c := self.nodes[parent], self.nodes[child]
	if idx := slices.Index(p.Inputs, child); idx >= 0 {
		p.Inputs = slices.Delete(p.Inputs, idx, idx+1)
	}
	if idx := slices.Index(c.Parents, parent); idx >= 0 {
		c.Parents = slices.Delete(c.Parents, idx, idx+1)
	}
}

// Remove detaches a node without parents from all of its inputs. The node
// stays in the arena so identities remain stable.
func (self *Graph) Remove(id ID) error {
	n := self.nodes[id]
	if len(n.Parents) != 0 {
		return errors.AssertionFailedf("hop %d still has %d parents", id, len(n.Parents))
	}
	for len(n.Inputs) > 0 {
		self.RemoveChildReference(id, n.Inputs[len(n.Inputs)-1])
	}
	n.Removed = true
	return nil
}

// Clone creates a structurally independent copy of a node bound to the same
// inputs. Scalar attributes are copied, the parameter mapping is shared.
// The clone has no parents, no backend decision and no lowered form.
func (self *Graph) Clone(id ID) ID {
	src := self.nodes[id]
	n := self.newNode(src.Op, src.DataType, src.ValueType, src.Inputs)
	n.Dir = src.Dir
	n.Name = src.Name
	n.Literal = src.Literal
	n.Rows = src.Rows
	n.Cols = src.Cols
	n.Blen = src.Blen
	n.NNZ = src.NNZ
	n.Params = src.Params
	n.ForcedExec = src.ForcedExec
	n.RequiresRecompile = src.RequiresRecompile
	n.RequiresReblock = src.RequiresReblock
	n.MaxThreads = src.MaxThreads
	n.OutputEmptyBlocks = src.OutputEmptyBlocks
	n.OutputPermutationMatrix = src.OutputPermutationMatrix
	return n.ID
}

// Compare reports whether two parameterized builtins compute the same value,
// ie same operator and every parameter bound to the identical input.
func (self *Graph) Compare(a, b ID) bool {
	x, y := self.nodes[a], self.nodes[b]
	if x.Op != y.Op || !x.Op.IsParamBuiltin() {
		return false
	}
	if x.Params.Len() != y.Params.Len() ||
		x.OutputEmptyBlocks != y.OutputEmptyBlocks ||
		x.OutputPermutationMatrix != y.OutputPermutationMatrix {
		return false
	}
	for _, name := range x.Params.Names() {
		px, _ := self.ParamInput(x, name)
		py, ok := self.ParamInput(y, name)
		if !ok || px.ID != py.ID {
			return false
		}
	}
	return true
}

// IsTransposeSafe holds for grouped aggregates with the sum function.
func (self *Graph) IsTransposeSafe(id ID) bool {
	n := self.nodes[id]
	if n.Op != OpGroupedAgg {
		return false
	}
	fn, ok := self.stringParam(n, "fn")
	return ok && fn == "sum"
}

func (self *Graph) IsCountFunction(id ID) bool {
	n := self.nodes[id]
	if n.Op != OpGroupedAgg {
		return false
	}
	fn, ok := self.stringParam(n, "fn")
	return ok && fn == "count"
}

// IsTargetVectorInput holds when the target of a remove-empty is a column
// vector, ie the selection only applies to rows.
func (self *Graph) IsTargetVectorInput(id ID) bool {
	n := self.nodes[id]
	if n.Op != OpRmEmpty {
		return false
	}
	t := self.target(n)
	return t != nil && t.Cols == 1
}
