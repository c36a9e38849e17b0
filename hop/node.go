package hop

import (
	"github.com/dianpeng/dmlc/common"
	"github.com/dianpeng/dmlc/lop"
	"github.com/dianpeng/dmlc/stats"
)

// ID identifies a node within one Graph. It is the key of every per-node
// memo and never reused.
type ID int

// Node is one logical operator. Inputs are ordered, the position encodes the
// operand role. Parents holds one entry per edge and is only used for
// reference counting and safe detachment.
type Node struct {
	ID        ID
	Op        Op
	Dir       Direction // aggregate direction
	Name      string    // variable name for transient writes, label otherwise
	DataType  common.DataType
	ValueType common.ValueType
	Literal   Literal // literal nodes only

	Rows int64
	Cols int64
	Blen int
	NNZ  int64

	Inputs  []ID
	Parents []ID
	Params  *ParamMap // named-parameter operators only

	// Exec override set by a hint, a control construct or a rewrite.
	ForcedExec common.ExecType

	// memoized backend, ExecInvalid until selected
	Exec common.ExecType

	RequiresRecompile bool
	RequiresReblock   bool
	MaxThreads        int

	OutputEmptyBlocks       bool
	OutputPermutationMatrix bool
	RmEmptyBroadcast        bool

	// memory estimates in bytes, valid once estimated is set
	OutputMem       float64
	IntermediateMem float64
	MemEstimate     float64
	estimated       bool

	Removed bool

	lowered *lop.Lop
}

func (self *Node) Characteristics() stats.Characteristics {
	return stats.New(self.Rows, self.Cols, self.Blen, self.NNZ)
}

func (self *Node) SetDims(rows, cols int64) {
	self.Rows = rows
	self.Cols = cols
}

func (self *Node) DimsKnown() bool {
	if !self.DataType.IsBlocked() {
		return true
	}
	return self.Rows >= 0 && self.Cols >= 0
}

func (self *Node) NNZKnown() bool {
	return self.NNZ >= 0
}

func (self *Node) IsLiteral() bool {
	return self.Op == OpLiteral
}

func (self *Node) IsScalar() bool {
	return self.DataType.IsScalar()
}

// Lowered returns the cached physical operator, nil before lowering.
func (self *Node) Lowered() *lop.Lop {
	return self.lowered
}

// Estimated reports whether the memory estimates of the node are valid.
func (self *Node) Estimated() bool {
	return self.estimated
}

func (self *Node) ParentCount() int {
	return len(self.Parents)
}

func (self *Node) areDimsBelowThreshold(threshold int64) bool {
	return self.Rows >= 0 && self.Cols >= 0 &&
		self.Rows <= threshold && self.Cols <= threshold
}
