package lop

import (
	"fmt"

	"github.com/dianpeng/dmlc/common"
	"github.com/dianpeng/dmlc/stats"
)

// Physical operator families. Each family has one instruction layout.
type Type int

const (
	TypeData Type = iota
	TypeBinary
	TypeUnary
	TypeAggregate
	TypeTransform
	TypeGroupedAgg
	TypeGroupedAggM
	TypeParamBuiltin
	TypeReBlock
)

func (self Type) String() string {
	switch self {
	case TypeData:
		return "Data"
	case TypeBinary:
		return "Binary"
	case TypeUnary:
		return "Unary"
	case TypeAggregate:
		return "PartialAggregate"
	case TypeTransform:
		return "Transform"
	case TypeGroupedAgg:
		return "GroupedAggregate"
	case TypeGroupedAggM:
		return "GroupedAggregateM"
	case TypeParamBuiltin:
		return "ParameterizedBuiltin"
	case TypeReBlock:
		return "ReBlock"
	default:
		return "Unknown"
	}
}

const (
	DataLiteral = iota
	DataPersistentRead
	DataPersistentWrite
	DataTransientWrite
)

type OutputParameters struct {
	Rows int64
	Cols int64
	Blen int // -1 for unblocked output, ie requires a reblock
	NNZ  int64
}

func (self OutputParameters) Blocked() bool {
	return self.Blen > 0
}

func (self OutputParameters) Characteristics() stats.Characteristics {
	return stats.New(self.Rows, self.Cols, self.Blen, self.NNZ)
}

func OutputOf(c stats.Characteristics) OutputParameters {
	return OutputParameters{
		Rows: c.Rows,
		Cols: c.Cols,
		Blen: c.Blen,
		NNZ:  c.NNZ,
	}
}

// Named binds a physical input to a parameter name.
type Named struct {
	Name string
	Lop  *Lop
}

// Flag is an instruction-local attribute rendered as name=value right before
// the output operand.
type Flag struct {
	Name  string
	Value string
}

type Lop struct {
	ID        int
	Type      Type
	Opcode    string
	Exec      common.ExecType
	DataType  common.DataType
	ValueType common.ValueType
	Output    OutputParameters

	Inputs  []*Lop  // positional inputs, for named lops the binding order
	Named   []Named // only set on named-parameter lops
	Outputs []*Lop
	Flags   []Flag

	// data lops only
	DataOp int
	Label  string // literal value, file name or variable name
	Format string
}

func (self *Lop) IsLiteral() bool {
	return self.Type == TypeData && self.DataOp == DataLiteral
}

func (self *Lop) IsWrite() bool {
	return self.Type == TypeData &&
		(self.DataOp == DataPersistentWrite || self.DataOp == DataTransientWrite)
}

func (self *Lop) Input(name string) *Lop {
	for _, x := range self.Named {
		if x.Name == name {
			return x.Lop
		}
	}
	return nil
}

func (self *Lop) Flag(name string) (string, bool) {
	for _, x := range self.Flags {
		if x.Name == name {
			return x.Value, true
		}
	}
	return "", false
}

func (self *Lop) SetFlag(name, value string) {
	for idx := range self.Flags {
		if self.Flags[idx].Name == name {
			self.Flags[idx].Value = value
			return
		}
	}
	self.Flags = append(self.Flags, Flag{Name: name, Value: value})
}

func (self *Lop) String() string {
	return fmt.Sprintf("%s(%d, %s, %s)", self.Type, self.ID, self.Opcode, self.Exec)
}

// DAG owns the physical operators of one compilation and hands out their
// identities. Operand names are derived from those identities, so two
// compilations of the same graph produce the same instruction stream.
type DAG struct {
	nodes []*Lop
}

func NewDAG() *DAG {
	return &DAG{}
}

func (self *DAG) Len() int      { return len(self.nodes) }
func (self *DAG) Nodes() []*Lop { return self.nodes }

func (self *DAG) add(l *Lop) *Lop {
	l.ID = len(self.nodes) + 1
	self.nodes = append(self.nodes, l)
	for _, in := range l.Inputs {
		in.Outputs = append(in.Outputs, l)
	}
	return l
}

func namedInputs(named []Named) []*Lop {
	out := make([]*Lop, 0, len(named))
	for _, x := range named {
		out = append(out, x.Lop)
	}
	return out
}

func (self *DAG) NewLiteral(value string, vt common.ValueType) *Lop {
	return self.add(&Lop{
		Type:      TypeData,
		Opcode:    "lit",
		Exec:      common.ExecLocal,
		DataType:  common.DataScalar,
		ValueType: vt,
		DataOp:    DataLiteral,
		Label:     value,
		Output:    OutputParameters{Rows: 0, Cols: 0, Blen: -1, NNZ: -1},
	})
}

func (self *DAG) NewRead(
	file string,
	format string,
	dt common.DataType,
	vt common.ValueType,
	out OutputParameters,
) *Lop {
	return self.add(&Lop{
		Type:      TypeData,
		Opcode:    "createvar",
		Exec:      common.ExecLocal,
		DataType:  dt,
		ValueType: vt,
		DataOp:    DataPersistentRead,
		Label:     file,
		Format:    format,
		Output:    out,
	})
}

func (self *DAG) NewWrite(
	target *Lop,
	file *Lop,
	format *Lop,
	et common.ExecType,
) *Lop {
	return self.add(&Lop{
		Type:      TypeData,
		Opcode:    "write",
		Exec:      et,
		DataType:  target.DataType,
		ValueType: target.ValueType,
		DataOp:    DataPersistentWrite,
		Inputs:    []*Lop{target, file, format},
		Output:    target.Output,
	})
}

func (self *DAG) NewTransientWrite(target *Lop, name string) *Lop {
	return self.add(&Lop{
		Type:      TypeData,
		Opcode:    "mvvar",
		Exec:      common.ExecLocal,
		DataType:  target.DataType,
		ValueType: target.ValueType,
		DataOp:    DataTransientWrite,
		Label:     name,
		Inputs:    []*Lop{target},
		Output:    target.Output,
	})
}

func (self *DAG) NewBinary(
	opcode string,
	lhs, rhs *Lop,
	dt common.DataType,
	vt common.ValueType,
	et common.ExecType,
) *Lop {
	return self.add(&Lop{
		Type:      TypeBinary,
		Opcode:    opcode,
		Exec:      et,
		DataType:  dt,
		ValueType: vt,
		Inputs:    []*Lop{lhs, rhs},
	})
}

func (self *DAG) NewUnary(
	opcode string,
	in *Lop,
	dt common.DataType,
	vt common.ValueType,
	et common.ExecType,
) *Lop {
	return self.add(&Lop{
		Type:      TypeUnary,
		Opcode:    opcode,
		Exec:      et,
		DataType:  dt,
		ValueType: vt,
		Inputs:    []*Lop{in},
	})
}

func (self *DAG) NewAggregate(
	opcode string,
	in *Lop,
	dt common.DataType,
	vt common.ValueType,
	et common.ExecType,
	k int,
) *Lop {
	l := self.add(&Lop{
		Type:      TypeAggregate,
		Opcode:    opcode,
		Exec:      et,
		DataType:  dt,
		ValueType: vt,
		Inputs:    []*Lop{in},
	})
	if et == common.ExecLocal {
		l.SetFlag("k", fmt.Sprintf("%d", k))
	}
	return l
}

func (self *DAG) NewTransform(
	opcode string,
	in *Lop,
	dt common.DataType,
	vt common.ValueType,
	et common.ExecType,
	k int,
) *Lop {
	l := self.add(&Lop{
		Type:      TypeTransform,
		Opcode:    opcode,
		Exec:      et,
		DataType:  dt,
		ValueType: vt,
		Inputs:    []*Lop{in},
	})
	if et == common.ExecLocal {
		l.SetFlag("k", fmt.Sprintf("%d", k))
	}
	return l
}

func (self *DAG) NewParamBuiltin(
	opcode string,
	named []Named,
	dt common.DataType,
	vt common.ValueType,
	et common.ExecType,
) *Lop {
	return self.add(&Lop{
		Type:      TypeParamBuiltin,
		Opcode:    opcode,
		Exec:      et,
		DataType:  dt,
		ValueType: vt,
		Named:     named,
		Inputs:    namedInputs(named),
	})
}

// NewGroupedAgg is the shuffle based (or local) grouped aggregate. On the
// distributed backend broadcast tells whether the groups are replicated.
func (self *DAG) NewGroupedAgg(
	named []Named,
	dt common.DataType,
	vt common.ValueType,
	et common.ExecType,
	k int,
	broadcast bool,
) *Lop {
	l := self.add(&Lop{
		Type:      TypeGroupedAgg,
		Opcode:    "groupedagg",
		Exec:      et,
		DataType:  dt,
		ValueType: vt,
		Named:     named,
		Inputs:    namedInputs(named),
	})
	if et == common.ExecLocal {
		l.SetFlag("k", fmt.Sprintf("%d", k))
	} else {
		l.SetFlag("broadcast", fmt.Sprintf("%t", broadcast))
	}
	return l
}

// NewGroupedAggM is the map-side grouped aggregate with broadcast groups. Its
// output is blocked, no reblock follows.
func (self *DAG) NewGroupedAggM(
	named []Named,
	dt common.DataType,
	vt common.ValueType,
) *Lop {
	return self.add(&Lop{
		Type:      TypeGroupedAggM,
		Opcode:    "mapgroupedagg",
		Exec:      common.ExecDist,
		DataType:  dt,
		ValueType: vt,
		Named:     named,
		Inputs:    namedInputs(named),
	})
}

func (self *DAG) NewReBlock(in *Lop, blen int) *Lop {
	out := in.Output
	out.Blen = blen
	return self.add(&Lop{
		Type:      TypeReBlock,
		Opcode:    "rblk",
		Exec:      common.ExecDist,
		DataType:  in.DataType,
		ValueType: in.ValueType,
		Inputs:    []*Lop{in},
		Output:    out,
	})
}
