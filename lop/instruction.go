package lop

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dianpeng/dmlc/common"
)

// VarName is the runtime variable holding the output of l. Scalars and
// blocked data live in separate name spaces, like the interpreter expects.
func VarName(l *Lop) string {
	if l.DataType.IsScalar() {
		return fmt.Sprintf("_Var%d", l.ID)
	}
	return fmt.Sprintf("_mVar%d", l.ID)
}

// Operand renders l as an instruction operand, ie name·DATATYPE·VALUETYPE.
// Literals carry their value and a trailing literal marker.
func Operand(l *Lop) string {
	if l.IsLiteral() {
		return strings.Join([]string{
			l.Label,
			common.DataScalar.String(),
			l.ValueType.String(),
			common.LiteralSuffix,
		}, common.ValueTypePrefix)
	}
	return strings.Join([]string{
		VarName(l),
		l.DataType.String(),
		l.ValueType.String(),
	}, common.ValueTypePrefix)
}

func namedOperand(name, operand string) string {
	return name + common.NameValueSeparator + operand
}

func prepInstruction(parts ...string) string {
	return strings.Join(parts, common.OperandDelimiter)
}

// GetInstructions renders the instruction record of self. The input operands
// are given in binding order (self.Inputs) and output is the operand of the
// produced value. Literals produce no instruction.
func (self *Lop) GetInstructions(input []string, output string) (string, error) {
	if len(input) != len(self.Inputs) {
		return "", errors.AssertionFailedf(
			"lop %d (%s) has %d inputs but %d operands were bound",
			self.ID, self.Opcode, len(self.Inputs), len(input))
	}

	et := self.Exec.String()

	switch self.Type {
	case TypeData:
		return self.dataInstruction(input, output)

	case TypeBinary:
		return prepInstruction(et, self.Opcode, input[0], input[1], output), nil

	case TypeUnary:
		return prepInstruction(et, self.Opcode, input[0], output), nil

	case TypeAggregate, TypeTransform:
		parts := []string{et, self.Opcode, input[0], output}
		for _, f := range self.Flags {
			parts = append(parts, f.Value)
		}
		return prepInstruction(parts...), nil

	case TypeParamBuiltin, TypeGroupedAgg, TypeGroupedAggM:
		parts := []string{et, self.Opcode}
		for idx, x := range self.Named {
			parts = append(parts, namedOperand(x.Name, input[idx]))
		}
		for _, f := range self.Flags {
			parts = append(parts, namedOperand(f.Name, f.Value))
		}
		parts = append(parts, output)
		return prepInstruction(parts...), nil

	case TypeReBlock:
		return prepInstruction(
			et,
			self.Opcode,
			input[0],
			output,
			fmt.Sprintf("%d", self.Output.Blen),
			"true",
		), nil

	default:
		return "", errors.AssertionFailedf("unknown lop type %d", self.Type)
	}
}

func (self *Lop) dataInstruction(input []string, output string) (string, error) {
	switch self.DataOp {
	case DataLiteral:
		return "", nil

	case DataPersistentRead:
		return prepInstruction(
			common.ExecLocal.String(),
			self.Opcode,
			output,
			self.Label,
			"false",
			self.DataType.String(),
			self.Format,
			fmt.Sprintf("%d", self.Output.Rows),
			fmt.Sprintf("%d", self.Output.Cols),
			fmt.Sprintf("%d", self.Output.Blen),
			fmt.Sprintf("%d", self.Output.NNZ),
			"copy",
		), nil

	case DataPersistentWrite:
		return prepInstruction(self.Exec.String(), self.Opcode, input[0], input[1], input[2]), nil

	case DataTransientWrite:
		return prepInstruction(common.ExecLocal.String(), self.Opcode, input[0], self.Label), nil

	default:
		return "", errors.AssertionFailedf("unknown data lop kind %d", self.DataOp)
	}
}

// Instruction renders the record of self with operand names derived from the
// identities of the bound physical operators.
func (self *Lop) Instruction() (string, error) {
	input := make([]string, 0, len(self.Inputs))
	for _, x := range self.Inputs {
		input = append(input, Operand(x))
	}
	return self.GetInstructions(input, Operand(self))
}
