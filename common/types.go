package common

import (
	"strings"
)

// Closed kind enums shared by the logical graph, the physical graph and the
// instruction encoding. The string forms are part of the instruction wire
// format and must not change.

type DataType int

const (
	DataTensor DataType = iota
	DataMatrix
	DataScalar
	DataFrame
	DataList
	DataUnknown
)

func (self DataType) String() string {
	switch self {
	case DataTensor:
		return "TENSOR"
	case DataMatrix:
		return "MATRIX"
	case DataScalar:
		return "SCALAR"
	case DataFrame:
		return "FRAME"
	case DataList:
		return "LIST"
	default:
		return "UNKNOWN"
	}
}

func (self DataType) IsMatrix() bool { return self == DataMatrix }
func (self DataType) IsScalar() bool { return self == DataScalar }
func (self DataType) IsFrame() bool  { return self == DataFrame }
func (self DataType) IsList() bool   { return self == DataList }

// matrix, tensor and frame outputs are blocked and carry dimensions
func (self DataType) IsBlocked() bool {
	return self == DataMatrix || self == DataTensor || self == DataFrame
}

func ParseDataType(x string) (DataType, bool) {
	switch strings.ToLower(x) {
	case "tensor":
		return DataTensor, true
	case "matrix":
		return DataMatrix, true
	case "scalar":
		return DataScalar, true
	case "frame":
		return DataFrame, true
	case "list":
		return DataList, true
	default:
		return DataUnknown, false
	}
}

type ValueType int

const (
	ValueFp32 ValueType = iota
	ValueFp64
	ValueInt64
	ValueString
	ValueBoolean
	ValueUnknown
)

func (self ValueType) String() string {
	switch self {
	case ValueFp32:
		return "FP32"
	case ValueFp64:
		return "FP64"
	case ValueInt64:
		return "INT64"
	case ValueString:
		return "STRING"
	case ValueBoolean:
		return "BOOLEAN"
	default:
		return "UNKNOWN"
	}
}

func (self ValueType) IsNumeric() bool {
	return self == ValueFp32 || self == ValueFp64 || self == ValueInt64
}

func ParseValueType(x string) (ValueType, bool) {
	switch strings.ToLower(x) {
	case "fp32", "float":
		return ValueFp32, true
	case "fp64", "double":
		return ValueFp64, true
	case "int", "int64", "integer":
		return ValueInt64, true
	case "string", "str":
		return ValueString, true
	case "boolean", "bool":
		return ValueBoolean, true
	default:
		return ValueUnknown, false
	}
}

// ExecType is the backend an operator is bound to. ExecInvalid doubles as
// "not decided yet" and "no override".
type ExecType int

const (
	ExecInvalid ExecType = iota
	ExecLocal
	ExecDist
)

func (self ExecType) String() string {
	switch self {
	case ExecLocal:
		return "CP"
	case ExecDist:
		return "SPARK"
	default:
		return "INVALID"
	}
}

func (self ExecType) Valid() bool {
	return self == ExecLocal || self == ExecDist
}

func ParseExecType(x string) (ExecType, bool) {
	switch strings.ToLower(x) {
	case "cp", "local":
		return ExecLocal, true
	case "spark", "dist":
		return ExecDist, true
	default:
		return ExecInvalid, false
	}
}

// Instruction record delimiters.
const (
	OperandDelimiter   = "°"
	ValueTypePrefix    = "·"
	NameValueSeparator = "="
	LiteralSuffix      = "true"
)
