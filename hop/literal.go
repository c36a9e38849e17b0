package hop

import (
	"strconv"

	"github.com/dianpeng/dmlc/common"
	"github.com/spf13/cast"
)

// Literal is the compile-time constant of a literal node. Value holds an
// int64, float64, string or bool matching VT.
type Literal struct {
	VT    common.ValueType
	Value interface{}
}

func IntLiteral(v int64) Literal     { return Literal{VT: common.ValueInt64, Value: v} }
func RealLiteral(v float64) Literal  { return Literal{VT: common.ValueFp64, Value: v} }
func StringLiteral(v string) Literal { return Literal{VT: common.ValueString, Value: v} }
func BoolLiteral(v bool) Literal     { return Literal{VT: common.ValueBoolean, Value: v} }

func (self Literal) Int64() (int64, error) {
	return cast.ToInt64E(self.Value)
}

func (self Literal) Float64() (float64, error) {
	return cast.ToFloat64E(self.Value)
}

func (self Literal) Bool() (bool, error) {
	return cast.ToBoolE(self.Value)
}

func (self Literal) String() string {
	switch v := self.Value.(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return cast.ToString(v)
	}
}

func (self Literal) IsZero() bool {
	f, err := self.Float64()
	return err == nil && f == 0
}
