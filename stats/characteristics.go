package stats

import (
	"fmt"
)

// Unknown marks a dimension or a non-zero count that is not known at compile
// time. It is never confused with zero.
const Unknown int64 = -1

// Characteristics is the (rows, cols, nnz) triple of an operator output plus
// its blocking granularity.
type Characteristics struct {
	Rows int64
	Cols int64
	Blen int
	NNZ  int64
}

func New(rows, cols int64, blen int, nnz int64) Characteristics {
	return Characteristics{
		Rows: rows,
		Cols: cols,
		Blen: blen,
		NNZ:  nnz,
	}
}

func NewUnknown(blen int) Characteristics {
	return New(Unknown, Unknown, blen, Unknown)
}

func (self Characteristics) RowsKnown() bool { return self.Rows >= 0 }
func (self Characteristics) ColsKnown() bool { return self.Cols >= 0 }
func (self Characteristics) NNZKnown() bool  { return self.NNZ >= 0 }

func (self Characteristics) DimsKnown() bool {
	return self.RowsKnown() && self.ColsKnown()
}

// DimsKnown plus a known nnz
func (self Characteristics) FullyKnown() bool {
	return self.DimsKnown() && self.NNZKnown()
}

func (self Characteristics) Cells() int64 {
	if !self.DimsKnown() {
		return Unknown
	}
	return self.Rows * self.Cols
}

func (self Characteristics) IsRowVector() bool {
	return self.Rows == 1 && self.Cols > 1
}

func (self Characteristics) IsColVector() bool {
	return self.Cols == 1
}

func (self Characteristics) IsVector() bool {
	return self.Rows == 1 || self.Cols == 1
}

// Sparsity returns the fraction of non-zero cells. An unknown nnz yields a
// dense 1.0 so downstream estimates never underestimate.
func (self Characteristics) Sparsity() float64 {
	return GetSparsity(self.Rows, self.Cols, self.NNZ)
}

func (self Characteristics) WithNNZ(nnz int64) Characteristics {
	self.NNZ = nnz
	return self
}

func (self Characteristics) String() string {
	return fmt.Sprintf("[%s x %s, blen=%d, nnz=%s]",
		dimString(self.Rows),
		dimString(self.Cols),
		self.Blen,
		dimString(self.NNZ),
	)
}

func dimString(x int64) string {
	if x < 0 {
		return "?"
	}
	return fmt.Sprintf("%d", x)
}
