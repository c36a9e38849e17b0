package stats

import (
	"math"
)

// Byte sizes used by the memory model.
const (
	DoubleSize  = 8
	IntSize     = 4
	LongSize    = 8
	BooleanSize = 1
	CharSize    = 2

	// below this sparsity a multi-column block is kept in sparse format
	SparsityTurnPoint = 0.4

	// fixed header of an in-memory block
	blockHeaderSize = 44

	// per row cost of the sparse row array (reference + row header)
	sparseRowSize = 16
)

// DefaultSize is the worst case footprint used whenever an estimate cannot be
// bounded, ie unknown dimensions. It is larger than any real budget.
const DefaultSize = math.MaxFloat64

func GetSparsity(rows, cols, nnz int64) float64 {
	if rows <= 0 || cols <= 0 || nnz < 0 {
		return 1.0
	}
	return math.Min(1.0, float64(nnz)/(float64(rows)*float64(cols)))
}

func IsSparse(rows, cols int64, sparsity float64) bool {
	return cols > 1 && sparsity < SparsityTurnPoint
}

// EstimateSizeExactSparsity returns the in-memory footprint in bytes of a
// rows x cols block with the given sparsity. Unknown dimensions return
// DefaultSize.
func EstimateSizeExactSparsity(rows, cols int64, sparsity float64) float64 {
	if rows < 0 || cols < 0 {
		return DefaultSize
	}

	cells := float64(rows) * float64(cols)
	dense := blockHeaderSize + cells*DoubleSize
	if !IsSparse(rows, cols, sparsity) {
		return dense
	}

	nnz := math.Ceil(cells * sparsity)
	sparse := blockHeaderSize + float64(rows)*sparseRowSize + nnz*(IntSize+DoubleSize)
	return math.Min(dense, sparse)
}

// dense estimate
func EstimateSize(rows, cols int64) float64 {
	return EstimateSizeExactSparsity(rows, cols, 1.0)
}

func (self Characteristics) EstimateSize() float64 {
	return EstimateSizeExactSparsity(self.Rows, self.Cols, self.Sparsity())
}

// Add sums two estimates without overflowing past DefaultSize.
func Add(x ...float64) float64 {
	sum := 0.0
	for _, v := range x {
		if v >= DefaultSize || math.IsInf(v, 1) {
			return DefaultSize
		}
		sum += v
	}
	if math.IsInf(sum, 1) {
		return DefaultSize
	}
	return sum
}

// FitsBroadcastBudget reports whether an operand of the given characteristics
// can be replicated to every worker. Unknown dimensions never fit.
func FitsBroadcastBudget(c Characteristics, budget float64) bool {
	if !c.DimsKnown() {
		return false
	}
	return FitsBroadcastBudgetSize(c.EstimateSize(), budget)
}

func FitsBroadcastBudgetSize(size, budget float64) bool {
	return size < budget
}
