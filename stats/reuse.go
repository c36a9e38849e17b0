package stats

// Reusable block buffers handed to the writer of a large output. The writer
// pre-allocates one buffer per shape and picks it per emitted block.

const (
	ShapeFull = iota
	ShapePartialCol
	ShapePartialRow
	ShapePartialRowCol
)

type BlockShape struct {
	Present bool
	Rows    int
	Cols    int
	NNZ     int64 // estimated non-zeros of one block of this shape
	Sparse  bool
}

type ReuseShapes [4]BlockShape

// NewReuseShapes computes the four block shapes of a rows x cols output tiled
// by blen. Unknown dimensions produce no shapes. An unknown nnz is treated as
// dense.
func NewReuseShapes(c Characteristics) ReuseShapes {
	var out ReuseShapes
	if !c.DimsKnown() || c.Blen <= 0 || c.Rows == 0 || c.Cols == 0 {
		return out
	}

	rlen, clen := c.Rows, c.Cols
	blen := int64(c.Blen)
	sparsity := c.Sparsity()
	sparse := IsSparse(rlen, clen, sparsity)

	shape := func(rows, cols int64) BlockShape {
		return BlockShape{
			Present: true,
			Rows:    int(rows),
			Cols:    int(cols),
			NNZ:     int64(float64(rows*cols) * sparsity),
			Sparse:  sparse,
		}
	}

	if rlen >= blen && clen >= blen {
		out[ShapeFull] = shape(blen, blen)
	}
	if rlen >= blen && clen%blen != 0 {
		out[ShapePartialCol] = shape(blen, clen%blen)
	}
	if rlen%blen != 0 && clen >= blen {
		out[ShapePartialRow] = shape(rlen%blen, blen)
	}
	if rlen%blen != 0 && clen%blen != 0 {
		out[ShapePartialRowCol] = shape(rlen%blen, clen%blen)
	}
	return out
}

// ShapeIndex picks the reuse slot for an emitted block of rows x cols.
func ShapeIndex(rows, cols, blen int) int {
	switch {
	case rows == blen && cols == blen:
		return ShapeFull
	case rows == blen && cols < blen:
		return ShapePartialCol
	case rows < blen && cols == blen:
		return ShapePartialRow
	default:
		return ShapePartialRowCol
	}
}

func (self ReuseShapes) Count() int {
	cnt := 0
	for _, x := range self {
		if x.Present {
			cnt++
		}
	}
	return cnt
}
