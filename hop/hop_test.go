package hop

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/dianpeng/dmlc/common"
	"github.com/dianpeng/dmlc/config"
	"github.com/dianpeng/dmlc/lop"
	"github.com/dianpeng/dmlc/stats"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newTestGraph(mod func(*config.Config)) *Graph {
	cfg := config.Default()
	if mod != nil {
		mod(cfg)
	}
	return NewGraph(cfg, zap.NewNop())
}

func str(g *Graph, x string) ID { return g.NewLiteral(StringLiteral(x)) }
func num(g *Graph, x int64) ID  { return g.NewLiteral(IntLiteral(x)) }

// binary matrix read with literal dimensions, negative values are unknown
func read(g *Graph, rows, cols, nnz int64) ID {
	id, err := g.NewRead("X", common.DataMatrix, common.ValueFp64, []Param{
		{Name: "file", Input: str(g, "X")},
		{Name: "format", Input: str(g, "binary")},
		{Name: "rows", Input: num(g, rows)},
		{Name: "cols", Input: num(g, cols)},
		{Name: "nnz", Input: num(g, nnz)},
	})
	if err != nil {
		panic(err)
	}
	return id
}

func pbuiltin(g *Graph, op Op, params ...Param) ID {
	id, err := g.NewParamBuiltin(op, common.DataMatrix, common.ValueFp64, params)
	if err != nil {
		panic(err)
	}
	return id
}

func rmEmpty(g *Graph, target ID, margin string) ID {
	return pbuiltin(g, OpRmEmpty,
		Param{Name: "target", Input: target},
		Param{Name: "margin", Input: str(g, margin)},
	)
}

func TestGraphConstruction(t *testing.T) {
	assert := assert.New(t)
	g := newTestGraph(nil)

	x := read(g, 100, 10, -1)
	{
		n := g.Node(x)
		assert.Equal(int64(100), n.Rows)
		assert.Equal(int64(10), n.Cols)
		assert.Equal(stats.Unknown, n.NNZ)
		assert.False(n.RequiresReblock)
		assert.Equal(1000, n.Blen)
	}
	{
		csv, err := g.NewRead("Y", common.DataMatrix, common.ValueFp64, []Param{
			{Name: "file", Input: str(g, "Y")},
			{Name: "format", Input: str(g, "csv")},
		})
		assert.Nil(err)
		assert.True(g.Node(csv).RequiresReblock)
		assert.False(g.Node(csv).DimsKnown())
	}
	{
		b := g.NewBinary(OpPlus, x, num(g, 1))
		assert.Equal(common.DataMatrix, g.Node(b).DataType)
		assert.True(g.Node(b).DimsKnown())
		assert.Equal([]ID{x, g.Node(b).Inputs[1]}, g.Node(b).Inputs)

		s := g.NewBinary(OpLess, num(g, 1), num(g, 2))
		assert.Equal(common.DataScalar, g.Node(s).DataType)
		assert.Equal(common.ValueBoolean, g.Node(s).ValueType)
	}
	{
		_, err := g.NewParamBuiltin(OpRmEmpty, common.DataMatrix, common.ValueFp64, []Param{
			{Name: "target", Input: x},
			{Name: "target", Input: x},
		})
		assert.NotNil(err)

		_, err = g.NewParamBuiltin(OpPlus, common.DataMatrix, common.ValueFp64, nil)
		assert.NotNil(err)
	}
}

func TestArity(t *testing.T) {
	assert := assert.New(t)
	g := newTestGraph(nil)

	x := read(g, 10, 10, -1)
	rm := rmEmpty(g, x, "rows")
	assert.Nil(g.CheckArity(rm))

	g.AddInput(rm, num(g, 1))
	err := g.CheckArity(rm)
	assert.True(errors.Is(err, ErrStructural))

	_, err = g.Lower(rm)
	assert.True(errors.Is(err, ErrStructural))
	assert.Nil(g.Node(rm).Lowered())
}

func TestMissingParameter(t *testing.T) {
	assert := assert.New(t)
	g := newTestGraph(nil)

	x := read(g, 10, 10, -1)
	gagg := pbuiltin(g, OpGroupedAgg,
		Param{Name: "target", Input: x},
		Param{Name: "fn", Input: str(g, "sum")},
	)
	_, err := g.Lower(gagg)
	assert.True(errors.Is(err, ErrStructural))
	assert.Contains(err.Error(), "groups")
}

func TestExecTypeMemoized(t *testing.T) {
	assert := assert.New(t)
	g := newTestGraph(func(c *config.Config) {
		c.OptLevel = config.OptLevelMemory
	})

	x := read(g, 100, 100, -1)
	b := g.NewBinary(OpMult, x, num(g, 2))

	assert.Equal(common.ExecLocal, g.SelectExecType(b))
	assert.Equal(1, g.CostEvaluations)
	assert.Equal(common.ExecLocal, g.SelectExecType(b))
	assert.Equal(1, g.CostEvaluations)
	assert.Equal(common.ExecLocal, g.Node(b).Exec)
	assert.False(g.Node(b).RequiresRecompile)
}

func TestExecTypeMemoryBudget(t *testing.T) {
	assert := assert.New(t)
	g := newTestGraph(func(c *config.Config) {
		c.LocalMemoryBudget = 1024 * 1024
	})

	small := read(g, 10, 10, -1)
	large := read(g, 1000, 1000, -1)
	assert.Equal(common.ExecLocal, g.SelectExecType(small))
	assert.Equal(common.ExecDist, g.SelectExecType(large))

	unknown := read(g, -1, -1, -1)
	assert.Equal(common.ExecDist, g.SelectExecType(unknown))
	assert.True(g.Node(unknown).RequiresRecompile)
	assert.Equal(stats.DefaultSize, g.Node(unknown).MemEstimate)
}

func TestExecTypeForced(t *testing.T) {
	assert := assert.New(t)
	g := newTestGraph(func(c *config.Config) {
		c.LocalMemoryBudget = 1
	})

	{
		x := read(g, 1000, 1000, -1)
		g.Node(x).ForcedExec = common.ExecLocal
		assert.Equal(common.ExecLocal, g.SelectExecType(x))
		assert.Equal(0, g.CostEvaluations)
	}
	{
		g := newTestGraph(nil)
		x := read(g, 2, 2, -1)
		g.Node(x).ForcedExec = common.ExecDist
		assert.Equal(common.ExecDist, g.SelectExecType(x))
	}
}

func TestExecTypeAlwaysLocal(t *testing.T) {
	assert := assert.New(t)
	g := newTestGraph(func(c *config.Config) {
		c.Platform = config.PlatformSpark
	})

	x := read(g, 100000, 100000, -1)
	ts := pbuiltin(g, OpToString, Param{Name: "target", Input: x})
	g.Node(ts).DataType = common.DataScalar
	assert.Equal(common.ExecLocal, g.SelectExecType(ts))
	assert.Equal(common.ExecDist, g.SelectExecType(x))
	assert.Equal(common.ExecLocal, g.SelectExecType(g.Node(x).Inputs[0]))

	// a pin on a local only operator has no physical realization
	ts2 := pbuiltin(g, OpToString, Param{Name: "target", Input: x})
	g.Node(ts2).ForcedExec = common.ExecDist
	_, err := g.Lower(ts2)
	assert.True(errors.Is(err, ErrStructural))
}

func TestExecTypeStatic(t *testing.T) {
	assert := assert.New(t)
	g := newTestGraph(func(c *config.Config) {
		c.OptLevel = config.OptLevelStatic
	})

	small := read(g, 10, 10, -1)
	large := read(g, 5000, 10, -1)
	assert.Equal(common.ExecLocal, g.SelectExecType(small))
	assert.Equal(common.ExecDist, g.SelectExecType(large))
	assert.Equal(common.ExecLocal, g.SelectExecType(g.NewUnary(OpAbs, small)))
	assert.Equal(common.ExecDist, g.SelectExecType(g.NewUnary(OpAbs, large)))
	assert.Equal(common.ExecDist, g.SelectExecType(rmEmpty(g, small, "rows")))
	assert.Equal(0, g.CostEvaluations)
}

func TestExecTypeInvalidLocalDims(t *testing.T) {
	assert := assert.New(t)
	g := newTestGraph(func(c *config.Config) {
		c.OptLevel = config.OptLevelStatic
		c.DimsThreshold = 1 << 40
	})

	x := read(g, 1<<32, 1, -1)
	assert.Equal(common.ExecDist, g.SelectExecType(x))
}

func TestGroupedAggInference(t *testing.T) {
	assert := assert.New(t)
	g := newTestGraph(nil)

	gagg := func(target ID, ngroups ID) ID {
		params := []Param{
			{Name: "target", Input: target},
			{Name: "groups", Input: read(g, 100, 1, -1)},
			{Name: "fn", Input: str(g, "sum")},
		}
		if ngroups >= 0 {
			params = append(params, Param{Name: "ngroups", Input: ngroups})
		}
		return pbuiltin(g, OpGroupedAgg, params...)
	}

	{
		id := gagg(read(g, 100, 5, -1), num(g, 7))
		c, ok := g.InferOutputCharacteristics(id, NewMemo())
		assert.True(ok)
		assert.Equal(int64(7), c.Rows)
		assert.Equal(int64(5), c.Cols)
		assert.Equal(int64(7), c.NNZ)

		n := g.Node(id)
		assert.Equal(int64(7), n.Rows)
		assert.Equal(int64(5), n.Cols)
	}
	{
		id := gagg(read(g, 100, 1, -1), num(g, 7))
		c, ok := g.InferOutputCharacteristics(id, NewMemo())
		assert.True(ok)
		assert.Equal(int64(7), c.Rows)
		assert.Equal(int64(1), c.Cols)
		assert.Equal(int64(7), c.NNZ)
	}
	{
		// no literal group count, one group per row
		y := read(g, 100, 5, -1)
		id := gagg(y, g.NewAggUnary(OpAggMax, DirRowCol, y))
		c, ok := g.InferOutputCharacteristics(id, NewMemo())
		assert.True(ok)
		assert.Equal(int64(100), c.Rows)
		assert.Equal(int64(5), c.Cols)
		assert.Equal(int64(100), c.NNZ)
		assert.False(g.Node(id).DimsKnown())
	}
	{
		id := gagg(read(g, -1, -1, -1), -1)
		_, ok := g.InferOutputCharacteristics(id, NewMemo())
		assert.False(ok)
	}
}

func TestGroupedAggInvalidGroupCount(t *testing.T) {
	assert := assert.New(t)
	g := newTestGraph(nil)

	gagg := func(ngroups ID) ID {
		return pbuiltin(g, OpGroupedAgg,
			Param{Name: "target", Input: read(g, 100, 5, -1)},
			Param{Name: "groups", Input: read(g, 100, 1, -1)},
			Param{Name: "fn", Input: str(g, "sum")},
			Param{Name: "ngroups", Input: ngroups},
		)
	}

	for _, ngroups := range []ID{str(g, "many"), num(g, -3)} {
		id := gagg(ngroups)
		n := g.Node(id)
		assert.Equal(stats.Unknown, n.Rows)
		assert.Equal(int64(5), n.Cols)
		assert.False(n.DimsKnown())

		// inference agrees, one group per row
		c, ok := g.InferOutputCharacteristics(id, NewMemo())
		assert.True(ok)
		assert.Equal(int64(100), c.Rows)
		assert.Equal(int64(5), c.Cols)
	}
	{
		// numeric strings are still a group count
		id := gagg(str(g, "4"))
		assert.Equal(int64(4), g.Node(id).Rows)
	}
}

func TestRExpandInference(t *testing.T) {
	assert := assert.New(t)
	g := newTestGraph(nil)

	rexpand := func(target ID, maxIdx int64, dir ID) ID {
		return pbuiltin(g, OpRExpand,
			Param{Name: "target", Input: target},
			Param{Name: "max", Input: num(g, maxIdx)},
			Param{Name: "dir", Input: dir},
		)
	}

	x := read(g, 50, 1, -1)
	{
		id := rexpand(x, 10, str(g, "cols"))
		c, ok := g.InferOutputCharacteristics(id, NewMemo())
		assert.True(ok)
		assert.Equal(int64(50), c.Rows)
		assert.Equal(int64(10), c.Cols)
		assert.Equal(int64(50), c.NNZ)
	}
	{
		id := rexpand(x, 10, str(g, "rows"))
		c, ok := g.InferOutputCharacteristics(id, NewMemo())
		assert.True(ok)
		assert.Equal(int64(10), c.Rows)
		assert.Equal(int64(50), c.Cols)
	}
	{
		// a computed direction degrades to unknown
		dir := g.NewBinary(OpPlus, str(g, "co"), str(g, "ls"))
		id := rexpand(x, 10, dir)
		_, ok := g.InferOutputCharacteristics(id, NewMemo())
		assert.False(ok)

		g.Node(id).ForcedExec = common.ExecLocal
		_, err := g.Lower(id)
		assert.True(errors.Is(err, ErrLiteralRequired))
	}
}

func TestRmEmptyInference(t *testing.T) {
	assert := assert.New(t)
	g := newTestGraph(nil)

	x := read(g, 100, 10, 300)
	{
		id := rmEmpty(g, x, "rows")
		n := g.Node(id)
		assert.Equal(stats.Unknown, n.Rows)
		assert.Equal(int64(10), n.Cols)
		assert.Equal(int64(300), n.NNZ)

		c, ok := g.InferOutputCharacteristics(id, NewMemo())
		assert.True(ok)
		assert.Equal(int64(100), c.Rows)
		assert.Equal(int64(10), c.Cols)
	}
	{
		sel := read(g, 100, 1, 20)
		id := pbuiltin(g, OpRmEmpty,
			Param{Name: "target", Input: x},
			Param{Name: "margin", Input: str(g, "rows")},
			Param{Name: "select", Input: sel},
		)
		c, ok := g.InferOutputCharacteristics(id, NewMemo())
		assert.True(ok)
		assert.Equal(int64(20), c.Rows)
		assert.Equal(int64(10), c.Cols)
	}
}

func TestReplaceInference(t *testing.T) {
	assert := assert.New(t)
	g := newTestGraph(nil)

	x := read(g, 10, 10, 30)
	replace := func(pattern, replacement int64) ID {
		return pbuiltin(g, OpReplace,
			Param{Name: "target", Input: x},
			Param{Name: "pattern", Input: num(g, pattern)},
			Param{Name: "replacement", Input: num(g, replacement)},
		)
	}
	{
		c, ok := g.InferOutputCharacteristics(replace(1, 2), NewMemo())
		assert.True(ok)
		assert.Equal(int64(30), c.NNZ)
	}
	{
		c, ok := g.InferOutputCharacteristics(replace(0, 2), NewMemo())
		assert.True(ok)
		assert.Equal(int64(10), c.Rows)
		assert.Equal(stats.Unknown, c.NNZ)
	}
}

func TestMemoryEstimates(t *testing.T) {
	assert := assert.New(t)
	g := newTestGraph(nil)
	memo := g.Memo()

	x := read(g, 1000, 1000, -1)
	{
		total := g.ComputeMemEstimate(x, memo)
		n := g.Node(x)
		assert.Equal(float64(44+1000*1000*8), n.OutputMem)
		assert.Equal(float64(0), n.IntermediateMem)
		// five scalar literal parameters
		assert.Equal(n.OutputMem+5*8, total)
	}

	y := read(g, 100, 10, -1)
	{
		rm := rmEmpty(g, y, "rows")
		g.ComputeMemEstimate(rm, memo)
		assert.Equal(float64(100), g.Node(rm).IntermediateMem)
		assert.True(memo.Has(rm))
	}
	{
		rm := rmEmpty(g, y, "cols")
		g.ComputeMemEstimate(rm, memo)
		assert.Equal(float64(10*5), g.Node(rm).IntermediateMem)
	}
	{
		rx := pbuiltin(g, OpRExpand,
			Param{Name: "target", Input: read(g, 50, 1, -1)},
			Param{Name: "max", Input: num(g, 10)},
			Param{Name: "dir", Input: str(g, "rows")},
		)
		g.ComputeMemEstimate(rx, memo)
		assert.Equal(float64(10*12), g.Node(rx).IntermediateMem)
	}
	{
		ts := pbuiltin(g, OpToString, Param{Name: "target", Input: read(g, 10, 10, -1)})
		g.Node(ts).DataType = common.DataScalar
		g.ComputeMemEstimate(ts, memo)
		assert.Equal(float64(36+2*(700+90+10)), g.Node(ts).OutputMem)
	}
}

func TestRmEmptyDistLiteralMargin(t *testing.T) {
	assert := assert.New(t)
	g := newTestGraph(nil)

	x := read(g, 100, 10, -1)
	margin := g.NewBinary(OpPlus, str(g, "ro"), str(g, "ws"))
	rm := pbuiltin(g, OpRmEmpty,
		Param{Name: "target", Input: x},
		Param{Name: "margin", Input: margin},
	)
	g.Node(rm).ForcedExec = common.ExecDist

	_, err := g.Lower(rm)
	assert.True(errors.Is(err, ErrLiteralRequired))
	assert.False(errors.Is(err, ErrStructural))
	assert.Contains(err.Error(), "margin")
}

func TestRmEmptyDistDetach(t *testing.T) {
	assert := assert.New(t)

	for _, margin := range []string{"rows", "cols"} {
		g := newTestGraph(nil)
		x := read(g, 100, 10, -1)
		rm := rmEmpty(g, x, margin)
		g.Node(rm).ForcedExec = common.ExecDist

		size := g.Len()
		assert.Equal(1, g.Node(x).ParentCount())

		l, err := g.Lower(rm)
		assert.Nil(err)
		assert.Equal(1, g.Node(x).ParentCount())
		assert.Equal(lop.TypeParamBuiltin, l.Type)
		assert.Equal(common.ExecDist, l.Exec)
		assert.NotNil(l.Input("offset"))
		assert.NotNil(l.Input("maxdim"))
		assert.Equal(g.Node(x).Lowered(), l.Input("target"))

		bc, ok := l.Flag("bRmEmptyBC")
		assert.True(ok)
		assert.Equal("true", bc)

		// auxiliary nodes stay in the arena, detached
		assert.True(g.Len() > size)
		for _, n := range g.Nodes()[size:] {
			assert.True(n.Removed)
			assert.Equal(0, n.ParentCount())
			assert.Equal(0, len(n.Inputs))
		}
	}
}

func TestRmEmptyDistSelect(t *testing.T) {
	assert := assert.New(t)
	g := newTestGraph(func(c *config.Config) {
		c.ForceDistRmEmpty = true
	})

	x := read(g, 100, 10, -1)
	sel := read(g, 100, 1, -1)
	rm := pbuiltin(g, OpRmEmpty,
		Param{Name: "target", Input: x},
		Param{Name: "margin", Input: str(g, "rows")},
		Param{Name: "select", Input: sel},
	)
	g.Node(rm).ForcedExec = common.ExecDist

	l, err := g.Lower(rm)
	assert.Nil(err)
	assert.Equal(1, g.Node(x).ParentCount())
	assert.Equal(1, g.Node(sel).ParentCount())
	bc, _ := l.Flag("bRmEmptyBC")
	assert.Equal("false", bc)
}

func TestGroupedAggBroadcast(t *testing.T) {
	assert := assert.New(t)

	type variant struct {
		budget  config.ByteSize
		fn      string
		ngroups int // 0 literal, 1 computed, 2 absent
		want    lop.Type
	}

	for _, v := range []variant{
		{512 * 1024 * 1024, "sum", 0, lop.TypeGroupedAggM},
		{100, "sum", 0, lop.TypeGroupedAgg},
		{512 * 1024 * 1024, "max", 0, lop.TypeGroupedAgg},
		{512 * 1024 * 1024, "sum", 1, lop.TypeGroupedAgg},
		{512 * 1024 * 1024, "sum", 2, lop.TypeGroupedAgg},
	} {
		g := newTestGraph(func(c *config.Config) {
			c.BroadcastMemoryBudget = v.budget
		})
		x := read(g, 1000, 10, -1)
		groups := read(g, 1000, 1, -1)
		params := []Param{
			{Name: "target", Input: x},
			{Name: "groups", Input: groups},
			{Name: "fn", Input: str(g, v.fn)},
		}
		switch v.ngroups {
		case 0:
			params = append(params, Param{Name: "ngroups", Input: num(g, 5)})
			break
		case 1:
			params = append(params, Param{Name: "ngroups", Input: g.NewAggUnary(OpAggMax, DirRowCol, groups)})
			break
		default:
			break
		}
		gagg := pbuiltin(g, OpGroupedAgg, params...)
		g.Node(gagg).ForcedExec = common.ExecDist

		l, err := g.Lower(gagg)
		assert.Nil(err)

		if v.want == lop.TypeGroupedAggM {
			assert.Equal(lop.TypeGroupedAggM, l.Type)
			assert.False(g.Node(gagg).RequiresReblock)
			assert.Equal(1000, l.Output.Blen)
		} else {
			assert.Equal(lop.TypeReBlock, l.Type)
			assert.Equal(v.want, l.Inputs[0].Type)
			assert.Equal(-1, l.Inputs[0].Output.Blen)
			assert.True(g.Node(gagg).RequiresReblock)
		}
	}
}

func TestGroupedAggLowering(t *testing.T) {
	assert := assert.New(t)
	g := newTestGraph(func(c *config.Config) {
		c.NumThreads = 4
	})

	x := read(g, 100, 10, -1)
	groups := read(g, 100, 1, -1)
	{
		gagg := pbuiltin(g, OpGroupedAgg,
			Param{Name: "target", Input: x},
			Param{Name: "groups", Input: groups},
			Param{Name: "fn", Input: str(g, "sum")},
		)
		l, err := g.Lower(gagg)
		assert.Nil(err)
		assert.Equal(common.ExecLocal, l.Exec)
		k, ok := l.Flag("k")
		assert.True(ok)
		assert.Equal("4", k)

		again, err := g.Lower(gagg)
		assert.Nil(err)
		assert.True(l == again)
	}
	{
		fn := g.NewBinary(OpPlus, str(g, "s"), str(g, "um"))
		gagg := pbuiltin(g, OpGroupedAgg,
			Param{Name: "target", Input: x},
			Param{Name: "groups", Input: groups},
			Param{Name: "fn", Input: fn},
		)
		_, err := g.Lower(gagg)
		assert.True(errors.Is(err, ErrLiteralRequired))
	}
	{
		gagg := pbuiltin(g, OpGroupedAgg,
			Param{Name: "target", Input: x},
			Param{Name: "groups", Input: groups},
			Param{Name: "fn", Input: str(g, "sum")},
		)
		assert.True(g.IsTransposeSafe(gagg))
		assert.False(g.IsCountFunction(gagg))
	}
}

func TestClone(t *testing.T) {
	assert := assert.New(t)
	g := newTestGraph(nil)

	x := read(g, 100, 10, -1)
	rm := rmEmpty(g, x, "rows")
	c := g.Clone(rm)

	src, dst := g.Node(rm), g.Node(c)
	assert.NotEqual(src.ID, dst.ID)
	assert.Equal(src.Inputs, dst.Inputs)
	assert.True(src.Params.Equal(dst.Params))
	assert.Equal(2, g.Node(x).ParentCount())
	assert.True(g.Compare(rm, c))

	dst.ForcedExec = common.ExecDist
	dst.Rows = 7
	dst.OutputEmptyBlocks = true
	assert.Equal(common.ExecInvalid, src.ForcedExec)
	assert.Equal(stats.Unknown, src.Rows)
	assert.False(src.OutputEmptyBlocks)
	assert.True(src.Params.Equal(dst.Params))
	assert.False(g.Compare(rm, c))
}

func TestRemove(t *testing.T) {
	assert := assert.New(t)
	g := newTestGraph(nil)

	x := read(g, 100, 10, -1)
	b := g.NewBinary(OpMult, x, x)
	assert.Equal(2, g.Node(x).ParentCount())

	u := g.NewUnary(OpAbs, b)
	assert.NotNil(g.Remove(b))

	assert.Nil(g.Remove(u))
	assert.Nil(g.Remove(b))
	assert.Equal(0, g.Node(x).ParentCount())
	assert.True(g.Node(b).Removed)
}

func TestLowerInstructions(t *testing.T) {
	assert := assert.New(t)
	g := newTestGraph(nil)

	x := read(g, 10, 10, -1)
	s := g.NewAggUnary(OpAggSum, DirRow, g.NewBinary(OpMult, x, num(g, 2)))
	w := g.NewTWrite("s", s)
	g.AddRoot(w)

	lops, err := g.LowerAll()
	assert.Nil(err)
	assert.Equal(1, len(lops))
	assert.Equal(lop.DataTransientWrite, lops[0].DataOp)

	agg := g.Node(s).Lowered()
	assert.Equal("uark+", agg.Opcode)
	assert.Equal(int64(10), agg.Output.Rows)
	assert.Equal(int64(1), agg.Output.Cols)

	inst, err := lops[0].Instruction()
	assert.Nil(err)
	assert.Equal("CP°mvvar°"+lop.Operand(agg)+"°s", inst)
}

func TestMemo(t *testing.T) {
	assert := assert.New(t)
	m := NewMemo()
	assert.Equal(0, m.Len())
	m.Put(3, stats.New(1, 2, 1000, 2))
	c, ok := m.Get(3)
	assert.True(ok)
	assert.Equal(int64(2), c.Cols)
	assert.False(m.Has(4))
	snap := m.Snapshot()
	m.Put(4, stats.NewUnknown(1000))
	assert.Equal(1, len(snap))
	assert.Equal(2, m.Len())
}

func TestFallbackWarnings(t *testing.T) {
	assert := assert.New(t)
	core, logs := observer.New(zap.WarnLevel)
	g := NewGraph(config.Default(), zap.New(core))

	// fallbacks logged for id, draining the observed entries
	fallbacks := func(id ID) []string {
		out := []string{}
		for _, e := range logs.TakeAll() {
			m := e.ContextMap()
			if m["hop"] != int64(id) {
				continue
			}
			assert.Equal(g.Node(id).Op.String(), m["op"])
			out = append(out, m["fallback"].(string))
		}
		return out
	}

	{
		y := read(g, 100, 5, 500)
		id := pbuiltin(g, OpGroupedAgg,
			Param{Name: "target", Input: y},
			Param{Name: "groups", Input: read(g, 100, 1, 100)},
			Param{Name: "fn", Input: str(g, "sum")},
			Param{Name: "ngroups", Input: g.NewAggUnary(OpAggMax, DirRowCol, y)},
		)
		logs.TakeAll()
		_, ok := g.InferOutputCharacteristics(id, NewMemo())
		assert.True(ok)
		assert.Contains(fallbacks(id), "one group per input row")
	}
	{
		id := pbuiltin(g, OpGroupedAgg,
			Param{Name: "target", Input: read(g, 100, 5, 500)},
			Param{Name: "groups", Input: read(g, 100, 1, 100)},
			Param{Name: "fn", Input: str(g, "sum")},
			Param{Name: "ngroups", Input: num(g, 7)},
		)
		logs.TakeAll()
		_, ok := g.InferOutputCharacteristics(id, NewMemo())
		assert.True(ok)
		assert.Empty(fallbacks(id))
	}
	{
		id := rmEmpty(g, read(g, 100, 10, 1000), "rows")
		logs.TakeAll()
		_, ok := g.InferOutputCharacteristics(id, NewMemo())
		assert.True(ok)
		assert.Contains(fallbacks(id), "output equals input")
	}
	{
		x := read(g, 10, 10, -1)
		logs.TakeAll()
		g.ComputeMemEstimate(x, NewMemo())
		assert.Equal([]string{"dense output"}, fallbacks(x))
	}
	{
		x := read(g, -1, -1, -1)
		logs.TakeAll()
		g.ComputeMemEstimate(x, NewMemo())
		assert.Equal([]string{"worst case memory"}, fallbacks(x))
	}
	{
		x := read(g, 10, 10, 100)
		logs.TakeAll()
		g.ComputeMemEstimate(x, NewMemo())
		assert.Empty(fallbacks(x))
	}
}

func TestTargetVectorInput(t *testing.T) {
	assert := assert.New(t)
	g := newTestGraph(nil)

	assert.True(g.IsTargetVectorInput(rmEmpty(g, read(g, 100, 1, -1), "rows")))
	assert.False(g.IsTargetVectorInput(rmEmpty(g, read(g, 100, 10, -1), "rows")))
	assert.False(g.IsTargetVectorInput(rmEmpty(g, read(g, -1, -1, -1), "rows")))
	assert.False(g.IsTargetVectorInput(read(g, 100, 1, -1)))
}

func TestWriteLiteralFile(t *testing.T) {
	assert := assert.New(t)
	g := newTestGraph(nil)
	x := read(g, 10, 10, -1)

	{
		file := g.NewBinary(OpPlus, str(g, "y"), str(g, ".csv"))
		w, err := g.NewWrite(x, []Param{{Name: "file", Input: file}})
		assert.Nil(err)
		_, err = g.Lower(w)
		assert.True(errors.Is(err, ErrLiteralRequired))
		assert.Contains(err.Error(), "file")
	}
	{
		w, err := g.NewWrite(x, []Param{{Name: "file", Input: str(g, "y.csv")}})
		assert.Nil(err)
		_, err = g.Lower(w)
		assert.Nil(err)
	}
}
