package plan

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/dianpeng/dmlc/common"
	"github.com/dianpeng/dmlc/hop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapLoader map[string]string

func (self mapLoader) Load(path string) (string, error) {
	if s, ok := self[path]; ok {
		return s, nil
	}
	return "", errors.Newf("no such script %q", path)
}

func planOf(t *testing.T, src string, args map[string]string, loader Loader) *Plan {
	g := hop.NewGraph(nil, nil)
	p, err := PlanScript(g, "main.dml", src, args, loader)
	require.NoError(t, err)
	return p
}

func planErr(src string, args map[string]string, loader Loader) error {
	g := hop.NewGraph(nil, nil)
	_, err := PlanScript(g, "main.dml", src, args, loader)
	return err
}

func TestPlanScript(t *testing.T) {
	assert := assert.New(t)
	p := planOf(t, `
X = read("x.csv", rows=1000, cols=10, nnz=5000, format="csv")
G = read("g.csv", rows=1000, cols=1)
A = aggregate(target=X, groups=G, fn="sum", ngroups=7)
@dist Y = removeEmpty(target=X, margin="rows")
write(Y, "y.bin", format="binary")
`, nil, nil)
	g := p.Graph

	assert.Equal([]string{"X", "G", "A", "Y"}, p.LiveOut)
	assert.Len(g.Roots, 5)

	w := g.Node(g.Roots[0])
	assert.Equal(hop.OpWrite, w.Op)
	assert.Equal([]string{"target", "file", "format"}, w.Params.Names())

	for idx, name := range p.LiveOut {
		tw := g.Node(g.Roots[idx+1])
		assert.Equal(hop.OpTWrite, tw.Op)
		assert.Equal(name, tw.Name)
		assert.Equal(p.Vars[name], tw.Inputs[0])
	}

	x := g.Node(p.Vars["X"])
	assert.Equal(hop.OpRead, x.Op)
	assert.Equal("x.csv", x.Name)
	assert.Equal(int64(1000), x.Rows)
	assert.Equal(int64(10), x.Cols)
	assert.Equal(int64(5000), x.NNZ)

	a := g.Node(p.Vars["A"])
	assert.Equal(hop.OpGroupedAgg, a.Op)
	assert.Equal(int64(7), a.Rows)
	assert.Equal(int64(10), a.Cols)
	assert.Equal(common.ExecInvalid, a.ForcedExec)

	y := g.Node(p.Vars["Y"])
	assert.Equal(hop.OpRmEmpty, y.Op)
	assert.Equal(common.ExecDist, y.ForcedExec)
	assert.Equal(common.DataMatrix, y.DataType)

	// literal parameters are never pinned
	margin, ok := g.ParamInput(y, "margin")
	assert.True(ok)
	assert.True(margin.IsLiteral())
	assert.Equal(common.ExecInvalid, margin.ForcedExec)
}

func TestParamOrder(t *testing.T) {
	assert := assert.New(t)
	p := planOf(t, `
X = read("x.csv")
G = read("g.csv")
A = aggregate(fn="sum", ngroups=3, groups=G, target=X)
`, nil, nil)
	a := p.Graph.Node(p.Vars["A"])
	assert.Equal([]string{"target", "groups", "fn", "ngroups"}, a.Params.Names())
	assert.Equal(p.Vars["X"], a.Inputs[0])
	assert.Equal(p.Vars["G"], a.Inputs[1])
}

func TestHintOnExistingBinding(t *testing.T) {
	assert := assert.New(t)
	p := planOf(t, `
X = read("x.csv")
@dist Y = X
@local Z = t(X)
`, nil, nil)
	assert.Equal(p.Vars["X"], p.Vars["Y"])
	assert.Equal(common.ExecInvalid, p.Graph.Node(p.Vars["X"]).ForcedExec)
	assert.Equal(common.ExecLocal, p.Graph.Node(p.Vars["Z"]).ForcedExec)
}

func TestRebinding(t *testing.T) {
	assert := assert.New(t)
	p := planOf(t, `
X = read("x.csv")
Y = X + 1
X = Y * 2
`, nil, nil)
	assert.Equal([]string{"X", "Y"}, p.LiveOut)
	x := p.Graph.Node(p.Vars["X"])
	assert.Equal(hop.OpMult, x.Op)
	assert.Equal(p.Vars["Y"], x.Inputs[0])
}

func TestBuiltinMapping(t *testing.T) {
	assert := assert.New(t)
	p := planOf(t, `
X = read("x.csv", rows=10, cols=5)
a = sum(X)
r = rowSums(X)
c = colMaxs(X)
m = rowMeans(X)
T = t(X)
C = cumsum(X)
L = lower.tri(target=X, diag=FALSE)
s = toString(target=X)
`, nil, nil)
	g := p.Graph

	a := g.Node(p.Vars["a"])
	assert.Equal(hop.OpAggSum, a.Op)
	assert.Equal(hop.DirRowCol, a.Dir)
	assert.True(a.IsScalar())

	r := g.Node(p.Vars["r"])
	assert.Equal(hop.OpAggSum, r.Op)
	assert.Equal(hop.DirRow, r.Dir)
	assert.Equal(int64(10), r.Rows)
	assert.Equal(int64(1), r.Cols)

	c := g.Node(p.Vars["c"])
	assert.Equal(hop.OpAggMax, c.Op)
	assert.Equal(hop.DirCol, c.Dir)

	assert.Equal(hop.OpAggMean, g.Node(p.Vars["m"]).Op)

	tr := g.Node(p.Vars["T"])
	assert.Equal(hop.OpTranspose, tr.Op)
	assert.Equal(int64(5), tr.Rows)
	assert.Equal(int64(10), tr.Cols)

	assert.Equal(hop.OpCumsum, g.Node(p.Vars["C"]).Op)
	assert.Equal(hop.OpLowerTri, g.Node(p.Vars["L"]).Op)

	s := g.Node(p.Vars["s"])
	assert.Equal(hop.OpToString, s.Op)
	assert.Equal(common.DataScalar, s.DataType)
	assert.Equal(common.ValueString, s.ValueType)
}

func TestUnary(t *testing.T) {
	assert := assert.New(t)
	p := planOf(t, `
X = read("x.csv")
n = -1
f = --2.5
Y = -X
b = !TRUE
`, nil, nil)
	g := p.Graph

	n := g.Node(p.Vars["n"])
	assert.True(n.IsLiteral())
	assert.Equal(int64(-1), n.Literal.Value)

	f := g.Node(p.Vars["f"])
	assert.True(f.IsLiteral())
	assert.Equal(2.5, f.Literal.Value)

	y := g.Node(p.Vars["Y"])
	assert.Equal(hop.OpMinus, y.Op)
	assert.True(g.Node(y.Inputs[0]).Literal.IsZero())
	assert.Equal(p.Vars["X"], y.Inputs[1])

	assert.Equal(hop.OpNot, g.Node(p.Vars["b"]).Op)
}

func TestCommandLineArgs(t *testing.T) {
	assert := assert.New(t)
	p := planOf(t, `
X = read($in, rows=$rows, cols=10)
G = read("g.csv", rows=$rows, cols=1)
A = aggregate(target=X, groups=G, fn="sum", ngroups=$ngroups)
n = $ngroups
`, map[string]string{"in": "x.csv", "rows": "100", "ngroups": "7"}, nil)
	g := p.Graph

	x := g.Node(p.Vars["X"])
	assert.Equal("x.csv", x.Name)
	assert.Equal(int64(100), x.Rows)
	assert.Equal(int64(7), g.Node(p.Vars["A"]).Rows)
	assert.Equal(int64(7), g.Node(p.Vars["n"]).Literal.Value)

	{
		assert.Equal(hop.IntLiteral(10), ArgLiteral("10"))
		assert.Equal(hop.RealLiteral(1.5), ArgLiteral("1.5"))
		assert.Equal(hop.BoolLiteral(true), ArgLiteral("TRUE"))
		assert.Equal(hop.StringLiteral("abc"), ArgLiteral(`"abc"`))
		assert.Equal(hop.StringLiteral("x.csv"), ArgLiteral("x.csv"))
	}
}

func TestReadDataType(t *testing.T) {
	assert := assert.New(t)
	p := planOf(t, `
F = read("f.csv", data_type="frame")
I = read("i.csv", value_type="int")
`, nil, nil)
	f := p.Graph.Node(p.Vars["F"])
	assert.Equal(common.DataFrame, f.DataType)
	assert.Equal(common.ValueString, f.ValueType)
	assert.False(f.Params.Has("data_type"))

	i := p.Graph.Node(p.Vars["I"])
	assert.Equal(common.DataMatrix, i.DataType)
	assert.Equal(common.ValueInt64, i.ValueType)

	err := planErr(`F = read("f.csv", data_type="scalar")`, nil, nil)
	assert.True(errors.Is(err, ErrInvalidParameter))
}

func TestList(t *testing.T) {
	assert := assert.New(t)
	p := planOf(t, `L = list(1, b=2)`, nil, nil)
	l := p.Graph.Node(p.Vars["L"])
	assert.Equal(hop.OpList, l.Op)
	assert.Equal([]string{"1", "b"}, l.Params.Names())

	err := planErr(`L = list(a=1, a=2)`, nil, nil)
	assert.True(errors.Is(err, ErrInvalidParameter))
}

func TestValidationError(t *testing.T) {
	assert := assert.New(t)
	const x = "X = read(\"x.csv\")\n"

	for _, tc := range []struct {
		src    string
		marker error
	}{
		{"Y = X", ErrUndefinedVariable},
		{"Y = foo(1)", ErrUndefinedFunction},
		{"Y = lib::X", ErrUnknownNamespace},
		{"Y = lib::f(1)", ErrUnknownNamespace},
		{"$n = 1", ErrParamAssignment},
		{"Y = $n", ErrMissingValue},
		{x + "Y = removeEmpty(target=X, margin=\"rows\", foo=1)", ErrInvalidParameter},
		{x + "Y = removeEmpty(target=X)", ErrInvalidParameter},
		{x + "Y = removeEmpty(target=X, target=X, margin=\"rows\")", ErrInvalidParameter},
		{x + "Y = removeEmpty(X, margin=\"rows\")", ErrInvalidParameter},
		{x + "Y = sum(X, X)", ErrInvalidParameter},
		{x + "Y = read(\"a\", \"b\")", ErrInvalidParameter},
		{x + "write(X)", ErrInvalidParameter},
		{x + "sum(X)", ErrInvalidStatement},
		{x + "Y = write(X, \"y\")", ErrInvalidStatement},
		{"source(\"a.dml\") as a", ErrImportNotSupported},
	} {
		err := planErr(tc.src, nil, nil)
		assert.Error(err, tc.src)
		assert.True(errors.Is(err, tc.marker), tc.src)
		assert.True(errors.Is(err, ErrValidation), tc.src)
	}

	{
		err := planErr("X = 1\nY = Z", nil, nil)
		assert.Contains(err.Error(), "main.dml: around position(2: 5)")
	}

	{
		err := planErr("Y = $b + $a\nZ = $a", nil, nil)
		assert.Contains(err.Error(), "$a, $b")
	}
}

func TestSource(t *testing.T) {
	assert := assert.New(t)
	loader := mapLoader{
		"lib.dml":   `B = read("b.csv", rows=10, cols=10)`,
		"other.dml": `C = 1`,
	}

	{
		p := planOf(t, `
source("lib.dml") as lib
W = lib::B + 1
`, nil, loader)
		g := p.Graph
		assert.Equal([]string{"W"}, p.LiveOut)
		assert.Len(g.Roots, 1)

		w := g.Node(p.Vars["W"])
		assert.Equal(hop.OpRead, g.Node(w.Inputs[0]).Op)
		assert.Equal(int64(10), w.Rows)
	}

	{
		// same namespace and path twice is fine
		p := planOf(t, `
source("lib.dml") as lib
source("lib.dml") as lib
W = lib::B
`, nil, loader)
		assert.Equal(hop.OpRead, p.Graph.Node(p.Vars["W"]).Op)
	}

	{
		err := planErr(`
source("lib.dml") as lib
source("other.dml") as lib
`, nil, loader)
		assert.True(errors.Is(err, ErrNamespaceConflict))
	}

	{
		err := planErr(`
source("lib.dml") as lib
W = lib::Nope
`, nil, loader)
		assert.True(errors.Is(err, ErrUndefinedVariable))
	}

	{
		err := planErr(`source("nope.dml") as x`, nil, loader)
		assert.Error(err)
		assert.Contains(err.Error(), "no such script")
	}
}

func TestSharedImport(t *testing.T) {
	assert := assert.New(t)
	loader := mapLoader{
		"a.dml": "source(\"c.dml\") as c\nA = c::C",
		"b.dml": "source(\"c.dml\") as c\nB = c::C",
		"c.dml": "C = read(\"c.csv\")",
	}
	p := planOf(t, `
source("a.dml") as a
source("b.dml") as b
X = a::A + b::B
`, nil, loader)

	x := p.Graph.Node(p.Vars["X"])
	assert.Equal(x.Inputs[0], x.Inputs[1])

	reads := 0
	for _, n := range p.Graph.Nodes() {
		if n.Op == hop.OpRead {
			reads++
		}
	}
	assert.Equal(1, reads)
}

func TestRecursiveImport(t *testing.T) {
	assert := assert.New(t)
	loader := mapLoader{
		"a.dml":    "source(\"b.dml\") as b",
		"b.dml":    "source(\"a.dml\") as a",
		"self.dml": "source(\"self.dml\") as s",
	}
	{
		err := planErr(`source("a.dml") as a`, nil, loader)
		assert.True(errors.Is(err, ErrRecursiveImport))
	}
	{
		err := planErr(`source("self.dml") as s`, nil, loader)
		assert.True(errors.Is(err, ErrRecursiveImport))
	}
	{
		g := hop.NewGraph(nil, nil)
		_, err := PlanScript(g, "a.dml", `source("b.dml") as b`, nil, loader)
		assert.True(errors.Is(err, ErrRecursiveImport))
	}
}
