package cg

import (
	"github.com/cockroachdb/errors"
	"github.com/dianpeng/dmlc/hop"
	"github.com/dianpeng/dmlc/lop"
	"github.com/dianpeng/dmlc/stats"
)

// Program is the emitted form of one compilation unit, the only artifact
// handed to the interpreter. It is stable for a given graph and config.
type Program struct {
	Instructions      []Instruction `yaml:"instructions"`
	Outputs           []Output      `yaml:"outputs"`
	RequiresRecompile bool          `yaml:"requires_recompile"`
}

type Instruction struct {
	Lop  int    `yaml:"lop"`
	Exec string `yaml:"exec"`
	Text string `yaml:"text"`
}

// Output describes one persistent write. Shapes are the reusable block
// buffers indexed by stats.ShapeFull and friends.
type Output struct {
	Name   string             `yaml:"name"`
	Format string             `yaml:"format"`
	Rows   int64              `yaml:"rows"`
	Cols   int64              `yaml:"cols"`
	Blen   int                `yaml:"blen"`
	NNZ    int64              `yaml:"nnz"`
	Shapes []stats.BlockShape `yaml:"shapes"`
}

func (self *Output) Characteristics() stats.Characteristics {
	return stats.New(self.Rows, self.Cols, self.Blen, self.NNZ)
}

// Generate lowers every root of g and emits the instruction stream. Each root
// is emitted in post order, shared physical operators only once.
func Generate(g *hop.Graph) (*Program, error) {
	gen := &programGen{
		graph:   g,
		visited: make(map[int]bool),
		prog:    &Program{},
	}
	if err := gen.gen(); err != nil {
		return nil, err
	}
	return gen.prog, nil
}

type programGen struct {
	graph   *hop.Graph
	visited map[int]bool
	prog    *Program
}

func (self *programGen) gen() error {
	roots, err := self.graph.LowerAll()
	if err != nil {
		return err
	}

	for _, r := range roots {
		if err := self.emit(r); err != nil {
			return err
		}
	}

	for _, id := range self.graph.Roots {
		if err := self.genOutput(self.graph.Node(id)); err != nil {
			return err
		}
	}

	for _, n := range self.graph.Nodes() {
		if !n.Removed && n.RequiresRecompile {
			self.prog.RequiresRecompile = true
			break
		}
	}
	return nil
}

func (self *programGen) emit(l *lop.Lop) error {
	if self.visited[l.ID] {
		return nil
	}
	self.visited[l.ID] = true

	for _, in := range l.Inputs {
		if err := self.emit(in); err != nil {
			return err
		}
	}

	text, err := l.Instruction()
	if err != nil {
		return errors.Wrapf(err, "emit %s", l)
	}
	if text == "" {
		return nil
	}
	self.prog.Instructions = append(self.prog.Instructions, Instruction{
		Lop:  l.ID,
		Exec: l.Exec.String(),
		Text: text,
	})
	return nil
}

func (self *programGen) genOutput(n *hop.Node) error {
	if n.Op != hop.OpWrite {
		return nil
	}
	file, ok := self.graph.ParamInput(n, "file")
	if !ok || !file.IsLiteral() {
		return errors.AssertionFailedf("write hop %d has no literal file", n.ID)
	}

	out := Output{
		Name:   file.Literal.String(),
		Format: "text",
		Rows:   n.Rows,
		Cols:   n.Cols,
		Blen:   n.Blen,
		NNZ:    n.NNZ,
	}
	if f, ok := self.graph.ParamInput(n, "format"); ok && f.IsLiteral() {
		out.Format = f.Literal.String()
	}
	if n.DataType.IsBlocked() {
		shapes := stats.NewReuseShapes(n.Characteristics())
		out.Shapes = shapes[:]
	}
	self.prog.Outputs = append(self.prog.Outputs, out)
	return nil
}

// ReuseShapes returns the shapes of an output in their fixed slots.
func (self *Output) ReuseShapes() stats.ReuseShapes {
	var out stats.ReuseShapes
	copy(out[:], self.Shapes)
	return out
}
