package cg

import (
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/dianpeng/dmlc/stats"
)

// A tiny writer used to dump a program as a plain text listing, one
// instruction per line with '#' comment sections. The listing is what the
// interpreter reads, comments are skipped by it.

type listingWriter struct {
	indent int
	buf    *strings.Builder
}

func newListingWriter(indent int) *listingWriter {
	return &listingWriter{
		indent: indent,
		buf:    &strings.Builder{},
	}
}

func (self *listingWriter) pad() string {
	return strings.Repeat(" ", self.indent)
}

func (self *listingWriter) Section(title string) {
	self.Line("# -----------------------------------------------------------------")
	self.Line("# %s", title)
	self.Line("# -----------------------------------------------------------------")
}

func (self *listingWriter) Line(format string, args ...interface{}) {
	self.buf.WriteString(self.pad())
	self.buf.WriteString(fmt.Sprintf(format, args...))
	self.buf.WriteString("\n")
}

func (self *listingWriter) Flush() string {
	return self.buf.String()
}

const outputTemplate = `# {{.Name}} ({{.Format}}) {{.Stats}}
{{- range .Shapes}}
#   {{.Slot}}: {{.Shape.Rows}}x{{.Shape.Cols}} nnz={{.Shape.NNZ}}{{if .Shape.Sparse}} sparse{{end}}
{{- end}}`

var outputTmpl = template.Must(template.New("output").Parse(outputTemplate))

var shapeSlotName = [...]string{
	stats.ShapeFull:          "full",
	stats.ShapePartialCol:    "partial-col",
	stats.ShapePartialRow:    "partial-row",
	stats.ShapePartialRowCol: "partial-row-col",
}

type shapeSlot struct {
	Slot  string
	Shape stats.BlockShape
}

func renderOutput(o *Output) (string, error) {
	slots := []shapeSlot{}
	for idx, s := range o.Shapes {
		if s.Present && idx < len(shapeSlotName) {
			slots = append(slots, shapeSlot{Slot: shapeSlotName[idx], Shape: s})
		}
	}

	buf := &strings.Builder{}
	if err := outputTmpl.Execute(buf, map[string]interface{}{
		"Name":   o.Name,
		"Format": o.Format,
		"Stats":  o.Characteristics().String(),
		"Shapes": slots,
	}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Text returns the bare instruction stream, one record per line.
func (self *Program) Text() string {
	w := newListingWriter(0)
	for _, inst := range self.Instructions {
		w.Line("%s", inst.Text)
	}
	return w.Flush()
}

// Render writes the annotated listing of the program.
func (self *Program) Render(out io.Writer) error {
	w := newListingWriter(0)

	w.Section("instructions")
	for _, inst := range self.Instructions {
		w.Line("%s", inst.Text)
	}

	if len(self.Outputs) > 0 {
		w.Section("outputs")
		for idx := range self.Outputs {
			x, err := renderOutput(&self.Outputs[idx])
			if err != nil {
				return err
			}
			w.Line("%s", x)
		}
	}

	if self.RequiresRecompile {
		w.Line("# requires recompile")
	}

	_, err := io.WriteString(out, w.Flush())
	return err
}
