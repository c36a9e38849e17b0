package explain

import (
	"fmt"
	"io"
	"strings"

	"github.com/dianpeng/dmlc/cg"
	"github.com/dianpeng/dmlc/common"
	"github.com/dianpeng/dmlc/hop"
	"github.com/dianpeng/dmlc/lop"
	"github.com/dianpeng/dmlc/stats"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/kr/pretty"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// ExecTag renders a backend tag, colorized unless color.NoColor is set.
func ExecTag(et common.ExecType) string {
	switch et {
	case common.ExecLocal:
		return color.GreenString(et.String())
	case common.ExecDist:
		return color.YellowString(et.String())
	default:
		return "-"
	}
}

func memString(n *hop.Node) string {
	if !n.Estimated() {
		return "-"
	}
	if n.MemEstimate >= stats.DefaultSize {
		return "inf"
	}
	return humanize.IBytes(uint64(n.MemEstimate))
}

func idList[T ~int](ids []T) string {
	out := make([]string, 0, len(ids))
	for _, x := range ids {
		out = append(out, fmt.Sprintf("%d", x))
	}
	return strings.Join(out, ",")
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetAutoFormatHeaders(false)
	t.SetAutoWrapText(false)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	t.SetHeader(header)
	return t
}

func nodeFlags(n *hop.Node) string {
	flags := []string{}
	if n.ForcedExec.Valid() {
		flags = append(flags, "forced")
	}
	if n.RequiresRecompile {
		flags = append(flags, "recompile")
	}
	if n.RequiresReblock {
		flags = append(flags, "reblock")
	}
	if n.RmEmptyBroadcast {
		flags = append(flags, "broadcast")
	}
	return strings.Join(flags, ",")
}

// Hops prints the live nodes of g in id order.
func Hops(w io.Writer, g *hop.Graph) {
	t := newTable(w, []string{"id", "op", "name", "inputs", "stats", "mem", "exec", "flags"})
	for _, n := range g.Nodes() {
		if n.Removed {
			continue
		}
		t.Append([]string{
			fmt.Sprintf("%d", n.ID),
			n.Op.String(),
			n.Name,
			idList(n.Inputs),
			n.Characteristics().String(),
			memString(n),
			ExecTag(n.Exec),
			nodeFlags(n),
		})
	}
	t.Render()
}

func lopInputs(l *lop.Lop) string {
	ids := make([]int, 0, len(l.Inputs))
	for _, x := range l.Inputs {
		ids = append(ids, x.ID)
	}
	return idList(ids)
}

// Lops prints the physical operators of g in creation order.
func Lops(w io.Writer, g *hop.Graph) {
	t := newTable(w, []string{"id", "type", "opcode", "exec", "inputs", "output"})
	for _, l := range g.Lops.Nodes() {
		output := ""
		if l.DataType.IsBlocked() {
			output = l.Output.Characteristics().String()
		} else {
			output = l.DataType.String()
		}
		t.Append([]string{
			fmt.Sprintf("%d", l.ID),
			l.Type.String(),
			l.Opcode,
			ExecTag(l.Exec),
			lopInputs(l),
			output,
		})
	}
	t.Render()
}

// Program prints the instruction stream of p, one record per row with its
// operands split out.
func Program(w io.Writer, p *cg.Program) {
	t := newTable(w, []string{"lop", "exec", "opcode", "operands"})
	for _, inst := range p.Instructions {
		parts := strings.Split(inst.Text, common.OperandDelimiter)
		operands := ""
		if len(parts) > 2 {
			operands = strings.Join(parts[2:], " ")
		}
		opcode := ""
		if len(parts) > 1 {
			opcode = parts[1]
		}
		t.Append([]string{
			fmt.Sprintf("%d", inst.Lop),
			ExecTag(backendOf(inst.Exec)),
			opcode,
			operands,
		})
	}
	t.Render()
}

func backendOf(x string) common.ExecType {
	et, _ := common.ParseExecType(x)
	return et
}

// DumpMemo prints the speculative statistics of the memo sorted by node id.
func DumpMemo(w io.Writer, memo *hop.Memo) {
	snapshot := memo.Snapshot()
	ids := maps.Keys(snapshot)
	slices.Sort(ids)
	for _, id := range ids {
		fmt.Fprintf(w, "%d: %# v\n", id, pretty.Formatter(snapshot[id]))
	}
}
