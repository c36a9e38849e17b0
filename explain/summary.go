package explain

import (
	"fmt"
	"io"
	"strings"

	"github.com/benhoyt/goawk/interp"
	"github.com/benhoyt/goawk/parser"
	"github.com/cockroachdb/errors"
	"github.com/dianpeng/dmlc/common"
	"github.com/spf13/cast"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// summaryAWK counts the records of a listing per backend and per backend and
// opcode. FS must be the operand delimiter. The END block prints one tab
// separated record per counter, in no particular order.
const summaryAWK = `
/^#/ { next }

NF > 1 {
  exec_count[$1]++;
  op_count[$1 SUBSEP $2]++;
  total++;
}

END {
  for (k in exec_count) {
    printf "exec\t%s\t%d\n", k, exec_count[k];
  }
  for (k in op_count) {
    split(k, parts, SUBSEP);
    printf "op\t%s\t%s\t%d\n", parts[1], parts[2], op_count[k];
  }
  printf "total\t%d\n", total + 0;
}
`

type OpcodeCount struct {
	Exec   string
	Opcode string
	Count  int
}

type Summary struct {
	Total   int
	PerExec map[string]int
	// sorted by backend then opcode
	PerOpcode []OpcodeCount
}

var summaryProgram *parser.Program

func init() {
	p, err := parser.ParseProgram([]byte(summaryAWK), nil)
	if err != nil {
		panic(fmt.Sprintf("summary program: %s", err))
	}
	summaryProgram = p
}

// Summarize counts the instructions of a listing, either the bare
// instruction text or the annotated rendering. Comment lines are skipped.
func Summarize(listing io.Reader) (*Summary, error) {
	out := &strings.Builder{}
	_, err := interp.ExecProgram(summaryProgram, &interp.Config{
		Stdin:  listing,
		Output: out,
		Vars:   []string{"FS", common.OperandDelimiter},
	})
	if err != nil {
		return nil, errors.Wrap(err, "summarize")
	}
	return parseSummary(out.String())
}

func parseSummary(x string) (*Summary, error) {
	s := &Summary{
		PerExec: make(map[string]int),
	}
	ops := make(map[string]OpcodeCount)

	for _, line := range strings.Split(x, "\n") {
		if line == "" {
			continue
		}
		f := strings.Split(line, "\t")
		var err error

		switch {
		case f[0] == "total" && len(f) == 2:
			s.Total, err = cast.ToIntE(f[1])
			break
		case f[0] == "exec" && len(f) == 3:
			s.PerExec[f[1]], err = cast.ToIntE(f[2])
			break
		case f[0] == "op" && len(f) == 4:
			c := OpcodeCount{Exec: f[1], Opcode: f[2]}
			c.Count, err = cast.ToIntE(f[3])
			ops[f[1]+common.OperandDelimiter+f[2]] = c
			break
		default:
			return nil, errors.AssertionFailedf("malformed summary record %q", line)
		}

		if err != nil {
			return nil, errors.Wrapf(err, "summary record %q", line)
		}
	}

	keys := maps.Keys(ops)
	slices.Sort(keys)
	for _, k := range keys {
		s.PerOpcode = append(s.PerOpcode, ops[k])
	}
	return s, nil
}

// Print writes the summary as a table.
func (self *Summary) Print(w io.Writer) {
	t := newTable(w, []string{"exec", "opcode", "count"})
	for _, c := range self.PerOpcode {
		t.Append([]string{ExecTag(backendOf(c.Exec)), c.Opcode, fmt.Sprintf("%d", c.Count)})
	}
	execs := maps.Keys(self.PerExec)
	slices.Sort(execs)
	for _, e := range execs {
		t.Append([]string{ExecTag(backendOf(e)), "*", fmt.Sprintf("%d", self.PerExec[e])})
	}
	t.SetFooter([]string{"", "total", fmt.Sprintf("%d", self.Total)})
	t.Render()
}
