package hop

// Operator families. The lowering table is keyed by the concrete Op, the
// family only groups ops sharing size propagation and instruction layout.
type Kind int

const (
	KindLiteral Kind = iota
	KindData
	KindBinary
	KindUnary
	KindAggUnary
	KindReorg
	KindParamBuiltin
)

type Op int

const (
	OpLiteral Op = iota

	// data
	OpRead
	OpWrite  // persistent write
	OpTWrite // transient write, ie a live variable handed to the next block

	// binary
	OpPlus
	OpMinus
	OpMult
	OpDiv
	OpEqual
	OpNotEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual

	// unary
	OpNot
	OpAbs
	OpSqrt
	OpExp
	OpCumsum

	// aggregate unary, direction is kept on the node
	OpAggSum
	OpAggMax
	OpAggMin
	OpAggMean

	// reorg
	OpTranspose

	// parameterized builtins
	OpGroupedAgg
	OpRmEmpty
	OpRExpand
	OpReplace
	OpLowerTri
	OpUpperTri
	OpCDF
	OpInvCDF
	OpTransformApply
	OpTransformDecode
	OpTransformColMap
	OpTransformMeta
	OpToString
	OpParamServ
	OpList

	opSentinel
)

type Direction int

const (
	DirRowCol Direction = iota
	DirRow
	DirCol
)

func (self Direction) String() string {
	switch self {
	case DirRow:
		return "Row"
	case DirCol:
		return "Col"
	default:
		return "RowCol"
	}
}

type opInfo struct {
	kind   Kind
	name   string // name used in explain output and errors
	opcode string // opcode of the emitted instruction
}

var opTable = [opSentinel]opInfo{
	OpLiteral: {KindLiteral, "lit", ""},

	OpRead:   {KindData, "pread", "createvar"},
	OpWrite:  {KindData, "pwrite", "write"},
	OpTWrite: {KindData, "twrite", "mvvar"},

	OpPlus:         {KindBinary, "b(+)", "+"},
	OpMinus:        {KindBinary, "b(-)", "-"},
	OpMult:         {KindBinary, "b(*)", "*"},
	OpDiv:          {KindBinary, "b(/)", "/"},
	OpEqual:        {KindBinary, "b(==)", "=="},
	OpNotEqual:     {KindBinary, "b(!=)", "!="},
	OpLess:         {KindBinary, "b(<)", "<"},
	OpLessEqual:    {KindBinary, "b(<=)", "<="},
	OpGreater:      {KindBinary, "b(>)", ">"},
	OpGreaterEqual: {KindBinary, "b(>=)", ">="},

	OpNot:    {KindUnary, "u(!)", "!"},
	OpAbs:    {KindUnary, "u(abs)", "abs"},
	OpSqrt:   {KindUnary, "u(sqrt)", "sqrt"},
	OpExp:    {KindUnary, "u(exp)", "exp"},
	OpCumsum: {KindUnary, "u(cumsum)", "ucumk+"},

	OpAggSum:  {KindAggUnary, "ua(sum)", "k+"},
	OpAggMax:  {KindAggUnary, "ua(max)", "max"},
	OpAggMin:  {KindAggUnary, "ua(min)", "min"},
	OpAggMean: {KindAggUnary, "ua(mean)", "mean"},

	OpTranspose: {KindReorg, "r(t)", "r'"},

	OpGroupedAgg:      {KindParamBuiltin, "groupedagg", "groupedagg"},
	OpRmEmpty:         {KindParamBuiltin, "rmempty", "rmempty"},
	OpRExpand:         {KindParamBuiltin, "rexpand", "rexpand"},
	OpReplace:         {KindParamBuiltin, "replace", "replace"},
	OpLowerTri:        {KindParamBuiltin, "lower.tri", "lowertri"},
	OpUpperTri:        {KindParamBuiltin, "upper.tri", "uppertri"},
	OpCDF:             {KindParamBuiltin, "cdf", "cdf"},
	OpInvCDF:          {KindParamBuiltin, "invcdf", "invcdf"},
	OpTransformApply:  {KindParamBuiltin, "transformapply", "transformapply"},
	OpTransformDecode: {KindParamBuiltin, "transformdecode", "transformdecode"},
	OpTransformColMap: {KindParamBuiltin, "transformcolmap", "transformcolmap"},
	OpTransformMeta:   {KindParamBuiltin, "transformmeta", "transformmeta"},
	OpToString:        {KindParamBuiltin, "toString", "toString"},
	OpParamServ:       {KindParamBuiltin, "paramserv", "paramserv"},
	OpList:            {KindParamBuiltin, "list", "list"},
}

func (self Op) Kind() Kind {
	if self < 0 || self >= opSentinel {
		return KindLiteral
	}
	return opTable[self].kind
}

func (self Op) String() string {
	if self < 0 || self >= opSentinel {
		return "unknown"
	}
	return opTable[self].name
}

func (self Op) Opcode() string {
	if self < 0 || self >= opSentinel {
		return ""
	}
	return opTable[self].opcode
}

func (self Op) IsParamBuiltin() bool { return self.Kind() == KindParamBuiltin }

// AlwaysLocal is the closed set of operators that need centralized in-process
// state, eg a shared encoding dictionary or a parameter server loop.
func (self Op) AlwaysLocal() bool {
	switch self {
	case OpToString, OpList, OpCDF, OpInvCDF, OpParamServ,
		OpTransformColMap, OpTransformMeta,
		OpLiteral, OpTWrite:
		return true
	default:
		return false
	}
}

// aggregate opcode of the given direction, ie uak+, uark+, uack+
func (self Op) aggOpcode(dir Direction) string {
	code := self.Opcode()
	var prefix string
	switch dir {
	case DirRow:
		prefix = "uar"
	case DirCol:
		prefix = "uac"
	default:
		prefix = "ua"
	}
	return prefix + code
}

// the distributed cumsum aggregates partial block sums
func cumsumOpcode(dist bool) string {
	if dist {
		return "ucumack+"
	}
	return "ucumk+"
}

func ops(from, to Op) []Op {
	out := []Op{}
	for x := from; x <= to; x++ {
		out = append(out, x)
	}
	return out
}
