package plan

import (
	"github.com/dianpeng/dmlc/common"
	"github.com/dianpeng/dmlc/hop"
)

const (
	builtinRead = iota
	builtinWrite
	builtinTranspose
	builtinUnary
	builtinAgg
	builtinParam
	builtinList
)

// builtin describes how a call is mapped onto the operator graph. Params
// lists the accepted argument names in the order they are bound to the
// operator inputs, regardless of the order used at the call site.
type builtin struct {
	kind     int
	op       hop.Op
	dir      hop.Direction
	dt       common.DataType // DataUnknown inherits the data type of target
	vt       common.ValueType
	params   []string
	required []string
}

func paramBuiltin(
	op hop.Op,
	dt common.DataType,
	vt common.ValueType,
	params []string,
	required ...string,
) *builtin {
	return &builtin{
		kind:     builtinParam,
		op:       op,
		dt:       dt,
		vt:       vt,
		params:   params,
		required: required,
	}
}

func unaryBuiltin(op hop.Op) *builtin {
	return &builtin{kind: builtinUnary, op: op}
}

func aggBuiltin(op hop.Op, dir hop.Direction) *builtin {
	return &builtin{kind: builtinAgg, op: op, dir: dir}
}

var cdfParams = []string{
	"target", "dist", "mean", "sd", "df", "df1", "df2", "lambda", "lower.tail",
}

var builtinTable = map[string]*builtin{
	"read": {
		kind:     builtinRead,
		op:       hop.OpRead,
		params:   []string{"file", "format", "rows", "cols", "nnz", "data_type", "value_type"},
		required: []string{"file"},
	},
	"write": {
		kind:   builtinWrite,
		op:     hop.OpWrite,
		params: []string{"file", "format"},
	},

	"t":      {kind: builtinTranspose, op: hop.OpTranspose},
	"cumsum": unaryBuiltin(hop.OpCumsum),
	"abs":    unaryBuiltin(hop.OpAbs),
	"sqrt":   unaryBuiltin(hop.OpSqrt),
	"exp":    unaryBuiltin(hop.OpExp),

	"sum":      aggBuiltin(hop.OpAggSum, hop.DirRowCol),
	"max":      aggBuiltin(hop.OpAggMax, hop.DirRowCol),
	"min":      aggBuiltin(hop.OpAggMin, hop.DirRowCol),
	"mean":     aggBuiltin(hop.OpAggMean, hop.DirRowCol),
	"rowSums":  aggBuiltin(hop.OpAggSum, hop.DirRow),
	"colSums":  aggBuiltin(hop.OpAggSum, hop.DirCol),
	"rowMaxs":  aggBuiltin(hop.OpAggMax, hop.DirRow),
	"colMaxs":  aggBuiltin(hop.OpAggMax, hop.DirCol),
	"rowMins":  aggBuiltin(hop.OpAggMin, hop.DirRow),
	"colMins":  aggBuiltin(hop.OpAggMin, hop.DirCol),
	"rowMeans": aggBuiltin(hop.OpAggMean, hop.DirRow),
	"colMeans": aggBuiltin(hop.OpAggMean, hop.DirCol),

	"aggregate": paramBuiltin(hop.OpGroupedAgg, common.DataMatrix, common.ValueFp64,
		[]string{"target", "groups", "weights", "fn", "ngroups"},
		"target", "groups", "fn"),
	"removeEmpty": paramBuiltin(hop.OpRmEmpty, common.DataUnknown, common.ValueFp64,
		[]string{"target", "margin", "select", "empty.return"},
		"target", "margin"),
	"rexpand": paramBuiltin(hop.OpRExpand, common.DataMatrix, common.ValueFp64,
		[]string{"target", "max", "dir", "cast", "ignore"},
		"target", "max", "dir"),
	"replace": paramBuiltin(hop.OpReplace, common.DataUnknown, common.ValueFp64,
		[]string{"target", "pattern", "replacement"},
		"target", "pattern", "replacement"),
	"lower.tri": paramBuiltin(hop.OpLowerTri, common.DataMatrix, common.ValueFp64,
		[]string{"target", "diag", "values"},
		"target"),
	"upper.tri": paramBuiltin(hop.OpUpperTri, common.DataMatrix, common.ValueFp64,
		[]string{"target", "diag", "values"},
		"target"),
	"cdf": paramBuiltin(hop.OpCDF, common.DataScalar, common.ValueFp64,
		cdfParams, "target", "dist"),
	"icdf": paramBuiltin(hop.OpInvCDF, common.DataScalar, common.ValueFp64,
		cdfParams, "target", "dist"),
	"transformapply": paramBuiltin(hop.OpTransformApply, common.DataMatrix, common.ValueFp64,
		[]string{"target", "spec", "meta"},
		"target", "spec", "meta"),
	"transformdecode": paramBuiltin(hop.OpTransformDecode, common.DataFrame, common.ValueString,
		[]string{"target", "spec", "meta"},
		"target", "spec", "meta"),
	"transformcolmap": paramBuiltin(hop.OpTransformColMap, common.DataMatrix, common.ValueFp64,
		[]string{"target", "spec"},
		"target", "spec"),
	"transformmeta": paramBuiltin(hop.OpTransformMeta, common.DataFrame, common.ValueString,
		[]string{"spec", "path"},
		"spec", "path"),
	"toString": paramBuiltin(hop.OpToString, common.DataScalar, common.ValueString,
		[]string{"target", "rows", "cols", "decimal", "sparse", "sep", "linesep"},
		"target"),
	"paramserv": paramBuiltin(hop.OpParamServ, common.DataList, common.ValueUnknown,
		[]string{
			"model", "features", "labels", "val_features", "val_labels",
			"upd", "agg", "mode", "utype", "freq", "epochs", "batchsize",
			"k", "scheme", "hyperparams", "checkpointing",
		},
		"model", "features", "labels", "upd", "agg"),

	"list": {kind: builtinList, op: hop.OpList},
}

func lookupBuiltin(name string) (*builtin, bool) {
	b, ok := builtinTable[name]
	return b, ok
}

// IsBuiltin reports whether name is a builtin function of the language.
func IsBuiltin(name string) bool {
	_, ok := builtinTable[name]
	return ok
}
