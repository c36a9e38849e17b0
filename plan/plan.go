package plan

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dianpeng/dmlc/common"
	"github.com/dianpeng/dmlc/dml"
	"github.com/dianpeng/dmlc/hop"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Error markers of the semantic pass, every one of them is also marked with
// ErrValidation.
var (
	ErrValidation         = errors.New("validation error")
	ErrUndefinedVariable  = errors.New("undefined variable")
	ErrUndefinedFunction  = errors.New("undefined function")
	ErrUnknownNamespace   = errors.New("unknown namespace")
	ErrNamespaceConflict  = errors.New("namespace conflict")
	ErrParamAssignment    = errors.New("assignment to a command line parameter")
	ErrMissingValue       = errors.New("missing command line value")
	ErrInvalidParameter   = errors.New("invalid parameter")
	ErrInvalidStatement   = errors.New("invalid statement")
	ErrRecursiveImport    = errors.New("recursive import")
	ErrImportNotSupported = errors.New("no loader for source statement")
)

// Loader resolves the text of a sourced script.
type Loader interface {
	Load(path string) (string, error)
}

// Plan maps a parsed script onto a logical operator graph. A plan is used
// for exactly one top level script, sourced scripts are planned into the
// same graph with their own scope.
type Plan struct {
	Graph  *hop.Graph
	Args   map[string]string
	Loader Loader

	// live-out variables of the top level script, in order of first
	// assignment
	LiveOut []string
	Vars    map[string]hop.ID

	imported  map[string]*namespace
	importing []string
}

type namespace struct {
	path string
	vars map[string]hop.ID
}

// scope is the symbol table of one script
type scope struct {
	path       string
	source     string
	vars       map[string]hop.ID
	order      []string
	namespaces map[string]*namespace
}

func newScope(path, source string) *scope {
	return &scope{
		path:       path,
		source:     source,
		vars:       make(map[string]hop.ID),
		namespaces: make(map[string]*namespace),
	}
}

func (self *scope) bind(name string, id hop.ID) {
	if _, ok := self.vars[name]; !ok {
		self.order = append(self.order, name)
	}
	self.vars[name] = id
}

func New(g *hop.Graph, args map[string]string, loader Loader) *Plan {
	if args == nil {
		args = make(map[string]string)
	}
	return &Plan{
		Graph:    g,
		Args:     args,
		Loader:   loader,
		Vars:     make(map[string]hop.ID),
		imported: make(map[string]*namespace),
	}
}

func (self *Plan) err(
	sc *scope,
	ci dml.CodeInfo,
	marker error,
	f string,
	args ...interface{},
) error {
	msg := fmt.Sprintf(f, args...)
	err := errors.Newf("%s: %s: %s", sc.path, dml.DebugInfo(sc.source, ci.Start), msg)
	return errors.Mark(errors.Mark(err, marker), ErrValidation)
}

// PlanScript parses and plans a top level script.
func PlanScript(
	g *hop.Graph,
	name string,
	source string,
	args map[string]string,
	loader Loader,
) (*Plan, error) {
	prog, err := dml.Parse(source)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", name)
	}
	p := New(g, args, loader)
	if err := p.Build(name, source, prog); err != nil {
		return nil, err
	}
	return p, nil
}

// Build plans the statements of a top level script. Every live-out variable
// gets a transient write root, every write call a persistent write root.
func (self *Plan) Build(name, source string, prog *dml.Program) error {
	sc := newScope(name, source)
	if err := self.checkArgs(sc, prog); err != nil {
		return err
	}
	self.importing = append(self.importing, name)
	err := self.planProgram(sc, prog)
	self.importing = self.importing[:len(self.importing)-1]
	if err != nil {
		return err
	}

	for _, v := range sc.order {
		id := sc.vars[v]
		self.Graph.AddRoot(self.Graph.NewTWrite(v, id))
	}
	self.LiveOut = sc.order
	self.Vars = sc.vars
	return nil
}

// checkArgs reports every command line parameter without a value at once.
func (self *Plan) checkArgs(sc *scope, prog *dml.Program) error {
	missing := make(map[string]dml.CodeInfo)

	check := func(e dml.Expr) {
		_ = dml.VisitExprPostOrder(e, func(x dml.Expr) error {
			if x.Type() != dml.ExprParam {
				return nil
			}
			p := x.(*dml.Param)
			if _, ok := self.Args[p.Name]; !ok {
				if _, seen := missing[p.Name]; !seen {
					missing[p.Name] = p.CodeInfo
				}
			}
			return nil
		})
	}

	for _, s := range prog.Statements {
		switch s.Type() {
		case dml.StmtAssign:
			check(s.(*dml.Assign).Value)
			break
		case dml.StmtExpr:
			check(s.(*dml.ExprStmt).Value)
			break
		default:
			break
		}
	}

	if len(missing) == 0 {
		return nil
	}
	names := maps.Keys(missing)
	slices.Sort(names)
	return self.err(sc, missing[names[0]], ErrMissingValue,
		"no value for command line parameter(s) $%s", strings.Join(names, ", $"))
}

func (self *Plan) planProgram(sc *scope, prog *dml.Program) error {
	for _, s := range prog.Statements {
		if err := self.planStmt(sc, s); err != nil {
			return err
		}
	}
	return nil
}

func (self *Plan) planStmt(sc *scope, s dml.Stmt) error {
	switch s.Type() {
	case dml.StmtSource:
		return self.planSource(sc, s.(*dml.Source))
	case dml.StmtAssign:
		return self.planAssign(sc, s.(*dml.Assign))
	case dml.StmtExpr:
		return self.planExprStmt(sc, s.(*dml.ExprStmt))
	default:
		return errors.AssertionFailedf("unknown statement type %d", s.Type())
	}
}

func (self *Plan) planAssign(sc *scope, a *dml.Assign) error {
	if len(a.Target) > 0 && a.Target[0] == '$' {
		return self.err(sc, a.CodeInfo, ErrParamAssignment,
			"cannot assign to command line parameter %s", a.Target)
	}

	mark := self.Graph.Len()
	id, err := self.planExpr(sc, a.Value)
	if err != nil {
		return err
	}

	// a hint pins the operator producing the value, if this statement created
	// it. Literals and existing bindings are left alone.
	if a.Hint != "" {
		et, _ := common.ParseExecType(a.Hint)
		if n := self.Graph.Node(id); int(id) >= mark && !n.IsLiteral() {
			n.ForcedExec = et
		}
	}

	sc.bind(a.Target, id)
	return nil
}

func (self *Plan) planExprStmt(sc *scope, s *dml.ExprStmt) error {
	if s.Value.Type() == dml.ExprCall {
		c := s.Value.(*dml.Call)
		if c.Namespace == "" && c.Name == "write" {
			id, err := self.planWrite(sc, c)
			if err != nil {
				return err
			}
			self.Graph.AddRoot(id)
			return nil
		}
	}
	return self.err(sc, s.CodeInfo, ErrInvalidStatement,
		"expression statement must be a write call")
}

// ----------------------------------------------------------------------------
// Import

func (self *Plan) planSource(sc *scope, s *dml.Source) error {
	if ns, ok := sc.namespaces[s.Namespace]; ok {
		if ns.path == s.Path {
			return nil
		}
		return self.err(sc, s.CodeInfo, ErrNamespaceConflict,
			"namespace %s is already bound to %q", s.Namespace, ns.path)
	}

	if ns, ok := self.imported[s.Path]; ok {
		sc.namespaces[s.Namespace] = ns
		return nil
	}

	if slices.Contains(self.importing, s.Path) {
		return self.err(sc, s.CodeInfo, ErrRecursiveImport,
			"%q is sourced recursively, import chain %v", s.Path, self.importing)
	}
	if self.Loader == nil {
		return self.err(sc, s.CodeInfo, ErrImportNotSupported, "cannot source %q", s.Path)
	}

	text, err := self.Loader.Load(s.Path)
	if err != nil {
		return errors.Wrapf(err, "source %q", s.Path)
	}
	prog, err := dml.Parse(text)
	if err != nil {
		return errors.Wrapf(err, "%s", s.Path)
	}

	child := newScope(s.Path, text)
	if err := self.checkArgs(child, prog); err != nil {
		return err
	}

	self.importing = append(self.importing, s.Path)
	err = self.planProgram(child, prog)
	self.importing = self.importing[:len(self.importing)-1]
	if err != nil {
		return err
	}

	ns := &namespace{
		path: s.Path,
		vars: child.vars,
	}
	self.imported[s.Path] = ns
	sc.namespaces[s.Namespace] = ns
	return nil
}
