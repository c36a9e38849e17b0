package compiler

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dianpeng/dmlc/cg"
	"github.com/dianpeng/dmlc/config"
	"github.com/dianpeng/dmlc/dml"
	"github.com/dianpeng/dmlc/hop"
	"github.com/dianpeng/dmlc/logging"
	"github.com/dianpeng/dmlc/plan"
	"github.com/dianpeng/dmlc/plancache"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Source is one top level script with its command line values.
type Source struct {
	Name string
	Text string
	Args map[string]string
}

type Result struct {
	Session string
	Program *cg.Program

	// nil when the program came from the plan cache
	Graph *hop.Graph
	Plan  *plan.Plan

	Cached bool
}

// FileLoader resolves sourced scripts relative to Root.
type FileLoader struct {
	Root string
}

func (self FileLoader) Load(path string) (string, error) {
	p := path
	if !filepath.IsAbs(p) && self.Root != "" {
		p = filepath.Join(self.Root, p)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return "", errors.Wrapf(err, "load %q", path)
	}
	return string(data), nil
}

type Compiler struct {
	cfg    *config.Config
	loader plan.Loader
	cache  *plancache.Cache
	log    *zap.Logger
}

type Option func(*Compiler)

func WithLoader(l plan.Loader) Option {
	return func(c *Compiler) {
		c.loader = l
	}
}

func WithCache(cache *plancache.Cache) Option {
	return func(c *Compiler) {
		c.cache = cache
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Compiler) {
		c.log = l
	}
}

func New(cfg *config.Config, opts ...Option) (*Compiler, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Compiler{
		cfg: cfg,
		log: logging.L(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (self *Compiler) Config() *config.Config { return self.cfg }

// session is the state of one top level compilation. The import cache maps
// a sourced path to its text and lives exactly as long as the session.
type session struct {
	id      string
	loader  plan.Loader
	mu      sync.Mutex
	imports map[string]string
	log     *zap.Logger
}

func (self *Compiler) newSession() *session {
	id := uuid.NewString()
	return &session{
		id:      id,
		loader:  self.loader,
		imports: make(map[string]string),
		log:     self.log.With(zap.String("session", id)),
	}
}

func (self *session) Load(path string) (string, error) {
	self.mu.Lock()
	defer self.mu.Unlock()

	if text, ok := self.imports[path]; ok {
		return text, nil
	}
	if self.loader == nil {
		return "", errors.Newf("no loader configured for %q", path)
	}
	text, err := self.loader.Load(path)
	if err != nil {
		return "", err
	}
	self.imports[path] = text
	self.log.Debug("script sourced", zap.String("path", path), zap.Int("bytes", len(text)))
	return text, nil
}

// Compile turns one script into its instruction program. Scripts without
// source statements are looked up in the plan cache first, when one is
// configured.
func (self *Compiler) Compile(ctx context.Context, src Source) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	sess := self.newSession()

	prog, err := dml.Parse(src.Text)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", src.Name)
	}

	var key plancache.Key
	cacheable := self.cache != nil && len(prog.Sources()) == 0
	if cacheable {
		key = plancache.KeyOf(src.Text, src.Args, self.cfg)
		p, ok, err := self.cache.Get(key)
		if err != nil {
			return nil, err
		}
		if ok {
			sess.log.Info("compiled",
				zap.String("script", src.Name),
				zap.Bool("cached", true),
				zap.Int("instructions", len(p.Instructions)),
			)
			return &Result{
				Session: sess.id,
				Program: p,
				Cached:  true,
			}, nil
		}
	}

	g := hop.NewGraph(self.cfg, sess.log)
	pl := plan.New(g, src.Args, sess)
	if err := pl.Build(src.Name, src.Text, prog); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := cg.Generate(g)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", src.Name)
	}

	if cacheable {
		if err := self.cache.Put(key, out); err != nil {
			return nil, err
		}
	}

	sess.log.Info("compiled",
		zap.String("script", src.Name),
		zap.Bool("cached", false),
		zap.Int("hops", g.Len()),
		zap.Int("lops", g.Lops.Len()),
		zap.Int("instructions", len(out.Instructions)),
		zap.Int("cost_evaluations", g.CostEvaluations),
		zap.Bool("requires_recompile", out.RequiresRecompile),
		zap.Duration("elapsed", time.Since(start)),
	)

	return &Result{
		Session: sess.id,
		Program: out,
		Graph:   g,
		Plan:    pl,
	}, nil
}

// CompileAll compiles independent scripts in parallel. Results are in the
// order of srcs, the first failure cancels the rest.
func (self *Compiler) CompileAll(ctx context.Context, srcs []Source) ([]*Result, error) {
	out := make([]*Result, len(srcs))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))

	for idx := range srcs {
		idx := idx
		eg.Go(func() error {
			r, err := self.Compile(ctx, srcs[idx])
			if err != nil {
				return err
			}
			out[idx] = r
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
