package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dianpeng/dmlc/compiler"
	"github.com/dianpeng/dmlc/config"
	"github.com/dianpeng/dmlc/explain"
	"github.com/dianpeng/dmlc/logging"
	"github.com/dianpeng/dmlc/plancache"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	fConfig   string
	fArgs     []string
	fCacheDir string
	fOutput   string
	fHops     bool
	fMemo     bool
)

func oops(stage string, err error) {
	fmt.Fprintf(os.Stderr, "%s [%s] %v\n", color.RedString("ERROR"), stage, err)
	os.Exit(1)
}

func readInput(path string) (string, error) {
	var data []byte
	var err error
	if path == "" || path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", errors.Wrapf(err, "read %q", path)
	}
	return string(data), nil
}

func parseArgs(list []string) (map[string]string, error) {
	out := make(map[string]string)
	for _, x := range list {
		k, v, ok := strings.Cut(x, "=")
		if !ok || k == "" {
			return nil, errors.Newf("invalid argument %q, expect name=value", x)
		}
		out[strings.TrimPrefix(k, "$")] = v
	}
	return out, nil
}

func addScriptFlags(fs *pflag.FlagSet) {
	fs.StringVar(&fConfig, "config", "", "compiler configuration file (YAML)")
	fs.StringArrayVar(&fArgs, "arg", nil, "command line value of the script, name=value")
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if fConfig != "" {
		c, err := config.Load(fConfig)
		if err != nil {
			return nil, err
		}
		cfg = c
	}
	if fCacheDir != "" {
		cfg.CacheDir = fCacheDir
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	logging.Set(log)
	return cfg, nil
}

// newCompiler builds the compiler of a command. The returned cleanup closes
// the plan cache, if any.
func newCompiler(useCache bool) (*compiler.Compiler, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	opts := []compiler.Option{
		compiler.WithLoader(compiler.FileLoader{}),
		compiler.WithLogger(logging.L()),
	}
	cleanup := func() {}
	if useCache && cfg.CacheDir != "" {
		cache, err := plancache.Open(cfg.CacheDir, logging.L())
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, compiler.WithCache(cache))
		cleanup = func() {
			_ = cache.Close()
		}
	}

	c, err := compiler.New(cfg, opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return c, cleanup, nil
}

func sources(paths []string) ([]compiler.Source, error) {
	args, err := parseArgs(fArgs)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		paths = []string{"-"}
	}

	out := []compiler.Source{}
	for _, p := range paths {
		text, err := readInput(p)
		if err != nil {
			return nil, err
		}
		name := p
		if p == "-" {
			name = "<stdin>"
		}
		out = append(out, compiler.Source{
			Name: filepath.Clean(name),
			Text: text,
			Args: args,
		})
	}
	return out, nil
}

func output() (io.Writer, func(), error) {
	if fOutput == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(fOutput)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "create %q", fOutput)
	}
	return f, func() { _ = f.Close() }, nil
}

// ----------------------------------------------------------------------------
// Commands

var rootCmd = &cobra.Command{
	Use:           "dmlc",
	Short:         "compile linear algebra scripts into instruction programs",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var compileCmd = &cobra.Command{
	Use:   "compile [script...]",
	Short: "compile scripts and print their instruction programs",
	RunE: func(cmd *cobra.Command, paths []string) error {
		srcs, err := sources(paths)
		if err != nil {
			return err
		}
		c, cleanup, err := newCompiler(true)
		if err != nil {
			return err
		}
		defer cleanup()

		results, err := c.CompileAll(context.Background(), srcs)
		if err != nil {
			return err
		}

		w, done, err := output()
		if err != nil {
			return err
		}
		defer done()

		for idx, r := range results {
			if len(results) > 1 {
				fmt.Fprintf(w, "# script: %s\n", srcs[idx].Name)
			}
			if err := r.Program.Render(w); err != nil {
				return err
			}
		}
		return nil
	},
}

var explainCmd = &cobra.Command{
	Use:   "explain script",
	Short: "print the operator graphs and the program of a script",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, paths []string) error {
		srcs, err := sources(paths)
		if err != nil {
			return err
		}
		c, cleanup, err := newCompiler(false)
		if err != nil {
			return err
		}
		defer cleanup()

		r, err := c.Compile(context.Background(), srcs[0])
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if fHops {
			fmt.Fprintln(w, "hops:")
			explain.Hops(w, r.Graph)
			fmt.Fprintln(w, "lops:")
			explain.Lops(w, r.Graph)
		}
		if fMemo {
			fmt.Fprintln(w, "memo:")
			explain.DumpMemo(w, r.Graph.Memo())
		}
		fmt.Fprintln(w, "program:")
		explain.Program(w, r.Program)
		return nil
	},
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize [program]",
	Short: "count the instructions of a program per backend and opcode",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, paths []string) error {
		path := "-"
		if len(paths) == 1 {
			path = paths[0]
		}
		text, err := readInput(path)
		if err != nil {
			return err
		}
		s, err := explain.Summarize(strings.NewReader(text))
		if err != nil {
			return err
		}
		s.Print(cmd.OutOrStdout())
		return nil
	},
}

func init() {
	addScriptFlags(compileCmd.Flags())
	compileCmd.Flags().StringVar(&fCacheDir, "cache-dir", "", "directory of the persistent plan cache")
	compileCmd.Flags().StringVarP(&fOutput, "output", "o", "", "write the programs to a file instead of stdout")

	addScriptFlags(explainCmd.Flags())
	explainCmd.Flags().BoolVar(&fHops, "hops", false, "print the logical and physical operator tables")
	explainCmd.Flags().BoolVar(&fMemo, "memo", false, "dump the statistics memo")

	rootCmd.AddCommand(compileCmd, explainCmd, summarizeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		oops("dmlc", err)
	}
}
