package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zboralski/lattice/render"

	"github.com/lucmann/llvm-project/internal/callgraph"
	"github.com/lucmann/llvm-project/internal/cfgmodel"
)

func cmdGraph(args []string) error {
	fs := flag.NewFlagSet("graph", flag.ExitOnError)
	c := registerCommonFlags(fs)
	out := fs.String("out", "", "output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := c.validate(); err != nil {
		return err
	}
	if *out == "" {
		return fmt.Errorf("--out is required")
	}

	bc, _, _, err := openAndMatch(c)
	if err != nil {
		return err
	}
	defer bc.Close()

	if err := os.MkdirAll(*out, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	var profiled []cfgmodel.BinaryFunction
	for _, bf := range bc.AllFunctions() {
		if bf.HasProfile() {
			profiled = append(profiled, bf)
		}
	}

	cg := callgraph.BuildCallGraph(profiled)
	if err := os.WriteFile(filepath.Join(*out, "callgraph.dot"), []byte(render.DOT(cg, "profmatch call graph")), 0o644); err != nil {
		return fmt.Errorf("write callgraph.dot: %w", err)
	}

	cfgGraph := callgraph.BuildCFG(profiled)
	if err := os.WriteFile(filepath.Join(*out, "cfg.dot"), []byte(render.DOTCFG(cfgGraph, "profmatch CFGs")), 0o644); err != nil {
		return fmt.Errorf("write cfg.dot: %w", err)
	}

	fmt.Fprintf(os.Stderr, "matched %d functions with a profile; wrote callgraph.dot and cfg.dot to %s\n",
		len(profiled), *out)
	return nil
}
