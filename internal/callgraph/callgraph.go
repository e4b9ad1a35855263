// Package callgraph builds lattice.Graph and lattice.CFGGraph views over a
// set of matched BinaryFunctions, so the core's output can be rendered with
// github.com/zboralski/lattice/render the same way the disassembler's call
// graph was.
package callgraph

import (
	"fmt"

	"github.com/zboralski/lattice"

	"github.com/lucmann/llvm-project/internal/cfgmodel"
)

// nodeName prefers the demangled name for readability, falling back to the
// first linker symbol.
func nodeName(bf cfgmodel.BinaryFunction) string {
	if d := bf.DemangledName(); d != "" {
		return d
	}
	names := bf.Names()
	if len(names) == 0 {
		return "?"
	}
	return names[0]
}

// BuildCallGraph constructs a lattice.Graph from matched functions: one node
// per function, one edge per resolved call site. Call sites whose Callee
// could not be resolved (the propagator still appends them with an empty
// Callee when the callee's entry wasn't in yamlProfileToFunction) are
// skipped.
func BuildCallGraph(funcs []cfgmodel.BinaryFunction) *lattice.Graph {
	g := &lattice.Graph{}
	for _, f := range funcs {
		name := nodeName(f)
		g.Nodes = append(g.Nodes, name)
		for _, cs := range f.CallSites() {
			if cs.Callee == "" {
				continue
			}
			g.Edges = append(g.Edges, lattice.Edge{
				Caller: name,
				Callee: string(cs.Callee),
			})
		}
	}
	g.Dedup()
	return g
}

// BuildCFG constructs a lattice.CFGGraph from matched functions, one
// lattice.FuncCFG per function, in layout order.
func BuildCFG(funcs []cfgmodel.BinaryFunction) *lattice.CFGGraph {
	cg := &lattice.CFGGraph{}
	for _, f := range funcs {
		cg.Funcs = append(cg.Funcs, BuildFuncCFG(f))
	}
	return cg
}

// BuildFuncCFG converts one BinaryFunction's control-flow graph and
// resolved call sites into a lattice.FuncCFG.
func BuildFuncCFG(f cfgmodel.BinaryFunction) *lattice.FuncCFG {
	lcfg := &lattice.FuncCFG{Name: nodeName(f)}

	blocks := f.Layout()
	idOf := make(map[int]int, len(blocks))
	for i, bb := range blocks {
		idOf[bb.ID()] = i
	}

	callsByBlock := bucketCallSites(f, blocks)

	for i, bb := range blocks {
		lb := &lattice.BasicBlock{
			ID:    bb.ID(),
			Start: i,
			End:   i + 1,
			Term:  bb.IsTerminal(),
			Calls: callsByBlock[bb.ID()],
		}
		for _, succ := range bb.Successors() {
			cond := ""
			if taken, ok := bb.ConditionalSuccessor(true); ok && taken.ID() == succ.ID() {
				cond = "T"
			} else if fall, ok := bb.ConditionalSuccessor(false); ok && fall.ID() == succ.ID() {
				cond = "F"
			}
			lb.Succs = append(lb.Succs, lattice.Successor{BlockID: succ.ID(), Cond: cond})
		}
		lcfg.Blocks = append(lcfg.Blocks, lb)
	}
	return lcfg
}

// bucketCallSites assigns each call site to the block whose byte range
// [InputOffset, InputOffset+OriginalSize) contains its Offset. A call site
// with no resolved Callee is labelled with its hex offset instead.
func bucketCallSites(f cfgmodel.BinaryFunction, blocks []cfgmodel.BasicBlock) map[int][]lattice.CallSite {
	out := make(map[int][]lattice.CallSite)
	for _, cs := range f.CallSites() {
		callee := string(cs.Callee)
		if callee == "" {
			callee = fmt.Sprintf("0x%x", cs.Offset)
		}
		for _, bb := range blocks {
			start := bb.InputOffset()
			end := start + bb.OriginalSize()
			if cs.Offset >= start && cs.Offset < end {
				out[bb.ID()] = append(out[bb.ID()], lattice.CallSite{
					Offset: int(cs.Offset),
					Callee: callee,
				})
				break
			}
		}
	}
	return out
}
