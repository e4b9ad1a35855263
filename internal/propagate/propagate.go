// Package propagate implements the profile-attachment core's Propagator
// (component E): given a matched (profile function, binary function) pair,
// it stamps execution counts, branch-edge counts, and call-site
// annotations onto the binary function's live CFG.
package propagate

import (
	"strings"

	"github.com/lucmann/llvm-project/internal/cfgmodel"
	"github.com/lucmann/llvm-project/internal/fingerprint"
	"github.com/lucmann/llvm-project/internal/profile"
)

// Scalar annotation names written onto call/branch instructions.
const (
	AnnotationCallProfile = "CallProfile"
	AnnotationCTCTaken    = "CTCTakenCount"
	AnnotationCTCMispred  = "CTCMispredCount"
	AnnotationDirectCount = "Count"
)

// Options configures propagation, mirroring the subset of the reader's
// configuration surface that affects this stage.
type Options struct {
	IgnoreHash            bool
	MatchWithFunctionHash bool
	ProfileUseDFS         bool
	InferStaleProfile     bool
	Lite                  bool

	// InferStale is the external min-cost-flow stale-profile inference
	// hook, invoked as a black box. nil disables it even if
	// InferStaleProfile is set.
	InferStale func(bf cfgmodel.BinaryFunction, yf *profile.Function) bool
}

// Mismatches counts the per-element soft failures a propagation run hits.
type Mismatches struct {
	Blocks uint64
	Calls  uint64
	Edges  uint64
}

func (m Mismatches) any() bool {
	return m.Blocks != 0 || m.Calls != 0 || m.Edges != 0
}

// Result is the per-function verdict callers should accumulate statistics
// from.
type Result struct {
	ProfileMatched bool
	Mismatches     Mismatches
}

// warner is the narrow diagnostics surface propagation needs; satisfied by
// *diag.Emitter, accepted as an interface here so this package never
// imports diag and stays independently testable.
type warner interface {
	Warnf(level int, format string, args ...any)
}

type noopWarner struct{}

func (noopWarner) Warnf(int, string, ...any) {}

// Run propagates yf's counts onto bf. yamlProfileToFunction supplies the
// Id→BinaryFunction resolution call sites need to name their callee. stats
// may be nil; when non-nil, NumStaleFuncsWithEqualBlockCount is incremented
// on a non-matched function whose block count still disagrees with yf's.
func Run(bf cfgmodel.BinaryFunction, yf *profile.Function, header profile.Header, yamlProfileToFunction []cfgmodel.BinaryFunction, opts Options, w warner, stats *cfgmodel.Stats) Result {
	if w == nil {
		w = noopWarner{}
	}
	if bf.Empty() {
		return Result{ProfileMatched: true}
	}

	dfs := opts.ProfileUseDFS || header.IsDFSOrder
	order := bf.Layout()
	if dfs {
		order = bf.DFS()
	}

	bf.SetExecutionCount(yf.ExecCount)

	var rawBranchCount uint64
	for _, blk := range yf.Blocks {
		for _, s := range blk.Successors {
			rawBranchCount += s.Count
		}
	}
	bf.SetRawBranchCount(rawBranchCount)

	softMismatch := false
	if !opts.IgnoreHash {
		h := fingerprint.Ensure(bf, dfs, header.HashFunction)
		if h != yf.Hash {
			softMismatch = true
		}
	}
	if uint64(bf.Size()) != uint64(yf.NumBasicBlocks) {
		softMismatch = true
	}

	var mm Mismatches
	sampleMode := header.Flags&profile.FlagSample != 0
	normalizeByInsnCount := usesEvent(header.EventNames, "cycles") || usesEvent(header.EventNames, "instructions")
	normalizeByCalls := usesEvent(header.EventNames, "branches")

	var functionExecutionCount uint64

	for _, blk := range yf.Blocks {
		if int(blk.Index) >= len(order) {
			mm.Blocks++
			continue
		}
		bb := order[blk.Index]

		if sampleMode {
			propagateSampleBlock(bb, blk, normalizeByInsnCount, normalizeByCalls, &functionExecutionCount)
			continue
		}

		bb.SetExecutionCount(blk.ExecCount)
		propagateCallSites(bf, bb, blk, yamlProfileToFunction, &mm, w)
		propagateSuccessors(bb, blk, order, &mm)
	}

	for _, bb := range order {
		if bb.ExecutionCount() == cfgmodel.CountNoProfile {
			bb.SetExecutionCount(0)
		}
	}

	if sampleMode {
		bf.SetExecutionCount(functionExecutionCount)
	}

	matched := !softMismatch && !mm.any()
	if !matched {
		if stats != nil && uint64(bf.Size()) != uint64(yf.NumBasicBlocks) {
			stats.NumStaleFuncsWithEqualBlockCount++
		}
		if opts.InferStaleProfile && opts.InferStale != nil {
			matched = opts.InferStale(bf, yf)
		}
	}
	if matched {
		bf.MarkProfiled(uint32(header.Flags))
	} else if opts.Lite {
		bf.SetIgnored()
	}

	return Result{ProfileMatched: matched, Mismatches: mm}
}

// propagateSampleBlock applies the sample-mode block formula. Branches and
// call sites are never touched in sample mode — there is no edge data to
// propagate.
func propagateSampleBlock(bb cfgmodel.BasicBlock, blk profile.Block, normalizeByInsnCount, normalizeByCalls bool, functionExecutionCount *uint64) {
	if !blk.HasEventCount || blk.EventCount == 0 {
		bb.SetExecutionCount(0)
		return
	}

	s := blk.EventCount * 1000
	var denom uint64
	if normalizeByInsnCount && bb.NumNonPseudoInstructions() > 0 {
		denom = uint64(bb.NumNonPseudoInstructions())
	} else if normalizeByCalls {
		denom = uint64(bb.NumCalls()) + 1
	}

	var exec uint64
	if denom > 0 {
		exec = s / denom
	} else {
		exec = s
	}

	bb.SetExecutionCount(exec)
	if bb.IsEntryPoint() {
		*functionExecutionCount += exec
	}
}

// propagateCallSites resolves each profiled call site's callee, appends it
// to bf's flat call-site list, then locates and annotates the matching
// instruction.
func propagateCallSites(bf cfgmodel.BinaryFunction, bb cfgmodel.BasicBlock, blk profile.Block, yamlProfileToFunction []cfgmodel.BinaryFunction, mm *Mismatches, w warner) {
	for _, cs := range blk.CallSites {
		var callee cfgmodel.BinaryFunction
		if int(cs.DestId) < len(yamlProfileToFunction) {
			callee = yamlProfileToFunction[cs.DestId]
		}

		var calleeSym cfgmodel.Symbol
		if callee != nil {
			calleeSym = callee.SymbolForEntryID(cs.EntryDiscriminator)
		}

		bf.AppendCallSite(cfgmodel.CallSiteInfo{
			Callee:   calleeSym,
			Count:    cs.Count,
			Mispreds: cs.Mispreds,
			Offset:   cs.Offset,
		})

		if cs.Offset >= bb.OriginalSize() {
			mm.Calls++
			continue
		}
		inst, ok := bf.InstructionAtOffset(bb.InputOffset() + cs.Offset)
		if !ok || !(inst.IsCall() || inst.IsIndirectBranch()) {
			mm.Calls++
			continue
		}

		switch {
		case inst.IsIndirectCall() || inst.IsIndirectBranch():
			inst.AppendCallProfile(cfgmodel.CallProfileEntry{Callee: calleeSym, Count: cs.Count, Mispreds: cs.Mispreds})
		case inst.ConditionalTailCall():
			if !inst.SetScalarAnnotation(AnnotationCTCTaken, cs.Count) {
				w.Warnf(1, "duplicate CTCTakenCount annotation at offset %d", cs.Offset)
			}
			inst.SetScalarAnnotation(AnnotationCTCMispred, cs.Mispreds)
		default:
			if !inst.SetScalarAnnotation(AnnotationDirectCount, cs.Count) {
				w.Warnf(1, "duplicate Count annotation at offset %d", cs.Offset)
			}
		}
	}
}

// propagateSuccessors binds each profiled successor edge to a CFG edge,
// including the single-hop pass-through heuristic: when toBB isn't a direct
// successor of bb but is bb's fallthrough's only successor, the count lands
// on both ft→toBB and the bb→ft fallthrough edge instead of being dropped.
func propagateSuccessors(bb cfgmodel.BasicBlock, blk profile.Block, order []cfgmodel.BasicBlock, mm *Mismatches) {
	for _, succ := range blk.Successors {
		if int(succ.Index) >= len(order) {
			mm.Edges++
			continue
		}
		toBB := order[succ.Index]

		edge, ok := bb.Successor(toBB.ID())
		if !ok {
			ft, ok2 := bb.ConditionalSuccessor(false)
			if !ok2 {
				mm.Edges++
				continue
			}
			ftSuccs := ft.Successors()
			if len(ftSuccs) != 1 || ftSuccs[0].ID() != toBB.ID() {
				mm.Edges++
				continue
			}
			edge = ft.BranchInfo(toBB.ID())
			edge.Count += succ.Count
			edge.MispredictedCount += succ.Mispreds

			ftEdge := bb.BranchInfo(ft.ID())
			ftEdge.Count += succ.Count
			ftEdge.MispredictedCount += succ.Mispreds
			continue
		}

		edge.Count += succ.Count
		edge.MispredictedCount += succ.Mispreds
	}
}

func usesEvent(eventNames, name string) bool {
	for _, part := range strings.Split(eventNames, ",") {
		if part == name {
			return true
		}
	}
	return false
}
