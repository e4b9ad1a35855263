// Package cfgmodel defines the binary-side surface the profile-attachment
// core consumes: functions, basic blocks, and instructions recovered from a
// target binary. Building the real thing (disassembling a binary, resolving
// symbols) is an external concern; this package only fixes the interface the
// matcher and propagator are written against. internal/elfbin provides one
// concrete implementation built from an ELF file, and cfgmodeltest provides
// an in-memory one for tests.
package cfgmodel

// Symbol names an entry point of a function. Multi-entry functions (shared
// across cold/warm splits or LTO partitions) may carry more than one.
type Symbol string

// BranchInfo carries the counts attached to one successor edge.
type BranchInfo struct {
	Count             uint64
	MispredictedCount uint64
}

// CallSiteInfo is one entry in a function's flat call-site list, populated
// unconditionally by the propagator regardless of whether the instruction at
// Offset could be validated.
type CallSiteInfo struct {
	Callee   Symbol
	Count    uint64
	Mispreds uint64
	Offset   uint64
}

// CallProfileEntry is one element of an indirect call site's "CallProfile"
// annotation list.
type CallProfileEntry struct {
	Callee   Symbol
	Count    uint64
	Mispreds uint64
}

// CountNoProfile is the sentinel execution count meaning "no profile seen
// yet". It is distinct from zero so the propagator can tell "never visited"
// apart from "visited zero times" until finalization.
const CountNoProfile = ^uint64(0)

// BasicBlock is one node of a BinaryFunction's control-flow graph.
type BasicBlock interface {
	// ID is a stable identifier for use as a map/set key; two BasicBlock
	// values referring to the same block compare equal on ID.
	ID() int
	IsEntryPoint() bool
	IsTerminal() bool

	// NumNonPseudoInstructions and NumCalls feed the sample-mode normalizer.
	NumNonPseudoInstructions() int
	NumCalls() int

	// OriginalSize is the block's size in bytes in the input binary, used to
	// bounds-check a call site's Offset.
	OriginalSize() uint64
	// InputOffset is the byte offset of the block's first instruction within
	// the function, used together with a call site's Offset to locate the
	// instruction to annotate.
	InputOffset() uint64

	ExecutionCount() uint64
	SetExecutionCount(uint64)

	// Successor returns the existing edge to a block with the given ID, if
	// any.
	Successor(blockID int) (*BranchInfo, bool)
	// BranchInfo returns the mutable edge record to a block with the given
	// ID, creating a zero-valued one if the block has no such successor in
	// the target binary's layout. The propagator calls it only after the
	// pass-through heuristic has confirmed the edge exists structurally;
	// CFG builders such as internal/elfbin also use it to create edges.
	BranchInfo(blockID int) *BranchInfo
	// ConditionalSuccessor returns the taken (true) or fallthrough (false)
	// successor of a two-way conditional block, if the block has that shape.
	ConditionalSuccessor(taken bool) (BasicBlock, bool)
	// Successors lists the block's successors in no particular order.
	Successors() []BasicBlock
}

// Instruction is the subset of BOLT's MCInst+MIB surface the propagator
// needs: call-capability predicates and a small annotation bag.
type Instruction interface {
	IsCall() bool
	IsIndirectCall() bool
	IsIndirectBranch() bool
	// ConditionalTailCall reports whether this instruction is a conditional
	// branch that BOLT's CFG analysis has already classified as a tail call
	// (jumping outside the function to another function's entry).
	ConditionalTailCall() bool

	HasAnnotation(name string) bool
	// SetScalarAnnotation stores a scalar count annotation. It reports false
	// (and does not overwrite) if the annotation is already present.
	SetScalarAnnotation(name string, value uint64) bool
	// AppendCallProfile appends to the instruction's "CallProfile" list
	// annotation, creating it on first use.
	AppendCallProfile(entry CallProfileEntry)
}

// BinaryFunction is a function recovered from the target binary.
type BinaryFunction interface {
	Names() []string
	DemangledName() string

	// Size is the function's basic block count.
	Size() int
	Empty() bool

	Hash() (value uint64, ok bool)
	SetHash(value uint64)

	// DFS and Layout return the function's basic blocks in DFS pre-order and
	// in the binary's current layout order, respectively. Profile block
	// indices are resolved against one or the other depending on the
	// profile header's IsDFSOrder flag.
	DFS() []BasicBlock
	Layout() []BasicBlock

	// InstructionAtOffset finds the instruction whose byte offset within the
	// function equals offset.
	InstructionAtOffset(offset uint64) (Instruction, bool)
	// SymbolForEntryID resolves a multi-entry discriminator to the symbol
	// naming that entry point.
	SymbolForEntryID(discriminator uint32) Symbol

	// CallSites is the function's flat, append-only call-site list.
	CallSites() []CallSiteInfo
	AppendCallSite(info CallSiteInfo)

	ExecutionCount() uint64
	SetExecutionCount(uint64)
	SetRawBranchCount(uint64)

	HasProfile() bool
	MarkProfiled(flags uint32)
	SetIgnored()
}

// Stats accumulates binary-context-wide counters the core is required to
// maintain.
type Stats struct {
	NumStaleFuncsWithEqualBlockCount uint64
	NumUnusedProfiledObjects         uint64
}

// BinaryContext is the consumed surface of the object that owns all
// recovered functions and symbols.
type BinaryContext interface {
	// FunctionByName resolves a linker symbol name to the function it
	// belongs to. This collapses BOLT's two-step
	// getBinaryDataByName→getFunctionForSymbol lookup, since this core has
	// no need for the intermediate BinaryData/Symbol table distinction.
	FunctionByName(name string) (BinaryFunction, bool)
	// AllFunctions iterates every function BOLT recovered, addressed or not.
	AllFunctions() []BinaryFunction

	Stats() *Stats
}
