// Package cfgmodeltest is an in-memory implementation of the cfgmodel
// interfaces, built by hand rather than disassembled from a real binary, so
// the matcher, similarity, and propagate packages can be unit tested
// without an ELF file on disk.
package cfgmodeltest

import "github.com/lucmann/llvm-project/internal/cfgmodel"

// Context is a fake cfgmodel.BinaryContext over a fixed set of Functions.
type Context struct {
	Funcs []*Function
	stats cfgmodel.Stats
}

func (c *Context) FunctionByName(name string) (cfgmodel.BinaryFunction, bool) {
	for _, f := range c.Funcs {
		for _, n := range f.NameList {
			if n == name {
				return f, true
			}
		}
	}
	return nil, false
}

func (c *Context) AllFunctions() []cfgmodel.BinaryFunction {
	out := make([]cfgmodel.BinaryFunction, len(c.Funcs))
	for i, f := range c.Funcs {
		out[i] = f
	}
	return out
}

func (c *Context) Stats() *cfgmodel.Stats { return &c.stats }

// Function is a fake cfgmodel.BinaryFunction. Construct with NewFunction
// over blocks connected with Block.AddEdge, or set fields directly for
// simple cases.
type Function struct {
	NameList      []string
	Demangled     string
	HashValue     uint64
	HashSet       bool
	Blocks        []*Block
	DFSOrder      []cfgmodel.BasicBlock
	LayoutOrder   []cfgmodel.BasicBlock
	InstsByOffset map[uint64]*Instruction

	ExecCount      uint64
	RawBranchCount uint64
	Profiled       bool
	Ignored        bool
	CallSiteList   []cfgmodel.CallSiteInfo
}

// NewFunction returns a Function with its Layout/DFS order both set to
// blocks in the given order (the common case for hand-built fixtures with
// no interesting back-edges).
func NewFunction(name string, blocks ...*Block) *Function {
	f := &Function{
		NameList:      []string{name},
		InstsByOffset: make(map[uint64]*Instruction),
	}
	f.Blocks = blocks
	order := make([]cfgmodel.BasicBlock, len(blocks))
	for i, b := range blocks {
		b.fn = f
		order[i] = b
	}
	f.LayoutOrder = order
	f.DFSOrder = order
	return f
}

func (f *Function) Names() []string       { return f.NameList }
func (f *Function) DemangledName() string { return f.Demangled }
func (f *Function) Size() int             { return len(f.Blocks) }
func (f *Function) Empty() bool           { return len(f.Blocks) == 0 }

func (f *Function) Hash() (uint64, bool) { return f.HashValue, f.HashSet }
func (f *Function) SetHash(v uint64)     { f.HashValue, f.HashSet = v, true }

func (f *Function) DFS() []cfgmodel.BasicBlock    { return f.DFSOrder }
func (f *Function) Layout() []cfgmodel.BasicBlock { return f.LayoutOrder }

func (f *Function) InstructionAtOffset(offset uint64) (cfgmodel.Instruction, bool) {
	inst, ok := f.InstsByOffset[offset]
	if !ok {
		return nil, false
	}
	return inst, true
}

func (f *Function) SymbolForEntryID(discriminator uint32) cfgmodel.Symbol {
	if int(discriminator) < len(f.NameList) {
		return cfgmodel.Symbol(f.NameList[discriminator])
	}
	return cfgmodel.Symbol(f.NameList[0])
}

func (f *Function) CallSites() []cfgmodel.CallSiteInfo { return f.CallSiteList }

func (f *Function) AppendCallSite(info cfgmodel.CallSiteInfo) {
	f.CallSiteList = append(f.CallSiteList, info)
}

func (f *Function) ExecutionCount() uint64     { return f.ExecCount }
func (f *Function) SetExecutionCount(v uint64) { f.ExecCount = v }
func (f *Function) SetRawBranchCount(v uint64) { f.RawBranchCount = v }

func (f *Function) HasProfile() bool         { return f.Profiled }
func (f *Function) MarkProfiled(flags uint32) { f.Profiled = true }
func (f *Function) SetIgnored()              { f.Ignored = true }

// AddInstruction registers inst at the given function-relative byte offset
// so a later InstructionAtOffset call can find it.
func (f *Function) AddInstruction(offset uint64, inst *Instruction) {
	f.InstsByOffset[offset] = inst
}

// Block is a fake cfgmodel.BasicBlock.
type Block struct {
	fn *Function

	BlockID      int
	Entry        bool
	Terminal     bool
	NumNonPseudo int
	Calls        int
	OrigSize     uint64
	InOffset     uint64
	Exec         uint64

	succOrder []int
	succs     map[int]*cfgmodel.BranchInfo

	TakenID       int // -1 if none
	FallthroughID int // -1 if none
}

// NewBlock returns a Block with no successors; use AddEdge to connect it.
func NewBlock(id int, numNonPseudo int) *Block {
	return &Block{BlockID: id, NumNonPseudo: numNonPseudo, TakenID: -1, FallthroughID: -1}
}

// AddEdge records a successor edge from b to target, usable afterward via
// Successor/BranchInfo.
func (b *Block) AddEdge(target *Block) *cfgmodel.BranchInfo {
	if b.succs == nil {
		b.succs = make(map[int]*cfgmodel.BranchInfo)
	}
	if _, ok := b.succs[target.BlockID]; !ok {
		b.succOrder = append(b.succOrder, target.BlockID)
	}
	info := &cfgmodel.BranchInfo{}
	b.succs[target.BlockID] = info
	return info
}

// SetConditional marks b as a two-way conditional with the given taken and
// fallthrough successors (pass nil for either to leave it unset).
func (b *Block) SetConditional(taken, fallthrough_ *Block) {
	b.TakenID, b.FallthroughID = -1, -1
	if taken != nil {
		b.TakenID = taken.BlockID
	}
	if fallthrough_ != nil {
		b.FallthroughID = fallthrough_.BlockID
	}
}

func (b *Block) ID() int            { return b.BlockID }
func (b *Block) IsEntryPoint() bool { return b.Entry }
func (b *Block) IsTerminal() bool   { return b.Terminal }

func (b *Block) NumNonPseudoInstructions() int { return b.NumNonPseudo }
func (b *Block) NumCalls() int                 { return b.Calls }

func (b *Block) OriginalSize() uint64 { return b.OrigSize }
func (b *Block) InputOffset() uint64  { return b.InOffset }

func (b *Block) ExecutionCount() uint64     { return b.Exec }
func (b *Block) SetExecutionCount(v uint64) { b.Exec = v }

func (b *Block) Successor(blockID int) (*cfgmodel.BranchInfo, bool) {
	info, ok := b.succs[blockID]
	return info, ok
}

func (b *Block) BranchInfo(blockID int) *cfgmodel.BranchInfo {
	if info, ok := b.succs[blockID]; ok {
		return info
	}
	if b.succs == nil {
		b.succs = make(map[int]*cfgmodel.BranchInfo)
	}
	info := &cfgmodel.BranchInfo{}
	b.succs[blockID] = info
	b.succOrder = append(b.succOrder, blockID)
	return info
}

func (b *Block) ConditionalSuccessor(taken bool) (cfgmodel.BasicBlock, bool) {
	id := b.FallthroughID
	if taken {
		id = b.TakenID
	}
	if id < 0 {
		return nil, false
	}
	for _, blk := range b.fn.Blocks {
		if blk.BlockID == id {
			return blk, true
		}
	}
	return nil, false
}

func (b *Block) Successors() []cfgmodel.BasicBlock {
	out := make([]cfgmodel.BasicBlock, 0, len(b.succOrder))
	for _, id := range b.succOrder {
		for _, blk := range b.fn.Blocks {
			if blk.BlockID == id {
				out = append(out, blk)
				break
			}
		}
	}
	return out
}

// Instruction is a fake cfgmodel.Instruction.
type Instruction struct {
	Call             bool
	IndirectCallFlag bool
	IndirectBranch   bool
	CondTailCall     bool

	scalars     map[string]uint64
	callProfile []cfgmodel.CallProfileEntry
	hasProfile  bool
}

func (i *Instruction) IsCall() bool              { return i.Call }
func (i *Instruction) IsIndirectCall() bool      { return i.IndirectCallFlag }
func (i *Instruction) IsIndirectBranch() bool    { return i.IndirectBranch }
func (i *Instruction) ConditionalTailCall() bool { return i.CondTailCall }

func (i *Instruction) HasAnnotation(name string) bool {
	if name == "CallProfile" {
		return i.hasProfile
	}
	_, ok := i.scalars[name]
	return ok
}

func (i *Instruction) SetScalarAnnotation(name string, value uint64) bool {
	if i.scalars == nil {
		i.scalars = make(map[string]uint64)
	}
	if _, exists := i.scalars[name]; exists {
		return false
	}
	i.scalars[name] = value
	return true
}

// ScalarAnnotation exposes a set scalar for assertions in tests.
func (i *Instruction) ScalarAnnotation(name string) (uint64, bool) {
	v, ok := i.scalars[name]
	return v, ok
}

func (i *Instruction) AppendCallProfile(entry cfgmodel.CallProfileEntry) {
	i.callProfile = append(i.callProfile, entry)
	i.hasProfile = true
}

// CallProfile exposes the accumulated list for assertions in tests.
func (i *Instruction) CallProfile() []cfgmodel.CallProfileEntry { return i.callProfile }
