package elfbin

import (
	"sort"

	"golang.org/x/arch/x86/x86asm"

	"github.com/lucmann/llvm-project/internal/cfgmodel"
)

// Function is a cfgmodel.BinaryFunction recovered from an ELF symbol table
// entry and disassembled with x86asm.
type Function struct {
	entryAddr uint64
	code      []byte
	codeBase  uint64

	names     []string
	demangled string

	insts []decoded

	blocks     []*Block
	blockByID  map[int]*Block
	dfsOrder   []cfgmodel.BasicBlock
	layout     []cfgmodel.BasicBlock

	instByOffset map[uint64]*Instruction

	hash    uint64
	hasHash bool

	execCount      uint64
	rawBranchCount uint64

	hasProfile bool
	ignored    bool

	callSites []cfgmodel.CallSiteInfo
}

// decoded is one disassembled instruction with its function-relative
// offset and x86asm decode result.
type decoded struct {
	offset uint64
	length int
	op     x86asm.Op
	args   x86asm.Args
}

func (f *Function) Names() []string       { return f.names }
func (f *Function) DemangledName() string { return f.demangled }

func (f *Function) Size() int   { return len(f.blocks) }
func (f *Function) Empty() bool { return len(f.insts) == 0 }

func (f *Function) Hash() (uint64, bool) { return f.hash, f.hasHash }
func (f *Function) SetHash(v uint64)     { f.hash, f.hasHash = v, true }

func (f *Function) DFS() []cfgmodel.BasicBlock    { return f.dfsOrder }
func (f *Function) Layout() []cfgmodel.BasicBlock { return f.layout }

func (f *Function) InstructionAtOffset(offset uint64) (cfgmodel.Instruction, bool) {
	inst, ok := f.instByOffset[offset]
	if !ok {
		return nil, false
	}
	return inst, true
}

func (f *Function) SymbolForEntryID(discriminator uint32) cfgmodel.Symbol {
	if int(discriminator) < len(f.names) {
		return cfgmodel.Symbol(f.names[discriminator])
	}
	return cfgmodel.Symbol(f.names[0])
}

func (f *Function) CallSites() []cfgmodel.CallSiteInfo { return f.callSites }

func (f *Function) AppendCallSite(info cfgmodel.CallSiteInfo) {
	f.callSites = append(f.callSites, info)
}

func (f *Function) ExecutionCount() uint64     { return f.execCount }
func (f *Function) SetExecutionCount(v uint64) { f.execCount = v }
func (f *Function) SetRawBranchCount(v uint64) { f.rawBranchCount = v }

func (f *Function) HasProfile() bool { return f.hasProfile }
func (f *Function) MarkProfiled(flags uint32) {
	f.hasProfile = true
	_ = flags // no per-function flag bits are tracked beyond the boolean today
}
func (f *Function) SetIgnored() { f.ignored = true }

// disassemble decodes f.code into f.insts, advancing by each instruction's
// decoded length and falling back to a single-byte step on a decode error
// so a bad instruction never wedges the loop.
func (f *Function) disassemble() {
	for off := 0; off < len(f.code); {
		inst, err := x86asm.Decode(f.code[off:], 64)
		length := inst.Len
		if err != nil || length <= 0 {
			length = 1
		}
		if err == nil {
			f.insts = append(f.insts, decoded{
				offset: uint64(off),
				length: length,
				op:     inst.Op,
				args:   inst.Args,
			})
		}
		off += length
	}
}

// buildCFG runs a leader/partition/successor pass: calls never terminate a
// block (they return to the next instruction) while every control-transfer
// op (conditional or unconditional jump, return) does.
func (f *Function) buildCFG() {
	f.disassemble()
	f.instByOffset = make(map[uint64]*Instruction, len(f.insts))
	if len(f.insts) == 0 {
		return
	}

	funcSize := uint64(len(f.code))
	offToIdx := make(map[uint64]int, len(f.insts))
	for i, in := range f.insts {
		offToIdx[in.offset] = i
	}

	// Pass 1: leaders.
	leaders := map[int]bool{0: true}
	for i, in := range f.insts {
		br := classify(in)
		if !br.isBranch {
			continue
		}
		if i+1 < len(f.insts) {
			leaders[i+1] = true
		}
		if br.hasTarget && br.target < funcSize {
			if idx, ok := offToIdx[br.target]; ok {
				leaders[idx] = true
			}
		}
	}

	sorted := make([]int, 0, len(leaders))
	for idx := range leaders {
		sorted = append(sorted, idx)
	}
	sort.Ints(sorted)

	// Pass 2: partition.
	f.blockByID = make(map[int]*Block, len(sorted))
	leaderToBlock := make(map[int]int, len(sorted))
	for i, start := range sorted {
		end := len(f.insts)
		if i+1 < len(sorted) {
			end = sorted[i+1]
		}
		numCalls := 0
		for _, in := range f.insts[start:end] {
			if classify(in).isCall {
				numCalls++
			}
		}
		b := &Block{
			fn:              f,
			id:              i,
			isEntry:         start == 0,
			startInsn:       start,
			endInsn:         end,
			inputOffset:     f.insts[start].offset,
			numCalls:        numCalls,
			condTaken:       -1,
			condFallthrough: -1,
		}
		if end > start {
			last := f.insts[end-1]
			b.originalSize = last.offset + uint64(last.length) - f.insts[start].offset
		}
		f.blocks = append(f.blocks, b)
		f.blockByID[i] = b
		leaderToBlock[start] = i
	}

	// Pass 3: successors.
	for _, b := range f.blocks {
		if b.endInsn <= b.startInsn {
			continue
		}
		last := f.insts[b.endInsn-1]
		br := classify(last)

		for idx := b.startInsn; idx < b.endInsn; idx++ {
			f.registerInstruction(f.insts[idx], br, idx == b.endInsn-1)
		}

		if !br.isBranch {
			if next, ok := leaderToBlock[b.endInsn]; ok {
				b.BranchInfo(next)
			}
			continue
		}
		if br.isRet {
			b.isTerm = true
			continue
		}

		targetBlock := -1
		if br.hasTarget && br.target < funcSize {
			if idx, ok := offToIdx[br.target]; ok {
				if bid, ok := leaderToBlock[idx]; ok {
					targetBlock = bid
				}
			}
		}

		if br.conditional {
			if targetBlock >= 0 {
				b.condTaken = targetBlock
				b.BranchInfo(targetBlock)
			}
			if next, ok := leaderToBlock[b.endInsn]; ok {
				b.condFallthrough = next
				b.BranchInfo(next)
			}
			continue
		}

		// Unconditional.
		if br.indirect {
			b.isTerm = true
			continue
		}
		if targetBlock >= 0 {
			b.BranchInfo(targetBlock)
		} else {
			// Direct branch outside the function: a tail call, terminal.
			b.isTerm = true
		}
	}

	f.layout = make([]cfgmodel.BasicBlock, len(f.blocks))
	for i, b := range f.blocks {
		f.layout[i] = b
	}
	f.dfsOrder = f.computeDFS()
}

// registerInstruction wraps one decoded instruction as a cfgmodel.Instruction
// and records its call-capability predicates. last reports whether in is
// the block-terminating instruction br was classified from; the CTC/branch
// predicates only ever apply to that one instruction.
func (f *Function) registerInstruction(in decoded, br branchInfo, last bool) {
	inst := &Instruction{offset: in.offset, length: in.length}
	if last {
		inst.isCall = br.isCall
		inst.isIndirectCall = br.isCall && br.indirect
		inst.isIndirectBranch = br.isBranch && !br.isCall && !br.isRet && br.indirect
		inst.isCondTailCall = br.conditional && br.hasTarget && br.target >= uint64(len(f.code))
	} else if classify(in).isCall {
		inst.isCall = true
		inst.isIndirectCall = classify(in).indirect
	}
	f.instByOffset[in.offset] = inst
}

func (f *Function) computeDFS() []cfgmodel.BasicBlock {
	if len(f.blocks) == 0 {
		return nil
	}
	visited := make(map[int]bool, len(f.blocks))
	var order []cfgmodel.BasicBlock
	var visit func(b *Block)
	visit = func(b *Block) {
		if visited[b.id] {
			return
		}
		visited[b.id] = true
		order = append(order, b)
		for _, id := range b.succOrder {
			visit(f.blockByID[id])
		}
	}
	visit(f.blocks[0])
	// Any block unreachable from the entry in this static view (e.g. cold
	// landing pads) is appended in layout order so DFS() never silently
	// drops a block the profile might reference.
	for _, b := range f.blocks {
		visit(b)
	}
	return order
}

