package elfbin

import "golang.org/x/arch/x86/x86asm"

// branchInfo holds the CFG-relevant facts about one instruction, extracted
// from x86asm's decode result: x86's variable-length encoding makes raw
// opcode-bit matching impractical, so this classifier leans on the
// library's decoded Op and Args instead.
type branchInfo struct {
	isBranch    bool // terminates a basic block
	isCall      bool // CALL: does not terminate, returns control
	isRet       bool
	conditional bool
	indirect    bool // target is a register or memory operand, not Rel
	hasTarget   bool
	target      uint64 // function-relative byte offset
}

// classify inspects one decoded instruction and reports its CFG role.
func classify(in decoded) branchInfo {
	switch in.op {
	case x86asm.RET, x86asm.LRET, x86asm.IRET, x86asm.IRETD, x86asm.IRETQ:
		return branchInfo{isBranch: true, isRet: true}

	case x86asm.CALL, x86asm.LCALL:
		bi := branchInfo{isCall: true}
		target, ok := relTarget(in)
		if ok {
			bi.hasTarget = true
			bi.target = target
		} else {
			bi.indirect = true
		}
		return bi

	case x86asm.JMP, x86asm.LJMP:
		bi := branchInfo{isBranch: true}
		target, ok := relTarget(in)
		if ok {
			bi.hasTarget = true
			bi.target = target
		} else {
			bi.indirect = true
		}
		return bi

	case x86asm.JA, x86asm.JAE, x86asm.JB, x86asm.JBE, x86asm.JE, x86asm.JG,
		x86asm.JGE, x86asm.JL, x86asm.JLE, x86asm.JNE, x86asm.JNO, x86asm.JNP,
		x86asm.JNS, x86asm.JO, x86asm.JP, x86asm.JS,
		x86asm.JCXZ, x86asm.JECXZ, x86asm.JRCXZ,
		x86asm.LOOP, x86asm.LOOPE, x86asm.LOOPNE:
		bi := branchInfo{isBranch: true, conditional: true}
		if target, ok := relTarget(in); ok {
			bi.hasTarget = true
			bi.target = target
		}
		return bi

	default:
		return branchInfo{}
	}
}

// relTarget computes the function-relative byte offset a direct
// (Rel-operand) branch or call targets. Indirect forms (Reg, Mem operand)
// return ok=false.
func relTarget(in decoded) (uint64, bool) {
	rel, ok := in.args[0].(x86asm.Rel)
	if !ok {
		return 0, false
	}
	next := int64(in.offset) + int64(in.length)
	t := next + int64(rel)
	if t < 0 {
		return 0, false
	}
	return uint64(t), true
}
