package elfbin

import "github.com/lucmann/llvm-project/internal/cfgmodel"

// Instruction wraps one decoded x86asm.Inst with the call-capability
// predicates and annotation bag cfgmodel.Instruction requires.
type Instruction struct {
	offset uint64 // byte offset within the function
	length int

	isCall           bool
	isIndirectCall   bool
	isIndirectBranch bool
	isCondTailCall   bool

	scalars     map[string]uint64
	callProfile []cfgmodel.CallProfileEntry
	hasCallProf bool
}

func (i *Instruction) IsCall() bool             { return i.isCall }
func (i *Instruction) IsIndirectCall() bool     { return i.isIndirectCall }
func (i *Instruction) IsIndirectBranch() bool   { return i.isIndirectBranch }
func (i *Instruction) ConditionalTailCall() bool { return i.isCondTailCall }

func (i *Instruction) HasAnnotation(name string) bool {
	if name == "CallProfile" {
		return i.hasCallProf
	}
	_, ok := i.scalars[name]
	return ok
}

// SetScalarAnnotation sets a named scalar annotation, refusing to overwrite
// one already set. Reports false on the duplicate so callers can warn.
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

func (i *Instruction) AppendCallProfile(entry cfgmodel.CallProfileEntry) {
	i.callProfile = append(i.callProfile, entry)
	i.hasCallProf = true
}
