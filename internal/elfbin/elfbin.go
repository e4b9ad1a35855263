// Package elfbin is a concrete cfgmodel.BinaryContext built from a real
// x86-64 ELF file: it loads symbols with debug/elf, disassembles each
// function's byte range with golang.org/x/arch/x86/x86asm, and builds a CFG
// per function with a leader/partition/successor pass over the decoded
// instruction stream.
package elfbin

import (
	"debug/elf"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/ianlancetaylor/demangle"

	"github.com/lucmann/llvm-project/internal/cfgmodel"
)

var (
	ErrNotELF    = errors.New("elfbin: not an ELF file")
	ErrNotAMD64  = errors.New("elfbin: not x86-64 (EM_X86_64)")
	ErrNot64Bit  = errors.New("elfbin: not 64-bit ELF")
	ErrNoSection = errors.New("elfbin: no section covers address")
)

// Context is a cfgmodel.BinaryContext over one ELF file's functions.
type Context struct {
	elf *elf.File

	byName map[string]*Function
	all    []cfgmodel.BinaryFunction
	stats  cfgmodel.Stats
}

// Open loads path, validates it is a 64-bit x86-64 ELF object, and
// disassembles every sized FUNC symbol into a BinaryFunction with a built
// CFG.
func Open(path string) (*Context, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("elfbin: open: %w", err)
	}
	defer f.Close()

	ef, err := elf.NewFile(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotELF, err)
	}
	defer ef.Close()

	if ef.Class != elf.ELFCLASS64 {
		return nil, ErrNot64Bit
	}
	if ef.Machine != elf.EM_X86_64 {
		return nil, ErrNotAMD64
	}

	syms, err := ef.Symbols()
	if err != nil {
		return nil, fmt.Errorf("elfbin: symtab: %w", err)
	}

	ctx := &Context{elf: ef, byName: make(map[string]*Function)}

	// Group aliases (multiple symbols at the same address, e.g. multi-entry
	// or weak/strong pairs) before disassembling, so a function's Names()
	// reflects every alias rather than just the first symbol seen.
	byAddr := make(map[uint64]*Function)
	order := make([]uint64, 0)

	for _, s := range syms {
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC || s.Size == 0 {
			continue
		}
		code, base, err := readCode(ef, s.Value, s.Size)
		if err != nil {
			continue
		}

		fn, ok := byAddr[s.Value]
		if !ok {
			fn = &Function{
				entryAddr:    s.Value,
				code:         code,
				codeBase:     base,
				instByOffset: make(map[uint64]*Instruction),
			}
			byAddr[s.Value] = fn
			order = append(order, s.Value)
		}
		fn.names = append(fn.names, s.Name)
		ctx.byName[s.Name] = fn
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	for _, addr := range order {
		fn := byAddr[addr]
		fn.demangled = demangleName(fn.names[0])
		fn.buildCFG()
		ctx.all = append(ctx.all, fn)
	}

	return ctx, nil
}

func demangleName(mangled string) string {
	if s, err := demangle.ToString(mangled, demangle.NoParams); err == nil {
		return s
	}
	return mangled
}

// readCode returns the bytes backing a symbol's address range and the
// virtual address those bytes start at, by locating the covering section.
func readCode(ef *elf.File, addr, size uint64) ([]byte, uint64, error) {
	for _, sec := range ef.Sections {
		if sec.Addr == 0 || addr < sec.Addr || addr+size > sec.Addr+sec.Size {
			continue
		}
		data, err := sec.Data()
		if err != nil {
			return nil, 0, err
		}
		off := addr - sec.Addr
		if off+size > uint64(len(data)) {
			return nil, 0, fmt.Errorf("%w: 0x%x", ErrNoSection, addr)
		}
		return data[off : off+size], addr, nil
	}
	return nil, 0, fmt.Errorf("%w: 0x%x", ErrNoSection, addr)
}

// FunctionByName implements cfgmodel.BinaryContext.
func (c *Context) FunctionByName(name string) (cfgmodel.BinaryFunction, bool) {
	fn, ok := c.byName[name]
	if !ok {
		return nil, false
	}
	return fn, true
}

// AllFunctions implements cfgmodel.BinaryContext.
func (c *Context) AllFunctions() []cfgmodel.BinaryFunction {
	return c.all
}

// Stats implements cfgmodel.BinaryContext.
func (c *Context) Stats() *cfgmodel.Stats {
	return &c.stats
}

// Close releases the underlying ELF file's resources.
func (c *Context) Close() error {
	return c.elf.Close()
}
