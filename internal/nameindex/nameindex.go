// Package nameindex implements the profile-attachment core's Name Index
// (component A): it maps symbol spellings and LTO common-name prefixes to
// candidates on both the profile side and the binary side, built once in
// preprocess and consulted by every later matcher stage.
package nameindex

import (
	"strings"

	"github.com/lucmann/llvm-project/internal/cfgmodel"
	"github.com/lucmann/llvm-project/internal/profile"
)

// Index holds the lookup tables built during preprocessing.
type Index struct {
	// ProfileFunctionNames is the set of cleaned profile names (the
	// "(*…" disambiguator already stripped).
	ProfileFunctionNames map[string]struct{}

	// ProfileBFs[i] is the name-lookup result for doc.Functions[i]; nil on
	// miss. Index-aligned with the document's Functions slice.
	ProfileBFs []cfgmodel.BinaryFunction

	// LTOCommonNameMap buckets profile records sharing an LTO common name.
	LTOCommonNameMap map[string][]*profile.Function
	// LTOCommonNameFunctionMap buckets binary functions sharing an LTO
	// common name, first-seen order, deduplicated.
	LTOCommonNameFunctionMap map[string][]cfgmodel.BinaryFunction
}

// CleanName strips a profile name's trailing "(*…" disambiguator, used for
// profiled functions recovered from multiple translation units under the
// same linkage name.
func CleanName(name string) string {
	if i := strings.Index(name, "(*"); i >= 0 {
		return name[:i]
	}
	return name
}

// Build constructs the Name Index from a loaded document and the binary
// context's function set. It performs only lookups; it never mutates the
// document or the binary context.
func Build(bc cfgmodel.BinaryContext, doc *profile.Document) *Index {
	ix := &Index{
		ProfileFunctionNames:     make(map[string]struct{}, len(doc.Functions)),
		ProfileBFs:               make([]cfgmodel.BinaryFunction, len(doc.Functions)),
		LTOCommonNameMap:         make(map[string][]*profile.Function),
		LTOCommonNameFunctionMap: make(map[string][]cfgmodel.BinaryFunction),
	}

	for i, fn := range doc.Functions {
		name := CleanName(fn.Name)
		ix.ProfileFunctionNames[name] = struct{}{}

		if bf, ok := bc.FunctionByName(name); ok {
			ix.ProfileBFs[i] = bf
		}

		if common, ok := LTOCommonName(name); ok {
			ix.LTOCommonNameMap[common] = append(ix.LTOCommonNameMap[common], fn)
		}
	}

	seen := make(map[string]map[cfgmodel.BinaryFunction]struct{})
	for _, bf := range bc.AllFunctions() {
		for _, name := range bf.Names() {
			if common, ok := LTOCommonName(name); ok {
				dup := seen[common]
				if dup == nil {
					dup = make(map[cfgmodel.BinaryFunction]struct{})
					seen[common] = dup
				}
				if _, ok := dup[bf]; ok {
					continue
				}
				dup[bf] = struct{}{}
				ix.LTOCommonNameFunctionMap[common] = append(ix.LTOCommonNameFunctionMap[common], bf)
			}
		}
	}

	return ix
}

// MayHaveProfileData reports whether bf could plausibly be the target of
// some profile record, without running the full matcher. trustHashOnly
// mirrors the match-profile-with-function-hash configuration option: when
// set, every function is considered a candidate because hash-only matching
// (stage S3) does not require any name overlap.
func (ix *Index) MayHaveProfileData(bf cfgmodel.BinaryFunction, trustHashOnly bool) bool {
	if trustHashOnly {
		return true
	}
	for _, name := range bf.Names() {
		if _, ok := ix.ProfileFunctionNames[name]; ok {
			return true
		}
	}
	for _, name := range bf.Names() {
		if common, ok := LTOCommonName(name); ok {
			if _, ok := ix.LTOCommonNameMap[common]; ok {
				return true
			}
		}
	}
	return false
}
