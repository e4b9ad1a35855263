// Package matcher implements the profile-attachment core's Matcher
// (component C): the ordered cascade of strategies — exact name+hash, hash
// only, LTO common name, and residual by position — that binds profile
// records to binary functions. Each stage is deliberately not fused with
// the others: which stage claims a pair changes which counter increments,
// and callers depend on that.
package matcher

import (
	"github.com/lucmann/llvm-project/internal/cfgmodel"
	"github.com/lucmann/llvm-project/internal/fingerprint"
	"github.com/lucmann/llvm-project/internal/nameindex"
	"github.com/lucmann/llvm-project/internal/profile"
)

// Options mirrors the subset of the reader's configuration surface
// relevant to matching.
type Options struct {
	// IgnoreHash skips hash computation/comparison; block count alone
	// decides an "exact" match.
	IgnoreHash bool
	// MatchWithFunctionHash enables stage S3 and computes hashes for every
	// binary function rather than just the name-matched shortlist.
	MatchWithFunctionHash bool
	// ProfileUseDFS overrides the header's IsDFSOrder.
	ProfileUseDFS bool
}

// Stats accumulates the end-of-run match counters.
type Stats struct {
	MatchedWithExactName     uint64
	MatchedWithHash          uint64
	MatchedWithLTOCommonName uint64
}

// Tables holds the matcher's claim bookkeeping, owned by the reader across
// the whole run.
type Tables struct {
	// YamlProfileToFunction is indexed by profile.Function.Id, not slice
	// position, and sized len(Functions)+1 since ids are 1-based; slot 0 is
	// never populated.
	YamlProfileToFunction []cfgmodel.BinaryFunction
	ProfiledFunctions     map[cfgmodel.BinaryFunction]struct{}
}

// NewTables allocates a Tables sized for numFunctions profile records.
func NewTables(numFunctions int) *Tables {
	return &Tables{
		YamlProfileToFunction: make([]cfgmodel.BinaryFunction, numFunctions+1),
		ProfiledFunctions:     make(map[cfgmodel.BinaryFunction]struct{}),
	}
}

// Claimed reports whether bf has already been bound to some profile record.
func (t *Tables) Claimed(bf cfgmodel.BinaryFunction) bool {
	_, ok := t.ProfiledFunctions[bf]
	return ok
}

// claim is the cascade's single binding primitive: every stage that
// successfully matches a pair goes through this, and only this.
func claim(t *Tables, yf *profile.Function, bf cfgmodel.BinaryFunction) {
	if int(yf.Id) < len(t.YamlProfileToFunction) {
		t.YamlProfileToFunction[yf.Id] = bf
	}
	yf.Used = true
	t.ProfiledFunctions[bf] = struct{}{}
}

// Claim exposes the binding primitive to the similarity stage (S6), which
// runs after Run and must go through the same bookkeeping.
func (t *Tables) Claim(yf *profile.Function, bf cfgmodel.BinaryFunction) {
	claim(t, yf, bf)
}

// profileMatches is the exact-match predicate shared by stages S2 and S4:
// under IgnoreHash it is shape equality, otherwise it is fingerprint
// equality.
func profileMatches(yf *profile.Function, bf cfgmodel.BinaryFunction, opts Options) bool {
	if opts.IgnoreHash {
		return uint64(bf.Size()) == uint64(yf.NumBasicBlocks)
	}
	h, ok := bf.Hash()
	return ok && h == yf.Hash
}

// Run executes stages S2 through S5 against doc and ix, mutating t in place
// and returning the stage-by-stage match counts. Stage S1 (the preliminary
// name+positional pass) runs during preprocessing, before Run is ever
// called, and stage S6 (similarity) is a separate package invoked
// afterward by the reader.
func Run(bc cfgmodel.BinaryContext, doc *profile.Document, ix *nameindex.Index, t *Tables, opts Options) Stats {
	var stats Stats

	hashFn := doc.Header.HashFunction
	dfs := opts.ProfileUseDFS || doc.Header.IsDFSOrder

	// Hash computation policy: either every binary function (hash-only
	// matching needs a dense map) or just the name-matched shortlist.
	if opts.MatchWithFunctionHash {
		for _, bf := range bc.AllFunctions() {
			fingerprint.Ensure(bf, dfs, hashFn)
		}
	} else if !opts.IgnoreHash {
		for _, bf := range ix.ProfileBFs {
			if bf != nil {
				fingerprint.Ensure(bf, dfs, hashFn)
			}
		}
	}

	// S2: exact name + hash (or shape, under IgnoreHash).
	for i, bf := range ix.ProfileBFs {
		if bf == nil {
			continue
		}
		yf := doc.Functions[i]
		// Clear the preliminary count set during S1; it was provisional
		// and must not leak into a function this stage fails to confirm.
		bf.SetExecutionCount(cfgmodel.CountNoProfile)

		if profileMatches(yf, bf, opts) {
			claim(t, yf, bf)
			stats.MatchedWithExactName++
		}
	}

	// S3: hash only. Requires a dense Hash→BinaryFunction map; the last write
	// for a colliding hash wins arbitrarily, and the claim check (not the
	// map build) is what prevents double-binding an already-claimed
	// function.
	if opts.MatchWithFunctionHash {
		strictHashToBF := make(map[uint64]cfgmodel.BinaryFunction, len(bc.AllFunctions()))
		for _, bf := range bc.AllFunctions() {
			if h, ok := bf.Hash(); ok {
				strictHashToBF[h] = bf
			}
		}
		for _, yf := range doc.Functions {
			if yf.Used {
				continue
			}
			bf, ok := strictHashToBF[yf.Hash]
			if !ok || t.Claimed(bf) {
				continue
			}
			claim(t, yf, bf)
			stats.MatchedWithHash++
		}
	}

	// S4: LTO common name. Symbols privatized by LTO get suffixed with a
	// per-TU hash; bucket both sides by the prefix that precedes it and
	// match within the bucket.
	for common, lto := range ix.LTOCommonNameMap {
		functions, ok := ix.LTOCommonNameFunctionMap[common]
		if !ok {
			continue
		}

		matched := false
		for _, yf := range lto {
			if yf.Used {
				continue
			}
			for _, bf := range functions {
				if t.Claimed(bf) {
					continue
				}
				if profileMatches(yf, bf, opts) {
					claim(t, yf, bf)
					stats.MatchedWithLTOCommonName++
					matched = true
					break
				}
			}
			if matched {
				break
			}
		}

		// If exactly one candidate exists on each side and neither is
		// already matched, bind them even without a fingerprint match —
		// there is nothing else either could be.
		if !matched && len(lto) == 1 && len(functions) == 1 && !lto[0].Used {
			onlyBF := functions[0]
			if !t.Claimed(onlyBF) {
				claim(t, lto[0], onlyBF)
				stats.MatchedWithLTOCommonName++
			}
		}
	}

	// S5: residual by position. Name-matched pairs that S2 rejected (shape
	// mismatch) are bound anyway; downstream stale-profile inference is
	// expected to reconcile the mismatch. Explicitly re-checks Claimed: a
	// binary function already bound via S3/S4 must not be claimed a second
	// time here just because it also lines up by position.
	for i, bf := range ix.ProfileBFs {
		if bf == nil {
			continue
		}
		yf := doc.Functions[i]
		if yf.Used || t.Claimed(bf) {
			continue
		}
		claim(t, yf, bf)
	}

	return stats
}

// Preliminary runs stage S1: for each name-matched pair, provisionally set
// the binary function's execution count from the profile record. A binary
// function that was already assigned earlier in this same pass (because two
// profile records resolved to the same name) drops the second record with a
// warning and the pointer is nulled in ix.ProfileBFs so later stages skip
// it. This is tracked with a set local to the pass rather than
// bf.HasProfile(): that flag is only ever set by a confirmed MarkProfiled
// call later in the cascade, long after this preliminary assignment runs,
// so it can never see the duplicate here.
func Preliminary(doc *profile.Document, ix *nameindex.Index, onDuplicate func(name string)) {
	assigned := make(map[cfgmodel.BinaryFunction]struct{}, len(ix.ProfileBFs))
	for i, bf := range ix.ProfileBFs {
		if bf == nil {
			continue
		}
		yf := doc.Functions[i]
		if _, dup := assigned[bf]; dup {
			if onDuplicate != nil {
				onDuplicate(yf.Name)
			}
			ix.ProfileBFs[i] = nil
			continue
		}
		assigned[bf] = struct{}{}
		bf.SetExecutionCount(yf.ExecCount)
	}
}
