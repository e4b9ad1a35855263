// Package fingerprint computes the 64-bit structural hash (component B's
// "Hash Index" entries are keyed on this value) used to recognize a renamed
// but otherwise identical function across a rebuild.
package fingerprint

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/cespare/xxhash/v2"

	"github.com/lucmann/llvm-project/internal/cfgmodel"
	"github.com/lucmann/llvm-project/internal/profile"
)

// Compute derives a fingerprint from bf's control-flow shape: its block
// count, each block's non-pseudo instruction count, and each block's
// successor structure, walked in DFS or layout order per dfs. Two functions
// with identical shapes hash identically regardless of symbol name, which
// is the whole point — it is what lets the matcher recognize a renamed
// function (stage S3) or bridge an LTO-privatized one (stage S4).
//
// hashFn selects the mixing function: HashXXH3 uses xxhash, HashStd uses
// FNV-1a 64 (see DESIGN.md for why these stand in for xxh3/std::hash).
func Compute(bf cfgmodel.BinaryFunction, dfs bool, hashFn profile.HashFunction) uint64 {
	blocks := bf.Layout()
	if dfs {
		blocks = bf.DFS()
	}

	order := make(map[int]int, len(blocks))
	for i, b := range blocks {
		order[b.ID()] = i
	}

	buf := make([]byte, 0, 16*len(blocks))
	var tmp [8]byte
	appendU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(tmp[:], v)
		buf = append(buf, tmp[:]...)
	}

	for _, b := range blocks {
		appendU64(uint64(b.NumNonPseudoInstructions()))
		appendU64(uint64(b.NumCalls()))
		succs := b.Successors()
		appendU64(uint64(len(succs)))
		for _, s := range succs {
			// Encode the successor as its position in this ordering, not its
			// raw ID, so two structurally identical CFGs hash the same even
			// if block IDs were assigned differently.
			if pos, ok := order[s.ID()]; ok {
				appendU64(uint64(pos))
			} else {
				appendU64(^uint64(0))
			}
		}
	}

	switch hashFn {
	case profile.HashXXH3:
		return xxhash.Sum64(buf)
	default:
		h := fnv.New64a()
		h.Write(buf)
		return h.Sum64()
	}
}

// Ensure returns bf's cached hash, computing and caching it first if
// necessary. Split out from BinaryFunction itself so that interface stays
// narrow; fingerprint computation is this package's job.
func Ensure(bf cfgmodel.BinaryFunction, dfs bool, hashFn profile.HashFunction) uint64 {
	if v, ok := bf.Hash(); ok {
		return v
	}
	v := Compute(bf, dfs, hashFn)
	bf.SetHash(v)
	return v
}
