package matcher

import (
	"testing"

	"github.com/lucmann/llvm-project/internal/cfgmodel"
	"github.com/lucmann/llvm-project/internal/cfgmodel/cfgmodeltest"
	"github.com/lucmann/llvm-project/internal/nameindex"
	"github.com/lucmann/llvm-project/internal/profile"
)

func oneBlockFunction(name string) *cfgmodeltest.Function {
	return cfgmodeltest.NewFunction(name, cfgmodeltest.NewBlock(0, 1))
}

// TestStageOrderExactBeforeHash checks that a record matching by exact name
// and hash is claimed in S2 even though S3 would also have matched it by
// hash alone.
func TestStageOrderExactBeforeHash(t *testing.T) {
	f := oneBlockFunction("f")
	bc := &cfgmodeltest.Context{Funcs: []*cfgmodeltest.Function{f}}

	doc := &profile.Document{
		Header:    profile.Header{HashFunction: profile.HashStd},
		Functions: []*profile.Function{{Id: 1, Name: "f", NumBasicBlocks: 1}},
	}
	// No hash is set on the function: IgnoreHash sidesteps the hash in S2
	// entirely and compares shape, which is sufficient to exercise stage
	// ordering without needing the real algorithm wired up in this test.
	opts := Options{IgnoreHash: true, MatchWithFunctionHash: true}

	ix := nameindex.Build(bc, doc)
	tables := NewTables(len(doc.Functions))
	Preliminary(doc, ix, nil)

	stats := Run(bc, doc, ix, tables, opts)

	if stats.MatchedWithExactName != 1 {
		t.Errorf("MatchedWithExactName = %d, want 1", stats.MatchedWithExactName)
	}
	if stats.MatchedWithHash != 0 {
		t.Errorf("MatchedWithHash = %d, want 0 (S2 should have already claimed the pair)", stats.MatchedWithHash)
	}
	if !doc.Functions[0].Used {
		t.Error("expected profile record to be marked Used")
	}
	if tables.YamlProfileToFunction[1] != cfgmodel.BinaryFunction(f) {
		t.Error("expected YamlProfileToFunction[1] to resolve to f")
	}
}

func TestHashOnlyMatchesRenamedFunction(t *testing.T) {
	f := oneBlockFunction("f_new")
	f.HashValue, f.HashSet = 42, true
	bc := &cfgmodeltest.Context{Funcs: []*cfgmodeltest.Function{f}}

	doc := &profile.Document{
		Header:    profile.Header{HashFunction: profile.HashStd},
		Functions: []*profile.Function{{Id: 1, Name: "f_old", Hash: 42, NumBasicBlocks: 1}},
	}

	ix := nameindex.Build(bc, doc) // no name-lookup hit: f_old != f_new
	tables := NewTables(len(doc.Functions))

	withoutHashMatching := Run(bc, doc, ix, tables, Options{})
	if withoutHashMatching.MatchedWithHash != 0 || doc.Functions[0].Used {
		t.Error("expected no match without MatchWithFunctionHash enabled")
	}

	ix2 := nameindex.Build(bc, doc)
	tables2 := NewTables(len(doc.Functions))
	stats := Run(bc, doc, ix2, tables2, Options{MatchWithFunctionHash: true})
	if stats.MatchedWithHash != 1 {
		t.Errorf("MatchedWithHash = %d, want 1", stats.MatchedWithHash)
	}
	if !doc.Functions[0].Used {
		t.Error("expected the renamed function's record to be marked Used")
	}
}

func TestLTOCommonNameSingleCandidateFallback(t *testing.T) {
	f := oneBlockFunction("foo.llvm.222")
	bc := &cfgmodeltest.Context{Funcs: []*cfgmodeltest.Function{f}}

	doc := &profile.Document{
		Functions: []*profile.Function{{Id: 1, Name: "foo.llvm.111", NumBasicBlocks: 99}},
	}

	ix := nameindex.Build(bc, doc)
	tables := NewTables(len(doc.Functions))
	stats := Run(bc, doc, ix, tables, Options{IgnoreHash: true})

	if stats.MatchedWithLTOCommonName != 1 {
		t.Errorf("MatchedWithLTOCommonName = %d, want 1 (single-candidate fallback should bind unconditionally)", stats.MatchedWithLTOCommonName)
	}
}

func TestResidualRespectsAlreadyClaimed(t *testing.T) {
	// S2 binds f; g's record fails S2 on shape and S5 binds it anyway,
	// while f keeps the binding S2 gave it.
	f := oneBlockFunction("f")
	g := oneBlockFunction("g")
	bc := &cfgmodeltest.Context{Funcs: []*cfgmodeltest.Function{f, g}}

	doc := &profile.Document{
		Functions: []*profile.Function{
			{Id: 1, Name: "f", NumBasicBlocks: 1}, // matches in S2
			{Id: 2, Name: "g", NumBasicBlocks: 5}, // shape mismatch, falls to S5
		},
	}

	ix := nameindex.Build(bc, doc)
	tables := NewTables(len(doc.Functions))
	Run(bc, doc, ix, tables, Options{IgnoreHash: true})

	if tables.YamlProfileToFunction[1] != cfgmodel.BinaryFunction(f) {
		t.Error("expected f claimed via S2")
	}
	if tables.YamlProfileToFunction[2] != cfgmodel.BinaryFunction(g) {
		t.Error("expected g claimed via S5 residual binding despite shape mismatch")
	}
	if !tables.Claimed(f) || !tables.Claimed(g) {
		t.Error("expected both functions marked claimed")
	}
}

func TestPreliminaryDropsDuplicate(t *testing.T) {
	// Two profile records resolve by name to the same binary function slot
	// (the "(*N)" disambiguator case): the second must be dropped rather
	// than silently overwriting the first's preliminary count.
	f := oneBlockFunction("f")

	doc := &profile.Document{
		Functions: []*profile.Function{
			{Id: 1, Name: "f", ExecCount: 10},
			{Id: 2, Name: "f(*2)", ExecCount: 20},
		},
	}
	ix := &nameindex.Index{ProfileBFs: []cfgmodel.BinaryFunction{f, f}}

	var dropped string
	Preliminary(doc, ix, func(name string) { dropped = name })

	if dropped != "f(*2)" {
		t.Errorf("expected duplicate callback for %q, got %q", "f(*2)", dropped)
	}
	if ix.ProfileBFs[0] == nil {
		t.Error("expected the first record's slot to survive")
	}
	if ix.ProfileBFs[1] != nil {
		t.Error("expected the second record's slot to be nulled out after a duplicate")
	}
	if f.ExecCount != 10 {
		t.Errorf("ExecCount = %d, want 10 (from the first record, not overwritten by the dropped second)", f.ExecCount)
	}
}

func TestPreliminaryAllowsDistinctFunctions(t *testing.T) {
	// Sanity check that the duplicate-tracking set is keyed by binary
	// function identity, not by slot index: two distinct functions each
	// get their own preliminary count.
	f := oneBlockFunction("f")
	g := oneBlockFunction("g")

	doc := &profile.Document{
		Functions: []*profile.Function{
			{Id: 1, Name: "f", ExecCount: 10},
			{Id: 2, Name: "g", ExecCount: 20},
		},
	}
	ix := &nameindex.Index{ProfileBFs: []cfgmodel.BinaryFunction{f, g}}

	var dropped string
	Preliminary(doc, ix, func(name string) { dropped = name })

	if dropped != "" {
		t.Errorf("unexpected duplicate callback for %q", dropped)
	}
	if f.ExecCount != 10 || g.ExecCount != 20 {
		t.Errorf("ExecCount = (%d, %d), want (10, 20)", f.ExecCount, g.ExecCount)
	}
}
