package similarity

import (
	"testing"

	"github.com/lucmann/llvm-project/internal/cfgmodel"
	"github.com/lucmann/llvm-project/internal/cfgmodel/cfgmodeltest"
	"github.com/lucmann/llvm-project/internal/matcher"
	"github.com/lucmann/llvm-project/internal/profile"
)

func fourBlockFunction(name string) *cfgmodeltest.Function {
	blocks := make([]*cfgmodeltest.Block, 4)
	for i := range blocks {
		blocks[i] = cfgmodeltest.NewBlock(i, 1)
	}
	return cfgmodeltest.NewFunction(name, blocks...)
}

// TestMatchWithinThreshold exercises scenario 6: ns::bar / ns::baz at edit
// distance 1, same block count, no hash match.
func TestMatchWithinThreshold(t *testing.T) {
	bf := fourBlockFunction("_ZN2ns3bazEv") // ns::baz()
	bc := &cfgmodeltest.Context{Funcs: []*cfgmodeltest.Function{bf}}

	doc := &profile.Document{
		Functions: []*profile.Function{
			{Id: 1, Name: "_ZN2ns3barEv", NumBasicBlocks: 4}, // ns::bar()
		},
	}
	tables := matcher.NewTables(len(doc.Functions))

	stats := Run(bc, doc, tables, Options{NameSimilarityThreshold: 2})

	if stats.MatchedWithNameSimilarity != 1 {
		t.Fatalf("MatchedWithNameSimilarity = %d, want 1", stats.MatchedWithNameSimilarity)
	}
	if tables.YamlProfileToFunction[1] != cfgmodel.BinaryFunction(bf) {
		t.Error("expected bar's record to resolve to baz's function")
	}
}

func TestDisabledByZeroThreshold(t *testing.T) {
	bf := fourBlockFunction("_ZN2ns3bazEv")
	bc := &cfgmodeltest.Context{Funcs: []*cfgmodeltest.Function{bf}}
	doc := &profile.Document{
		Functions: []*profile.Function{{Id: 1, Name: "_ZN2ns3barEv", NumBasicBlocks: 4}},
	}
	tables := matcher.NewTables(len(doc.Functions))

	stats := Run(bc, doc, tables, Options{NameSimilarityThreshold: 0})
	if stats.MatchedWithNameSimilarity != 0 {
		t.Error("expected the similarity stage to be a no-op when threshold is 0")
	}
}

func TestNoMatchAcrossNamespaces(t *testing.T) {
	bf := fourBlockFunction("_ZN5other3bazEv") // other::baz()
	bc := &cfgmodeltest.Context{Funcs: []*cfgmodeltest.Function{bf}}
	doc := &profile.Document{
		Functions: []*profile.Function{{Id: 1, Name: "_ZN2ns3barEv", NumBasicBlocks: 4}},
	}
	tables := matcher.NewTables(len(doc.Functions))

	stats := Run(bc, doc, tables, Options{NameSimilarityThreshold: 100})
	if stats.MatchedWithNameSimilarity != 0 {
		t.Error("expected no match across different namespaces even with a permissive threshold")
	}
}

func TestEditDistance(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"bar", "baz", 1},
		{"", "abc", 3},
		{"same", "same", 0},
		{"kitten", "sitting", 3},
	}
	for _, c := range cases {
		if got := editDistance(c.a, c.b); got != c.want {
			t.Errorf("editDistance(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}
