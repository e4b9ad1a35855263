package reader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lucmann/llvm-project/internal/cfgmodel/cfgmodeltest"
)

func writeProfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPreprocessProfileRejectsBadVersion(t *testing.T) {
	path := writeProfile(t, "---\nheader:\n  profile-version: 2\nfunctions: []\n")
	bc := &cfgmodeltest.Context{}
	r := New(Options{})

	err := r.PreprocessProfile(path, bc)
	if err == nil {
		t.Fatal("expected an error for an unsupported profile version")
	}
}

func TestPreprocessProfileRejectsMultiEvent(t *testing.T) {
	path := writeProfile(t, "---\nheader:\n  profile-version: 1\n  event-names: cycles,instructions\nfunctions: []\n")
	bc := &cfgmodeltest.Context{}
	r := New(Options{})

	err := r.PreprocessProfile(path, bc)
	if err == nil {
		t.Fatal("expected an error for a multi-event profile")
	}
}

func TestEndToEndMatchAndPropagate(t *testing.T) {
	b0 := cfgmodeltest.NewBlock(0, 1)
	b1 := cfgmodeltest.NewBlock(1, 1)
	b0.AddEdge(b1)
	bf := cfgmodeltest.NewFunction("f", b0, b1)
	bc := &cfgmodeltest.Context{Funcs: []*cfgmodeltest.Function{bf}}

	doc := `---
header:
  profile-version: 1
  event-names: branches
functions:
  - name: f
    id: 1
    hash: 0
    nblocks: 2
    exec: 5
    blocks:
      - bid: 0
        insns: 50
        succ:
          - bid: 1
            cnt: 50
      - bid: 1
        insns: 50
`
	path := writeProfile(t, doc)
	r := New(Options{IgnoreHash: true})

	if err := r.PreprocessProfile(path, bc); err != nil {
		t.Fatalf("PreprocessProfile: %v", err)
	}
	stats, err := r.ReadProfile(bc)
	if err != nil {
		t.Fatalf("ReadProfile: %v", err)
	}

	if stats.MatchedWithExactName != 1 {
		t.Errorf("MatchedWithExactName = %d, want 1", stats.MatchedWithExactName)
	}
	if bf.ExecutionCount() != 5 {
		t.Errorf("ExecutionCount = %d, want 5", bf.ExecutionCount())
	}
	if bf.RawBranchCount != 50 {
		t.Errorf("RawBranchCount = %d, want 50", bf.RawBranchCount)
	}
	if !bf.Profiled {
		t.Error("expected bf to be marked profiled")
	}
	if !r.MayHaveProfileData(bf) {
		t.Error("expected MayHaveProfileData to be true for a matched function")
	}
	if !r.UsesEvent("branches") {
		t.Error("expected UsesEvent(\"branches\") to be true")
	}
	if r.UsesEvent("cycles") {
		t.Error("expected UsesEvent(\"cycles\") to be false")
	}
}

func TestReadProfileBeforePreprocessErrors(t *testing.T) {
	r := New(Options{})
	bc := &cfgmodeltest.Context{}
	if _, err := r.ReadProfile(bc); err == nil {
		t.Fatal("expected an error when ReadProfile is called before PreprocessProfile")
	}
}
