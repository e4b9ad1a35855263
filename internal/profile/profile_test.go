package profile

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestIsYAML(t *testing.T) {
	yamlPath := writeTemp(t, "---\nheader:\n  profile-version: 1\n")
	ok, err := IsYAML(yamlPath)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("expected IsYAML to report true for a document starting with \"---\\n\"")
	}

	flatPath := writeTemp(t, "0 f1 0 0 f1 1 0 100\n")
	ok, err = IsYAML(flatPath)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected IsYAML to report false for a non-YAML profile")
	}
}

func TestLoadDocument(t *testing.T) {
	doc := `---
header:
  profile-version: 1
  event-names: cycles
  hash-func: xxh3
  dfs-order: false
functions:
  - name: f
    id: 1
    hash: 12345
    nblocks: 2
    exec: 10
    blocks:
      - bid: 0
        insns: 100
        calls:
          - occ: 0
            fid: 2
            off: 8
            cnt: 5
            mis: 1
        succ:
          - bid: 1
            cnt: 70
            mis: 2
      - bid: 1
        insns: 70
`
	path := writeTemp(t, doc)

	d, err := LoadDocument(path)
	if err != nil {
		t.Fatal(err)
	}

	if d.Header.Version != 1 {
		t.Errorf("Version = %d, want 1", d.Header.Version)
	}
	if d.Header.HashFunction != HashXXH3 {
		t.Errorf("HashFunction = %v, want HashXXH3", d.Header.HashFunction)
	}
	if len(d.Functions) != 1 {
		t.Fatalf("len(Functions) = %d, want 1", len(d.Functions))
	}

	fn := d.Functions[0]
	if fn.Name != "f" || fn.Hash != 12345 || fn.NumBasicBlocks != 2 {
		t.Errorf("unexpected function fields: %+v", fn)
	}
	if len(fn.Blocks) != 2 {
		t.Fatalf("len(Blocks) = %d, want 2", len(fn.Blocks))
	}

	b0 := fn.Blocks[0]
	if len(b0.CallSites) != 1 || b0.CallSites[0].DestId != 2 || b0.CallSites[0].Offset != 8 {
		t.Errorf("unexpected call sites: %+v", b0.CallSites)
	}
	if len(b0.Successors) != 1 || b0.Successors[0].Index != 1 || b0.Successors[0].Count != 70 {
		t.Errorf("unexpected successors: %+v", b0.Successors)
	}
}

func TestLoadDocumentSyntaxError(t *testing.T) {
	path := writeTemp(t, "---\nheader: [unterminated\n")
	if _, err := LoadDocument(path); err == nil {
		t.Fatal("expected a syntax error")
	}
}

func TestHashFunctionString(t *testing.T) {
	if HashXXH3.String() != "xxh3" {
		t.Errorf("HashXXH3.String() = %q", HashXXH3.String())
	}
	if HashStd.String() != "std::hash" {
		t.Errorf("HashStd.String() = %q", HashStd.String())
	}
}
