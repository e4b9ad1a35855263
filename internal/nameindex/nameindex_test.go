package nameindex

import (
	"testing"

	"github.com/lucmann/llvm-project/internal/cfgmodel/cfgmodeltest"
	"github.com/lucmann/llvm-project/internal/profile"
)

func TestLTOCommonName(t *testing.T) {
	cases := []struct {
		name   string
		common string
		ok     bool
	}{
		{"foo.llvm.111", "foo", true},
		{"foo.lto_priv.222", "foo", true},
		{"bar.constprop.3", "bar", true},
		{"bar.part.9", "bar", true},
		{"plainSymbol", "", false},
	}
	for _, c := range cases {
		got, ok := LTOCommonName(c.name)
		if ok != c.ok || (ok && got != c.common) {
			t.Errorf("LTOCommonName(%q) = (%q, %v), want (%q, %v)", c.name, got, ok, c.common, c.ok)
		}
	}
}

func TestCleanName(t *testing.T) {
	if got := CleanName("f(*2)"); got != "f" {
		t.Errorf("CleanName = %q, want %q", got, "f")
	}
	if got := CleanName("plain"); got != "plain" {
		t.Errorf("CleanName = %q, want %q", got, "plain")
	}
}

func TestBuild(t *testing.T) {
	bf := cfgmodeltest.NewFunction("foo.llvm.222")
	bc := &cfgmodeltest.Context{Funcs: []*cfgmodeltest.Function{bf}}

	doc := &profile.Document{
		Functions: []*profile.Function{
			{Id: 0, Name: "f(*3)"},
			{Id: 1, Name: "foo.llvm.111"},
		},
	}

	ix := Build(bc, doc)

	if _, ok := ix.ProfileFunctionNames["f"]; !ok {
		t.Error("expected cleaned name \"f\" in ProfileFunctionNames")
	}
	if ix.ProfileBFs[0] != nil {
		t.Error("expected no name-lookup hit for \"f\" (no matching binary function)")
	}
	if ix.ProfileBFs[1] != nil {
		t.Error("an LTO-mangled profile name should not resolve by exact name")
	}

	ltoProfiles := ix.LTOCommonNameMap["foo"]
	if len(ltoProfiles) != 1 || ltoProfiles[0].Name != "foo.llvm.111" {
		t.Errorf("unexpected LTOCommonNameMap[\"foo\"]: %+v", ltoProfiles)
	}
	funcs := ix.LTOCommonNameFunctionMap["foo"]
	if len(funcs) != 1 || funcs[0] != bf {
		t.Errorf("unexpected LTOCommonNameFunctionMap[\"foo\"]: %v", funcs)
	}
}

func TestMayHaveProfileData(t *testing.T) {
	bf := cfgmodeltest.NewFunction("f")
	bc := &cfgmodeltest.Context{Funcs: []*cfgmodeltest.Function{bf}}
	doc := &profile.Document{Functions: []*profile.Function{{Id: 0, Name: "f"}}}
	ix := Build(bc, doc)

	if !ix.MayHaveProfileData(bf, false) {
		t.Error("expected MayHaveProfileData to be true for a name-matched function")
	}

	other := cfgmodeltest.NewFunction("unrelated")
	if ix.MayHaveProfileData(other, false) {
		t.Error("expected MayHaveProfileData to be false for an unrelated function")
	}
	if !ix.MayHaveProfileData(other, true) {
		t.Error("expected MayHaveProfileData to be true when hash-only matching is trusted")
	}
}
