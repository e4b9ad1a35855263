// Package profile holds the in-memory shape of a previously recorded
// execution profile: the document format the matcher and propagator consume.
// Decoding the textual form is a thin wrapper around gopkg.in/yaml.v3; the
// matching and propagation logic built on top of this package is the actual
// subject of this module.
package profile

import (
	"bufio"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// HashFunction identifies which 64-bit structural fingerprint the profile
// was recorded with.
type HashFunction int

const (
	HashStd HashFunction = iota
	HashXXH3
)

func (h HashFunction) String() string {
	if h == HashXXH3 {
		return "xxh3"
	}
	return "std::hash"
}

// Flags is the profile header's bitset.
type Flags uint32

const (
	// FlagSample marks an interval-sample profile: blocks carry EventCount
	// instead of branch-derived ExecCount, and there are no call-site or
	// successor counts.
	FlagSample Flags = 1 << 0
)

// Header is the profile document's fixed preamble.
type Header struct {
	Version      int
	Flags        Flags
	EventNames   string
	HashFunction HashFunction
	IsDFSOrder   bool
}

// Successor is one profiled control-flow edge out of a block.
type Successor struct {
	Index    uint32
	Count    uint64
	Mispreds uint64
}

// CallSite is one profiled call or indirect-branch instruction within a
// block.
type CallSite struct {
	// DestId indexes into the document's Functions table, or 0 if the
	// callee was not itself a profiled function.
	DestId             uint32
	EntryDiscriminator uint32
	Offset             uint64
	Count              uint64
	Mispreds           uint64
}

// Block is one profiled basic block.
type Block struct {
	Index uint32

	ExecCount uint64

	EventCount    uint64
	HasEventCount bool

	CallSites  []CallSite
	Successors []Successor
}

// Function is one profiled function record.
type Function struct {
	Id             uint32
	Name           string
	Hash           uint64
	NumBasicBlocks uint32
	ExecCount      uint64
	Blocks         []Block

	// Used is flipped by the matcher once this record has been bound to a
	// binary function. It is the only mutable field on the profile side;
	// everything else is read-only after Load.
	Used bool
}

// Document is a fully loaded, parsed profile.
type Document struct {
	Header    Header
	Functions []*Function
}

// IsYAML probes a file for the literal "---\n" prefix BOLT uses to decide
// whether a profile argument is the structured (YAML) format rather than
// the legacy flat text one.
func IsYAML(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("profile: open %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	prefix := make([]byte, 4)
	n, err := r.Read(prefix)
	if n < 4 {
		return false, nil
	}
	return string(prefix) == "---\n", nil
}

// wireDocument mirrors the on-disk YAML shape; each field's yaml tag names
// the document key it is read from.
type wireDocument struct {
	Header struct {
		Version      int    `yaml:"profile-version"`
		EventNames   string `yaml:"event-names"`
		Flags        uint32 `yaml:"flags"`
		HashFunction string `yaml:"hash-func"`
		DFSOrder     bool   `yaml:"dfs-order"`
	} `yaml:"header"`
	Functions []struct {
		Name   string `yaml:"name"`
		Id     uint32 `yaml:"id"`
		Hash   uint64 `yaml:"hash"`
		Blocks int    `yaml:"nblocks"`
		Exec   uint64 `yaml:"exec"`
		Blk    []struct {
			Index      uint32 `yaml:"bid"`
			Exec       uint64 `yaml:"insns"`
			EventCount *uint64 `yaml:"event-count,omitempty"`
			CallSites  []struct {
				Occ  uint32 `yaml:"occ"`
				Bid  uint32 `yaml:"fid"`
				Off  uint64 `yaml:"off"`
				Cnt  uint64 `yaml:"cnt"`
				Mis  uint64 `yaml:"mis"`
			} `yaml:"calls"`
			Succ []struct {
				Bid uint32 `yaml:"bid"`
				Cnt uint64 `yaml:"cnt"`
				Mis uint64 `yaml:"mis"`
			} `yaml:"succ"`
		} `yaml:"blocks"`
	} `yaml:"functions"`
}

// LoadDocument decodes a profile document from path. It performs no
// validation beyond what yaml.Unmarshal itself requires; version and
// single-event checks are the caller's responsibility (see
// internal/reader.PreprocessProfile), because those are matching-core
// concerns, not loader concerns.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("profile: read %s: %w", path, err)
	}

	var wire wireDocument
	if err := yaml.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("profile: syntax error in %s: %w", path, err)
	}

	doc := &Document{
		Header: Header{
			Version:    wire.Header.Version,
			Flags:      Flags(wire.Header.Flags),
			EventNames: wire.Header.EventNames,
			IsDFSOrder: wire.Header.DFSOrder,
		},
	}
	if wire.Header.HashFunction == "xxh3" {
		doc.Header.HashFunction = HashXXH3
	} else {
		doc.Header.HashFunction = HashStd
	}

	doc.Functions = make([]*Function, len(wire.Functions))
	for i, wf := range wire.Functions {
		fn := &Function{
			Id:             wf.Id,
			Name:           wf.Name,
			Hash:           wf.Hash,
			NumBasicBlocks: uint32(wf.Blocks),
			ExecCount:      wf.Exec,
		}
		fn.Blocks = make([]Block, len(wf.Blk))
		for j, wb := range wf.Blk {
			b := Block{Index: wb.Index, ExecCount: wb.Exec}
			if wb.EventCount != nil {
				b.HasEventCount = true
				b.EventCount = *wb.EventCount
			}
			for _, wc := range wb.CallSites {
				b.CallSites = append(b.CallSites, CallSite{
					DestId:             wc.Bid,
					EntryDiscriminator: wc.Occ,
					Offset:             wc.Off,
					Count:              wc.Cnt,
					Mispreds:           wc.Mis,
				})
			}
			for _, ws := range wb.Succ {
				b.Successors = append(b.Successors, Successor{
					Index:    ws.Bid,
					Count:    ws.Cnt,
					Mispreds: ws.Mis,
				})
			}
			fn.Blocks[j] = b
		}
		doc.Functions[i] = fn
	}

	return doc, nil
}
