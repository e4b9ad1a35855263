// Package reader ties together the Name Index, Matcher, Similarity
// Matcher, and Propagator into the two entry points BOLT's profile-reading
// core exposes: preprocessProfile and readProfile. It owns the tables the
// other packages only borrow for the lifetime of one run.
package reader

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lucmann/llvm-project/internal/cfgmodel"
	"github.com/lucmann/llvm-project/internal/diag"
	"github.com/lucmann/llvm-project/internal/matcher"
	"github.com/lucmann/llvm-project/internal/nameindex"
	"github.com/lucmann/llvm-project/internal/profile"
	"github.com/lucmann/llvm-project/internal/propagate"
	"github.com/lucmann/llvm-project/internal/similarity"
)

// ErrUnsupportedVersion is returned when the profile header's version is
// not 1.
var ErrUnsupportedVersion = errors.New("reader: unsupported profile version")

// ErrMultiEvent is returned when the header's event-names string names
// more than one event; this core only ever normalizes against a single
// event.
var ErrMultiEvent = errors.New("reader: multiple events in profile, expected exactly one")

// Options is the full configuration surface affecting this core, gathered
// in one place for callers.
type Options struct {
	IgnoreHash              bool
	MatchWithFunctionHash   bool
	ProfileUseDFS           bool
	InferStaleProfile       bool
	Lite                    bool
	NameSimilarityThreshold int
	Verbosity               int

	InferStale func(bf cfgmodel.BinaryFunction, yf *profile.Function) bool
}

// Stats is the end-of-run informational tally.
type Stats struct {
	MatchedWithExactName      uint64
	MatchedWithHash           uint64
	MatchedWithLTOCommonName  uint64
	MatchedWithNameSimilarity uint64
	NumUnusedProfiledObjects  uint64
}

// Reader orchestrates one profile-attachment run against a single
// BinaryContext. It is not safe for concurrent use.
type Reader struct {
	opts Options
	diag *diag.Emitter

	doc    *profile.Document
	index  *nameindex.Index
	tables *matcher.Tables
}

// New constructs a Reader. Call PreprocessProfile before ReadProfile.
func New(opts Options) *Reader {
	return &Reader{opts: opts, diag: diag.New(opts.Verbosity)}
}

// IsYAML is a thin re-export of profile.IsYAML, kept in this package so
// callers that already import it don't need a second import.
func IsYAML(path string) (bool, error) {
	return profile.IsYAML(path)
}

// PreprocessProfile loads the document at path, validates its header,
// builds the Name Index, and runs stage S1 (the preliminary name+positional
// assignment). It is the only place fatal, run-aborting errors originate.
func (r *Reader) PreprocessProfile(path string, bc cfgmodel.BinaryContext) error {
	doc, err := profile.LoadDocument(path)
	if err != nil {
		return err
	}

	if doc.Header.Version != 1 {
		return fmt.Errorf("%w: got version %d", ErrUnsupportedVersion, doc.Header.Version)
	}
	if strings.Contains(doc.Header.EventNames, ",") {
		return fmt.Errorf("%w: %q", ErrMultiEvent, doc.Header.EventNames)
	}

	r.doc = doc
	r.index = nameindex.Build(bc, doc)
	r.tables = matcher.NewTables(len(doc.Functions))

	matcher.Preliminary(doc, r.index, func(name string) {
		r.diag.Warnf(1, "duplicate profile for %q, second occurrence dropped", name)
	})

	return nil
}

// ReadProfile runs the matcher cascade (S2–S5), the similarity matcher
// (S6, if enabled), and propagation for every bound pair. PreprocessProfile
// must have already succeeded.
func (r *Reader) ReadProfile(bc cfgmodel.BinaryContext) (Stats, error) {
	if r.doc == nil {
		return Stats{}, errors.New("reader: ReadProfile called before a successful PreprocessProfile")
	}

	matchOpts := matcher.Options{
		IgnoreHash:            r.opts.IgnoreHash,
		MatchWithFunctionHash: r.opts.MatchWithFunctionHash,
		ProfileUseDFS:         r.opts.ProfileUseDFS,
	}
	mstats := matcher.Run(bc, r.doc, r.index, r.tables, matchOpts)

	simOpts := similarity.Options{NameSimilarityThreshold: r.opts.NameSimilarityThreshold}
	sstats := similarity.Run(bc, r.doc, r.tables, simOpts)

	propOpts := propagate.Options{
		IgnoreHash:            r.opts.IgnoreHash,
		MatchWithFunctionHash: r.opts.MatchWithFunctionHash,
		ProfileUseDFS:         r.opts.ProfileUseDFS,
		InferStaleProfile:     r.opts.InferStaleProfile,
		Lite:                  r.opts.Lite,
		InferStale:            r.opts.InferStale,
	}

	var numUnused uint64
	for _, yf := range r.doc.Functions {
		if !yf.Used {
			numUnused++
			continue
		}
		bf := r.tables.YamlProfileToFunction[yf.Id]
		if bf == nil {
			continue
		}
		result := propagate.Run(bf, yf, r.doc.Header, r.tables.YamlProfileToFunction, propOpts, r.diag, bc.Stats())
		if !result.ProfileMatched {
			r.diag.Warnf(1, "profile mismatch for %q: %d block, %d call, %d edge mismatches",
				yf.Name, result.Mismatches.Blocks, result.Mismatches.Calls, result.Mismatches.Edges)
		}
	}

	bc.Stats().NumUnusedProfiledObjects += numUnused

	r.diag.Infof(0, "matched %d by exact name, %d by hash, %d by LTO common name, %d by similarity; %d unused",
		mstats.MatchedWithExactName, mstats.MatchedWithHash, mstats.MatchedWithLTOCommonName, sstats.MatchedWithNameSimilarity, numUnused)

	return Stats{
		MatchedWithExactName:      mstats.MatchedWithExactName,
		MatchedWithHash:           mstats.MatchedWithHash,
		MatchedWithLTOCommonName:  mstats.MatchedWithLTOCommonName,
		MatchedWithNameSimilarity: sstats.MatchedWithNameSimilarity,
		NumUnusedProfiledObjects:  numUnused,
	}, nil
}

// MayHaveProfileData reports whether bf could plausibly be the target of
// some profile record in the loaded document, without running the matcher.
func (r *Reader) MayHaveProfileData(bf cfgmodel.BinaryFunction) bool {
	if r.index == nil {
		return false
	}
	return r.index.MayHaveProfileData(bf, r.opts.MatchWithFunctionHash)
}

// UsesEvent reports whether the loaded document's event-names string names
// the given event.
func (r *Reader) UsesEvent(name string) bool {
	if r.doc == nil {
		return false
	}
	for _, part := range strings.Split(r.doc.Header.EventNames, ",") {
		if part == name {
			return true
		}
	}
	return false
}
