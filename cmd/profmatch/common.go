package main

import (
	"flag"
	"fmt"

	"github.com/lucmann/llvm-project/internal/elfbin"
	"github.com/lucmann/llvm-project/internal/reader"
)

// commonFlags holds the flags every subcommand shares.
type commonFlags struct {
	bin        *string
	profile    *string
	ignoreHash *bool
	matchHash  *bool
	dfs        *bool
	inferStale *bool
	lite       *bool
	simThresh  *int
	verbosity  *int
	jsonOut    *bool
}

func registerCommonFlags(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		bin:        fs.String("bin", "", "path to the target ELF binary"),
		profile:    fs.String("profile", "", "path to the YAML execution profile"),
		ignoreHash: fs.Bool("ignore-hash", false, "skip hash comparison in stage S2"),
		matchHash:  fs.Bool("match-hash", false, "enable stage S3 (hash-only matching)"),
		dfs:        fs.Bool("dfs", false, "force profile block indices to resolve against DFS order"),
		inferStale: fs.Bool("infer-stale", false, "enable the stale-profile inference hook"),
		lite:       fs.Bool("lite", false, "mark unmatched functions ignored"),
		simThresh:  fs.Int("similarity-threshold", 0, "maximum edit distance for the similarity matcher"),
		verbosity:  fs.Int("verbosity", 0, "diagnostic verbosity level"),
		jsonOut:    fs.Bool("json", false, "emit stats as JSON"),
	}
}

func (c *commonFlags) readerOptions() reader.Options {
	return reader.Options{
		IgnoreHash:              *c.ignoreHash,
		MatchWithFunctionHash:   *c.matchHash,
		ProfileUseDFS:           *c.dfs,
		InferStaleProfile:       *c.inferStale,
		Lite:                    *c.lite,
		NameSimilarityThreshold: *c.simThresh,
		Verbosity:               *c.verbosity,
	}
}

func (c *commonFlags) validate() error {
	if *c.bin == "" {
		return fmt.Errorf("--bin is required")
	}
	if *c.profile == "" {
		return fmt.Errorf("--profile is required")
	}
	return nil
}

// openAndMatch loads the binary and profile, runs PreprocessProfile and
// ReadProfile, and returns everything downstream subcommands need.
func openAndMatch(c *commonFlags) (*elfbin.Context, *reader.Reader, reader.Stats, error) {
	bc, err := elfbin.Open(*c.bin)
	if err != nil {
		return nil, nil, reader.Stats{}, fmt.Errorf("open: %w", err)
	}

	r := reader.New(c.readerOptions())
	if err := r.PreprocessProfile(*c.profile, bc); err != nil {
		bc.Close()
		return nil, nil, reader.Stats{}, fmt.Errorf("preprocess: %w", err)
	}

	stats, err := r.ReadProfile(bc)
	if err != nil {
		bc.Close()
		return nil, nil, reader.Stats{}, fmt.Errorf("read profile: %w", err)
	}

	return bc, r, stats, nil
}
