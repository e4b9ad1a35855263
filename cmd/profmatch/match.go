package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
)

func cmdMatch(args []string) error {
	fs := flag.NewFlagSet("match", flag.ExitOnError)
	c := registerCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := c.validate(); err != nil {
		return err
	}

	bc, _, stats, err := openAndMatch(c)
	if err != nil {
		return err
	}
	defer bc.Close()

	if *c.jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	fmt.Printf("matched by exact name:                 %d\n", stats.MatchedWithExactName)
	fmt.Printf("matched by hash:                       %d\n", stats.MatchedWithHash)
	fmt.Printf("matched by LTO common name:            %d\n", stats.MatchedWithLTOCommonName)
	fmt.Printf("matched by name similarity:            %d\n", stats.MatchedWithNameSimilarity)
	fmt.Printf("unused profiled objects:               %d\n", stats.NumUnusedProfiledObjects)
	fmt.Printf("stale functions with differing blocks: %d\n", bc.Stats().NumStaleFuncsWithEqualBlockCount)
	return nil
}
