package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "match":
		err = cmdMatch(os.Args[2:])
	case "propagate":
		err = cmdPropagate(os.Args[2:])
	case "graph":
		err = cmdGraph(os.Args[2:])
	case "help", "-h", "--help":
		usage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `profmatch — YAML execution-profile matching and CFG propagation

Usage:
  profmatch match     --bin <path> --profile <path.yaml> [--json]     Run the matcher cascade, report stats
  profmatch propagate --bin <path> --profile <path.yaml> [--json]     Match and propagate block/call counts
  profmatch graph     --bin <path> --profile <path.yaml> --out <dir>  Propagate, then emit a DOT call graph and per-function CFGs

Flags:
  --bin <path>              Path to the target ELF binary
  --profile <path>          Path to the YAML execution profile
  --out <dir>                  Output directory for the graph subcommand
  --ignore-hash                 Skip hash comparison in stage S2 (compare shape only)
  --match-hash                  Enable stage S3 (hash-only matching over all functions)
  --dfs                            Force profile block indices to resolve against DFS order
  --infer-stale                Enable the stale-profile inference hook on mismatch
  --lite                          Mark unmatched functions ignored instead of leaving them alone
  --similarity-threshold <n>   Maximum edit distance for the similarity matcher (0 disables it)
  --verbosity <n>               Diagnostic verbosity level
  --json                          Emit stats as JSON instead of text
`)
}
