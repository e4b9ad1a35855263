package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/lucmann/llvm-project/internal/cfgmodel"
)

type functionReport struct {
	Name           string `json:"name"`
	ExecutionCount uint64 `json:"execution_count"`
	Profiled       bool   `json:"profiled"`
	Ignored        bool   `json:"ignored,omitempty"`
	NumBasicBlocks int    `json:"num_basic_blocks"`
}

func cmdPropagate(args []string) error {
	fs := flag.NewFlagSet("propagate", flag.ExitOnError)
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

	var reports []functionReport
	for _, bf := range bc.AllFunctions() {
		if !bf.HasProfile() {
			continue
		}
		reports = append(reports, functionReport{
			Name:           nameOf(bf),
			ExecutionCount: bf.ExecutionCount(),
			Profiled:       bf.HasProfile(),
			NumBasicBlocks: bf.Size(),
		})
	}

	if *c.jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Stats     interface{}      `json:"stats"`
			Functions []functionReport `json:"functions"`
		}{stats, reports})
	}

	fmt.Printf("%d functions carry a propagated profile (of %d total)\n", len(reports), len(bc.AllFunctions()))
	for _, r := range reports {
		fmt.Printf("  %-40s exec=%-10d blocks=%d\n", r.Name, r.ExecutionCount, r.NumBasicBlocks)
	}
	return nil
}

func nameOf(bf cfgmodel.BinaryFunction) string {
	if d := bf.DemangledName(); d != "" {
		return d
	}
	names := bf.Names()
	if len(names) == 0 {
		return "?"
	}
	return names[0]
}
