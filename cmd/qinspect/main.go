package main

import (
	"flag"
	"fmt"
	"os"

	"gridworld-rl/qtable"
)

var (
	filePath = flag.String("file", "", "Table file or zstd snapshot to inspect")
	values   = flag.Bool("values", false, "Dump per-state max values and best actions")
)

func main() {
	flag.Parse()
	if *filePath == "" {
		fmt.Println("Usage:")
		flag.PrintDefaults()
		os.Exit(2)
	}

	info, err := qtable.ReadInfo(*filePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read header: %v\n", err)
		os.Exit(1)
	}

	format := "raw"
	if info.Compressed {
		format = "zstd"
	}
	fmt.Printf("file:    %s (%s)\n", *filePath, format)
	fmt.Printf("table:   %d states x %d actions\n", info.States, info.Actions)
	fmt.Printf("lr=%.4f gamma=%.4f eps=%.4f decay=%.4f eps_min=%.4f\n",
		info.Params.LearningRate, info.Params.DiscountFactor,
		info.Params.Epsilon, info.Params.EpsilonDecay, info.Params.EpsilonMin)

	if !*values {
		return
	}

	table, err := qtable.New(info.States, info.Actions, qtable.AllocStandard, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "alloc: %v\n", err)
		os.Exit(1)
	}
	if info.Compressed {
		_, err = table.LoadSnapshot(*filePath)
	} else {
		_, err = table.Load(*filePath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "load: %v\n", err)
		os.Exit(1)
	}

	for s := 0; s < info.States; s++ {
		fmt.Printf("state %4d: max=%8.4f best=%d\n", s, table.MaxValue(s), table.BestAction(s))
	}
}
