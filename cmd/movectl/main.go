// Command movectl applies a stock movement to a snapshot of balances
// offline and prints the resulting balances and kardex lines.
//
// Example:
//
//	movectl -in snapshot.json -verify
//	cat snapshot.json | movectl > result.json
//
// The input document is {"movement": ..., "balances": [...], "warehouses": [...]}.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"kardex/internal/core/apperror"
	"kardex/internal/domain/catalogs/warehouse"
	"kardex/internal/domain/documents/stock_movement"
	"kardex/internal/domain/posting"
	"kardex/internal/domain/registers/kardex"
	"kardex/internal/domain/registers/stock"
)

// Snapshot is the movectl input document.
type Snapshot struct {
	Movement   stock_movement.Movement `json:"movement"`
	Balances   []stock.Balance         `json:"balances"`
	Warehouses []warehouse.Warehouse   `json:"warehouses"`
}

// Output is the movectl result document.
type Output struct {
	Balances []stock.Balance    `json:"balances"`
	Touched  []stock.Key        `json:"touched"`
	Kardex   []kardex.Line      `json:"kardex"`
	Error    *apperror.AppError `json:"error,omitempty"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("movectl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		inPath   = fs.String("in", "", "snapshot file (default stdin)")
		verify   = fs.Bool("verify", false, "check valuation and lot invariants on touched balances")
		onlyDiff = fs.Bool("touched", false, "print only the balances the movement changed")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	in := stdin
	if *inPath != "" {
		f, err := os.Open(*inPath)
		if err != nil {
			fmt.Fprintf(stderr, "open input: %v\n", err)
			return 2
		}
		defer f.Close()
		in = f
	}

	var snap Snapshot
	if err := json.NewDecoder(in).Decode(&snap); err != nil {
		fmt.Fprintf(stderr, "decode snapshot: %v\n", err)
		return 2
	}

	registry := warehouse.NewRegistry(snap.Warehouses...)
	res, err := posting.NewEngine().Apply(&snap.Movement, snap.Balances, registry)
	if err != nil {
		appErr, ok := apperror.AsAppError(err)
		if !ok {
			appErr = apperror.NewInternal(err)
		}
		_ = writeJSON(stdout, Output{Error: appErr})
		return 1
	}

	if *verify {
		for _, b := range res.TouchedBalances() {
			w, _ := registry.Get(b.WarehouseID)
			if err := stock.VerifyBalance(b, w.TrackLots); err != nil {
				fmt.Fprintf(stderr, "invariant violated for %s: %v\n", b.Key(), err)
				return 3
			}
		}
	}

	out := Output{Balances: res.Balances, Touched: res.Touched, Kardex: res.Kardex}
	if *onlyDiff {
		out.Balances = res.TouchedBalances()
	}
	if err := writeJSON(stdout, out); err != nil {
		fmt.Fprintf(stderr, "write result: %v\n", err)
		return 2
	}
	return 0
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
