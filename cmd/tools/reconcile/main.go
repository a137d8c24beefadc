package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/app"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/config"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/logging"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/reconciliation"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/statement"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/storage"
)

func main() {
	file := flag.String("file", "", "Statement file (.ofx, .csv, .txt, .xls, .xlsx)")
	bankID := flag.String("bank", "", "Bank connection id")
	autoConfirm := flag.Bool("confirm", false, "Mark high-confidence matches as paid")
	parseOnly := flag.Bool("parse-only", false, "Print the parsed transactions and exit")
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "Error: -file is required")
		os.Exit(1)
	}
	content, err := os.ReadFile(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", *file, err)
		os.Exit(1)
	}
	txs, err := statement.ParseFile(content, filepath.Base(*file))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *parseOnly {
		printJSON(txs)
		return
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Logging)

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	in := reconciliation.Input{Transactions: txs, AutoConfirm: *autoConfirm, BankID: *bankID, Actor: "cli"}
	if a.Archive != nil {
		res, err := a.Archive.Put(ctx, bytes.NewReader(content), storage.PutInput{
			Filename: filepath.Base(*file),
			Size:     int64(len(content)),
			BankID:   *bankID,
		})
		if err != nil {
			logger.Warn("statement archive failed", "err", err)
		} else {
			in.FileKey = res.Key
		}
	}

	out, err := a.Recon.Process(ctx, in)
	if err != nil {
		logger.Error("reconciliation failed", "err", err)
		return
	}
	printJSON(out)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
