package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/leora-hq/leora-core/internal/common"
	"github.com/leora-hq/leora-core/internal/export"
	"github.com/leora-hq/leora-core/internal/repository"
)

func main() {
	tenantID := flag.String("tenant", "", "tenant id")
	fromStr := flag.String("from", "", "window start (YYYY-MM-DD)")
	toStr := flag.String("to", "", "window end (YYYY-MM-DD)")
	out := flag.String("out", "orders.xlsx", "output file")
	flag.Parse()

	_ = godotenv.Load()
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if *tenantID == "" {
		fmt.Fprintln(os.Stderr, "-tenant is required")
		os.Exit(2)
	}
	from, err := parseDateFlag(*fromStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -from: %v\n", err)
		os.Exit(2)
	}
	to, err := parseDateFlag(*toStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -to: %v\n", err)
		os.Exit(2)
	}

	cfg := common.LoadConfig()
	ctx := context.Background()
	db, err := repository.Open(ctx, cfg.Database, log)
	if err != nil {
		os.Exit(1)
	}
	defer repository.Close(db, log)

	b, err := export.NewService(db, log).OrdersXLSX(ctx, *tenantID, from, to)
	if err != nil {
		fmt.Fprintf(os.Stderr, "export failed: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, b, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write %s: %v\n", *out, err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s (%d bytes)\n", *out, len(b))
}

func parseDateFlag(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
