package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/leora-hq/leora-core/internal/common"
	"github.com/leora-hq/leora-core/internal/entity"
	"github.com/leora-hq/leora-core/internal/queue"
	"github.com/leora-hq/leora-core/internal/repository"
)

var validTypes = map[entity.JobType]bool{
	entity.JobTypeImageExtraction:    true,
	entity.JobTypeCustomerEnrichment: true,
	entity.JobTypeReportGeneration:   true,
	entity.JobTypeBulkImport:         true,
}

func main() {
	jobType := flag.String("type", "", "job type (image_extraction|customer_enrichment|report_generation|bulk_import)")
	payload := flag.String("payload", "{}", "JSON payload for the job")
	flag.Parse()

	_ = godotenv.Load()
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	t := entity.JobType(*jobType)
	if !validTypes[t] {
		fmt.Fprintf(os.Stderr, "invalid job type %q\n", *jobType)
		os.Exit(2)
	}
	if !json.Valid([]byte(*payload)) {
		fmt.Fprintln(os.Stderr, "payload is not valid JSON")
		os.Exit(2)
	}

	cfg := common.LoadConfig()
	if cfg.Database.DSN == "" {
		fmt.Fprintln(os.Stderr, "DB_URL is required")
		os.Exit(2)
	}

	ctx := context.Background()
	db, err := repository.Open(ctx, cfg.Database, log)
	if err != nil {
		os.Exit(1)
	}
	defer repository.Close(db, log)

	q := queue.New(repository.NewJobRepository(db, log), log)
	jobID, err := q.Enqueue(ctx, t, json.RawMessage(*payload))
	if err != nil {
		fmt.Fprintf(os.Stderr, "enqueue failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(jobID)
}
