package main

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/parcel-cli/internal/export"
	"github.com/sells-group/parcel-cli/internal/pipeline"
)

var (
	batchInput  string
	batchOutput string
	batchFormat string
	batchLimit  int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Look up a CSV of parcel identifiers and export the results",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initLookup(countyFlag)
		if err != nil {
			return err
		}

		ids, err := readParcelIDs(batchInput)
		if err != nil {
			return err
		}
		if batchLimit > 0 && len(ids) > batchLimit {
			ids = ids[:batchLimit]
		}
		if len(ids) == 0 {
			zap.L().Info("no parcel ids in input")
			return nil
		}

		results, err := processBatch(ctx, env.Pipeline, ids, cfg.Batch.MaxConcurrentLookups)
		if err != nil {
			return err
		}

		return writeResults(results, batchOutput, batchFormat)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchInput, "input", "", "CSV file of parcel ids (first column; - for stdin)")
	batchCmd.Flags().StringVar(&batchOutput, "output", "-", "output path (- for stdout)")
	batchCmd.Flags().StringVar(&batchFormat, "format", "csv", "output format: csv or xlsx")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of parcels to process (0 = all)")
	_ = batchCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(batchCmd)
}

// readParcelIDs reads the first column of a CSV, skipping blank rows and a
// header row whose first cell is not identifier-shaped.
func readParcelIDs(path string) ([]string, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "open input %s", path)
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var ids []string
	first := true
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "read input csv")
		}
		if len(rec) == 0 {
			continue
		}
		id := strings.TrimSpace(rec[0])
		if id == "" {
			continue
		}
		// Header detection: a first row without any digit is a header.
		if first && !strings.ContainsAny(id, "0123456789") {
			first = false
			continue
		}
		first = false
		ids = append(ids, id)
	}
	return ids, nil
}

// processBatch runs lookups concurrently. Individual failures are logged
// and skipped; they never abort the batch.
func processBatch(ctx context.Context, p *pipeline.Pipeline, ids []string, concurrency int) ([]*pipeline.LookupResult, error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	zap.L().Info("processing batch",
		zap.Int("parcels", len(ids)),
		zap.Int("concurrency", concurrency),
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	// Indexed slots keep output rows in input order regardless of
	// completion order.
	var mu sync.Mutex
	slots := make([]*pipeline.LookupResult, len(ids))
	var succeeded, failed atomic.Int64

	for i, id := range ids {
		g.Go(func() error {
			result, err := p.Lookup(gCtx, id)
			if err != nil {
				failed.Add(1)
				zap.L().Error("batch: parcel failed",
					zap.String("parcel_id", id),
					zap.Error(err),
				)
				return nil // don't abort batch on individual failure
			}
			succeeded.Add(1)
			mu.Lock()
			slots[i] = result
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "batch processing")
	}

	results := make([]*pipeline.LookupResult, 0, len(ids))
	for _, res := range slots {
		if res != nil {
			results = append(results, res)
		}
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return results, nil
}

func writeResults(results []*pipeline.LookupResult, path, format string) error {
	var w io.Writer = os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrapf(err, "create output %s", path)
		}
		defer func() { _ = f.Close() }()
		w = f
	}

	switch strings.ToLower(format) {
	case "csv":
		return export.WriteCSV(w, results)
	case "xlsx":
		return export.WriteXLSX(w, results)
	default:
		return eris.Errorf("unknown output format %q", format)
	}
}
