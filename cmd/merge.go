// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/lakemerge/config"
	"github.com/cardinalhq/lakemerge/internal/exchange"
	"github.com/cardinalhq/lakemerge/internal/exec"
	"github.com/cardinalhq/lakemerge/internal/filereader"
	"github.com/cardinalhq/lakemerge/internal/idgen"
	"github.com/cardinalhq/lakemerge/internal/merge"
	"github.com/cardinalhq/lakemerge/internal/pipeline"
	"github.com/cardinalhq/lakemerge/internal/pipeline/wkk"
	"github.com/cardinalhq/lakemerge/internal/rowcodec"
	"github.com/cardinalhq/lakemerge/internal/rowstore"
)

// mergeRun describes one invocation of the merge command.
type mergeRun struct {
	Files      []string
	Keys       []string
	Columns    []string
	Strict     bool
	Exchange   bool
	OperatorID int
}

// mergeOperator is what both merge policies expose to the command.
type mergeOperator interface {
	exec.Operator
	Stats() merge.Stats
}

func init() {
	var (
		run             mergeRun
		output          string
		batchSize       int
		memoryLimit     string
		outputBatchSize string
	)

	cmd := &cobra.Command{
		Use:   "merge [flags] FILE...",
		Short: "Merge sorted files into one sorted stream of JSON lines",
		Long: `Merge reads each FILE (.json, .jsonl, .ndjson or .csv, optionally .gz),
which must already be sorted by the merge keys, and writes the merged rows
as JSON lines. Every key column must be declared with --column.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			ctx, doneFx, err := setupTelemetry("lakemerge")
			if err != nil {
				return fmt.Errorf("failed to setup telemetry: %w", err)
			}
			defer func() {
				if err := doneFx(); err != nil {
					slog.Error("Error shutting down telemetry", slog.Any("error", err))
				}
			}()

			cfg, err := config.LoadFile(configFile)
			if err != nil {
				return err
			}
			if c.Flags().Changed("batch-size") {
				cfg.Reader.BatchSize = batchSize
			}
			if c.Flags().Changed("memory-limit") {
				cfg.Merge.MemoryLimit = memoryLimit
			}
			if c.Flags().Changed("output-batch-size") {
				cfg.Merge.OutputBatchSize = outputBatchSize
			}

			var out io.Writer = os.Stdout
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer f.Close()
				out = f
			}

			run.Files = args
			_, err = runMerge(ctx, cfg, run, out)
			return err
		},
	}

	cmd.Flags().StringArrayVarP(&run.Keys, "key", "k", nil, `Sort key, e.g. "ts" or "ts DESC NULLS LAST" (repeatable; defaults to merge.sort_keys)`)
	cmd.Flags().StringArrayVarP(&run.Columns, "column", "c", nil, `Typed column as name:type, e.g. "ts:int64" (repeatable)`)
	cmd.Flags().BoolVar(&run.Strict, "strict", false, "Reject rows carrying columns that were not declared")
	cmd.Flags().BoolVar(&run.Exchange, "exchange", false, "Deliver each file as an exchange split instead of a local source")
	cmd.Flags().IntVar(&run.OperatorID, "operator-id", 1, "Plan node id reported in logs and metrics")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	cmd.Flags().IntVar(&batchSize, "batch-size", filereader.DefaultBatchSize, "Rows per input batch")
	cmd.Flags().StringVar(&memoryLimit, "memory-limit", "", `Row store memory limit, e.g. "512MiB" (default unlimited)`)
	cmd.Flags().StringVar(&outputBatchSize, "output-batch-size", "", `Output batch byte budget, e.g. "2MiB"`)

	rootCmd.AddCommand(cmd)
}

// runMerge merges run.Files and writes the result to out as JSON lines.
func runMerge(ctx context.Context, cfg *config.Config, run mergeRun, out io.Writer) (merge.Stats, error) {
	ctx, span := tracer.Start(ctx, "merge")
	defer span.End()

	stats, err := doMerge(ctx, cfg, run, out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return stats, err
}

func doMerge(ctx context.Context, cfg *config.Config, run mergeRun, out io.Writer) (merge.Stats, error) {
	schema, err := parseSchema(run.Columns, run.Strict)
	if err != nil {
		return merge.Stats{}, err
	}
	keys, err := merge.ParseSortKeys(run.Keys)
	if err != nil {
		return merge.Stats{}, err
	}
	opts, err := cfg.Merge.Options(schema, keys)
	if err != nil {
		return merge.Stats{}, err
	}

	readers, err := openReaders(run.Files, cfg.Reader.BatchSize)
	if err != nil {
		return merge.Stats{}, err
	}
	defer func() {
		for _, r := range readers {
			_ = r.Close()
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	var op mergeOperator
	if run.Exchange {
		op, err = startExchange(gctx, g, opts, run.OperatorID, readers)
	} else {
		op, err = startLocal(gctx, g, opts, run.OperatorID, readers, cfg.Merge.LocalQueueBatches)
	}
	if err != nil {
		return merge.Stats{}, err
	}

	kind := "local"
	if run.Exchange {
		kind = "exchange"
	}
	attrs := metric.WithAttributes(attribute.String("mode", kind))

	w := bufio.NewWriter(out)
	start := time.Now()
	g.Go(func() error {
		return exec.Drive(gctx, op, jsonLinesSink(w))
	})
	err = g.Wait()
	if cerr := op.Close(); cerr != nil {
		err = multierror.Append(err, cerr).ErrorOrNil()
	}
	mergeDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	if ferr := w.Flush(); ferr != nil && err == nil {
		err = fmt.Errorf("failed to write output: %w", ferr)
	}

	stats := op.Stats()
	if err != nil {
		slog.Error("Merge failed", slog.String("operator", op.String()), slog.Any("error", err))
		return stats, err
	}
	slog.Info("Merge complete",
		slog.String("operator", op.String()),
		slog.Int("files", len(run.Files)),
		slog.Int64("rowsIn", stats.RowsIn),
		slog.Int64("rowsOut", stats.RowsOut),
		slog.Int64("batchesOut", stats.BatchesOut),
		slog.Int64("peakStoreBytes", stats.PeakStoreBytes),
		slog.Duration("elapsed", time.Since(start)))
	return stats, nil
}

func openReaders(files []string, batchSize int) ([]filereader.Reader, error) {
	readers := make([]filereader.Reader, 0, len(files))
	for _, name := range files {
		r, err := filereader.ReaderForFile(name, batchSize)
		if err != nil {
			for _, open := range readers {
				_ = open.Close()
			}
			return nil, err
		}
		readers = append(readers, r)
	}
	return readers, nil
}

// startLocal wires each reader to a local merge source fed by its own
// producer goroutine.
func startLocal(ctx context.Context, g *errgroup.Group, opts merge.Options, operatorID int, readers []filereader.Reader, queueBatches int) (mergeOperator, error) {
	queues := make([]*merge.LocalMergeSource, len(readers))
	sources := make([]merge.Source, len(readers))
	for i := range readers {
		queues[i] = merge.NewLocalMergeSource(queueBatches)
		sources[i] = queues[i]
	}
	op, err := merge.NewLocalMergeFromSources(opts, operatorID, sources...)
	if err != nil {
		return nil, err
	}
	for i, r := range readers {
		g.Go(func() error {
			return merge.Pump(ctx, r, queues[i])
		})
	}
	return op, nil
}

// startExchange publishes each reader as CBOR pages of its own split. Splits
// are assigned on a separate goroutine, which ends assignment once all are
// added.
func startExchange(ctx context.Context, g *errgroup.Group, opts merge.Options, operatorID int, readers []filereader.Reader) (mergeOperator, error) {
	codec, err := rowcodec.NewCBOR()
	if err != nil {
		return nil, err
	}

	queue := exchange.NewSplitQueue()
	op, err := merge.NewMergeExchange(opts, operatorID, queue, func(split exchange.Split) (merge.Source, error) {
		return exchange.NewSource(split, codec)
	})
	if err != nil {
		return nil, err
	}

	queryID := idgen.NextBase32ID()
	splits := make([]exchange.Split, len(readers))
	for i, r := range readers {
		splits[i] = exchange.NewSplit(fmt.Sprintf("%s.%d", queryID, i))
		pages := splits[i].Pages
		g.Go(func() error {
			return exchange.Publish(ctx, codec, r, pages)
		})
	}
	g.Go(func() error {
		for _, s := range splits {
			if err := queue.Add(s); err != nil {
				return err
			}
		}
		queue.NoMoreSplits()
		return nil
	})
	return op, nil
}

func jsonLinesSink(w *bufio.Writer) exec.Sink {
	return func(_ context.Context, batch *pipeline.Batch) error {
		for i := 0; i < batch.Len(); i++ {
			b, err := pipeline.MarshalRowJSON(batch.Get(i))
			if err != nil {
				return err
			}
			if _, err := w.Write(b); err != nil {
				return err
			}
			if err := w.WriteByte('\n'); err != nil {
				return err
			}
		}
		return nil
	}
}

// parseSchema builds a schema from "name:type" column flags.
func parseSchema(specs []string, strict bool) (*rowstore.Schema, error) {
	columns := make([]rowstore.Column, 0, len(specs))
	for _, spec := range specs {
		name, typ, ok := strings.Cut(spec, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid column %q, want name:type", spec)
		}
		dt, err := rowstore.ParseDataType(typ)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		columns = append(columns, rowstore.Column{Name: wkk.NewRowKey(name), DataType: dt})
	}
	if len(columns) == 0 {
		return nil, errors.New("at least one --column is required")
	}
	schema, err := rowstore.NewSchema(columns...)
	if err != nil {
		return nil, err
	}
	schema.Strict = strict
	return schema, nil
}
