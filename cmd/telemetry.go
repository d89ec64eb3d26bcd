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
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cardinalhq/oteltools/pkg/telemetry"
	slogmulti "github.com/samber/slog-multi"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/instrumentation/host"
	iruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/lakemerge/internal/idgen"
)

var (
	meter  = otel.Meter("github.com/cardinalhq/lakemerge")
	tracer = otel.Tracer("github.com/cardinalhq/lakemerge")

	myInstanceID int64

	mergeDuration metric.Float64Histogram
)

func init() {
	m, err := meter.Float64Histogram(
		"lakemerge.merge.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Wall time of one merge run, from first pull to end of stream"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create merge.duration histogram: %w", err))
	}
	mergeDuration = m
}

// handleSignals returns a context that is cancelled on SIGINT or SIGTERM.
func handleSignals(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

// setupTelemetry installs the default slog handler and, when
// ENABLE_OTLP_TELEMETRY is true, the OpenTelemetry SDK. Logs go to stderr
// since stdout may carry merged rows. The returned function shuts down
// what was started.
func setupTelemetry(servicename string) (context.Context, func() error, error) {
	myInstanceID = idgen.DefaultFlakeGenerator.NextID()

	doneCtx, doneCancel := handleSignals(context.Background())

	f := func() error {
		doneCancel()
		return nil
	}

	var opts *slog.HandlerOptions
	if os.Getenv("DEBUG") != "" || os.Getenv("LAKEMERGE_DEBUG") != "" {
		opts = &slog.HandlerOptions{Level: slog.LevelDebug}
	}

	if os.Getenv("ENABLE_OTLP_TELEMETRY") != "true" {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, opts)).With(
			slog.String("service", servicename),
			slog.Int64("instanceID", myInstanceID),
		))
		return doneCtx, f, nil
	}

	slog.SetDefault(slog.New(slogmulti.Fanout(
		slog.NewTextHandler(os.Stderr, opts),
		otelslog.NewHandler(servicename),
	)).With(
		slog.String("service", servicename),
		slog.Int64("instanceID", myInstanceID),
	))
	slog.Info("OpenTelemetry exporting enabled")

	otelShutdown, err := telemetry.SetupOTelSDK(doneCtx)
	if err != nil {
		doneCancel()
		return nil, nil, fmt.Errorf("failed to setup OpenTelemetry SDK: %w", err)
	}

	if err := iruntime.Start(iruntime.WithMinimumReadMemStatsInterval(10 * time.Second)); err != nil {
		slog.Warn("failed to start runtime metrics", slog.Any("error", err))
	}
	if err := host.Start(); err != nil {
		slog.Warn("failed to start host metrics", slog.Any("error", err))
	}

	f = func() error {
		defer doneCancel()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return otelShutdown(ctx)
	}
	return doneCtx, f, nil
}
