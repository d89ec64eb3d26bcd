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

package merge

import (
	"fmt"

	"go.opentelemetry.io/otel"
	otelmetric "go.opentelemetry.io/otel/metric"
)

var (
	rowsInCounter           otelmetric.Int64Counter
	rowsOutCounter          otelmetric.Int64Counter
	batchesOutCounter       otelmetric.Int64Counter
	blockedCounter          otelmetric.Int64Counter
	splitsCounter           otelmetric.Int64Counter
	sourcesExhaustedCounter otelmetric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/lakemerge/internal/merge")

	var err error
	rowsInCounter, err = meter.Int64Counter(
		"lakemerge.merge.rows.in",
		otelmetric.WithDescription("Number of rows pulled from merge sources into the row store"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create rows.in counter: %w", err))
	}

	rowsOutCounter, err = meter.Int64Counter(
		"lakemerge.merge.rows.out",
		otelmetric.WithDescription("Number of rows emitted by merge operators in sorted order"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create rows.out counter: %w", err))
	}

	batchesOutCounter, err = meter.Int64Counter(
		"lakemerge.merge.batches.out",
		otelmetric.WithDescription("Number of output batches emitted by merge operators"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create batches.out counter: %w", err))
	}

	blockedCounter, err = meter.Int64Counter(
		"lakemerge.merge.blocked",
		otelmetric.WithDescription("Number of times a merge operator reported itself blocked"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create blocked counter: %w", err))
	}

	splitsCounter, err = meter.Int64Counter(
		"lakemerge.merge.splits",
		otelmetric.WithDescription("Number of exchange splits attached as merge sources"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create splits counter: %w", err))
	}

	sourcesExhaustedCounter, err = meter.Int64Counter(
		"lakemerge.merge.sources.exhausted",
		otelmetric.WithDescription("Number of merge sources that reached end of stream"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create sources.exhausted counter: %w", err))
	}
}
