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

package pipeline

import (
	"context"
	"maps"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	meter = otel.Meter("github.com/cardinalhq/lakemerge/internal/pipeline")

	bufferpoolGetsCounter metric.Int64Counter
	bufferpoolPutsCounter metric.Int64Counter
)

func init() {
	var err error

	bufferpoolGetsCounter, err = meter.Int64Counter(
		"lakemerge.pipeline.bufferpool.gets",
		metric.WithDescription("Total number of gets from the buffer pool"),
	)
	if err != nil {
		panic(err)
	}

	bufferpoolPutsCounter, err = meter.Int64Counter(
		"lakemerge.pipeline.bufferpool.puts",
		metric.WithDescription("Total number of puts back to the buffer pool"),
	)
	if err != nil {
		panic(err)
	}
}

// DefaultBatchRows is the number of Row maps preallocated in a pooled batch.
const DefaultBatchRows = 1000

// Batch is owned by whoever obtained it from the pool, and is handed over
// together with that ownership: a source that returns a batch from Next gives
// it to the caller, and the caller returns it with ReturnBatch.
//
// The Batch reuses underlying Row maps for memory efficiency. Never retain
// references to Row objects returned by Get() beyond the life of the batch;
// use CopyRow() if you need to retain data.
type Batch struct {
	rows     []Row
	validLen int
}

type batchPool struct {
	pool  sync.Pool
	sz    int
	alloc atomic.Uint64
	gets  atomic.Uint64
	puts  atomic.Uint64
}

func newBatchPool(batchSize int) *batchPool {
	p := &batchPool{sz: batchSize}
	p.pool = sync.Pool{
		New: func() any {
			p.alloc.Add(1)
			rows := make([]Row, batchSize)
			for i := range rows {
				rows[i] = getPooledRow()
			}
			return &Batch{rows: rows}
		},
	}
	return p
}

// Get returns a clean batch from the pool.
func (p *batchPool) Get() *Batch {
	p.gets.Add(1)
	bufferpoolGetsCounter.Add(context.Background(), 1)
	b := p.pool.Get().(*Batch)
	for i := range b.rows {
		clear(b.rows[i])
	}
	b.validLen = 0
	return b
}

// Put returns a batch to the pool for reuse.
func (p *batchPool) Put(b *Batch) {
	p.puts.Add(1)
	bufferpoolPutsCounter.Add(context.Background(), 1)
	// Drop oversized batches to avoid unbounded growth
	if cap(b.rows) > p.sz*4 {
		for i := range b.rows {
			returnRowToPool(b.rows[i])
		}
		return
	}
	b.validLen = 0
	p.pool.Put(b)
}

// BatchPoolStats contains counters for batch pool usage.
type BatchPoolStats struct {
	Allocations uint64
	Gets        uint64
	Puts        uint64
}

// LeakedBatches returns the number of batches that were gotten but never returned.
func (s BatchPoolStats) LeakedBatches() uint64 {
	return s.Gets - s.Puts
}

func (p *batchPool) stats() BatchPoolStats {
	return BatchPoolStats{
		Allocations: p.alloc.Load(),
		Gets:        p.gets.Load(),
		Puts:        p.puts.Load(),
	}
}

var globalBatchPool = newBatchPool(DefaultBatchRows)

var rowPool = sync.Pool{
	New: func() any {
		return make(Row)
	},
}

// GetBatch returns a reusable batch from the global pool.
// The batch is clean and ready to use.
func GetBatch() *Batch {
	return globalBatchPool.Get()
}

// ReturnBatch returns a batch to the global pool for reuse.
// The batch should not be used after calling this function.
func ReturnBatch(batch *Batch) {
	if batch != nil {
		globalBatchPool.Put(batch)
	}
}

// GlobalBatchPoolStats returns usage counters for the global batch pool.
func GlobalBatchPoolStats() BatchPoolStats {
	return globalBatchPool.stats()
}

// CopyBatch creates a deep copy of a batch in a new pooled batch.
func CopyBatch(in *Batch) *Batch {
	out := globalBatchPool.Get()
	for i := 0; i < in.Len(); i++ {
		maps.Copy(out.AddRow(), in.Get(i))
	}
	return out
}

// Len returns the number of valid rows in the batch.
func (b *Batch) Len() int {
	return b.validLen
}

// Get returns the row at the given index, or nil if the index is out of range.
func (b *Batch) Get(index int) Row {
	if index < 0 || index >= b.validLen {
		return nil
	}
	return b.rows[index]
}

// AddRow adds a new row to the batch, reusing an existing Row map if available.
// Returns the Row map that should be populated. The returned Row must not be
// retained beyond the lifetime of this batch.
func (b *Batch) AddRow() Row {
	if b.validLen < len(b.rows) {
		row := b.rows[b.validLen]
		clear(row)
		b.validLen++
		return row
	}

	row := getPooledRow()
	b.rows = append(b.rows, row)
	b.validLen++
	return row
}

// TakeRow extracts a row from the batch and transfers ownership to the caller.
// The slot is refilled with a fresh pooled row, so the batch keeps its length.
// The caller is responsible for returning the row with ReturnPooledRow.
func (b *Batch) TakeRow(index int) Row {
	if index < 0 || index >= b.validLen {
		return nil
	}
	row := b.rows[index]
	b.rows[index] = getPooledRow()
	return row
}

func getPooledRow() Row {
	row := rowPool.Get().(Row)
	clear(row)
	return row
}

func returnRowToPool(row Row) {
	if row == nil {
		return
	}
	clear(row)
	rowPool.Put(row)
}

// GetPooledRow gets a clean Row map from the global pool.
// The caller is responsible for returning it via ReturnPooledRow when done.
func GetPooledRow() Row {
	return getPooledRow()
}

// ReturnPooledRow returns a Row map to the global pool for reuse.
func ReturnPooledRow(row Row) {
	returnRowToPool(row)
}
