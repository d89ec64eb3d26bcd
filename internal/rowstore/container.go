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

package rowstore

import (
	"github.com/cardinalhq/lakemerge/internal/pipeline"
	"github.com/cardinalhq/lakemerge/internal/pipeline/wkk"
)

// RowHandle is an opaque, stable reference to a row held by a Container.
// The zero value refers to no row.
type RowHandle struct {
	slot uint32
	gen  uint32
}

// IsZero reports whether h is the zero handle.
func (h RowHandle) IsZero() bool {
	return h.gen == 0
}

type entry struct {
	row  pipeline.Row
	size int64
	gen  uint32
	live bool
}

// Container is an append-only arena of rows addressed by RowHandle. Slots of
// discarded rows are recycled; a recycled slot gets a new generation so stale
// handles never alias a newer row.
//
// A Container is not safe for concurrent use.
type Container struct {
	schema  *Schema
	entries []entry
	free    []uint32
	live    int
	used    int64
	peak    int64
	limit   int64
}

// NewContainer creates a container for rows of the given schema. limit caps
// the estimated bytes of live rows; zero or negative means unlimited.
func NewContainer(schema *Schema, limit int64) *Container {
	return &Container{
		schema: schema,
		limit:  limit,
	}
}

// Schema returns the schema rows are validated against.
func (c *Container) Schema() *Schema {
	return c.schema
}

// Store copies every row of batch into the container and returns one handle
// per row, in batch order. The caller keeps ownership of batch. Either every
// row is stored or, on error, none is.
func (c *Container) Store(batch *pipeline.Batch) ([]RowHandle, error) {
	n := batch.Len()
	if n == 0 {
		return nil, nil
	}

	rows := make([]pipeline.Row, 0, n)
	sizes := make([]int64, 0, n)
	var total int64
	release := func() {
		for _, r := range rows {
			pipeline.ReturnPooledRow(r)
		}
	}

	for i := 0; i < n; i++ {
		row := pipeline.GetPooledRow()
		rows = append(rows, row)
		size, err := c.copyRow(batch.Get(i), row)
		if err != nil {
			release()
			return nil, err
		}
		sizes = append(sizes, size)
		total += size
	}

	if c.limit > 0 && c.used+total > c.limit {
		release()
		return nil, &MemoryLimitError{Requested: total, Used: c.used, Limit: c.limit}
	}

	handles := make([]RowHandle, n)
	for i, row := range rows {
		handles[i] = c.put(row, sizes[i])
	}
	c.used += total
	c.peak = max(c.peak, c.used)
	return handles, nil
}

// copyRow validates in against the schema and copies it, normalised, into out.
func (c *Container) copyRow(in, out pipeline.Row) (int64, error) {
	size := int64(rowOverheadBytes)
	for _, col := range c.schema.Columns {
		v, ok := in[col.Name]
		if !ok {
			return 0, &RowSchemaError{Column: wkk.Name(col.Name), Reason: "column absent", kind: ErrMissingColumn}
		}
		nv, err := normalizeValue(col.DataType, v)
		if err != nil {
			return 0, &RowSchemaError{Column: wkk.Name(col.Name), Reason: err.Error(), kind: ErrSchemaMismatch}
		}
		out[col.Name] = nv
		size += fieldOverheadBytes + valueSize(nv)
	}
	for k, v := range in {
		if c.schema.ColumnIndex(k) >= 0 {
			continue
		}
		if c.schema.Strict {
			return 0, &RowSchemaError{Column: wkk.Name(k), Reason: "column not in schema", kind: ErrSchemaMismatch}
		}
		out[k] = v
		size += fieldOverheadBytes + valueSize(v)
	}
	return size, nil
}

func (c *Container) put(row pipeline.Row, size int64) RowHandle {
	c.live++
	if n := len(c.free); n > 0 {
		slot := c.free[n-1]
		c.free = c.free[:n-1]
		e := &c.entries[slot]
		e.gen++
		e.row, e.size, e.live = row, size, true
		return RowHandle{slot: slot, gen: e.gen}
	}
	c.entries = append(c.entries, entry{row: row, size: size, gen: 1, live: true})
	return RowHandle{slot: uint32(len(c.entries) - 1), gen: 1}
}

func (c *Container) lookup(h RowHandle) *entry {
	if h.gen == 0 || int(h.slot) >= len(c.entries) {
		return nil
	}
	e := &c.entries[h.slot]
	if !e.live || e.gen != h.gen {
		return nil
	}
	return e
}

func (c *Container) mustLookup(h RowHandle) *entry {
	e := c.lookup(h)
	if e == nil {
		panic("rowstore: use of discarded or invalid row handle")
	}
	return e
}

// Row returns the stored row for h, or nil if h was discarded. The row stays
// owned by the container and is only valid until h is discarded.
func (c *Container) Row(h RowHandle) pipeline.Row {
	if e := c.lookup(h); e != nil {
		return e.row
	}
	return nil
}

// RowSize returns the estimated byte size of the row behind h.
func (c *Container) RowSize(h RowHandle) int64 {
	return c.mustLookup(h).size
}

// Discard releases the row behind h. Discarding a stale handle is a no-op.
func (c *Container) Discard(h RowHandle) {
	e := c.lookup(h)
	if e == nil {
		return
	}
	pipeline.ReturnPooledRow(e.row)
	c.used -= e.size
	e.row, e.size, e.live = nil, 0, false
	c.free = append(c.free, h.slot)
	c.live--
}

// Clear discards every row. Outstanding handles become stale.
func (c *Container) Clear() {
	for i := range c.entries {
		e := &c.entries[i]
		if e.live {
			pipeline.ReturnPooledRow(e.row)
			e.row, e.size, e.live = nil, 0, false
			c.free = append(c.free, uint32(i))
		}
	}
	c.live = 0
	c.used = 0
}

// Len returns the number of live rows.
func (c *Container) Len() int {
	return c.live
}

// UsedBytes returns the estimated bytes held by live rows.
func (c *Container) UsedBytes() int64 {
	return c.used
}

// PeakBytes returns the highest UsedBytes seen.
func (c *Container) PeakBytes() int64 {
	return c.peak
}
