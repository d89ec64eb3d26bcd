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
	"container/heap"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/lakemerge/internal/exec"
	"github.com/cardinalhq/lakemerge/internal/pipeline"
	"github.com/cardinalhq/lakemerge/internal/rowstore"
)

// State is the lifecycle position of a merge operator. StateExtracting is
// also reported once every source has a row ready and output can be taken.
type State int

const (
	StateIdle State = iota
	StateProvisioning
	StateBlocked
	StateExtracting
	StateFinished
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProvisioning:
		return "provisioning"
	case StateBlocked:
		return "blocked"
	case StateExtracting:
		return "extracting"
	case StateFinished:
		return "finished"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Stats counts what a merge operator has done so far.
type Stats struct {
	RowsIn           int64
	RowsOut          int64
	BatchesOut       int64
	TimesBlocked     int64
	SourcesAttached  int
	SourcesExhausted int
	SplitsConsumed   int
	PeakStoreBytes   int64
}

type sourceState struct {
	index      int
	source     Source
	handles    []rowstore.RowHandle
	pos        int
	exhausted  bool
	inFrontier bool
}

// Merge is a k-way merge over sorted sources. Sources are attached by a
// Provisioner; rows pulled from them are buffered in a row store and the
// frontier holds the next unseen row of every source that is not exhausted.
//
// A Merge is driven from one goroutine at a time.
type Merge struct {
	operatorID int
	policy     Provisioner
	opts       Options

	store    *rowstore.Container
	cmp      *comparator
	frontier *frontier
	sources  []*sourceState

	state         State
	blockedReason exec.BlockingReason
	blockedFuture *exec.Future
	err           error
	closed        bool
	closeErrs     *multierror.Error

	stats    Stats
	kindAttr otelmetric.MeasurementOption
}

var _ exec.Operator = (*Merge)(nil)

// New builds a merge operator over the sources policy provides.
func New(opts Options, operatorID int, policy Provisioner) (*Merge, error) {
	if opts.Schema == nil {
		return nil, errors.New("merge requires a row schema")
	}
	keys, err := resolveKeys(opts.Schema, opts.Keys)
	if err != nil {
		return nil, err
	}
	if opts.OutputBatchBytes <= 0 {
		opts.OutputBatchBytes = DefaultOutputBatchBytes
	}

	store := rowstore.NewContainer(opts.Schema, opts.MemoryLimitBytes)
	cmp := &comparator{store: store, keys: keys}
	return &Merge{
		operatorID: operatorID,
		policy:     policy,
		opts:       opts,
		store:      store,
		cmp:        cmp,
		frontier:   &frontier{cmp: cmp},
		kindAttr:   otelmetric.WithAttributes(attribute.String("operator", policy.Kind())),
	}, nil
}

func (m *Merge) String() string {
	return fmt.Sprintf("%s(%d)", m.policy.Kind(), m.operatorID)
}

// State returns the current lifecycle state.
func (m *Merge) State() State {
	return m.state
}

// Err returns the fault that failed the operator, if any.
func (m *Merge) Err() error {
	return m.err
}

// IsFinished reports whether the operator reached end of stream or failed.
func (m *Merge) IsFinished() bool {
	return m.state == StateFinished || m.state == StateFailed
}

// FrontierSize returns the number of candidate rows in the frontier.
func (m *Merge) FrontierSize() int {
	return m.frontier.Len()
}

// ActiveSources returns the number of attached sources not yet exhausted.
func (m *Merge) ActiveSources() int {
	n := 0
	for _, s := range m.sources {
		if !s.exhausted {
			n++
		}
	}
	return n
}

// Stats returns a snapshot of the operator's counters.
func (m *Merge) Stats() Stats {
	st := m.stats
	st.PeakStoreBytes = m.store.PeakBytes()
	if sc, ok := m.policy.(interface{ NumSplits() int }); ok {
		st.SplitsConsumed = sc.NumSplits()
	}
	return st
}

// IsBlocked reports whether GetOutput can make progress. While a recorded
// block is pending it is returned unchanged; once its future completes the
// block is cleared and every source is polled again.
func (m *Merge) IsBlocked(ctx context.Context) (exec.BlockingReason, *exec.Future) {
	if m.IsFinished() || m.closed {
		return exec.NotBlocked, nil
	}
	if m.pending() {
		return m.blockedReason, m.blockedFuture
	}
	if !m.ensureReady(ctx) && m.err == nil {
		return m.blockedReason, m.blockedFuture
	}
	return exec.NotBlocked, nil
}

// GetOutput returns the next batch of merged rows. A nil batch with a nil
// error means the operator is blocked; io.EOF means every source is
// exhausted. It never waits.
func (m *Merge) GetOutput(ctx context.Context) (*pipeline.Batch, error) {
	switch {
	case m.err != nil:
		return nil, m.err
	case m.state == StateFinished:
		return nil, io.EOF
	case m.closed:
		return nil, errors.New("merge operator is closed")
	}

	if m.pending() || !m.ensureReady(ctx) {
		return nil, m.err
	}

	if m.frontier.Len() == 0 {
		if m.policy.NoMoreSources() {
			m.finish()
			return nil, io.EOF
		}
		return nil, nil
	}

	out := m.extract(ctx)
	if m.err != nil {
		pipeline.ReturnBatch(out)
		return nil, m.err
	}

	m.stats.RowsOut += int64(out.Len())
	m.stats.BatchesOut++
	rowsOutCounter.Add(ctx, int64(out.Len()), m.kindAttr)
	batchesOutCounter.Add(ctx, 1, m.kindAttr)
	return out, nil
}

// pending reports whether a recorded block is still waiting on its future,
// clearing it once the future has completed.
func (m *Merge) pending() bool {
	if m.blockedFuture == nil {
		return false
	}
	if !m.blockedFuture.IsDone() {
		return true
	}
	m.blockedReason, m.blockedFuture = exec.NotBlocked, nil
	return false
}

// ensureReady attaches available sources and makes sure every active source
// has a row in the frontier. It returns false if the operator blocked or failed.
func (m *Merge) ensureReady(ctx context.Context) bool {
	m.state = StateProvisioning

	reason, future, err := m.policy.AddSources(ctx, m.attach)
	if err != nil {
		m.fail(err)
		return false
	}
	if reason != exec.NotBlocked {
		m.block(ctx, reason, future)
		return false
	}

	for _, s := range m.sources {
		if s.exhausted || s.inFrontier {
			continue
		}
		// A source that is not ready halts the pass: its hidden row may rank
		// ahead of everything in the frontier.
		if !m.advance(ctx, s) {
			return false
		}
	}
	if m.frontier.Len() > 0 {
		m.state = StateExtracting
	}
	return true
}

func (m *Merge) attach(src Source) {
	m.sources = append(m.sources, &sourceState{index: len(m.sources), source: src})
	m.stats.SourcesAttached++
}

// advance puts the next row of s into the frontier, pulling a new batch when
// the staged rows are used up. It returns false if s blocked or failed.
func (m *Merge) advance(ctx context.Context, s *sourceState) bool {
	if s.pos < len(s.handles) {
		m.push(s)
		return true
	}
	s.handles, s.pos = nil, 0

	batch, reason, future, err := s.source.Next(ctx)
	switch {
	case errors.Is(err, io.EOF):
		if batch != nil {
			pipeline.ReturnBatch(batch)
		}
		m.exhaust(ctx, s)
		return true
	case err != nil:
		if batch != nil {
			pipeline.ReturnBatch(batch)
		}
		m.fail(fmt.Errorf("source %d: %w", s.index, err))
		return false
	case batch == nil:
		if reason == exec.NotBlocked || future == nil {
			reason, future = exec.WaitForProducer, exec.CompletedFuture()
		}
		m.block(ctx, reason, future)
		return false
	}

	n := batch.Len()
	if n == 0 {
		// Ready with zero rows is not progress; ask for an immediate retry.
		pipeline.ReturnBatch(batch)
		m.block(ctx, exec.WaitForProducer, exec.CompletedFuture())
		return false
	}

	handles, err := m.store.Store(batch)
	pipeline.ReturnBatch(batch)
	if err != nil {
		m.fail(fmt.Errorf("source %d: %w", s.index, err))
		return false
	}
	m.stats.RowsIn += int64(n)
	rowsInCounter.Add(ctx, int64(n), m.kindAttr)

	s.handles = handles
	m.push(s)
	return true
}

func (m *Merge) push(s *sourceState) {
	if s.inFrontier {
		panic(fmt.Sprintf("merge: source %d already has a frontier row", s.index))
	}
	heap.Push(m.frontier, sourceRow{source: s.index, row: s.handles[s.pos]})
	s.pos++
	s.inFrontier = true
}

// extract moves rows from the frontier into a new batch in merge order until
// the byte budget is reached, the frontier is empty, or a refill blocks.
func (m *Merge) extract(ctx context.Context) *pipeline.Batch {
	m.state = StateExtracting
	out := pipeline.GetBatch()
	var used int64

	for m.frontier.Len() > 0 {
		top := m.frontier.top()
		size := m.store.RowSize(top.row)
		if out.Len() > 0 && used+size > m.opts.OutputBatchBytes {
			break
		}

		heap.Pop(m.frontier)
		s := m.sources[top.source]
		s.inFrontier = false

		maps.Copy(out.AddRow(), m.store.Row(top.row))
		used += size
		m.store.Discard(top.row)

		if !m.advance(ctx, s) {
			break
		}
	}
	return out
}

func (m *Merge) exhaust(ctx context.Context, s *sourceState) {
	s.exhausted = true
	m.stats.SourcesExhausted++
	sourcesExhaustedCounter.Add(ctx, 1, m.kindAttr)
	slog.Debug("Merge source exhausted",
		slog.String("operator", m.String()),
		slog.Int("source", s.index),
		slog.Int("remaining", m.ActiveSources()))

	if err := s.source.Close(); err != nil {
		m.closeErrs = multierror.Append(m.closeErrs, fmt.Errorf("close source %d: %w", s.index, err))
	}
	s.source = nil
}

func (m *Merge) block(ctx context.Context, reason exec.BlockingReason, future *exec.Future) {
	m.state = StateBlocked
	m.blockedReason, m.blockedFuture = reason, future
	m.stats.TimesBlocked++
	blockedCounter.Add(ctx, 1, m.kindAttr, otelmetric.WithAttributes(attribute.String("reason", reason.String())))
}

func (m *Merge) finish() {
	m.state = StateFinished
	slog.Info("Merge finished",
		slog.String("operator", m.String()),
		slog.Int64("rowsOut", m.stats.RowsOut),
		slog.Int64("batchesOut", m.stats.BatchesOut),
		slog.Int("sources", len(m.sources)))
}

// fail moves the operator to its terminal failed state. No source is pulled
// afterwards.
func (m *Merge) fail(err error) {
	m.err = err
	m.state = StateFailed
	m.blockedReason, m.blockedFuture = exec.NotBlocked, nil
	slog.Debug("Merge failed", slog.String("operator", m.String()), slog.Any("error", err))
}

// Close releases buffered rows and closes every source that is still open.
func (m *Merge) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true

	result := m.closeErrs
	for _, s := range m.sources {
		if s.source == nil {
			continue
		}
		if err := s.source.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close source %d: %w", s.index, err))
		}
		s.source = nil
		s.handles = nil
	}
	m.frontier.reset()
	m.store.Clear()

	if c, ok := m.policy.(io.Closer); ok {
		if err := c.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
