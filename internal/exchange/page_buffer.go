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

package exchange

import (
	"io"
	"sync"

	"github.com/cardinalhq/lakemerge/internal/exec"
)

// PageBuffer receives the encoded pages of one split. The receiving side
// calls Enqueue and then NoMorePages or Fail; the consumer calls Next.
type PageBuffer struct {
	mu     sync.Mutex
	pages  [][]byte
	bytes  int64
	noMore bool
	err    error
	closed bool
	waiter *exec.Future
}

// NewPageBuffer returns an empty buffer.
func NewPageBuffer() *PageBuffer {
	return &PageBuffer{}
}

// Enqueue appends a page. Pages arriving after Close are dropped.
func (b *PageBuffer) Enqueue(page []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	if b.noMore || b.err != nil {
		return io.ErrClosedPipe
	}
	b.pages = append(b.pages, page)
	b.bytes += int64(len(page))
	b.wake()
	return nil
}

// NoMorePages records that the remote task has sent everything.
func (b *PageBuffer) NoMorePages() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.noMore = true
	b.wake()
}

// Fail records a transfer failure. The consumer sees err on its next call,
// after any pages already buffered.
func (b *PageBuffer) Fail(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err == nil {
		b.err = err
	}
	b.wake()
}

// Next returns the oldest buffered page. With nothing buffered it returns a
// future that completes when the buffer changes, or io.EOF once the remote
// task has finished.
func (b *PageBuffer) Next() ([]byte, *exec.Future, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.pages) > 0 {
		page := b.pages[0]
		b.pages[0] = nil
		b.pages = b.pages[1:]
		b.bytes -= int64(len(page))
		return page, nil, nil
	}
	if b.err != nil {
		return nil, nil, b.err
	}
	if b.noMore || b.closed {
		return nil, nil, io.EOF
	}
	if b.waiter == nil {
		b.waiter = exec.NewFuture()
	}
	return nil, b.waiter, nil
}

// BufferedBytes returns the total size of pages not yet consumed.
func (b *PageBuffer) BufferedBytes() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bytes
}

// Close drops buffered pages.
func (b *PageBuffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.pages = nil
	b.bytes = 0
	b.wake()
}

func (b *PageBuffer) wake() {
	if b.waiter != nil {
		b.waiter.Complete()
		b.waiter = nil
	}
}
