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
	"context"

	"github.com/cardinalhq/lakemerge/internal/exec"
	"github.com/cardinalhq/lakemerge/internal/pipeline"
)

// Source is one sorted input of a merge.
type Source interface {
	// Next returns the next batch of rows, in sort order. When no batch is
	// ready it returns a nil batch with a reason and a future that completes
	// once retrying may succeed. io.EOF marks the end of the source. The
	// caller owns a returned batch.
	Next(ctx context.Context) (*pipeline.Batch, exec.BlockingReason, *exec.Future, error)

	// Close releases the source. It is called once, either after the source
	// returned io.EOF or when the merge is closed.
	Close() error
}

// Provisioner attaches sources to a merge.
type Provisioner interface {
	// AddSources attaches every source that is available now by calling
	// attach. It reports a blocking reason and future when the merge must
	// wait for more sources before it can make progress.
	AddSources(ctx context.Context, attach func(Source)) (exec.BlockingReason, *exec.Future, error)

	// NoMoreSources reports whether every source has been attached.
	NoMoreSources() bool

	// Kind names the operator, e.g. "LocalMerge".
	Kind() string
}
