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
	"fmt"

	"github.com/cardinalhq/lakemerge/internal/exec"
)

// LocalSourceFactory creates the n sources of a local merge.
type LocalSourceFactory func(n int) ([]Source, error)

// LocalMerge merges a fixed number of sources known before the first pull.
type LocalMerge struct {
	*Merge
}

type localPolicy struct {
	numSources int
	factory    LocalSourceFactory
	attached   bool
}

// NewLocalMerge builds a merge over numSources sources. The factory is called
// once, the first time the operator is polled.
func NewLocalMerge(opts Options, operatorID int, numSources int, factory LocalSourceFactory) (*LocalMerge, error) {
	if numSources < 1 {
		return nil, fmt.Errorf("%w: local merge needs at least one source, got %d", ErrSourceCount, numSources)
	}
	if factory == nil {
		return nil, fmt.Errorf("local merge requires a source factory")
	}
	m, err := New(opts, operatorID, &localPolicy{numSources: numSources, factory: factory})
	if err != nil {
		return nil, err
	}
	return &LocalMerge{Merge: m}, nil
}

// NewLocalMergeFromSources builds a local merge over already created sources.
func NewLocalMergeFromSources(opts Options, operatorID int, sources ...Source) (*LocalMerge, error) {
	return NewLocalMerge(opts, operatorID, len(sources), func(int) ([]Source, error) {
		return sources, nil
	})
}

func (p *localPolicy) Kind() string { return "LocalMerge" }

func (p *localPolicy) NoMoreSources() bool { return p.attached }

func (p *localPolicy) AddSources(_ context.Context, attach func(Source)) (exec.BlockingReason, *exec.Future, error) {
	if p.attached {
		return exec.NotBlocked, nil, nil
	}
	p.attached = true

	sources, err := p.factory(p.numSources)
	if err != nil {
		return exec.NotBlocked, nil, fmt.Errorf("create local merge sources: %w", err)
	}
	if len(sources) != p.numSources {
		for _, s := range sources {
			_ = s.Close()
		}
		return exec.NotBlocked, nil, fmt.Errorf("%w: want %d, factory returned %d", ErrSourceCount, p.numSources, len(sources))
	}
	for _, s := range sources {
		attach(s)
	}
	return exec.NotBlocked, nil, nil
}
