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
	"log/slog"

	"github.com/cardinalhq/lakemerge/internal/exchange"
	"github.com/cardinalhq/lakemerge/internal/exec"
	"github.com/cardinalhq/lakemerge/internal/rowcodec"
)

// SplitPoller hands out splits as they are assigned. exchange.SplitQueue
// implements it.
type SplitPoller interface {
	// Poll returns the splits assigned since the last call. Until noMore is
	// true it also returns a future that completes when more may be available.
	Poll() (splits []exchange.Split, future *exec.Future, noMore bool)
}

// ExchangeSourceFactory wraps one split as a merge source.
type ExchangeSourceFactory func(split exchange.Split) (Source, error)

// MergeExchange merges the outputs of remote tasks, one source per split.
// Merging only starts once split assignment has ended, since a split that
// has not arrived yet may hold the first row.
type MergeExchange struct {
	*Merge
	policy *exchangePolicy
}

type exchangePolicy struct {
	poller       SplitPoller
	factory      ExchangeSourceFactory
	noMoreSplits bool
	numSplits    int
}

// NewMergeExchange builds a merge fed by poller. A nil factory decodes CBOR
// pages with exchange.NewSource.
func NewMergeExchange(opts Options, operatorID int, poller SplitPoller, factory ExchangeSourceFactory) (*MergeExchange, error) {
	if poller == nil {
		return nil, fmt.Errorf("merge exchange requires a split poller")
	}
	if factory == nil {
		codec, err := rowcodec.NewCBOR()
		if err != nil {
			return nil, err
		}
		factory = func(split exchange.Split) (Source, error) {
			return exchange.NewSource(split, codec)
		}
	}

	p := &exchangePolicy{poller: poller, factory: factory}
	m, err := New(opts, operatorID, p)
	if err != nil {
		return nil, err
	}
	return &MergeExchange{Merge: m, policy: p}, nil
}

// NumSplits returns how many splits have been attached as sources.
func (e *MergeExchange) NumSplits() int {
	return e.policy.numSplits
}

func (p *exchangePolicy) Kind() string { return "MergeExchange" }

func (p *exchangePolicy) NoMoreSources() bool { return p.noMoreSplits }

func (p *exchangePolicy) NumSplits() int { return p.numSplits }

func (p *exchangePolicy) AddSources(ctx context.Context, attach func(Source)) (exec.BlockingReason, *exec.Future, error) {
	if p.noMoreSplits {
		return exec.NotBlocked, nil, nil
	}

	splits, future, noMore := p.poller.Poll()
	for _, split := range splits {
		src, err := p.factory(split)
		if err != nil {
			return exec.NotBlocked, nil, fmt.Errorf("split %s: %w", split.ID, err)
		}
		attach(src)
		p.numSplits++
		splitsCounter.Add(ctx, 1)
		slog.Debug("Merge exchange attached split",
			slog.String("split", split.ID),
			slog.String("remoteTask", split.RemoteTaskID),
			slog.Int("numSplits", p.numSplits))
	}

	if noMore {
		p.noMoreSplits = true
		return exec.NotBlocked, nil, nil
	}
	if future == nil {
		future = exec.CompletedFuture()
	}
	return exec.WaitForSplit, future, nil
}
