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

// Package merge implements a non-blocking k-way merge operator.
//
// A Merge consumes any number of individually sorted sources and produces one
// globally sorted stream of batches. It never blocks the goroutine driving it:
// when a source that could hold the next row is not ready, the merge reports
// itself blocked with an exec.Future and waits to be polled again.
//
// Two provisioning policies decide where sources come from. LocalMerge knows
// its sources up front; they are typically fed by producer goroutines through
// LocalMergeSource. MergeExchange attaches one source per remote split as
// splits are assigned, and only starts merging once split assignment ends.
package merge
