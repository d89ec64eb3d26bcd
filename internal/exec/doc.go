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

// Package exec holds the cooperative scheduling contract shared by operators
// and the driver that runs them.
//
// Operators never block the goroutine that drives them. When an operator
// cannot make progress it reports a BlockingReason together with a Future;
// the driver waits on the Future (or runs other work) and calls the operator
// again once it completes. Re-polling an operator after its Future completes
// is always safe.
package exec
