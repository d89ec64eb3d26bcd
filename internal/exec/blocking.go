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

package exec

// BlockingReason tells the driver why an operator cannot make progress.
type BlockingReason int

const (
	NotBlocked BlockingReason = iota
	// WaitForProducer means a local producer has not delivered data yet.
	WaitForProducer
	// WaitForSplit means more splits may still be assigned to the task.
	WaitForSplit
	// WaitForExchange means a remote page has not arrived yet.
	WaitForExchange
)

func (r BlockingReason) String() string {
	switch r {
	case NotBlocked:
		return "not_blocked"
	case WaitForProducer:
		return "wait_for_producer"
	case WaitForSplit:
		return "wait_for_split"
	case WaitForExchange:
		return "wait_for_exchange"
	default:
		return "unknown"
	}
}
