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

package idgen

import (
	"encoding/base32"
	"encoding/binary"
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/sony/sonyflake"
)

// DefaultFlakeGenerator issues instance and query ids for this process.
var DefaultFlakeGenerator *SonyFlakeGenerator

func init() {
	var err error
	DefaultFlakeGenerator, err = newFlakeGenerator(nil)
	if err != nil {
		panic(err)
	}
}

var flakeEpoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

type SonyFlakeGenerator struct {
	sf *sonyflake.Sonyflake
}

// newFlakeGenerator creates a generator. A nil machineID derives the machine
// id from the host's private IP, or picks a random one when there is none.
func newFlakeGenerator(machineID func() (uint16, error)) (*SonyFlakeGenerator, error) {
	settings := sonyflake.Settings{
		StartTime: flakeEpoch,
		MachineID: machineID,
	}

	sf, err := sonyflake.New(settings)
	if err != nil && machineID == nil {
		settings.MachineID = randomMachineID
		sf, err = sonyflake.New(settings)
	}
	if err != nil {
		return nil, err
	}
	if sf == nil {
		return nil, errors.New("failed to create Sonyflake instance")
	}
	return &SonyFlakeGenerator{sf: sf}, nil
}

func randomMachineID() (uint16, error) {
	return uint16(rand.UintN(1 << 16)), nil
}

// NextID returns a positive int64 that'll increase roughly in time order.
func (sf *SonyFlakeGenerator) NextID() int64 {
	v, err := sf.sf.NextID()
	if err != nil {
		return rand.Int64()
	}
	return int64(v)
}

var base32NoPad = base32.StdEncoding.WithPadding(base32.NoPadding)

// NextBase32ID returns NextID as lower case, unpadded base32.
func (sf *SonyFlakeGenerator) NextBase32ID() string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(sf.NextID()))
	return strings.ToLower(base32NoPad.EncodeToString(b[:]))
}

// NextBase32ID returns a base32 id from DefaultFlakeGenerator.
func NextBase32ID() string {
	return DefaultFlakeGenerator.NextBase32ID()
}
