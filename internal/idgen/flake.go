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
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/sony/sonyflake"
)

var (
	flakeOnce sync.Once
	flake     *sonyflake.Sonyflake
)

// flakeEpoch is the sonyflake start time. Ids stay positive for ~174 years after it.
var flakeEpoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// NextFlakeID returns a positive int64 that increases roughly in time order.
// It identifies a process or a job run in logs and metrics. When sonyflake
// cannot derive a machine id (no private IPv4 address) a random positive id
// is returned instead.
func NextFlakeID() int64 {
	flakeOnce.Do(func() {
		flake = sonyflake.NewSonyflake(sonyflake.Settings{StartTime: flakeEpoch})
	})
	if flake != nil {
		if v, err := flake.NextID(); err == nil {
			return int64(v)
		}
	}
	return rand.Int64N(math.MaxInt64) + 1
}
