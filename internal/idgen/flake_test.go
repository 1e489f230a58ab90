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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextFlakeID(t *testing.T) {
	a := NextFlakeID()
	b := NextFlakeID()
	assert.Positive(t, a)
	assert.Positive(t, b)
	if flake != nil {
		assert.Greater(t, b, a)
	}
}

func TestRunIDGeneratorSortsWithinMillisecond(t *testing.T) {
	gen := NewRunIDGenerator()
	now := time.Now()

	a := gen.Make(now)
	b := gen.Make(now)
	assert.Len(t, a, 26)
	assert.Less(t, a, b)
}

func TestRunIDGeneratorEncodesTime(t *testing.T) {
	gen := NewRunIDGenerator()
	earlier := gen.Make(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	later := gen.Make(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	assert.Less(t, earlier, later)
}
