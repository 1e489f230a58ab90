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
package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvBool(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"", true, true},
		{"", false, false},
		{"true", false, true},
		{"TRUE", false, true},
		{"1", false, true},
		{" yes ", false, true},
		{"on", false, true},
		{"false", true, false},
		{"0", true, false},
		{"No", true, false},
		{"off", true, false},
		{"maybe", true, true},
		{"maybe", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("DATAIMPORT_TEST_BOOL", tt.value)
			assert.Equal(t, tt.want, EnvBool("DATAIMPORT_TEST_BOOL", tt.def))
		})
	}
}

func TestAnyEnvSet(t *testing.T) {
	t.Setenv("DATAIMPORT_TEST_A", "")
	t.Setenv("DATAIMPORT_TEST_B", "")
	assert.False(t, AnyEnvSet("DATAIMPORT_TEST_A", "DATAIMPORT_TEST_B"))

	t.Setenv("DATAIMPORT_TEST_B", "x")
	assert.True(t, AnyEnvSet("DATAIMPORT_TEST_A", "DATAIMPORT_TEST_B"))
}
