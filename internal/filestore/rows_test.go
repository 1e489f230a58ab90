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

package filestore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountRows(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		content  string
		want     int32
	}{
		{"csv with header", "a.csv", "id,name\n1,x\n2,y\n", 2},
		{"csv upper-case extension", "A.CSV", "id,name\n1,x\n", 1},
		{"csv header only", "a.csv", "id,name\n", 0},
		{"csv empty", "a.csv", "", 0},
		{"csv blank lines ignored", "a.csv", "id,name\n\n1,x\n   \n2,y\n\n", 2},
		{"csv whitespace-only records ignored", "a.csv", "id,name\n , \n1,x\n", 1},
		{"csv quoted newline is one record", "a.csv", "id,note\n1,\"two\nlines\"\n2,ok\n", 2},
		{"csv without trailing newline", "a.csv", "id\n1\n2", 2},
		{"csv ragged rows", "a.csv", "a,b,c\n1\n2,3\n", 2},
		{"text lines", "a.txt", "one\ntwo\nthree\n", 3},
		{"text blank lines count", "a.txt", "one\n\nthree\n", 3},
		{"text without trailing newline", "a.txt", "one\ntwo", 2},
		{"text empty", "a.txt", "", 0},
		{"no extension", "README", "x\n", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CountRows(strings.NewReader(tt.content), tt.fileName)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCountRowsLongLines(t *testing.T) {
	long := strings.Repeat("x", 10000)
	got, err := CountRows(strings.NewReader(long+"\n"+long), "big.txt")
	require.NoError(t, err)
	assert.Equal(t, int32(2), got)

	got, err = CountRows(strings.NewReader(strings.Repeat("y", 4096)), "exact.txt")
	require.NoError(t, err)
	assert.Equal(t, int32(1), got)
}
