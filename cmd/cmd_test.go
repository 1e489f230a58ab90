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
package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/dataimport/ledgerdb"
)

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"run"},
		{"migrate"},
		{"files", "list"},
		{"files", "retry"},
		{"files", "cancel"},
		{"files", "activity"},
		{"job", "status"},
		{"bootstrap", "import"},
	} {
		c, rest, err := rootCmd.Find(path)
		require.NoError(t, err, strings.Join(path, " "))
		assert.Empty(t, rest)
		assert.Equal(t, path[len(path)-1], c.Name())
	}
}

func TestPrintFiles(t *testing.T) {
	created := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	msg := "Using DataMap: students, File has 3 rows\n\nmore detail"
	var buf bytes.Buffer
	require.NoError(t, printFiles(&buf, []ledgerdb.File{
		{ID: 7, FileName: "students.csv", Status: ledgerdb.FileStatusLoaded, Rows: 3, CreateDate: created, Message: &msg},
		{ID: 8, FileName: "staff.csv", Status: ledgerdb.FileStatusUploaded, CreateDate: created},
	}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "students.csv")
	assert.Contains(t, lines[1], "Loaded")
	assert.Contains(t, lines[1], "2025-03-04T05:06:07Z")
	assert.Contains(t, lines[1], "Using DataMap: students, File has 3 rows")
	assert.NotContains(t, lines[1], "more detail")
	assert.Contains(t, lines[2], "Uploaded")
}

func TestPrintFilesEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printFiles(&buf, nil))
	assert.Equal(t, "No files\n", buf.String())
}

func TestPrintActivity(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printActivity(&buf, []ledgerdb.ListActivityRow{
		{File: ledgerdb.File{ID: 1, FileName: "a.csv", Status: ledgerdb.FileStatusErrorLoading}, AgentName: "sis"},
	}))
	assert.Contains(t, buf.String(), "AGENT")
	assert.Contains(t, buf.String(), "sis")
	assert.Contains(t, buf.String(), "ErrorLoading")

	buf.Reset()
	require.NoError(t, printActivity(&buf, nil))
	assert.Equal(t, "No recent activity\n", buf.String())
}

func TestSummarize(t *testing.T) {
	long := strings.Repeat("x", messageWidth+10)
	empty := ""
	multi := "first\nsecond"

	assert.Equal(t, "-", summarize(nil))
	assert.Equal(t, "-", summarize(&empty))
	assert.Equal(t, "first", summarize(&multi))
	got := summarize(&long)
	assert.Len(t, got, messageWidth)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestPrintJobStatus(t *testing.T) {
	started := time.Date(2025, 3, 4, 5, 0, 0, 0, time.UTC)
	completed := started.Add(90 * time.Second)
	now := started.Add(2 * time.Hour)

	tests := []struct {
		name   string
		status ledgerdb.JobStatus
		want   []string
	}{
		{
			name: "never run",
			want: []string{"No job has run yet"},
		},
		{
			name:   "completed",
			status: ledgerdb.JobStatus{Started: &started, Completed: &completed},
			want:   []string{"State:     completed", "Duration:  1m30s"},
		},
		{
			name:   "running",
			status: ledgerdb.JobStatus{Started: &started},
			want:   []string{"State:     running", "Completed: -", "Duration:  2h"},
		},
		{
			name:   "completion from previous run",
			status: ledgerdb.JobStatus{Started: &now, Completed: &completed},
			want:   []string{"State:     running", "Duration:  0s"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, printJobStatus(&buf, tt.status, now))
			for _, w := range tt.want {
				assert.Contains(t, buf.String(), w)
			}
		})
	}
}
