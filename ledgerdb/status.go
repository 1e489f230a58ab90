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

package ledgerdb

import (
	"fmt"
	"strings"
)

// FileStatus is the lifecycle state of a transported file. The numeric
// values are persisted in files.status and must not be renumbered.
type FileStatus int16

const (
	FileStatusErrorLoading   FileStatus = 1
	FileStatusErrorTransform FileStatus = 2
	FileStatusErrorUploaded  FileStatus = 3
	FileStatusLoaded         FileStatus = 4
	FileStatusLoading        FileStatus = 5
	FileStatusTransforming   FileStatus = 6
	FileStatusUploaded       FileStatus = 7
	FileStatusRetry          FileStatus = 8
	// FileStatusDeleted is only found on legacy rows; cancellation replaced it.
	FileStatusDeleted  FileStatus = 9
	FileStatusCanceled FileStatus = 10
)

var fileStatusNames = map[FileStatus]string{
	FileStatusErrorLoading:   "ErrorLoading",
	FileStatusErrorTransform: "ErrorTransform",
	FileStatusErrorUploaded:  "ErrorUploaded",
	FileStatusLoaded:         "Loaded",
	FileStatusLoading:        "Loading",
	FileStatusTransforming:   "Transforming",
	FileStatusUploaded:       "Uploaded",
	FileStatusRetry:          "Retry",
	FileStatusDeleted:        "Deleted",
	FileStatusCanceled:       "Canceled",
}

func (s FileStatus) String() string {
	if name, ok := fileStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("FileStatus(%d)", int16(s))
}

// ParseFileStatus accepts a status name (case-insensitive) or its numeric code.
func ParseFileStatus(s string) (FileStatus, error) {
	for status, name := range fileStatusNames {
		if strings.EqualFold(name, s) {
			return status, nil
		}
	}
	var n int16
	if _, err := fmt.Sscanf(s, "%d", &n); err == nil {
		if _, ok := fileStatusNames[FileStatus(n)]; ok {
			return FileStatus(n), nil
		}
	}
	return 0, fmt.Errorf("unknown file status %q", s)
}

// IsError reports whether s is one of the three failure states.
func (s FileStatus) IsError() bool {
	switch s {
	case FileStatusErrorLoading, FileStatusErrorTransform, FileStatusErrorUploaded:
		return true
	}
	return false
}

// IsPending reports whether the processor should pick the file up.
func (s FileStatus) IsPending() bool {
	return s == FileStatusUploaded || s == FileStatusRetry
}

// IsTerminal reports whether the file has left the pipeline for good.
func (s FileStatus) IsTerminal() bool {
	switch s {
	case FileStatusLoaded, FileStatusCanceled, FileStatusDeleted:
		return true
	}
	return false
}

// CanBeRetried is true for every non-terminal state. Transforming and
// Loading are included so files stranded by an interrupted run can be
// queued again.
func (s FileStatus) CanBeRetried() bool {
	return !s.IsTerminal()
}

// CanBeCanceled is true for every state except Canceled and legacy Deleted.
func (s FileStatus) CanBeCanceled() bool {
	return s != FileStatusCanceled && s != FileStatusDeleted
}
