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
	"bufio"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path"
	"strings"
)

// CountRowsFile counts the rows in the file at filename. name decides the
// format: CSV files count data records, anything else counts lines.
func CountRowsFile(filename, name string) (int32, error) {
	f, err := os.Open(filename)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()
	return CountRows(f, name)
}

// CountRows counts CSV records excluding the header and any record whose
// fields are all blank when name has a .csv extension; otherwise every line
// counts, including a final line without a newline.
func CountRows(r io.Reader, name string) (int32, error) {
	if strings.EqualFold(path.Ext(name), ".csv") {
		return countCSVRows(r)
	}
	return countLines(r)
}

func countCSVRows(r io.Reader) (int32, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var rows int32
	headerSeen := false
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return 0, err
		}
		if blankRecord(rec) {
			continue
		}
		if !headerSeen {
			headerSeen = true
			continue
		}
		rows++
	}
}

func blankRecord(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func countLines(r io.Reader) (int32, error) {
	br := bufio.NewReader(r)
	var lines int32
	partial := false
	for {
		line, err := br.ReadSlice('\n')
		switch {
		case err == nil:
			lines++
			partial = false
		case errors.Is(err, bufio.ErrBufferFull):
			partial = true
		case errors.Is(err, io.EOF):
			if len(line) > 0 || partial {
				lines++
			}
			return lines, nil
		default:
			return 0, err
		}
	}
}
