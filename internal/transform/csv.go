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

package transform

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Row is one data row keyed by header name. Number counts data rows from 1.
type Row struct {
	Number int
	Values map[string]string
}

// Table is a fully read delimited file.
type Table struct {
	Header []string
	Rows   []Row
}

// ReadCSVFile reads filename as a CSV table.
func ReadCSVFile(filename string) (*Table, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV reads a header line and all data rows. Short rows are padded with
// empty values and blank lines are skipped.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var t Table
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		if blank(rec) {
			continue
		}
		if t.Header == nil {
			t.Header = make([]string, len(rec))
			for i, h := range rec {
				if i == 0 {
					h = strings.TrimPrefix(h, "\ufeff")
				}
				t.Header[i] = strings.TrimSpace(h)
			}
			continue
		}
		values := make(map[string]string, len(t.Header))
		for i, h := range t.Header {
			if i < len(rec) {
				values[h] = rec[i]
			} else {
				values[h] = ""
			}
		}
		t.Rows = append(t.Rows, Row{Number: len(t.Rows) + 1, Values: values})
	}
	if t.Header == nil {
		return nil, errors.New("read csv: file has no header")
	}
	return &t, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
