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
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/cardinalhq/dataimport/ledgerdb"
)

var (
	ErrMissingColumn     = errors.New("missing column")
	ErrMissingLookupKey  = errors.New("missing lookup key")
	ErrTypeConversion    = errors.New("type conversion failed")
	ErrMissingResourceID = errors.New("missing resource id")
)

// Mapper turns file rows into resource bodies for one data map.
type Mapper interface {
	Name() string
	ResourcePath() string
	Operation() Operation
	// Validate checks the file header and lookup tables before any row is mapped.
	Validate(header []string) error
	Map(row Row) ([]byte, error)
}

// ValidationError names everything a file or the lookup set lacks for a map.
type ValidationError struct {
	DataMap        string
	MissingColumns []string
	MissingLookups []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.MissingColumns) > 0 {
		parts = append(parts, "input file missing columns: "+strings.Join(e.MissingColumns, ", "))
	}
	if len(e.MissingLookups) > 0 {
		parts = append(parts, "missing lookups: "+strings.Join(e.MissingLookups, ", "))
	}
	return fmt.Sprintf("data map '%s' cannot be applied, %s", e.DataMap, strings.Join(parts, "; "))
}

// RowError wraps a failure to map one row.
type RowError struct {
	Row   int
	Field string
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d, field %s: %v", e.Row, e.Field, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// DataMapMapper is the Mapper backed by a stored data map definition.
type DataMapMapper struct {
	name         string
	resourcePath string
	def          *Definition
	lookups      *Lookups
}

var _ Mapper = (*DataMapMapper)(nil)

func NewMapper(dm ledgerdb.DataMap, lookups *Lookups) (*DataMapMapper, error) {
	def, err := ParseDefinition(dm.Map)
	if err != nil {
		return nil, fmt.Errorf("data map %s: %w", dm.Name, err)
	}
	if lookups == nil {
		lookups = NewLookups(nil)
	}
	return &DataMapMapper{
		name:         dm.Name,
		resourcePath: dm.ResourcePath,
		def:          def,
		lookups:      lookups,
	}, nil
}

func (m *DataMapMapper) Name() string         { return m.name }
func (m *DataMapMapper) ResourcePath() string { return m.resourcePath }
func (m *DataMapMapper) Operation() Operation  { return m.def.Operation }

func (m *DataMapMapper) Validate(header []string) error {
	verr := &ValidationError{DataMap: m.name}
	for _, c := range m.def.Columns() {
		if !slices.Contains(header, c) {
			verr.MissingColumns = append(verr.MissingColumns, c)
		}
	}
	for _, t := range m.def.LookupTables() {
		if !m.lookups.HasTable(t) {
			verr.MissingLookups = append(verr.MissingLookups, t)
		}
	}
	if len(verr.MissingColumns) > 0 || len(verr.MissingLookups) > 0 {
		return verr
	}
	return nil
}

// Map builds the JSON body for row. Blank values are omitted from the body.
func (m *DataMapMapper) Map(row Row) ([]byte, error) {
	root := map[string]any{}
	for _, f := range m.def.Fields {
		raw, err := m.rawValue(f, row)
		if err != nil {
			return nil, &RowError{Row: row.Number, Field: f.Path, Err: err}
		}
		if strings.TrimSpace(raw) == "" {
			continue
		}
		v, err := convert(f.Type, raw)
		if err != nil {
			return nil, &RowError{Row: row.Number, Field: f.Path, Err: err}
		}
		if err := setPath(root, f.segments, v); err != nil {
			return nil, &RowError{Row: row.Number, Field: f.Path, Err: err}
		}
	}
	body, ok := compact(root).(map[string]any)
	if !ok {
		body = map[string]any{}
	}
	out, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	if m.def.Operation == OperationDelete {
		if _, err := ResourceID(out); err != nil {
			return nil, &RowError{Row: row.Number, Field: "id", Err: err}
		}
	}
	return out, nil
}

func (m *DataMapMapper) rawValue(f Field, row Row) (string, error) {
	if f.Column == "" {
		return f.Value, nil
	}
	cell, ok := row.Values[f.Column]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrMissingColumn, f.Column)
	}
	raw := cell
	if strings.TrimSpace(cell) != "" && strings.TrimSpace(f.Lookup) != "" {
		v, ok := m.lookups.Lookup(f.Lookup, cell)
		if !ok {
			return "", fmt.Errorf("%w %q in table %q for column %q", ErrMissingLookupKey, strings.TrimSpace(cell), f.Lookup, f.Column)
		}
		raw = v
	}
	if strings.TrimSpace(raw) == "" {
		return f.Default, nil
	}
	return raw, nil
}

func convert(typ, raw string) (any, error) {
	switch typ {
	case TypeInteger:
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an integer", ErrTypeConversion, raw)
		}
		return n, nil
	case TypeNumber:
		s := strings.TrimPrefix(strings.TrimSpace(raw), "$")
		s = strings.ReplaceAll(s, ",", "")
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrTypeConversion, raw)
		}
		return json.Number(s), nil
	case TypeBoolean:
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, fmt.Errorf("%w: %q is not a boolean", ErrTypeConversion, raw)
	}
	return raw, nil
}
