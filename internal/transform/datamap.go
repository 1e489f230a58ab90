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

// Package transform turns tabular file rows into JSON resource bodies using
// a data map.
package transform

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/cardinalhq/dataimport/ledgerdb"
)

// Supported field types.
const (
	TypeString   = "string"
	TypeDateTime = "date-time"
	TypeInteger  = "integer"
	TypeNumber   = "number"
	TypeBoolean  = "boolean"
)

// Operation is what a data map does with each mapped row.
type Operation string

const (
	// OperationPost creates or updates the resource. It is the default.
	OperationPost Operation = "post"
	// OperationDelete deletes the resource named by the row's "id" field.
	OperationDelete Operation = "delete"
	// OperationDeleteByNaturalKey posts the row to resolve its resource, then
	// deletes the location the target returns.
	OperationDeleteByNaturalKey Operation = "delete_by_natural_key"
)

func (o Operation) IsDelete() bool {
	return o == OperationDelete || o == OperationDeleteByNaturalKey
}

// Field maps one source column (or a constant) to a dot path in the body.
type Field struct {
	Path    string `json:"path"`
	Column  string `json:"column,omitempty"`
	Lookup  string `json:"lookup,omitempty"`
	Default string `json:"default,omitempty"`
	Value   string `json:"value,omitempty"`
	Type    string `json:"type,omitempty"`

	segments []segment
}

// Definition is the persisted form of a data map.
type Definition struct {
	Operation Operation `json:"operation,omitempty"`
	Fields    []Field   `json:"fields"`
}

// ParseDefinition decodes and checks a data map definition.
func ParseDefinition(raw []byte) (*Definition, error) {
	var def Definition
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("invalid data map: %w", err)
	}
	if len(def.Fields) == 0 {
		return nil, errors.New("invalid data map: no fields")
	}
	def.Operation = Operation(strings.ToLower(strings.TrimSpace(string(def.Operation))))
	switch def.Operation {
	case "":
		def.Operation = OperationPost
	case OperationPost, OperationDelete, OperationDeleteByNaturalKey:
	default:
		return nil, fmt.Errorf("invalid data map: unsupported operation %q", def.Operation)
	}
	for i := range def.Fields {
		f := &def.Fields[i]
		if f.Type == "" {
			f.Type = TypeString
		}
		switch f.Type {
		case TypeString, TypeDateTime, TypeInteger, TypeNumber, TypeBoolean:
		default:
			return nil, fmt.Errorf("invalid data map: field %q has unsupported type %q", f.Path, f.Type)
		}
		segs, err := parsePath(f.Path)
		if err != nil {
			return nil, fmt.Errorf("invalid data map: %w", err)
		}
		f.segments = segs
	}
	if def.Operation == OperationDelete && !slices.ContainsFunc(def.Fields, isIDField) {
		return nil, errors.New(`invalid data map: delete maps need a field with path "id"`)
	}
	return &def, nil
}

func isIDField(f Field) bool {
	return len(f.segments) == 1 && f.segments[0].index < 0 && strings.EqualFold(f.segments[0].key, "id")
}

// ResourceID returns the top-level "id" of a mapped body, matched without
// regard to case.
func ResourceID(body []byte) (string, error) {
	var m map[string]any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMissingResourceID, err)
	}
	for k, v := range m {
		if !strings.EqualFold(k, "id") {
			continue
		}
		id := strings.TrimSpace(fmt.Sprint(v))
		if v == nil || id == "" {
			break
		}
		return id, nil
	}
	return "", ErrMissingResourceID
}

// Columns returns the distinct source columns the map reads, in map order.
func (d *Definition) Columns() []string {
	var out []string
	for _, f := range d.Fields {
		if f.Column != "" && !slices.Contains(out, f.Column) {
			out = append(out, f.Column)
		}
	}
	return out
}

// LookupTables returns the distinct lookup tables the map references.
func (d *Definition) LookupTables() []string {
	var out []string
	for _, f := range d.Fields {
		t := strings.TrimSpace(f.Lookup)
		if t != "" && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

// Lookups is the lookup table set loaded once per processor pass. Tables,
// keys and values are compared with surrounding whitespace removed.
type Lookups struct {
	tables map[string]map[string]string
}

func NewLookups(rows []ledgerdb.Lookup) *Lookups {
	l := &Lookups{tables: map[string]map[string]string{}}
	for _, r := range rows {
		table := strings.TrimSpace(r.SourceTable)
		m, ok := l.tables[table]
		if !ok {
			m = map[string]string{}
			l.tables[table] = m
		}
		m[strings.TrimSpace(r.Key)] = strings.TrimSpace(r.Value)
	}
	return l
}

func (l *Lookups) HasTable(table string) bool {
	_, ok := l.tables[strings.TrimSpace(table)]
	return ok
}

func (l *Lookups) Lookup(table, key string) (string, bool) {
	v, ok := l.tables[strings.TrimSpace(table)][strings.TrimSpace(key)]
	return v, ok
}

// SourceTables returns the sorted table names.
func (l *Lookups) SourceTables() []string {
	out := make([]string, 0, len(l.tables))
	for t := range l.tables {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}
