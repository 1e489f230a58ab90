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
	"fmt"
	"strconv"
	"strings"
)

// segment is one step of a dot path: a property name, optionally indexed
// into an array ("scores[1]").
type segment struct {
	key   string
	index int
}

func parsePath(p string) ([]segment, error) {
	if p == "" {
		return nil, fmt.Errorf("empty field path")
	}
	parts := strings.Split(p, ".")
	segs := make([]segment, 0, len(parts))
	for _, part := range parts {
		s := segment{key: part, index: -1}
		if open := strings.IndexByte(part, '['); open >= 0 {
			if !strings.HasSuffix(part, "]") {
				return nil, fmt.Errorf("path %q: unterminated index in %q", p, part)
			}
			n, err := strconv.Atoi(part[open+1 : len(part)-1])
			if err != nil || n < 0 {
				return nil, fmt.Errorf("path %q: bad index in %q", p, part)
			}
			s.key, s.index = part[:open], n
		}
		if s.key == "" {
			return nil, fmt.Errorf("path %q: empty segment", p)
		}
		segs = append(segs, s)
	}
	return segs, nil
}

// setPath places v in the tree rooted at root, creating objects and arrays
// along the way. An existing value of the wrong shape is an error.
func setPath(root map[string]any, segs []segment, v any) error {
	node := root
	for i, s := range segs {
		last := i == len(segs)-1
		if s.index < 0 {
			if last {
				node[s.key] = v
				return nil
			}
			child, ok := node[s.key]
			if !ok {
				m := map[string]any{}
				node[s.key] = m
				node = m
				continue
			}
			m, ok := child.(map[string]any)
			if !ok {
				return fmt.Errorf("%q is not an object", s.key)
			}
			node = m
			continue
		}

		var arr []any
		if existing, ok := node[s.key]; ok {
			if arr, ok = existing.([]any); !ok {
				return fmt.Errorf("%q is not an array", s.key)
			}
		}
		for len(arr) <= s.index {
			arr = append(arr, nil)
		}
		if last {
			arr[s.index] = v
			node[s.key] = arr
			return nil
		}
		m, ok := arr[s.index].(map[string]any)
		if !ok {
			if arr[s.index] != nil {
				return fmt.Errorf("%q[%d] is not an object", s.key, s.index)
			}
			m = map[string]any{}
			arr[s.index] = m
		}
		node[s.key] = arr
		node = m
	}
	return nil
}

// compact drops array slots that were never filled and containers left
// empty, so blank cells in jagged input do not produce null elements.
func compact(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			c := compact(child)
			if c == nil {
				delete(t, k)
				continue
			}
			t[k] = c
		}
		if len(t) == 0 {
			return nil
		}
		return t
	case []any:
		out := t[:0]
		for _, child := range t {
			if c := compact(child); c != nil {
				out = append(out, c)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	}
	return v
}
