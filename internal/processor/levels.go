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

package processor

import (
	"strings"
)

// IngestionLevel is the severity of an ingestion log entry.
type IngestionLevel int

const (
	LevelInformation IngestionLevel = iota
	LevelWarning
	LevelError
	// LevelNone as a minimum disables ingestion logging.
	LevelNone
)

func (l IngestionLevel) String() string {
	switch l {
	case LevelInformation:
		return "Information"
	case LevelWarning:
		return "Warning"
	case LevelError:
		return "Error"
	}
	return "None"
}

// ParseIngestionLevel maps a configured minimum level name to a level.
// Unknown names fall back to Error.
func ParseIngestionLevel(s string) IngestionLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "information", "info":
		return LevelInformation
	case "warning", "warn":
		return LevelWarning
	case "none", "off":
		return LevelNone
	}
	return LevelError
}

// enabled reports whether an entry at level passes the minimum.
func (m IngestionLevel) enabled(level IngestionLevel) bool {
	return m != LevelNone && level >= m
}
