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
	"log/slog"
	"os"
	"path/filepath"
)

// ScratchDirName is the TMPDIR leaf that main sets up for downloads.
const ScratchDirName = "dataimport"

// CleanTempDir empties the scratch directory after a run. A temp dir with
// any other name is shared with other programs and is left alone.
func CleanTempDir() {
	cleanDir(os.TempDir())
}

func cleanDir(dir string) {
	if filepath.Base(dir) != ScratchDirName {
		slog.Debug("Temp dir is not the scratch dir, not cleaning", slog.String("path", dir))
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		slog.Info("Failed to read scratch dir (ignoring)", slog.String("path", dir), slog.Any("error", err))
		return
	}
	for _, e := range entries {
		p := filepath.Join(dir, e.Name())
		if err := os.RemoveAll(p); err != nil {
			slog.Warn("Failed to remove scratch file", slog.String("path", p), slog.Any("error", err))
		}
	}
	slog.Debug("Cleaned scratch dir", slog.String("path", dir), slog.Int("entries", len(entries)))
}
