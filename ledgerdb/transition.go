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
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTransition is matched by errors.Is for any refused status change.
var ErrInvalidTransition = errors.New("invalid file status transition")

type InvalidTransitionError struct {
	FileID int64
	From   FileStatus
	To     FileStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("file %d cannot move from %s to %s", e.FileID, e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

type TransitionFileParams struct {
	ID int64
	// Allowed gates the change on the file's current status; nil allows any.
	Allowed    func(FileStatus) bool
	Status     FileStatus
	Message    *string
	UpdateDate time.Time
}

const getFileForUpdate = `SELECT ` + fileColumns + `
FROM files f
WHERE f.id = $1
FOR UPDATE
`

func (q *Queries) GetFileForUpdate(ctx context.Context, id int64) (File, error) {
	return scanFile(q.db.QueryRow(ctx, getFileForUpdate, id))
}

// TransitionFile moves a file to a new status if its current status passes
// arg.Allowed. The row is locked for the duration of the check.
func (store *Store) TransitionFile(ctx context.Context, arg TransitionFileParams) (File, error) {
	var out File
	err := store.execTx(ctx, func(s *Store) error {
		f, err := s.GetFileForUpdate(ctx, arg.ID)
		if err != nil {
			return fmt.Errorf("failed to load file %d: %w", arg.ID, err)
		}
		if arg.Allowed != nil && !arg.Allowed(f.Status) {
			return &InvalidTransitionError{FileID: f.ID, From: f.Status, To: arg.Status}
		}
		if err := s.UpdateFileStatus(ctx, UpdateFileStatusParams{
			ID:         f.ID,
			Status:     arg.Status,
			Message:    arg.Message,
			UpdateDate: arg.UpdateDate,
		}); err != nil {
			return err
		}
		updated := arg.UpdateDate
		f.Status = arg.Status
		if arg.Message != nil {
			f.Message = arg.Message
		}
		f.UpdateDate = &updated
		out = f
		return nil
	})
	return out, err
}
