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
	"time"
)

const jobStarted = `UPDATE job_status
SET started = $1,
    completed = NULL
WHERE id = 1
`

// JobStarted marks a run as in progress and clears the previous completion time.
func (q *Queries) JobStarted(ctx context.Context, started time.Time) error {
	_, err := q.db.Exec(ctx, jobStarted, started)
	return err
}

const jobCompleted = `UPDATE job_status
SET completed = $1
WHERE id = 1
`

func (q *Queries) JobCompleted(ctx context.Context, completed time.Time) error {
	_, err := q.db.Exec(ctx, jobCompleted, completed)
	return err
}

const getJobStatus = `SELECT id, started, completed
FROM job_status
WHERE id = 1
`

func (q *Queries) GetJobStatus(ctx context.Context) (JobStatus, error) {
	var i JobStatus
	err := q.db.QueryRow(ctx, getJobStatus).Scan(&i.ID, &i.Started, &i.Completed)
	return i, err
}
