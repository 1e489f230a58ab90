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
package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/dataimport/internal/helpers"
	"github.com/cardinalhq/dataimport/ledgerdb"
	"github.com/cardinalhq/dataimport/ledgerdb/migrations"
)

func init() {
	rootCmd.AddCommand(jobCmd())
}

func jobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Job status commands",
	}
	cmd.AddCommand(jobStatusCmd())
	return cmd
}

func jobStatusCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show when the last job started and completed",
		RunE: func(c *cobra.Command, _ []string) error {
			ctx, cancel := handleSignals(context.Background())
			defer cancel()

			store, err := openLedger(ctx, migrations.WithCheckMode(migrations.CheckModeWarn))
			if err != nil {
				return err
			}
			defer store.Close()

			status, err := store.GetJobStatus(ctx)
			if err != nil {
				return fmt.Errorf("failed to get job status: %w", err)
			}
			if jsonOutput {
				return printJSON(c.OutOrStdout(), status)
			}
			return printJobStatus(c.OutOrStdout(), status, time.Now())
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	return cmd
}

func printJobStatus(w io.Writer, status ledgerdb.JobStatus, now time.Time) error {
	if status.Started == nil {
		_, err := fmt.Fprintln(w, "No job has run yet")
		return err
	}

	state := "running"
	var took string
	if status.Completed != nil && !status.Completed.Before(*status.Started) {
		state = "completed"
		took = helpers.FormatDuration(status.Completed.Sub(*status.Started))
	} else {
		took = helpers.FormatDuration(now.Sub(*status.Started))
	}

	_, err := fmt.Fprintf(w, "State:     %s\nStarted:   %s\nCompleted: %s\nDuration:  %s\n",
		state, formatTime(status.Started), formatTime(status.Completed), took)
	return err
}
