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
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/dataimport/config"
	"github.com/cardinalhq/dataimport/internal/cloudstorage"
	"github.com/cardinalhq/dataimport/internal/fileops"
	"github.com/cardinalhq/dataimport/internal/filestore"
	"github.com/cardinalhq/dataimport/ledgerdb"
	"github.com/cardinalhq/dataimport/ledgerdb/migrations"
)

const messageWidth = 60

func init() {
	rootCmd.AddCommand(filesCmd())
}

func filesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "Inspect and manage transported files",
	}
	cmd.AddCommand(filesListCmd())
	cmd.AddCommand(filesRetryCmd())
	cmd.AddCommand(filesCancelCmd())
	cmd.AddCommand(filesActivityCmd())
	return cmd
}

func filesListCmd() *cobra.Command {
	var (
		agentID    int64
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every file logged for an agent",
		RunE: func(c *cobra.Command, _ []string) error {
			ctx, cancel := handleSignals(context.Background())
			defer cancel()

			store, err := openLedger(ctx, migrations.WithCheckMode(migrations.CheckModeWarn))
			if err != nil {
				return err
			}
			defer store.Close()

			files, err := store.GetFilesForAgent(ctx, agentID)
			if err != nil {
				return fmt.Errorf("failed to list files for agent %d: %w", agentID, err)
			}
			if jsonOutput {
				return printJSON(c.OutOrStdout(), files)
			}
			return printFiles(c.OutOrStdout(), files)
		},
	}
	cmd.Flags().Int64Var(&agentID, "agent", 0, "Agent ID")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	_ = cmd.MarkFlagRequired("agent")
	return cmd
}

func filesRetryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry <file-id>",
		Short: "Queue a failed or interrupted file to be processed again on the next run",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return withFileOps(args[0], false, func(ctx context.Context, ops *fileops.Ops, id int64) error {
				file, err := ops.Retry(ctx, id)
				if err != nil {
					return fmt.Errorf("failed to retry file %d: %w", id, err)
				}
				_, err = fmt.Fprintf(c.OutOrStdout(), "File %d (%s) is now %s\n", file.ID, file.FileName, file.Status)
				return err
			})
		},
	}
}

func filesCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <file-id>",
		Short: "Cancel a file and delete its stored copy",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return withFileOps(args[0], true, func(ctx context.Context, ops *fileops.Ops, id int64) error {
				file, err := ops.Cancel(ctx, id)
				if err != nil {
					return fmt.Errorf("failed to cancel file %d: %w", id, err)
				}
				_, err = fmt.Fprintf(c.OutOrStdout(), "File %d (%s) is now %s\n", file.ID, file.FileName, file.Status)
				return err
			})
		},
	}
}

func filesActivityCmd() *cobra.Command {
	var (
		apiServerID int64
		limit       int32
		jsonOutput  bool
	)
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show recent file activity, newest first",
		RunE: func(c *cobra.Command, _ []string) error {
			var target *int64
			if c.Flags().Changed("api-server") {
				target = &apiServerID
			}
			return withFileOps("", false, func(ctx context.Context, ops *fileops.Ops, _ int64) error {
				rows, err := ops.Activity(ctx, target, limit)
				if err != nil {
					return fmt.Errorf("failed to load activity: %w", err)
				}
				if jsonOutput {
					return printJSON(c.OutOrStdout(), rows)
				}
				return printActivity(c.OutOrStdout(), rows)
			})
		},
	}
	cmd.Flags().Int64Var(&apiServerID, "api-server", 0, "Only show files for this API connection ID")
	cmd.Flags().Int32Var(&limit, "limit", fileops.DefaultActivityLimit, "Maximum number of rows")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	return cmd
}

// withFileOps opens the ledger, and the file store when needStorage is set,
// then calls fn with the parsed file id. An empty rawID is passed as zero.
func withFileOps(rawID string, needStorage bool, fn func(context.Context, *fileops.Ops, int64) error) error {
	var id int64
	if rawID != "" {
		v, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid file id %q: %w", rawID, err)
		}
		id = v
	}

	ctx, cancel := handleSignals(context.Background())
	defer cancel()

	store, err := openLedger(ctx, migrations.WithCheckMode(migrations.CheckModeWarn))
	if err != nil {
		return err
	}
	defer store.Close()

	var files filestore.FileStore
	if needStorage {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		fs, err := filestore.New(ctx, cfg.Storage, cloudstorage.NewCloudManagers())
		if err != nil {
			return fmt.Errorf("failed to open file store: %w", err)
		}
		files = fs
	}

	return fn(ctx, fileops.New(store, files), id)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printFiles(w io.Writer, files []ledgerdb.File) error {
	if len(files) == 0 {
		_, err := fmt.Fprintln(w, "No files")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "ID\tFILE\tSTATUS\tROWS\tCREATED\tUPDATED\tMESSAGE"); err != nil {
		return err
	}
	for _, f := range files {
		if _, err := fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\t%s\n",
			f.ID, f.FileName, f.Status, f.Rows,
			formatTime(&f.CreateDate), formatTime(f.UpdateDate), summarize(f.Message)); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func printActivity(w io.Writer, rows []ledgerdb.ListActivityRow) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No recent activity")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "ID\tAGENT\tFILE\tSTATUS\tROWS\tCREATED\tMESSAGE"); err != nil {
		return err
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\t%s\n",
			r.ID, r.AgentName, r.FileName, r.Status, r.Rows,
			formatTime(&r.CreateDate), summarize(r.Message)); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

// summarize returns the first line of a status message, truncated for tables.
func summarize(msg *string) string {
	if msg == nil || *msg == "" {
		return "-"
	}
	s, _, _ := strings.Cut(*msg, "\n")
	if len(s) > messageWidth {
		s = s[:messageWidth-3] + "..."
	}
	return s
}
