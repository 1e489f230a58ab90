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

	"github.com/spf13/cobra"

	"github.com/cardinalhq/dataimport/internal/bootstrap"
)

func init() {
	rootCmd.AddCommand(bootstrapCmd())
}

func bootstrapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Seed API connections, agents, data maps and lookups",
	}
	cmd.AddCommand(bootstrapImportCmd())
	return cmd
}

func bootstrapImportCmd() *cobra.Command {
	var (
		file       string
		recipients []string
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a YAML bootstrap document into the ledger",
		RunE: func(c *cobra.Command, _ []string) error {
			doc, err := bootstrap.ParseFile(file)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", file, err)
			}

			ctx, cancel := handleSignals(context.Background())
			defer cancel()

			store, err := openLedger(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			var opts []bootstrap.Option
			if len(recipients) > 0 {
				opts = append(opts, bootstrap.WithRecipients(recipients...))
			}
			sum, err := bootstrap.Import(ctx, store, doc, opts...)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(c.OutOrStdout(),
				"Imported %d API connections, %d data maps, %d agents (%d schedules), %d lookups, %d bootstrap payloads\n",
				sum.ApiServers, sum.DataMaps, sum.Agents, sum.Schedules, sum.Lookups, sum.BootstrapData)
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Bootstrap YAML file")
	cmd.Flags().StringArrayVar(&recipients, "recipient", nil, "age recipient (age1...) used to encrypt stored credentials; repeatable")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
