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

package transport

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	filesTransported metric.Int64Counter
	filesSkipped     metric.Int64Counter
	transportErrors  metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/dataimport/internal/transport")

	var err error
	filesTransported, err = meter.Int64Counter(
		"dataimport.transport.files",
		metric.WithDescription("Number of files stored and logged as Uploaded"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create transport.files counter: %w", err))
	}

	filesSkipped, err = meter.Int64Counter(
		"dataimport.transport.skipped",
		metric.WithDescription("Number of listed files skipped because they were already logged"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create transport.skipped counter: %w", err))
	}

	transportErrors, err = meter.Int64Counter(
		"dataimport.transport.errors",
		metric.WithDescription("Number of listing, fetch and store failures"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create transport.errors counter: %w", err))
	}
}
