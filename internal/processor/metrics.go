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
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	rowsPosted     metric.Int64Counter
	filesProcessed metric.Int64Counter
	rowsDuplicate  metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/dataimport/internal/processor")

	var err error
	rowsPosted, err = meter.Int64Counter(
		"dataimport.processor.rows",
		metric.WithDescription("Number of rows posted to a target, by result"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create processor.rows counter: %w", err))
	}

	rowsDuplicate, err = meter.Int64Counter(
		"dataimport.processor.rows.duplicate",
		metric.WithDescription("Number of mapped rows skipped because an identical body was already posted"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create processor.rows.duplicate counter: %w", err))
	}

	filesProcessed, err = meter.Int64Counter(
		"dataimport.processor.files",
		metric.WithDescription("Number of files processed, by final status"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create processor.files counter: %w", err))
	}
}
