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
package cloudstorage

import (
	"context"
	"fmt"
	"path"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	storageOps   metric.Int64Counter
	storageBytes metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/dataimport/internal/cloudstorage")

	var err error
	storageOps, err = meter.Int64Counter(
		"dataimport.storage.operations",
		metric.WithDescription("Object storage operations by provider, operation and result"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create storage.operations counter: %w", err))
	}

	storageBytes, err = meter.Int64Counter(
		"dataimport.storage.bytes",
		metric.WithUnit("By"),
		metric.WithDescription("Bytes moved to or from object storage"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create storage.bytes counter: %w", err))
	}
}

// Result attribute values.
const (
	resultOK       = "ok"
	resultNotFound = "not_found"
	resultError    = "error"
)

func recordOp(ctx context.Context, provider, op, result string, size int64) {
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("operation", op),
	)
	storageOps.Add(ctx, 1, attrs, metric.WithAttributes(attribute.String("result", result)))
	if size > 0 {
		storageBytes.Add(ctx, size, attrs)
	}
}

func contentType(key string) string {
	if strings.EqualFold(path.Ext(key), ".csv") {
		return "text/csv"
	}
	return "application/octet-stream"
}
