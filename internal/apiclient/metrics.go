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

package apiclient

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	postDuration metric.Float64Histogram
	tokenFetches metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/dataimport/internal/apiclient")

	var err error
	postDuration, err = meter.Float64Histogram(
		"dataimport.api.post.duration",
		metric.WithDescription("Duration of resource requests"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create api.post.duration histogram: %w", err))
	}

	tokenFetches, err = meter.Int64Counter(
		"dataimport.api.token.fetches",
		metric.WithDescription("Number of access tokens requested from targets"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create api.token.fetches counter: %w", err))
	}
}
