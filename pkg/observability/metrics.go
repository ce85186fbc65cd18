// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package observability

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kadirpekel/whatssound/pkg/payments"
	"github.com/kadirpekel/whatssound/pkg/throttle"
)

// Metrics records service metrics through an OpenTelemetry meter backed by
// a Prometheus exporter. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *promclient.Registry
	provider *sdkmetric.MeterProvider

	throttleDecisions metric.Int64Counter
	throttleEvictions metric.Int64Counter
	payments          metric.Int64Counter
	httpDuration      metric.Float64Histogram
}

// NewMetrics creates the meter provider and instruments. Metrics are
// exported on a dedicated registry served by Handler.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	cfg.SetDefaults()

	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(
		prometheus.WithRegisterer(registry),
		prometheus.WithNamespace(cfg.Namespace),
		prometheus.WithoutScopeInfo(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("github.com/kadirpekel/whatssound")

	m := &Metrics{registry: registry, provider: provider}

	m.throttleDecisions, err = meter.Int64Counter(
		"throttle_decisions",
		metric.WithDescription("Throttle decisions by category and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create throttle decisions counter: %w", err)
	}

	m.throttleEvictions, err = meter.Int64Counter(
		"throttle_evictions",
		metric.WithDescription("Throttle keys evicted by sweeps"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create throttle evictions counter: %w", err)
	}

	m.payments, err = meter.Int64Counter(
		"payments",
		metric.WithDescription("Payment initiations by kind and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create payments counter: %w", err)
	}

	m.httpDuration, err = meter.Float64Histogram(
		"http_request_duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http duration histogram: %w", err)
	}

	return m, nil
}

// RecordDecision implements throttle.Recorder.
func (m *Metrics) RecordDecision(category throttle.Category, allowed bool) {
	if m == nil {
		return
	}
	m.throttleDecisions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("category", string(category)),
		attribute.Bool("allowed", allowed),
	))
}

// RecordEvictions implements throttle.Recorder.
func (m *Metrics) RecordEvictions(n int) {
	if m == nil {
		return
	}
	m.throttleEvictions.Add(context.Background(), int64(n))
}

// RecordPayment implements payments.Recorder.
func (m *Metrics) RecordPayment(kind payments.Kind, status string) {
	if m == nil {
		return
	}
	m.payments.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("kind", string(kind)),
		attribute.String("status", status),
	))
}

// RecordHTTPRequest records the duration of one HTTP request.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status", strconv.Itoa(status)),
	))
}

// Handler serves the metrics registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and stops the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}

var (
	_ throttle.Recorder = (*Metrics)(nil)
	_ payments.Recorder = (*Metrics)(nil)
)
