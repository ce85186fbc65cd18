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
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/whatssound/pkg/payments"
	"github.com/kadirpekel/whatssound/pkg/throttle"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetrics_Export(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: true})
	require.NoError(t, err)
	defer m.Shutdown(context.Background())

	m.RecordDecision(throttle.CategoryPayments, true)
	m.RecordDecision(throttle.CategoryPayments, false)
	m.RecordEvictions(3)
	m.RecordPayment(payments.KindTip, payments.OutcomeCreated)
	m.RecordHTTPRequest(context.Background(), http.MethodGet, "/health", 200, 0)

	body := scrape(t, m)
	assert.Contains(t, body, "whatssound_throttle_decisions_total")
	assert.Contains(t, body, `category="payments"`)
	assert.Contains(t, body, "whatssound_throttle_evictions_total")
	assert.Contains(t, body, "whatssound_payments_total")
	assert.Contains(t, body, `kind="tip"`)
	assert.Contains(t, body, "whatssound_http_request_duration_seconds")
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordDecision(throttle.CategoryChat, true)
	m.RecordEvictions(1)
	m.RecordPayment(payments.KindTip, payments.OutcomeFailed)
	m.RecordHTTPRequest(context.Background(), http.MethodGet, "/", 200, 0)
	assert.NoError(t, m.Shutdown(context.Background()))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHTTPMiddleware_RoutePattern(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: true})
	require.NoError(t, err)

	var out bytes.Buffer
	tracer, err := NewTracer(context.Background(), TracingConfig{Enabled: true, Exporter: "stdout"}, WithStdoutWriter(&out))
	require.NoError(t, err)
	require.NotNil(t, tracer)

	r := chi.NewRouter()
	r.Use(HTTPMiddleware(tracer, m))
	r.Get("/v1/payments/transactions/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/payments/transactions/abc", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	require.NoError(t, tracer.Shutdown(context.Background()))
	assert.Contains(t, out.String(), "GET /v1/payments/transactions/{id}")

	body := scrape(t, m)
	assert.Contains(t, body, `route="/v1/payments/transactions/{id}"`)
	assert.Contains(t, body, `status="418"`)
}

func TestNewTracer_Disabled(t *testing.T) {
	tracer, err := NewTracer(context.Background(), TracingConfig{})
	require.NoError(t, err)
	assert.Nil(t, tracer)

	ctx, span := tracer.Start(context.Background(), "noop")
	assert.NotNil(t, ctx)
	span.End()
	assert.NoError(t, tracer.Shutdown(context.Background()))
}

func TestNewTracer_StdoutResource(t *testing.T) {
	var out bytes.Buffer
	tracer, err := NewTracer(context.Background(),
		TracingConfig{Enabled: true, Exporter: "stdout", ServiceVersion: "1.2.3"},
		WithStdoutWriter(&out))
	require.NoError(t, err)

	_, span := tracer.Start(context.Background(), "throttle.check")
	span.End()
	require.NoError(t, tracer.Shutdown(context.Background()))

	assert.Contains(t, out.String(), "throttle.check")
	assert.Contains(t, out.String(), `"Value": "whatssound"`)
	assert.Contains(t, out.String(), `"Value": "1.2.3"`)
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{}
	cfg.SetDefaults()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "/metrics", cfg.Metrics.Endpoint)
	assert.Equal(t, "otlp", cfg.Tracing.Exporter)
	assert.True(t, cfg.Tracing.IsInsecure())

	bad := Config{Tracing: TracingConfig{Enabled: true, Exporter: "zipkin"}}
	assert.ErrorContains(t, bad.Validate(), "invalid exporter")

	bad = Config{Tracing: TracingConfig{Enabled: true, Exporter: "stdout", SamplingRate: 2}}
	assert.ErrorContains(t, bad.Validate(), "sampling_rate")

	bad = Config{Metrics: MetricsConfig{Enabled: true, Endpoint: "metrics"}}
	assert.ErrorContains(t, bad.Validate(), "absolute path")
}
