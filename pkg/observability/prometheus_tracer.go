// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package observability

import (
	"context"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusTracer delegates spans and events to an inner Tracer (typically
// a ZapTracer) and additionally exports every RecordMetric call as a
// Prometheus gauge, scraped at GET /metrics. One GaugeVec is registered per
// distinct metric name, the first time it's seen, with that call's label
// keys; a later call for the same name with different label keys is passed
// to the inner tracer but not exported to Prometheus.
type PrometheusTracer struct {
	inner    Tracer
	registry *prometheus.Registry

	mu     sync.Mutex
	gauges map[string]*prometheus.GaugeVec
}

// NewPrometheusTracer wraps inner with Prometheus metric export, registering
// gauges against registry. A nil inner falls back to a ZapTracer with a
// no-op logger.
func NewPrometheusTracer(inner Tracer, registry *prometheus.Registry) *PrometheusTracer {
	if inner == nil {
		inner = NewZapTracer(nil)
	}
	return &PrometheusTracer{inner: inner, registry: registry, gauges: make(map[string]*prometheus.GaugeVec)}
}

func (t *PrometheusTracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, *Span) {
	return t.inner.StartSpan(ctx, name, opts...)
}

func (t *PrometheusTracer) EndSpan(span *Span) {
	t.inner.EndSpan(span)
}

func (t *PrometheusTracer) RecordMetric(name string, value float64, labels map[string]string) {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	gauge := t.gaugeFor(name, keys)
	if gauge != nil {
		if g, err := gauge.GetMetricWith(prometheus.Labels(labels)); err == nil {
			g.Set(value)
		}
	}
	t.inner.RecordMetric(name, value, labels)
}

func (t *PrometheusTracer) gaugeFor(name string, labelKeys []string) *prometheus.GaugeVec {
	t.mu.Lock()
	defer t.mu.Unlock()

	if g, ok := t.gauges[name]; ok {
		return g
	}
	g := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "loomquery",
		Name:      metricNameToPrometheus(name),
		Help:      "query pipeline metric " + name,
	}, labelKeys)
	if t.registry != nil {
		if err := t.registry.Register(g); err != nil {
			return nil
		}
	}
	t.gauges[name] = g
	return g
}

func (t *PrometheusTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	t.inner.RecordEvent(ctx, name, attributes)
}

func (t *PrometheusTracer) Flush(ctx context.Context) error {
	return t.inner.Flush(ctx)
}

func metricNameToPrometheus(name string) string {
	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '.' || c == '-' {
			out[i] = '_'
		} else {
			out[i] = c
		}
	}
	return string(out)
}

var _ Tracer = (*PrometheusTracer)(nil)
