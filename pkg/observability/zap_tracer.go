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
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ZapTracer renders spans and metrics as structured zap log lines. It has no
// external exporter of its own; PrometheusTracer wraps a ZapTracer to add
// aggregate metric export while keeping the per-request log trail.
type ZapTracer struct {
	logger *zap.Logger
}

// NewZapTracer builds a ZapTracer writing through logger. A nil logger falls
// back to zap.NewNop().
func NewZapTracer(logger *zap.Logger) *ZapTracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapTracer{logger: logger}
}

func (t *ZapTracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, *Span) {
	span := &Span{
		TraceID:    uuid.New().String(),
		SpanID:     uuid.New().String(),
		Name:       name,
		StartTime:  time.Now(),
		Attributes: make(map[string]interface{}),
	}
	for _, opt := range opts {
		opt(span)
	}
	if parent := SpanFromContext(ctx); parent != nil {
		span.TraceID = parent.TraceID
		span.ParentID = parent.SpanID
	}
	t.logger.Debug("span.start",
		zap.String("trace_id", span.TraceID),
		zap.String("span_id", span.SpanID),
		zap.String("name", name),
	)
	return ContextWithSpan(ctx, span), span
}

func (t *ZapTracer) EndSpan(span *Span) {
	if span == nil {
		return
	}
	span.EndTime = time.Now()
	span.Duration = span.EndTime.Sub(span.StartTime)

	fields := []zap.Field{
		zap.String("trace_id", span.TraceID),
		zap.String("span_id", span.SpanID),
		zap.String("name", span.Name),
		zap.Duration("duration", span.Duration),
	}
	for k, v := range span.Attributes {
		fields = append(fields, zap.Any(k, v))
	}

	if span.Status.Code == StatusError {
		t.logger.Warn("span.end", append(fields, zap.String("error", span.Status.Message))...)
		return
	}
	t.logger.Debug("span.end", fields...)
}

func (t *ZapTracer) RecordMetric(name string, value float64, labels map[string]string) {
	fields := make([]zap.Field, 0, len(labels)+2)
	fields = append(fields, zap.String("metric", name), zap.Float64("value", value))
	for k, v := range labels {
		fields = append(fields, zap.String(k, v))
	}
	t.logger.Info("metric", fields...)
}

func (t *ZapTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	fields := make([]zap.Field, 0, len(attributes)+1)
	fields = append(fields, zap.String("event", name))
	for k, v := range attributes {
		fields = append(fields, zap.Any(k, v))
	}
	t.logger.Info("event", fields...)
}

func (t *ZapTracer) Flush(ctx context.Context) error {
	return t.logger.Sync()
}

var _ Tracer = (*ZapTracer)(nil)
