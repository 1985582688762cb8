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

// Package llmgateway gives the rest of the pipeline one call surface over
// whichever text-completion providers pkg/llm/factory constructed, adding
// the retry, fallback, circuit-breaking and structured-output repair
// behavior none of the raw provider clients implement on their own.
package llmgateway

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/pkoukk/tiktoken-go"
	"github.com/sony/gobreaker"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/querymesh/loomquery/pkg/observability"
	"github.com/querymesh/loomquery/pkg/types"
)

// promptEncoding is shared across every Gateway: constructing it loads a BPE
// rank table, which is wasted work to repeat per request. Every provider
// this gateway fronts is a cl100k_base-family chat model, so one encoding is
// accurate enough for the estimate RecordMetric reports; it is never used to
// reject a request, only to size it.
var promptEncoding = sync.OnceValues(func() (*tiktoken.Tiktoken, error) {
	return tiktoken.GetEncoding("cl100k_base")
})

// estimateTokens returns a best-effort token count for text, or 0 if the
// encoding failed to load.
func estimateTokens(text string) int {
	enc, err := promptEncoding()
	if err != nil {
		return 0
	}
	return len(enc.Encode(text, nil, nil))
}

// ProviderUnavailable, Invalid, Overloaded and Timeout are the gateway's
// stable error taxonomy; callers type-assert rather than matching strings.
type ProviderUnavailable struct{ Provider string; Cause error }

func (e *ProviderUnavailable) Error() string {
	return fmt.Sprintf("llmgateway: provider %s unavailable: %v", e.Provider, e.Cause)
}
func (e *ProviderUnavailable) Unwrap() error { return e.Cause }

type Invalid struct{ Reason string }

func (e *Invalid) Error() string { return fmt.Sprintf("llmgateway: invalid response: %s", e.Reason) }

type Overloaded struct{ Provider string }

func (e *Overloaded) Error() string { return fmt.Sprintf("llmgateway: provider %s overloaded", e.Provider) }

type Timeout struct{ Provider string }

func (e *Timeout) Error() string { return fmt.Sprintf("llmgateway: provider %s timed out", e.Provider) }

// Request is the gateway's input contract, independent of any one provider's
// request shape.
type Request struct {
	Prompt      string
	System      string
	Mode        types.Mode
	Schema      map[string]interface{}
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// Response is the gateway's output: Text always carries the raw completion;
// JSON is populated only when Mode is ModeStructuredJSON and parsing (after
// repair) succeeded.
type Response struct {
	Text     string
	JSON     map[string]interface{}
	Usage    types.Usage
	Provider string
}

var jsonFence = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
var braceSpan = regexp.MustCompile(`(?s)\{.*\}`)

// Gateway wraps a primary provider, an optional fallback, and a circuit
// breaker per provider name so a string of failures trips the breaker
// instead of hammering a downed provider on every request.
type Gateway struct {
	primary  types.LLMProvider
	fallback types.LLMProvider
	logger   *zap.Logger
	tracer   observability.Tracer
	breakers map[string]*gobreaker.CircuitBreaker
}

// New builds a Gateway. fallback may be nil when no secondary provider is
// configured, in which case retry exhaustion surfaces directly.
func New(primary, fallback types.LLMProvider, tracer observability.Tracer, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}
	g := &Gateway{primary: primary, fallback: fallback, logger: logger, tracer: tracer, breakers: map[string]*gobreaker.CircuitBreaker{}}
	g.breakers[primary.Name()] = newBreaker(primary.Name())
	if fallback != nil {
		g.breakers[fallback.Name()] = newBreaker(fallback.Name())
	}
	return g
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}

// Complete runs req against the primary provider with retry+backoff, falls
// back once to the secondary provider on persistent failure, and for
// structured_json mode repairs and validates the response before returning.
func (g *Gateway) Complete(ctx context.Context, req Request) (*Response, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	if n := estimateTokens(req.System + req.Prompt); n > 0 {
		g.tracer.RecordMetric("llmgateway.prompt_tokens", float64(n), map[string]string{"mode": string(req.Mode)})
	}

	resp, err := g.callWithRetry(ctx, g.primary, req)
	if err != nil {
		g.logger.Warn("llmgateway: primary exhausted retries", zap.String("provider", g.primary.Name()), zap.Error(err))
		if g.fallback == nil {
			return nil, err
		}
		resp, err = g.callWithRetry(ctx, g.fallback, req)
		if err != nil {
			return nil, err
		}
	}
	return g.finalize(resp, req)
}

// callWithRetry applies exponential backoff (base 1s, cap 10s, jittered) for
// up to 3 attempts, retrying only ProviderUnavailable/Overloaded/Timeout,
// and trips provider's circuit breaker on the raw call.
func (g *Gateway) callWithRetry(ctx context.Context, provider types.LLMProvider, req Request) (*types.LLMResponse, error) {
	breaker := g.breakers[provider.Name()]

	operation := func() (*types.LLMResponse, error) {
		v, err := breaker.Execute(func() (interface{}, error) {
			return g.callOnce(ctx, provider, req)
		})
		if err != nil {
			if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
				return nil, &ProviderUnavailable{Provider: provider.Name(), Cause: err}
			}
			return nil, err
		}
		return v.(*types.LLMResponse), nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 10 * time.Second
	bo.RandomizationFactor = 0.3

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(3),
	)
}

func (g *Gateway) callOnce(ctx context.Context, provider types.LLMProvider, req Request) (*types.LLMResponse, error) {
	ctx, span := g.tracer.StartSpan(ctx, "llmgateway.complete",
		observability.WithAttribute("llm.provider", provider.Name()),
		observability.WithAttribute("llm.mode", string(req.Mode)))
	defer g.tracer.EndSpan(span)

	messages := []types.Message{}
	if req.System != "" {
		messages = append(messages, types.Message{Role: "system", Content: req.System})
	}
	messages = append(messages, types.Message{Role: "user", Content: req.Prompt})

	resp, err := provider.Complete(ctx, types.Request{
		Messages:    messages,
		Mode:        req.Mode,
		Schema:      req.Schema,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		if isTimeout(err) {
			return nil, &Timeout{Provider: provider.Name()}
		}
		if isOverloaded(err) {
			return nil, &Overloaded{Provider: provider.Name()}
		}
		return nil, &ProviderUnavailable{Provider: provider.Name(), Cause: err}
	}
	return resp, nil
}

func isTimeout(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded")
}

func isOverloaded(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "overloaded")
}

// finalize converts a raw provider response into the gateway's Response,
// parsing and repairing JSON when req.Mode is ModeStructuredJSON.
func (g *Gateway) finalize(resp *types.LLMResponse, req Request) (*Response, error) {
	out := &Response{Text: resp.Content, Usage: resp.Usage}

	if req.Mode != types.ModeStructuredJSON {
		return out, nil
	}

	parsed, err := parseJSON(resp.Content)
	if err != nil {
		return nil, &Invalid{Reason: err.Error()}
	}
	if len(req.Schema) > 0 {
		if verr := validateAgainstSchema(parsed, req.Schema); verr != nil {
			return nil, &Invalid{Reason: verr.Error()}
		}
	}
	out.JSON = parsed
	return out, nil
}

// parseJSON tries the raw content first, then a fenced ```json``` block,
// then the first {...} span; this is the gateway's one repair attempt for
// structured mode before giving up with Invalid.
func parseJSON(content string) (map[string]interface{}, error) {
	candidates := []string{strings.TrimSpace(content)}
	if m := jsonFence.FindStringSubmatch(content); m != nil {
		candidates = append(candidates, m[1])
	}
	if m := braceSpan.FindString(content); m != "" {
		candidates = append(candidates, m)
	}

	var lastErr error
	for _, c := range candidates {
		var parsed map[string]interface{}
		if err := json.Unmarshal([]byte(c), &parsed); err == nil {
			return parsed, nil
		} else {
			lastErr = err
		}
	}
	return nil, fmt.Errorf("no parseable JSON object found: %w", lastErr)
}

func validateAgainstSchema(doc map[string]interface{}, schema map[string]interface{}) error {
	schemaLoader := gojsonschema.NewGoLoader(schema)
	docLoader := gojsonschema.NewGoLoader(doc)
	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return err
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("schema validation failed: %s", strings.Join(msgs, "; "))
	}
	return nil
}
