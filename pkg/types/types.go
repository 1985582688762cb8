// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package types contains shared types used across the query pipeline.
// It exists to break import cycles between pkg/orchestration and pkg/llm:
// both need the LLM provider contract and the progress-event vocabulary
// without depending on each other.
package types

import (
	"context"
	"time"
)

// ============================================================================
// LLM Types
// ============================================================================

// Mode selects how a provider should constrain its output.
type Mode string

const (
	// ModeText requests free-form natural language output.
	ModeText Mode = "text"
	// ModeStructuredJSON requests output conforming to Request.Schema.
	ModeStructuredJSON Mode = "structured_json"
)

// Message is a single turn in a completion request.
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// Usage tracks LLM token usage and estimated cost for one completion.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
	CostUSD      float64
}

// Request is a single completion request sent to a provider.
type Request struct {
	Messages []Message
	Mode     Mode
	// Schema is a JSON Schema document constraining the response when
	// Mode is ModeStructuredJSON. Ignored otherwise.
	Schema      map[string]interface{}
	Temperature float64
	MaxTokens   int
}

// LLMResponse represents a response from the LLM.
type LLMResponse struct {
	// Content is the text response, or the raw JSON document when Mode was
	// ModeStructuredJSON.
	Content string

	StopReason string
	Usage      Usage
	Metadata   map[string]interface{}
}

// LLMProvider defines the interface for LLM providers.
// This allows pluggable LLM backends (Anthropic, Bedrock, Ollama, Azure, etc.).
type LLMProvider interface {
	// Complete sends req to the LLM and returns the response.
	Complete(ctx context.Context, req Request) (*LLMResponse, error)

	// Name returns the provider name.
	Name() string

	// Model returns the model identifier.
	Model() string
}

// TokenCallback is called for each token/chunk during streaming.
// Implementations should be lightweight and non-blocking.
type TokenCallback func(token string)

// StreamingLLMProvider extends LLMProvider with token streaming support.
// Providers implement this interface if they support real-time token streaming.
type StreamingLLMProvider interface {
	LLMProvider

	// CompleteStream streams tokens as they're generated from the LLM.
	// Returns the complete LLMResponse after the stream finishes.
	CompleteStream(ctx context.Context, req Request, tokenCallback TokenCallback) (*LLMResponse, error)
}

// SupportsStreaming checks if a provider supports token streaming.
func SupportsStreaming(provider LLMProvider) bool {
	_, ok := provider.(StreamingLLMProvider)
	return ok
}

// ============================================================================
// Pipeline progress events
// ============================================================================

// Stage identifies a step in the orchestrator's state machine.
type Stage string

const (
	StageParse       Stage = "parse"
	StageSchema      Stage = "schema"
	StageSynthesize  Stage = "synthesize"
	StageGate        Stage = "gate"
	StageExecute     Stage = "execute"
	StageVisualize   Stage = "visualize"
	StageDone        Stage = "done"
	StageDegraded    Stage = "degraded"
)

// ProgressEvent represents a progress update during a query's execution,
// published on the monitor feed (see pkg/orchestration/monitor.go) and
// relayed over the streaming query endpoint.
type ProgressEvent struct {
	RequestID string
	Stage     Stage
	Message   string
	Timestamp time.Time

	// PartialContent carries accumulated content during token streaming.
	PartialContent string
	IsTokenStream  bool
}

// ProgressCallback is invoked as execution advances through stages.
type ProgressCallback func(event ProgressEvent)

// ============================================================================
// Utility Functions
// ============================================================================

// SafeInt32 converts an int to int32, capping at MaxInt32/MinInt32 to prevent
// overflow when the value crosses into wire-format fields.
func SafeInt32(n int) int32 {
	const maxInt32 = 2147483647
	const minInt32 = -2147483648
	if n > maxInt32 {
		return maxInt32
	}
	if n < minInt32 {
		return minInt32
	}
	return int32(n)
}
