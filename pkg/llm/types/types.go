// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package types re-exports the provider-facing LLM types from
// github.com/querymesh/loomquery/pkg/types so provider packages under
// pkg/llm/* don't import the parent pkg/llm package directly.
package types

import (
	"github.com/querymesh/loomquery/pkg/types"
)

type Mode = types.Mode
type Message = types.Message
type Usage = types.Usage
type Request = types.Request
type LLMResponse = types.LLMResponse
type LLMProvider = types.LLMProvider
type TokenCallback = types.TokenCallback
type StreamingLLMProvider = types.StreamingLLMProvider

const (
	ModeText           = types.ModeText
	ModeStructuredJSON = types.ModeStructuredJSON
)
