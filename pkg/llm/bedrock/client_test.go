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
package bedrock

import (
	"context"
	"testing"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/querymesh/loomquery/pkg/llm"
	"github.com/querymesh/loomquery/pkg/types"
)

func TestNewClient_Defaults(t *testing.T) {
	client, err := NewClient(Config{
		AccessKeyID:     "AKIAEXAMPLE",
		SecretAccessKey: "secret",
		Region:          "us-west-2",
	})
	require.NoError(t, err)
	require.NotNil(t, client)

	assert.Equal(t, DefaultBedrockModelID, client.modelID)
	assert.Equal(t, "us-west-2", client.region)
	assert.Equal(t, int64(DefaultBedrockMaxTokens), client.maxTokens)
	assert.Equal(t, DefaultBedrockTemperature, client.temperature)
}

func TestNewClient_CustomParameters(t *testing.T) {
	client, err := NewClient(Config{
		AccessKeyID:     "AKIAEXAMPLE",
		SecretAccessKey: "secret",
		Region:          "eu-central-1",
		ModelID:         "anthropic.claude-3-haiku-20240307-v1:0",
		MaxTokens:       2048,
		Temperature:     0.2,
	})
	require.NoError(t, err)

	assert.Equal(t, "anthropic.claude-3-haiku-20240307-v1:0", client.modelID)
	assert.Equal(t, "eu-central-1", client.region)
	assert.Equal(t, int64(2048), client.maxTokens)
	assert.Equal(t, 0.2, client.temperature)
}

func TestNewClient_ExplicitCredentials(t *testing.T) {
	client, err := NewClient(Config{
		AccessKeyID:     "AKIAEXAMPLE",
		SecretAccessKey: "secret",
		SessionToken:    "token",
		Region:          "us-east-1",
	})
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestNewClient_DefaultCredentialsChain(t *testing.T) {
	client, err := NewClient(Config{Region: "us-west-2"})
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestNewClient_RateLimiterEnabled(t *testing.T) {
	client, err := NewClient(Config{
		AccessKeyID:     "AKIAEXAMPLE",
		SecretAccessKey: "secret",
		Region:          "us-west-2",
		RateLimiterConfig: llm.RateLimiterConfig{
			Enabled:           true,
			RequestsPerSecond: 1.0,
			BurstCapacity:     1,
		},
	})
	require.NoError(t, err)
	assert.NotNil(t, client.rateLimiter)
}

func TestClient_Name(t *testing.T) {
	client, err := NewClient(Config{AccessKeyID: "AKIAEXAMPLE", SecretAccessKey: "secret", Region: "us-west-2"})
	require.NoError(t, err)
	assert.Equal(t, "bedrock", client.Name())
}

func TestClient_Model(t *testing.T) {
	client, err := NewClient(Config{
		AccessKeyID:     "AKIAEXAMPLE",
		SecretAccessKey: "secret",
		Region:          "us-west-2",
		ModelID:         "anthropic.claude-3-opus-20240229-v1:0",
	})
	require.NoError(t, err)
	assert.Equal(t, "anthropic.claude-3-opus-20240229-v1:0", client.Model())
}

func TestClient_ConvertMessagesToSDK(t *testing.T) {
	client := &Client{}

	system, sdkMessages := client.convertMessagesToSDK(types.Request{
		Messages: []types.Message{
			{Role: "system", Content: "be terse"},
			{Role: "user", Content: "Hello"},
			{Role: "assistant", Content: "Hi there!"},
		},
	})

	assert.Equal(t, "be terse", system)
	require.Len(t, sdkMessages, 2)
	assert.Equal(t, anthropic.MessageParamRoleUser, sdkMessages[0].Role)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, sdkMessages[1].Role)
}

func TestClient_ConvertMessagesToSDK_StructuredJSONInjectsSchema(t *testing.T) {
	client := &Client{}

	system, sdkMessages := client.convertMessagesToSDK(types.Request{
		Messages: []types.Message{{Role: "user", Content: "classify this"}},
		Mode:     types.ModeStructuredJSON,
		Schema:   map[string]interface{}{"type": "object"},
	})

	assert.Contains(t, system, "JSON Schema")
	require.Len(t, sdkMessages, 1)
}

func TestClient_ConvertMessagesToSDK_SkipsEmptyContent(t *testing.T) {
	client := &Client{}

	_, sdkMessages := client.convertMessagesToSDK(types.Request{
		Messages: []types.Message{
			{Role: "user", Content: ""},
			{Role: "user", Content: "Hello"},
		},
	})

	assert.Len(t, sdkMessages, 1)
}

func TestClient_CalculateCost(t *testing.T) {
	tests := []struct {
		name    string
		modelID string
		wantMin float64
		wantMax float64
	}{
		{"sonnet-4", "us.anthropic.claude-sonnet-4-5-20250929-v1:0", 0.017, 0.019},
		{"haiku-4", "anthropic.claude-haiku-4-20250101-v1:0", 0.0047, 0.0049},
		{"opus-4", "anthropic.claude-opus-4-20250101-v1:0", 0.089, 0.091},
		{"unknown falls back to sonnet pricing", "anthropic.claude-2", 0.017, 0.019},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &Client{modelID: tt.modelID}
			got := client.calculateCost(1000, 1000)
			assert.GreaterOrEqual(t, got, tt.wantMin)
			assert.LessOrEqual(t, got, tt.wantMax)
		})
	}
}

func TestClient_ConvertResponseFromSDK(t *testing.T) {
	client := &Client{modelID: "us.anthropic.claude-sonnet-4-5-20250929-v1:0"}

	message := &anthropic.Message{
		ID:         "msg_123",
		StopReason: anthropic.StopReasonEndTurn,
		Content: []anthropic.ContentBlockUnion{
			{Type: "text", Text: "Hello "},
			{Type: "text", Text: "world"},
		},
		Usage: anthropic.Usage{InputTokens: 12, OutputTokens: 7},
	}

	resp := client.convertResponseFromSDK(message)

	assert.Equal(t, "Hello world", resp.Content)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, 12, resp.Usage.InputTokens)
	assert.Equal(t, 7, resp.Usage.OutputTokens)
	assert.Equal(t, 19, resp.Usage.TotalTokens)
	assert.Greater(t, resp.Usage.CostUSD, 0.0)
	assert.Equal(t, "msg_123", resp.Metadata["message_id"])
}

func TestClient_Complete_NoMessages(t *testing.T) {
	client, err := NewClient(Config{AccessKeyID: "AKIAEXAMPLE", SecretAccessKey: "secret", Region: "us-west-2"})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), types.Request{})
	assert.Error(t, err)
}
