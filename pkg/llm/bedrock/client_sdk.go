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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/querymesh/loomquery/pkg/llm"
	llmtypes "github.com/querymesh/loomquery/pkg/llm/types"
)

// Global rate limiter shared across all Bedrock clients.
var (
	globalRateLimiter     *llm.RateLimiter
	globalRateLimiterOnce sync.Once
)

// Config holds configuration for the Bedrock client.
type Config struct {
	// AWS Configuration
	Region          string // Optional: AWS region (e.g., us-east-1); defaults to DefaultBedrockRegion
	AccessKeyID     string // Optional: if not using IAM role/profile
	SecretAccessKey string // Optional: if not using IAM role/profile
	SessionToken    string // Optional: for temporary credentials
	Profile         string // Optional: AWS profile name from ~/.aws/config

	// Model Configuration
	ModelID     string  // Default: us.anthropic.claude-sonnet-4-5-20250929-v1:0
	MaxTokens   int     // Default: 4096
	Temperature float64 // Default: 1.0

	RateLimiterConfig llm.RateLimiterConfig
}

// Default Bedrock configuration values.
// Can be overridden via environment variables:
//   - AWS_BEDROCK_MODEL_ID / LOOM_LLM_BEDROCK_MODEL_ID
//   - AWS_DEFAULT_REGION / LOOM_LLM_BEDROCK_REGION
const (
	DefaultBedrockModelID     = "us.anthropic.claude-sonnet-4-5-20250929-v1:0"
	DefaultBedrockRegion      = "us-west-2"
	DefaultBedrockMaxTokens   = 4096
	DefaultBedrockTemperature = 1.0
)

// Client implements the LLMProvider interface for AWS Bedrock, using the
// official Anthropic SDK's Bedrock transport rather than talking to
// bedrockruntime directly.
type Client struct {
	client      anthropic.Client
	modelID     string
	region      string
	maxTokens   int64
	temperature float64
	rateLimiter *llm.RateLimiter
}

func getOrCreateGlobalRateLimiter(config llm.RateLimiterConfig) *llm.RateLimiter {
	globalRateLimiterOnce.Do(func() {
		globalRateLimiter = llm.NewRateLimiter(config)
	})
	return globalRateLimiter
}

// NewClient creates a new Bedrock client using the Anthropic SDK.
func NewClient(cfg Config) (*Client, error) {
	if cfg.ModelID == "" {
		if envModel := os.Getenv("AWS_BEDROCK_MODEL_ID"); envModel != "" {
			cfg.ModelID = envModel
		} else if envModel := os.Getenv("LOOM_LLM_BEDROCK_MODEL_ID"); envModel != "" {
			cfg.ModelID = envModel
		} else {
			cfg.ModelID = DefaultBedrockModelID
		}
	}
	if cfg.Region == "" {
		if envRegion := os.Getenv("AWS_DEFAULT_REGION"); envRegion != "" {
			cfg.Region = envRegion
		} else if envRegion := os.Getenv("LOOM_LLM_BEDROCK_REGION"); envRegion != "" {
			cfg.Region = envRegion
		} else {
			cfg.Region = DefaultBedrockRegion
		}
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultBedrockMaxTokens
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultBedrockTemperature
	}

	var awsCfg aws.Config
	var err error

	switch {
	case cfg.AccessKeyID != "" && cfg.SecretAccessKey != "":
		awsCfg, err = config.LoadDefaultConfig(context.Background(),
			config.WithRegion(cfg.Region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				cfg.SessionToken,
			)),
		)
	case cfg.Profile != "":
		awsCfg, err = config.LoadDefaultConfig(context.Background(),
			config.WithRegion(cfg.Region),
			config.WithSharedConfigProfile(cfg.Profile),
		)
	default:
		awsCfg, err = config.LoadDefaultConfig(context.Background(),
			config.WithRegion(cfg.Region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var rateLimiter *llm.RateLimiter
	if cfg.RateLimiterConfig.Enabled {
		rateLimiter = getOrCreateGlobalRateLimiter(cfg.RateLimiterConfig)
	}

	client := anthropic.NewClient(bedrock.WithConfig(awsCfg))

	return &Client{
		client:      client,
		modelID:     cfg.ModelID,
		region:      cfg.Region,
		maxTokens:   int64(cfg.MaxTokens),
		temperature: cfg.Temperature,
		rateLimiter: rateLimiter,
	}, nil
}

// Name returns the provider name.
func (c *Client) Name() string { return "bedrock" }

// Model returns the model identifier.
func (c *Client) Model() string { return c.modelID }

// Complete sends req to Bedrock-hosted Claude via the Anthropic SDK. Like the
// direct Anthropic provider, structured_json mode is enforced by appending a
// schema instruction to the system prompt rather than a native response
// format, since Bedrock's Claude models share Anthropic's API shape.
func (c *Client) Complete(ctx context.Context, req llmtypes.Request) (*llmtypes.LLMResponse, error) {
	systemPrompt, sdkMessages := c.convertMessagesToSDK(req)
	if len(sdkMessages) == 0 {
		return nil, fmt.Errorf("no valid messages to send (messages may be empty)")
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.modelID),
		Messages:    sdkMessages,
		MaxTokens:   nonZero64(int64(req.MaxTokens), c.maxTokens),
		Temperature: anthropic.Float(c.temperature),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	var message *anthropic.Message
	if c.rateLimiter != nil {
		result, err := c.rateLimiter.Do(ctx, func(ctx context.Context) (interface{}, error) {
			return c.client.Messages.New(ctx, params)
		})
		if err != nil {
			return nil, fmt.Errorf("bedrock SDK invocation failed: %w", err)
		}
		message = result.(*anthropic.Message)
	} else {
		var err error
		message, err = c.client.Messages.New(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("bedrock SDK invocation failed: %w", err)
		}
	}

	llmResp := c.convertResponseFromSDK(message)

	if c.rateLimiter != nil {
		c.rateLimiter.RecordTokenUsage(int64(message.Usage.InputTokens + message.Usage.OutputTokens))
	}

	return llmResp, nil
}

func nonZero64(v, fallback int64) int64 {
	if v > 0 {
		return v
	}
	return fallback
}

// convertMessagesToSDK converts pipeline messages to Anthropic SDK format,
// extracting system messages and, for structured_json mode, appending the
// schema as an instruction.
func (c *Client) convertMessagesToSDK(req llmtypes.Request) (string, []anthropic.MessageParam) {
	var systemPrompts []string
	var sdkMessages []anthropic.MessageParam

	for _, msg := range req.Messages {
		switch msg.Role {
		case "system":
			if msg.Content != "" {
				systemPrompts = append(systemPrompts, msg.Content)
			}
		case "user":
			if msg.Content != "" {
				sdkMessages = append(sdkMessages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
			}
		case "assistant":
			if msg.Content != "" {
				sdkMessages = append(sdkMessages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
			}
		}
	}

	if req.Mode == llmtypes.ModeStructuredJSON && req.Schema != nil {
		schemaJSON, _ := json.Marshal(req.Schema)
		systemPrompts = append(systemPrompts,
			"Respond with a single JSON document and nothing else. "+
				"It must validate against this JSON Schema:\n"+string(schemaJSON))
	}

	return strings.Join(systemPrompts, "\n\n"), sdkMessages
}

// convertResponseFromSDK converts an Anthropic SDK message to the pipeline's
// response shape.
func (c *Client) convertResponseFromSDK(message *anthropic.Message) *llmtypes.LLMResponse {
	llmResp := &llmtypes.LLMResponse{
		StopReason: string(message.StopReason),
		Usage: llmtypes.Usage{
			InputTokens:  int(message.Usage.InputTokens),
			OutputTokens: int(message.Usage.OutputTokens),
			TotalTokens:  int(message.Usage.InputTokens + message.Usage.OutputTokens),
			CostUSD:      c.calculateCost(int(message.Usage.InputTokens), int(message.Usage.OutputTokens)),
		},
		Metadata: map[string]interface{}{
			"model":       c.modelID,
			"stop_reason": message.StopReason,
			"message_id":  message.ID,
		},
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			llmResp.Content += block.Text
		}
	}

	return llmResp
}

// calculateCost estimates cost for Bedrock-hosted Claude models.
func (c *Client) calculateCost(inputTokens, outputTokens int) float64 {
	var inputPricePerMillion, outputPricePerMillion float64

	switch {
	case strings.Contains(c.modelID, "claude-sonnet-4"):
		inputPricePerMillion = 3.0
		outputPricePerMillion = 15.0
	case strings.Contains(c.modelID, "claude-haiku-4"):
		inputPricePerMillion = 0.8
		outputPricePerMillion = 4.0
	case strings.Contains(c.modelID, "claude-opus-4"):
		inputPricePerMillion = 15.0
		outputPricePerMillion = 75.0
	default:
		inputPricePerMillion = 3.0
		outputPricePerMillion = 15.0
	}

	inputCost := float64(inputTokens) * inputPricePerMillion / 1_000_000
	outputCost := float64(outputTokens) * outputPricePerMillion / 1_000_000
	return inputCost + outputCost
}

// CompleteStream streams tokens as they're generated from Bedrock using the
// Anthropic SDK.
func (c *Client) CompleteStream(ctx context.Context, req llmtypes.Request, tokenCallback llmtypes.TokenCallback) (*llmtypes.LLMResponse, error) {
	systemPrompt, sdkMessages := c.convertMessagesToSDK(req)
	if len(sdkMessages) == 0 {
		return nil, fmt.Errorf("no valid messages to send (messages may be empty)")
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.modelID),
		Messages:    sdkMessages,
		MaxTokens:   nonZero64(int64(req.MaxTokens), c.maxTokens),
		Temperature: anthropic.Float(c.temperature),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	stream := c.client.Messages.NewStreaming(ctx, params)

	var contentBuffer strings.Builder
	var usage llmtypes.Usage
	var stopReason string
	var messageID string

	for stream.Next() {
		event := stream.Current()

		switch event.Type {
		case "message_start":
			messageID = event.Message.ID
			usage.InputTokens = int(event.Message.Usage.InputTokens)

		case "content_block_delta":
			if event.Delta.Type == "text_delta" && event.Delta.Text != "" {
				token := event.Delta.Text
				contentBuffer.WriteString(token)
				if tokenCallback != nil {
					tokenCallback(token)
				}
			}

		case "message_delta":
			if event.Delta.StopReason != "" {
				stopReason = string(event.Delta.StopReason)
			}
			if event.Usage.OutputTokens > 0 {
				usage.OutputTokens = int(event.Usage.OutputTokens)
			}
		}
	}

	if err := stream.Err(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("stream error: %w", err)
	}

	usage.TotalTokens = usage.InputTokens + usage.OutputTokens
	usage.CostUSD = c.calculateCost(usage.InputTokens, usage.OutputTokens)

	if c.rateLimiter != nil {
		c.rateLimiter.RecordTokenUsage(int64(usage.InputTokens + usage.OutputTokens))
	}

	return &llmtypes.LLMResponse{
		Content:    contentBuffer.String(),
		StopReason: stopReason,
		Usage:      usage,
		Metadata: map[string]interface{}{
			"model":       c.modelID,
			"stop_reason": stopReason,
			"message_id":  messageID,
			"streaming":   true,
		},
	}, nil
}

// Ensure Client implements both LLMProvider and StreamingLLMProvider interfaces.
var _ llmtypes.LLMProvider = (*Client)(nil)
var _ llmtypes.StreamingLLMProvider = (*Client)(nil)
