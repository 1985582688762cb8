// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
package config

import (
	"github.com/zalando/go-keyring"
)

// ServiceName scopes every secret this process stores in the system keyring,
// so a second keyring-backed tool on the same machine never collides with it.
const ServiceName = "loomquery"

// KeyringSecretKeys lists every credential LoadConfig will look up from the
// system keyring when the corresponding environment variable is unset.
var KeyringSecretKeys = []string{
	"anthropic_api_key",
	"openai_api_key",
	"bedrock_access_key_id",
	"bedrock_secret_access_key",
	"bedrock_session_token",
}

// GetSecretFromKeyring retrieves a secret previously stored with
// SaveSecretToKeyring. It returns keyring.ErrNotFound when absent.
func GetSecretFromKeyring(key string) (string, error) {
	return keyring.Get(ServiceName, key)
}

// SaveSecretToKeyring stores a secret in the system keyring, used by the
// config CLI subcommand so an operator never has to put an API key in a
// shell history or a plaintext config file.
func SaveSecretToKeyring(key, value string) error {
	return keyring.Set(ServiceName, key, value)
}

// DeleteSecretFromKeyring removes a stored secret.
func DeleteSecretFromKeyring(key string) error {
	return keyring.Delete(ServiceName, key)
}

// fillFromKeyring populates any of cfg.LLM's credential fields that are
// still empty after flags/file/env have been applied, so a keyring-stored
// key only has to be set once per machine instead of exported into every
// shell that runs loomquery.
func fillFromKeyring(cfg *Config) {
	lookup := func(key string) string {
		v, err := GetSecretFromKeyring(key)
		if err != nil {
			return ""
		}
		return v
	}

	if cfg.LLM.AnthropicAPIKey == "" {
		cfg.LLM.AnthropicAPIKey = lookup("anthropic_api_key")
	}
	if cfg.LLM.OpenAIAPIKey == "" {
		cfg.LLM.OpenAIAPIKey = lookup("openai_api_key")
	}
	if cfg.LLM.BedrockAccessKeyID == "" {
		cfg.LLM.BedrockAccessKeyID = lookup("bedrock_access_key_id")
	}
	if cfg.LLM.BedrockSecretAccessKey == "" {
		cfg.LLM.BedrockSecretAccessKey = lookup("bedrock_secret_access_key")
	}
	if cfg.LLM.BedrockSessionToken == "" {
		cfg.LLM.BedrockSessionToken = lookup("bedrock_session_token")
	}
}
