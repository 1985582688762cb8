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
package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/querymesh/loomquery/pkg/registry"
	"github.com/querymesh/loomquery/pkg/types"
)

// ValidateProviders performs a preflight health check on the configured LLM
// providers by sending each a short completion request. Calling it with no
// providers returns an error; the orchestrator itself degrades to keyword
// intent and sentinel SQL without one, so it is up to the caller whether to
// run the check and whether a failure is fatal at startup.
func ValidateProviders(ctx context.Context, providers ...types.LLMProvider) error {
	if len(providers) == 0 {
		return fmt.Errorf("no LLM providers configured")
	}

	var failures []string
	for _, p := range providers {
		checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		_, err := p.Complete(checkCtx, types.Request{
			Messages: []types.Message{{Role: "user", Content: "ping"}},
			Mode:     types.ModeText,
			MaxTokens: 8,
		})
		cancel()
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s/%s: %v", p.Name(), p.Model(), err))
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("LLM provider preflight check failed:\n  %s", strings.Join(failures, "\n  "))
	}
	return nil
}

// ValidateBackends lists the tables of every enabled registered backend so a
// misconfigured DATABASE_URL surfaces at startup rather than on first query.
func ValidateBackends(ctx context.Context, reg *registry.Registry) error {
	var failures []string
	for _, cfg := range reg.List(true) {
		if !cfg.Enabled {
			continue
		}
		backend, err := reg.Get(cfg.ID)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", cfg.ID, err))
			continue
		}
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err = backend.ListResources(checkCtx, nil)
		cancel()
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", cfg.ID, err))
		}
	}
	if len(failures) > 0 {
		return fmt.Errorf("backend preflight check failed:\n  %s", strings.Join(failures, "\n  "))
	}
	return nil
}
