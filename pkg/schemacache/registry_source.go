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
package schemacache

import "github.com/querymesh/loomquery/pkg/registry"

// RegistrySource adapts *registry.Registry to Source. The registry's
// Backend method returns the concrete *sqlbackend.Backend type so other
// callers (the executor) can reach dialect-specific behavior; this adapter
// narrows it to the Introspector method schemacache actually needs.
type RegistrySource struct {
	Registry *registry.Registry
}

func (s RegistrySource) Backend(id string) (Introspector, error) {
	return s.Registry.Backend(id)
}

func (s RegistrySource) IDs() []string {
	return s.Registry.IDs()
}
