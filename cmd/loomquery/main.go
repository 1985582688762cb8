// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Command loomquery runs the query pipeline's HTTP server: it wires the
// Database Registry, Schema Cache, Result Cache, LLM Gateway, and the
// Orchestrator state machine into a single process and serves them over
// REST + SSE.
package main

func main() {
	Execute()
}
