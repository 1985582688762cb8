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

// Package safety is the SQL safety gate: a set of static, deterministic
// checks run on a synthesized domain.SqlArtifact before it ever reaches the
// executor. The gate never rewrites SQL; it only accepts or rejects.
package safety

import (
	"regexp"
	"strings"

	"github.com/querymesh/loomquery/pkg/domain"
)

var (
	// disallowedVerbAfterSemicolon catches a second statement smuggled in
	// after a semicolon, even when the text also passes the statement-count
	// check below (defense in depth, not redundant: a comment can hide a
	// semicolon from the naive splitter).
	disallowedVerbAfterSemicolon = regexp.MustCompile(`(?is);\s*(DROP|DELETE|UPDATE|INSERT|ALTER|CREATE|TRUNCATE)\b`)
	xpCmdshell                   = regexp.MustCompile(`(?i)xp_cmdshell`)
	spExecute                    = regexp.MustCompile(`(?i)sp_execute`)
	blockComment                 = regexp.MustCompile(`(?s)/\*.*?\*/`)
	placeholderPattern           = regexp.MustCompile(`:([A-Za-z_][A-Za-z0-9_]*)`)
)

// Result is the gate's verdict: exactly one of ok or Reason is meaningful.
type Result struct {
	OK     bool
	Reason string
}

// Rejected builds a domain.SafetyRejection for a failed Result.
func (r Result) Rejected(statement string) *domain.SafetyRejection {
	if r.OK {
		return nil
	}
	return &domain.SafetyRejection{Reason: r.Reason, Statement: statement}
}

// Check runs every static rule against artifact. readOnly indicates whether
// the selected backend rejects non-SELECT statements.
func Check(artifact domain.SqlArtifact, readOnly bool) Result {
	stmt := artifact.Statement

	if reason := checkDisallowedPatterns(stmt); reason != "" {
		return Result{Reason: reason}
	}
	if reason := checkStatementCount(stmt); reason != "" {
		return Result{Reason: reason}
	}
	if readOnly {
		verb := artifact.FirstVerb()
		if verb != "SELECT" && verb != "WITH" {
			return Result{Reason: "read_only_backend"}
		}
	}
	if reason := checkParameterKeys(stmt, artifact.Parameters); reason != "" {
		return Result{Reason: reason}
	}

	return Result{OK: true}
}

// checkStatementCount strips comments and a single trailing semicolon, then
// rejects if more than one top-level statement remains.
func checkStatementCount(stmt string) string {
	stripped := stripComments(stmt)
	stripped = strings.TrimSpace(stripped)
	stripped = strings.TrimRight(stripped, "; ")

	depth := 0
	inSingle, inDouble := false, false
	for i := 0; i < len(stripped); i++ {
		c := stripped[i]
		switch {
		case c == '\'' && !inDouble:
			inSingle = !inSingle
		case c == '"' && !inSingle:
			inDouble = !inDouble
		case inSingle || inDouble:
			continue
		case c == '(':
			depth++
		case c == ')':
			depth--
		case c == ';' && depth == 0:
			return "multi_statement"
		}
	}
	return ""
}

// checkDisallowedPatterns looks for mutation verbs chained after a
// semicolon, xp_cmdshell/sp_execute tokens, and unpaired block comments —
// all outside string literals is approximated by stripping quoted spans
// first since none of these tokens are legitimate inside a literal value
// the synthesizer would produce.
func checkDisallowedPatterns(stmt string) string {
	scrubbed := stripStringLiterals(stmt)

	if disallowedVerbAfterSemicolon.MatchString(scrubbed) {
		return "disallowed_verb"
	}
	if xpCmdshell.MatchString(scrubbed) {
		return "disallowed_verb"
	}
	if spExecute.MatchString(scrubbed) {
		return "disallowed_verb"
	}
	if hasUnpairedBlockComment(stmt) {
		return "unpaired_comment"
	}
	return ""
}

func hasUnpairedBlockComment(stmt string) bool {
	opens := strings.Count(stmt, "/*")
	closes := strings.Count(stmt, "*/")
	return opens != closes
}

func stripComments(stmt string) string {
	stmt = blockComment.ReplaceAllString(stmt, "")
	var out strings.Builder
	inSingle := false
	for i := 0; i < len(stmt); i++ {
		if stmt[i] == '\'' {
			inSingle = !inSingle
		}
		if !inSingle && stmt[i] == '-' && i+1 < len(stmt) && stmt[i+1] == '-' {
			for i < len(stmt) && stmt[i] != '\n' {
				i++
			}
			continue
		}
		out.WriteByte(stmt[i])
	}
	return out.String()
}

func stripStringLiterals(stmt string) string {
	var out strings.Builder
	inSingle := false
	for i := 0; i < len(stmt); i++ {
		c := stmt[i]
		if c == '\'' {
			inSingle = !inSingle
			continue
		}
		if inSingle {
			continue
		}
		out.WriteByte(c)
	}
	return out.String()
}

// checkParameterKeys confirms every :name placeholder has a corresponding
// key in params and rejects unbound placeholders; it does not reject extra
// unused keys in params, since the synthesizer's own invariant (every params
// key appears in text) is enforced at construction, not here.
func checkParameterKeys(stmt string, params map[string]any) string {
	for _, m := range placeholderPattern.FindAllStringSubmatch(stmt, -1) {
		name := m[1]
		if _, ok := params[name]; !ok {
			return "unbound_parameter"
		}
	}
	return ""
}
