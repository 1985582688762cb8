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
package sqlbackend

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/querymesh/loomquery/pkg/domain"
)

// bindNamedParams rewrites every `:name` placeholder in sql into the
// dialect's positional syntax and returns the ordered argument slice to pass
// to database/sql. It does not attempt to parse quoted string literals;
// SqlArtifact.text is synthesizer output, not user-supplied text, so a colon
// only ever introduces a placeholder there.
func bindNamedParams(d domain.Dialect, sql string, params map[string]interface{}) (string, []interface{}, error) {
	var out strings.Builder
	var args []interface{}
	n := 0

	runes := []rune(sql)
	for i := 0; i < len(runes); i++ {
		if runes[i] != ':' || i+1 >= len(runes) || !isNameStart(runes[i+1]) {
			out.WriteRune(runes[i])
			continue
		}
		j := i + 1
		for j < len(runes) && isNameRune(runes[j]) {
			j++
		}
		name := string(runes[i+1 : j])
		val, ok := params[name]
		if !ok {
			return "", nil, fmt.Errorf("sqlbackend: no value bound for placeholder %q", name)
		}
		n++
		out.WriteString(rewritePlaceholder(d, n))
		args = append(args, val)
		i = j - 1
	}

	return out.String(), args, nil
}

func isNameStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isNameRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
