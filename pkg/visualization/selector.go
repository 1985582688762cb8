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
package visualization

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/querymesh/loomquery/pkg/domain"
)

// Selector chooses a domain.ChartSpec for a ResultSet, picking only from the
// closed ChartKind set the query pipeline's wire format exposes, using a
// fixed rule table in a scored decision procedure.
type Selector struct{}

func NewSelector() *Selector { return &Selector{} }

var dateNamePattern = regexp.MustCompile(`(?i)date|time|year|month|day`)
var isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

var chartKindPhrases = map[string]domain.ChartKind{
	"bar chart":     domain.ChartBar,
	"pie chart":     domain.ChartPie,
	"scatter plot":  domain.ChartScatter,
	"histogram":     domain.ChartHistogram,
	"line chart":    domain.ChartLine,
	"treemap":       domain.ChartTreemap,
	"heatmap":       domain.ChartHeatmap,
}

// features holds the derived shape of a ResultSet used by the rule table.
type features struct {
	columnCount      int
	rowCount         int
	hasDate          bool
	dateCol          int
	numericCols      []int
	categoricalCols  []int
	catCardinalities map[int]int
}

// Choose picks a chart for result: an explicit utterance override first,
// then a scored rule table over derived features, falling back to table/bar
// below the 0.5 confidence floor.
func (s *Selector) Choose(result domain.ResultSet, utterance string) domain.ChartSpec {
	if kind, ok := matchUtterance(utterance); ok {
		return specFor(kind, result, 0.9, "utterance named chart kind explicitly")
	}

	f := deriveFeatures(result)

	type candidate struct {
		kind  domain.ChartKind
		score float64
		why   string
	}
	var candidates []candidate

	if f.hasDate && f.columnCount >= 2 && f.rowCount >= 2 {
		candidates = append(candidates, candidate{domain.ChartLine, 0.9, "date column with multiple rows"})
	}
	if f.columnCount == 1 && f.rowCount == 1 {
		candidates = append(candidates, candidate{domain.ChartValue, 0.95, "single scalar result"})
	}
	if f.columnCount == 2 && f.rowCount >= 1 && f.rowCount <= 10 {
		candidates = append(candidates, candidate{domain.ChartBar, 0.7, "two columns, small row count"})
	}
	if len(f.numericCols) > 0 && f.rowCount >= 10 {
		candidates = append(candidates, candidate{domain.ChartHistogram, 0.65, "numeric column with many rows"})
	}
	if len(f.numericCols) >= 2 && f.rowCount >= 5 {
		candidates = append(candidates, candidate{domain.ChartScatter, 0.75, "two or more numeric columns"})
	}
	if f.columnCount == 2 && f.rowCount >= 2 && f.rowCount <= 10 {
		candidates = append(candidates, candidate{domain.ChartPie, 0.6, "two columns, moderate row count"})
	}
	if hierarchicalRatio(f) >= 2 {
		candidates = append(candidates, candidate{domain.ChartTreemap, 0.55, "hierarchical categorical ratio"})
	}

	best := candidate{score: 0}
	for _, c := range candidates {
		if c.score > best.score {
			best = c
		}
	}

	if best.score < 0.5 {
		if f.rowCount > 10 {
			return specFor(domain.ChartTable, result, 0.4, "no rule scored above threshold; many rows")
		}
		return specFor(domain.ChartBar, result, 0.4, "no rule scored above threshold; few rows")
	}
	return specFor(best.kind, result, best.score, best.why)
}

func matchUtterance(utterance string) (domain.ChartKind, bool) {
	lower := strings.ToLower(utterance)
	for phrase, kind := range chartKindPhrases {
		if strings.Contains(lower, phrase) {
			return kind, true
		}
	}
	return "", false
}

func deriveFeatures(result domain.ResultSet) features {
	f := features{
		columnCount:      len(result.Columns),
		rowCount:         len(result.Rows),
		dateCol:          -1,
		catCardinalities: map[int]int{},
	}

	for i, col := range result.Columns {
		if dateNamePattern.MatchString(col) {
			f.hasDate = true
			if f.dateCol == -1 {
				f.dateCol = i
			}
			continue
		}
		if looksNumeric(result, i) {
			f.numericCols = append(f.numericCols, i)
			continue
		}
		if looksDate(result, i) {
			f.hasDate = true
			if f.dateCol == -1 {
				f.dateCol = i
			}
			continue
		}
		unique := uniqueCount(result, i)
		f.catCardinalities[i] = unique
		if f.rowCount == 0 || float64(unique) < 0.5*float64(f.rowCount) {
			f.categoricalCols = append(f.categoricalCols, i)
		}
	}
	return f
}

func looksNumeric(result domain.ResultSet, col int) bool {
	seen := false
	for _, row := range result.Rows {
		if col >= len(row) || row[col] == nil {
			continue
		}
		seen = true
		switch row[col].(type) {
		case int, int64, float64, float32:
		default:
			if s, ok := row[col].(string); ok {
				if _, err := strconv.ParseFloat(s, 64); err == nil {
					continue
				}
			}
			return false
		}
	}
	return seen
}

func looksDate(result domain.ResultSet, col int) bool {
	for _, row := range result.Rows {
		if col >= len(row) || row[col] == nil {
			continue
		}
		if s, ok := row[col].(string); ok && isoDatePattern.MatchString(s) {
			return true
		}
	}
	return false
}

func uniqueCount(result domain.ResultSet, col int) int {
	seen := map[string]bool{}
	for _, row := range result.Rows {
		if col >= len(row) {
			continue
		}
		seen[toKey(row[col])] = true
	}
	return len(seen)
}

func toKey(v any) string {
	switch t := v.(type) {
	case nil:
		return "<nil>"
	case string:
		return t
	default:
		return strconv.FormatFloat(asFloat(t), 'f', -1, 64)
	}
}

func asFloat(v any) float64 {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case float64:
		return t
	case float32:
		return float64(t)
	default:
		return 0
	}
}

// hierarchicalRatio compares the two lowest-cardinality categorical columns;
// a ratio ≥ 2 suggests a parent/child grouping suited to a treemap.
func hierarchicalRatio(f features) float64 {
	if len(f.categoricalCols) < 2 {
		return 0
	}
	var counts []int
	for _, c := range f.categoricalCols {
		counts = append(counts, f.catCardinalities[c])
	}
	min, max := counts[0], counts[0]
	for _, c := range counts {
		if c < min {
			min = c
		}
		if c > max {
			max = c
		}
	}
	if min == 0 {
		return 0
	}
	return float64(max) / float64(min)
}

func specFor(kind domain.ChartKind, result domain.ResultSet, confidence float64, why string) domain.ChartSpec {
	spec := domain.ChartSpec{Kind: kind, Rationale: why + " (confidence " + strconv.FormatFloat(confidence, 'f', 2, 64) + ")"}

	firstCategoricalOrDate := firstColumnMatching(result, true)
	firstNumeric := firstColumnMatching(result, false)

	switch kind {
	case domain.ChartLine, domain.ChartBar, domain.ChartArea, domain.ChartPie:
		spec.XAxis = firstCategoricalOrDate
		if firstNumeric != "" {
			spec.YAxis = []string{firstNumeric}
		}
	case domain.ChartScatter:
		nums := numericColumnNames(result)
		if len(nums) >= 2 {
			spec.XAxis = nums[0]
			spec.YAxis = []string{nums[1]}
		}
	case domain.ChartHistogram:
		if firstNumeric != "" {
			spec.XAxis = firstNumeric
		}
	case domain.ChartValue:
		if len(result.Columns) > 0 {
			spec.YAxis = []string{result.Columns[0]}
		}
	}

	return spec
}

func firstColumnMatching(result domain.ResultSet, categoricalOrDate bool) string {
	for i, col := range result.Columns {
		numeric := looksNumeric(result, i)
		if categoricalOrDate && !numeric {
			return col
		}
		if !categoricalOrDate && numeric {
			return col
		}
	}
	return ""
}

func numericColumnNames(result domain.ResultSet) []string {
	var out []string
	for i, col := range result.Columns {
		if looksNumeric(result, i) {
			out = append(out, col)
		}
	}
	return out
}
