package domain

import "time"

// ResultSet is a dialect-normalized set of rows returned from execution.
// Rows carries each row as an ordered slice matching Columns; driver-native
// types (time.Time, []byte, pgtype wrappers, etc.) are normalized to the
// closed set of Go types the response encoder understands (string, int64,
// float64, bool, time.Time, nil) before this struct is populated.
type ResultSet struct {
	BackendID string   `json:"backend_id"`
	Columns   []string `json:"columns"`
	// ColumnTypes carries each column's driver-declared type, parallel to
	// Columns; empty strings where the driver reported none.
	ColumnTypes []string `json:"column_types,omitempty"`
	Rows        [][]any  `json:"rows"`
	// RowCount always equals len(Rows); when Truncated, the backend stopped
	// at the row cap, so RowCount equals that cap.
	RowCount  int            `json:"row_count"`
	Truncated bool           `json:"truncated,omitempty"`
	// CacheHit is true when this result was served from the result cache
	// rather than freshly executed.
	CacheHit bool           `json:"cache_hit"`
	Stats    ExecutionStats `json:"stats"`
}

// ExecutionStats describes one statement's execution, independent of whether
// it succeeded; failed executions still carry Duration and Retries.
type ExecutionStats struct {
	Duration time.Duration `json:"duration_ns"`
	Retries  int           `json:"retries"`
}

// FanOutResult carries one backend's outcome within a cross-backend query.
// Exactly one of Result or Err is set.
type FanOutResult struct {
	BackendID string     `json:"backend_id"`
	Result    *ResultSet `json:"result,omitempty"`
	Err       error      `json:"-"`
}
