// Package remote delegates pivot configurations to a remote aggregation
// service. It maps configurations to request DTOs, tracks in-flight
// requests per logical request id, and normalises responses into a grid the
// renderers consume exactly like a locally computed pivot.
package remote

import (
	"github.com/paveg/crosstab/internal/pivot"
)

// ValueColumn is the column holding the aggregate when a request has no
// value attributes.
const ValueColumn = "aggregated_value"

// Request is the body of POST /pivot.
//
// Filters lists, per attribute, the only values to keep; Exclusions lists the
// values to drop. An attribute without an entry keeps every value.
// Exclusions is an extension of the base body and is omitted when empty.
type Request struct {
	ConnectionCode   string              `json:"connectionCode" yaml:"connection_code"`
	TableName        string              `json:"tableName" yaml:"table_name"`
	Rows             []string            `json:"rows" yaml:"rows"`
	Cols             []string            `json:"cols" yaml:"cols"`
	Vals             []string            `json:"vals" yaml:"vals"`
	AggregatorName   string              `json:"aggregatorName" yaml:"aggregator_name"`
	Filters          map[string][]string `json:"filters,omitempty" yaml:"filters,omitempty"`
	Exclusions       map[string][]string `json:"exclusions,omitempty" yaml:"exclusions,omitempty"`
	RowOrder         pivot.Order         `json:"rowOrder" yaml:"row_order"`
	ColOrder         pivot.Order         `json:"colOrder" yaml:"col_order"`
	IncludeSubtotals bool                `json:"includeSubtotals" yaml:"include_subtotals"`
	Limit            int                 `json:"limit,omitempty" yaml:"limit,omitempty"`
}

// Metadata describes how the service produced a response.
type Metadata struct {
	ExecutionTimeMs  int64    `json:"executionTimeMs"`
	RowCount         int      `json:"rowCount"`
	AggregatorUsed   string   `json:"aggregatorUsed"`
	Cached           bool     `json:"cached"`
	AvailableColumns []string `json:"availableColumns,omitempty"`
}

// Response is the body of a successful POST /pivot.
type Response struct {
	Data           []map[string]any `json:"data"`
	AggregatedData map[string]any   `json:"aggregatedData,omitempty"`
	Metadata       Metadata         `json:"metadata"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Timestamp int64  `json:"timestamp"`
}

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status               string `json:"status"`
	Service              string `json:"service"`
	SupportedAggregators int    `json:"supportedAggregators"`
	Version              string `json:"version,omitempty"`
}

// CacheStats is the body of GET /cache/stats.
type CacheStats struct {
	Size         int   `json:"size"`
	MaxSize      int   `json:"maxSize"`
	TTLMillis    int64 `json:"ttlMillis"`
	ExpiredCount int   `json:"expiredCount"`
	Hits         int64 `json:"hits"`
	Misses       int64 `json:"misses"`
}
