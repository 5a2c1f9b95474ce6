// Package io loads pivot records from files and databases.
//
// This package includes readers for CSV, JSON, XLSX, Parquet and SQL
// sources, with automatic type inference for text formats. Files may be
// gzip or xz compressed; LoadFile detects the format from the file name and
// the compression from the magic bytes.
//
// Key components:
//   - ReadCSV, ReadJSON, ReadXLSX, ReadParquet for in-memory readers
//   - RecordsFromTable for Arrow tables
//   - ReadSQL and ScanRows for database/sql queries
//   - LoadFile and LoadGlob for paths and doublestar patterns
//
// Memory management: Arrow buffers used while decoding Parquet are released
// before the readers return; the returned records hold plain Go values.
package io

import (
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/crosstab/internal/monitoring"
)

const (
	// DefaultBatchSize is the default row group size for Parquet writes
	DefaultBatchSize = 1000
)

// Format identifies a record file format.
type Format string

const (
	FormatCSV       Format = "csv"
	FormatTSV       Format = "tsv"
	FormatJSON      Format = "json"
	FormatJSONLines Format = "jsonl"
	FormatXLSX      Format = "xlsx"
	FormatParquet   Format = "parquet"
)

// DetectFormat derives the format from a file name, ignoring a trailing
// compression suffix. It returns "" for unknown extensions.
func DetectFormat(path string) Format {
	name := strings.ToLower(filepath.Base(path))
	for _, c := range []Compression{CompressionGzip, CompressionXZ} {
		name = strings.TrimSuffix(name, c.Extension())
	}
	switch filepath.Ext(name) {
	case ".csv":
		return FormatCSV
	case ".tsv", ".tab":
		return FormatTSV
	case ".json":
		return FormatJSON
	case ".jsonl", ".ndjson":
		return FormatJSONLines
	case ".xlsx", ".xlsm":
		return FormatXLSX
	case ".parquet", ".pq":
		return FormatParquet
	default:
		return ""
	}
}

// CSVOptions contains configuration options for CSV reading
type CSVOptions struct {
	// Delimiter is the field delimiter (default: comma)
	Delimiter rune
	// Comment is the comment character (default: 0 = disabled)
	Comment rune
	// Header indicates whether the first row contains headers
	Header bool
	// SkipInitialSpace indicates whether to skip initial whitespace
	SkipInitialSpace bool
	// InferTypes converts columns holding only booleans, integers or
	// floats to those types. Otherwise every value stays a string.
	InferTypes bool
}

// DefaultCSVOptions returns default CSV options
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{
		Delimiter:  ',',
		Header:     true,
		InferTypes: true,
	}
}

// JSONFormat selects the JSON layout.
type JSONFormat int

const (
	// JSONArray is a single document holding an array of objects
	JSONArray JSONFormat = iota
	// JSONLines is one object per line
	JSONLines
)

// JSONOptions contains configuration options for JSON reading
type JSONOptions struct {
	Format JSONFormat
	// Path is a JSONPath expression selecting the array of records inside
	// a JSON document, e.g. "$.data.items". Ignored for JSON Lines.
	Path string
	// MaxRecords stops reading after this many records (0 = unlimited)
	MaxRecords int
}

// DefaultJSONOptions returns default JSON options
func DefaultJSONOptions() JSONOptions {
	return JSONOptions{Format: JSONArray}
}

// XLSXOptions contains configuration options for spreadsheet reading
type XLSXOptions struct {
	// Sheet names the sheet to read, the first sheet when empty
	Sheet string
	// Header indicates whether the first row contains headers
	Header bool
	// InferTypes behaves as in CSVOptions
	InferTypes bool
}

// DefaultXLSXOptions returns default XLSX options
func DefaultXLSXOptions() XLSXOptions {
	return XLSXOptions{Header: true, InferTypes: true}
}

// ParquetOptions contains configuration options for Parquet operations
type ParquetOptions struct {
	// Compression type for Parquet files
	Compression string
	// BatchSize for reading/writing operations
	BatchSize int
}

// DefaultParquetOptions returns default Parquet options
func DefaultParquetOptions() ParquetOptions {
	return ParquetOptions{
		Compression: "snappy",
		BatchSize:   DefaultBatchSize,
	}
}

// Options configures LoadFile and LoadGlob.
type Options struct {
	// Format overrides detection from the file name.
	Format  Format
	CSV     CSVOptions
	JSON    JSONOptions
	XLSX    XLSXOptions
	Parquet ParquetOptions
	// Allocator backs Arrow buffers, memory.DefaultAllocator when nil.
	Allocator memory.Allocator
	// Metrics receives load timings, the global collector when nil.
	Metrics *monitoring.MetricsCollector
	// Workers bounds the files LoadGlob decodes at once, runtime.NumCPU()
	// when zero.
	Workers int
}

// DefaultOptions returns the default options of every reader.
func DefaultOptions() Options {
	return Options{
		CSV:     DefaultCSVOptions(),
		JSON:    DefaultJSONOptions(),
		XLSX:    DefaultXLSXOptions(),
		Parquet: DefaultParquetOptions(),
	}
}

func (o Options) allocator() memory.Allocator {
	if o.Allocator != nil {
		return o.Allocator
	}
	return memory.DefaultAllocator
}
