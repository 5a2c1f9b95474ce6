package io

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/paveg/crosstab/internal/pivot"
)

const (
	// Boolean string constants
	trueStr  = "true"
	falseStr = "false"
)

type columnType int

const (
	typeString columnType = iota
	typeBool
	typeInt
	typeFloat
)

// ReadCSV reads delimited text into records. Empty cells become missing
// values.
func ReadCSV(r io.Reader, opts CSVOptions) (pivot.Records, error) {
	csvReader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		csvReader.Comma = opts.Delimiter
	}
	csvReader.Comment = opts.Comment
	csvReader.TrimLeadingSpace = opts.SkipInitialSpace
	csvReader.FieldsPerRecord = -1

	rows, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}
	return rowsToRecords(rows, opts.Header, opts.InferTypes), nil
}

// rowsToRecords turns a table of strings into records, naming columns from
// the first row when header is set and column_N otherwise.
func rowsToRecords(rows [][]string, header, infer bool) pivot.Records {
	if len(rows) == 0 {
		return pivot.Records{}
	}

	var headers []string
	dataRows := rows
	if header {
		headers = rows[0]
		dataRows = rows[1:]
	}
	width := len(headers)
	for _, row := range dataRows {
		width = max(width, len(row))
	}
	for i := len(headers); i < width; i++ {
		headers = append(headers, fmt.Sprintf("column_%d", i))
	}

	types := make([]columnType, width)
	if infer {
		for i := range types {
			types[i] = inferColumnType(dataRows, i)
		}
	}

	records := make(pivot.Records, len(dataRows))
	for j, row := range dataRows {
		rec := make(pivot.Record, width)
		for i, name := range headers {
			if i < len(row) && row[i] != "" {
				rec[name] = convertCell(row[i], types[i])
			} else {
				rec[name] = nil
			}
		}
		records[j] = rec
	}
	return records
}

// inferColumnType determines the most specific type of column i
func inferColumnType(rows [][]string, i int) columnType {
	canBeInt := true
	canBeFloat := true
	canBeBool := true
	hasNonEmptyValue := false

	for _, row := range rows {
		if i >= len(row) || row[i] == "" {
			continue // Skip empty values for type inference
		}
		value := row[i]
		hasNonEmptyValue = true

		if canBeBool {
			lower := strings.ToLower(value)
			if lower != trueStr && lower != falseStr {
				canBeBool = false
			}
		}
		if canBeInt {
			if _, err := strconv.ParseInt(value, 10, 64); err != nil {
				canBeInt = false
			}
		}
		if canBeFloat {
			if _, err := strconv.ParseFloat(value, 64); err != nil {
				canBeFloat = false
			}
		}
	}

	switch {
	case !hasNonEmptyValue:
		return typeString
	case canBeBool:
		return typeBool
	case canBeInt:
		return typeInt
	case canBeFloat:
		return typeFloat
	default:
		return typeString
	}
}

func convertCell(value string, t columnType) any {
	switch t {
	case typeBool:
		return strings.EqualFold(value, trueStr)
	case typeInt:
		n, _ := strconv.ParseInt(value, 10, 64)
		return n
	case typeFloat:
		f, _ := strconv.ParseFloat(value, 64)
		return f
	default:
		return value
	}
}
