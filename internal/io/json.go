package io

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"github.com/paveg/crosstab/internal/pivot"
)

// ReadJSON reads JSON or JSON Lines into records. Every element must be an
// object; nested objects and arrays are kept as their JSON text.
func ReadJSON(r io.Reader, opts JSONOptions) (pivot.Records, error) {
	switch opts.Format {
	case JSONArray:
		return readJSONArray(r, opts)
	case JSONLines:
		return readJSONLines(r, opts)
	default:
		return nil, fmt.Errorf("unsupported JSON format: %d", opts.Format)
	}
}

func readJSONArray(r io.Reader, opts JSONOptions) (pivot.Records, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading JSON data: %w", err)
	}
	doc, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}

	elements, err := selectElements(doc, opts.Path)
	if err != nil {
		return nil, err
	}
	if opts.MaxRecords > 0 && len(elements) > opts.MaxRecords {
		elements = elements[:opts.MaxRecords]
	}

	records := make(pivot.Records, 0, len(elements))
	for i, el := range elements {
		rec, err := objectToRecord(el)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// selectElements applies the JSONPath expression. A single array result is
// unwrapped; several results are the elements themselves.
func selectElements(doc any, path string) ([]any, error) {
	if path == "" {
		arr, ok := doc.([]any)
		if !ok {
			return nil, fmt.Errorf("JSON document must be an array, got %T", doc)
		}
		return arr, nil
	}

	x, err := jp.ParseString(path)
	if err != nil {
		return nil, fmt.Errorf("invalid JSONPath expression %q: %w", path, err)
	}
	results := x.Get(doc)
	if len(results) == 1 {
		if arr, ok := results[0].([]any); ok {
			return arr, nil
		}
	}
	return results, nil
}

func readJSONLines(r io.Reader, opts JSONOptions) (pivot.Records, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var records pivot.Records
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue // Skip empty lines
		}

		v, err := oj.ParseString(line)
		if err != nil {
			return nil, fmt.Errorf("parsing JSON line %d: %w", lineNum, err)
		}
		rec, err := objectToRecord(v)
		if err != nil {
			return nil, fmt.Errorf("JSON line %d: %w", lineNum, err)
		}
		records = append(records, rec)

		if opts.MaxRecords > 0 && len(records) >= opts.MaxRecords {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning JSON lines: %w", err)
	}
	return records, nil
}

func objectToRecord(v any) (pivot.Record, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected an object, got %T", v)
	}
	rec := make(pivot.Record, len(obj))
	for k, val := range obj {
		switch val.(type) {
		case map[string]any, []any:
			b, err := oj.Marshal(val)
			if err != nil {
				return nil, fmt.Errorf("encoding nested value of %q: %w", k, err)
			}
			rec[k] = string(b)
		default:
			rec[k] = val
		}
	}
	return rec, nil
}
