package io

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/paveg/crosstab/internal/common"
	"github.com/paveg/crosstab/internal/pivot"
)

// ReadParquet reads a Parquet file into records.
func ReadParquet(r io.Reader, mem memory.Allocator) (pivot.Records, error) {
	// Parquet needs random access.
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading data: %w", err)
	}

	pqReader, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating parquet file reader: %w", err)
	}
	defer pqReader.Close()

	arrowReader, err := pqarrow.NewFileReader(pqReader, pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, fmt.Errorf("creating arrow file reader: %w", err)
	}

	table, err := arrowReader.ReadTable(context.Background())
	if err != nil {
		return nil, fmt.Errorf("reading table: %w", err)
	}
	defer table.Release()

	return RecordsFromTable(table)
}

// RecordsFromArrow converts one Arrow record batch into records.
func RecordsFromArrow(rec arrow.Record) (pivot.Records, error) {
	table := array.NewTableFromRecords(rec.Schema(), []arrow.Record{rec})
	defer table.Release()
	return RecordsFromTable(table)
}

// RecordsFromTable converts an Arrow table into records, one per row.
// Null slots become missing values.
func RecordsFromTable(table arrow.Table) (pivot.Records, error) {
	records := make(pivot.Records, table.NumRows())
	for i := range records {
		records[i] = make(pivot.Record, table.NumCols())
	}

	for i := range table.NumCols() {
		column := table.Column(int(i))
		row := 0
		for _, chunk := range column.Data().Chunks() {
			for j := range chunk.Len() {
				v, err := arrowValue(chunk, j)
				if err != nil {
					return nil, fmt.Errorf("converting column %s: %w", column.Name(), err)
				}
				records[row][column.Name()] = v
				row++
			}
		}
	}
	return records, nil
}

func arrowValue(arr arrow.Array, i int) (any, error) {
	if arr.IsNull(i) {
		return nil, nil
	}
	switch a := arr.(type) {
	case *array.Int64:
		return a.Value(i), nil
	case *array.Int32:
		return int64(a.Value(i)), nil
	case *array.Int16:
		return int64(a.Value(i)), nil
	case *array.Int8:
		return int64(a.Value(i)), nil
	case *array.Uint32:
		return int64(a.Value(i)), nil
	case *array.Uint16:
		return int64(a.Value(i)), nil
	case *array.Uint8:
		return int64(a.Value(i)), nil
	case *array.Float64:
		return a.Value(i), nil
	case *array.Float32:
		return float64(a.Value(i)), nil
	case *array.String:
		return strings.Clone(a.Value(i)), nil
	case *array.LargeString:
		return strings.Clone(a.Value(i)), nil
	case *array.Boolean:
		return a.Value(i), nil
	case *array.Date32:
		return a.Value(i).ToTime().UTC(), nil
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return a.Value(i).ToTime(unit).UTC(), nil
	default:
		return nil, fmt.Errorf("unsupported Arrow type: %s", arr.DataType())
	}
}

// WriteParquet writes records as a Parquet file. Columns default to the
// sorted union of the record attributes. Integer columns are written as
// int64, mixed numeric columns as float64, other non-boolean columns as
// strings of their key form.
func WriteParquet(w io.Writer, records pivot.Records, columns []string, opts ParquetOptions, mem memory.Allocator) error {
	if columns == nil {
		seen := make(map[string]struct{})
		for _, rec := range records {
			for k := range rec {
				seen[k] = struct{}{}
			}
		}
		columns = slices.Sorted(maps.Keys(seen))
	}

	table := recordsToTable(records, columns, mem)
	defer table.Release()

	props := parquet.NewWriterProperties(
		parquet.WithCompression(compressionCodec(opts.Compression)),
		parquet.WithBatchSize(int64(max(opts.BatchSize, 1))),
		parquet.WithAllocator(mem),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithAllocator(mem))

	writer, err := pqarrow.NewFileWriter(table.Schema(), w, props, arrowProps)
	if err != nil {
		return fmt.Errorf("creating file writer: %w", err)
	}
	if err := writer.WriteTable(table, int64(max(opts.BatchSize, 1))); err != nil {
		_ = writer.Close()
		return fmt.Errorf("writing table: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing file writer: %w", err)
	}
	return nil
}

func compressionCodec(name string) compress.Compression {
	switch name {
	case "gzip":
		return compress.Codecs.Gzip
	case "lz4":
		return compress.Codecs.Lz4Raw
	case "zstd":
		return compress.Codecs.Zstd
	case "uncompressed":
		return compress.Codecs.Uncompressed
	default:
		return compress.Codecs.Snappy
	}
}

func recordsToTable(records pivot.Records, columns []string, mem memory.Allocator) arrow.Table {
	fields := make([]arrow.Field, 0, len(columns))
	arrays := make([]arrow.Array, 0, len(columns))
	defer func() {
		for _, arr := range arrays {
			arr.Release()
		}
	}()

	for _, name := range columns {
		arr := buildColumn(records, name, mem)
		fields = append(fields, arrow.Field{Name: name, Type: arr.DataType(), Nullable: true})
		arrays = append(arrays, arr)
	}

	schema := arrow.NewSchema(fields, nil)
	rec := array.NewRecord(schema, arrays, int64(len(records)))
	defer rec.Release()
	return array.NewTableFromRecords(schema, []arrow.Record{rec})
}

// goColumnType classifies the values of one attribute.
func goColumnType(records pivot.Records, name string) columnType {
	ints, floats, bools, others := 0, 0, 0, 0
	for _, rec := range records {
		switch rec[name].(type) {
		case nil:
		case int, int8, int16, int32, int64, uint8, uint16, uint32:
			ints++
		case float32, float64:
			floats++
		case bool:
			bools++
		default:
			others++
		}
	}
	switch {
	case others > 0, bools > 0 && ints+floats > 0:
		return typeString
	case bools > 0:
		return typeBool
	case floats > 0:
		return typeFloat
	case ints > 0:
		return typeInt
	default:
		return typeString
	}
}

func buildColumn(records pivot.Records, name string, mem memory.Allocator) arrow.Array {
	switch goColumnType(records, name) {
	case typeInt:
		b := array.NewInt64Builder(mem)
		defer b.Release()
		for _, rec := range records {
			if n, ok := toInt64(rec[name]); ok {
				b.Append(n)
			} else {
				b.AppendNull()
			}
		}
		return b.NewArray()
	case typeFloat:
		b := array.NewFloat64Builder(mem)
		defer b.Release()
		for _, rec := range records {
			if f, ok := common.ToFloat64(rec[name]); ok {
				b.Append(f)
			} else {
				b.AppendNull()
			}
		}
		return b.NewArray()
	case typeBool:
		b := array.NewBooleanBuilder(mem)
		defer b.Release()
		for _, rec := range records {
			if v, ok := rec[name].(bool); ok {
				b.Append(v)
			} else {
				b.AppendNull()
			}
		}
		return b.NewArray()
	default:
		b := array.NewStringBuilder(mem)
		defer b.Release()
		for _, rec := range records {
			if v := rec[name]; v != nil {
				b.Append(common.ToKey(v))
			} else {
				b.AppendNull()
			}
		}
		return b.NewArray()
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	default:
		return 0, false
	}
}
