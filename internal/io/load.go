package io

import (
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/paveg/crosstab/internal/errors"
	"github.com/paveg/crosstab/internal/monitoring"
	"github.com/paveg/crosstab/internal/parallel"
	"github.com/paveg/crosstab/internal/pivot"
)

// Read decodes one stream of the given format. Compressed streams are
// decompressed transparently.
func Read(r io.Reader, format Format, opts Options) (pivot.Records, error) {
	rc, _, err := Decompress(r)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	switch format {
	case FormatCSV:
		return ReadCSV(rc, opts.CSV)
	case FormatTSV:
		csvOpts := opts.CSV
		csvOpts.Delimiter = '\t'
		return ReadCSV(rc, csvOpts)
	case FormatJSON:
		jsonOpts := opts.JSON
		jsonOpts.Format = JSONArray
		return ReadJSON(rc, jsonOpts)
	case FormatJSONLines:
		jsonOpts := opts.JSON
		jsonOpts.Format = JSONLines
		return ReadJSON(rc, jsonOpts)
	case FormatXLSX:
		return ReadXLSX(rc, opts.XLSX)
	case FormatParquet:
		return ReadParquet(rc, opts.allocator())
	default:
		return nil, errors.NewInvalidInputError("Read", fmt.Sprintf("unsupported format %q", format))
	}
}

// LoadFile reads the records of one file. The format comes from
// opts.Format or, when empty, from the file name.
func LoadFile(path string, opts Options) (pivot.Records, error) {
	format := opts.Format
	if format == "" {
		format = DetectFormat(path)
	}
	if format == "" {
		return nil, errors.NewInvalidInputError("LoadFile", fmt.Sprintf("cannot detect the format of %s", path))
	}

	var records pivot.Records
	err := monitoring.Resolve(opts.Metrics).RecordRecords(monitoring.OpLoadRecords, func() (int64, error) {
		f, err := os.Open(path)
		if err != nil {
			return 0, err
		}
		defer f.Close()

		records, err = Read(f, format, opts)
		if err != nil {
			return 0, fmt.Errorf("loading %s: %w", path, err)
		}
		return int64(len(records)), nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// LoadGlob expands a doublestar pattern ("data/**/*.csv") and concatenates
// the records of every matching file in path order. Files are decoded
// concurrently by up to opts.Workers goroutines. Directories are skipped; a
// pattern matching no file is an error.
func LoadGlob(pattern string, opts Options) (pivot.Records, error) {
	const op = "LoadGlob"

	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, errors.NewInvalidInputError(op, fmt.Sprintf("pattern matching failed: %v", err))
	}
	slices.Sort(matches)

	files := matches[:0]
	for _, match := range matches {
		if info, err := os.Stat(match); err == nil && !info.IsDir() {
			files = append(files, match)
		}
	}
	if len(files) == 0 {
		return nil, errors.NewInvalidInputError(op, fmt.Sprintf("no files match %s", pattern))
	}

	pool := parallel.NewWorkerPool(opts.Workers)
	defer pool.Close()
	loaded, err := parallel.Map(pool, files, func(_ int, path string) (pivot.Records, error) {
		return LoadFile(path, opts)
	})
	if err != nil {
		return nil, err
	}

	var records pivot.Records
	for _, recs := range loaded {
		records = append(records, recs...)
	}
	return records, nil
}
