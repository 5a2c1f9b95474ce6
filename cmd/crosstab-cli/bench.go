package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/paveg/crosstab/internal/config"
	"github.com/paveg/crosstab/internal/monitoring"
	"github.com/paveg/crosstab/internal/pivot"
	"github.com/paveg/crosstab/internal/render"
)

const defaultBenchRecords = 100_000

var (
	benchRegions  = []string{"North", "South", "East", "West", "Central", "Islands", "Coast", "Highlands"}
	benchProducts = 20
	benchMonths   = 12
)

// syntheticRecords returns n deterministic sales records.
func syntheticRecords(n int) pivot.Records {
	records := make(pivot.Records, n)
	for i := range n {
		records[i] = pivot.Record{
			"region":  benchRegions[i%len(benchRegions)],
			"product": fmt.Sprintf("P%02d", (i*7)%benchProducts),
			"month":   (i*3)%benchMonths + 1,
			"revenue": float64(i%997) * 1.5,
			"units":   i%13 + 1,
		}
	}
	return records
}

func runBench(cfg config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("bench", flag.ContinueOnError)
	n := fs.Int("records", defaultBenchRecords, "Synthetic records per pivot")
	iterations := fs.Int("iterations", 5, "Runs per scenario")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *n <= 0 {
		return fmt.Errorf("records must be positive, got %d", *n)
	}

	records := syntheticRecords(*n)
	suite := monitoring.NewBenchmarkSuite(collector(cfg))

	build := func(name string, pc pivot.Config) {
		suite.AddScenario(monitoring.BenchmarkScenario{
			Name:       name,
			Records:    len(records),
			Iterations: *iterations,
			Operation: func() error {
				_, err := pivot.New(records, pc)
				return err
			},
		})
	}
	build("count region x product", pivot.Config{Rows: []string{"region"}, Cols: []string{"product"}})
	build("sum nested rows", pivot.Config{
		Rows: []string{"region", "product"}, Cols: []string{"month"},
		Vals: []string{"revenue"}, AggregatorName: "Sum",
	})
	build("median", pivot.Config{Rows: []string{"region"}, Vals: []string{"revenue"}, AggregatorName: "Median"})
	build("sum over sum", pivot.Config{
		Rows: []string{"product"}, Vals: []string{"revenue", "units"}, AggregatorName: "Sum over Sum",
	})
	build("sum as fraction of rows", pivot.Config{
		Rows: []string{"region"}, Cols: []string{"month"},
		Vals: []string{"revenue"}, AggregatorName: "Sum as Fraction of Rows",
	})
	build("value ordered rows", pivot.Config{
		Rows: []string{"region", "product"}, Vals: []string{"revenue"}, AggregatorName: "Sum",
		RowOrder: pivot.OrderValueZToA,
	})

	grid, err := pivot.New(records, pivot.Config{
		Rows: []string{"region", "product"}, Cols: []string{"month"},
		Vals: []string{"revenue"}, AggregatorName: "Sum",
	})
	if err != nil {
		return err
	}
	suite.AddScenario(monitoring.BenchmarkScenario{
		Name:       "heatmap html",
		Records:    len(records),
		Iterations: *iterations,
		Operation: func() error {
			table, err := render.NewTable(grid, render.TableOptions{Heatmap: render.HeatmapFull})
			if err != nil {
				return err
			}
			return table.WriteHTML(io.Discard)
		},
	})
	suite.AddScenario(monitoring.BenchmarkScenario{
		Name:       "tsv export",
		Records:    len(records),
		Iterations: *iterations,
		Operation:  func() error { return render.WriteTSV(io.Discard, grid) },
	})

	suite.Run()
	_, err = io.WriteString(out, suite.GenerateReport())
	return err
}
