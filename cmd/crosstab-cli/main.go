package main

import (
	"context"
	"database/sql"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/paveg/crosstab/internal/aggregator"
	"github.com/paveg/crosstab/internal/config"
	cio "github.com/paveg/crosstab/internal/io"
	"github.com/paveg/crosstab/internal/monitoring"
	"github.com/paveg/crosstab/internal/pivot"
	"github.com/paveg/crosstab/internal/remote"
	"github.com/paveg/crosstab/internal/render"
	"github.com/paveg/crosstab/internal/server"
	"github.com/paveg/crosstab/internal/version"
)

const shutdownTimeout = 10 * time.Second

func customUsage() {
	fmt.Fprintf(os.Stderr, "crosstab pivot CLI (version %s)\n\n", version.Version)
	fmt.Fprintf(os.Stderr, "Usage: crosstab-cli <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  local\n\t\tPivot a file or glob of files in process\n")
	fmt.Fprintf(os.Stderr, "  remote\n\t\tDelegate a pivot to the analytics service\n")
	fmt.Fprintf(os.Stderr, "  serve\n\t\tRun the analytics service over local files and sqlite databases\n")
	fmt.Fprintf(os.Stderr, "  aggregators\n\t\tList the built-in aggregators\n")
	fmt.Fprintf(os.Stderr, "  bench\n\t\tTime pivot builds and renders over synthetic records\n")
	fmt.Fprintf(os.Stderr, "  version\n\t\tPrint version information and exit\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	fmt.Fprintf(os.Stderr, "  -v, --version\n\t\tPrint version information and exit\n")
	fmt.Fprintf(os.Stderr, "  -h, --help\n\t\tShow this help message and exit\n\n")
	fmt.Fprintf(os.Stderr, "Run 'crosstab-cli <command> -h' for the options of a command.\n")
}

func main() {
	versionFlag := flag.Bool("v", false, "Print version and exit")
	flag.BoolVar(versionFlag, "version", false, "Print version and exit") // alias

	//nolint:reassign // Standard Go pattern for customizing flag usage message
	flag.Usage = customUsage
	flag.Parse()

	if *versionFlag {
		fmt.Print(version.Info().String())
		return
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.LoadFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd, args := flag.Arg(0), flag.Args()[1:]; cmd {
	case "local":
		err = runLocal(ctx, cfg, args, os.Stdout)
	case "remote":
		err = runRemote(ctx, cfg, args, os.Stdout)
	case "serve":
		err = runServe(ctx, cfg, args)
	case "aggregators":
		err = runAggregators(os.Stdout)
	case "bench":
		err = runBench(cfg, args, os.Stdout)
	case "version":
		fmt.Print(version.Info().String())
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		if stderrors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// pivotFlags are shared by the local and remote commands.
type pivotFlags struct {
	configFile string
	rows       csvFlag
	cols       csvFlag
	vals       csvFlag
	aggregator string
	renderer   string
	rowOrder   string
	colOrder   string
	exclude    filterFlag
	include    filterFlag
	hideTotals bool
	tsv        bool
}

func (pf *pivotFlags) register(fs *flag.FlagSet, cfg config.Config) {
	fs.StringVar(&pf.configFile, "config", "", "JSON or YAML settings file")
	fs.Var(&pf.rows, "rows", "Comma separated row attributes")
	fs.Var(&pf.cols, "cols", "Comma separated column attributes")
	fs.Var(&pf.vals, "vals", "Comma separated aggregator inputs")
	fs.StringVar(&pf.aggregator, "aggregator", cfg.DefaultAggregator, "Aggregator name")
	fs.StringVar(&pf.renderer, "renderer", cfg.DefaultRenderer, "Renderer name")
	fs.StringVar(&pf.rowOrder, "row-order", string(pivot.OrderKeyAToZ), "key_a_to_z, value_a_to_z or value_z_to_a")
	fs.StringVar(&pf.colOrder, "col-order", string(pivot.OrderKeyAToZ), "key_a_to_z, value_a_to_z or value_z_to_a")
	fs.Var(&pf.exclude, "exclude", "attr=value to exclude (repeatable)")
	fs.Var(&pf.include, "include", "attr=value to keep (repeatable)")
	fs.BoolVar(&pf.hideTotals, "hide-totals", false, "Hide the totals row and column")
	fs.BoolVar(&pf.tsv, "tsv", false, "Write tab separated values instead of rendering")
}

func (pf *pivotFlags) pivotConfig() pivot.Config {
	return pivot.Config{
		Rows:           pf.rows,
		Cols:           pf.cols,
		Vals:           pf.vals,
		AggregatorName: pf.aggregator,
		ValueFilter:    pf.exclude,
		Include:        pf.include,
		RowOrder:       pivot.Order(pf.rowOrder),
		ColOrder:       pivot.Order(pf.colOrder),
	}
}

func (pf *pivotFlags) write(w io.Writer, g render.Grid) error {
	if pf.tsv {
		_, err := io.WriteString(w, render.TSV(g)+"\n")
		return err
	}
	return render.Render(w, pf.renderer, g, render.TableOptions{
		HideRowTotals: pf.hideTotals,
		HideColTotals: pf.hideTotals,
	})
}

// settings loads -config over the environment configuration.
func settings(cfg config.Config, file string) (config.Config, error) {
	if file != "" {
		loaded, err := config.LoadFromFile(file)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func collector(cfg config.Config) *monitoring.MetricsCollector {
	mc := monitoring.NewMetricsCollector(cfg.MetricsCollection)
	mc.SetHistory(cfg.MetricsHistory)
	return mc
}

func runLocal(_ context.Context, cfg config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("local", flag.ContinueOnError)
	var pf pivotFlags
	pf.register(fs, cfg)
	format := fs.String("format", "", "Input format (csv, tsv, json, jsonl, xlsx, parquet); detected from the extension when empty")
	sheet := fs.String("sheet", "", "XLSX sheet, the first sheet when empty")
	jsonPath := fs.String("json-path", "", "JSONPath selecting the records of a JSON document")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: crosstab-cli local [options] <file or glob>\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("expected one input path, got %d", fs.NArg())
	}

	cfg, err := settings(cfg, pf.configFile)
	if err != nil {
		return err
	}
	logger := cfg.NewLogger(os.Stderr).With("component", "cli")
	metrics := collector(cfg)

	opts := cio.DefaultOptions()
	opts.Format = cio.Format(*format)
	opts.XLSX.Sheet = *sheet
	opts.JSON.Path = *jsonPath
	opts.Metrics = metrics

	records, err := load(fs.Arg(0), opts)
	if err != nil {
		return err
	}

	pc := pf.pivotConfig()
	pc.Logger = logger
	pc.Metrics = metrics
	p, err := pivot.New(records, pc)
	if err != nil {
		return err
	}
	logger.Debug("pivot built", "records", p.NumRecords(), "rows", len(p.RowKeys()), "cols", len(p.ColKeys()))
	return pf.write(out, p)
}

func load(path string, opts cio.Options) (pivot.Records, error) {
	if strings.ContainsAny(path, "*?[{") {
		return cio.LoadGlob(path, opts)
	}
	return cio.LoadFile(path, opts)
}

func runRemote(ctx context.Context, cfg config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("remote", flag.ContinueOnError)
	var pf pivotFlags
	pf.register(fs, cfg)
	url := fs.String("url", cfg.RemoteURL, "Base URL of the analytics API")
	connection := fs.String("connection", "", "Connection code of the table")
	table := fs.String("table", "", "Table name")
	requestID := fs.String("request-id", "", "Request id, generated when empty")
	subtotals := fs.Bool("subtotals", true, "Ask the service for margins and the grand total")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: crosstab-cli remote [options]\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := settings(cfg, pf.configFile)
	if err != nil {
		return err
	}
	logger := cfg.NewLogger(os.Stderr).With("component", "cli")

	req, err := remote.BuildRequest(*connection, *table, pf.pivotConfig())
	if err != nil {
		return err
	}
	req.IncludeSubtotals = *subtotals

	if timeout := cfg.RequestTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	client := remote.NewClient(*url, remote.WithLogger(logger), remote.WithMetrics(collector(cfg)))
	resp, err := client.ExecutePivot(ctx, req, *requestID)
	if err != nil {
		return err
	}
	logger.Info("remote pivot",
		"rows", resp.Metadata.RowCount,
		"aggregator", resp.Metadata.AggregatorUsed,
		"cached", resp.Metadata.Cached,
		"execution_ms", resp.Metadata.ExecutionTimeMs)

	result, err := remote.NewResult(req, resp, nil)
	if err != nil {
		return err
	}
	return pf.write(out, result)
}

func runServe(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configFile := fs.String("config", "", "JSON or YAML settings file")
	addr := fs.String("addr", "", "Listen address, the configured address when empty")
	connection := fs.String("connection", "local", "Connection code of the tables loaded from -data")
	var data, databases multiFlag
	fs.Var(&data, "data", "[table=]file or glob served as a table, named after the file by default (repeatable)")
	fs.Var(&databases, "sqlite", "code=path of a sqlite database (repeatable)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: crosstab-cli serve [options]\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := settings(cfg, *configFile)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}
	logger := cfg.NewLogger(os.Stderr)
	metrics := collector(cfg)

	opts := cio.DefaultOptions()
	opts.Metrics = metrics
	catalog, closeAll, err := buildCatalog(ctx, *connection, data, databases, opts, logger)
	defer closeAll()
	if err != nil {
		return err
	}

	h := server.NewHandler(catalog,
		server.WithLogger(logger),
		server.WithMetrics(metrics),
		server.WithCache(server.NewCache(cfg.CacheSize, cfg.CacheTTL())),
		server.WithServiceName(cfg.ServiceName),
	)
	srv := server.NewServer(cfg.ListenAddr, h)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("analytics service listening", "addr", cfg.ListenAddr, "base_path", server.BasePath)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildCatalog serves the -data files of connection from memory and the
// -sqlite databases through SQL. closeAll closes the opened databases.
func buildCatalog(ctx context.Context, connection string, data, databases []string, opts cio.Options, logger *slog.Logger) (server.MultiCatalog, func(), error) {
	var dbs []*sql.DB
	closeAll := func() {
		for _, db := range dbs {
			_ = db.Close()
		}
	}

	memory := server.NewMemoryCatalog()
	for _, spec := range data {
		name, path, ok := strings.Cut(spec, "=")
		if !ok {
			name, path = tableName(spec), spec
		}
		records, err := load(path, opts)
		if err != nil {
			return nil, closeAll, err
		}
		memory.Add(connection, name, records)
		logger.Info("table loaded", "connection", connection, "table", name, "records", len(records))
	}

	sqlite := server.NewSQLCatalog()
	for _, spec := range databases {
		code, path, ok := strings.Cut(spec, "=")
		if !ok || code == "" || path == "" {
			return nil, closeAll, fmt.Errorf("invalid -sqlite value %q, want code=path", spec)
		}
		db, err := sql.Open("sqlite3", path)
		if err != nil {
			return nil, closeAll, fmt.Errorf("opening %s: %w", path, err)
		}
		dbs = append(dbs, db)
		if err := db.PingContext(ctx); err != nil {
			return nil, closeAll, fmt.Errorf("opening %s: %w", path, err)
		}
		sqlite.Register(code, db)
		logger.Info("database registered", "connection", code, "path", path)
	}
	return server.MultiCatalog{memory, sqlite}, closeAll, nil
}

// tableName is the file name without directory, compression and format
// extensions.
func tableName(path string) string {
	name := filepath.Base(path)
	for {
		ext := filepath.Ext(name)
		if ext == "" || ext == name {
			return name
		}
		name = strings.TrimSuffix(name, ext)
	}
}

func runAggregators(out io.Writer) error {
	reg := aggregator.DefaultRegistry()
	for _, name := range reg.Names() {
		entry, err := reg.Lookup(name)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(out, "%-40s %-32s inputs=%d\n", entry.Name, entry.Code, entry.NumInputs); err != nil {
			return err
		}
	}
	return nil
}
