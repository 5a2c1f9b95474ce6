// Package crosstab computes pivot tables: it groups records along row and
// column attributes, aggregates a value per cell with pluggable
// aggregators, orders the keys, and renders the result as a table, heatmap
// or chart dataset. A pivot may be computed in process or delegated to a
// remote aggregation service; both paths render identically.
// This package is the sole public API for the library.
package crosstab

import (
	"context"
	"database/sql"
	"io"
	"net/http"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/crosstab/internal/aggregator"
	"github.com/paveg/crosstab/internal/errors"
	cio "github.com/paveg/crosstab/internal/io"
	"github.com/paveg/crosstab/internal/pivot"
	"github.com/paveg/crosstab/internal/remote"
	"github.com/paveg/crosstab/internal/render"
	"github.com/paveg/crosstab/internal/server"
	"github.com/paveg/crosstab/internal/sorter"
)

// Engine types.
type (
	Record           = pivot.Record
	Records          = pivot.Records
	Matrix           = pivot.Matrix
	Source           = pivot.Source
	SourceFunc       = pivot.SourceFunc
	DerivedAttribute = pivot.DerivedAttribute
	Config           = pivot.Config
	Order            = pivot.Order
	PivotData        = pivot.PivotData
)

// Aggregator types.
type (
	Registry     = aggregator.Registry
	Factory      = aggregator.Factory
	Aggregator   = aggregator.Aggregator
	Instance     = aggregator.Instance
	NumberFormat = aggregator.NumberFormat
)

// Sorter types.
type (
	Sorter    = sorter.Sorter
	Sorters   = sorter.Sorters
	SorterMap = sorter.SorterMap
)

// Rendering types.
type (
	Grid         = render.Grid
	Table        = render.Table
	TableOptions = render.TableOptions
	HeatmapMode  = render.HeatmapMode
	ChartData    = render.ChartData
	ChartOptions = render.ChartOptions
)

// Remote delegation types.
type (
	Client         = remote.Client
	ClientOption   = remote.Option
	RemoteRequest  = remote.Request
	RemoteResponse = remote.Response
	RemoteResult   = remote.Result
	ServerError    = remote.ServerError
)

// Service and loader types.
type (
	Catalog       = server.Catalog
	MemoryCatalog = server.MemoryCatalog
	SQLCatalog    = server.SQLCatalog
	Handler       = server.Handler
	HandlerOption = server.Option
	LoadOptions   = cio.Options
	Format        = cio.Format
)

// PivotError is the error type returned by every operation of the library.
type PivotError = errors.PivotError

// Error causes, matched with errors.Is.
var (
	ErrUnknownAggregator  = errors.ErrUnknownAggregator
	ErrAmbiguousAttribute = errors.ErrAmbiguousAttribute
	ErrMissingInput       = errors.ErrMissingInput
	ErrInvalidOrder       = errors.ErrInvalidOrder
	ErrInvalidInput       = errors.ErrInvalidInput
	ErrCancelled          = errors.ErrCancelled
	ErrNotDelegable       = errors.ErrNotDelegable
	ErrUnknownTable       = errors.ErrUnknownTable
)

// Row and column orders.
const (
	OrderKeyAToZ   = pivot.OrderKeyAToZ
	OrderValueAToZ = pivot.OrderValueAToZ
	OrderValueZToA = pivot.OrderValueZToA
)

// Heatmap modes.
const (
	HeatmapNone = render.HeatmapNone
	HeatmapFull = render.HeatmapFull
	HeatmapRow  = render.HeatmapRow
	HeatmapCol  = render.HeatmapCol
)

// NewPivot aggregates every record of source according to cfg.
func NewPivot(source Source, cfg Config) (*PivotData, error) {
	return pivot.New(source, cfg)
}

// Aggregators returns the shared registry of built-in aggregators.
func Aggregators() *Registry {
	return aggregator.DefaultRegistry()
}

// NewRegistry returns a registry holding the built-in aggregators, ready
// for custom registrations that must not leak into the shared registry.
func NewRegistry() *Registry {
	return aggregator.NewBuiltinRegistry()
}

// Bin derives a numeric attribute rounded down to a multiple of width.
func Bin(attr string, width float64) DerivedAttribute {
	return pivot.Bin(attr, width)
}

// DateFormat derives a textual attribute from a date valued one.
func DateFormat(attr, pattern string, utc bool) DerivedAttribute {
	return pivot.DateFormat(attr, pattern, utc)
}

// NaturalSort is the default attribute value ordering.
func NaturalSort(a, b string) int {
	return sorter.NaturalSort(a, b)
}

// SortAs orders the listed values first, in the given order.
func SortAs(order []string) Sorter {
	return sorter.SortAs(order)
}

// NewTable builds the table layout of g.
func NewTable(g Grid, opts TableOptions) (*Table, error) {
	return render.NewTable(g, opts)
}

// Render writes g to w with the named renderer.
func Render(w io.Writer, rendererName string, g Grid, opts TableOptions) error {
	return render.Render(w, rendererName, g, opts)
}

// RendererNames lists every registered renderer.
func RendererNames() []string {
	return render.RendererNames("")
}

// TSV exports g as tab separated text.
func TSV(g Grid) string {
	return render.TSV(g)
}

// Chart builds the chart dataset of g.
func Chart(g Grid, opts ChartOptions) ChartData {
	return render.Chart(g, opts)
}

// LoadFile reads the records of a CSV, JSON, XLSX or Parquet file,
// optionally gzip or xz compressed.
func LoadFile(path string, opts LoadOptions) (Records, error) {
	return cio.LoadFile(path, opts)
}

// LoadGlob reads and concatenates every file matching pattern.
func LoadGlob(pattern string, opts LoadOptions) (Records, error) {
	return cio.LoadGlob(pattern, opts)
}

// DefaultLoadOptions returns the loader defaults.
func DefaultLoadOptions() LoadOptions {
	return cio.DefaultOptions()
}

// ReadParquet decodes a Parquet stream into records.
func ReadParquet(r io.Reader) (Records, error) {
	return cio.ReadParquet(r, memory.NewGoAllocator())
}

// QuerySQL runs query against db and returns its rows as records.
func QuerySQL(ctx context.Context, db *sql.DB, query string, args ...any) (Records, error) {
	records, _, err := cio.ReadSQL(ctx, db, query, args...)
	return records, err
}

// NewClient returns a client of the remote aggregation service at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	return remote.NewClient(baseURL, opts...)
}

// PivotRemote delegates cfg to the service behind client and normalises the
// answer into a renderable grid. Subtotals are always requested, so the
// margins and the grand total match a local pivot of the same table.
// requestID may be empty; a later call with the same id cancels this one.
func PivotRemote(ctx context.Context, client *Client, connectionCode, tableName string, cfg Config, requestID string) (*RemoteResult, error) {
	req, err := remote.BuildRequest(connectionCode, tableName, cfg)
	if err != nil {
		return nil, err
	}
	req.IncludeSubtotals = true
	resp, err := client.ExecutePivot(ctx, req, requestID)
	if err != nil {
		return nil, err
	}
	return remote.NewResult(req, resp, cfg.Registry)
}

// NewMemoryCatalog returns an empty in-process table catalog.
func NewMemoryCatalog() *MemoryCatalog {
	return server.NewMemoryCatalog()
}

// NewSQLCatalog returns a catalog of sqlite connections.
func NewSQLCatalog() *SQLCatalog {
	return server.NewSQLCatalog()
}

// NewHandler returns the HTTP handler of the aggregation service.
func NewHandler(catalog Catalog, opts ...HandlerOption) *Handler {
	return server.NewHandler(catalog, opts...)
}

// NewServer mounts h under the service base path.
func NewServer(addr string, h *Handler) *http.Server {
	return server.NewServer(addr, h)
}
