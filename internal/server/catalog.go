package server

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"sync"

	"github.com/paveg/crosstab/internal/errors"
	"github.com/paveg/crosstab/internal/io"
	"github.com/paveg/crosstab/internal/pivot"
)

// Table is a resolved table: its records and its column names.
type Table struct {
	Records pivot.Records
	Columns []string
}

// Catalog resolves the table a pivot request names. Implementations return
// an error matching errors.ErrUnknownTable for unknown connections or
// tables.
type Catalog interface {
	Table(ctx context.Context, connectionCode, tableName string) (*Table, error)
}

// MemoryCatalog serves tables held in memory. It is safe for concurrent use.
type MemoryCatalog struct {
	mu     sync.RWMutex
	tables map[string]map[string]*Table
}

// NewMemoryCatalog returns an empty catalog.
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{tables: make(map[string]map[string]*Table)}
}

// Add registers records as connectionCode/tableName, replacing any previous
// table of that name. The columns are the sorted union of the record
// attributes.
func (c *MemoryCatalog) Add(connectionCode, tableName string, records pivot.Records) {
	seen := make(map[string]struct{})
	for _, rec := range records {
		for k := range rec {
			seen[k] = struct{}{}
		}
	}
	table := &Table{Records: records, Columns: slices.Sorted(maps.Keys(seen))}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tables[connectionCode] == nil {
		c.tables[connectionCode] = make(map[string]*Table)
	}
	c.tables[connectionCode][tableName] = table
}

// Table implements Catalog.
func (c *MemoryCatalog) Table(_ context.Context, connectionCode, tableName string) (*Table, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	table, ok := c.tables[connectionCode][tableName]
	if !ok {
		return nil, errors.NewUnknownTableError("Table", connectionCode, tableName)
	}
	return table, nil
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLCatalog serves the tables and views of sqlite databases, one database
// per connection code. Every request reads the table afresh.
type SQLCatalog struct {
	mu  sync.RWMutex
	dbs map[string]*sql.DB
}

// NewSQLCatalog returns an empty catalog.
func NewSQLCatalog() *SQLCatalog {
	return &SQLCatalog{dbs: make(map[string]*sql.DB)}
}

// Register serves db under connectionCode. The catalog does not close db.
func (c *SQLCatalog) Register(connectionCode string, db *sql.DB) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dbs[connectionCode] = db
}

// Table implements Catalog.
func (c *SQLCatalog) Table(ctx context.Context, connectionCode, tableName string) (*Table, error) {
	const op = "Table"

	c.mu.RLock()
	db, ok := c.dbs[connectionCode]
	c.mu.RUnlock()
	if !ok {
		return nil, errors.NewUnknownTableError(op, connectionCode, tableName)
	}
	if !identifier.MatchString(tableName) {
		return nil, errors.NewInvalidInputError(op, fmt.Sprintf("invalid table name %q", tableName))
	}

	var name string
	err := db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type IN ('table', 'view') AND name = ?`, tableName).Scan(&name)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewUnknownTableError(op, connectionCode, tableName)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up table %s: %w", tableName, err)
	}

	records, columns, err := io.ReadSQL(ctx, db, fmt.Sprintf(`SELECT * FROM "%s"`, name))
	if err != nil {
		return nil, err
	}
	return &Table{Records: records, Columns: columns}, nil
}

// MultiCatalog tries each catalog in turn and returns the first table found.
type MultiCatalog []Catalog

// Table implements Catalog.
func (m MultiCatalog) Table(ctx context.Context, connectionCode, tableName string) (*Table, error) {
	for _, c := range m {
		table, err := c.Table(ctx, connectionCode, tableName)
		if err == nil {
			return table, nil
		}
		if !stderrors.Is(err, errors.ErrUnknownTable) {
			return nil, err
		}
	}
	return nil, errors.NewUnknownTableError("Table", connectionCode, tableName)
}
