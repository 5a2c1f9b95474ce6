package testutil

import (
	"database/sql"
	"fmt"
	"strings"
	"testing"

	// Register the sqlite3 driver for in-memory test databases.
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

// SQLTestContext provides an in-memory sqlite database seeded with test tables.
type SQLTestContext struct {
	DB  *sql.DB
	DSN string
}

// Release closes the database.
func (ctx *SQLTestContext) Release() {
	if ctx.DB != nil {
		_ = ctx.DB.Close()
	}
}

// SetupSQLTest creates an in-memory sqlite database for SQL tests.
// The database is private to the test and contains:
// - employees: name, age, department, salary, active (CreateTestRecords)
// - sales: region, product, revenue (SalesRecords)
//
// Example usage:
//
//	sqlCtx := testutil.SetupSQLTest(t)
//	defer sqlCtx.Release()
//
//	rows, err := sqlCtx.DB.Query("SELECT name FROM employees")
func SetupSQLTest(t *testing.T) *SQLTestContext {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err, "opening sqlite should succeed")
	// A shared in-memory database lives as long as one connection is open.
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := &SQLTestContext{DB: db, DSN: dsn}
	ctx.Exec(t, `CREATE TABLE employees (name TEXT, age INTEGER, department TEXT, salary INTEGER, active BOOLEAN)`)
	for _, r := range CreateTestRecords() {
		ctx.Exec(t, `INSERT INTO employees VALUES (?, ?, ?, ?, ?)`,
			r["name"], r["age"], r["department"], r["salary"], r["active"])
	}

	ctx.Exec(t, `CREATE TABLE sales (region TEXT, product TEXT, revenue REAL)`)
	for _, r := range SalesRecords() {
		ctx.Exec(t, `INSERT INTO sales VALUES (?, ?, ?)`, r["region"], r["product"], r["revenue"])
	}
	return ctx
}

// Exec runs a statement and fails the test on error.
func (ctx *SQLTestContext) Exec(t *testing.T, query string, args ...any) {
	t.Helper()
	_, err := ctx.DB.Exec(query, args...)
	require.NoError(t, err, "SQL statement should succeed: %s", query)
}
