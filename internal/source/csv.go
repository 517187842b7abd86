// Package source loads external data into the engine.
//
// Loading a new data source always starts from a fresh engine: the live
// session is reset first, then the data is written through a new one.
package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// Executor is the part of session.Manager the loader needs.
type Executor interface {
	Reset(ctx context.Context)
	Exec(ctx context.Context, sqlText string, args ...any) error
}

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ErrEmptyHeader is returned for CSV input without a header row.
var ErrEmptyHeader = errors.New("csv has no header row")

// LoadCSVFile loads the CSV file at path into table. See LoadCSV.
func LoadCSVFile(ctx context.Context, ex Executor, path, table string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open csv: %w", err)
	}
	defer f.Close()

	return LoadCSV(ctx, ex, f, table)
}

// LoadCSV resets the engine and loads CSV data into a new table.
//
// The first record is the header; every column is created as TEXT and
// named after its header cell. Records are inserted with bound parameters.
// Returns the number of data rows loaded.
//
// The table name and header are checked before the engine is reset, so bad
// input leaves the current session untouched.
func LoadCSV(ctx context.Context, ex Executor, r io.Reader, table string) (int, error) {
	if !tableNamePattern.MatchString(table) {
		return 0, fmt.Errorf("invalid table name %q", table)
	}

	reader := csv.NewReader(r)
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return 0, ErrEmptyHeader
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read csv header: %w", err)
	}
	if err := checkHeader(header); err != nil {
		return 0, err
	}
	// All later records must match the header width.
	reader.FieldsPerRecord = len(header)

	ex.Reset(ctx)

	if err := ex.Exec(ctx, createTableSQL(table, header)); err != nil {
		return 0, fmt.Errorf("failed to create table %s: %w", table, err)
	}

	insert := insertSQL(table, len(header))
	loaded := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return loaded, fmt.Errorf("failed to read csv record %d: %w", loaded+1, err)
		}

		args := make([]any, len(record))
		for i, v := range record {
			args[i] = v
		}
		if err := ex.Exec(ctx, insert, args...); err != nil {
			return loaded, fmt.Errorf("failed to insert record %d: %w", loaded+1, err)
		}
		loaded++
	}

	return loaded, nil
}

func checkHeader(header []string) error {
	if len(header) == 0 {
		return ErrEmptyHeader
	}
	seen := make(map[string]bool, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			return fmt.Errorf("csv header column %d is empty", i+1)
		}
		key := strings.ToLower(name)
		if seen[key] {
			return fmt.Errorf("csv header column %q is duplicated", name)
		}
		seen[key] = true
	}
	return nil
}

// quoteIdent quotes an SQL identifier, doubling embedded quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(strings.TrimSpace(name), `"`, `""`) + `"`
}

func createTableSQL(table string, header []string) string {
	cols := make([]string, len(header))
	for i, name := range header {
		cols[i] = quoteIdent(name) + " TEXT"
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), strings.Join(cols, ", "))
}

func insertSQL(table string, n int) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
	return fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(table), placeholders)
}
