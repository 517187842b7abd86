package engine

import "github.com/jmoiron/sqlx"

// Row is one result record: column name to value.
type Row map[string]any

// Column is one column of a columnar result.
type Column struct {
	Name   string
	Type   string // database type name reported by the driver, may be empty
	Values []any
}

// Table is the engine's native columnar result.
// Every column holds exactly NumRows values.
type Table struct {
	Columns []Column
	NumRows int
}

// ColumnNames returns column names in engine order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Rows converts the table to row records, preserving engine row order.
//
// Byte slices become strings. When a result carries duplicate column names
// the rightmost column wins, as in a JSON object.
func (t *Table) Rows() []Row {
	rows := make([]Row, t.NumRows)
	for r := 0; r < t.NumRows; r++ {
		row := make(Row, len(t.Columns))
		for _, c := range t.Columns {
			row[c.Name] = plainValue(c.Values[r])
		}
		rows[r] = row
	}
	return rows
}

func plainValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// collectTable drains rows into a columnar Table.
// The caller still owns rows and must close it.
func collectTable(rows *sqlx.Rows) (*Table, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	t := &Table{Columns: make([]Column, len(types))}
	for i, ct := range types {
		t.Columns[i] = Column{Name: ct.Name(), Type: ct.DatabaseTypeName()}
	}

	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, err
		}
		for i, v := range values {
			t.Columns[i].Values = append(t.Columns[i].Values, v)
		}
		t.NumRows++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return t, nil
}
