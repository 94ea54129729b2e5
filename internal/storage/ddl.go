package storage

import (
	"context"
	"fmt"
	"strings"
)

// ColumnType is a dialect-neutral column type.
type ColumnType int

const (
	TypeText ColumnType = iota
	TypeBigInt
	TypeTimestamp
)

// ColumnDef describes one journal column.
type ColumnDef struct {
	Name     string
	Type     ColumnType
	Nullable bool
}

// TableDef is a table name (optionally schema-qualified) and its columns.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// Dialect renders DDL for one database.
type Dialect struct {
	Name string
	// Quote quotes a single identifier segment.
	Quote func(string) string
	// Types maps each ColumnType to a SQL type.
	Types map[ColumnType]string
	// Guard wraps a CREATE TABLE statement so it is a no-op when the table
	// exists. fqn is already quoted; raw is the unquoted name.
	Guard func(create, fqn, raw string) string
}

// QuoteFQN quotes each non-empty dot-separated segment of name.
func (d Dialect) QuoteFQN(name string) string {
	parts := strings.Split(name, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		out = append(out, d.Quote(p))
	}
	return strings.Join(out, ".")
}

// BuildCreateTableSQL renders a deterministic CREATE TABLE statement for t.
func BuildCreateTableSQL(t TableDef, d Dialect) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("%s ddl: table FQN must not be empty", d.Name)
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("%s ddl: at least one column is required", d.Name)
	}

	cols := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("%s ddl: column with empty name in table %s", d.Name, fqn)
		}
		typ, ok := d.Types[c.Type]
		if !ok {
			return "", fmt.Errorf("%s ddl: column %s has unmapped type %d", d.Name, name, c.Type)
		}
		col := d.Quote(name) + " " + typ
		if !c.Nullable {
			col += " NOT NULL"
		}
		cols = append(cols, col)
	}

	quoted := d.QuoteFQN(fqn)
	create := fmt.Sprintf("CREATE TABLE %s (\n  %s\n);", quoted, strings.Join(cols, ",\n  "))
	if d.Guard != nil {
		create = d.Guard(create, quoted, fqn)
	}
	return create, nil
}

// JournalDDL renders the journal table in dialect d.
func JournalDDL(table string, d Dialect) (string, error) {
	return BuildCreateTableSQL(TableDef{FQN: table, Columns: JournalColumns}, d)
}

// Bootstrapper returns a DDLBootstrapper that creates the journal table in
// dialect d.
func Bootstrapper(d Dialect) DDLBootstrapper {
	return func(ctx context.Context, repo Repository, table string) error {
		stmt, err := JournalDDL(table, d)
		if err != nil {
			return err
		}
		if err := repo.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%s ddl: apply: %w", d.Name, err)
		}
		return nil
	}
}
