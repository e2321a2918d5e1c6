package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	_ "modernc.org/sqlite"
)

// #region warehouse-struct
// Warehouse is the structured-query gateway over the retail SQLite dataset.
// The schema is introspected once at open and never mutated afterwards, so
// a Warehouse handle is safe to share across batch workers.
type Warehouse struct {
	db       *sql.DB
	tables   []Table
	mentions []*regexp.Regexp // per-table word-boundary matchers, schema order
}

// keyTables are listed first in prompt schema text; the rest follow in
// name order. Mirrors the tables the generator is told to prefer.
var keyTables = []string{"Orders", "Order Details", "Products", "Customers", "Categories"}

// #endregion warehouse-struct

// #region constructor
// Open opens the SQLite dataset read-only and caches its schema.
func Open(dbPath string) (*Warehouse, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Single connection keeps the pragma effective for every query.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA query_only=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma query_only: %w", err)
	}

	w := &Warehouse{db: db}
	if err := w.loadSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return w, nil
}

// Close closes the underlying database connection.
func (w *Warehouse) Close() error {
	return w.db.Close()
}

// #endregion constructor

// #region introspect
func (w *Warehouse) loadSchema() error {
	rows, err := w.db.Query(
		`SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("list tables: %w", err)
	}

	for _, name := range orderKeyFirst(names) {
		cols, err := w.tableColumns(name)
		if err != nil {
			return err
		}
		w.tables = append(w.tables, Table{Name: name, Columns: cols})
		w.mentions = append(w.mentions, regexp.MustCompile(
			`(^|[^A-Z0-9_])`+regexp.QuoteMeta(strings.ToUpper(name))+`($|[^A-Z0-9_])`))
	}
	if len(w.tables) == 0 {
		return fmt.Errorf("no tables found in warehouse")
	}
	return nil
}

func (w *Warehouse) tableColumns(table string) ([]Column, error) {
	rows, err := w.db.Query(fmt.Sprintf(`PRAGMA table_info(%q)`, table))
	if err != nil {
		return nil, fmt.Errorf("table_info %s: %w", table, err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var (
			cid, notnull, pk int
			name, ctype      string
			dflt             any
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan column of %s: %w", table, err)
		}
		cols = append(cols, Column{Name: name, Type: ctype})
	}
	return cols, rows.Err()
}

// orderKeyFirst places the key tables first, keeping name order for the rest.
func orderKeyFirst(names []string) []string {
	present := make(map[string]bool, len(names))
	for _, n := range names {
		present[n] = true
	}
	var ordered []string
	for _, k := range keyTables {
		if present[k] {
			ordered = append(ordered, k)
			present[k] = false
		}
	}
	for _, n := range names {
		if present[n] {
			ordered = append(ordered, n)
		}
	}
	return ordered
}

// IntrospectSchema returns the ordered table list. The returned slice is a
// copy; callers cannot mutate the cached schema.
func (w *Warehouse) IntrospectSchema() []Table {
	out := make([]Table, len(w.tables))
	copy(out, w.tables)
	return out
}

// CompactSchema renders the schema as one "Table(col, col, ...)" line per
// table, the form query-synthesis prompts consume.
func (w *Warehouse) CompactSchema() string {
	var b strings.Builder
	for i, t := range w.tables {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(t.Name)
		b.WriteByte('(')
		for j, c := range t.Columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(c.Name)
		}
		b.WriteByte(')')
	}
	return b.String()
}

// #endregion introspect

// #region execute
// Execute runs one SELECT query. Any failure, including a context timeout,
// is returned as a *QueryError carrying the literal engine message.
func (w *Warehouse) Execute(ctx context.Context, query string) (Rows, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(query))
	if !strings.HasPrefix(trimmed, "SELECT") && !strings.HasPrefix(trimmed, "WITH") {
		return Rows{}, &QueryError{Message: "only SELECT statements are allowed"}
	}

	rows, err := w.db.QueryContext(ctx, query)
	if err != nil {
		return Rows{}, &QueryError{Message: err.Error()}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return Rows{}, &QueryError{Message: err.Error()}
	}

	result := Rows{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Rows{}, &QueryError{Message: err.Error()}
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		result.Values = append(result.Values, vals)
	}
	if err := rows.Err(); err != nil {
		return Rows{}, &QueryError{Message: err.Error()}
	}
	return result, nil
}

// #endregion execute

// #region referenced-tables
// ReferencedTables returns the known tables the query mentions, in schema
// order, de-duplicated. Word-boundary matching keeps "Orders" from matching
// "Order Details" and vice versa.
func (w *Warehouse) ReferencedTables(query string) []string {
	upper := strings.ToUpper(query)
	var out []string
	for i, t := range w.tables {
		if w.mentions[i].MatchString(upper) {
			out = append(out, t.Name)
		}
	}
	return out
}

// #endregion referenced-tables
