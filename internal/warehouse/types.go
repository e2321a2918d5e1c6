package warehouse

// #region schema-types
// Column describes one column of a warehouse table.
type Column struct {
	Name string
	Type string
}

// Table describes one warehouse table with its columns in declared order.
type Table struct {
	Name    string
	Columns []Column
}

// #endregion schema-types

// #region rows
// Rows is the result of a successful query: ordered columns and rows.
type Rows struct {
	Columns []string
	Values  [][]any
}

// Empty reports whether the result carries no rows.
func (r Rows) Empty() bool {
	return len(r.Values) == 0
}

// #endregion rows

// #region query-error
// QueryError is a non-fatal execution failure. Its message is passed
// verbatim to the query refiner; callers other than the refiner must not
// interpret it.
type QueryError struct {
	Message string
}

func (e *QueryError) Error() string {
	return "query error: " + e.Message
}

// #endregion query-error
