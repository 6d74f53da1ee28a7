package types

// Order is the direction of an ORDER BY clause.
type Order string

// Sort directions. The empty Order leaves direction to SQLite (ascending).
const (
	OrderDefault Order = ""
	OrderAsc     Order = "ASC"
	OrderDesc    Order = "DESC"
)

// Select describes a SELECT statement. Every clause except Table is optional.
//
// Where and Having may contain ? placeholders; WhereArgs are bound to them
// in statement order.
// Table, column and clause text are inserted verbatim and must come from
// trusted code, not user input.
type Select struct {
	Table     string
	Columns   []string
	Where     string
	WhereArgs []Value
	GroupBy   string
	Having    string
	OrderBy   string
	Order     Order
	Limit     int
}
