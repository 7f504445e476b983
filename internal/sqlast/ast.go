package sqlast

// Node is the base interface for all AST nodes.
type Node interface {
	node()
}

// Expr is a marker interface for expression nodes.
type Expr interface {
	Node
	exprNode()
}

// Stmt is a marker interface for statement nodes.
type Stmt interface {
	Node
	stmtNode()
}

// TableRef is a marker interface for table reference nodes.
type TableRef interface {
	Node
	tableRefNode()
}

// Script is a sequence of statements separated by semicolons.
type Script struct {
	Stmts []Stmt
}

func (*Script) node() {}

// === Statement Nodes ===

// SelectStmt represents a complete SELECT statement with optional WITH clause.
type SelectStmt struct {
	With *WithClause
	Body *SelectBody
}

func (*SelectStmt) node()     {}
func (*SelectStmt) stmtNode() {}

// WithClause represents a WITH clause with CTEs.
type WithClause struct {
	Recursive bool
	CTEs      []*CTE
}

func (*WithClause) node() {}

// CTE represents a Common Table Expression. Its body is any statement so
// data-modifying CTEs are represented faithfully.
type CTE struct {
	Name string
	Stmt Stmt
}

func (*CTE) node() {}

// SelectBody represents the body of a SELECT with possible set operations.
type SelectBody struct {
	Left  *SelectCore
	Op    SetOpType   // UNION, INTERSECT, EXCEPT, or empty
	Right *SelectBody // for chained set operations
}

func (*SelectBody) node() {}

// SetOpType represents the type of set operation.
type SetOpType string

// SetOpNone and friends classify set operations.
const (
	SetOpNone      SetOpType = ""
	SetOpUnion     SetOpType = "UNION"
	SetOpUnionAll  SetOpType = "UNION ALL"
	SetOpIntersect SetOpType = "INTERSECT"
	SetOpExcept    SetOpType = "EXCEPT"
)

// SelectCore represents the core SELECT clause with all optional clauses.
type SelectCore struct {
	Distinct bool
	Columns  []SelectItem
	From     *FromClause
	Where    Expr
	GroupBy  []Expr
	Having   Expr
	OrderBy  []OrderByItem
	Limit    Expr
	Offset   Expr
}

func (*SelectCore) node() {}

// SelectItem represents an item in the SELECT list.
type SelectItem struct {
	Star      bool   // SELECT *
	TableStar string // SELECT t.*
	Expr      Expr
	Alias     string
}

// OrderByItem represents an ORDER BY item.
type OrderByItem struct {
	Expr       Expr
	Desc       bool
	NullsFirst *bool
}

// FromClause represents the FROM clause.
type FromClause struct {
	Source TableRef
	Joins  []*Join
}

// Join represents a JOIN clause.
type Join struct {
	Type      JoinType
	Natural   bool
	Right     TableRef
	Condition Expr     // ON clause
	Using     []string // USING (col1, col2)
}

func (*Join) node() {}

// Unconstrained reports whether the join can pair every row of both sides.
// NATURAL joins count: with no shared columns they degrade to a cartesian
// product.
func (j *Join) Unconstrained() bool {
	switch j.Type {
	case JoinCross, JoinComma:
		return true
	}
	return j.Natural || (j.Condition == nil && len(j.Using) == 0)
}

// JoinType represents the type of join.
type JoinType string

// JoinInner and friends classify SQL JOIN types.
const (
	JoinInner JoinType = "INNER"
	JoinLeft  JoinType = "LEFT"
	JoinRight JoinType = "RIGHT"
	JoinFull  JoinType = "FULL"
	JoinCross JoinType = "CROSS"
	JoinComma JoinType = ","
)

// WriteOp names a data-modifying statement.
type WriteOp string

// WriteInsert and friends classify data-modifying statements.
const (
	WriteInsert WriteOp = "INSERT"
	WriteUpdate WriteOp = "UPDATE"
	WriteDelete WriteOp = "DELETE"
	WriteMerge  WriteOp = "MERGE"
)

// WriteStmt represents INSERT, UPDATE, DELETE, or MERGE. Only the operation
// and raw text are kept; such statements are never executed.
type WriteStmt struct {
	Op  WriteOp
	Raw string
}

func (*WriteStmt) node()     {}
func (*WriteStmt) stmtNode() {}

// DDLType names a schema-changing statement.
type DDLType string

// DDLCreate and friends classify schema-changing statements.
const (
	DDLCreate   DDLType = "CREATE"
	DDLDrop     DDLType = "DROP"
	DDLAlter    DDLType = "ALTER"
	DDLTruncate DDLType = "TRUNCATE"
)

// DDLStmt represents CREATE, DROP, ALTER, or TRUNCATE.
type DDLStmt struct {
	Type DDLType
	Raw  string
}

func (*DDLStmt) node()     {}
func (*DDLStmt) stmtNode() {}

// UtilityStmt represents any other recognised statement (PRAGMA, SET, COPY,
// ATTACH, and so on).
type UtilityStmt struct {
	Keyword  string
	Raw      string
	Embedded []Stmt // write or schema statements found inside, e.g. EXPLAIN ANALYZE DELETE
}

func (*UtilityStmt) node()     {}
func (*UtilityStmt) stmtNode() {}

// === Table Reference Nodes ===

// TableName represents a table name reference (up to 3-part: catalog.schema.name).
type TableName struct {
	Catalog string
	Schema  string
	Name    string
	Alias   string
}

func (*TableName) node()         {}
func (*TableName) tableRefNode() {}

// DerivedTable represents a parenthesised statement in a FROM clause.
type DerivedTable struct {
	Stmt  Stmt
	Alias string
}

func (*DerivedTable) node()         {}
func (*DerivedTable) tableRefNode() {}

// FuncTable represents a table-valued function in FROM, e.g. read_csv(...).
type FuncTable struct {
	Func  *FuncCall
	Alias string
}

func (*FuncTable) node()         {}
func (*FuncTable) tableRefNode() {}

// === Expression Nodes ===

// ColumnRef represents a column reference, optionally qualified.
type ColumnRef struct {
	Table  string // optional table/alias qualifier
	Column string
}

func (*ColumnRef) node()     {}
func (*ColumnRef) exprNode() {}

// LiteralType represents the type of a literal.
type LiteralType int

const (
	LiteralNumber LiteralType = iota
	LiteralString
	LiteralBool
	LiteralNull
)

// Literal represents a literal value (number, string, bool, null).
type Literal struct {
	Type  LiteralType
	Value string
}

func (*Literal) node()     {}
func (*Literal) exprNode() {}

// TypedLiteral represents a type-prefixed string, e.g. DATE '2024-01-01'.
type TypedLiteral struct {
	TypeName string
	Value    string
}

func (*TypedLiteral) node()     {}
func (*TypedLiteral) exprNode() {}

// BinaryExpr represents a binary expression (left op right).
type BinaryExpr struct {
	Left  Expr
	Op    TokenType
	Right Expr
}

func (*BinaryExpr) node()     {}
func (*BinaryExpr) exprNode() {}

// UnaryExpr represents a unary expression (NOT x, -x, +x).
type UnaryExpr struct {
	Op   TokenType
	Expr Expr
}

func (*UnaryExpr) node()     {}
func (*UnaryExpr) exprNode() {}

// ParenExpr represents a parenthesized expression.
type ParenExpr struct {
	Expr Expr
}

func (*ParenExpr) node()     {}
func (*ParenExpr) exprNode() {}

// FuncCall represents a function call.
type FuncCall struct {
	Name     string // stored in original case
	Distinct bool   // COUNT(DISTINCT ...)
	Star     bool   // COUNT(*)
	Args     []Expr
}

func (*FuncCall) node()     {}
func (*FuncCall) exprNode() {}

// CaseExpr represents a CASE expression.
type CaseExpr struct {
	Operand Expr // nil for searched CASE
	Whens   []WhenClause
	Else    Expr
}

func (*CaseExpr) node()     {}
func (*CaseExpr) exprNode() {}

// WhenClause is one WHEN ... THEN ... arm.
type WhenClause struct {
	Condition Expr
	Result    Expr
}

// CastExpr represents CAST(x AS type) or x::type.
type CastExpr struct {
	Expr     Expr
	TypeName string
}

func (*CastExpr) node()     {}
func (*CastExpr) exprNode() {}

// IsNullExpr represents x IS [NOT] NULL.
type IsNullExpr struct {
	Expr Expr
	Not  bool
}

func (*IsNullExpr) node()     {}
func (*IsNullExpr) exprNode() {}

// InExpr represents x [NOT] IN (list) or x [NOT] IN (subquery).
type InExpr struct {
	Expr  Expr
	Not   bool
	List  []Expr
	Query Stmt
}

func (*InExpr) node()     {}
func (*InExpr) exprNode() {}

// BetweenExpr represents x [NOT] BETWEEN low AND high.
type BetweenExpr struct {
	Expr Expr
	Not  bool
	Low  Expr
	High Expr
}

func (*BetweenExpr) node()     {}
func (*BetweenExpr) exprNode() {}

// LikeExpr represents x [NOT] LIKE|ILIKE pattern.
type LikeExpr struct {
	Expr            Expr
	Not             bool
	CaseInsensitive bool
	Pattern         Expr
}

func (*LikeExpr) node()     {}
func (*LikeExpr) exprNode() {}

// ExistsExpr represents [NOT] EXISTS (subquery).
type ExistsExpr struct {
	Not   bool
	Query Stmt
}

func (*ExistsExpr) node()     {}
func (*ExistsExpr) exprNode() {}

// SubqueryExpr represents a scalar subquery.
type SubqueryExpr struct {
	Query Stmt
}

func (*SubqueryExpr) node()     {}
func (*SubqueryExpr) exprNode() {}
