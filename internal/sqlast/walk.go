package sqlast

import "strings"

// === Statement Classification ===

// StmtType represents the kind of SQL statement.
type StmtType int

// StmtTypeSelect and friends classify statement types.
const (
	StmtTypeSelect StmtType = iota
	StmtTypeWrite
	StmtTypeDDL
	StmtTypeOther
)

// Classify returns the statement type for a parsed statement.
func Classify(stmt Stmt) StmtType {
	switch stmt.(type) {
	case *SelectStmt:
		return StmtTypeSelect
	case *WriteStmt:
		return StmtTypeWrite
	case *DDLStmt:
		return StmtTypeDDL
	default:
		return StmtTypeOther
	}
}

// IsDestructive reports whether stmt writes data or changes schema.
func IsDestructive(stmt Stmt) bool {
	switch Classify(stmt) {
	case StmtTypeWrite, StmtTypeDDL:
		return true
	}
	return false
}

// === Traversal ===

// Walk traverses the tree rooted at n depth-first, calling fn for each node
// before its children. Children are skipped when fn returns false. Nested
// statements in CTEs, derived tables, subqueries, and utility statements are
// visited as well.
func Walk(n Node, fn func(Node) bool) {
	if isNil(n) || !fn(n) {
		return
	}

	switch n := n.(type) {
	case *Script:
		for _, s := range n.Stmts {
			Walk(s, fn)
		}

	case *SelectStmt:
		if n.With != nil {
			Walk(n.With, fn)
		}
		if n.Body != nil {
			Walk(n.Body, fn)
		}

	case *WithClause:
		for _, cte := range n.CTEs {
			Walk(cte, fn)
		}

	case *CTE:
		walkStmt(n.Stmt, fn)

	case *SelectBody:
		if n.Left != nil {
			Walk(n.Left, fn)
		}
		if n.Right != nil {
			Walk(n.Right, fn)
		}

	case *SelectCore:
		for _, item := range n.Columns {
			walkExpr(item.Expr, fn)
		}
		if n.From != nil {
			walkTableRef(n.From.Source, fn)
			for _, j := range n.From.Joins {
				Walk(j, fn)
			}
		}
		walkExpr(n.Where, fn)
		for _, e := range n.GroupBy {
			walkExpr(e, fn)
		}
		walkExpr(n.Having, fn)
		for _, o := range n.OrderBy {
			walkExpr(o.Expr, fn)
		}
		walkExpr(n.Limit, fn)
		walkExpr(n.Offset, fn)

	case *Join:
		walkTableRef(n.Right, fn)
		walkExpr(n.Condition, fn)

	case *UtilityStmt:
		for _, s := range n.Embedded {
			walkStmt(s, fn)
		}

	case *DerivedTable:
		walkStmt(n.Stmt, fn)

	case *FuncTable:
		if n.Func != nil {
			Walk(n.Func, fn)
		}

	case *BinaryExpr:
		walkExpr(n.Left, fn)
		walkExpr(n.Right, fn)
	case *UnaryExpr:
		walkExpr(n.Expr, fn)
	case *ParenExpr:
		walkExpr(n.Expr, fn)
	case *FuncCall:
		for _, a := range n.Args {
			walkExpr(a, fn)
		}
	case *CaseExpr:
		walkExpr(n.Operand, fn)
		for _, w := range n.Whens {
			walkExpr(w.Condition, fn)
			walkExpr(w.Result, fn)
		}
		walkExpr(n.Else, fn)
	case *CastExpr:
		walkExpr(n.Expr, fn)
	case *IsNullExpr:
		walkExpr(n.Expr, fn)
	case *InExpr:
		walkExpr(n.Expr, fn)
		for _, e := range n.List {
			walkExpr(e, fn)
		}
		walkStmt(n.Query, fn)
	case *BetweenExpr:
		walkExpr(n.Expr, fn)
		walkExpr(n.Low, fn)
		walkExpr(n.High, fn)
	case *LikeExpr:
		walkExpr(n.Expr, fn)
		walkExpr(n.Pattern, fn)
	case *ExistsExpr:
		walkStmt(n.Query, fn)
	case *SubqueryExpr:
		walkStmt(n.Query, fn)
	}
}

func walkExpr(e Expr, fn func(Node) bool) {
	if e != nil {
		Walk(e, fn)
	}
}

func walkStmt(s Stmt, fn func(Node) bool) {
	if s != nil {
		Walk(s, fn)
	}
}

func walkTableRef(t TableRef, fn func(Node) bool) {
	if t != nil {
		Walk(t, fn)
	}
}

// isNil catches typed nil pointers stored in interfaces by partial parses.
func isNil(n Node) bool {
	if n == nil {
		return true
	}
	switch v := n.(type) {
	case *SelectStmt:
		return v == nil
	case *SelectBody:
		return v == nil
	case *SelectCore:
		return v == nil
	case *CTE:
		return v == nil
	case *Join:
		return v == nil
	case *FuncCall:
		return v == nil
	}
	return false
}

// === Table Name Collection ===

// CollectTableNames returns a deduplicated list of table names referenced in
// the tree, in order of first appearance. Names keep their qualifiers.
func CollectTableNames(n Node) []string {
	seen := make(map[string]bool)
	var tables []string
	Walk(n, func(n Node) bool {
		if t, ok := n.(*TableName); ok {
			name := t.Name
			if t.Schema != "" {
				name = t.Schema + "." + name
			}
			if t.Catalog != "" {
				name = t.Catalog + "." + name
			}
			key := strings.ToLower(name)
			if !seen[key] {
				seen[key] = true
				tables = append(tables, name)
			}
		}
		return true
	})
	return tables
}
