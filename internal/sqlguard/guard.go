// Package sqlguard decides whether generated SQL may reach the database.
//
// Validation is structural: the text is parsed with sqlast and the tree is
// inspected. Keywords inside string literals or comments never trip a check,
// and a destructive statement is found wherever the grammar allows a
// statement to appear.
package sqlguard

import (
	"strconv"
	"strings"

	"metricgate/internal/domain"
	"metricgate/internal/sqlast"
)

// Option narrows what Validate accepts.
type Option func(*options)

type options struct {
	tables map[string]bool
}

// AllowTables restricts the statement to reading the named tables. Names are
// compared case-insensitively and must match the reference as written,
// qualifiers included. Without this option any plain table may be read.
func AllowTables(names ...string) Option {
	return func(o *options) {
		if o.tables == nil {
			o.tables = make(map[string]bool, len(names))
		}
		for _, n := range names {
			o.tables[strings.ToLower(n)] = true
		}
	}
}

// Validate returns nil when sql is a single read-only SELECT over plain
// tables, without subqueries or unconstrained joins, and with a literal
// top-level LIMIT. Otherwise it returns a *domain.SQLViolation. Checks run in
// a fixed order so the same input always yields the same kind.
func Validate(sql string, opts ...Option) error {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	script, err := sqlast.ParseScript(sql)
	if err != nil {
		return domain.ErrSQLViolation(domain.SyntaxError, "%v", err)
	}

	sel, err := checkTopLevel(script.Stmts)
	if err != nil {
		return err
	}

	for _, check := range []func(*sqlast.SelectStmt) error{
		checkNestedDestructive,
		checkSubqueries,
		checkSources,
		o.checkTables,
		checkCrossJoins,
		checkLimit,
	} {
		if err := check(sel); err != nil {
			return err
		}
	}
	return nil
}

// checkTopLevel requires exactly one statement and that it is a SELECT.
// A destructive statement anywhere in the script outranks the other
// structural complaints.
func checkTopLevel(stmts []sqlast.Stmt) (*sqlast.SelectStmt, error) {
	for _, stmt := range stmts {
		if op := destructiveOp(stmt); op != "" {
			return nil, domain.ErrSQLViolation(domain.DestructiveOperation, "%s statement", op)
		}
	}
	if len(stmts) != 1 {
		return nil, domain.ErrSQLViolation(domain.NotSelectOnly, "%d statements; exactly one SELECT is allowed", len(stmts))
	}

	switch s := stmts[0].(type) {
	case *sqlast.SelectStmt:
		return s, nil
	case *sqlast.UtilityStmt:
		return nil, domain.ErrSQLViolation(domain.NotSelectOnly, "%s statement", s.Keyword)
	case *sqlast.WriteStmt, *sqlast.DDLStmt:
		// reported above
		return nil, domain.ErrSQLViolation(domain.DestructiveOperation, "destructive statement")
	default:
		return nil, domain.ErrSQLViolation(domain.NotSelectOnly, "unsupported statement")
	}
}

// destructiveOp names the write or schema operation stmt performs at its top
// level or inside a wrapping utility statement, or returns "".
func destructiveOp(stmt sqlast.Stmt) string {
	if sqlast.IsDestructive(stmt) {
		switch s := stmt.(type) {
		case *sqlast.WriteStmt:
			return string(s.Op)
		case *sqlast.DDLStmt:
			return string(s.Type)
		}
		return "destructive"
	}
	if u, ok := stmt.(*sqlast.UtilityStmt); ok {
		for _, inner := range u.Embedded {
			if op := destructiveOp(inner); op != "" {
				return u.Keyword + " " + op
			}
		}
	}
	return ""
}

// checkNestedDestructive rejects write or schema statements inside CTE
// bodies, derived tables, and subqueries.
func checkNestedDestructive(sel *sqlast.SelectStmt) error {
	var op string
	sqlast.Walk(sel, func(n sqlast.Node) bool {
		if op != "" {
			return false
		}
		if stmt, ok := n.(sqlast.Stmt); ok {
			op = destructiveOp(stmt)
		}
		return op == ""
	})
	if op != "" {
		return domain.ErrSQLViolation(domain.DestructiveOperation, "nested %s statement", op)
	}
	return nil
}

// checkSubqueries rejects CTEs, derived tables, and subquery expressions.
func checkSubqueries(sel *sqlast.SelectStmt) error {
	var found string
	sqlast.Walk(sel, func(n sqlast.Node) bool {
		if found != "" {
			return false
		}
		switch n := n.(type) {
		case *sqlast.WithClause:
			found = "WITH clause"
		case *sqlast.DerivedTable:
			found = "derived table in FROM"
		case *sqlast.SubqueryExpr:
			found = "scalar subquery"
		case *sqlast.ExistsExpr:
			found = "EXISTS subquery"
		case *sqlast.InExpr:
			if n.Query != nil {
				found = "IN subquery"
			}
		}
		return found == ""
	})
	if found != "" {
		return domain.ErrSQLViolation(domain.SubqueryNotAllowed, "%s", found)
	}
	return nil
}

// checkSources requires every FROM and JOIN source to be a plain table.
// Table functions such as read_csv reach outside the database.
func checkSources(sel *sqlast.SelectStmt) error {
	var bad sqlast.TableRef
	sqlast.Walk(sel, func(n sqlast.Node) bool {
		if bad != nil {
			return false
		}
		core, ok := n.(*sqlast.SelectCore)
		if !ok || core.From == nil {
			return true
		}
		refs := []sqlast.TableRef{core.From.Source}
		for _, j := range core.From.Joins {
			refs = append(refs, j.Right)
		}
		for _, ref := range refs {
			if _, ok := ref.(*sqlast.TableName); !ok {
				bad = ref
				break
			}
		}
		return bad == nil
	})
	switch ref := bad.(type) {
	case nil:
		return nil
	case *sqlast.FuncTable:
		name := "table function"
		if ref.Func != nil {
			name = ref.Func.Name
		}
		return domain.ErrSQLViolation(domain.NotSelectOnly, "table function %s in FROM", name)
	default:
		return domain.ErrSQLViolation(domain.NotSelectOnly, "unsupported FROM source %T", ref)
	}
}

// checkTables rejects reads of tables outside the allowed set.
func (o options) checkTables(sel *sqlast.SelectStmt) error {
	if o.tables == nil {
		return nil
	}
	for _, name := range sqlast.CollectTableNames(sel) {
		if !o.tables[strings.ToLower(name)] {
			return domain.ErrSQLViolation(domain.NotSelectOnly, "table %s is not part of the plan", name)
		}
	}
	return nil
}

// checkCrossJoins rejects CROSS JOIN, comma joins, and joins without a
// constraint.
func checkCrossJoins(sel *sqlast.SelectStmt) error {
	var bad *sqlast.Join
	sqlast.Walk(sel, func(n sqlast.Node) bool {
		if bad != nil {
			return false
		}
		if j, ok := n.(*sqlast.Join); ok && j.Unconstrained() {
			bad = j
		}
		return bad == nil
	})
	if bad == nil {
		return nil
	}
	switch {
	case bad.Natural:
		return domain.ErrSQLViolation(domain.CrossJoinNotAllowed, "NATURAL JOIN")
	case bad.Type == sqlast.JoinComma:
		return domain.ErrSQLViolation(domain.CrossJoinNotAllowed, "comma join")
	case bad.Type == sqlast.JoinCross:
		return domain.ErrSQLViolation(domain.CrossJoinNotAllowed, "CROSS JOIN")
	default:
		return domain.ErrSQLViolation(domain.CrossJoinNotAllowed, "%s JOIN without ON or USING", bad.Type)
	}
}

// checkLimit requires a non-negative integer literal LIMIT on the outermost
// query. For set operations the trailing LIMIT belongs to the whole result.
// LIMIT NULL and negative limits mean no limit on some engines.
func checkLimit(sel *sqlast.SelectStmt) error {
	body := sel.Body
	for body != nil && body.Right != nil {
		body = body.Right
	}
	if body == nil || body.Left == nil || body.Left.Limit == nil {
		return domain.ErrSQLViolation(domain.LimitRequired, "top-level LIMIT is missing")
	}
	lit, ok := body.Left.Limit.(*sqlast.Literal)
	if !ok || lit.Type != sqlast.LiteralNumber {
		return domain.ErrSQLViolation(domain.LimitRequired, "LIMIT must be an integer literal")
	}
	if _, err := strconv.ParseUint(lit.Value, 10, 64); err != nil {
		return domain.ErrSQLViolation(domain.LimitRequired, "LIMIT %s is not a non-negative integer", lit.Value)
	}
	return nil
}
