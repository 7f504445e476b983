package sqlast

import (
	"strings"
)

// Format formats a statement AST back to a SQL string.
// The output is flat (no pretty-printing). Identifiers are quoted only when
// they are not plain lowercase names or collide with a keyword.
func Format(stmt Stmt) string {
	f := &formatter{}
	f.formatStmt(stmt)
	return strings.TrimSpace(f.buf.String())
}

// FormatExpr formats an expression AST back to a SQL string.
func FormatExpr(expr Expr) string {
	f := &formatter{}
	f.formatExpr(expr)
	return strings.TrimSpace(f.buf.String())
}

// formatter is a simple SQL string builder. No indentation or pretty-printing.
type formatter struct {
	buf strings.Builder
}

func (f *formatter) write(s string) {
	f.buf.WriteString(s)
}

func (f *formatter) space() {
	f.buf.WriteByte(' ')
}

// QuoteIdent double-quotes an identifier when needed.
// Internal double quotes are escaped by doubling.
func QuoteIdent(s string) string {
	if isPlainIdent(s) && !IsKeyword(s) {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func isPlainIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c == '_':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// QuoteString renders s as a single-quoted SQL string literal.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// writeIdent writes a possibly quoted identifier.
func (f *formatter) writeIdent(s string) {
	f.write(QuoteIdent(s))
}

// writeQualified writes a dotted name, quoting each part as needed.
func (f *formatter) writeQualified(name string) {
	for i, part := range strings.Split(name, ".") {
		if i > 0 {
			f.write(".")
		}
		f.writeIdent(part)
	}
}

// commaSep writes items separated by ", ".
func (f *formatter) commaSep(n int, fn func(i int)) {
	for i := 0; i < n; i++ {
		if i > 0 {
			f.write(", ")
		}
		fn(i)
	}
}

// === Statements ===

func (f *formatter) formatStmt(stmt Stmt) {
	switch s := stmt.(type) {
	case *SelectStmt:
		f.formatSelect(s)
	case *WriteStmt:
		f.write(s.Raw)
	case *DDLStmt:
		f.write(s.Raw)
	case *UtilityStmt:
		f.write(s.Raw)
	}
}

func (f *formatter) formatSelect(s *SelectStmt) {
	if s.With != nil {
		f.write("WITH ")
		if s.With.Recursive {
			f.write("RECURSIVE ")
		}
		f.commaSep(len(s.With.CTEs), func(i int) {
			cte := s.With.CTEs[i]
			f.writeIdent(cte.Name)
			f.write(" AS (")
			f.formatStmt(cte.Stmt)
			f.write(")")
		})
		f.space()
	}
	for body := s.Body; body != nil; body = body.Right {
		f.formatCore(body.Left)
		if body.Op == SetOpNone {
			break
		}
		f.space()
		f.write(string(body.Op))
		f.space()
	}
}

func (f *formatter) formatCore(sc *SelectCore) {
	f.write("SELECT ")
	if sc.Distinct {
		f.write("DISTINCT ")
	}
	f.commaSep(len(sc.Columns), func(i int) {
		item := sc.Columns[i]
		switch {
		case item.Star:
			f.write("*")
		case item.TableStar != "":
			f.writeIdent(item.TableStar)
			f.write(".*")
		default:
			f.formatExpr(item.Expr)
			if item.Alias != "" {
				f.write(" AS ")
				f.writeIdent(item.Alias)
			}
		}
	})

	if sc.From != nil {
		f.write(" FROM ")
		f.formatTableRef(sc.From.Source)
		for _, j := range sc.From.Joins {
			f.formatJoin(j)
		}
	}
	if sc.Where != nil {
		f.write(" WHERE ")
		f.formatExpr(sc.Where)
	}
	if len(sc.GroupBy) > 0 {
		f.write(" GROUP BY ")
		f.commaSep(len(sc.GroupBy), func(i int) { f.formatExpr(sc.GroupBy[i]) })
	}
	if sc.Having != nil {
		f.write(" HAVING ")
		f.formatExpr(sc.Having)
	}
	if len(sc.OrderBy) > 0 {
		f.write(" ORDER BY ")
		f.commaSep(len(sc.OrderBy), func(i int) {
			o := sc.OrderBy[i]
			f.formatExpr(o.Expr)
			if o.Desc {
				f.write(" DESC")
			}
			if o.NullsFirst != nil {
				if *o.NullsFirst {
					f.write(" NULLS FIRST")
				} else {
					f.write(" NULLS LAST")
				}
			}
		})
	}
	if sc.Limit != nil {
		f.write(" LIMIT ")
		f.formatExpr(sc.Limit)
	}
	if sc.Offset != nil {
		f.write(" OFFSET ")
		f.formatExpr(sc.Offset)
	}
}

func (f *formatter) formatJoin(j *Join) {
	if j.Type == JoinComma {
		f.write(", ")
		f.formatTableRef(j.Right)
		return
	}
	f.space()
	if j.Natural {
		f.write("NATURAL ")
	}
	switch j.Type {
	case JoinInner:
		f.write("JOIN ")
	default:
		f.write(string(j.Type))
		f.write(" JOIN ")
	}
	f.formatTableRef(j.Right)
	if j.Condition != nil {
		f.write(" ON ")
		f.formatExpr(j.Condition)
	} else if len(j.Using) > 0 {
		f.write(" USING (")
		f.commaSep(len(j.Using), func(i int) { f.writeIdent(j.Using[i]) })
		f.write(")")
	}
}

func (f *formatter) formatTableRef(ref TableRef) {
	switch t := ref.(type) {
	case *TableName:
		if t.Catalog != "" {
			f.writeIdent(t.Catalog)
			f.write(".")
		}
		if t.Schema != "" {
			f.writeIdent(t.Schema)
			f.write(".")
		}
		f.writeIdent(t.Name)
		f.writeAlias(t.Alias)
	case *DerivedTable:
		f.write("(")
		f.formatStmt(t.Stmt)
		f.write(")")
		f.writeAlias(t.Alias)
	case *FuncTable:
		f.formatExpr(t.Func)
		f.writeAlias(t.Alias)
	}
}

func (f *formatter) writeAlias(alias string) {
	if alias != "" {
		f.write(" AS ")
		f.writeIdent(alias)
	}
}

// === Expressions ===

func (f *formatter) formatExpr(expr Expr) {
	switch e := expr.(type) {
	case *ColumnRef:
		if e.Table != "" {
			f.writeQualified(e.Table)
			f.write(".")
		}
		f.writeIdent(e.Column)

	case *Literal:
		if e.Type == LiteralString {
			f.write(QuoteString(e.Value))
		} else {
			f.write(e.Value)
		}

	case *TypedLiteral:
		f.write(e.TypeName)
		f.space()
		f.write(QuoteString(e.Value))

	case *BinaryExpr:
		prec := binaryPrecedence(e.Op)
		f.formatOperand(e.Left, prec, false)
		f.space()
		f.write(binaryOpString(e.Op))
		f.space()
		f.formatOperand(e.Right, prec, true)

	case *UnaryExpr:
		if e.Op == TOKEN_NOT {
			f.write("NOT ")
		} else {
			f.write(e.Op.String())
		}
		f.formatOperand(e.Expr, PrecedenceUnary, false)

	case *ParenExpr:
		f.write("(")
		f.formatExpr(e.Expr)
		f.write(")")

	case *FuncCall:
		f.write(e.Name)
		f.write("(")
		switch {
		case e.Star:
			f.write("*")
		default:
			if e.Distinct {
				f.write("DISTINCT ")
			}
			f.commaSep(len(e.Args), func(i int) { f.formatExpr(e.Args[i]) })
		}
		f.write(")")

	case *CaseExpr:
		f.write("CASE")
		if e.Operand != nil {
			f.space()
			f.formatExpr(e.Operand)
		}
		for _, w := range e.Whens {
			f.write(" WHEN ")
			f.formatExpr(w.Condition)
			f.write(" THEN ")
			f.formatExpr(w.Result)
		}
		if e.Else != nil {
			f.write(" ELSE ")
			f.formatExpr(e.Else)
		}
		f.write(" END")

	case *CastExpr:
		f.write("CAST(")
		f.formatExpr(e.Expr)
		f.write(" AS ")
		f.write(e.TypeName)
		f.write(")")

	case *IsNullExpr:
		f.formatOperand(e.Expr, PrecedenceComparison, false)
		if e.Not {
			f.write(" IS NOT NULL")
		} else {
			f.write(" IS NULL")
		}

	case *InExpr:
		f.formatOperand(e.Expr, PrecedenceComparison, false)
		f.writeNot(e.Not)
		f.write(" IN (")
		if e.Query != nil {
			f.formatStmt(e.Query)
		} else {
			f.commaSep(len(e.List), func(i int) { f.formatExpr(e.List[i]) })
		}
		f.write(")")

	case *BetweenExpr:
		f.formatOperand(e.Expr, PrecedenceComparison, false)
		f.writeNot(e.Not)
		f.write(" BETWEEN ")
		f.formatOperand(e.Low, PrecedenceComparison, true)
		f.write(" AND ")
		f.formatOperand(e.High, PrecedenceComparison, true)

	case *LikeExpr:
		f.formatOperand(e.Expr, PrecedenceComparison, false)
		f.writeNot(e.Not)
		if e.CaseInsensitive {
			f.write(" ILIKE ")
		} else {
			f.write(" LIKE ")
		}
		f.formatOperand(e.Pattern, PrecedenceComparison, true)

	case *ExistsExpr:
		if e.Not {
			f.write("NOT ")
		}
		f.write("EXISTS (")
		f.formatStmt(e.Query)
		f.write(")")

	case *SubqueryExpr:
		f.write("(")
		f.formatStmt(e.Query)
		f.write(")")
	}
}

func (f *formatter) writeNot(not bool) {
	if not {
		f.write(" NOT")
	}
}

// formatOperand writes an operand, parenthesising it when it binds more
// loosely than its parent operator.
func (f *formatter) formatOperand(e Expr, parent int, right bool) {
	prec := exprPrecedence(e)
	if prec < parent || (right && prec == parent) {
		f.write("(")
		f.formatExpr(e)
		f.write(")")
		return
	}
	f.formatExpr(e)
}

// exprPrecedence returns the binding strength of an expression when used as
// an operand. Atoms bind tightest.
func exprPrecedence(e Expr) int {
	switch e := e.(type) {
	case *BinaryExpr:
		return binaryPrecedence(e.Op)
	case *UnaryExpr:
		if e.Op == TOKEN_NOT {
			return PrecedenceNot
		}
		return PrecedenceUnary
	case *IsNullExpr, *InExpr, *BetweenExpr, *LikeExpr:
		return PrecedenceComparison
	default:
		return PrecedencePostfix + 1
	}
}

func binaryPrecedence(op TokenType) int {
	switch op {
	case TOKEN_OR:
		return PrecedenceOr
	case TOKEN_AND:
		return PrecedenceAnd
	case TOKEN_EQ, TOKEN_NE, TOKEN_LT, TOKEN_GT, TOKEN_LE, TOKEN_GE:
		return PrecedenceComparison
	case TOKEN_PLUS, TOKEN_MINUS, TOKEN_DPIPE:
		return PrecedenceAddition
	default:
		return PrecedenceMultiply
	}
}

func binaryOpString(op TokenType) string {
	if op == TOKEN_NE {
		return "<>"
	}
	return op.String()
}
