package sqlast

import "strings"

// Statement parsing: SELECT bodies and the raw write, schema, and utility
// statements.

// parseSelectStatement parses a complete SELECT statement (WITH ... SELECT ...).
func (p *Parser) parseSelectStatement() *SelectStmt {
	stmt := &SelectStmt{}

	if p.check(TOKEN_WITH) {
		stmt.With = p.parseWithClause()
		if p.failed() {
			return stmt
		}
	}

	stmt.Body = p.parseSelectBody()
	return stmt
}

// parseWithClause parses a WITH clause with CTEs.
func (p *Parser) parseWithClause() *WithClause {
	p.expect(TOKEN_WITH)
	with := &WithClause{}

	if p.match(TOKEN_RECURSIVE) {
		with.Recursive = true
	}

	for {
		with.CTEs = append(with.CTEs, p.parseCTE())
		if p.failed() || !p.match(TOKEN_COMMA) {
			break
		}
	}

	return with
}

// parseCTE parses a single CTE. The body may be any parenthesised statement.
func (p *Parser) parseCTE() *CTE {
	cte := &CTE{}

	if !p.check(TOKEN_IDENT) {
		p.addError("expected CTE name")
		return cte
	}
	cte.Name = p.token.Literal
	p.nextToken()

	// Optional column list: cte(col1, col2, ...)
	if p.match(TOKEN_LPAREN) {
		p.parseIdentList()
		p.expect(TOKEN_RPAREN)
	}

	p.expect(TOKEN_AS)

	// Optional MATERIALIZED / NOT MATERIALIZED hint
	if !p.matchSoftKeyword("MATERIALIZED") && p.check(TOKEN_NOT) &&
		p.peek.Type == TOKEN_IDENT && strings.EqualFold(p.peek.Literal, "MATERIALIZED") {
		p.nextToken()
		p.nextToken()
	}

	if !p.expect(TOKEN_LPAREN) {
		return cte
	}
	cte.Stmt = p.parseStatement()
	p.expect(TOKEN_RPAREN)

	return cte
}

// parseSelectBody parses a SELECT body with possible set operations.
func (p *Parser) parseSelectBody() *SelectBody {
	body := &SelectBody{}
	body.Left = p.parseSelectCore()
	if p.failed() {
		return body
	}

	switch p.token.Type {
	case TOKEN_UNION:
		p.nextToken()
		if p.match(TOKEN_ALL) {
			body.Op = SetOpUnionAll
		} else {
			body.Op = SetOpUnion
			p.match(TOKEN_DISTINCT)
		}
	case TOKEN_INTERSECT:
		p.nextToken()
		body.Op = SetOpIntersect
		p.match(TOKEN_ALL)
	case TOKEN_EXCEPT:
		p.nextToken()
		body.Op = SetOpExcept
		p.match(TOKEN_ALL)
	default:
		return body
	}

	body.Right = p.parseSelectBody()
	return body
}

// parseSelectCore parses a single SELECT clause with all optional clauses.
func (p *Parser) parseSelectCore() *SelectCore {
	sc := &SelectCore{}
	if !p.expect(TOKEN_SELECT) {
		return sc
	}

	if p.match(TOKEN_DISTINCT) {
		sc.Distinct = true
	} else {
		p.match(TOKEN_ALL)
	}

	sc.Columns = p.parseSelectList()

	if p.match(TOKEN_FROM) {
		sc.From = p.parseFromClause()
	}

	p.parseClauses(sc)
	return sc
}

// parseClauses parses the optional trailing clauses in their fixed order.
func (p *Parser) parseClauses(sc *SelectCore) {
	if p.failed() {
		return
	}

	if p.match(TOKEN_WHERE) {
		sc.Where = p.parseExpression()
	}

	if p.check(TOKEN_GROUP) {
		p.nextToken()
		p.expect(TOKEN_BY)
		sc.GroupBy = p.parseExpressionList()
	}

	if p.match(TOKEN_HAVING) {
		sc.Having = p.parseExpression()
	}

	if p.check(TOKEN_ORDER) {
		p.nextToken()
		p.expect(TOKEN_BY)
		sc.OrderBy = p.parseOrderByList()
	}

	if p.match(TOKEN_LIMIT) {
		sc.Limit = p.parseExpression()
	}

	if p.match(TOKEN_OFFSET) {
		sc.Offset = p.parseExpression()
	}
}

// parseSelectList parses the list of SELECT items.
func (p *Parser) parseSelectList() []SelectItem {
	var items []SelectItem
	for {
		items = append(items, p.parseSelectItem())
		if p.failed() || !p.match(TOKEN_COMMA) {
			break
		}
	}
	return items
}

// parseSelectItem parses a single SELECT item.
func (p *Parser) parseSelectItem() SelectItem {
	item := SelectItem{}

	if p.match(TOKEN_STAR) {
		item.Star = true
		return item
	}

	// table.* pattern using 3-token lookahead
	if p.check(TOKEN_IDENT) && p.checkPeek(TOKEN_DOT) && p.checkPeek2(TOKEN_STAR) {
		item.TableStar = p.token.Literal
		p.nextToken() // consume ident
		p.nextToken() // consume DOT
		p.nextToken() // consume STAR
		return item
	}

	item.Expr = p.parseExpression()
	item.Alias = p.parseOptionalAlias()
	return item
}

// parseOptionalAlias parses [AS] alias.
func (p *Parser) parseOptionalAlias() string {
	if p.match(TOKEN_AS) {
		if !p.check(TOKEN_IDENT) {
			p.addError("expected alias after AS")
			return ""
		}
		alias := p.token.Literal
		p.nextToken()
		return alias
	}
	if p.check(TOKEN_IDENT) {
		alias := p.token.Literal
		p.nextToken()
		return alias
	}
	return ""
}

// parseOrderByList parses ORDER BY items.
func (p *Parser) parseOrderByList() []OrderByItem {
	var items []OrderByItem
	for {
		item := OrderByItem{Expr: p.parseExpression()}

		if p.match(TOKEN_DESC) {
			item.Desc = true
		} else {
			p.match(TOKEN_ASC)
		}

		if p.matchSoftKeyword("NULLS") {
			first := true
			switch {
			case p.matchSoftKeyword("FIRST"):
			case p.matchSoftKeyword("LAST"):
				first = false
			default:
				p.addError("expected FIRST or LAST after NULLS")
			}
			item.NullsFirst = &first
		}

		items = append(items, item)
		if p.failed() || !p.match(TOKEN_COMMA) {
			break
		}
	}
	return items
}

// parseExpressionList parses a comma-separated list of expressions.
func (p *Parser) parseExpressionList() []Expr {
	var exprs []Expr
	for {
		exprs = append(exprs, p.parseExpression())
		if p.failed() || !p.match(TOKEN_COMMA) {
			break
		}
	}
	return exprs
}

// parseIdentList parses a comma-separated list of identifiers.
func (p *Parser) parseIdentList() []string {
	var names []string
	for {
		if !p.check(TOKEN_IDENT) {
			p.addError("expected identifier")
			return names
		}
		names = append(names, p.token.Literal)
		p.nextToken()
		if !p.match(TOKEN_COMMA) {
			break
		}
	}
	return names
}

// === Raw statements ===

// parseWriteStatement consumes an INSERT, UPDATE, DELETE, or MERGE.
func (p *Parser) parseWriteStatement(op WriteOp) *WriteStmt {
	raw, _ := p.consumeRaw(false)
	return &WriteStmt{Op: op, Raw: raw}
}

// parseDDLStatement consumes a CREATE, DROP, ALTER, or TRUNCATE.
func (p *Parser) parseDDLStatement(typ DDLType) *DDLStmt {
	raw, _ := p.consumeRaw(false)
	return &DDLStmt{Type: typ, Raw: raw}
}

// parseUtility consumes a utility statement, keeping any write or schema
// statements it wraps.
func (p *Parser) parseUtility() *UtilityStmt {
	keyword := strings.ToUpper(p.token.Literal)
	p.nextToken()
	rest, embedded := p.consumeRaw(true)
	raw := keyword
	if rest != "" {
		raw += " " + rest
	}
	return &UtilityStmt{Keyword: keyword, Raw: raw, Embedded: embedded}
}
