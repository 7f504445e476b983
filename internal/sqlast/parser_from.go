package sqlast

import "fmt"

// FROM clause parsing: table references, derived tables, function tables,
// and JOINs.

// parseFromClause parses the FROM clause.
func (p *Parser) parseFromClause() *FromClause {
	from := &FromClause{}
	from.Source = p.parseTableRef()

	for !p.failed() {
		join := p.parseJoin()
		if join == nil {
			break
		}
		from.Joins = append(from.Joins, join)
	}

	return from
}

// parseTableRef parses a table reference in FROM.
func (p *Parser) parseTableRef() TableRef {
	if p.check(TOKEN_LPAREN) {
		return p.parseDerivedTable()
	}
	return p.parseTableNameOrFunc()
}

// parseDerivedTable parses (statement) [AS] alias.
func (p *Parser) parseDerivedTable() TableRef {
	p.expect(TOKEN_LPAREN)
	if !isStatementStart(p.token) && !p.check(TOKEN_LPAREN) {
		p.addError(fmt.Sprintf("unexpected %s, expected subquery", p.describe(p.token)))
		return &DerivedTable{}
	}
	dt := &DerivedTable{Stmt: p.parseStatement()}
	p.expect(TOKEN_RPAREN)
	dt.Alias = p.parseOptionalAlias()
	return dt
}

// parseTableNameOrFunc parses a table name or table-valued function.
func (p *Parser) parseTableNameOrFunc() TableRef {
	if !p.check(TOKEN_IDENT) {
		p.addError(fmt.Sprintf("expected table name, got %s", p.describe(p.token)))
		return &TableName{}
	}

	// Parse potentially qualified name: catalog.schema.table
	parts := []string{p.token.Literal}
	p.nextToken()
	for p.match(TOKEN_DOT) {
		if !p.check(TOKEN_IDENT) {
			p.addError("expected identifier after '.'")
			return &TableName{}
		}
		parts = append(parts, p.token.Literal)
		p.nextToken()
	}
	if len(parts) > 3 {
		p.addError(fmt.Sprintf("too many name parts in table reference (%d)", len(parts)))
		return &TableName{}
	}

	if p.check(TOKEN_LPAREN) {
		fn := p.parseFuncCall(joinQualified(parts))
		return &FuncTable{Func: fn, Alias: p.parseOptionalAlias()}
	}

	table := &TableName{}
	switch len(parts) {
	case 1:
		table.Name = parts[0]
	case 2:
		table.Schema, table.Name = parts[0], parts[1]
	case 3:
		table.Catalog, table.Schema, table.Name = parts[0], parts[1], parts[2]
	}
	table.Alias = p.parseOptionalAlias()
	return table
}

// parseJoin parses a JOIN clause. Returns nil if there is no join at the
// current position.
func (p *Parser) parseJoin() *Join {
	if p.match(TOKEN_COMMA) {
		return &Join{Type: JoinComma, Right: p.parseTableRef()}
	}

	join := &Join{}
	if p.match(TOKEN_NATURAL) {
		join.Natural = true
	}

	switch p.token.Type {
	case TOKEN_JOIN:
		join.Type = JoinInner
	case TOKEN_INNER:
		join.Type = JoinInner
		p.nextToken()
	case TOKEN_LEFT:
		join.Type = JoinLeft
		p.nextToken()
		p.match(TOKEN_OUTER)
	case TOKEN_RIGHT:
		join.Type = JoinRight
		p.nextToken()
		p.match(TOKEN_OUTER)
	case TOKEN_FULL:
		join.Type = JoinFull
		p.nextToken()
		p.match(TOKEN_OUTER)
	case TOKEN_CROSS:
		join.Type = JoinCross
		p.nextToken()
	default:
		if join.Natural {
			p.addError("expected JOIN after NATURAL")
		}
		return nil
	}

	if !p.expect(TOKEN_JOIN) {
		return nil
	}
	join.Right = p.parseTableRef()
	if join.Type == JoinCross || join.Natural {
		return join
	}

	if p.match(TOKEN_ON) {
		join.Condition = p.parseExpression()
	} else if p.match(TOKEN_USING) {
		p.expect(TOKEN_LPAREN)
		join.Using = p.parseIdentList()
		p.expect(TOKEN_RPAREN)
	}
	return join
}
