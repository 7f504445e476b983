package sqlast

import (
	"fmt"
	"strings"
)

// Expression parsing using Pratt parser (precedence climbing).

// parseExpression parses an expression using precedence climbing.
func (p *Parser) parseExpression() Expr {
	return p.parseExpressionWithPrecedence(PrecedenceNone + 1)
}

// parseExpressionWithPrecedence implements Pratt parsing.
func (p *Parser) parseExpressionWithPrecedence(minPrecedence int) Expr {
	left := p.parsePrefixExpr()
	if left == nil || p.failed() {
		return left
	}

	for {
		prec := p.getInfixPrecedence()
		if prec < minPrecedence {
			break
		}
		left = p.parseInfixExpr(left, prec)
		if left == nil || p.failed() {
			break
		}
	}

	return left
}

// parsePrefixExpr parses prefix expressions (unary operators and primary expressions).
func (p *Parser) parsePrefixExpr() Expr {
	switch p.token.Type {
	case TOKEN_NOT:
		if p.checkPeek(TOKEN_EXISTS) {
			p.nextToken()
			return p.parseExists(true)
		}
		p.nextToken()
		return &UnaryExpr{Op: TOKEN_NOT, Expr: p.parseExpressionWithPrecedence(PrecedenceNot)}

	case TOKEN_MINUS, TOKEN_PLUS:
		op := p.token.Type
		p.nextToken()
		return &UnaryExpr{Op: op, Expr: p.parseExpressionWithPrecedence(PrecedenceUnary)}

	case TOKEN_EXISTS:
		return p.parseExists(false)

	default:
		return p.parsePrimary()
	}
}

// getInfixPrecedence returns the precedence of the current token as an infix operator.
func (p *Parser) getInfixPrecedence() int {
	switch p.token.Type {
	case TOKEN_OR:
		return PrecedenceOr
	case TOKEN_AND:
		return PrecedenceAnd
	case TOKEN_EQ, TOKEN_NE, TOKEN_LT, TOKEN_GT, TOKEN_LE, TOKEN_GE:
		return PrecedenceComparison
	case TOKEN_IS, TOKEN_IN, TOKEN_BETWEEN, TOKEN_LIKE, TOKEN_ILIKE:
		return PrecedenceComparison
	case TOKEN_NOT:
		// NOT IN, NOT BETWEEN, NOT LIKE
		switch p.peek.Type {
		case TOKEN_IN, TOKEN_BETWEEN, TOKEN_LIKE, TOKEN_ILIKE:
			return PrecedenceComparison
		}
		return PrecedenceNone
	case TOKEN_PLUS, TOKEN_MINUS, TOKEN_DPIPE:
		return PrecedenceAddition
	case TOKEN_STAR, TOKEN_SLASH, TOKEN_MOD:
		return PrecedenceMultiply
	case TOKEN_DCOLON:
		return PrecedencePostfix
	default:
		return PrecedenceNone
	}
}

// parseInfixExpr parses an infix expression given the left operand.
func (p *Parser) parseInfixExpr(left Expr, prec int) Expr {
	switch p.token.Type {
	case TOKEN_IS:
		return p.parseIsExpr(left)

	case TOKEN_NOT:
		p.nextToken()
		return p.parseNegatable(left, true)

	case TOKEN_IN, TOKEN_BETWEEN, TOKEN_LIKE, TOKEN_ILIKE:
		return p.parseNegatable(left, false)

	case TOKEN_DCOLON:
		p.nextToken()
		return &CastExpr{Expr: left, TypeName: p.parseTypeName(false)}

	default:
		op := p.token.Type
		p.nextToken()
		right := p.parseExpressionWithPrecedence(prec + 1)
		if right == nil {
			return nil
		}
		return &BinaryExpr{Left: left, Op: op, Right: right}
	}
}

// parseIsExpr parses x IS [NOT] NULL.
func (p *Parser) parseIsExpr(left Expr) Expr {
	p.expect(TOKEN_IS)
	not := p.match(TOKEN_NOT)
	if !p.expect(TOKEN_NULL) {
		return nil
	}
	return &IsNullExpr{Expr: left, Not: not}
}

// parseNegatable parses the IN, BETWEEN, LIKE, and ILIKE forms that accept a
// leading NOT.
func (p *Parser) parseNegatable(left Expr, not bool) Expr {
	switch p.token.Type {
	case TOKEN_IN:
		p.nextToken()
		return p.parseInExpr(left, not)

	case TOKEN_BETWEEN:
		p.nextToken()
		low := p.parseExpressionWithPrecedence(PrecedenceAddition)
		p.expect(TOKEN_AND)
		high := p.parseExpressionWithPrecedence(PrecedenceAddition)
		return &BetweenExpr{Expr: left, Not: not, Low: low, High: high}

	case TOKEN_LIKE, TOKEN_ILIKE:
		ci := p.token.Type == TOKEN_ILIKE
		p.nextToken()
		pattern := p.parseExpressionWithPrecedence(PrecedenceAddition)
		return &LikeExpr{Expr: left, Not: not, CaseInsensitive: ci, Pattern: pattern}
	}
	p.addError(fmt.Sprintf("unexpected %s after NOT", p.describe(p.token)))
	return nil
}

// parseInExpr parses the parenthesised list or subquery of an IN expression.
func (p *Parser) parseInExpr(left Expr, not bool) Expr {
	if !p.expect(TOKEN_LPAREN) {
		return nil
	}
	in := &InExpr{Expr: left, Not: not}
	if isStatementStart(p.token) {
		in.Query = p.parseStatement()
	} else {
		in.List = p.parseExpressionList()
	}
	p.expect(TOKEN_RPAREN)
	return in
}

// parseExists parses [NOT] EXISTS (statement). A leading NOT has already
// been consumed.
func (p *Parser) parseExists(not bool) Expr {
	p.expect(TOKEN_EXISTS)
	if !p.expect(TOKEN_LPAREN) {
		return nil
	}
	e := &ExistsExpr{Not: not, Query: p.parseStatement()}
	p.expect(TOKEN_RPAREN)
	return e
}

// === Primary expressions ===

// typedLiteralPrefixes are the type names accepted before a string literal.
var typedLiteralPrefixes = map[string]bool{
	"date": true, "time": true, "timestamp": true, "timestamptz": true, "interval": true,
}

// parsePrimary parses primary expressions (literals, identifiers, function calls, etc.).
func (p *Parser) parsePrimary() Expr {
	switch p.token.Type {
	case TOKEN_NUMBER:
		lit := &Literal{Type: LiteralNumber, Value: p.token.Literal}
		p.nextToken()
		return lit

	case TOKEN_STRING:
		lit := &Literal{Type: LiteralString, Value: p.token.Literal}
		p.nextToken()
		return lit

	case TOKEN_TRUE, TOKEN_FALSE:
		lit := &Literal{Type: LiteralBool, Value: strings.ToUpper(p.token.Literal)}
		p.nextToken()
		return lit

	case TOKEN_NULL:
		p.nextToken()
		return &Literal{Type: LiteralNull, Value: "NULL"}

	case TOKEN_CASE:
		return p.parseCaseExpr()

	case TOKEN_CAST:
		return p.parseCastExpr()

	case TOKEN_LPAREN:
		return p.parseParenOrSubquery()

	case TOKEN_LEFT, TOKEN_RIGHT:
		// left(s, n) and right(s, n) are functions despite the join keywords.
		if p.checkPeek(TOKEN_LPAREN) {
			name := p.token.Literal
			p.nextToken()
			return p.parseFuncCall(name)
		}

	case TOKEN_IDENT:
		return p.parseIdentExpr()
	}

	p.addError(fmt.Sprintf("unexpected %s in expression", p.describe(p.token)))
	return nil
}

// parseIdentExpr parses typed literals, function calls, and column refs.
func (p *Parser) parseIdentExpr() Expr {
	if typedLiteralPrefixes[strings.ToLower(p.token.Literal)] && p.checkPeek(TOKEN_STRING) {
		lit := &TypedLiteral{TypeName: strings.ToUpper(p.token.Literal), Value: p.peek.Literal}
		p.nextToken()
		p.nextToken()
		return lit
	}

	parts := []string{p.token.Literal}
	p.nextToken()
	for p.check(TOKEN_DOT) {
		p.nextToken()
		if !p.check(TOKEN_IDENT) {
			p.addError(fmt.Sprintf("unexpected %s after '.'", p.describe(p.token)))
			return nil
		}
		parts = append(parts, p.token.Literal)
		p.nextToken()
	}

	if p.check(TOKEN_LPAREN) {
		return p.parseFuncCall(joinQualified(parts))
	}

	if len(parts) > 4 {
		p.addError(fmt.Sprintf("too many name parts in column reference (%d)", len(parts)))
		return nil
	}
	n := len(parts)
	return &ColumnRef{Table: joinQualified(parts[:n-1]), Column: parts[n-1]}
}

// parseFuncCall parses name(args...). The current token is the opening
// parenthesis.
func (p *Parser) parseFuncCall(name string) *FuncCall {
	fn := &FuncCall{Name: name}
	p.expect(TOKEN_LPAREN)

	if p.match(TOKEN_RPAREN) {
		return fn
	}
	if p.check(TOKEN_STAR) && p.checkPeek(TOKEN_RPAREN) {
		p.nextToken()
		p.nextToken()
		fn.Star = true
		return fn
	}
	if p.match(TOKEN_DISTINCT) {
		fn.Distinct = true
	} else {
		p.match(TOKEN_ALL)
	}

	fn.Args = p.parseExpressionList()
	p.expect(TOKEN_RPAREN)
	return fn
}

// parseParenOrSubquery parses (expr) or (statement).
func (p *Parser) parseParenOrSubquery() Expr {
	p.expect(TOKEN_LPAREN)
	if isStatementStart(p.token) {
		sub := &SubqueryExpr{Query: p.parseStatement()}
		p.expect(TOKEN_RPAREN)
		return sub
	}
	expr := p.parseExpression()
	p.expect(TOKEN_RPAREN)
	return &ParenExpr{Expr: expr}
}

// parseCaseExpr parses CASE [operand] WHEN ... THEN ... [ELSE ...] END.
func (p *Parser) parseCaseExpr() Expr {
	p.expect(TOKEN_CASE)
	c := &CaseExpr{}

	if !p.check(TOKEN_WHEN) {
		c.Operand = p.parseExpression()
	}

	for p.match(TOKEN_WHEN) {
		when := WhenClause{Condition: p.parseExpression()}
		p.expect(TOKEN_THEN)
		when.Result = p.parseExpression()
		c.Whens = append(c.Whens, when)
		if p.failed() {
			return nil
		}
	}
	if len(c.Whens) == 0 {
		p.addError("CASE requires at least one WHEN")
		return nil
	}

	if p.match(TOKEN_ELSE) {
		c.Else = p.parseExpression()
	}
	p.expect(TOKEN_END)
	return c
}

// parseCastExpr parses CAST(expr AS type).
func (p *Parser) parseCastExpr() Expr {
	p.expect(TOKEN_CAST)
	p.expect(TOKEN_LPAREN)
	expr := p.parseExpression()
	p.expect(TOKEN_AS)
	typ := p.parseTypeName(true)
	p.expect(TOKEN_RPAREN)
	return &CastExpr{Expr: expr, TypeName: typ}
}

// parseTypeName parses a type name with optional parameters, e.g.
// DECIMAL(18, 2). Multi-word names such as DOUBLE PRECISION are accepted
// when multiword is set.
func (p *Parser) parseTypeName(multiword bool) string {
	if !p.check(TOKEN_IDENT) {
		p.addError(fmt.Sprintf("expected type name, got %s", p.describe(p.token)))
		return ""
	}
	words := []string{strings.ToUpper(p.token.Literal)}
	p.nextToken()
	for multiword && p.check(TOKEN_IDENT) {
		words = append(words, strings.ToUpper(p.token.Literal))
		p.nextToken()
	}
	name := strings.Join(words, " ")

	if p.match(TOKEN_LPAREN) {
		var params []string
		for {
			if !p.check(TOKEN_NUMBER) {
				p.addError("expected numeric type parameter")
				return name
			}
			params = append(params, p.token.Literal)
			p.nextToken()
			if !p.match(TOKEN_COMMA) {
				break
			}
		}
		p.expect(TOKEN_RPAREN)
		name += "(" + strings.Join(params, ", ") + ")"
	}
	return name
}

func joinQualified(parts []string) string {
	return strings.Join(parts, ".")
}
