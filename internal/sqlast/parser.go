package sqlast

import (
	"fmt"
	"strings"
)

// Parser parses SQL into an AST.
type Parser struct {
	lexer  *Lexer
	input  string // original input for raw extraction
	token  Token  // current token
	peek   Token  // lookahead token
	peek2  Token  // second lookahead token
	errors []error
}

// NewParser creates a new parser for the given SQL input.
func NewParser(sql string) *Parser {
	p := &Parser{
		lexer: NewLexer(sql),
		input: sql,
	}
	// Initialize three-token lookahead
	p.nextToken()
	p.nextToken()
	p.nextToken()
	return p
}

// ParseScript parses one or more semicolon-separated statements.
func ParseScript(sql string) (*Script, error) {
	sql = strings.TrimSpace(sql)
	if sql == "" {
		return nil, fmt.Errorf("empty SQL")
	}

	p := NewParser(sql)
	script := &Script{}
	for {
		for p.match(TOKEN_SEMICOLON) {
		}
		if p.check(TOKEN_EOF) {
			break
		}
		stmt := p.parseStatement()
		if len(p.errors) > 0 {
			return nil, p.errors[0]
		}
		script.Stmts = append(script.Stmts, stmt)
		if !p.check(TOKEN_SEMICOLON) && !p.check(TOKEN_EOF) {
			return nil, p.errorf("unexpected %s after end of statement", p.describe(p.token))
		}
	}
	if len(script.Stmts) == 0 {
		return nil, fmt.Errorf("empty SQL")
	}
	return script, nil
}

// Parse parses exactly one statement. Multi-statement input is an error.
func Parse(sql string) (Stmt, error) {
	script, err := ParseScript(sql)
	if err != nil {
		return nil, err
	}
	if len(script.Stmts) != 1 {
		return nil, fmt.Errorf("multi-statement queries are not allowed")
	}
	return script.Stmts[0], nil
}

// ParseExpr parses a standalone expression from SQL text.
func ParseExpr(sql string) (Expr, error) {
	sql = strings.TrimSpace(sql)
	if sql == "" {
		return nil, fmt.Errorf("empty expression")
	}

	p := NewParser(sql)
	expr := p.parseExpression()
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	if p.token.Type != TOKEN_EOF {
		return nil, fmt.Errorf("unexpected token after expression: %s", p.token.Literal)
	}
	return expr, nil
}

// utilityKeywords are statement-leading words that are neither queries nor
// recognised writes. They are matched as soft keywords so they stay usable
// as column names.
var utilityKeywords = map[string]bool{
	"analyze": true, "attach": true, "begin": true, "call": true,
	"checkpoint": true, "comment": true, "commit": true, "copy": true,
	"deallocate": true, "describe": true, "detach": true, "execute": true,
	"explain": true, "export": true, "grant": true, "import": true,
	"install": true, "load": true, "lock": true, "pragma": true,
	"prepare": true, "reset": true, "revoke": true, "rollback": true,
	"set": true, "show": true, "summarize": true, "use": true, "vacuum": true,
}

// parseStatement dispatches to the appropriate statement parser based on the
// first token.
func (p *Parser) parseStatement() Stmt {
	switch p.token.Type {
	case TOKEN_SELECT, TOKEN_WITH:
		return p.parseSelectStatement()
	case TOKEN_LPAREN:
		p.nextToken()
		stmt := p.parseStatement()
		p.expect(TOKEN_RPAREN)
		return stmt

	case TOKEN_INSERT:
		return p.parseWriteStatement(WriteInsert)
	case TOKEN_UPDATE:
		return p.parseWriteStatement(WriteUpdate)
	case TOKEN_DELETE:
		return p.parseWriteStatement(WriteDelete)
	case TOKEN_MERGE:
		return p.parseWriteStatement(WriteMerge)

	case TOKEN_CREATE:
		return p.parseDDLStatement(DDLCreate)
	case TOKEN_DROP:
		return p.parseDDLStatement(DDLDrop)
	case TOKEN_ALTER:
		return p.parseDDLStatement(DDLAlter)
	case TOKEN_TRUNCATE:
		return p.parseDDLStatement(DDLTruncate)

	case TOKEN_VALUES:
		return p.parseUtility()
	case TOKEN_IDENT:
		if utilityKeywords[strings.ToLower(p.token.Literal)] {
			return p.parseUtility()
		}
	}
	p.addError(fmt.Sprintf("unexpected %s at start of statement", p.describe(p.token)))
	return nil
}

// === Token Helpers ===

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.token = p.peek
	p.peek = p.peek2
	p.peek2 = p.lexer.NextToken()
}

// check returns true if the current token is of the given type.
func (p *Parser) check(t TokenType) bool {
	return p.token.Type == t
}

// checkPeek returns true if the peek token is of the given type.
func (p *Parser) checkPeek(t TokenType) bool {
	return p.peek.Type == t
}

// checkPeek2 returns true if the peek2 token is of the given type.
func (p *Parser) checkPeek2(t TokenType) bool {
	return p.peek2.Type == t
}

// match consumes the current token if it matches and returns true.
func (p *Parser) match(t TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	return false
}

// matchSoftKeyword consumes the current token if it's an identifier matching
// the given soft keyword (case-insensitive).
func (p *Parser) matchSoftKeyword(keyword string) bool {
	if p.check(TOKEN_IDENT) && strings.EqualFold(p.token.Literal, keyword) {
		p.nextToken()
		return true
	}
	return false
}

// expect consumes the current token if it matches, otherwise adds an error.
func (p *Parser) expect(t TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	p.addError(fmt.Sprintf("unexpected %s, expected %s", p.describe(p.token), t))
	return false
}

// addError adds a parse error. Only the first error is reported, so the
// parser never needs to recover.
func (p *Parser) addError(msg string) {
	p.errors = append(p.errors, fmt.Errorf("parse error at offset %d: %s", p.token.Pos, msg))
}

func (p *Parser) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("parse error at offset %d: %s", p.token.Pos, fmt.Sprintf(format, args...))
}

func (p *Parser) failed() bool { return len(p.errors) > 0 }

// describe renders a token for error messages.
func (p *Parser) describe(tok Token) string {
	switch tok.Type {
	case TOKEN_EOF:
		return "end of input"
	case TOKEN_ILLEGAL:
		return "illegal input " + fmt.Sprintf("%q", tok.Literal)
	case TOKEN_IDENT, TOKEN_NUMBER:
		return fmt.Sprintf("%s %q", tok.Type, tok.Literal)
	case TOKEN_STRING:
		return "string literal"
	default:
		return fmt.Sprintf("%q", tok.Type.String())
	}
}

// isDestructiveStart reports whether tok begins a write or schema statement.
func isDestructiveStart(tok Token) bool {
	switch tok.Type {
	case TOKEN_INSERT, TOKEN_UPDATE, TOKEN_DELETE, TOKEN_MERGE,
		TOKEN_CREATE, TOKEN_DROP, TOKEN_ALTER, TOKEN_TRUNCATE:
		return true
	}
	return false
}

// isStatementStart reports whether tok may begin a parenthesised statement.
func isStatementStart(tok Token) bool {
	return tok.Type == TOKEN_SELECT || tok.Type == TOKEN_WITH || isDestructiveStart(tok)
}

// consumeRaw consumes tokens up to the end of the current statement: a
// semicolon, end of input, or a closing parenthesis that does not belong to
// the statement. When collect is set, write and schema statements found in
// the skipped text are parsed and returned.
func (p *Parser) consumeRaw(collect bool) (string, []Stmt) {
	start := p.token.Pos
	var embedded []Stmt
	depth := 0
loop:
	for {
		switch p.token.Type {
		case TOKEN_EOF, TOKEN_SEMICOLON:
			break loop
		case TOKEN_ILLEGAL:
			p.addError(p.describe(p.token))
			break loop
		case TOKEN_LPAREN:
			depth++
		case TOKEN_RPAREN:
			if depth == 0 {
				break loop
			}
			depth--
		default:
			if collect && isDestructiveStart(p.token) {
				if stmt := p.parseStatement(); stmt != nil {
					embedded = append(embedded, stmt)
				}
				if p.failed() {
					break loop
				}
				continue
			}
		}
		p.nextToken()
	}
	end := p.token.Pos
	if end < start {
		end = start
	}
	return strings.TrimSpace(p.input[start:end]), embedded
}
