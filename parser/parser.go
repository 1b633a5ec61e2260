// Package parser implements the syntactic analyzer for the weave scripting
// language.
//
// The parser consumes a stream of tokens from the lexer and builds an
// Abstract Syntax Tree (AST) using a Pratt parser (precedence climbing) for
// expressions and recursive descent for statements.
//
// Key features:
//   - Statement grammar: assignment, control flow (if/elseif/else, for,
//     while, loop, break, continue), return, and bare expression statements.
//   - Precedence-based expression parsing, including table literals and
//     dotted member access.
//   - Error reporting with source position for syntax errors.
//
// The main entry point is [New], which creates a new [Parser], and
// [Parser.ParseProgram], which parses a complete script and returns its AST.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dr8co/weave/ast"
	"github.com/dr8co/weave/lexer"
	"github.com/dr8co/weave/token"
)

// Precedence levels for the Pratt expression parser, lowest to highest.
const (
	_ int = iota

	// Lowest is the default, non-binding precedence.
	Lowest

	// Logical is the precedence of `and`/`or`.
	Logical

	// Comparison is the precedence of `== != < <= > >=`.
	Comparison

	// Sum is the precedence of `+ -`.
	Sum

	// Product is the precedence of `* / %`.
	Product

	// Prefix is the precedence of unary `- !`.
	Prefix

	// Call is the precedence of a function call or a `.` member access.
	Call
)

var precedences = map[token.Type]int{
	token.AND:      Logical,
	token.OR:       Logical,
	token.EQ:       Comparison,
	token.NOT_EQ:   Comparison,
	token.LT:       Comparison,
	token.LTE:      Comparison,
	token.GT:       Comparison,
	token.GTE:      Comparison,
	token.PLUS:     Sum,
	token.MINUS:    Sum,
	token.ASTERISK: Product,
	token.SLASH:    Product,
	token.PERCENT:  Product,
	token.LPAREN:   Call,
	token.DOT:      Call,
}

var binaryKinds = map[token.Type]ast.BinaryOperationKind{
	token.PLUS:     ast.Add,
	token.MINUS:    ast.Subtract,
	token.ASTERISK: ast.Multiply,
	token.SLASH:    ast.Divide,
	token.PERCENT:  ast.Remainder,
	token.EQ:       ast.Equal,
	token.NOT_EQ:   ast.NotEqual,
	token.LT:       ast.LessThan,
	token.LTE:      ast.LessThanOrEqual,
	token.GT:       ast.GreaterThan,
	token.GTE:      ast.GreaterThanOrEqual,
	token.AND:      ast.LogicalAnd,
	token.OR:       ast.LogicalOr,
}

// ParseError is a syntax error carrying the source position it occurred at.
type ParseError struct {
	Line, Column int
	Message      string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message)
}

type (
	prefixParseFn func() ast.Expression
	infixParseFn  func(ast.Expression) ast.Expression
)

// Parser is a recursive-descent/Pratt parser for the weave language.
type Parser struct {
	l      *lexer.Lexer
	errors []*ParseError

	currentToken token.Token
	peekToken    token.Token

	prefixParseFns map[token.Type]prefixParseFn
	infixParseFns  map[token.Type]infixParseFn
}

// New creates a new Parser reading tokens from l.
func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l}

	p.prefixParseFns = make(map[token.Type]prefixParseFn)
	p.registerPrefix(token.IDENT, p.parseIdentifier)
	p.registerPrefix(token.INT, p.parseIntegerLiteral)
	p.registerPrefix(token.FLOAT, p.parseFloatLiteral)
	p.registerPrefix(token.STRING, p.parseStringLiteral)
	p.registerPrefix(token.TRUE, p.parseBoolean)
	p.registerPrefix(token.FALSE, p.parseBoolean)
	p.registerPrefix(token.NIL, p.parseNilLiteral)
	p.registerPrefix(token.BANG, p.parsePrefixExpression)
	p.registerPrefix(token.MINUS, p.parsePrefixExpression)
	p.registerPrefix(token.LPAREN, p.parseGroupedExpression)
	p.registerPrefix(token.FUNCTION, p.parseFunctionLiteral)
	p.registerPrefix(token.LBRACE, p.parseTableLiteral)

	p.infixParseFns = make(map[token.Type]infixParseFn)
	p.registerInfix(token.PLUS, p.parseBinaryExpression)
	p.registerInfix(token.MINUS, p.parseBinaryExpression)
	p.registerInfix(token.SLASH, p.parseBinaryExpression)
	p.registerInfix(token.ASTERISK, p.parseBinaryExpression)
	p.registerInfix(token.PERCENT, p.parseBinaryExpression)
	p.registerInfix(token.EQ, p.parseBinaryExpression)
	p.registerInfix(token.NOT_EQ, p.parseBinaryExpression)
	p.registerInfix(token.LT, p.parseBinaryExpression)
	p.registerInfix(token.LTE, p.parseBinaryExpression)
	p.registerInfix(token.GT, p.parseBinaryExpression)
	p.registerInfix(token.GTE, p.parseBinaryExpression)
	p.registerInfix(token.AND, p.parseBinaryExpression)
	p.registerInfix(token.OR, p.parseBinaryExpression)
	p.registerInfix(token.LPAREN, p.parseCallExpression)
	p.registerInfix(token.DOT, p.parseMemberExpression)

	// Read two tokens, so currentToken and peekToken are both set.
	p.nextToken()
	p.nextToken()

	return p
}

func (p *Parser) registerPrefix(t token.Type, fn prefixParseFn) {
	p.prefixParseFns[t] = fn
}

func (p *Parser) registerInfix(t token.Type, fn infixParseFn) {
	p.infixParseFns[t] = fn
}

// Errors returns the syntax errors collected while parsing.
func (p *Parser) Errors() []*ParseError {
	return p.errors
}

func (p *Parser) addErrorf(tok token.Token, format string, args ...any) {
	p.errors = append(p.errors, &ParseError{
		Line:    tok.Line,
		Column:  tok.Column,
		Message: fmt.Sprintf(format, args...),
	})
}

func (p *Parser) peekError(t token.Type) {
	p.addErrorf(p.peekToken, "expected next token to be %s, got %s instead", t, p.peekToken.Type)
}

func (p *Parser) noPrefixParseFnError(t token.Token) {
	p.addErrorf(t, "no prefix parse function for %s found", t.Type)
}

func (p *Parser) peekPrecedence() int {
	if pr, ok := precedences[p.peekToken.Type]; ok {
		return pr
	}
	return Lowest
}

func (p *Parser) curPrecedence() int {
	if pr, ok := precedences[p.currentToken.Type]; ok {
		return pr
	}
	return Lowest
}

func (p *Parser) nextToken() {
	p.currentToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) currentTokenIs(t token.Type) bool {
	return p.currentToken.Type == t
}

func (p *Parser) peekTokenIs(t token.Type) bool {
	return p.peekToken.Type == t
}

func (p *Parser) expectPeek(t token.Type) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.peekError(t)
	return false
}

// ParseProgram parses a complete script and returns its AST.
//
// Check [Parser.Errors] after calling this method to see if any parsing
// errors occurred.
func (p *Parser) ParseProgram() *ast.Program {
	program := &ast.Program{}

	for !p.currentTokenIs(token.EOF) {
		if stmt := p.parseStatement(); stmt != nil {
			program.Statements = append(program.Statements, stmt)
		}
		p.nextToken()
	}

	return program
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.currentToken.Type {
	case token.IF:
		return p.parseIfStatement()
	case token.FOR:
		return p.parseForStatement()
	case token.WHILE:
		return p.parseWhileStatement()
	case token.LOOP:
		return p.parseLoopStatement()
	case token.RETURN:
		return p.parseReturnStatement()
	case token.BREAK:
		return p.parseBreakStatement()
	case token.CONTINUE:
		return p.parseContinueStatement()
	case token.SEMICOLON:
		// An empty statement, such as the `;` after a block in `loop { ... };`.
		return nil
	default:
		return p.parseAssignmentOrExpressionStatement()
	}
}

// parseAssignmentOrExpressionStatement parses an expression, then checks
// whether it is followed by `=`: if so, and the expression names a valid
// lvalue (an identifier or a single-level member access), it is reinterpreted
// as an assignment statement. Otherwise it stands alone as an expression
// statement.
func (p *Parser) parseAssignmentOrExpressionStatement() ast.Statement {
	tok := p.currentToken
	expr := p.parseExpression(Lowest)

	if p.peekTokenIs(token.ASSIGN) {
		switch target := expr.(type) {
		case *ast.Identifier:
			p.nextToken() // consume '='
			p.nextToken() // move to the value expression
			value := p.parseExpression(Lowest)
			stmt := &ast.Assignment{Token: tok, Name: target, Value: value}
			if p.peekTokenIs(token.SEMICOLON) {
				p.nextToken()
			}
			return stmt
		case *ast.MemberExpression:
			if ident, ok := target.Target.(*ast.Identifier); ok {
				p.nextToken()
				p.nextToken()
				value := p.parseExpression(Lowest)
				stmt := &ast.Assignment{Token: tok, Name: ident, Member: target.Member, Value: value}
				if p.peekTokenIs(token.SEMICOLON) {
					p.nextToken()
				}
				return stmt
			}
			p.addErrorf(tok, "invalid assignment target %s", expr.String())
		default:
			p.addErrorf(tok, "invalid assignment target %s", expr.String())
		}
	}

	stmt := &ast.ExpressionStatement{Token: tok, Expression: expr}
	if p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
	}
	return stmt
}

// parseSimpleAssignment parses `identifier "=" expression` with the current
// token already positioned on the identifier, leaving the current token on
// the last token of the value expression. Used by for-loop init/increment
// clauses, which supply their own surrounding semicolons.
func (p *Parser) parseSimpleAssignment() *ast.Assignment {
	tok := p.currentToken
	if !p.currentTokenIs(token.IDENT) {
		p.addErrorf(tok, "expected identifier, got %s instead", tok.Type)
		return nil
	}
	name := &ast.Identifier{Token: tok, Value: tok.Literal}
	if !p.expectPeek(token.ASSIGN) {
		return nil
	}
	p.nextToken()
	value := p.parseExpression(Lowest)
	return &ast.Assignment{Token: tok, Name: name, Value: value}
}

func (p *Parser) parseReturnStatement() *ast.ReturnStatement {
	stmt := &ast.ReturnStatement{Token: p.currentToken}

	if p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
		return stmt
	}

	p.nextToken()
	stmt.Value = p.parseExpression(Lowest)

	if p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
	}
	return stmt
}

func (p *Parser) parseBreakStatement() *ast.BreakStatement {
	stmt := &ast.BreakStatement{Token: p.currentToken}
	if p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
	}
	return stmt
}

func (p *Parser) parseContinueStatement() *ast.ContinueStatement {
	stmt := &ast.ContinueStatement{Token: p.currentToken}
	if p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
	}
	return stmt
}

// parseIfStatement parses `if`/`elseif`, assuming the current token is
// token.IF or token.ELSEIF. An `elseif` chain desugars into a nested
// IfStatement wrapped in a one-statement BlockStatement, so the translator
// needs no special-case handling for it.
func (p *Parser) parseIfStatement() *ast.IfStatement {
	tok := p.currentToken
	p.nextToken()
	condition := p.parseExpression(Lowest)

	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	body := p.parseBlockStatement()

	stmt := &ast.IfStatement{Token: tok, Condition: condition, Body: body}

	switch {
	case p.peekTokenIs(token.ELSEIF):
		p.nextToken()
		nested := p.parseIfStatement()
		if nested != nil {
			stmt.Else = &ast.BlockStatement{Token: nested.Token, Statements: []ast.Statement{nested}}
		}
	case p.peekTokenIs(token.ELSE):
		p.nextToken()
		if !p.expectPeek(token.LBRACE) {
			return stmt
		}
		stmt.Else = p.parseBlockStatement()
	}

	return stmt
}

func (p *Parser) parseForStatement() *ast.ForStatement {
	tok := p.currentToken
	stmt := &ast.ForStatement{Token: tok}
	p.nextToken()

	if !p.currentTokenIs(token.SEMICOLON) {
		stmt.Init = p.parseSimpleAssignment()
		if !p.expectPeek(token.SEMICOLON) {
			return stmt
		}
	}
	p.nextToken()

	if !p.currentTokenIs(token.SEMICOLON) {
		stmt.Condition = p.parseExpression(Lowest)
		if !p.expectPeek(token.SEMICOLON) {
			return stmt
		}
	}
	p.nextToken()

	if !p.currentTokenIs(token.LBRACE) {
		stmt.Increment = p.parseSimpleAssignment()
		if !p.expectPeek(token.LBRACE) {
			return stmt
		}
	}

	stmt.Body = p.parseBlockStatement()
	return stmt
}

func (p *Parser) parseWhileStatement() *ast.WhileStatement {
	tok := p.currentToken
	p.nextToken()
	condition := p.parseExpression(Lowest)

	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	body := p.parseBlockStatement()
	return &ast.WhileStatement{Token: tok, Condition: condition, Body: body}
}

func (p *Parser) parseLoopStatement() *ast.LoopStatement {
	tok := p.currentToken
	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	body := p.parseBlockStatement()
	return &ast.LoopStatement{Token: tok, Body: body}
}

func (p *Parser) parseBlockStatement() *ast.BlockStatement {
	block := &ast.BlockStatement{Token: p.currentToken}

	p.nextToken()
	for !p.currentTokenIs(token.RBRACE) && !p.currentTokenIs(token.EOF) {
		if stmt := p.parseStatement(); stmt != nil {
			block.Statements = append(block.Statements, stmt)
		}
		p.nextToken()
	}
	return block
}

func (p *Parser) parseExpression(precedence int) ast.Expression {
	prefix := p.prefixParseFns[p.currentToken.Type]
	if prefix == nil {
		p.noPrefixParseFnError(p.currentToken)
		return nil
	}
	leftExp := prefix()

	for !p.peekTokenIs(token.SEMICOLON) && precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return leftExp
		}
		p.nextToken()
		leftExp = infix(leftExp)
	}

	return leftExp
}

func (p *Parser) parseIdentifier() ast.Expression {
	return &ast.Identifier{Token: p.currentToken, Value: p.currentToken.Literal}
}

func (p *Parser) parseIntegerLiteral() ast.Expression {
	tok := p.currentToken
	// Only a 0x/0b prefix selects another base: a leading zero is decimal.
	base := 10
	if len(tok.Literal) > 1 && tok.Literal[0] == '0' && strings.ContainsRune("xXbB", rune(tok.Literal[1])) {
		base = 0
	}
	value, err := strconv.ParseInt(tok.Literal, base, 64)
	if err != nil {
		p.addErrorf(tok, "could not parse %q as integer", tok.Literal)
		return nil
	}
	return &ast.NumberLiteral{Token: tok, Kind: ast.IntegerNumber, Int: value}
}

func (p *Parser) parseFloatLiteral() ast.Expression {
	tok := p.currentToken
	value, err := strconv.ParseFloat(tok.Literal, 64)
	if err != nil {
		p.addErrorf(tok, "could not parse %q as a float", tok.Literal)
		return nil
	}
	return &ast.NumberLiteral{Token: tok, Kind: ast.FloatNumber, Float: value}
}

func (p *Parser) parseStringLiteral() ast.Expression {
	return &ast.StringLiteral{Token: p.currentToken, Value: p.currentToken.Literal}
}

func (p *Parser) parseBoolean() ast.Expression {
	return &ast.BooleanLiteral{Token: p.currentToken, Value: p.currentTokenIs(token.TRUE)}
}

func (p *Parser) parseNilLiteral() ast.Expression {
	return &ast.NilLiteral{Token: p.currentToken}
}

func (p *Parser) parsePrefixExpression() ast.Expression {
	tok := p.currentToken
	var kind ast.UnaryOperationKind
	if tok.Type == token.BANG {
		kind = ast.Not
	} else {
		kind = ast.Negate
	}

	p.nextToken()
	operand := p.parseExpression(Prefix)

	return &ast.UnaryExpression{Token: tok, Operator: tok.Literal, Kind: kind, Operand: operand}
}

func (p *Parser) parseBinaryExpression(left ast.Expression) ast.Expression {
	tok := p.currentToken
	kind, ok := binaryKinds[tok.Type]
	if !ok {
		p.addErrorf(tok, "unknown binary operator %s", tok.Literal)
		return nil
	}

	precedence := p.curPrecedence()
	p.nextToken()
	right := p.parseExpression(precedence)

	return &ast.BinaryExpression{Token: tok, Left: left, Operator: tok.Literal, Kind: kind, Right: right}
}

func (p *Parser) parseGroupedExpression() ast.Expression {
	p.nextToken()
	exp := p.parseExpression(Lowest)

	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return exp
}

func (p *Parser) parseMemberExpression(left ast.Expression) ast.Expression {
	tok := p.currentToken
	if !p.expectPeek(token.IDENT) {
		return nil
	}
	return &ast.MemberExpression{Token: tok, Target: left, Member: p.currentToken.Literal}
}

func (p *Parser) parseTableLiteral() ast.Expression {
	tok := p.currentToken
	tbl := &ast.TableLiteral{Token: tok}

	if p.peekTokenIs(token.RBRACE) {
		p.nextToken()
		return tbl
	}
	p.nextToken()

	for {
		if !p.currentTokenIs(token.STRING) {
			p.addErrorf(p.currentToken, "expected string key in table literal, got %s", p.currentToken.Type)
			return nil
		}
		key := p.currentToken.Literal

		if !p.expectPeek(token.COLON) {
			return nil
		}
		p.nextToken()
		value := p.parseExpression(Lowest)

		tbl.Keys = append(tbl.Keys, key)
		tbl.Values = append(tbl.Values, value)

		if p.peekTokenIs(token.COMMA) {
			p.nextToken()
			p.nextToken()
			continue
		}
		break
	}

	if !p.expectPeek(token.RBRACE) {
		return nil
	}
	return tbl
}

func (p *Parser) parseFunctionLiteral() ast.Expression {
	tok := p.currentToken
	if !p.peekTokenIs(token.LPAREN) {
		// `fn` not followed by a parameter list names a variable.
		return &ast.Identifier{Token: tok, Value: tok.Literal}
	}
	savedLexer, savedPeek, savedErrs := *p.l, p.peekToken, len(p.errors)
	p.nextToken()

	params := p.parseFunctionParameters()

	if len(p.errors) > savedErrs || !p.peekTokenIs(token.LBRACE) {
		// A parenthesized list with no body after it is a call of a
		// variable named `fn`: rewind and read `fn` as an identifier.
		*p.l, p.currentToken, p.peekToken, p.errors = savedLexer, tok, savedPeek, p.errors[:savedErrs]
		return &ast.Identifier{Token: tok, Value: tok.Literal}
	}
	p.nextToken()
	body := p.parseBlockStatement()

	return &ast.FunctionLiteral{Token: tok, Parameters: params, Body: body}
}

func (p *Parser) parseFunctionParameters() []*ast.Identifier {
	var identifiers []*ast.Identifier

	if p.peekTokenIs(token.RPAREN) {
		p.nextToken()
		return identifiers
	}
	p.nextToken()

	identifiers = append(identifiers, &ast.Identifier{Token: p.currentToken, Value: p.currentToken.Literal})

	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		p.nextToken()
		identifiers = append(identifiers, &ast.Identifier{Token: p.currentToken, Value: p.currentToken.Literal})
	}

	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return identifiers
}

func (p *Parser) parseCallExpression(function ast.Expression) ast.Expression {
	tok := p.currentToken
	ident, ok := function.(*ast.Identifier)
	if !ok {
		p.addErrorf(tok, "function calls require an identifier callee, got %s", function.String())
		return nil
	}

	args := p.parseExpressionList(token.RPAREN)
	return &ast.FunctionCall{Token: tok, Identifier: ident.Value, Arguments: args}
}

func (p *Parser) parseExpressionList(end token.Type) []ast.Expression {
	var list []ast.Expression

	if p.peekTokenIs(end) {
		p.nextToken()
		return list
	}

	p.nextToken()
	list = append(list, p.parseExpression(Lowest))

	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		p.nextToken()
		list = append(list, p.parseExpression(Lowest))
	}

	if !p.expectPeek(end) {
		return nil
	}

	return list
}
