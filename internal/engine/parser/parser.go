// Package parser: recursive-descent construction of the AST (ast.go) from a
// lexer.Token stream, plus error reporting with caret diagnostics and smart
// hints (§4.6).
//
// Built as a recursive-descent structure (one method per grammar rule, a
// `cur()`/`expect()` token-cursor pair) over duskdb's own grammar (§4.5)
// and statement set (§4.6).
package parser

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/duskdb/duskdb/internal/catalog"
	"github.com/duskdb/duskdb/internal/engine/errs"
	"github.com/duskdb/duskdb/internal/engine/hints"
	"github.com/duskdb/duskdb/internal/engine/lexer"
)

// Parser consumes a fixed token slice and builds one Statement.
type Parser struct {
	src    string
	toks   []lexer.Token
	pos    int
	logger *log.Logger
}

// New returns a Parser over toks. src is the original SQL text, kept only
// for caret-line rendering in error hints. logger receives the LL(1)
// pedagogical trace (ll1.go); a nil logger discards it.
func New(src string, toks []lexer.Token, logger *log.Logger) *Parser {
	return &Parser{src: src, toks: toks, logger: logger}
}

// Parse tokenizes nothing itself (the caller already lexed) and returns the
// single Statement the token stream encodes, running the LL(1) trace
// simulator first as a diagnostic side channel.
func Parse(src string, toks []lexer.Token, logger *log.Logger) (Statement, error) {
	simulateLL1(toks, logger)
	p := New(src, toks, logger)
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	if err := p.expectKind(lexer.EOF, nil); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) cur() lexer.Token  { return p.toks[p.pos] }
func (p *Parser) atEnd() bool       { return p.cur().Kind == lexer.EOF }
func (p *Parser) advance() lexer.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) isKeyword(kw string) bool {
	t := p.cur()
	return t.Kind == lexer.Keyword && t.Value == kw
}

func (p *Parser) isDelim(d string) bool {
	t := p.cur()
	return t.Kind == lexer.Delimiter && t.Value == d
}

func (p *Parser) isOp(op string) bool {
	t := p.cur()
	return t.Kind == lexer.Operator && t.Value == op
}

// syntaxError builds a *errs.SyntaxError with a caret line and an
// expected-vs-got smart hint.
func (p *Parser) syntaxError(expected []string, message string) error {
	t := p.cur()
	got := t.Value
	if t.Kind == lexer.EOF {
		got = "<end of input>"
	}
	caret := hints.CaretLine(p.src, t.Line, t.Col)
	hint := hints.ExpectedVsGot(expected, got)
	if caret != "" {
		if hint != "" {
			hint = caret + "\n" + hint
		} else {
			hint = caret
		}
	}
	return &errs.SyntaxError{Line: t.Line, Col: t.Col, Message: message, Hint: hint}
}

func (p *Parser) expectKeyword(kw string) error {
	if !p.isKeyword(kw) {
		return p.syntaxError([]string{kw}, fmt.Sprintf("expected keyword %s, got %q", kw, p.cur().Value))
	}
	p.advance()
	return nil
}

func (p *Parser) expectDelim(d string) error {
	if !p.isDelim(d) {
		return p.syntaxError([]string{d}, fmt.Sprintf("expected %q, got %q", d, p.cur().Value))
	}
	p.advance()
	return nil
}

func (p *Parser) expectKind(k lexer.Kind, expected []string) error {
	if p.cur().Kind != k {
		return p.syntaxError(expected, fmt.Sprintf("expected %s, got %q", k, p.cur().Value))
	}
	return nil
}

func (p *Parser) expectIdentifier() (string, error) {
	if p.cur().Kind != lexer.Identifier {
		return "", p.syntaxError([]string{"<identifier>"}, fmt.Sprintf("expected identifier, got %q", p.cur().Value))
	}
	return p.advance().Value, nil
}

// parseStatement dispatches on the leading keyword (§4.6's statement set).
func (p *Parser) parseStatement() (Statement, error) {
	switch {
	case p.isKeyword("EXPLAIN"):
		p.advance()
		inner, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		return ExplainStmt{Inner: inner}, nil
	case p.isKeyword("CREATE"):
		return p.parseCreateTable()
	case p.isKeyword("INSERT"):
		return p.parseInsert()
	case p.isKeyword("SELECT"):
		return p.parseSelect()
	case p.isKeyword("DELETE"):
		return p.parseDelete()
	case p.isKeyword("UPDATE"):
		return p.parseUpdate()
	default:
		return nil, p.syntaxError(
			[]string{"EXPLAIN", "CREATE", "INSERT", "SELECT", "DELETE", "UPDATE"},
			fmt.Sprintf("expected a statement, got %q", p.cur().Value))
	}
}

// --- CREATE TABLE -----------------------------------------------------

func (p *Parser) parseCreateTable() (Statement, error) {
	if err := p.expectKeyword("CREATE"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("TABLE"); err != nil {
		return nil, err
	}
	name, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	if err := p.expectDelim("("); err != nil {
		return nil, err
	}
	stmt := CreateTableStmt{Name: name}
	for {
		if p.isKeyword("PRIMARY") {
			p.advance()
			if err := p.expectKeyword("KEY"); err != nil {
				return nil, err
			}
			if err := p.expectDelim("("); err != nil {
				return nil, err
			}
			col, err := p.expectIdentifier()
			if err != nil {
				return nil, err
			}
			if err := p.expectDelim(")"); err != nil {
				return nil, err
			}
			stmt.TablePK = col
		} else if p.isKeyword("FOREIGN") {
			p.advance()
			if err := p.expectKeyword("KEY"); err != nil {
				return nil, err
			}
			if err := p.expectDelim("("); err != nil {
				return nil, err
			}
			local, err := p.expectIdentifier()
			if err != nil {
				return nil, err
			}
			if err := p.expectDelim(")"); err != nil {
				return nil, err
			}
			if err := p.expectKeyword("REFERENCES"); err != nil {
				return nil, err
			}
			refTable, err := p.expectIdentifier()
			if err != nil {
				return nil, err
			}
			if err := p.expectDelim("("); err != nil {
				return nil, err
			}
			refCol, err := p.expectIdentifier()
			if err != nil {
				return nil, err
			}
			if err := p.expectDelim(")"); err != nil {
				return nil, err
			}
			stmt.ForeignKeys = append(stmt.ForeignKeys, ForeignKeyDef{LocalCol: local, RefTable: refTable, RefCol: refCol})
		} else {
			col, err := p.parseColumnDef()
			if err != nil {
				return nil, err
			}
			stmt.Columns = append(stmt.Columns, col)
		}
		if p.isDelim(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectDelim(")"); err != nil {
		return nil, err
	}
	if p.isDelim(";") {
		p.advance()
	}
	return stmt, nil
}

func (p *Parser) parseColumnDef() (ColumnDef, error) {
	name, err := p.expectIdentifier()
	if err != nil {
		return ColumnDef{}, err
	}
	t := p.cur()
	if t.Kind != lexer.Keyword || (t.Value != "INT" && t.Value != "FLOAT" && t.Value != "BOOL" && t.Value != "VARCHAR") {
		return ColumnDef{}, p.syntaxError([]string{"INT", "FLOAT", "BOOL", "VARCHAR"},
			fmt.Sprintf("expected a column type, got %q", t.Value))
	}
	p.advance()
	col := ColumnDef{Name: name}
	switch t.Value {
	case "INT":
		col.Type = catalog.Int
	case "FLOAT":
		col.Type = catalog.Float
	case "BOOL":
		col.Type = catalog.Bool
	case "VARCHAR":
		col.Type = catalog.Varchar
		if p.isDelim("(") {
			p.advance()
			numTok := p.cur()
			if numTok.Kind != lexer.Number {
				return ColumnDef{}, p.syntaxError([]string{"<number>"}, "expected a length inside VARCHAR(...)")
			}
			p.advance()
			n, err := strconv.Atoi(numTok.Value)
			if err != nil {
				return ColumnDef{}, p.syntaxError(nil, "invalid VARCHAR length")
			}
			if n <= 0 {
				return ColumnDef{}, p.syntaxError(nil, "VARCHAR(n) requires n>0")
			}
			col.VarcharN = n
			if err := p.expectDelim(")"); err != nil {
				return ColumnDef{}, err
			}
		}
	}
	if p.isKeyword("PRIMARY") {
		p.advance()
		if err := p.expectKeyword("KEY"); err != nil {
			return ColumnDef{}, err
		}
		col.InlinePK = true
	}
	return col, nil
}

// --- INSERT -------------------------------------------------------------

func (p *Parser) parseInsert() (Statement, error) {
	if err := p.expectKeyword("INSERT"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("INTO"); err != nil {
		return nil, err
	}
	name, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	stmt := InsertStmt{Table: name}
	if p.isDelim("(") {
		p.advance()
		for {
			col, err := p.expectIdentifier()
			if err != nil {
				return nil, err
			}
			stmt.Columns = append(stmt.Columns, col)
			if p.isDelim(",") {
				p.advance()
				continue
			}
			break
		}
		if err := p.expectDelim(")"); err != nil {
			return nil, err
		}
	}
	if err := p.expectKeyword("VALUES"); err != nil {
		return nil, err
	}
	for {
		row, err := p.parseValueTuple()
		if err != nil {
			return nil, err
		}
		stmt.Rows = append(stmt.Rows, row)
		if p.isDelim(",") {
			p.advance()
			continue
		}
		break
	}
	if p.isDelim(";") {
		p.advance()
	}
	return stmt, nil
}

func (p *Parser) parseValueTuple() ([]Expr, error) {
	if err := p.expectDelim("("); err != nil {
		return nil, err
	}
	var vals []Expr
	for {
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		vals = append(vals, lit)
		if p.isDelim(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectDelim(")"); err != nil {
		return nil, err
	}
	return vals, nil
}

func (p *Parser) parseLiteral() (Expr, error) {
	t := p.cur()
	switch {
	case t.Kind == lexer.Number:
		p.advance()
		if t.IsFloat {
			f, _ := strconv.ParseFloat(t.Value, 32)
			return Literal{Value: float32(f)}, nil
		}
		n, _ := strconv.ParseInt(t.Value, 10, 32)
		return Literal{Value: int32(n)}, nil
	case t.Kind == lexer.String:
		p.advance()
		return Literal{Value: t.Value}, nil
	case t.Kind == lexer.Keyword && t.Value == "TRUE":
		p.advance()
		return Literal{Value: true}, nil
	case t.Kind == lexer.Keyword && t.Value == "FALSE":
		p.advance()
		return Literal{Value: false}, nil
	case t.Kind == lexer.Operator && t.Value == "-":
		p.advance()
		inner, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		lit := inner.(Literal)
		switch v := lit.Value.(type) {
		case int32:
			return Literal{Value: -v}, nil
		case float32:
			return Literal{Value: -v}, nil
		}
		return nil, p.syntaxError(nil, "unary minus applies only to numeric literals")
	default:
		return nil, p.syntaxError([]string{"<number>", "<string>", "TRUE", "FALSE"},
			fmt.Sprintf("expected a literal value, got %q", t.Value))
	}
}

// --- DELETE / UPDATE ------------------------------------------------------

func (p *Parser) parseDelete() (Statement, error) {
	if err := p.expectKeyword("DELETE"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	name, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	stmt := DeleteStmt{Table: name}
	if p.isKeyword("WHERE") {
		p.advance()
		cmp, err := p.parseSimpleComparison()
		if err != nil {
			return nil, err
		}
		stmt.Where = cmp
	}
	if p.isDelim(";") {
		p.advance()
	}
	return stmt, nil
}

func (p *Parser) parseUpdate() (Statement, error) {
	if err := p.expectKeyword("UPDATE"); err != nil {
		return nil, err
	}
	name, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("SET"); err != nil {
		return nil, err
	}
	stmt := UpdateStmt{Table: name}
	for {
		col, err := p.expectIdentifier()
		if err != nil {
			return nil, err
		}
		if err := p.expectOp("="); err != nil {
			return nil, err
		}
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		stmt.Sets = append(stmt.Sets, Assignment{Column: col, Value: lit})
		if p.isDelim(",") {
			p.advance()
			continue
		}
		break
	}
	if p.isKeyword("WHERE") {
		p.advance()
		cmp, err := p.parseSimpleComparison()
		if err != nil {
			return nil, err
		}
		stmt.Where = cmp
	}
	if p.isDelim(";") {
		p.advance()
	}
	return stmt, nil
}

func (p *Parser) expectOp(op string) error {
	if !p.isOp(op) {
		return p.syntaxError([]string{op}, fmt.Sprintf("expected %q, got %q", op, p.cur().Value))
	}
	p.advance()
	return nil
}

// parseSimpleComparison parses the restricted `column OP constant` grammar
// used by DELETE/UPDATE's WHERE clause (§4.6).
func (p *Parser) parseSimpleComparison() (*Compare, error) {
	col, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	op, err := p.parseCompareOp()
	if err != nil {
		return nil, err
	}
	lit, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	return &Compare{Op: op, Left: ColumnRef{Name: col}, Right: lit}, nil
}

func (p *Parser) parseCompareOp() (CompareOp, error) {
	t := p.cur()
	if t.Kind != lexer.Operator {
		return "", p.syntaxError([]string{"=", "!=", "<>", "<", "<=", ">", ">="},
			fmt.Sprintf("expected a comparison operator, got %q", t.Value))
	}
	p.advance()
	switch t.Value {
	case "=":
		return OpEQ, nil
	case "!=", "<>":
		return OpNE, nil
	case "<":
		return OpLT, nil
	case "<=":
		return OpLE, nil
	case ">":
		return OpGT, nil
	case ">=":
		return OpGE, nil
	default:
		return "", p.syntaxError([]string{"=", "!=", "<>", "<", "<=", ">", ">="}, "unknown comparison operator")
	}
}

// --- SELECT ---------------------------------------------------------------

func (p *Parser) parseSelect() (Statement, error) {
	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	stmt := SelectStmt{}
	for {
		item, err := p.parseSelectItem()
		if err != nil {
			return nil, err
		}
		stmt.Items = append(stmt.Items, item)
		if p.isDelim(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	from, err := p.parseFromItem()
	if err != nil {
		return nil, err
	}
	stmt.From = from
	for p.isKeyword("JOIN") || p.isKeyword("LEFT") || p.isKeyword("INNER") {
		jc, err := p.parseJoinClause()
		if err != nil {
			return nil, err
		}
		stmt.Joins = append(stmt.Joins, jc)
	}
	if p.isKeyword("WHERE") {
		p.advance()
		expr, err := p.parseOrExpr()
		if err != nil {
			return nil, err
		}
		stmt.Where = expr
	}
	if p.isKeyword("GROUP") {
		p.advance()
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		col, err := p.expectIdentifier()
		if err != nil {
			return nil, err
		}
		stmt.GroupBy = col
	}
	if p.isKeyword("ORDER") {
		p.advance()
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		col, err := p.expectIdentifier()
		if err != nil {
			return nil, err
		}
		if p.isDelim(".") {
			p.advance()
			name, err := p.expectIdentifier()
			if err != nil {
				return nil, err
			}
			col = col + "." + name
		}
		stmt.OrderBy = col
		stmt.HasOrder = true
		stmt.OrderDir = Asc
		if p.isKeyword("ASC") {
			p.advance()
		} else if p.isKeyword("DESC") {
			p.advance()
			stmt.OrderDir = Desc
		}
	}
	if p.isDelim(";") {
		p.advance()
	}
	return stmt, nil
}

func (p *Parser) parseSelectItem() (SelectItem, error) {
	if p.isDelim("*") {
		p.advance()
		return SelectItem{Star: true}, nil
	}
	expr, err := p.parseProjectionExpr()
	if err != nil {
		return SelectItem{}, err
	}
	item := SelectItem{Expr: expr}
	if p.isKeyword("AS") {
		p.advance()
		alias, err := p.expectIdentifier()
		if err != nil {
			return SelectItem{}, err
		}
		item.Alias = alias
	}
	return item, nil
}

func (p *Parser) parseProjectionExpr() (Expr, error) {
	if p.cur().Kind == lexer.Keyword && (p.cur().Value == "COUNT" || p.cur().Value == "SUM" || p.cur().Value == "AVG") {
		name := p.advance().Value
		if err := p.expectDelim("("); err != nil {
			return nil, err
		}
		if name == "COUNT" && p.isDelim("*") {
			p.advance()
			if err := p.expectDelim(")"); err != nil {
				return nil, err
			}
			return FuncCall{Name: name, Star: true}, nil
		}
		col, err := p.parseColumnRef()
		if err != nil {
			return nil, err
		}
		if err := p.expectDelim(")"); err != nil {
			return nil, err
		}
		return FuncCall{Name: name, Arg: col}, nil
	}
	return p.parseColumnRef()
}

func (p *Parser) parseColumnRef() (Expr, error) {
	first, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	if p.isDelim(".") {
		p.advance()
		if p.isDelim("*") {
			p.advance()
			return ColumnRef{Alias: first, Name: "*"}, nil
		}
		name, err := p.expectIdentifier()
		if err != nil {
			return nil, err
		}
		return ColumnRef{Alias: first, Name: name}, nil
	}
	return ColumnRef{Name: first}, nil
}

func (p *Parser) parseFromItem() (FromItem, error) {
	name, err := p.expectIdentifier()
	if err != nil {
		return FromItem{}, err
	}
	fi := FromItem{Table: name}
	if p.cur().Kind == lexer.Identifier {
		fi.Alias = p.advance().Value
	}
	return fi, nil
}

func (p *Parser) parseJoinClause() (JoinClause, error) {
	kind := JoinInner
	if p.isKeyword("LEFT") {
		p.advance()
		kind = JoinLeft
	} else if p.isKeyword("INNER") {
		p.advance()
	}
	if err := p.expectKeyword("JOIN"); err != nil {
		return JoinClause{}, err
	}
	fi, err := p.parseFromItem()
	if err != nil {
		return JoinClause{}, err
	}
	if err := p.expectKeyword("ON"); err != nil {
		return JoinClause{}, err
	}
	on, err := p.parseOrExpr()
	if err != nil {
		return JoinClause{}, err
	}
	return JoinClause{Kind: kind, Table: fi.Table, Alias: fi.Alias, On: on}, nil
}

// parseOrExpr .. parseComparisonExpr implement the general WHERE/ON boolean
// grammar: OR binds loosest, then AND, then NOT, then a comparison atom or a
// parenthesized sub-expression.
func (p *Parser) parseOrExpr() (Expr, error) {
	left, err := p.parseAndExpr()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("OR") {
		p.advance()
		right, err := p.parseAndExpr()
		if err != nil {
			return nil, err
		}
		left = Or{Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAndExpr() (Expr, error) {
	left, err := p.parseNotExpr()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("AND") {
		p.advance()
		right, err := p.parseNotExpr()
		if err != nil {
			return nil, err
		}
		left = And{Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseNotExpr() (Expr, error) {
	if p.isKeyword("NOT") {
		p.advance()
		inner, err := p.parseNotExpr()
		if err != nil {
			return nil, err
		}
		return Not{Inner: inner}, nil
	}
	return p.parseComparisonAtom()
}

func (p *Parser) parseComparisonAtom() (Expr, error) {
	if p.isDelim("(") {
		p.advance()
		inner, err := p.parseOrExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectDelim(")"); err != nil {
			return nil, err
		}
		return inner, nil
	}
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	op, err := p.parseCompareOp()
	if err != nil {
		return nil, err
	}
	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return Compare{Op: op, Left: left, Right: right}, nil
}

func (p *Parser) parseOperand() (Expr, error) {
	t := p.cur()
	if t.Kind == lexer.Identifier {
		return p.parseColumnRef()
	}
	return p.parseLiteral()
}

// StatementKind classifies a parsed Statement for the planner/LL(1) trace.
func StatementKind(stmt Statement) string {
	switch stmt.(type) {
	case CreateTableStmt:
		return "CREATE_TABLE"
	case InsertStmt:
		return "INSERT"
	case SelectStmt:
		return "SELECT"
	case DeleteStmt:
		return "DELETE"
	case UpdateStmt:
		return "UPDATE"
	case ExplainStmt:
		return "EXPLAIN"
	default:
		return "UNKNOWN"
	}
}

// describeTokens renders a token slice as a compact debug string, used by
// the LL(1) trace simulator's log lines.
func describeTokens(toks []lexer.Token, from int) string {
	var sb strings.Builder
	for i := from; i < len(toks) && i < from+6; i++ {
		if i > from {
			sb.WriteByte(' ')
		}
		sb.WriteString(toks[i].Value)
	}
	return sb.String()
}
