// LL(1) pedagogical trace simulator: a tiny predict-table walk over a
// per-statement-kind grammar, logged purely for teaching purposes. It never
// produces the AST — the hand-written recursive descent in parser.go does
// that — and a failure here never blocks parsing; it is a diagnostic best
// effort only.
//
// Follows a stack/input/production trace shape, over Go's []lexer.Token
// rather than string-token lists.
package parser

import (
	"log"
	"strings"

	"github.com/duskdb/duskdb/internal/engine/lexer"
)

// production is one grammar rule: a nonterminal and the symbols it expands
// to. A symbol that starts with "'" denotes a terminal; every other symbol
// is a nonterminal unless it is exactly the literal stream-end marker "$".
type production struct {
	head string
	body []string
}

// grammars maps a leading keyword to the tiny grammar used to narrate that
// statement kind. Each is intentionally shallow: enough to produce a
// plausible stack/input/production trace, not a full parse.
var grammars = map[string][]production{
	"SELECT": {
		{"Select", []string{"'SELECT", "ItemList", "'FROM", "'ident", "Tail"}},
		{"ItemList", []string{"'ident"}},
		{"Tail", []string{"'WHERE", "Cond"}},
		{"Tail", []string{"$"}},
		{"Cond", []string{"'ident", "'op", "Value"}},
		{"Value", []string{"'literal"}},
	},
	"INSERT": {
		{"Insert", []string{"'INSERT", "'INTO", "'ident", "'VALUES", "Tuple"}},
		{"Tuple", []string{"'(", "ValueList", "')"}},
		{"ValueList", []string{"'literal"}},
	},
	"CREATE": {
		{"Create", []string{"'CREATE", "'TABLE", "'ident", "'(", "ColList", "')"}},
		{"ColList", []string{"'ident", "Type"}},
		{"Type", []string{"'typename"}},
	},
	"DELETE": {
		{"Delete", []string{"'DELETE", "'FROM", "'ident", "Tail"}},
		{"Tail", []string{"'WHERE", "Cond"}},
		{"Tail", []string{"$"}},
		{"Cond", []string{"'ident", "'op", "Value"}},
		{"Value", []string{"'literal"}},
	},
	"UPDATE": {
		{"Update", []string{"'UPDATE", "'ident", "'SET", "AssignList", "Tail"}},
		{"AssignList", []string{"'ident", "'=", "Value"}},
		{"Tail", []string{"'WHERE", "Cond"}},
		{"Tail", []string{"$"}},
		{"Cond", []string{"'ident", "'op", "Value"}},
		{"Value", []string{"'literal"}},
	},
}

var startSymbol = map[string]string{
	"SELECT": "Select",
	"INSERT": "Insert",
	"CREATE": "Create",
	"DELETE": "Delete",
	"UPDATE": "Update",
}

// simulateLL1 walks a shallow predict table for the statement kind implied
// by the first keyword in toks, logging "[stack] [input] -> production"
// lines to logger. It is a best-effort narration: any mismatch simply ends
// the trace early rather than returning an error, since the real grammar
// lives in the recursive descent, not here.
func simulateLL1(toks []lexer.Token, logger *log.Logger) {
	if logger == nil || len(toks) == 0 {
		return
	}
	kw := leadingKeyword(toks)
	rules, ok := grammars[kw]
	if !ok {
		return
	}
	start, ok := startSymbol[kw]
	if !ok {
		return
	}
	logger.Printf("LL(1) trace: statement kind %s", kw)
	stack := []string{"$", start}
	pos := 0
	steps := 0
	const maxSteps = 64
	for len(stack) > 0 && steps < maxSteps {
		steps++
		top := stack[len(stack)-1]
		inputDesc := describeTokens(toks, pos)
		logger.Printf("[%s] [%s]", strings.Join(stack, " "), inputDesc)
		if top == "$" {
			if pos >= len(toks) || toks[pos].Kind == lexer.EOF {
				logger.Printf("accept")
			}
			break
		}
		if strings.HasPrefix(top, "'") {
			if !terminalMatches(top, toks, pos) {
				logger.Printf("trace ended: %s does not match input, deferring to recursive descent", top)
				return
			}
			stack = stack[:len(stack)-1]
			pos++
			continue
		}
		prod, body := predict(rules, top, toks, pos)
		if prod == nil {
			logger.Printf("trace ended: no production for %s, deferring to recursive descent", top)
			return
		}
		logger.Printf("%s -> %s", top, strings.Join(body, " "))
		stack = stack[:len(stack)-1]
		for i := len(body) - 1; i >= 0; i-- {
			if body[i] == "$" {
				continue
			}
			stack = append(stack, body[i])
		}
	}
}

func leadingKeyword(toks []lexer.Token) string {
	for _, t := range toks {
		if t.Kind == lexer.Keyword {
			if t.Value == "EXPLAIN" {
				continue
			}
			return t.Value
		}
		break
	}
	return ""
}

// terminalMatches checks a predict-table terminal symbol ('ident, 'op,
// 'literal, 'typename, or a literal keyword/delimiter) against the token at
// pos.
func terminalMatches(sym string, toks []lexer.Token, pos int) bool {
	if pos >= len(toks) {
		return false
	}
	t := toks[pos]
	name := strings.TrimPrefix(sym, "'")
	switch name {
	case "ident":
		return t.Kind == lexer.Identifier
	case "op":
		return t.Kind == lexer.Operator
	case "literal":
		return t.Kind == lexer.Number || t.Kind == lexer.String ||
			(t.Kind == lexer.Keyword && (t.Value == "TRUE" || t.Value == "FALSE"))
	case "typename":
		return t.Kind == lexer.Keyword && (t.Value == "INT" || t.Value == "FLOAT" || t.Value == "BOOL" || t.Value == "VARCHAR")
	default:
		return t.Value == name
	}
}

// predict picks the first production for nonterminal whose body's leading
// terminal matches the lookahead token, or the single production with no
// alternatives.
func predict(rules []production, nonterminal string, toks []lexer.Token, pos int) (*production, []string) {
	var candidates []production
	for _, r := range rules {
		if r.head == nonterminal {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	if len(candidates) == 1 {
		return &candidates[0], candidates[0].body
	}
	for i := range candidates {
		body := candidates[i].body
		if len(body) == 0 {
			continue
		}
		if body[0] == "$" {
			if pos >= len(toks) || toks[pos].Kind == lexer.EOF {
				return &candidates[i], body
			}
			continue
		}
		if terminalMatches(body[0], toks, pos) {
			return &candidates[i], body
		}
	}
	return &candidates[len(candidates)-1], candidates[len(candidates)-1].body
}
