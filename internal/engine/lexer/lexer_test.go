package lexer

import "testing"

func TestTokenizeBasicStatement(t *testing.T) {
	toks, err := Tokenize("SELECT * FROM users WHERE age > 26;")
	if err != nil {
		t.Fatal(err)
	}
	want := []struct {
		kind Kind
		val  string
	}{
		{Keyword, "SELECT"}, {Delimiter, "*"}, {Keyword, "FROM"}, {Identifier, "users"},
		{Keyword, "WHERE"}, {Identifier, "age"}, {Operator, ">"}, {Number, "26"},
		{Delimiter, ";"}, {EOF, ""},
	}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %+v", len(toks), len(want), toks)
	}
	for i, w := range want {
		if toks[i].Kind != w.kind || toks[i].Value != w.val {
			t.Errorf("token %d: got {%v %q}, want {%v %q}", i, toks[i].Kind, toks[i].Value, w.kind, w.val)
		}
	}
}

func TestMultiCharOperatorsPreferredOverSingle(t *testing.T) {
	for _, c := range []string{"<>", "!=", ">=", "<="} {
		toks, err := Tokenize("a " + c + " b")
		if err != nil {
			t.Fatal(err)
		}
		if toks[1].Value != c {
			t.Errorf("expected operator %q, got %q", c, toks[1].Value)
		}
	}
}

func TestKeywordsCaseInsensitiveNormalizedUppercase(t *testing.T) {
	toks, err := Tokenize("select FROM insert")
	if err != nil {
		t.Fatal(err)
	}
	for _, tok := range toks[:3] {
		if tok.Kind != Keyword {
			t.Errorf("expected keyword, got %v %q", tok.Kind, tok.Value)
		}
		if tok.Value != "SELECT" && tok.Value != "FROM" && tok.Value != "INSERT" {
			t.Errorf("expected normalized uppercase keyword, got %q", tok.Value)
		}
	}
}

func TestLineCommentSkipped(t *testing.T) {
	toks, err := Tokenize("SELECT 1 -- this is a comment\nFROM t")
	if err != nil {
		t.Fatal(err)
	}
	var kinds []Kind
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	if len(toks) != 5 { // SELECT, 1, FROM, t, EOF
		t.Fatalf("expected comment to be skipped, got %d tokens: %+v", len(toks), toks)
	}
}

func TestLineColumnTracking(t *testing.T) {
	toks, err := Tokenize("SELECT 1\nFROM t")
	if err != nil {
		t.Fatal(err)
	}
	// "FROM" starts line 2, column 1.
	for _, tok := range toks {
		if tok.Value == "FROM" {
			if tok.Line != 2 || tok.Col != 1 {
				t.Errorf("expected FROM at line 2 col 1, got line %d col %d", tok.Line, tok.Col)
			}
			return
		}
	}
	t.Fatal("FROM token not found")
}

func TestUnrecognizedCharacterReportsLocation(t *testing.T) {
	_, err := Tokenize("SELECT 1 FROM t WHERE a # b")
	if err == nil {
		t.Fatal("expected lex error for '#'")
	}
	lexErr, ok := err.(*LexError)
	if !ok {
		t.Fatalf("expected *LexError, got %T", err)
	}
	if lexErr.Line != 1 {
		t.Errorf("expected error on line 1, got %d", lexErr.Line)
	}
}

// TestRoundTrip checks invariant 6: IDENTIFIER/NUMBER/STRING tokens re-lex
// to the same kind and value when their source form is re-emitted.
func TestRoundTrip(t *testing.T) {
	cases := []struct {
		source string
		kind   Kind
		value  string
	}{
		{"my_col_1", Identifier, "my_col_1"},
		{"42", Number, "42"},
		{"3.14", Number, "3.14"},
		{"'hello world'", String, "hello world"},
	}
	for _, c := range cases {
		toks, err := Tokenize(c.source)
		if err != nil {
			t.Fatal(err)
		}
		if toks[0].Kind != c.kind || toks[0].Value != c.value {
			t.Fatalf("first pass: got {%v %q}", toks[0].Kind, toks[0].Value)
		}
		// Re-emit in source form and re-lex.
		var reEmitted string
		switch c.kind {
		case String:
			reEmitted = "'" + toks[0].Value + "'"
		default:
			reEmitted = toks[0].Value
		}
		toks2, err := Tokenize(reEmitted)
		if err != nil {
			t.Fatal(err)
		}
		if toks2[0].Kind != c.kind || toks2[0].Value != c.value {
			t.Errorf("round-trip mismatch for %q: got {%v %q}", c.source, toks2[0].Kind, toks2[0].Value)
		}
	}
}
