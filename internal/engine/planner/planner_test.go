package planner

import (
	"log"
	"strings"
	"testing"

	"github.com/duskdb/duskdb/internal/engine/lexer"
	"github.com/duskdb/duskdb/internal/engine/parser"
)

type devNull struct{}

func (devNull) Write(p []byte) (int, error) { return len(p), nil }

func parseSQL(t *testing.T, sql string) parser.Statement {
	t.Helper()
	toks, err := lexer.Tokenize(sql)
	if err != nil {
		t.Fatalf("lex: %v", err)
	}
	stmt, err := parser.Parse(sql, toks, log.New(devNull{}, "", 0))
	if err != nil {
		t.Fatalf("parse %q: %v", sql, err)
	}
	return stmt
}

func TestPushdownSingleTableComparisonPushesToScan(t *testing.T) {
	stmt := parseSQL(t, `SELECT * FROM users WHERE age > 18;`)
	plan := Build(stmt).(SelectPlan)
	scan, ok := plan.Source.(TableScan)
	if !ok {
		t.Fatalf("expected TableScan, got %T", plan.Source)
	}
	if scan.Pushed == nil {
		t.Fatal("expected the predicate to be pushed into the single scan")
	}
	if plan.Residual != nil {
		t.Errorf("expected no residual, got %v", plan.Residual)
	}
}

func TestPushdownMultiTableConjunctsSplitCorrectly(t *testing.T) {
	stmt := parseSQL(t, `SELECT * FROM a JOIN b ON a.id = b.aid WHERE a.age > 18 AND b.total < 100;`)
	plan := Build(stmt).(SelectPlan)
	join := plan.Source.(JoinNode)
	leftScan := join.Left.(TableScan)
	rightScan := join.Right.(TableScan)
	if leftScan.Pushed == nil {
		t.Error("expected a.age > 18 to push into scan a")
	}
	if rightScan.Pushed == nil {
		t.Error("expected b.total < 100 to push into scan b")
	}
	if plan.Residual != nil {
		t.Errorf("expected both conjuncts pushed, no residual left, got %v", plan.Residual)
	}
}

func TestPushdownCrossTableConjunctStaysResidual(t *testing.T) {
	stmt := parseSQL(t, `SELECT * FROM a JOIN b ON a.id = b.aid WHERE a.age > b.total;`)
	plan := Build(stmt).(SelectPlan)
	join := plan.Source.(JoinNode)
	if join.Left.(TableScan).Pushed != nil || join.Right.(TableScan).Pushed != nil {
		t.Error("a cross-table conjunct must not be pushed into either scan")
	}
	if plan.Residual == nil {
		t.Fatal("expected the cross-table conjunct to remain as residual")
	}
}

func TestExplainRendersIndentedTree(t *testing.T) {
	stmt := parseSQL(t, `SELECT a.name FROM a JOIN b ON a.id = b.aid WHERE a.age > 18 ORDER BY name DESC;`)
	plan := Build(stmt)
	out := Explain(plan)
	if !strings.Contains(out, "Select:") || !strings.Contains(out, "Join(") || !strings.Contains(out, "SeqScan(") {
		t.Fatalf("unexpected explain output: %s", out)
	}
	if !strings.Contains(out, "OrderBy: name DESC") {
		t.Fatalf("expected OrderBy clause, got: %s", out)
	}
}
