// Package planner converts a validated AST into an ExecutionPlan (§4.8):
// typed nodes for CREATE/INSERT/DELETE/UPDATE, and for SELECT a left-deep
// join tree plus the predicate-pushdown algorithm.
//
// Built as a tagged-plan-kind shape (a Kind enum, one struct per kind,
// TableScan/Join node types) over duskdb's expression-tree predicates.
package planner

import (
	"github.com/duskdb/duskdb/internal/engine/parser"
)

// Kind tags an ExecutionPlan's statement kind.
type Kind int

const (
	KindCreateTable Kind = iota
	KindInsert
	KindDelete
	KindUpdate
	KindSelect
	KindExplain
)

// Plan is the root interface for every execution plan node.
type Plan interface {
	Kind() Kind
}

// CreateTablePlan executes a CREATE TABLE statement unchanged from its AST.
type CreateTablePlan struct {
	Stmt parser.CreateTableStmt
}

func (CreateTablePlan) Kind() Kind { return KindCreateTable }

// InsertPlan executes an INSERT statement unchanged from its AST.
type InsertPlan struct {
	Stmt parser.InsertStmt
}

func (InsertPlan) Kind() Kind { return KindInsert }

// DeletePlan executes a DELETE, predicate already narrowed to the storage
// layer's single-comparison pushdown shape.
type DeletePlan struct {
	Table string
	Where *parser.Compare
}

func (DeletePlan) Kind() Kind { return KindDelete }

// UpdatePlan executes an UPDATE.
type UpdatePlan struct {
	Table string
	Sets  []parser.Assignment
	Where *parser.Compare
}

func (UpdatePlan) Kind() Kind { return KindUpdate }

// SourceNode is a table-source tree node: TableScan or Join. Rendering is
// handled separately by the free functions in explain.go, which switch on
// the concrete type rather than dispatching through the interface.
type SourceNode interface {
	sourceNode()
}

// TableScan reads one table, with an optional predicate pushed down to it.
type TableScan struct {
	Table  string
	Alias  string // defaults to Table when the statement gave none
	Pushed parser.Expr
}

func (TableScan) sourceNode() {}

// JoinNode combines two sources by join condition.
type JoinNode struct {
	Kind  parser.JoinKind
	Left  SourceNode
	Right SourceNode
	On    parser.Expr
}

func (JoinNode) sourceNode() {}

// SelectPlan wraps a table-source tree plus the projection/aggregation/
// grouping/ordering clauses (§4.8).
type SelectPlan struct {
	Source     SourceNode
	Columns    []parser.SelectItem
	Aggregates []parser.FuncCall
	Residual   parser.Expr // nil if nothing is left after pushdown
	GroupBy    string
	OrderBy    string
	OrderDir   parser.OrderDir
	HasOrder   bool
}

func (SelectPlan) Kind() Kind { return KindSelect }

// ExplainPlan wraps another plan; executing it runs Inner's Explain
// pretty-printer instead of Inner itself (§4.9).
type ExplainPlan struct {
	Inner Plan
}

func (ExplainPlan) Kind() Kind { return KindExplain }

// Build converts a validated Statement into an ExecutionPlan.
func Build(stmt parser.Statement) Plan {
	switch s := stmt.(type) {
	case parser.CreateTableStmt:
		return CreateTablePlan{Stmt: s}
	case parser.InsertStmt:
		return InsertPlan{Stmt: s}
	case parser.DeleteStmt:
		return DeletePlan{Table: s.Table, Where: s.Where}
	case parser.UpdateStmt:
		return UpdatePlan{Table: s.Table, Sets: s.Sets, Where: s.Where}
	case parser.SelectStmt:
		return buildSelect(s)
	case parser.ExplainStmt:
		return ExplainPlan{Inner: Build(s.Inner)}
	default:
		return nil
	}
}

// buildSelect builds the left-deep join chain in text order (§4.8's "Build
// order") and runs predicate pushdown over it.
func buildSelect(s parser.SelectStmt) SelectPlan {
	var source SourceNode = TableScan{Table: s.From.Table, Alias: defaultAlias(s.From)}
	for _, j := range s.Joins {
		source = JoinNode{
			Kind:  j.Kind,
			Left:  source,
			Right: TableScan{Table: j.Table, Alias: defaultAlias(parser.FromItem{Table: j.Table, Alias: j.Alias})},
			On:    j.On,
		}
	}

	var aggregates []parser.FuncCall
	for _, item := range s.Items {
		if fc, ok := item.Expr.(parser.FuncCall); ok {
			aggregates = append(aggregates, fc)
		}
	}

	source, residual := pushdown(source, s.Where)

	return SelectPlan{
		Source:     source,
		Columns:    s.Items,
		Aggregates: aggregates,
		Residual:   residual,
		GroupBy:    s.GroupBy,
		OrderBy:    s.OrderBy,
		OrderDir:   s.OrderDir,
		HasOrder:   s.HasOrder,
	}
}

func defaultAlias(fi parser.FromItem) string {
	if fi.Alias != "" {
		return fi.Alias
	}
	return fi.Table
}
