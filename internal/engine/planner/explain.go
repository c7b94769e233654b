// Explain pretty-printing (§4.8's final paragraph): a multi-line indented
// tree, "Select: projections [Filter: residual] [GroupBy: col] [OrderBy: col
// dir]" with nested "Join(cond=…)" and "SeqScan(table, cond=…)" lines.
package planner

import (
	"fmt"
	"strings"

	"github.com/duskdb/duskdb/internal/engine/parser"
)

// Explain renders p as the indented tree described above. Non-SELECT plans
// render a single descriptive line; ExplainPlan delegates to its Inner.
func Explain(p Plan) string {
	switch v := p.(type) {
	case CreateTablePlan:
		return fmt.Sprintf("CreateTable: %s", v.Stmt.Name)
	case InsertPlan:
		return fmt.Sprintf("Insert: %s (%d row(s))", v.Stmt.Table, len(v.Stmt.Rows))
	case DeletePlan:
		return fmt.Sprintf("Delete: %s%s", v.Table, compareSuffix(v.Where))
	case UpdatePlan:
		return fmt.Sprintf("Update: %s%s", v.Table, compareSuffix(v.Where))
	case SelectPlan:
		return explainSelect(v)
	case ExplainPlan:
		return Explain(v.Inner)
	default:
		return "<unknown plan>"
	}
}

func explainSelect(sp SelectPlan) string {
	var sb strings.Builder
	sb.WriteString("Select: ")
	sb.WriteString(projectionList(sp.Columns))
	if sp.Residual != nil {
		sb.WriteString(fmt.Sprintf(" [Filter: %s]", renderExpr(sp.Residual)))
	}
	if sp.GroupBy != "" {
		sb.WriteString(fmt.Sprintf(" [GroupBy: %s]", sp.GroupBy))
	}
	if sp.HasOrder {
		dir := "ASC"
		if sp.OrderDir == parser.Desc {
			dir = "DESC"
		}
		sb.WriteString(fmt.Sprintf(" [OrderBy: %s %s]", sp.OrderBy, dir))
	}
	sb.WriteByte('\n')
	sb.WriteString(explainSource(sp.Source, "  "))
	return sb.String()
}

func projectionList(items []parser.SelectItem) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		if it.Star {
			parts = append(parts, "*")
			continue
		}
		s := renderExpr(it.Expr)
		if it.Alias != "" {
			s += " AS " + it.Alias
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ", ")
}

func explainSource(n SourceNode, indent string) string {
	switch v := n.(type) {
	case TableScan:
		cond := ""
		if v.Pushed != nil {
			cond = fmt.Sprintf(", cond=%s", renderExpr(v.Pushed))
		}
		return fmt.Sprintf("%sSeqScan(%s%s)", indent, v.Table, cond)
	case JoinNode:
		kind := "INNER"
		if v.Kind == parser.JoinLeft {
			kind = "LEFT"
		}
		head := fmt.Sprintf("%sJoin(type=%s, cond=%s)", indent, kind, renderExpr(v.On))
		return head + "\n" + explainSource(v.Left, indent+"  ") + "\n" + explainSource(v.Right, indent+"  ")
	default:
		return indent + "<unknown source>"
	}
}

func compareSuffix(c *parser.Compare) string {
	if c == nil {
		return ""
	}
	return fmt.Sprintf(" [Filter: %s]", renderExpr(*c))
}

// renderExpr renders an expression tree back to SQL-like text, for Explain
// output and log lines.
func renderExpr(e parser.Expr) string {
	switch v := e.(type) {
	case parser.ColumnRef:
		if v.Alias != "" {
			return v.Alias + "." + v.Name
		}
		return v.Name
	case parser.Literal:
		switch val := v.Value.(type) {
		case string:
			return "'" + val + "'"
		default:
			return fmt.Sprintf("%v", val)
		}
	case parser.Compare:
		return fmt.Sprintf("%s %s %s", renderExpr(v.Left), v.Op, renderExpr(v.Right))
	case parser.And:
		return fmt.Sprintf("(%s AND %s)", renderExpr(v.Left), renderExpr(v.Right))
	case parser.Or:
		return fmt.Sprintf("(%s OR %s)", renderExpr(v.Left), renderExpr(v.Right))
	case parser.Not:
		return fmt.Sprintf("NOT (%s)", renderExpr(v.Inner))
	case parser.FuncCall:
		if v.Star {
			return v.Name + "(*)"
		}
		return v.Name + "(" + renderExpr(v.Arg) + ")"
	default:
		return "?"
	}
}
