// Predicate pushdown (§4.8, steps 1-4): split WHERE at top-level AND,
// attach each conjunct to the single TableScan it exclusively references,
// and leave everything else as the Select plan's residual filter.
package planner

import "github.com/duskdb/duskdb/internal/engine/parser"

// pushdown splits where into conjuncts and pushes each into the scan(s) of
// source it exclusively references, returning the (possibly mutated)
// source tree and whatever residual condition remains. Pushdown past
// aggregation/sort is always permitted (§4.8 step 4, first clause), and
// since the executor's residual filter always runs before projection
// (§4.9's scan → filter → aggregate → project → order pipeline), the
// "predicate's referenced columns are in the projection's output list"
// caveat of step 4's second clause is satisfied structurally: the filter
// always sees the full pre-projection row.
func pushdown(source SourceNode, where parser.Expr) (SourceNode, parser.Expr) {
	if where == nil {
		return source, nil
	}
	conjuncts := splitConjuncts(where)
	scans := collectScans(source)

	var residuals []parser.Expr
	for _, c := range conjuncts {
		aliases, hasUnqualified := referencedAliases(c)
		target := eligibleScan(aliases, hasUnqualified, scans)
		if target == nil {
			residuals = append(residuals, c)
			continue
		}
		source = attachPushed(source, *target, c)
	}
	return source, reconjoin(residuals)
}

// splitConjuncts flattens a tree of top-level ANDs into a list of conjuncts.
// A conjunct itself may still contain OR/NOT/parenthesized structure — only
// the outermost AND boundaries are split, per step 1.
func splitConjuncts(e parser.Expr) []parser.Expr {
	if and, ok := e.(parser.And); ok {
		return append(splitConjuncts(and.Left), splitConjuncts(and.Right)...)
	}
	return []parser.Expr{e}
}

// reconjoin is the inverse of splitConjuncts: AND the residual list back
// together, or return nil if it is empty.
func reconjoin(conjuncts []parser.Expr) parser.Expr {
	if len(conjuncts) == 0 {
		return nil
	}
	out := conjuncts[0]
	for _, c := range conjuncts[1:] {
		out = parser.And{Left: out, Right: c}
	}
	return out
}

// referencedAliases collects every qualified alias a conjunct mentions, and
// reports whether it also mentions an unqualified (bare) column.
func referencedAliases(e parser.Expr) (aliases map[string]bool, hasUnqualified bool) {
	aliases = map[string]bool{}
	var walk func(parser.Expr)
	walk = func(e parser.Expr) {
		switch v := e.(type) {
		case parser.ColumnRef:
			if v.Alias != "" {
				aliases[v.Alias] = true
			} else {
				hasUnqualified = true
			}
		case parser.Literal:
		case parser.Compare:
			walk(v.Left)
			walk(v.Right)
		case parser.And:
			walk(v.Left)
			walk(v.Right)
		case parser.Or:
			walk(v.Left)
			walk(v.Right)
		case parser.Not:
			walk(v.Inner)
		case parser.FuncCall:
			if v.Arg != nil {
				walk(v.Arg)
			}
		}
	}
	walk(e)
	return aliases, hasUnqualified
}

// collectScans returns every TableScan alias reachable from source.
func collectScans(source SourceNode) []string {
	switch v := source.(type) {
	case TableScan:
		return []string{v.Alias}
	case JoinNode:
		return append(collectScans(v.Left), collectScans(v.Right)...)
	default:
		return nil
	}
}

// eligibleScan implements step 2: a conjunct is eligible for pushdown into
// a scan iff every alias prefix it references equals that scan's alias. A
// conjunct with no qualified references at all is only eligible when the
// query has exactly one scan (otherwise which table it means is
// ambiguous at the planner stage, so it is conservatively kept residual).
func eligibleScan(aliases map[string]bool, hasUnqualified bool, scans []string) *string {
	if len(aliases) == 0 {
		if hasUnqualified && len(scans) == 1 {
			return &scans[0]
		}
		return nil
	}
	if len(aliases) > 1 {
		return nil
	}
	if hasUnqualified {
		return nil
	}
	for a := range aliases {
		for _, s := range scans {
			if s == a {
				return &s
			}
		}
	}
	return nil
}

// attachPushed rebuilds source with conjunct AND-ed onto the Pushed field
// of the TableScan whose alias equals target.
func attachPushed(source SourceNode, target string, conjunct parser.Expr) SourceNode {
	switch v := source.(type) {
	case TableScan:
		if v.Alias != target {
			return v
		}
		if v.Pushed == nil {
			v.Pushed = conjunct
		} else {
			v.Pushed = parser.And{Left: v.Pushed, Right: conjunct}
		}
		return v
	case JoinNode:
		v.Left = attachPushed(v.Left, target, conjunct)
		v.Right = attachPushed(v.Right, target, conjunct)
		return v
	default:
		return source
	}
}
