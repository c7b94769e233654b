// Package db wires the lexer, parser, semantic analyzer, planner, and
// executor into a single Run(sql) entry point over one catalog/heap pair
// (§4's pipeline, §5's concurrency model).
//
// Holds the catalog/heap/page manager together behind a single Run call,
// which is all a REPL actually needs.
package db

import (
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/duskdb/duskdb/internal/buffer"
	"github.com/duskdb/duskdb/internal/catalog"
	"github.com/duskdb/duskdb/internal/engine/exec"
	"github.com/duskdb/duskdb/internal/engine/lexer"
	"github.com/duskdb/duskdb/internal/engine/parser"
	"github.com/duskdb/duskdb/internal/engine/planner"
	"github.com/duskdb/duskdb/internal/engine/semantic"
	"github.com/duskdb/duskdb/internal/heap"
	"github.com/duskdb/duskdb/internal/page"
)

// DB is not goroutine-safe by contract (§5): duskdb is a single-user
// single-node engine and callers are expected to drive it from one
// goroutine. mu guards Run purely as a defensive safety net against an
// accidental concurrent call, never as something correctness relies on.
type DB struct {
	mu sync.Mutex

	Cat  *catalog.Catalog
	Heap *heap.Heap

	RunID  string
	logger *log.Logger
}

// Config names the on-disk paths Open wires together.
type Config struct {
	PageDir    string
	HeapMapPath string
	CatalogPath string

	BufferCapacity int
	BufferPolicy   buffer.Policy

	// Logger receives one line per compilation stage plus the LL(1) trace
	// (§6); a nil logger discards it.
	Logger *log.Logger

	// RunID, when set, is stamped on the DB instead of a freshly generated
	// one — used so a caller that already opened the compile log (and put a
	// run ID in its header) can share that same ID here.
	RunID string
}

// Open assembles the page manager, buffer pool, heap, and catalog named by
// cfg and returns a ready-to-use DB stamped with cfg.RunID, or a fresh run
// ID when cfg.RunID is empty.
func Open(cfg Config) (*DB, error) {
	mgr, err := page.Open(cfg.PageDir)
	if err != nil {
		return nil, err
	}
	capacity := cfg.BufferCapacity
	pool := buffer.New(mgr, capacity, cfg.BufferPolicy)
	hp, err := heap.Open(pool, cfg.HeapMapPath)
	if err != nil {
		return nil, err
	}
	cat, err := catalog.Open(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := cfg.Logger
	if logger != nil {
		logger.Printf("run %s started", runID)
	}
	return &DB{Cat: cat, Heap: hp, RunID: runID, logger: logger}, nil
}

// Result is the outcome of one Run call: tabular rows, a status message, or
// EXPLAIN text.
type Result = exec.Result

// Run lexes, parses, semantically analyzes, plans, and executes one SQL
// statement (§4's full pipeline), logging one line per stage to the
// compile log, plus an ERROR line with the error text when a stage fails.
func (db *DB) Run(sql string) (res *Result, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	defer func() {
		if err != nil {
			db.logf("ERROR %v", err)
		}
	}()

	db.logf("LEX %s", preview(sql))
	toks, err := lexer.Tokenize(sql)
	if err != nil {
		return nil, err
	}

	db.logf("PARSE %d token(s)", len(toks))
	stmt, err := parser.Parse(sql, toks, db.logger)
	if err != nil {
		return nil, err
	}

	db.logf("SEMANTIC %s", parser.StatementKind(stmt))
	if err := semantic.Analyze(stmt, db.Cat.Snapshot()); err != nil {
		return nil, err
	}

	db.logf("PLAN %s", parser.StatementKind(stmt))
	plan := planner.Build(stmt)

	db.logf("EXEC %s", parser.StatementKind(stmt))
	executor := exec.New(db.Cat, db.Heap, db.logger)
	return executor.Execute(plan)
}

func (db *DB) logf(format string, args ...any) {
	if db.logger != nil {
		db.logger.Printf(format, args...)
	}
}

// preview truncates sql for the LEX log line so a large pasted script
// doesn't blow up the compile log.
func preview(sql string) string {
	const max = 80
	if len(sql) <= max {
		return sql
	}
	return sql[:max] + "..."
}
