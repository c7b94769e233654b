package db

import (
	"log"
	"path/filepath"
	"testing"

	"github.com/duskdb/duskdb/internal/buffer"
	"github.com/duskdb/duskdb/internal/engine/errs"
)

type devNull struct{}

func (devNull) Write(p []byte) (int, error) { return len(p), nil }

func newDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	d, err := Open(Config{
		PageDir:        filepath.Join(dir, "pages"),
		HeapMapPath:    filepath.Join(dir, "heap.json"),
		CatalogPath:    filepath.Join(dir, "catalog.json"),
		BufferCapacity: 0,
		BufferPolicy:   buffer.PolicyLRU,
		Logger:         log.New(devNull{}, "", 0),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	return d
}

func run(t *testing.T, d *DB, sql string) *Result {
	t.Helper()
	res, err := d.Run(sql)
	if err != nil {
		t.Fatalf("run %q: %v", sql, err)
	}
	return res
}

func TestScenario_S1_CreateInsertSelect(t *testing.T) {
	d := newDB(t)
	run(t, d, `CREATE TABLE users (id INT, name VARCHAR, age INT);`)
	run(t, d, `INSERT INTO users VALUES (1, 'Alice', 25);`)
	run(t, d, `INSERT INTO users VALUES (2, 'Bob', 30);`)

	res := run(t, d, `SELECT * FROM users WHERE age > 26;`)
	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d: %v", len(res.Rows), res.Rows)
	}
	row := res.Rows[0]
	if row["id"] != int32(2) || row["name"] != "Bob" || row["age"] != int32(30) {
		t.Errorf("unexpected row: %v", row)
	}
}

func TestScenario_S2_ForeignKeyViolationWithSmartHint(t *testing.T) {
	d := newDB(t)
	run(t, d, `CREATE TABLE departments (dept_id INT, dept_name VARCHAR);`)
	run(t, d, `CREATE TABLE employees (emp_id INT, name VARCHAR, dept_id INT, FOREIGN KEY (dept_id) REFERENCES departments(dept_id));`)
	run(t, d, `INSERT INTO departments VALUES (1, 'Eng');`)

	_, err := d.Run(`INSERT INTO employees VALUES (100, 'Zoe', 999);`)
	if err == nil {
		t.Fatal("expected a foreign key violation")
	}
	ce, ok := err.(*errs.ConstraintError)
	if !ok {
		t.Fatalf("expected *errs.ConstraintError, got %T: %v", err, err)
	}
	if !containsSubstring(ce.Message, "外键约束失败") {
		t.Errorf("expected message to contain 外键约束失败, got: %s", ce.Message)
	}
	if !containsSubstring(ce.Error(), "智能提示") {
		t.Errorf("expected rendered error to contain 智能提示, got: %s", ce.Error())
	}

	deptRes := run(t, d, `SELECT * FROM departments;`)
	if len(deptRes.Rows) != 1 {
		t.Errorf("expected departments row count to remain 1, got %d", len(deptRes.Rows))
	}
	empRes := run(t, d, `SELECT * FROM employees;`)
	if len(empRes.Rows) != 0 {
		t.Errorf("expected employees row count to remain 0, got %d", len(empRes.Rows))
	}
}

func containsSubstring(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

func TestScenario_S3_JoinAggregationGrouping(t *testing.T) {
	d := newDB(t)
	run(t, d, `CREATE TABLE departments (dept_id INT, dept_name VARCHAR);`)
	run(t, d, `CREATE TABLE employees (emp_id INT, name VARCHAR, salary FLOAT, dept_id INT);`)
	run(t, d, `INSERT INTO departments VALUES (1, 'Eng'), (2, 'Sales');`)
	run(t, d, `INSERT INTO employees VALUES (101, 'Alice', 75000, 1), (102, 'Bob', 65000, 1), (103, 'Cara', 55000, 2);`)

	res := run(t, d, `SELECT dept_id, COUNT(*), AVG(salary) FROM employees GROUP BY dept_id ORDER BY dept_id ASC;`)
	if len(res.Rows) != 2 {
		t.Fatalf("expected 2 group rows, got %d: %v", len(res.Rows), res.Rows)
	}
	if res.Rows[0]["dept_id"] != int32(1) || res.Rows[0]["COUNT(*)"] != int32(2) {
		t.Errorf("unexpected first group: %v", res.Rows[0])
	}
	if res.Rows[1]["dept_id"] != int32(2) || res.Rows[1]["COUNT(*)"] != int32(1) {
		t.Errorf("unexpected second group: %v", res.Rows[1])
	}
}

func TestScenario_S4_PredicatePushdownPreservesResultSet(t *testing.T) {
	d := newDB(t)
	run(t, d, `CREATE TABLE departments (dept_id INT, dept_name VARCHAR);`)
	run(t, d, `CREATE TABLE employees (emp_id INT, salary FLOAT, dept_id INT);`)
	run(t, d, `INSERT INTO departments VALUES (1, 'Eng'), (2, 'Sales');`)
	run(t, d, `INSERT INTO employees VALUES (101, 75000, 1), (102, 45000, 1), (103, 65000, 2);`)

	pushed := run(t, d, `SELECT e.emp_id FROM employees e JOIN departments d ON e.dept_id = d.dept_id WHERE e.salary > 60000;`)
	if len(pushed.Rows) != 2 {
		t.Fatalf("expected 2 rows with salary > 60000, got %d: %v", len(pushed.Rows), pushed.Rows)
	}

	// A second, always-true conjunct referencing only employees AND-combines
	// onto the same scan's pushed predicate (multi-conjunct pushdown); the
	// result set must be identical to the single-conjunct form above.
	multiConjunct := run(t, d, `SELECT e.emp_id FROM employees e JOIN departments d ON e.dept_id = d.dept_id WHERE e.salary > 60000 AND e.emp_id > 0;`)
	if len(multiConjunct.Rows) != len(pushed.Rows) {
		t.Fatalf("pushdown-vs-multi-conjunct row count mismatch: %d vs %d", len(pushed.Rows), len(multiConjunct.Rows))
	}
}

func TestScenario_S6_UpdateCascade(t *testing.T) {
	d := newDB(t)
	run(t, d, `CREATE TABLE departments (dept_id INT PRIMARY KEY, dept_name VARCHAR);`)
	run(t, d, `CREATE TABLE employees (emp_id INT, dept_id INT, FOREIGN KEY (dept_id) REFERENCES departments(dept_id));`)
	run(t, d, `INSERT INTO departments VALUES (1, 'Eng');`)
	run(t, d, `INSERT INTO employees VALUES (101, 1);`)

	run(t, d, `UPDATE departments SET dept_id = 10 WHERE dept_id = 1;`)

	res := run(t, d, `SELECT dept_id FROM employees WHERE emp_id = 101;`)
	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(res.Rows))
	}
	if res.Rows[0]["dept_id"] != int32(10) {
		t.Errorf("expected cascaded dept_id=10, got %v", res.Rows[0]["dept_id"])
	}
}

func TestRunProducesFreshRunID(t *testing.T) {
	d := newDB(t)
	if d.RunID == "" {
		t.Fatal("expected a non-empty run id")
	}
}

func TestExplainPlanDoesNotMutateState(t *testing.T) {
	d := newDB(t)
	run(t, d, `CREATE TABLE users (id INT, name VARCHAR);`)
	run(t, d, `INSERT INTO users VALUES (1, 'Alice');`)

	explain := run(t, d, `EXPLAIN SELECT * FROM users WHERE id = 1;`)
	if explain.ExplainText == "" {
		t.Fatal("expected non-empty explain text")
	}

	res := run(t, d, `SELECT * FROM users;`)
	if len(res.Rows) != 1 {
		t.Fatalf("expected explain to leave the table untouched, got %d rows", len(res.Rows))
	}
}
