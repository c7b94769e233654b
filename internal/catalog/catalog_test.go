package catalog

import (
	"path/filepath"
	"testing"
)

func newCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "catalog.json"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return c
}

func TestCreateTableAndPersist(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	c, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	cols := []Column{{Name: "id", Type: Int}, {Name: "name", Type: Varchar, VarcharN: 32}}
	if err := c.CreateTable("users", cols); err != nil {
		t.Fatalf("create table: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reopened.TableExists("USERS") {
		t.Fatalf("expected case-insensitive table lookup to find 'users'")
	}
	entry, _ := reopened.GetTableInfo("users")
	if len(entry.Columns) != 2 {
		t.Fatalf("expected 2 columns after reload, got %d", len(entry.Columns))
	}
}

func TestCreateTableRejectsDuplicateColumns(t *testing.T) {
	c := newCatalog(t)
	err := c.CreateTable("t", []Column{{Name: "a", Type: Int}, {Name: "a", Type: Int}})
	if err == nil {
		t.Fatal("expected error for duplicate column names")
	}
}

func TestCreateTableRejectsExisting(t *testing.T) {
	c := newCatalog(t)
	cols := []Column{{Name: "a", Type: Int}}
	if err := c.CreateTable("t", cols); err != nil {
		t.Fatal(err)
	}
	if err := c.CreateTable("t", cols); err == nil {
		t.Fatal("expected error creating an already-existing table")
	}
}

func TestForeignKeyRequiresExistingTargets(t *testing.T) {
	c := newCatalog(t)
	if err := c.CreateTable("employees", []Column{{Name: "dept_id", Type: Int}}); err != nil {
		t.Fatal(err)
	}
	if err := c.AddConstraint("employees", ForeignKey{LocalCol: "dept_id", RefTable: "departments", RefCol: "dept_id"}); err == nil {
		t.Fatal("expected error: referenced table does not exist yet")
	}
	if err := c.CreateTable("departments", []Column{{Name: "dept_id", Type: Int}}); err != nil {
		t.Fatal(err)
	}
	if err := c.AddConstraint("employees", ForeignKey{LocalCol: "dept_id", RefTable: "departments", RefCol: "dept_id"}); err != nil {
		t.Fatalf("expected constraint to install once target exists: %v", err)
	}

	refs := c.FindReferencingTables("departments", "dept_id")
	if len(refs) != 1 || refs[0].LocalCol != "dept_id" {
		t.Fatalf("expected employees.dept_id to be found as a referencer, got %+v", refs)
	}
}

func TestSnapshotIsIndependentOfLaterMutation(t *testing.T) {
	c := newCatalog(t)
	if err := c.CreateTable("t", []Column{{Name: "a", Type: Int}}); err != nil {
		t.Fatal(err)
	}
	snap := c.Snapshot()
	if err := c.UpdateRowCount("t", 5); err != nil {
		t.Fatal(err)
	}
	entry, _ := snap.GetTableInfo("t")
	if entry.RowCount != 0 {
		t.Fatalf("snapshot must not observe later mutation, got row_count=%d", entry.RowCount)
	}
}
