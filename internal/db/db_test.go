package db

import (
	"path/filepath"
	"testing"
	"time"
)

func TestOpenMemory(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	defer d.Close()

	tables := []string{
		"documents", "correspondents", "doctypes", "tags",
		"document_tags", "document_relations", "processing_logs",
	}

	for _, table := range tables {
		var count int
		err := d.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count)
		if err != nil {
			t.Errorf("table %s: %v", table, err)
		}
	}
}

func TestMigrateIdempotent(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	defer d.Close()

	// Running migrate again should be a no-op.
	if err := d.migrate(); err != nil {
		t.Fatalf("second migrate() error: %v", err)
	}
}

func TestOpenFileReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "docvault.db")

	d, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	now := FormatTime(time.Now())
	if _, err := d.Exec(`INSERT INTO tags (id, name, name_key, created_at) VALUES ('t1', 'Invoice', 'invoice', ?)`, now); err != nil {
		t.Fatalf("insert: %v", err)
	}
	d.Close()

	d, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer d.Close()

	var name string
	if err := d.QueryRow(`SELECT name FROM tags WHERE id = 't1'`).Scan(&name); err != nil {
		t.Fatalf("select after reopen: %v", err)
	}
	if name != "Invoice" {
		t.Errorf("got %q, want %q", name, "Invoice")
	}
}

func TestForeignKeysEnforced(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer d.Close()

	_, err = d.Exec(`INSERT INTO document_tags (document_id, tag_id) VALUES ('missing', 'missing')`)
	if err == nil {
		t.Error("expected foreign key violation")
	}
}

func TestUniqueNameKeys(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer d.Close()

	now := FormatTime(time.Now())
	if _, err := d.Exec(`INSERT INTO correspondents (id, name, name_key, created_at) VALUES ('c1', 'ACME GmbH', 'acme gmbh', ?)`, now); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := d.Exec(`INSERT INTO correspondents (id, name, name_key, created_at) VALUES ('c2', 'Acme GmbH', 'acme gmbh', ?)`, now); err == nil {
		t.Error("expected unique violation for duplicate name key")
	}
}

func TestTimeRoundTrip(t *testing.T) {
	in := time.Date(2024, 3, 9, 14, 5, 6, 123456000, time.FixedZone("CET", 3600))
	got, err := ParseTime(FormatTime(in))
	if err != nil {
		t.Fatalf("ParseTime: %v", err)
	}
	if !got.Equal(in) {
		t.Errorf("got %v, want %v", got, in)
	}

	if _, err := ParseTime("2024-03-09 13:05:06"); err != nil {
		t.Errorf("expected sqlite datetime layout to parse: %v", err)
	}
	if _, err := ParseTime("yesterday"); err == nil {
		t.Error("expected error for garbage input")
	}
	if TimePtr(NullString("")) != nil {
		t.Error("expected nil for NULL")
	}
}
