package store

import (
	"path/filepath"
	"testing"

	"example.com/astgate/internal/asterix"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "records.db"))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testRecord(cat int, ts float64, status asterix.Status) *asterix.Record {
	return &asterix.Record{
		Category:  cat,
		Timestamp: ts,
		Length:    5,
		Status:    status,
		FSPEC:     []byte{0x80},
		CRC:       0xDEADBEEF,
	}
}

func TestInsertAndQuery(t *testing.T) {
	db := openTestDB(t)

	id1, err := db.Insert(testRecord(48, 100.5, asterix.StatusComplete), `{"I010":{"SAC":25}}`)
	if err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	id2, err := db.Insert(testRecord(34, 200.5, asterix.StatusTruncated), `{}`)
	if err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	if id2 <= id1 {
		t.Fatalf("ids not increasing: %d then %d", id1, id2)
	}

	all, err := db.Query(QueryParams{})
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("records = %d, want 2", len(all))
	}
	// Newest first.
	if all[0].ID != id2 || all[1].ID != id1 {
		t.Fatalf("order = [%d %d], want [%d %d]", all[0].ID, all[1].ID, id2, id1)
	}
	if all[1].Category != 48 || all[1].Status != "complete" {
		t.Fatalf("row = cat %d status %q, want cat 48 status complete", all[1].Category, all[1].Status)
	}
	if all[1].FSPEC != "80" {
		t.Fatalf("fspec = %q, want 80", all[1].FSPEC)
	}
	if all[1].CRC != 0xDEADBEEF {
		t.Fatalf("crc = %08X, want DEADBEEF", all[1].CRC)
	}
	if all[1].ItemsJSON != `{"I010":{"SAC":25}}` {
		t.Fatalf("items = %q", all[1].ItemsJSON)
	}
}

func TestQueryFilters(t *testing.T) {
	db := openTestDB(t)
	mustInsert := func(cat int, ts float64, status asterix.Status) {
		t.Helper()
		if _, err := db.Insert(testRecord(cat, ts, status), "{}"); err != nil {
			t.Fatalf("Insert returned error: %v", err)
		}
	}
	mustInsert(48, 100, asterix.StatusComplete)
	mustInsert(48, 200, asterix.StatusTruncated)
	mustInsert(34, 300, asterix.StatusComplete)

	byCat, err := db.Query(QueryParams{Category: 48})
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if len(byCat) != 2 {
		t.Fatalf("category filter returned %d records, want 2", len(byCat))
	}

	byStatus, err := db.Query(QueryParams{Status: "truncated"})
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if len(byStatus) != 1 || byStatus[0].Timestamp != 200 {
		t.Fatalf("status filter = %+v, want one record at ts 200", byStatus)
	}

	since, err := db.Query(QueryParams{Since: 150})
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if len(since) != 2 {
		t.Fatalf("since filter returned %d records, want 2", len(since))
	}

	limited, err := db.Query(QueryParams{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if len(limited) != 1 || limited[0].Timestamp != 200 {
		t.Fatalf("limit/offset = %+v, want the middle record", limited)
	}
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)

	empty, err := db.GetStats()
	if err != nil {
		t.Fatalf("GetStats returned error: %v", err)
	}
	if empty.TotalRecords != 0 || empty.TotalBytes != 0 {
		t.Fatalf("empty stats = %+v", empty)
	}

	for _, r := range []*asterix.Record{
		testRecord(48, 100, asterix.StatusComplete),
		testRecord(48, 300, asterix.StatusTruncated),
		testRecord(34, 200, asterix.StatusComplete),
	} {
		if _, err := db.Insert(r, "{}"); err != nil {
			t.Fatalf("Insert returned error: %v", err)
		}
	}

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("GetStats returned error: %v", err)
	}
	if stats.TotalRecords != 3 {
		t.Fatalf("total = %d, want 3", stats.TotalRecords)
	}
	if stats.TotalBytes != 15 {
		t.Fatalf("bytes = %d, want 15", stats.TotalBytes)
	}
	if stats.ByCategory[48] != 2 || stats.ByCategory[34] != 1 {
		t.Fatalf("by category = %v", stats.ByCategory)
	}
	if stats.Truncated != 1 {
		t.Fatalf("truncated = %d, want 1", stats.Truncated)
	}
	if stats.FirstSeen != 100 || stats.LastSeen != 300 {
		t.Fatalf("span = %v..%v, want 100..300", stats.FirstSeen, stats.LastSeen)
	}
}
