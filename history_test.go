package main

import (
	"fmt"
	"path/filepath"
	"testing"
)

func newTestHistoryStore(t *testing.T) *historyStore {
	t.Helper()
	store, err := openHistoryStoreAt(filepath.Join(t.TempDir(), "history.sqlite"))
	if err != nil {
		t.Fatalf("open history store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestHistoryTouchAndList(t *testing.T) {
	store := newTestHistoryStore(t)

	if err := store.Touch("/data/report.xlsx"); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	files, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("files = %+v", files)
	}
	if files[0].Path != "/data/report.xlsx" || files[0].Label != "report.xlsx" {
		t.Errorf("entry = %+v", files[0])
	}

	// Touching again must not create a duplicate.
	if err := store.Touch("/data/report.xlsx"); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	files, _ = store.List()
	if len(files) != 1 {
		t.Errorf("duplicate entry after repeated touch: %+v", files)
	}
}

func TestHistoryListOrdering(t *testing.T) {
	store := newTestHistoryStore(t)

	// Seed with explicit timestamps; CURRENT_TIMESTAMP only has second
	// precision, too coarse for back-to-back touches.
	seed := []struct {
		path string
		at   string
	}{
		{"/a.xlsx", "2026-01-01 10:00:00"},
		{"/b.xlsx", "2026-01-01 10:00:02"},
		{"/c.xlsx", "2026-01-01 10:00:01"},
	}
	for _, s := range seed {
		if _, err := store.db.Exec(
			`INSERT INTO recent_files (path, label, opened_at) VALUES (?, ?, ?)`,
			s.path, labelForPath(s.path), s.at); err != nil {
			t.Fatal(err)
		}
	}

	files, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"/b.xlsx", "/c.xlsx", "/a.xlsx"}
	if len(files) != len(want) {
		t.Fatalf("files = %+v", files)
	}
	for i, path := range want {
		if files[i].Path != path {
			t.Errorf("files[%d] = %q, want %q", i, files[i].Path, path)
		}
	}
}

func TestHistoryListLimit(t *testing.T) {
	store := newTestHistoryStore(t)
	for i := 0; i < recentFileLimit+5; i++ {
		if _, err := store.db.Exec(
			`INSERT INTO recent_files (path, label, opened_at) VALUES (?, ?, ?)`,
			fmt.Sprintf("/f%02d.xlsx", i), "f", fmt.Sprintf("2026-01-01 10:00:%02d", i)); err != nil {
			t.Fatal(err)
		}
	}
	files, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != recentFileLimit {
		t.Errorf("len = %d, want %d", len(files), recentFileLimit)
	}
}

func TestHistoryRemove(t *testing.T) {
	store := newTestHistoryStore(t)
	_ = store.Touch("/gone.xlsx")
	if err := store.Remove("/gone.xlsx"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	files, _ := store.List()
	if len(files) != 0 {
		t.Errorf("files = %+v after remove", files)
	}
}

func TestHistoryNilStoreIsSafe(t *testing.T) {
	var store *historyStore
	if err := store.Touch("/x.xlsx"); err != nil {
		t.Errorf("Touch on nil store: %v", err)
	}
	if files, err := store.List(); err != nil || files != nil {
		t.Errorf("List on nil store: %v %v", files, err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("Close on nil store: %v", err)
	}
}
