package pipeline

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bggwatch/bggwatch/models"
)

func TestDatasetWritesJSONL(t *testing.T) {
	dir := t.TempDir()

	ds, err := NewDataset(dir)
	if err != nil {
		t.Fatalf("create dataset: %v", err)
	}

	rec := &models.ItemRecord{
		ExternalID:  "42",
		Name:        "Sample Game",
		Designers:   []string{"Alice"},
		SourceURL:   "https://example.test/boardgame/42/sample-game",
		ExtractedAt: time.Date(2026, 8, 30, 13, 0, 0, 0, time.UTC),
	}
	row := &models.ListingRow{
		Name:             "Sample Game",
		AbsoluteURL:      "https://example.test/boardgame/42/sample-game",
		Rank:             "1",
		SourceListingURL: "https://example.test/hot",
		ExtractedAt:      time.Date(2026, 8, 30, 13, 0, 0, 0, time.UTC),
	}

	if err := ds.WriteItems([]*models.ItemRecord{rec}); err != nil {
		t.Fatalf("write items: %v", err)
	}
	if err := ds.WriteRows([]*models.ListingRow{row, row}); err != nil {
		t.Fatalf("write rows: %v", err)
	}
	if err := ds.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := ds.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var decoded models.ItemRecord
	if got := countJSONLines(t, filepath.Join(dir, "items.jsonl"), &decoded); got != 1 {
		t.Fatalf("item lines = %d, want 1", got)
	}
	if decoded.ExternalID != "42" || decoded.Designers[0] != "Alice" {
		t.Fatalf("decoded item = %+v", decoded)
	}

	var decodedRow models.ListingRow
	if got := countJSONLines(t, filepath.Join(dir, "rows.jsonl"), &decodedRow); got != 2 {
		t.Fatalf("row lines = %d, want 2", got)
	}
	if decodedRow.Rank != "1" {
		t.Fatalf("decoded row = %+v", decodedRow)
	}
}

func countJSONLines(t *testing.T, path string, out any) int {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if err := json.Unmarshal(scanner.Bytes(), out); err != nil {
			t.Fatalf("invalid json line in %s: %v", path, err)
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan %s: %v", path, err)
	}
	return count
}

func TestDatasetValidateEmpty(t *testing.T) {
	dir := t.TempDir()
	ds, err := NewDataset(dir)
	if err != nil {
		t.Fatalf("create dataset: %v", err)
	}
	if err := ds.Validate(); err == nil {
		t.Fatalf("empty dataset should fail validation")
	}
}

func TestFileBlobStorePutOverwrites(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileBlobStore(dir)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}

	type payload struct {
		Rev int `json:"rev"`
	}

	if err := store.Put("items/42", payload{Rev: 1}); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if err := store.Put("items/42", payload{Rev: 2}); err != nil {
		t.Fatalf("second put: %v", err)
	}

	var got payload
	if err := store.Get("items/42", &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Rev != 2 {
		t.Fatalf("rev = %d, want last write to win", got.Rev)
	}

	// One file per key, stored under the key's directory.
	entries, err := os.ReadDir(filepath.Join(dir, "items"))
	if err != nil {
		t.Fatalf("read blob dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("blob files = %d, want 1", len(entries))
	}
}

func TestFileBlobStoreRejectsBadKeys(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileBlobStore(dir)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}

	for _, key := range []string{"", "../escape", "/abs/path"} {
		if err := store.Put(key, struct{}{}); err == nil {
			t.Errorf("key %q should be rejected", key)
		}
	}
}
