package pipeline

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bggwatch/bggwatch/models"
)

// Sink receives finished records. Item records and listing rows land in
// separate append-only outputs; the sink never updates or deletes what it
// has written.
type Sink interface {
	WriteItems(items []*models.ItemRecord) error
	WriteRows(rows []*models.ListingRow) error
	Close() error
	Validate() error
}

// Dataset is a file-backed Sink writing newline-delimited JSON, one file
// for item records and one for listing rows.
type Dataset struct {
	mu       sync.Mutex
	itemFile *os.File
	itemBuf  *bufio.Writer
	itemEnc  *json.Encoder
	rowFile  *os.File
	rowBuf   *bufio.Writer
	rowEnc   *json.Encoder
}

// NewDataset creates items.jsonl and rows.jsonl under dir, truncating any
// previous run's output.
func NewDataset(dir string) (*Dataset, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create dataset directory %q: %w", dir, err)
	}

	itemFile, err := os.Create(filepath.Join(dir, "items.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("create items file: %w", err)
	}
	rowFile, err := os.Create(filepath.Join(dir, "rows.jsonl"))
	if err != nil {
		itemFile.Close()
		return nil, fmt.Errorf("create rows file: %w", err)
	}

	itemBuf := bufio.NewWriter(itemFile)
	rowBuf := bufio.NewWriter(rowFile)
	return &Dataset{
		itemFile: itemFile,
		itemBuf:  itemBuf,
		itemEnc:  json.NewEncoder(itemBuf),
		rowFile:  rowFile,
		rowBuf:   rowBuf,
		rowEnc:   json.NewEncoder(rowBuf),
	}, nil
}

// WriteItems appends item records in JSONL format.
func (d *Dataset) WriteItems(items []*models.ItemRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, item := range items {
		if err := d.itemEnc.Encode(item); err != nil {
			return fmt.Errorf("encode item record: %w", err)
		}
	}
	if err := d.itemBuf.Flush(); err != nil {
		return fmt.Errorf("flush item records: %w", err)
	}
	return nil
}

// WriteRows appends listing rows in JSONL format.
func (d *Dataset) WriteRows(rows []*models.ListingRow) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, row := range rows {
		if err := d.rowEnc.Encode(row); err != nil {
			return fmt.Errorf("encode listing row: %w", err)
		}
	}
	if err := d.rowBuf.Flush(); err != nil {
		return fmt.Errorf("flush listing rows: %w", err)
	}
	return nil
}

// Close flushes buffers and closes both files.
func (d *Dataset) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	if err := d.itemBuf.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("flush items: %w", err))
	}
	if err := d.itemFile.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close items: %w", err))
	}
	if err := d.rowBuf.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("flush rows: %w", err))
	}
	if err := d.rowFile.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close rows: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close dataset: %v", errs)
	}
	return nil
}

// Validate ensures the run produced at least one record of either kind.
func (d *Dataset) Validate() error {
	itemInfo, err := os.Stat(d.itemFile.Name())
	if err != nil {
		return fmt.Errorf("stat items file: %w", err)
	}
	rowInfo, err := os.Stat(d.rowFile.Name())
	if err != nil {
		return fmt.Errorf("stat rows file: %w", err)
	}
	if itemInfo.Size() == 0 && rowInfo.Size() == 0 {
		return fmt.Errorf("dataset is empty")
	}
	return nil
}
