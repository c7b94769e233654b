package heap

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/duskdb/duskdb/internal/buffer"
	"github.com/duskdb/duskdb/internal/catalog"
	"github.com/duskdb/duskdb/internal/page"
)

// Header page field offsets, per spec.md §3.
const (
	hdrRowCount     = 0
	hdrFirstDataPg  = 4
	hdrReserved     = 8
	hdrColumnCount  = 12
	hdrColumnsStart = 16
)

// Data page field offsets, per spec.md §3.
const (
	dataLiveCount = 0
	dataNextPage  = 4
	dataRecStart  = 8
)

// Heap is the Heap File: it owns, for every table, the ordered list of
// page ids (header first) and the buffer pool/page manager beneath it.
type Heap struct {
	mu      sync.Mutex
	pool    *buffer.Pool
	mapPath string
	tables  map[string][]page.ID // lower(name) -> [header, data...]
	names   map[string]string
}

// Open loads (or initializes) the table->page-list map at mapPath, in front
// of pool.
func Open(pool *buffer.Pool, mapPath string) (*Heap, error) {
	h := &Heap{pool: pool, mapPath: mapPath, tables: make(map[string][]page.ID), names: make(map[string]string)}
	b, err := os.ReadFile(mapPath)
	if err != nil {
		if os.IsNotExist(err) {
			return h, nil
		}
		return nil, fmt.Errorf("heap: read table map %s: %w", mapPath, err)
	}
	var doc map[string][]int32
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("heap: parse table map %s: %w", mapPath, err)
	}
	for name, ids := range doc {
		pids := make([]page.ID, len(ids))
		for i, id := range ids {
			pids[i] = page.ID(id)
		}
		key := strings.ToLower(name)
		h.tables[key] = pids
		h.names[key] = name
	}
	return h, nil
}

func (h *Heap) persistMap() error {
	doc := make(map[string][]int32, len(h.tables))
	for key, ids := range h.tables {
		out := make([]int32, len(ids))
		for i, id := range ids {
			out[i] = int32(id)
		}
		doc[h.names[key]] = out
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("heap: marshal table map: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(h.mapPath), 0o755); err != nil {
		return fmt.Errorf("heap: mkdir: %w", err)
	}
	tmp := h.mapPath + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("heap: write temp table map: %w", err)
	}
	return os.Rename(tmp, h.mapPath)
}

// CreateTable allocates a header page, writes its counts/chain sentinels and
// column descriptor block, and registers the table's page list.
func (h *Heap) CreateTable(name string, schema []catalog.Column) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := strings.ToLower(name)
	if _, exists := h.tables[key]; exists {
		return fmt.Errorf("heap: table %q already has pages allocated", name)
	}

	hdr, err := h.pool.Allocate()
	if err != nil {
		return fmt.Errorf("heap: allocate header page for %q: %w", name, err)
	}
	if err := hdr.PutInt32(hdrRowCount, 0); err != nil {
		return err
	}
	if err := hdr.PutInt32(hdrFirstDataPg, int32(page.NoPage)); err != nil {
		return err
	}
	if err := hdr.PutInt32(hdrReserved, 0); err != nil {
		return err
	}
	colBlock := encodeColumnDescriptors(schema)
	if err := hdr.PutInt32(hdrColumnCount, int32(len(schema))); err != nil {
		return err
	}
	if err := hdr.WriteBytes(hdrColumnsStart, colBlock); err != nil {
		return fmt.Errorf("heap: header page too small for %d columns: %w", len(schema), err)
	}

	h.tables[key] = []page.ID{hdr.ID}
	h.names[key] = name
	return h.persistMap()
}

// DropTable frees every page owned by name and removes it from the map.
func (h *Heap) DropTable(name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := strings.ToLower(name)
	ids, ok := h.tables[key]
	if !ok {
		return fmt.Errorf("heap: table %q has no pages to drop", name)
	}
	for _, id := range ids {
		if err := h.pool.Free(id); err != nil {
			return fmt.Errorf("heap: free page %d for table %q: %w", id, name, err)
		}
	}
	delete(h.tables, key)
	delete(h.names, key)
	return h.persistMap()
}

func (h *Heap) header(name string) (*page.Page, []catalog.Column, error) {
	key := strings.ToLower(name)
	ids, ok := h.tables[key]
	if !ok || len(ids) == 0 {
		return nil, nil, fmt.Errorf("heap: table %q does not exist", name)
	}
	hdr, err := h.pool.Get(ids[0])
	if err != nil {
		return nil, nil, err
	}
	if hdr == nil {
		return nil, nil, fmt.Errorf("heap: header page for table %q is missing on disk", name)
	}
	n, err := hdr.Int32(hdrColumnCount)
	if err != nil {
		return nil, nil, err
	}
	colBlock, err := hdr.ReadBytes(hdrColumnsStart, page.Size-hdrColumnsStart)
	if err != nil {
		return nil, nil, err
	}
	schema, err := decodeColumnDescriptors(colBlock, int(n))
	if err != nil {
		return nil, nil, fmt.Errorf("heap: corrupt header for table %q: %w", name, err)
	}
	return hdr, schema, nil
}

// InsertRecord walks the data-page chain for name, placing rec on the first
// page with enough free space, else allocating a new tail page, per §4.3.
func (h *Heap) InsertRecord(name string, rec Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	hdr, schema, err := h.header(name)
	if err != nil {
		return err
	}
	encoded, err := encodeRecord(schema, rec)
	if err != nil {
		return fmt.Errorf("heap: encode record for table %q: %w", name, err)
	}
	if len(encoded) > page.Size-dataRecStart {
		return fmt.Errorf("heap: record of %d bytes exceeds page capacity for table %q", len(encoded), name)
	}

	firstID, err := hdr.Int32(hdrFirstDataPg)
	if err != nil {
		return err
	}

	var lastPage *page.Page
	cur := page.ID(firstID)
	for cur != page.NoPage {
		dp, err := h.pool.Get(cur)
		if err != nil {
			return err
		}
		if dp == nil {
			return fmt.Errorf("heap: broken page chain for table %q: page %d missing", name, cur)
		}
		freeOff, err := h.freeOffset(dp, schema)
		if err != nil {
			return err
		}
		if page.Size-freeOff >= len(encoded) {
			if err := dp.WriteBytes(freeOff, encoded); err != nil {
				return err
			}
			count, err := dp.Int32(dataLiveCount)
			if err != nil {
				return err
			}
			if err := dp.PutInt32(dataLiveCount, count+1); err != nil {
				return err
			}
			return h.bumpRowCount(hdr, name, 1)
		}
		lastPage = dp
		next, err := dp.Int32(dataNextPage)
		if err != nil {
			return err
		}
		cur = page.ID(next)
	}

	// No existing page accepted the record: allocate a new tail page.
	newPg, err := h.pool.Allocate()
	if err != nil {
		return fmt.Errorf("heap: allocate data page for table %q: %w", name, err)
	}
	if err := newPg.PutInt32(dataLiveCount, 0); err != nil {
		return err
	}
	if err := newPg.PutInt32(dataNextPage, int32(page.NoPage)); err != nil {
		return err
	}
	if err := newPg.WriteBytes(dataRecStart, encoded); err != nil {
		return err
	}
	if err := newPg.PutInt32(dataLiveCount, 1); err != nil {
		return err
	}

	key := strings.ToLower(name)
	h.tables[key] = append(h.tables[key], newPg.ID)
	if err := h.persistMap(); err != nil {
		return err
	}

	if firstID == int32(page.NoPage) {
		if err := hdr.PutInt32(hdrFirstDataPg, int32(newPg.ID)); err != nil {
			return err
		}
	} else if lastPage != nil {
		if err := lastPage.PutInt32(dataNextPage, int32(newPg.ID)); err != nil {
			return err
		}
	}
	return h.bumpRowCount(hdr, name, 1)
}

func (h *Heap) bumpRowCount(hdr *page.Page, name string, delta int32) error {
	cur, err := hdr.Int32(hdrRowCount)
	if err != nil {
		return err
	}
	return hdr.PutInt32(hdrRowCount, cur+delta)
}

// freeOffset walks a data page's live records to find the cursor at which a
// new record can be appended.
func (h *Heap) freeOffset(dp *page.Page, schema []catalog.Column) (int, error) {
	count, err := dp.Int32(dataLiveCount)
	if err != nil {
		return 0, err
	}
	buf := dp.Bytes()
	off := dataRecStart
	for i := int32(0); i < count; i++ {
		_, next, err := decodeRecord(schema, buf, off)
		if err != nil {
			return 0, fmt.Errorf("heap: corrupt record while scanning free space: %w", err)
		}
		off = next
	}
	return off, nil
}

// walkPages returns the data-page ids for name by following on-page next
// pointers starting at the header's first_data_page_id.
func (h *Heap) walkPages(hdr *page.Page) ([]page.ID, error) {
	first, err := hdr.Int32(hdrFirstDataPg)
	if err != nil {
		return nil, err
	}
	var ids []page.ID
	cur := page.ID(first)
	for cur != page.NoPage {
		ids = append(ids, cur)
		dp, err := h.pool.Get(cur)
		if err != nil {
			return nil, err
		}
		if dp == nil {
			return nil, fmt.Errorf("heap: broken page chain: page %d missing", cur)
		}
		next, err := dp.Int32(dataNextPage)
		if err != nil {
			return nil, err
		}
		cur = page.ID(next)
	}
	return ids, nil
}

// ReadRecords scans every data page for name, decoding each live record. If
// pred is non-nil it is pushed down: only matching records are returned.
func (h *Heap) ReadRecords(name string, pred *Predicate) ([]Record, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	hdr, schema, err := h.header(name)
	if err != nil {
		return nil, err
	}
	colIdx := -1
	if pred != nil {
		for i, c := range schema {
			if strings.EqualFold(c.Name, pred.Column) {
				colIdx = i
				break
			}
		}
		if colIdx == -1 {
			return nil, fmt.Errorf("heap: pushed predicate references unknown column %q", pred.Column)
		}
	}

	ids, err := h.walkPages(hdr)
	if err != nil {
		return nil, err
	}
	var out []Record
	for _, id := range ids {
		dp, err := h.pool.Get(id)
		if err != nil {
			return nil, err
		}
		recs, err := h.decodePage(dp, schema)
		if err != nil {
			return nil, err
		}
		for _, r := range recs {
			if pred == nil {
				out = append(out, r)
				continue
			}
			ok, err := pred.Matches(r, colIdx)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (h *Heap) decodePage(dp *page.Page, schema []catalog.Column) ([]Record, error) {
	count, err := dp.Int32(dataLiveCount)
	if err != nil {
		return nil, err
	}
	buf := dp.Bytes()
	off := dataRecStart
	recs := make([]Record, 0, count)
	for i := int32(0); i < count; i++ {
		r, next, err := decodeRecord(schema, buf, off)
		if err != nil {
			return nil, fmt.Errorf("heap: corrupt record on page %d: %w", dp.ID, err)
		}
		recs = append(recs, r)
		off = next
	}
	return recs, nil
}

// rewritePage overwrites a data page's record area from offset 8 with kept,
// zero-filling the tail and updating the per-page live count.
func (h *Heap) rewritePage(dp *page.Page, schema []catalog.Column, kept []Record) error {
	off := dataRecStart
	for _, r := range kept {
		enc, err := encodeRecord(schema, r)
		if err != nil {
			return err
		}
		if err := dp.WriteBytes(off, enc); err != nil {
			return fmt.Errorf("heap: rewritten page overflow: %w", err)
		}
		off += len(enc)
	}
	if err := dp.ZeroFrom(off); err != nil {
		return err
	}
	return dp.PutInt32(dataLiveCount, int32(len(kept)))
}

// DeleteRecords removes every record matching pred (nil matches all),
// rewriting each touched page and the header's total row count. Returns the
// number of rows deleted.
func (h *Heap) DeleteRecords(name string, pred *Predicate) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	hdr, schema, err := h.header(name)
	if err != nil {
		return 0, err
	}
	colIdx, err := predicateColumnIndex(schema, pred)
	if err != nil {
		return 0, err
	}

	ids, err := h.walkPages(hdr)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, id := range ids {
		dp, err := h.pool.Get(id)
		if err != nil {
			return 0, err
		}
		recs, err := h.decodePage(dp, schema)
		if err != nil {
			return 0, err
		}
		var kept []Record
		for _, r := range recs {
			match := pred == nil
			if pred != nil {
				ok, err := pred.Matches(r, colIdx)
				if err != nil {
					return 0, err
				}
				match = ok
			}
			if match {
				deleted++
			} else {
				kept = append(kept, r)
			}
		}
		if len(kept) != len(recs) {
			if err := h.rewritePage(dp, schema, kept); err != nil {
				return 0, err
			}
		}
	}
	if deleted > 0 {
		if err := h.bumpRowCount(hdr, name, int32(-deleted)); err != nil {
			return 0, err
		}
	}
	return deleted, nil
}

// Assignment sets Column to Value on every record matching a predicate,
// used by UpdateRecords.
type Assignment struct {
	Column string
	Value  any
}

// UpdateRecords applies assignments to every record matching pred (nil
// matches all), using the same page-rewrite strategy as DeleteRecords.
// Returns the number of rows updated.
func (h *Heap) UpdateRecords(name string, assignments []Assignment, pred *Predicate) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	hdr, schema, err := h.header(name)
	if err != nil {
		return 0, err
	}
	colIdx, err := predicateColumnIndex(schema, pred)
	if err != nil {
		return 0, err
	}
	assignIdx := make([]int, len(assignments))
	for i, a := range assignments {
		idx := -1
		for j, c := range schema {
			if strings.EqualFold(c.Name, a.Column) {
				idx = j
				break
			}
		}
		if idx == -1 {
			return 0, fmt.Errorf("heap: assignment references unknown column %q", a.Column)
		}
		assignIdx[i] = idx
	}

	ids, err := h.walkPages(hdr)
	if err != nil {
		return 0, err
	}
	updated := 0
	for _, id := range ids {
		dp, err := h.pool.Get(id)
		if err != nil {
			return 0, err
		}
		recs, err := h.decodePage(dp, schema)
		if err != nil {
			return 0, err
		}
		changed := false
		for i, r := range recs {
			match := pred == nil
			if pred != nil {
				ok, err := pred.Matches(r, colIdx)
				if err != nil {
					return 0, err
				}
				match = ok
			}
			if !match {
				continue
			}
			updated++
			changed = true
			for k, a := range assignments {
				r[assignIdx[k]] = a.Value
			}
			recs[i] = r
		}
		if changed {
			if err := h.rewritePage(dp, schema, recs); err != nil {
				return 0, err
			}
		}
	}
	return updated, nil
}

func predicateColumnIndex(schema []catalog.Column, pred *Predicate) (int, error) {
	if pred == nil {
		return -1, nil
	}
	for i, c := range schema {
		if strings.EqualFold(c.Name, pred.Column) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("heap: predicate references unknown column %q", pred.Column)
}

// Schema returns the decoded column descriptors for name, for callers (the
// executor) that need the schema without reading rows.
func (h *Heap) Schema(name string) ([]catalog.Column, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, schema, err := h.header(name)
	return schema, err
}

// RowCount returns the header page's total row count for name.
func (h *Heap) RowCount(name string) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	hdr, _, err := h.header(name)
	if err != nil {
		return 0, err
	}
	n, err := hdr.Int32(hdrRowCount)
	return int(n), err
}

// PageIDs returns the full owned page list (header first) for name, used by
// invariant tests and introspection.
func (h *Heap) PageIDs(name string) []page.ID {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := h.tables[strings.ToLower(name)]
	out := make([]page.ID, len(ids))
	copy(out, ids)
	return out
}

// FlushAll writes every dirty buffered page back to disk through the
// underlying buffer pool, per §5's "every write-producing statement ends
// with flush_all" rule.
func (h *Heap) FlushAll() error {
	return h.pool.FlushAll()
}
