// Package buffer implements the Buffer Pool: a bounded in-memory cache of
// pages in front of the Page Manager, with a selectable replacement policy.
//
// What: a page_id -> Page cache with LRU or FIFO eviction, dirty tracking,
// and flush operations.
// How: container/list backs the recency/insertion ordering, keyed by
// page.ID; eviction writes a dirty victim back through the Page Manager
// before dropping it.
// Why: separating this from the Page Manager keeps I/O batching and
// replacement policy swappable — a Clock or LFU policy can be added later
// without disturbing external contracts.
package buffer

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/duskdb/duskdb/internal/page"
)

// Policy selects the eviction discipline.
type Policy int

const (
	// PolicyLRU evicts the least-recently-used page; hits reorder.
	PolicyLRU Policy = iota
	// PolicyFIFO evicts in insertion order; hits do not reorder.
	PolicyFIFO
)

func (p Policy) String() string {
	switch p {
	case PolicyLRU:
		return "LRU"
	case PolicyFIFO:
		return "FIFO"
	default:
		return "Unknown"
	}
}

// Stats reports cumulative pool activity.
type Stats struct {
	Hits     int64
	Misses   int64
	Size     int
	Capacity int
	Policy   Policy
}

type frame struct {
	pg  *page.Page
	elt *list.Element
}

// Pool is a bounded page cache with LRU or FIFO eviction.
//
// Capacity <= 0 disables the cap entirely (no eviction).
type Pool struct {
	mu       sync.Mutex
	mgr      *page.Manager
	policy   Policy
	capacity int

	frames map[page.ID]*frame
	order  *list.List // front = most-recently-used (LRU) or most-recently-inserted (FIFO)

	hits, misses int64
}

// New creates a buffer pool of the given capacity and policy in front of mgr.
func New(mgr *page.Manager, capacity int, policy Policy) *Pool {
	return &Pool{
		mgr:      mgr,
		policy:   policy,
		capacity: capacity,
		frames:   make(map[page.ID]*frame),
		order:    list.New(),
	}
}

func (p *Pool) capped() bool { return p.capacity > 0 }

// Get returns the cached page for id, loading it via the Page Manager on a
// miss. Returns (nil, nil) if the page does not exist anywhere.
func (p *Pool) Get(id page.ID) (*page.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if f, ok := p.frames[id]; ok {
		p.hits++
		if p.policy == PolicyLRU {
			p.order.MoveToFront(f.elt)
		}
		return f.pg, nil
	}

	p.misses++
	pg, err := p.mgr.Read(id)
	if err != nil {
		return nil, err
	}
	if pg == nil {
		return nil, nil
	}
	p.insert(pg)
	if err := p.evictIfOverLocked(); err != nil {
		return nil, err
	}
	return pg, nil
}

// Allocate delegates to the Page Manager, caches the fresh page as dirty
// (its on-disk image was just written by Manager.Allocate, but duskdb treats
// a newly-allocated page as logically dirty until the caller's header/data
// initialization is flushed), and evicts if over capacity.
func (p *Pool) Allocate() (*page.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pg, err := p.mgr.Allocate()
	if err != nil {
		return nil, err
	}
	pg.MarkDirty()
	p.insert(pg)
	if err := p.evictIfOverLocked(); err != nil {
		return nil, err
	}
	return pg, nil
}

func (p *Pool) insert(pg *page.Page) {
	elt := p.order.PushFront(pg.ID)
	p.frames[pg.ID] = &frame{pg: pg, elt: elt}
}

// evictIfOverLocked evicts from the back of the order list until the pool is
// within capacity. Must be called with p.mu held.
func (p *Pool) evictIfOverLocked() error {
	if !p.capped() {
		return nil
	}
	for len(p.frames) > p.capacity {
		back := p.order.Back()
		if back == nil {
			break
		}
		id := back.Value.(page.ID)
		f := p.frames[id]
		if f.pg.Dirty() {
			if err := p.mgr.Write(f.pg); err != nil {
				return fmt.Errorf("buffer pool: evict page %d: %w", id, err)
			}
		}
		p.order.Remove(back)
		delete(p.frames, id)
	}
	return nil
}

// Flush writes id back through the Page Manager if present and dirty.
func (p *Pool) Flush(id page.ID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.frames[id]
	if !ok || !f.pg.Dirty() {
		return nil
	}
	return p.mgr.Write(f.pg)
}

// FlushAll writes every dirty cached page back through the Page Manager.
func (p *Pool) FlushAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, f := range p.frames {
		if f.pg.Dirty() {
			if err := p.mgr.Write(f.pg); err != nil {
				return fmt.Errorf("buffer pool: flush page %d: %w", id, err)
			}
		}
	}
	return nil
}

// Free removes id from the cache (if present) and frees it via the Page
// Manager.
func (p *Pool) Free(id page.ID) error {
	p.mu.Lock()
	if f, ok := p.frames[id]; ok {
		p.order.Remove(f.elt)
		delete(p.frames, id)
	}
	p.mu.Unlock()
	return p.mgr.Free(id)
}

// Stats returns a snapshot of cumulative pool activity.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Hits:     p.hits,
		Misses:   p.misses,
		Size:     len(p.frames),
		Capacity: p.capacity,
		Policy:   p.policy,
	}
}
