package domain

import (
	"context"
	"sort"
	"sync"

	"github.com/cesargomez89/mediacache/internal/asynclist"
	"github.com/cesargomez89/mediacache/internal/constants"
)

// StorageState names the active variant of a collection's item storage
type StorageState int

const (
	StorageUnknown StorageState = iota
	StorageCountOnly
	StorageMaterialized
	StorageAsync
)

func (s StorageState) String() string {
	switch s {
	case StorageCountOnly:
		return "count_only"
	case StorageMaterialized:
		return "materialized"
	case StorageAsync:
		return "async"
	default:
		return "unknown"
	}
}

type itemStorage interface {
	state() StorageState
}

type unknownItems struct{}

type countOnlyItems struct {
	total int
}

type materializedItems[I any] struct {
	items []I
}

type asyncItems[I asynclist.Mergeable[I]] struct {
	list *asynclist.List[I]
}

func (unknownItems) state() StorageState         { return StorageUnknown }
func (countOnlyItems) state() StorageState       { return StorageCountOnly }
func (*materializedItems[I]) state() StorageState { return StorageMaterialized }
func (*asyncItems[I]) state() StorageState        { return StorageAsync }

// collectionItem is the constraint every collection item type satisfies
type collectionItem[I any] interface {
	comparable
	asynclist.Mergeable[I]
	Track() *Track
}

// ItemsPage is a contiguous run of items plus the collection total
type ItemsPage[I any] struct {
	Offset int
	Total  int
	Items  []I
}

// CollectionOptions configures how a collection loads missing items
type CollectionOptions struct {
	Loader    ItemsLoader
	ChunkSize int
}

func (o CollectionOptions) chunkSize() int {
	if o.ChunkSize > 0 {
		return o.ChunkSize
	}
	return constants.DefaultChunkSize
}

// CollectionItems owns a collection's item storage. Storage only moves
// forward: unknown or count-only becomes materialized or async, and
// materialized becomes async on the first lazy load, structural edit or
// index watch.
type CollectionItems[I collectionItem[I]] struct {
	mu        sync.Mutex
	storage   itemStorage
	chunkSize int
	delegate  asynclist.Delegate[I]
}

func newCollectionItems[I collectionItem[I]](chunkSize int, delegate asynclist.Delegate[I]) *CollectionItems[I] {
	return &CollectionItems[I]{storage: unknownItems{}, chunkSize: chunkSize, delegate: delegate}
}

// construct picks the storage variant for an initial page of items
func (c *CollectionItems[I]) construct(total *int, offset int, items []I) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.constructLocked(total, offset, items)
}

// constructLocked replaces the storage. c.mu must be held.
func (c *CollectionItems[I]) constructLocked(total *int, offset int, items []I) {
	switch {
	case total == nil && len(items) == 0:
		c.storage = unknownItems{}
	case len(items) == 0:
		c.storage = countOnlyItems{total: *total}
	case total != nil && offset == 0 && len(items) == *total:
		c.storage = &materializedItems[I]{items: items}
	default:
		c.storage = &asyncItems[I]{list: asynclist.New(asynclist.Options[I]{
			Delegate:           c.delegate,
			ChunkSize:          c.chunkSize,
			InitialItems:       items,
			InitialItemsOffset: offset,
			InitialSize:        total,
		})}
	}
}

// constructSparse places items at arbitrary indexes
func (c *CollectionItems[I]) constructSparse(total *int, byIndex map[int]I) {
	indexes := make([]int, 0, len(byIndex))
	for i := range byIndex {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	contiguous := true
	for n, i := range indexes {
		if i != n {
			contiguous = false
			break
		}
	}
	if contiguous {
		items := make([]I, len(indexes))
		for n, i := range indexes {
			items[n] = byIndex[i]
		}
		c.construct(total, 0, items)
		return
	}

	list := asynclist.New(asynclist.Options[I]{Delegate: c.delegate, ChunkSize: c.chunkSize, InitialSize: total})
	list.Mutate(func(m *asynclist.Mutator[I]) {
		for _, i := range indexes {
			m.Apply(i, []I{byIndex[i]})
		}
	})
	c.mu.Lock()
	c.storage = &asyncItems[I]{list: list}
	c.mu.Unlock()
}

// State returns the active storage variant
func (c *CollectionItems[I]) State() StorageState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.storage.state()
}

// ItemCount returns the total number of items when known
func (c *CollectionItems[I]) ItemCount() (int, bool) {
	c.mu.Lock()
	storage := c.storage
	c.mu.Unlock()
	switch s := storage.(type) {
	case countOnlyItems:
		return s.total, true
	case *materializedItems[I]:
		return len(s.items), true
	case *asyncItems[I]:
		if s.list.SizeKnown() {
			return s.list.Size(), true
		}
	}
	return 0, false
}

// ItemAt returns an already loaded item without loading
func (c *CollectionItems[I]) ItemAt(index int) (I, bool) {
	var zero I
	c.mu.Lock()
	storage := c.storage
	if s, ok := storage.(*materializedItems[I]); ok {
		defer c.mu.Unlock()
		if index < 0 || index >= len(s.items) {
			return zero, false
		}
		return s.items[index], true
	}
	c.mu.Unlock()
	if s, ok := storage.(*asyncItems[I]); ok {
		return s.list.ItemAt(index)
	}
	return zero, false
}

// GetItem returns the item at index, loading it when missing
func (c *CollectionItems[I]) GetItem(ctx context.Context, index int, opts asynclist.LoadOptions) (I, bool, error) {
	return c.makeAsync().GetItem(ctx, index, opts)
}

// GetItems returns the items in [index, index+count), loading any gaps
func (c *CollectionItems[I]) GetItems(ctx context.Context, index, count int, opts asynclist.LoadOptions) ([]I, error) {
	return c.makeAsync().GetItems(ctx, index, count, opts)
}

// LoadItems loads [index, index+count) regardless of what is cached
func (c *CollectionItems[I]) LoadItems(ctx context.Context, index, count int, opts asynclist.LoadOptions) error {
	return c.makeAsync().LoadItems(ctx, index, count, opts)
}

// GenerateItems walks the collection in chunk-sized pages from index
func (c *CollectionItems[I]) GenerateItems(index int, opts asynclist.LoadOptions) *asynclist.Generator[I] {
	return c.makeAsync().GenerateItems(index, opts)
}

// ForEach visits the loaded items in index order
func (c *CollectionItems[I]) ForEach(fn func(item I, index int)) {
	c.ForEachInRange(0, -1, fn)
}

// ForEachInRange visits loaded items with start <= index < end. A negative
// end is unbounded.
func (c *CollectionItems[I]) ForEachInRange(start, end int, fn func(item I, index int)) {
	c.mu.Lock()
	storage := c.storage
	if s, ok := storage.(*materializedItems[I]); ok {
		items := append([]I(nil), s.items...)
		c.mu.Unlock()
		for i, item := range items {
			if i < start {
				continue
			}
			if end >= 0 && i >= end {
				break
			}
			fn(item, i)
		}
		return
	}
	c.mu.Unlock()
	if s, ok := storage.(*asyncItems[I]); ok {
		s.list.ForEachInRange(start, end, fn)
	}
}

// IndexOfItemInstance finds item by identity
func (c *CollectionItems[I]) IndexOfItemInstance(item I) (int, bool) {
	return c.indexWhere(func(other I) bool { return other == item })
}

// IndexOfItem finds item by identity, then by MatchesItem
func (c *CollectionItems[I]) IndexOfItem(item I) (int, bool) {
	if i, ok := c.IndexOfItemInstance(item); ok {
		return i, true
	}
	return c.indexWhere(func(other I) bool { return other.MatchesItem(item) })
}

func (c *CollectionItems[I]) indexWhere(pred func(I) bool) (int, bool) {
	found := -1
	c.ForEach(func(item I, index int) {
		if found < 0 && pred(item) {
			found = index
		}
	})
	return found, found >= 0
}

// WatchIndex starts tracking index through structural edits
func (c *CollectionItems[I]) WatchIndex(index int) *asynclist.Marker {
	return c.makeAsync().WatchIndex(index)
}

// WatchRemovedIndex tracks a position whose item no longer exists
func (c *CollectionItems[I]) WatchRemovedIndex(index int) *asynclist.Marker {
	return c.makeAsync().WatchRemovedIndex(index)
}

// UnwatchIndex releases a marker
func (c *CollectionItems[I]) UnwatchIndex(marker *asynclist.Marker) {
	c.makeAsync().UnwatchIndex(marker)
}

// Mutate runs fn against the item list with the list locked
func (c *CollectionItems[I]) Mutate(fn func(m *asynclist.Mutator[I])) {
	c.makeAsync().Mutate(fn)
}

// Apply merges a page of fresh items into the collection
func (c *CollectionItems[I]) Apply(page ItemsPage[I]) {
	c.mu.Lock()
	full := page.Offset == 0 && len(page.Items) == page.Total
	switch s := c.storage.(type) {
	case unknownItems, countOnlyItems:
		total := page.Total
		c.constructLocked(&total, page.Offset, page.Items)
		c.mu.Unlock()
		return
	case *materializedItems[I]:
		if full {
			if len(s.items) != page.Total {
				s.items = page.Items
			} else {
				for i, item := range page.Items {
					if s.items[i].MatchesItem(item) {
						s.items[i].MergeFrom(item)
					} else {
						s.items[i] = item
					}
				}
			}
			c.mu.Unlock()
			return
		}
	}
	c.mu.Unlock()
	c.makeAsync().Mutate(func(m *asynclist.Mutator[I]) {
		m.ApplyAndResize(page.Offset, page.Total, page.Items)
	})
}

// makeAsync promotes the storage to the async variant and returns its list
func (c *CollectionItems[I]) makeAsync() *asynclist.List[I] {
	c.mu.Lock()
	defer c.mu.Unlock()
	opts := asynclist.Options[I]{Delegate: c.delegate, ChunkSize: c.chunkSize}
	switch s := c.storage.(type) {
	case *asyncItems[I]:
		return s.list
	case countOnlyItems:
		total := s.total
		opts.InitialSize = &total
	case *materializedItems[I]:
		total := len(s.items)
		opts.InitialSize = &total
		opts.InitialItems = s.items
	}
	list := asynclist.New(opts)
	c.storage = &asyncItems[I]{list: list}
	return list
}
