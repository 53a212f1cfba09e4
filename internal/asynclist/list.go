// Package asynclist implements a sparse, lazily loaded, index-addressed list.
//
// Slots are filled by a Delegate in chunk-sized loads. Structural edits
// (insert, remove, move) renumber the live Markers so long-running
// operations keep targeting the slot they started on.
package asynclist

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrStaleIndex is returned when the slot an operation targets was removed
// while the operation was in flight.
var ErrStaleIndex = errors.New("stale index")

// Mergeable is implemented by list items. MatchesItem reports domain
// equality; MergeFrom copies the other item's state into the receiver.
type Mergeable[T any] interface {
	MatchesItem(other T) bool
	MergeFrom(other T)
}

// LoadOptions are passed through to the delegate on every load.
type LoadOptions struct {
	// Offline asks the delegate to read from local storage only
	Offline bool
}

// Delegate fills list slots on demand. Results must be written through m.
type Delegate[T Mergeable[T]] interface {
	LoadItems(ctx context.Context, m *Mutator[T], index, count int, opts LoadOptions) error
}

// DelegateFunc adapts a function to the Delegate interface
type DelegateFunc[T Mergeable[T]] func(ctx context.Context, m *Mutator[T], index, count int, opts LoadOptions) error

func (f DelegateFunc[T]) LoadItems(ctx context.Context, m *Mutator[T], index, count int, opts LoadOptions) error {
	return f(ctx, m, index, count, opts)
}

// Options configures a new List
type Options[T Mergeable[T]] struct {
	Delegate           Delegate[T]
	ChunkSize          int
	InitialItems       []T
	InitialItemsOffset int
	// InitialSize is the known size; nil means unknown
	InitialSize *int
}

type slot[T any] struct {
	item  T
	valid bool
}

// List is safe for concurrent use. Item callbacks run with the list lock
// held and must not call back into the list.
type List[T Mergeable[T]] struct {
	mu        sync.Mutex
	items     map[int]*slot[T]
	size      int
	sizeKnown bool
	chunkSize int
	delegate  Delegate[T]
	markers   map[*Marker]struct{}

	loadMu  sync.Mutex
	loading map[loadKey]*loadCall
}

type loadKey struct {
	index, count int
	offline      bool
}

type loadCall struct {
	done chan struct{}
	err  error
}

// New builds a list from opts
func New[T Mergeable[T]](opts Options[T]) *List[T] {
	chunk := opts.ChunkSize
	if chunk < 1 {
		chunk = 1
	}
	l := &List[T]{
		items:     make(map[int]*slot[T]),
		chunkSize: chunk,
		delegate:  opts.Delegate,
		markers:   make(map[*Marker]struct{}),
		loading:   make(map[loadKey]*loadCall),
	}
	if opts.InitialSize != nil {
		l.size = *opts.InitialSize
		l.sizeKnown = true
	}
	for i, item := range opts.InitialItems {
		l.items[opts.InitialItemsOffset+i] = &slot[T]{item: item, valid: true}
	}
	if l.sizeKnown {
		if end := opts.InitialItemsOffset + len(opts.InitialItems); end > l.size {
			l.size = end
		}
	}
	return l
}

// ChunkSize returns the delegate's preferred load size
func (l *List[T]) ChunkSize() int {
	return l.chunkSize
}

// Size returns the known size, or the count past the highest loaded
// slot when the size is unknown.
func (l *List[T]) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sizeLocked()
}

func (l *List[T]) sizeLocked() int {
	if l.sizeKnown {
		return l.size
	}
	max := 0
	for i := range l.items {
		if i+1 > max {
			max = i + 1
		}
	}
	return max
}

// SizeKnown reports whether the total size has been established
func (l *List[T]) SizeKnown() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sizeKnown
}

// ItemAt returns the item at index, valid or invalidated
func (l *List[T]) ItemAt(index int) (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.items[index]
	if !ok {
		var zero T
		return zero, false
	}
	return s.item, true
}

// IsValid reports whether index holds an item that has not been invalidated
func (l *List[T]) IsValid(index int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.items[index]
	return ok && s.valid
}

// LoadedCount returns how many slots hold an item
func (l *List[T]) LoadedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// ForEach calls fn for every loaded item in index order
func (l *List[T]) ForEach(fn func(item T, index int)) {
	l.ForEachInRange(0, -1, fn)
}

// ForEachInRange calls fn for loaded items with start <= index < end.
// A negative end means no upper bound.
func (l *List[T]) ForEachInRange(start, end int, fn func(item T, index int)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, i := range l.sortedIndexes() {
		if i < start {
			continue
		}
		if end >= 0 && i >= end {
			break
		}
		fn(l.items[i].item, i)
	}
}

// IndexWhere returns the lowest loaded index whose item satisfies pred
func (l *List[T]) IndexWhere(pred func(item T) bool) (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, i := range l.sortedIndexes() {
		if pred(l.items[i].item) {
			return i, true
		}
	}
	return -1, false
}

// Mutate runs fn with the list locked
func (l *List[T]) Mutate(fn func(m *Mutator[T])) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(&Mutator[T]{list: l, locked: true})
}

// GetItem returns the item at index, loading its chunk if needed
func (l *List[T]) GetItem(ctx context.Context, index int, opts LoadOptions) (T, bool, error) {
	items, err := l.getItems(ctx, index, 1, opts)
	var zero T
	if err != nil {
		return zero, false, err
	}
	if len(items) == 0 {
		return zero, false, nil
	}
	return items[0].item, true, nil
}

// GetItems returns the loaded items in [index, index+count), loading any
// missing or invalidated slots first. Slots that are still empty after the
// load are skipped.
func (l *List[T]) GetItems(ctx context.Context, index, count int, opts LoadOptions) ([]T, error) {
	entries, err := l.getItems(ctx, index, count, opts)
	if err != nil {
		return nil, err
	}
	out := make([]T, len(entries))
	for i, e := range entries {
		out[i] = e.item
	}
	return out, nil
}

type entry[T any] struct {
	item  T
	index int
}

func (l *List[T]) getItems(ctx context.Context, index, count int, opts LoadOptions) ([]entry[T], error) {
	if count <= 0 || index < 0 {
		return nil, nil
	}

	l.mu.Lock()
	start, end, missing := l.missingRange(index, count)
	if !missing {
		entries := l.collect(index, count)
		l.mu.Unlock()
		return entries, nil
	}
	marker := l.watchLocked(index, MarkerExists)
	loadIndex, loadCount := l.padRange(start, end)
	l.mu.Unlock()
	defer l.UnwatchIndex(marker)

	if err := l.load(ctx, loadIndex, loadCount, opts); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if marker.State() == MarkerRemoved {
		return nil, ErrStaleIndex
	}
	return l.collect(marker.Index(), count), nil
}

// LoadItems forces a load of [index, index+count) padded to the chunk size
func (l *List[T]) LoadItems(ctx context.Context, index, count int, opts LoadOptions) error {
	if count <= 0 || index < 0 {
		return nil
	}
	l.mu.Lock()
	marker := l.watchLocked(index, MarkerExists)
	loadIndex, loadCount := l.padRange(index, index+count)
	l.mu.Unlock()
	defer l.UnwatchIndex(marker)

	if err := l.load(ctx, loadIndex, loadCount, opts); err != nil {
		return err
	}
	if marker.State() == MarkerRemoved {
		return ErrStaleIndex
	}
	return nil
}

// load dispatches one delegate call, sharing it with concurrent callers
// asking for the same range.
func (l *List[T]) load(ctx context.Context, index, count int, opts LoadOptions) error {
	if l.delegate == nil || count <= 0 {
		return nil
	}
	key := loadKey{index: index, count: count, offline: opts.Offline}

	l.loadMu.Lock()
	if call, ok := l.loading[key]; ok {
		l.loadMu.Unlock()
		select {
		case <-call.done:
			return call.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	call := &loadCall{done: make(chan struct{})}
	l.loading[key] = call
	l.loadMu.Unlock()

	call.err = l.delegate.LoadItems(ctx, &Mutator[T]{list: l}, index, count, opts)

	l.loadMu.Lock()
	delete(l.loading, key)
	l.loadMu.Unlock()
	close(call.done)
	return call.err
}

// missingRange returns the smallest range covering every empty or
// invalidated slot in [index, index+count), clamped to the known size.
func (l *List[T]) missingRange(index, count int) (int, int, bool) {
	end := index + count
	if l.sizeKnown && end > l.size {
		end = l.size
	}
	first, last := -1, -1
	for i := index; i < end; i++ {
		if s, ok := l.items[i]; ok && s.valid {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
	}
	if first < 0 {
		return 0, 0, false
	}
	return first, last + 1, true
}

// padRange widens [start, end) to whole chunks, clamped to the known size
func (l *List[T]) padRange(start, end int) (int, int) {
	chunk := l.chunkSize
	padStart := start - start%chunk
	padEnd := end
	if rem := padEnd % chunk; rem != 0 {
		padEnd += chunk - rem
	}
	if l.sizeKnown && padEnd > l.size {
		padEnd = l.size
	}
	if padEnd <= padStart {
		padEnd = padStart + chunk
	}
	return padStart, padEnd - padStart
}

func (l *List[T]) collect(index, count int) []entry[T] {
	end := index + count
	if l.sizeKnown && end > l.size {
		end = l.size
	}
	var out []entry[T]
	for i := index; i < end; i++ {
		if s, ok := l.items[i]; ok {
			out = append(out, entry[T]{item: s.item, index: i})
		}
	}
	return out
}

func (l *List[T]) sortedIndexes() []int {
	indexes := make([]int, 0, len(l.items))
	for i := range l.items {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)
	return indexes
}
