package asynclist

import "sync/atomic"

// MarkerState tells whether a watched slot still exists
type MarkerState int32

const (
	MarkerExists MarkerState = iota
	MarkerRemoved
)

func (s MarkerState) String() string {
	if s == MarkerRemoved {
		return "removed"
	}
	return "exists"
}

// Marker follows one slot through structural edits
type Marker struct {
	index atomic.Int64
	state atomic.Int32
}

// Index returns the slot's current position. For a removed marker it is the
// position the slot would occupy.
func (m *Marker) Index() int {
	return int(m.index.Load())
}

// State returns whether the slot still exists
func (m *Marker) State() MarkerState {
	return MarkerState(m.state.Load())
}

func (m *Marker) set(index int, state MarkerState) {
	m.index.Store(int64(index))
	m.state.Store(int32(state))
}

// WatchIndex returns a marker tracking index
func (l *List[T]) WatchIndex(index int) *Marker {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.watchLocked(index, MarkerExists)
}

// WatchRemovedIndex returns a marker already in the removed state. It keeps
// following the position as edits happen around it.
func (l *List[T]) WatchRemovedIndex(index int) *Marker {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.watchLocked(index, MarkerRemoved)
}

// UnwatchIndex stops renumbering marker
func (l *List[T]) UnwatchIndex(marker *Marker) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.markers, marker)
}

func (l *List[T]) watchLocked(index int, state MarkerState) *Marker {
	m := &Marker{}
	m.set(index, state)
	l.markers[m] = struct{}{}
	return m
}

// Mutator edits a List. Outside of Mutate or Lock every call takes the list
// lock on its own. A Mutator must not be shared between goroutines.
type Mutator[T Mergeable[T]] struct {
	list   *List[T]
	locked bool
}

// Lock runs fn with the list locked so several edits apply atomically
func (m *Mutator[T]) Lock(fn func()) {
	if m.locked {
		fn()
		return
	}
	m.list.mu.Lock()
	m.locked = true
	defer func() {
		m.locked = false
		m.list.mu.Unlock()
	}()
	fn()
}

func (m *Mutator[T]) do(fn func(l *List[T])) {
	m.Lock(func() { fn(m.list) })
}

// Size returns the list size
func (m *Mutator[T]) Size() int {
	var n int
	m.do(func(l *List[T]) { n = l.sizeLocked() })
	return n
}

// SizeKnown reports whether the list has an established size
func (m *Mutator[T]) SizeKnown() bool {
	var known bool
	m.do(func(l *List[T]) { known = l.sizeKnown })
	return known
}

// Apply writes items starting at index, merging into matching existing items
func (m *Mutator[T]) Apply(index int, items []T) {
	m.do(func(l *List[T]) { l.apply(index, items) })
}

// ApplyAndResize sets the size, then applies items at index
func (m *Mutator[T]) ApplyAndResize(index, size int, items []T) {
	m.do(func(l *List[T]) {
		l.resize(size)
		l.apply(index, items)
	})
}

// Set writes items starting at index, replacing whatever was there
func (m *Mutator[T]) Set(index int, items []T) {
	m.do(func(l *List[T]) {
		for i, item := range items {
			l.items[index+i] = &slot[T]{item: item, valid: true}
		}
		l.growTo(index + len(items))
	})
}

// Insert opens a gap at index and fills it with items
func (m *Mutator[T]) Insert(index int, items []T) {
	m.do(func(l *List[T]) { l.insert(index, items) })
}

// Remove deletes count slots starting at index
func (m *Mutator[T]) Remove(index, count int) {
	m.do(func(l *List[T]) { l.remove(index, count) })
}

// Move relocates count slots starting at index so the first one ends up at
// newIndex.
func (m *Mutator[T]) Move(index, count, newIndex int) {
	m.do(func(l *List[T]) { l.move(index, count, newIndex) })
}

// Invalidate marks slots as needing a reload without dropping them
func (m *Mutator[T]) Invalidate(index, count int) {
	m.do(func(l *List[T]) {
		for i := index; i < index+count; i++ {
			if s, ok := l.items[i]; ok {
				s.valid = false
			}
		}
	})
}

// InvalidateAll marks every slot as needing a reload
func (m *Mutator[T]) InvalidateAll() {
	m.do(func(l *List[T]) {
		for _, s := range l.items {
			s.valid = false
		}
	})
}

// ResetItems drops every loaded item and keeps the size
func (m *Mutator[T]) ResetItems() {
	m.do(func(l *List[T]) { l.items = make(map[int]*slot[T]) })
}

// ResetSize forgets the size
func (m *Mutator[T]) ResetSize() {
	m.do(func(l *List[T]) {
		l.size = 0
		l.sizeKnown = false
	})
}

// Reset drops every item and forgets the size
func (m *Mutator[T]) Reset() {
	m.do(func(l *List[T]) {
		l.items = make(map[int]*slot[T])
		l.size = 0
		l.sizeKnown = false
	})
}

// Resize sets the size, dropping items past the end
func (m *Mutator[T]) Resize(size int) {
	m.do(func(l *List[T]) { l.resize(size) })
}

// ApplyAt applies items at the marker's current position
func (m *Mutator[T]) ApplyAt(marker *Marker, items []T) error {
	var err error
	m.do(func(l *List[T]) {
		if marker.State() == MarkerRemoved {
			err = ErrStaleIndex
			return
		}
		l.apply(marker.Index(), items)
	})
	return err
}

// InsertAt inserts items at the marker's current position
func (m *Mutator[T]) InsertAt(marker *Marker, items []T) error {
	var err error
	m.do(func(l *List[T]) {
		if marker.State() == MarkerRemoved {
			err = ErrStaleIndex
			return
		}
		l.insert(marker.Index(), items)
	})
	return err
}

// RemoveAt removes count slots starting at the marker's current position
func (m *Mutator[T]) RemoveAt(marker *Marker, count int) error {
	var err error
	m.do(func(l *List[T]) {
		if marker.State() == MarkerRemoved {
			err = ErrStaleIndex
			return
		}
		l.remove(marker.Index(), count)
	})
	return err
}

func (l *List[T]) growTo(end int) {
	if l.sizeKnown && end > l.size {
		l.size = end
	}
}

func (l *List[T]) apply(index int, items []T) {
	for i, item := range items {
		idx := index + i
		if s, ok := l.items[idx]; ok && s.item.MatchesItem(item) {
			s.item.MergeFrom(item)
			s.valid = true
			continue
		}
		l.items[idx] = &slot[T]{item: item, valid: true}
	}
	l.growTo(index + len(items))
}

func (l *List[T]) insert(index int, items []T) {
	n := len(items)
	if n == 0 {
		return
	}
	l.shiftUp(index, n)
	for i, item := range items {
		l.items[index+i] = &slot[T]{item: item, valid: true}
	}
	if l.sizeKnown {
		l.size += n
	}
	for mk := range l.markers {
		if mk.Index() >= index {
			mk.index.Add(int64(n))
		}
	}
}

func (l *List[T]) remove(index, count int) {
	if count <= 0 {
		return
	}
	end := index + count
	l.dropRange(index, count)
	if l.sizeKnown && l.size > index {
		removed := count
		if l.size-index < removed {
			removed = l.size - index
		}
		l.size -= removed
	}
	for mk := range l.markers {
		i := mk.Index()
		switch {
		case i >= end:
			mk.index.Add(int64(-count))
		case i >= index:
			mk.set(index, MarkerRemoved)
		}
	}
}

func (l *List[T]) move(index, count, newIndex int) {
	if count <= 0 || index == newIndex {
		return
	}
	if l.sizeKnown {
		if max := l.size - count; newIndex > max {
			newIndex = max
		}
	}
	if newIndex < 0 {
		newIndex = 0
	}
	end := index + count

	block := make(map[int]*slot[T])
	for i := index; i < end; i++ {
		if s, ok := l.items[i]; ok {
			block[i-index] = s
		}
	}
	moving := make(map[*Marker]int)
	for mk := range l.markers {
		if i := mk.Index(); i >= index && i < end {
			moving[mk] = i - index
		}
	}

	l.dropRange(index, count)
	for mk := range l.markers {
		if _, ok := moving[mk]; !ok && mk.Index() >= end {
			mk.index.Add(int64(-count))
		}
	}

	l.shiftUp(newIndex, count)
	for off, s := range block {
		l.items[newIndex+off] = s
	}
	for mk := range l.markers {
		if _, ok := moving[mk]; !ok && mk.Index() >= newIndex {
			mk.index.Add(int64(count))
		}
	}
	for mk, off := range moving {
		mk.index.Store(int64(newIndex + off))
	}
}

func (l *List[T]) resize(size int) {
	if size < 0 {
		size = 0
	}
	l.size = size
	l.sizeKnown = true
	for i := range l.items {
		if i >= size {
			delete(l.items, i)
		}
	}
	for mk := range l.markers {
		if mk.Index() >= size && mk.State() == MarkerExists {
			mk.set(mk.Index(), MarkerRemoved)
		}
	}
}

// shiftUp moves every slot at or above index up by n
func (l *List[T]) shiftUp(index, n int) {
	shifted := make(map[int]*slot[T], len(l.items))
	for i, s := range l.items {
		if i >= index {
			shifted[i+n] = s
		} else {
			shifted[i] = s
		}
	}
	l.items = shifted
}

// dropRange deletes [index, index+count) and closes the gap
func (l *List[T]) dropRange(index, count int) {
	end := index + count
	shifted := make(map[int]*slot[T], len(l.items))
	for i, s := range l.items {
		switch {
		case i < index:
			shifted[i] = s
		case i >= end:
			shifted[i-count] = s
		}
	}
	l.items = shifted
}
