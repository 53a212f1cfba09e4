package asynclist

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
)

type testItem struct {
	id    string
	value int
}

func (i *testItem) MatchesItem(other *testItem) bool { return i.id == other.id }
func (i *testItem) MergeFrom(other *testItem)        { i.value = other.value }

func newItems(start, count int) []*testItem {
	out := make([]*testItem, count)
	for i := range out {
		out[i] = &testItem{id: fmt.Sprintf("item-%d", start+i), value: start + i}
	}
	return out
}

type recordingDelegate struct {
	mu    sync.Mutex
	calls [][2]int
	fill  func(m *Mutator[*testItem], index, count int)
}

func (d *recordingDelegate) LoadItems(_ context.Context, m *Mutator[*testItem], index, count int, _ LoadOptions) error {
	d.mu.Lock()
	d.calls = append(d.calls, [2]int{index, count})
	d.mu.Unlock()
	if d.fill != nil {
		d.fill(m, index, count)
		return nil
	}
	m.Apply(index, newItems(index, count))
	return nil
}

func (d *recordingDelegate) checkCalls(t *testing.T, want ...[2]int) {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	if !slices.Equal(d.calls, want) {
		t.Errorf("Expected loads %v, got %v", want, d.calls)
	}
}

func sized(n int) *int { return &n }

func checkMarker(t *testing.T, m *Marker, index int, state MarkerState) {
	t.Helper()
	if m.Index() != index || m.State() != state {
		t.Errorf("Expected marker at %d (%s), got %d (%s)", index, state, m.Index(), m.State())
	}
}

func TestMarkerFollowsInsertAndRemove(t *testing.T) {
	l := New(Options[*testItem]{ChunkSize: 18, InitialSize: sized(20)})

	marker := l.WatchIndex(5)
	l.Mutate(func(m *Mutator[*testItem]) {
		m.Insert(2, newItems(100, 3))
	})
	checkMarker(t, marker, 8, MarkerExists)

	l.Mutate(func(m *Mutator[*testItem]) {
		m.Remove(8, 1)
	})
	if marker.State() != MarkerRemoved {
		t.Errorf("Expected the marker to be removed, got %s", marker.State())
	}
}

func TestMarkerShiftsDownOnRemovalBelow(t *testing.T) {
	l := New(Options[*testItem]{ChunkSize: 18, InitialSize: sized(20)})
	marker := l.WatchIndex(10)

	l.Mutate(func(m *Mutator[*testItem]) { m.Remove(2, 3) })

	checkMarker(t, marker, 7, MarkerExists)
	if l.Size() != 17 {
		t.Errorf("Expected size 17, got %d", l.Size())
	}
}

func TestMarkerUnaffectedByEditsAbove(t *testing.T) {
	l := New(Options[*testItem]{ChunkSize: 18, InitialSize: sized(20)})
	marker := l.WatchIndex(3)

	l.Mutate(func(m *Mutator[*testItem]) {
		m.Insert(10, newItems(0, 2))
		m.Remove(12, 4)
	})
	checkMarker(t, marker, 3, MarkerExists)
}

func TestUnwatchedMarkerIsFrozen(t *testing.T) {
	l := New(Options[*testItem]{ChunkSize: 18})
	marker := l.WatchIndex(4)
	l.UnwatchIndex(marker)

	l.Mutate(func(m *Mutator[*testItem]) { m.Insert(0, newItems(0, 2)) })
	if marker.Index() != 4 {
		t.Errorf("Expected an unwatched marker to stay at 4, got %d", marker.Index())
	}
}

func TestStaleMarkerRejectsMutations(t *testing.T) {
	l := New(Options[*testItem]{ChunkSize: 18, InitialItems: newItems(0, 5), InitialSize: sized(5)})
	marker := l.WatchIndex(2)
	l.Mutate(func(m *Mutator[*testItem]) { m.Remove(2, 1) })

	l.Mutate(func(m *Mutator[*testItem]) {
		if err := m.ApplyAt(marker, newItems(0, 1)); !errors.Is(err, ErrStaleIndex) {
			t.Errorf("ApplyAt: expected ErrStaleIndex, got %v", err)
		}
		if err := m.InsertAt(marker, newItems(0, 1)); !errors.Is(err, ErrStaleIndex) {
			t.Errorf("InsertAt: expected ErrStaleIndex, got %v", err)
		}
		if err := m.RemoveAt(marker, 1); !errors.Is(err, ErrStaleIndex) {
			t.Errorf("RemoveAt: expected ErrStaleIndex, got %v", err)
		}
	})
	if l.Size() != 4 {
		t.Errorf("Expected size 4, got %d", l.Size())
	}

	if removed := l.WatchRemovedIndex(1); removed.State() != MarkerRemoved {
		t.Errorf("Expected a removed marker, got %s", removed.State())
	}
}

func TestApplyMergesMatchingItemsInPlace(t *testing.T) {
	original := &testItem{id: "a", value: 1}
	l := New(Options[*testItem]{ChunkSize: 18, InitialItems: []*testItem{original}})

	l.Mutate(func(m *Mutator[*testItem]) {
		m.Apply(0, []*testItem{{id: "a", value: 2}})
	})

	got, ok := l.ItemAt(0)
	if !ok || got != original {
		t.Fatal("Expected the matching item to merge into the original")
	}
	if got.value != 2 {
		t.Errorf("Expected merged value 2, got %d", got.value)
	}

	l.Mutate(func(m *Mutator[*testItem]) {
		m.Apply(0, []*testItem{{id: "b", value: 3}})
	})
	got, _ = l.ItemAt(0)
	if got == original || got.id != "b" {
		t.Errorf("Expected a different item to replace the slot, got %v", got)
	}
}

func TestSetReplacesWithoutMerging(t *testing.T) {
	original := &testItem{id: "a", value: 1}
	l := New(Options[*testItem]{ChunkSize: 4, InitialItems: []*testItem{original}})

	replacement := &testItem{id: "a", value: 9}
	l.Mutate(func(m *Mutator[*testItem]) { m.Set(0, []*testItem{replacement}) })

	if got, _ := l.ItemAt(0); got != replacement {
		t.Error("Expected Set to store the replacement instance")
	}
	if original.value != 1 {
		t.Errorf("Expected the original untouched, got %d", original.value)
	}
}

func TestGetItemsPadsToChunk(t *testing.T) {
	d := &recordingDelegate{}
	l := New(Options[*testItem]{Delegate: d, ChunkSize: 18, InitialSize: sized(100)})

	items, err := l.GetItems(context.Background(), 20, 2, LoadOptions{})
	if err != nil {
		t.Fatalf("GetItems failed: %v", err)
	}
	if len(items) != 2 || items[0].id != "item-20" {
		t.Fatalf("Expected item-20 and item-21, got %v", items)
	}
	d.checkCalls(t, [2]int{18, 18})
	if l.LoadedCount() != 18 {
		t.Errorf("Expected 18 loaded, got %d", l.LoadedCount())
	}

	// already loaded: no second call
	if _, err := l.GetItems(context.Background(), 25, 5, LoadOptions{}); err != nil {
		t.Fatalf("GetItems failed: %v", err)
	}
	d.checkCalls(t, [2]int{18, 18})
}

func TestGetItemsClampsToKnownSize(t *testing.T) {
	d := &recordingDelegate{}
	l := New(Options[*testItem]{Delegate: d, ChunkSize: 18, InitialSize: sized(25)})

	items, err := l.GetItems(context.Background(), 20, 10, LoadOptions{})
	if err != nil {
		t.Fatalf("GetItems failed: %v", err)
	}
	if len(items) != 5 {
		t.Errorf("Expected 5 items, got %d", len(items))
	}
	d.checkCalls(t, [2]int{18, 7})
}

func TestGetItemReloadsInvalidatedSlot(t *testing.T) {
	d := &recordingDelegate{}
	l := New(Options[*testItem]{Delegate: d, ChunkSize: 4, InitialItems: newItems(0, 4), InitialSize: sized(4)})

	l.Mutate(func(m *Mutator[*testItem]) { m.Invalidate(1, 1) })
	if l.IsValid(1) {
		t.Error("Expected slot 1 to be invalid")
	}

	item, ok, err := l.GetItem(context.Background(), 1, LoadOptions{})
	if err != nil || !ok {
		t.Fatalf("GetItem failed: %v (ok=%v)", err, ok)
	}
	if item.id != "item-1" {
		t.Errorf("Expected item-1, got %s", item.id)
	}
	if !l.IsValid(1) {
		t.Error("Expected slot 1 to be valid after the reload")
	}
	d.checkCalls(t, [2]int{0, 4})
}

func TestGetItemStaleWhenSlotRemovedDuringLoad(t *testing.T) {
	d := &recordingDelegate{}
	d.fill = func(m *Mutator[*testItem], index, count int) {
		m.Lock(func() {
			m.Apply(index, newItems(index, count))
			m.Remove(3, 1)
		})
	}
	l := New(Options[*testItem]{Delegate: d, ChunkSize: 8, InitialSize: sized(8)})

	if _, _, err := l.GetItem(context.Background(), 3, LoadOptions{}); !errors.Is(err, ErrStaleIndex) {
		t.Errorf("Expected ErrStaleIndex, got %v", err)
	}
}

func TestGetItemFollowsInsertDuringLoad(t *testing.T) {
	d := &recordingDelegate{}
	d.fill = func(m *Mutator[*testItem], index, count int) {
		m.Lock(func() {
			m.Apply(index, newItems(index, count))
			m.Insert(0, []*testItem{{id: "new"}})
		})
	}
	l := New(Options[*testItem]{Delegate: d, ChunkSize: 8, InitialSize: sized(8)})

	item, ok, err := l.GetItem(context.Background(), 3, LoadOptions{})
	if err != nil || !ok {
		t.Fatalf("GetItem failed: %v (ok=%v)", err, ok)
	}
	if item.id != "item-3" {
		t.Errorf("Expected item-3 after the insert, got %s", item.id)
	}
}

func TestConcurrentLoadsShareOneCall(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var calls atomic.Int32
	delegate := DelegateFunc[*testItem](func(_ context.Context, m *Mutator[*testItem], index, count int, _ LoadOptions) error {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		m.Apply(index, newItems(index, count))
		return nil
	})
	l := New(Options[*testItem]{Delegate: delegate, ChunkSize: 18, InitialSize: sized(18)})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if _, _, err := l.GetItem(context.Background(), 5, LoadOptions{}); err != nil {
			t.Errorf("GetItem(5) failed: %v", err)
		}
	}()
	<-started
	go func() {
		defer wg.Done()
		if _, _, err := l.GetItem(context.Background(), 6, LoadOptions{}); err != nil {
			t.Errorf("GetItem(6) failed: %v", err)
		}
	}()
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("Expected one shared load, got %d", n)
	}
}

func TestMoveCarriesItemsAndMarkers(t *testing.T) {
	l := New(Options[*testItem]{ChunkSize: 18, InitialItems: newItems(0, 6), InitialSize: sized(6)})
	moved := l.WatchIndex(1)
	other := l.WatchIndex(4)

	l.Mutate(func(m *Mutator[*testItem]) { m.Move(0, 2, 3) })

	var ids []string
	l.ForEach(func(item *testItem, _ int) { ids = append(ids, item.id) })
	if want := []string{"item-2", "item-3", "item-4", "item-0", "item-1", "item-5"}; !slices.Equal(ids, want) {
		t.Errorf("Expected %v, got %v", want, ids)
	}
	checkMarker(t, moved, 4, MarkerExists)
	checkMarker(t, other, 2, MarkerExists)
	if l.Size() != 6 {
		t.Errorf("Expected size 6, got %d", l.Size())
	}
}

func TestResizeDropsTailAndMarkers(t *testing.T) {
	l := New(Options[*testItem]{ChunkSize: 18, InitialItems: newItems(0, 10), InitialSize: sized(10)})
	tail := l.WatchIndex(8)

	l.Mutate(func(m *Mutator[*testItem]) { m.Resize(5) })

	if l.Size() != 5 || l.LoadedCount() != 5 {
		t.Errorf("Expected 5 slots and 5 loaded, got %d and %d", l.Size(), l.LoadedCount())
	}
	if tail.State() != MarkerRemoved {
		t.Errorf("Expected the tail marker to be removed, got %s", tail.State())
	}
}

func TestResetOperations(t *testing.T) {
	l := New(Options[*testItem]{ChunkSize: 18, InitialItems: newItems(0, 3), InitialSize: sized(3)})

	l.Mutate(func(m *Mutator[*testItem]) { m.ResetItems() })
	if l.LoadedCount() != 0 {
		t.Errorf("Expected nothing loaded, got %d", l.LoadedCount())
	}
	if !l.SizeKnown() || l.Size() != 3 {
		t.Errorf("Expected the size to stay 3, got %d (known=%v)", l.Size(), l.SizeKnown())
	}

	l.Mutate(func(m *Mutator[*testItem]) { m.ResetSize() })
	if l.SizeKnown() || l.Size() != 0 {
		t.Errorf("Expected an unknown size, got %d (known=%v)", l.Size(), l.SizeKnown())
	}
}

func TestUnknownSizeTracksHighestSlot(t *testing.T) {
	l := New(Options[*testItem]{ChunkSize: 18})
	if l.SizeKnown() {
		t.Error("Expected the size to start unknown")
	}

	l.Mutate(func(m *Mutator[*testItem]) { m.Apply(4, newItems(4, 2)) })
	if l.Size() != 6 {
		t.Errorf("Expected size 6, got %d", l.Size())
	}

	l.Mutate(func(m *Mutator[*testItem]) { m.ApplyAndResize(0, 10, newItems(0, 1)) })
	if !l.SizeKnown() || l.Size() != 10 {
		t.Errorf("Expected a known size of 10, got %d (known=%v)", l.Size(), l.SizeKnown())
	}
}

func TestIndexWhereAndRange(t *testing.T) {
	l := New(Options[*testItem]{ChunkSize: 18, InitialItems: newItems(0, 6)})

	if idx, ok := l.IndexWhere(func(i *testItem) bool { return i.value == 4 }); !ok || idx != 4 {
		t.Errorf("Expected index 4, got %d (ok=%v)", idx, ok)
	}
	if _, ok := l.IndexWhere(func(i *testItem) bool { return i.value == 40 }); ok {
		t.Error("Expected no match for value 40")
	}

	var seen []int
	l.ForEachInRange(2, 4, func(_ *testItem, index int) { seen = append(seen, index) })
	if !slices.Equal(seen, []int{2, 3}) {
		t.Errorf("Expected [2 3], got %v", seen)
	}
}

func TestGeneratorWalksWholeList(t *testing.T) {
	d := &recordingDelegate{}
	l := New(Options[*testItem]{Delegate: d, ChunkSize: 4, InitialSize: sized(10)})

	items, err := l.GenerateItems(0, LoadOptions{}).All(context.Background())
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(items) != 10 || items[9].id != "item-9" {
		t.Fatalf("Expected 10 items ending in item-9, got %d", len(items))
	}
	d.checkCalls(t, [2]int{0, 4}, [2]int{4, 4}, [2]int{8, 2})
}

func TestGeneratorStopsOnShortPageWhenSizeUnknown(t *testing.T) {
	d := &recordingDelegate{}
	d.fill = func(m *Mutator[*testItem], index, count int) {
		if index >= 4 {
			m.Apply(index, newItems(index, 1))
			return
		}
		m.Apply(index, newItems(index, count))
	}
	l := New(Options[*testItem]{Delegate: d, ChunkSize: 4})

	items, err := l.GenerateItems(0, LoadOptions{}).All(context.Background())
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(items) != 5 {
		t.Errorf("Expected 5 items, got %d", len(items))
	}
}
