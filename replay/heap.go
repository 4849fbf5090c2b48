package replay

import "container/heap"

// slotHeap is an indexed max-heap over buffer slot priorities. It replaces
// the raw index-arithmetic heap of older prioritized-replay implementations
// with a typed container: slots are tracked by position so a priority change
// anywhere is a single Fix, and the heap stays exact across circular
// overwrites. The buffer uses it to answer "what is the largest live
// priority" when the slot holding the previous maximum gets evicted.
type slotHeap struct {
	prio []float32 // priority per slot
	ids  []int     // heap order, values are slot ids
	pos  []int     // slot id -> index in ids, -1 when absent
}

func newSlotHeap(capacity int) *slotHeap {
	h := &slotHeap{
		prio: make([]float32, capacity),
		ids:  make([]int, 0, capacity),
		pos:  make([]int, capacity),
	}
	for i := range h.pos {
		h.pos[i] = -1
	}
	return h
}

func (h *slotHeap) Len() int { return len(h.ids) }

func (h *slotHeap) Less(i, j int) bool { return h.prio[h.ids[i]] > h.prio[h.ids[j]] }

func (h *slotHeap) Swap(i, j int) {
	h.ids[i], h.ids[j] = h.ids[j], h.ids[i]
	h.pos[h.ids[i]] = i
	h.pos[h.ids[j]] = j
}

func (h *slotHeap) Push(x any) {
	id := x.(int)
	h.pos[id] = len(h.ids)
	h.ids = append(h.ids, id)
}

func (h *slotHeap) Pop() any {
	n := len(h.ids) - 1
	id := h.ids[n]
	h.pos[id] = -1
	h.ids = h.ids[:n]
	return id
}

// update sets a slot's priority, inserting it on first use or sifting it to
// its new position otherwise.
func (h *slotHeap) update(slot int, priority float32) {
	h.prio[slot] = priority
	if h.pos[slot] == -1 {
		heap.Push(h, slot)
		return
	}
	heap.Fix(h, h.pos[slot])
}

// peekMax returns the largest live priority, or 0 when the heap is empty.
func (h *slotHeap) peekMax() (float32, bool) {
	if len(h.ids) == 0 {
		return 0, false
	}
	return h.prio[h.ids[0]], true
}

// valid reports whether the heap property and position index hold. Test
// hook; the buffer never needs it at runtime.
func (h *slotHeap) valid() bool {
	for i := range h.ids {
		if h.pos[h.ids[i]] != i {
			return false
		}
		left, right := 2*i+1, 2*i+2
		if left < len(h.ids) && h.prio[h.ids[left]] > h.prio[h.ids[i]] {
			return false
		}
		if right < len(h.ids) && h.prio[h.ids[right]] > h.prio[h.ids[i]] {
			return false
		}
	}
	return true
}
