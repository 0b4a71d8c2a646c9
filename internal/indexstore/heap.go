package indexstore

import "github.com/csvquery/bulkload/internal/common"

// mergeItem is one in-flight entry in the k-way merge's min-heap, tagged
// with which source Run it came from.
type mergeItem struct {
	entry  common.IndexEntry
	source int
}

func (m mergeItem) less(o mergeItem) bool {
	return m.entry.Less(o.entry)
}

// mergeHeap is a manual binary min-heap over mergeItem. container/heap's
// interface{} boxing costs an allocation per push/pop at this record
// count; a direct slice-based heap (as the teacher's manualHeap in
// sorter.go) avoids it.
type mergeHeap []mergeItem

func (h mergeHeap) Len() int { return len(h) }

func (h *mergeHeap) push(x mergeItem) {
	*h = append(*h, x)
	h.up(len(*h) - 1)
}

func (h *mergeHeap) pop() mergeItem {
	old := *h
	n := len(old)
	x := old[0]
	old[0] = old[n-1]
	*h = old[0 : n-1]
	h.down(0, n-1)
	return x
}

func (h *mergeHeap) heapify() {
	n := len(*h)
	for i := n/2 - 1; i >= 0; i-- {
		h.down(i, n)
	}
}

func (h *mergeHeap) up(j int) {
	for {
		i := (j - 1) / 2
		if i == j || !(*h)[j].less((*h)[i]) {
			break
		}
		(*h)[i], (*h)[j] = (*h)[j], (*h)[i]
		j = i
	}
}

func (h *mergeHeap) down(i0, n int) {
	i := i0
	for {
		j1 := 2*i + 1
		if j1 >= n || j1 < 0 {
			break
		}
		j := j1
		if j2 := j1 + 1; j2 < n && (*h)[j2].less((*h)[j1]) {
			j = j2
		}
		if !(*h)[j].less((*h)[i]) {
			break
		}
		(*h)[i], (*h)[j] = (*h)[j], (*h)[i]
		i = j
	}
}
