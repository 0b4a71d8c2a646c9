package indexstore

import "github.com/csvquery/bulkload/internal/common"

// MergeRuns performs an ascending k-way merge of the given runs, writing
// the result through write. Entries are ordered by IndexEntry.Less alone
// (timestamp, then offset as tie-break); the run an entry came from plays
// no part in the order. Every run is closed before return.
func MergeRuns(runs []Run, write func(common.IndexEntry) error) (merged int64, err error) {
	defer func() {
		for _, r := range runs {
			r.Close()
		}
	}()

	h := make(mergeHeap, 0, len(runs))
	for i, r := range runs {
		e, ok, rerr := r.Next()
		if rerr != nil {
			return merged, rerr
		}
		if ok {
			h = append(h, mergeItem{entry: e, source: i})
		}
	}
	h.heapify()

	for h.Len() > 0 {
		item := h.pop()
		if err := write(item.entry); err != nil {
			return merged, err
		}
		merged++

		next, ok, rerr := runs[item.source].Next()
		if rerr != nil {
			return merged, rerr
		}
		if ok {
			h.push(mergeItem{entry: next, source: item.source})
		}
	}

	return merged, nil
}
