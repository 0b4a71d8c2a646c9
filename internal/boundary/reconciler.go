package boundary

// ChunkBoundary is one entry of the indexing-chunk sequence: the byte
// offset a chunk starts at, and the 0-based line number its first record
// carries. Consecutive pairs of ChunkBoundary form the indexing chunks fed
// to phase 2; the final element is a synthetic terminator at file length.
type ChunkBoundary struct {
	StartOffset  int64
	StartingLine int64
}

// Reconcile combines the per-chunk quote/newline stats produced by Scan
// (one per boundary-scan chunk, covering chunks 0..N-1 in file order) into
// the file-wide chunk boundary sequence (spec §4.2).
//
// chunkStarts[i] is the absolute file offset boundary-scan chunk i began
// at; fileLen is the total source length. Reconcile never fails: a chunk
// whose selected hypothesis has no newline (a single over-long record, or
// one enormous quoted field) is simply folded into the previous chunk.
func Reconcile(stats []ChunkStat, chunkStarts []int64, fileLen int64) []ChunkBoundary {
	if len(stats) == 0 {
		return []ChunkBoundary{{StartOffset: 0, StartingLine: 0}, {StartOffset: fileLen}}
	}

	boundaries := []ChunkBoundary{{StartOffset: 0, StartingLine: 0}}

	quotesTotal := stats[0].QuotesInChunk
	linesTotal := stats[0].NewlinesAssumingEvenStart + 1

	for i := 1; i < len(stats); i++ {
		st := stats[i]

		var firstNewline, newlineCount int64
		if quotesTotal%2 != 0 {
			firstNewline = st.FirstNewlineOffsetAssumingOdd
			newlineCount = st.NewlinesAssumingOddStart
		} else {
			firstNewline = st.FirstNewlineOffsetAssumingEven
			newlineCount = st.NewlinesAssumingEvenStart
		}

		quotesTotal += st.QuotesInChunk

		if firstNewline == -1 {
			// Huge quoted field or a single over-long line: merge this
			// boundary-scan chunk into the previous indexing chunk by
			// simply not emitting a boundary for it.
			continue
		}

		offset := chunkStarts[i] + firstNewline + 1
		boundaries = append(boundaries, ChunkBoundary{StartOffset: offset, StartingLine: linesTotal})
		linesTotal += newlineCount
	}

	if boundaries[len(boundaries)-1].StartOffset < fileLen {
		boundaries = append(boundaries, ChunkBoundary{StartOffset: fileLen})
	}

	return boundaries
}

// Chunks pairs up consecutive boundaries into the (lo, hi, startingLine)
// triples the indexing phase dispatches as tasks.
type IndexingChunk struct {
	Lo, Hi       int64
	StartingLine int64
}

func Chunks(boundaries []ChunkBoundary) []IndexingChunk {
	if len(boundaries) < 2 {
		return nil
	}
	chunks := make([]IndexingChunk, 0, len(boundaries)-1)
	for i := 0; i < len(boundaries)-1; i++ {
		lo := boundaries[i].StartOffset
		hi := boundaries[i+1].StartOffset
		if lo >= hi {
			continue
		}
		chunks = append(chunks, IndexingChunk{Lo: lo, Hi: hi, StartingLine: boundaries[i].StartingLine})
	}
	return chunks
}
