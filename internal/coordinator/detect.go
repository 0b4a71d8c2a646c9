package coordinator

import "bytes"

// candidateDelimiters are tried in order when ColumnDelimiter is not
// fixed by the caller; spec §6 leaves the detection heuristic
// unspecified beyond "scanning first N bytes", so this picks whichever
// candidate occurs most often in the first line of window.
var candidateDelimiters = []byte{',', '\t', ';', '|'}

// detectDelimiter scans window (the first DetectWindow bytes of the
// input, or the whole file if shorter) and returns the candidate
// delimiter with the most occurrences in its first line.
func detectDelimiter(window []byte) byte {
	firstLine := window
	if i := bytes.IndexByte(window, '\n'); i >= 0 {
		firstLine = window[:i]
	}

	best := candidateDelimiters[0]
	bestCount := -1
	for _, d := range candidateDelimiters {
		count := bytes.Count(firstLine, []byte{d})
		if count > bestCount {
			bestCount = count
			best = d
		}
	}
	return best
}
