// Package lexer is the delimited-text lexer the core calls through an
// external-collaborator interface (spec §6: `of(delim)`, `parse(buf, len,
// listener)`, `restart()`, `parseLast()`). Out of scope per spec §1 as a
// reimplementable subsystem, but a working default is needed to drive and
// test the five phases; this one is built the way the teacher's own
// Scanner.parseLineSimd extracts quoted/escaped fields (scanner.go),
// generalized to a stateful, window-fed lexer instead of one that only
// ever sees a whole line at once.
package lexer

// RecordHandler receives one fully-parsed record: its fields (quote
// markers stripped, doubled "" unescaped to a literal "), the absolute
// byte offset the record started at in the source, and the record's
// total length in bytes including its terminating newline.
type RecordHandler func(fields [][]byte, recordStart int64, recordLen int64)

// Lexer is a quote-aware, delimiter-separated record scanner. It is
// stateful across Parse calls so a caller can feed it successive
// memory-mapped windows of a chunk without ever materializing the whole
// chunk as one byte slice.
type Lexer struct {
	delim byte

	inQuote    bool
	pendingEsc bool // just saw a '"' while inQuote; next char decides escape vs close

	recordBuf   []byte // bytes of the record in progress, quotes stripped
	fieldStart  int    // offset into recordBuf where the current field begins
	fields      [][]byte
	recordStart int64 // absolute offset the in-progress record began at
	pos         int64  // absolute offset of the next byte to be processed
	started     bool   // whether recordStart has been set for the in-progress record
}

// Of constructs a Lexer configured for the given single-byte delimiter,
// matching the external interface's `of(delim)` constructor.
func Of(delim byte) *Lexer {
	return &Lexer{delim: delim}
}

// Restart clears all parse state, used when a lexer instance is reused for
// a new, unrelated chunk.
func (l *Lexer) Restart() {
	l.inQuote = false
	l.pendingEsc = false
	l.recordBuf = l.recordBuf[:0]
	l.fieldStart = 0
	l.fields = l.fields[:0]
	l.recordStart = 0
	l.pos = 0
	l.started = false
}

// Parse feeds one window of bytes (absolute file offset `base`) through
// the lexer. Every complete record found is delivered to handler. A
// record straddling the end of buf is held in internal state and resumed
// on the next Parse call; it is never delivered until it sees its
// terminating newline outside quotes.
func (l *Lexer) Parse(buf []byte, base int64, handler RecordHandler) {
	for i := 0; i < len(buf); i++ {
		b := buf[i]
		abs := base + int64(i)
		if !l.started {
			l.recordStart = abs
			l.started = true
		}

		if l.pendingEsc {
			l.pendingEsc = false
			if b == '"' {
				// Doubled quote: literal '"', stays inside the field.
				l.recordBuf = append(l.recordBuf, '"')
				l.pos = abs + 1
				continue
			}
			// Single quote closed the field; fall through to re-process b.
			l.inQuote = false
		}

		switch {
		case b == '"':
			if l.inQuote {
				l.pendingEsc = true
			} else {
				l.inQuote = true
			}
		case b == l.delim && !l.inQuote:
			l.fields = append(l.fields, l.cutField())
		case b == '\n' && !l.inQuote:
			l.fields = append(l.fields, l.cutField())
			recordLen := abs + 1 - l.recordStart
			handler(l.fields, l.recordStart, recordLen)
			l.fields = nil
			l.recordBuf = l.recordBuf[:0]
			l.fieldStart = 0
			l.started = false
		default:
			l.recordBuf = append(l.recordBuf, b)
		}
		l.pos = abs + 1
	}
}

// cutField slices the field accumulated since the last delimiter out of
// recordBuf. Because recordBuf is reused across fields of the same
// record, the returned slice is only valid until the next mutation of
// recordBuf — callers (the handler) must copy if they retain it past the
// RecordHandler call.
func (l *Lexer) cutField() []byte {
	field := l.recordBuf[l.fieldStart:len(l.recordBuf):len(l.recordBuf)]
	l.fieldStart = len(l.recordBuf)
	return field
}

// ParseLast parses exactly one record out of a fixed-size slab — used by
// the loader, which prereads maxLineLength bytes at a known offset and
// relies on the lexer to stop at the first newline (spec §4.5, §9). The
// lexer's carried-over state from any prior Parse call is irrelevant here;
// ParseLast always starts a fresh record at slab[0].
func ParseLast(slab []byte, delim byte, recordStart int64) (fields [][]byte, recordLen int64, ok bool) {
	l := Of(delim)
	var gotRecord bool
	var gotLen int64
	var gotFields [][]byte
	capture := func(f [][]byte, start int64, length int64) {
		if gotRecord {
			return // only the first record in the slab is wanted
		}
		gotRecord = true
		gotLen = length
		gotFields = make([][]byte, len(f))
		for i, field := range f {
			cp := make([]byte, len(field))
			copy(cp, field)
			gotFields[i] = cp
		}
	}
	l.Parse(slab, recordStart, capture)

	if !gotRecord && l.started {
		// No newline found before the slab ran out: this is the final
		// record in the file, with no trailing newline. Close it out
		// using whatever was accumulated.
		l.fields = append(l.fields, l.cutField())
		capture(l.fields, l.recordStart, int64(len(slab)))
	}

	return gotFields, gotLen, gotRecord
}
