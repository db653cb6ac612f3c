package rv32

// traceRing remembers the last N retired instructions for divergence
// debugging. It is always on; the depth is small enough that the
// bookkeeping is noise next to decode.
type traceRing struct {
	entries []traceEntry
	next    int
	filled  bool
}

type traceEntry struct {
	pc  uint32
	ins uint32
}

func newTraceRing(depth int) traceRing {
	return traceRing{entries: make([]traceEntry, depth)}
}

func (t *traceRing) reset() {
	t.next = 0
	t.filled = false
}

func (t *traceRing) push(pc, ins uint32) {
	t.entries[t.next] = traceEntry{pc: pc, ins: ins}
	t.next++
	if t.next == len(t.entries) {
		t.next = 0
		t.filled = true
	}
}

// snapshot returns entries oldest first.
func (t *traceRing) snapshot() []traceEntry {
	if !t.filled {
		out := make([]traceEntry, t.next)
		copy(out, t.entries[:t.next])
		return out
	}
	out := make([]traceEntry, 0, len(t.entries))
	out = append(out, t.entries[t.next:]...)
	out = append(out, t.entries[:t.next]...)
	return out
}
