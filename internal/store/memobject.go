package store

// MemObject is the in-memory body of an object, growing while the producer
// appends. inmemHi is the highest offset known valid in memory and is
// monotonically non-decreasing; swapOff / swapQueued track how much of the
// buffer has been persisted respectively submitted to the swap-out handle.
type MemObject struct {
	data []byte

	inmemHi int64

	swapOff    int64
	swapQueued int64
}

func newMemObject() *MemObject {
	return &MemObject{}
}

func (m *MemObject) append(p []byte) {
	m.data = append(m.data, p...)
	m.inmemHi += int64(len(p))
}

func (m *MemObject) InmemHi() int64 {
	return m.inmemHi
}

// copyAt copies up to n bytes starting at off into a fresh slice. The
// caller must have checked that off < inmemHi.
func (m *MemObject) copyAt(off int64, n int) []byte {
	if off < 0 || off >= m.inmemHi {
		panic("logic error: copyAt outside of valid in-memory range")
	}
	end := off + int64(n)
	if end > m.inmemHi {
		end = m.inmemHi
	}
	out := make([]byte, end-off)
	copy(out, m.data[off:end])
	return out
}

// unqueued returns the appended bytes not yet submitted for swap-out and
// advances the submission watermark past them.
func (m *MemObject) unqueued() []byte {
	if m.swapQueued >= m.inmemHi {
		return nil
	}
	p := m.data[m.swapQueued:m.inmemHi]
	m.swapQueued = m.inmemHi
	return p
}
