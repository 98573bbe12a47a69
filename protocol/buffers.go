package protocol

// Fixed-size receive ring. Filled from the serial interrupt, drained by the
// foreground poll loop; single-producer single-reader, no allocation after
// init.

const (
	// RxBufferSize is the serial receive ring capacity.
	RxBufferSize = 256
)

// RingBuffer is a byte ring with fixed backing storage.
type RingBuffer struct {
	buf  [RxBufferSize]byte
	head uint16 // next read position
	tail uint16 // next write position
}

// Put appends a byte, returning false when the ring is full.
func (r *RingBuffer) Put(b byte) bool {
	next := (r.tail + 1) % RxBufferSize
	if next == r.head {
		return false
	}
	r.buf[r.tail] = b
	r.tail = next
	return true
}

// Get removes and returns the oldest byte.
func (r *RingBuffer) Get() (byte, bool) {
	if r.head == r.tail {
		return 0, false
	}
	b := r.buf[r.head]
	r.head = (r.head + 1) % RxBufferSize
	return b, true
}

// Available returns the number of buffered bytes.
func (r *RingBuffer) Available() int {
	if r.tail >= r.head {
		return int(r.tail - r.head)
	}
	return int(RxBufferSize - r.head + r.tail)
}

// Free returns the remaining capacity.
func (r *RingBuffer) Free() int {
	return RxBufferSize - 1 - r.Available()
}

// Reset empties the ring.
func (r *RingBuffer) Reset() {
	r.head = 0
	r.tail = 0
}
