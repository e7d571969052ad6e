package audio

// PreStreamBufferBytes bounds the ring buffer that accumulates caller audio
// arriving before the ASR worker has finished its warmup burst: roughly
// 0.3s at 16kHz/16-bit/mono.
const PreStreamBufferBytes = 9600

// RingBuffer is a fixed-capacity byte ring that drops the oldest bytes once
// full, used to hold audio across the brief window between RTP ingress
// starting and the ASR stream becoming ready to accept it.
type RingBuffer struct {
	data []byte
	cap  int
}

// NewRingBuffer builds a RingBuffer with the given byte capacity.
func NewRingBuffer(capacity int) *RingBuffer {
	return &RingBuffer{data: make([]byte, 0, capacity), cap: capacity}
}

// Write appends p to the buffer, dropping the oldest bytes first if that
// would exceed capacity.
func (b *RingBuffer) Write(p []byte) {
	if len(p) >= b.cap {
		b.data = append(b.data[:0], p[len(p)-b.cap:]...)
		return
	}
	overflow := len(b.data) + len(p) - b.cap
	if overflow > 0 {
		b.data = b.data[overflow:]
	}
	b.data = append(b.data, p...)
}

// Drain returns all buffered bytes and empties the buffer.
func (b *RingBuffer) Drain() []byte {
	out := make([]byte, len(b.data))
	copy(out, b.data)
	b.data = b.data[:0]
	return out
}

// Len reports the number of bytes currently buffered.
func (b *RingBuffer) Len() int { return len(b.data) }
