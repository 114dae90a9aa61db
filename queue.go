package ft2engine

import "sync/atomic"

// scopeFrame is one snapshot pushed to a host's oscilloscope/VU-meter
// display: per-channel period/volume/panning plus whether the voice is
// currently active, taken once per tick (spec.md §5 "scope sync queue").
type scopeFrame struct {
	Tick     int64
	Channels []ScopeChannel
}

// ScopeChannel is the public per-channel view of one scopeFrame.
type ScopeChannel struct {
	Active  bool
	Period  int
	Volume  int
	Panning int
}

// midiEvent is one outbound MIDI-out message queued by the replayer for
// instruments with MIDIOut.Enabled (spec.md §5 "MIDI out queue").
type midiEvent struct {
	Channel int
	Status  byte
	Data1   byte
	Data2   byte
}

// spscRing is a fixed-capacity, lock-free single-producer/single-
// consumer ring buffer, per spec.md §5's two named queues (scope sync,
// MIDI out): the audio thread is the sole producer and must never block
// or allocate, the control/UI thread is the sole consumer. A full queue
// silently drops the newest item (spec.md §7: QueueFull is never
// surfaced to the caller).
type spscRing[T any] struct {
	buf        []T
	mask       uint64
	writeIdx   atomic.Uint64
	readIdx    atomic.Uint64
}

// newSPSCRing allocates a ring of the given capacity, rounded up to the
// next power of two so index wrapping is a mask instead of a modulo.
func newSPSCRing[T any](capacity int) *spscRing[T] {
	n := 1
	for n < capacity {
		n <<= 1
	}
	return &spscRing[T]{buf: make([]T, n), mask: uint64(n - 1)}
}

// TryPush attempts to enqueue v without blocking. Returns false (and
// drops v) if the ring is full - the producer (audio thread) must never
// wait on the consumer.
func (q *spscRing[T]) TryPush(v T) bool {
	w := q.writeIdx.Load()
	r := q.readIdx.Load()
	if w-r >= uint64(len(q.buf)) {
		return false
	}
	q.buf[w&q.mask] = v
	q.writeIdx.Store(w + 1)
	return true
}

// TryPop attempts to dequeue one item without blocking. Returns false if
// the ring is empty.
func (q *spscRing[T]) TryPop() (T, bool) {
	var zero T
	r := q.readIdx.Load()
	w := q.writeIdx.Load()
	if r >= w {
		return zero, false
	}
	v := q.buf[r&q.mask]
	q.readIdx.Store(r + 1)
	return v, true
}

// Len reports the number of items currently queued, safe to call from
// either thread for diagnostics (not exact under concurrent use, but
// never underflows since both indices only increase).
func (q *spscRing[T]) Len() int {
	return int(q.writeIdx.Load() - q.readIdx.Load())
}
