// Package kbd bridges the keyboard interrupt handler to the cooperative
// scheduler: a bounded scancode queue written from interrupt context and
// a lazily polled sequence consumed by exactly one scheduler task.
package kbd

import "fmt"
import "sync/atomic"

/// SCANQSZ is the scancode queue capacity in bytes.
const SCANQSZ = 100

/// Scanq_t is a bounded single-producer single-consumer byte queue. The
/// producer runs in interrupt context, so neither side may block or
/// allocate; head and tail are the only state shared between the two
/// execution contexts and each is written by only one side.
type Scanq_t struct {
	buf [SCANQSZ]uint8
	// 64-bit so the counters never wrap in practice: the capacity does
	// not divide 2^32, so a 32-bit wrap would alias two live positions
	// onto one slot
	head uint64 /// consumer position
	tail uint64 /// producer position
}

/// Push appends v and reports false when the queue is full.
func (q *Scanq_t) Push(v uint8) bool {
	t := atomic.LoadUint64(&q.tail)
	h := atomic.LoadUint64(&q.head)
	if t-h == SCANQSZ {
		return false
	}
	q.buf[t%SCANQSZ] = v
	atomic.StoreUint64(&q.tail, t+1)
	return true
}

/// Pop removes the oldest byte, reporting false when the queue is empty.
func (q *Scanq_t) Pop() (uint8, bool) {
	h := atomic.LoadUint64(&q.head)
	t := atomic.LoadUint64(&q.tail)
	if t == h {
		return 0, false
	}
	v := q.buf[h%SCANQSZ]
	atomic.StoreUint64(&q.head, h+1)
	return v, true
}

/// Empty reports whether the queue contains any data.
func (q *Scanq_t) Empty() bool {
	return q.Used() == 0
}

/// Full returns true when the queue cannot accept more data.
func (q *Scanq_t) Full() bool {
	return q.Used() == SCANQSZ
}

/// Used returns the current number of queued bytes.
func (q *Scanq_t) Used() int {
	return int(atomic.LoadUint64(&q.tail) - atomic.LoadUint64(&q.head))
}

/// Left returns the remaining capacity in bytes.
func (q *Scanq_t) Left() int {
	return SCANQSZ - q.Used()
}

/// Waker_i marks a suspended consumer ready to be polled again.
type Waker_i interface {
	Wake()
}

/// Wakeslot_t holds at most one pending waker. Registration overwrites:
/// the last registration wins.
type Wakeslot_t struct {
	w atomic.Pointer[Waker_i]
}

/// Register installs w, replacing any previous registration.
func (s *Wakeslot_t) Register(w Waker_i) {
	if w == nil {
		panic("nil waker")
	}
	s.w.Store(&w)
}

/// Take clears the slot and returns the registered waker, if any.
func (s *Wakeslot_t) Take() Waker_i {
	if p := s.w.Swap(nil); p != nil {
		return *p
	}
	return nil
}

/// Wake takes the registered waker and invokes it. A slot with no
/// registration is a no-op; a byte is waiting in the queue for whoever
/// polls next.
func (s *Wakeslot_t) Wake() {
	if w := s.Take(); w != nil {
		w.Wake()
	}
}

/// Scancodes_t is the lazy, non-restartable sequence of raw scancode
/// bytes. Only one concurrent consumer is supported; constructing a
/// second one is a caller bug.
type Scancodes_t struct {
	q *Scanq_t
	w *Wakeslot_t
}

/// Poll returns the next scancode if one is queued. Otherwise it
/// registers w and pops once more before reporting not-ready, so a push
/// that lands between the first check and the registration is not lost.
func (s *Scancodes_t) Poll(w Waker_i) (uint8, bool) {
	if v, ok := s.q.Pop(); ok {
		return v, true
	}
	s.w.Register(w)
	if v, ok := s.q.Pop(); ok {
		s.w.Take()
		return v, true
	}
	return 0, false
}

// Process-wide bridge state. The keyboard is singular hardware, so the
// queue and the waker slot are too; both live for the life of the kernel.
var scanq *Scanq_t
var wakeslot Wakeslot_t

/// Mkscancodes lazily creates the process-wide queue and returns the
/// consuming sequence. It must be called exactly once.
func Mkscancodes() *Scancodes_t {
	if scanq != nil {
		panic("kbd: scancode stream already constructed")
	}
	scanq = &Scanq_t{}
	return &Scancodes_t{q: scanq, w: &wakeslot}
}

/// Pushscancode hands one raw byte from the keyboard interrupt handler to
/// the consumer side. Called only from interrupt context: it never blocks
/// and never allocates. A full queue drops the byte with a warning since
/// the producer cannot be delayed; a successful push wakes the consumer.
func Pushscancode(v uint8) {
	if scanq == nil {
		fmt.Printf("WARNING: scancode queue uninitialized; dropping input\n")
		return
	}
	if !scanq.Push(v) {
		fmt.Printf("WARNING: scancode queue full; dropping keyboard input\n")
		return
	}
	wakeslot.Wake()
}
