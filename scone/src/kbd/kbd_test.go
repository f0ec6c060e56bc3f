package kbd

import "testing"

type countwaker_t struct {
	n int
}

func (w *countwaker_t) Wake() {
	w.n++
}

func TestQueuefifo(t *testing.T) {
	q := &Scanq_t{}
	for i := 0; i < SCANQSZ; i++ {
		if !q.Push(uint8(i)) {
			t.Fatalf("push %v rejected", i)
		}
	}
	if q.Push(0xFF) {
		t.Fatalf("push into full queue accepted")
	}
	if !q.Full() {
		t.Fatalf("queue not full after %v pushes", SCANQSZ)
	}
	for i := 0; i < SCANQSZ; i++ {
		v, ok := q.Pop()
		if !ok {
			t.Fatalf("pop %v failed", i)
		}
		if v != uint8(i) {
			t.Fatalf("pop %v returned %v", i, v)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Fatalf("pop from empty queue succeeded")
	}
	if !q.Empty() {
		t.Fatalf("drained queue not empty")
	}
}

func TestQueuewrap(t *testing.T) {
	q := &Scanq_t{}
	// drive head and tail several times around the buffer
	for i := 0; i < 5*SCANQSZ; i++ {
		if !q.Push(uint8(i)) {
			t.Fatalf("push %v rejected", i)
		}
		v, ok := q.Pop()
		if !ok || v != uint8(i) {
			t.Fatalf("pop %v returned %v, %v", i, v, ok)
		}
	}
}

func TestQueuecounterwrap(t *testing.T) {
	// the capacity does not divide 2^32, so positions straddling a
	// 32-bit counter boundary must still map to distinct slots
	base := uint64(1)<<32 - 50
	q := &Scanq_t{head: base, tail: base}
	for i := 0; i < SCANQSZ; i++ {
		if !q.Push(uint8(i)) {
			t.Fatalf("push %v rejected", i)
		}
	}
	for i := 0; i < SCANQSZ; i++ {
		v, ok := q.Pop()
		if !ok || v != uint8(i) {
			t.Fatalf("pop %v returned %v, %v", i, v, ok)
		}
	}
	if !q.Empty() {
		t.Fatalf("drained queue not empty")
	}
}

func TestUsedleft(t *testing.T) {
	q := &Scanq_t{}
	if q.Used() != 0 || q.Left() != SCANQSZ {
		t.Fatalf("fresh queue used %v left %v", q.Used(), q.Left())
	}
	q.Push(1)
	q.Push(2)
	q.Push(3)
	if q.Used() != 3 || q.Left() != SCANQSZ-3 {
		t.Fatalf("used %v left %v", q.Used(), q.Left())
	}
	q.Pop()
	if q.Used() != 2 {
		t.Fatalf("used %v after pop", q.Used())
	}
}

func TestWakeslot(t *testing.T) {
	s := &Wakeslot_t{}
	if s.Take() != nil {
		t.Fatalf("empty slot returned a waker")
	}
	// a wake with nothing registered is a no-op
	s.Wake()

	w1 := &countwaker_t{}
	w2 := &countwaker_t{}
	s.Register(w1)
	s.Register(w2)
	s.Wake()
	if w1.n != 0 {
		t.Fatalf("overwritten waker woke %v times", w1.n)
	}
	if w2.n != 1 {
		t.Fatalf("last waker woke %v times", w2.n)
	}
	// the slot is consumed by the wake
	s.Wake()
	if w2.n != 1 {
		t.Fatalf("consumed waker woke again")
	}
}

func TestNilwaker(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("nil waker registration did not panic")
		}
	}()
	(&Wakeslot_t{}).Register(nil)
}

func TestPoll(t *testing.T) {
	s := &Scancodes_t{q: &Scanq_t{}, w: &Wakeslot_t{}}
	w := &countwaker_t{}

	if _, ok := s.Poll(w); ok {
		t.Fatalf("poll of empty stream ready")
	}
	// the not-ready poll left the waker registered; a push wakes it
	s.q.Push(0x9C)
	s.w.Wake()
	if w.n != 1 {
		t.Fatalf("waker woke %v times", w.n)
	}
	v, ok := s.Poll(w)
	if !ok || v != 0x9C {
		t.Fatalf("poll returned %v, %v", v, ok)
	}
	// a ready poll must not leave a stale registration behind
	if s.w.Take() != nil {
		t.Fatalf("ready poll left a waker registered")
	}
}

func TestPollrecheck(t *testing.T) {
	// a byte queued before the poll is returned without registering,
	// closing the window where a push lands between check and suspend
	s := &Scancodes_t{q: &Scanq_t{}, w: &Wakeslot_t{}}
	s.q.Push(0x01)
	w := &countwaker_t{}
	v, ok := s.Poll(w)
	if !ok || v != 0x01 {
		t.Fatalf("poll returned %v, %v", v, ok)
	}
	if s.w.Take() != nil {
		t.Fatalf("poll registered despite data being ready")
	}
}

// TestBridge exercises the process-wide singleton, so it is the only test
// here allowed to touch Mkscancodes and Pushscancode.
func TestBridge(t *testing.T) {
	// input arriving before boot finishes is dropped, not crashed on
	Pushscancode(0x55)

	s := Mkscancodes()
	w := &countwaker_t{}
	if _, ok := s.Poll(w); ok {
		t.Fatalf("pre-boot input survived into the stream")
	}

	Pushscancode(0x1E)
	if w.n != 1 {
		t.Fatalf("push woke %v times", w.n)
	}
	v, ok := s.Poll(w)
	if !ok || v != 0x1E {
		t.Fatalf("poll returned %v, %v", v, ok)
	}

	// a full queue drops the newest byte
	for i := 0; i < SCANQSZ; i++ {
		Pushscancode(uint8(i))
	}
	Pushscancode(0xFF)
	for i := 0; i < SCANQSZ; i++ {
		v, ok := s.Poll(w)
		if !ok || v != uint8(i) {
			t.Fatalf("byte %v read back as %v, %v", i, v, ok)
		}
	}
	if _, ok := s.Poll(w); ok {
		t.Fatalf("dropped byte showed up anyway")
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("second construction did not panic")
		}
	}()
	Mkscancodes()
}
