package irq

import "testing"

import "idt"
import "kbd"
import "machine"
import "pic"

// the bridge queue is process-wide, so the consuming sequence is
// constructed once for the whole test binary
var scancodes = kbd.Mkscancodes()

type testwaker_t struct {
	n int
}

func (w *testwaker_t) Wake() {
	w.n++
}

func mkdisp() (*machine.Machine_t, *Dispatcher_t) {
	m := machine.Mkmachine()
	p := pic.Mkpic(m.Bus, PICOFF, PICOFF+pic.NIRQS)
	p.Remap()
	return m, Install(m.Bus, p, m.Cpu)
}

func TestInstall(t *testing.T) {
	m, d := mkdisp()
	// the remap reached the simulated controllers
	o1, o2 := m.Pic.Offsets()
	if o1 != PICOFF || o2 != PICOFF+pic.NIRQS {
		t.Fatalf("device offsets %v, %v", o1, o2)
	}
	tb := d.Table()
	for _, vec := range []int{idt.BREAKPOINT, idt.DOUBLEFAULT,
		idt.PAGEFAULT, TIMER, KEYBOARD, SECONDARYATA} {
		if !tb.Entry(vec).Present() {
			t.Fatalf("vector %v not populated", vec)
		}
	}
	if ist := tb.Entry(idt.DOUBLEFAULT).Ist(); ist != 1 {
		t.Fatalf("double fault ist %v", ist)
	}
	if !tb.Installed() {
		t.Fatalf("table not installed")
	}
}

func TestBadremap(t *testing.T) {
	m := machine.Mkmachine()
	p := pic.Mkpic(m.Bus, 48, 56)
	p.Remap()
	defer func() {
		if recover() == nil {
			t.Fatalf("wrong controller offsets did not panic")
		}
	}()
	Install(m.Bus, p, m.Cpu)
}

func TestTimer(t *testing.T) {
	m, d := mkdisp()
	me0, _ := m.Pic.Eois()
	for i := 0; i < 5; i++ {
		d.Raise(TIMER)
	}
	if got := d.Ticks(); got != 5 {
		t.Fatalf("%v ticks", got)
	}
	if got := d.Irqcount(TIMER); got != 5 {
		t.Fatalf("timer dispatched %v times", got)
	}
	me1, _ := m.Pic.Eois()
	if me1-me0 != 5 {
		t.Fatalf("%v master eois for 5 timer interrupts", me1-me0)
	}
}

func TestKeyboard(t *testing.T) {
	m, d := mkdisp()
	w := &testwaker_t{}
	for {
		if _, ok := scancodes.Poll(w); !ok {
			break
		}
	}

	m.Kbd.Inject('h', 'i')
	me0, se0 := m.Pic.Eois()
	for m.Kbd.Intr() {
		d.Raise(KEYBOARD)
	}
	var got []uint8
	for {
		v, ok := scancodes.Poll(w)
		if !ok {
			break
		}
		got = append(got, v)
	}
	if string(got) != "hi" {
		t.Fatalf("bridge delivered %q", string(got))
	}
	me1, se1 := m.Pic.Eois()
	// the keyboard line belongs to the master alone
	if me1-me0 != 2 || se1 != se0 {
		t.Fatalf("eois %v master, %v slave", me1-me0, se1-se0)
	}
	if n := d.Irqcount(KEYBOARD); n != 2 {
		t.Fatalf("keyboard dispatched %v times", n)
	}
}

func TestMasked(t *testing.T) {
	_, d := mkdisp()
	d.Nointerrupts(func() {
		d.Raise(TIMER)
		d.Raise(TIMER)
		if d.ticks != 0 {
			t.Fatalf("tick delivered inside masked section")
		}
	})
	if got := d.Ticks(); got != 2 {
		t.Fatalf("%v ticks after unmask", got)
	}
}

func TestDrainorder(t *testing.T) {
	m, d := mkdisp()
	n0 := len(m.Pic.Writes())
	d.Nointerrupts(func() {
		d.Raise(SECONDARYATA)
		d.Raise(TIMER)
	})
	// pending vectors deliver lowest line first: the timer eoi hits the
	// master before the secondary ata eoi hits slave then master
	ws := m.Pic.Writes()[n0:]
	if len(ws) != 3 {
		t.Fatalf("%v eoi writes", len(ws))
	}
	want := []machine.Picwrite_t{
		{Port: 0x20, Val: 0x20},
		{Port: 0xA0, Val: 0x20},
		{Port: 0x20, Val: 0x20},
	}
	for i, w := range ws {
		if w != want[i] {
			t.Fatalf("eoi write %v: %+v", i, w)
		}
	}
}

func TestRaisetrap(t *testing.T) {
	_, d := mkdisp()
	defer func() {
		if recover() == nil {
			t.Fatalf("raising a trap vector did not panic")
		}
	}()
	d.Raise(idt.BREAKPOINT)
}

func TestBreakpoint(t *testing.T) {
	m, d := mkdisp()
	d.Dispatch(idt.BREAKPOINT, &idt.Frame_t{Ip: 0x1000}, 0)
	if m.Cpu.Halted() {
		t.Fatalf("breakpoint halted the core")
	}
}

func TestPagefault(t *testing.T) {
	m, d := mkdisp()
	tf := &idt.Frame_t{Ip: 0x1000, Cr2: 0xdeadbeef}
	d.Dispatch(idt.PAGEFAULT, tf, PFPROT|PFWRITE)
	if !m.Cpu.Halted() {
		t.Fatalf("page fault did not halt the core")
	}
}

func TestDoublefault(t *testing.T) {
	_, d := mkdisp()
	defer func() {
		if recover() == nil {
			t.Fatalf("double fault did not panic")
		}
	}()
	d.Dispatch(idt.DOUBLEFAULT, &idt.Frame_t{}, 0)
}

func TestStray(t *testing.T) {
	m, d := mkdisp()
	me0, se0 := m.Pic.Eois()
	d.Raise(PRIMARYATA)
	me1, se1 := m.Pic.Eois()
	// a slave line acknowledges on both controllers
	if se1-se0 != 1 || me1-me0 != 1 {
		t.Fatalf("eois %v master, %v slave", me1-me0, se1-se0)
	}
	if n := d.Irqcount(PRIMARYATA); n != 1 {
		t.Fatalf("stray dispatched %v times", n)
	}
}

func TestPferrstr(t *testing.T) {
	for _, c := range []struct {
		ec   int
		want string
	}{
		{0, "read of missing page"},
		{PFPROT, "protection violation"},
		{PFWRITE, "read of missing page, write"},
		{PFPROT | PFUSER | PFINSTR,
			"protection violation, from user mode, instruction fetch"},
	} {
		if got := pferrstr(c.ec); got != c.want {
			t.Fatalf("pferrstr(%#x) = %q", c.ec, got)
		}
	}
}
