// Package irq owns the live interrupt vector table and the single core's
// interrupt-flag state. Install populates the table once at boot; after
// that the dispatcher routes vectors to handlers, each of which runs with
// interrupts disabled, does bounded work without allocating, and ends by
// acknowledging its controller line.
package irq

import "fmt"

import "idt"
import "kbd"
import "pic"
import "port"

const irq_debug = false

/// PICOFF is the vector base the controller pair is remapped to: a
/// contiguous 16-vector block clear of the CPU exception range.
const PICOFF = 32

/// External interrupt vectors, in controller line order.
const (
	TIMER = PICOFF + iota
	KEYBOARD
	CASCADE
	SERIAL1
	SERIAL2
	PARALLEL2
	FLOPPY
	PARALLEL1
	RTC
	ACPI
	RESERVED1
	RESERVED2
	MOUSE
	COPROC
	PRIMARYATA
	SECONDARYATA
)

/// NVECS is the number of external vectors the pair delivers.
const NVECS = 2 * pic.NIRQS

/// KBDATAPORT is the keyboard controller data port.
const KBDATAPORT = 0x60

// page fault error code bits
const (
	PFPROT  = 1 << iota /// fault on a present page
	PFWRITE             /// faulting access was a write
	PFUSER              /// fault came from user mode
	PFRSVD              /// reserved page table bits were set
	PFINSTR             /// fault on an instruction fetch
)

/// Halt_i stops the processor permanently; the page fault handler uses it
/// because there is no recovery path.
type Halt_i interface {
	Halt()
}

/// Dispatcher_t routes vectors to their handlers and models the core's
/// cli/sti state: vectors raised while interrupts are masked latch in a
/// per-line bitmask, then deliver lowest-line-first when delivery is
/// unmasked again, which is the controller pair's priority order.
type Dispatcher_t struct {
	table   *idt.Idt_t
	pic     *pic.Pic_t
	bus     port.Io_i
	cpu     Halt_i
	intson  bool
	pending uint16
	ticks   uint64
	nirqs   [idt.NVEC]uint
}

/// Install populates the vector table, activates it, and enables
/// delivery. It must run before interrupts are unmasked; installing twice
/// trips the table's write-once panic.
func Install(bus port.Io_i, p *pic.Pic_t, cpu Halt_i) *Dispatcher_t {
	off1, off2 := p.Offsets()
	if off1 != PICOFF || off2 != PICOFF+pic.NIRQS {
		panic("pic remapped somewhere unexpected")
	}
	d := &Dispatcher_t{pic: p, bus: bus, cpu: cpu}
	t := idt.Mkidt()
	t.Setentry(idt.BREAKPOINT, d.breakpoint)
	t.Setentry(idt.PAGEFAULT, d.pagefault)
	t.Setentry(idt.DOUBLEFAULT, d.doublefault)
	// the double fault handler must not itself fault, so it runs on a
	// dedicated exception stack
	t.Setist(idt.DOUBLEFAULT, 1)
	t.Setentry(TIMER, d.timerintr)
	t.Setentry(KEYBOARD, d.kbdintr)
	for v := CASCADE; v <= SECONDARYATA; v++ {
		t.Setentry(v, d.strayintr(uint8(v)))
	}
	t.Install()
	d.table = t
	d.intson = true
	return d
}

/// Table returns the installed vector table.
func (d *Dispatcher_t) Table() *idt.Idt_t {
	return d.table
}

/// Dispatch runs vec's handler immediately, with interrupts masked for
/// its duration the way hardware delivery masks them.
func (d *Dispatcher_t) Dispatch(vec uint8, tf *idt.Frame_t, errcode int) {
	was := d.intson
	d.intson = false
	d.nirqs[vec]++
	d.table.Invoke(int(vec), tf, errcode)
	d.intson = was
	if was {
		d.drain()
	}
}

/// Raise delivers an external vector, or latches it if interrupts are
/// masked. Traps cannot be raised; they come from the instruction stream.
func (d *Dispatcher_t) Raise(vec uint8) {
	if vec < PICOFF || vec >= PICOFF+NVECS {
		panic("raise of non-external vector")
	}
	if !d.intson {
		d.pending |= 1 << (vec - PICOFF)
		return
	}
	d.Dispatch(vec, &idt.Frame_t{}, 0)
}

/// Nointerrupts runs f with interrupt delivery masked. Vectors raised in
/// the meantime are delivered when the outermost section ends, so shared
/// state read inside f is a consistent snapshot.
func (d *Dispatcher_t) Nointerrupts(f func()) {
	was := d.intson
	d.intson = false
	f()
	d.intson = was
	if was {
		d.drain()
	}
}

func (d *Dispatcher_t) drain() {
	for d.pending != 0 && d.intson {
		for i := uint8(0); i < NVECS; i++ {
			if d.pending&(1<<i) != 0 {
				d.pending &^= 1 << i
				d.Dispatch(PICOFF+i, &idt.Frame_t{}, 0)
				break
			}
		}
	}
}

/// Ticks returns a consistent snapshot of the monotonic timer count.
func (d *Dispatcher_t) Ticks() uint64 {
	var t uint64
	d.Nointerrupts(func() {
		t = d.ticks
	})
	return t
}

/// Irqcount returns how many times vec has been dispatched.
func (d *Dispatcher_t) Irqcount(vec uint8) uint {
	return d.nirqs[vec]
}

// timerintr counts the tick. Interrupts are already masked in handler
// context, so the increment is an atomic snapshot for Ticks readers.
func (d *Dispatcher_t) timerintr(_ *idt.Frame_t, _ int) {
	d.ticks++
	d.pic.Eoi(TIMER)
}

// kbdintr reads exactly one byte from the keyboard data port and hands it
// to the event bridge. Nothing here blocks, allocates, or takes a lock.
func (d *Dispatcher_t) kbdintr(_ *idt.Frame_t, _ int) {
	sc := d.bus.Inb(KBDATAPORT)
	kbd.Pushscancode(sc)
	d.pic.Eoi(KEYBOARD)
}

// strayintr returns a handler that only acknowledges the line.
func (d *Dispatcher_t) strayintr(vec uint8) idt.Handler_t {
	return func(_ *idt.Frame_t, _ int) {
		if irq_debug {
			fmt.Printf("irq: vector %v\n", vec)
		}
		d.pic.Eoi(vec)
	}
}

// breakpoint is a diagnostic trap; execution resumes after it.
func (d *Dispatcher_t) breakpoint(tf *idt.Frame_t, _ int) {
	fmt.Printf("EXCEPTION: breakpoint at %#x\n", tf.Ip)
}

// pagefault reports the faulting access and halts the core permanently:
// with no paging-in path there is nothing to resume to.
func (d *Dispatcher_t) pagefault(tf *idt.Frame_t, errcode int) {
	fmt.Printf("EXCEPTION: page fault\n")
	fmt.Printf("\taddress: %#x\n", tf.Cr2)
	fmt.Printf("\terror:   %s\n", pferrstr(errcode))
	fmt.Printf("\tip:      %#x\n", tf.Ip)
	d.cpu.Halt()
}

// doublefault terminates the kernel. It runs on its own stack and must
// not fault; panic is the diagnostic of last resort.
func (d *Dispatcher_t) doublefault(tf *idt.Frame_t, errcode int) {
	panic(fmt.Sprintf("EXCEPTION: double fault at %#x (error %#x)",
		tf.Ip, errcode))
}

func pferrstr(ec int) string {
	s := "read of missing page"
	if ec&PFPROT != 0 {
		s = "protection violation"
	}
	if ec&PFWRITE != 0 {
		s += ", write"
	}
	if ec&PFUSER != 0 {
		s += ", from user mode"
	}
	if ec&PFRSVD != 0 {
		s += ", reserved bits set"
	}
	if ec&PFINSTR != 0 {
		s += ", instruction fetch"
	}
	return s
}
