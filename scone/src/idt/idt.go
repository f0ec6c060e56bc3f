// Package idt holds the interrupt vector table: 256 fixed slots mapping
// vector numbers to handler routines. The table is populated during boot
// and then installed exactly once; after installation it is immutable.
package idt

/// NVEC is the number of vector table slots.
const NVEC = 256

// CPU exception vectors used by this kernel.
const (
	BREAKPOINT  = 3
	DOUBLEFAULT = 8
	PAGEFAULT   = 14
)

/// KCODE is the kernel code segment selector installed in every entry.
const KCODE = 0x08

/// Frame_t is the interrupted state a handler sees.
type Frame_t struct {
	Ip    uintptr /// saved instruction pointer
	Cs    uint16  /// saved code segment
	Flags uintptr /// saved cpu flags
	Sp    uintptr /// saved stack pointer
	Ss    uint16  /// saved stack segment
	Cr2   uintptr /// faulting address; valid only for page faults
}

/// Handler_t services one vector. errcode is zero for vectors that push
/// no error code.
type Handler_t func(tf *Frame_t, errcode int)

/// Entry_t is a single vector table slot.
type Entry_t struct {
	handler Handler_t
	sel     uint16
	dpl     uint8
	ist     uint8
	present bool
}

/// Present reports whether the slot has a handler.
func (e *Entry_t) Present() bool {
	return e.present
}

/// Sel returns the code segment selector the handler runs with.
func (e *Entry_t) Sel() uint16 {
	return e.sel
}

/// Dpl returns the privilege level required to raise the vector from
/// software.
func (e *Entry_t) Dpl() uint8 {
	return e.dpl
}

/// Ist returns the exception stack index, or zero for the normal stack.
func (e *Entry_t) Ist() uint8 {
	return e.ist
}

/// Idt_t is the vector table. Write-once/read-many: all mutation must
/// happen before Install.
type Idt_t struct {
	ents      [NVEC]Entry_t
	installed bool
}

/// Mkidt returns an empty table.
func Mkidt() *Idt_t {
	return &Idt_t{}
}

func (t *Idt_t) chkmut(vec int) {
	if vec < 0 || vec >= NVEC {
		panic("bad vector")
	}
	if t.installed {
		panic("idt: mutate after install")
	}
}

/// Setentry binds h to vec with the kernel code selector and the normal
/// stack. Panics once the table is installed.
func (t *Idt_t) Setentry(vec int, h Handler_t) {
	t.chkmut(vec)
	if h == nil {
		panic("nil handler")
	}
	t.ents[vec] = Entry_t{handler: h, sel: KCODE, present: true}
}

/// Setist gives vec a dedicated exception stack. Only the double fault
/// vector needs one: its handler must be able to run even when the normal
/// stack is the thing that faulted.
func (t *Idt_t) Setist(vec int, ist uint8) {
	t.chkmut(vec)
	if !t.ents[vec].present {
		panic("ist on empty vector")
	}
	t.ents[vec].ist = ist
}

/// Entry returns the slot for vec.
func (t *Idt_t) Entry(vec int) *Entry_t {
	if vec < 0 || vec >= NVEC {
		panic("bad vector")
	}
	return &t.ents[vec]
}

/// Install activates the table. It must be called exactly once, before
/// interrupts are unmasked; a second call is rejected by panic.
func (t *Idt_t) Install() {
	if t.installed {
		panic("idt: double install")
	}
	t.installed = true
}

/// Installed reports whether the table has been activated.
func (t *Idt_t) Installed() bool {
	return t.installed
}

/// Invoke runs the handler bound to vec. Dispatching through a table that
/// was never installed, or a vector nothing claimed, is fatal: there is
/// no recovery context.
func (t *Idt_t) Invoke(vec int, tf *Frame_t, errcode int) {
	if !t.installed {
		panic("idt: dispatch before install")
	}
	e := t.Entry(vec)
	if !e.present {
		panic("idt: vector without handler")
	}
	e.handler(tf, errcode)
}
