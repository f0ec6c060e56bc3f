// Package pic drives the chained pair of 8259 interrupt controllers: it
// remaps their vector offsets away from the CPU exception range at boot
// and acknowledges serviced interrupt lines.
package pic

import "port"

// controller port groups
const (
	CMD1  = 0x20 /// master command
	DATA1 = 0x21 /// master data
	CMD2  = 0xA0 /// slave command
	DATA2 = 0xA1 /// slave data
)

// initialization and operation command words
const (
	ICW1INIT = 0x11 /// begin initialization, ICW4 expected
	ICW3MST  = 0x04 /// slave attached to master line 2
	ICW3SLV  = 0x02 /// cascade identity of the slave
	ICW4MODE = 0x01 /// 8086 mode
	EOICMD   = 0x20 /// non-specific end of interrupt
)

// The controllers need a moment between initialization writes; a write to
// an unused port provides it.
const waitport = 0x80

/// NIRQS is the number of interrupt lines per controller.
const NIRQS = 8

/// Pic_t is the controller pair. The programmed offsets are write-once at
/// boot; the only post-boot operation is acknowledgement.
type Pic_t struct {
	bus  port.Io_i
	off1 uint8
	off2 uint8
}

/// Mkpic prepares a driver for the pair with the given vector offsets.
/// The offsets must be disjoint and contiguous: the slave's base is the
/// master's base plus its eight lines.
func Mkpic(bus port.Io_i, off1, off2 uint8) *Pic_t {
	if off2 != off1+NIRQS {
		panic("pic offsets not contiguous")
	}
	return &Pic_t{bus: bus, off1: off1, off2: off2}
}

/// Offsets returns the programmed vector bases of the two controllers.
func (p *Pic_t) Offsets() (uint8, uint8) {
	return p.off1, p.off2
}

/// Remap runs the ICW1..ICW4 initialization sequence on both controllers,
/// programming the vector offsets. The mask registers are preserved
/// across the sequence.
func (p *Pic_t) Remap() {
	m1 := p.bus.Inb(DATA1)
	m2 := p.bus.Inb(DATA2)

	p.bus.Outb(CMD1, ICW1INIT)
	p.settle()
	p.bus.Outb(CMD2, ICW1INIT)
	p.settle()
	p.bus.Outb(DATA1, p.off1)
	p.settle()
	p.bus.Outb(DATA2, p.off2)
	p.settle()
	p.bus.Outb(DATA1, ICW3MST)
	p.settle()
	p.bus.Outb(DATA2, ICW3SLV)
	p.settle()
	p.bus.Outb(DATA1, ICW4MODE)
	p.settle()
	p.bus.Outb(DATA2, ICW4MODE)
	p.settle()

	p.bus.Outb(DATA1, m1)
	p.bus.Outb(DATA2, m2)
}

func (p *Pic_t) settle() {
	p.bus.Outb(waitport, 0)
}

/// Handles reports whether vec falls in the pair's remapped vector range.
func (p *Pic_t) Handles(vec uint8) bool {
	return vec >= p.off1 && vec < p.off2+NIRQS
}

/// Eoi acknowledges the line that raised vec. A vector owned by the slave
/// must be acknowledged on both controllers since the slave cascades
/// through the master. Handlers must call this exactly once, after their
/// work is done, or the line stays masked.
func (p *Pic_t) Eoi(vec uint8) {
	if !p.Handles(vec) {
		panic("eoi for foreign vector")
	}
	if vec >= p.off2 {
		p.bus.Outb(CMD2, EOICMD)
	}
	p.bus.Outb(CMD1, EOICMD)
}
