// Package machine is a register-level model of the PC hardware this
// kernel drives: a port-mapped I/O bus, an ATA bus with drive images, the
// keyboard controller data port, and the interrupt controller pair. The
// kernel's drivers run over it unchanged, which is what makes the
// protocol code testable without hardware.
package machine

import "fmt"

const bus_debug = false

/// Iodev_i handles port accesses for a claimed range of ports.
type Iodev_i interface {
	In8(p uint16) uint8
	Out8(p uint16, v uint8)
	In16(p uint16) uint16
	Out16(p uint16, v uint16)
}

type devrange_t struct {
	lo, hi uint16
	dev    Iodev_i
}

/// Bus_t routes port accesses to registered devices. It implements
/// port.Io_i.
type Bus_t struct {
	devs []devrange_t
}

/// Mkbus returns an empty bus.
func Mkbus() *Bus_t {
	return &Bus_t{}
}

/// Register claims the inclusive port range [lo, hi] for dev. Overlapping
/// claims are a configuration bug.
func (b *Bus_t) Register(lo, hi uint16, dev Iodev_i) {
	if dev == nil || hi < lo {
		panic("bad device range")
	}
	for _, r := range b.devs {
		if lo <= r.hi && hi >= r.lo {
			panic(fmt.Sprintf("port range %#x-%#x already claimed", lo, hi))
		}
	}
	b.devs = append(b.devs, devrange_t{lo, hi, dev})
}

func (b *Bus_t) find(p uint16) Iodev_i {
	for _, r := range b.devs {
		if p >= r.lo && p <= r.hi {
			return r.dev
		}
	}
	return nil
}

/// Inb reads a byte from p. Unclaimed ports float high.
func (b *Bus_t) Inb(p uint16) uint8 {
	if d := b.find(p); d != nil {
		return d.In8(p)
	}
	if bus_debug {
		fmt.Printf("bus: in8 from unclaimed port %#x\n", p)
	}
	return 0xFF
}

/// Outb writes a byte to p. Writes to unclaimed ports are dropped.
func (b *Bus_t) Outb(p uint16, v uint8) {
	if d := b.find(p); d != nil {
		d.Out8(p, v)
		return
	}
	if bus_debug {
		fmt.Printf("bus: out8 %#x to unclaimed port %#x\n", v, p)
	}
}

/// Inw reads a word from p.
func (b *Bus_t) Inw(p uint16) uint16 {
	if d := b.find(p); d != nil {
		return d.In16(p)
	}
	if bus_debug {
		fmt.Printf("bus: in16 from unclaimed port %#x\n", p)
	}
	return 0xFFFF
}

/// Outw writes a word to p.
func (b *Bus_t) Outw(p uint16, v uint16) {
	if d := b.find(p); d != nil {
		d.Out16(p, v)
		return
	}
	if bus_debug {
		fmt.Printf("bus: out16 %#x to unclaimed port %#x\n", v, p)
	}
}

/// Cpu_t models the halt line of the single core.
type Cpu_t struct {
	halted bool
}

/// Halt stops the core. There is no way back; the simulation just stops
/// delivering work.
func (c *Cpu_t) Halt() {
	c.halted = true
}

/// Halted reports whether the core was halted.
func (c *Cpu_t) Halted() bool {
	return c.halted
}

/// Machine_t bundles a whole simulated PC.
type Machine_t struct {
	Bus  *Bus_t
	Cpu  *Cpu_t
	Ata0 *Atadev_t /// primary bus
	Ata1 *Atadev_t /// secondary bus
	Kbd  *Kbddev_t
	Pic  *Picdev_t
}

/// Mkmachine wires the standard device complement onto a fresh bus.
func Mkmachine() *Machine_t {
	m := &Machine_t{
		Bus:  Mkbus(),
		Cpu:  &Cpu_t{},
		Ata0: Mkata(0x1F0, 0x3F6),
		Ata1: Mkata(0x170, 0x376),
		Kbd:  Mkkbd(),
		Pic:  Mkpicdev(),
	}
	m.Bus.Register(0x1F0, 0x1F7, m.Ata0)
	m.Bus.Register(0x3F6, 0x3F7, m.Ata0)
	m.Bus.Register(0x170, 0x177, m.Ata1)
	m.Bus.Register(0x376, 0x377, m.Ata1)
	m.Bus.Register(0x60, 0x60, m.Kbd)
	m.Bus.Register(0x20, 0x21, m.Pic)
	m.Bus.Register(0xA0, 0xA1, m.Pic)
	return m
}
