// Package port defines the port-mapped I/O capability the drivers are
// written against. Real hardware supplies inb/outb from assembly; the
// simulated machine supplies a register file. Either way the protocol
// code is identical.
package port

/// Io_i performs byte and word accesses in the I/O port address space.
type Io_i interface {
	Inb(port uint16) uint8
	Outb(port uint16, v uint8)
	Inw(port uint16) uint16
	Outw(port uint16, v uint16)
}
