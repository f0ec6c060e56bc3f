// Package ata implements the register-level PIO protocol for legacy ATA
// disks. The engine polls status bits; it is not interrupt driven. All
// hardware access goes through the port.Io_i capability so the protocol
// runs identically over real inb/outb or a simulated register file.
package ata

import "fmt"
import "strings"

import "defs"
import "port"

const ata_debug = false

// The two fixed buses and their port groups.
const (
	IOBASE0  = 0x1F0 /// primary command block
	CTLBASE0 = 0x3F6 /// primary control block
	IOBASE1  = 0x170 /// secondary command block
	CTLBASE1 = 0x376 /// secondary control block
)

/// Bussel_t selects one of the two fixed ATA buses.
type Bussel_t int

const (
	PRIMARY Bussel_t = iota
	SECONDARY
)

/// Iobase returns the command block base port of the bus.
func (b Bussel_t) Iobase() uint16 {
	if b == PRIMARY {
		return IOBASE0
	}
	return IOBASE1
}

/// Ctlbase returns the control block base port of the bus.
func (b Bussel_t) Ctlbase() uint16 {
	if b == PRIMARY {
		return CTLBASE0
	}
	return CTLBASE1
}

// Command block register offsets from the I/O base. Several ports mean
// different things on read and write.
const (
	RDATA   = 0 /// data (read/write)
	RERROR  = 1 /// error on read
	RFEAT   = 1 /// features on write
	RCOUNT  = 2 /// sector count
	RLBALO  = 3 /// LBA low byte
	RLBAMID = 4 /// LBA mid byte
	RLBAHI  = 5 /// LBA high byte
	RSELECT = 6 /// drive/head select
	RSTATUS = 7 /// status on read
	RCMD    = 7 /// command on write
)

// Control block register offsets from the control base.
const (
	RALTSTATUS = 0 /// alternate status on read
	RDEVCTL    = 0 /// device control on write
	RDRVADDR   = 1 /// drive address, read-only
)

// Command opcodes.
const (
	CMDREAD     = 0x20
	CMDWRITE    = 0x30
	CMDIDENTIFY = 0xEC
)

/// SECTORWORDS is the number of 16-bit words per sector, the unit of
/// every transfer.
const SECTORWORDS = 256

/// SECTORBYTES is the sector size in bytes.
const SECTORBYTES = 2 * SECTORWORDS

/// MAXWAIT bounds every status poll loop. The original engine span
/// forever on a wedged drive; bounding the loop trades that hang for a
/// timeout error.
const MAXWAIT = 1 << 24

// Drive/head select: bit 6 selects LBA addressing, bits 7 and 5 are
// always set, bit 4 is the drive index, bits 3-0 carry LBA bits 27-24.
const (
	selfixed = 0xA0
	sellba   = 0x40
)

/// Status_t is the status register. It must be sampled fresh on every
/// poll iteration; a stale copy says nothing about the drive now.
type Status_t uint8

const (
	SERR  Status_t = 1 << iota /// an error occurred; error register valid
	SIDX                       /// index mark (obsolete)
	SCORR                      /// corrected data (obsolete)
	SDRQ                       /// drive ready to transfer data words
	SSRV                       /// overlapped service request
	SDF                        /// drive fault
	SRDY                       /// drive spun up and ready
	SBSY                       /// drive busy; other bits invalid
)

func (s Status_t) Err() bool  { return s&SERR != 0 }
func (s Status_t) Idx() bool  { return s&SIDX != 0 }
func (s Status_t) Corr() bool { return s&SCORR != 0 }
func (s Status_t) Drq() bool  { return s&SDRQ != 0 }
func (s Status_t) Srv() bool  { return s&SSRV != 0 }
func (s Status_t) Df() bool   { return s&SDF != 0 }
func (s Status_t) Rdy() bool  { return s&SRDY != 0 }
func (s Status_t) Bsy() bool  { return s&SBSY != 0 }

/// Error_t is the error register. It is valid only immediately after a
/// status read observed ERR set.
type Error_t uint8

const (
	EAMNF  Error_t = 1 << iota /// address mark not found
	ETKZNF                     /// track zero not found
	EABRT                      /// command aborted
	EMCR                       /// media change request
	EIDNF                      /// sector id not found
	EMC                        /// media changed
	EUNC                       /// uncorrectable data
	EBBK                       /// bad block
)

func (e Error_t) Amnf() bool  { return e&EAMNF != 0 }
func (e Error_t) Tkznf() bool { return e&ETKZNF != 0 }
func (e Error_t) Abrt() bool  { return e&EABRT != 0 }
func (e Error_t) Mcr() bool   { return e&EMCR != 0 }
func (e Error_t) Idnf() bool  { return e&EIDNF != 0 }
func (e Error_t) Mc() bool    { return e&EMC != 0 }
func (e Error_t) Unc() bool   { return e&EUNC != 0 }
func (e Error_t) Bbk() bool   { return e&EBBK != 0 }

var errnames = []string{"AMNF", "TKZNF", "ABRT", "MCR", "IDNF", "MC",
	"UNC", "BBK"}

/// String names the set flags, for fault diagnostics.
func (e Error_t) String() string {
	if e == 0 {
		return "none"
	}
	var set []string
	for i, n := range errnames {
		if e&(1<<uint(i)) != 0 {
			set = append(set, n)
		}
	}
	return strings.Join(set, "|")
}

/// Driver_t is the polled protocol engine for one drive. It is re-entered
/// only synchronously; callers serialize access to the register file.
type Driver_t struct {
	bus    port.Io_i
	iobase uint16
	ctl    uint16
	drive  int
	status Status_t
}

/// Mkdriver prepares an engine for the given bus and drive index. The
/// status register is sampled once so Status is meaningful before the
/// first command.
func Mkdriver(bus port.Io_i, sel Bussel_t, drive int) *Driver_t {
	if drive != 0 && drive != 1 {
		panic("bad drive index")
	}
	d := &Driver_t{bus: bus, iobase: sel.Iobase(), ctl: sel.Ctlbase(),
		drive: drive}
	d.Readstatus()
	return d
}

/// Readstatus samples the status register and caches the sample.
func (d *Driver_t) Readstatus() Status_t {
	d.status = Status_t(d.bus.Inb(d.iobase + RSTATUS))
	return d.status
}

/// Status returns the most recent sample taken by Readstatus.
func (d *Driver_t) Status() Status_t {
	return d.status
}

/// Readerror reads the error register. Only meaningful immediately after
/// ERR was observed in the status register.
func (d *Driver_t) Readerror() Error_t {
	return Error_t(d.bus.Inb(d.iobase + RERROR))
}

/// Altstatus reads the alternate status register from the control block.
func (d *Driver_t) Altstatus() Status_t {
	return Status_t(d.bus.Inb(d.ctl + RALTSTATUS))
}

/// Drvaddr reads the drive address register, which reports the currently
/// selected drive.
func (d *Driver_t) Drvaddr() uint8 {
	return d.bus.Inb(d.ctl + RDRVADDR)
}

/// waitidle polls until BSY clears so a new command can be issued. ERR
/// or DF seen here is stale state latched by a previous command, not a
/// fault of the command about to run; the drive resets both when the
/// next command byte arrives, so they are ignored.
func (d *Driver_t) waitidle() defs.Err_t {
	for i := 0; i < MAXWAIT; i++ {
		if !d.Readstatus().Bsy() {
			return 0
		}
	}
	fmt.Printf("WARNING: ata: drive wedged busy\n")
	return -defs.ETIMEDOUT
}

/// waitbsy polls until BSY clears, after a command has been issued. A
/// drive fault surfaces as -EIO with the error register decoded; a drive
/// that never settles as -ETIMEDOUT.
func (d *Driver_t) waitbsy() defs.Err_t {
	for i := 0; i < MAXWAIT; i++ {
		s := d.Readstatus()
		if !s.Bsy() {
			if s.Err() || s.Df() {
				return d.faulted(s)
			}
			return 0
		}
	}
	fmt.Printf("WARNING: ata: drive wedged busy\n")
	return -defs.ETIMEDOUT
}

/// waitdrq polls until the drive asserts DRQ for a data transfer.
func (d *Driver_t) waitdrq() defs.Err_t {
	for i := 0; i < MAXWAIT; i++ {
		s := d.Readstatus()
		if !s.Bsy() {
			if s.Err() || s.Df() {
				return d.faulted(s)
			}
			if s.Drq() {
				return 0
			}
		}
	}
	fmt.Printf("WARNING: ata: drive never asserted DRQ\n")
	return -defs.ETIMEDOUT
}

/// faulted reads the error register while it is still valid and reports
/// the failure.
func (d *Driver_t) faulted(s Status_t) defs.Err_t {
	e := d.Readerror()
	fmt.Printf("WARNING: ata: drive fault: status %#x error %v\n",
		uint8(s), e)
	return -defs.EIO
}

/// setup writes the drive select byte, the sector count, and the three
/// LBA bytes. The top four bits of the 28-bit LBA merge into the select
/// byte; wider LBAs silently truncate.
func (d *Driver_t) setup(lba uint32, count uint8) {
	sel := uint8(selfixed|sellba) | uint8(d.drive<<4) | uint8(lba>>24)&0xF
	d.bus.Outb(d.iobase+RSELECT, sel)
	d.bus.Outb(d.iobase+RCOUNT, count)
	d.bus.Outb(d.iobase+RLBALO, uint8(lba))
	d.bus.Outb(d.iobase+RLBAMID, uint8(lba>>8))
	d.bus.Outb(d.iobase+RLBAHI, uint8(lba>>16))
}

/// Readsectors transfers count sectors starting at block lba into buf,
/// blocking the caller until the transfer completes. count 0 issues the
/// command but moves nothing. A buffer shorter than the transfer is
/// programmer misuse.
func (d *Driver_t) Readsectors(buf []uint16, lba uint32, count uint8) defs.Err_t {
	if len(buf) < SECTORWORDS*int(count) {
		panic("short sector buffer")
	}
	if ata_debug {
		fmt.Printf("ata: read %v sectors at %v\n", count, lba)
	}
	if err := d.waitidle(); err != 0 {
		return err
	}
	d.setup(lba, count)
	d.bus.Outb(d.iobase+RCMD, CMDREAD)
	for sec := 0; sec < int(count); sec++ {
		if err := d.waitbsy(); err != 0 {
			return err
		}
		if err := d.waitdrq(); err != 0 {
			return err
		}
		for w := 0; w < SECTORWORDS; w++ {
			buf[sec*SECTORWORDS+w] = d.bus.Inw(d.iobase + RDATA)
		}
	}
	return 0
}

/// Writesectors transfers count sectors from buf to the drive starting at
/// block lba. Same contract as Readsectors.
func (d *Driver_t) Writesectors(buf []uint16, lba uint32, count uint8) defs.Err_t {
	if len(buf) < SECTORWORDS*int(count) {
		panic("short sector buffer")
	}
	if ata_debug {
		fmt.Printf("ata: write %v sectors at %v\n", count, lba)
	}
	if err := d.waitidle(); err != 0 {
		return err
	}
	d.setup(lba, count)
	d.bus.Outb(d.iobase+RCMD, CMDWRITE)
	for sec := 0; sec < int(count); sec++ {
		if err := d.waitbsy(); err != 0 {
			return err
		}
		if err := d.waitdrq(); err != 0 {
			return err
		}
		for w := 0; w < SECTORWORDS; w++ {
			d.bus.Outw(d.iobase+RDATA, buf[sec*SECTORWORDS+w])
		}
	}
	return 0
}

/// Identify asks the drive to describe itself and returns the 256-word
/// device information block. A status of zero immediately after the
/// command means no drive is attached: the zeroed block is returned
/// without entering any wait loop, since a missing drive never asserts
/// BSY or DRQ.
func (d *Driver_t) Identify() ([SECTORWORDS]uint16, defs.Err_t) {
	var blk [SECTORWORDS]uint16
	if err := d.waitidle(); err != 0 {
		return blk, err
	}
	d.bus.Outb(d.iobase+RSELECT, uint8(selfixed)|uint8(d.drive<<4))
	d.bus.Outb(d.iobase+RCOUNT, 0)
	d.bus.Outb(d.iobase+RLBALO, 0)
	d.bus.Outb(d.iobase+RLBAMID, 0)
	d.bus.Outb(d.iobase+RLBAHI, 0)
	d.bus.Outb(d.iobase+RCMD, CMDIDENTIFY)
	if s := d.Readstatus(); s == 0 {
		return blk, 0
	}
	if err := d.waitbsy(); err != 0 {
		return blk, err
	}
	if err := d.waitdrq(); err != 0 {
		return blk, err
	}
	for w := 0; w < SECTORWORDS; w++ {
		blk[w] = d.bus.Inw(d.iobase + RDATA)
	}
	return blk, 0
}

/// Idmodel extracts the model string from an identify block. ATA strings
/// are stored big-endian within each 16-bit word.
func Idmodel(blk *[SECTORWORDS]uint16) string {
	b := make([]uint8, 0, 40)
	for _, w := range blk[27:47] {
		b = append(b, uint8(w>>8), uint8(w))
	}
	return strings.TrimSpace(string(b))
}
