package machine

import "fmt"

import "util"

// The device's view of its own registers. Deliberately independent of the
// driver's constants: the model answers to the wire protocol, not to the
// code driving it.
const (
	devERR = 0x01
	devDRQ = 0x08
	devDF  = 0x20
	devRDY = 0x40
	devBSY = 0x80

	deverrABRT = 0x04
	deverrIDNF = 0x10

	devCMDREAD  = 0x20
	devCMDWRITE = 0x30
	devCMDID    = 0xEC

	devSECTOR = 512
	devWORDS  = devSECTOR / 2
)

/// Atadev_t models one ATA bus: eight command block ports plus the two
/// control ports, with up to two attached drive images. A bus with no
/// image behind the selected drive reads status zero, which is how real
/// hardware looks when nothing is there.
type Atadev_t struct {
	iobase uint16
	ctl    uint16
	imgs   [2][]uint8 /// nil means no drive attached

	// task file
	feat   uint8
	count  uint8
	lbalo  uint8
	lbamid uint8
	lbahi  uint8
	sel    uint8
	status uint8
	errreg uint8

	// data phase
	rdq    []uint16 /// words pending for the host to read
	wrleft int      /// sectors the host still owes us
	wrbuf  []uint16
	wlba   uint32

	stuck bool /// wedge the bus busy forever

	nstatus int /// status reads, counted for tests
	ndata   int /// data port transfers, counted for tests
}

/// Mkata creates a bus model with its command and control blocks at the
/// given base ports.
func Mkata(iobase, ctl uint16) *Atadev_t {
	return &Atadev_t{iobase: iobase, ctl: ctl, status: devRDY}
}

/// Attach puts a drive image behind drive index dn. The image must be a
/// whole number of sectors; writes mutate it in place.
func (d *Atadev_t) Attach(dn int, img []uint8) {
	if dn != 0 && dn != 1 {
		panic("bad drive")
	}
	if len(img)%devSECTOR != 0 {
		panic("image not sector aligned")
	}
	d.imgs[dn] = img
}

/// Stick wedges the bus: status reads BSY forever. For timeout tests.
func (d *Atadev_t) Stick() {
	d.stuck = true
}

/// Nstatus returns how many times the status registers were read.
func (d *Atadev_t) Nstatus() int {
	return d.nstatus
}

/// Ndata returns how many data port transfers occurred.
func (d *Atadev_t) Ndata() int {
	return d.ndata
}

/// Selectbyte returns the last value written to the drive select port.
func (d *Atadev_t) Selectbyte() uint8 {
	return d.sel
}

func (d *Atadev_t) drive() int {
	return int(d.sel>>4) & 1
}

func (d *Atadev_t) img() []uint8 {
	return d.imgs[d.drive()]
}

func (d *Atadev_t) present() bool {
	return d.img() != nil
}

func (d *Atadev_t) lba() uint32 {
	return uint32(d.sel&0xF)<<24 | uint32(d.lbahi)<<16 |
		uint32(d.lbamid)<<8 | uint32(d.lbalo)
}

func (d *Atadev_t) In8(p uint16) uint8 {
	switch p {
	case d.iobase + 7, d.ctl + 0:
		// status and alternate status
		d.nstatus++
		if d.stuck {
			return devBSY
		}
		if !d.present() {
			return 0
		}
		return d.status
	case d.iobase + 1:
		return d.errreg
	case d.iobase + 2:
		return d.count
	case d.iobase + 3:
		return d.lbalo
	case d.iobase + 4:
		return d.lbamid
	case d.iobase + 5:
		return d.lbahi
	case d.iobase + 6:
		return d.sel
	case d.ctl + 1:
		// drive address register: selected drive, active low
		return ^uint8(1<<uint(d.drive())) & 0x3
	}
	return 0xFF
}

func (d *Atadev_t) Out8(p uint16, v uint8) {
	switch p {
	case d.iobase + 1:
		d.feat = v
	case d.iobase + 2:
		d.count = v
	case d.iobase + 3:
		d.lbalo = v
	case d.iobase + 4:
		d.lbamid = v
	case d.iobase + 5:
		d.lbahi = v
	case d.iobase + 6:
		d.sel = v
	case d.iobase + 7:
		d.command(v)
	case d.ctl + 0:
		// device control: reset and interrupt gating unmodeled
	}
}

/// command begins executing an opcode against the selected drive.
func (d *Atadev_t) command(cmd uint8) {
	d.errreg = 0
	d.rdq = nil
	d.wrleft = 0
	if !d.present() {
		d.status = 0
		return
	}
	switch cmd {
	case devCMDREAD:
		n := int(d.count)
		lba := int(d.lba())
		if (lba+n)*devSECTOR > len(d.img()) {
			d.fail(deverrIDNF)
			return
		}
		for s := 0; s < n; s++ {
			off := (lba + s) * devSECTOR
			for w := 0; w < devWORDS; w++ {
				d.rdq = append(d.rdq,
					uint16(util.Readn(d.img(), 2, off+2*w)))
			}
		}
		d.endsetup(n)
	case devCMDWRITE:
		n := int(d.count)
		d.wlba = d.lba()
		if (int(d.wlba)+n)*devSECTOR > len(d.img()) {
			d.fail(deverrIDNF)
			return
		}
		d.wrleft = n
		d.wrbuf = d.wrbuf[:0]
		d.endsetup(n)
	case devCMDID:
		blk := d.identify()
		d.rdq = append(d.rdq, blk[:]...)
		d.status = devRDY | devDRQ
	default:
		if bus_debug {
			fmt.Printf("atadev: aborting unknown command %#x\n", cmd)
		}
		d.fail(deverrABRT)
	}
}

func (d *Atadev_t) endsetup(nsectors int) {
	if nsectors > 0 {
		d.status = devRDY | devDRQ
	} else {
		d.status = devRDY
	}
}

func (d *Atadev_t) fail(errbits uint8) {
	d.errreg = errbits
	d.status = devRDY | devERR
}

func (d *Atadev_t) In16(p uint16) uint16 {
	if p != d.iobase {
		return 0xFFFF
	}
	d.ndata++
	if len(d.rdq) == 0 {
		return 0
	}
	v := d.rdq[0]
	d.rdq = d.rdq[1:]
	if len(d.rdq) == 0 {
		d.status = devRDY
	}
	return v
}

func (d *Atadev_t) Out16(p uint16, v uint16) {
	if p != d.iobase || d.wrleft == 0 {
		return
	}
	d.ndata++
	d.wrbuf = append(d.wrbuf, v)
	if len(d.wrbuf) == devWORDS {
		off := int(d.wlba) * devSECTOR
		for w, wv := range d.wrbuf {
			util.Writen(d.img(), 2, off+2*w, int(wv))
		}
		d.wlba++
		d.wrleft--
		d.wrbuf = d.wrbuf[:0]
		if d.wrleft == 0 {
			d.status = devRDY
		}
	}
}

/// identify builds the 256-word device information block. ATA strings are
/// big-endian within each word.
func (d *Atadev_t) identify() [devWORDS]uint16 {
	var blk [devWORDS]uint16
	blk[0] = 0x0040 // fixed, non-removable device
	model := "SCONE SIM ATA DRIVE"
	for len(model) < 40 {
		model += " "
	}
	for i := 0; i < 20; i++ {
		blk[27+i] = uint16(model[2*i])<<8 | uint16(model[2*i+1])
	}
	blk[49] = 1 << 9 // LBA supported
	secs := len(d.img()) / devSECTOR
	blk[60] = uint16(secs)
	blk[61] = uint16(secs >> 16)
	return blk
}
