package machine

/// Picwrite_t is one recorded write to a controller port, in program
/// order.
type Picwrite_t struct {
	Port uint16
	Val  uint8
}

/// Picdev_t models the 8259 pair just deeply enough to check the driver:
/// it follows the ICW initialization sequence, remembers the programmed
/// offsets and masks, and counts every end-of-interrupt write so tests
/// can assert the exactly-once acknowledgement contract.
type Picdev_t struct {
	writes  []Picwrite_t
	off     [2]uint8
	mask    [2]uint8
	icwleft [2]int /// ICW data writes still expected, 0 when operational
	icwn    [2]int /// ICW data writes consumed since ICW1
	eois    [2]int
}

/// Mkpicdev returns a controller pair awaiting initialization.
func Mkpicdev() *Picdev_t {
	return &Picdev_t{}
}

/// Offsets returns the vector bases programmed by ICW2.
func (p *Picdev_t) Offsets() (uint8, uint8) {
	return p.off[0], p.off[1]
}

/// Masks returns the current mask registers.
func (p *Picdev_t) Masks() (uint8, uint8) {
	return p.mask[0], p.mask[1]
}

/// Eois returns how many end-of-interrupt commands each controller has
/// received.
func (p *Picdev_t) Eois() (int, int) {
	return p.eois[0], p.eois[1]
}

/// Writes returns every recorded controller write in program order.
func (p *Picdev_t) Writes() []Picwrite_t {
	return p.writes
}

func (p *Picdev_t) which(port uint16) (int, bool) {
	switch port {
	case 0x20:
		return 0, true
	case 0xA0:
		return 1, true
	case 0x21:
		return 0, false
	case 0xA1:
		return 1, false
	}
	panic("not a pic port")
}

func (p *Picdev_t) In8(port uint16) uint8 {
	i, cmd := p.which(port)
	if cmd {
		// register reads through OCW3 unmodeled
		return 0
	}
	return p.mask[i]
}

func (p *Picdev_t) Out8(port uint16, v uint8) {
	p.writes = append(p.writes, Picwrite_t{port, v})
	i, cmd := p.which(port)
	if cmd {
		if v&0x10 != 0 {
			// ICW1: expect ICW2 (offset), ICW3 (cascade), and, when
			// bit 0 is set, ICW4 (mode)
			p.icwleft[i] = 2
			if v&0x01 != 0 {
				p.icwleft[i] = 3
			}
			p.icwn[i] = 0
			return
		}
		if v == 0x20 {
			p.eois[i]++
		}
		return
	}
	if p.icwleft[i] > 0 {
		p.icwn[i]++
		if p.icwn[i] == 1 {
			// ICW2 carries the vector offset; ICW3 and ICW4 are
			// accepted but not modeled
			p.off[i] = v
		}
		p.icwleft[i]--
		return
	}
	p.mask[i] = v
}

func (p *Picdev_t) In16(port uint16) uint16 {
	panic("pic: word io")
}

func (p *Picdev_t) Out16(port uint16, v uint16) {
	panic("pic: word io")
}
