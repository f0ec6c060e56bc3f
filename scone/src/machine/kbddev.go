package machine

/// Kbddev_t models the keyboard controller's data port. The harness
/// injects bytes; each pending byte holds the interrupt line until the
/// data port is read.
type Kbddev_t struct {
	pending []uint8
}

/// Mkkbd returns a keyboard with nothing typed yet.
func Mkkbd() *Kbddev_t {
	return &Kbddev_t{}
}

/// Inject queues raw scancode bytes as if they were typed.
func (k *Kbddev_t) Inject(vs ...uint8) {
	k.pending = append(k.pending, vs...)
}

/// Intr reports whether the keyboard is asserting its interrupt line.
func (k *Kbddev_t) Intr() bool {
	return len(k.pending) > 0
}

func (k *Kbddev_t) In8(p uint16) uint8 {
	if len(k.pending) == 0 {
		return 0
	}
	v := k.pending[0]
	k.pending = k.pending[1:]
	return v
}

func (k *Kbddev_t) Out8(p uint16, v uint8) {
	// controller commands unmodeled
}

func (k *Kbddev_t) In16(p uint16) uint16 {
	panic("kbd: word io")
}

func (k *Kbddev_t) Out16(p uint16, v uint16) {
	panic("kbd: word io")
}
