// The kernel harness boots the I/O core on a simulated machine: it remaps
// the interrupt controllers, installs the vector table, identifies the
// primary drive, round-trips a sector, and echoes injected keystrokes
// through the interrupt-to-scheduler bridge.
package main

import (
	"fmt"
	"os"

	flag "github.com/ogier/pflag"

	"ata"
	"defs"
	"irq"
	"kbd"
	"machine"
	"pic"
)

// pollwaker_t marks the poll loop runnable again.
type pollwaker_t struct {
	ready *bool
}

func (w *pollwaker_t) Wake() {
	*w.ready = true
}

func fatal(format string, args ...interface{}) {
	fmt.Printf(format, args...)
	os.Exit(1)
}

func main() {
	image := flag.String("image", "", "disk image backing the primary drive")
	sectors := flag.Int("sectors", 64, "image size in sectors when no image file is given")
	keys := flag.String("keys", "hello", "bytes injected as keyboard scancodes")
	flag.Parse()

	m := machine.Mkmachine()

	var img []uint8
	if *image != "" {
		b, err := os.ReadFile(*image)
		if err != nil {
			fatal("cannot read image: %v\n", err)
		}
		img = b
	} else {
		img = make([]uint8, *sectors*ata.SECTORBYTES)
	}
	m.Ata0.Attach(0, img)

	p := pic.Mkpic(m.Bus, irq.PICOFF, irq.PICOFF+pic.NIRQS)
	p.Remap()
	d := irq.Install(m.Bus, p, m.Cpu)

	drv := ata.Mkdriver(m.Bus, ata.PRIMARY, 0)
	id, err := drv.Identify()
	if err != 0 {
		fatal("ata: identify failed: %v\n", defs.Errstr(err))
	}
	fmt.Printf("ata: primary drive 0: %q, %v sectors\n", ata.Idmodel(&id),
		uint32(id[60])|uint32(id[61])<<16)

	// round-trip the last sector
	var sec [ata.SECTORWORDS]uint16
	for i := range sec {
		sec[i] = uint16(i)
	}
	last := uint32(len(img)/ata.SECTORBYTES - 1)
	if err := drv.Writesectors(sec[:], last, 1); err != 0 {
		fatal("ata: write failed: %v\n", defs.Errstr(err))
	}
	var back [ata.SECTORWORDS]uint16
	if err := drv.Readsectors(back[:], last, 1); err != 0 {
		fatal("ata: read failed: %v\n", defs.Errstr(err))
	}
	if back != sec {
		fatal("ata: sector round trip mismatch\n")
	}
	fmt.Printf("ata: sector %v round trip ok\n", last)
	if *image != "" {
		if err := os.WriteFile(*image, img, 0644); err != nil {
			fatal("cannot write image: %v\n", err)
		}
	}

	// cooperative echo loop: deliver keyboard interrupts, poll the
	// scancode sequence the way the scheduler would
	scancodes := kbd.Mkscancodes()
	m.Kbd.Inject([]uint8(*keys)...)

	ready := true
	w := &pollwaker_t{ready: &ready}
	got := make([]uint8, 0, len(*keys))
	for len(got) < len(*keys) && !m.Cpu.Halted() {
		if m.Kbd.Intr() {
			d.Raise(irq.KEYBOARD)
		}
		d.Raise(irq.TIMER)
		if !ready {
			continue
		}
		if v, ok := scancodes.Poll(w); ok {
			got = append(got, v)
		} else {
			ready = false
		}
	}
	fmt.Printf("kbd: echoed %q\n", string(got))
	fmt.Printf("irq: %v keyboard interrupts, %v timer ticks\n",
		d.Irqcount(irq.KEYBOARD), d.Ticks())
}
