// Command irqprof summarizes a CPU profile taken while the harness runs,
// reporting flat sample time per function in the interrupt and disk
// packages. Usage:
//
//	irqprof cpu.pprof ['regexp']
package main

import (
	"fmt"
	"log"
	"os"
	"regexp"
	"sort"
	"time"

	"github.com/google/pprof/profile"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("usage: %s <profile> [regexp]", os.Args[0])
	}
	match := `^(irq|ata|kbd|pic|idt)\.`
	if len(os.Args) > 2 {
		match = os.Args[2]
	}
	re, err := regexp.Compile(match)
	if err != nil {
		log.Fatal(err)
	}

	f, err := os.Open(os.Args[1])
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	prof, err := profile.Parse(f)
	if err != nil {
		log.Fatal(err)
	}

	// the last sample type of a CPU profile is time in nanoseconds
	vi := len(prof.SampleType) - 1
	flat := make(map[string]int64)
	var total int64
	for _, s := range prof.Sample {
		v := s.Value[vi]
		total += v
		if len(s.Location) == 0 {
			continue
		}
		for _, line := range s.Location[0].Line {
			if line.Function != nil && re.MatchString(line.Function.Name) {
				flat[line.Function.Name] += v
				break
			}
		}
	}

	names := make([]string, 0, len(flat))
	for n := range flat {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		return flat[names[i]] > flat[names[j]]
	})
	for _, n := range names {
		v := flat[n]
		fmt.Printf("%12v %6.2f%% %s\n", time.Duration(v),
			100*float64(v)/float64(total), n)
	}
}
