// Command depgraph generates a Graphviz DOT description of the kernel
// package import graph. Point it at one of the module directories under
// scone/src and pipe the output to dot:
//
//	depgraph scone/src/kernel | dot -Tsvg > deps.svg
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"sort"

	"golang.org/x/tools/go/packages"
)

func main() {
	dir := "."
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedImports | packages.NeedModule,
		Dir:  dir,
	}
	pkgs, err := packages.Load(cfg, "all")
	if err != nil {
		log.Fatal(err)
	}

	// only packages that resolve to a module are interesting; the
	// standard library would drown the graph
	local := make(map[string]bool)
	for _, p := range pkgs {
		if p.Module != nil {
			local[p.PkgPath] = true
		}
	}

	var edges []string
	for _, p := range pkgs {
		if !local[p.PkgPath] {
			continue
		}
		for imp := range p.Imports {
			if local[imp] {
				edges = append(edges, fmt.Sprintf("    %q -> %q;", p.PkgPath, imp))
			}
		}
	}
	sort.Strings(edges)

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()
	fmt.Fprintln(w, "digraph deps {")
	for _, e := range edges {
		fmt.Fprintln(w, e)
	}
	fmt.Fprintln(w, "}")
}
