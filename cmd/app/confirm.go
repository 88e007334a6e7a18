package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/maloquacious/navstore/internal/audit"
	"github.com/maloquacious/navstore/internal/store/sqlite"
)

// promptConfirmer asks on the terminal unless yes is set.
type promptConfirmer struct {
	in  io.Reader
	out io.Writer
	yes bool
}

func (p *promptConfirmer) ConfirmErase(incompatible []audit.Incompatible) bool {
	fmt.Fprintln(p.out, "These stores are incompatible with this version and will be erased:")
	for _, inc := range incompatible {
		fmt.Fprintf(p.out, "  %s\n", inc)
	}
	return p.ask("Erase them")
}

func (p *promptConfirmer) ConfirmOverwrite(bundled, current sqlite.Meta, bundledPath, currentPath string) bool {
	fmt.Fprintf(p.out, "The bundled navdata %s (cycle %s, built %s) is newer than\n",
		bundledPath, bundled.DataCycle, humanize.Time(bundled.LastBuildTime))
	fmt.Fprintf(p.out, "  %s (cycle %s, built %s).\n",
		currentPath, current.DataCycle, humanize.Time(current.LastBuildTime))
	return p.ask("Overwrite it")
}

func (p *promptConfirmer) ask(question string) bool {
	if p.yes {
		fmt.Fprintf(p.out, "%s? yes\n", question)
		return true
	}
	fmt.Fprintf(p.out, "%s? [y/N] ", question)
	answer, _ := bufio.NewReader(p.in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
