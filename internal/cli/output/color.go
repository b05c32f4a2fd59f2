package output

import (
	"fmt"
	"io"
)

const reset = "\033[0m"

// ANSI SGR parameters used by the CLI.
const (
	FgRed    = 31
	FgGreen  = 32
	FgYellow = 33
	FgCyan   = 36
	FgWhite  = 37
	Bold     = 1
)

// Color renders text with a fixed set of SGR parameters.
type Color struct {
	params []int
}

func NewColor(attrs ...int) *Color {
	return &Color{params: attrs}
}

func (c *Color) format() string {
	if len(c.params) == 0 {
		return ""
	}
	seq := "\033["
	for i, param := range c.params {
		if i > 0 {
			seq += ";"
		}
		seq += fmt.Sprintf("%d", param)
	}
	return seq + "m"
}

func (c *Color) Printf(format string, a ...interface{}) {
	fmt.Printf(c.format()+format+reset, a...)
}

func (c *Color) Fprintf(w io.Writer, format string, a ...interface{}) {
	fmt.Fprintf(w, c.format()+format+reset, a...)
}
