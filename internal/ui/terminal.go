package ui

import (
	"os"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// ShouldUseColor reports whether styled output should be emitted.
// NO_COLOR always wins, CLICOLOR_FORCE forces color in non-TTY
// contexts, CLICOLOR=0 opts out, and otherwise color requires a
// terminal that supports it.
func ShouldUseColor() bool {
	if _, set := os.LookupEnv("NO_COLOR"); set {
		return false
	}
	if force := os.Getenv("CLICOLOR_FORCE"); force != "" && force != "0" {
		return true
	}
	if os.Getenv("CLICOLOR") == "0" {
		return false
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return false
	}
	return termenv.ColorProfile() != termenv.Ascii
}
