package ui

import (
	"os"

	"golang.org/x/term"
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd())) // #nosec G115 -- file descriptors fit in int
}

// ShouldUseColor decides whether stdout output is colored, honoring
// NO_COLOR (https://no-color.org), CLICOLOR=0 and CLICOLOR_FORCE.
func ShouldUseColor() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if os.Getenv("CLICOLOR") == "0" {
		return false
	}
	if force := os.Getenv("CLICOLOR_FORCE"); force != "" && force != "0" {
		return true
	}
	return IsTerminal(os.Stdout)
}

// DefaultTheme is the theme for stdout.
func DefaultTheme() Theme {
	return Theme{Color: ShouldUseColor()}
}
