package logger

import "golang.org/x/term"

// isTerminal reports whether fd is an interactive terminal. Colored
// output is enabled only for terminals.
func isTerminal(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}
